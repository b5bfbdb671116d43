package models

import "time"

// Job represents a container movement dispatched to a driver
type Job struct {
	ID              string     `json:"id"`
	JobNumber       string     `json:"jobNumber"`
	Customer        string     `json:"customer"`
	Uplift          string     `json:"uplift"`  // pickup address, free text
	Offload         string     `json:"offload"` // delivery address, free text
	JobStart        *time.Time `json:"jobStart"`
	Size            string     `json:"size"`
	Weight          string     `json:"weight"`
	CommodityCode   string     `json:"commodityCode"`
	Doors           string     `json:"doors"`
	PIN             string     `json:"pin"`
	Slot            string     `json:"slot"`
	DangerousGoods  bool       `json:"dg"`
	Instructions    string     `json:"instructions"`
	Release         string     `json:"release,omitempty"`
	ContainerNumber string     `json:"containerNumber,omitempty"`
	Reference       string     `json:"reference,omitempty"`

	Status      []StatusEvent `json:"status"`
	IsCompleted bool          `json:"isCompleted"`
	AssignedTo  *string       `json:"assignedTo"`
	Driver      *DriverRef    `json:"driver"`
	Proof       *Proof        `json:"proof,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Stage is one step of the job lifecycle
type Stage string

const (
	StageAccept  Stage = "accept"
	StageUplift  Stage = "uplift"
	StageOffload Stage = "offload"
	StageDone    Stage = "done"
)

// Stages lists every stage in lifecycle order
var Stages = []Stage{StageAccept, StageUplift, StageOffload, StageDone}

// Valid reports whether s is one of the four lifecycle stages
func (s Stage) Valid() bool {
	switch s {
	case StageAccept, StageUplift, StageOffload, StageDone:
		return true
	}
	return false
}

// StatusEvent is one immutable entry of a job's status history
type StatusEvent struct {
	Stage     Stage     `json:"stage"`
	Timestamp time.Time `json:"timestamp"`
}

// Proof is the completion evidence submitted by the driver
type Proof struct {
	Notes       string    `json:"notes"`
	Images      []string  `json:"images"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// DriverRef carries the display fields of the assigned driver
type DriverRef struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	UserMainID string `json:"userMainId,omitempty"`
}

// CurrentStage returns the stage of the most recent status entry
func (j *Job) CurrentStage() Stage {
	if len(j.Status) == 0 {
		return ""
	}
	return j.Status[len(j.Status)-1].Stage
}

// IsAssignedTo reports whether the job is currently bound to userID
func (j *Job) IsAssignedTo(userID string) bool {
	return j.AssignedTo != nil && *j.AssignedTo == userID
}

// JobDetails holds the descriptive fields a dispatcher supplies.
// It has no lifecycle fields: status, completion and assignment are owned by the state machine.
type JobDetails struct {
	JobNumber       string     `json:"jobNumber" yaml:"job_number"`
	Customer        string     `json:"customer" yaml:"customer"`
	Uplift          string     `json:"uplift" yaml:"uplift"`
	Offload         string     `json:"offload" yaml:"offload"`
	JobStart        *time.Time `json:"jobStart" yaml:"job_start"`
	Size            string     `json:"size" yaml:"size"`
	Weight          string     `json:"weight" yaml:"weight"`
	CommodityCode   string     `json:"commodityCode" yaml:"commodity_code"`
	Doors           string     `json:"doors" yaml:"doors"`
	PIN             string     `json:"pin" yaml:"pin"`
	Slot            string     `json:"slot" yaml:"slot"`
	DangerousGoods  bool       `json:"dg" yaml:"dg"`
	Instructions    string     `json:"instructions" yaml:"instructions"`
	Release         string     `json:"release" yaml:"release"`
	ContainerNumber string     `json:"containerNumber" yaml:"container_number"`
	Reference       string     `json:"reference" yaml:"reference"`
}

// ApplyDetails copies descriptive fields onto the job
func (j *Job) ApplyDetails(d JobDetails) {
	j.JobNumber = d.JobNumber
	j.Customer = d.Customer
	j.Uplift = d.Uplift
	j.Offload = d.Offload
	j.JobStart = d.JobStart
	j.Size = d.Size
	j.Weight = d.Weight
	j.CommodityCode = d.CommodityCode
	j.Doors = d.Doors
	j.PIN = d.PIN
	j.Slot = d.Slot
	j.DangerousGoods = d.DangerousGoods
	j.Instructions = d.Instructions
	j.Release = d.Release
	j.ContainerNumber = d.ContainerNumber
	j.Reference = d.Reference
}
