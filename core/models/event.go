package models

import "time"

// JobEvent is a persisted stage transition of a job
type JobEvent struct {
	ID        int64     `json:"id"`
	JobID     string    `json:"jobId"`
	Seq       int       `json:"seq"`
	FromStage *Stage    `json:"fromStage,omitempty"`
	Stage     Stage     `json:"stage"`
	At        time.Time `json:"at"`
	ActorID   string    `json:"actorId,omitempty"`
}
