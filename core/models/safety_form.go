package models

import "time"

// SafetyForm is the pre-start safety check a driver files against a job
type SafetyForm struct {
	ID          string    `json:"id"`
	JobID       string    `json:"jobId"`
	JobNumber   string    `json:"jobNumber"`
	UserID      string    `json:"userId"`
	FirstName   string    `json:"firstName"`
	Surname     string    `json:"surname"`
	AddressSite string    `json:"addressSite"`
	FitForDuty  string    `json:"fitForDuty"`
	MealBreak   string    `json:"mealBreak"`
	PPE         string    `json:"PPE"`
	Message     string    `json:"message"`
	CreatedAt   time.Time `json:"createdAt"`
}
