package models

import "time"

// LabAttemptStatus is the lifecycle state of a lab attempt.
type LabAttemptStatus string

const (
	AttemptStarted   LabAttemptStatus = "started"
	AttemptCompleted LabAttemptStatus = "completed"
)

// LabAttempt is one full pass through the curriculum, bounded by a start and
// either a completion or a reset.
type LabAttempt struct {
	LabID          string           `json:"lab_id"`
	Status         LabAttemptStatus `json:"status"`
	StartedAt      time.Time        `json:"started_at"`
	CompletedAt    *time.Time       `json:"completed_at,omitempty"`
	TasksCompleted int              `json:"tasks_completed"`
	TotalTasks     int              `json:"total_tasks"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      *time.Time       `json:"updated_at,omitempty"`
}
