package models

import "time"

// CycleStatus represents the lifecycle of a prepaid cycle.
type CycleStatus string

const (
	CycleInProgress CycleStatus = "in_progress"
	CycleCompleted  CycleStatus = "completed"
)

// Cycle is a prepaid block of countable class sessions billed as one unit.
// A student has at most one in_progress cycle; cycle numbers are strictly
// increasing per student starting at 1.
type Cycle struct {
	ID           string      `db:"id" json:"id"`
	StudentID    string      `db:"student_id" json:"student_id"`
	CycleNumber  int         `db:"cycle_number" json:"cycle_number"`
	CurrentCount int         `db:"current_count" json:"current_count"`
	TotalCount   int         `db:"total_count" json:"total_count"`
	Status       CycleStatus `db:"status" json:"status"`
	StartedAt    time.Time   `db:"started_at" json:"started_at"`
	CompletedAt  *time.Time  `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt    time.Time   `db:"created_at" json:"created_at"`
}

// CycleAlert surfaces cycles nearing or past completion for the dashboard.
type CycleAlert struct {
	StudentID      string      `db:"student_id" json:"student_id"`
	StudentName    string      `db:"student_name" json:"student_name"`
	ClassGroupName *string     `db:"class_group_name" json:"class_group_name,omitempty"`
	CycleID        string      `db:"cycle_id" json:"cycle_id"`
	CycleNumber    int         `db:"cycle_number" json:"cycle_number"`
	CurrentCount   int         `db:"current_count" json:"current_count"`
	TotalCount     int         `db:"total_count" json:"total_count"`
	Status         CycleStatus `db:"status" json:"status"`
}
