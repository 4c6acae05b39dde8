package models

import "time"

// AttendanceStatus represents the recorded outcome of a session.
type AttendanceStatus string

const (
	AttendancePresent       AttendanceStatus = "present"
	AttendanceLate          AttendanceStatus = "late"
	AttendanceEarlyLeave    AttendanceStatus = "early_leave"
	AttendanceAbsent        AttendanceStatus = "absent"
	AttendanceAbsentExcused AttendanceStatus = "absent_excused"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendancePresent, AttendanceLate, AttendanceEarlyLeave, AttendanceAbsent, AttendanceAbsentExcused:
		return true
	default:
		return false
	}
}

// ExcuseReason qualifies an exception that does not consume cycle capacity.
type ExcuseReason string

const (
	ExcuseSchoolEvent    ExcuseReason = "school_event"
	ExcuseSickLeave      ExcuseReason = "sick_leave"
	ExcuseClassCancelled ExcuseReason = "class_cancelled"
)

// Valid returns true when the reason is a supported value.
func (r ExcuseReason) Valid() bool {
	switch r {
	case ExcuseSchoolEvent, ExcuseSickLeave, ExcuseClassCancelled:
		return true
	default:
		return false
	}
}

// Attendance is one scheduled or occurred session belonging to a cycle.
// CountsTowardCycle decides whether the row consumes one unit of the owning
// cycle's capacity.
type Attendance struct {
	ID                string           `db:"id" json:"id"`
	StudentID         string           `db:"student_id" json:"student_id"`
	CycleID           string           `db:"cycle_id" json:"cycle_id"`
	Date              time.Time        `db:"date" json:"date"`
	Status            AttendanceStatus `db:"status" json:"status"`
	CountsTowardCycle bool             `db:"counts_toward_cycle" json:"counts_toward_cycle"`
	ExcuseReason      *ExcuseReason    `db:"excuse_reason" json:"excuse_reason,omitempty"`
	Memo              *string          `db:"memo" json:"memo,omitempty"`
	CreatedAt         time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time        `db:"updated_at" json:"updated_at"`
}

// AttendanceDetail extends Attendance with student and cycle progress info.
type AttendanceDetail struct {
	Attendance
	StudentName  string `db:"student_name" json:"student_name"`
	CurrentCount int    `db:"current_count" json:"current_count"`
	TotalCount   int    `db:"total_count" json:"total_count"`
}
