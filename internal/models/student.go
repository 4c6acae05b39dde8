package models

import "time"

// Grade identifies the school level used for tuition resolution.
type Grade string

const (
	GradeElementary Grade = "elementary"
	GradeMiddle1    Grade = "middle1"
	GradeMiddle2    Grade = "middle2"
	GradeMiddle3    Grade = "middle3"
	GradeHigh       Grade = "high"
)

// Valid returns true when the grade is a supported value.
func (g Grade) Valid() bool {
	switch g {
	case GradeElementary, GradeMiddle1, GradeMiddle2, GradeMiddle3, GradeHigh:
		return true
	default:
		return false
	}
}

// EnrollmentStatus represents a student's lifecycle stage.
type EnrollmentStatus string

const (
	StatusInquiry   EnrollmentStatus = "inquiry"
	StatusLevelTest EnrollmentStatus = "level_test"
	StatusActive    EnrollmentStatus = "active"
	StatusStopped   EnrollmentStatus = "stopped"
)

// Valid returns true when the status is a supported value.
func (s EnrollmentStatus) Valid() bool {
	switch s {
	case StatusInquiry, StatusLevelTest, StatusActive, StatusStopped:
		return true
	default:
		return false
	}
}

// allowedTransitions is the adjacency table of the enrollment status machine.
// There are no self-loops; stopped students can only be reactivated.
var allowedTransitions = map[EnrollmentStatus][]EnrollmentStatus{
	StatusInquiry:   {StatusLevelTest, StatusActive, StatusStopped},
	StatusLevelTest: {StatusActive, StatusStopped},
	StatusActive:    {StatusStopped},
	StatusStopped:   {StatusActive},
}

// CanTransitionTo reports whether the machine permits moving to target.
func (s EnrollmentStatus) CanTransitionTo(target EnrollmentStatus) bool {
	for _, allowed := range allowedTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// Student represents a learner registered with the tutoring room.
type Student struct {
	ID               string           `db:"id" json:"id"`
	Name             string           `db:"name" json:"name"`
	Phone            string           `db:"phone" json:"phone"`
	School           string           `db:"school" json:"school"`
	Grade            Grade            `db:"grade" json:"grade"`
	ParentPhone      string           `db:"parent_phone" json:"parent_phone"`
	ClassGroupID     string           `db:"class_group_id" json:"class_group_id"`
	TuitionOverride  *int             `db:"tuition_override" json:"tuition_override,omitempty"`
	Memo             *string          `db:"memo" json:"memo,omitempty"`
	EnrollmentStatus EnrollmentStatus `db:"enrollment_status" json:"enrollment_status"`
	LevelTestDate    *time.Time       `db:"level_test_date" json:"level_test_date,omitempty"`
	LevelTestTime    *string          `db:"level_test_time" json:"level_test_time,omitempty"`
	LevelTestResult  *string          `db:"level_test_result" json:"level_test_result,omitempty"`
	CreatedAt        time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time        `db:"updated_at" json:"updated_at"`
}

// StudentDetail enriches Student with class and billing context.
type StudentDetail struct {
	Student
	ClassGroupName   *string `db:"class_group_name" json:"class_group_name,omitempty"`
	EffectiveTuition int     `db:"-" json:"effective_tuition"`
	CurrentCycle     *Cycle  `db:"-" json:"current_cycle,omitempty"`

	// First time each status was entered, derived from the history trail.
	InquiryDate         *time.Time `db:"-" json:"inquiry_date,omitempty"`
	LevelTestStatusDate *time.Time `db:"-" json:"level_test_status_date,omitempty"`
	ActiveDate          *time.Time `db:"-" json:"active_date,omitempty"`
	StoppedDate         *time.Time `db:"-" json:"stopped_date,omitempty"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	ClassGroupID     string
	EnrollmentStatus string
	Page             int
	PageSize         int
	SortBy           string
	SortOrder        string
}

// EnrollmentHistory is an immutable log entry of a status transition. The
// initial registration row carries a nil FromStatus; rows are never updated
// or deleted.
type EnrollmentHistory struct {
	ID         string            `db:"id" json:"id"`
	StudentID  string            `db:"student_id" json:"student_id"`
	FromStatus *EnrollmentStatus `db:"from_status" json:"from_status,omitempty"`
	ToStatus   EnrollmentStatus  `db:"to_status" json:"to_status"`
	ChangedAt  time.Time         `db:"changed_at" json:"changed_at"`
	Memo       *string           `db:"memo" json:"memo,omitempty"`
}
