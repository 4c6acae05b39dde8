package models

import "time"

// PaymentStatus represents the billing state of a cycle invoice.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
)

// PaymentMethod is how tuition was settled.
type PaymentMethod string

const (
	PaymentTransfer PaymentMethod = "transfer"
	PaymentCash     PaymentMethod = "cash"
)

// Valid returns true when the method is a supported value.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentTransfer, PaymentCash:
		return true
	default:
		return false
	}
}

// Payment is the tuition invoice for one completed cycle. At most one
// payment exists per (student, cycle) pair.
type Payment struct {
	ID            string         `db:"id" json:"id"`
	StudentID     string         `db:"student_id" json:"student_id"`
	CycleID       string         `db:"cycle_id" json:"cycle_id"`
	Amount        int            `db:"amount" json:"amount"`
	PaymentMethod *PaymentMethod `db:"payment_method" json:"payment_method,omitempty"`
	Status        PaymentStatus  `db:"status" json:"status"`
	MessageSent   bool           `db:"message_sent" json:"message_sent"`
	MessageSentAt *time.Time     `db:"message_sent_at" json:"message_sent_at,omitempty"`
	PaidAt        *time.Time     `db:"paid_at" json:"paid_at,omitempty"`
	Memo          *string        `db:"memo" json:"memo,omitempty"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
}

// PaymentDetail enriches Payment with student and cycle context.
type PaymentDetail struct {
	Payment
	StudentName    string  `db:"student_name" json:"student_name"`
	ClassGroupName *string `db:"class_group_name" json:"class_group_name,omitempty"`
	CycleNumber    int     `db:"cycle_number" json:"cycle_number"`
}

// PaymentFilter scopes payment listing.
type PaymentFilter struct {
	StudentID string
	Status    PaymentStatus
	Page      int
	PageSize  int
}
