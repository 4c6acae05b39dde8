package models

import "time"

// PendingPaymentSummary aggregates outstanding invoices.
type PendingPaymentSummary struct {
	Count       int `json:"count"`
	TotalAmount int `json:"total_amount"`
}

// DashboardOverview is the home screen payload: cycles nearing completion
// and the outstanding tuition total.
type DashboardOverview struct {
	CycleAlerts     []CycleAlert          `json:"cycle_alerts"`
	PendingPayments PendingPaymentSummary `json:"pending_payments"`
	GeneratedAt     time.Time             `json:"generated_at"`
}
