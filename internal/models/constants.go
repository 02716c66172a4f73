package models

import "time"

// Receipt review states for the premium entitlement workflow.
const (
	ReceiptNone     = "none"
	ReceiptPending  = "pending"
	ReceiptApproved = "approved"
	ReceiptDenied   = "denied"
)

// Job lifecycle states.
const (
	JobPending   = "pending"
	JobRetry     = "retry"
	JobSending   = "sending"
	JobCompleted = "completed"
	JobFailed    = "failed"
)

// Job types.
const (
	JobSendReminder = "send_reminder"
	JobSheetAppend  = "sheet_append"
)

// Premium plans. The set is closed; unknown plan ids are rejected outright.
// PlanManual is only reachable through the admin approve flow when no plan
// is named in the request.
const (
	PlanOneMonth    = "1month"
	PlanThreeMonths = "3months"
	PlanOneYear     = "1year"
	PlanManual      = "manual"
)

var planDays = map[string]int{
	PlanOneMonth:    30,
	PlanThreeMonths: 90,
	PlanOneYear:     365,
	PlanManual:      365,
}

// PlanDuration returns the entitlement duration for a plan id. The second
// result is false for ids outside the closed set.
func PlanDuration(plan string) (time.Duration, bool) {
	days, ok := planDays[plan]
	if !ok {
		return 0, false
	}
	return time.Duration(days) * 24 * time.Hour, true
}

// SelfServicePlans are the ids a user may pick during activation. "manual"
// is not among them; only the admin approve flow assigns it.
func SelfServicePlans() []string {
	return []string{PlanOneMonth, PlanThreeMonths, PlanOneYear}
}

const (
	// ReminderLead is how long before the appointment the reminder fires.
	ReminderLead = 2 * time.Hour

	// DefaultStateTTL is the lifetime of keyed state (rate-limit windows)
	// in the state store.
	DefaultStateTTL = 24 * time.Hour

	// WorkerQueueSize bounds the in-memory job queue.
	WorkerQueueSize = 128

	// RateLimitBookings caps booking attempts per user within the window.
	RateLimitBookings = 10
	RateLimitWindow   = time.Minute
)
