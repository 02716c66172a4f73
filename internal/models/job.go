package models

import "time"

// Job is a durable unit of background work persisted in the jobs table.
// Reminder jobs survive restarts; the worker recovers them with a DB scan.
type Job struct {
	ID          int64      `json:"id"`
	JobType     string     `json:"job_type"`
	BookingID   int64      `json:"booking_id"`
	Payload     string     `json:"payload"`
	Status      string     `json:"status"`
	FireAt      time.Time  `json:"fire_at"`
	RetryCount  int        `json:"retry_count"`
	LastError   *string    `json:"last_error"`
	CreatedAt   time.Time  `json:"created_at"`
	ProcessedAt *time.Time `json:"processed_at"`
	NextRetryAt *time.Time `json:"next_retry_at"`
}

// ReminderPayload is stored as JSON in Job.Payload for send_reminder jobs.
type ReminderPayload struct {
	BookingID       int64     `json:"booking_id"`
	ConsultantName  string    `json:"consultant_name"`
	ConsultantEmail string    `json:"consultant_email"`
	UserEmail       string    `json:"user_email"`
	Date            string    `json:"date"`
	TimeLabel       string    `json:"time_label"`
	FireAt          time.Time `json:"fire_at"`
}
