package domain

import (
	"context"
	"time"

	"careerbook/internal/models"
)

type Repository interface {
	ReserveSlot(ctx context.Context, booking *models.Booking) error
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	BookedSlots(ctx context.Context, consultantID int64, date time.Time) ([]string, error)
	GetBookingsByDateRange(ctx context.Context, start, end time.Time) ([]*models.Booking, error)
	GetDailyBookings(ctx context.Context, start, end time.Time) (map[string][]*models.Booking, error)
	GetUserBookings(ctx context.Context, userEmail string) ([]*models.Booking, error)

	GetConsultants() []*models.Consultant
	GetConsultantByID(id int64) (*models.Consultant, error)
	GetConsultantByEmail(email string) (*models.Consultant, error)

	CreateOrUpdateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	ClearExpiredEntitlement(ctx context.Context, email string, now time.Time) (bool, error)
	GrantEntitlement(ctx context.Context, email, plan string, startedAt, expiresAt time.Time, receiptURL string) error
	SetReceiptPending(ctx context.Context, email, receiptURL string) error
	DenyReceipt(ctx context.Context, email string) error
	GetUsersByReceiptStatus(ctx context.Context, statuses ...string) ([]*models.User, error)

	CreateJob(ctx context.Context, job *models.Job) error
	GetDueJobs(ctx context.Context, now time.Time, limit int) ([]models.Job, error)
	ClaimJob(ctx context.Context, id int64) error
	UpdateJobStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error
	RecoverStuckJobs(ctx context.Context) (int64, error)
	GetFailedJobs(ctx context.Context) ([]models.Job, error)
}

// StateRepository holds short-lived per-caller state: rate-limit counters
// and transient markers. Backed by redis with an in-memory fallback.
type StateRepository interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// Mailer delivers booking and entitlement email. Implementations must be
// safe for concurrent use.
type Mailer interface {
	Send(ctx context.Context, to []string, subject, body string) error
}

type SheetsWriter interface {
	AppendBooking(ctx context.Context, booking *models.Booking) error
}

// JobQueue schedules durable background work.
type JobQueue interface {
	Enqueue(ctx context.Context, job *models.Job) error
}

type BookingService interface {
	CreateBooking(ctx context.Context, req *models.BookingRequest) (*models.Booking, error)
	AvailableSlots(ctx context.Context, consultantID int64, date time.Time) ([]models.SlotStatus, error)
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	GetBookingsByDateRange(ctx context.Context, start, end time.Time) ([]*models.Booking, error)
	GetUserBookings(ctx context.Context, userEmail string) ([]*models.Booking, error)
}

type EntitlementService interface {
	Activate(ctx context.Context, email, plan string) (*models.EntitlementStatus, error)
	SubmitReceipt(ctx context.Context, email, receiptURL string) error
	Approve(ctx context.Context, email, plan string) (*models.EntitlementStatus, error)
	Deny(ctx context.Context, email string) error
	Status(ctx context.Context, email string) (*models.EntitlementStatus, error)
	PendingReceipts(ctx context.Context) ([]*models.User, error)
}

type ConsultantService interface {
	ListConsultants() []*models.Consultant
	GetConsultant(id int64) (*models.Consultant, error)
}

type UserService interface {
	RegisterUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, email string) (*models.User, error)
}
