package service

import (
	"context"
	"time"

	"careerbook/internal/models"

	"github.com/stretchr/testify/mock"
)

type mockRepo struct {
	mock.Mock
}

func (m *mockRepo) ReserveSlot(ctx context.Context, b *models.Booking) error {
	return m.Called(ctx, b).Error(0)
}
func (m *mockRepo) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}
func (m *mockRepo) BookedSlots(ctx context.Context, consultantID int64, date time.Time) ([]string, error) {
	args := m.Called(ctx, consultantID, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}
func (m *mockRepo) GetBookingsByDateRange(ctx context.Context, s, e time.Time) ([]*models.Booking, error) {
	args := m.Called(ctx, s, e)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Booking), args.Error(1)
}
func (m *mockRepo) GetDailyBookings(ctx context.Context, s, e time.Time) (map[string][]*models.Booking, error) {
	args := m.Called(ctx, s, e)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string][]*models.Booking), args.Error(1)
}
func (m *mockRepo) GetUserBookings(ctx context.Context, email string) ([]*models.Booking, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Booking), args.Error(1)
}
func (m *mockRepo) GetConsultants() []*models.Consultant {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]*models.Consultant)
}
func (m *mockRepo) GetConsultantByID(id int64) (*models.Consultant, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Consultant), args.Error(1)
}
func (m *mockRepo) GetConsultantByEmail(email string) (*models.Consultant, error) {
	args := m.Called(email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Consultant), args.Error(1)
}
func (m *mockRepo) CreateOrUpdateUser(ctx context.Context, u *models.User) error {
	return m.Called(ctx, u).Error(0)
}
func (m *mockRepo) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}
func (m *mockRepo) ClearExpiredEntitlement(ctx context.Context, email string, now time.Time) (bool, error) {
	args := m.Called(ctx, email, now)
	return args.Bool(0), args.Error(1)
}
func (m *mockRepo) GrantEntitlement(ctx context.Context, email, plan string, startedAt, expiresAt time.Time, receiptURL string) error {
	return m.Called(ctx, email, plan, startedAt, expiresAt, receiptURL).Error(0)
}
func (m *mockRepo) SetReceiptPending(ctx context.Context, email, receiptURL string) error {
	return m.Called(ctx, email, receiptURL).Error(0)
}
func (m *mockRepo) DenyReceipt(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}
func (m *mockRepo) GetUsersByReceiptStatus(ctx context.Context, statuses ...string) ([]*models.User, error) {
	callArgs := make([]interface{}, 0, len(statuses)+1)
	callArgs = append(callArgs, ctx)
	for _, s := range statuses {
		callArgs = append(callArgs, s)
	}
	args := m.Called(callArgs...)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.User), args.Error(1)
}
func (m *mockRepo) CreateJob(ctx context.Context, job *models.Job) error {
	return m.Called(ctx, job).Error(0)
}
func (m *mockRepo) GetDueJobs(ctx context.Context, now time.Time, limit int) ([]models.Job, error) {
	args := m.Called(ctx, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Job), args.Error(1)
}
func (m *mockRepo) ClaimJob(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}
func (m *mockRepo) UpdateJobStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error {
	return m.Called(ctx, id, status, errMsg, nextRetryAt).Error(0)
}
func (m *mockRepo) RecoverStuckJobs(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}
func (m *mockRepo) GetFailedJobs(ctx context.Context) ([]models.Job, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Job), args.Error(1)
}

type mockJobQueue struct {
	mock.Mock
}

func (m *mockJobQueue) Enqueue(ctx context.Context, job *models.Job) error {
	return m.Called(ctx, job).Error(0)
}

type mockState struct {
	mock.Mock
}

func (m *mockState) Get(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}
func (m *mockState) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return m.Called(ctx, key, value, ttl).Error(0)
}
func (m *mockState) Delete(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}
func (m *mockState) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	args := m.Called(ctx, key, limit, window)
	return args.Bool(0), args.Error(1)
}

type mockMailer struct {
	mock.Mock
}

func (m *mockMailer) Send(ctx context.Context, to []string, subject, body string) error {
	return m.Called(ctx, to, subject, body).Error(0)
}
