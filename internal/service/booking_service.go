package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"careerbook/internal/database"
	"careerbook/internal/domain"
	"careerbook/internal/events"
	"careerbook/internal/metrics"
	"careerbook/internal/models"
	"careerbook/internal/notifier"

	"github.com/rs/zerolog"
)

type BookingService struct {
	repo           domain.Repository
	state          domain.StateRepository
	jobs           domain.JobQueue
	mailer         domain.Mailer
	eventBus       domain.EventPublisher
	location       *time.Location
	reminderLead   time.Duration
	sendTimeout    time.Duration
	maxBookingDays int
	rateLimit      int
	rateWindow     time.Duration
	logger         *zerolog.Logger
}

type BookingServiceOptions struct {
	Location       *time.Location
	ReminderLead   time.Duration
	SendTimeout    time.Duration
	MaxBookingDays int
	RateLimit      int
	RateWindow     time.Duration
}

func NewBookingService(repo domain.Repository, state domain.StateRepository, jobs domain.JobQueue, mailer domain.Mailer, eventBus domain.EventPublisher, opts BookingServiceOptions, logger *zerolog.Logger) *BookingService {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.ReminderLead <= 0 {
		opts.ReminderLead = models.ReminderLead
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = 10 * time.Second
	}
	if opts.MaxBookingDays <= 0 {
		opts.MaxBookingDays = 90
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = models.RateLimitBookings
	}
	if opts.RateWindow <= 0 {
		opts.RateWindow = models.RateLimitWindow
	}
	return &BookingService{
		repo:           repo,
		state:          state,
		jobs:           jobs,
		mailer:         mailer,
		eventBus:       eventBus,
		location:       opts.Location,
		reminderLead:   opts.ReminderLead,
		sendTimeout:    opts.SendTimeout,
		maxBookingDays: opts.MaxBookingDays,
		rateLimit:      opts.RateLimit,
		rateWindow:     opts.RateWindow,
		logger:         logger,
	}
}

// ValidateBookingDate rejects past dates and dates beyond the horizon.
func (s *BookingService) ValidateBookingDate(date time.Time) error {
	today := time.Now().In(s.location)
	todayMidnight := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, date.Location())
	if date.Before(todayMidnight) {
		return database.ErrPastDate
	}

	maxDate := todayMidnight.AddDate(0, 0, s.maxBookingDays)
	if date.After(maxDate) {
		return database.ErrDateTooFar
	}

	return nil
}

// CreateBooking validates, reserves the slot and fans out the side effects:
// confirmation email, reminder job, sheet append, event. Only the reserve
// itself is load-bearing; everything after it is best effort.
func (s *BookingService) CreateBooking(ctx context.Context, req *models.BookingRequest) (*models.Booking, error) {
	email, err := normalizeEmail(req.UserEmail)
	if err != nil {
		return nil, err
	}

	date, err := time.Parse(models.DateFormat, req.Date)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDate, req.Date)
	}
	if err := s.ValidateBookingDate(date); err != nil {
		return nil, err
	}

	consultant, err := s.repo.GetConsultantByID(req.ConsultantID)
	if err != nil {
		return nil, err
	}
	if !consultant.HasSlot(req.TimeLabel) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSlot, req.TimeLabel)
	}

	if s.state != nil {
		allowed, err := s.state.CheckRateLimit(ctx, "booking:"+email, s.rateLimit, s.rateWindow)
		if err != nil {
			s.logger.Warn().Err(err).Msg("rate limit check failed, allowing request")
		} else if !allowed {
			metrics.IncBooking("rate_limited")
			return nil, ErrRateLimited
		}
	}

	user := &models.User{Email: email, Name: req.UserName, Mobile: req.UserMobile}
	if user.Name == "" {
		user.Name = email
	}
	if err := s.repo.CreateOrUpdateUser(ctx, user); err != nil {
		return nil, err
	}

	booking := &models.Booking{
		ConsultantID:    consultant.ID,
		ConsultantName:  consultant.Name,
		ConsultantEmail: consultant.Email,
		Date:            date,
		TimeLabel:       req.TimeLabel,
		UserEmail:       email,
	}

	if err := s.repo.ReserveSlot(ctx, booking); err != nil {
		if errors.Is(err, database.ErrSlotTaken) {
			metrics.IncBooking("conflict")
		}
		return nil, err
	}
	metrics.IncBooking("created")

	if s.eventBus != nil {
		if err := s.eventBus.PublishJSON(events.EventBookingCreated, events.BookingEventPayload{
			BookingID:      booking.ID,
			ConsultantID:   booking.ConsultantID,
			ConsultantName: booking.ConsultantName,
			Date:           booking.Date.Format(models.DateFormat),
			TimeLabel:      booking.TimeLabel,
			UserEmail:      booking.UserEmail,
		}); err != nil {
			s.logger.Warn().Err(err).Msg("failed to publish booking event")
		}
	}

	s.sendConfirmation(booking)
	s.scheduleReminder(ctx, booking)
	s.scheduleSheetAppend(ctx, booking)

	return booking, nil
}

// AvailableSlots reports the consultant's slot labels for the date with
// taken ones marked unavailable.
func (s *BookingService) AvailableSlots(ctx context.Context, consultantID int64, date time.Time) ([]models.SlotStatus, error) {
	consultant, err := s.repo.GetConsultantByID(consultantID)
	if err != nil {
		return nil, err
	}

	booked, err := s.repo.BookedSlots(ctx, consultantID, date)
	if err != nil {
		return nil, err
	}

	taken := make(map[string]bool, len(booked))
	for _, label := range booked {
		taken[label] = true
	}

	slots := make([]models.SlotStatus, 0, len(consultant.Availability))
	for _, label := range consultant.Availability {
		slots = append(slots, models.SlotStatus{
			TimeLabel: label,
			Available: !taken[label],
		})
	}
	return slots, nil
}

func (s *BookingService) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	return s.repo.GetBooking(ctx, id)
}

func (s *BookingService) GetBookingsByDateRange(ctx context.Context, start, end time.Time) ([]*models.Booking, error) {
	return s.repo.GetBookingsByDateRange(ctx, start, end)
}

func (s *BookingService) GetUserBookings(ctx context.Context, userEmail string) ([]*models.Booking, error) {
	email, err := normalizeEmail(userEmail)
	if err != nil {
		return nil, err
	}
	return s.repo.GetUserBookings(ctx, email)
}

// sendConfirmation emails both parties without holding up the response.
func (s *BookingService) sendConfirmation(booking *models.Booking) {
	if s.mailer == nil {
		return
	}
	email := notifier.BookingConfirmation(booking)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.sendTimeout)
		defer cancel()
		if err := s.mailer.Send(ctx, email.To, email.Subject, email.Body); err != nil {
			s.logger.Error().Err(err).Int64("booking_id", booking.ID).Msg("failed to send confirmation email")
		}
	}()
}

// scheduleReminder enqueues the durable reminder job. Appointments closer
// than the lead get no reminder at all.
func (s *BookingService) scheduleReminder(ctx context.Context, booking *models.Booking) {
	if s.jobs == nil {
		return
	}

	appointment, err := models.AppointmentTime(booking.Date, booking.TimeLabel, s.location)
	if err != nil {
		s.logger.Error().Err(err).Int64("booking_id", booking.ID).Msg("failed to compute appointment time")
		return
	}

	fireAt := appointment.Add(-s.reminderLead)
	if !fireAt.After(time.Now()) {
		s.logger.Info().Int64("booking_id", booking.ID).Msg("appointment too soon, skipping reminder")
		return
	}

	payload, err := json.Marshal(models.ReminderPayload{
		BookingID:       booking.ID,
		ConsultantName:  booking.ConsultantName,
		ConsultantEmail: booking.ConsultantEmail,
		UserEmail:       booking.UserEmail,
		Date:            booking.Date.Format(models.DateFormat),
		TimeLabel:       booking.TimeLabel,
		FireAt:          fireAt,
	})
	if err != nil {
		s.logger.Error().Err(err).Int64("booking_id", booking.ID).Msg("failed to encode reminder payload")
		return
	}

	job := &models.Job{
		JobType:   models.JobSendReminder,
		BookingID: booking.ID,
		Payload:   string(payload),
		FireAt:    fireAt,
	}
	if err := s.jobs.Enqueue(ctx, job); err != nil {
		s.logger.Error().Err(err).Int64("booking_id", booking.ID).Msg("failed to schedule reminder")
		return
	}

	metrics.IncReminder("scheduled")
	if s.eventBus != nil {
		_ = s.eventBus.PublishJSON(events.EventReminderScheduled, events.BookingEventPayload{
			BookingID: booking.ID,
			UserEmail: booking.UserEmail,
			Date:      booking.Date.Format(models.DateFormat),
			TimeLabel: booking.TimeLabel,
		})
	}
}

func (s *BookingService) scheduleSheetAppend(ctx context.Context, booking *models.Booking) {
	if s.jobs == nil {
		return
	}
	job := &models.Job{
		JobType:   models.JobSheetAppend,
		BookingID: booking.ID,
		Payload:   "{}",
		FireAt:    time.Now(),
	}
	if err := s.jobs.Enqueue(ctx, job); err != nil {
		s.logger.Error().Err(err).Int64("booking_id", booking.ID).Msg("failed to schedule sheet append")
	}
}

func normalizeEmail(raw string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidEmail, raw)
	}
	return strings.ToLower(addr.Address), nil
}
