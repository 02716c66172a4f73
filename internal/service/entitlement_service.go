package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"careerbook/internal/domain"
	"careerbook/internal/events"
	"careerbook/internal/metrics"
	"careerbook/internal/models"
	"careerbook/internal/notifier"

	"github.com/rs/zerolog"
)

// EntitlementService owns the premium lifecycle: self-service activation,
// receipt review and lazy expiry. The stored premium flag is never trusted;
// every status read re-derives it and clears a lapsed plan in place.
type EntitlementService struct {
	repo        domain.Repository
	mailer      domain.Mailer
	eventBus    domain.EventPublisher
	adminEmail  string
	sendTimeout time.Duration
	logger      *zerolog.Logger
}

func NewEntitlementService(repo domain.Repository, mailer domain.Mailer, eventBus domain.EventPublisher, adminEmail string, sendTimeout time.Duration, logger *zerolog.Logger) *EntitlementService {
	if sendTimeout <= 0 {
		sendTimeout = 10 * time.Second
	}
	return &EntitlementService{
		repo:        repo,
		mailer:      mailer,
		eventBus:    eventBus,
		adminEmail:  adminEmail,
		sendTimeout: sendTimeout,
		logger:      logger,
	}
}

// Activate grants a self-service plan immediately. Only the published plan
// ids are accepted here; "manual" is reserved for admin approval.
func (s *EntitlementService) Activate(ctx context.Context, email, plan string) (*models.EntitlementStatus, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}

	if !isSelfServicePlan(plan) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPlan, plan)
	}
	duration, _ := models.PlanDuration(plan)

	now := time.Now()
	expiresAt := now.Add(duration)
	if err := s.repo.GrantEntitlement(ctx, email, plan, now, expiresAt, ""); err != nil {
		return nil, err
	}

	metrics.IncEntitlement("activated")
	s.publishEntitlement(events.EventEntitlementApproved, email, plan, &expiresAt)
	s.logger.Info().Str("email", email).Str("plan", plan).Time("expires_at", expiresAt).Msg("premium activated")

	return s.Status(ctx, email)
}

// SubmitReceipt records a proof-of-payment reference and alerts the admin
// inbox. Premium is not granted until an admin approves.
func (s *EntitlementService) SubmitReceipt(ctx context.Context, email, receiptURL string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}
	if strings.TrimSpace(receiptURL) == "" {
		return ErrReceiptRequired
	}

	if err := s.repo.SetReceiptPending(ctx, email, receiptURL); err != nil {
		return err
	}

	metrics.IncEntitlement("receipt_submitted")
	s.publishEntitlement(events.EventEntitlementSubmitted, email, "", nil)

	if s.mailer != nil && s.adminEmail != "" {
		user, err := s.repo.GetUserByEmail(ctx, email)
		if err == nil {
			s.sendAsync(notifier.ReceiptSubmitted(s.adminEmail, user))
		}
	}
	return nil
}

// Approve grants premium after receipt review. An empty plan falls back to
// the manual plan's duration.
func (s *EntitlementService) Approve(ctx context.Context, email, plan string) (*models.EntitlementStatus, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}

	if plan == "" {
		plan = models.PlanManual
	}
	duration, ok := models.PlanDuration(plan)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPlan, plan)
	}

	now := time.Now()
	expiresAt := now.Add(duration)
	if err := s.repo.GrantEntitlement(ctx, email, plan, now, expiresAt, ""); err != nil {
		return nil, err
	}

	metrics.IncEntitlement("approved")
	s.publishEntitlement(events.EventEntitlementApproved, email, plan, &expiresAt)

	if s.mailer != nil {
		if user, err := s.repo.GetUserByEmail(ctx, email); err == nil {
			s.sendAsync(notifier.PremiumApproved(user))
		}
	}

	return s.Status(ctx, email)
}

// Deny rejects the submitted receipt. An already-active plan stays active;
// only the review state changes.
func (s *EntitlementService) Deny(ctx context.Context, email string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}

	if err := s.repo.DenyReceipt(ctx, email); err != nil {
		return err
	}

	metrics.IncEntitlement("denied")
	s.publishEntitlement(events.EventEntitlementDenied, email, "", nil)

	if s.mailer != nil {
		if user, err := s.repo.GetUserByEmail(ctx, email); err == nil {
			s.sendAsync(notifier.PremiumDenied(user))
		}
	}
	return nil
}

// Status reads the entitlement, clearing a lapsed plan on the way. This is
// the only expiry mechanism; there is no background sweep.
func (s *EntitlementService) Status(ctx context.Context, email string) (*models.EntitlementStatus, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	cleared, err := s.repo.ClearExpiredEntitlement(ctx, email, now)
	if err != nil {
		return nil, err
	}
	if cleared {
		metrics.IncEntitlement("expired")
		s.publishEntitlement(events.EventEntitlementExpired, email, "", nil)
		s.logger.Info().Str("email", email).Msg("premium entitlement expired")
	}

	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	return &models.EntitlementStatus{
		Email:         user.Email,
		IsPremium:     user.PremiumActive(now),
		Plan:          user.PremiumPlan,
		ExpiresAt:     user.PremiumExpiresAt,
		ReceiptStatus: user.ReceiptStatus,
	}, nil
}

// PendingReceipts lists accounts for admin review: receipts waiting for a
// decision plus recently approved ones.
func (s *EntitlementService) PendingReceipts(ctx context.Context) ([]*models.User, error) {
	return s.repo.GetUsersByReceiptStatus(ctx, models.ReceiptPending, models.ReceiptApproved)
}

func (s *EntitlementService) publishEntitlement(eventType, email, plan string, expiresAt *time.Time) {
	if s.eventBus == nil {
		return
	}
	if err := s.eventBus.PublishJSON(eventType, events.EntitlementEventPayload{
		UserEmail: email,
		Plan:      plan,
		Status:    eventType,
		ExpiresAt: expiresAt,
	}); err != nil {
		s.logger.Warn().Err(err).Str("event", eventType).Msg("failed to publish entitlement event")
	}
}

func (s *EntitlementService) sendAsync(email notifier.Email) {
	if s.mailer == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.sendTimeout)
		defer cancel()
		if err := s.mailer.Send(ctx, email.To, email.Subject, email.Body); err != nil {
			s.logger.Error().Err(err).Str("subject", email.Subject).Msg("failed to send entitlement email")
		}
	}()
}

func isSelfServicePlan(plan string) bool {
	for _, p := range models.SelfServicePlans() {
		if p == plan {
			return true
		}
	}
	return false
}
