package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"careerbook/internal/config"
	"careerbook/internal/database"
	"careerbook/internal/domain"
	"careerbook/internal/metrics"
	"careerbook/internal/models"
	"careerbook/internal/service"

	"github.com/rs/zerolog"
)

// HTTPServer is the HTTP surface of the booking service: public booking and
// premium endpoints plus the key-gated admin review routes.
type HTTPServer struct {
	cfg          config.APIConfig
	bookings     domain.BookingService
	entitlements domain.EntitlementService
	consultants  domain.ConsultantService
	users        domain.UserService
	exporter     *Exporter
	server       *http.Server
	auth         *HTTPAuth
	logger       *zerolog.Logger
}

func NewHTTPServer(cfg config.APIConfig, bookings domain.BookingService, entitlements domain.EntitlementService, consultants domain.ConsultantService, users domain.UserService, exporter *Exporter, logger *zerolog.Logger) *HTTPServer {
	srv := &HTTPServer{
		cfg:          cfg,
		bookings:     bookings,
		entitlements: entitlements,
		consultants:  consultants,
		users:        users,
		exporter:     exporter,
		logger:       logger,
	}
	srv.auth = NewHTTPAuth(cfg)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", srv.handleHealth)
	mux.HandleFunc("/api/v1/bookings", srv.handleBookings)
	mux.HandleFunc("/api/v1/consultants", srv.handleConsultants)
	mux.HandleFunc("/api/v1/consultants/", srv.handleConsultantSlots)
	mux.HandleFunc("/api/v1/users", srv.handleUsers)
	mux.HandleFunc("/api/v1/premium/activate", srv.handlePremiumActivate)
	mux.HandleFunc("/api/v1/premium/receipt", srv.handlePremiumReceipt)
	mux.HandleFunc("/api/v1/premium/status", srv.handlePremiumStatus)
	mux.HandleFunc("/api/v1/admin/receipts", srv.handleAdminReceipts)
	mux.HandleFunc("/api/v1/admin/receipts/approve", srv.handleAdminApprove)
	mux.HandleFunc("/api/v1/admin/receipts/deny", srv.handleAdminDeny)
	mux.HandleFunc("/api/v1/admin/export", srv.handleAdminExport)

	handler := requestIDMiddleware(loggingMiddleware(logger, srv.auth.Wrap(mux)))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	return srv
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleBookings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.createBooking(w, r)
	case http.MethodGet:
		s.listUserBookings(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) createBooking(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("create_booking")

	var req models.BookingRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	booking, err := s.bookings.CreateBooking(r.Context(), &req)
	if err != nil {
		s.writeBookingError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"booking": booking})
}

func (s *HTTPServer) listUserBookings(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("list_user_bookings")

	email := strings.TrimSpace(r.URL.Query().Get("email"))
	if email == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}

	bookings, err := s.bookings.GetUserBookings(r.Context(), email)
	if err != nil {
		s.writeBookingError(w, err)
		return
	}
	if bookings == nil {
		bookings = []*models.Booking{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"bookings": bookings})
}

func (s *HTTPServer) handleConsultants(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	metrics.IncHTTP("list_consultants")

	writeJSON(w, http.StatusOK, map[string]any{"consultants": s.consultants.ListConsultants()})
}

// handleConsultantSlots serves /api/v1/consultants/{id}/slots?date=YYYY-MM-DD.
func (s *HTTPServer) handleConsultantSlots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	metrics.IncHTTP("consultant_slots")

	const prefix = "/api/v1/consultants/"
	rest := strings.TrimPrefix(r.URL.Path, prefix)
	idStr, tail, found := strings.Cut(rest, "/")
	if !found || tail != "slots" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid consultant id")
		return
	}

	dateStr := strings.TrimSpace(r.URL.Query().Get("date"))
	if dateStr == "" {
		writeError(w, http.StatusBadRequest, "date is required")
		return
	}
	date, err := time.Parse(models.DateFormat, dateStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
		return
	}

	slots, err := s.bookings.AvailableSlots(r.Context(), id, date)
	if err != nil {
		s.writeBookingError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"consultant_id": id,
		"date":          dateStr,
		"slots":         slots,
	})
}

func (s *HTTPServer) handleUsers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	metrics.IncHTTP("register_user")

	var req struct {
		Email  string `json:"email"`
		Name   string `json:"name"`
		Mobile string `json:"mobile"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	user := &models.User{Email: req.Email, Name: req.Name, Mobile: req.Mobile}
	if err := s.users.RegisterUser(r.Context(), user); err != nil {
		s.writeBookingError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"email": user.Email})
}

func (s *HTTPServer) handlePremiumActivate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	metrics.IncHTTP("premium_activate")

	var req struct {
		Email string `json:"email"`
		Plan  string `json:"plan"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	status, err := s.entitlements.Activate(r.Context(), req.Email, req.Plan)
	if err != nil {
		s.writeEntitlementError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, status)
}

func (s *HTTPServer) handlePremiumReceipt(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	metrics.IncHTTP("premium_receipt")

	var req struct {
		Email      string `json:"email"`
		ReceiptURL string `json:"receipt_url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := s.entitlements.SubmitReceipt(r.Context(), req.Email, req.ReceiptURL); err != nil {
		s.writeEntitlementError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"receipt_status": models.ReceiptPending})
}

func (s *HTTPServer) handlePremiumStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	metrics.IncHTTP("premium_status")

	email := strings.TrimSpace(r.URL.Query().Get("email"))
	if email == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}

	status, err := s.entitlements.Status(r.Context(), email)
	if err != nil {
		s.writeEntitlementError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, status)
}

func (s *HTTPServer) handleAdminReceipts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	metrics.IncHTTP("admin_receipts")

	users, err := s.entitlements.PendingReceipts(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list receipts")
		return
	}
	if users == nil {
		users = []*models.User{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"receipts": users})
}

func (s *HTTPServer) handleAdminApprove(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	metrics.IncHTTP("admin_approve")

	var req struct {
		Email string `json:"email"`
		Plan  string `json:"plan"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	status, err := s.entitlements.Approve(r.Context(), req.Email, req.Plan)
	if err != nil {
		s.writeEntitlementError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, status)
}

func (s *HTTPServer) handleAdminDeny(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	metrics.IncHTTP("admin_deny")

	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := s.entitlements.Deny(r.Context(), req.Email); err != nil {
		s.writeEntitlementError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"receipt_status": models.ReceiptDenied})
}

func (s *HTTPServer) handleAdminExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	metrics.IncHTTP("admin_export")

	if s.exporter == nil {
		writeError(w, http.StatusServiceUnavailable, "export is not configured")
		return
	}

	start, end, err := parseExportRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	bookings, err := s.bookings.GetBookingsByDateRange(r.Context(), start, end)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load bookings")
		return
	}

	filename := fmt.Sprintf("bookings_%s_%s.xlsx",
		start.Format(models.DateFormat), end.Format(models.DateFormat))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	if err := s.exporter.WriteBookings(w, bookings); err != nil {
		s.logger.Error().Err(err).Msg("failed to write export")
	}
}

// parseExportRange defaults to the coming two weeks when no range is given.
func parseExportRange(r *http.Request) (time.Time, time.Time, error) {
	now := time.Now()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 14)

	if raw := strings.TrimSpace(r.URL.Query().Get("start")); raw != "" {
		parsed, err := time.Parse(models.DateFormat, raw)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid start date: %s", raw)
		}
		start = parsed
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("end")); raw != "" {
		parsed, err := time.Parse(models.DateFormat, raw)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid end date: %s", raw)
		}
		end = parsed
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("end date before start date")
	}
	return start, end, nil
}

// writeBookingError maps booking failures onto HTTP statuses. Slot conflicts
// are 409 so clients can re-fetch availability and retry.
func (s *HTTPServer) writeBookingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, database.ErrSlotTaken):
		writeError(w, http.StatusConflict, "slot is already booked")
	case errors.Is(err, database.ErrConsultantNotFound):
		writeError(w, http.StatusNotFound, "consultant not found")
	case errors.Is(err, database.ErrPastDate),
		errors.Is(err, database.ErrDateTooFar),
		errors.Is(err, service.ErrInvalidDate),
		errors.Is(err, service.ErrInvalidEmail),
		errors.Is(err, service.ErrUnknownSlot):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, err.Error())
	default:
		s.logger.Error().Err(err).Msg("booking request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *HTTPServer) writeEntitlementError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, database.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "user not found")
	case errors.Is(err, service.ErrUnknownPlan),
		errors.Is(err, service.ErrReceiptRequired),
		errors.Is(err, service.ErrInvalidEmail):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error().Err(err).Msg("entitlement request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}
