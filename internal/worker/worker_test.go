package worker

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"careerbook/internal/database"
	"careerbook/internal/domain"
	"careerbook/internal/models"

	"github.com/rs/zerolog"
)

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	logger := zerolog.Nop()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "worker.db"), &logger)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

type fakeMailer struct {
	sendCalls int
	lastTo    []string
	err       error
}

func (f *fakeMailer) Send(ctx context.Context, to []string, subject, body string) error {
	f.sendCalls++
	f.lastTo = to
	return f.err
}

type fakeSheets struct {
	appendCalls int
	err         error
}

func (f *fakeSheets) AppendBooking(ctx context.Context, booking *models.Booking) error {
	f.appendCalls++
	return f.err
}

func newTestWorker(db *database.DB, mailer *fakeMailer, sheets *fakeSheets, retry RetryPolicy) *JobWorker {
	logger := zerolog.Nop()
	var sheetsWriter domain.SheetsWriter
	if sheets != nil {
		sheetsWriter = sheets
	}
	return NewJobWorker(db, mailer, sheetsWriter, nil, nil, retry, &logger)
}

func reminderJob(t *testing.T, bookingID int64, fireAt time.Time) *models.Job {
	t.Helper()
	payload, err := json.Marshal(models.ReminderPayload{
		BookingID:       bookingID,
		ConsultantName:  "Alice Advisor",
		ConsultantEmail: "alice@x.com",
		UserEmail:       "me@x.com",
		Date:            "2025-03-01",
		TimeLabel:       "10:00 AM",
		FireAt:          fireAt,
	})
	if err != nil {
		t.Fatalf("encode payload: %v", err)
	}
	return &models.Job{
		JobType:   models.JobSendReminder,
		BookingID: bookingID,
		Payload:   string(payload),
		FireAt:    fireAt,
	}
}

func loadJobStatus(t *testing.T, db *database.DB, id int64) (string, int, sql.NullTime) {
	t.Helper()
	var status string
	var retryCount int
	var nextRetry sql.NullTime
	err := db.QueryRow(`SELECT status, retry_count, next_retry_at FROM jobs WHERE id = ?`, id).
		Scan(&status, &retryCount, &nextRetry)
	if err != nil {
		t.Fatalf("load job: %v", err)
	}
	return status, retryCount, nextRetry
}

func TestProcessJobSuccess(t *testing.T) {
	db := newTestDB(t)
	mailer := &fakeMailer{}
	w := newTestWorker(db, mailer, nil, RetryPolicy{})
	ctx := context.Background()

	job := reminderJob(t, 1, time.Now().Add(-time.Minute))
	if err := w.Enqueue(ctx, job); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	queued, ok := w.tryLocalQueue()
	if !ok {
		t.Fatalf("expected job in local queue")
	}
	w.processJob(ctx, &queued)

	status, retryCount, nextRetry := loadJobStatus(t, db, job.ID)
	if status != models.JobCompleted {
		t.Fatalf("expected status=completed, got %s", status)
	}
	if retryCount != 0 {
		t.Fatalf("expected retry_count=0, got %d", retryCount)
	}
	if nextRetry.Valid {
		t.Fatalf("expected next_retry_at NULL on success")
	}
	if mailer.sendCalls != 1 {
		t.Fatalf("expected one send, got %d", mailer.sendCalls)
	}
	if len(mailer.lastTo) != 2 {
		t.Fatalf("expected both parties addressed, got %v", mailer.lastTo)
	}
}

func TestProcessJobRetry(t *testing.T) {
	db := newTestDB(t)
	mailer := &fakeMailer{err: errors.New("boom")}
	w := newTestWorker(db, mailer, nil, RetryPolicy{MaxRetries: 3, InitialDelay: time.Second})
	ctx := context.Background()

	job := reminderJob(t, 2, time.Now().Add(-time.Minute))
	if err := w.Enqueue(ctx, job); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	queued, _ := w.tryLocalQueue()
	w.processJob(ctx, &queued)

	status, retryCount, nextRetry := loadJobStatus(t, db, job.ID)
	if status != models.JobRetry {
		t.Fatalf("expected status=retry, got %s", status)
	}
	if retryCount != 1 {
		t.Fatalf("expected retry_count=1, got %d", retryCount)
	}
	if !nextRetry.Valid || nextRetry.Time.Before(time.Now()) {
		t.Fatalf("expected next_retry_at in future, got %v", nextRetry)
	}
}

func TestProcessJobFail(t *testing.T) {
	db := newTestDB(t)
	mailer := &fakeMailer{err: errors.New("fatal")}
	w := newTestWorker(db, mailer, nil, RetryPolicy{MaxRetries: 1})
	ctx := context.Background()

	job := reminderJob(t, 3, time.Now().Add(-time.Minute))
	w.Enqueue(ctx, job)
	queued, _ := w.tryLocalQueue()
	w.processJob(ctx, &queued)

	status, _, _ := loadJobStatus(t, db, job.ID)
	if status != models.JobFailed {
		t.Fatalf("expected status=failed, got %s", status)
	}
}

func TestProcessJobStaleReminderSkipped(t *testing.T) {
	db := newTestDB(t)
	mailer := &fakeMailer{}
	w := newTestWorker(db, mailer, nil, RetryPolicy{})
	ctx := context.Background()

	// Fire time far enough in the past that the appointment has started.
	job := reminderJob(t, 4, time.Now().Add(-3*time.Hour))
	if err := w.db.CreateJob(ctx, job); err != nil {
		t.Fatalf("create job: %v", err)
	}
	w.processJob(ctx, job)

	status, _, _ := loadJobStatus(t, db, job.ID)
	if status != models.JobCompleted {
		t.Fatalf("expected stale reminder completed, got %s", status)
	}
	if mailer.sendCalls != 0 {
		t.Fatalf("expected no send for stale reminder, got %d", mailer.sendCalls)
	}
}

func TestEnqueueDedup(t *testing.T) {
	db := newTestDB(t)
	w := newTestWorker(db, &fakeMailer{}, nil, RetryPolicy{})
	ctx := context.Background()

	fireAt := time.Now().Add(time.Hour)
	if err := w.Enqueue(ctx, reminderJob(t, 5, fireAt)); err != nil {
		t.Fatalf("first enqueue: %v", err)
	}
	// Second enqueue for the same booking is silently dropped.
	if err := w.Enqueue(ctx, reminderJob(t, 5, fireAt)); err != nil {
		t.Fatalf("duplicate enqueue should not error: %v", err)
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM jobs`).Scan(&count); err != nil {
		t.Fatalf("count jobs: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one persisted job, got %d", count)
	}
}

func TestEnqueueFutureJobNotQueued(t *testing.T) {
	db := newTestDB(t)
	w := newTestWorker(db, &fakeMailer{}, nil, RetryPolicy{})
	ctx := context.Background()

	if err := w.Enqueue(ctx, reminderJob(t, 6, time.Now().Add(time.Hour))); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	if _, ok := w.tryLocalQueue(); ok {
		t.Fatalf("future job must wait for the due scan, not the queue")
	}
}

func TestProcessJobSheetAppend(t *testing.T) {
	db := newTestDB(t)
	sheets := &fakeSheets{}
	w := newTestWorker(db, &fakeMailer{}, sheets, RetryPolicy{})
	ctx := context.Background()

	booking := &models.Booking{
		ConsultantID:    1,
		ConsultantName:  "Alice Advisor",
		ConsultantEmail: "alice@x.com",
		Date:            time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		TimeLabel:       "10:00 AM",
		UserEmail:       "me@x.com",
	}
	if err := db.ReserveSlot(ctx, booking); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	job := &models.Job{
		JobType:   models.JobSheetAppend,
		BookingID: booking.ID,
		Payload:   "{}",
		FireAt:    time.Now().Add(-time.Minute),
	}
	if err := w.Enqueue(ctx, job); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	queued, _ := w.tryLocalQueue()
	w.processJob(ctx, &queued)

	status, _, _ := loadJobStatus(t, db, job.ID)
	if status != models.JobCompleted {
		t.Fatalf("expected status=completed, got %s", status)
	}
	if sheets.appendCalls != 1 {
		t.Fatalf("expected one append, got %d", sheets.appendCalls)
	}
}

func TestRetryPolicyNextDelay(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 5, InitialDelay: time.Second, MaxDelay: 10 * time.Second, BackoffFactor: 2}

	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 10 * time.Second}, // clamped
		{0, time.Second},      // clamped to first attempt
	}
	for _, tc := range cases {
		if got := policy.NextDelay(tc.attempt); got != tc.want {
			t.Fatalf("attempt %d: expected %v, got %v", tc.attempt, got, tc.want)
		}
	}
}
