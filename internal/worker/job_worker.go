package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"careerbook/internal/database"
	"careerbook/internal/domain"
	"careerbook/internal/metrics"
	"careerbook/internal/models"
	"careerbook/internal/notifier"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// JobWorker drains the durable jobs table: reminder emails and spreadsheet
// appends. Redis carries a fast-path queue for due jobs; the DB poll is the
// source of truth and recovers anything redis lost.
type JobWorker struct {
	db            *database.DB
	mailer        domain.Mailer
	sheets        domain.SheetsWriter
	events        domain.EventPublisher
	redis         *redis.Client
	retryPolicy   RetryPolicy
	queue         chan models.Job
	redisQueueKey string
	deadLetterKey string
	pollInterval  time.Duration
	batchSize     int
	logger        *zerolog.Logger
}

func NewJobWorker(db *database.DB, mailer domain.Mailer, sheets domain.SheetsWriter, events domain.EventPublisher, redisClient *redis.Client, retry RetryPolicy, logger *zerolog.Logger) *JobWorker {
	if retry.MaxRetries == 0 {
		retry.MaxRetries = 5
	}
	if retry.InitialDelay == 0 {
		retry.InitialDelay = 2 * time.Second
	}
	if retry.MaxDelay == 0 {
		retry.MaxDelay = 1 * time.Minute
	}
	if retry.BackoffFactor == 0 {
		retry.BackoffFactor = 2
	}

	return &JobWorker{
		db:            db,
		mailer:        mailer,
		sheets:        sheets,
		events:        events,
		redis:         redisClient,
		retryPolicy:   retry,
		queue:         make(chan models.Job, models.WorkerQueueSize),
		redisQueueKey: "jobs:queue",
		deadLetterKey: "jobs:deadletter",
		pollInterval:  2 * time.Second,
		batchSize:     20,
		logger:        logger,
	}
}

// Enqueue persists the job and, when it is already due, schedules it for
// immediate dispatch. Future jobs are left to the due-scan.
func (w *JobWorker) Enqueue(ctx context.Context, job *models.Job) error {
	if job.JobType == "" {
		return errors.New("job type is required")
	}
	if job.BookingID == 0 {
		return errors.New("booking id is required")
	}

	if err := w.db.CreateJob(ctx, job); err != nil {
		if errors.Is(err, database.ErrDuplicateJob) {
			w.logger.Debug().Str("type", job.JobType).Int64("booking_id", job.BookingID).
				Msg("job already scheduled, skipping")
			return nil
		}
		return fmt.Errorf("persist job: %w", err)
	}

	if job.FireAt.After(time.Now()) {
		return nil
	}

	if w.redis != nil {
		if err := w.pushRedis(ctx, *job); err != nil {
			w.logger.Warn().Err(err).Msg("redis push failed, fallback to memory queue")
		} else {
			return nil
		}
	}

	select {
	case w.queue <- *job:
	default:
		w.logger.Warn().Int64("job_id", job.ID).Msg("in-memory queue full, job left to polling")
	}

	return nil
}

// Start runs the dispatch loop until ctx is done. Jobs stuck in 'sending'
// from a previous run are reset first.
func (w *JobWorker) Start(ctx context.Context) {
	w.logger.Info().Msg("job worker started")
	defer w.logger.Info().Msg("job worker stopped")

	recovered, err := w.db.RecoverStuckJobs(ctx)
	if err != nil {
		w.logger.Error().Err(err).Msg("failed to recover stuck jobs")
	} else if recovered > 0 {
		w.logger.Info().Int64("count", recovered).Msg("recovered stuck jobs")
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if job, ok := w.tryLocalQueue(); ok {
			w.processJob(ctx, &job)
			continue
		}

		if job, ok := w.tryRedis(ctx); ok {
			w.processJob(ctx, &job)
			continue
		}

		jobs, err := w.db.GetDueJobs(ctx, time.Now(), w.batchSize)
		if err != nil {
			w.logger.Error().Err(err).Msg("failed to fetch due jobs")
			time.Sleep(w.pollInterval)
			continue
		}
		if len(jobs) == 0 {
			time.Sleep(w.pollInterval)
			continue
		}

		for i := range jobs {
			w.processJob(ctx, &jobs[i])
		}
	}
}

func (w *JobWorker) tryLocalQueue() (models.Job, bool) {
	select {
	case job := <-w.queue:
		return job, true
	default:
		return models.Job{}, false
	}
}

func (w *JobWorker) tryRedis(ctx context.Context) (models.Job, bool) {
	if w.redis == nil {
		return models.Job{}, false
	}
	res, err := w.redis.BRPop(ctx, time.Second, w.redisQueueKey).Result()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, redis.Nil) {
			return models.Job{}, false
		}
		w.logger.Error().Err(err).Msg("redis BRPOP error")
		return models.Job{}, false
	}
	if len(res) != 2 {
		return models.Job{}, false
	}
	var job models.Job
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		w.logger.Error().Err(err).Msg("failed to decode redis job")
		return models.Job{}, false
	}
	return job, true
}

func (w *JobWorker) processJob(ctx context.Context, job *models.Job) {
	// The claim is the dedup point between the queue paths and the poll.
	if err := w.db.ClaimJob(ctx, job.ID); err != nil {
		if !errors.Is(err, database.ErrJobClaimed) {
			w.logger.Error().Err(err).Int64("job_id", job.ID).Msg("failed to claim job")
		}
		return
	}

	if err := w.handleJob(ctx, job); err != nil {
		w.retryOrFail(ctx, job, err)
		return
	}

	if err := w.db.UpdateJobStatus(ctx, job.ID, models.JobCompleted, "", nil); err != nil {
		w.logger.Error().Err(err).Int64("job_id", job.ID).Msg("failed to mark job completed")
	}
}

func (w *JobWorker) handleJob(ctx context.Context, job *models.Job) error {
	switch job.JobType {
	case models.JobSendReminder:
		return w.sendReminder(ctx, job)
	case models.JobSheetAppend:
		return w.appendToSheet(ctx, job)
	default:
		return fmt.Errorf("unknown job type: %s", job.JobType)
	}
}

func (w *JobWorker) sendReminder(ctx context.Context, job *models.Job) error {
	var payload models.ReminderPayload
	if err := json.Unmarshal([]byte(job.Payload), &payload); err != nil {
		return fmt.Errorf("decode reminder payload: %w", err)
	}

	// A reminder whose appointment has already started is stale; complete
	// it silently rather than emailing about the past.
	if time.Since(job.FireAt) >= models.ReminderLead {
		w.logger.Info().Int64("booking_id", job.BookingID).Msg("skipping stale reminder")
		metrics.IncReminder("skipped")
		return nil
	}

	email := notifier.BookingReminder(&payload)
	if err := w.mailer.Send(ctx, email.To, email.Subject, email.Body); err != nil {
		metrics.IncReminder("failed")
		return fmt.Errorf("send reminder: %w", err)
	}

	metrics.IncReminder("sent")
	if w.events != nil {
		if err := w.events.PublishJSON("reminder_sent", payload); err != nil {
			w.logger.Warn().Err(err).Msg("failed to publish reminder event")
		}
	}
	return nil
}

func (w *JobWorker) appendToSheet(ctx context.Context, job *models.Job) error {
	if w.sheets == nil {
		// Sheets export not configured; nothing to do.
		return nil
	}

	booking, err := w.db.GetBooking(ctx, job.BookingID)
	if err != nil {
		return fmt.Errorf("load booking %d: %w", job.BookingID, err)
	}
	return w.sheets.AppendBooking(ctx, booking)
}

func (w *JobWorker) retryOrFail(ctx context.Context, job *models.Job, cause error) {
	if w.retryPolicy.Exhausted(job.RetryCount) {
		if err := w.db.UpdateJobStatus(ctx, job.ID, models.JobFailed, cause.Error(), nil); err != nil {
			w.logger.Error().Err(err).Int64("job_id", job.ID).Msg("failed to mark job failed")
		}
		w.pushDeadLetter(ctx, job)
		return
	}

	nextDelay := w.retryPolicy.NextDelay(job.RetryCount + 1)
	nextTime := time.Now().Add(nextDelay)
	if err := w.db.UpdateJobStatus(ctx, job.ID, models.JobRetry, cause.Error(), &nextTime); err != nil {
		w.logger.Error().Err(err).Int64("job_id", job.ID).Msg("failed to mark job for retry")
	}
}

func (w *JobWorker) pushRedis(ctx context.Context, job models.Job) error {
	if w.redis == nil {
		return errors.New("redis client is nil")
	}
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return w.redis.LPush(ctx, w.redisQueueKey, data).Err()
}

func (w *JobWorker) pushDeadLetter(ctx context.Context, job *models.Job) {
	if w.redis == nil {
		return
	}
	data, err := json.Marshal(job)
	if err != nil {
		w.logger.Error().Err(err).Int64("job_id", job.ID).Msg("failed to encode deadletter job")
		return
	}
	if err := w.redis.LPush(ctx, w.deadLetterKey, data).Err(); err != nil {
		w.logger.Error().Err(err).Int64("job_id", job.ID).Msg("failed to push deadletter job")
	}
}
