package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"careerbook/internal/models"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

var (
	// ErrSlotTaken is the expected outcome of losing a slot race.
	ErrSlotTaken = errors.New("slot is already booked")

	// ErrConsultantNotFound is returned for ids outside the directory.
	ErrConsultantNotFound = errors.New("consultant not found")

	// ErrUserNotFound is returned for unknown user emails.
	ErrUserNotFound = errors.New("user not found")

	// ErrPastDate rejects bookings for dates already gone.
	ErrPastDate = errors.New("booking date is in the past")

	// ErrDateTooFar rejects bookings beyond the allowed horizon.
	ErrDateTooFar = errors.New("booking date is too far in the future")

	// ErrDuplicateJob means a job with the same dedup key already exists.
	ErrDuplicateJob = errors.New("job already scheduled")

	// ErrJobClaimed means another worker claimed the job first.
	ErrJobClaimed = errors.New("job claimed by another worker")
)

type DB struct {
	*sql.DB
	logger *zerolog.Logger

	mu                sync.RWMutex
	consultantsCache  map[int64]*models.Consultant
	sortedConsultants []*models.Consultant
}

func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000", path)
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// sqlite has a single writer; one connection serializes the
	// check-and-insert critical section for slot reservation.
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := createTables(sqlDB); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("database initialized")
	return &DB{
		DB:               sqlDB,
		logger:           logger,
		consultantsCache: make(map[int64]*models.Consultant),
	}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS bookings (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            consultant_id INTEGER NOT NULL,
            consultant_name TEXT NOT NULL,
            consultant_email TEXT NOT NULL,
            date TEXT NOT NULL,
            time_label TEXT NOT NULL,
            user_email TEXT NOT NULL,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,
		`CREATE TABLE IF NOT EXISTS users (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            email TEXT UNIQUE NOT NULL,
            name TEXT NOT NULL,
            mobile TEXT,
            is_premium BOOLEAN NOT NULL DEFAULT 0,
            premium_plan TEXT NOT NULL DEFAULT '',
            premium_started_at DATETIME,
            premium_expires_at DATETIME,
            receipt_url TEXT NOT NULL DEFAULT '',
            receipt_status TEXT NOT NULL DEFAULT 'none',
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,
		`CREATE TABLE IF NOT EXISTS jobs (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            job_type TEXT NOT NULL,
            booking_id INTEGER NOT NULL,
            payload TEXT NOT NULL,
            status TEXT NOT NULL DEFAULT 'pending',
            fire_at DATETIME NOT NULL,
            retry_count INTEGER NOT NULL DEFAULT 0,
            last_error TEXT,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            processed_at DATETIME,
            next_retry_at DATETIME
        )`,

		// The slot uniqueness invariant lives here: at most one booking
		// per (consultant, date, time label).
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_bookings_slot
            ON bookings(consultant_id, date, time_label)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_date ON bookings(date)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_user_email ON bookings(user_email)`,

		`CREATE INDEX IF NOT EXISTS idx_users_email ON users(email)`,
		`CREATE INDEX IF NOT EXISTS idx_users_receipt_status ON users(receipt_status)`,

		// One reminder per booking per job type.
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_jobs_dedup ON jobs(job_type, booking_id)`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status)`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_fire_at ON jobs(fire_at)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

// SetConsultants replaces the in-memory consultant directory. Consultants
// come from config and are immutable at runtime.
func (db *DB) SetConsultants(consultants []*models.Consultant) {
	cache := make(map[int64]*models.Consultant, len(consultants))
	for _, c := range consultants {
		cache[c.ID] = c
	}
	sorted := append([]*models.Consultant(nil), consultants...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].SortOrder == sorted[j].SortOrder {
			return sorted[i].ID < sorted[j].ID
		}
		return sorted[i].SortOrder < sorted[j].SortOrder
	})

	db.mu.Lock()
	db.consultantsCache = cache
	db.sortedConsultants = sorted
	db.mu.Unlock()
}

// GetConsultants returns the directory in display order.
func (db *DB) GetConsultants() []*models.Consultant {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return append([]*models.Consultant(nil), db.sortedConsultants...)
}

func (db *DB) GetConsultantByID(id int64) (*models.Consultant, error) {
	db.mu.RLock()
	consultant, ok := db.consultantsCache[id]
	db.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrConsultantNotFound, id)
	}
	return consultant, nil
}

func (db *DB) GetConsultantByEmail(email string) (*models.Consultant, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	for _, c := range db.sortedConsultants {
		if c.Email == email {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrConsultantNotFound, email)
}
