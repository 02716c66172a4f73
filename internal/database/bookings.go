package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"careerbook/internal/models"

	"github.com/mattn/go-sqlite3"
)

// ReserveSlot atomically claims (consultant, date, time label) for the
// booking. The check and the insert run in one transaction, and the unique
// slot index is the final arbiter: a constraint violation surfaces as
// ErrSlotTaken, never as a second successful reservation.
func (db *DB) ReserveSlot(ctx context.Context, booking *models.Booking) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	dateStr := booking.Date.Format(models.DateFormat)

	var taken int
	queryCount := `SELECT COUNT(*) FROM bookings WHERE consultant_id = ? AND date = ? AND time_label = ?`
	err = tx.QueryRowContext(ctx, queryCount, booking.ConsultantID, dateStr, booking.TimeLabel).Scan(&taken)
	if err != nil {
		return fmt.Errorf("failed to check slot in tx: %w", err)
	}
	if taken > 0 {
		return ErrSlotTaken
	}

	now := time.Now()
	queryInsert := `INSERT INTO bookings (
				consultant_id, consultant_name, consultant_email,
				date, time_label, user_email, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?)`
	result, err := tx.ExecContext(ctx, queryInsert,
		booking.ConsultantID,
		booking.ConsultantName,
		booking.ConsultantEmail,
		dateStr,
		booking.TimeLabel,
		booking.UserEmail,
		now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrSlotTaken
		}
		return fmt.Errorf("failed to insert booking in tx: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id in tx: %w", err)
	}

	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return ErrSlotTaken
		}
		return fmt.Errorf("failed to commit booking: %w", err)
	}

	booking.ID = id
	booking.CreatedAt = now
	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint
	}
	return false
}

// BookedSlots returns the time labels already taken for a consultant on a
// date, in slot order of creation.
func (db *DB) BookedSlots(ctx context.Context, consultantID int64, date time.Time) ([]string, error) {
	query := `SELECT time_label FROM bookings WHERE consultant_id = ? AND date = ? ORDER BY created_at ASC`
	rows, err := db.QueryContext(ctx, query, consultantID, date.Format(models.DateFormat))
	if err != nil {
		return nil, fmt.Errorf("failed to get booked slots: %w", err)
	}
	defer rows.Close()

	var labels []string
	for rows.Next() {
		var label string
		if err := rows.Scan(&label); err != nil {
			return nil, fmt.Errorf("failed to scan booked slot: %w", err)
		}
		labels = append(labels, label)
	}
	return labels, rows.Err()
}

func (db *DB) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	var booking models.Booking
	var dateStr string
	query := `SELECT id, consultant_id, consultant_name, consultant_email,
	                 date, time_label, user_email, created_at
              FROM bookings WHERE id = ?`
	err := db.QueryRowContext(ctx, query, id).Scan(
		&booking.ID, &booking.ConsultantID, &booking.ConsultantName, &booking.ConsultantEmail,
		&dateStr, &booking.TimeLabel, &booking.UserEmail, &booking.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}

	booking.Date, err = time.Parse(models.DateFormat, dateStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse booking date %s: %w", dateStr, err)
	}
	return &booking, nil
}

func (db *DB) GetBookingsByDateRange(ctx context.Context, startDate, endDate time.Time) ([]*models.Booking, error) {
	query := `SELECT id, consultant_id, consultant_name, consultant_email,
	                 date, time_label, user_email, created_at
              FROM bookings WHERE date >= ? AND date <= ? ORDER BY date ASC, time_label ASC`
	rows, err := db.QueryContext(ctx, query,
		startDate.Format(models.DateFormat), endDate.Format(models.DateFormat))
	if err != nil {
		return nil, fmt.Errorf("failed to get bookings by date range: %w", err)
	}
	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		b := &models.Booking{}
		var dateStr string
		err := rows.Scan(
			&b.ID, &b.ConsultantID, &b.ConsultantName, &b.ConsultantEmail,
			&dateStr, &b.TimeLabel, &b.UserEmail, &b.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		b.Date, err = time.Parse(models.DateFormat, dateStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse booking date %s: %w", dateStr, err)
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

// GetDailyBookings groups a period's bookings by date key for export.
func (db *DB) GetDailyBookings(ctx context.Context, startDate, endDate time.Time) (map[string][]*models.Booking, error) {
	bookings, err := db.GetBookingsByDateRange(ctx, startDate, endDate)
	if err != nil {
		return nil, err
	}

	daily := make(map[string][]*models.Booking)
	for _, b := range bookings {
		dateKey := b.Date.Format(models.DateFormat)
		daily[dateKey] = append(daily[dateKey], b)
	}
	return daily, nil
}

// GetUserBookings returns a user's bookings from two weeks back onwards.
func (db *DB) GetUserBookings(ctx context.Context, userEmail string) ([]*models.Booking, error) {
	twoWeeksAgo := time.Now().AddDate(0, 0, -14).Format(models.DateFormat)
	query := `SELECT id, consultant_id, consultant_name, consultant_email,
	                 date, time_label, user_email, created_at
              FROM bookings WHERE user_email = ? AND date >= ? ORDER BY date DESC`
	rows, err := db.QueryContext(ctx, query, userEmail, twoWeeksAgo)
	if err != nil {
		return nil, fmt.Errorf("failed to get user bookings: %w", err)
	}
	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		b := &models.Booking{}
		var dateStr string
		err := rows.Scan(
			&b.ID, &b.ConsultantID, &b.ConsultantName, &b.ConsultantEmail,
			&dateStr, &b.TimeLabel, &b.UserEmail, &b.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		b.Date, err = time.Parse(models.DateFormat, dateStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse booking date %s: %w", dateStr, err)
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}
