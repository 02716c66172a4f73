package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"careerbook/internal/models"
)

// CreateOrUpdateUser upserts the account identity. Entitlement fields are
// never touched here; they only change through the entitlement mutations
// below.
func (db *DB) CreateOrUpdateUser(ctx context.Context, user *models.User) error {
	query := `
        INSERT INTO users (email, name, mobile, receipt_status, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?)
        ON CONFLICT(email) DO UPDATE SET
            name = excluded.name,
            mobile = COALESCE(NULLIF(excluded.mobile, ''), mobile),
            updated_at = excluded.updated_at
    `
	now := time.Now()
	_, err := db.ExecContext(ctx, query,
		user.Email,
		user.Name,
		user.Mobile,
		models.ReceiptNone,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create or update user: %w", err)
	}
	return nil
}

func (db *DB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `
        SELECT id, email, name, mobile, is_premium, premium_plan,
               premium_started_at, premium_expires_at, receipt_url, receipt_status,
               created_at, updated_at
        FROM users WHERE email = ?
    `

	var user models.User
	var mobile sql.NullString
	err := db.QueryRowContext(ctx, query, email).Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&mobile,
		&user.IsPremium,
		&user.PremiumPlan,
		&user.PremiumStartedAt,
		&user.PremiumExpiresAt,
		&user.ReceiptURL,
		&user.ReceiptStatus,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, email)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	user.Mobile = mobile.String

	return &user, nil
}

// ClearExpiredEntitlement is the lazy-expiry write: one atomic UPDATE that
// clears plan fields only when the stored expiry has passed. Returns whether
// a clear actually happened, so the first caller after expiry observes the
// transition and later callers see a no-op.
func (db *DB) ClearExpiredEntitlement(ctx context.Context, email string, now time.Time) (bool, error) {
	query := `UPDATE users
              SET is_premium = 0, premium_plan = '', premium_started_at = NULL,
                  premium_expires_at = NULL, updated_at = ?
              WHERE email = ? AND premium_plan != ''
                AND premium_expires_at IS NOT NULL AND premium_expires_at <= ?`
	result, err := db.ExecContext(ctx, query, now, email, now)
	if err != nil {
		return false, fmt.Errorf("failed to clear expired entitlement: %w", err)
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

// GrantEntitlement activates a plan: sets plan, start, expiry, premium flag
// and marks the receipt approved. Used by both self-service activation and
// admin approval.
func (db *DB) GrantEntitlement(ctx context.Context, email, plan string, startedAt, expiresAt time.Time, receiptURL string) error {
	query := `UPDATE users
              SET is_premium = 1, premium_plan = ?, premium_started_at = ?,
                  premium_expires_at = ?, receipt_status = ?,
                  receipt_url = CASE WHEN ? != '' THEN ? ELSE receipt_url END,
                  updated_at = ?
              WHERE email = ?`
	result, err := db.ExecContext(ctx, query,
		plan, startedAt, expiresAt, models.ReceiptApproved,
		receiptURL, receiptURL, time.Now(), email,
	)
	if err != nil {
		return fmt.Errorf("failed to grant entitlement: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrUserNotFound, email)
	}
	return nil
}

// SetReceiptPending attaches a proof-of-payment reference and moves the
// review status to pending. Premium is not granted here.
func (db *DB) SetReceiptPending(ctx context.Context, email, receiptURL string) error {
	query := `UPDATE users SET receipt_url = ?, receipt_status = ?, updated_at = ? WHERE email = ?`
	result, err := db.ExecContext(ctx, query, receiptURL, models.ReceiptPending, time.Now(), email)
	if err != nil {
		return fmt.Errorf("failed to set receipt pending: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrUserNotFound, email)
	}
	return nil
}

// DenyReceipt clears the proof reference and marks the review denied.
// Active plan fields are deliberately left alone.
func (db *DB) DenyReceipt(ctx context.Context, email string) error {
	query := `UPDATE users SET receipt_url = '', receipt_status = ?, updated_at = ? WHERE email = ?`
	result, err := db.ExecContext(ctx, query, models.ReceiptDenied, time.Now(), email)
	if err != nil {
		return fmt.Errorf("failed to deny receipt: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrUserNotFound, email)
	}
	return nil
}

// GetUsersByReceiptStatus lists accounts whose receipt status is in the
// given set; used by the admin review dashboard.
func (db *DB) GetUsersByReceiptStatus(ctx context.Context, statuses ...string) ([]*models.User, error) {
	if len(statuses) == 0 {
		return nil, nil
	}

	query := `
        SELECT id, email, name, mobile, is_premium, premium_plan,
               premium_started_at, premium_expires_at, receipt_url, receipt_status,
               created_at, updated_at
        FROM users WHERE receipt_status IN (`
	args := make([]interface{}, 0, len(statuses))
	for i, s := range statuses {
		if i > 0 {
			query += ", "
		}
		query += "?"
		args = append(args, s)
	}
	query += `) ORDER BY updated_at DESC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get users by receipt status: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		var user models.User
		var mobile sql.NullString
		err := rows.Scan(
			&user.ID,
			&user.Email,
			&user.Name,
			&mobile,
			&user.IsPremium,
			&user.PremiumPlan,
			&user.PremiumStartedAt,
			&user.PremiumExpiresAt,
			&user.ReceiptURL,
			&user.ReceiptStatus,
			&user.CreatedAt,
			&user.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		user.Mobile = mobile.String
		users = append(users, &user)
	}
	return users, rows.Err()
}
