package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PaymentRecord is one created payment session.
type PaymentRecord struct {
	OrderID   string    `json:"order_id"`
	SessionID string    `json:"session_id"`
	Provider  string    `json:"provider"`
	OrderType string    `json:"order_type"`
	ItemID    string    `json:"item_id"`
	ItemName  string    `json:"item_name"`
	Amount    int64     `json:"amount"`
	Currency  string    `json:"currency"`
	Status    string    `json:"status"`
	URL       string    `json:"url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RecordSession inserts or replaces a payment record.
func (s *Store) RecordSession(ctx context.Context, rec PaymentRecord) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("storage: missing database connection")
	}
	if rec.Status == "" {
		rec.Status = "pending"
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = rec.CreatedAt
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO payment_sessions (
			order_id, session_id, provider, order_type, item_id, item_name,
			amount, currency, status, url, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(order_id) DO UPDATE SET
			session_id=excluded.session_id,
			provider=excluded.provider,
			status=excluded.status,
			url=excluded.url,
			updated_at=excluded.updated_at
	`,
		rec.OrderID, rec.SessionID, rec.Provider, rec.OrderType, rec.ItemID, rec.ItemName,
		rec.Amount, rec.Currency, rec.Status, nullString(rec.URL),
		rec.CreatedAt.Unix(), rec.UpdatedAt.Unix(),
	)
	return err
}

// UpdateStatus records a new status for an order. It reports whether the
// order was known.
func (s *Store) UpdateStatus(ctx context.Context, orderID, status string, at time.Time) (bool, error) {
	if s == nil || s.db == nil {
		return false, fmt.Errorf("storage: missing database connection")
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE payment_sessions
		SET status = ?, updated_at = ?
		WHERE order_id = ?
	`, status, at.Unix(), orderID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListSessions returns the most recent records first. A limit of 0 or less
// returns everything.
func (s *Store) ListSessions(ctx context.Context, limit int) ([]PaymentRecord, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("storage: missing database connection")
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT order_id, session_id, provider, order_type, item_id, item_name,
			amount, currency, status, url, created_at, updated_at
		FROM payment_sessions
		ORDER BY created_at DESC, order_id
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []PaymentRecord
	for rows.Next() {
		var rec PaymentRecord
		var url sql.NullString
		var createdAt, updatedAt int64
		if err := rows.Scan(
			&rec.OrderID, &rec.SessionID, &rec.Provider, &rec.OrderType, &rec.ItemID, &rec.ItemName,
			&rec.Amount, &rec.Currency, &rec.Status, &url, &createdAt, &updatedAt,
		); err != nil {
			return nil, err
		}
		rec.URL = url.String
		rec.CreatedAt = time.Unix(createdAt, 0)
		rec.UpdatedAt = time.Unix(updatedAt, 0)
		records = append(records, rec)
	}
	return records, rows.Err()
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
