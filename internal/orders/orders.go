// Package orders reads order status straight from the backend's Postgres
// database. It is an alternative to the REST status read for deployments
// that expose a read-only database role.
package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/tessro/tunes/internal/core"
)

// DBOps is the subset of pgxpool.Pool the store uses.
type DBOps interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresStore reads orders over a pgx pool.
type PostgresStore struct {
	db     DBOps
	logger *zap.Logger
}

// Connect opens a pool for databaseURL and verifies it with a ping.
func Connect(ctx context.Context, databaseURL string, logger *zap.Logger) (*PostgresStore, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database url is empty")
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}
	return NewPostgresStore(pool, logger), nil
}

// NewPostgresStore wraps an existing pool.
func NewPostgresStore(db DBOps, logger *zap.Logger) *PostgresStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgresStore{db: db, logger: logger}
}

// OrderStatus returns the order's payment state, or nil when the order does
// not exist.
func (s *PostgresStore) OrderStatus(ctx context.Context, orderID string) (*core.OrderSnapshot, error) {
	var (
		status     string
		providerID *string
		updatedAt  time.Time
	)
	row := s.db.QueryRow(ctx, `SELECT status, payment_provider_id, updated_at
		FROM orders WHERE id = $1`, orderID)
	if err := row.Scan(&status, &providerID, &updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read order %s: %w", orderID, err)
	}

	snap := &core.OrderSnapshot{
		ID:        orderID,
		Status:    core.OrderStatus(status),
		UpdatedAt: updatedAt,
	}
	if providerID != nil {
		snap.ProviderID = *providerID
	}
	if !snap.Status.Valid() {
		s.logger.Warn("unknown order status", zap.String("order_id", orderID), zap.String("status", status))
	}
	return snap, nil
}

// Close releases the pool.
func (s *PostgresStore) Close() {
	s.db.Close()
}
