// Package analytics provides the client for the app analytics store
// (Postgres). It reads per-user install rows attributed to ads and
// appends pause audit entries; it never mutates existing rows.
package analytics

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	"github.com/rs/zerolog"

	"github.com/readstreak/adpilot/internal/domain"
)

// Store wraps the analytics Postgres connection.
type Store struct {
	db  *sql.DB
	log zerolog.Logger
}

// New opens a connection pool against the analytics database.
func New(dsn string, log zerolog.Logger) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open analytics database: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping analytics database: %w", err)
	}

	return &Store{
		db:  db,
		log: log.With().Str("component", "analytics-store").Logger(),
	}, nil
}

// NewWithDB wraps an existing connection. Used by tests.
func NewWithDB(db *sql.DB, log zerolog.Logger) *Store {
	return &Store{db: db, log: log.With().Str("component", "analytics-store").Logger()}
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the store is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// UserRowsByAd returns the raw per-user install rows attributed to an ad,
// filtered by install date on or after since.
func (s *Store) UserRowsByAd(ctx context.Context, adID string, since time.Time) ([]domain.UserRow, error) {
	const query = `
		SELECT ad_id, user_id, install_date,
		       COALESCE(streak_activated, FALSE),
		       COALESCE(first_purchase_made, FALSE),
		       COALESCE(total_revenue, 0),
		       COALESCE(total_sessions, 0),
		       COALESCE(total_time_spent, 0),
		       COALESCE(day_1_active, FALSE),
		       COALESCE(day_3_active, FALSE),
		       COALESCE(day_7_active, FALSE)
		FROM user_analytics
		WHERE ad_id = $1 AND install_date >= $2`

	rows, err := s.db.QueryContext(ctx, query, adID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query user rows for ad %s: %w", adID, err)
	}
	defer rows.Close()

	var result []domain.UserRow
	for rows.Next() {
		var r domain.UserRow
		if err := rows.Scan(
			&r.AdID, &r.UserID, &r.InstallDate,
			&r.StreakActivated, &r.FirstPurchaseMade,
			&r.TotalRevenue, &r.TotalSessions, &r.TotalTimeSpent,
			&r.Day1Active, &r.Day3Active, &r.Day7Active,
		); err != nil {
			return nil, fmt.Errorf("failed to scan user row for ad %s: %w", adID, err)
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration failed for ad %s: %w", adID, err)
	}

	return result, nil
}

// AppendPauseAudit inserts one pause audit row. Append-only: entries are
// never read back or mutated through this client.
func (s *Store) AppendPauseAudit(ctx context.Context, entry domain.PauseAuditEntry) error {
	metricsJSON, err := json.Marshal(entry.Metrics)
	if err != nil {
		return fmt.Errorf("failed to encode metrics snapshot for ad %s: %w", entry.AdID, err)
	}

	const query = `
		INSERT INTO ad_pause_log (ad_id, pause_reason, pause_date, metrics_at_pause, automated)
		VALUES ($1, $2, $3, $4, $5)`

	if _, err := s.db.ExecContext(ctx, query,
		entry.AdID, entry.Reason, entry.PausedAt, metricsJSON, entry.Automated,
	); err != nil {
		return fmt.Errorf("failed to append pause audit for ad %s: %w", entry.AdID, err)
	}

	s.log.Debug().Str("ad_id", entry.AdID).Msg("Pause audit entry appended")
	return nil
}
