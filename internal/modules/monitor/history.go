package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/readstreak/adpilot/internal/database"
)

// SweepRun is one completed sweep's summary row.
type SweepRun struct {
	ID               string    `json:"id"`
	StartedAt        time.Time `json:"startedAt"`
	CompletedAt      time.Time `json:"completedAt"`
	CampaignsChecked int       `json:"campaignsChecked"`
	AdsChecked       int       `json:"adsChecked"`
	AdsPaused        int       `json:"adsPaused"`
	Errors           int       `json:"errors"`
}

// History persists sweep run summaries.
type History struct {
	db *database.DB
}

// NewHistory creates the history repository and its schema.
func NewHistory(db *database.DB) (*History, error) {
	const schema = `
		CREATE TABLE IF NOT EXISTS sweep_history (
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			completed_at TEXT NOT NULL,
			campaigns_checked INTEGER NOT NULL,
			ads_checked INTEGER NOT NULL,
			ads_paused INTEGER NOT NULL,
			errors INTEGER NOT NULL
		)`
	if _, err := db.Conn().Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create sweep_history table: %w", err)
	}
	return &History{db: db}, nil
}

// Record stores one run. A missing ID gets a fresh UUID; the stored run
// is returned.
func (h *History) Record(ctx context.Context, run SweepRun) (SweepRun, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}

	const query = `
		INSERT INTO sweep_history (id, started_at, completed_at, campaigns_checked, ads_checked, ads_paused, errors)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	if _, err := h.db.Conn().ExecContext(ctx, query,
		run.ID,
		run.StartedAt.UTC().Format(time.RFC3339Nano),
		run.CompletedAt.UTC().Format(time.RFC3339Nano),
		run.CampaignsChecked, run.AdsChecked, run.AdsPaused, run.Errors,
	); err != nil {
		return run, fmt.Errorf("failed to record sweep run: %w", err)
	}
	return run, nil
}

// Recent returns the latest runs, newest first.
func (h *History) Recent(ctx context.Context, limit int) ([]SweepRun, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := h.db.Conn().QueryContext(ctx, `
		SELECT id, started_at, completed_at, campaigns_checked, ads_checked, ads_paused, errors
		FROM sweep_history
		ORDER BY started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sweep history: %w", err)
	}
	defer rows.Close()

	var result []SweepRun
	for rows.Next() {
		var run SweepRun
		var started, completed string
		if err := rows.Scan(&run.ID, &started, &completed,
			&run.CampaignsChecked, &run.AdsChecked, &run.AdsPaused, &run.Errors,
		); err != nil {
			return nil, fmt.Errorf("failed to scan sweep run: %w", err)
		}
		run.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		run.CompletedAt, _ = time.Parse(time.RFC3339Nano, completed)
		result = append(result, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sweep history iteration failed: %w", err)
	}
	return result, nil
}
