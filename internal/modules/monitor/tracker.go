package monitor

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/readstreak/adpilot/internal/database"
)

// TrackedAd is the slim ad record kept per tracked campaign.
type TrackedAd struct {
	ID   string `json:"id" msgpack:"id"`
	Name string `json:"name" msgpack:"name"`
}

// TrackedCampaign is a campaign enrolled in scheduled performance checks.
type TrackedCampaign struct {
	ID        string      `json:"campaignId"`
	Name      string      `json:"campaignName"`
	Ads       []TrackedAd `json:"ads"`
	CreatedAt time.Time   `json:"createdAt"`
}

// Tracker persists the set of campaigns the sweep watches. The ad list is
// stored as one msgpack blob per campaign; it is only ever read and
// written whole.
type Tracker struct {
	db *database.DB
}

// NewTracker creates the tracker and its schema.
func NewTracker(db *database.DB) (*Tracker, error) {
	const schema = `
		CREATE TABLE IF NOT EXISTS tracked_campaigns (
			campaign_id TEXT PRIMARY KEY,
			campaign_name TEXT NOT NULL,
			ads BLOB NOT NULL,
			created_at TEXT NOT NULL
		)`
	if _, err := db.Conn().Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create tracked_campaigns table: %w", err)
	}
	return &Tracker{db: db}, nil
}

// Track enrolls a campaign, replacing any previous entry with the same ID.
// The enrollment time is preserved on re-track so the 30-day recency
// window stays anchored to first enrollment.
func (t *Tracker) Track(ctx context.Context, c TrackedCampaign) error {
	ads, err := msgpack.Marshal(c.Ads)
	if err != nil {
		return fmt.Errorf("failed to encode ads for campaign %s: %w", c.ID, err)
	}

	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	const query = `
		INSERT INTO tracked_campaigns (campaign_id, campaign_name, ads, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(campaign_id) DO UPDATE SET
			campaign_name = excluded.campaign_name,
			ads = excluded.ads`

	if _, err := t.db.Conn().ExecContext(ctx, query,
		c.ID, c.Name, ads, c.CreatedAt.Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("failed to track campaign %s: %w", c.ID, err)
	}
	return nil
}

// Untrack removes a campaign from scheduled checks.
func (t *Tracker) Untrack(ctx context.Context, campaignID string) error {
	if _, err := t.db.Conn().ExecContext(ctx,
		`DELETE FROM tracked_campaigns WHERE campaign_id = ?`, campaignID,
	); err != nil {
		return fmt.Errorf("failed to untrack campaign %s: %w", campaignID, err)
	}
	return nil
}

// All returns every tracked campaign, newest first.
func (t *Tracker) All(ctx context.Context) ([]TrackedCampaign, error) {
	return t.query(ctx, `
		SELECT campaign_id, campaign_name, ads, created_at
		FROM tracked_campaigns
		ORDER BY created_at DESC`)
}

// Recent returns campaigns enrolled within maxAge, newest first. The
// sweep only checks recent enrollments; stale campaigns age out without
// explicit cleanup.
func (t *Tracker) Recent(ctx context.Context, maxAge time.Duration) ([]TrackedCampaign, error) {
	cutoff := time.Now().UTC().Add(-maxAge).Format(time.RFC3339)
	return t.query(ctx, `
		SELECT campaign_id, campaign_name, ads, created_at
		FROM tracked_campaigns
		WHERE created_at >= ?
		ORDER BY created_at DESC`, cutoff)
}

func (t *Tracker) query(ctx context.Context, query string, args ...interface{}) ([]TrackedCampaign, error) {
	rows, err := t.db.Conn().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracked campaigns: %w", err)
	}
	defer rows.Close()

	var result []TrackedCampaign
	for rows.Next() {
		c, err := scanTrackedCampaign(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("tracked campaign iteration failed: %w", err)
	}
	return result, nil
}

func scanTrackedCampaign(rows *sql.Rows) (TrackedCampaign, error) {
	var c TrackedCampaign
	var ads []byte
	var createdAt string

	if err := rows.Scan(&c.ID, &c.Name, &ads, &createdAt); err != nil {
		return c, fmt.Errorf("failed to scan tracked campaign: %w", err)
	}
	if err := msgpack.Unmarshal(ads, &c.Ads); err != nil {
		return c, fmt.Errorf("failed to decode ads for campaign %s: %w", c.ID, err)
	}
	if ts, err := time.Parse(time.RFC3339, createdAt); err == nil {
		c.CreatedAt = ts
	}
	return c, nil
}
