package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/readstreak/adpilot/internal/database"
)

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.New(database.Config{
		Path: "file::memory:",
		Name: "test",
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestTracker(t *testing.T) *Tracker {
	t.Helper()
	tracker, err := NewTracker(newTestDB(t))
	require.NoError(t, err)
	return tracker
}

func TestTracker_TrackAndList(t *testing.T) {
	tracker := newTestTracker(t)
	ctx := context.Background()

	err := tracker.Track(ctx, TrackedCampaign{
		ID:   "c1",
		Name: "Summer promo",
		Ads:  []TrackedAd{{ID: "a1", Name: "carousel"}, {ID: "a2", Name: "video"}},
	})
	require.NoError(t, err)

	campaigns, err := tracker.All(ctx)
	require.NoError(t, err)
	require.Len(t, campaigns, 1)

	assert.Equal(t, "c1", campaigns[0].ID)
	assert.Equal(t, "Summer promo", campaigns[0].Name)
	require.Len(t, campaigns[0].Ads, 2)
	assert.Equal(t, "a1", campaigns[0].Ads[0].ID)
	assert.Equal(t, "video", campaigns[0].Ads[1].Name)
	assert.False(t, campaigns[0].CreatedAt.IsZero())
}

func TestTracker_RetrackKeepsEnrollmentTime(t *testing.T) {
	tracker := newTestTracker(t)
	ctx := context.Background()

	enrolled := time.Now().UTC().Add(-48 * time.Hour).Truncate(time.Second)
	require.NoError(t, tracker.Track(ctx, TrackedCampaign{
		ID: "c1", Name: "v1", Ads: []TrackedAd{{ID: "a1"}}, CreatedAt: enrolled,
	}))
	require.NoError(t, tracker.Track(ctx, TrackedCampaign{
		ID: "c1", Name: "v2", Ads: []TrackedAd{{ID: "a1"}, {ID: "a2"}},
	}))

	campaigns, err := tracker.All(ctx)
	require.NoError(t, err)
	require.Len(t, campaigns, 1)

	assert.Equal(t, "v2", campaigns[0].Name, "name and ads replaced")
	assert.Len(t, campaigns[0].Ads, 2)
	assert.Equal(t, enrolled, campaigns[0].CreatedAt.UTC(), "enrollment time preserved")
}

func TestTracker_RecentFiltersByAge(t *testing.T) {
	tracker := newTestTracker(t)
	ctx := context.Background()

	require.NoError(t, tracker.Track(ctx, TrackedCampaign{
		ID: "fresh", Ads: []TrackedAd{{ID: "a1"}},
	}))
	require.NoError(t, tracker.Track(ctx, TrackedCampaign{
		ID: "stale", Ads: []TrackedAd{{ID: "a2"}},
		CreatedAt: time.Now().UTC().Add(-40 * 24 * time.Hour),
	}))

	recent, err := tracker.Recent(ctx, 30*24*time.Hour)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "fresh", recent[0].ID)

	all, err := tracker.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2, "stale campaigns age out of sweeps but stay listed")
}

func TestTracker_Untrack(t *testing.T) {
	tracker := newTestTracker(t)
	ctx := context.Background()

	require.NoError(t, tracker.Track(ctx, TrackedCampaign{ID: "c1", Ads: []TrackedAd{{ID: "a1"}}}))
	require.NoError(t, tracker.Untrack(ctx, "c1"))

	campaigns, err := tracker.All(ctx)
	require.NoError(t, err)
	assert.Empty(t, campaigns)

	// Untracking an unknown campaign is not an error
	assert.NoError(t, tracker.Untrack(ctx, "missing"))
}
