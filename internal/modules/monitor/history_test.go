package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHistory(t *testing.T) *History {
	t.Helper()
	history, err := NewHistory(newTestDB(t))
	require.NoError(t, err)
	return history
}

func TestHistory_RecordAssignsID(t *testing.T) {
	history := newTestHistory(t)

	now := time.Now().UTC()
	run, err := history.Record(context.Background(), SweepRun{
		StartedAt:        now.Add(-time.Minute),
		CompletedAt:      now,
		CampaignsChecked: 2,
		AdsChecked:       10,
		AdsPaused:        1,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
}

func TestHistory_RecentNewestFirst(t *testing.T) {
	history := newTestHistory(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		_, err := history.Record(ctx, SweepRun{
			StartedAt:   base.Add(time.Duration(i) * time.Minute),
			CompletedAt: base.Add(time.Duration(i)*time.Minute + 30*time.Second),
			AdsChecked:  i,
		})
		require.NoError(t, err)
	}

	runs, err := history.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, 2, runs[0].AdsChecked)
	assert.Equal(t, 1, runs[1].AdsChecked)
	assert.True(t, runs[0].StartedAt.After(runs[1].StartedAt))
}
