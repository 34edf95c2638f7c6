package kpi

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/readstreak/adpilot/internal/domain"
)

type fakePauser struct {
	paused  []string
	failIDs map[string]error
}

func (f *fakePauser) PauseAd(_ context.Context, adID string) error {
	if err := f.failIDs[adID]; err != nil {
		return err
	}
	f.paused = append(f.paused, adID)
	return nil
}

type fakeAudit struct {
	entries []domain.PauseAuditEntry
	err     error
}

func (f *fakeAudit) AppendPauseAudit(_ context.Context, entry domain.PauseAuditEntry) error {
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, entry)
	return nil
}

func newTestExecutor(pauser *fakePauser, audit *fakeAudit) *Executor {
	e := NewExecutor(pauser, audit, true, zerolog.Nop())
	e.delay = 0
	return e
}

func candidates(ids ...string) []PauseCandidate {
	out := make([]PauseCandidate, 0, len(ids))
	for _, id := range ids {
		out = append(out, PauseCandidate{
			AdID:    id,
			AdName:  "ad " + id,
			Reasons: []string{"High cost per purchase: $30.00 > $25"},
			Metrics: map[string]interface{}{"adSpend": 30.0},
		})
	}
	return out
}

func TestPauseAll_DryRunTouchesNothing(t *testing.T) {
	pauser := &fakePauser{}
	audit := &fakeAudit{}

	result := newTestExecutor(pauser, audit).PauseAll(context.Background(), candidates("1", "2"), true)

	assert.True(t, result.DryRun)
	assert.Equal(t, 2, result.WouldPause)
	assert.Equal(t, 0, result.Successful)
	require.Len(t, result.Results, 2)
	assert.Equal(t, "would_pause", result.Results[0].Status)

	assert.Empty(t, pauser.paused, "dry run must not call the platform")
	assert.Empty(t, audit.entries, "dry run must not write audit entries")
}

func TestPauseAll_PausesAndAudits(t *testing.T) {
	pauser := &fakePauser{}
	audit := &fakeAudit{}

	result := newTestExecutor(pauser, audit).PauseAll(context.Background(), candidates("1", "2"), false)

	assert.Equal(t, 2, result.Successful)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, []string{"1", "2"}, pauser.paused)

	require.Len(t, audit.entries, 2)
	assert.Equal(t, "1", audit.entries[0].AdID)
	assert.Equal(t, "High cost per purchase: $30.00 > $25", audit.entries[0].Reason)
	assert.True(t, audit.entries[0].Automated)
	assert.False(t, audit.entries[0].PausedAt.IsZero())
}

func TestPauseAll_FailureContinuesBatch(t *testing.T) {
	pauser := &fakePauser{failIDs: map[string]error{"2": errors.New("rate limited")}}
	audit := &fakeAudit{}

	result := newTestExecutor(pauser, audit).PauseAll(context.Background(), candidates("1", "2", "3"), false)

	assert.Equal(t, 2, result.Successful)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Results, 3)
	assert.Equal(t, "paused", result.Results[0].Status)
	assert.Equal(t, "error", result.Results[1].Status)
	assert.Contains(t, result.Results[1].Error, "rate limited")
	assert.Equal(t, "paused", result.Results[2].Status)

	assert.Equal(t, []string{"1", "3"}, pauser.paused)
	assert.Len(t, audit.entries, 2)
}

func TestPauseAll_AuditFailureFailsAd(t *testing.T) {
	// A pause that cannot be recorded must not be reported as recorded
	pauser := &fakePauser{}
	audit := &fakeAudit{err: errors.New("insert failed")}

	result := newTestExecutor(pauser, audit).PauseAll(context.Background(), candidates("1"), false)

	assert.Equal(t, 0, result.Successful)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, "error", result.Results[0].Status)
}

func TestJoinReasons(t *testing.T) {
	assert.Equal(t, "", joinReasons(nil))
	assert.Equal(t, "a", joinReasons([]string{"a"}))
	assert.Equal(t, "a; b", joinReasons([]string{"a", "b"}))
}
