package monitor

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAuditLog(t *testing.T) *AuditLog {
	t.Helper()
	return NewAuditLog(filepath.Join(t.TempDir(), "performance_monitor.log"), zerolog.Nop())
}

func TestAuditLog_AppendAndTail(t *testing.T) {
	audit := newTestAuditLog(t)

	require.NoError(t, audit.Append("ad_paused", map[string]interface{}{"adId": "a1"}))
	require.NoError(t, audit.Append("ad_paused", map[string]interface{}{"adId": "a2"}))

	entries, err := audit.Tail(10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "ad_paused", entries[0]["type"])
	assert.Equal(t, "a1", entries[0]["adId"])
	assert.NotEmpty(t, entries[0]["timestamp"])
	assert.Equal(t, "a2", entries[1]["adId"])
}

func TestAuditLog_TailLimitsToLastN(t *testing.T) {
	audit := newTestAuditLog(t)
	for i := 0; i < 5; i++ {
		require.NoError(t, audit.Append("tick", map[string]interface{}{"n": i}))
	}

	entries, err := audit.Tail(2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, float64(3), entries[0]["n"])
	assert.Equal(t, float64(4), entries[1]["n"])
}

func TestAuditLog_MissingFileIsEmpty(t *testing.T) {
	audit := newTestAuditLog(t)

	entries, err := audit.Tail(10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestAuditLog_SkipsMalformedLines(t *testing.T) {
	audit := newTestAuditLog(t)
	require.NoError(t, audit.Append("ok", nil))
	require.NoError(t, appendRawLine(audit.Path(), "not json\n"))
	require.NoError(t, audit.Append("ok2", nil))

	entries, err := audit.Tail(10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "ok", entries[0]["type"])
	assert.Equal(t, "ok2", entries[1]["type"])
}

func TestAuditLog_ErrorEvent(t *testing.T) {
	audit := newTestAuditLog(t)
	audit.Error("campaign_check_failed", errors.New("boom"), map[string]interface{}{"campaignId": "c1"})

	entries, err := audit.Tail(1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "campaign_check_failed", entries[0]["type"])
	assert.Equal(t, "boom", entries[0]["error"])
	assert.Equal(t, "c1", entries[0]["campaignId"])
}

func appendRawLine(path, line string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(line)
	return err
}
