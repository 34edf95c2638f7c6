package monitor

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// AuditLog is an append-only JSONL file recording sweep lifecycle events:
// completed checks, pauses issued by the sweep and per-campaign errors.
// One JSON object per line; malformed lines are skipped on read.
type AuditLog struct {
	mu   sync.Mutex
	path string
	log  zerolog.Logger
}

// NewAuditLog creates a JSONL audit log at path.
func NewAuditLog(path string, log zerolog.Logger) *AuditLog {
	return &AuditLog{
		path: path,
		log:  log.With().Str("component", "audit-log").Logger(),
	}
}

// Path returns the log file location, for the backup service.
func (a *AuditLog) Path() string {
	return a.path
}

// Append writes one event line. The timestamp is added here so callers
// never have to remember it.
func (a *AuditLog) Append(eventType string, fields map[string]interface{}) error {
	entry := map[string]interface{}{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"type":      eventType,
	}
	for k, v := range fields {
		entry[k] = v
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode audit entry: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	f, err := os.OpenFile(a.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

// CheckCompleted records a finished sweep with the thresholds it used.
func (a *AuditLog) CheckCompleted(thresholds SweepThresholds, run SweepRun) {
	err := a.Append("performance_check_completed", map[string]interface{}{
		"thresholds":       thresholds,
		"campaignsChecked": run.CampaignsChecked,
		"adsChecked":       run.AdsChecked,
		"adsPaused":        run.AdsPaused,
		"errors":           run.Errors,
		"durationMs":       run.CompletedAt.Sub(run.StartedAt).Milliseconds(),
	})
	if err != nil {
		a.log.Error().Err(err).Msg("Failed to record completed check")
	}
}

// Error records a sweep-level failure.
func (a *AuditLog) Error(eventType string, cause error, fields map[string]interface{}) {
	if fields == nil {
		fields = map[string]interface{}{}
	}
	fields["error"] = cause.Error()
	if err := a.Append(eventType, fields); err != nil {
		a.log.Error().Err(err).Msg("Failed to record error event")
	}
}

// Tail returns the last n entries, oldest first. A missing file is an
// empty log, not an error.
func (a *AuditLog) Tail(n int) ([]map[string]interface{}, error) {
	if n <= 0 {
		n = 50
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	f, err := os.Open(a.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []map[string]interface{}{}, nil
		}
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	defer f.Close()

	var entries []map[string]interface{}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var entry map[string]interface{}
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read audit log: %w", err)
	}

	if len(entries) > n {
		entries = entries[len(entries)-n:]
	}
	return entries, nil
}
