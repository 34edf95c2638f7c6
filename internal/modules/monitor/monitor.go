package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// startupDelay is the pause before the first check after Start, so a
// freshly booted service does not sweep before its clients settle.
const startupDelay = 5 * time.Second

// sweepTimeout bounds one scheduled sweep end to end.
const sweepTimeout = 10 * time.Minute

// Status is the monitor's externally visible state.
type Status struct {
	IsRunning          bool            `json:"isRunning"`
	CheckIntervalHours int             `json:"checkIntervalHours"`
	Thresholds         SweepThresholds `json:"thresholds"`
	NextCheck          *time.Time      `json:"nextCheck,omitempty"`
}

// Monitor owns the scheduled performance check lifecycle: a cron entry
// firing every N hours plus a one-shot startup check shortly after Start.
type Monitor struct {
	mu            sync.Mutex
	running       bool
	intervalHours int
	cron          *cron.Cron
	entryID       cron.EntryID
	startupTimer  *time.Timer

	sweeper    *Sweeper
	thresholds *sweepThresholdStore
	tracker    *Tracker
	history    *History
	audit      *AuditLog
	log        zerolog.Logger
}

// New wires the monitor and its sweeper.
func New(
	meta CampaignInsightsSource,
	users UserRowSource,
	pauser Pauser,
	tracker *Tracker,
	history *History,
	audit *AuditLog,
	thresholds SweepThresholds,
	intervalHours int,
	log zerolog.Logger,
) *Monitor {
	store := &sweepThresholdStore{current: thresholds}
	monitorLog := log.With().Str("component", "performance-monitor").Logger()

	return &Monitor{
		intervalHours: intervalHours,
		sweeper: &Sweeper{
			meta:       meta,
			users:      users,
			pauser:     pauser,
			tracker:    tracker,
			history:    history,
			audit:      audit,
			thresholds: store,
			log:        monitorLog,
		},
		thresholds: store,
		tracker:    tracker,
		history:    history,
		audit:      audit,
		log:        monitorLog,
	}
}

// Tracker exposes the campaign tracker for handlers.
func (m *Monitor) Tracker() *Tracker { return m.tracker }

// History exposes the sweep history for handlers.
func (m *Monitor) History() *History { return m.history }

// Audit exposes the audit log for handlers.
func (m *Monitor) Audit() *AuditLog { return m.audit }

// Start schedules the recurring check and a one-shot startup check.
// Starting an already running monitor is a no-op.
func (m *Monitor) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		m.log.Warn().Msg("Performance monitor already running")
		return nil
	}

	m.cron = cron.New()
	spec := fmt.Sprintf("0 */%d * * *", m.intervalHours)
	entryID, err := m.cron.AddFunc(spec, m.runScheduled)
	if err != nil {
		return fmt.Errorf("failed to schedule performance check: %w", err)
	}
	m.entryID = entryID
	m.cron.Start()

	m.startupTimer = time.AfterFunc(startupDelay, m.runScheduled)
	m.running = true

	m.log.Info().
		Int("interval_hours", m.intervalHours).
		Str("schedule", spec).
		Msg("Performance monitor started")
	return nil
}

// Stop cancels the schedule. In-flight sweeps finish on their own.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	if m.startupTimer != nil {
		m.startupTimer.Stop()
		m.startupTimer = nil
	}
	m.cron.Stop()
	m.cron = nil
	m.running = false

	m.log.Info().Msg("Performance monitor stopped")
}

// TriggerCheck runs one sweep synchronously, independent of the schedule
// and of whether the monitor is running.
func (m *Monitor) TriggerCheck(ctx context.Context) (SweepRun, error) {
	return m.sweeper.Run(ctx)
}

// Status reports the monitor's current state.
func (m *Monitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	status := Status{
		IsRunning:          m.running,
		CheckIntervalHours: m.intervalHours,
		Thresholds:         m.thresholds.Current(),
	}
	if m.running && m.cron != nil {
		next := m.cron.Entry(m.entryID).Next
		if !next.IsZero() {
			status.NextCheck = &next
		}
	}
	return status
}

// UpdateThresholds merges a partial sweep threshold update and returns
// the resulting set plus the applied field names.
func (m *Monitor) UpdateThresholds(partial map[string]interface{}) (SweepThresholds, []string) {
	merged, applied := m.thresholds.Update(partial)
	m.log.Info().Strs("applied", applied).Msg("Sweep thresholds updated")
	return merged, applied
}

func (m *Monitor) runScheduled() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	if _, err := m.sweeper.Run(ctx); err != nil {
		m.log.Error().Err(err).Msg("Scheduled performance check failed")
	}
}
