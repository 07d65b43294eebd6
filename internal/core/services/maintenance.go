package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/spaceko/resource-status-service/internal/core/domain"
	"github.com/spaceko/resource-status-service/internal/core/ports"
	"github.com/spaceko/resource-status-service/internal/logging"
)

type sessionSweeper interface {
	Sweep(ctx context.Context) (int, error)
}

type snapshotReader interface {
	GetSnapshot(ctx context.Context) (domain.AppState, error)
}

// Maintenance runs the periodic background jobs: dropping expired sessions
// and archiving the snapshot whenever its version moved.
type Maintenance struct {
	sessions  sessionSweeper
	snapshots snapshotReader
	archiver  ports.SnapshotArchiver
	logger    *slog.Logger

	mu           sync.Mutex
	lastArchived int64
}

// NewMaintenance builds the job runner. archiver may be nil to disable
// snapshot archiving.
func NewMaintenance(sessions sessionSweeper, snapshots snapshotReader, archiver ports.SnapshotArchiver, logger *slog.Logger) *Maintenance {
	return &Maintenance{
		sessions:     sessions,
		snapshots:    snapshots,
		archiver:     archiver,
		logger:       logging.OrDefault(logger),
		lastArchived: -1,
	}
}

func (m *Maintenance) SweepSessions(ctx context.Context) (int, error) {
	n, err := m.sessions.Sweep(ctx)
	logger := logging.Component(ctx, m.logger, "Maintenance", "SweepSessions")
	if err != nil {
		logger.ErrorContext(ctx, "session sweep failed", "error", err, "error_kind", domain.ErrorKind(err))
		return n, err
	}
	if n > 0 {
		logger.InfoContext(ctx, "expired sessions removed", "count", n)
	}
	return n, nil
}

// ArchiveSnapshot uploads the current snapshot unless that version was
// already archived. It returns the object key, or "" when skipped.
func (m *Maintenance) ArchiveSnapshot(ctx context.Context) (string, error) {
	if m.archiver == nil {
		return "", nil
	}
	logger := logging.Component(ctx, m.logger, "Maintenance", "ArchiveSnapshot")

	m.mu.Lock()
	defer m.mu.Unlock()

	state, err := m.snapshots.GetSnapshot(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "failed to read snapshot", "error", err)
		return "", err
	}
	if state.Version == m.lastArchived {
		return "", nil
	}
	key, err := m.archiver.Archive(ctx, state)
	if err != nil {
		logger.ErrorContext(ctx, "snapshot archive failed", "version", state.Version, "error", err)
		return "", err
	}
	m.lastArchived = state.Version
	logger.InfoContext(ctx, "snapshot archived", "version", state.Version, "key", key)
	return key, nil
}

// Run blocks until ctx is done. A non-positive interval disables that job.
func (m *Maintenance) Run(ctx context.Context, sweepEvery, archiveEvery time.Duration) {
	sweep := tickerChan(sweepEvery)
	archive := tickerChan(archiveEvery)
	defer sweep.stop()
	defer archive.stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sweep.c:
			_, _ = m.SweepSessions(ctx)
		case <-archive.c:
			_, _ = m.ArchiveSnapshot(ctx)
		}
	}
}

type optionalTicker struct {
	c    <-chan time.Time
	stop func()
}

func tickerChan(every time.Duration) optionalTicker {
	if every <= 0 {
		return optionalTicker{stop: func() {}}
	}
	t := time.NewTicker(every)
	return optionalTicker{c: t.C, stop: t.Stop}
}
