// Package poller periodically fetches the attack log and derives the
// dashboard snapshot from it.
package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"nids-console/internal/api"
	nerrors "nids-console/internal/errors"
	"nids-console/internal/telemetry"
)

// DefaultSchedule polls once a minute.
const DefaultSchedule = "@every 60s"

var (
	// ErrStarted is returned by Start on a running or stopped poller.
	ErrStarted = errors.New("poller already started")

	// ErrStopped is returned by a poll that resolved after Stop.
	ErrStopped = errors.New("poller stopped")
)

var scheduleParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseSchedule parses a five-field cron expression or a descriptor such as
// "@every 60s".
func ParseSchedule(spec string) (cron.Schedule, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		spec = DefaultSchedule
	}
	sched, err := scheduleParser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid poll schedule %q: %w", spec, err)
	}
	return sched, nil
}

// Fetcher retrieves the raw attack log.
type Fetcher interface {
	FetchAttacks(ctx context.Context) (*api.AttacksResponse, error)
}

// SnapshotStore keeps the last snapshot across restarts.
type SnapshotStore interface {
	Load(ctx context.Context) (*telemetry.Snapshot, error)
	Store(ctx context.Context, snap telemetry.Snapshot) error
}

// Recorder observes poll outcomes. result is "success" or an error kind.
type Recorder interface {
	ObservePoll(result string, records int)
}

// Config configures a Poller.
type Config struct {
	Schedule cron.Schedule

	// Location interprets zone-less timestamps. Nil means time.Local.
	Location *time.Location

	Logger   *slog.Logger
	Recorder Recorder
	Store    SnapshotStore

	// OnSnapshot receives every committed snapshot, including a warm-start
	// snapshot from Store. It must not block.
	OnSnapshot func(telemetry.Snapshot)

	// Now overrides the clock.
	Now func() time.Time
}

// Poller owns the current attack records and replaces them wholesale on
// every successful poll.
type Poller struct {
	fetcher Fetcher
	cfg     Config
	logger  *slog.Logger

	mu       sync.Mutex
	records  []telemetry.Record
	snapshot *telemetry.Snapshot

	// polls are numbered as they start; only a newer poll may replace the
	// committed records
	issued    uint64
	committed uint64

	started  bool
	stopped  bool
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

// New creates a stopped poller.
func New(fetcher Fetcher, cfg Config) *Poller {
	if cfg.Schedule == nil {
		cfg.Schedule, _ = ParseSchedule(DefaultSchedule)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		fetcher: fetcher,
		cfg:     cfg,
		logger:  logger,
		done:    make(chan struct{}),
	}
}

// Start polls immediately and then on every schedule activation until ctx
// is done or Stop is called.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.started || p.stopped {
		p.mu.Unlock()
		return ErrStarted
	}
	p.started = true
	ctx, p.cancel = context.WithCancel(ctx)
	p.mu.Unlock()

	go p.run(ctx)
	return nil
}

// Stop cancels the loop and any fetch in flight and waits for the loop to
// exit. Results that resolve afterwards are dropped. Safe to call more than
// once.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() {
		p.mu.Lock()
		p.stopped = true
		cancel := p.cancel
		started := p.started
		p.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		if started {
			<-p.done
		}
	})
}

func (p *Poller) run(ctx context.Context) {
	defer close(p.done)

	p.warmStart(ctx)

	for {
		p.Poll(ctx)

		now := p.cfg.Now()
		wait := p.cfg.Schedule.Next(now).Sub(now)
		if wait < 0 {
			wait = 0
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (p *Poller) warmStart(ctx context.Context) {
	if p.cfg.Store == nil {
		return
	}
	snap, err := p.cfg.Store.Load(ctx)
	if err != nil {
		p.logger.Debug("no cached snapshot", "error", err)
		return
	}

	p.mu.Lock()
	if p.stopped || p.snapshot != nil {
		p.mu.Unlock()
		return
	}
	p.snapshot = snap
	p.mu.Unlock()

	p.logger.Info("restored cached snapshot", "generated_at", snap.GeneratedAt, "total", snap.Total)
	p.emit(*snap)
}

// Poll fetches and aggregates once. On failure the previous records are
// kept. Polls may overlap; a result older than the committed one is dropped
// and the committed snapshot returned instead.
func (p *Poller) Poll(ctx context.Context) (telemetry.Snapshot, error) {
	p.mu.Lock()
	p.issued++
	seq := p.issued
	p.mu.Unlock()

	resp, err := p.fetcher.FetchAttacks(ctx)
	if err != nil {
		// a fetch cut short by cancellation is not a poll outcome
		if ctx.Err() == nil {
			p.observe(err, 0)
			p.logger.Warn("attack log poll failed",
				"error_kind", string(nerrors.Kind(err)),
				"error", err,
			)
		}
		return telemetry.Snapshot{}, err
	}

	records := telemetry.NormalizeRecords(resp.Attacks, p.cfg.Location)
	snap := telemetry.Aggregate(records, p.cfg.Now())

	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		p.logger.Debug("dropping poll result after stop", "records", len(records))
		return telemetry.Snapshot{}, ErrStopped
	}
	if seq < p.committed {
		current := *p.snapshot
		p.mu.Unlock()
		p.logger.Debug("dropping stale poll result", "records", len(records))
		return current, nil
	}
	p.committed = seq
	p.records = records
	p.snapshot = &snap
	p.mu.Unlock()

	p.observe(nil, len(records))
	p.logger.Debug("attack log polled", "records", len(records), "high_severity", snap.HighSeverity)
	p.emit(snap)

	if p.cfg.Store != nil {
		if err := p.cfg.Store.Store(ctx, snap); err != nil {
			p.logger.Warn("failed to cache snapshot", "error", err)
		}
	}
	return snap, nil
}

// Records returns a copy of the committed records.
func (p *Poller) Records() []telemetry.Record {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]telemetry.Record(nil), p.records...)
}

// Snapshot returns the last committed or restored snapshot.
func (p *Poller) Snapshot() (telemetry.Snapshot, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.snapshot == nil {
		return telemetry.Snapshot{}, false
	}
	return *p.snapshot, true
}

func (p *Poller) emit(snap telemetry.Snapshot) {
	if p.cfg.OnSnapshot != nil {
		p.cfg.OnSnapshot(snap)
	}
}

func (p *Poller) observe(err error, records int) {
	if p.cfg.Recorder == nil {
		return
	}
	result := "success"
	if err != nil {
		result = string(nerrors.Kind(err))
	}
	p.cfg.Recorder.ObservePoll(result, records)
}
