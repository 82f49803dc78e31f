// Package briefing produces the scheduled agenda summary served by the web
// API and logged for the user each morning.
package briefing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"assistant/internal/assistant"
	appLog "assistant/internal/log"
)

const defaultTimeout = 2 * time.Minute

// AgendaSource lists and summarizes the coming days.
type AgendaSource interface {
	Agenda(ctx context.Context, days int) (assistant.Agenda, error)
}

// Briefing is the result of one run.
type Briefing struct {
	GeneratedAt time.Time         `json:"generated_at"`
	Days        int               `json:"days"`
	Agenda      *assistant.Agenda `json:"agenda,omitempty"`
	Error       string            `json:"error,omitempty"`
}

// Text renders the briefing for a terminal or a log line.
func (b Briefing) Text() string {
	if b.Agenda == nil {
		return fmt.Sprintf("Briefing of %s failed: %s", b.GeneratedAt.Format("2006-01-02 15:04"), b.Error)
	}
	return fmt.Sprintf("Briefing for %s\n%s", b.GeneratedAt.Format("Monday, 2006-01-02"), b.Agenda.Summary.Text())
}

// Scheduler runs the briefing on a cron schedule and keeps the latest result.
type Scheduler struct {
	source   AgendaSource
	days     int
	spec     string
	schedule cron.Schedule
	cron     *cron.Cron
	timeout  time.Duration

	mu   sync.RWMutex
	last *Briefing

	// now is injectable for testing.
	now func() time.Time
}

// New creates a Scheduler for a standard 5-field cron spec evaluated in loc.
func New(source AgendaSource, spec string, days int, loc *time.Location) (*Scheduler, error) {
	if source == nil {
		return nil, fmt.Errorf("briefing: agenda source is nil")
	}
	if loc == nil {
		loc = time.Local
	}
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("briefing: parse cron %q: %w", spec, err)
	}
	if days <= 0 {
		days = 1
	}

	logger := cronLogger{}
	s := &Scheduler{
		source:   source,
		days:     days,
		spec:     spec,
		schedule: sched,
		timeout:  defaultTimeout,
		now:      func() time.Time { return time.Now().In(loc) },
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
	}
	s.cron.Schedule(sched, cron.FuncJob(s.run))
	return s, nil
}

// Start begins running the schedule in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	appLog.Info("briefing scheduled", "cron", s.spec, "days", s.days, "next", s.Next().Format(time.RFC3339))
}

// Stop halts the schedule. The returned context is done once a running
// briefing has finished.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// Next reports the next scheduled run.
func (s *Scheduler) Next() time.Time {
	return s.schedule.Next(s.now())
}

// Last returns the most recent briefing.
func (s *Scheduler) Last() (Briefing, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return Briefing{}, false
	}
	return *s.last, true
}

// RunOnce builds a briefing now and records it as the latest. A failed run is
// recorded too, so readers see why the briefing is missing.
func (s *Scheduler) RunOnce(ctx context.Context) (Briefing, error) {
	b := Briefing{GeneratedAt: s.now(), Days: s.days}

	agenda, err := s.source.Agenda(ctx, s.days)
	if err != nil {
		b.Error = err.Error()
	} else {
		b.Agenda = &agenda
	}

	s.mu.Lock()
	s.last = &b
	s.mu.Unlock()

	if err != nil {
		return b, fmt.Errorf("briefing: %w", err)
	}
	return b, nil
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	started := time.Now()
	b, err := s.RunOnce(ctx)
	if err != nil {
		appLog.Error("briefing failed", err, "elapsed", time.Since(started).String())
		return
	}
	appLog.Info("briefing ready",
		"events", len(b.Agenda.Events),
		"fallback", b.Agenda.Fallback,
		"overview", b.Agenda.Summary.Overview,
		"elapsed", time.Since(started).String(),
	)
}

// cronLogger routes cron's own messages through the application logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, kv ...interface{}) {
	appLog.Debug("cron: "+msg, kv...)
}

func (cronLogger) Error(err error, msg string, kv ...interface{}) {
	appLog.Error("cron: "+msg, err, kv...)
}
