package briefing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"assistant/internal/assistant"
	"assistant/internal/schedule"
)

type agendaFunc func(ctx context.Context, days int) (assistant.Agenda, error)

func (f agendaFunc) Agenda(ctx context.Context, days int) (assistant.Agenda, error) {
	return f(ctx, days)
}

var ref = time.Date(2026, 10, 14, 10, 0, 0, 0, time.UTC)

func newTestScheduler(t *testing.T, src AgendaSource) *Scheduler {
	t.Helper()
	s, err := New(src, "0 7 * * *", 2, time.UTC)
	require.NoError(t, err)
	s.now = func() time.Time { return ref }
	return s
}

func TestRunOnceRecordsBriefing(t *testing.T) {
	var gotDays int
	s := newTestScheduler(t, agendaFunc(func(_ context.Context, days int) (assistant.Agenda, error) {
		gotDays = days
		return assistant.Agenda{Summary: schedule.Summary{Overview: "Quiet day."}, Fallback: true}, nil
	}))

	_, ok := s.Last()
	assert.False(t, ok)

	b, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, gotDays)
	assert.Equal(t, ref, b.GeneratedAt)
	require.NotNil(t, b.Agenda)
	assert.Contains(t, b.Text(), "Quiet day.")

	last, ok := s.Last()
	require.True(t, ok)
	assert.Equal(t, b, last)
}

func TestRunOnceRecordsFailure(t *testing.T) {
	s := newTestScheduler(t, agendaFunc(func(context.Context, int) (assistant.Agenda, error) {
		return assistant.Agenda{}, errors.New("calendar unreadable")
	}))

	_, err := s.RunOnce(context.Background())
	require.Error(t, err)

	last, ok := s.Last()
	require.True(t, ok)
	assert.Nil(t, last.Agenda)
	assert.Equal(t, "calendar unreadable", last.Error)
	assert.Contains(t, last.Text(), "failed")
}

func TestNextRun(t *testing.T) {
	s := newTestScheduler(t, agendaFunc(func(context.Context, int) (assistant.Agenda, error) {
		return assistant.Agenda{}, nil
	}))
	assert.Equal(t, time.Date(2026, 10, 15, 7, 0, 0, 0, time.UTC), s.Next())
}

func TestNewRejectsBadInput(t *testing.T) {
	src := agendaFunc(func(context.Context, int) (assistant.Agenda, error) { return assistant.Agenda{}, nil })

	_, err := New(src, "every morning", 1, time.UTC)
	assert.Error(t, err)

	_, err = New(nil, "0 7 * * *", 1, time.UTC)
	assert.Error(t, err)
}

func TestStartStop(t *testing.T) {
	s := newTestScheduler(t, agendaFunc(func(context.Context, int) (assistant.Agenda, error) {
		return assistant.Agenda{}, nil
	}))
	s.Start()
	select {
	case <-s.Stop().Done():
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}
