package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/lab-scheduler/internal/scheduler"
)

type sweeperStub struct {
	dates   []scheduler.Date
	changed int
	err     error
}

func (s *sweeperStub) SweepDate(_ context.Context, date scheduler.Date) (int, error) {
	s.dates = append(s.dates, date)
	return s.changed, s.err
}

func TestNew_DisabledSchedule(t *testing.T) {
	for _, spec := range []string{"", "off", " OFF "} {
		s, err := New(&sweeperStub{}, Config{Spec: spec})
		require.NoError(t, err)
		assert.False(t, s.Enabled(), "spec %q", spec)
		s.Start()
		s.Stop(context.Background())
	}
}

func TestNew_InvalidSchedule(t *testing.T) {
	_, err := New(&sweeperStub{}, Config{Spec: "every minute please"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid sweep schedule")

	_, err = New(nil, Config{})
	require.Error(t, err)
}

func TestScheduler_StartStop(t *testing.T) {
	s, err := New(&sweeperStub{}, Config{Spec: "@every 1h"})
	require.NoError(t, err)
	require.True(t, s.Enabled())
	s.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
	assert.NoError(t, ctx.Err())
}

func TestScheduler_RunOnce_UsesLocalDate(t *testing.T) {
	manila := time.FixedZone("UTC+8", 8*60*60)
	stub := &sweeperStub{changed: 3}
	s, err := New(stub, Config{
		Spec:     Off,
		Location: manila,
		Now:      func() time.Time { return time.Date(2025, 6, 16, 20, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)

	changed, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, changed)
	require.Len(t, stub.dates, 1)
	assert.Equal(t, "2025-06-17", stub.dates[0].String())
}

func TestScheduler_RunOnce_ReturnsSweepError(t *testing.T) {
	stub := &sweeperStub{err: errors.New("database is locked")}
	s, err := New(stub, Config{})
	require.NoError(t, err)

	_, err = s.RunOnce(context.Background())
	require.Error(t, err)
}
