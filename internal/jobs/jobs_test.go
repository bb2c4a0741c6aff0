package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLifter struct {
	calls atomic.Int32
	err   error
}

func (f *fakeLifter) LiftExpiredSuspensions(ctx context.Context) (int, error) {
	f.calls.Add(1)
	if _, ok := ctx.Deadline(); !ok {
		return 0, errors.New("sweep must run with a deadline")
	}
	return 2, f.err
}

func TestSchedulerRunsSweep(t *testing.T) {
	s := NewScheduler(zerolog.Nop())
	lifter := &fakeLifter{}
	require.NoError(t, s.AddSuspensionSweep("@every 1s", lifter))

	s.Start()
	assert.Eventually(t, func() bool { return lifter.calls.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}

func TestSchedulerSpecs(t *testing.T) {
	s := NewScheduler(zerolog.Nop())
	lifter := &fakeLifter{}
	assert.NoError(t, s.AddSuspensionSweep("", lifter))
	assert.Error(t, s.AddSuspensionSweep("not a schedule", lifter))
	assert.Empty(t, s.cron.Entries())
}

func TestSweepSuspensionsSwallowsErrors(t *testing.T) {
	s := NewScheduler(zerolog.Nop())
	lifter := &fakeLifter{err: errors.New("store down")}
	s.SweepSuspensions(lifter)
	assert.Equal(t, int32(1), lifter.calls.Load())
}
