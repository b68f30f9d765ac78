package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/hasanarpat/memento-mori/pkg/logger"
	"github.com/hasanarpat/memento-mori/pkg/metrics"
)

type fakeLock struct {
	held     bool
	releases int
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	if f.held {
		return false, nil
	}
	f.held = true
	return true, nil
}

func (f *fakeLock) Release(context.Context) error {
	f.held = false
	f.releases++
	return nil
}

type testJob struct {
	name string
	run  func(ctx context.Context) error
	runs int
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(ctx context.Context) error {
	t.runs++
	if t.run == nil {
		return nil
	}
	return t.run(ctx)
}

func failingJob(name string, err error) *testJob {
	return &testJob{name: name, run: func(context.Context) error { return err }}
}

func mustRegistry(t *testing.T, jobs ...Job) *Registry {
	t.Helper()
	reg, err := NewRegistry(jobs...)
	require.NoError(t, err)
	return reg
}

func newTestService(t *testing.T, lock Lock, params ServiceParams, jobs ...Job) *Service {
	t.Helper()
	params.Logger = logger.Nop()
	params.Lock = lock
	params.Registry = mustRegistry(t, jobs...)
	svc, err := NewService(params)
	require.NoError(t, err)
	return svc
}

func TestNewServiceRequiresLoggerAndLock(t *testing.T) {
	_, err := NewService(ServiceParams{Lock: &fakeLock{}})
	assert.ErrorContains(t, err, "logger required")
	_, err = NewService(ServiceParams{Logger: logger.Nop()})
	assert.ErrorContains(t, err, "lock required")
}

func TestRunOnceRunsEveryJobAndCombinesFailures(t *testing.T) {
	ok := &testJob{name: "success"}
	first := failingJob("fail_a", errors.New("boom"))
	second := failingJob("fail_b", errors.New("bang"))
	lock := &fakeLock{}
	svc := newTestService(t, lock, ServiceParams{Metrics: metrics.NewCronJobMetrics(prometheus.NewRegistry())}, first, ok, second)

	err := svc.RunOnce(context.Background())
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 2)
	assert.ErrorContains(t, err, "fail_a: boom")
	assert.ErrorContains(t, err, "fail_b: bang")

	assert.Equal(t, 1, ok.runs)
	assert.Equal(t, 1, first.runs)
	assert.Equal(t, 1, second.runs)
	assert.False(t, lock.held)
	assert.Equal(t, 1, lock.releases)
}

func TestRunOnceSkipsWhenLocked(t *testing.T) {
	job := &testJob{name: "coupon_expiry"}
	svc := newTestService(t, &fakeLock{held: true}, ServiceParams{}, job)

	require.NoError(t, svc.RunOnce(context.Background()))
	assert.Zero(t, job.runs)
}

func TestRunOnceRecoversPanickingJob(t *testing.T) {
	after := &testJob{name: "after"}
	panicky := &testJob{name: "panicky", run: func(context.Context) error { panic("tombstone fell") }}
	svc := newTestService(t, &fakeLock{}, ServiceParams{}, panicky, after)

	err := svc.RunOnce(context.Background())
	assert.ErrorContains(t, err, "panicky: panic: tombstone fell")
	assert.Equal(t, 1, after.runs)
}

func TestRunOnceAppliesJobTimeout(t *testing.T) {
	slow := &testJob{name: "slow", run: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}}
	svc := newTestService(t, &fakeLock{}, ServiceParams{JobTimeout: 10 * time.Millisecond}, slow)

	err := svc.RunOnce(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRunStopsOnCancel(t *testing.T) {
	job := &testJob{name: "once"}
	svc := newTestService(t, &fakeLock{}, ServiceParams{Interval: time.Hour}, job)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, svc.Run(ctx), context.Canceled)
	assert.Equal(t, 1, job.runs, "first cycle runs before the loop waits")
}
