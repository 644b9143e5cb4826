package cron

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/fixersapp/fixers-backend/pkg/logger"
)

type fakeBadgeExpirer struct {
	assignmentBatches []int64
	requestBatches    []int64
	assignmentErr     error
	requestErr        error

	assignmentCalls int
	requestCalls    int
	lastTTL         time.Duration
	lastLimit       int
}

func (f *fakeBadgeExpirer) ExpireLapsedAssignments(_ context.Context, limit int) (int64, error) {
	f.lastLimit = limit
	f.assignmentCalls++
	if f.assignmentErr != nil {
		return 0, f.assignmentErr
	}
	return next(&f.assignmentBatches), nil
}

func (f *fakeBadgeExpirer) ExpireStaleRequests(_ context.Context, olderThan time.Duration, limit int) (int64, error) {
	f.lastTTL = olderThan
	f.requestCalls++
	if f.requestErr != nil {
		return 0, f.requestErr
	}
	return next(&f.requestBatches), nil
}

func next(batches *[]int64) int64 {
	if len(*batches) == 0 {
		return 0
	}
	n := (*batches)[0]
	*batches = (*batches)[1:]
	return n
}

func newBadgeJob(t *testing.T, badges badgeExpirer) Job {
	t.Helper()
	job, err := NewBadgeLifecycleJob(BadgeLifecycleJobParams{
		Logger:          logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Badges:          badges,
		StaleRequestTTL: 72 * time.Hour,
		BatchSize:       2,
	})
	if err != nil {
		t.Fatalf("NewBadgeLifecycleJob: %v", err)
	}
	return job
}

func TestBadgeLifecycleJobDrainsFullBatches(t *testing.T) {
	badges := &fakeBadgeExpirer{
		assignmentBatches: []int64{2, 2, 1},
		requestBatches:    []int64{0},
	}
	job := newBadgeJob(t, badges)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if badges.assignmentCalls != 3 {
		t.Fatalf("expected 3 assignment batches, got %d", badges.assignmentCalls)
	}
	if badges.requestCalls != 1 {
		t.Fatalf("expected 1 request batch, got %d", badges.requestCalls)
	}
	if badges.lastTTL != 72*time.Hour || badges.lastLimit != 2 {
		t.Fatalf("unexpected ttl=%s limit=%d", badges.lastTTL, badges.lastLimit)
	}
}

func TestBadgeLifecycleJobRunsBothSweepsOnFailure(t *testing.T) {
	badges := &fakeBadgeExpirer{
		assignmentErr: errors.New("db down"),
		requestErr:    errors.New("still down"),
	}
	job := newBadgeJob(t, badges)

	err := job.Run(context.Background())
	if err == nil {
		t.Fatal("expected combined error")
	}
	if badges.requestCalls != 1 {
		t.Fatalf("stale request sweep should run after an assignment failure")
	}
	for _, want := range []string{"expire lapsed assignments", "expire stale requests"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q in %v", want, err)
		}
	}
}

func TestNewBadgeLifecycleJobValidates(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	if _, err := NewBadgeLifecycleJob(BadgeLifecycleJobParams{Logger: logg, StaleRequestTTL: time.Hour}); err == nil {
		t.Fatal("expected missing service error")
	}
	if _, err := NewBadgeLifecycleJob(BadgeLifecycleJobParams{Logger: logg, Badges: &fakeBadgeExpirer{}}); err == nil {
		t.Fatal("expected ttl error")
	}
}
