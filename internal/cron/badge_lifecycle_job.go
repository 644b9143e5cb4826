package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/fixersapp/fixers-backend/pkg/logger"
)

const (
	badgeExpiryBatch = 200
	// maxBadgeBatches bounds one run; leftovers are picked up next cycle.
	maxBadgeBatches = 50
)

// BadgeLifecycleJobParams configures the scheduled badge housekeeping.
type BadgeLifecycleJobParams struct {
	Logger          *logger.Logger
	Badges          badgeExpirer
	StaleRequestTTL time.Duration
	BatchSize       int
}

type badgeExpirer interface {
	ExpireLapsedAssignments(ctx context.Context, limit int) (int64, error)
	ExpireStaleRequests(ctx context.Context, olderThan time.Duration, limit int) (int64, error)
}

// NewBadgeLifecycleJob expires lapsed badge assignments and abandoned unpaid
// badge requests.
func NewBadgeLifecycleJob(params BadgeLifecycleJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Badges == nil {
		return nil, fmt.Errorf("badges service required")
	}
	if params.StaleRequestTTL <= 0 {
		return nil, fmt.Errorf("stale request ttl must be positive")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = badgeExpiryBatch
	}
	return &badgeLifecycleJob{
		logg:     params.Logger,
		badges:   params.Badges,
		staleTTL: params.StaleRequestTTL,
		batch:    batch,
	}, nil
}

type badgeLifecycleJob struct {
	logg     *logger.Logger
	badges   badgeExpirer
	staleTTL time.Duration
	batch    int
}

func (j *badgeLifecycleJob) Name() string { return "badge-lifecycle" }

func (j *badgeLifecycleJob) Run(ctx context.Context) error {
	var errs []error

	assignments, err := j.drain(ctx, func(ctx context.Context) (int64, error) {
		return j.badges.ExpireLapsedAssignments(ctx, j.batch)
	})
	if err != nil {
		errs = append(errs, fmt.Errorf("expire lapsed assignments: %w", err))
	}

	requests, err := j.drain(ctx, func(ctx context.Context) (int64, error) {
		return j.badges.ExpireStaleRequests(ctx, j.staleTTL, j.batch)
	})
	if err != nil {
		errs = append(errs, fmt.Errorf("expire stale requests: %w", err))
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"assignments_expired": assignments,
		"requests_expired":    requests,
		"stale_request_ttl":   j.staleTTL.String(),
	})
	j.logg.Info(logCtx, "badge lifecycle sweep complete")
	return multierr.Combine(errs...)
}

// drain repeats step while it keeps returning full batches.
func (j *badgeLifecycleJob) drain(ctx context.Context, step func(context.Context) (int64, error)) (int64, error) {
	var total int64
	for i := 0; i < maxBadgeBatches; i++ {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n, err := step(ctx)
		total += n
		if err != nil {
			return total, err
		}
		if n < int64(j.batch) {
			return total, nil
		}
	}
	return total, nil
}
