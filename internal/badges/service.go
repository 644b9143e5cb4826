package badges

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fixersapp/fixers-backend/internal/notifications"
	"github.com/fixersapp/fixers-backend/pkg/db/models"
	"github.com/fixersapp/fixers-backend/pkg/enums"
	pkgerrors "github.com/fixersapp/fixers-backend/pkg/errors"
	"github.com/fixersapp/fixers-backend/pkg/logger"
	"github.com/fixersapp/fixers-backend/pkg/stripe"
)

const defaultTopPerformerPercent = 5

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service computes badge tiers and runs the badge purchase review flow.
type Service interface {
	ListBadges(ctx context.Context) ([]models.Badge, error)
	GetFixerBadgeTier(ctx context.Context, fixerID uuid.UUID) (*TierResult, error)
	CheckTopPerformerStatus(ctx context.Context, fixerID uuid.UUID) (*Ranking, error)
	CheckQualityPerformanceCriteria(ctx context.Context, fixerID, badgeID uuid.UUID) (*CriteriaResult, error)

	CreateBadgeRequest(ctx context.Context, input CreateRequestInput) (*CreateRequestResult, error)
	StartReview(ctx context.Context, input ReviewInput) (*models.BadgeRequest, error)
	ApproveBadgeRequest(ctx context.Context, input ReviewInput) (*ApprovalResult, error)
	RejectBadgeRequest(ctx context.Context, input ReviewInput) (*models.BadgeRequest, error)

	ExpireLapsedAssignments(ctx context.Context, limit int) (int64, error)
	ExpireStaleRequests(ctx context.Context, olderThan time.Duration, limit int) (int64, error)
}

type ServiceParams struct {
	Repo                Repository
	Tx                  txRunner
	Payments            stripe.PaymentIntents
	Notifier            notifications.Notifier
	Logger              *logger.Logger
	TopPerformerPercent float64
	Clock               func() time.Time
}

type service struct {
	repo       Repository
	tx         txRunner
	payments   stripe.PaymentIntents
	notifier   notifications.Notifier
	logg       *logger.Logger
	topPercent float64
	now        func() time.Time
}

// TierResult is the public badge standing of a fixer.
type TierResult struct {
	FixerID      uuid.UUID       `json:"fixer_id"`
	Tier         enums.BadgeTier `json:"tier"`
	ActiveBadges int             `json:"active_badges"`
	TopPerformer bool            `json:"is_top_performer"`
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("badges repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("payment intent creator required")
	}
	if params.Notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	percent := params.TopPerformerPercent
	if percent <= 0 {
		percent = defaultTopPerformerPercent
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &service{
		repo:       params.Repo,
		tx:         params.Tx,
		payments:   params.Payments,
		notifier:   params.Notifier,
		logg:       params.Logger,
		topPercent: percent,
		now:        func() time.Time { return clock().UTC() },
	}, nil
}

func (s *service) ListBadges(ctx context.Context) ([]models.Badge, error) {
	rows, err := s.repo.ListActiveBadges(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list badges")
	}
	return rows, nil
}

func (s *service) GetFixerBadgeTier(ctx context.Context, fixerID uuid.UUID) (*TierResult, error) {
	if fixerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "fixer id required")
	}
	count, err := s.repo.CountActiveAssignments(ctx, fixerID, s.now())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count active badges")
	}

	out := &TierResult{FixerID: fixerID, ActiveBadges: int(count)}
	// ranking the population is only worth it when the count already reaches GOLD
	if count >= goldMinBadges {
		ranking, err := s.CheckTopPerformerStatus(ctx, fixerID)
		if err != nil && !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return nil, err
		}
		out.TopPerformer = ranking != nil && ranking.Top
	}
	out.Tier = TierFor(out.ActiveBadges, out.TopPerformer)
	return out, nil
}

func (s *service) CheckTopPerformerStatus(ctx context.Context, fixerID uuid.UUID) (*Ranking, error) {
	if fixerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "fixer id required")
	}
	population, err := s.repo.Snapshots(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load performance snapshots")
	}
	ranking, ok := RankFixer(population, fixerID, s.topPercent, s.now())
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "fixer profile not found")
	}
	return &ranking, nil
}

func (s *service) CheckQualityPerformanceCriteria(ctx context.Context, fixerID, badgeID uuid.UUID) (*CriteriaResult, error) {
	if fixerID == uuid.Nil || badgeID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "fixer id and badge id required")
	}
	badge, err := s.repo.FindBadge(ctx, badgeID)
	if err != nil {
		return nil, mapLookupError(err, "badge not found", "load badge")
	}
	criteria, err := ParseCriteria(badge.Criteria)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "badge criteria malformed")
	}
	snapshot, err := s.repo.Snapshot(ctx, fixerID)
	if err != nil {
		return nil, mapLookupError(err, "fixer profile not found", "load performance snapshot")
	}
	result := Evaluate(criteria, *snapshot)
	return &result, nil
}

func mapLookupError(err error, notFoundMsg, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, notFoundMsg)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, op)
}
