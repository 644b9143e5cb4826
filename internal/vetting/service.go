package vetting

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fixersapp/fixers-backend/internal/notifications"
	"github.com/fixersapp/fixers-backend/pkg/db"
	"github.com/fixersapp/fixers-backend/pkg/db/models"
	"github.com/fixersapp/fixers-backend/pkg/enums"
	pkgerrors "github.com/fixersapp/fixers-backend/pkg/errors"
	"github.com/fixersapp/fixers-backend/pkg/logger"
	"github.com/fixersapp/fixers-backend/pkg/pagination"
)

const maxNotesLength = 2000

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service drives the PENDING -> APPROVED | REJECTED workflow that gates
// whether an agent's fixer may take commission-bearing work.
type Service interface {
	AssignFixer(ctx context.Context, input AssignFixerInput) (*models.AgentFixer, error)
	SubmitFixerForVetting(ctx context.Context, input SubmitInput) (*models.AgentFixer, error)
	ApproveVettedFixer(ctx context.Context, input DecisionInput) (*models.AgentFixer, error)
	RejectVettedFixer(ctx context.Context, input DecisionInput) (*models.AgentFixer, error)
	RequiresVetting(ctx context.Context, agentID, fixerID uuid.UUID) bool
	ListPendingVetting(ctx context.Context, params pagination.Params) (*ListResult, error)
}

type ServiceParams struct {
	Repo     Repository
	Tx       txRunner
	Notifier notifications.Notifier
	Logger   *logger.Logger
	Clock    func() time.Time
}

type service struct {
	repo     Repository
	tx       txRunner
	notifier notifications.Notifier
	logg     *logger.Logger
	now      func() time.Time
}

type AssignFixerInput struct {
	AgentUserID uuid.UUID
	FixerID     uuid.UUID
}

type SubmitInput struct {
	AgentUserID uuid.UUID
	FixerID     uuid.UUID
	Notes       string
}

// DecisionInput carries an admin decision. Reason is required for rejections
// and stored as notes for approvals.
type DecisionInput struct {
	AgentFixerID uuid.UUID
	AdminUserID  uuid.UUID
	Reason       string
}

type ListResult struct {
	Items  []models.AgentFixer `json:"items"`
	Cursor string              `json:"cursor"`
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("vetting repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &service{
		repo:     params.Repo,
		tx:       params.Tx,
		notifier: params.Notifier,
		logg:     params.Logger,
		now:      func() time.Time { return clock().UTC() },
	}, nil
}

// AssignFixer puts a fixer on the agent's roster as PENDING and bumps the
// managed-fixer count that drives the bonus tier.
func (s *service) AssignFixer(ctx context.Context, input AssignFixerInput) (*models.AgentFixer, error) {
	if input.AgentUserID == uuid.Nil || input.FixerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "agent user id and fixer id required")
	}

	var rel *models.AgentFixer
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		agent, err := repo.FindAgentByUserID(ctx, input.AgentUserID)
		if err != nil {
			return mapLookupError(err, "agent not found", "load agent")
		}
		if _, err := repo.LockAgent(ctx, agent.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock agent")
		}

		if _, err := repo.FindByPair(ctx, agent.ID, input.FixerID); err == nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "fixer already assigned to agent")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing relationship")
		}

		active, err := repo.CountActiveFixers(ctx, agent.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count active fixers")
		}
		if active >= int64(agent.MaxFixers) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "agent fixer limit reached").
				WithDetails(map[string]any{"max_fixers": agent.MaxFixers})
		}

		rel = &models.AgentFixer{
			AgentID:   agent.ID,
			FixerID:   input.FixerID,
			Status:    enums.AgentFixerStatusActive,
			VetStatus: enums.VetStatusPending,
		}
		if err := repo.Create(ctx, rel); err != nil {
			if db.IsUniqueViolation(err, "ux_agent_fixers_pair") {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "fixer already assigned to agent")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create relationship")
		}
		if err := repo.IncrementFixersManaged(ctx, agent.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment managed fixers")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rel, nil
}

func (s *service) SubmitFixerForVetting(ctx context.Context, input SubmitInput) (*models.AgentFixer, error) {
	if input.AgentUserID == uuid.Nil || input.FixerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "agent user id and fixer id required")
	}
	notes := strings.TrimSpace(input.Notes)
	if len(notes) > maxNotesLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "notes too long")
	}

	agent, err := s.repo.FindAgentByUserID(ctx, input.AgentUserID)
	if err != nil {
		return nil, mapLookupError(err, "agent not found", "load agent")
	}
	rel, err := s.repo.FindByPair(ctx, agent.ID, input.FixerID)
	if err != nil {
		return nil, mapLookupError(err, "agent fixer relationship not found", "load relationship")
	}
	if rel.VetStatus != enums.VetStatusPending {
		return nil, invalidState(rel.VetStatus)
	}

	now := s.now()
	fields := map[string]any{"vet_submitted_at": now}
	if notes != "" {
		fields["vet_notes"] = notes
	}
	affected, err := s.repo.UpdatePending(ctx, rel.ID, fields)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "submit for vetting")
	}
	if affected == 0 {
		return nil, invalidState("")
	}

	rel.VetSubmittedAt = &now
	if notes != "" {
		rel.VetNotes = &notes
	}

	s.notifier.Notify(ctx, notifications.Message{
		Type:      enums.NotificationTypeVettingSubmitted,
		Title:     "Fixer submitted for vetting",
		Body:      fmt.Sprintf("Agent %s submitted fixer %s for vetting.", agent.ID, input.FixerID),
		Link:      "/admin/vetting",
		SendEmail: true,
	})
	return rel, nil
}

func (s *service) ApproveVettedFixer(ctx context.Context, input DecisionInput) (*models.AgentFixer, error) {
	if input.AgentFixerID == uuid.Nil || input.AdminUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "relationship id and admin user id required")
	}
	now := s.now()
	fields := map[string]any{
		"vet_status": enums.VetStatusApproved,
		"vetted_at":  now,
		"vetted_by":  input.AdminUserID,
	}
	if notes := strings.TrimSpace(input.Reason); notes != "" {
		fields["vet_notes"] = notes
	}

	rel, err := s.decide(ctx, input.AgentFixerID, fields)
	if err != nil {
		return nil, err
	}
	rel.VetStatus = enums.VetStatusApproved
	rel.VettedAt = &now
	rel.VettedBy = &input.AdminUserID

	s.notifyAgent(ctx, rel, notifications.Message{
		Type:  enums.NotificationTypeVettingApproved,
		Title: "Fixer approved",
		Body:  fmt.Sprintf("Fixer %s passed vetting and can now receive work.", rel.FixerID),
	})
	return rel, nil
}

func (s *service) RejectVettedFixer(ctx context.Context, input DecisionInput) (*models.AgentFixer, error) {
	if input.AgentFixerID == uuid.Nil || input.AdminUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "relationship id and admin user id required")
	}
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rejection reason required")
	}
	if len(reason) > maxNotesLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rejection reason too long")
	}

	now := s.now()
	rel, err := s.decide(ctx, input.AgentFixerID, map[string]any{
		"vet_status":       enums.VetStatusRejected,
		"status":           enums.AgentFixerStatusInactive,
		"vetted_at":        now,
		"vetted_by":        input.AdminUserID,
		"rejection_reason": reason,
	})
	if err != nil {
		return nil, err
	}
	rel.VetStatus = enums.VetStatusRejected
	rel.Status = enums.AgentFixerStatusInactive
	rel.VettedAt = &now
	rel.VettedBy = &input.AdminUserID
	rel.RejectionReason = &reason

	s.notifyAgent(ctx, rel, notifications.Message{
		Type:      enums.NotificationTypeVettingRejected,
		Title:     "Fixer rejected",
		Body:      fmt.Sprintf("Fixer %s did not pass vetting: %s", rel.FixerID, reason),
		SendEmail: true,
	})
	return rel, nil
}

// decide applies a terminal decision. The row is read first so a missing
// relationship reports NotFound rather than an invalid transition.
func (s *service) decide(ctx context.Context, id uuid.UUID, fields map[string]any) (*models.AgentFixer, error) {
	var rel *models.AgentFixer
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		var err error
		rel, err = repo.FindByID(ctx, id)
		if err != nil {
			return mapLookupError(err, "agent fixer relationship not found", "load relationship")
		}
		if rel.VetStatus != enums.VetStatusPending {
			return invalidState(rel.VetStatus)
		}
		affected, err := repo.UpdatePending(ctx, id, fields)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record vetting decision")
		}
		if affected == 0 {
			return invalidState("")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rel, nil
}

// RequiresVetting fails closed: only an ACTIVE, APPROVED relationship lets
// work through, and lookup errors block.
func (s *service) RequiresVetting(ctx context.Context, agentID, fixerID uuid.UUID) bool {
	rel, err := s.repo.FindByPair(ctx, agentID, fixerID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.logg.Error(s.logg.WithAgentID(ctx, agentID.String()), "vetting lookup failed; blocking work", err)
		}
		return true
	}
	return !rel.CanReceiveWork()
}

func (s *service) ListPendingVetting(ctx context.Context, params pagination.Params) (*ListResult, error) {
	var cursor *pagination.Cursor
	if params.Cursor != "" {
		parsed, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		cursor = parsed
	}
	rows, next, err := s.repo.ListPending(ctx, params.Limit, cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list pending vetting")
	}
	out := &ListResult{Items: rows}
	if next != nil {
		out.Cursor = pagination.EncodeCursor(*next)
	}
	return out, nil
}

func (s *service) notifyAgent(ctx context.Context, rel *models.AgentFixer, msg notifications.Message) {
	agent, err := s.repo.FindAgentByID(ctx, rel.AgentID)
	if err != nil {
		s.logg.Error(s.logg.WithAgentID(ctx, rel.AgentID.String()), "vetting notification skipped: agent lookup failed", err)
		return
	}
	msg.Recipient = notifications.ToUser(agent.UserID)
	msg.Link = "/agent/fixers"
	s.notifier.Notify(ctx, msg)
}

func invalidState(current enums.VetStatus) error {
	err := pkgerrors.New(pkgerrors.CodeStateConflict, "fixer is not pending vetting")
	if current != "" {
		return err.WithDetails(map[string]any{"vet_status": current})
	}
	return err
}

func mapLookupError(err error, notFoundMsg, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, notFoundMsg)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, op)
}
