package notifications

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/fixersapp/fixers-backend/pkg/db/models"
	"github.com/fixersapp/fixers-backend/pkg/enums"
	"github.com/fixersapp/fixers-backend/pkg/logger"
	"github.com/fixersapp/fixers-backend/pkg/mailer"
)

// Message is a best-effort notification. A nil Recipient addresses the admin team.
type Message struct {
	Recipient *uuid.UUID
	Type      enums.NotificationType
	Title     string
	Body      string
	Link      string
	// SendEmail also mails the recipient (or the admin address) when true.
	SendEmail bool
}

// Notifier is the post-commit side-effect surface used by the money and
// vetting services.
type Notifier interface {
	Notify(ctx context.Context, msg Message)
}

// DispatcherParams wires a Dispatcher.
type DispatcherParams struct {
	Repo       Repository
	Mailer     mailer.Sender
	AdminEmail string
	Logger     *logger.Logger
}

// Dispatcher writes in-app notifications and sends email. Failures are logged
// and never reach the caller, whose transaction has already committed.
type Dispatcher struct {
	repo       Repository
	mailer     mailer.Sender
	adminEmail string
	logg       *logger.Logger
}

func NewDispatcher(params DispatcherParams) (*Dispatcher, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if params.Mailer == nil {
		return nil, fmt.Errorf("mailer required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Dispatcher{
		repo:       params.Repo,
		mailer:     params.Mailer,
		adminEmail: strings.TrimSpace(params.AdminEmail),
		logg:       params.Logger,
	}, nil
}

func (d *Dispatcher) Notify(ctx context.Context, msg Message) {
	ctx = d.logg.WithFields(ctx, map[string]any{
		"notification_type": string(msg.Type),
		"recipient":         recipientLabel(msg.Recipient),
	})

	row := &models.Notification{
		UserID:  msg.Recipient,
		Type:    msg.Type,
		Title:   msg.Title,
		Message: msg.Body,
	}
	if msg.Link != "" {
		link := msg.Link
		row.Link = &link
	}
	if err := d.repo.Create(ctx, row); err != nil {
		d.logg.Error(ctx, "failed to persist notification", err)
	}

	if !msg.SendEmail {
		return
	}

	to, err := d.resolveEmail(ctx, msg.Recipient)
	if err != nil {
		d.logg.Error(ctx, "failed to resolve notification email", err)
		return
	}
	if to == "" {
		d.logg.Warn(ctx, "notification email skipped: no address")
		return
	}

	if err := d.mailer.Send(ctx, mailer.Email{To: to, Subject: msg.Title, Body: msg.Body}); err != nil {
		d.logg.Error(ctx, "failed to send notification email", err)
	}
}

func (d *Dispatcher) resolveEmail(ctx context.Context, recipient *uuid.UUID) (string, error) {
	if recipient == nil {
		return d.adminEmail, nil
	}
	return d.repo.FindUserEmail(ctx, *recipient)
}

func recipientLabel(recipient *uuid.UUID) string {
	if recipient == nil {
		return "admins"
	}
	return recipient.String()
}

// ToUser is a convenience for building a recipient pointer.
func ToUser(id uuid.UUID) *uuid.UUID {
	return &id
}
