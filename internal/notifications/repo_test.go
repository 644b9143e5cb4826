package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fixersapp/fixers-backend/pkg/db/dbtest"
	"github.com/fixersapp/fixers-backend/pkg/db/models"
	"github.com/fixersapp/fixers-backend/pkg/enums"
)

func TestDeleteReadOlderThanKeepsUnread(t *testing.T) {
	_, conn := dbtest.Client(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	userID := uuid.New()

	oldRead := now.AddDate(0, 0, -120)
	recentRead := now.AddDate(0, 0, -10)
	rows := []*models.Notification{
		{UserID: &userID, Type: enums.NotificationTypeCommissionEarned, Title: "old read", Message: "m", ReadAt: &oldRead},
		{UserID: &userID, Type: enums.NotificationTypeCommissionEarned, Title: "recent read", Message: "m", ReadAt: &recentRead},
		{UserID: &userID, Type: enums.NotificationTypeCommissionEarned, Title: "unread", Message: "m"},
		{Type: enums.NotificationTypeCommissionEarned, Title: "admin old read", Message: "m", ReadAt: &oldRead},
	}
	for _, row := range rows {
		require.NoError(t, repo.Create(ctx, row))
	}

	deleted, err := repo.DeleteReadOlderThan(ctx, now.AddDate(0, 0, -90))
	require.NoError(t, err)
	assert.EqualValues(t, 2, deleted)

	var titles []string
	require.NoError(t, conn.Model(&models.Notification{}).Order("title").Pluck("title", &titles).Error)
	assert.Equal(t, []string{"recent read", "unread"}, titles)
}
