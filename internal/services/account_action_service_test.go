package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"tvicl/server/internal/auth"
	dbpkg "tvicl/server/internal/db"
	"tvicl/server/internal/models"
	"tvicl/server/internal/utils"
)

func setupAccountActions(t *testing.T, dbName string) (*accountActionService, func(time.Time)) {
	db := utils.SetupTestDB(t, dbName, dbpkg.AccountActionsCollection)
	require.NoError(t, dbpkg.EnsureIndexes(context.Background(), db))
	svc := NewAccountActionService(db, propertyTestConfig()).(*accountActionService)
	clock := time.Now()
	svc.now = func() time.Time { return clock }
	return svc, func(t time.Time) { clock = t }
}

func TestAccountActionService_CreateAndConsume(t *testing.T) {
	svc, _ := setupAccountActions(t, "testdb_account_actions")
	ctx := context.Background()
	user := utils.NewSixID()

	token, action, err := svc.CreateAction(ctx, user, models.ActionVerifyEmail)
	require.NoError(t, err)
	assert.Len(t, token, 64)
	assert.Equal(t, auth.HashToken(token), action.TokenHash)
	assert.Equal(t, action.CreatedAt.Add(24*time.Hour), action.ExpiresAt)

	var stored bson.M
	require.NoError(t, svc.coll().FindOne(ctx, bson.M{"_id": action.ID}).Decode(&stored))
	assert.NotContains(t, stored, "token", "raw token never reaches the database")

	_, err = svc.ConsumeAction(ctx, token, models.ActionPasswordReset)
	assert.ErrorIs(t, err, ErrInvalidToken, "type must match")

	consumed, err := svc.ConsumeAction(ctx, token, models.ActionVerifyEmail)
	require.NoError(t, err)
	assert.Equal(t, user, consumed.UserID)
	require.NotNil(t, consumed.Executed)

	_, err = svc.ConsumeAction(ctx, token, models.ActionVerifyEmail)
	assert.ErrorIs(t, err, ErrInvalidToken, "tokens are single use")

	_, err = svc.ConsumeAction(ctx, "", models.ActionVerifyEmail)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAccountActionService_Expiry(t *testing.T) {
	svc, setClock := setupAccountActions(t, "testdb_account_actions_expiry")
	ctx := context.Background()
	start := time.Now()

	token, _, err := svc.CreateAction(ctx, utils.NewSixID(), models.ActionPasswordReset)
	require.NoError(t, err)

	setClock(start.Add(61 * time.Minute))
	_, err = svc.ConsumeAction(ctx, token, models.ActionPasswordReset)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAccountActionService_Invalidate(t *testing.T) {
	svc, _ := setupAccountActions(t, "testdb_account_actions_invalidate")
	ctx := context.Background()
	user := utils.NewSixID()

	first, _, err := svc.CreateAction(ctx, user, models.ActionPasswordReset)
	require.NoError(t, err)
	verify, _, err := svc.CreateAction(ctx, user, models.ActionVerifyEmail)
	require.NoError(t, err)

	require.NoError(t, svc.InvalidateActions(ctx, user, models.ActionPasswordReset))

	_, err = svc.ConsumeAction(ctx, first, models.ActionPasswordReset)
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = svc.ConsumeAction(ctx, verify, models.ActionVerifyEmail)
	assert.NoError(t, err, "other action types are untouched")

	_, _, err = svc.CreateAction(ctx, user, "delete_account")
	assert.Error(t, err)
}
