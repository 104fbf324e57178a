package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"tvicl/server/internal/auth"
	"tvicl/server/internal/config"
	dbpkg "tvicl/server/internal/db"
	"tvicl/server/internal/models"
	"tvicl/server/internal/utils"
)

const actionTokenBytes = 32

// IAccountActionService manages the one-time tokens behind emailed links.
type IAccountActionService interface {
	CreateAction(ctx context.Context, userID utils.SixID, actionType models.AccountActionType) (string, *models.AccountAction, error)
	ConsumeAction(ctx context.Context, token string, actionType models.AccountActionType) (*models.AccountAction, error)
	InvalidateActions(ctx context.Context, userID utils.SixID, actionType models.AccountActionType) error
}

type accountActionService struct {
	db  *mongo.Database
	cfg *config.Config
	now func() time.Time
}

func NewAccountActionService(db *mongo.Database, cfg *config.Config) IAccountActionService {
	return &accountActionService{db: db, cfg: cfg, now: time.Now}
}

func (s *accountActionService) coll() *mongo.Collection {
	return s.db.Collection(dbpkg.AccountActionsCollection)
}

func (s *accountActionService) ttl(actionType models.AccountActionType) (time.Duration, error) {
	switch actionType {
	case models.ActionVerifyEmail:
		return s.cfg.VerificationTTL, nil
	case models.ActionPasswordReset:
		return s.cfg.ResetPasswordTTL, nil
	}
	return 0, fmt.Errorf("unknown account action type %q", actionType)
}

func newActionToken() (string, error) {
	b := make([]byte, actionTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate action token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// CreateAction stores a new action and returns the raw token for the email link.
func (s *accountActionService) CreateAction(ctx context.Context, userID utils.SixID, actionType models.AccountActionType) (string, *models.AccountAction, error) {
	ttl, err := s.ttl(actionType)
	if err != nil {
		return "", nil, err
	}

	now := s.now().UTC()
	var token string
	action := &models.AccountAction{
		Base:      models.NewBase(),
		UserID:    userID,
		Type:      actionType,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	err = dbpkg.Try(ctx, func() error {
		if token, err = newActionToken(); err != nil {
			return err
		}
		action.TokenHash = auth.HashToken(token)
		_, err := s.coll().InsertOne(ctx, action)
		if dbpkg.IsMongoDuplicateKeyError(err) {
			action.ID = utils.NewSixID()
		}
		return err
	})
	if err != nil {
		return "", nil, storageError("create account action", err)
	}
	return token, action, nil
}

// ConsumeAction marks the action behind token executed. Expired, used, unknown or
// mistyped tokens all yield ErrInvalidToken.
func (s *accountActionService) ConsumeAction(ctx context.Context, token string, actionType models.AccountActionType) (*models.AccountAction, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	now := s.now().UTC()
	filter := bson.M{
		"token_hash": auth.HashToken(token),
		"type":       actionType,
		"executed":   nil,
		"expires_at": bson.M{"$gt": now},
	}
	var action models.AccountAction
	err := s.coll().FindOneAndUpdate(ctx, filter,
		bson.M{"$set": bson.M{"executed": now}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&action)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrInvalidToken
		}
		return nil, storageError("consume account action", err)
	}
	return &action, nil
}

// InvalidateActions retires every pending action of actionType for the user.
func (s *accountActionService) InvalidateActions(ctx context.Context, userID utils.SixID, actionType models.AccountActionType) error {
	_, err := s.coll().UpdateMany(ctx,
		bson.M{"user_id": userID, "type": actionType, "executed": nil},
		bson.M{"$set": bson.M{"executed": s.now().UTC()}},
	)
	if err != nil {
		return storageError("invalidate account actions", err)
	}
	return nil
}
