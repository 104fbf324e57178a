package services

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	dbpkg "tvicl/server/internal/db"
	"tvicl/server/internal/models"
	"tvicl/server/internal/utils"
)

// IInteractionService stores the append-only engagement log used for recommendations.
type IInteractionService interface {
	Record(ctx context.Context, userID, propertyID utils.SixID, action models.InteractionAction, searchQuery string) error
	RecentViewedPropertyIDs(ctx context.Context, userID utils.SixID, limit int) ([]utils.SixID, error)
}

type interactionService struct {
	db  *mongo.Database
	now func() time.Time
}

func NewInteractionService(db *mongo.Database) IInteractionService {
	return &interactionService{db: db, now: time.Now}
}

func (s *interactionService) Record(ctx context.Context, userID, propertyID utils.SixID, action models.InteractionAction, searchQuery string) error {
	if !action.IsValid() {
		return &ValidationError{Violations: []FieldViolation{{Field: "action", Message: "must be one of: view, save, share, search"}}}
	}
	interaction := &models.Interaction{
		Base:        models.NewBase(),
		UserID:      userID,
		PropertyID:  propertyID,
		Action:      action,
		SearchQuery: searchQuery,
		Timestamp:   s.now().UTC(),
	}
	err := dbpkg.Try(ctx, func() error {
		_, err := s.db.Collection(dbpkg.InteractionsCollection).InsertOne(ctx, interaction)
		if dbpkg.IsMongoDuplicateKeyError(err) {
			interaction.ID = utils.NewSixID()
		}
		return err
	})
	if err != nil {
		return storageError("record interaction", err)
	}
	return nil
}

// RecentViewedPropertyIDs returns the properties behind the user's last limit view
// interactions, newest first. A property viewed twice appears twice.
func (s *interactionService) RecentViewedPropertyIDs(ctx context.Context, userID utils.SixID, limit int) ([]utils.SixID, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit)).
		SetProjection(bson.M{"property_id": 1})
	cursor, err := s.db.Collection(dbpkg.InteractionsCollection).Find(ctx, bson.M{
		"user_id": userID,
		"action":  models.InteractionView,
	}, opts)
	if err != nil {
		return nil, storageError("recent views", err)
	}
	var rows []struct {
		PropertyID utils.SixID `bson:"property_id"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, storageError("recent views", err)
	}
	ids := make([]utils.SixID, 0, len(rows))
	for _, r := range rows {
		if !r.PropertyID.IsZero() {
			ids = append(ids, r.PropertyID)
		}
	}
	return ids, nil
}
