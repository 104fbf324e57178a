package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"tvicl/server/internal/config"
	dbpkg "tvicl/server/internal/db"
	"tvicl/server/internal/utils"
)

// IIdentifierService generates the public identifiers of a property.
type IIdentifierService interface {
	NewPropertyID(ctx context.Context) (string, error)
	NewSlug(title, area, city string) (string, error)
}

type identifierService struct {
	prefix      string
	length      int
	maxAttempts int
	exists      func(ctx context.Context, propertyID string) (bool, error)
	random      func(alphabet string, n int) (string, error)
}

// NewIdentifierService checks candidate property ids against the properties collection.
func NewIdentifierService(db *mongo.Database, cfg *config.Config) IIdentifierService {
	coll := db.Collection(dbpkg.PropertiesCollection)
	return newIdentifierService(cfg, func(ctx context.Context, propertyID string) (bool, error) {
		err := coll.FindOne(ctx, bson.M{"property_id": propertyID}, options.FindOne().SetProjection(bson.M{"_id": 1})).Err()
		if errors.Is(err, mongo.ErrNoDocuments) {
			return false, nil
		}
		return err == nil, err
	}, utils.RandomCode)
}

func newIdentifierService(cfg *config.Config, exists func(context.Context, string) (bool, error), random func(string, int) (string, error)) *identifierService {
	attempts := cfg.IDGenerationMaxRetries
	if attempts < 1 {
		attempts = 1
	}
	return &identifierService{
		prefix:      cfg.PropertyIDPrefix,
		length:      cfg.PropertyIDLength,
		maxAttempts: attempts,
		exists:      exists,
		random:      random,
	}
}

// NewPropertyID returns "<prefix><random A-Z0-9>" not yet used by any property.
// The storage check narrows the race window; the unique index on property_id is the final word.
func (s *identifierService) NewPropertyID(ctx context.Context) (string, error) {
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		code, err := s.random(utils.PropertyIDAlphabet, s.length)
		if err != nil {
			return "", err
		}
		candidate := s.prefix + code
		taken, err := s.exists(ctx, candidate)
		if err != nil {
			return "", storageError("check property id", err)
		}
		if !taken {
			return candidate, nil
		}
		log.Printf("Property id %s already taken (attempt %d/%d)", candidate, attempt, s.maxAttempts)
	}
	return "", fmt.Errorf("%w: property id after %d attempts", ErrGenerationExhausted, s.maxAttempts)
}

func (s *identifierService) NewSlug(title, area, city string) (string, error) {
	return utils.SlugWithSuffix(title, area, city)
}
