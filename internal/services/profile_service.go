package services

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	dbpkg "tvicl/server/internal/db"
	"tvicl/server/internal/models"
	"tvicl/server/internal/utils"
)

// Fields of a profile its owner may not change.
var protectedProfileFields = []string{"id", "userId", "verified", "ratings", "reviewsCount", "active", "createdAt", "updatedAt"}

// IProfileService manages the agent and estate profiles attached to user accounts.
type IProfileService interface {
	AddAgentProfile(ctx context.Context, userID utils.SixID, profile *models.AgentProfile) (*models.AgentProfile, error)
	AddEstateProfile(ctx context.Context, userID utils.SixID, profile *models.EstateProfile) (*models.EstateProfile, error)
	GetAgentProfile(ctx context.Context, id utils.SixID) (*models.AgentProfile, error)
	GetEstateProfile(ctx context.Context, id utils.SixID) (*models.EstateProfile, error)
	UpdateAgentProfile(ctx context.Context, userID utils.SixID, patch map[string]any) (*models.AgentProfile, error)
	UpdateEstateProfile(ctx context.Context, userID utils.SixID, patch map[string]any) (*models.EstateProfile, error)
}

type profileService struct {
	db *mongo.Database
}

func NewProfileService(db *mongo.Database) IProfileService {
	return &profileService{db: db}
}

// AddAgentProfile stores the profile and grants the user the agent role.
// A user has at most one agent profile; a second one fails with ErrConflict.
func (s *profileService) AddAgentProfile(ctx context.Context, userID utils.SixID, profile *models.AgentProfile) (*models.AgentProfile, error) {
	if err := ValidateRequest(profile); err != nil {
		return nil, err
	}
	p := *profile
	now := time.Now().UTC()
	p.UserID, p.Active, p.Verified, p.Ratings, p.ReviewsCount = userID, true, false, 0, 0
	p.CreatedAt, p.UpdatedAt = now, now
	if p.Specializations == nil {
		p.Specializations = []models.Specialization{}
	}
	if err := s.attach(ctx, userID, models.RoleAgent, dbpkg.AgentProfilesCollection, "agent_profile", &p.Base, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// AddEstateProfile stores the profile and grants the user the estate role.
func (s *profileService) AddEstateProfile(ctx context.Context, userID utils.SixID, profile *models.EstateProfile) (*models.EstateProfile, error) {
	if err := ValidateRequest(profile); err != nil {
		return nil, err
	}
	p := *profile
	now := time.Now().UTC()
	p.UserID, p.Active, p.Verified = userID, true, false
	p.CreatedAt, p.UpdatedAt = now, now
	if err := s.attach(ctx, userID, models.RoleEstate, dbpkg.EstateProfilesCollection, "estate_profile", &p.Base, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// attach inserts doc into collection and links it from the user under refField.
func (s *profileService) attach(ctx context.Context, userID utils.SixID, role models.Role, collection, refField string, base *models.Base, doc any) error {
	users := s.db.Collection(dbpkg.UsersCollection)
	if err := users.FindOne(ctx, bson.M{"_id": userID}).Err(); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrNotFound
		}
		return storageError("find profile owner", err)
	}

	err := dbpkg.Try(ctx, func() error {
		base.ID = utils.NewSixID()
		_, err := s.db.Collection(collection).InsertOne(ctx, doc)
		if dbpkg.IsMongoDuplicateKeyError(err) && !isIDCollision(err) {
			return ErrConflict
		}
		return err
	})
	if errors.Is(err, ErrConflict) {
		return ErrConflict
	}
	if err != nil {
		return storageError("insert "+string(role)+" profile", err)
	}

	_, err = users.UpdateOne(ctx, bson.M{"_id": userID}, bson.M{
		"$addToSet": bson.M{"roles": role},
		"$set":      bson.M{refField: base.ID, "updated_at": time.Now().UTC()},
	})
	if err != nil {
		return storageError("link "+string(role)+" profile", err)
	}
	log.Printf("User %s added %s profile %s", userID, role, base.ID)
	return nil
}

// isIDCollision reports whether a duplicate key error came from the _id index.
func isIDCollision(err error) bool {
	return strings.Contains(err.Error(), "index: _id_ ")
}

func (s *profileService) GetAgentProfile(ctx context.Context, id utils.SixID) (*models.AgentProfile, error) {
	return findProfile[models.AgentProfile](ctx, s.db.Collection(dbpkg.AgentProfilesCollection), bson.M{"_id": id, "active": true})
}

func (s *profileService) GetEstateProfile(ctx context.Context, id utils.SixID) (*models.EstateProfile, error) {
	return findProfile[models.EstateProfile](ctx, s.db.Collection(dbpkg.EstateProfilesCollection), bson.M{"_id": id, "active": true})
}

func (s *profileService) UpdateAgentProfile(ctx context.Context, userID utils.SixID, patch map[string]any) (*models.AgentProfile, error) {
	return updateProfile[models.AgentProfile](ctx, s.db.Collection(dbpkg.AgentProfilesCollection), userID, patch)
}

func (s *profileService) UpdateEstateProfile(ctx context.Context, userID utils.SixID, patch map[string]any) (*models.EstateProfile, error) {
	return updateProfile[models.EstateProfile](ctx, s.db.Collection(dbpkg.EstateProfilesCollection), userID, patch)
}

func findProfile[T any](ctx context.Context, coll *mongo.Collection, filter bson.M) (*T, error) {
	var out T
	if err := coll.FindOne(ctx, filter).Decode(&out); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, storageError("find profile", err)
	}
	return &out, nil
}

// updateProfile applies a JSON merge patch to the user's profile, re-validates the
// result and replaces the stored document.
func updateProfile[T any](ctx context.Context, coll *mongo.Collection, userID utils.SixID, patch map[string]any) (*T, error) {
	current, err := findProfile[T](ctx, coll, bson.M{"user_id": userID})
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(current)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	for _, k := range protectedProfileFields {
		delete(patch, k)
	}
	mergePatch(doc, patch)
	doc["updatedAt"] = time.Now().UTC()

	if raw, err = json.Marshal(doc); err != nil {
		return nil, err
	}
	var next T
	if err := json.Unmarshal(raw, &next); err != nil {
		return nil, ViolationFromJSONError(err)
	}
	if err := ValidateRequest(&next); err != nil {
		return nil, err
	}

	if _, err := coll.ReplaceOne(ctx, bson.M{"user_id": userID}, &next); err != nil {
		return nil, storageError("update profile", err)
	}
	return &next, nil
}
