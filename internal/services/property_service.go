package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"slices"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"tvicl/server/internal/config"
	dbpkg "tvicl/server/internal/db"
	"tvicl/server/internal/models"
	"tvicl/server/internal/utils"
)

// DefaultRejectionReason is stored when a listing is rejected without a reason.
const DefaultRejectionReason = "Listing did not meet verification requirements"

// IPropertyService owns every state change of a property after validation.
type IPropertyService interface {
	CreateProperty(ctx context.Context, ownerID utils.SixID, details *models.PropertyDetails) (*models.Property, error)
	FindPropertyByID(ctx context.Context, id utils.SixID) (*models.Property, error)
	FindPropertyAnyState(ctx context.Context, id utils.SixID) (*models.Property, error)
	FindByPropertyID(ctx context.Context, propertyID string) (*models.Property, error)
	FindBySlug(ctx context.Context, slug string) (*models.Property, error)
	ListByOwner(ctx context.Context, ownerID utils.SixID, page Pagination) (*PropertyPage, error)
	ListPendingApproval(ctx context.Context, page Pagination) (*PropertyPage, error)
	UpdateProperty(ctx context.Context, id, actorID utils.SixID, patch map[string]any) (*models.Property, error)
	SoftDeleteProperty(ctx context.Context, id, actorID utils.SixID) error
	RestoreProperty(ctx context.Context, id, actorID utils.SixID) (*models.Property, error)
	SetVerification(ctx context.Context, id, actorID utils.SixID, approved bool, reason string) (*models.Property, error)
	IncrementCounter(ctx context.Context, id utils.SixID, counter models.PropertyCounter) error
}

type propertyService struct {
	db        *mongo.Database
	cfg       *config.Config
	validator *PropertyValidator
	ids       IIdentifierService
	now       func() time.Time
}

// NewPropertyService creates a PropertyService.
func NewPropertyService(db *mongo.Database, cfg *config.Config, validator *PropertyValidator, ids IIdentifierService) IPropertyService {
	return &propertyService{db: db, cfg: cfg, validator: validator, ids: ids, now: time.Now}
}

func (s *propertyService) coll() *mongo.Collection {
	return s.db.Collection(dbpkg.PropertiesCollection)
}

// CreateProperty validates details and stores a new Pending property owned by ownerID.
// Public ids are regenerated on every attempt, so a duplicate key on property_id or
// slug is retried; if it persists the call fails with ErrConflict.
func (s *propertyService) CreateProperty(ctx context.Context, ownerID utils.SixID, details *models.PropertyDetails) (*models.Property, error) {
	normalized, err := s.validator.Validate(details)
	if ownerID.IsZero() {
		verr := &ValidationError{}
		errors.As(err, &verr)
		verr.add("owner", "is required")
		return nil, verr
	}
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	var property *models.Property
	operation := func() error {
		propertyID, err := s.ids.NewPropertyID(ctx)
		if err != nil {
			return err
		}
		slug, err := s.ids.NewSlug(normalized.Title, normalized.Address.Area, normalized.Address.City)
		if err != nil {
			return err
		}
		property = &models.Property{
			Base:            models.NewBase(),
			PropertyID:      propertyID,
			Slug:            slug,
			PropertyDetails: *normalized,
			Owner:           ownerID,
			ApprovalStatus:  models.ApprovalPending,
			LastModifiedBy:  ownerID,
			LastModifiedAt:  now,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		_, err = s.coll().InsertOne(ctx, property)
		return err
	}

	err = dbpkg.WithRetries(ctx, operation, s.cfg.IDGenerationMaxRetries, dbpkg.IsMongoDuplicateKeyError)
	if err != nil {
		var serr *StorageError
		switch {
		case errors.Is(err, ErrGenerationExhausted), errors.As(err, &serr):
			return nil, err
		case dbpkg.IsMongoDuplicateKeyError(err):
			return nil, fmt.Errorf("%w: property id or slug already taken after retries: %v", ErrConflict, err)
		}
		return nil, storageError("create property", err)
	}

	log.Printf("Property %s saved by %s", property.ID, ownerID)
	return property, nil
}

func (s *propertyService) findOne(ctx context.Context, filter bson.M, op string) (*models.Property, error) {
	var property models.Property
	err := s.coll().FindOne(ctx, filter).Decode(&property)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, storageError(op, err)
	}
	return &property, nil
}

// FindPropertyByID finds a non-deleted property by its internal id.
func (s *propertyService) FindPropertyByID(ctx context.Context, id utils.SixID) (*models.Property, error) {
	return s.findOne(ctx, bson.M{"_id": id, "is_deleted": false}, "find property")
}

// FindPropertyAnyState also returns soft-deleted properties; used for restore and ownership checks.
func (s *propertyService) FindPropertyAnyState(ctx context.Context, id utils.SixID) (*models.Property, error) {
	return s.findOne(ctx, bson.M{"_id": id}, "find property")
}

func (s *propertyService) FindByPropertyID(ctx context.Context, propertyID string) (*models.Property, error) {
	return s.findOne(ctx, bson.M{"property_id": propertyID, "is_deleted": false}, "find property by property id")
}

func (s *propertyService) FindBySlug(ctx context.Context, slug string) (*models.Property, error) {
	return s.findOne(ctx, bson.M{"slug": slug, "is_deleted": false}, "find property by slug")
}

func (s *propertyService) ListByOwner(ctx context.Context, ownerID utils.SixID, page Pagination) (*PropertyPage, error) {
	return findPropertyPage(ctx, s.coll(), bson.M{"owner": ownerID, "is_deleted": false}, page, "list properties by owner")
}

func (s *propertyService) ListPendingApproval(ctx context.Context, page Pagination) (*PropertyPage, error) {
	return findPropertyPage(ctx, s.coll(), bson.M{"approval_status": models.ApprovalPending, "is_deleted": false}, page, "list pending properties")
}

// findPropertyPage runs filter newest first and counts every match.
func findPropertyPage(ctx context.Context, coll *mongo.Collection, filter bson.M, page Pagination, op string) (*PropertyPage, error) {
	page = page.normalized()
	cursor, err := coll.Find(ctx, filter, page.findOptions().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}))
	if err != nil {
		return nil, storageError(op, err)
	}
	var items []models.Property
	if err := cursor.All(ctx, &items); err != nil {
		return nil, storageError(op, err)
	}
	total, err := coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, storageError(op, err)
	}
	return newPropertyPage(items, total, page), nil
}

// UpdateProperty applies patch (JSON field names, merge-patch semantics: null removes a field)
// to the editable details of a non-deleted property, re-validates the result and stores it.
// Keys outside the editable details are ignored.
func (s *propertyService) UpdateProperty(ctx context.Context, id, actorID utils.SixID, patch map[string]any) (*models.Property, error) {
	current, err := s.FindPropertyByID(ctx, id)
	if err != nil {
		return nil, err
	}

	merged, err := mergeDetails(&current.PropertyDetails, patch)
	if err != nil {
		return nil, err
	}
	// Derived tags follow the fields they came from; tags the client chose stay.
	if _, given := patch["tags"]; !given && slices.Equal(current.Tags, derivedTags(&current.PropertyDetails)) {
		merged.Tags = nil
	}
	normalized, err := s.validator.Validate(merged)
	if err != nil {
		return nil, err
	}

	set, err := detailsToBSON(normalized)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	set["last_modified_by"] = actorID
	set["last_modified_at"] = now
	set["updated_at"] = now

	var updated models.Property
	err = s.coll().FindOneAndUpdate(ctx,
		bson.M{"_id": id, "is_deleted": false},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, storageError("update property", err)
	}

	log.Printf("Property %s saved by %s", id, actorID)
	return &updated, nil
}

// mergeDetails applies a JSON merge patch to the JSON form of details.
func mergeDetails(details *models.PropertyDetails, patch map[string]any) (*models.PropertyDetails, error) {
	raw, err := json.Marshal(details)
	if err != nil {
		return nil, fmt.Errorf("encoding property details: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decoding property details: %w", err)
	}
	mergePatch(doc, patch)

	raw, err = json.Marshal(doc)
	if err != nil {
		return nil, ViolationFromJSONError(err)
	}
	var out models.PropertyDetails
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, ViolationFromJSONError(err)
	}
	return &out, nil
}

func mergePatch(doc map[string]any, patch map[string]any) {
	for k, v := range patch {
		if v == nil {
			delete(doc, k)
			continue
		}
		if pv, ok := v.(map[string]any); ok {
			if dv, ok := doc[k].(map[string]any); ok {
				mergePatch(dv, pv)
				continue
			}
			fresh := map[string]any{}
			mergePatch(fresh, pv)
			doc[k] = fresh
			continue
		}
		doc[k] = v
	}
}

// detailsToBSON flattens details into top-level document keys for a $set.
func detailsToBSON(details *models.PropertyDetails) (bson.M, error) {
	raw, err := bson.Marshal(details)
	if err != nil {
		return nil, fmt.Errorf("encoding property details: %w", err)
	}
	var set bson.M
	if err := bson.Unmarshal(raw, &set); err != nil {
		return nil, fmt.Errorf("decoding property details: %w", err)
	}
	return set, nil
}

// SoftDeleteProperty hides a property from default reads. Deleting an already-deleted
// property succeeds and keeps the original deletion time.
func (s *propertyService) SoftDeleteProperty(ctx context.Context, id, actorID utils.SixID) error {
	now := s.now().UTC()
	res, err := s.coll().UpdateOne(ctx,
		bson.M{"_id": id, "is_deleted": false},
		bson.M{"$set": bson.M{
			"is_deleted":       true,
			"deleted_at":       now,
			"last_modified_by": actorID,
			"last_modified_at": now,
			"updated_at":       now,
		}},
	)
	if err != nil {
		return storageError("soft delete property", err)
	}
	if res.MatchedCount > 0 {
		log.Printf("Property %s soft-deleted by %s", id, actorID)
		return nil
	}

	n, err := s.coll().CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return storageError("soft delete property", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// RestoreProperty clears the deletion flag. Restoring a property that is not deleted
// returns it unchanged.
func (s *propertyService) RestoreProperty(ctx context.Context, id, actorID utils.SixID) (*models.Property, error) {
	now := s.now().UTC()
	var restored models.Property
	err := s.coll().FindOneAndUpdate(ctx,
		bson.M{"_id": id, "is_deleted": true},
		bson.M{"$set": bson.M{
			"is_deleted":       false,
			"deleted_at":       nil,
			"last_modified_by": actorID,
			"last_modified_at": now,
			"updated_at":       now,
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&restored)
	if err == nil {
		log.Printf("Property %s restored by %s", id, actorID)
		return &restored, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, storageError("restore property", err)
	}
	return s.FindPropertyAnyState(ctx, id)
}

// SetVerification records an admin review. Any approval status may follow any other.
func (s *propertyService) SetVerification(ctx context.Context, id, actorID utils.SixID, approved bool, reason string) (*models.Property, error) {
	now := s.now().UTC()
	set := bson.M{
		"last_modified_by": actorID,
		"last_modified_at": now,
		"updated_at":       now,
	}
	var unset bson.M
	if approved {
		set["is_verified"] = true
		set["approval_status"] = models.ApprovalApproved
		set["verified_at"] = now
		unset = bson.M{"rejection_reason": ""}
	} else {
		if reason == "" {
			reason = DefaultRejectionReason
		}
		set["is_verified"] = false
		set["approval_status"] = models.ApprovalRejected
		set["rejection_reason"] = reason
		unset = bson.M{"verified_at": ""}
	}

	var updated models.Property
	err := s.coll().FindOneAndUpdate(ctx,
		bson.M{"_id": id, "is_deleted": false},
		bson.M{"$set": set, "$unset": unset},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, storageError("set verification", err)
	}
	log.Printf("Property %s marked %s by %s", id, updated.ApprovalStatus, actorID)
	return &updated, nil
}

// IncrementCounter atomically adds one to an engagement counter of a non-deleted property.
func (s *propertyService) IncrementCounter(ctx context.Context, id utils.SixID, counter models.PropertyCounter) error {
	if !counter.IsValid() {
		return &ValidationError{Violations: []FieldViolation{{Field: "counter", Message: "must be one of: views, saves, shares, inquiries"}}}
	}
	res, err := s.coll().UpdateOne(ctx,
		bson.M{"_id": id, "is_deleted": false},
		bson.M{"$inc": bson.M{string(counter): 1}},
	)
	if err != nil {
		return storageError("increment "+string(counter), err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
