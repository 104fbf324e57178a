package services

import (
	"context"
	"errors"
	"math"
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	dbpkg "tvicl/server/internal/db"
	"tvicl/server/internal/models"
	"tvicl/server/internal/utils"
)

const (
	TrendingLimit        = 10
	RecommendationLimit  = 10
	RecommendationWindow = 10
	RelatedLimit         = 6
	DefaultAnalyticsSize = 10
	relatedPriceBand     = 0.10
)

// SearchFilters narrows a property search. Zero values do not filter.
type SearchFilters struct {
	Query        string
	City         string
	State        string
	ListingType  models.ListingType
	PropertyType models.PropertyType
	MinPrice     *float64
	MaxPrice     *float64
	MinBedrooms  *int
	Verified     *bool
}

type ListingTypeCount struct {
	ListingType models.ListingType `bson:"_id" json:"listingType"`
	Count       int64              `bson:"count" json:"count"`
}

type StateCount struct {
	State string `bson:"_id" json:"state"`
	Count int64  `bson:"count" json:"count"`
}

type AveragePrice struct {
	PropertyType models.PropertyType `bson:"_id" json:"propertyType"`
	AveragePrice float64             `bson:"average_price" json:"averagePrice"`
	Count        int64               `bson:"count" json:"count"`
}

// ScoredProperty is a property ranked by a derived score.
type ScoredProperty struct {
	models.Property `bson:",inline"`
	Score           float64 `bson:"score" json:"score"`
}

// IListingQueryService answers read-only searches and analytics over non-deleted properties.
type IListingQueryService interface {
	Search(ctx context.Context, filters SearchFilters, page Pagination) (*PropertyPage, error)
	TopViewed(ctx context.Context, limit int) ([]models.Property, error)
	CountByListingType(ctx context.Context) ([]ListingTypeCount, error)
	AveragePriceByType(ctx context.Context) ([]AveragePrice, error)
	CountByState(ctx context.Context) ([]StateCount, error)
	Recent(ctx context.Context, limit int) ([]models.Property, error)
	Trending(ctx context.Context) ([]ScoredProperty, error)
	Recommendations(ctx context.Context, userID utils.SixID) ([]ScoredProperty, error)
	Related(ctx context.Context, id utils.SixID) ([]models.Property, error)
}

type listingQueryService struct {
	db           *mongo.Database
	interactions IInteractionService
}

func NewListingQueryService(db *mongo.Database, interactions IInteractionService) IListingQueryService {
	return &listingQueryService{db: db, interactions: interactions}
}

func (s *listingQueryService) coll() *mongo.Collection {
	return s.db.Collection(dbpkg.PropertiesCollection)
}

var notDeleted = bson.M{"is_deleted": false}

// BuildSearchFilter translates filters into a MongoDB query. Every condition is ANDed.
func BuildSearchFilter(f SearchFilters) bson.M {
	filter := bson.M{"is_deleted": false}

	if q := strings.TrimSpace(f.Query); q != "" {
		rx := caseInsensitive(regexp.QuoteMeta(q))
		filter["$or"] = bson.A{
			bson.M{"title": rx},
			bson.M{"description": rx},
			bson.M{"address.area": rx},
			bson.M{"address.city": rx},
		}
	}
	if city := strings.TrimSpace(f.City); city != "" {
		filter["address.city"] = caseInsensitive("^" + regexp.QuoteMeta(city) + "$")
	}
	if state := strings.TrimSpace(f.State); state != "" {
		filter["address.state"] = caseInsensitive("^" + regexp.QuoteMeta(state) + "$")
	}
	if f.ListingType != "" {
		filter["listing_type"] = f.ListingType
	}
	if f.PropertyType != "" {
		filter["property_type"] = f.PropertyType
	}
	if f.MinPrice != nil || f.MaxPrice != nil {
		price := bson.M{}
		if f.MinPrice != nil {
			price["$gte"] = *f.MinPrice
		}
		if f.MaxPrice != nil {
			price["$lte"] = *f.MaxPrice
		}
		filter["price.amount"] = price
	}
	if f.MinBedrooms != nil {
		filter["bedrooms"] = bson.M{"$gte": *f.MinBedrooms}
	}
	if f.Verified != nil {
		filter["is_verified"] = *f.Verified
	}
	return filter
}

func caseInsensitive(pattern string) bson.M {
	return bson.M{"$regex": pattern, "$options": "i"}
}

func (s *listingQueryService) Search(ctx context.Context, filters SearchFilters, page Pagination) (*PropertyPage, error) {
	return findPropertyPage(ctx, s.coll(), BuildSearchFilter(filters), page, "search properties")
}

func (s *listingQueryService) findSorted(ctx context.Context, sortKey string, limit int, op string) ([]models.Property, error) {
	if limit < 1 || limit > MaxPageSize {
		limit = DefaultAnalyticsSize
	}
	opts := options.Find().
		SetSort(bson.D{{Key: sortKey, Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit))
	cursor, err := s.coll().Find(ctx, notDeleted, opts)
	if err != nil {
		return nil, storageError(op, err)
	}
	items := []models.Property{}
	if err := cursor.All(ctx, &items); err != nil {
		return nil, storageError(op, err)
	}
	return items, nil
}

func (s *listingQueryService) TopViewed(ctx context.Context, limit int) ([]models.Property, error) {
	return s.findSorted(ctx, "views", limit, "top viewed")
}

func (s *listingQueryService) Recent(ctx context.Context, limit int) ([]models.Property, error) {
	return s.findSorted(ctx, "created_at", limit, "recent properties")
}

// aggregate runs pipeline on the properties collection and decodes every result into out.
func (s *listingQueryService) aggregate(ctx context.Context, pipeline mongo.Pipeline, out any, op string) error {
	cursor, err := s.coll().Aggregate(ctx, pipeline)
	if err != nil {
		return storageError(op, err)
	}
	if err := cursor.All(ctx, out); err != nil {
		return storageError(op, err)
	}
	return nil
}

func (s *listingQueryService) CountByListingType(ctx context.Context) ([]ListingTypeCount, error) {
	out := []ListingTypeCount{}
	err := s.aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: notDeleted}},
		{{Key: "$group", Value: bson.M{"_id": "$listing_type", "count": bson.M{"$sum": 1}}}},
		{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}, {Key: "_id", Value: 1}}}},
	}, &out, "count by listing type")
	return out, err
}

func (s *listingQueryService) CountByState(ctx context.Context) ([]StateCount, error) {
	out := []StateCount{}
	err := s.aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: notDeleted}},
		{{Key: "$group", Value: bson.M{"_id": "$address.state", "count": bson.M{"$sum": 1}}}},
		{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}, {Key: "_id", Value: 1}}}},
	}, &out, "count by state")
	return out, err
}

// AveragePriceByType reports the mean price.amount per property type, rounded to the nearest unit.
func (s *listingQueryService) AveragePriceByType(ctx context.Context) ([]AveragePrice, error) {
	out := []AveragePrice{}
	err := s.aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"is_deleted": false, "price.amount": bson.M{"$type": "number"}}}},
		{{Key: "$group", Value: bson.M{
			"_id":           "$property_type",
			"average_price": bson.M{"$avg": "$price.amount"},
			"count":         bson.M{"$sum": 1},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
	}, &out, "average price by type")
	for i := range out {
		out[i].AveragePrice = math.Round(out[i].AveragePrice)
	}
	return out, err
}

// Trending ranks by 0.5*views + saves + 1.5*shares.
func (s *listingQueryService) Trending(ctx context.Context) ([]ScoredProperty, error) {
	out := []ScoredProperty{}
	err := s.aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: notDeleted}},
		{{Key: "$addFields", Value: bson.M{"score": bson.M{"$add": bson.A{
			bson.M{"$multiply": bson.A{0.5, bson.M{"$ifNull": bson.A{"$views", 0}}}},
			bson.M{"$ifNull": bson.A{"$saves", 0}},
			bson.M{"$multiply": bson.A{1.5, bson.M{"$ifNull": bson.A{"$shares", 0}}}},
		}}}}},
		{{Key: "$sort", Value: bson.D{{Key: "score", Value: -1}, {Key: "created_at", Value: -1}}}},
		{{Key: "$limit", Value: TrendingLimit}},
	}, &out, "trending")
	return out, err
}

// Recommendations ranks unseen properties by how many tags they share with the
// properties behind the user's most recent views.
func (s *listingQueryService) Recommendations(ctx context.Context, userID utils.SixID) ([]ScoredProperty, error) {
	seen, err := s.interactions.RecentViewedPropertyIDs(ctx, userID, RecommendationWindow)
	if err != nil {
		return nil, err
	}
	out := []ScoredProperty{}
	if len(seen) == 0 {
		return out, nil
	}

	tags, err := s.coll().Distinct(ctx, "tags", bson.M{"_id": bson.M{"$in": seen}})
	if err != nil {
		return nil, storageError("recommendation tags", err)
	}
	if len(tags) == 0 {
		return out, nil
	}

	err = s.aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"is_deleted": false,
			"_id":        bson.M{"$nin": seen},
			"tags":       bson.M{"$in": tags},
		}}},
		{{Key: "$addFields", Value: bson.M{"score": bson.M{"$size": bson.M{"$setIntersection": bson.A{"$tags", tags}}}}}},
		{{Key: "$sort", Value: bson.D{{Key: "score", Value: -1}, {Key: "created_at", Value: -1}}}},
		{{Key: "$limit", Value: RecommendationLimit}},
	}, &out, "recommendations")
	return out, err
}

// Related finds up to six listings of the same type in the same city priced within 10%.
func (s *listingQueryService) Related(ctx context.Context, id utils.SixID) ([]models.Property, error) {
	var ref models.Property
	if err := s.coll().FindOne(ctx, bson.M{"_id": id, "is_deleted": false}).Decode(&ref); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, storageError("related reference", err)
	}

	price := ref.Price.AmountValue()
	filter := bson.M{
		"is_deleted":    false,
		"_id":           bson.M{"$ne": ref.ID},
		"address.city":  ref.Address.City,
		"property_type": ref.PropertyType,
		"price.amount": bson.M{
			"$gte": price * (1 - relatedPriceBand),
			"$lte": price * (1 + relatedPriceBand),
		},
	}
	cursor, err := s.coll().Find(ctx, filter, options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(RelatedLimit))
	if err != nil {
		return nil, storageError("related properties", err)
	}
	items := []models.Property{}
	if err := cursor.All(ctx, &items); err != nil {
		return nil, storageError("related properties", err)
	}
	return items, nil
}
