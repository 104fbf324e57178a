package db

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names.
const (
	PropertiesCollection     = "properties"
	UsersCollection          = "users"
	InteractionsCollection   = "interactions"
	AccountActionsCollection = "account_actions"
	AgentProfilesCollection  = "agent_profiles"
	EstateProfilesCollection = "estate_profiles"
)

// collectionIndexes lists the indexes each collection needs. Unique indexes on
// property_id and slug are the backstop for generated identifiers.
var collectionIndexes = map[string][]mongo.IndexModel{
	PropertiesCollection: {
		{Keys: bson.D{{Key: "property_id", Value: 1}}, Options: options.Index().SetUnique(true).SetName("property_id_unique")},
		{Keys: bson.D{{Key: "slug", Value: 1}}, Options: options.Index().SetUnique(true).SetName("slug_unique")},
		{Keys: bson.D{{Key: "address.city", Value: 1}, {Key: "address.area", Value: 1}}},
		{Keys: bson.D{{Key: "property_type", Value: 1}, {Key: "listing_type", Value: 1}}},
		{Keys: bson.D{{Key: "price.amount", Value: 1}}},
		{Keys: bson.D{{Key: "approval_status", Value: 1}}},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "owner", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "tags", Value: 1}}},
	},
	UsersCollection: {
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true).SetName("email_unique")},
	},
	InteractionsCollection: {
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "action", Value: 1}, {Key: "timestamp", Value: -1}}},
	},
	AccountActionsCollection: {
		{Keys: bson.D{{Key: "token_hash", Value: 1}}, Options: options.Index().SetUnique(true)},
		// Expired tokens are removed by MongoDB's TTL monitor.
		{Keys: bson.D{{Key: "expires_at", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(0)},
	},
	AgentProfilesCollection: {
		{Keys: bson.D{{Key: "user_id", Value: 1}}, Options: options.Index().SetUnique(true)},
	},
	EstateProfilesCollection: {
		{Keys: bson.D{{Key: "user_id", Value: 1}}, Options: options.Index().SetUnique(true)},
	},
}

// EnsureIndexes creates any missing indexes. Creating an existing index is a no-op in MongoDB.
func EnsureIndexes(ctx context.Context, database *mongo.Database) error {
	for name, models := range collectionIndexes {
		if _, err := database.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", name, err)
		}
	}
	return nil
}
