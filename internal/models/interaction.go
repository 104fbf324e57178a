package models

import (
	"time"

	"tvicl/server/internal/utils"
)

type InteractionAction string

const (
	InteractionView   InteractionAction = "view"
	InteractionSave   InteractionAction = "save"
	InteractionShare  InteractionAction = "share"
	InteractionSearch InteractionAction = "search"
)

var interactionActions = enum[InteractionAction]{InteractionView, InteractionSave, InteractionShare, InteractionSearch}

func (a InteractionAction) IsValid() bool { return interactionActions.has(a) }

// Interaction is an append-only record of a user engaging with the catalogue.
// PropertyID holds the internal id of the property and is empty for searches.
type Interaction struct {
	Base        `bson:",inline"`
	UserID      utils.SixID       `bson:"user_id" json:"userId"`
	PropertyID  utils.SixID       `bson:"property_id,omitempty" json:"propertyId,omitempty"`
	Action      InteractionAction `bson:"action" json:"action"`
	SearchQuery string            `bson:"search_query,omitempty" json:"searchQuery,omitempty"`
	Timestamp   time.Time         `bson:"timestamp" json:"timestamp"`
}
