package models

import (
	"tvicl/server/internal/utils"
)

// Base carries the internal document key shared by every stored model.
type Base struct {
	ID utils.SixID `bson:"_id" json:"id"`
}

// GenIDIfEmpty assigns a fresh id unless one is already set.
func (m *Base) GenIDIfEmpty() {
	if m.ID.IsZero() {
		m.ID = utils.NewSixID()
	}
}

func NewBase() Base {
	return Base{ID: utils.NewSixID()}
}
