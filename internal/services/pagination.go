package services

import (
	"math"

	"go.mongodb.org/mongo-driver/mongo/options"

	"tvicl/server/internal/models"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	// MaxPage keeps the skip offset far from int64 overflow; pages past the data are empty.
	MaxPage = math.MaxInt32
)

// Pagination is a 1-based page request. Zero values select the first page of DefaultPageSize.
type Pagination struct {
	Page  int
	Limit int
}

func (p Pagination) normalized() Pagination {
	switch {
	case p.Page < 1:
		p.Page = 1
	case p.Page > MaxPage:
		p.Page = MaxPage
	}
	switch {
	case p.Limit < 1:
		p.Limit = DefaultPageSize
	case p.Limit > MaxPageSize:
		p.Limit = MaxPageSize
	}
	return p
}

func (p Pagination) findOptions() *options.FindOptions {
	return options.Find().
		SetSkip(int64(p.Page-1) * int64(p.Limit)).
		SetLimit(int64(p.Limit))
}

// PropertyPage is one page of properties together with the total number of matches.
type PropertyPage struct {
	Items      []models.Property `json:"items"`
	Total      int64             `json:"total"`
	Page       int               `json:"page"`
	Limit      int               `json:"limit"`
	TotalPages int64             `json:"totalPages"`
}

func newPropertyPage(items []models.Property, total int64, p Pagination) *PropertyPage {
	if items == nil {
		items = []models.Property{}
	}
	pages := total / int64(p.Limit)
	if total%int64(p.Limit) != 0 {
		pages++
	}
	return &PropertyPage{Items: items, Total: total, Page: p.Page, Limit: p.Limit, TotalPages: pages}
}
