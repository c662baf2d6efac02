// Package store persists archive records in Postgres and serves both the
// vector similarity read path and the metadata browse read path.
package store

import (
	"context"

	"github.com/warisan-digital/arkib/internal/model"
)

// BrowseField selects which metadata field a browse call filters on.
type BrowseField string

const (
	FilterTag        BrowseField = "tag"
	FilterMediaType  BrowseField = "media_type"
	FilterTitle      BrowseField = "title"
	FilterDateAfter  BrowseField = "date_after"
	FilterDateBefore BrowseField = "date_before"
)

// BrowseFilter specifies criteria for a metadata browse. The zero value
// lists all records, newest first, limited to DefaultBrowseLimit.
type BrowseFilter struct {
	Field     BrowseField `json:"field,omitempty"`
	Value     string      `json:"value,omitempty"`
	Limit     int         `json:"limit,omitempty"`
	OrderBy   string      `json:"order_by,omitempty"` // created_at, updated_at, title
	OrderDesc *bool       `json:"order_desc,omitempty"`
}

// Browse limit bounds.
const (
	DefaultBrowseLimit = 20
	MaxBrowseLimit     = 50
)

// Store defines the persistence interface for the archive backend.
type Store interface {
	// Vector read path. Returns similarity-scored candidates; never returns
	// raw embedding vectors.
	MatchArchives(ctx context.Context, embedding []float32, threshold float64, count int) ([]model.SearchResult, error)

	// Metadata read path. Never similarity-scored.
	Browse(ctx context.Context, filter BrowseFilter) ([]model.Archive, error)

	// Record CRUD.
	GetArchive(ctx context.Context, id string) (*model.Archive, error)
	CreateArchive(ctx context.Context, a *model.Archive, embedding []float32) error
	UpdateArchive(ctx context.Context, a *model.Archive, embedding []float32) error
	DeleteArchive(ctx context.Context, id string) error

	// Lifecycle.
	Migrate(ctx context.Context) error
	Close() error
}
