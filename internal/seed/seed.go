// Package seed loads archive records from YAML seed files and bulk
// imports them into the store with embeddings attached.
package seed

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/warisan-digital/arkib/internal/db"
	"github.com/warisan-digital/arkib/internal/search"
)

// File is the YAML seed file layout.
type File struct {
	Archives []Record `yaml:"archives"`
}

// Record is one archive entry in a seed file. ID is optional; a missing
// ID gets a generated UUID, so re-importing a file with explicit IDs
// updates records in place while ID-less entries always insert.
type Record struct {
	ID           string   `yaml:"id"`
	Title        string   `yaml:"title"`
	Description  string   `yaml:"description"`
	MediaTypes   []string `yaml:"media_types"`
	Tags         []string `yaml:"tags"`
	Dates        []string `yaml:"dates"`
	StoragePaths []string `yaml:"storage_paths"`
	FileURIs     []string `yaml:"file_uris"`
}

// LoadFile parses a YAML seed file into archive records.
func LoadFile(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "seed: read %s", path)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrapf(err, "seed: parse %s", path)
	}

	for i, rec := range f.Archives {
		if strings.TrimSpace(rec.Title) == "" {
			return nil, eris.Errorf("seed: archive %d has no title", i)
		}
	}

	return f.Archives, nil
}

// EmbeddingText builds the text that represents an archive in the vector
// index: title, description, and tags joined into one passage.
func EmbeddingText(rec Record) string {
	parts := []string{rec.Title}
	if rec.Description != "" {
		parts = append(parts, rec.Description)
	}
	if len(rec.Tags) > 0 {
		parts = append(parts, strings.Join(rec.Tags, ", "))
	}
	return strings.Join(parts, "\n")
}

// importColumns matches the archives table layout for bulk upsert.
var importColumns = []string{
	"id", "title", "description", "media_types", "tags", "dates",
	"storage_paths", "file_uris", "embedding", "created_at", "updated_at",
}

// Import embeds each record and bulk-upserts the batch into the archives
// table. It returns the number of rows written. Embedding failures abort
// the import; nothing is written unless every record embedded.
func Import(ctx context.Context, pool db.Pool, embedder search.Embedder, records []Record) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	rows := make([][]any, 0, len(records))

	for i, rec := range records {
		vec, err := embedder.Embed(ctx, EmbeddingText(rec))
		if err != nil {
			return 0, eris.Wrapf(err, "seed: embed archive %d (%s)", i, rec.Title)
		}

		id := rec.ID
		if id == "" {
			id = uuid.NewString()
		}

		rows = append(rows, []any{
			id, rec.Title, rec.Description,
			orEmpty(rec.MediaTypes), orEmpty(rec.Tags), orEmpty(rec.Dates),
			orEmpty(rec.StoragePaths), orEmpty(rec.FileURIs),
			pgvector.NewVector(vec), now, now,
		})

		zap.L().Debug("archive embedded",
			zap.String("id", id),
			zap.String("title", rec.Title),
		)
	}

	written, err := db.BulkUpsert(ctx, pool, db.UpsertConfig{
		Table:        "archives",
		Columns:      importColumns,
		ConflictKeys: []string{"id"},
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "seed: upsert archives")
	}

	return written, nil
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
