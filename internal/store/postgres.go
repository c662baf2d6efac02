package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	pgxvector "github.com/pgvector/pgvector-go/pgx"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/warisan-digital/arkib/internal/db"
	"github.com/warisan-digital/arkib/internal/model"
)

// PostgresStore implements Store using pgxpool with the pgvector
// extension for similarity search.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const (
	matchArchivesSQL = `SELECT id, title, description, media_types, tags, dates, storage_paths, file_uris, created_at, updated_at, 1 - (embedding <=> $1) AS similarity FROM archives WHERE embedding IS NOT NULL AND 1 - (embedding <=> $1) >= $2 ORDER BY embedding <=> $1 LIMIT $3`

	getArchiveSQL = `SELECT id, title, description, media_types, tags, dates, storage_paths, file_uris, created_at, updated_at FROM archives WHERE id = $1`

	insertArchiveSQL = `INSERT INTO archives (id, title, description, media_types, tags, dates, storage_paths, file_uris, embedding, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	updateArchiveSQL = `UPDATE archives SET title = $1, description = $2, media_types = $3, tags = $4, dates = $5, storage_paths = $6, file_uris = $7, embedding = COALESCE($8, embedding), updated_at = $9 WHERE id = $10`

	deleteArchiveSQL = `DELETE FROM archives WHERE id = $1`
)

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hottest store operations.
var preparedStatements = map[string]string{
	"match_archives": matchArchivesSQL,
	"get_archive":    getArchiveSQL,
}

// NewPostgres creates a PostgresStore with a connection pool. Each new
// connection registers the pgvector types and prepares the hot queries.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		if err := pgxvector.RegisterTypes(ctx, conn); err != nil {
			return eris.Wrap(err, "postgres: register vector types")
		}
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool for helpers that need direct
// query access (e.g., bulk import).
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS archives (
	id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	title         TEXT NOT NULL,
	description   TEXT,
	media_types   TEXT[] NOT NULL DEFAULT '{}',
	tags          TEXT[] NOT NULL DEFAULT '{}',
	dates         TEXT[] NOT NULL DEFAULT '{}',
	storage_paths TEXT[] NOT NULL DEFAULT '{}',
	file_uris     TEXT[] NOT NULL DEFAULT '{}',
	embedding     vector(1536),
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_archives_tags ON archives USING GIN(tags);
CREATE INDEX IF NOT EXISTS idx_archives_media_types ON archives USING GIN(media_types);
CREATE INDEX IF NOT EXISTS idx_archives_created_at ON archives(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_archives_embedding ON archives
	USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100);
`

// Migrate creates the archives schema.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// Ping verifies database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// MatchArchives runs a cosine-similarity query against the archive
// embeddings. Results carry a similarity score in [0,1] and never include
// the stored vectors themselves.
func (s *PostgresStore) MatchArchives(ctx context.Context, embedding []float32, threshold float64, count int) ([]model.SearchResult, error) {
	rows, err := s.pool.Query(ctx, matchArchivesSQL, pgvector.NewVector(embedding), threshold, count)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: match archives")
	}
	defer rows.Close()

	var results []model.SearchResult
	for rows.Next() {
		var r model.SearchResult
		var similarity float64
		if err := rows.Scan(
			&r.ID, &r.Title, &r.Description, &r.MediaTypes, &r.Tags, &r.Dates,
			&r.StoragePaths, &r.FileURIs, &r.CreatedAt, &r.UpdatedAt, &similarity,
		); err != nil {
			return nil, eris.Wrap(err, "postgres: scan match row")
		}
		r.Similarity = model.Float64Ptr(similarity)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: match rows")
	}
	return results, nil
}

// browse order columns that may appear in ORDER BY. Anything else falls
// back to created_at.
var browseOrderColumns = map[string]bool{
	"created_at": true,
	"updated_at": true,
	"title":      true,
}

// Browse lists archives filtered by one metadata field. Unknown filter
// fields are ignored (unfiltered listing) rather than rejected.
func (s *PostgresStore) Browse(ctx context.Context, filter BrowseFilter) ([]model.Archive, error) {
	sqlText, args := buildBrowseQuery(filter)

	rows, err := s.pool.Query(ctx, sqlText, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: browse archives")
	}
	defer rows.Close()

	var archives []model.Archive
	for rows.Next() {
		var a model.Archive
		if err := rows.Scan(
			&a.ID, &a.Title, &a.Description, &a.MediaTypes, &a.Tags, &a.Dates,
			&a.StoragePaths, &a.FileURIs, &a.CreatedAt, &a.UpdatedAt,
		); err != nil {
			return nil, eris.Wrap(err, "postgres: scan browse row")
		}
		archives = append(archives, a)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: browse rows")
	}
	return archives, nil
}

// buildBrowseQuery assembles the browse SQL and arguments from a filter.
func buildBrowseQuery(filter BrowseFilter) (string, []any) {
	var (
		where string
		args  []any
	)

	if filter.Value != "" {
		switch filter.Field {
		case FilterTag:
			where = "WHERE $1 = ANY(tags)"
			args = append(args, filter.Value)
		case FilterMediaType:
			where = "WHERE $1 = ANY(media_types)"
			args = append(args, filter.Value)
		case FilterTitle:
			where = "WHERE title ILIKE '%' || $1 || '%'"
			args = append(args, filter.Value)
		case FilterDateAfter:
			where = "WHERE created_at >= $1::timestamptz"
			args = append(args, filter.Value)
		case FilterDateBefore:
			where = "WHERE created_at <= $1::timestamptz"
			args = append(args, filter.Value)
		case "":
			// No filter field: value alone means nothing, list all.
		default:
			zap.L().Warn("browse: unknown filter field ignored",
				zap.String("field", string(filter.Field)),
			)
		}
	}

	orderBy := filter.OrderBy
	if !browseOrderColumns[orderBy] {
		orderBy = "created_at"
	}
	direction := "DESC"
	if filter.OrderDesc != nil && !*filter.OrderDesc {
		direction = "ASC"
	}

	limit := filter.Limit
	if limit < 1 {
		limit = DefaultBrowseLimit
	}
	if limit > MaxBrowseLimit {
		limit = MaxBrowseLimit
	}

	var b strings.Builder
	b.WriteString("SELECT id, title, description, media_types, tags, dates, storage_paths, file_uris, created_at, updated_at FROM archives ")
	if where != "" {
		b.WriteString(where)
		b.WriteString(" ")
	}
	fmt.Fprintf(&b, "ORDER BY %s %s LIMIT %d", orderBy, direction, limit)
	return b.String(), args
}

// GetArchive fetches one archive by ID. Returns nil when not found.
func (s *PostgresStore) GetArchive(ctx context.Context, id string) (*model.Archive, error) {
	var a model.Archive
	err := s.pool.QueryRow(ctx, getArchiveSQL, id).Scan(
		&a.ID, &a.Title, &a.Description, &a.MediaTypes, &a.Tags, &a.Dates,
		&a.StoragePaths, &a.FileURIs, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: get archive")
	}
	return &a, nil
}

// CreateArchive inserts a new archive with its embedding. A missing ID is
// assigned; timestamps default to now.
func (s *PostgresStore) CreateArchive(ctx context.Context, a *model.Archive, embedding []float32) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now

	var vec any
	if len(embedding) > 0 {
		vec = pgvector.NewVector(embedding)
	}

	_, err := s.pool.Exec(ctx, insertArchiveSQL,
		a.ID, a.Title, a.Description,
		orEmpty(a.MediaTypes), orEmpty(a.Tags), orEmpty(a.Dates),
		orEmpty(a.StoragePaths), orEmpty(a.FileURIs),
		vec, a.CreatedAt, a.UpdatedAt,
	)
	return eris.Wrap(err, "postgres: create archive")
}

// UpdateArchive rewrites an archive's metadata. A nil embedding keeps the
// stored vector.
func (s *PostgresStore) UpdateArchive(ctx context.Context, a *model.Archive, embedding []float32) error {
	if a.ID == "" {
		return eris.New("postgres: update archive: missing id")
	}
	a.UpdatedAt = time.Now().UTC()

	var vec any
	if len(embedding) > 0 {
		vec = pgvector.NewVector(embedding)
	}

	tag, err := s.pool.Exec(ctx, updateArchiveSQL,
		a.Title, a.Description,
		orEmpty(a.MediaTypes), orEmpty(a.Tags), orEmpty(a.Dates),
		orEmpty(a.StoragePaths), orEmpty(a.FileURIs),
		vec, a.UpdatedAt, a.ID,
	)
	if err != nil {
		return eris.Wrap(err, "postgres: update archive")
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: update archive: %s not found", a.ID)
	}
	return nil
}

// DeleteArchive removes an archive by ID.
func (s *PostgresStore) DeleteArchive(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, deleteArchiveSQL, id)
	if err != nil {
		return eris.Wrap(err, "postgres: delete archive")
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: delete archive: %s not found", id)
	}
	return nil
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
