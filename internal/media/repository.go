package media

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
)

const repoTimeout = 5 * time.Second

var recordColumns = []string{
	"id::text",
	"filename",
	"COALESCE(mime_type, '')",
	"COALESCE(alt, '')",
	"COALESCE(filesize, 0)::bigint",
	"COALESCE(url, '')",
	"created_at",
	"updated_at",
}

// querier is satisfied by *pgxpool.Pool and pgxmock pools.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Repository reads the CMS media collection. The CMS owns the schema.
type Repository struct {
	db    querier
	table string
}

// NewRepository builds a media repository over the "media" table.
func NewRepository(db querier) *Repository {
	return &Repository{db: db, table: "media"}
}

func (r *Repository) qb() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
}

// FindByFilename returns the record with the given unique filename.
func (r *Repository) FindByFilename(ctx context.Context, filename string) (Record, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	sqlStr, args, err := r.qb().Select(recordColumns...).
		From(r.table).
		Where(sq.Eq{"filename": filename}).
		Limit(1).
		ToSql()
	if err != nil {
		return Record{}, fmt.Errorf("build media query: %w", err)
	}

	rec, err := scanRecord(r.db.QueryRow(ctx, sqlStr, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrMediaNotFound
		}
		return Record{}, fmt.Errorf("find media: %w", err)
	}
	return rec, nil
}

// ListRecentlyUpdated returns up to limit records, most recently updated first.
func (r *Repository) ListRecentlyUpdated(ctx context.Context, limit int) ([]Record, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	sqlStr, args, err := r.qb().Select(recordColumns...).
		From(r.table).
		Where(sq.NotEq{"filename": nil}).
		OrderBy("updated_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build media query: %w", err)
	}

	rows, err := r.db.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("list media: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan media: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate media: %w", err)
	}
	return records, nil
}

func scanRecord(row pgx.Row) (Record, error) {
	var rec Record
	err := row.Scan(
		&rec.ID,
		&rec.Filename,
		&rec.MimeType,
		&rec.Alt,
		&rec.Filesize,
		&rec.URL,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	return rec, err
}
