// Package sourceindex implements the protocol catalogue using PostgreSQL.
package sourceindex

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/parlaclarin/pipeline/internal/adapter/postgres"
	"github.com/parlaclarin/pipeline/internal/domain"
)

var sq = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

// Repo provides source-index and speaker-note persistence.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new source index repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// Get returns one catalogue record by protocol name.
func (r *Repo) Get(ctx context.Context, protocolName string) (*domain.SourceIndexRecord, error) {
	sql, args, err := sq.
		Select("protocol_name", "year", "chamber_id", "filename").
		From("source_index").
		Where(squirrel.Eq{"protocol_name": protocolName}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build source_index query: %w", err)
	}

	q := postgres.QuerierFromCtx(ctx, r.pool)
	var rec domain.SourceIndexRecord
	err = q.QueryRow(ctx, sql, args...).Scan(&rec.ProtocolName, &rec.Year, &rec.ChamberID, &rec.Filename)
	if err != nil {
		return nil, postgres.MapError(err, "source_index", protocolName)
	}
	return &rec, nil
}

// LoadAll returns the whole catalogue keyed by protocol name. The merger
// looks protocols up per segment, so the batch driver loads the index once
// up front instead of querying per segment.
func (r *Repo) LoadAll(ctx context.Context) (map[string]domain.SourceIndexRecord, error) {
	sql, args, err := sq.
		Select("protocol_name", "year", "chamber_id", "filename").
		From("source_index").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build source_index query: %w", err)
	}

	q := postgres.QuerierFromCtx(ctx, r.pool)
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, postgres.MapError(err, "source_index", "all")
	}

	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.SourceIndexRecord, error) {
		var rec domain.SourceIndexRecord
		err := row.Scan(&rec.ProtocolName, &rec.Year, &rec.ChamberID, &rec.Filename)
		return rec, err
	})
	if err != nil {
		return nil, postgres.MapError(err, "source_index", "all")
	}

	index := make(map[string]domain.SourceIndexRecord, len(records))
	for _, rec := range records {
		index[rec.ProtocolName] = rec
	}
	return index, nil
}

// Upsert inserts or updates catalogue records in one batch.
func (r *Repo) Upsert(ctx context.Context, records []domain.SourceIndexRecord) error {
	if len(records) == 0 {
		return nil
	}

	insert := sq.
		Insert("source_index").
		Columns("protocol_name", "year", "chamber_id", "filename")
	for _, rec := range records {
		insert = insert.Values(rec.ProtocolName, rec.Year, rec.ChamberID, rec.Filename)
	}
	insert = insert.Suffix("ON CONFLICT (protocol_name) DO UPDATE SET year = EXCLUDED.year, chamber_id = EXCLUDED.chamber_id, filename = EXCLUDED.filename")

	sql, args, err := insert.ToSql()
	if err != nil {
		return fmt.Errorf("build source_index upsert: %w", err)
	}

	q := postgres.QuerierFromCtx(ctx, r.pool)
	if _, err := q.Exec(ctx, sql, args...); err != nil {
		return postgres.MapError(err, "source_index", "batch")
	}
	return nil
}

// SaveSpeakerNotes stores the speaker-introduction notes of one protocol.
func (r *Repo) SaveSpeakerNotes(ctx context.Context, protocolName string, notes map[string]string) error {
	if len(notes) == 0 {
		return nil
	}

	insert := sq.
		Insert("speaker_notes").
		Columns("note_id", "protocol_name", "note")
	for id, text := range notes {
		insert = insert.Values(id, protocolName, text)
	}
	insert = insert.Suffix("ON CONFLICT (note_id) DO UPDATE SET note = EXCLUDED.note")

	sql, args, err := insert.ToSql()
	if err != nil {
		return fmt.Errorf("build speaker_notes upsert: %w", err)
	}

	q := postgres.QuerierFromCtx(ctx, r.pool)
	if _, err := q.Exec(ctx, sql, args...); err != nil {
		return postgres.MapError(err, "speaker_notes", protocolName)
	}
	return nil
}
