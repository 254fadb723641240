// Package speaker implements person metadata persistence using PostgreSQL.
package speaker

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/parlaclarin/pipeline/internal/adapter/postgres"
)

// Person is one persons row.
type Person struct {
	PersonID string
	Name     string
	GenderID string
}

// Affiliation is one party_affiliations row. Bounds are inclusive years.
type Affiliation struct {
	PersonID  string
	PartyID   string
	StartYear int
	EndYear   int
}

// Term is one terms_of_office row. Bounds are inclusive years.
type Term struct {
	PersonID        string
	OfficeTypeID    string
	SubOfficeTypeID string
	StartYear       int
	EndYear         int
}

var sq = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

// Repo provides person, party-affiliation, and term-of-office persistence.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new speaker metadata repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// GetByIDs returns the persons rows for the given ids. Missing ids are
// simply absent from the result, not an error.
func (r *Repo) GetByIDs(ctx context.Context, ids []string) ([]Person, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	sql, args, err := sq.
		Select("person_id", "name", "gender_id").
		From("persons").
		Where(squirrel.Eq{"person_id": ids}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build persons query: %w", err)
	}

	q := postgres.QuerierFromCtx(ctx, r.pool)
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, postgres.MapError(err, "persons", "batch")
	}

	persons, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Person, error) {
		var p Person
		err := row.Scan(&p.PersonID, &p.Name, &p.GenderID)
		return p, err
	})
	if err != nil {
		return nil, postgres.MapError(err, "persons", "batch")
	}
	return persons, nil
}

// GetAffiliations returns all party affiliations of the given persons, in a
// stable order. Year filtering is the caller's concern; a person's whole
// history is small.
func (r *Repo) GetAffiliations(ctx context.Context, ids []string) ([]Affiliation, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	sql, args, err := sq.
		Select("person_id", "party_id", "start_year", "end_year").
		From("party_affiliations").
		Where(squirrel.Eq{"person_id": ids}).
		OrderBy("person_id", "start_year").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build affiliations query: %w", err)
	}

	q := postgres.QuerierFromCtx(ctx, r.pool)
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, postgres.MapError(err, "party_affiliations", "batch")
	}

	affs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Affiliation, error) {
		var a Affiliation
		err := row.Scan(&a.PersonID, &a.PartyID, &a.StartYear, &a.EndYear)
		return a, err
	})
	if err != nil {
		return nil, postgres.MapError(err, "party_affiliations", "batch")
	}
	return affs, nil
}

// GetTerms returns all terms of office of the given persons, in a stable
// order.
func (r *Repo) GetTerms(ctx context.Context, ids []string) ([]Term, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	sql, args, err := sq.
		Select("person_id", "office_type_id", "sub_office_type_id", "start_year", "end_year").
		From("terms_of_office").
		Where(squirrel.Eq{"person_id": ids}).
		OrderBy("person_id", "start_year").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build terms query: %w", err)
	}

	q := postgres.QuerierFromCtx(ctx, r.pool)
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, postgres.MapError(err, "terms_of_office", "batch")
	}

	terms, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Term, error) {
		var t Term
		err := row.Scan(&t.PersonID, &t.OfficeTypeID, &t.SubOfficeTypeID, &t.StartYear, &t.EndYear)
		return t, err
	})
	if err != nil {
		return nil, postgres.MapError(err, "terms_of_office", "batch")
	}
	return terms, nil
}

// UpsertPersons inserts or updates persons rows in one batch.
func (r *Repo) UpsertPersons(ctx context.Context, persons []Person) error {
	if len(persons) == 0 {
		return nil
	}

	insert := sq.
		Insert("persons").
		Columns("person_id", "name", "gender_id")
	for _, p := range persons {
		insert = insert.Values(p.PersonID, p.Name, p.GenderID)
	}
	insert = insert.Suffix("ON CONFLICT (person_id) DO UPDATE SET name = EXCLUDED.name, gender_id = EXCLUDED.gender_id")

	sql, args, err := insert.ToSql()
	if err != nil {
		return fmt.Errorf("build persons upsert: %w", err)
	}

	q := postgres.QuerierFromCtx(ctx, r.pool)
	if _, err := q.Exec(ctx, sql, args...); err != nil {
		return postgres.MapError(err, "persons", "batch")
	}
	return nil
}

// ReplaceAffiliations deletes and re-inserts the party affiliations of the
// given persons. Run inside a transaction when atomicity matters.
func (r *Repo) ReplaceAffiliations(ctx context.Context, affs []Affiliation) error {
	if len(affs) == 0 {
		return nil
	}

	ids := make([]string, 0, len(affs))
	seen := make(map[string]bool, len(affs))
	for _, a := range affs {
		if !seen[a.PersonID] {
			seen[a.PersonID] = true
			ids = append(ids, a.PersonID)
		}
	}

	q := postgres.QuerierFromCtx(ctx, r.pool)

	del, args, err := sq.Delete("party_affiliations").Where(squirrel.Eq{"person_id": ids}).ToSql()
	if err != nil {
		return fmt.Errorf("build affiliations delete: %w", err)
	}
	if _, err := q.Exec(ctx, del, args...); err != nil {
		return postgres.MapError(err, "party_affiliations", "batch")
	}

	insert := sq.
		Insert("party_affiliations").
		Columns("person_id", "party_id", "start_year", "end_year")
	for _, a := range affs {
		insert = insert.Values(a.PersonID, a.PartyID, a.StartYear, a.EndYear)
	}
	sql, args, err := insert.ToSql()
	if err != nil {
		return fmt.Errorf("build affiliations insert: %w", err)
	}
	if _, err := q.Exec(ctx, sql, args...); err != nil {
		return postgres.MapError(err, "party_affiliations", "batch")
	}
	return nil
}

// ReplaceTerms deletes and re-inserts the terms of office of the given
// persons. Run inside a transaction when atomicity matters.
func (r *Repo) ReplaceTerms(ctx context.Context, terms []Term) error {
	if len(terms) == 0 {
		return nil
	}

	ids := make([]string, 0, len(terms))
	seen := make(map[string]bool, len(terms))
	for _, t := range terms {
		if !seen[t.PersonID] {
			seen[t.PersonID] = true
			ids = append(ids, t.PersonID)
		}
	}

	q := postgres.QuerierFromCtx(ctx, r.pool)

	del, args, err := sq.Delete("terms_of_office").Where(squirrel.Eq{"person_id": ids}).ToSql()
	if err != nil {
		return fmt.Errorf("build terms delete: %w", err)
	}
	if _, err := q.Exec(ctx, del, args...); err != nil {
		return postgres.MapError(err, "terms_of_office", "batch")
	}

	insert := sq.
		Insert("terms_of_office").
		Columns("person_id", "office_type_id", "sub_office_type_id", "start_year", "end_year")
	for _, t := range terms {
		insert = insert.Values(t.PersonID, t.OfficeTypeID, t.SubOfficeTypeID, t.StartYear, t.EndYear)
	}
	sql, args, err := insert.ToSql()
	if err != nil {
		return fmt.Errorf("build terms insert: %w", err)
	}
	if _, err := q.Exec(ctx, sql, args...); err != nil {
		return postgres.MapError(err, "terms_of_office", "batch")
	}
	return nil
}
