package speaker_test

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/parlaclarin/pipeline/internal/adapter/postgres/speaker"
	"github.com/parlaclarin/pipeline/internal/adapter/postgres/testhelper"
)

// newRepo sets up a test DB and returns a ready Repo + pool.
func newRepo(t *testing.T) (*speaker.Repo, *pgxpool.Pool) {
	t.Helper()
	pool := testhelper.SetupTestDB(t)
	return speaker.New(pool), pool
}

func TestRepo_GetByIDs(t *testing.T) {
	t.Parallel()
	repo, pool := newRepo(t)
	ctx := context.Background()

	id1 := testhelper.SeedPerson(t, pool, "s", 1970, 1979)
	id2 := testhelper.SeedPerson(t, pool, "m", 1975, 1985)

	persons, err := repo.GetByIDs(ctx, []string{id1, id2, "p-does-not-exist"})
	if err != nil {
		t.Fatalf("GetByIDs: unexpected error: %v", err)
	}
	if len(persons) != 2 {
		t.Fatalf("expected 2 persons, got %d", len(persons))
	}
	for _, p := range persons {
		if p.Name == "" || p.GenderID == "" {
			t.Errorf("person %s has empty fields: %+v", p.PersonID, p)
		}
	}
}

func TestRepo_GetByIDs_Empty(t *testing.T) {
	t.Parallel()
	repo, _ := newRepo(t)

	persons, err := repo.GetByIDs(context.Background(), nil)
	if err != nil {
		t.Fatalf("GetByIDs(nil): unexpected error: %v", err)
	}
	if len(persons) != 0 {
		t.Fatalf("expected no persons, got %d", len(persons))
	}
}

func TestRepo_GetAffiliationsAndTerms(t *testing.T) {
	t.Parallel()
	repo, pool := newRepo(t)
	ctx := context.Background()

	id := testhelper.SeedPerson(t, pool, "s", 1970, 1979)

	affs, err := repo.GetAffiliations(ctx, []string{id})
	if err != nil {
		t.Fatalf("GetAffiliations: unexpected error: %v", err)
	}
	if len(affs) != 1 {
		t.Fatalf("expected 1 affiliation, got %d", len(affs))
	}
	if affs[0].PartyID != "s" || affs[0].StartYear != 1970 || affs[0].EndYear != 1979 {
		t.Errorf("affiliation mismatch: %+v", affs[0])
	}

	terms, err := repo.GetTerms(ctx, []string{id})
	if err != nil {
		t.Fatalf("GetTerms: unexpected error: %v", err)
	}
	if len(terms) != 1 {
		t.Fatalf("expected 1 term, got %d", len(terms))
	}
	if terms[0].OfficeTypeID != "member" {
		t.Errorf("term mismatch: %+v", terms[0])
	}
}

func TestRepo_UpsertPersons(t *testing.T) {
	t.Parallel()
	repo, _ := newRepo(t)
	ctx := context.Background()

	p := speaker.Person{PersonID: "p-upsert-1", Name: "First Name", GenderID: "man"}
	if err := repo.UpsertPersons(ctx, []speaker.Person{p}); err != nil {
		t.Fatalf("UpsertPersons: unexpected error: %v", err)
	}

	// Second upsert with the same id updates in place.
	p.Name = "Second Name"
	if err := repo.UpsertPersons(ctx, []speaker.Person{p}); err != nil {
		t.Fatalf("UpsertPersons (update): unexpected error: %v", err)
	}

	persons, err := repo.GetByIDs(ctx, []string{"p-upsert-1"})
	if err != nil {
		t.Fatalf("GetByIDs: unexpected error: %v", err)
	}
	if len(persons) != 1 || persons[0].Name != "Second Name" {
		t.Fatalf("expected updated person, got %+v", persons)
	}
}

func TestRepo_ReplaceAffiliations(t *testing.T) {
	t.Parallel()
	repo, pool := newRepo(t)
	ctx := context.Background()

	id := testhelper.SeedPerson(t, pool, "s", 1970, 1979)

	// Replace the seeded affiliation with two new ones.
	err := repo.ReplaceAffiliations(ctx, []speaker.Affiliation{
		{PersonID: id, PartyID: "s", StartYear: 1970, EndYear: 1975},
		{PersonID: id, PartyID: "c", StartYear: 1976, EndYear: 1982},
	})
	if err != nil {
		t.Fatalf("ReplaceAffiliations: unexpected error: %v", err)
	}

	affs, err := repo.GetAffiliations(ctx, []string{id})
	if err != nil {
		t.Fatalf("GetAffiliations: unexpected error: %v", err)
	}
	if len(affs) != 2 {
		t.Fatalf("expected 2 affiliations after replace, got %d", len(affs))
	}
	if affs[0].PartyID != "s" || affs[1].PartyID != "c" {
		t.Errorf("affiliations out of order: %+v", affs)
	}
}
