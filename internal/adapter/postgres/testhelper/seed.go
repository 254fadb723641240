package testhelper

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/parlaclarin/pipeline/internal/domain"
)

// uniqueSuffix returns a short unique string for generating non-conflicting test data.
func uniqueSuffix() string {
	return uuid.New().String()[:8]
}

// SeedPerson creates a person with one party affiliation and one term of
// office covering the given years. Returns the generated person id.
func SeedPerson(t *testing.T, pool *pgxpool.Pool, partyID string, startYear, endYear int) string {
	t.Helper()
	ctx := context.Background()

	suffix := uniqueSuffix()
	personID := "p-" + suffix

	_, err := pool.Exec(ctx,
		`INSERT INTO persons (person_id, name, gender_id) VALUES ($1, $2, $3)`,
		personID, "Test Person "+suffix, "woman",
	)
	if err != nil {
		t.Fatalf("testhelper: SeedPerson insert person: %v", err)
	}

	_, err = pool.Exec(ctx,
		`INSERT INTO party_affiliations (person_id, party_id, start_year, end_year)
		 VALUES ($1, $2, $3, $4)`,
		personID, partyID, startYear, endYear,
	)
	if err != nil {
		t.Fatalf("testhelper: SeedPerson insert affiliation: %v", err)
	}

	_, err = pool.Exec(ctx,
		`INSERT INTO terms_of_office (person_id, office_type_id, sub_office_type_id, start_year, end_year)
		 VALUES ($1, $2, $3, $4, $5)`,
		personID, "member", "unknown", startYear, endYear,
	)
	if err != nil {
		t.Fatalf("testhelper: SeedPerson insert term: %v", err)
	}

	return personID
}

// SeedSourceIndex creates one source_index row with a generated protocol
// name for the given year. Returns the record.
func SeedSourceIndex(t *testing.T, pool *pgxpool.Pool, year int) domain.SourceIndexRecord {
	t.Helper()
	ctx := context.Background()

	suffix := uniqueSuffix()
	rec := domain.SourceIndexRecord{
		ProtocolName: "prot-" + suffix,
		Year:         year,
		ChamberID:    "ek",
		Filename:     "prot-" + suffix + ".xml",
	}

	_, err := pool.Exec(ctx,
		`INSERT INTO source_index (protocol_name, year, chamber_id, filename)
		 VALUES ($1, $2, $3, $4)`,
		rec.ProtocolName, rec.Year, rec.ChamberID, rec.Filename,
	)
	if err != nil {
		t.Fatalf("testhelper: SeedSourceIndex insert: %v", err)
	}

	return rec
}
