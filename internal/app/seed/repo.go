// Package seed loads metadata-store tables from TSV dumps of the corpus
// release: persons, party affiliations, terms of office, and the protocol
// source index.
package seed

import (
	"context"

	"github.com/parlaclarin/pipeline/internal/adapter/postgres/speaker"
	"github.com/parlaclarin/pipeline/internal/domain"
)

// SpeakerBulkRepo is the batch contract the seeding pipeline needs from the
// speaker store. Implemented by speaker.Repo.
type SpeakerBulkRepo interface {
	UpsertPersons(ctx context.Context, persons []speaker.Person) error
	ReplaceAffiliations(ctx context.Context, affs []speaker.Affiliation) error
	ReplaceTerms(ctx context.Context, terms []speaker.Term) error
}

// SourceIndexBulkRepo is the batch contract for the protocol source index.
// Implemented by sourceindex.Repo.
type SourceIndexBulkRepo interface {
	Upsert(ctx context.Context, records []domain.SourceIndexRecord) error
}

// TxRunner wraps a unit of work in a transaction. Implemented by
// postgres.TxManager.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}
