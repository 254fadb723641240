// Package speakers resolves segment speaker ids into person metadata with
// year-sensitive party and office lookups. Lookups are batched through a
// dataloader so a protocol's worth of segments costs three SQL queries, not
// three per segment.
package speakers

import (
	"context"
	"log/slog"
	"time"

	"github.com/graph-gophers/dataloader/v7"

	"github.com/parlaclarin/pipeline/internal/adapter/postgres/speaker"
	"github.com/parlaclarin/pipeline/internal/domain"
	"github.com/parlaclarin/pipeline/pkg/ctxutil"
)

const (
	maxBatch = 200
	wait     = 2 * time.Millisecond
)

type metadataRepo interface {
	GetByIDs(ctx context.Context, ids []string) ([]speaker.Person, error)
	GetAffiliations(ctx context.Context, ids []string) ([]speaker.Affiliation, error)
	GetTerms(ctx context.Context, ids []string) ([]speaker.Term, error)
}

// lookupKey identifies one resolution: the same person in different years
// can carry different party and office values.
type lookupKey struct {
	SpeakerID string
	Year      int
}

// Service resolves speaker metadata.
type Service struct {
	log    *slog.Logger
	loader *dataloader.Loader[lookupKey, *domain.SpeakerInfo]
}

// NewService creates a new speakers service.
func NewService(log *slog.Logger, repo metadataRepo) *Service {
	s := &Service{log: log.With("service", "speakers")}
	s.loader = dataloader.NewBatchedLoader(
		newBatchFn(repo),
		dataloader.WithWait[lookupKey, *domain.SpeakerInfo](wait),
		dataloader.WithBatchCapacity[lookupKey, *domain.SpeakerInfo](maxBatch),
	)
	return s
}

// GetSpeakerInfo resolves one speaker for one year, keyed back to the
// requesting utterance in the log. An unattributed speaker id or a person
// absent from the metadata store resolves to nil, never to an error:
// unresolvable speakers are an expected condition.
func (s *Service) GetSpeakerInfo(ctx context.Context, utteranceID, speakerID string, year int) (*domain.SpeakerInfo, error) {
	if speakerID == "" || speakerID == domain.UnknownSpeaker {
		return nil, nil
	}
	info, err := s.loader.Load(ctx, lookupKey{SpeakerID: speakerID, Year: year})()
	if err != nil {
		return nil, err
	}
	if info == nil {
		s.log.Debug("speaker not in metadata store",
			slog.String("utterance", utteranceID),
			slog.String("speaker", speakerID),
		)
	}
	return info, nil
}

// Enrich attaches speaker info to every segment in place. Unresolvable
// speakers get the unknown sentinel values, so downstream grouping always
// has every attribute present. Loads are requested up front and resolved
// after, letting the dataloader coalesce them into shared batches.
func (s *Service) Enrich(ctx context.Context, segments []domain.Segment) ([]domain.Segment, error) {
	thunks := make([]func() (*domain.SpeakerInfo, error), len(segments))
	for i := range segments {
		seg := &segments[i]
		if seg.SpeakerID == "" || seg.SpeakerID == domain.UnknownSpeaker {
			continue
		}
		thunks[i] = s.loader.Load(ctx, lookupKey{SpeakerID: seg.SpeakerID, Year: seg.Year})
	}

	for i := range segments {
		if thunks[i] == nil {
			segments[i].Speaker = domain.UnknownSpeakerInfo()
			continue
		}
		info, err := thunks[i]()
		if err != nil {
			return nil, err
		}
		if info == nil {
			s.log.Warn("speaker not in metadata store",
				slog.String("speaker", segments[i].SpeakerID),
				slog.String("segment", segments[i].ID),
				slog.String("protocol", ctxutil.ProtocolFromCtx(ctx)),
			)
			info = domain.UnknownSpeakerInfo()
		}
		segments[i].Speaker = info
	}
	return segments, nil
}

// newBatchFn builds the dataloader batch function: one persons query, one
// affiliations query, one terms query per batch, then per-key year
// resolution in memory.
func newBatchFn(repo metadataRepo) dataloader.BatchFunc[lookupKey, *domain.SpeakerInfo] {
	return func(ctx context.Context, keys []lookupKey) []*dataloader.Result[*domain.SpeakerInfo] {
		results := make([]*dataloader.Result[*domain.SpeakerInfo], len(keys))

		ids := make([]string, 0, len(keys))
		seen := make(map[string]bool, len(keys))
		for _, k := range keys {
			if !seen[k.SpeakerID] {
				seen[k.SpeakerID] = true
				ids = append(ids, k.SpeakerID)
			}
		}

		persons, err := repo.GetByIDs(ctx, ids)
		if err != nil {
			return failAll(results, err)
		}
		affs, err := repo.GetAffiliations(ctx, ids)
		if err != nil {
			return failAll(results, err)
		}
		terms, err := repo.GetTerms(ctx, ids)
		if err != nil {
			return failAll(results, err)
		}

		personByID := make(map[string]speaker.Person, len(persons))
		for _, p := range persons {
			personByID[p.PersonID] = p
		}
		affsByID := make(map[string][]speaker.Affiliation)
		for _, a := range affs {
			affsByID[a.PersonID] = append(affsByID[a.PersonID], a)
		}
		termsByID := make(map[string][]speaker.Term)
		for _, t := range terms {
			termsByID[t.PersonID] = append(termsByID[t.PersonID], t)
		}

		for i, k := range keys {
			p, ok := personByID[k.SpeakerID]
			if !ok {
				results[i] = &dataloader.Result[*domain.SpeakerInfo]{}
				continue
			}
			results[i] = &dataloader.Result[*domain.SpeakerInfo]{
				Data: resolve(p, affsByID[k.SpeakerID], termsByID[k.SpeakerID], k.Year),
			}
		}
		return results
	}
}

// resolve builds the year-specific view of one person.
func resolve(p speaker.Person, affs []speaker.Affiliation, terms []speaker.Term, year int) *domain.SpeakerInfo {
	info := domain.UnknownSpeakerInfo()
	info.PersonID = p.PersonID
	if p.Name != "" {
		info.Name = p.Name
	}
	if p.GenderID != "" {
		info.GenderID = p.GenderID
	}
	for _, a := range affs {
		if year >= a.StartYear && year <= a.EndYear {
			info.PartyID = a.PartyID
			break
		}
	}
	for _, t := range terms {
		if year >= t.StartYear && year <= t.EndYear {
			info.OfficeTypeID = t.OfficeTypeID
			if t.SubOfficeTypeID != "" {
				info.SubOfficeTypeID = t.SubOfficeTypeID
			}
			break
		}
	}
	return info
}

func failAll(results []*dataloader.Result[*domain.SpeakerInfo], err error) []*dataloader.Result[*domain.SpeakerInfo] {
	for i := range results {
		results[i] = &dataloader.Result[*domain.SpeakerInfo]{Error: err}
	}
	return results
}
