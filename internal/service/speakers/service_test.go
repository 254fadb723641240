package speakers

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parlaclarin/pipeline/internal/adapter/postgres/speaker"
	"github.com/parlaclarin/pipeline/internal/domain"
)

type mockRepo struct {
	getByIDsFn        func(ctx context.Context, ids []string) ([]speaker.Person, error)
	getAffiliationsFn func(ctx context.Context, ids []string) ([]speaker.Affiliation, error)
	getTermsFn        func(ctx context.Context, ids []string) ([]speaker.Term, error)
}

func (m *mockRepo) GetByIDs(ctx context.Context, ids []string) ([]speaker.Person, error) {
	return m.getByIDsFn(ctx, ids)
}
func (m *mockRepo) GetAffiliations(ctx context.Context, ids []string) ([]speaker.Affiliation, error) {
	return m.getAffiliationsFn(ctx, ids)
}
func (m *mockRepo) GetTerms(ctx context.Context, ids []string) ([]speaker.Term, error) {
	return m.getTermsFn(ctx, ids)
}

func fixtureRepo(calls *atomic.Int32) *mockRepo {
	return &mockRepo{
		getByIDsFn: func(_ context.Context, ids []string) ([]speaker.Person, error) {
			if calls != nil {
				calls.Add(1)
			}
			var out []speaker.Person
			for _, id := range ids {
				if id == "p-absent" {
					continue
				}
				out = append(out, speaker.Person{PersonID: id, Name: "Person " + id, GenderID: "woman"})
			}
			return out, nil
		},
		getAffiliationsFn: func(_ context.Context, ids []string) ([]speaker.Affiliation, error) {
			var out []speaker.Affiliation
			for _, id := range ids {
				out = append(out,
					speaker.Affiliation{PersonID: id, PartyID: "s", StartYear: 1970, EndYear: 1975},
					speaker.Affiliation{PersonID: id, PartyID: "c", StartYear: 1976, EndYear: 1985},
				)
			}
			return out, nil
		},
		getTermsFn: func(_ context.Context, ids []string) ([]speaker.Term, error) {
			var out []speaker.Term
			for _, id := range ids {
				out = append(out, speaker.Term{
					PersonID: id, OfficeTypeID: "member", SubOfficeTypeID: "unknown",
					StartYear: 1970, EndYear: 1985,
				})
			}
			return out, nil
		},
	}
}

func newTestService(repo metadataRepo) *Service {
	return NewService(slog.New(slog.NewTextHandler(io.Discard, nil)), repo)
}

func TestGetSpeakerInfo_YearSensitive(t *testing.T) {
	t.Parallel()

	s := newTestService(fixtureRepo(nil))
	ctx := context.Background()

	early, err := s.GetSpeakerInfo(ctx, "u-1", "p-1", 1974)
	require.NoError(t, err)
	require.NotNil(t, early)
	assert.Equal(t, "s", early.PartyID)
	assert.Equal(t, "member", early.OfficeTypeID)
	assert.Equal(t, "woman", early.GenderID)

	late, err := s.GetSpeakerInfo(ctx, "u-2", "p-1", 1980)
	require.NoError(t, err)
	require.NotNil(t, late)
	assert.Equal(t, "c", late.PartyID, "the same person carries a different party in a later year")
}

func TestGetSpeakerInfo_UnknownSentinelAndAbsence(t *testing.T) {
	t.Parallel()

	s := newTestService(fixtureRepo(nil))
	ctx := context.Background()

	info, err := s.GetSpeakerInfo(ctx, "u-1", domain.UnknownSpeaker, 1974)
	require.NoError(t, err)
	assert.Nil(t, info, "the unknown sentinel never hits the store")

	info, err = s.GetSpeakerInfo(ctx, "u-2", "", 1974)
	require.NoError(t, err)
	assert.Nil(t, info)

	info, err = s.GetSpeakerInfo(ctx, "u-3", "p-absent", 1974)
	require.NoError(t, err)
	assert.Nil(t, info, "absence from the store is not an error")
}

func TestGetSpeakerInfo_LogsRequestingUtterance(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	s := NewService(log, fixtureRepo(nil))

	info, err := s.GetSpeakerInfo(context.Background(), "u-42", "p-absent", 1974)
	require.NoError(t, err)
	assert.Nil(t, info)
	assert.Contains(t, buf.String(), "utterance=u-42", "an unresolved lookup names the requesting utterance")
}

func TestGetSpeakerInfo_YearOutsideAllRanges(t *testing.T) {
	t.Parallel()

	s := newTestService(fixtureRepo(nil))

	info, err := s.GetSpeakerInfo(context.Background(), "u-1", "p-1", 1950)
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, domain.UnknownSpeaker, info.PartyID, "no covering affiliation leaves the sentinel")
	assert.Equal(t, domain.UnknownSpeaker, info.OfficeTypeID)
	assert.Equal(t, "woman", info.GenderID, "person-level fields still resolve")
}

func TestEnrich_BatchesLookups(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	s := newTestService(fixtureRepo(&calls))

	segments := []domain.Segment{
		{ID: "s1", SpeakerID: "p-1", Year: 1974},
		{ID: "s2", SpeakerID: "p-2", Year: 1974},
		{ID: "s3", SpeakerID: "p-1", Year: 1974}, // duplicate key, served from cache
		{ID: "s4", SpeakerID: domain.UnknownSpeaker, Year: 1974},
		{ID: "s5", SpeakerID: "p-absent", Year: 1974},
	}

	enriched, err := s.Enrich(context.Background(), segments)
	require.NoError(t, err)
	require.Len(t, enriched, 5)

	assert.Equal(t, "s", enriched[0].Speaker.PartyID)
	assert.Equal(t, enriched[0].Speaker, enriched[2].Speaker)
	assert.Equal(t, domain.UnknownSpeakerInfo(), enriched[3].Speaker, "unattributed segments get sentinel info")
	assert.Equal(t, domain.UnknownSpeakerInfo(), enriched[4].Speaker, "unresolvable speakers get sentinel info")

	assert.Equal(t, int32(1), calls.Load(), "one persons query serves the whole batch")
}

func TestEnrich_PropagatesRepoError(t *testing.T) {
	t.Parallel()

	boom := errors.New("connection refused")
	repo := fixtureRepo(nil)
	repo.getByIDsFn = func(context.Context, []string) ([]speaker.Person, error) {
		return nil, boom
	}
	s := newTestService(repo)

	_, err := s.Enrich(context.Background(), []domain.Segment{
		{ID: "s1", SpeakerID: "p-1", Year: 1974},
	})
	require.ErrorIs(t, err, boom)
}
