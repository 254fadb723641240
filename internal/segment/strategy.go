// Package segment partitions protocol utterance sequences into speeches and
// explodes protocols into export segments at a chosen granularity.
package segment

import (
	"fmt"
	"log/slog"

	"github.com/parlaclarin/pipeline/internal/domain"
)

// cluster applies the given merge strategy to an ordered utterance sequence.
// Every utterance of the input appears in exactly one output run, in
// encounter order (the partition property).
func cluster(log *slog.Logger, strategy domain.MergeStrategy, utterances []domain.Utterance) ([][]domain.Utterance, error) {
	if len(utterances) == 0 {
		return nil, nil
	}

	switch strategy {
	case domain.MergeBySpeaker:
		return clusterBySpeaker(utterances), nil
	case domain.MergeBySpeakerSequence:
		return clusterByRun(utterances, func(u *domain.Utterance) string {
			return speakerOf(u)
		}), nil
	case domain.MergeBySpeakerNoteSequence, domain.MergeBySpeakerAndNoteSequence:
		// A run keyed on the note id alone cannot stay speaker-homogeneous:
		// every utterance without an introduction carries the shared missing
		// sentinel, so distinct speakers would fold into one speech. A
		// speaker change always closes the run, which makes both note
		// strategies cluster on the same composite key.
		return clusterByRun(utterances, func(u *domain.Utterance) string {
			return speakerOf(u) + "\x1f" + u.SpeakerNoteID
		}), nil
	case domain.MergeByChain:
		return clusterByChain(log, utterances, false)
	case domain.MergeByChainConsecutiveUnknowns:
		return clusterByChain(log, utterances, true)
	}
	return nil, fmt.Errorf("merge strategy %q: %w", strategy, domain.ErrValidation)
}

// clusterBySpeaker merges all utterances of one speaker into one run,
// regardless of position. Runs are ordered by first appearance of the speaker.
func clusterBySpeaker(utterances []domain.Utterance) [][]domain.Utterance {
	order := make([]string, 0, 8)
	bySpeaker := make(map[string][]domain.Utterance, 8)

	for i := range utterances {
		who := speakerOf(&utterances[i])
		if _, seen := bySpeaker[who]; !seen {
			order = append(order, who)
		}
		bySpeaker[who] = append(bySpeaker[who], utterances[i])
	}

	runs := make([][]domain.Utterance, 0, len(order))
	for _, who := range order {
		runs = append(runs, bySpeaker[who])
	}
	return runs
}

// clusterByRun groups consecutive utterances sharing the same key.
func clusterByRun(utterances []domain.Utterance, key func(*domain.Utterance) string) [][]domain.Utterance {
	var runs [][]domain.Utterance
	var current []domain.Utterance
	currentKey := ""

	for i := range utterances {
		k := key(&utterances[i])
		if current == nil || k != currentKey {
			if current != nil {
				runs = append(runs, current)
			}
			current = nil
			currentKey = k
		}
		current = append(current, utterances[i])
	}
	if current != nil {
		runs = append(runs, current)
	}
	return runs
}

// clusterByChain follows the prev/next linkage encoded by the source format.
//
// An utterance opens a new run when it carries a next link, or when it
// carries no linkage at all. An utterance with only a prev link continues
// the open run. With mergeUnknowns set, a link-less unattributed utterance
// following an unattributed run is appended instead of opening a singleton;
// a named interjection closes the unattributed run, so a later return to
// "unknown" opens a fresh one rather than merging into the interjector.
//
// A prev link that does not point at the open run's first utterance is
// logged and treated as a continuation anyway: both signals say the
// utterance is not a fresh start, and the stale reference alone is linkage
// noise, not a speaker boundary. A speaker change inside a run is a hard
// error; an utterance carrying both links is format corruption.
func clusterByChain(log *slog.Logger, utterances []domain.Utterance, mergeUnknowns bool) ([][]domain.Utterance, error) {
	var runs [][]domain.Utterance
	var current []domain.Utterance

	for i := range utterances {
		u := &utterances[i]
		if err := u.Validate(); err != nil {
			return nil, err
		}

		startNew := true
		switch {
		case u.HasNext():
			startNew = true
		case u.HasPrev():
			startNew = current == nil
		default:
			// No linkage: a singleton, unless it extends an unattributed run.
			if mergeUnknowns && current != nil && u.IsUnknown() && speakerOf(&current[0]) == domain.UnknownSpeaker {
				startNew = false
			}
		}

		if startNew {
			if current != nil {
				runs = append(runs, current)
			}
			current = []domain.Utterance{*u}
			continue
		}

		first := &current[0]
		if u.HasPrev() && *u.PrevID != first.ID {
			log.Warn("stale prev reference, continuing open speech",
				slog.String("utterance", u.ID),
				slog.String("prev", *u.PrevID),
				slog.String("speech_start", first.ID),
			)
		}
		if speakerOf(u) != speakerOf(first) {
			return nil, fmt.Errorf("utterance %s (speaker %q) continues speech of %q: %w",
				u.ID, speakerOf(u), speakerOf(first), domain.ErrMixedSpeakers)
		}
		current = append(current, *u)
	}

	if current != nil {
		runs = append(runs, current)
	}
	return runs, nil
}

// speakerOf normalizes an empty speaker id to the unknown sentinel.
func speakerOf(u *domain.Utterance) string {
	if u.SpeakerID == "" {
		return domain.UnknownSpeaker
	}
	return u.SpeakerID
}
