package segment

import (
	"fmt"
	"log/slog"

	"github.com/parlaclarin/pipeline/internal/domain"
)

// Segmenter partitions utterance sequences into speeches under a configured
// merge strategy.
type Segmenter struct {
	log      *slog.Logger
	strategy domain.MergeStrategy
	// minChars drops speeches whose joined text is not longer than this
	// many characters. Values <= 0 disable the filter.
	minChars int
}

// NewSegmenter creates a segmenter. The strategy is validated here, before
// any data is processed.
func NewSegmenter(log *slog.Logger, strategy domain.MergeStrategy, minChars int) (*Segmenter, error) {
	if !strategy.IsValid() {
		return nil, fmt.Errorf("merge strategy %q: %w", strategy, domain.ErrValidation)
	}
	return &Segmenter{log: log, strategy: strategy, minChars: minChars}, nil
}

// Segment partitions the utterances into speeches. Every utterance of the
// input ends up in exactly one speech; speeches are indexed 1-based in
// encounter order before the length filter runs, so indexes are stable
// regardless of the threshold. An empty input yields no speeches.
func (s *Segmenter) Segment(utterances []domain.Utterance) ([]domain.Speech, error) {
	runs, err := cluster(s.log, s.strategy, utterances)
	if err != nil {
		return nil, err
	}

	speeches := make([]domain.Speech, 0, len(runs))
	for i, run := range runs {
		speech := domain.NewSpeech(i+1, run)
		if err := speech.Validate(); err != nil {
			return nil, err
		}
		if s.minChars > 0 && len(speech.Text()) <= s.minChars {
			continue
		}
		speeches = append(speeches, speech)
	}
	return speeches, nil
}
