package domain

// Granularity selects the unit of content a protocol is exploded into.
type Granularity string

const (
	GranularityProtocol    Granularity = "PROTOCOL"
	GranularitySpeech      Granularity = "SPEECH"
	GranularitySpeakerTurn Granularity = "SPEAKER_TURN"
	GranularityUtterance   Granularity = "UTTERANCE"
	GranularityParagraph   Granularity = "PARAGRAPH"
)

func (g Granularity) String() string { return string(g) }

func (g Granularity) IsValid() bool {
	switch g {
	case GranularityProtocol, GranularitySpeech, GranularitySpeakerTurn,
		GranularityUtterance, GranularityParagraph:
		return true
	}
	return false
}

// MergeStrategy selects the clustering rule that turns an utterance sequence
// into speeches. The set is closed: dispatch is an exhaustive switch, and an
// unsupported value is rejected by IsValid before any data is processed.
type MergeStrategy string

const (
	// MergeBySpeaker groups all utterances of one speaker into one speech,
	// regardless of position in the protocol.
	MergeBySpeaker MergeStrategy = "WHO"
	// MergeBySpeakerSequence groups only consecutive runs of one speaker.
	MergeBySpeakerSequence MergeStrategy = "WHO_SEQUENCE"
	// MergeBySpeakerNoteSequence groups consecutive runs sharing a speaker note.
	MergeBySpeakerNoteSequence MergeStrategy = "SPEAKER_NOTE_SEQUENCE"
	// MergeBySpeakerAndNoteSequence groups consecutive runs sharing both
	// speaker id and speaker note id.
	MergeBySpeakerAndNoteSequence MergeStrategy = "WHO_SPEAKER_NOTE_SEQUENCE"
	// MergeByChain follows the explicit prev/next linkage of the source format.
	MergeByChain MergeStrategy = "CHAIN"
	// MergeByChainConsecutiveUnknowns is MergeByChain with consecutive
	// unattributed utterances folded into the open speech.
	MergeByChainConsecutiveUnknowns MergeStrategy = "CHAIN_CONSECUTIVE_UNKNOWNS"
)

func (s MergeStrategy) String() string { return string(s) }

func (s MergeStrategy) IsValid() bool {
	switch s {
	case MergeBySpeaker, MergeBySpeakerSequence, MergeBySpeakerNoteSequence,
		MergeBySpeakerAndNoteSequence, MergeByChain, MergeByChainConsecutiveUnknowns:
		return true
	}
	return false
}
