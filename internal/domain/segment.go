package domain

// Segment is a granularity-tagged unit of content used as the atom for
// export. Created by the exploder, optionally enriched with speaker info,
// and consumed by the merger.
type Segment struct {
	ProtocolName  string
	Granularity   Granularity
	Name          string
	SpeakerID     string
	ID            string
	Data          string
	PageNumber    int
	Year          int
	SpeakerNoteID string
	Speaker       *SpeakerInfo
	TokenCount    int
}

// SpeakerInfo is the metadata-store view of a speaker, resolved per segment
// with a year-sensitive lookup (a person's party and office change over
// time). Unknown sentinel values are valid and expected.
type SpeakerInfo struct {
	PersonID        string
	GenderID        string
	PartyID         string
	OfficeTypeID    string
	SubOfficeTypeID string
	Name            string
}

// UnknownSpeakerInfo returns a SpeakerInfo with every field set to the
// unknown sentinel, used when the metadata store cannot resolve a speaker.
func UnknownSpeakerInfo() *SpeakerInfo {
	return &SpeakerInfo{
		PersonID:        UnknownSpeaker,
		GenderID:        UnknownSpeaker,
		PartyID:         UnknownSpeaker,
		OfficeTypeID:    UnknownSpeaker,
		SubOfficeTypeID: UnknownSpeaker,
		Name:            UnknownSpeaker,
	}
}

// SourceIndexRecord is one entry of the protocol source index: the corpus
// catalogue row a segment's protocol name resolves to.
type SourceIndexRecord struct {
	ProtocolName string
	Year         int
	ChamberID    string
	Filename     string
}
