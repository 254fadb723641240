package seed

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/parlaclarin/pipeline/internal/adapter/postgres/speaker"
	"github.com/parlaclarin/pipeline/internal/domain"
)

// tsvReader wraps a metadata TSV dump: tab-separated, first row is the
// header, column order varies between corpus releases.
type tsvReader struct {
	r    *csv.Reader
	cols map[string]int
	line int
}

func newTSVReader(r io.Reader) (*tsvReader, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read tsv header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[name] = i
	}
	return &tsvReader{r: cr, cols: cols}, nil
}

// next returns the following data row, or nil at EOF.
func (t *tsvReader) next() ([]string, error) {
	row, err := t.r.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read tsv row: %w", err)
	}
	t.line++
	return row, nil
}

// field returns the named column of a row, empty when the column is absent
// from this release or the row is short.
func (t *tsvReader) field(row []string, name string) string {
	i, ok := t.cols[name]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}

func (t *tsvReader) intField(row []string, name string) (int, error) {
	v := t.field(row, name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("row %d: column %s: %w", t.line, name, err)
	}
	return n, nil
}

// require fails fast when a dump is missing columns the loader depends on.
func (t *tsvReader) require(names ...string) error {
	for _, name := range names {
		if _, ok := t.cols[name]; !ok {
			return fmt.Errorf("tsv missing required column %q: %w", name, domain.ErrValidation)
		}
	}
	return nil
}

// orUnknown substitutes the unknown sentinel for empty dump values.
func orUnknown(v string) string {
	if v == "" {
		return domain.UnknownSpeaker
	}
	return v
}

// ParsePersons reads a persons dump with columns person_id, name, gender_id.
func ParsePersons(r io.Reader) ([]speaker.Person, error) {
	t, err := newTSVReader(r)
	if err != nil {
		return nil, err
	}
	if err := t.require("person_id"); err != nil {
		return nil, err
	}

	var persons []speaker.Person
	for {
		row, err := t.next()
		if err != nil {
			return nil, err
		}
		if row == nil {
			return persons, nil
		}
		if t.field(row, "person_id") == "" {
			continue
		}
		persons = append(persons, speaker.Person{
			PersonID: t.field(row, "person_id"),
			Name:     t.field(row, "name"),
			GenderID: orUnknown(t.field(row, "gender_id")),
		})
	}
}

// ParseAffiliations reads a party-affiliation dump with columns person_id,
// party_id, start_year, end_year. Inclusive year bounds.
func ParseAffiliations(r io.Reader) ([]speaker.Affiliation, error) {
	t, err := newTSVReader(r)
	if err != nil {
		return nil, err
	}
	if err := t.require("person_id", "party_id", "start_year", "end_year"); err != nil {
		return nil, err
	}

	var affs []speaker.Affiliation
	for {
		row, err := t.next()
		if err != nil {
			return nil, err
		}
		if row == nil {
			return affs, nil
		}
		start, err := t.intField(row, "start_year")
		if err != nil {
			return nil, err
		}
		end, err := t.intField(row, "end_year")
		if err != nil {
			return nil, err
		}
		affs = append(affs, speaker.Affiliation{
			PersonID:  t.field(row, "person_id"),
			PartyID:   orUnknown(t.field(row, "party_id")),
			StartYear: start,
			EndYear:   end,
		})
	}
}

// ParseTerms reads a terms-of-office dump with columns person_id,
// office_type_id, sub_office_type_id, start_year, end_year.
func ParseTerms(r io.Reader) ([]speaker.Term, error) {
	t, err := newTSVReader(r)
	if err != nil {
		return nil, err
	}
	if err := t.require("person_id", "office_type_id", "start_year", "end_year"); err != nil {
		return nil, err
	}

	var terms []speaker.Term
	for {
		row, err := t.next()
		if err != nil {
			return nil, err
		}
		if row == nil {
			return terms, nil
		}
		start, err := t.intField(row, "start_year")
		if err != nil {
			return nil, err
		}
		end, err := t.intField(row, "end_year")
		if err != nil {
			return nil, err
		}
		terms = append(terms, speaker.Term{
			PersonID:        t.field(row, "person_id"),
			OfficeTypeID:    orUnknown(t.field(row, "office_type_id")),
			SubOfficeTypeID: orUnknown(t.field(row, "sub_office_type_id")),
			StartYear:       start,
			EndYear:         end,
		})
	}
}

// ParseSourceIndex reads a protocol catalogue dump with columns
// protocol_name, year, chamber_id, filename.
func ParseSourceIndex(r io.Reader) ([]domain.SourceIndexRecord, error) {
	t, err := newTSVReader(r)
	if err != nil {
		return nil, err
	}
	if err := t.require("protocol_name", "year"); err != nil {
		return nil, err
	}

	var records []domain.SourceIndexRecord
	for {
		row, err := t.next()
		if err != nil {
			return nil, err
		}
		if row == nil {
			return records, nil
		}
		year, err := t.intField(row, "year")
		if err != nil {
			return nil, err
		}
		records = append(records, domain.SourceIndexRecord{
			ProtocolName: t.field(row, "protocol_name"),
			Year:         year,
			ChamberID:    orUnknown(t.field(row, "chamber_id")),
			Filename:     t.field(row, "filename"),
		})
	}
}
