// Package extract turns raw source bytes into normalized records.
//
// Parsers are lazy: Parse returns an iterator that yields one record or one
// error at a time. A *errors.ParseError with Fatal set ends the sequence;
// any other error describes a single unit and parsing continues.
package extract

import (
	"iter"

	"github.com/ppiankov/tntracker/internal/errors"
	"github.com/ppiankov/tntracker/internal/model"
)

// Input is what a parser receives for one source document
type Input struct {
	SourceID int64  // Registered SourceDocument id stamped on every record
	Origin   string // URL or path, used in messages and link resolution
	Data     []byte
	Tier     model.TrustTier

	Year   int    // Election year when the source does not state one
	Schema string // Schema descriptor such as "roster@^2"

	Party   string // Announcements: party the listed candidates stand for
	Pattern string // Announcements: english or tamil

	MaxConstituencyNumber int
}

// Parser is one input format
type Parser interface {
	Format() string
	Parse(in Input) iter.Seq2[model.Record, error]
}

// Collect drains a sequence into records and per-unit errors. A fatal error
// is returned separately.
func Collect(seq iter.Seq2[model.Record, error]) (records []model.Record, unitErrs []error, fatal error) {
	for rec, err := range seq {
		if err != nil {
			if pe, ok := errors.AsParseError(err); ok && pe.Fatal {
				return records, unitErrs, err
			}
			unitErrs = append(unitErrs, err)
			continue
		}
		records = append(records, rec)
	}
	return records, unitErrs, nil
}

// fatal yields a single document-level error.
func fatal(format string, kind errors.ParseKind, detail string, err error) iter.Seq2[model.Record, error] {
	return func(yield func(model.Record, error) bool) {
		yield(nil, errors.NewDocumentError(format, kind, detail, err))
	}
}
