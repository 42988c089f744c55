package extract

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"iter"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/ppiankov/tntracker/internal/errors"
	"github.com/ppiankov/tntracker/internal/model"
	"github.com/ppiankov/tntracker/internal/normalize"
)

//go:embed schemas/*.json
var schemaFS embed.FS

const schemaBaseURL = "https://tntracker.local/schemas/"

var (
	manifestoSchema  = sync.OnceValues(func() (*jsonschema.Schema, error) { return compileSchema("manifesto.schema.json") })
	assessmentSchema = sync.OnceValues(func() (*jsonschema.Schema, error) { return compileSchema("assessment.schema.json") })
)

func compileSchema(name string) (*jsonschema.Schema, error) {
	data, err := schemaFS.ReadFile("schemas/" + name)
	if err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	url := schemaBaseURL + name
	if err := c.AddResource(url, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("schema %s load failed: %w", name, err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("schema %s compile failed: %w", name, err)
	}
	return compiled, nil
}

// jsonEntry is one validated element of an index array
type jsonEntry struct {
	Index int
	Raw   json.RawMessage
}

// indexEntries splits a JSON array and validates each element against
// schema. Validation failures are yielded as row errors.
func indexEntries(format string, data []byte, schema func() (*jsonschema.Schema, error)) iter.Seq2[jsonEntry, error] {
	return func(yield func(jsonEntry, error) bool) {
		compiled, err := schema()
		if err != nil {
			yield(jsonEntry{}, errors.NewDocumentError(format, errors.ParseSchema, "embedded schema unusable", err))
			return
		}

		var entries []json.RawMessage
		if err := json.Unmarshal(data, &entries); err != nil {
			yield(jsonEntry{}, errors.NewDocumentError(format, errors.ParseDocument, "index is not a JSON array", err))
			return
		}

		for i, raw := range entries {
			idx := i + 1
			var doc any
			dec := json.NewDecoder(bytes.NewReader(raw))
			dec.UseNumber()
			if err := dec.Decode(&doc); err != nil {
				if !yield(jsonEntry{}, errors.NewRowError(format, idx, "entry is not valid JSON", err)) {
					return
				}
				continue
			}
			if err := compiled.Validate(doc); err != nil {
				if !yield(jsonEntry{}, errors.NewRowError(format, idx, "entry fails schema", err)) {
					return
				}
				continue
			}
			if !yield(jsonEntry{Index: idx, Raw: raw}, nil) {
				return
			}
		}
	}
}

// flexYear accepts a year written as a number or a string
type flexYear int

func (y *flexYear) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*y = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("year %q: %w", s, errors.ErrInvalidInput)
	}
	*y = flexYear(n)
	return nil
}

// dateField parses a date and records a warning instead of failing.
func dateField(meta *model.RecordMeta, field, raw string) *time.Time {
	t, err := normalize.Date(raw)
	if err != nil {
		meta.Warn(field, raw, "unrecognized date")
		return nil
	}
	return t
}

// entryOrigin is where a JSON entry came from. Entries without their own URL
// are addressed inside the index document.
func entryOrigin(in Input, idx int, urls ...string) string {
	for _, u := range urls {
		if u = strings.TrimSpace(u); u != "" {
			return u
		}
	}
	return fmt.Sprintf("%s#%d", in.Origin, idx)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
