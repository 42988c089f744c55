package normalize

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ppiankov/tntracker/internal/errors"
	"github.com/ppiankov/tntracker/internal/model"
)

var (
	currencyRe = regexp.MustCompile(`(?i)^(rs\.?|inr|₹)\s*`)
	wordAmount = regexp.MustCompile(`(?i)^([0-9]+(?:\.[0-9]+)?)\s*(lakhs?|lacs?|crores?|cr)\+?$`)
)

// IsBlank reports whether a cell means "not stated": blank, na, n/a or a dash.
func IsBlank(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "na", "n/a", "n.a.", "-", "--", "—", "not available", "not given":
		return true
	}
	return false
}

func isNil(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "nil", "none", "zero":
		return true
	}
	return false
}

// Money parses a free-text rupee amount. "Rs 12,34,567 ~ 12 Lacs+" gives
// 1234567, "₹1.5 Crore" gives 15000000 and "Nil" gives 0. Blank markers give
// an unknown field with no error. Anything else gives an unknown field and an
// error for the caller to record as a warning.
func Money(s string) (model.Field[int64], error) {
	raw := s
	if i := strings.Index(s, "~"); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimSpace(strings.ReplaceAll(s, "\u00a0", " "))

	if IsBlank(s) {
		return model.None[int64](), nil
	}
	if isNil(s) {
		return model.Some[int64](0), nil
	}

	s = currencyRe.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)
	if isNil(s) {
		return model.Some[int64](0), nil
	}

	if m := wordAmount.FindStringSubmatch(s); m != nil {
		f, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return model.None[int64](), invalid("amount", raw)
		}
		mult := 1e5
		if strings.HasPrefix(strings.ToLower(m[2]), "c") {
			mult = 1e7
		}
		return model.Some(int64(math.Round(f * mult))), nil
	}

	s = strings.TrimSuffix(strings.ReplaceAll(s, " ", ""), "/-")
	if n, err := strconv.ParseInt(s, 10, 64); err == nil && n >= 0 {
		return model.Some(n), nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f >= 0 {
		return model.Some(int64(math.Round(f))), nil
	}
	return model.None[int64](), invalid("amount", raw)
}

// Count parses a non-negative integer such as a case count, age or vote total.
// "Nil" is zero.
func Count(s string) (model.Field[int64], error) {
	raw := s
	s = strings.TrimSpace(s)
	if IsBlank(s) {
		return model.None[int64](), nil
	}
	if isNil(s) {
		return model.Some[int64](0), nil
	}
	s = strings.ReplaceAll(s, ",", "")
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		// Accept "45 years" style values
		fields := strings.Fields(s)
		if len(fields) > 1 {
			if n, err := strconv.ParseInt(fields[0], 10, 64); err == nil && n >= 0 {
				return model.Some(n), nil
			}
		}
		return model.None[int64](), invalid("count", raw)
	}
	return model.Some(n), nil
}

// Year parses a four-digit year.
func Year(s string) (model.Field[int64], error) {
	f, err := Count(s)
	if err != nil || !f.IsKnown() {
		return f, err
	}
	if f.Value < 1900 || f.Value > 2100 {
		return model.None[int64](), invalid("year", s)
	}
	return f, nil
}

// Text returns a known field for non-blank text and unknown otherwise.
func Text(s string) model.Field[string] {
	s = Display(s)
	if IsBlank(s) {
		return model.None[string]()
	}
	return model.Some(s)
}

// Truthy reports whether s is one of 1, true, yes, y, winner or won.
func Truthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "y", "winner", "won":
		return true
	}
	return false
}

var dateLayouts = []string{
	"2006-01-02",
	"02-01-2006",
	"2006/01/02",
	time.RFC3339,
	"2 January 2006",
	"January 2, 2006",
}

// Date parses the date forms found in manifesto and assessment indexes.
func Date(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, invalid("date", s)
}

func invalid(kind, value string) error {
	return fmt.Errorf("%w: unparseable %s %q", errors.ErrInvalidInput, kind, value)
}
