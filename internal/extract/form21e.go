package extract

import (
	"bytes"
	"fmt"
	"iter"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/ppiankov/tntracker/internal/errors"
	"github.com/ppiankov/tntracker/internal/model"
	"github.com/ppiankov/tntracker/internal/normalize"
)

const formatForm21E = "form21e-pdf"

var (
	form21eConstituencyRe = regexp.MustCompile(`(?i)Name of Assembly Constituency\s*:\s*(.+)`)
	form21eNumberedRe     = regexp.MustCompile(`^(\d{1,3})\s*[-.]\s*(.+)$`)
	form21eOriginNumberRe = regexp.MustCompile(`(?i)AC(\d{1,3})\.pdf`)
	columnGapRe           = regexp.MustCompile(`\s{2,}`)
)

// Form21EParser reads the Form 21E result declaration PDF
type Form21EParser struct{}

func (Form21EParser) Format() string { return formatForm21E }

func (p Form21EParser) Parse(in Input) iter.Seq2[model.Record, error] {
	lines, err := pdfLines(in.Data)
	if err != nil {
		return fatal(formatForm21E, errors.ParseDocument, "unreadable PDF", err)
	}
	return ParseForm21EText(in, lines)
}

// pdfLines extracts text rows from every page. Words on a row are joined with
// a double space where the horizontal gap suggests a new column.
func pdfLines(data []byte) ([]string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}

	var lines []string
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		for _, row := range rows {
			texts := row.Content
			sort.SliceStable(texts, func(a, b int) bool { return texts[a].X < texts[b].X })

			var b strings.Builder
			var prevEnd float64
			for j, t := range texts {
				if j > 0 {
					gap := t.X - prevEnd
					switch {
					case gap > t.FontSize:
						b.WriteString("  ")
					case gap > t.FontSize*0.15:
						b.WriteByte(' ')
					}
				}
				b.WriteString(t.S)
				prevEnd = t.X + t.W
			}
			if line := strings.TrimSpace(b.String()); line != "" {
				lines = append(lines, line)
			}
		}
	}
	return lines, nil
}

// ParseForm21EText parses the text rows of a Form 21E. The candidate table
// starts after the header naming the candidate and party columns and ends at
// the totals row.
func ParseForm21EText(in Input, lines []string) iter.Seq2[model.Record, error] {
	var constituency string
	var number model.Field[int64]

	for _, line := range lines {
		if m := form21eConstituencyRe.FindStringSubmatch(line); m != nil {
			constituency = strings.TrimSpace(columnGapRe.Split(m[1], 2)[0])
			break
		}
	}
	if m := form21eNumberedRe.FindStringSubmatch(constituency); m != nil {
		n, _ := strconv.ParseInt(m[1], 10, 64)
		number = model.Some(n)
		constituency = strings.TrimSpace(m[2])
	}
	if !number.IsKnown() {
		if m := form21eOriginNumberRe.FindStringSubmatch(in.Origin); m != nil {
			n, _ := strconv.ParseInt(m[1], 10, 64)
			number = model.Some(n)
		}
	}
	if constituency == "" && number.IsKnown() {
		constituency = fmt.Sprintf("AC %03d", number.Value)
	}
	if constituency == "" {
		return fatal(formatForm21E, errors.ParseDocument, "constituency name not found", nil)
	}

	start := -1
	for i, line := range lines {
		if strings.Contains(line, "Name of Candidate") && strings.Contains(line, "Party") {
			start = i + 1
			break
		}
	}
	if start < 0 {
		return fatal(formatForm21E, errors.ParseDocument, "candidate table header not found", nil)
	}

	constName, _ := normalize.Constituency(constituency)
	var recs []*model.CandidateRecord
	var errs []error
	var total int64

	for i, line := range lines[start:] {
		if strings.HasPrefix(strings.ToLower(line), "total") {
			break
		}
		parts := columnGapRe.Split(strings.TrimSpace(line), -1)
		// Drop a leading serial number column
		if len(parts) > 2 {
			if _, err := strconv.Atoi(strings.TrimSuffix(parts[0], ".")); err == nil {
				parts = parts[1:]
			}
		}
		if len(parts) < 2 {
			continue
		}
		name, party := parts[0], parts[1]
		if normalize.IsBlank(name) || normalize.IsBlank(party) {
			errs = append(errs, errors.NewRowError(formatForm21E, start+i+1, "missing name or party", nil))
			continue
		}

		rec := &model.CandidateRecord{
			RecordMeta:     model.RecordMeta{SourceID: in.SourceID, Row: start + i + 1},
			Name:           normalize.Display(name),
			NameNormalized: normalize.Name(name),
			Party:          normalize.Display(party),
			Constituency:   constName,
			ConstituencyNo: number,
			Reservation:    normalize.Reservation(constituency),
			Year:           in.Year,
			Status:         model.Some(string(model.StatusContesting)),
			Result:         &model.ResultRecord{},
		}
		rec.Result.Votes = countField(rec.Meta(), "votes", parts[len(parts)-1])
		if v, ok := rec.Result.Votes.Get(); ok {
			total += v
		}
		recs = append(recs, rec)
	}

	return func(yield func(model.Record, error) bool) {
		for _, err := range errs {
			if !yield(nil, err) {
				return
			}
		}
		for i, rec := range recs {
			// Candidates are listed in order of votes polled
			rec.Result.Position = model.Some(int64(i + 1))
			rec.Result.IsWinner = i == 0
			rec.Result.VoteShare = VoteShare(rec.Result.Votes, total)
			if !yield(rec, nil) {
				return
			}
		}
	}
}
