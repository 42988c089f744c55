package extract

import (
	"iter"

	"github.com/ppiankov/tntracker/internal/errors"
	"github.com/ppiankov/tntracker/internal/model"
	"github.com/ppiankov/tntracker/internal/normalize"
)

const formatResults = "results-csv"

var (
	resultConstituencyCols = []string{"constituency", "constituency_name", "assembly_constituency", "ac_name", "ac"}
	resultCandidateCols    = []string{"candidate", "candidate_name", "name"}
	resultPartyCols        = []string{"party", "party_name"}
	resultVotesCols        = []string{"votes", "vote", "valid_votes"}
	resultPositionCols     = []string{"position", "rank", "place"}
	resultWinnerCols       = []string{"is_winner", "winner", "won"}
	resultTotalCols        = []string{"total_votes", "total_valid_votes"}
	resultNumberCols       = []string{"ac_no", "constituency_no", "ac_number"}
)

// VoteShare returns votes as a percentage of total, rounded half-up to three
// decimal places. It is unknown when either side is unknown or total is zero.
func VoteShare(votes model.Field[int64], total int64) model.Field[float64] {
	v, ok := votes.Get()
	if !ok || total <= 0 || v < 0 {
		return model.None[float64]()
	}
	// Integer arithmetic in thousandths keeps the rounding exact
	milli := (v*200000 + total) / (2 * total)
	return model.Some(float64(milli) / 1000)
}

// ResultsParser reads constituency-level results tables. The whole file is
// buffered so each constituency's total is known before records are yielded.
type ResultsParser struct{}

func (ResultsParser) Format() string { return formatResults }

func (ResultsParser) Parse(in Input) iter.Seq2[model.Record, error] {
	t, err := readTable(in.Data)
	if err != nil && t == nil {
		return fatal(formatResults, errors.ParseHeader, "unreadable header", err)
	}
	readErr := err

	if !t.has(resultConstituencyCols...) || !t.has(resultCandidateCols...) {
		return fatal(formatResults, errors.ParseHeader, "results need constituency and candidate columns", nil)
	}

	type staged struct {
		rec   *model.CandidateRecord
		key   string
		total model.Field[int64]
		err   error
	}

	rows := make([]staged, 0, len(t.rows))
	explicit := make(map[string]int64)
	sums := make(map[string]int64)

	for i, row := range t.rows {
		line := t.lines[i]
		constituency, _ := t.get(row, resultConstituencyCols...)
		candidate, _ := t.get(row, resultCandidateCols...)
		if normalize.IsBlank(constituency) || normalize.IsBlank(candidate) {
			rows = append(rows, staged{err: errors.NewRowError(formatResults, line, "missing constituency or candidate", nil)})
			continue
		}

		constName, _ := normalize.Constituency(constituency)
		rec := &model.CandidateRecord{
			RecordMeta:     model.RecordMeta{SourceID: in.SourceID, Row: line},
			Name:           normalize.Display(candidate),
			NameNormalized: normalize.Name(candidate),
			Constituency:   constName,
			Reservation:    normalize.Reservation(constituency),
			Year:           in.Year,
			Party:          "Independent",
			Status:         model.Some(string(model.StatusContesting)),
		}
		if party, _ := t.get(row, resultPartyCols...); !normalize.IsBlank(party) {
			rec.Party = normalize.Display(party)
		}
		if v, present := t.get(row, resultNumberCols...); present {
			rec.ConstituencyNo = countField(rec.Meta(), "ac_no", v)
		}

		res := &model.ResultRecord{}
		if v, present := t.get(row, resultVotesCols...); present {
			res.Votes = countField(rec.Meta(), "votes", v)
		}
		if v, present := t.get(row, resultPositionCols...); present {
			res.Position = countField(rec.Meta(), "position", v)
		}
		winner, _ := t.get(row, resultWinnerCols...)
		res.IsWinner = normalize.Truthy(winner)
		rec.Result = res

		key := normalize.Name(constName)
		s := staged{rec: rec, key: key}
		if v, present := t.get(row, resultTotalCols...); present {
			s.total = countField(rec.Meta(), "total_votes", v)
			if total, ok := s.total.Get(); ok {
				explicit[key] = total
			}
		}
		if votes, ok := res.Votes.Get(); ok {
			sums[key] += votes
		}
		rows = append(rows, s)
	}

	return func(yield func(model.Record, error) bool) {
		for _, s := range rows {
			if s.err != nil {
				if !yield(nil, s.err) {
					return
				}
				continue
			}
			total, ok := explicit[s.key]
			if !ok {
				total = sums[s.key]
			}
			s.rec.Result.VoteShare = VoteShare(s.rec.Result.Votes, total)
			if !yield(s.rec, nil) {
				return
			}
		}
		if readErr != nil {
			yield(nil, errors.NewRowError(formatResults, len(t.rows)+1, "unreadable row, stopped", readErr))
		}
	}
}
