package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/tntracker/internal/model"
)

func TestParseForm21EText(t *testing.T) {
	lines := []string{
		"FORM 21E",
		"(See rule 64)",
		"Name of Assembly Constituency : 1 - Gummidipoondi",
		"Sl.No  Name of Candidate  Party Affiliation  Votes Polled",
		"1  A. KUMAR  DMK  1,000",
		"2  B. DEVI  AIADMK  600",
		"3  C. RAJ  Independent  400",
		"Total  2000",
		"4  NOT A ROW  XYZ  1",
	}

	recs, unitErrs, fatalErr := Collect(ParseForm21EText(Input{SourceID: 9, Year: 2021}, lines))
	require.NoError(t, fatalErr)
	assert.Empty(t, unitErrs)
	require.Len(t, recs, 3)

	first := recs[0].(*model.CandidateRecord)
	assert.Equal(t, "A. KUMAR", first.Name)
	assert.Equal(t, "DMK", first.Party)
	assert.Equal(t, "Gummidipoondi", first.Constituency)
	assert.Equal(t, model.Some[int64](1), first.ConstituencyNo)
	assert.Equal(t, model.Some[int64](1000), first.Result.Votes)
	assert.Equal(t, model.Some(50.0), first.Result.VoteShare)
	assert.True(t, first.Result.IsWinner)

	third := recs[2].(*model.CandidateRecord)
	assert.Equal(t, model.Some[int64](3), third.Result.Position)
	assert.Equal(t, model.Some(20.0), third.Result.VoteShare)
	assert.False(t, third.Result.IsWinner)
}

func TestParseForm21EText_NumberFromOrigin(t *testing.T) {
	lines := []string{
		"Sl.No  Name of Candidate  Party  Votes",
		"1  A. KUMAR  DMK  10",
	}
	recs, _, fatalErr := Collect(ParseForm21EText(Input{Origin: "https://elections.tn.gov.in/Form21E/AC012.pdf"}, lines))
	require.NoError(t, fatalErr)
	require.Len(t, recs, 1)

	rec := recs[0].(*model.CandidateRecord)
	assert.Equal(t, "AC 012", rec.Constituency)
	assert.Equal(t, model.Some[int64](12), rec.ConstituencyNo)
}

func TestParseForm21EText_NoTable(t *testing.T) {
	lines := []string{"Name of Assembly Constituency : Kolathur", "nothing here"}
	_, _, fatalErr := Collect(ParseForm21EText(Input{}, lines))
	assert.Error(t, fatalErr)

	_, _, fatalErr = Collect(Form21EParser{}.Parse(Input{Data: []byte("not a pdf")}))
	assert.Error(t, fatalErr)
}
