package adapters

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/tntracker/internal/extract"
	"github.com/ppiankov/tntracker/internal/model"
)

const profilePage = `<html><head>
<title>A. Kumar(DMK):Constituency- KOLATHUR(CHENNAI) - Affidavit Information of Candidate:</title>
</head><body>
<h2>A. Kumar</h2>
<table>
  <tr><td>Age:</td><td>45</td></tr>
  <tr><td>Education</td><td>Graduate</td></tr>
  <tr><td>Total Assets</td><td>Rs 12,34,567 ~ 12 Lacs+</td></tr>
  <tr><td>Liabilities</td><td>Nil</td></tr>
  <tr><td>Serious Criminal Cases</td><td>1</td></tr>
</table>
<p>Number of Criminal Cases: 2</p>
<table>
  <tr><th>Serial No.</th><th>IPC Sections Applicable</th><th>Court Case Details</th></tr>
  <tr><td>1</td><td>147, 188</td><td>CC 12/2019</td></tr>
</table>
<table>
  <tr><th>Case No</th><th>Status</th><th>Court</th><th>Year</th></tr>
  <tr><td>CR 44/2018</td><td>Pending</td><td>JM Court, Egmore</td><td>2018</td></tr>
  <tr><td>short</td><td>row</td></tr>
</table>
</body></html>`

func TestProfileAdapter(t *testing.T) {
	a := NewProfileAdapter()
	assert.True(t, a.CanHandle("https://www.myneta.info/TamilNadu2021/candidate.php?candidate_id=42", "text/html"))
	assert.False(t, a.CanHandle("https://news.example/ntk", "text/html"))

	in := extract.Input{SourceID: 5, Origin: "https://www.myneta.info/TamilNadu2021/candidate.php?candidate_id=42", Data: []byte(profilePage), Year: 2021}
	recs, unitErrs, fatalErr := extract.Collect(a.Parse(in))
	require.NoError(t, fatalErr)
	assert.Empty(t, unitErrs)
	require.Len(t, recs, 1)

	rec := recs[0].(*model.CandidateRecord)
	assert.Equal(t, "A. Kumar", rec.Name)
	assert.Equal(t, "DMK", rec.Party)
	assert.Equal(t, "KOLATHUR", rec.Constituency)
	assert.Equal(t, model.Some("CHENNAI"), rec.District)
	assert.Equal(t, model.Some[int64](45), rec.Age)
	assert.Equal(t, model.Some(in.Origin), rec.ProfileURL)

	aff := rec.Affidavit
	require.NotNil(t, aff)
	assert.Equal(t, model.Some[int64](2), aff.CriminalCases)
	assert.Equal(t, model.Some[int64](1), aff.SeriousCases)
	assert.Equal(t, model.Some[int64](1234567), aff.Assets)
	assert.Equal(t, model.Some[int64](0), aff.Liabilities)
	require.Len(t, aff.Cases, 2)

	positional := aff.Cases[0]
	assert.Equal(t, "1", positional.CaseNumber)
	assert.Equal(t, "147, 188", positional.Sections)
	assert.Equal(t, "147, 188 | CC 12/2019", positional.Description)

	keyed := aff.Cases[1]
	assert.Equal(t, "CR 44/2018", keyed.CaseNumber)
	assert.Equal(t, "Pending", keyed.Status)
	assert.Equal(t, "JM Court, Egmore", keyed.Court)
	assert.Equal(t, model.Some[int64](2018), keyed.Year)
}

func TestProfileAdapter_MissingHeader(t *testing.T) {
	in := extract.Input{Data: []byte(`<html><body><p>nothing</p></body></html>`)}
	_, _, fatalErr := extract.Collect(NewProfileAdapter().Parse(in))
	assert.Error(t, fatalErr)
}

func TestRegistry_FindAdapter(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, "profile", r.FindAdapter("https://myneta.info/x/candidate.php?candidate_id=1", "text/html").Name())
	assert.Equal(t, "announcement", r.FindAdapter("https://news.example/article", "text/html").Name())
}

const cohortIndex = `<html><body>
<a href="index.php?action=show_candidates&amp;constituency_id=2">GUMMIDIPOONDI</a>
<a href="index.php?action=show_candidates&amp;constituency_id=1">PONNERI</a>
<a href="index.php?action=show_candidates&amp;constituency_id=1">PONNERI again</a>
<a href="index.php?action=show_candidates&amp;constituency_id=99">VIKRAVANDI : BYE ELECTION</a>
<a href="about.php">About</a>
</body></html>`

const cohortListing = `<html><body>
<h3>PONNERI (SC) (THIRUVALLUR)</h3>
<a href="candidate.php?candidate_id=20">B</a>
<a href="candidate.php?candidate_id=10">A</a>
<a href="/TamilNadu2021/candidate.php?candidate_id=10">A again</a>
</body></html>`

func TestCohortAdapter(t *testing.T) {
	a := NewCohortAdapter()
	base := "https://www.myneta.info/TamilNadu2021/"

	links, err := a.ConstituencyLinks([]byte(cohortIndex), base)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://www.myneta.info/TamilNadu2021/index.php?action=show_candidates&constituency_id=1",
		"https://www.myneta.info/TamilNadu2021/index.php?action=show_candidates&constituency_id=2",
	}, links)

	listing, err := a.Listing([]byte(cohortListing), links[0])
	require.NoError(t, err)
	assert.Equal(t, "PONNERI (SC) (THIRUVALLUR)", listing.Constituency)
	assert.Equal(t, []string{
		"https://www.myneta.info/TamilNadu2021/candidate.php?candidate_id=10",
		"https://www.myneta.info/TamilNadu2021/candidate.php?candidate_id=20",
	}, listing.Candidates)
}

func TestExtractPairs(t *testing.T) {
	english := "Kalaiselvi Rajan for Tiruvottiyur, Ravi Kumar for Kolathur, Seeman for Karaikudi;"
	pairs := ExtractPairs(english, PatternEnglish)
	require.Len(t, pairs, 2, "single-word names are dropped")
	assert.Equal(t, Pair{Name: "Kalaiselvi Rajan", Constituency: "Tiruvottiyur"}, pairs[0])
	assert.Equal(t, Pair{Name: "Ravi Kumar", Constituency: "Kolathur"}, pairs[1])

	tamil := "1. சீமான் - காரைக்குடி தொகுதி\n2. கலைச்செல்வி - திருவொற்றியூர் தொகுதி"
	pairs = ExtractPairs(tamil, PatternTamil)
	require.Len(t, pairs, 2)
	assert.Equal(t, Pair{Name: "சீமான்", Constituency: "காரைக்குடி"}, pairs[0])
	assert.Equal(t, "திருவொற்றியூர்", pairs[1].Constituency)
}

func TestAnnouncementAdapter_Parse(t *testing.T) {
	page := `<html><body><article><p>Kalaiselvi Rajan for Tiruvottiyur, Ravi Kumar for Kolathur.</p></article></body></html>`
	in := extract.Input{
		SourceID: 8,
		Origin:   "https://news.example/ntk-list",
		Data:     []byte(page),
		Year:     2026,
		Party:    "Naam Tamilar Katchi",
		Pattern:  PatternEnglish,
	}
	recs, _, fatalErr := extract.Collect(NewAnnouncementAdapter().Parse(in))
	require.NoError(t, fatalErr)
	require.Len(t, recs, 2)

	rec := recs[1].(*model.CandidateRecord)
	assert.Equal(t, "Ravi Kumar", rec.Name)
	assert.Equal(t, "Kolathur", rec.Constituency)
	assert.Equal(t, "Naam Tamilar Katchi", rec.Party)
	assert.Equal(t, model.Some(string(model.StatusAnnounced)), rec.Status)
	assert.Equal(t, 2026, rec.Year)

	in.Data = []byte(`<html><body><p>No names here.</p></body></html>`)
	_, _, fatalErr = extract.Collect(NewAnnouncementAdapter().Parse(in))
	assert.Error(t, fatalErr)
}
