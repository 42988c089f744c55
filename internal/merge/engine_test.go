package merge

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/tntracker/internal/errors"
	"github.com/ppiankov/tntracker/internal/model"
	"github.com/ppiankov/tntracker/internal/normalize"
	"github.com/ppiankov/tntracker/internal/store"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T) (*Engine, *store.Store) {
	t.Helper()
	ctx := context.Background()
	s, err := store.Open(ctx, model.DatabaseConfig{Driver: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(ctx))

	e := New(s, nil, nil, Config{
		Election: model.ElectionConfig{Year: 2026, Name: "Tamil Nadu Assembly Election"},
		Now:      func() time.Time { return testNow },
	})
	return e, s
}

func newSource(t *testing.T, s *store.Store, origin string, tier model.TrustTier, at time.Time) Source {
	t.Helper()
	doc := model.SourceDocument{Origin: origin, Tier: tier, RetrievedAt: at, Checksum: "sum-" + origin}
	_, err := s.InsertSourceDocument(context.Background(), &doc)
	require.NoError(t, err)
	return Source{Doc: doc, RunID: "run-1"}
}

func candidate(name, party, constituency string) *model.CandidateRecord {
	return &model.CandidateRecord{
		RecordMeta:     model.RecordMeta{Row: 1},
		Name:           name,
		NameNormalized: normalize.Name(name),
		Party:          party,
		Constituency:   constituency,
		Year:           2026,
	}
}

func logCount(t *testing.T, s *store.Store) int64 {
	t.Helper()
	counts, err := s.Counts(context.Background())
	require.NoError(t, err)
	return counts["update_log"]
}

func TestMergeCandidate_LowerTierFillsButDoesNotOverwrite(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()
	official := newSource(t, s, "eci.csv", model.TierOfficial, testNow.Add(-2*time.Hour))
	civic := newSource(t, s, "adr.csv", model.TierSecondaryCivic, testNow.Add(-time.Hour))

	first := candidate("A. Kumar", "DMK", "Chennai Central")
	first.ConstituencyNo = model.Some(int64(18))
	id, outcome, err := e.MergeCandidate(ctx, official, first)
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeCreated, outcome)

	second := candidate("A Kumar", "DMK", "Chennai Central")
	second.Age = model.Some(int64(45))
	id2, outcome, err := e.MergeCandidate(ctx, civic, second)
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeUpdated, outcome)
	assert.Equal(t, id, id2)

	c, err := s.Candidate(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "A. Kumar", c.Name)
	require.NotNil(t, c.Age)
	assert.Equal(t, int64(45), *c.Age)

	entries, err := s.UpdateLog(ctx, model.EntityCandidate, id)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, model.ActionCreated, entries[0].Action)
	assert.Equal(t, model.ActionUpdated, entries[1].Action)
	require.Len(t, entries[1].Changes, 1)
	assert.Equal(t, "age", entries[1].Changes[0].Field)
	assert.Equal(t, model.ReasonFill, entries[1].Changes[0].Reason)
	require.Len(t, entries[1].Kept, 1)
	assert.Equal(t, "name", entries[1].Kept[0].Field)

	status, err := s.FieldStatus(ctx, model.EntityCandidate, id, "age")
	require.NoError(t, err)
	assert.Equal(t, model.FieldKnown, status)

	constituencies, err := s.Constituencies(ctx)
	require.NoError(t, err)
	require.Len(t, constituencies, 1)
	parties, err := s.Parties(ctx)
	require.NoError(t, err)
	require.Len(t, parties, 1)
}

func TestMergeCandidate_RerunIsIdempotent(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()
	src := newSource(t, s, "roster.csv", model.TierCommunity, testNow)

	rec := candidate("Senthil Kumar", "AIADMK", "Madurai East")
	rec.Age = model.Some(int64(52))
	rec.Gender = model.None[string]()
	_, outcome, err := e.MergeCandidate(ctx, src, rec)
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeCreated, outcome)

	before := logCount(t, s)
	_, outcome, err = e.MergeCandidate(ctx, src, rec)
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeUnchanged, outcome)
	assert.Equal(t, before, logCount(t, s))
}

func TestMergeCandidate_ConfirmedOncePerSource(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()
	a := newSource(t, s, "a.csv", model.TierMedia, testNow.Add(-time.Hour))
	b := newSource(t, s, "b.csv", model.TierMedia, testNow)

	rec := candidate("Ravi", "PMK", "Salem North")
	id, _, err := e.MergeCandidate(ctx, a, rec)
	require.NoError(t, err)

	_, outcome, err := e.MergeCandidate(ctx, b, rec)
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeUnchanged, outcome)
	_, _, err = e.MergeCandidate(ctx, b, rec)
	require.NoError(t, err)

	entries, err := s.UpdateLog(ctx, model.EntityCandidate, id)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, model.ActionConfirmed, entries[1].Action)
	assert.Equal(t, b.Doc.ID, entries[1].SourceDocumentID)
}

func TestMergeCandidate_ReviewBand(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()
	src := newSource(t, s, "roster.csv", model.TierMedia, testNow)

	_, _, err := e.MergeCandidate(ctx, src, candidate("Murugan", "DMK", "Tiruchi West"))
	require.NoError(t, err)

	id, outcome, err := e.MergeCandidate(ctx, src, candidate("Murugesan", "DMK", "Tiruchi West"))
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeNeedsReview, outcome)
	assert.Zero(t, id)

	items, err := s.ReviewItems(ctx, model.ReviewOpen)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, model.EntityCandidate, items[0].EntityType)
	require.Len(t, items[0].Candidates, 1)
	assert.Equal(t, "Murugan", items[0].Candidates[0].Name)

	_, _, err = e.MergeCandidate(ctx, src, candidate("Murugesan", "DMK", "Tiruchi West"))
	require.NoError(t, err)
	items, err = s.ReviewItems(ctx, "")
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestMergeCandidate_SameNameOtherPartyIsQueued(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()
	official := newSource(t, s, "eci.csv", model.TierOfficial, testNow.Add(-time.Hour))
	media := newSource(t, s, "news.html", model.TierMedia, testNow)

	id, outcome, err := e.MergeCandidate(ctx, official, candidate("A. Kumar", "DMK", "Kolathur"))
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeCreated, outcome)

	id2, outcome, err := e.MergeCandidate(ctx, media, candidate("A Kumar", "Independent", "Kolathur"))
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeNeedsReview, outcome)
	assert.Zero(t, id2)

	items, err := s.ReviewItems(ctx, model.ReviewOpen)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "same name, party differs", items[0].Reason)
	require.Len(t, items[0].Candidates, 1)
	assert.Equal(t, id, items[0].Candidates[0].EntityID)

	counts, err := s.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts["candidates"])
}

func TestMergeCandidate_ConcurrentSourcesMergeOnce(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()

	const n = 8
	sources := make([]Source, n)
	for i := range sources {
		sources[i] = newSource(t, s, fmt.Sprintf("roster-%d.csv", i), model.TierMedia, testNow.Add(time.Duration(i)*time.Minute))
	}

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for _, src := range sources {
		wg.Add(1)
		go func(src Source) {
			defer wg.Done()
			rec := candidate("Senthil Kumar", "AIADMK", "Madurai East")
			rec.Age = model.Some(int64(52))
			if _, _, err := e.MergeCandidate(ctx, src, rec); err != nil {
				errs <- err
			}
		}(src)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("merge failed: %v", err)
	}

	counts, err := s.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts["candidates"])
	assert.Equal(t, int64(1), counts["constituencies"])
	assert.Equal(t, int64(1), counts["parties"])
}

func TestMergeCandidate_FlaggedRowIsQueued(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()
	src := newSource(t, s, "roster.csv", model.TierCommunity, testNow)

	rec := candidate("K. Selvi", "NTK", "Vellore")
	rec.NeedsReview = true
	rec.ReviewNote = "two people with this name"
	_, outcome, err := e.MergeCandidate(ctx, src, rec)
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeNeedsReview, outcome)

	items, err := s.ReviewItems(ctx, model.ReviewOpen)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "two people with this name", items[0].Reason)

	counts, err := s.Counts(ctx)
	require.NoError(t, err)
	assert.Zero(t, counts["candidates"])
}

func TestMergeCandidate_Snapshots(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()
	official := newSource(t, s, "form21e.pdf", model.TierOfficial, testNow)
	media := newSource(t, s, "news.html", model.TierMedia, testNow.Add(time.Hour))

	rec := candidate("P. Anbu", "DMK", "Kolathur")
	rec.Result = &model.ResultRecord{Votes: model.Some(int64(105522)), VoteShare: model.Some(60.123), Position: model.Some(int64(1)), IsWinner: true}
	rec.Affidavit = &model.AffidavitRecord{
		Assets:        model.Some(int64(15_000_000_000)),
		CriminalCases: model.Some(int64(1)),
		Cases:         []model.LegalCaseRecord{{CaseNumber: "CC 12/2019", Court: "Chennai"}},
	}
	id, _, err := e.MergeCandidate(ctx, official, rec)
	require.NoError(t, err)

	lower := candidate("P. Anbu", "DMK", "Kolathur")
	lower.Result = &model.ResultRecord{Votes: model.Some(int64(99000)), IsWinner: true}
	lower.Affidavit = &model.AffidavitRecord{Assets: model.Some(int64(14_000_000_000))}
	_, outcome, err := e.MergeCandidate(ctx, media, lower)
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeUpdated, outcome)

	affidavits, err := s.Affidavits(ctx, id)
	require.NoError(t, err)
	require.Len(t, affidavits, 2)
	require.Len(t, affidavits[0].Cases, 1)
	assert.Equal(t, model.TierMedia, affidavits[1].Tier)

	election, err := s.EnsureElection(ctx, 2026, "")
	require.NoError(t, err)
	result, err := s.Result(ctx, id, election.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(105522), *result.Votes)
	assert.Equal(t, official.Doc.ID, result.SourceDocumentID)

	entries, err := s.UpdateLog(ctx, model.EntityCandidate, id)
	require.NoError(t, err)
	last := entries[len(entries)-1]
	require.Len(t, last.Kept, 1)
	assert.Equal(t, "result", last.Kept[0].Field)
}

func TestMergeBoundary_ReplacesGeometry(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()
	first := newSource(t, s, "ac2008.geojson", model.TierOfficial, testNow.Add(-time.Hour))
	second := newSource(t, s, "ac2026.geojson", model.TierOfficial, testNow)

	rec := &model.ConstituencyRecord{
		Name:           "Mylapore",
		NameNormalized: normalize.Name("Mylapore"),
		Number:         model.Some(int64(25)),
		Geometry:       []byte(`{"type":"Point","coordinates":[80.26,13.03]}`),
	}
	outcome, err := e.MergeBoundary(ctx, first, rec)
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeCreated, outcome)

	rec.Geometry = []byte(`{"type":"Point","coordinates":[80.27,13.04]}`)
	outcome, err = e.MergeBoundary(ctx, second, rec)
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeUpdated, outcome)

	cs, err := s.Constituencies(ctx)
	require.NoError(t, err)
	require.Len(t, cs, 1)
	assert.JSONEq(t, string(rec.Geometry), string(cs[0].Boundary))
	require.NotNil(t, cs[0].BoundarySource)
	assert.Equal(t, second.Doc.ID, *cs[0].BoundarySource)
}

func TestMergeBoundary_UnnumberedMustResolve(t *testing.T) {
	e, s := newTestEngine(t)
	src := newSource(t, s, "wards.geojson", model.TierMedia, testNow)

	outcome, err := e.MergeBoundary(context.Background(), src, &model.ConstituencyRecord{
		Name:           "Nowhere",
		NameNormalized: "nowhere",
		Geometry:       []byte(`{"type":"Point","coordinates":[0,0]}`),
	})
	assert.ErrorIs(t, err, ErrUnresolved)
	assert.Equal(t, model.OutcomeSkipped, outcome)
}

func TestApply_UnknownRecordType(t *testing.T) {
	e, _ := newTestEngine(t)
	outcome, err := e.Apply(context.Background(), Source{}, &struct{ model.RecordMeta }{})
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
	assert.Equal(t, model.OutcomeSkipped, outcome)
}

func TestMergeManifestoAndAssessment(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()
	index := newSource(t, s, "manifestos.json", model.TierOfficial, testNow)

	outcome, err := e.Apply(ctx, index, &model.ManifestoRecord{
		Party:     "DMK",
		Coalition: "Secular Progressive Alliance",
		Members:   []string{"INC", "VCK"},
		Documents: []model.ManifestoDocumentRecord{{Language: "en", URL: "https://example.org/dmk-en.pdf"}},
		Promises:  []model.PromiseRecord{{Slug: "free-bus-travel", Text: "Free bus travel for women"}},
	})
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeCreated, outcome)

	coalition, err := s.CoalitionByName(ctx, normalize.Name("Secular Progressive Alliance"), ptr(int64(1)))
	require.NoError(t, err)
	assert.Len(t, coalition.PartyIDs, 3)

	claims := newSource(t, s, "claims.json", model.TierMedia, testNow)
	outcome, err = e.Apply(ctx, claims, &model.ClaimRecord{Party: "DMK", ClaimedPercent: 85})
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeCreated, outcome)

	assessments := newSource(t, s, "assessments.json", model.TierMedia, testNow)
	outcome, err = e.Apply(ctx, assessments, &model.AssessmentRecord{
		PromiseSlug: "free-bus-travel",
		Party:       "DMK",
		Scope:       model.ScopeState,
		Status:      model.AssessmentFulfilled,
		Score:       model.Some(0.9),
	})
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeCreated, outcome)

	party, err := e.lookupParty(ctx, "DMK")
	require.NoError(t, err)
	claim, err := s.LatestClaim(ctx, *party, nil)
	require.NoError(t, err)

	counts, err := s.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts["promise_assessments"])
	assert.Equal(t, int64(1), counts["manifesto_promises"])
	assert.NotZero(t, claim.ID)

	_, err = e.Apply(ctx, assessments, &model.AssessmentRecord{
		PromiseSlug: "no-such-promise",
		Party:       "DMK",
		Scope:       model.ScopeState,
	})
	assert.ErrorIs(t, err, ErrUnresolved)
}

func ptr[T any](v T) *T { return &v }
