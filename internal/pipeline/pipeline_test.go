package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/tntracker/internal/archive"
	"github.com/ppiankov/tntracker/internal/errors"
	"github.com/ppiankov/tntracker/internal/fetch"
	"github.com/ppiankov/tntracker/internal/model"
	"github.com/ppiankov/tntracker/internal/store"
	"github.com/ppiankov/tntracker/internal/telemetry"
)

const rosterKolathur = `candidate,party,criminal_cases,education,age,constituency,myneta_url,needs_review,review_note
A. Kumar,DMK,2,Graduate,45,Kolathur,,,
`

const rosterMylapore = `candidate,party,criminal_cases,education,age,constituency,myneta_url,needs_review,review_note
S. Lakshmi,AIADMK,0,Post Graduate,51,Mylapore,,,
R. Senthil,BJP,1,Graduate,48,Mylapore,,,
`

const rosterMalformed = `candidate,party,criminal_cases,education,age,total_assets_rs,liabilities_rs,2021_constituency,2021_district,sitting_MLA,myneta_url
A. Kumar,DMK,2,Graduate,45,"Rs 12,34,567 ~ 12 Lacs+",Nil,Kolathur,Chennai,yes,
B. Devi,,Nil,,n/a,a lot of money,0,Gummidipoondi (SC),Tiruvallur,,
,DMK,0,,,,,Kolathur,,,
`

func testRouter() *fetch.Router {
	return &fetch.Router{
		HTTP: fetch.NewHTTPFetcher(model.HTTPConfig{
			Timeout:     5 * time.Second,
			UserAgent:   "tntracker-test",
			MaxAttempts: 1,
		}),
		File: fetch.NewFileFetcher(),
	}
}

func newTestOrchestrator(t *testing.T) (*Orchestrator, *store.Store, *model.Config) {
	t.Helper()
	ctx := context.Background()
	s, err := store.Open(ctx, model.DatabaseConfig{Driver: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(ctx))

	cfg := model.DefaultConfig()
	cfg.Concurrency.Workers = 2
	cfg.Cache.Enabled = false

	o, err := New(ctx, s, cfg, WithRouter(testRouter()), WithArchive(archive.Nop{}))
	require.NoError(t, err)
	t.Cleanup(o.Close)
	return o, s, cfg
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func counts(t *testing.T, s *store.Store) map[string]int64 {
	t.Helper()
	c, err := s.Counts(context.Background())
	require.NoError(t, err)
	return c
}

func csvServer(t *testing.T, files map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := files[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		_, _ = fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRun_PartialFailureIsIsolated(t *testing.T) {
	o, s, _ := newTestOrchestrator(t)
	srv := csvServer(t, map[string]string{
		"/kolathur.csv": rosterKolathur,
		"/mylapore.csv": rosterMylapore,
	})

	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL := dead.URL + "/roster.csv"
	dead.Close()

	run, err := o.Run(context.Background(), []SourceSpec{
		AffidavitSpec(srv.URL+"/kolathur.csv", "", 2026, model.TierUnknown),
		AffidavitSpec(deadURL, "", 2026, model.TierUnknown),
		AffidavitSpec(srv.URL+"/mylapore.csv", "", 2026, model.TierUnknown),
	})
	require.NoError(t, err)
	require.Len(t, run.Sources, 3)
	assert.Len(t, run.RunID, 36)

	assert.Equal(t, model.StateCompleted, run.Sources[0].State)
	assert.Equal(t, 1, run.Sources[0].Created)
	assert.NotZero(t, run.Sources[0].SourceDocumentID)

	assert.Equal(t, model.StateFailedSource, run.Sources[1].State)
	assert.Equal(t, deadURL, run.Sources[1].Origin)
	assert.NotEmpty(t, run.Sources[1].Error)

	assert.Equal(t, model.StateCompleted, run.Sources[2].State)
	assert.Equal(t, 2, run.Sources[2].Created)

	assert.True(t, run.HasFailures())
	assert.True(t, run.NeedsAttention())
	assert.Equal(t, 3, run.Totals().Created)
	assert.Equal(t, int64(3), counts(t, s)["candidates"])

	doc, err := o.Registry().Get(context.Background(), run.Sources[0].SourceDocumentID)
	require.NoError(t, err)
	assert.Equal(t, model.TierCommunity, doc.Tier)
}

func TestRun_ManyMoreSourcesThanWorkers(t *testing.T) {
	o, s, cfg := newTestOrchestrator(t)
	require.Equal(t, 2, cfg.Concurrency.Workers)

	dir := t.TempDir()
	var specs []SourceSpec
	for i := 0; i < 15; i++ {
		path := filepath.Join(dir, fmt.Sprintf("roster_%02d.csv", i))
		require.NoError(t, os.WriteFile(path, []byte(rosterKolathur), 0o644))
		specs = append(specs, AffidavitSpec(path, "", 2026, model.TierUnknown))
	}

	type outcome struct {
		run model.RunSummary
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		run, err := o.Run(context.Background(), specs)
		done <- outcome{run, err}
	}()

	var res outcome
	select {
	case res = <-done:
	case <-time.After(20 * time.Second):
		t.Fatal("run with more sources than the pool buffers did not finish")
	}
	require.NoError(t, res.err)
	require.Len(t, res.run.Sources, 15)
	for _, src := range res.run.Sources {
		assert.Equal(t, model.StateCompleted, src.State, src.Origin)
	}
	assert.Equal(t, int64(1), counts(t, s)["candidates"])
	assert.Equal(t, int64(15), counts(t, s)["source_documents"])
}

func TestRun_RecordsMetrics(t *testing.T) {
	ctx := context.Background()
	s, err := store.Open(ctx, model.DatabaseConfig{Driver: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(ctx))

	provider, err := telemetry.New(ctx, model.MetricsConfig{Enabled: true}, "test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = provider.Shutdown(ctx) })

	cfg := model.DefaultConfig()
	cfg.Cache.Enabled = false
	o, err := New(ctx, s, cfg, WithRouter(testRouter()), WithArchive(archive.Nop{}), WithMeterProvider(provider.MeterProvider()))
	require.NoError(t, err)
	t.Cleanup(o.Close)

	_, err = o.Run(ctx, []SourceSpec{AffidavitSpec(writeFile(t, "kolathur.csv", rosterKolathur), "", 2026, model.TierUnknown)})
	require.NoError(t, err)

	points, err := provider.Snapshot(ctx)
	require.NoError(t, err)
	var created, completed, timed bool
	for _, pt := range points {
		switch {
		case pt.Name == "tntracker.records" && strings.Contains(pt.Attrs, "outcome=created"):
			created = pt.Value == 1
		case pt.Name == "tntracker.sources" && pt.Attrs == "source=affidavits,state=completed":
			completed = pt.Value == 1
		case pt.Name == "tntracker.source.duration":
			timed = pt.Count == 1
		}
	}
	assert.True(t, created, "record outcome counted: %+v", points)
	assert.True(t, completed, "source state counted: %+v", points)
	assert.True(t, timed, "source duration recorded: %+v", points)
}

func TestRun_IdempotentOnUnchangedInput(t *testing.T) {
	o, s, _ := newTestOrchestrator(t)
	ctx := context.Background()
	path := writeFile(t, "mylapore.csv", rosterMylapore)
	specs := []SourceSpec{AffidavitSpec(path, "roster@^2", 2026, model.TierOfficial)}

	first, err := o.Run(ctx, specs)
	require.NoError(t, err)
	require.Equal(t, model.StateCompleted, first.Sources[0].State)
	assert.Equal(t, 2, first.Sources[0].Created)
	before := counts(t, s)

	second, err := o.Run(ctx, specs)
	require.NoError(t, err)
	assert.NotEqual(t, first.RunID, second.RunID)
	assert.Equal(t, first.Sources[0].SourceDocumentID, second.Sources[0].SourceDocumentID)
	assert.Zero(t, second.Sources[0].Created)
	assert.Zero(t, second.Sources[0].Updated)
	assert.Equal(t, 2, second.Sources[0].Unchanged)
	assert.False(t, second.NeedsAttention())

	assert.Equal(t, before, counts(t, s))
}

func TestRun_MalformedRowIsolation(t *testing.T) {
	o, s, _ := newTestOrchestrator(t)
	path := writeFile(t, "roster.csv", rosterMalformed)

	run, err := o.Run(context.Background(), []SourceSpec{AffidavitSpec(path, "", 0, model.TierSecondaryCivic)})
	require.NoError(t, err)

	src := run.Sources[0]
	assert.Equal(t, model.StateCompleted, src.State)
	assert.Equal(t, 2, src.Created)
	assert.Equal(t, 1, src.Failed, "row without a name")
	assert.Contains(t, strings.Join(src.Warnings, "\n"), "a lot of money")
	assert.Equal(t, int64(2), counts(t, s)["candidates"])
}

func TestRun_LocalInputProblemsAreConfigErrors(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)
	ctx := context.Background()

	run, err := o.Run(ctx, []SourceSpec{BoundarySpec(filepath.Join(t.TempDir(), "missing.geojson"), model.TierOfficial)})
	assert.True(t, errors.IsConfigError(err))
	assert.Equal(t, model.StateFailedSource, run.Sources[0].State)

	bad := writeFile(t, "manifestos.json", `{"not": "an array"}`)
	run, err = o.Run(ctx, []SourceSpec{ManifestoSpec(bad)})
	assert.True(t, errors.IsConfigError(err))
	assert.Equal(t, model.StateFailedSource, run.Sources[0].State)
}

func TestRun_StopLeavesSourcesPending(t *testing.T) {
	o, s, _ := newTestOrchestrator(t)
	path := writeFile(t, "kolathur.csv", rosterKolathur)

	o.Stop()
	assert.True(t, o.Stopping())

	run, err := o.Run(context.Background(), []SourceSpec{AffidavitSpec(path, "", 2026, model.TierOfficial)})
	require.NoError(t, err)
	assert.True(t, run.Stopped)
	assert.Equal(t, model.StatePending, run.Sources[0].State)
	assert.Zero(t, counts(t, s)["candidates"])
}

func profileHTML(name, party, constituency string) string {
	return fmt.Sprintf(`<html><head><title>%s(%s):Constituency- %s(CHENNAI) - Affidavit Information of Candidate:</title></head>
<body><table><tr><td>Age:</td><td>45</td></tr><tr><td>Total Assets</td><td>Rs 5,00,000</td></tr></table></body></html>`,
		name, party, constituency)
}

func cohortServer(t *testing.T) *httptest.Server {
	t.Helper()
	profiles := map[string]string{
		"10": profileHTML("A. Kumar", "DMK", "KOLATHUR"),
		"20": profileHTML("B. Ravi", "AIADMK", "KOLATHUR"),
		"30": profileHTML("C. Devi", "BJP", "MYLAPORE"),
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		switch {
		case r.URL.Path == "/" || r.URL.Path == "/index.php" && r.URL.Query().Get("action") == "":
			_, _ = fmt.Fprint(w, `<html><body>
<a href="index.php?action=show_candidates&amp;constituency_id=1">KOLATHUR</a>
<a href="index.php?action=show_candidates&amp;constituency_id=2">MYLAPORE</a>
<a href="index.php?action=show_candidates&amp;constituency_id=3">SAIDAPET</a>
<a href="index.php?action=show_candidates&amp;constituency_id=9">VIKRAVANDI : BYE ELECTION</a>
</body></html>`)
		case r.URL.Path == "/index.php":
			switch r.URL.Query().Get("constituency_id") {
			case "1":
				_, _ = fmt.Fprint(w, `<html><body><h3>KOLATHUR</h3>
<a href="candidate.php?candidate_id=20">B. Ravi</a><a href="candidate.php?candidate_id=10">A. Kumar</a></body></html>`)
			case "2":
				_, _ = fmt.Fprint(w, `<html><body><h3>MYLAPORE</h3><a href="candidate.php?candidate_id=30">C. Devi</a></body></html>`)
			default:
				http.NotFound(w, r)
			}
		case r.URL.Path == "/candidate.php":
			body, ok := profiles[r.URL.Query().Get("candidate_id")]
			if !ok {
				http.NotFound(w, r)
				return
			}
			_, _ = fmt.Fprint(w, body)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCohort_RespectsLimit(t *testing.T) {
	o, s, _ := newTestOrchestrator(t)
	srv := cohortServer(t)

	run, err := o.Cohort(context.Background(), CohortOptions{IndexURL: srv.URL + "/", Year: 2021, Limit: 2})
	require.NoError(t, err)
	require.Len(t, run.Sources, 2)
	assert.Equal(t, srv.URL+"/candidate.php?candidate_id=10", run.Sources[0].Origin)
	assert.Equal(t, srv.URL+"/candidate.php?candidate_id=20", run.Sources[1].Origin)
	for _, src := range run.Sources {
		assert.Equal(t, model.StateCompleted, src.State, src.Origin)
		assert.Equal(t, 1, src.Created, src.Origin)
	}
	assert.Equal(t, int64(2), counts(t, s)["candidates"])
	assert.Equal(t, int64(2), counts(t, s)["affidavits"])
}

func TestCohort_FailedListingIsReported(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)
	srv := cohortServer(t)

	run, err := o.Cohort(context.Background(), CohortOptions{IndexURL: srv.URL + "/", Year: 2021})
	require.NoError(t, err)
	require.Len(t, run.Sources, 4)

	assert.Equal(t, model.StateFailedSource, run.Sources[0].State)
	assert.Contains(t, run.Sources[0].Origin, "constituency_id=3")
	assert.Equal(t, 3, run.Totals().Created)
	assert.Len(t, run.FailedSources(), 1)
}

func TestCohort_FromFile(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)
	srv := cohortServer(t)
	list := writeFile(t, "profiles.txt", fmt.Sprintf("# cohort\n%[1]s/candidate.php?candidate_id=30\n\n%[1]s/candidate.php?candidate_id=30\n", srv.URL))

	run, err := o.Cohort(context.Background(), CohortOptions{FromFile: list, Year: 2021})
	require.NoError(t, err)
	require.Len(t, run.Sources, 1)
	assert.Equal(t, 1, run.Sources[0].Created)

	_, err = o.Cohort(context.Background(), CohortOptions{FromFile: filepath.Join(t.TempDir(), "nope.txt")})
	assert.True(t, errors.IsConfigError(err))

	_, err = o.Cohort(context.Background(), CohortOptions{})
	assert.True(t, errors.IsConfigError(err))
}

func TestSync_ContinuesPastFailingSteps(t *testing.T) {
	o, s, cfg := newTestOrchestrator(t)
	cfg.Sync = model.SyncConfig{
		Steps:            []string{"boundaries", "bogus", "affidavits", "manifestos"},
		BoundaryOrigin:   filepath.Join(t.TempDir(), "missing.geojson"),
		AffidavitsOrigin: writeFile(t, "kolathur.csv", rosterKolathur),
	}

	steps := o.Sync(context.Background(), cfg)
	require.Len(t, steps, 4)

	assert.Equal(t, KindBoundaries, steps[0].Step)
	assert.True(t, errors.IsConfigError(steps[0].Err))
	assert.True(t, steps[0].Failed())

	assert.True(t, errors.IsConfigError(steps[1].Err))

	assert.NoError(t, steps[2].Err)
	assert.False(t, steps[2].Failed())
	assert.Equal(t, 1, steps[2].Summary.Totals().Created)

	assert.Equal(t, "no origin configured", steps[3].Skipped)
	assert.Equal(t, int64(1), counts(t, s)["candidates"])
}

func TestAnnouncementSpecs_FilterByParty(t *testing.T) {
	sources := []model.AnnouncementSource{
		{Name: "A", URL: "https://news.example.org/a", Party: "Naam Tamilar Katchi"},
		{Name: "B", URL: "https://news.example.org/b", Party: "DMK", Pattern: "Tamil", Year: 2026},
	}

	all := AnnouncementSpecs(sources, "")
	require.Len(t, all, 2)
	assert.Equal(t, "english", all[0].Pattern)
	assert.Nil(t, all[0].Parser)

	dmk := AnnouncementSpecs(sources, "dmk")
	require.Len(t, dmk, 1)
	assert.Equal(t, "tamil", dmk[0].Pattern)
	assert.Equal(t, 2026, dmk[0].Year)
}

func TestNewLocker(t *testing.T) {
	ctx := context.Background()

	l, closeFn, err := NewLocker(ctx, model.LockConfig{Backend: "memory"})
	require.NoError(t, err)
	require.NoError(t, closeFn())
	unlock, err := l.Lock(ctx, "party:dmk")
	require.NoError(t, err)
	unlock()

	_, _, err = NewLocker(ctx, model.LockConfig{Backend: "redis"})
	assert.True(t, errors.IsConfigError(err))

	_, _, err = NewLocker(ctx, model.LockConfig{Backend: "etcd"})
	assert.True(t, errors.IsConfigError(err))
}
