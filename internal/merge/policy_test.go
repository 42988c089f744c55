package merge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ppiankov/tntracker/internal/model"
)

func TestPolicy_Decide(t *testing.T) {
	p := Policy{Ranking: model.DefaultTrustRanking()}
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)

	known := func(tier model.TrustTier, at time.Time) *model.FieldProvenance {
		return &model.FieldProvenance{Tier: tier, RetrievedAt: at, Known: true}
	}
	offer := func(v any, tier model.TrustTier, at time.Time) Offer {
		return Offer{Field: "age", Value: v, Known: true, Tier: tier, RetrievedAt: at}
	}

	tests := []struct {
		name    string
		stored  any
		prov    *model.FieldProvenance
		in      Offer
		verdict Verdict
		reason  model.ChangeReason
	}{
		{
			name:    "unset field is filled by any tier",
			in:      offer(int64(45), model.TierCommunity, t0),
			verdict: Write,
			reason:  model.ReasonFill,
		},
		{
			name:    "unknown provenance is filled",
			prov:    &model.FieldProvenance{Tier: model.TierOfficial, RetrievedAt: t1},
			in:      offer(int64(45), model.TierCommunity, t0),
			verdict: Write,
			reason:  model.ReasonFill,
		},
		{
			name:    "unknown offer without provenance is recorded",
			in:      Offer{Field: "age", Tier: model.TierMedia, RetrievedAt: t0},
			verdict: MarkUnknown,
			reason:  model.ReasonFill,
		},
		{
			name:    "unknown offer never overwrites",
			stored:  int64(45),
			prov:    known(model.TierCommunity, t0),
			in:      Offer{Field: "age", Tier: model.TierOfficial, RetrievedAt: t1},
			verdict: Skip,
		},
		{
			name:    "lower tier is kept out",
			stored:  int64(45),
			prov:    known(model.TierOfficial, t0),
			in:      offer(int64(46), model.TierMedia, t1),
			verdict: Keep,
			reason:  model.ReasonKept,
		},
		{
			name:    "lower tier restating the value is a no-op",
			stored:  int64(45),
			prov:    known(model.TierOfficial, t0),
			in:      offer(int64(45), model.TierMedia, t1),
			verdict: Skip,
		},
		{
			name:    "higher tier overwrites",
			stored:  int64(45),
			prov:    known(model.TierMedia, t1),
			in:      offer(int64(46), model.TierOfficial, t0),
			verdict: Write,
			reason:  model.ReasonHigherTier,
		},
		{
			name:    "higher tier confirming the value upgrades provenance",
			stored:  int64(45),
			prov:    known(model.TierMedia, t1),
			in:      offer(int64(45), model.TierOfficial, t0),
			verdict: Upgrade,
			reason:  model.ReasonHigherTier,
		},
		{
			name:    "equal tier newer retrieval overwrites",
			stored:  int64(45),
			prov:    known(model.TierMedia, t0),
			in:      offer(int64(46), model.TierMedia, t1),
			verdict: Write,
			reason:  model.ReasonRecency,
		},
		{
			name:    "equal tier same retrieval overwrites",
			stored:  int64(45),
			prov:    known(model.TierMedia, t0),
			in:      offer(int64(46), model.TierMedia, t0),
			verdict: Write,
			reason:  model.ReasonRecency,
		},
		{
			name:    "equal tier older retrieval is kept out",
			stored:  int64(45),
			prov:    known(model.TierMedia, t1),
			in:      offer(int64(46), model.TierMedia, t0),
			verdict: Keep,
			reason:  model.ReasonKept,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := p.Decide(tt.stored, tt.prov, tt.in)
			assert.Equal(t, tt.verdict, d.Verdict, "verdict %s", d.Verdict)
			assert.Equal(t, tt.reason, d.Reason)
		})
	}
}

func TestPolicy_CustomRanking(t *testing.T) {
	ranking, err := model.NewTrustRanking([]string{"media", "official", "secondary_civic", "community"})
	if !assert.NoError(t, err) {
		return
	}
	p := Policy{Ranking: ranking}
	at := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	d := p.Decide("IND", &model.FieldProvenance{Tier: model.TierOfficial, RetrievedAt: at, Known: true},
		Offer{Field: "party", Value: "DMK", Known: true, Tier: model.TierMedia, RetrievedAt: at})
	assert.Equal(t, Write, d.Verdict)
	assert.Equal(t, model.ReasonHigherTier, d.Reason)
}

func TestOfferOf_Presence(t *testing.T) {
	src := Source{Doc: model.SourceDocument{ID: 1, Tier: model.TierMedia}}

	_, ok := offerInt("age", model.Field[int64]{}, src)
	assert.False(t, ok)

	o, ok := offerInt("age", model.None[int64](), src)
	assert.True(t, ok)
	assert.False(t, o.Known)
	assert.Nil(t, o.Value)

	o, ok = offerString("gender", model.Some("F"), src)
	assert.True(t, ok)
	assert.True(t, o.Known)
	assert.Equal(t, "F", o.Value)
	assert.Equal(t, model.TierMedia, o.Tier)
}
