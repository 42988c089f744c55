package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTrustTier(t *testing.T) {
	tests := []struct {
		in   string
		want TrustTier
		ok   bool
	}{
		{"official", TierOfficial, true},
		{"ADR", TierSecondaryCivic, true},
		{"secondary-civic", TierSecondaryCivic, true},
		{"media", TierMedia, true},
		{"community", TierCommunity, true},
		{"blog", TierUnknown, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTrustTier(tt.in)
			if !tt.ok {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTrustRanking_Default(t *testing.T) {
	r := DefaultTrustRanking()
	assert.Equal(t, 1, r.Compare(TierOfficial, TierSecondaryCivic))
	assert.Equal(t, -1, r.Compare(TierMedia, TierSecondaryCivic))
	assert.Equal(t, 0, r.Compare(TierMedia, TierMedia))
	assert.Equal(t, -1, r.Compare(TierUnknown, TierCommunity))
}

func TestTrustRanking_Custom(t *testing.T) {
	r, err := NewTrustRanking([]string{"secondary_civic", "official", "media"})
	require.NoError(t, err)

	assert.Equal(t, 1, r.Compare(TierSecondaryCivic, TierOfficial))
	assert.Equal(t, 1, r.Compare(TierMedia, TierCommunity), "unranked tiers sort last")

	_, err = NewTrustRanking([]string{"official", "official"})
	assert.Error(t, err)
}

func TestTrustTier_TextRoundTrip(t *testing.T) {
	var tier TrustTier
	require.NoError(t, tier.UnmarshalText([]byte("secondary_civic")))
	assert.Equal(t, TierSecondaryCivic, tier)

	text, err := tier.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "secondary_civic", string(text))
}

func TestRunSummary_Totals(t *testing.T) {
	var ok SourceSummary
	ok.Count(OutcomeCreated)
	ok.Count(OutcomeCreated)
	ok.Count(OutcomeUnchanged)
	ok.State = StateCompleted

	bad := SourceSummary{State: StateFailedSource}

	run := RunSummary{Sources: []SourceSummary{ok, bad}}
	totals := run.Totals()

	assert.Equal(t, 2, totals.Created)
	assert.Equal(t, 1, totals.Unchanged)
	assert.True(t, run.HasFailures())
	assert.True(t, run.NeedsAttention())
	assert.Len(t, run.FailedSources(), 1)
}

func TestParseEntityType(t *testing.T) {
	for in, want := range map[string]EntityType{
		"candidate":  EntityCandidate,
		" Party ":    EntityParty,
		"assessment": EntityAssessment,
		"claim":      EntityClaim,
	} {
		got, err := ParseEntityType(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := ParseEntityType("voter")
	assert.Error(t, err)
}
