// Package merge folds resolved records into canonical entities under the
// trust-tier field policy and writes the audit trail.
package merge

import (
	"time"

	"github.com/ppiankov/tntracker/internal/model"
)

// Verdict is what the field policy decided for one incoming value
type Verdict int

const (
	Skip        Verdict = iota // Nothing to write
	Write                      // Write the value and its provenance
	MarkUnknown                // Record unknown provenance only
	Upgrade                    // Same value, now backed by a more trusted source
	Keep                       // Conflict resolved in favour of the stored value
)

func (v Verdict) String() string {
	switch v {
	case Write:
		return "write"
	case MarkUnknown:
		return "mark_unknown"
	case Upgrade:
		return "upgrade"
	case Keep:
		return "keep"
	default:
		return "skip"
	}
}

// Decision pairs a verdict with the reason written to the log
type Decision struct {
	Verdict Verdict
	Reason  model.ChangeReason
}

// Offer is one field value a source puts forward
type Offer struct {
	Field       string
	Value       any // nil unless Known
	Known       bool
	Tier        model.TrustTier
	RetrievedAt time.Time
}

// Policy applies the tier ranking to field conflicts
type Policy struct {
	Ranking model.TrustRanking
}

// Decide compares an offer with the stored value and its provenance. prov
// is nil when the field was never imported.
func (p Policy) Decide(stored any, prov *model.FieldProvenance, in Offer) Decision {
	if !in.Known {
		if prov == nil {
			return Decision{Verdict: MarkUnknown, Reason: model.ReasonFill}
		}
		return Decision{Verdict: Skip}
	}
	if prov == nil || !prov.Known || stored == nil {
		return Decision{Verdict: Write, Reason: model.ReasonFill}
	}

	same := stored == in.Value
	switch p.Ranking.Compare(in.Tier, prov.Tier) {
	case -1:
		if same {
			return Decision{Verdict: Skip}
		}
		return Decision{Verdict: Keep, Reason: model.ReasonKept}
	case 1:
		if same {
			return Decision{Verdict: Upgrade, Reason: model.ReasonHigherTier}
		}
		return Decision{Verdict: Write, Reason: model.ReasonHigherTier}
	}

	if same {
		return Decision{Verdict: Skip}
	}
	if in.RetrievedAt.Before(prov.RetrievedAt) {
		return Decision{Verdict: Keep, Reason: model.ReasonKept}
	}
	return Decision{Verdict: Write, Reason: model.ReasonRecency}
}

// offerString turns a record field into an offer. Absent fields yield false.
func offerString(field string, f model.Field[string], src Source) (Offer, bool) {
	return offerOf(field, f.Presence, f.Any(), src)
}

func offerInt(field string, f model.Field[int64], src Source) (Offer, bool) {
	return offerOf(field, f.Presence, f.Any(), src)
}

func offerOf(field string, presence model.Presence, value any, src Source) (Offer, bool) {
	if presence == model.Absent {
		return Offer{}, false
	}
	return Offer{
		Field:       field,
		Value:       value,
		Known:       presence == model.Known,
		Tier:        src.Doc.Tier,
		RetrievedAt: src.Doc.RetrievedAt,
	}, true
}

func knownOffer(field string, value any, src Source) Offer {
	return Offer{Field: field, Value: value, Known: true, Tier: src.Doc.Tier, RetrievedAt: src.Doc.RetrievedAt}
}
