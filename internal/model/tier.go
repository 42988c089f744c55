package model

import (
	"fmt"
	"strings"
)

// TrustTier classifies how reliable a source is. The zero value is unknown.
type TrustTier int

const (
	TierUnknown        TrustTier = 0 // Not yet classified
	TierCommunity      TrustTier = 1 // Crowd-sourced or unverified lists
	TierMedia          TrustTier = 2 // News reports and announcements
	TierSecondaryCivic TrustTier = 3 // Civic aggregators such as ADR/MyNeta
	TierOfficial       TrustTier = 4 // Election commission and government documents
)

// AllTiers lists known tiers from most to least trusted in default order.
var AllTiers = []TrustTier{TierOfficial, TierSecondaryCivic, TierMedia, TierCommunity}

func (t TrustTier) String() string {
	switch t {
	case TierOfficial:
		return "official"
	case TierSecondaryCivic:
		return "secondary_civic"
	case TierMedia:
		return "media"
	case TierCommunity:
		return "community"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler
func (t TrustTier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (t *TrustTier) UnmarshalText(text []byte) error {
	tier, err := ParseTrustTier(string(text))
	if err != nil {
		return err
	}
	*t = tier
	return nil
}

// ParseTrustTier converts a tier name to a TrustTier.
func ParseTrustTier(s string) (TrustTier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "official", "4":
		return TierOfficial, nil
	case "secondary_civic", "secondary-civic", "civic", "adr", "3":
		return TierSecondaryCivic, nil
	case "media", "2":
		return TierMedia, nil
	case "community", "1":
		return TierCommunity, nil
	default:
		return TierUnknown, fmt.Errorf("unknown trust tier %q", s)
	}
}

// TrustRanking orders tiers. A higher rank wins field conflicts.
type TrustRanking map[TrustTier]int

// DefaultTrustRanking ranks tiers by their enum order.
func DefaultTrustRanking() TrustRanking {
	r := make(TrustRanking, len(AllTiers))
	for _, t := range AllTiers {
		r[t] = int(t)
	}
	return r
}

// NewTrustRanking builds a ranking from tier names listed most trusted first.
// An empty order yields the default ranking.
func NewTrustRanking(order []string) (TrustRanking, error) {
	if len(order) == 0 {
		return DefaultTrustRanking(), nil
	}
	r := make(TrustRanking, len(order))
	for i, name := range order {
		tier, err := ParseTrustTier(name)
		if err != nil {
			return nil, err
		}
		if _, dup := r[tier]; dup {
			return nil, fmt.Errorf("trust tier %q listed twice", name)
		}
		r[tier] = len(order) - i
	}
	return r, nil
}

// Rank returns the rank of t. Unranked tiers rank below every ranked tier.
func (r TrustRanking) Rank(t TrustTier) int {
	if rank, ok := r[t]; ok {
		return rank
	}
	return 0
}

// Compare returns -1, 0 or 1 as a ranks below, equal to or above b.
func (r TrustRanking) Compare(a, b TrustTier) int {
	ra, rb := r.Rank(a), r.Rank(b)
	switch {
	case ra < rb:
		return -1
	case ra > rb:
		return 1
	default:
		return 0
	}
}
