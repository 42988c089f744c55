package trust

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/ppiankov/tntracker/internal/model"
)

// Classifier maps source origins to trust tiers
type Classifier struct {
	config       *model.TrustConfig
	officialMap  map[string]bool
	civicMap     map[string]bool
	mediaMap     map[string]bool
	pathPatterns []*compiledPattern
	localTier    model.TrustTier
}

type compiledPattern struct {
	pattern *regexp.Regexp
	tier    model.TrustTier
}

// NewClassifier creates a classifier from the trust configuration
func NewClassifier(config *model.TrustConfig) *Classifier {
	if config == nil {
		config = &model.DefaultConfig().Trust
	}

	c := &Classifier{
		config:      config,
		officialMap: toSet(config.OfficialDomains),
		civicMap:    toSet(config.CivicDomains),
		mediaMap:    toSet(config.MediaDomains),
		localTier:   model.TierCommunity,
	}

	if tier, err := model.ParseTrustTier(config.LocalFileTier); err == nil {
		c.localTier = tier
	}

	for _, pp := range config.PathPatterns {
		re, err := regexp.Compile(pp.Pattern)
		if err != nil {
			continue
		}
		tier, err := model.ParseTrustTier(pp.Tier)
		if err != nil {
			continue
		}
		c.pathPatterns = append(c.pathPatterns, &compiledPattern{pattern: re, tier: tier})
	}

	return c
}

func toSet(domains []string) map[string]bool {
	m := make(map[string]bool, len(domains))
	for _, d := range domains {
		m[strings.ToLower(d)] = true
	}
	return m
}

// Classify returns the tier for an origin. Local paths get the configured
// local file tier, unmatched hosts are community.
func (c *Classifier) Classify(origin string) model.TrustTier {
	parsed, err := url.Parse(origin)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return c.localTier
	}

	host := strings.ToLower(parsed.Hostname())

	// Explicit mappings win
	if tierStr, ok := c.config.DomainMap[host]; ok {
		if tier, err := model.ParseTrustTier(tierStr); err == nil {
			return tier
		}
	}

	if matchDomain(host, c.officialMap) {
		return model.TierOfficial
	}
	if matchDomain(host, c.civicMap) {
		return model.TierSecondaryCivic
	}
	if matchDomain(host, c.mediaMap) {
		return model.TierMedia
	}

	for _, cp := range c.pathPatterns {
		if cp.pattern.MatchString(parsed.Path) {
			return cp.tier
		}
	}

	// Indian government hosts
	if strings.HasSuffix(host, ".gov.in") || strings.HasSuffix(host, ".nic.in") {
		return model.TierOfficial
	}

	return model.TierCommunity
}

// matchDomain reports whether host equals or is a subdomain of any entry.
func matchDomain(host string, domains map[string]bool) bool {
	if domains[host] {
		return true
	}
	for d := range domains {
		if strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// FromSourceType maps the source_type strings used by JSON indexes to a tier.
func FromSourceType(sourceType string, fallback model.TrustTier) model.TrustTier {
	switch strings.ToLower(strings.TrimSpace(sourceType)) {
	case "official", "eci", "government":
		return model.TierOfficial
	case "adr", "myneta", "civic", "secondary_civic":
		return model.TierSecondaryCivic
	case "media", "news":
		return model.TierMedia
	case "community", "party", "social":
		return model.TierCommunity
	default:
		return fallback
	}
}
