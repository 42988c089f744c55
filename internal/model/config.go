package model

import (
	"time"

	"github.com/ppiankov/tntracker/internal/logging"
)

// Config is the complete tntracker configuration
type Config struct {
	Database      DatabaseConfig       `yaml:"database" mapstructure:"database"`
	HTTP          HTTPConfig           `yaml:"http" mapstructure:"http"`
	Browser       BrowserConfig        `yaml:"browser" mapstructure:"browser"`
	Cache         CacheConfig          `yaml:"cache" mapstructure:"cache"`
	RateLimiting  RateLimitConfig      `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	Concurrency   ConcurrencyConfig    `yaml:"concurrency" mapstructure:"concurrency"`
	Trust         TrustConfig          `yaml:"trust" mapstructure:"trust"`
	Resolver      ResolverConfig       `yaml:"resolver" mapstructure:"resolver"`
	Election      ElectionConfig       `yaml:"election" mapstructure:"election"`
	Archive       ArchiveConfig        `yaml:"archive" mapstructure:"archive"`
	Lock          LockConfig           `yaml:"lock" mapstructure:"lock"`
	Metrics       MetricsConfig        `yaml:"metrics" mapstructure:"metrics"`
	Sync          SyncConfig           `yaml:"sync" mapstructure:"sync"`
	Announcements []AnnouncementSource `yaml:"announcements" mapstructure:"announcements"`
	Log           logging.Config       `yaml:"log" mapstructure:"log"`
}

// DatabaseConfig selects the relational store
type DatabaseConfig struct {
	Driver string `yaml:"driver" mapstructure:"driver"` // sqlite or postgres
	DSN    string `yaml:"dsn" mapstructure:"dsn"`
}

// HTTPConfig controls plain HTTP fetching
type HTTPConfig struct {
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent     string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes  int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	MaxAttempts   int           `yaml:"max_attempts" mapstructure:"max_attempts"`
	RespectRobots bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
	HTTPProxy     string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy    string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy       string        `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// BrowserConfig controls the headless browser fetcher
type BrowserConfig struct {
	ExecPath     string        `yaml:"exec_path,omitempty" mapstructure:"exec_path"`
	WaitSelector string        `yaml:"wait_selector" mapstructure:"wait_selector"`
	Timeout      time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// CacheConfig controls the fetch cache
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// RateLimitConfig controls per-domain request pacing
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size" mapstructure:"burst_size"`
}

// ConcurrencyConfig bounds the source worker pool
type ConcurrencyConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// TrustConfig maps origins to trust tiers and orders the tiers
type TrustConfig struct {
	Order           []string          `yaml:"order" mapstructure:"order"` // Most trusted first
	DomainMap       map[string]string `yaml:"domain_map,omitempty" mapstructure:"domain_map"`
	OfficialDomains []string          `yaml:"official_domains" mapstructure:"official_domains"`
	CivicDomains    []string          `yaml:"civic_domains" mapstructure:"civic_domains"`
	MediaDomains    []string          `yaml:"media_domains" mapstructure:"media_domains"`
	PathPatterns    []PathPattern     `yaml:"path_patterns,omitempty" mapstructure:"path_patterns"`
	LocalFileTier   string            `yaml:"local_file_tier" mapstructure:"local_file_tier"`
}

// PathPattern assigns a tier to URL paths matching a regular expression
type PathPattern struct {
	Pattern string `yaml:"pattern" mapstructure:"pattern"`
	Tier    string `yaml:"tier" mapstructure:"tier"`
}

// ResolverConfig holds the match thresholds, on a 0-100 scale
type ResolverConfig struct {
	AcceptThreshold float64 `yaml:"accept_threshold" mapstructure:"accept_threshold"`
	ReviewThreshold float64 `yaml:"review_threshold" mapstructure:"review_threshold"`
}

// ElectionConfig describes the default election and constituency scheme
type ElectionConfig struct {
	Year                  int    `yaml:"year" mapstructure:"year"`
	Name                  string `yaml:"name" mapstructure:"name"`
	MaxConstituencyNumber int    `yaml:"max_constituency_number" mapstructure:"max_constituency_number"`
}

// ArchiveConfig selects where raw fetched documents are kept
type ArchiveConfig struct {
	Backend  string `yaml:"backend" mapstructure:"backend"` // none, file, s3, gcs
	Dir      string `yaml:"dir,omitempty" mapstructure:"dir"`
	Bucket   string `yaml:"bucket,omitempty" mapstructure:"bucket"`
	Prefix   string `yaml:"prefix,omitempty" mapstructure:"prefix"`
	Region   string `yaml:"region,omitempty" mapstructure:"region"`
	Endpoint string `yaml:"endpoint,omitempty" mapstructure:"endpoint"`
}

// LockConfig selects the per-entity merge lock
type LockConfig struct {
	Backend   string        `yaml:"backend" mapstructure:"backend"` // memory or redis
	RedisAddr string        `yaml:"redis_addr,omitempty" mapstructure:"redis_addr"`
	TTL       time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

// MetricsConfig controls the OpenTelemetry meter provider. Without an OTLP
// endpoint the counters are only printed at the end of a command.
type MetricsConfig struct {
	Enabled      bool          `yaml:"enabled" mapstructure:"enabled"`
	OTLPEndpoint string        `yaml:"otlp_endpoint,omitempty" mapstructure:"otlp_endpoint"` // host:port of a gRPC collector
	Insecure     bool          `yaml:"insecure" mapstructure:"insecure"`
	Interval     time.Duration `yaml:"interval" mapstructure:"interval"`
}

// SyncConfig lists the steps and origins of a full sync
type SyncConfig struct {
	Steps            []string `yaml:"steps" mapstructure:"steps"`
	BoundaryOrigin   string   `yaml:"boundary_origin" mapstructure:"boundary_origin"`
	ResultsOrigin    string   `yaml:"results_origin,omitempty" mapstructure:"results_origin"`
	ResultsYear      int      `yaml:"results_year" mapstructure:"results_year"`
	AffidavitsOrigin string   `yaml:"affidavits_origin,omitempty" mapstructure:"affidavits_origin"`
	AffidavitsSchema string   `yaml:"affidavits_schema,omitempty" mapstructure:"affidavits_schema"`
	Form21EOrigins   []string `yaml:"form21e_origins,omitempty" mapstructure:"form21e_origins"`
	CohortIndexURL   string   `yaml:"cohort_index_url" mapstructure:"cohort_index_url"`
	CohortYear       int      `yaml:"cohort_year" mapstructure:"cohort_year"`
	CohortLimit      int      `yaml:"cohort_limit" mapstructure:"cohort_limit"`
	ManifestoIndex   string   `yaml:"manifesto_index,omitempty" mapstructure:"manifesto_index"`
	AssessmentIndex  string   `yaml:"assessment_index,omitempty" mapstructure:"assessment_index"`
}

// AnnouncementSource is a news page listing announced candidates
type AnnouncementSource struct {
	Name    string `yaml:"name" mapstructure:"name"`
	URL     string `yaml:"url" mapstructure:"url"`
	Pattern string `yaml:"pattern" mapstructure:"pattern"` // english or tamil
	Party   string `yaml:"party" mapstructure:"party"`
	Year    int    `yaml:"year,omitempty" mapstructure:"year"`
	Render  bool   `yaml:"render,omitempty" mapstructure:"render"` // Needs the browser fetcher
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "tntracker.db",
		},
		HTTP: HTTPConfig{
			Timeout:       30 * time.Second,
			UserAgent:     "tntracker/0.1 (+https://github.com/ppiankov/tntracker)",
			MaxBodyBytes:  50 << 20,
			MaxAttempts:   3,
			RespectRobots: true,
		},
		Browser: BrowserConfig{
			WaitSelector: "body",
			Timeout:      45 * time.Second,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       ".tntracker-cache",
			MemoryTTL: 15 * time.Minute,
			DiskTTL:   24 * time.Hour,
		},
		RateLimiting: RateLimitConfig{
			RequestsPerSecond: 2,
			BurstSize:         2,
		},
		Concurrency: ConcurrencyConfig{
			Workers: 4,
		},
		Trust: TrustConfig{
			Order: []string{"official", "secondary_civic", "media", "community"},
			OfficialDomains: []string{
				"eci.gov.in",
				"elections.tn.gov.in",
				"tn.gov.in",
				"nic.in",
			},
			CivicDomains: []string{
				"myneta.info",
				"adrindia.org",
			},
			MediaDomains: []string{
				"timesofindia.indiatimes.com",
				"thehindu.com",
				"tamil.timesnownews.com",
				"newstodaynet.com",
				"dtnext.in",
			},
			LocalFileTier: "official",
		},
		Resolver: ResolverConfig{
			AcceptThreshold: 90,
			ReviewThreshold: 75,
		},
		Election: ElectionConfig{
			Year:                  2026,
			Name:                  "Tamil Nadu Legislative Assembly",
			MaxConstituencyNumber: 234,
		},
		Archive: ArchiveConfig{
			Backend: "none",
		},
		Lock: LockConfig{
			Backend: "memory",
			TTL:     2 * time.Minute,
		},
		Metrics: MetricsConfig{
			Interval: 15 * time.Second,
		},
		Sync: SyncConfig{
			Steps:          []string{"boundaries", "results", "announcements", "legal-cohort", "manifestos", "assessments"},
			BoundaryOrigin: "https://raw.githubusercontent.com/baskicanvas/tamilnadu-assembly-constituency-maps/main/tn_ac_2021.geojson",
			ResultsYear:    2021,
			CohortIndexURL: "https://www.myneta.info/TamilNadu2021/",
			CohortYear:     2021,
		},
		Announcements: []AnnouncementSource{
			{
				Name:    "Times of India",
				URL:     "https://timesofindia.indiatimes.com/city/chennai/ntk-marches-ahead-by-declaring-candidates-commences-campaign/articleshow/125599015.cms",
				Pattern: "english",
				Party:   "Naam Tamilar Katchi",
			},
			{
				Name:    "Times Now Tamil",
				URL:     "https://tamil.timesnownews.com/news/tamil-nadu-election-2026-ntk-seeman-releases-first-100-candidates-list-check-star-faces-here-article-153251924",
				Pattern: "tamil",
				Party:   "Naam Tamilar Katchi",
			},
			{
				Name:    "News Today",
				URL:     "https://newstodaynet.com/2025/12/06/2026-polls-ntk-releases-first-list-of-100-candidates/",
				Pattern: "english",
				Party:   "Naam Tamilar Katchi",
			},
		},
		Log: logging.DefaultConfig(),
	}
}
