// Package config defines the edge cache configuration, loaded once at process
// start and passed explicitly into every component. There are no ambient
// globals: tier names, classifier rules and queue endpoints all flow from a
// single Config value.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rudrakanya/Simhasth-X8/errors"
)

// Config is the complete application configuration.
type Config struct {
	// BuildTag versions the physical tier names. Bumping it makes tiers from
	// previous builds stale; they are deleted on activation.
	BuildTag string `yaml:"build_tag"`

	Origin     OriginConfig     `yaml:"origin"`
	Tiers      TierConfig       `yaml:"tiers"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Precache   PrecacheConfig   `yaml:"precache"`
	Queue      QueueConfig      `yaml:"queue"`
	NATS       NATSConfig       `yaml:"nats"`
	Server     ServerConfig     `yaml:"server"`
}

// OriginConfig describes the upstream origin the edge proxies for.
type OriginConfig struct {
	// BaseURL is the origin root, e.g. "https://api.simhasth.example".
	BaseURL string `yaml:"base_url"`
	// Timeout bounds each upstream request.
	Timeout time.Duration `yaml:"timeout"`
	// ProbePath is fetched by the connectivity watcher.
	ProbePath string `yaml:"probe_path"`
	// ProbeInterval is how often connectivity is checked.
	ProbeInterval time.Duration `yaml:"probe_interval"`
}

// TierConfig bounds cache tier storage and governs eviction.
type TierConfig struct {
	// DynamicCeilingBytes is the byte ceiling for the dynamic tier. Static and
	// heritage tiers are never evicted by the governor.
	DynamicCeilingBytes int64 `yaml:"dynamic_ceiling_bytes"`
	// GovernorInterval is how often the size governor runs.
	GovernorInterval time.Duration `yaml:"governor_interval"`
	// CompressThresholdBytes: bodies at or above this size are gzip-compressed
	// inside the stored envelope. Zero disables compression.
	CompressThresholdBytes int `yaml:"compress_threshold_bytes"`
}

// ClassifierConfig drives request classification.
type ClassifierConfig struct {
	// StaticPrefixes are URL path prefixes served cache-first from the static tier.
	StaticPrefixes []string `yaml:"static_prefixes"`
	// AllowedHosts are third-party hosts (fonts, CDNs) treated as static assets.
	AllowedHosts []string `yaml:"allowed_hosts"`
	// APIPrefix marks API routes (network-first, dynamic tier).
	APIPrefix string `yaml:"api_prefix"`
	// MediaMarkers are path segments identifying heritage media content.
	MediaMarkers []string `yaml:"media_markers"`
}

// PrecacheConfig lists resources installed into the static tier up front.
type PrecacheConfig struct {
	// AppShell is the navigation fallback document.
	AppShell string `yaml:"app_shell"`
	// Assets are precached alongside the shell during install.
	Assets []string `yaml:"assets"`
	// Bundles are named resource groups cacheable on demand via the
	// cache-bundle control command, keyed by heritage site identifier.
	Bundles map[string][]string `yaml:"bundles"`
	// FetchConcurrency bounds parallel origin fetches during bundle caching.
	FetchConcurrency int `yaml:"fetch_concurrency"`
}

// QueueConfig routes deferred write categories.
type QueueConfig struct {
	// HeritagePrefix matches heritage data update endpoints.
	HeritagePrefix string `yaml:"heritage_prefix"`
	// FeedbackPrefix matches user feedback endpoints.
	FeedbackPrefix string `yaml:"feedback_prefix"`
	// AnalyticsPrefix matches analytics event endpoints.
	AnalyticsPrefix string `yaml:"analytics_prefix"`
	// AnalyticsBatchPath is where batched analytics events are delivered.
	AnalyticsBatchPath string `yaml:"analytics_batch_path"`
}

// NATSConfig holds the control-plane connection settings.
type NATSConfig struct {
	URL string `yaml:"url"`
	// ControlSubject carries control commands; status reports use
	// request/reply on the same subject.
	ControlSubject string `yaml:"control_subject"`
	// NotifySubject is where parsed push notifications are published.
	NotifySubject string `yaml:"notify_subject"`
	// Enabled turns the NATS control plane on. When false the edge runs with
	// the in-memory store and the websocket control surface only.
	Enabled bool `yaml:"enabled"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	ListenAddr  string `yaml:"listen_addr"`
	MetricsPort int    `yaml:"metrics_port"`
	HealthPort  int    `yaml:"health_port"`
}

// DefaultConfig returns a configuration suitable for local development.
func DefaultConfig() *Config {
	return &Config{
		BuildTag: "v1",
		Origin: OriginConfig{
			BaseURL:       "http://localhost:8000",
			Timeout:       15 * time.Second,
			ProbePath:     "/api/health",
			ProbeInterval: 30 * time.Second,
		},
		Tiers: TierConfig{
			DynamicCeilingBytes:    50 << 20, // 50 MiB
			GovernorInterval:       5 * time.Minute,
			CompressThresholdBytes: 1024,
		},
		Classifier: ClassifierConfig{
			StaticPrefixes: []string{"/static/", "/assets/", "/styles/", "/scripts/", "/icons/"},
			AllowedHosts:   []string{"fonts.googleapis.com", "fonts.gstatic.com", "cdn.jsdelivr.net"},
			APIPrefix:      "/api/",
			MediaMarkers:   []string{"/images/", "/models/", "/audio/", "/video/"},
		},
		Precache: PrecacheConfig{
			AppShell: "/index.html",
			Assets:   []string{"/", "/index.html", "/offline.html", "/styles/main.css", "/scripts/app.js"},
			Bundles: map[string][]string{
				"bateshwar": {
					"/media/models/bateshwar-main-temple.glb",
					"/media/images/bateshwar-complex.jpg",
					"/media/audio/bateshwar-guide-hi.mp3",
				},
				"udaygiri-caves": {
					"/media/models/udaygiri-cave5-varaha.glb",
					"/media/images/udaygiri-reliefs.jpg",
					"/media/audio/udaygiri-guide-hi.mp3",
				},
			},
			FetchConcurrency: 4,
		},
		Queue: QueueConfig{
			HeritagePrefix:     "/api/heritage/",
			FeedbackPrefix:     "/api/feedback",
			AnalyticsPrefix:    "/api/analytics",
			AnalyticsBatchPath: "/api/analytics/batch",
		},
		NATS: NATSConfig{
			URL:            "nats://localhost:4222",
			ControlSubject: "simhasth.edge.control",
			NotifySubject:  "simhasth.edge.notify",
			Enabled:        false,
		},
		Server: ServerConfig{
			ListenAddr:  ":8090",
			MetricsPort: 9090,
			HealthPort:  8081,
		},
	}
}

// Load reads a YAML configuration file, layering it over defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapFatal(err, "config", "Load", "read "+path)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.WrapFatal(err, "config", "Load", "parse yaml")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.BuildTag == "" {
		return errors.WrapFatal(errors.ErrMissingConfig, "config", "Validate", "build_tag")
	}
	if strings.ContainsAny(c.BuildTag, " ./") {
		return errors.WrapFatal(
			fmt.Errorf("build_tag %q contains reserved characters", c.BuildTag),
			"config", "Validate", "build_tag")
	}

	if c.Origin.BaseURL == "" {
		return errors.WrapFatal(errors.ErrMissingConfig, "config", "Validate", "origin.base_url")
	}
	parsed, err := url.Parse(c.Origin.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return errors.WrapFatal(
			fmt.Errorf("origin.base_url %q is not an absolute URL", c.Origin.BaseURL),
			"config", "Validate", "origin.base_url")
	}
	if c.Origin.Timeout <= 0 {
		return errors.WrapFatal(
			fmt.Errorf("origin.timeout must be positive, got %s", c.Origin.Timeout),
			"config", "Validate", "origin.timeout")
	}

	if c.Tiers.DynamicCeilingBytes <= 0 {
		return errors.WrapFatal(
			fmt.Errorf("tiers.dynamic_ceiling_bytes must be positive, got %d", c.Tiers.DynamicCeilingBytes),
			"config", "Validate", "tiers.dynamic_ceiling_bytes")
	}
	if c.Tiers.GovernorInterval <= 0 {
		return errors.WrapFatal(
			fmt.Errorf("tiers.governor_interval must be positive, got %s", c.Tiers.GovernorInterval),
			"config", "Validate", "tiers.governor_interval")
	}

	if c.Classifier.APIPrefix == "" {
		return errors.WrapFatal(errors.ErrMissingConfig, "config", "Validate", "classifier.api_prefix")
	}

	if c.NATS.Enabled {
		if c.NATS.URL == "" {
			return errors.WrapFatal(errors.ErrMissingConfig, "config", "Validate", "nats.url")
		}
		if c.NATS.ControlSubject == "" {
			return errors.WrapFatal(errors.ErrMissingConfig, "config", "Validate", "nats.control_subject")
		}
	}

	if c.Precache.FetchConcurrency <= 0 {
		c.Precache.FetchConcurrency = 4
	}

	return nil
}
