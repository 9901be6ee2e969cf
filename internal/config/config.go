package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"

	"github.com/couchcryptid/climate-health-dashboard/internal/domain"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Render defaults.
	Resolution    domain.Resolution
	LookbackDays  int
	DefaultRegion string
	MergePolicy   domain.MergePolicy

	ForecastHorizon       int
	ForecastIntervalWidth float64

	// Upstream HTTP policy, shared by every provider.
	SourceTimeout      time.Duration
	SourceMaxRetries   int
	SourceRateLimit    float64
	BreakerFailures    int
	BreakerOpenTimeout time.Duration

	NASAPowerBaseURL   string
	NASAPowerCommunity string

	WHOGHOBaseURL   string
	WHOGHOIndicator string
	WHOGHODisease   string

	CHIRPSEnabled      bool
	CHIRPSBaseURL      string
	CHIRPSPollInterval time.Duration
	CHIRPSPollTimeout  time.Duration

	// Region catalog. An empty path selects the embedded boundaries.
	RegionsGeoJSON     string
	RegionNameProperty string
	RegionISOProperty  string

	// Mapbox geocoding fallback for regions outside the catalog.
	MapboxToken     string
	MapboxEnabled   bool
	MapboxTimeout   time.Duration
	MapboxCacheSize int

	// Snapshot publishing.
	KafkaEnabled       bool
	KafkaBrokers       []string
	KafkaSnapshotTopic string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		DefaultRegion: sharedcfg.EnvOrDefault("DEFAULT_REGION", "Kenya"),

		NASAPowerBaseURL:   strings.TrimRight(sharedcfg.EnvOrDefault("NASA_POWER_BASE_URL", "https://power.larc.nasa.gov/api/temporal"), "/"),
		NASAPowerCommunity: sharedcfg.EnvOrDefault("NASA_POWER_COMMUNITY", "AG"),

		WHOGHOBaseURL:   strings.TrimRight(sharedcfg.EnvOrDefault("WHO_GHO_BASE_URL", "https://ghoapi.azureedge.net/api"), "/"),
		WHOGHOIndicator: sharedcfg.EnvOrDefault("WHO_GHO_INDICATOR", "WHS3_48"),
		WHOGHODisease:   sharedcfg.EnvOrDefault("WHO_GHO_DISEASE", "malaria"),

		CHIRPSEnabled: os.Getenv("CHIRPS_ENABLED") == "true",
		CHIRPSBaseURL: strings.TrimRight(sharedcfg.EnvOrDefault("CHIRPS_BASE_URL", "https://climateserv.servirglobal.net/api"), "/"),

		RegionsGeoJSON:     os.Getenv("REGIONS_GEOJSON"),
		RegionNameProperty: sharedcfg.EnvOrDefault("REGION_NAME_PROPERTY", "NAME_1"),
		RegionISOProperty:  sharedcfg.EnvOrDefault("REGION_ISO_PROPERTY", "ISO"),

		MapboxToken:     os.Getenv("MAPBOX_TOKEN"),
		MapboxCacheSize: parsePositiveIntOr("MAPBOX_CACHE_SIZE", 1000),

		KafkaEnabled:       os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSnapshotTopic: sharedcfg.EnvOrDefault("KAFKA_SNAPSHOT_TOPIC", "climate-health-snapshots"),
	}

	if cfg.Resolution, err = domain.ParseResolution(sharedcfg.EnvOrDefault("RESOLUTION", "monthly")); err != nil {
		return nil, fmt.Errorf("invalid RESOLUTION: %w", err)
	}
	if cfg.Resolution == domain.ResolutionAnnual {
		return nil, errors.New("invalid RESOLUTION: must be daily or monthly")
	}
	if cfg.MergePolicy, err = domain.ParseMergePolicy(sharedcfg.EnvOrDefault("MERGE_POLICY", "fill")); err != nil {
		return nil, fmt.Errorf("invalid MERGE_POLICY: %w", err)
	}

	if cfg.LookbackDays, err = parsePositiveInt("LOOKBACK_DAYS", "365"); err != nil {
		return nil, err
	}
	if cfg.ForecastHorizon, err = parsePositiveInt("FORECAST_HORIZON", "14"); err != nil {
		return nil, err
	}
	if cfg.BreakerFailures, err = parsePositiveInt("BREAKER_FAILURES", "5"); err != nil {
		return nil, err
	}

	retries, err := strconv.Atoi(sharedcfg.EnvOrDefault("SOURCE_MAX_RETRIES", "2"))
	if err != nil || retries < 0 {
		return nil, errors.New("invalid SOURCE_MAX_RETRIES")
	}
	cfg.SourceMaxRetries = retries

	width, err := strconv.ParseFloat(sharedcfg.EnvOrDefault("FORECAST_INTERVAL_WIDTH", "0.8"), 64)
	if err != nil || width <= 0 || width >= 1 {
		return nil, errors.New("invalid FORECAST_INTERVAL_WIDTH: must be between 0 and 1")
	}
	cfg.ForecastIntervalWidth = width

	limit, err := strconv.ParseFloat(sharedcfg.EnvOrDefault("SOURCE_RATE_LIMIT", "5"), 64)
	if err != nil || limit <= 0 {
		return nil, errors.New("invalid SOURCE_RATE_LIMIT")
	}
	cfg.SourceRateLimit = limit

	durations := []struct {
		key string
		def string
		dst *time.Duration
	}{
		{"SOURCE_TIMEOUT", "15s", &cfg.SourceTimeout},
		{"BREAKER_OPEN_TIMEOUT", "30s", &cfg.BreakerOpenTimeout},
		{"CHIRPS_POLL_INTERVAL", "2s", &cfg.CHIRPSPollInterval},
		{"CHIRPS_POLL_TIMEOUT", "60s", &cfg.CHIRPSPollTimeout},
		{"MAPBOX_TIMEOUT", "5s", &cfg.MapboxTimeout},
	}
	for _, d := range durations {
		v, err := time.ParseDuration(sharedcfg.EnvOrDefault(d.key, d.def))
		if err != nil || v <= 0 {
			return nil, fmt.Errorf("invalid %s", d.key)
		}
		*d.dst = v
	}

	cfg.MapboxEnabled = cfg.MapboxToken != ""
	if v := os.Getenv("MAPBOX_ENABLED"); v != "" {
		cfg.MapboxEnabled = v == "true"
	}

	if cfg.MapboxEnabled && cfg.MapboxToken == "" {
		return nil, errors.New("MAPBOX_ENABLED is true but MAPBOX_TOKEN is not set")
	}
	if cfg.KafkaEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
		}
		if cfg.KafkaSnapshotTopic == "" {
			return nil, errors.New("KAFKA_SNAPSHOT_TOPIC is required when KAFKA_ENABLED is true")
		}
	}
	if cfg.DefaultRegion == "" {
		return nil, errors.New("DEFAULT_REGION is required")
	}

	return cfg, nil
}

func parsePositiveInt(key, def string) (int, error) {
	n, err := strconv.Atoi(sharedcfg.EnvOrDefault(key, def))
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive integer", key)
	}
	return n, nil
}

func parsePositiveIntOr(key string, def int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return def
}
