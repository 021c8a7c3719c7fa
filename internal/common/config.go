package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration.
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Storage     StorageConfig   `toml:"storage"`
	Logging     LoggingConfig   `toml:"logging"`
	Search      SearchConfig    `toml:"search"`
	Resolver    ResolverConfig  `toml:"resolver"`
	Extractor   ExtractorConfig `toml:"extractor"`
	Browser     BrowserConfig   `toml:"browser"`
	Scheduler   SchedulerConfig `toml:"scheduler"`
	Alerts      AlertsConfig    `toml:"alerts"`
	Recovery    RecoveryConfig  `toml:"recovery"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration.
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

// SearchConfig controls Google News query construction and limits.
type SearchConfig struct {
	MaxResultsPerSearch int    `toml:"max_results_per_search" validate:"min=1"`
	DefaultLanguage     string `toml:"default_language"`
	DefaultCountry      string `toml:"default_country"`
	Endpoint            string `toml:"endpoint"` // Override for tests; empty uses news.google.com
}

// ResolverConfig holds the URL resolution budgets.
type ResolverConfig struct {
	MaxURLsPerBatch    int           `toml:"max_urls_per_batch" validate:"min=1"`
	BatchBudget        time.Duration `toml:"batch_budget"`
	PerURLBudget       time.Duration `toml:"per_url_budget"`
	RedirectHops       int           `toml:"redirect_hops"`
	RedirectHopTimeout time.Duration `toml:"redirect_hop_timeout"`
}

// ExtractorConfig holds article extraction budgets and retry parameters.
type ExtractorConfig struct {
	Timeout          time.Duration `toml:"timeout"` // Total per-article budget, split download/parse
	MaxRetries       int           `toml:"max_retries"`
	RetryBaseDelay   time.Duration `toml:"retry_base_delay"`
	RetryMultiplier  float64       `toml:"retry_multiplier"`
	ConcurrencyLimit int           `toml:"concurrency_limit" validate:"min=1,max=15"`
	MinContentLength int           `toml:"min_content_length"`
	DomainDelay      time.Duration `toml:"domain_delay"` // Per-domain politeness delay
	StoreMarkdown    bool          `toml:"store_markdown"`
}

// BrowserConfig controls the headless Chrome fallback.
type BrowserConfig struct {
	Enabled       bool          `toml:"enabled"` // JavaScript rendering toggle
	Headless      bool          `toml:"headless"`
	Timeout       time.Duration `toml:"timeout"`   // Navigation timeout
	WaitTime      time.Duration `toml:"wait_time"` // Post-navigation render wait
	MaxTabs       int           `toml:"max_tabs" validate:"min=1,max=10"`
	UserAgent     string        `toml:"user_agent"`
	RedirectSleep time.Duration `toml:"redirect_sleep"` // Google News redirect latency allowance
}

// SchedulerConfig controls periodic crawl sweeps and job hygiene.
type SchedulerConfig struct {
	Enabled             bool          `toml:"enabled"`
	MaxConcurrentJobs   int           `toml:"max_concurrent_jobs" validate:"min=1"`
	JobExecutionTimeout time.Duration `toml:"job_execution_timeout"`
	JobCleanupDays      int           `toml:"job_cleanup_days"`
	StuckThreshold      time.Duration `toml:"stuck_threshold"`
}

// AlertsConfig controls alert dispatch.
type AlertsConfig struct {
	MaxAlertsPerHour int           `toml:"max_alerts_per_hour"`
	DefaultCooldown  time.Duration `toml:"default_cooldown"`
	HistorySize      int           `toml:"history_size"`
	WebhookURL       string        `toml:"webhook_url"`
}

// RecoveryConfig controls failed-job analysis.
type RecoveryConfig struct {
	Window              time.Duration `toml:"window"`
	MaxRetries          int           `toml:"max_retries"`
	EscalationThreshold int           `toml:"escalation_threshold"`
	RelevanceThreshold  float64       `toml:"relevance_threshold" validate:"min=0,max=1"`
}

// DefaultUserAgent is the desktop user agent used for HTTP and browser requests.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// DefaultConfig returns the built-in defaults. File and environment values
// layer on top of these.
func DefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Storage: StorageConfig{
			Badger: BadgerConfig{Path: "./data/herald"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout"},
		},
		Search: SearchConfig{
			MaxResultsPerSearch: 100,
			DefaultLanguage:     "vi",
			DefaultCountry:      "VN",
		},
		Resolver: ResolverConfig{
			MaxURLsPerBatch:    15,
			BatchBudget:        75 * time.Second,
			PerURLBudget:       5 * time.Second,
			RedirectHops:       3,
			RedirectHopTimeout: 3 * time.Second,
		},
		Extractor: ExtractorConfig{
			Timeout:          30 * time.Second,
			MaxRetries:       3,
			RetryBaseDelay:   time.Second,
			RetryMultiplier:  2.0,
			ConcurrencyLimit: 5,
			MinContentLength: 50,
			DomainDelay:      time.Second,
		},
		Browser: BrowserConfig{
			Enabled:       true,
			Headless:      true,
			Timeout:       30 * time.Second,
			WaitTime:      4 * time.Second,
			MaxTabs:       10,
			UserAgent:     DefaultUserAgent,
			RedirectSleep: 4 * time.Second,
		},
		Scheduler: SchedulerConfig{
			Enabled:             true,
			MaxConcurrentJobs:   10,
			JobExecutionTimeout: 30 * time.Minute,
			JobCleanupDays:      30,
			StuckThreshold:      2 * time.Hour,
		},
		Alerts: AlertsConfig{
			MaxAlertsPerHour: 10,
			DefaultCooldown:  15 * time.Minute,
			HistorySize:      500,
		},
		Recovery: RecoveryConfig{
			Window:              24 * time.Hour,
			MaxRetries:          5,
			EscalationThreshold: 3,
			RelevanceThreshold:  0.3,
		},
	}
}

// LoadFromFiles loads configuration with layered precedence:
// defaults -> file1 -> file2 -> ... -> HERALD_* environment variables.
// Later files override earlier ones.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := DefaultConfig()

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if err := Validate(config); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks structural constraints on the configuration.
func Validate(config *Config) error {
	validate := validator.New()
	if err := validate.Struct(config); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func applyEnvOverrides(config *Config) {
	if v := os.Getenv("HERALD_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
	if v := os.Getenv("HERALD_BADGER_PATH"); v != "" {
		config.Storage.Badger.Path = v
	}
	if v := os.Getenv("HERALD_WEBHOOK_URL"); v != "" {
		config.Alerts.WebhookURL = v
	}
	if v, ok := envInt("HERALD_MAX_URLS_TO_PROCESS"); ok {
		config.Resolver.MaxURLsPerBatch = v
	}
	if v, ok := envSeconds("HERALD_MAX_URL_PROCESSING_TIME"); ok {
		config.Resolver.BatchBudget = v
	}
	if v, ok := envInt("HERALD_MAX_RESULTS_PER_SEARCH"); ok {
		config.Search.MaxResultsPerSearch = v
	}
	if v, ok := envInt("HERALD_MAX_TABS_PER_BROWSER"); ok {
		config.Browser.MaxTabs = v
	}
	if v, ok := envSeconds("HERALD_EXTRACTION_TIMEOUT"); ok {
		config.Extractor.Timeout = v
	}
	if v, ok := envInt("HERALD_EXTRACTION_MAX_RETRIES"); ok {
		config.Extractor.MaxRetries = v
	}
	if v, ok := envInt("HERALD_CRAWLER_CONCURRENCY_LIMIT"); ok {
		config.Extractor.ConcurrencyLimit = v
	}
	if v, ok := envBool("HERALD_ENABLE_JAVASCRIPT_RENDERING"); ok {
		config.Browser.Enabled = v
	}
	if v, ok := envBool("HERALD_BROWSER_HEADLESS"); ok {
		config.Browser.Headless = v
	}
	if v, ok := envInt("HERALD_MAX_CONCURRENT_JOBS"); ok {
		config.Scheduler.MaxConcurrentJobs = v
	}
	if v, ok := envSeconds("HERALD_JOB_EXECUTION_TIMEOUT"); ok {
		config.Scheduler.JobExecutionTimeout = v
	}
	if v, ok := envInt("HERALD_JOB_CLEANUP_DAYS"); ok {
		config.Scheduler.JobCleanupDays = v
	}
	if v, ok := envFloat("HERALD_CATEGORY_RELEVANCE_THRESHOLD"); ok {
		config.Recovery.RelevanceThreshold = v
	}
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, false
	}
	return n, true
}

func envSeconds(key string) (time.Duration, bool) {
	n, ok := envInt(key)
	if !ok {
		return 0, false
	}
	return time.Duration(n) * time.Second, true
}

func envBool(key string) (bool, bool) {
	v := os.Getenv(key)
	if v == "" {
		return false, false
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return false, false
	}
	return b, true
}

func envFloat(key string) (float64, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
