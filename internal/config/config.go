package config

import (
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	perr "gong-wizard-go/internal/errors"
	"gong-wizard-go/internal/gong"
	"gong-wizard-go/internal/types"
)

const (
	defaultMinWordCount = 8
	defaultOutputDir    = "./gong_output"
	defaultRunlogPath   = "./gongwizard.db"
	defaultTimezone     = "UTC"
)

var (
	defaultExcludedTopics       = []string{"Call Setup", "Small Talk", "Wrap-up"}
	defaultExcludedAffiliations = []string{"Internal"}
)

type Config struct {
	GongAccessKey      string `yaml:"gong_access_key"`
	GongSecretKey      string `yaml:"gong_secret_key"`
	GongBaseURL        string `yaml:"gong_base_url"`
	GongBatchSize      int    `yaml:"gong_batch_size"`
	GongConcurrency    int    `yaml:"gong_concurrency"`
	GongMaxRetries     *int   `yaml:"gong_max_retries"`
	GongTimeoutSeconds int    `yaml:"gong_timeout_seconds"`
	GongPageDelayMs    *int   `yaml:"gong_page_delay_ms"`

	RunTimeoutSeconds int    `yaml:"run_timeout_seconds"`
	OutputDir         string `yaml:"output_dir"`
	RunlogPath        string `yaml:"runlog_path"`

	MinWordCount         *int     `yaml:"min_word_count"`
	MinCallSeconds       int      `yaml:"min_call_seconds"`
	Timezone             string   `yaml:"timezone"`
	ExtraProducts        []string `yaml:"extra_products"`
	ExcludedTopics       []string `yaml:"excluded_topics"`
	ExcludedAffiliations []string `yaml:"excluded_affiliations"`

	Location *time.Location `yaml:"-"`
}

// Load reads config.yaml (or CONFIG_PATH), then .env, then environment
// overrides, fills defaults and validates. A missing config file is fine.
func Load() (Config, error) {
	var cfg Config

	configPath := "config.yaml"
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		configPath = envPath
	}
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, perr.Wrapf(err, perr.CodeConfiguration, "parse %s", configPath)
		}
	}

	// .env never overrides variables already set in the environment
	_ = godotenv.Load()

	envOverride(&cfg.GongAccessKey, "GONG_ACCESS_KEY")
	envOverride(&cfg.GongSecretKey, "GONG_SECRET_KEY")
	envOverride(&cfg.GongBaseURL, "GONG_BASE_URL")
	envOverride(&cfg.OutputDir, "OUTPUT_DIR")
	envOverride(&cfg.RunlogPath, "RUNLOG_PATH")
	envOverride(&cfg.Timezone, "TIMEZONE")
	envOverrideList(&cfg.ExtraProducts, "EXTRA_PRODUCTS")
	envOverrideList(&cfg.ExcludedTopics, "EXCLUDED_TOPICS")
	envOverrideList(&cfg.ExcludedAffiliations, "EXCLUDED_AFFILIATIONS")
	ints := []struct {
		field *int
		key   string
	}{
		{&cfg.GongBatchSize, "GONG_BATCH_SIZE"},
		{&cfg.GongConcurrency, "GONG_CONCURRENCY"},
		{&cfg.GongTimeoutSeconds, "GONG_TIMEOUT_SECONDS"},
		{&cfg.RunTimeoutSeconds, "RUN_TIMEOUT_SECONDS"},
		{&cfg.MinCallSeconds, "MIN_CALL_SECONDS"},
	}
	for _, o := range ints {
		if err := envOverrideInt(o.field, o.key); err != nil {
			return Config{}, err
		}
	}
	if err := envOverrideIntPtr(&cfg.MinWordCount, "MIN_WORD_COUNT"); err != nil {
		return Config{}, err
	}
	if err := envOverrideIntPtr(&cfg.GongPageDelayMs, "GONG_PAGE_DELAY_MS"); err != nil {
		return Config{}, err
	}
	if err := envOverrideIntPtr(&cfg.GongMaxRetries, "GONG_MAX_RETRIES"); err != nil {
		return Config{}, err
	}

	// Defaults
	if cfg.GongBaseURL == "" {
		cfg.GongBaseURL = gong.DefaultBaseURL
	}
	if cfg.GongBatchSize == 0 {
		cfg.GongBatchSize = gong.DefaultBatchSize
	}
	if cfg.GongConcurrency == 0 {
		cfg.GongConcurrency = gong.DefaultConcurrency
	}
	if cfg.GongMaxRetries == nil {
		n := gong.DefaultMaxRetries
		cfg.GongMaxRetries = &n
	}
	if cfg.GongTimeoutSeconds == 0 {
		cfg.GongTimeoutSeconds = int(gong.DefaultTimeout / time.Second)
	}
	if cfg.GongPageDelayMs == nil {
		ms := int(gong.DefaultPageDelay / time.Millisecond)
		cfg.GongPageDelayMs = &ms
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = defaultOutputDir
	}
	if cfg.RunlogPath == "" {
		cfg.RunlogPath = defaultRunlogPath
	}
	if cfg.MinWordCount == nil {
		n := defaultMinWordCount
		cfg.MinWordCount = &n
	}
	if cfg.Timezone == "" {
		cfg.Timezone = defaultTimezone
	}
	if cfg.ExcludedTopics == nil {
		cfg.ExcludedTopics = append([]string(nil), defaultExcludedTopics...)
	}
	if cfg.ExcludedAffiliations == nil {
		cfg.ExcludedAffiliations = append([]string(nil), defaultExcludedAffiliations...)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if strings.EqualFold(c.Timezone, "Local") {
		c.Location = time.Local
	} else {
		loc, err := time.LoadLocation(c.Timezone)
		if err != nil {
			return perr.Wrapf(err, perr.CodeConfiguration, "invalid timezone '%s'", c.Timezone)
		}
		c.Location = loc
	}
	checks := []struct {
		name string
		val  int
		min  int
	}{
		{"gong_batch_size", c.GongBatchSize, 1},
		{"gong_concurrency", c.GongConcurrency, 1},
		{"gong_max_retries", *c.GongMaxRetries, 0},
		{"gong_timeout_seconds", c.GongTimeoutSeconds, 1},
		{"gong_page_delay_ms", *c.GongPageDelayMs, 0},
		{"run_timeout_seconds", c.RunTimeoutSeconds, 0},
		{"min_word_count", *c.MinWordCount, 0},
		{"min_call_seconds", c.MinCallSeconds, 0},
	}
	for _, ch := range checks {
		if ch.val < ch.min {
			return perr.Configf("invalid %s '%d': must be >= %d", ch.name, ch.val, ch.min)
		}
	}
	// the API caps callIds per request at 100
	if c.GongBatchSize > 100 {
		return perr.Configf("invalid gong_batch_size '%d': must be <= 100", c.GongBatchSize)
	}
	return c.Catalog().Validate()
}

// RequireCredentials reports whether the live API can be used.
func (c Config) RequireCredentials() error {
	if c.GongAccessKey == "" || c.GongSecretKey == "" {
		return perr.Configf("gong_access_key and gong_secret_key are required (via config.yaml or env var)")
	}
	return nil
}

func (c Config) Catalog() types.Catalog { return types.NewCatalog(c.ExtraProducts...) }

// BuildFilter parses the inclusive date range in the configured timezone and
// validates the product selection. It fails before anything is fetched.
func (c Config) BuildFilter(from, to string, products []string) (types.FilterConfig, error) {
	rng, err := types.ParseDateRange(from, to, c.Location)
	if err != nil {
		return types.FilterConfig{}, err
	}
	return types.NewFilterConfig(rng, products, c.Catalog(), types.FilterOptions{
		ExcludedTopics:       c.ExcludedTopics,
		ExcludedAffiliations: c.ExcludedAffiliations,
		MinWordCount:         *c.MinWordCount,
		MinCallDuration:      time.Duration(c.MinCallSeconds) * time.Second,
	})
}

func (c Config) Gong() gong.Config {
	return gong.Config{
		BaseURL:     c.GongBaseURL,
		AccessKey:   c.GongAccessKey,
		SecretKey:   c.GongSecretKey,
		BatchSize:   c.GongBatchSize,
		Concurrency: c.GongConcurrency,
		MaxRetries:  uint64(*c.GongMaxRetries),
		Timeout:     time.Duration(c.GongTimeoutSeconds) * time.Second,
		PageDelay:   time.Duration(*c.GongPageDelayMs) * time.Millisecond,
	}
}

func (c Config) RunTimeout() time.Duration {
	return time.Duration(c.RunTimeoutSeconds) * time.Second
}

func envOverride(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

func envOverrideInt(field *int, envKey string) error {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			return perr.Wrapf(err, perr.CodeConfiguration, "invalid %s '%s'", envKey, val)
		}
		*field = parsed
	}
	return nil
}

func envOverrideIntPtr(field **int, envKey string) error {
	if os.Getenv(envKey) == "" {
		return nil
	}
	var n int
	if err := envOverrideInt(&n, envKey); err != nil {
		return err
	}
	*field = &n
	return nil
}

// envOverrideList replaces field with the comma separated values of envKey.
func envOverrideList(field *[]string, envKey string) {
	val, ok := os.LookupEnv(envKey)
	if !ok {
		return
	}
	out := []string{}
	for _, item := range strings.Split(val, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	*field = out
}
