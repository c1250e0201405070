package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	perr "gong-wizard-go/internal/errors"
)

var configKeys = []string{
	"GONG_ACCESS_KEY", "GONG_SECRET_KEY", "GONG_BASE_URL", "GONG_BATCH_SIZE", "GONG_CONCURRENCY",
	"GONG_MAX_RETRIES", "GONG_TIMEOUT_SECONDS", "GONG_PAGE_DELAY_MS", "RUN_TIMEOUT_SECONDS", "OUTPUT_DIR",
	"RUNLOG_PATH", "MIN_WORD_COUNT", "MIN_CALL_SECONDS", "TIMEZONE", "EXTRA_PRODUCTS", "EXCLUDED_TOPICS",
	"EXCLUDED_AFFILIATIONS",
}

// cleanEnv unsets every config variable for the duration of the test.
func cleanEnv(t *testing.T) {
	t.Helper()
	for _, k := range configKeys {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
}

func writeYAML(t *testing.T, content string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("CONFIG_PATH", path)
}

func TestLoadDefaults(t *testing.T) {
	cleanEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://us-11211.api.gong.io", cfg.GongBaseURL)
	assert.Equal(t, 20, cfg.GongBatchSize)
	assert.Equal(t, 8, *cfg.MinWordCount)
	assert.Equal(t, []string{"Call Setup", "Small Talk", "Wrap-up"}, cfg.ExcludedTopics)
	assert.Equal(t, []string{"Internal"}, cfg.ExcludedAffiliations)
	assert.Equal(t, "UTC", cfg.Location.String())
	assert.Equal(t, time.Second, cfg.Gong().PageDelay)
	assert.Equal(t, 60*time.Second, cfg.Gong().Timeout)
	assert.EqualValues(t, 4, cfg.Gong().MaxRetries)
	assert.Zero(t, cfg.RunTimeout())

	err = cfg.RequireCredentials()
	assert.True(t, perr.IsCode(err, perr.CodeConfiguration))
}

func TestYAMLThenEnvOverride(t *testing.T) {
	cleanEnv(t)
	writeYAML(t, `
gong_access_key: "yaml-ak"
gong_secret_key: "yaml-sk"
gong_batch_size: 50
min_word_count: 0
timezone: "America/New_York"
extra_products: ["demand response"]
excluded_topics: []
`)
	t.Setenv("GONG_BATCH_SIZE", "10")
	t.Setenv("GONG_SECRET_KEY", "env-sk")
	t.Setenv("EXCLUDED_AFFILIATIONS", "Internal, Partner")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "yaml-ak", cfg.GongAccessKey)
	assert.Equal(t, "env-sk", cfg.GongSecretKey)
	assert.Equal(t, 10, cfg.GongBatchSize)
	assert.Equal(t, 0, *cfg.MinWordCount, "explicit zero is kept")
	assert.Empty(t, cfg.ExcludedTopics, "explicit empty list is kept")
	assert.Equal(t, []string{"Internal", "Partner"}, cfg.ExcludedAffiliations)
	assert.Equal(t, "America/New_York", cfg.Location.String())
	assert.NoError(t, cfg.RequireCredentials())
	assert.Contains(t, cfg.Catalog().Names(), "demand response")
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"non numeric", "GONG_BATCH_SIZE", "lots"},
		{"batch too large", "GONG_BATCH_SIZE", "500"},
		{"negative word count", "MIN_WORD_COUNT", "-1"},
		{"unknown timezone", "TIMEZONE", "Mars/Olympus"},
		{"negative concurrency", "GONG_CONCURRENCY", "-2"},
		{"negative retries", "GONG_MAX_RETRIES", "-1"},
		{"product slug collides", "EXTRA_PRODUCTS", "iaq-monitoring"},
		{"product named summary", "EXTRA_PRODUCTS", "summary"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cleanEnv(t)
			t.Setenv(tt.key, tt.val)
			_, err := Load()
			require.Error(t, err)
			assert.True(t, perr.IsCode(err, perr.CodeConfiguration), err.Error())
		})
	}
}

func TestZeroRetriesDisablesRetry(t *testing.T) {
	cleanEnv(t)
	writeYAML(t, "gong_max_retries: 0\n")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Zero(t, cfg.Gong().MaxRetries)

	t.Setenv("GONG_MAX_RETRIES", "2")
	cfg, err = Load()
	require.NoError(t, err)
	assert.EqualValues(t, 2, cfg.Gong().MaxRetries)
}

func TestLoadRejectsBrokenYAML(t *testing.T) {
	cleanEnv(t)
	writeYAML(t, "gong_batch_size: [not, an, int]\n")
	_, err := Load()
	assert.True(t, perr.IsCode(err, perr.CodeConfiguration))
}

func TestBuildFilter(t *testing.T) {
	cleanEnv(t)
	t.Setenv("EXTRA_PRODUCTS", "demand response")
	t.Setenv("MIN_CALL_SECONDS", "120")
	cfg, err := Load()
	require.NoError(t, err)

	f, err := cfg.BuildFilter("2025-04-07", "2025-04-14", []string{"ODCV", "Demand  Response"})
	require.NoError(t, err)
	assert.Equal(t, []string{"demand response", "odcv"}, f.Products())
	assert.Equal(t, 8, f.MinWordCount())
	assert.Equal(t, 2*time.Minute, f.MinCallDuration())
	assert.True(t, f.TopicExcluded("small talk"))
	assert.Equal(t, "07apr25_to_14apr25", f.Range().Label())

	_, err = cfg.BuildFilter("2025-04-14", "2025-04-07", []string{"odcv"})
	assert.True(t, perr.IsCode(err, perr.CodeInvalidRange))

	_, err = cfg.BuildFilter("2025-04-07", "2025-04-14", nil)
	assert.True(t, perr.IsCode(err, perr.CodeConfiguration))

	_, err = cfg.BuildFilter("2025-04-07", "2025-04-14", []string{"widgets"})
	assert.True(t, perr.IsCode(err, perr.CodeConfiguration))

	_, err = cfg.BuildFilter("april", "2025-04-14", []string{"odcv"})
	assert.True(t, perr.IsCode(err, perr.CodeConfiguration))
}
