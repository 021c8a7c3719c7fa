package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadFromFiles_Defaults(t *testing.T) {
	config, err := LoadFromFiles()
	require.NoError(t, err)

	assert.Equal(t, "development", config.Environment)
	assert.Equal(t, 100, config.Search.MaxResultsPerSearch)
	assert.Equal(t, 15, config.Resolver.MaxURLsPerBatch)
	assert.Equal(t, 75*time.Second, config.Resolver.BatchBudget)
	assert.Equal(t, 0.3, config.Recovery.RelevanceThreshold)
	assert.True(t, config.Browser.Enabled)
}

func TestLoadFromFiles_FileOverridesDefaults(t *testing.T) {
	path := writeConfigFile(t, `
environment = "production"

[search]
max_results_per_search = 50

[browser]
enabled = false
`)

	config, err := LoadFromFiles(path)
	require.NoError(t, err)
	assert.Equal(t, "production", config.Environment)
	assert.Equal(t, 50, config.Search.MaxResultsPerSearch)
	assert.False(t, config.Browser.Enabled)

	// Untouched sections keep their defaults.
	assert.Equal(t, 15, config.Resolver.MaxURLsPerBatch)
}

func TestLoadFromFiles_LaterFileWins(t *testing.T) {
	first := writeConfigFile(t, `
[search]
max_results_per_search = 50
`)
	second := writeConfigFile(t, `
[search]
max_results_per_search = 25
`)

	config, err := LoadFromFiles(first, second)
	require.NoError(t, err)
	assert.Equal(t, 25, config.Search.MaxResultsPerSearch)
}

func TestLoadFromFiles_EnvOverridesFile(t *testing.T) {
	path := writeConfigFile(t, `
[search]
max_results_per_search = 50
`)

	t.Setenv("HERALD_MAX_RESULTS_PER_SEARCH", "10")
	t.Setenv("HERALD_ENABLE_JAVASCRIPT_RENDERING", "false")
	t.Setenv("HERALD_MAX_URL_PROCESSING_TIME", "120")
	t.Setenv("HERALD_CATEGORY_RELEVANCE_THRESHOLD", "0.5")

	config, err := LoadFromFiles(path)
	require.NoError(t, err)
	assert.Equal(t, 10, config.Search.MaxResultsPerSearch)
	assert.False(t, config.Browser.Enabled)
	assert.Equal(t, 120*time.Second, config.Resolver.BatchBudget)
	assert.Equal(t, 0.5, config.Recovery.RelevanceThreshold)
}

func TestLoadFromFiles_MissingFile(t *testing.T) {
	_, err := LoadFromFiles(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestLoadFromFiles_ValidationRejectsBadValues(t *testing.T) {
	path := writeConfigFile(t, `
[extractor]
concurrency_limit = 50
`)

	_, err := LoadFromFiles(path)
	assert.Error(t, err, "concurrency limit above the cap fails validation")
}

func TestEnvHelpers_IgnoreGarbage(t *testing.T) {
	t.Setenv("HERALD_MAX_RESULTS_PER_SEARCH", "not-a-number")

	config, err := LoadFromFiles()
	require.NoError(t, err)
	assert.Equal(t, 100, config.Search.MaxResultsPerSearch, "unparseable env value ignored")
}
