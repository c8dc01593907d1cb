package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/v64/genome-browser/internal/discovery"
	"github.com/v64/genome-browser/internal/repute"
	"github.com/v64/genome-browser/internal/snpedia"
)

func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("GENOME_BROWSER_ORACLE_API_KEY", "")
	return home
}

func TestSettings_Defaults(t *testing.T) {
	home := isolate(t)

	v, err := newViper("")
	require.NoError(t, err)
	s, err := loadSettings(v)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, ".genome-browser", "genome.duckdb"), s.DB)
	assert.Empty(t, s.Oracle.APIKey)
	assert.True(t, s.Oracle.Embeddings)
	assert.Equal(t, snpedia.DefaultAPIURL, s.SNPedia.APIURL)
	assert.Equal(t, snpedia.DefaultRequestDelay, s.SNPedia.RequestDelay)
	assert.Equal(t, 4, s.Improve.Concurrency)
	assert.Equal(t, discovery.DefaultConfig().CycleDelay, s.Discovery.CycleDelay)
	assert.Equal(t, discovery.DefaultConfig().QueueCapacity, s.Discovery.QueueCapacity)
	assert.Equal(t, 10*time.Second, s.Discovery.StatusInterval)
	assert.Equal(t, repute.DefaultPhrases(), s.Phrases())
}

func TestSettings_Environment(t *testing.T) {
	isolate(t)
	t.Setenv("GENOME_BROWSER_DISCOVERY_CYCLE_DELAY", "5s")
	t.Setenv("GENOME_BROWSER_IMPROVE_CONCURRENCY", "8")
	t.Setenv("GENOME_BROWSER_ORACLE_EMBEDDINGS", "false")
	t.Setenv("OPENAI_API_KEY", "sk-from-openai-env")

	v, err := newViper("")
	require.NoError(t, err)
	s, err := loadSettings(v)
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, s.Discovery.CycleDelay)
	assert.Equal(t, 8, s.Improve.Concurrency)
	assert.False(t, s.Oracle.Embeddings)
	assert.Equal(t, "sk-from-openai-env", s.Oracle.APIKey)
	assert.Equal(t, "sk-from-openai-env", s.OracleConfig().APIKey)
}

func TestSettings_PrefixedKeyWins(t *testing.T) {
	isolate(t)
	t.Setenv("OPENAI_API_KEY", "sk-generic")
	t.Setenv("GENOME_BROWSER_ORACLE_API_KEY", "sk-specific")

	v, err := newViper("")
	require.NoError(t, err)
	s, err := loadSettings(v)
	require.NoError(t, err)
	assert.Equal(t, "sk-specific", s.Oracle.APIKey)
}

func TestSettings_ConfigFile(t *testing.T) {
	home := isolate(t)
	cfg := `db: /data/me.duckdb
oracle:
  model: gpt-4o
  retry_delay: 250ms
snpedia:
  request_delay: 0s
discovery:
  random_every: 5
  metrics_addr: ":9090"
repute:
  risk_phrases:
    - "worse outcome"
`
	path := filepath.Join(home, configFileName)
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))

	v, err := newViper("")
	require.NoError(t, err)
	assert.Equal(t, path, v.ConfigFileUsed())
	s, err := loadSettings(v)
	require.NoError(t, err)

	assert.Equal(t, "/data/me.duckdb", s.DB)
	assert.Equal(t, "gpt-4o", s.OracleConfig().ChatModel)
	assert.Equal(t, 250*time.Millisecond, s.OracleConfig().RetryDelay)
	assert.Equal(t, time.Duration(0), s.SNPedia.RequestDelay)
	assert.Equal(t, 5, s.Discovery.RandomEvery)
	assert.Equal(t, ":9090", s.Discovery.MetricsAddr)

	p := s.Phrases()
	assert.Equal(t, []string{"worse outcome"}, p.Risk)
	assert.Equal(t, repute.DefaultPhrases().Negating, p.Negating)
}

func TestSettings_ExplicitConfigPath(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("improve:\n  concurrency: 2\n"), 0o644))

	v, err := newViper(path)
	require.NoError(t, err)
	s, err := loadSettings(v)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Improve.Concurrency)
}

func TestSettings_BadConfigFile(t *testing.T) {
	home := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(home, configFileName), []byte("db: [unterminated\n"), 0o644))

	_, err := newViper("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestSettings_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(s *Settings)
		wantErr string
	}{
		{"valid", func(s *Settings) {}, ""},
		{"empty db", func(s *Settings) { s.DB = " " }, "db must not be empty"},
		{"negative retries", func(s *Settings) { s.Oracle.MaxRetries = -1 }, "oracle.max_retries"},
		{"negative delay", func(s *Settings) { s.SNPedia.RequestDelay = -time.Second }, "snpedia.request_delay"},
		{"zero concurrency", func(s *Settings) { s.Improve.Concurrency = 0 }, "improve.concurrency"},
		{"zero queue", func(s *Settings) { s.Discovery.QueueCapacity = 0 }, "discovery.queue_capacity"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Settings{
				DB:        "genome.duckdb",
				Improve:   ImproveSettings{Concurrency: 1},
				Discovery: DiscoverySettings{Config: discovery.DefaultConfig()},
			}
			tt.mutate(&s)
			err := s.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseGenotypeFlags(t *testing.T) {
	table, err := parseGenotypeFlags(nil)
	require.NoError(t, err)
	assert.Nil(t, table)

	table, err = parseGenotypeFlags([]string{"AG = One copy", "GG=Typical", "CC="})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"AG": "One copy", "GG": "Typical", "CC": ""}, table)

	for _, bad := range []string{"AG", "=text", " = text"} {
		_, err := parseGenotypeFlags([]string{bad})
		var ue *usageError
		assert.ErrorAs(t, err, &ue, bad)
	}
}

func TestParseConfigValue(t *testing.T) {
	tests := []struct {
		in   string
		want any
	}{
		{"true", true},
		{"off", false},
		{"42", 42},
		{"0.5", 0.5},
		{"5s", "5s"},
		{"gpt-4o", "gpt-4o"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseConfigValue(tt.in), tt.in)
	}
}

func TestRedact(t *testing.T) {
	assert.Equal(t, "", redact(""))
	assert.Equal(t, "****", redact("short"))
	assert.Equal(t, "****cdef", redact("sk-0123456789abcdef"))
}

func TestNormalizeRef(t *testing.T) {
	assert.Equal(t, "rs53576", normalizeRef("RS53576"))
	assert.Equal(t, "Rs53576(A;G)", normalizeRef("Rs53576(A;G)"))
	assert.Equal(t, "", normalizeRef(""))
}

func TestNormalizeRSIDs(t *testing.T) {
	assert.Nil(t, normalizeRSIDs(nil))
	assert.Equal(t, []string{"rs1", "rs2"}, normalizeRSIDs([]string{"RS1", " rs2 ", "rs1", ""}))
}

func TestValidatePositiveInt(t *testing.T) {
	assert.NoError(t, validatePositiveInt(1, "limit"))
	err := validatePositiveInt(0, "limit")
	var ue *usageError
	require.ErrorAs(t, err, &ue)
	assert.Contains(t, err.Error(), "limit must be positive")
}
