package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/spf13/viper"

	"github.com/v64/genome-browser/internal/discovery"
	"github.com/v64/genome-browser/internal/oracle"
	"github.com/v64/genome-browser/internal/repute"
	"github.com/v64/genome-browser/internal/snpedia"
)

const (
	configFileName = ".genome-browser.yaml"
	envPrefix      = "GENOME_BROWSER"
)

// Settings is the resolved configuration.
type Settings struct {
	DB        string            `mapstructure:"db"`
	Oracle    OracleSettings    `mapstructure:"oracle"`
	SNPedia   SNPediaSettings   `mapstructure:"snpedia"`
	Improve   ImproveSettings   `mapstructure:"improve"`
	Discovery DiscoverySettings `mapstructure:"discovery"`
	Repute    repute.Phrases    `mapstructure:"repute"`
}

// OracleSettings configures the language model client.
type OracleSettings struct {
	APIKey         string        `mapstructure:"api_key"`
	BaseURL        string        `mapstructure:"base_url"`
	Model          string        `mapstructure:"model"`
	EmbeddingModel string        `mapstructure:"embedding_model"`
	Embeddings     bool          `mapstructure:"embeddings"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelay     time.Duration `mapstructure:"retry_delay"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxTokens      int           `mapstructure:"max_tokens"`
}

// SNPediaSettings configures the wiki client.
type SNPediaSettings struct {
	APIURL       string        `mapstructure:"api_url"`
	RequestDelay time.Duration `mapstructure:"request_delay"`
	Concurrency  int           `mapstructure:"concurrency"`
}

// ImproveSettings configures batch improvements.
type ImproveSettings struct {
	Concurrency int `mapstructure:"concurrency"`
}

// DiscoverySettings configures the discovery worker and its status output.
type DiscoverySettings struct {
	discovery.Config `mapstructure:",squash"`
	MetricsAddr      string        `mapstructure:"metrics_addr"`
	StatusInterval   time.Duration `mapstructure:"status_interval"`
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "genome-browser.duckdb"
	}
	return filepath.Join(home, ".genome-browser", "genome.duckdb")
}

func setDefaults(v *viper.Viper) {
	oc := oracle.DefaultConfig("")
	dc := discovery.DefaultConfig()

	v.SetDefault("db", defaultDBPath())

	v.SetDefault("oracle.api_key", "")
	v.SetDefault("oracle.base_url", "")
	v.SetDefault("oracle.model", oc.ChatModel)
	v.SetDefault("oracle.embedding_model", string(oc.EmbeddingModel))
	v.SetDefault("oracle.embeddings", true)
	v.SetDefault("oracle.max_retries", oc.MaxRetries)
	v.SetDefault("oracle.retry_delay", oc.RetryDelay)
	v.SetDefault("oracle.timeout", oc.Timeout)
	v.SetDefault("oracle.max_tokens", oc.MaxTokens)

	v.SetDefault("snpedia.api_url", snpedia.DefaultAPIURL)
	v.SetDefault("snpedia.request_delay", snpedia.DefaultRequestDelay)
	v.SetDefault("snpedia.concurrency", 4)

	v.SetDefault("improve.concurrency", 4)

	v.SetDefault("discovery.cycle_delay", dc.CycleDelay)
	v.SetDefault("discovery.improvement_delay", dc.ImprovementDelay)
	v.SetDefault("discovery.error_backoff", dc.ErrorBackoff)
	v.SetDefault("discovery.queue_capacity", dc.QueueCapacity)
	v.SetDefault("discovery.log_capacity", dc.LogCapacity)
	v.SetDefault("discovery.random_every", dc.RandomEvery)
	v.SetDefault("discovery.seed_limit", dc.SeedLimit)
	v.SetDefault("discovery.notable_magnitude", dc.NotableMagnitude)
	v.SetDefault("discovery.metrics_addr", "")
	v.SetDefault("discovery.status_interval", 10*time.Second)

	// Empty lists keep the built-in phrase tables.
	v.SetDefault("repute.risk_phrases", []string{})
	v.SetDefault("repute.negating_phrases", []string{})
	v.SetDefault("repute.good_phrases", []string{})
	v.SetDefault("repute.normal_phrases", []string{})
	v.SetDefault("repute.normal_words", []string{})
}

// newViper builds the configuration source: defaults, then the config
// file, then GENOME_BROWSER_* environment variables. cfgFile may be empty
// to use ~/.genome-browser.yaml.
func newViper(cfgFile string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else if home, err := os.UserHomeDir(); err == nil {
		v.SetConfigFile(filepath.Join(home, configFileName))
	}
	v.SetConfigType("yaml")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("oracle.api_key", envPrefix+"_ORACLE_API_KEY", "OPENAI_API_KEY"); err != nil {
		return nil, fmt.Errorf("bind api key: %w", err)
	}

	if v.ConfigFileUsed() != "" {
		if err := v.ReadInConfig(); err != nil && !isNotExist(err) {
			return nil, fmt.Errorf("read config %s: %w", v.ConfigFileUsed(), err)
		}
	}
	return v, nil
}

func isNotExist(err error) bool {
	var nf viper.ConfigFileNotFoundError
	return errors.As(err, &nf) || errors.Is(err, fs.ErrNotExist)
}

// loadSettings unmarshals v into Settings and checks the values.
func loadSettings(v *viper.Viper) (*Settings, error) {
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate rejects settings the components cannot run with.
func (s *Settings) Validate() error {
	if strings.TrimSpace(s.DB) == "" {
		return fmt.Errorf("db must not be empty")
	}
	if s.Oracle.MaxRetries < 0 {
		return fmt.Errorf("oracle.max_retries must be >= 0")
	}
	if s.SNPedia.RequestDelay < 0 {
		return fmt.Errorf("snpedia.request_delay must be >= 0")
	}
	if s.Improve.Concurrency <= 0 {
		return fmt.Errorf("improve.concurrency must be > 0")
	}
	if s.Discovery.QueueCapacity <= 0 {
		return fmt.Errorf("discovery.queue_capacity must be > 0")
	}
	return nil
}

// OracleConfig maps the settings onto the client configuration.
func (s *Settings) OracleConfig() oracle.Config {
	cfg := oracle.DefaultConfig(s.Oracle.APIKey)
	cfg.BaseURL = s.Oracle.BaseURL
	if s.Oracle.Model != "" {
		cfg.ChatModel = s.Oracle.Model
	}
	if s.Oracle.EmbeddingModel != "" {
		cfg.EmbeddingModel = openai.EmbeddingModel(s.Oracle.EmbeddingModel)
	}
	cfg.MaxRetries = s.Oracle.MaxRetries
	cfg.RetryDelay = s.Oracle.RetryDelay
	if s.Oracle.Timeout > 0 {
		cfg.Timeout = s.Oracle.Timeout
	}
	if s.Oracle.MaxTokens > 0 {
		cfg.MaxTokens = s.Oracle.MaxTokens
	}
	return cfg
}

// Phrases returns the built-in repute phrase tables with configured lists
// replacing their defaults.
func (s *Settings) Phrases() repute.Phrases {
	return repute.DefaultPhrases().Merge(s.Repute)
}
