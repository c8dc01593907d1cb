package main

import (
	"errors"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/v64/genome-browser/internal/duckdb"
	"github.com/v64/genome-browser/internal/enrich"
	"github.com/v64/genome-browser/internal/oracle"
	"github.com/v64/genome-browser/internal/repute"
	"github.com/v64/genome-browser/internal/snpedia"
)

var errNoOracle = errors.New("no language model configured: set OPENAI_API_KEY or oracle.api_key")

// app holds the state shared by every command of one invocation.
type app struct {
	cfgFile string
	dbPath  string
	verbose bool

	v        *viper.Viper
	settings *Settings
	logger   *zap.Logger
	store    *duckdb.Store
}

func newApp() *app {
	return &app{logger: zap.NewNop()}
}

func newRootCmd() *cobra.Command {
	return newApp().rootCmd()
}

func (a *app) rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "genome-browser",
		Short: "Explore a personal genome",
		Long: `genome-browser loads a raw genotype export, annotates the SNPs from SNPedia,
asks a language model to explain what each result means for your genotype,
and keeps everything it learns in a local DuckDB database.`,
		Version:       fmt.Sprintf("%s (%s) built %s", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
	}
	cmd.SetVersionTemplate("genome-browser version {{.Version}}\n")

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "Config file (default ~/"+configFileName+")")
	flags.StringVar(&a.dbPath, "db", "", "DuckDB database path (overrides config)")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")

	cmd.AddCommand(
		a.newLoadCmd(),
		a.newFetchCmd(),
		a.newImproveCmd(),
		a.newEditCmd(),
		a.newRevertCmd(),
		a.newShowCmd(),
		a.newNotableCmd(),
		a.newSearchCmd(),
		a.newLabelCmd(),
		a.newFavoriteCmd(),
		a.newKnowledgeCmd(),
		a.newLogCmd(),
		a.newStatsCmd(),
		a.newDiscoverCmd(),
		a.newConfigCmd(),
	)
	return cmd
}

// init resolves settings and the logger. It runs before every command.
func (a *app) init() error {
	_ = godotenv.Load()

	v, err := newViper(a.cfgFile)
	if err != nil {
		return err
	}
	if a.dbPath != "" {
		v.Set("db", a.dbPath)
	}
	s, err := loadSettings(v)
	if err != nil {
		return err
	}
	logger, err := newLogger(a.verbose)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	a.v, a.settings, a.logger = v, s, logger
	return nil
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return cfg.Build()
}

// close releases the database and flushes the logger.
func (a *app) close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("close database", zap.Error(err))
		}
		a.store = nil
	}
	_ = a.logger.Sync()
}

func (a *app) openStore() (*duckdb.Store, error) {
	if a.store != nil {
		return a.store, nil
	}
	s, err := duckdb.Open(a.settings.DB)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", a.settings.DB, err)
	}
	a.logger.Debug("opened database", zap.String("path", a.settings.DB))
	a.store = s
	return s, nil
}

// newOracle returns the configured model client, or nil when no API key
// is set.
func (a *app) newOracle() (*oracle.OpenAI, error) {
	if a.settings.Oracle.APIKey == "" {
		return nil, nil
	}
	c, err := oracle.NewOpenAI(a.settings.OracleConfig())
	if err != nil {
		return nil, err
	}
	c.SetLogger(a.logger.Named("oracle"))
	return c, nil
}

// enricher wires the store, wiki fetcher and model client together.
// When needOracle is set a missing API key is an error.
func (a *app) enricher(needOracle bool) (*enrich.Enricher, error) {
	store, err := a.openStore()
	if err != nil {
		return nil, err
	}

	fetcher := snpedia.NewFetcher(snpedia.NewClient(a.settings.SNPedia.APIURL), store)
	fetcher.SetLogger(a.logger.Named("snpedia"))
	fetcher.SetRequestDelay(a.settings.SNPedia.RequestDelay)
	fetcher.SetConcurrency(a.settings.SNPedia.Concurrency)

	client, err := a.newOracle()
	if err != nil {
		return nil, err
	}
	if client == nil && needOracle {
		return nil, errNoOracle
	}

	var orc oracle.Oracle
	if client != nil {
		orc = client
	}
	e := enrich.New(store, fetcher, orc)
	e.SetLogger(a.logger.Named("enrich"))
	e.SetClassifier(repute.NewClassifier(a.settings.Phrases()))
	e.SetConcurrency(a.settings.Improve.Concurrency)
	if client != nil && a.settings.Oracle.Embeddings {
		e.SetEmbedder(client)
	}
	return e, nil
}
