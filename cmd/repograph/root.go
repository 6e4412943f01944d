package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"repograph/internal/cache"
	"repograph/internal/config"
	"repograph/internal/graph"
	"repograph/internal/indexer"
	"repograph/internal/logging"
	"repograph/internal/scanner"
	"repograph/internal/source"
	"repograph/internal/store"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var (
	configFile string
	logLevel   string

	cfg       *config.Config
	logCloser io.Closer
)

var rootCmd = &cobra.Command{
	Use:           "repograph",
	Short:         "repograph - repository dependency graphs",
	Long:          `repograph parses a repository into per-file facts and builds a dependency graph of its files, directories, symbols and external packages.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(configFile)
		if err != nil {
			return err
		}
		if logLevel != "" {
			c.Logging.Level = logLevel
		}
		cfg = c
		logCloser = logging.Init(cfg.Logging)
		return config.EnsureDirectories()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logCloser != nil {
			logCloser.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (default $REPOGRAPH_HOME/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override the configured log level")
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		logrus.Error(err)
		return err
	}
	return nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// app holds the collaborators shared by the commands that touch the store.
type app struct {
	store   *store.Store
	scanner *scanner.Scanner
	indexer *indexer.Indexer
}

func openApp() (*app, error) {
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, err
	}
	sc, err := scanner.New()
	if err != nil {
		st.Close()
		return nil, err
	}
	graphs, err := cache.New[*graph.Graph](cfg.Cache.Size)
	if err != nil {
		sc.Close()
		st.Close()
		return nil, err
	}
	ix := indexer.New(sc, st, graphs, indexer.Options{
		Levels:   cfg.Graph.Levels,
		GraphDir: cfg.Graph.Dir,
	})
	return &app{store: st, scanner: sc, indexer: ix}, nil
}

func (a *app) Close() {
	a.scanner.Close()
	if err := a.store.Close(); err != nil {
		logrus.WithError(err).Warn("failed to close store")
	}
}

func sourceOptions() source.Options {
	return source.Options{
		GitHubToken:  cfg.GitHub.Token,
		GitHubAPIURL: cfg.GitHub.APIURL,
		MaxFileSize:  cfg.Scan.MaxFileSize,
		IgnoreDirs:   cfg.Scan.IgnoreDirs,
	}
}
