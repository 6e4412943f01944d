package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"repograph/internal/server"
)

var serveIndex string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve repository graphs over MCP on stdio",
	Long: `Start a Model Context Protocol server on stdin/stdout exposing the
index, index_status, repositories, graph_stats, neighbors, rank_central,
subgraph and scope_context tools.

Examples:
  repograph serve
  repograph serve --index .`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveIndex, "index", "", "Index this path or GitHub URL in the background on start")
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signalContext()
	defer cancel()

	srv := server.New(a.indexer, server.Options{
		Version:  version,
		Sources:  sourceOptions(),
		MaxWords: cfg.Scope.MaxWords,
		Cluster:  cfg.Graph.Cluster,
	})
	if serveIndex != "" {
		if err := srv.IndexInBackground(ctx, serveIndex); err != nil {
			return err
		}
	}

	logrus.WithField("store", cfg.Store.Path).Info("serving MCP on stdio")
	return srv.Run(ctx)
}
