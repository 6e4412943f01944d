package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"repograph/internal/facts"
	"repograph/internal/graph"
)

var (
	buildFacts   string
	buildOut     string
	buildCluster bool
	buildLevels  bool
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build a graph from a fact table file",
	Long: `Read a JSON fact table (path -> {functions, classes, imports, ...}) and
write the dependency graph as a node-link JSON document.

Examples:
  repograph build --facts facts.json --out graph.json
  repograph build --facts facts.json --cluster --levels > graph.json`,
	Args: cobra.NoArgs,
	RunE: runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)
	buildCmd.Flags().StringVar(&buildFacts, "facts", "", "Fact table JSON file")
	buildCmd.Flags().StringVarP(&buildOut, "out", "o", "", "Output graph file (default stdout)")
	buildCmd.Flags().BoolVar(&buildCluster, "cluster", false, "Fold parallel edges into multiple edges")
	buildCmd.Flags().BoolVar(&buildLevels, "levels", false, "Annotate nodes with hierarchy levels")
	_ = buildCmd.MarkFlagRequired("facts")
}

func runBuild(cmd *cobra.Command, args []string) error {
	f, err := os.Open(buildFacts)
	if err != nil {
		return fmt.Errorf("open facts: %w", err)
	}
	defer f.Close()

	table, err := facts.Decode(f)
	if err != nil {
		return err
	}

	g := graph.Build(table, graph.Options{
		Cluster: buildCluster || (!cmd.Flags().Changed("cluster") && cfg.Graph.Cluster),
		Levels:  buildLevels,
	})
	if buildOut == "" {
		return g.Encode(cmd.OutOrStdout())
	}
	if err := graph.Save(g, buildOut); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d nodes and %d edges to %s\n", g.NodeCount(), g.EdgeCount(), buildOut)
	return nil
}
