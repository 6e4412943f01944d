package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"repograph/internal/graph"
	"repograph/internal/scope"
)

var (
	queryGraphFile string
	queryRepo      string
	queryLimit     int
	queryMaxLevel  int
	queryMaxWords  int
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query a saved graph file or an indexed repository",
	Long: `Query a dependency graph, read either from a node-link file (--graph) or
from the store (--repo).

Examples:
  repograph query central --graph graph.json --limit 5
  repograph query successors pkg/a.py --graph graph.json
  repograph query descendants src --repo owner/repo
  repograph query subgraph --graph graph.json --max-level 1
  repograph query context "how is auth wired" --repo owner/repo`,
}

var queryCentralCmd = &cobra.Command{
	Use:   "central",
	Short: "Rank nodes by PageRank centrality",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := loadQueryGraph()
		if err != nil {
			return err
		}
		ranked := g.CentralityRanking()
		if queryLimit > 0 && len(ranked) > queryLimit {
			ranked = ranked[:queryLimit]
		}
		for _, r := range ranked {
			fmt.Fprintf(cmd.OutOrStdout(), "%.6f\t%s\n", r.Score, r.ID)
		}
		return nil
	},
}

func neighborCmd(use, short string, query func(*graph.Graph, string) ([]string, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " NODE",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := loadQueryGraph()
			if err != nil {
				return err
			}
			ids, err := query(g, args[0])
			if err != nil {
				return err
			}
			for _, id := range ids {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	}
}

var querySubgraphCmd = &cobra.Command{
	Use:   "subgraph",
	Short: "Print the graph cut at a hierarchy level",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := loadQueryGraph()
		if err != nil {
			return err
		}
		sub, err := g.SubgraphAtLevel(queryMaxLevel)
		if errors.Is(err, graph.ErrMissingAttribute) {
			return fmt.Errorf("%w: rebuild the graph with --levels", err)
		}
		if err != nil {
			return err
		}
		return sub.Encode(cmd.OutOrStdout())
	},
}

var queryContextCmd = &cobra.Command{
	Use:   "context QUESTION",
	Short: "Assemble the overview and relevant files for a question",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if queryRepo == "" {
			return fmt.Errorf("context needs --repo: file contents live in the store")
		}
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, cancel := signalContext()
		defer cancel()
		g, err := a.indexer.Graph(ctx, queryRepo)
		if err != nil {
			return err
		}
		table, err := a.indexer.Facts(ctx, queryRepo)
		if err != nil {
			return err
		}
		maxWords := queryMaxWords
		if maxWords <= 0 {
			maxWords = cfg.Scope.MaxWords
		}
		res := scope.New(table, g, maxWords).Assemble(args[0])
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	},
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.PersistentFlags().StringVar(&queryGraphFile, "graph", "", "Node-link graph file")
	queryCmd.PersistentFlags().StringVar(&queryRepo, "repo", "", "Indexed repository name (owner/repo or absolute path)")

	queryCentralCmd.Flags().IntVarP(&queryLimit, "limit", "n", 10, "Number of nodes to print (0 for all)")
	querySubgraphCmd.Flags().IntVar(&queryMaxLevel, "max-level", 0, "Keep nodes whose depth is at most this value")
	queryContextCmd.Flags().IntVar(&queryMaxWords, "max-words", 0, "Word budget (default from config)")

	queryCmd.AddCommand(
		queryCentralCmd,
		neighborCmd("successors", "List the direct dependents of a node", (*graph.Graph).Successors),
		neighborCmd("predecessors", "List the direct providers of a node", (*graph.Graph).Predecessors),
		neighborCmd("descendants", "List every node reachable from a node", (*graph.Graph).Descendants),
		querySubgraphCmd,
		queryContextCmd,
	)
}

// loadQueryGraph reads the graph named by --graph or --repo.
func loadQueryGraph() (*graph.Graph, error) {
	switch {
	case queryGraphFile != "" && queryRepo != "":
		return nil, fmt.Errorf("pass either --graph or --repo, not both")
	case queryGraphFile != "":
		return graph.Load(queryGraphFile)
	case queryRepo != "":
		a, err := openApp()
		if err != nil {
			return nil, err
		}
		defer a.Close()
		ctx, cancel := signalContext()
		defer cancel()
		return a.indexer.Graph(ctx, queryRepo)
	default:
		return nil, fmt.Errorf("pass --graph FILE or --repo NAME")
	}
}
