package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"repograph/internal/source"
	"repograph/util"
)

var (
	indexGitHub string
	indexSubdir string
	indexJSON   bool
)

var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Index a local directory or a GitHub repository",
	Long: `Fetch a repository, extract per-file facts, and store the facts and the
dependency graph built from them.

Examples:
  repograph index                                   # index the enclosing git repository
  repograph index ./service
  repograph index --github https://github.com/owner/repo
  repograph index --github https://github.com/owner/repo --subdir pkg`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.Flags().StringVar(&indexGitHub, "github", "", "GitHub repository URL to index instead of a local path")
	indexCmd.Flags().StringVar(&indexSubdir, "subdir", "", "Only fetch this subdirectory of the GitHub repository")
	indexCmd.Flags().BoolVar(&indexJSON, "json", false, "Output as JSON")
}

func runIndex(cmd *cobra.Command, args []string) error {
	var target string
	if len(args) == 1 {
		target = args[0]
	}
	if indexGitHub != "" {
		if len(args) == 1 {
			return fmt.Errorf("pass either a path or --github, not both")
		}
		target = indexGitHub
	}
	if target == "" {
		root, err := util.FindGitRoot("")
		if err != nil {
			return err
		}
		target = root
	}

	opts := sourceOptions()
	opts.Subdirectory = indexSubdir
	src, err := source.Open(target, opts)
	if err != nil {
		return err
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signalContext()
	defer cancel()

	res, err := a.indexer.Index(ctx, src)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if indexJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	fmt.Fprintf(out, "Indexed %s: %d files, %d nodes, %d edges in %s\n",
		res.Repository, res.Files, res.Stats.TotalNodes, res.Stats.TotalEdges, res.Duration)
	printCounts(out, "nodes", res.Stats.NodesByType)
	printCounts(out, "edges", res.Stats.EdgesByRelation)
	if res.GraphPath != "" {
		fmt.Fprintf(out, "Graph saved to %s\n", res.GraphPath)
	}
	return nil
}

func printCounts[K ~string](w io.Writer, title string, counts map[K]int) {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "  %s %-10s %d\n", title, k, counts[K(k)])
	}
}
