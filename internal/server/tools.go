package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"repograph/internal/graph"
	"repograph/internal/scope"
)

// Arguments structs

type IndexArgs struct {
	Target string `json:"target" jsonschema:"Local directory path or https://github.com/<owner>/<repo>[/path] URL to index"`
}

type IndexStatusArgs struct {
	Repository string `json:"repository,omitempty" jsonschema:"Repository name, path or URL; defaults to the last indexed repository"`
}

type GraphStatsArgs struct {
	Repository string `json:"repository,omitempty" jsonschema:"Repository name, path or URL; defaults to the last indexed repository"`
	Cluster    bool   `json:"cluster,omitempty" jsonschema:"Fold parallel edges into multiple edges before counting"`
}

type NeighborsArgs struct {
	Repository string `json:"repository,omitempty" jsonschema:"Repository name, path or URL; defaults to the last indexed repository"`
	Node       string `json:"node" jsonschema:"Node id: a file path, directory, package name or file::symbol"`
	Direction  string `json:"direction,omitempty" jsonschema:"successors, predecessors or descendants (default successors)"`
}

type RankCentralArgs struct {
	Repository string `json:"repository,omitempty" jsonschema:"Repository name, path or URL; defaults to the last indexed repository"`
	Limit      int    `json:"limit,omitempty" jsonschema:"Maximum number of nodes to return (default 10)"`
	Type       string `json:"type,omitempty" jsonschema:"Only rank nodes of this type: file, directory, package, header or import"`
}

type SubgraphArgs struct {
	Repository string `json:"repository,omitempty" jsonschema:"Repository name, path or URL; defaults to the last indexed repository"`
	MaxLevel   int    `json:"max_level" jsonschema:"Keep nodes whose hierarchy level is at most this value"`
}

type ScopeContextArgs struct {
	Repository string `json:"repository,omitempty" jsonschema:"Repository name, path or URL; defaults to the last indexed repository"`
	Query      string `json:"query" jsonschema:"Free-text question about the repository"`
	MaxWords   int    `json:"max_words,omitempty" jsonschema:"Word budget for the relevant file documents"`
}

type RepositoriesArgs struct{}

const (
	defaultRankLimit = 10
	indexWaitTimeout = 30 * time.Second
)

func (s *Server) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "index",
		Description: "Fetches, parses and graphs a local directory or GitHub repository",
	}, s.handleIndex)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "index_status",
		Description: "Returns the indexing status of a repository",
	}, s.handleIndexStatus)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "repositories",
		Description: "Lists the indexed repositories",
	}, s.handleRepositories)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "graph_stats",
		Description: "Counts the nodes and edges of a repository graph by type",
	}, s.handleGraphStats)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "neighbors",
		Description: "Lists the successors, predecessors or descendants of a node",
	}, s.handleNeighbors)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "rank_central",
		Description: "Ranks nodes by PageRank centrality",
	}, s.handleRankCentral)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "subgraph",
		Description: "Returns the node-link document of the graph cut at a hierarchy level",
	}, s.handleSubgraph)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "scope_context",
		Description: "Assembles the repository overview and the files relevant to a question",
	}, s.handleScopeContext)
}

func (s *Server) handleIndex(ctx context.Context, req *mcp.CallToolRequest, args IndexArgs) (*mcp.CallToolResult, any, error) {
	if args.Target == "" {
		return errorResult("target is required"), nil, nil
	}
	res, err := s.Index(ctx, args.Target)
	if err != nil {
		return errorResult(fmt.Sprintf("Index failed: %v", err)), nil, nil
	}
	return jsonResult(res), nil, nil
}

func (s *Server) handleIndexStatus(ctx context.Context, req *mcp.CallToolRequest, args IndexStatusArgs) (*mcp.CallToolResult, any, error) {
	name, err := s.repository(args.Repository)
	if err != nil {
		return errorResult(err.Error()), nil, nil
	}
	status, indexErr, duration := s.GetIndexStatus(name)

	result := map[string]any{
		"repository": name,
		"status":     string(status),
	}
	if duration > 0 {
		result["duration_seconds"] = duration.Seconds()
	}
	if indexErr != nil {
		result["error"] = indexErr.Error()
	}
	return jsonResult(result), nil, nil
}

func (s *Server) handleRepositories(ctx context.Context, req *mcp.CallToolRequest, args RepositoriesArgs) (*mcp.CallToolResult, any, error) {
	repos, err := s.indexer.Repositories(ctx)
	if err != nil {
		return errorResult(fmt.Sprintf("Query failed: %v", err)), nil, nil
	}

	type repoInfo struct {
		Name      string    `json:"name"`
		UpdatedAt time.Time `json:"updated_at"`
	}
	out := make([]repoInfo, 0, len(repos))
	for _, r := range repos {
		out = append(out, repoInfo{Name: r.Name, UpdatedAt: r.UpdatedAt})
	}
	return jsonResult(out), nil, nil
}

func (s *Server) handleGraphStats(ctx context.Context, req *mcp.CallToolRequest, args GraphStatsArgs) (*mcp.CallToolResult, any, error) {
	name, g, failure := s.graph(ctx, args.Repository)
	if failure != nil {
		return failure, nil, nil
	}
	if args.Cluster || s.opts.Cluster {
		g = g.Clustered()
	}
	return jsonResult(map[string]any{
		"repository": name,
		"stats":      g.Stats(),
	}), nil, nil
}

func (s *Server) handleNeighbors(ctx context.Context, req *mcp.CallToolRequest, args NeighborsArgs) (*mcp.CallToolResult, any, error) {
	_, g, failure := s.graph(ctx, args.Repository)
	if failure != nil {
		return failure, nil, nil
	}

	var query func(string) ([]string, error)
	switch args.Direction {
	case "", "successors":
		query = g.Successors
	case "predecessors":
		query = g.Predecessors
	case "descendants":
		query = g.Descendants
	default:
		return errorResult(fmt.Sprintf("unknown direction %q", args.Direction)), nil, nil
	}

	ids, err := query(args.Node)
	if errors.Is(err, graph.ErrNodeNotFound) {
		return errorResult(fmt.Sprintf("Node %q not found", args.Node)), nil, nil
	}
	if err != nil {
		return errorResult(fmt.Sprintf("Query failed: %v", err)), nil, nil
	}
	if ids == nil {
		ids = []string{}
	}
	return jsonResult(map[string]any{
		"node":      args.Node,
		"direction": direction(args.Direction),
		"nodes":     ids,
	}), nil, nil
}

func direction(d string) string {
	if d == "" {
		return "successors"
	}
	return d
}

func (s *Server) handleRankCentral(ctx context.Context, req *mcp.CallToolRequest, args RankCentralArgs) (*mcp.CallToolResult, any, error) {
	_, g, failure := s.graph(ctx, args.Repository)
	if failure != nil {
		return failure, nil, nil
	}
	if args.Type != "" && !graph.NodeType(args.Type).Valid() {
		return errorResult(fmt.Sprintf("unknown node type %q", args.Type)), nil, nil
	}
	limit := args.Limit
	if limit <= 0 {
		limit = defaultRankLimit
	}

	ranked := make([]graph.Ranked, 0, limit)
	for _, r := range g.CentralityRanking() {
		if args.Type != "" {
			n, _ := g.Node(r.ID)
			if n.Type != graph.NodeType(args.Type) {
				continue
			}
		}
		ranked = append(ranked, r)
		if len(ranked) == limit {
			break
		}
	}
	return jsonResult(ranked), nil, nil
}

func (s *Server) handleSubgraph(ctx context.Context, req *mcp.CallToolRequest, args SubgraphArgs) (*mcp.CallToolResult, any, error) {
	_, g, failure := s.graph(ctx, args.Repository)
	if failure != nil {
		return failure, nil, nil
	}
	sub, err := g.SubgraphAtLevel(args.MaxLevel)
	if err != nil {
		return errorResult(fmt.Sprintf("Subgraph failed: %v", err)), nil, nil
	}
	var buf bytes.Buffer
	if err := sub.Encode(&buf); err != nil {
		return errorResult(fmt.Sprintf("Encode failed: %v", err)), nil, nil
	}
	return textResult(buf.String()), nil, nil
}

func (s *Server) handleScopeContext(ctx context.Context, req *mcp.CallToolRequest, args ScopeContextArgs) (*mcp.CallToolResult, any, error) {
	name, g, failure := s.graph(ctx, args.Repository)
	if failure != nil {
		return failure, nil, nil
	}
	table, err := s.indexer.Facts(ctx, name)
	if err != nil {
		return errorResult(fmt.Sprintf("Query failed: %v", err)), nil, nil
	}
	maxWords := args.MaxWords
	if maxWords <= 0 {
		maxWords = s.opts.MaxWords
	}
	return jsonResult(scope.New(table, g, maxWords).Assemble(args.Query)), nil, nil
}

// graph resolves a repository argument, waits for a running index of it and
// loads its canonical graph. A non-nil result reports the failure to the
// client.
func (s *Server) graph(ctx context.Context, repoArg string) (string, *graph.Graph, *mcp.CallToolResult) {
	name, err := s.repository(repoArg)
	if err != nil {
		return "", nil, errorResult(err.Error())
	}

	waitCtx, cancel := context.WithTimeout(ctx, indexWaitTimeout)
	defer cancel()
	if err := s.WaitForIndex(waitCtx, name); err != nil {
		status, _, _ := s.GetIndexStatus(name)
		if status == IndexStatusInProgress {
			return "", nil, errorResult("Indexing in progress, please try again")
		}
		return "", nil, errorResult(fmt.Sprintf("Indexing wait failed: %v", err))
	}
	if status, indexErr, _ := s.GetIndexStatus(name); status == IndexStatusFailed {
		return "", nil, errorResult(fmt.Sprintf("Indexing failed: %v", indexErr))
	}

	g, err := s.indexer.Graph(ctx, name)
	if err != nil {
		return "", nil, errorResult(fmt.Sprintf("Graph unavailable for %s: %v", name, err))
	}
	return name, g, nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func errorResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}
}

func jsonResult(v any) *mcp.CallToolResult {
	jsonBytes, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResult(fmt.Sprintf("Encode failed: %v", err))
	}
	return textResult(string(jsonBytes))
}
