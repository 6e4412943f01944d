package server

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	guidelinesURI = "repograph://usage-guidelines"
	schemaPrefix  = "repograph://schemas/"
)

const usageGuidelines = `# repograph

repograph turns a repository into a dependency graph of files, directories,
declared symbols and external packages.

1. Call ` + "`index`" + ` with a local path or a GitHub URL. Other tools default to
   the repository indexed last; pass ` + "`repository`" + ` to pick another.
2. ` + "`graph_stats`" + ` gives the shape of the graph.
3. ` + "`rank_central`" + ` finds the files and packages everything else leans on.
4. ` + "`neighbors`" + ` walks from a node. File nodes are repository-relative
   paths, symbols are ` + "`file::name`" + `, and unresolved imports are package
   or header nodes (prefixed ` + "`external:`" + ` when they collide with a path).
5. ` + "`subgraph`" + ` cuts the graph at a directory depth.
6. ` + "`scope_context`" + ` assembles an overview plus the files relevant to a
   question, bounded by a word budget.

Edges point from the provider to the dependent: a directory contains its
entries, a file exports its symbols, and a symbol or package is imported by
the files that use it.
`

func (s *Server) registerResources() {
	s.mcpServer.AddResource(&mcp.Resource{
		URI:         guidelinesURI,
		Name:        "Usage Guidelines",
		Description: "System prompt and usage guidelines for the repograph MCP server",
		MIMEType:    "text/markdown",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{
				{
					URI:      guidelinesURI,
					MIMEType: "text/markdown",
					Text:     s.systemPrompt,
				},
			},
		}, nil
	})

	schemaMap := buildSchemaMap()

	s.mcpServer.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: schemaPrefix + "{tool_name}",
		Name:        "Tool Schema",
		Description: "JSON schema for the named tool's arguments",
		MIMEType:    "application/schema+json",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		return readSchema(schemaMap, req.Params.URI)
	})
}

func readSchema(schemaMap map[string]string, uri string) (*mcp.ReadResourceResult, error) {
	toolName := strings.TrimPrefix(uri, schemaPrefix)
	schemaJSON, ok := schemaMap[toolName]
	if !ok {
		return nil, fmt.Errorf("unknown tool schema: %q", toolName)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{
				URI:      uri,
				MIMEType: "application/schema+json",
				Text:     schemaJSON,
			},
		},
	}, nil
}

// buildSchemaMap maps each tool name to the JSON schema of its arguments.
func buildSchemaMap() map[string]string {
	m := make(map[string]string)
	addSchema[IndexArgs](m, "index")
	addSchema[IndexStatusArgs](m, "index_status")
	addSchema[RepositoriesArgs](m, "repositories")
	addSchema[GraphStatsArgs](m, "graph_stats")
	addSchema[NeighborsArgs](m, "neighbors")
	addSchema[RankCentralArgs](m, "rank_central")
	addSchema[SubgraphArgs](m, "subgraph")
	addSchema[ScopeContextArgs](m, "scope_context")
	return m
}

func addSchema[T any](m map[string]string, name string) {
	schema, err := jsonschema.For[T](nil)
	if err != nil {
		return
	}
	schemaJSON, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return
	}
	m[name] = string(schemaJSON)
}
