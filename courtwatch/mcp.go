package courtwatch

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/courtwatch/kit"
)

// RegisterMCP registers all courtwatch tools on an MCP server.
func (s *Service) RegisterMCP(srv *mcp.Server) {
	s.registerIngest(srv)
	s.registerChanges(srv)
	s.registerCurrent(srv)
	s.registerLedger(srv)
	s.registerRuns(srv)
	s.registerStats(srv)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

type endpointReq struct {
	Endpoint string `json:"endpoint"`
}

type scopedListReq struct {
	Endpoint string `json:"endpoint"`
	Limit    int    `json:"limit"`
}

func decodeAs[T any](req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
	var p T
	if len(req.Params.Arguments) > 0 {
		if err := json.Unmarshal(req.Params.Arguments, &p); err != nil {
			return nil, err
		}
	}
	return &kit.MCPDecodeResult{Request: &p}, nil
}

var endpointProp = map[string]any{"type": "string", "description": "Endpoint name, e.g. atp_results_archive"}

func (s *Service) registerIngest(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "courtwatch_ingest",
		Description: "Ingest pending snapshot files for one endpoint (idempotent; already-ledgered files are skipped)",
		InputSchema: inputSchema(map[string]any{"endpoint": endpointProp}, []string{"endpoint"}),
	}
	endpoint := func(ctx context.Context, r any) (any, error) {
		return s.Ingest(ctx, r.(*endpointReq).Endpoint)
	}
	kit.RegisterMCPTool(srv, tool, endpoint, decodeAs[endpointReq])
}

func (s *Service) registerChanges(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name: "courtwatch_changes",
		Description: "Diff the two most recent snapshot versions of an endpoint into change events. " +
			"Parents appearing for the first time emit no new_child events; use courtwatch_current for first-seen entities.",
		InputSchema: inputSchema(map[string]any{"endpoint": endpointProp}, []string{"endpoint"}),
	}
	endpoint := func(ctx context.Context, r any) (any, error) {
		return s.Changes(ctx, r.(*endpointReq).Endpoint)
	}
	kit.RegisterMCPTool(srv, tool, endpoint, decodeAs[endpointReq])
}

func (s *Service) registerCurrent(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "courtwatch_current",
		Description: "Return the deduplicated current view of an endpoint (latest version per partition)",
		InputSchema: inputSchema(map[string]any{"endpoint": endpointProp}, []string{"endpoint"}),
	}
	endpoint := func(ctx context.Context, r any) (any, error) {
		return s.Current(ctx, r.(*endpointReq).Endpoint)
	}
	kit.RegisterMCPTool(srv, tool, endpoint, decodeAs[endpointReq])
}

func (s *Service) registerLedger(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "courtwatch_ledger",
		Description: "List load ledger entries (what has been ingested, and when), newest first",
		InputSchema: inputSchema(map[string]any{
			"endpoint": endpointProp,
			"limit":    map[string]any{"type": "integer", "description": "Max entries to return"},
		}, nil),
	}
	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*scopedListReq)
		return s.Ledger(ctx, p.Endpoint, p.Limit)
	}
	kit.RegisterMCPTool(srv, tool, endpoint, decodeAs[scopedListReq])
}

func (s *Service) registerRuns(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "courtwatch_runs",
		Description: "List ingest runs with their file counters, newest first",
		InputSchema: inputSchema(map[string]any{
			"endpoint": endpointProp,
			"limit":    map[string]any{"type": "integer", "description": "Max runs to return"},
		}, nil),
	}
	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*scopedListReq)
		return s.Runs(ctx, p.Endpoint, p.Limit)
	}
	kit.RegisterMCPTool(srv, tool, endpoint, decodeAs[scopedListReq])
}

func (s *Service) registerStats(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "courtwatch_stats",
		Description: "Per-endpoint history summary: stored snapshots and latest capture time",
		InputSchema: inputSchema(map[string]any{}, nil),
	}
	endpoint := func(ctx context.Context, _ any) (any, error) {
		return s.Stats(ctx)
	}
	kit.RegisterMCPTool(srv, tool, endpoint, decodeAs[struct{}])
}
