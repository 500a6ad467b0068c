package assistant

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mhaberkorn/sparfuchs/kit"
)

// RegisterMCP registers the assistant tools on an MCP server.
func (s *Service) RegisterMCP(srv *mcp.Server) {
	s.registerQuery(srv)
	s.registerIngestRegion(srv)
	s.registerRegionAvailable(srv)
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

func mcpCtx(ctx context.Context) context.Context {
	return kit.WithTransport(ctx, "mcp")
}

func (s *Service) registerQuery(srv *mcp.Server) {
	type req struct {
		Query  string `json:"query"`
		Region string `json:"region"`
	}

	tool := &mcp.Tool{
		Name:        "offers_query",
		Description: "Find the best current supermarket offers for the products in a free-text query",
		InputSchema: inputSchema(map[string]any{
			"query":  map[string]any{"type": "string", "description": "Product request, e.g. 'cheap bananas and oat milk'"},
			"region": map[string]any{"type": "string", "description": "5-digit region code, empty for everywhere"},
		}, []string{"query"}),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		return s.Ask(ctx, p.Query, p.Region), nil
	}

	decode := func(r *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var p req
		if err := json.Unmarshal(r.Params.Arguments, &p); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &p, EnrichCtx: mcpCtx}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

func (s *Service) registerIngestRegion(srv *mcp.Server) {
	type req struct {
		Region string `json:"region"`
	}

	tool := &mcp.Tool{
		Name:        "offers_ingest_region",
		Description: "Scrape all supported stores for a region and reconcile the offers into the catalog",
		InputSchema: inputSchema(map[string]any{
			"region": map[string]any{"type": "string", "description": "5-digit region code"},
		}, []string{"region"}),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		return s.IngestRegion(ctx, p.Region)
	}

	decode := func(r *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var p req
		if err := json.Unmarshal(r.Params.Arguments, &p); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &p, EnrichCtx: mcpCtx}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

func (s *Service) registerRegionAvailable(srv *mcp.Server) {
	type req struct {
		Region string `json:"region"`
	}

	tool := &mcp.Tool{
		Name:        "offers_region_available",
		Description: "Check whether a region's offers are already in the catalog",
		InputSchema: inputSchema(map[string]any{
			"region": map[string]any{"type": "string", "description": "5-digit region code"},
		}, []string{"region"}),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		code, available, err := s.Available(ctx, p.Region)
		if err != nil {
			return nil, err
		}
		return map[string]any{"region_code": code, "available": available}, nil
	}

	decode := func(r *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var p req
		if err := json.Unmarshal(r.Params.Arguments, &p); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &p, EnrichCtx: mcpCtx}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}
