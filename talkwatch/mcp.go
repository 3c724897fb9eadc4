package talkwatch

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/jwbth/talkpage/kit"
)

// RegisterMCP registers talkwatch tools on an MCP server.
func (w *Watcher) RegisterMCP(srv *mcp.Server) {
	w.registerNewCommentsTool(srv)
	w.registerSearchTool(srv)
}

// inputSchema builds a JSON Schema object with type "object".
func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

// --- new_comments ---

type newCommentsRequest struct {
	Page string `json:"page"`
}

func (w *Watcher) registerNewCommentsTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "talkpage_new_comments",
		Description: "List comments on a watched talk page that are new since the viewer's last visit.",
		InputSchema: inputSchema(map[string]any{
			"page": map[string]any{"type": "string", "description": "Page title, e.g. Talk:Example"},
		}, []string{"page"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*newCommentsRequest)
		p, err := w.st.GetPage(ctx, r.Page)
		if err != nil {
			return nil, err
		}
		if p == nil {
			return nil, ErrUnknownPage
		}
		return w.st.CommentsForPage(ctx, r.Page, true)
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r newCommentsRequest
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{
			Request:   &r,
			EnrichCtx: func(ctx context.Context) context.Context { return kit.WithTransport(ctx, "mcp") },
		}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- search ---

type searchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

func (w *Watcher) registerSearchTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "talkpage_search",
		Description: "Search indexed talk-page comments by author, section headline, or text.",
		InputSchema: inputSchema(map[string]any{
			"query": map[string]any{"type": "string", "description": "Substring to match"},
			"limit": map[string]any{"type": "integer", "description": "Max results (default 20)"},
		}, []string{"query"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*searchRequest)
		return w.st.SearchComments(ctx, r.Query, r.Limit)
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r searchRequest
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{
			Request:   &r,
			EnrichCtx: func(ctx context.Context) context.Context { return kit.WithTransport(ctx, "mcp") },
		}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}
