package bridge

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/superfill/sfc/autofill"
	"github.com/superfill/sfc/kit"
	"github.com/superfill/sfc/memstore"
)

// RegisterMCP registers the autofill tools on an MCP server.
func (s *Service) RegisterMCP(srv *mcp.Server) {
	s.registerDetectTool(srv)
	s.registerAutofillTool(srv)
	s.registerListMemoriesTool(srv)
	s.registerAddMemoryTool(srv)
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

// --- detect forms ---

type detectToolReq struct {
	URL string `json:"url"`
}

func (s *Service) registerDetectTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "sfc_detect_forms",
		Description: "Open a page and detect its fillable form fields with inferred purposes.",
		InputSchema: inputSchema(map[string]any{
			"url": map[string]any{"type": "string", "description": "Page URL to scan"},
		}, []string{"url"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*detectToolReq)
		payload, err := json.Marshal(autofill.DetectFormsRequest{URL: r.URL})
		if err != nil {
			return nil, err
		}
		raw, err := s.router.Call(ctx, autofill.ServiceDetectForms, payload)
		if err != nil {
			return nil, err
		}
		var resp autofill.DetectFormsResponse
		if err := json.Unmarshal(raw, &resp); err != nil {
			return nil, err
		}
		if !resp.Success {
			return nil, fmt.Errorf("detection failed: %s", resp.Error)
		}
		return resp, nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r detectToolReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		if r.URL == "" {
			return nil, fmt.Errorf("url required")
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- autofill ---

type autofillToolReq struct {
	URL string `json:"url"`
}

func (s *Service) registerAutofillTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "sfc_autofill",
		Description: "Run the full autofill pass on a page: detect fields, match against stored memories, open the preview sidebar.",
		InputSchema: inputSchema(map[string]any{
			"url": map[string]any{"type": "string", "description": "Page URL to fill"},
		}, []string{"url"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*autofillToolReq)
		res := s.runner.Run(ctx, r.URL)
		if !res.Success {
			return nil, fmt.Errorf("autofill failed: %s", res.Error)
		}
		return res, nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r autofillToolReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		if r.URL == "" {
			return nil, fmt.Errorf("url required")
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- list memories ---

type listMemoriesReq struct {
	Limit int `json:"limit"`
}

func (s *Service) registerListMemoriesTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "sfc_list_memories",
		Description: "List stored autofill memories, most recent first.",
		InputSchema: inputSchema(map[string]any{
			"limit": map[string]any{"type": "integer", "description": "Maximum entries to return (default 50)"},
		}, nil),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*listMemoriesReq)
		limit := r.Limit
		if limit <= 0 {
			limit = 50
		}
		memories, err := s.store.ListRecent(ctx, limit)
		if err != nil {
			return nil, err
		}
		return map[string]any{"memories": memories, "count": len(memories)}, nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r listMemoriesReq
		if len(req.Params.Arguments) > 0 {
			if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
				return nil, err
			}
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- add memory ---

type addMemoryReq struct {
	Question string   `json:"question"`
	Answer   string   `json:"answer"`
	Category string   `json:"category"`
	Tags     []string `json:"tags"`
}

func (s *Service) registerAddMemoryTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "sfc_add_memory",
		Description: "Store a new autofill memory (a question/answer pair with a category and tags).",
		InputSchema: inputSchema(map[string]any{
			"question": map[string]any{"type": "string", "description": "What the memory answers, e.g. 'What is your work email?'"},
			"answer":   map[string]any{"type": "string", "description": "The value to fill"},
			"category": map[string]any{"type": "string", "description": "Grouping such as contact, address, work; inferred when omitted"},
			"tags":     map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		}, []string{"answer"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*addMemoryReq)
		m := memstore.MemoryEntry{
			Question:   r.Question,
			Answer:     r.Answer,
			Category:   r.Category,
			Tags:       r.Tags,
			Confidence: 1,
		}
		if m.Category == "" {
			res := s.classifier.Analyze(ctx, m.Answer, m.Question)
			m.Category = res.Category
			if len(m.Tags) == 0 {
				m.Tags = res.Tags
			}
		}
		if err := s.store.Insert(ctx, &m); err != nil {
			return nil, err
		}
		return m, nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r addMemoryReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		if r.Answer == "" {
			return nil, fmt.Errorf("answer required")
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}
