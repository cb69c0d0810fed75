// CLAUDE:SUMMARY Registers the chapter MCP tools: list, extract, search, section, text and visual.
package library

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/chapterkb/idgen"
	"github.com/hazyhaar/chapterkb/kit"
)

// RegisterMCP registers the library tools on an MCP server.
func (l *Library) RegisterMCP(srv *mcp.Server) {
	l.registerListTool(srv)
	l.registerExtractTool(srv)
	l.registerSearchTool(srv)
	l.registerSectionTool(srv)
	l.registerTextTool(srv)
	if l.ImagesEnabled() {
		l.registerVisualTool(srv)
	}
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

func (l *Library) endpoint(op string, ep kit.Endpoint) kit.Endpoint {
	return kit.Chain(kit.WithRequestIDs(idgen.RequestID), kit.Logging(l.logger, op))(ep)
}

var chapterIDProp = map[string]any{"type": "string", "description": "PDF file name of the chapter, e.g. anchors.pdf"}

// --- list_chapters ---

func (l *Library) registerListTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "list_chapters",
		Description: "List all chapters with their title, description, keywords and extraction status.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}
	ep := func(ctx context.Context, _ any) (any, error) {
		return l.ListChapters(ctx)
	}
	kit.RegisterMCPTool(srv, tool, l.endpoint(tool.Name, ep), kit.DecodeArgs[struct{}])
}

// --- extract_chapter ---

type extractRequest struct {
	ChapterID      string `json:"chapter_id"`
	ForceReextract bool   `json:"force_reextract"`
}

func (l *Library) registerExtractTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "extract_chapter",
		Description: "Extract and cache the text, chunks and page images of a chapter. Returns the cached summary unless force_reextract is set.",
		InputSchema: inputSchema(map[string]any{
			"chapter_id":      chapterIDProp,
			"force_reextract": map[string]any{"type": "boolean", "description": "Re-extract even if cached (default false)"},
		}, []string{"chapter_id"}),
	}
	ep := func(ctx context.Context, req any) (any, error) {
		r := req.(*extractRequest)
		return l.ExtractChapter(ctx, r.ChapterID, r.ForceReextract)
	}
	kit.RegisterMCPTool(srv, tool, l.endpoint(tool.Name, ep), kit.DecodeArgs[extractRequest])
}

// --- search_content ---

type searchRequest struct {
	Query         string `json:"query"`
	MaxResults    int    `json:"max_results,omitempty"`
	IncludeImages bool   `json:"include_images,omitempty"`
}

func (l *Library) registerSearchTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "search_content",
		Description: "Search extracted chapters. Returns ranked chapters with citations and snippets of the best matching chunks.",
		InputSchema: inputSchema(map[string]any{
			"query":          map[string]any{"type": "string", "description": "Search terms"},
			"max_results":    map[string]any{"type": "integer", "minimum": 1, "maximum": 5, "description": "Max chapters (default 3)"},
			"include_images": map[string]any{"type": "boolean", "description": "Attach page images of matching chunks"},
		}, []string{"query"}),
	}
	ep := func(ctx context.Context, req any) (any, error) {
		r := req.(*searchRequest)
		return l.SearchContent(ctx, r.Query, r.MaxResults, r.IncludeImages && l.ImagesEnabled())
	}
	kit.RegisterMCPTool(srv, tool, l.endpoint(tool.Name, ep), kit.DecodeArgs[searchRequest])
}

// --- get_chapter_section ---

type sectionRequest struct {
	ChapterID    string `json:"chapter_id"`
	Topic        string `json:"topic"`
	ContextLevel string `json:"context_level,omitempty"`
}

func (l *Library) registerSectionTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "get_chapter_section",
		Description: "Get the passages of an extracted chapter about a topic, in document order.",
		InputSchema: inputSchema(map[string]any{
			"chapter_id":    chapterIDProp,
			"topic":         map[string]any{"type": "string", "description": "Topic to look for"},
			"context_level": map[string]any{"type": "string", "enum": []any{LevelBrief, LevelDetailed, LevelComprehensive}, "description": "brief = 1 chunk, detailed = 2, comprehensive = 3 (default brief)"},
		}, []string{"chapter_id", "topic"}),
	}
	ep := func(ctx context.Context, req any) (any, error) {
		r := req.(*sectionRequest)
		return l.GetChapterSection(ctx, r.ChapterID, r.Topic, r.ContextLevel)
	}
	kit.RegisterMCPTool(srv, tool, l.endpoint(tool.Name, ep), kit.DecodeArgs[sectionRequest])
}

// --- get_chapter_text ---

type textRequest struct {
	ChapterID  string `json:"chapter_id"`
	StartChars int    `json:"start_chars,omitempty"`
	Length     int    `json:"length,omitempty"`
}

func (l *Library) registerTextTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "get_chapter_text",
		Description: "Read a window of a chapter's full text. Extracts the chapter first if needed.",
		InputSchema: inputSchema(map[string]any{
			"chapter_id":  chapterIDProp,
			"start_chars": map[string]any{"type": "integer", "minimum": 0, "description": "Start offset (default 0)"},
			"length":      map[string]any{"type": "integer", "minimum": 1, "description": "Bytes to return (default 1000)"},
		}, []string{"chapter_id"}),
	}
	ep := func(ctx context.Context, req any) (any, error) {
		r := req.(*textRequest)
		return l.GetChapterText(ctx, r.ChapterID, r.StartChars, r.Length)
	}
	kit.RegisterMCPTool(srv, tool, l.endpoint(tool.Name, ep), kit.DecodeArgs[textRequest])
}

// --- get_visual_content ---

type visualRequest struct {
	ChapterID    string `json:"chapter_id"`
	PageNumbers  []int  `json:"page_numbers,omitempty"`
	TopicContext string `json:"topic_context,omitempty"`
}

func (l *Library) registerVisualTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "get_visual_content",
		Description: "Get rendered page images of an extracted chapter with the text of each page.",
		InputSchema: inputSchema(map[string]any{
			"chapter_id":    chapterIDProp,
			"page_numbers":  map[string]any{"type": "array", "items": map[string]any{"type": "integer"}, "description": "Pages to return"},
			"topic_context": map[string]any{"type": "string", "description": "Pick the pages of chunks about this topic"},
		}, []string{"chapter_id"}),
	}
	ep := func(ctx context.Context, req any) (any, error) {
		r := req.(*visualRequest)
		return l.GetVisualContent(ctx, r.ChapterID, r.PageNumbers, r.TopicContext)
	}
	kit.RegisterMCPTool(srv, tool, l.endpoint(tool.Name, ep), kit.DecodeArgs[visualRequest])
}
