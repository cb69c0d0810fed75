package library

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

var testImpl = &mcp.Implementation{Name: "chapterkb-test", Version: "0.1.0"}

// mcpSession registers the tools of f's library and returns a connected
// client session that can call them end-to-end.
func mcpSession(t *testing.T, f *fixture) *mcp.ClientSession {
	t.Helper()
	srv := mcp.NewServer(testImpl, nil)
	f.lib.RegisterMCP(srv)

	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()
	go func() {
		_ = srv.Run(ctx, serverT)
	}()

	client := mcp.NewClient(testImpl, nil)
	session, err := client.Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return session
}

// callTool invokes a tool and returns the JSON text from the first TextContent.
func callTool(t *testing.T, session *mcp.ClientSession, name string, args any) string {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	if err := result.GetError(); err != nil {
		t.Fatalf("CallTool(%s) tool error: %v", name, err)
	}
	if len(result.Content) == 0 {
		t.Fatalf("CallTool(%s): empty content", name)
	}
	tc, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("CallTool(%s): expected TextContent, got %T", name, result.Content[0])
	}
	return tc.Text
}

func TestMCP_Tools(t *testing.T) {
	f := newFixture(t, map[string]string{"anchors.pdf": anchorsText}, false)
	session := mcpSession(t, f)

	res, err := session.ListTools(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	names := map[string]bool{}
	for _, tool := range res.Tools {
		names[tool.Name] = true
	}
	for _, want := range []string{"list_chapters", "extract_chapter", "search_content", "get_chapter_section", "get_chapter_text"} {
		if !names[want] {
			t.Errorf("tool %s not registered", want)
		}
	}
	if names["get_visual_content"] {
		t.Error("get_visual_content registered with rendering disabled")
	}
}

func TestMCP_ExtractAndSearch(t *testing.T) {
	f := newFixture(t, map[string]string{"anchors.pdf": anchorsText}, false)
	session := mcpSession(t, f)

	var summary ExtractionSummary
	text := callTool(t, session, "extract_chapter", map[string]any{"chapter_id": "anchors.pdf"})
	if err := json.Unmarshal([]byte(text), &summary); err != nil {
		t.Fatalf("unmarshal summary: %v", err)
	}
	if summary.ChapterID != "anchors.pdf" || summary.ChunkCount != 1 {
		t.Fatalf("summary = %+v", summary)
	}

	var list []ChapterInfo
	if err := json.Unmarshal([]byte(callTool(t, session, "list_chapters", map[string]any{})), &list); err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || !list[0].ExtractionStatus.Extracted {
		t.Fatalf("list = %+v", list)
	}

	var resp SearchResponse
	text = callTool(t, session, "search_content", map[string]any{"query": "anchor", "max_results": 2})
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.TotalResults != 1 || resp.Results[0].Score < 10 {
		t.Fatalf("search = %+v", resp)
	}

	var section SectionResponse
	text = callTool(t, session, "get_chapter_section", map[string]any{"chapter_id": "anchors.pdf", "topic": "equalization"})
	if err := json.Unmarshal([]byte(text), &section); err != nil {
		t.Fatal(err)
	}
	if section.Content != anchorsText {
		t.Fatalf("section = %+v", section)
	}
}

func TestMCP_ErrorsAreResults(t *testing.T) {
	// WHAT: a failing operation yields an error result, not a protocol error.
	// WHY: the session must survive bad calls (scenario D among them).
	f := newFixture(t, map[string]string{"anchors.pdf": anchorsText}, false)
	session := mcpSession(t, f)
	ctx := context.Background()

	calls := []struct {
		tool string
		args map[string]any
		want string
	}{
		{"get_chapter_section", map[string]any{"chapter_id": "anchors.pdf", "topic": "anchor"}, "extract"},
		{"extract_chapter", map[string]any{"chapter_id": "missing.pdf"}, "not found"},
		{"extract_chapter", map[string]any{"chapter_id": "../secrets.pdf"}, "invalid argument"},
		{"get_chapter_text", map[string]any{"chapter_id": 42}, "invalid arguments"},
	}
	for _, c := range calls {
		res, err := session.CallTool(ctx, &mcp.CallToolParams{Name: c.tool, Arguments: c.args})
		if err != nil {
			t.Fatalf("%s: protocol error %v", c.tool, err)
		}
		if !res.IsError {
			t.Fatalf("%s: expected an error result", c.tool)
		}
		msg := res.Content[0].(*mcp.TextContent).Text
		if !strings.Contains(msg, c.want) {
			t.Errorf("%s: message %q does not mention %q", c.tool, msg, c.want)
		}
	}

	// A query with no searchable words is an answer, not a failure.
	res, err := session.CallTool(ctx, &mcp.CallToolParams{Name: "search_content", Arguments: map[string]any{"query": "of"}})
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError || !strings.Contains(res.Content[0].(*mcp.TextContent).Text, "No searchable words") {
		t.Fatalf("blank search: %+v", res.Content[0])
	}

	// The session is still usable.
	callTool(t, session, "list_chapters", map[string]any{})
}

func TestMCP_VisualContent(t *testing.T) {
	f := newFixture(t, map[string]string{"belay.pdf": "belay page one\fbelay page two"}, true)
	session := mcpSession(t, f)
	callTool(t, session, "extract_chapter", map[string]any{"chapter_id": "belay.pdf"})

	var resp VisualResponse
	text := callTool(t, session, "get_visual_content", map[string]any{"chapter_id": "belay.pdf", "page_numbers": []int{1}})
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Pages) != 1 || string(resp.Pages[0].Image.Data) != "jpeg-page-1" {
		t.Fatalf("visual = %+v", resp)
	}
}
