package api

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kalambet/triage/internal/analytics"
	"github.com/kalambet/triage/internal/storage"
)

func newTestMCPDeps(t *testing.T) (MCPDeps, *storage.Store) {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return MCPDeps{
		Engine:     &fakeEngine{store: store},
		Complaints: store,
		Analytics:  analytics.New(store),
	}, store
}

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return tc.Text
}

func makeCallToolRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func TestMCPTool_SubmitComplaint(t *testing.T) {
	deps, store := newTestMCPDeps(t)

	result, err := mcpSubmitComplaint(deps)(context.Background(), makeCallToolRequest("submit_complaint", map[string]interface{}{
		"customer_email": "a@x.com",
		"text":           "I was overcharged",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", toolText(t, result))
	}

	var res map[string]any
	if err := json.Unmarshal([]byte(toolText(t, result)), &res); err != nil {
		t.Fatalf("result is not JSON: %v", err)
	}
	if res["normalized_key"] != "billing" {
		t.Errorf("result = %v", res)
	}

	counts, _ := store.CountComplaints(context.Background())
	if counts.Total != 1 {
		t.Errorf("stored %d complaints, want 1", counts.Total)
	}
}

func TestMCPTool_SubmitComplaint_Invalid(t *testing.T) {
	deps, _ := newTestMCPDeps(t)

	result, err := mcpSubmitComplaint(deps)(context.Background(), makeCallToolRequest("submit_complaint", map[string]interface{}{
		"customer_email": "a@x.com",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if !result.IsError {
		t.Fatal("expected tool error for missing text")
	}
	if !strings.Contains(toolText(t, result), "text") {
		t.Errorf("error = %q, want it to name the field", toolText(t, result))
	}
}

func TestMCPTool_Analytics(t *testing.T) {
	deps, _ := newTestMCPDeps(t)

	result, err := mcpAnalytics(deps)(context.Background(), makeCallToolRequest("complaint_analytics", nil))
	if err != nil {
		t.Fatal(err)
	}
	if got := toolText(t, result); !strings.Contains(got, `"total_complaints":0`) || !strings.Contains(got, `"percentage":0.00`) {
		t.Errorf("analytics = %s", got)
	}
}

func TestMCPResource_Recent(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	submit := mcpSubmitComplaint(deps)
	for i := 0; i < 12; i++ {
		submit(context.Background(), makeCallToolRequest("submit_complaint", map[string]interface{}{
			"customer_email": "a@x.com",
			"text":           strings.Repeat("long text ", 30),
		}))
	}

	contents, err := mcpResourceRecent(deps)(context.Background(), mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{URI: "complaints://recent"},
	})
	if err != nil {
		t.Fatal(err)
	}
	text := contents[0].(mcp.TextResourceContents).Text

	var summaries []struct {
		ID   int64  `json:"id"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal([]byte(text), &summaries); err != nil {
		t.Fatal(err)
	}
	if len(summaries) != 10 {
		t.Fatalf("got %d complaints, want 10", len(summaries))
	}
	if summaries[0].ID != 12 {
		t.Errorf("first id = %d, want newest (12)", summaries[0].ID)
	}
	if !strings.HasSuffix(summaries[0].Text, "...") {
		t.Errorf("long text not truncated: %q", summaries[0].Text)
	}
}

func TestMCPServer_ConcurrentCalls(t *testing.T) {
	deps, store := newTestMCPDeps(t)
	submit := mcpSubmitComplaint(deps)
	stats := mcpAnalytics(deps)

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 5; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if _, err := submit(context.Background(), makeCallToolRequest("submit_complaint", map[string]interface{}{
				"customer_email": "a@x.com", "text": "concurrent",
			})); err != nil {
				errs <- err
			}
		}()
		go func() {
			defer wg.Done()
			if _, err := stats(context.Background(), makeCallToolRequest("complaint_analytics", nil)); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent call failed: %v", err)
	}

	counts, _ := store.CountComplaints(context.Background())
	if counts.Total != 5 {
		t.Errorf("stored %d complaints, want 5", counts.Total)
	}
}

func TestNewMCPServer(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	if NewMCPServer(deps) == nil {
		t.Fatal("NewMCPServer returned nil")
	}
}
