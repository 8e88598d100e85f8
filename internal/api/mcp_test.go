package api

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kalambet/relayout/internal/profile"
	"github.com/kalambet/relayout/internal/transform"
)

// --- helpers ---

func newTestMCPDeps(t *testing.T) MCPDeps {
	t.Helper()
	mgr, _ := newTestManager(t)
	return MCPDeps{
		Profiles:    mgr,
		Transformer: transform.New(mgr),
	}
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

func makeReadResourceRequest(uri string) mcp.ReadResourceRequest {
	return mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{
			URI: uri,
		},
	}
}

// --- tests ---

func TestMCPTool_Transform(t *testing.T) {
	deps := newTestMCPDeps(t)
	handler := mcpTransform(deps)

	result, err := handler(context.Background(), makeCallToolRequest("transform_text", map[string]interface{}{
		"text": "ghbdtn",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}
	if got := toolText(t, result); got != "привет" {
		t.Errorf("transform_text = %q, want %q", got, "привет")
	}
}

func TestMCPTool_Transform_MissingText(t *testing.T) {
	deps := newTestMCPDeps(t)
	handler := mcpTransform(deps)

	result, err := handler(context.Background(), makeCallToolRequest("transform_text", map[string]interface{}{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected tool error for missing text")
	}
}

func TestMCPTool_Detect(t *testing.T) {
	deps := newTestMCPDeps(t)
	handler := mcpDetect(deps)

	tests := map[string]string{
		"руддщ": "forward",
		"ghbdtn": "reverse",
		"12345":  "tie",
	}
	for in, want := range tests {
		result, err := handler(context.Background(), makeCallToolRequest("detect_side", map[string]interface{}{"text": in}))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := toolText(t, result); got != want {
			t.Errorf("detect_side(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMCPTool_ListProfiles(t *testing.T) {
	deps := newTestMCPDeps(t)
	handler := mcpListProfiles(deps)

	result, err := handler(context.Background(), makeCallToolRequest("list_profiles", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var profiles []struct {
		ID     string `json:"id"`
		Active bool   `json:"active"`
	}
	if err := json.Unmarshal([]byte(toolText(t, result)), &profiles); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(profiles) != 2 {
		t.Fatalf("expected 2 profiles, got %d", len(profiles))
	}
	active := 0
	for _, p := range profiles {
		if p.Active {
			active++
			if p.ID != profile.DefaultProfileID {
				t.Errorf("active profile = %q, want %q", p.ID, profile.DefaultProfileID)
			}
		}
	}
	if active != 1 {
		t.Errorf("%d active profiles, want 1", active)
	}
}

func TestMCPTool_ActivateProfile(t *testing.T) {
	deps := newTestMCPDeps(t)
	handler := mcpActivateProfile(deps)

	result, err := handler(context.Background(), makeCallToolRequest("activate_profile", map[string]interface{}{
		"id": "builtin-uk-en",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}
	if deps.Profiles.ActiveID() != "builtin-uk-en" {
		t.Errorf("ActiveID = %q", deps.Profiles.ActiveID())
	}

	result, err = handler(context.Background(), makeCallToolRequest("activate_profile", map[string]interface{}{
		"id": "missing",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Error("expected tool error for unknown id")
	}
	if deps.Profiles.ActiveID() != "builtin-uk-en" {
		t.Error("failed activation changed the active profile")
	}
}

func TestMCPResource_Active(t *testing.T) {
	deps := newTestMCPDeps(t)
	handler := mcpResourceActive(deps)

	contents, err := handler(context.Background(), makeReadResourceRequest("profile://active"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(contents) != 1 {
		t.Fatalf("expected 1 content, got %d", len(contents))
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("expected TextResourceContents, got %T", contents[0])
	}

	var p profile.Profile
	if err := json.Unmarshal([]byte(tc.Text), &p); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if p.ID != profile.DefaultProfileID {
		t.Errorf("resource profile = %q", p.ID)
	}
}

func TestMCPServer_ConcurrentCalls(t *testing.T) {
	deps := newTestMCPDeps(t)
	transformHandler := mcpTransform(deps)
	activateHandler := mcpActivateProfile(deps)

	var wg sync.WaitGroup
	errs := make(chan error, 20)

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := transformHandler(context.Background(), makeCallToolRequest("transform_text", map[string]interface{}{
				"text": "ghbdtn",
			}))
			if err != nil {
				errs <- err
			}
		}()
	}

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := profile.DefaultProfileID
			if i%2 == 1 {
				id = "builtin-uk-en"
			}
			_, err := activateHandler(context.Background(), makeCallToolRequest("activate_profile", map[string]interface{}{
				"id": id,
			}))
			if err != nil {
				errs <- err
			}
		}(i)
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		t.Fatalf("concurrent call failed: %v", err)
	}
}

func TestNewMCPServer(t *testing.T) {
	if s := NewMCPServer(newTestMCPDeps(t)); s == nil {
		t.Fatal("NewMCPServer returned nil")
	}
}
