package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kalambet/relayout/internal/config"
)

type recordedRequest struct {
	Method      string
	Path        string
	Body        string
	Auth        string
	ContentType string
}

type testServer struct {
	server   *httptest.Server
	requests []recordedRequest
}

func newTestServer(t *testing.T, responses map[string]string) *testServer {
	t.Helper()
	ts := &testServer{}

	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body bytes.Buffer
		body.ReadFrom(r.Body)

		ts.requests = append(ts.requests, recordedRequest{
			Method:      r.Method,
			Path:        r.URL.RequestURI(),
			Body:        body.String(),
			Auth:        r.Header.Get("Authorization"),
			ContentType: r.Header.Get("Content-Type"),
		})

		key := r.Method + " " + r.URL.Path
		if resp, ok := responses[key]; ok {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(resp))
			return
		}

		w.WriteHeader(404)
		w.Write([]byte(`{"error":{"message":"profile not found: nope","type":"not_found"}}`))
	}))

	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testServer) client() *apiClient {
	return &apiClient{
		baseURL:    ts.server.URL,
		token:      "test-token",
		httpClient: ts.server.Client(),
	}
}

// useServer points the commands at ts for the duration of the test.
func useServer(t *testing.T, ts *testServer) {
	t.Helper()
	old := newAPIClient
	newAPIClient = func() (*apiClient, error) { return ts.client(), nil }
	t.Cleanup(func() { newAPIClient = old })

	oldColor := noColor
	noColor = true
	t.Cleanup(func() { noColor = oldColor })
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetIn(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestTransformCommand(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /transform": `{"text":"привет","changed":true}`,
	})
	useServer(t, ts)

	out, err := execute(t, "", "transform", "ghbdtn")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "привет\n" {
		t.Errorf("output = %q, want %q", out, "привет\n")
	}

	if len(ts.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(ts.requests))
	}
	r := ts.requests[0]
	if r.Auth != "Bearer test-token" {
		t.Errorf("auth = %q, want Bearer test-token", r.Auth)
	}
	var body map[string]string
	if err := json.Unmarshal([]byte(r.Body), &body); err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	if body["text"] != "ghbdtn" {
		t.Errorf("body.text = %q, want ghbdtn", body["text"])
	}
}

func TestTransformCommand_Stdin(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /transform": `{"text":"hello","changed":true}`,
	})
	useServer(t, ts)

	if _, err := execute(t, "руддщ\n", "transform"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(ts.requests[0].Body, `"руддщ"`) {
		t.Errorf("body = %s, want trailing newline stripped", ts.requests[0].Body)
	}
}

func TestDetectCommand(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /detect": `{"side":"reverse"}`,
	})
	useServer(t, ts)

	out, err := execute(t, "", "detect", "ghbdtn")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "reverse\n" {
		t.Errorf("output = %q, want reverse", out)
	}
}

func TestProfileList(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /profiles": `{"active_id":"b","profiles":[
			{"id":"a","name":"Russian","editable":false,"mapping":{"й":"q"}},
			{"id":"b","name":"Mine","editable":true,"mapping":{}}]}`,
	})
	useServer(t, ts)

	out, err := execute(t, "", "profile", "list")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2:\n%s", len(lines), out)
	}
	if !strings.HasPrefix(lines[1], "* b") {
		t.Errorf("active profile not marked: %q", lines[1])
	}
	if !strings.Contains(lines[0], "built-in, 1 keys") {
		t.Errorf("line = %q", lines[0])
	}
}

func TestProfileShow_NotFound(t *testing.T) {
	ts := newTestServer(t, nil)
	useServer(t, ts)

	_, err := execute(t, "", "profile", "show", "nope")
	if err == nil {
		t.Fatal("expected error for unknown profile")
	}
	if !strings.Contains(err.Error(), "404") || !strings.Contains(err.Error(), "profile not found") {
		t.Errorf("error = %q", err)
	}
}

func TestProfileSet(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /profiles/p1": `{"id":"p1","name":"Mine","editable":true,"mapping":{"й":"q","ё":"~"}}`,
		"PUT /profiles/p1": `{"id":"p1","name":"Mine","editable":true,"mapping":{"й":"q","ц":"w"}}`,
	})
	useServer(t, ts)

	if _, err := execute(t, "", "profile", "set", "p1", "ц", "w"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ts.requests) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(ts.requests))
	}
	var body struct {
		Mapping map[string]string `json:"mapping"`
	}
	if err := json.Unmarshal([]byte(ts.requests[1].Body), &body); err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	if body.Mapping["ц"] != "w" || body.Mapping["й"] != "q" {
		t.Errorf("mapping = %v", body.Mapping)
	}

	ts.requests = nil
	if _, err := execute(t, "", "profile", "set", "p1", "ё", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := json.Unmarshal([]byte(ts.requests[1].Body), &body); err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	if _, ok := body.Mapping["ё"]; ok {
		t.Error("empty value should remove the key")
	}
}

func TestProfileActivate(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"PUT /profiles/active": `{"active_id":"builtin-uk-en"}`,
	})
	useServer(t, ts)

	if _, err := execute(t, "", "profile", "activate", "builtin-uk-en"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ts.requests[0].Body != `{"id":"builtin-uk-en"}` {
		t.Errorf("body = %s", ts.requests[0].Body)
	}
}

func TestProfileImport(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /profiles/import": `{"id":"p9","name":"Greek","editable":true,"mapping":{"α":"a"}}`,
	})
	useServer(t, ts)

	content := "name = \"Greek\"\n\n[mapping]\n\"α\" = \"a\"\n"
	path := filepath.Join(t.TempDir(), "greek.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := execute(t, "", "profile", "import", path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r := ts.requests[0]
	if r.Body != content {
		t.Errorf("body = %q, want file content", r.Body)
	}
	if r.ContentType != "application/toml" {
		t.Errorf("Content-Type = %q", r.ContentType)
	}
}

func TestProfileExport_ToFile(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /profiles/p1/export": "name = \"Mine\"\n",
	})
	useServer(t, ts)

	path := filepath.Join(t.TempDir(), "out.toml")
	t.Cleanup(func() { profileExportCmd.Flags().Set("output", "") })

	if _, err := execute(t, "", "profile", "export", "p1", "--output", path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "name = \"Mine\"\n" {
		t.Errorf("exported = %q", data)
	}
}

func TestTriggerCommand(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /trigger": `{"id":"r1","path":"standard","acquired_by":"selected_text","replaced_by":"ax_direct","changed":true}`,
	})
	useServer(t, ts)

	if _, err := execute(t, "", "trigger"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ts.requests[0].Method != http.MethodPost || ts.requests[0].Path != "/trigger" {
		t.Errorf("request = %s %s", ts.requests[0].Method, ts.requests[0].Path)
	}
}

func TestHistoryCommand(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /triggers": `[
			{"id":"b","created_at":"2026-03-01T10:00:01Z","bundle_id":"com.apple.TextEdit","path":"standard","acquired_by":"selected_text","replaced_by":"ax_direct","changed":true},
			{"id":"a","created_at":"2026-03-01T10:00:00Z","bundle_id":"com.apple.Terminal","path":"terminal","acquired_by":"terminal_value","error":"acquisition failed"}]`,
	})
	useServer(t, ts)
	t.Cleanup(func() { historyCmd.Flags().Set("limit", "20") })

	out, err := execute(t, "", "history", "--limit", "5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ts.requests[0].Path != "/triggers?limit=5" {
		t.Errorf("path = %q", ts.requests[0].Path)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines:\n%s", len(lines), out)
	}
	if !strings.Contains(lines[0], "selected_text → ax_direct") || !strings.Contains(lines[0], "converted") {
		t.Errorf("line 0 = %q", lines[0])
	}
	if !strings.Contains(lines[1], "acquisition failed") || strings.Contains(lines[1], "→") {
		t.Errorf("line 1 = %q", lines[1])
	}
}

func TestDecodeJSON_ErrorMessage(t *testing.T) {
	rr := httptest.NewRecorder()
	rr.WriteHeader(http.StatusConflict)
	rr.WriteString(`{"error":{"message":"profile is not editable: Russian","type":"conflict"}}`)

	var v any
	err := decodeJSON(rr.Result(), &v)
	if err == nil {
		t.Fatal("expected error")
	}
	if err.Error() != "server returned 409: profile is not editable: Russian" {
		t.Errorf("error = %q", err)
	}
}

func TestPipelineSettings(t *testing.T) {
	p := config.PipelineConfig{
		TerminalApps:         "com.example.term",
		BackspaceCeiling:     50,
		BackspaceSlack:       1,
		KeystrokeInterval:    5 * time.Millisecond,
		PasteRestoreDelay:    time.Second,
		ClipboardPollInitial: 2 * time.Millisecond,
		ClipboardPollMax:     40 * time.Millisecond,
		ClipboardTimeout:     500 * time.Millisecond,
		TriggerTimeout:       3 * time.Second,
		SwitchLayout:         false,
	}

	s := pipelineSettings(p)
	if len(s.TerminalApps) != 1 || s.TerminalApps[0] != "com.example.term" {
		t.Errorf("TerminalApps = %v", s.TerminalApps)
	}
	if s.SwitchLayout {
		t.Error("SwitchLayout = true")
	}
	if s.TriggerTimeout != 3*time.Second {
		t.Errorf("TriggerTimeout = %v", s.TriggerTimeout)
	}
	if s.Backoff.Initial != 2*time.Millisecond || s.Backoff.Max != 40*time.Millisecond || s.Backoff.Timeout != 500*time.Millisecond {
		t.Errorf("Backoff = %+v", s.Backoff)
	}
	if s.Replace.RestoreDelay != time.Second || s.Replace.BackspaceCeiling != 50 || s.Replace.BackspaceSlack != 1 || s.Replace.KeystrokeInterval != 5*time.Millisecond {
		t.Errorf("Replace = %+v", s.Replace)
	}

	s = pipelineSettings(config.PipelineConfig{TerminalApps: " , "})
	if len(s.TerminalApps) == 0 {
		t.Error("empty terminal list should keep the default allow-list")
	}
}

func TestColorize(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()

	noColor = true
	if result := colorize(colorRed, "hello"); result != "hello" {
		t.Errorf("colorize with noColor=true should not contain ANSI codes, got %q", result)
	}

	noColor = false
	if result := colorize(colorRed, "hello"); !strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=false should contain ANSI codes, got %q", result)
	}
}
