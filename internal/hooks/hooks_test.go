package hooks

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/lazypower/memorylayer/internal/llm"
)

type recorded struct {
	Method string
	Path   string
	Body   map[string]any
}

// fakeServer records every request and answers /api/context with ctxText.
type fakeServer struct {
	*httptest.Server
	mu       sync.Mutex
	requests []recorded
}

func newFakeServer(t *testing.T, ctxText string) *fakeServer {
	t.Helper()
	fs := &fakeServer{}
	fs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recorded{Method: r.Method, Path: r.URL.Path}
		if data, _ := io.ReadAll(r.Body); len(data) > 0 {
			json.Unmarshal(data, &rec.Body)
		}
		fs.mu.Lock()
		fs.requests = append(fs.requests, rec)
		fs.mu.Unlock()

		switch r.URL.Path {
		case "/api/context":
			json.NewEncoder(w).Encode(map[string]any{"context": ctxText, "token_count": 10})
		default:
			json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
		}
	}))
	t.Cleanup(fs.Close)
	return fs
}

func (fs *fakeServer) paths() []string {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	var out []string
	for _, r := range fs.requests {
		out = append(out, r.Method+" "+r.Path)
	}
	return out
}

func (fs *fakeServer) find(path string) *recorded {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	for i := range fs.requests {
		if fs.requests[i].Path == path {
			return &fs.requests[i]
		}
	}
	return nil
}

func equalPaths(t *testing.T, got, want []string) {
	t.Helper()
	if strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Errorf("requests:\n%s\nwant:\n%s", strings.Join(got, "\n"), strings.Join(want, "\n"))
	}
}

func TestHandleStartWithServer(t *testing.T) {
	fs := newFakeServer(t, "## Relevant Code\n\n### main.go (90% relevant)")
	input := &HookInput{SessionID: "test-001", CWD: "/src/shop", HookEventName: "SessionStart"}

	var out bytes.Buffer
	if err := Dispatch(NewClientURL(fs.URL), "start", input, &out); err != nil {
		t.Fatalf("start: %v", err)
	}

	equalPaths(t, fs.paths(), []string{"POST /api/sessions/init", "POST /api/context"})
	if q := fs.find("/api/context").Body["query"]; q != "resume work on shop" {
		t.Errorf("query = %v", q)
	}

	var parsed SessionStartOutput
	if err := json.Unmarshal(out.Bytes(), &parsed); err != nil {
		t.Fatalf("invalid JSON output: %v", err)
	}
	if parsed.HookSpecificOutput.HookEventName != "SessionStart" {
		t.Errorf("hookEventName = %q, want SessionStart", parsed.HookSpecificOutput.HookEventName)
	}
	if !strings.Contains(parsed.HookSpecificOutput.AdditionalContext, "## Relevant Code") {
		t.Errorf("context = %q", parsed.HookSpecificOutput.AdditionalContext)
	}
}

func TestHandleStartEmptyOnServerDown(t *testing.T) {
	t.Setenv("MEMORYLAYER_URL", "http://127.0.0.1:1")

	var out bytes.Buffer
	Handle("start", strings.NewReader(`{"session_id":"test-001","hook_event_name":"SessionStart"}`), &out)

	var parsed SessionStartOutput
	if err := json.Unmarshal(out.Bytes(), &parsed); err != nil {
		t.Fatalf("invalid JSON output: %v", err)
	}
	if parsed.HookSpecificOutput.AdditionalContext != "" {
		t.Errorf("expected empty context, got %q", parsed.HookSpecificOutput.AdditionalContext)
	}
}

func TestHandleStartEmptyStdin(t *testing.T) {
	var out bytes.Buffer
	Handle("start", strings.NewReader(""), &out)
	if !strings.Contains(out.String(), `"hookEventName":"SessionStart"`) {
		t.Errorf("output = %s", out.String())
	}
}

func TestSkipTools(t *testing.T) {
	input := &HookInput{ToolName: "TodoRead"}
	if !input.ShouldSkipTool() {
		t.Error("expected TodoRead to be skipped")
	}

	input.ToolName = "Bash"
	if input.ShouldSkipTool() {
		t.Error("expected Bash to NOT be skipped")
	}
}

func TestFilePath(t *testing.T) {
	tests := []struct {
		tool  string
		input string
		want  string
	}{
		{"Read", `{"file_path":"/src/main.go"}`, "/src/main.go"},
		{"Edit", `{"file_path":"/src/db.go","old_string":"a"}`, "/src/db.go"},
		{"Bash", `{"file_path":"/src/main.go"}`, ""},
		{"Read", `not json`, ""},
		{"Read", ``, ""},
	}
	for _, tt := range tests {
		in := &HookInput{ToolName: tt.tool, ToolInput: json.RawMessage(tt.input)}
		if got := in.FilePath(); got != tt.want {
			t.Errorf("%s %s: FilePath = %q, want %q", tt.tool, tt.input, got, tt.want)
		}
	}
}

func TestHookInputParsing(t *testing.T) {
	raw := `{
		"session_id": "abc123",
		"transcript_path": "/path/to/transcript.jsonl",
		"cwd": "/working/dir",
		"hook_event_name": "PostToolUse",
		"tool_name": "Bash",
		"tool_use_id": "tool_123",
		"tool_input": {"command": "ls"},
		"tool_response": "file1 file2"
	}`

	var input HookInput
	if err := json.Unmarshal([]byte(raw), &input); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if input.SessionID != "abc123" {
		t.Errorf("SessionID = %q, want abc123", input.SessionID)
	}
	if string(input.ToolInput) != `{"command": "ls"}` {
		t.Errorf("ToolInput = %q", string(input.ToolInput))
	}
	if string(input.ToolResponse) != `"file1 file2"` {
		t.Errorf("ToolResponse = %q", string(input.ToolResponse))
	}
}

func TestSessionStartOutputFormat(t *testing.T) {
	var out bytes.Buffer
	WriteSessionStartOutput(&out, "test context")

	var parsed map[string]any
	if err := json.Unmarshal(out.Bytes(), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	hookOutput, ok := parsed["hookSpecificOutput"].(map[string]any)
	if !ok {
		t.Fatal("missing hookSpecificOutput")
	}
	if hookOutput["additionalContext"] != "test context" {
		t.Errorf("additionalContext = %v", hookOutput["additionalContext"])
	}
}

func TestClientHealthyFalseWhenDown(t *testing.T) {
	t.Setenv("MEMORYLAYER_URL", "http://127.0.0.1:1")
	if NewClient().Healthy() {
		t.Error("expected Healthy() = false when server is not running")
	}
}

func TestIsInternalPrompt(t *testing.T) {
	tests := []struct {
		prompt string
		want   bool
	}{
		{llm.InternalSentinel + " Summarize the following", true},
		{"remember this: always use WAL mode", false},
		{"", false},
		// must be a prefix
		{"some preamble " + llm.InternalSentinel + " then more", false},
	}
	for _, tt := range tests {
		if got := isInternalPrompt(tt.prompt); got != tt.want {
			t.Errorf("isInternalPrompt(%q) = %v, want %v", tt.prompt, got, tt.want)
		}
	}
}

func TestSignalType(t *testing.T) {
	tests := []struct {
		prompt string
		want   string
	}{
		{"remember this: always use WAL mode", "custom"},
		{"I said don't forget about the config", "custom"},
		{"always use devbox for development", "instruction"},
		{"never do force pushes to main", "instruction"},
		{"this is an architecture decision", "decision"},
		{"we decided to use Go", "decision"},
		{"the API must stay backwards compatible", "requirement"},
		{"REMEMBER THIS: use WAL mode", "custom"},
		{"mustard is not a signal", ""},
		{"help me fix this bug", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := signalType(tt.prompt); got != tt.want {
			t.Errorf("signalType(%q) = %q, want %q", tt.prompt, got, tt.want)
		}
		if hasSignal(tt.prompt) != (tt.want != "") {
			t.Errorf("hasSignal(%q) disagrees with signalType", tt.prompt)
		}
	}
}

func TestHandleSubmit(t *testing.T) {
	fs := newFakeServer(t, "")
	input := &HookInput{SessionID: "s1", CWD: "/tmp/project", Prompt: "we decided to use SQLite for storage"}

	if err := Dispatch(NewClientURL(fs.URL), "submit", input, io.Discard); err != nil {
		t.Fatalf("submit: %v", err)
	}
	equalPaths(t, fs.paths(), []string{
		"POST /api/sessions/init",
		"POST /api/sessions/s1/goal",
		"POST /api/critical",
		"POST /api/chunks",
	})
	crit := fs.find("/api/critical")
	if crit.Body["type"] != "decision" || crit.Body["content"] != input.Prompt {
		t.Errorf("critical body = %v", crit.Body)
	}
	if src := fs.find("/api/chunks").Body["source"]; src != "user" {
		t.Errorf("chunk source = %v", src)
	}
}

func TestHandleSubmitWithoutSignal(t *testing.T) {
	fs := newFakeServer(t, "")
	input := &HookInput{SessionID: "s1", Prompt: "add pagination to the orders list"}
	if err := handleSubmit(NewClientURL(fs.URL), input, false); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if fs.find("/api/critical") != nil {
		t.Error("prompt without a signal should not be marked critical")
	}
}

func TestHandleSubmitSkipsInternal(t *testing.T) {
	fs := newFakeServer(t, "")
	client := NewClientURL(fs.URL)

	handleSubmit(client, &HookInput{SessionID: "s1", Prompt: llm.InternalSentinel + " remember this"}, false)
	handleSubmit(client, &HookInput{SessionID: "s1", Prompt: "remember this"}, true)

	if got := fs.paths(); len(got) != 0 {
		t.Errorf("internal prompts should send nothing, got %v", got)
	}
}

func TestHandleTool(t *testing.T) {
	fs := newFakeServer(t, "")
	client := NewClientURL(fs.URL)

	input := &HookInput{
		SessionID:    "s1",
		ToolName:     "Read",
		ToolInput:    json.RawMessage(`{"file_path":"/src/main.go"}`),
		ToolResponse: json.RawMessage(`"package main"`),
	}
	if err := Dispatch(client, "tool", input, io.Discard); err != nil {
		t.Fatalf("tool: %v", err)
	}
	equalPaths(t, fs.paths(), []string{"POST /api/chunks", "POST /api/working/viewed"})

	chunk := fs.find("/api/chunks").Body
	if chunk["source"] != "tool:Read" || !strings.Contains(chunk["content"].(string), "package main") {
		t.Errorf("chunk = %v", chunk)
	}
	if p := fs.find("/api/working/viewed").Body["path"]; p != "/src/main.go" {
		t.Errorf("viewed path = %v", p)
	}

	Dispatch(client, "tool", &HookInput{ToolName: "TodoWrite"}, io.Discard)
	if n := len(fs.paths()); n != 2 {
		t.Errorf("skipped tool sent requests: %d total", n)
	}
}

func TestToolContentTruncated(t *testing.T) {
	input := &HookInput{ToolName: "Bash", ToolResponse: json.RawMessage(`"` + strings.Repeat("é", maxToolChunk) + `"`)}
	got := toolContent(input)
	if !strings.HasSuffix(got, "[truncated]") {
		t.Error("long tool output should be truncated")
	}
	if len(got) > maxToolChunk+len("\n[truncated]") {
		t.Errorf("len = %d", len(got))
	}
	if !strings.HasPrefix(got, "Bash\n") {
		t.Errorf("prefix = %q", got[:10])
	}
}

func TestHandleStopAndEnd(t *testing.T) {
	fs := newFakeServer(t, "")
	client := NewClientURL(fs.URL)

	Dispatch(client, "stop", &HookInput{SessionID: "s1", StopHookActive: true}, io.Discard)
	Dispatch(client, "stop", &HookInput{SessionID: "s1"}, io.Discard)
	Dispatch(client, "end", &HookInput{SessionID: "s1"}, io.Discard)

	equalPaths(t, fs.paths(), []string{"POST /api/compact/auto", "POST /api/sessions/s1/end"})
}

func TestDispatchUnknownEvent(t *testing.T) {
	if err := Dispatch(NewClientURL("http://127.0.0.1:1"), "bogus", &HookInput{}, io.Discard); err == nil {
		t.Error("expected error for unknown event")
	}
}

func TestClientErrorStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"nope"}`, http.StatusConflict)
	}))
	defer ts.Close()

	body, err := NewClientURL(ts.URL).Post("/api/x", []byte(`{}`))
	if err == nil || !strings.Contains(err.Error(), "status 409") {
		t.Errorf("err = %v", err)
	}
	if !strings.Contains(string(body), "nope") {
		t.Errorf("body = %s", body)
	}
}
