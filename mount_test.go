package stencilview

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
)

// newTestHandler builds a handler with synchronous recompute and plain-text
// output so tests can assert on exact strings.
func newTestHandler(opts ...ViewerOption) *Handler {
	newViewer := func() *Viewer {
		all := append([]ViewerOption{WithShowMarkup(false)}, opts...)
		return NewViewer(all...)
	}
	return NewHandler(newViewer, WithDebounce(0))
}

func TestHandler_ServesViewerPage(t *testing.T) {
	srv := httptest.NewServer(newTestHandler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	if !strings.Contains(string(body), "stencilview") {
		t.Error("page body does not contain the app shell")
	}

	var found bool
	for _, c := range resp.Cookies() {
		if c.Name == sessionCookie && c.Value != "" {
			found = true
		}
	}
	if !found {
		t.Error("no session cookie set on first GET")
	}
}

func TestHandler_WebSocketActions(t *testing.T) {
	srv := httptest.NewServer(newTestHandler())
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	read := func() UpdateResponse {
		t.Helper()
		var update UpdateResponse
		if err := conn.ReadJSON(&update); err != nil {
			t.Fatalf("failed to read update: %v", err)
		}
		if update.State == nil {
			t.Fatal("update has no state")
		}
		return update
	}

	send := func(action string, data map[string]any) {
		t.Helper()
		if err := conn.WriteJSON(map[string]any{"action": action, "data": data}); err != nil {
			t.Fatalf("failed to send %s: %v", action, err)
		}
	}

	// Initial push carries the fresh viewer state.
	initial := read()
	if !initial.Meta.Success {
		t.Errorf("initial push not successful: %+v", initial.Meta)
	}

	send("setTemplate", map[string]any{"text": "Hello {{user.name}}"})
	update := read()
	if update.State.TemplateText != "Hello {{user.name}}" {
		t.Errorf("TemplateText = %q", update.State.TemplateText)
	}
	// Context is still empty; the marker stays unresolved.
	if update.State.Output != "Hello {{user.name}}" {
		t.Errorf("Output = %q, want unresolved marker", update.State.Output)
	}

	send("setContext", map[string]any{"text": `{"user":{"name":"Ann"}}`})
	update = read()
	if update.State.Output != "Hello Ann" {
		t.Errorf("Output = %q, want %q", update.State.Output, "Hello Ann")
	}

	send("setMode", map[string]any{"mode": "bogus"})
	update = read()
	if update.Meta.Success {
		t.Error("invalid mode should not report success")
	}
	if update.Meta.Errors["mode"] == "" {
		t.Errorf("Errors = %+v, want a mode error", update.Meta.Errors)
	}

	send("setMode", map[string]any{"mode": "raw"})
	update = read()
	if !update.Meta.Success {
		t.Errorf("setMode raw failed: %+v", update.Meta)
	}
	if update.State.Output != "Hello {{user.name}}" {
		t.Errorf("raw Output = %q, want template text", update.State.Output)
	}
}

func TestHandler_WebSocketManualCompile(t *testing.T) {
	srv := httptest.NewServer(newTestHandler(WithAutoRecompute(false)))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	read := func() UpdateResponse {
		t.Helper()
		var update UpdateResponse
		if err := conn.ReadJSON(&update); err != nil {
			t.Fatalf("failed to read update: %v", err)
		}
		return update
	}

	read() // initial

	if err := conn.WriteJSON(map[string]any{
		"action": "setTemplate", "data": map[string]any{"text": "{{a}}"},
	}); err != nil {
		t.Fatal(err)
	}
	read()

	if err := conn.WriteJSON(map[string]any{
		"action": "setContext", "data": map[string]any{"text": `{"a":"X"}`},
	}); err != nil {
		t.Fatal(err)
	}
	update := read()
	// Auto-recompute is off; edits must not touch the output.
	if update.State.Output != "" {
		t.Errorf("Output = %q, want untouched before compile", update.State.Output)
	}

	if err := conn.WriteJSON(map[string]any{"action": "compile"}); err != nil {
		t.Fatal(err)
	}
	update = read()
	if update.State.Output != "X" {
		t.Errorf("Output = %q after compile, want \"X\"", update.State.Output)
	}
}

func TestHandler_HTTPFallback(t *testing.T) {
	srv := httptest.NewServer(newTestHandler())
	defer srv.Close()

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	client := &http.Client{Jar: jar}

	// First GET establishes the session.
	resp, err := client.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	post := func(action string, data map[string]any) UpdateResponse {
		t.Helper()
		body, err := json.Marshal(map[string]any{"action": action, "data": data})
		if err != nil {
			t.Fatal(err)
		}
		resp, err := client.Post(srv.URL, "application/json", bytes.NewReader(body))
		if err != nil {
			t.Fatalf("POST %s failed: %v", action, err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("POST %s status = %d", action, resp.StatusCode)
		}
		var update UpdateResponse
		if err := json.NewDecoder(resp.Body).Decode(&update); err != nil {
			t.Fatalf("failed to decode update: %v", err)
		}
		return update
	}

	post("setTemplate", map[string]any{"text": "{{greeting}} world"})
	update := post("setContext", map[string]any{"text": `{"greeting":"hello"}`})
	if update.State.Output != "hello world" {
		t.Errorf("Output = %q, want %q", update.State.Output, "hello world")
	}

	update = post("frobnicate", nil)
	if update.Meta.Success {
		t.Error("unknown action should not report success")
	}
	if update.Meta.Errors["_general"] == "" {
		t.Errorf("Errors = %+v, want a general error", update.Meta.Errors)
	}
}

func TestHandler_MethodNotAllowed(t *testing.T) {
	srv := httptest.NewServer(newTestHandler())
	defer srv.Close()

	req, err := http.NewRequest(http.MethodDelete, srv.URL, nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", resp.StatusCode)
	}
}
