package stencilview

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/stencilview/stencilview/internal/session"
)

// sessionCookie names the cookie that ties a browser to its viewer state.
const sessionCookie = "stencilview-session"

// UpdateResponse is the wire envelope for viewer state pushes.
type UpdateResponse struct {
	State *Viewer           `json:"state"`
	Meta  *ResponseMetadata `json:"meta,omitempty"`
}

// ResponseMetadata carries the outcome of the action that produced an update.
type ResponseMetadata struct {
	Success bool              `json:"success"`
	Errors  map[string]string `json:"errors,omitempty"`
	Action  string            `json:"action,omitempty"`
}

// HandlerConfig configures the live handler.
type HandlerConfig struct {
	NewViewer    func() *Viewer
	Upgrader     *websocket.Upgrader
	SessionStore SessionStore
	Sessions     *session.Manager
	Debounce     time.Duration
}

// HandlerOption is a functional option for NewHandler.
type HandlerOption func(*HandlerConfig)

// WithDebounce sets the delay before an edit triggers an automatic
// recompute. Zero makes edits recompute synchronously.
func WithDebounce(delay time.Duration) HandlerOption {
	return func(c *HandlerConfig) { c.Debounce = delay }
}

// WithSessionTTL sets how long an idle browser session stays valid.
func WithSessionTTL(ttl time.Duration) HandlerOption {
	return func(c *HandlerConfig) { c.Sessions = session.NewManager(ttl) }
}

// WithSessionStore replaces the in-memory viewer store used by the HTTP
// fallback path.
func WithSessionStore(store SessionStore) HandlerOption {
	return func(c *HandlerConfig) { c.SessionStore = store }
}

// Handler serves the viewer page, the WebSocket action loop and the
// HTTP action fallback from a single endpoint.
type Handler struct {
	config HandlerConfig
}

// NewHandler creates the live handler. newViewer is called once per
// connection or session to produce a fresh, independently owned viewer.
func NewHandler(newViewer func() *Viewer, opts ...HandlerOption) *Handler {
	config := HandlerConfig{
		NewViewer: newViewer,
		Upgrader: &websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		SessionStore: NewMemorySessionStore(),
		Sessions:     session.NewManager(0),
		Debounce:     250 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(&config)
	}
	return &Handler{config: config}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if websocket.IsWebSocketUpgrade(r) {
		h.handleWebSocket(w, r)
		return
	}
	h.handleHTTP(w, r)
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.config.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	log.Printf("Client connected from %s", conn.RemoteAddr())

	// Each WebSocket connection owns its viewer; nothing is shared across
	// connections.
	viewer := h.config.NewViewer()

	debouncer := NewDebouncer(h.config.Debounce)
	defer debouncer.Stop()

	// mu guards the viewer and the connection writes; the debounced
	// recompute fires on a timer goroutine.
	var mu sync.Mutex

	push := func(action string, errs map[string]string) error {
		response := UpdateResponse{
			State: viewer,
			Meta: &ResponseMetadata{
				Success: len(errs) == 0,
				Errors:  errs,
				Action:  action,
			},
		}
		responseBytes, err := json.Marshal(response)
		if err != nil {
			return err
		}
		return writeUpdateWebSocket(conn, responseBytes)
	}

	// Initial state push; NewViewer already recomputed.
	mu.Lock()
	err = push("", nil)
	mu.Unlock()
	if err != nil {
		log.Printf("Failed to send initial state: %v", err)
		return
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		msg, err := parseActionFromWebSocket(data)
		if err != nil {
			log.Printf("Failed to parse message: %v", err)
			continue
		}

		mu.Lock()
		errs := applyAction(viewer, msg)
		if len(errs) == 0 {
			switch {
			case NeedsRecompute(msg.Action):
				viewer.Recompute()
			case IsEditAction(msg.Action) && viewer.AutoRecompute:
				if h.config.Debounce <= 0 {
					viewer.Recompute()
				} else {
					debouncer.Schedule(func() {
						mu.Lock()
						defer mu.Unlock()
						viewer.Recompute()
						if err := push("recompute", nil); err != nil {
							log.Printf("WebSocket write failed: %v", err)
						}
					})
				}
			}
		}
		err = push(msg.Action, errs)
		mu.Unlock()
		if err != nil {
			log.Printf("WebSocket write failed: %v", err)
			break
		}
	}

	log.Printf("Client disconnected")
}

func (h *Handler) handleHTTP(w http.ResponseWriter, r *http.Request) {
	// HEAD is a capability check, headers only.
	if r.Method == http.MethodHead {
		return
	}

	viewer, sessionID, isNew := h.sessionViewer(r)
	if isNew {
		http.SetCookie(w, &http.Cookie{
			Name:     sessionCookie,
			Value:    sessionID,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}

	if r.Method == http.MethodGet {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := pageTemplate.Execute(w, viewer); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// No-WebSocket fallback: one action per request. Debounce does not
	// apply here, the request round trip already spaces edits out.
	msg, err := parseActionFromHTTP(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	errs := applyAction(viewer, msg)
	if len(errs) == 0 &&
		(NeedsRecompute(msg.Action) || (IsEditAction(msg.Action) && viewer.AutoRecompute)) {
		viewer.Recompute()
	}

	h.config.SessionStore.Set(sessionID, viewer)

	response := UpdateResponse{
		State: viewer,
		Meta: &ResponseMetadata{
			Success: len(errs) == 0,
			Errors:  errs,
			Action:  msg.Action,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// sessionViewer resolves the request's viewer, creating a session when the
// cookie is absent, expired or unknown.
func (h *Handler) sessionViewer(r *http.Request) (*Viewer, string, bool) {
	if id := requestSessionID(r); id != "" {
		if _, ok := h.config.Sessions.Get(id); ok {
			if viewer := h.config.SessionStore.Get(id); viewer != nil {
				return viewer, id, false
			}
		}
	}

	sess, err := h.config.Sessions.Create()
	if err != nil {
		// Session ID generation only fails when the OS entropy source is
		// broken; fall back to an unkeyed viewer.
		log.Printf("Failed to create session: %v", err)
		return h.config.NewViewer(), "", false
	}

	viewer := h.config.NewViewer()
	h.config.SessionStore.Set(sess.ID, viewer)
	return viewer, sess.ID, true
}

// requestSessionID extracts the session ID from cookie or header.
func requestSessionID(r *http.Request) string {
	if cookie, err := r.Cookie(sessionCookie); err == nil {
		return cookie.Value
	}
	return r.Header.Get("X-Stencilview-Session")
}

// applyAction runs one action against the viewer and flattens the error into
// per-field messages for the update metadata.
func applyAction(v *Viewer, msg message) map[string]string {
	errs := make(map[string]string)

	ctx := &ActionContext{
		Action: msg.Action,
		Data:   newActionData(msg.Data),
	}

	if err := v.Apply(ctx); err != nil {
		switch e := err.(type) {
		case FieldError:
			errs[e.Field] = e.Message
		case MultiError:
			for _, fieldErr := range e {
				errs[fieldErr.Field] = fieldErr.Message
			}
		default:
			errs["_general"] = err.Error()
		}
	}

	return errs
}
