package stencilview

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/stencilview/stencilview/internal/snippet"
)

// Mode selects what the output pane shows.
type Mode string

const (
	// ModeRaw displays the template text unmodified.
	ModeRaw Mode = "raw"
	// ModeCompiled displays the template after substitution.
	ModeCompiled Mode = "compiled"
)

// SnippetRef identifies a saved snippet in the viewer state.
type SnippetRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Viewer owns the presentation state for one session: the pasted texts, the
// display toggles and the derived output. All transitions go through Apply;
// Recompute refreshes the derived fields. The substitution engine itself is
// stateless, the Viewer is where the UI state lives.
type Viewer struct {
	TemplateText  string `json:"templateText"`
	ContextText   string `json:"contextText"`
	Mode          Mode   `json:"mode"`
	ShowMarkup    bool   `json:"showMarkup"`
	AutoRecompute bool   `json:"autoRecompute"`
	Fullscreen    bool   `json:"fullscreen"`

	// Derived state, refreshed by Recompute.
	Output       string `json:"output"`
	OutputIsHTML bool   `json:"outputIsHTML"`
	ContextError string `json:"contextError,omitempty"`

	Snippets []SnippetRef `json:"snippets,omitempty"`

	snippets *snippet.Store // nil when persistence is not configured
	validate *validator.Validate
}

// ViewerOption configures a Viewer instance
type ViewerOption func(*Viewer)

// WithMode sets the initial display mode
func WithMode(mode Mode) ViewerOption {
	return func(v *Viewer) { v.Mode = mode }
}

// WithShowMarkup sets whether compiled output renders as live HTML
func WithShowMarkup(show bool) ViewerOption {
	return func(v *Viewer) { v.ShowMarkup = show }
}

// WithAutoRecompute sets whether edits recompute automatically
func WithAutoRecompute(auto bool) ViewerOption {
	return func(v *Viewer) { v.AutoRecompute = auto }
}

// WithTemplateText seeds the template pane
func WithTemplateText(text string) ViewerOption {
	return func(v *Viewer) { v.TemplateText = text }
}

// WithContextText seeds the context pane
func WithContextText(text string) ViewerOption {
	return func(v *Viewer) { v.ContextText = text }
}

// WithSnippetStore enables the saved-snippet actions. A nil store leaves
// them disabled.
func WithSnippetStore(store *snippet.Store) ViewerOption {
	return func(v *Viewer) { v.snippets = store }
}

// NewViewer creates a viewer with compiled mode, live markup and
// auto-recompute on by default.
func NewViewer(opts ...ViewerOption) *Viewer {
	v := &Viewer{
		Mode:          ModeCompiled,
		ShowMarkup:    true,
		AutoRecompute: true,
		validate:      validator.New(),
	}
	for _, opt := range opts {
		opt(v)
	}
	v.refreshSnippets()
	v.Recompute()
	return v
}

type saveSnippetInput struct {
	Name string `json:"name" validate:"required,min=1,max=64"`
}

type snippetIDInput struct {
	ID int64 `json:"id" validate:"required,gt=0"`
}

// Apply executes one action against the viewer state. Validation failures
// come back as FieldError/MultiError so the transport can surface them per
// field; anything else is a protocol error.
func (v *Viewer) Apply(ctx *ActionContext) error {
	switch ctx.Action {
	case "setTemplate":
		v.TemplateText = ctx.GetString("text")

	case "setContext":
		v.ContextText = ctx.GetString("text")

	case "setMode":
		mode := Mode(ctx.GetString("mode"))
		if mode != ModeRaw && mode != ModeCompiled {
			return FieldError{Field: "mode", Message: fmt.Sprintf("unknown mode %q", mode)}
		}
		v.Mode = mode

	case "toggleMarkup":
		v.ShowMarkup = !v.ShowMarkup

	case "toggleAuto":
		v.AutoRecompute = !v.AutoRecompute

	case "compile":
		// Recompute happens after Apply; nothing to change here.

	case "openFullscreen":
		v.Fullscreen = true

	case "closeFullscreen":
		v.Fullscreen = false

	case "saveSnippet":
		if v.snippets == nil {
			return FieldError{Field: "snippets", Message: "snippet storage is not configured"}
		}
		var in saveSnippetInput
		if err := ctx.BindAndValidate(&in, v.validate); err != nil {
			return err
		}
		if _, err := v.snippets.Save(in.Name, v.TemplateText, v.ContextText); err != nil {
			return fmt.Errorf("failed to save snippet: %w", err)
		}
		v.refreshSnippets()

	case "loadSnippet":
		if v.snippets == nil {
			return FieldError{Field: "snippets", Message: "snippet storage is not configured"}
		}
		var in snippetIDInput
		if err := ctx.BindAndValidate(&in, v.validate); err != nil {
			return err
		}
		snip, err := v.snippets.Get(in.ID)
		if err != nil {
			if errors.Is(err, snippet.ErrNotFound) {
				return FieldError{Field: "id", Message: fmt.Sprintf("snippet %d not found", in.ID)}
			}
			return fmt.Errorf("failed to load snippet: %w", err)
		}
		v.TemplateText = snip.Template
		v.ContextText = snip.Context

	case "deleteSnippet":
		if v.snippets == nil {
			return FieldError{Field: "snippets", Message: "snippet storage is not configured"}
		}
		var in snippetIDInput
		if err := ctx.BindAndValidate(&in, v.validate); err != nil {
			return err
		}
		if err := v.snippets.Delete(in.ID); err != nil {
			return fmt.Errorf("failed to delete snippet: %w", err)
		}
		v.refreshSnippets()

	default:
		return fmt.Errorf("unknown action %q", ctx.Action)
	}

	return nil
}

// Recompute refreshes the derived output from the current texts and toggles.
//
// Raw mode shows the template exactly as typed regardless of context
// validity. Compiled mode parses the context first; a parse failure surfaces
// on ContextError and falls back to the raw template, the engine is never
// invoked with a broken context.
func (v *Viewer) Recompute() {
	v.ContextError = ""
	v.OutputIsHTML = false

	if v.Mode == ModeRaw {
		v.Output = v.TemplateText
		return
	}

	context, err := ParseContext(v.ContextText)
	if err != nil {
		v.ContextError = err.Error()
		v.Output = v.TemplateText
		return
	}

	compiled := Substitute(v.TemplateText, context)
	if v.ShowMarkup {
		v.Output = renderPreview(compiled)
		v.OutputIsHTML = true
		return
	}
	v.Output = compiled
}

// NeedsRecompute reports whether the action changes what the output pane
// shows. Edits only count when auto-recompute is on; they are debounced by
// the transport rather than recomputed inline.
func NeedsRecompute(action string) bool {
	switch action {
	case "compile", "setMode", "toggleMarkup", "loadSnippet":
		return true
	}
	return false
}

// IsEditAction reports whether the action is a text edit subject to
// debounced auto-recompute.
func IsEditAction(action string) bool {
	return action == "setTemplate" || action == "setContext"
}

func (v *Viewer) refreshSnippets() {
	if v.snippets == nil {
		return
	}
	snips, err := v.snippets.List()
	if err != nil {
		// Listing failures leave the previous refs in place; the save or
		// delete that triggered the refresh already succeeded.
		return
	}
	refs := make([]SnippetRef, 0, len(snips))
	for _, s := range snips {
		refs = append(refs, SnippetRef{ID: s.ID, Name: s.Name})
	}
	v.Snippets = refs
}
