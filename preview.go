package stencilview

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// renderPreview normalizes compiled output into well-formed markup so an
// unbalanced tag pasted by the user cannot break out of the preview pane.
// The substitution engine itself never touches the markup; this runs only on
// the live-HTML display path.
func renderPreview(compiled string) string {
	body := &html.Node{
		Type:     html.ElementNode,
		Data:     "body",
		DataAtom: atom.Body,
	}

	nodes, err := html.ParseFragment(strings.NewReader(compiled), body)
	if err != nil {
		return compiled
	}

	var sb strings.Builder
	for _, n := range nodes {
		if err := html.Render(&sb, n); err != nil {
			return compiled
		}
	}

	return minifyPreview(sb.String())
}
