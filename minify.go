package stencilview

import (
	"strings"
	"sync"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/html"
)

var (
	minifier *minify.M
	once     sync.Once
)

// getMinifier returns a configured HTML minifier (singleton)
func getMinifier() *minify.M {
	once.Do(func() {
		minifier = minify.New()
		minifier.AddFunc("text/html", html.Minify)
	})
	return minifier
}

// minifyPreview compacts preview markup before it goes over the wire.
// Text-only content is just whitespace-normalized.
func minifyPreview(content string) string {
	if strings.Contains(content, "<") {
		minified, err := getMinifier().String("text/html", content)
		if err != nil {
			// If minification fails, fall back to original content
			return content
		}
		return minified
	}

	return normalizeWhitespace(content)
}

// normalizeWhitespace removes leading/trailing whitespace and collapses
// internal runs of whitespace to single spaces.
func normalizeWhitespace(text string) string {
	words := strings.Fields(strings.TrimSpace(text))
	return strings.Join(words, " ")
}
