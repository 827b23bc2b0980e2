package stencilview

import (
	"fmt"
	"regexp"
	"strings"
)

// placeholderPattern matches {{ ... }} markers. The inner run excludes '}',
// so unbalanced braces never match and stay literal text.
var placeholderPattern = regexp.MustCompile(`\{\{([^}]*)\}\}`)

// Substitute replaces every {{path}} marker in tmpl with the value found by
// walking context along the dot-separated path. Whitespace around the path is
// insignificant. Markers whose path cannot be resolved are left verbatim,
// delimiters and inner whitespace included.
//
// A path that resolves to an explicit JSON null renders the literal string
// "null"; only a failed lookup preserves the marker.
//
// Substitute never panics outward: any internal failure replaces the whole
// output with a single "Error: ..." string. Lookups degrade gracefully, so
// this path is unreachable for well-formed contexts, but callers rely on the
// behavior staying put.
func Substitute(tmpl string, context any) (out string) {
	defer func() {
		if r := recover(); r != nil {
			out = fmt.Sprintf("Error: %v", r)
		}
	}()

	return placeholderPattern.ReplaceAllStringFunc(tmpl, func(marker string) string {
		expr := strings.TrimSpace(marker[2 : len(marker)-2])
		value, ok := resolvePath(context, strings.Split(expr, "."))
		if !ok {
			return marker
		}
		return stringify(value)
	})
}

// resolvePath walks root one key at a time. The walk descends only while the
// current value is an object with the segment as a key; the first missing or
// unsuitable step aborts. An empty expression splits into a single empty
// segment, which simply fails lookup.
func resolvePath(root any, segments []string) (any, bool) {
	if resolveHook != nil {
		resolveHook(segments)
	}

	current := root
	for _, segment := range segments {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		next, exists := obj[segment]
		if !exists {
			return nil, false
		}
		current = next
	}
	return current, true
}

// resolveHook is a test seam used to exercise the recover path in Substitute,
// which no documented input can reach.
var resolveHook func(segments []string)

// stringify converts a resolved value to its display form. Strings pass
// through untouched; json.Number keeps its literal digits; objects take
// their bracketed representation.
func stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case string:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}
