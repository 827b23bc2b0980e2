package stencilview

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ContextParseError reports that pasted context text is not valid JSON.
type ContextParseError struct {
	Offset int64 // byte offset where decoding stopped
	Err    error
}

func (e *ContextParseError) Error() string {
	return fmt.Sprintf("invalid context at offset %d: %v", e.Offset, e.Err)
}

func (e *ContextParseError) Unwrap() error { return e.Err }

// ParseContext decodes pasted context text into the tree the substitution
// engine walks. Numbers keep their literal form so "1.50" does not come back
// as "1.5e+00". Empty or whitespace-only input parses as an empty object.
func ParseContext(text string) (any, error) {
	if strings.TrimSpace(text) == "" {
		return map[string]any{}, nil
	}

	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()

	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, &ContextParseError{Offset: dec.InputOffset(), Err: err}
	}

	// A second value after the first one is still a paste error.
	if dec.More() {
		return nil, &ContextParseError{
			Offset: dec.InputOffset(),
			Err:    fmt.Errorf("unexpected trailing data"),
		}
	}

	return value, nil
}
