// Package oracle wraps the language model that writes explanations and
// suggests related SNPs. Replies are free text and are parsed defensively.
package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
)

// Oracle answers a prompt with unstructured text.
type Oracle interface {
	Send(ctx context.Context, prompt, system string) (string, error)
}

// Embedder turns text into a vector for similarity search.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ErrNoJSON is returned when a reply carries no decodable JSON value.
var ErrNoJSON = errors.New("no JSON value in reply")

// ExtractJSONObject decodes the first well-formed JSON object embedded in
// text into v. Prose before or after the object is ignored.
func ExtractJSONObject(text string, v any) error {
	return extractJSON(text, '{', v)
}

// ExtractJSONArray decodes the first well-formed JSON array embedded in
// text into v.
func ExtractJSONArray(text string, v any) error {
	return extractJSON(text, '[', v)
}

func extractJSON(text string, open byte, v any) error {
	for i := 0; i < len(text); i++ {
		j := strings.IndexByte(text[i:], open)
		if j < 0 {
			break
		}
		i += j
		dec := json.NewDecoder(strings.NewReader(text[i:]))
		if err := dec.Decode(v); err == nil {
			return nil
		}
	}
	return ErrNoJSON
}
