package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformed is returned when a response does not contain the expected JSON
var ErrMalformed = errors.New("malformed model response")

// ExtractJSON pulls the outermost JSON object or array out of a model reply.
// Markdown code fences and surrounding prose are ignored. Bracketed prose
// before the payload, as in "Here is the [result]: {...}", is skipped.
func ExtractJSON(text string) (string, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")

	var candidates []string
	for _, open := range []byte{'{', '['} {
		if c, ok := enclosed(text, open); ok {
			candidates = append(candidates, c)
		}
	}
	if len(candidates) == 0 {
		if strings.ContainsAny(text, "{[") {
			return "", fmt.Errorf("unterminated JSON: %w", ErrMalformed)
		}
		return "", fmt.Errorf("no JSON found: %w", ErrMalformed)
	}

	// longest valid span wins, so an array of objects is not cut to its first element
	best := ""
	for _, c := range candidates {
		if json.Valid([]byte(c)) && len(c) > len(best) {
			best = c
		}
	}
	if best != "" {
		return best, nil
	}
	// nothing decodes; prefer the object so the caller reports the decode error
	return candidates[0], nil
}

// enclosed returns text from the first open byte to the last matching close byte
func enclosed(text string, open byte) (string, bool) {
	closing := byte('}')
	if open == '[' {
		closing = ']'
	}
	start := strings.IndexByte(text, open)
	end := strings.LastIndexByte(text, closing)
	if start < 0 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}

// GenerateJSON asks g for a reply and decodes the JSON it contains into out
func GenerateJSON(ctx context.Context, g Generator, prompt string, out interface{}) error {
	text, err := g.Generate(ctx, prompt)
	if err != nil {
		return err
	}

	raw, err := ExtractJSON(text)
	if err != nil {
		return err
	}

	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("%v: %w", err, ErrMalformed)
	}
	return nil
}
