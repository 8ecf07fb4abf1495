// Package extract recovers a JSON object embedded in free-form model output.
// Responses from the offers backend arrive as prose that usually, but not
// always, wraps a single JSON object in explanation text or markdown fences.
package extract

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/rotisserie/eris"
)

// ErrNoObject indicates the text contains no JSON object at all.
var ErrNoObject = eris.New("extract: no JSON object found")

// ErrMalformed indicates a candidate object was located but is not valid JSON.
var ErrMalformed = eris.New("extract: malformed JSON")

// IsExtractionError reports whether err is any extraction failure.
func IsExtractionError(err error) bool {
	return errors.Is(err, ErrNoObject) || errors.Is(err, ErrMalformed)
}

// Object extracts the JSON object embedded in text. It takes the substring
// from the first '{' to the last '}' (greedy); if no such pair exists it
// strips markdown code fences and requires the remainder to start with '{'.
// Pure function: no side effects, total on empty input.
func Object(text string) (json.RawMessage, error) {
	candidate := sliceBraces(text)
	if candidate == "" {
		stripped := strings.TrimSpace(stripFences(text))
		if !strings.HasPrefix(stripped, "{") {
			return nil, eris.Wrapf(ErrNoObject, "input length %d", len(text))
		}
		candidate = stripped
	}

	if !json.Valid([]byte(candidate)) {
		return nil, eris.Wrapf(ErrMalformed, "candidate length %d", len(candidate))
	}
	return json.RawMessage(candidate), nil
}

// Decode extracts the JSON object in text and unmarshals it into v.
func Decode(text string, v any) error {
	raw, err := Object(text)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return eris.Wrap(ErrMalformed, err.Error())
	}
	return nil
}

// sliceBraces returns the substring from the first '{' to the last '}',
// or "" when no such pair exists.
func sliceBraces(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}

// stripFences removes a leading ```json or ``` fence and its closing fence.
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
	} else {
		return text
	}
	if idx := strings.LastIndex(text, "```"); idx >= 0 {
		text = text[:idx]
	}
	return text
}
