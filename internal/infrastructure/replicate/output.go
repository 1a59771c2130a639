package replicate

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrNoOutput is returned when a prediction produced nothing usable.
var ErrNoOutput = errors.New("prediction returned no usable output")

var (
	urlKeys  = []string{"url", "uri", "image", "output"}
	textKeys = []string{"text", "result", "content", "output", "description"}
)

// ImageURL reduces the shapes image models return (a string, a list of
// strings, an object with a url, a list of such objects) to one URL.
func ImageURL(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s = strings.TrimSpace(s); s != "" {
			return s, nil
		}
		return "", ErrNoOutput
	}

	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err == nil {
		for _, item := range list {
			if u, err := ImageURL(item); err == nil {
				return u, nil
			}
		}
		return "", ErrNoOutput
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err == nil {
		for _, key := range urlKeys {
			if v, ok := obj[key]; ok {
				if u, err := ImageURL(v); err == nil {
					return u, nil
				}
			}
		}
	}
	return "", ErrNoOutput
}

// Text reduces OCR output shapes to a single string. Lists are joined with
// spaces; objects are searched for a text-like field.
func Text(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", ErrNoOutput
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s), nil
	}

	// Streaming models return fragments that already carry their spacing.
	var tokens []string
	if err := json.Unmarshal(raw, &tokens); err == nil && isTokenStream(tokens) {
		return strings.TrimSpace(strings.Join(tokens, "")), nil
	}

	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err == nil {
		parts := make([]string, 0, len(list))
		for _, item := range list {
			if t, err := Text(item); err == nil && t != "" {
				parts = append(parts, t)
			}
		}
		return strings.Join(parts, " "), nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err == nil {
		for _, key := range textKeys {
			if v, ok := obj[key]; ok {
				if t, err := Text(v); err == nil {
					return t, nil
				}
			}
		}
		return strings.TrimSpace(string(raw)), nil
	}
	return "", ErrNoOutput
}

func isTokenStream(tokens []string) bool {
	if len(tokens) < 2 {
		return false
	}
	for _, t := range tokens {
		if strings.HasPrefix(t, " ") || strings.HasSuffix(t, " ") {
			return true
		}
	}
	return false
}
