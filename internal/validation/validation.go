// Package validation implements reject-only request-body rules: size
// limits, nesting depth, and script-tag content. It never mutates its
// input — original bytes are always passed on to the Auditor unchanged.
package validation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/edonhq/gateway/internal/apperror"
)

const (
	maxBodyBytes = 10 << 20 // 10 MiB
	maxStringBytes = 100 << 10
	maxArrayLength = 10000
	maxParamsBytes = 5 << 20
	maxNestingDepth = 10
)

var scriptPatterns = []string{"<script", "javascript:"}

// ValidateBody enforces the size, shape, and content rules against a raw
// JSON request body. It returns the parsed value so callers don't have to
// re-unmarshal, or a typed *apperror.HTTPError naming the first offending
// JSONPath.
func ValidateBody(raw []byte) (any, error) {
	if len(raw) > maxBodyBytes {
		return nil, apperror.New(apperror.KindPayloadTooLarge, fmt.Sprintf("request body exceeds %d bytes", maxBodyBytes))
	}

	var parsed any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, apperror.Wrap(apperror.KindValidationFailed, "request body is not valid JSON", err)
	}

	if err := walk(parsed, "$", 1); err != nil {
		return nil, err
	}

	return parsed, nil
}

// ValidateParamsSize enforces the limit on action.params specifically,
// since it may be validated independently of the enclosing request body
// (e.g. when params arrive pre-decoded from a typed request struct).
func ValidateParamsSize(params map[string]any) error {
	blob, err := json.Marshal(params)
	if err != nil {
		return apperror.Wrap(apperror.KindValidationFailed, "action.params could not be serialized", err).WithField("$.action.params")
	}
	if len(blob) > maxParamsBytes {
		return apperror.New(apperror.KindValidationFailed, fmt.Sprintf("action.params exceeds %d bytes", maxParamsBytes)).WithField("$.action.params")
	}
	return nil
}

// walk checks size, depth, and content rules recursively. depth counts
// container levels only — a scalar leaf sits at its parent container's
// depth and never trips maxNestingDepth on its own, so a value nested
// exactly maxNestingDepth objects/arrays deep with a scalar at the
// bottom is accepted; the (maxNestingDepth+1)th container is the first
// to be rejected.
func walk(v any, path string, depth int) error {
	switch val := v.(type) {
	case map[string]any:
		if depth > maxNestingDepth {
			return apperror.New(apperror.KindValidationFailed, fmt.Sprintf("JSON nesting exceeds depth %d", maxNestingDepth)).WithField(path)
		}
		for key, child := range val {
			childPath := path + "." + key
			// "attribute names starting with on" describes a
			// key, the JSON analogue of an HTML attribute name — not
			// ordinary string content, which would make words like
			// "online" or "once" false positives.
			if looksLikeEventAttribute(strings.ToLower(key)) {
				return scriptError(childPath)
			}
			if err := checkScriptPatterns(key, childPath); err != nil {
				return err
			}
			if err := walk(child, childPath, depth+1); err != nil {
				return err
			}
		}
	case []any:
		if depth > maxNestingDepth {
			return apperror.New(apperror.KindValidationFailed, fmt.Sprintf("JSON nesting exceeds depth %d", maxNestingDepth)).WithField(path)
		}
		if len(val) > maxArrayLength {
			return apperror.New(apperror.KindValidationFailed, fmt.Sprintf("array exceeds %d elements", maxArrayLength)).WithField(path)
		}
		for i, item := range val {
			if err := walk(item, fmt.Sprintf("%s[%d]", path, i), depth+1); err != nil {
				return err
			}
		}
	case string:
		if len(val) > maxStringBytes {
			return apperror.New(apperror.KindValidationFailed, fmt.Sprintf("string field exceeds %d bytes", maxStringBytes)).WithField(path)
		}
		if err := checkScriptPatterns(val, path); err != nil {
			return err
		}
	}

	return nil
}

// checkScriptPatterns rejects the literal sequences names:
// "<script" or "javascript:" anywhere in a string value or object key.
func checkScriptPatterns(s, path string) error {
	lower := strings.ToLower(s)
	for _, pattern := range scriptPatterns {
		if strings.Contains(lower, pattern) {
			return scriptError(path)
		}
	}
	return nil
}

func scriptError(path string) error {
	return apperror.New(apperror.KindValidationFailed, fmt.Sprintf("Script tags not allowed at path: %s", path)).WithField(path)
}

// looksLikeEventAttribute reports whether key is shaped like an HTML event
// handler attribute name: "on" followed immediately by a letter, e.g.
// "onload", "onerror", "onclick".
func looksLikeEventAttribute(key string) bool {
	if !strings.HasPrefix(key, "on") || len(key) <= 2 {
		return false
	}
	third := key[2]
	return third >= 'a' && third <= 'z'
}
