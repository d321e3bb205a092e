package governor

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/edonhq/gateway/internal/store"
)

// Fingerprint computes action_fingerprint = sha256(tool|op|canonicalParams|intentID),
// where canonicalParams is params marshaled with every map recursively
// sorted by key, so the same logical params always hash the same way
// regardless of Go map iteration order.
func Fingerprint(action store.Action, intentID string) string {
	canonical := canonicalize(action.Params)
	canonicalJSON, _ := json.Marshal(canonical)

	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%s", action.Tool, action.Op, canonicalJSON, intentID)
	return hex.EncodeToString(h.Sum(nil))
}

// canonicalize returns a value whose nested maps are replaced with
// sortedMap so encoding/json always emits keys in the same order.
func canonicalize(v any) any {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make(sortedMap, 0, len(val))
		for _, k := range keys {
			out = append(out, sortedEntry{key: k, value: canonicalize(val[k])})
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = canonicalize(item)
		}
		return out
	default:
		return val
	}
}

type sortedEntry struct {
	key string
	value any
}

// sortedMap marshals as a JSON object with keys in insertion order, which
// canonicalize has already sorted lexicographically.
type sortedMap []sortedEntry

func (m sortedMap) MarshalJSON() ([]byte, error) {
	buf := []byte{'{'}
	for i, entry := range m {
		if i > 0 {
			buf = append(buf, ',')
		}
		keyJSON, err := json.Marshal(entry.key)
		if err != nil {
			return nil, err
		}
		valJSON, err := json.Marshal(entry.value)
		if err != nil {
			return nil, err
		}
		buf = append(buf, keyJSON...)
		buf = append(buf, ':')
		buf = append(buf, valJSON...)
	}
	buf = append(buf, '}')
	return buf, nil
}
