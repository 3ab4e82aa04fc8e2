// Package extract finds a numeric account balance inside arbitrary JSON
// documents returned by third-party endpoints. Different providers put the
// value under different keys, so resolution tries an ordered list of dotted
// paths first and falls back to a recursive keyword scan.
package extract

import (
	"sort"
	"strconv"
	"strings"
)

// fallbackPaths are common dotted paths tried after the per-endpoint hint
var fallbackPaths = []string{
	"balance",
	"data.balance",
	"user.balance",
	"result.balance",
	"info.balance",
	"sodu",
	"so_du",
	"data.sodu",
	"money",
}

// balanceKeywords mark object keys worth inspecting during the recursive
// scan. A key matches when its lowercased name contains any of these.
var balanceKeywords = []string{
	"bal",
	"sodu",
	"so_du",
	"money",
	"credit",
	"amount",
	"wallet",
	"available",
	"remain",
	"fund",
}

// Extract returns the balance found in doc, which must be a value produced
// by encoding/json (maps, slices, strings, float64, nil). The fieldHint, if
// non-empty, is a dotted path tried before every fallback path. The second
// return value is false when no numeric balance exists anywhere in doc.
//
// Extract is pure: it performs no I/O and never fails with an error —
// absence is a return value.
func Extract(doc any, fieldHint string) (float64, bool) {
	for _, path := range candidatePaths(fieldHint) {
		value, ok := resolvePath(doc, path)
		if !ok || value == nil {
			continue
		}
		if n, ok := coerceNumber(value); ok {
			return n, true
		}
	}

	return scan(doc)
}

// candidatePaths builds the ordered path list: hint first, duplicates skipped
func candidatePaths(fieldHint string) []string {
	paths := make([]string, 0, len(fallbackPaths)+1)
	seen := make(map[string]bool)

	if fieldHint != "" {
		paths = append(paths, fieldHint)
		seen[fieldHint] = true
	}
	for _, p := range fallbackPaths {
		if !seen[p] {
			paths = append(paths, p)
			seen[p] = true
		}
	}

	return paths
}

// resolvePath descends through nested objects one dotted segment at a time.
// Resolution fails if any intermediate value is not an object or a key is
// missing.
func resolvePath(doc any, path string) (any, bool) {
	current := doc
	for _, segment := range strings.Split(path, ".") {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = obj[segment]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// coerceNumber turns a JSON value into a float64. Numbers pass through;
// strings are stripped of everything except digits, commas, periods and
// minus signs, then parsed with commas removed.
func coerceNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case string:
		var b strings.Builder
		for _, r := range v {
			if (r >= '0' && r <= '9') || r == ',' || r == '.' || r == '-' {
				b.WriteRune(r)
			}
		}
		cleaned := strings.ReplaceAll(b.String(), ",", "")
		if cleaned == "" {
			return 0, false
		}
		n, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// scan walks the whole document depth-first. At each object, keys whose
// name contains a balance keyword are tried before descending further, so
// a shallow "balance" key beats a deeper one. Keys are visited in sorted
// order to keep the result deterministic.
func scan(doc any) (float64, bool) {
	switch v := doc.(type) {
	case map[string]any:
		keys := make([]string, 0, len(v))
		for key := range v {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		for _, key := range keys {
			if !keywordKey(key) {
				continue
			}
			if n, ok := coerceNumber(v[key]); ok {
				return n, true
			}
		}
		for _, key := range keys {
			if n, ok := scan(v[key]); ok {
				return n, true
			}
		}
	case []any:
		for _, item := range v {
			if n, ok := scan(item); ok {
				return n, true
			}
		}
	}
	return 0, false
}

func keywordKey(key string) bool {
	lower := strings.ToLower(key)
	for _, kw := range balanceKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
