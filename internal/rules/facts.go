package rules

import "strings"

// Facts is the flat key→value map a single evaluation runs against.
//
// Values may be numbers, booleans, strings, arrays, dates or nested maps.
// A fact map is rebuilt fresh for every evaluation and never persisted.
type Facts map[string]any

// Resolve looks up a fact by name and optionally traverses a dotted path
// into nested map values, e.g. name "history" with path "recentRpes".
//
// The second return value reports whether the fact (and every path
// segment) exists. A missing fact is not an error: rules referencing it
// simply fail to match.
func (f Facts) Resolve(name, path string) (any, bool) {
	value, ok := f[name]
	if !ok {
		return nil, false
	}
	if path == "" {
		return value, true
	}
	for segment := range strings.SplitSeq(path, ".") {
		nested, isMap := value.(map[string]any)
		if !isMap {
			return nil, false
		}
		if value, ok = nested[segment]; !ok {
			return nil, false
		}
	}
	return value, true
}
