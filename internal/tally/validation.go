package tally

import (
	"sort"
	"strings"
)

// ValidationError lists every field that failed validation
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[field] = msg
}

// HasErrors reports whether any field failed
func (e *ValidationError) HasErrors() bool {
	return len(e.Fields) > 0
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "invalid poll: " + strings.Join(parts, "; ")
}

// Details converts the field errors into AppError details
func (e *ValidationError) Details() map[string]interface{} {
	out := make(map[string]interface{}, len(e.Fields))
	for k, v := range e.Fields {
		out[k] = v
	}
	return out
}
