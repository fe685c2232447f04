package normalize

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/codecheckerai/analysis-console/internal/models"
)

// reader pulls typed fields out of a decoded JSON payload for one result
// kind. Every accessor is total: unexpected shapes become defaults and are
// reported through fault.
type reader struct {
	kind  models.Kind
	fault func(kind models.Kind, field, detail string)
}

// root treats anything that is not a JSON object as an empty object.
func (r reader) root(raw any) map[string]any {
	if raw == nil {
		return map[string]any{}
	}
	if m, ok := raw.(map[string]any); ok {
		return m
	}
	r.fault(r.kind, "$", fmt.Sprintf("payload is %T, not an object", raw))
	return map[string]any{}
}

func (r reader) object(m map[string]any, key string) map[string]any {
	v, ok := m[key]
	if !ok || v == nil {
		return map[string]any{}
	}
	if obj, ok := v.(map[string]any); ok {
		return obj
	}
	r.fault(r.kind, key, fmt.Sprintf("expected object, got %T", v))
	return map[string]any{}
}

// str returns the string at key, or def when the key is absent or null.
// Scalars of other types are rendered as text.
func (r reader) str(m map[string]any, key, def string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return def
	}
	if s, ok := v.(string); ok {
		return s
	}
	r.fault(r.kind, key, fmt.Sprintf("expected string, got %T", v))
	return stringify(v)
}

// strings returns the list at key as text. When lenient is set, non-string
// entries are JSON-encoded without being reported.
func (r reader) strings(m map[string]any, key string, lenient bool) []string {
	items, ok := r.list(m, key)
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case nil:
			continue
		case string:
			out = append(out, v)
		default:
			if !lenient {
				r.fault(r.kind, key, fmt.Sprintf("list entry is %T", v))
			}
			out = append(out, stringify(v))
		}
	}
	return out
}

// ints keeps integral, non-negative entries of the list at key.
func (r reader) ints(m map[string]any, key string) []int {
	items, ok := r.list(m, key)
	if !ok {
		return []int{}
	}
	out := make([]int, 0, len(items))
	for _, item := range items {
		f, ok := number(item)
		if !ok || !wholeNumber(f) {
			r.fault(r.kind, key, fmt.Sprintf("dropped index %v", item))
			continue
		}
		out = append(out, int(f))
	}
	return out
}

// list returns the entries at key. ok is false when the key is absent or the
// value is not a list.
func (r reader) list(m map[string]any, key string) ([]any, bool) {
	v, present := m[key]
	if !present || v == nil {
		return nil, false
	}
	switch items := v.(type) {
	case []any:
		return items, true
	case []string:
		out := make([]any, len(items))
		for i, s := range items {
			out[i] = s
		}
		return out, true
	}
	r.fault(r.kind, key, fmt.Sprintf("expected list, got %T", v))
	return nil, false
}

// count returns CountAbsent unless key holds a non-negative integer.
func (r reader) count(m map[string]any, key string) models.Count {
	v, ok := m[key]
	if !ok || v == nil {
		return models.CountAbsent
	}
	f, ok := number(v)
	if !ok || !wholeNumber(f) {
		r.fault(r.kind, key, fmt.Sprintf("unusable count %v", v))
		return models.CountAbsent
	}
	return models.Count(int(f))
}

// wholeNumber reports whether f converts to a non-negative int without loss.
func wholeNumber(f float64) bool {
	return f >= 0 && f <= math.MaxInt32 && f == math.Trunc(f)
}

// similarity clamps a score into [0,1]. Out-of-range and non-numeric scores
// are faults.
func (r reader) similarity(v any) float64 {
	f, ok := number(v)
	switch {
	case !ok || math.IsNaN(f):
		r.fault(r.kind, "similarity", fmt.Sprintf("non-numeric similarity %v", v))
		return 0
	case f < 0:
		r.fault(r.kind, "similarity", fmt.Sprintf("clamped %v to 0", f))
		return 0
	case f > 1:
		r.fault(r.kind, "similarity", fmt.Sprintf("clamped %v to 1", f))
		return 1
	}
	return f
}

// image validates a base64 PNG, tolerating a data URI prefix.
func (r reader) image(m map[string]any, key string) models.Image {
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		r.fault(r.kind, key, fmt.Sprintf("expected base64 string, got %T", v))
		return ""
	}
	s = strings.TrimSpace(s)
	if i := strings.Index(s, ";base64,"); strings.HasPrefix(s, "data:") && i >= 0 {
		s = s[i+len(";base64,"):]
	}
	if s == "" {
		return ""
	}
	if _, err := base64.StdEncoding.DecodeString(s); err != nil {
		r.fault(r.kind, key, "invalid base64 image")
		return ""
	}
	return models.Image(s)
}

// first returns the value of the first present key.
func first(m map[string]any, keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

func stringify(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(s)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}
