package frond

import (
	"fmt"
	"html"
	"reflect"
	"strconv"
	"strings"
)

// lookupPath resolves a dotted path against the render context. A segment
// may carry one bracketed numeric index (items[0]) to index into an
// array-valued field. An unresolved path is reported via ok=false; callers
// render it as an empty string, never an error.
func lookupPath(ctx map[string]any, path string) (any, bool) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, false
	}
	var cur any = ctx
	for _, segment := range strings.Split(path, ".") {
		name := segment
		index := -1
		if open := strings.IndexByte(segment, '['); open != -1 && strings.HasSuffix(segment, "]") {
			idx, err := strconv.Atoi(segment[open+1 : len(segment)-1])
			if err != nil {
				return nil, false
			}
			name = segment[:open]
			index = idx
		}
		if name != "" {
			next, ok := fieldOf(cur, name)
			if !ok {
				return nil, false
			}
			cur = next
		}
		if index >= 0 {
			next, ok := indexOf(cur, index)
			if !ok {
				return nil, false
			}
			cur = next
		}
	}
	return cur, true
}

// fieldOf looks up a single named field on a value: map keys first, then
// exported struct fields via reflection.
func fieldOf(v any, name string) (any, bool) {
	if m, ok := v.(map[string]any); ok {
		val, exists := m[name]
		return val, exists
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, false
		}
		mv := rv.MapIndex(reflect.ValueOf(name))
		if !mv.IsValid() {
			return nil, false
		}
		return mv.Interface(), true
	case reflect.Struct:
		fv := rv.FieldByName(name)
		if !fv.IsValid() || !fv.CanInterface() {
			return nil, false
		}
		return fv.Interface(), true
	default:
		return nil, false
	}
}

// indexOf indexes into a slice or array value.
func indexOf(v any, i int) (any, bool) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	if i < 0 || i >= rv.Len() {
		return nil, false
	}
	return rv.Index(i).Interface(), true
}

// sliceOf normalizes a resolved value into an element slice for loop
// execution. Non-array values yield ok=false and the loop emits nothing.
func sliceOf(v any) ([]any, bool) {
	if elems, ok := v.([]any); ok {
		return elems, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	elems := make([]any, rv.Len())
	for i := range elems {
		elems[i] = rv.Index(i).Interface()
	}
	return elems, true
}

// formatValue renders a resolved value as text: booleans as true/false,
// numbers as their decimal text, nil as an empty string.
func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10)
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 64)
	case reflect.String:
		return rv.String()
	case reflect.Invalid:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}

// escapeValue formats a value and escapes the five HTML-reserved characters
// for safe embedding. The raw-output directive bypasses this.
func escapeValue(v any) string {
	return html.EscapeString(formatValue(v))
}

// truthy reports the truthiness of a resolved value: nil, false, zero
// numbers, empty strings, and empty collections are false.
func truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	case int:
		return val != 0
	case int64:
		return val != 0
	case float64:
		return val != 0
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len() > 0
	case reflect.Invalid:
		return false
	default:
		return !rv.IsZero()
	}
}

// toFloat coerces a value for numeric comparison.
func toFloat(v any) (float64, bool) {
	switch val := v.(type) {
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case string:
		f, err := strconv.ParseFloat(val, 64)
		return f, err == nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	default:
		return 0, false
	}
}
