package frond

import (
	"fmt"
	"strconv"
	"strings"
)

// defaultHelpers returns the helpers every new Engine starts with.
func defaultHelpers() map[string]HelperFunc {
	return map[string]HelperFunc{
		"repeat": repeatHelper,
		"concat": concatHelper,
		"list":   listHelper,
	}
}

// defaultFilters returns the filters every new Engine starts with.
func defaultFilters() map[string]FilterFunc {
	return map[string]FilterFunc{
		"upper":    upperFilter,
		"lower":    lowerFilter,
		"trim":     trimFilter,
		"truncate": truncateFilter,
		"replace":  replaceFilter,
		"length":   lengthFilter,
		"default":  defaultFilter,
		"add":      addFilter,
		"sub":      subFilter,
		"mod":      modFilter,
	}
}

// repeatHelper repeats its first argument n times.
func repeatHelper(args ...any) (any, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("repeat expects 2 arguments, got %d", len(args))
	}
	n, ok := toFloat(args[1])
	if !ok || n < 0 {
		return nil, fmt.Errorf("repeat count %v is not a non-negative number", args[1])
	}
	return strings.Repeat(formatValue(args[0]), int(n)), nil
}

// concatHelper joins its arguments into one string.
func concatHelper(args ...any) (any, error) {
	var sb strings.Builder
	for _, a := range args {
		sb.WriteString(formatValue(a))
	}
	return sb.String(), nil
}

// listHelper joins its arguments with a comma separator.
func listHelper(args ...any) (any, error) {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = formatValue(a)
	}
	return strings.Join(parts, ", "), nil
}

func upperFilter(v any, _ ...string) (any, error) {
	return strings.ToUpper(formatValue(v)), nil
}

func lowerFilter(v any, _ ...string) (any, error) {
	return strings.ToLower(formatValue(v)), nil
}

func trimFilter(v any, _ ...string) (any, error) {
	return strings.TrimSpace(formatValue(v)), nil
}

// truncateFilter cuts a string to at most n bytes (truncate:n).
func truncateFilter(v any, args ...string) (any, error) {
	s := formatValue(v)
	if len(args) == 0 {
		return s, nil
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 0 {
		return nil, fmt.Errorf("truncate length %q is not a non-negative integer", args[0])
	}
	if len(s) <= n {
		return s, nil
	}
	return s[:n], nil
}

// replaceFilter substitutes all occurrences (replace:old:new).
func replaceFilter(v any, args ...string) (any, error) {
	if len(args) < 2 {
		return nil, fmt.Errorf("replace expects 2 arguments, got %d", len(args))
	}
	return strings.ReplaceAll(formatValue(v), args[0], args[1]), nil
}

func lengthFilter(v any, _ ...string) (any, error) {
	if elems, ok := sliceOf(v); ok {
		return len(elems), nil
	}
	return len(formatValue(v)), nil
}

// defaultFilter substitutes a fallback when the value is falsy (default:x).
func defaultFilter(v any, args ...string) (any, error) {
	if truthy(v) {
		return v, nil
	}
	if len(args) == 0 {
		return "", nil
	}
	return args[0], nil
}

func addFilter(v any, args ...string) (any, error) {
	return arithmeticFilter("add", v, args)
}

func subFilter(v any, args ...string) (any, error) {
	return arithmeticFilter("sub", v, args)
}

func modFilter(v any, args ...string) (any, error) {
	return arithmeticFilter("mod", v, args)
}

func arithmeticFilter(op string, v any, args []string) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("%s expects 1 argument, got %d", op, len(args))
	}
	lhs, ok := toFloat(v)
	if !ok {
		return nil, fmt.Errorf("%s value %v is not numeric", op, v)
	}
	rhs, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return nil, fmt.Errorf("%s argument %q is not numeric", op, args[0])
	}
	switch op {
	case "add":
		return lhs + rhs, nil
	case "sub":
		return lhs - rhs, nil
	default:
		if rhs == 0 {
			return 0, nil
		}
		return float64(int64(lhs) % int64(rhs)), nil
	}
}
