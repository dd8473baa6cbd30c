package frond

import (
	"strconv"
	"strings"
)

// condOp enumerates the conditional grammar's comparison forms.
type condOp int

const (
	opTruthy condOp = iota
	opEqLoose
	opEqStrict
	opNotEq
	opGreater
	opGreaterEq
	opLess
	opLessEq
)

// condition is a parsed conditional expression: an optionally negated path,
// compared against a quoted string literal, an integer literal, or plain
// truthiness.
type condition struct {
	negate bool
	path   string
	op     condOp
	strVal string
	numVal float64
}

// parseCondition parses the grammar accepted by {{#if ...}}: a leading !
// negates; == and === compare against a quoted literal (loose/strict), !=
// is inequality; > >= < <= compare numerically against an integer literal;
// anything else is the truthiness of the resolved path.
func parseCondition(expr string) condition {
	c := condition{op: opTruthy}
	expr = strings.TrimSpace(expr)
	if strings.HasPrefix(expr, "!") {
		c.negate = true
		expr = strings.TrimSpace(expr[1:])
	}

	// Longest operators first so == does not shadow === and > does not
	// shadow >=.
	for _, probe := range []struct {
		token string
		op    condOp
	}{
		{"===", opEqStrict},
		{"==", opEqLoose},
		{"!=", opNotEq},
		{">=", opGreaterEq},
		{"<=", opLessEq},
		{">", opGreater},
		{"<", opLess},
	} {
		idx := indexUnquoted(expr, probe.token)
		if idx == -1 {
			continue
		}
		c.path = strings.TrimSpace(expr[:idx])
		c.op = probe.op
		rhs := strings.TrimSpace(expr[idx+len(probe.token):])
		switch probe.op {
		case opEqLoose, opEqStrict, opNotEq:
			lit, ok := unquote(rhs)
			if !ok {
				return condition{path: expr, op: opTruthy, negate: c.negate}
			}
			c.strVal = lit
		default:
			n, err := strconv.Atoi(rhs)
			if err != nil {
				return condition{path: expr, op: opTruthy, negate: c.negate}
			}
			c.numVal = float64(n)
		}
		return c
	}

	c.path = expr
	return c
}

// eval resolves the condition's path in ctx and applies the comparison.
func (c condition) eval(ctx map[string]any) bool {
	v, resolved := lookupPath(ctx, c.path)
	var result bool
	switch c.op {
	case opEqLoose:
		result = resolved && formatValue(v) == c.strVal
	case opEqStrict:
		s, isString := v.(string)
		result = resolved && isString && s == c.strVal
	case opNotEq:
		result = !resolved || formatValue(v) != c.strVal
	case opGreater, opGreaterEq, opLess, opLessEq:
		f, ok := toFloat(v)
		if !resolved || !ok {
			result = false
			break
		}
		switch c.op {
		case opGreater:
			result = f > c.numVal
		case opGreaterEq:
			result = f >= c.numVal
		case opLess:
			result = f < c.numVal
		default:
			result = f <= c.numVal
		}
	default:
		result = resolved && truthy(v)
	}
	if c.negate {
		return !result
	}
	return result
}

// indexUnquoted returns the offset of the first occurrence of token in s
// outside single- or double-quoted substrings, or -1. An operator character
// inside a quoted literal must not split the expression.
func indexUnquoted(s, token string) int {
	var quote byte
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case quote != 0:
			if ch == quote {
				quote = 0
			}
		case ch == '\'' || ch == '"':
			quote = ch
		default:
			if strings.HasPrefix(s[i:], token) {
				return i
			}
		}
	}
	return -1
}

// unquote strips one level of matching single or double quotes.
func unquote(s string) (string, bool) {
	if len(s) < 2 {
		return "", false
	}
	first, last := s[0], s[len(s)-1]
	if (first == '\'' && last == '\'') || (first == '"' && last == '"') {
		return s[1 : len(s)-1], true
	}
	return "", false
}
