package frond

import (
	"strconv"
	"strings"
	"sync"
)

// HelperFunc is a registered template helper. Arguments arrive already
// coerced: quoted literals as strings, numeric literals as float64, and
// everything else resolved as a path against the render context.
type HelperFunc func(args ...any) (any, error)

// FilterFunc transforms a resolved value in a filter pipeline. args carries
// the colon-separated arguments of an invocation like truncate:20.
type FilterFunc func(value any, args ...string) (any, error)

// registry holds the helper, filter, partial, and default-data tables.
// Registration is a plain table insert; the last write wins.
type registry struct {
	mu       sync.RWMutex
	helpers  map[string]HelperFunc
	filters  map[string]FilterFunc
	partials map[string]string
	defaults map[string]map[string]any
}

func newRegistry() *registry {
	return &registry{
		helpers:  make(map[string]HelperFunc),
		filters:  make(map[string]FilterFunc),
		partials: make(map[string]string),
		defaults: make(map[string]map[string]any),
	}
}

func (r *registry) setHelper(name string, fn HelperFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.helpers[name] = fn
}

func (r *registry) helper(name string) (HelperFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.helpers[name]
	return fn, ok
}

func (r *registry) setFilter(name string, fn FilterFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.filters[name] = fn
}

func (r *registry) filter(name string) (FilterFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.filters[name]
	return fn, ok
}

func (r *registry) setPartial(name, body string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.partials[name] = body
}

func (r *registry) partial(name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	body, ok := r.partials[name]
	return body, ok
}

func (r *registry) setDefaults(name string, data map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := make(map[string]any, len(data))
	for k, v := range data {
		copied[k] = v
	}
	r.defaults[name] = copied
}

func (r *registry) defaultsFor(name string) map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaults[name]
}

// argKind tags a tokenized helper argument.
type argKind int

const (
	argString argKind = iota
	argNumber
	argPath
)

// argValue is a helper argument produced by the tokenizer: a quoted string
// literal, a numeric literal, or a path reference resolved at render time.
type argValue struct {
	kind argKind
	str  string
	num  float64
	path string
}

// parseArg coerces one token in order: quoted-string literal, numeric
// literal, then path lookup.
func parseArg(token string) argValue {
	if lit, ok := unquote(token); ok {
		return argValue{kind: argString, str: lit}
	}
	if n, err := strconv.ParseFloat(token, 64); err == nil {
		return argValue{kind: argNumber, num: n}
	}
	return argValue{kind: argPath, path: token}
}

// resolve produces the runtime value of an argument against ctx.
func (a argValue) resolve(ctx map[string]any) any {
	switch a.kind {
	case argString:
		return a.str
	case argNumber:
		return a.num
	default:
		v, _ := lookupPath(ctx, a.path)
		return v
	}
}

// tokenizeArgs splits a helper invocation on whitespace while respecting
// single- and double-quoted substrings, so a quoted argument may contain
// spaces. Quotes remain on the tokens for parseArg to classify.
func tokenizeArgs(s string) []string {
	var tokens []string
	var cur strings.Builder
	var quote byte
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case quote != 0:
			cur.WriteByte(ch)
			if ch == quote {
				quote = 0
			}
		case ch == '\'' || ch == '"':
			quote = ch
			cur.WriteByte(ch)
		case ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r':
			if cur.Len() > 0 {
				tokens = append(tokens, cur.String())
				cur.Reset()
			}
		default:
			cur.WriteByte(ch)
		}
	}
	if cur.Len() > 0 {
		tokens = append(tokens, cur.String())
	}
	return tokens
}

// containsUnquotedSpace reports whether s has whitespace outside quoted
// substrings. This is what classifies an expression as a helper invocation
// rather than a variable reference.
func containsUnquotedSpace(s string) bool {
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
		case ch == ' ' || ch == '\t':
			return true
		}
	}
	return false
}

// containsUnquotedPipe reports whether s has a filter pipe outside quoted
// substrings.
func containsUnquotedPipe(s string) bool {
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
		case ch == '|':
			return true
		}
	}
	return false
}
