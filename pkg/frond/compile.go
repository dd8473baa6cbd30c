package frond

import (
	"fmt"
	"strings"
)

// Directive markers recognized by the compiler. Raw output is
// triple-delimited; everything else lives inside double delimiters.
const (
	exprOpen     = "{{"
	exprClose    = "}}"
	rawOpen      = "{{{"
	rawClose     = "}}}"
	eachOpen     = "{{#each "
	eachClose    = "{{/each}}"
	ifOpen       = "{{#if "
	ifClose      = "{{/if}}"
	elseTag      = "{{else}}"
	partialOpen  = "{{>"
	loopIndexKey = "@index"
	loopFirstKey = "@first"
	loopLastKey  = "@last"
	loopThisKey  = "this"
)

// Compiled is a reusable render program for one resolved template body.
// Compilation is pure given its input text; recompilation only happens on a
// cache miss.
type Compiled struct {
	nodes []node
}

func (c *Compiled) render(e *Engine, ctx map[string]any, depth int) string {
	var sb strings.Builder
	renderNodes(c.nodes, e, ctx, &sb, depth)
	return sb.String()
}

type node interface {
	render(e *Engine, ctx map[string]any, sb *strings.Builder, depth int)
}

func renderNodes(nodes []node, e *Engine, ctx map[string]any, sb *strings.Builder, depth int) {
	for _, n := range nodes {
		n.render(e, ctx, sb, depth)
	}
}

// compile turns a resolved template body into a node tree. Nested regions
// (loop bodies, conditional branches, surviving block content) are compiled
// recursively with the same pipeline, so a loop body can itself contain
// conditionals and partials. Directive kinds are recognized in a fixed
// order: loop, partial, conditional, block, raw output, then
// variable/helper/filter expressions.
func compile(body string) *Compiled {
	return &Compiled{nodes: compileNodes(body)}
}

func compileNodes(body string) []node {
	var nodes []node
	pos := 0
	for {
		open := strings.Index(body[pos:], exprOpen)
		if open == -1 {
			if pos < len(body) {
				nodes = append(nodes, textNode(body[pos:]))
			}
			return nodes
		}
		open += pos
		if open > pos {
			nodes = append(nodes, textNode(body[pos:open]))
		}

		rest := body[open:]
		switch {
		case strings.HasPrefix(rest, eachOpen):
			n, next, ok := compileEach(body, open)
			if !ok {
				nodes = append(nodes, textNode(body[open:]))
				return nodes
			}
			nodes = append(nodes, n)
			pos = next

		case strings.HasPrefix(rest, partialOpen):
			n, next, ok := compilePartial(body, open)
			if !ok {
				nodes = append(nodes, textNode(body[open:]))
				return nodes
			}
			nodes = append(nodes, n)
			pos = next

		case strings.HasPrefix(rest, ifOpen):
			n, next, ok := compileIf(body, open)
			if !ok {
				nodes = append(nodes, textNode(body[open:]))
				return nodes
			}
			nodes = append(nodes, n)
			pos = next

		case strings.HasPrefix(rest, blockOpen):
			// After inheritance resolution block markers are informational;
			// strip them to their inner content.
			_, contentStart, ok := nextBlockOpen(body, open)
			if !ok {
				nodes = append(nodes, textNode(body[open:]))
				return nodes
			}
			end, found := matchBlockClose(body, contentStart)
			if !found {
				pos = contentStart
				continue
			}
			nodes = append(nodes, compileNodes(body[contentStart:end])...)
			pos = end + len(blockClose)

		case strings.HasPrefix(rest, blockClose):
			pos = open + len(blockClose)

		case strings.HasPrefix(rest, extendOpen):
			end := strings.Index(body[open:], exprClose)
			if end == -1 {
				nodes = append(nodes, textNode(body[open:]))
				return nodes
			}
			pos = open + end + len(exprClose)

		case strings.HasPrefix(rest, rawOpen):
			end := strings.Index(body[open+len(rawOpen):], rawClose)
			if end == -1 {
				nodes = append(nodes, textNode(body[open:]))
				return nodes
			}
			path := strings.TrimSpace(body[open+len(rawOpen) : open+len(rawOpen)+end])
			nodes = append(nodes, rawNode{path: path})
			pos = open + len(rawOpen) + end + len(rawClose)

		case strings.HasPrefix(rest, elseTag) ||
			strings.HasPrefix(rest, eachClose) ||
			strings.HasPrefix(rest, ifClose):
			// Stray close tags outside their region; drop them.
			end := strings.Index(body[open:], exprClose)
			pos = open + end + len(exprClose)

		default:
			end := strings.Index(body[open+len(exprOpen):], exprClose)
			if end == -1 {
				nodes = append(nodes, textNode(body[open:]))
				return nodes
			}
			expr := strings.TrimSpace(body[open+len(exprOpen) : open+len(exprOpen)+end])
			nodes = append(nodes, compileExpr(expr))
			pos = open + len(exprOpen) + end + len(exprClose)
		}
	}
}

// compileEach parses an {{#each path}}...{{/each}} region starting at open
// and returns the node plus the scan position after the region.
func compileEach(body string, open int) (node, int, bool) {
	headEnd := strings.Index(body[open:], exprClose)
	if headEnd == -1 {
		return nil, 0, false
	}
	path := strings.TrimSpace(body[open+len(eachOpen) : open+headEnd])
	contentStart := open + headEnd + len(exprClose)
	end, ok := matchDirectiveClose(body, contentStart, eachOpen, eachClose)
	if !ok {
		return nil, 0, false
	}
	return eachNode{
		path: path,
		body: compileNodes(body[contentStart:end]),
	}, end + len(eachClose), true
}

// compilePartial parses a {{> name}} directive.
func compilePartial(body string, open int) (node, int, bool) {
	end := strings.Index(body[open:], exprClose)
	if end == -1 {
		return nil, 0, false
	}
	name := strings.TrimSpace(body[open+len(partialOpen) : open+end])
	return partialNode{name: name}, open + end + len(exprClose), true
}

// compileIf parses an {{#if cond}}...{{else}}...{{/if}} region. The else
// tag belongs to the outermost level; nested conditionals keep theirs.
func compileIf(body string, open int) (node, int, bool) {
	headEnd := strings.Index(body[open:], exprClose)
	if headEnd == -1 {
		return nil, 0, false
	}
	expr := body[open+len(ifOpen) : open+headEnd]
	contentStart := open + headEnd + len(exprClose)
	end, ok := matchDirectiveClose(body, contentStart, ifOpen, ifClose)
	if !ok {
		return nil, 0, false
	}
	region := body[contentStart:end]
	thenPart, elsePart, hasElse := splitElse(region)
	n := ifNode{
		cond: parseCondition(expr),
		then: compileNodes(thenPart),
	}
	if hasElse {
		n.els = compileNodes(elsePart)
	}
	return n, end + len(ifClose), true
}

// matchDirectiveClose finds the close tag matching a directive region that
// starts at from, counting nested opens of the same kind so same-name
// nesting pairs correctly.
func matchDirectiveClose(body string, from int, open, close string) (int, bool) {
	depth := 0
	pos := from
	for {
		nextOpen := strings.Index(body[pos:], open)
		nextClose := strings.Index(body[pos:], close)
		if nextClose == -1 {
			return 0, false
		}
		if nextOpen != -1 && nextOpen < nextClose {
			depth++
			pos += nextOpen + len(open)
			continue
		}
		if depth == 0 {
			return pos + nextClose, true
		}
		depth--
		pos += nextClose + len(close)
	}
}

// splitElse splits an if region on the {{else}} tag at nesting level zero.
func splitElse(region string) (string, string, bool) {
	depth := 0
	pos := 0
	for {
		idxIf := strings.Index(region[pos:], ifOpen)
		idxEnd := strings.Index(region[pos:], ifClose)
		idxElse := strings.Index(region[pos:], elseTag)
		if idxElse == -1 {
			return region, "", false
		}
		// Work out which tag comes first from pos.
		first := idxElse
		kind := 2
		if idxIf != -1 && idxIf < first {
			first = idxIf
			kind = 0
		}
		if idxEnd != -1 && idxEnd < first {
			first = idxEnd
			kind = 1
		}
		switch kind {
		case 0:
			depth++
			pos += first + len(ifOpen)
		case 1:
			depth--
			pos += first + len(ifClose)
		default:
			if depth == 0 {
				at := pos + first
				return region[:at], region[at+len(elseTag):], true
			}
			pos += first + len(elseTag)
		}
	}
}

// compileExpr classifies a double-delimited expression: a helper invocation
// when it contains unquoted whitespace and no filter pipe, otherwise a
// variable reference with an optional filter pipeline.
func compileExpr(expr string) node {
	if containsUnquotedSpace(expr) && !containsUnquotedPipe(expr) {
		tokens := tokenizeArgs(expr)
		args := make([]argValue, 0, len(tokens)-1)
		for _, tok := range tokens[1:] {
			args = append(args, parseArg(tok))
		}
		return helperNode{name: tokens[0], args: args}
	}
	parts := splitPipes(expr)
	n := varNode{path: strings.TrimSpace(parts[0])}
	for _, p := range parts[1:] {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		call := filterCall{name: p}
		if colon := strings.IndexByte(p, ':'); colon != -1 {
			call.name = p[:colon]
			call.args = strings.Split(p[colon+1:], ":")
		}
		n.filters = append(n.filters, call)
	}
	return n
}

// splitPipes splits a variable expression on unquoted pipe characters.
func splitPipes(s string) []string {
	var parts []string
	var quote byte
	start := 0
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
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	return append(parts, s[start:])
}

// textNode emits literal template text.
type textNode string

func (n textNode) render(_ *Engine, _ map[string]any, sb *strings.Builder, _ int) {
	sb.WriteString(string(n))
}

// eachNode renders its body once per element of the resolved slice. Each
// iteration context carries the element's record fields (for map elements),
// a positional alias for scalar elements, and @index/@first/@last.
type eachNode struct {
	path string
	body []node
}

func (n eachNode) render(e *Engine, ctx map[string]any, sb *strings.Builder, depth int) {
	v, ok := lookupPath(ctx, n.path)
	if !ok {
		return
	}
	elems, ok := sliceOf(v)
	if !ok {
		return
	}
	for i, elem := range elems {
		child := cloneCtx(ctx)
		if fields, isMap := elem.(map[string]any); isMap {
			for k, fv := range fields {
				child[k] = fv
			}
		}
		child[loopThisKey] = elem
		child[loopIndexKey] = i
		child[loopFirstKey] = i == 0
		child[loopLastKey] = i == len(elems)-1
		renderNodes(n.body, e, child, sb, depth)
	}
}

// partialNode renders a registered partial (or a plain template of the same
// name) with the partial's default data merged under the current context.
type partialNode struct {
	name string
}

func (n partialNode) render(e *Engine, ctx map[string]any, sb *strings.Builder, depth int) {
	if depth >= e.config.MaxPartialDepth {
		e.logger.Warn("Partial include depth cap reached", "partial", n.name)
		fmt.Fprintf(sb, "<!-- partial %q skipped: include depth exceeded -->", n.name)
		return
	}
	body, ok := e.registry.partial(n.name)
	if !ok {
		body, ok = e.store.Get(n.name)
	}
	if !ok {
		e.logger.Warn("Partial not found", "partial", n.name)
		fmt.Fprintf(sb, "<!-- partial %q not found -->", n.name)
		return
	}
	merged := cloneCtx(e.registry.defaultsFor(n.name))
	for k, v := range ctx {
		merged[k] = v
	}
	compiled := e.compiledPartial(n.name, body)
	sb.WriteString(compiled.render(e, merged, depth+1))
}

// ifNode renders exactly one branch based on its condition.
type ifNode struct {
	cond condition
	then []node
	els  []node
}

func (n ifNode) render(e *Engine, ctx map[string]any, sb *strings.Builder, depth int) {
	if n.cond.eval(ctx) {
		renderNodes(n.then, e, ctx, sb, depth)
		return
	}
	renderNodes(n.els, e, ctx, sb, depth)
}

// rawNode emits a resolved path without escaping. The template author is
// responsible for the safety of raw output.
type rawNode struct {
	path string
}

func (n rawNode) render(_ *Engine, ctx map[string]any, sb *strings.Builder, _ int) {
	v, _ := lookupPath(ctx, n.path)
	sb.WriteString(formatValue(v))
}

// filterCall is one stage of a variable's filter pipeline.
type filterCall struct {
	name string
	args []string
}

// varNode resolves a path, pipes it through its filters, and emits the
// escaped result.
type varNode struct {
	path    string
	filters []filterCall
}

func (n varNode) render(e *Engine, ctx map[string]any, sb *strings.Builder, _ int) {
	v, _ := lookupPath(ctx, n.path)
	for _, call := range n.filters {
		fn, ok := e.registry.filter(call.name)
		if !ok {
			e.logger.Warn("Filter not found", "filter", call.name)
			fmt.Fprintf(sb, "<!-- filter %q not found -->", call.name)
			return
		}
		out, ok := e.invokeFilter(call.name, fn, v, call.args)
		if !ok {
			fmt.Fprintf(sb, "<!-- filter %q failed -->", call.name)
			return
		}
		v = out
	}
	sb.WriteString(escapeValue(v))
}

// helperNode invokes a registered helper and emits the escaped result.
type helperNode struct {
	name string
	args []argValue
}

func (n helperNode) render(e *Engine, ctx map[string]any, sb *strings.Builder, _ int) {
	fn, ok := e.registry.helper(n.name)
	if !ok {
		e.logger.Warn("Helper not found", "helper", n.name)
		fmt.Fprintf(sb, "<!-- helper %q not found -->", n.name)
		return
	}
	args := make([]any, len(n.args))
	for i, a := range n.args {
		args[i] = a.resolve(ctx)
	}
	out, ok := e.invokeHelper(n.name, fn, args)
	if !ok {
		fmt.Fprintf(sb, "<!-- helper %q failed -->", n.name)
		return
	}
	sb.WriteString(escapeValue(out))
}

func cloneCtx(ctx map[string]any) map[string]any {
	child := make(map[string]any, len(ctx)+4)
	for k, v := range ctx {
		child[k] = v
	}
	return child
}
