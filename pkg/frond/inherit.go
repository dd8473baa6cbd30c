package frond

import (
	"fmt"
	"log/slog"
	"strings"
)

// chainLink is one template in an inheritance chain.
type chainLink struct {
	name string
	body string
}

// resolver walks extend chains and folds block overrides into a single
// effective template body for the compiler.
type resolver struct {
	store  *SourceStore
	logger *slog.Logger
	// maxPasses caps block substitution so directive cycles introduced by
	// malformed templates cannot spin forever.
	maxPasses int
}

// resolve returns the fully resolved body for a template: the base body of
// its inheritance chain with every block region replaced by the most
// derived override, and all extend/block markers consumed.
//
// Failure semantics: a missing template is an error with an empty result;
// a cycle or missing ancestor degrades to the leaf body with directives
// stripped.
func (r *resolver) resolve(name string) (string, error) {
	leafBody, ok := r.store.Get(name)
	if !ok {
		return "", fmt.Errorf("template %q not found", name)
	}

	chain, ok := r.walkChain(name, leafBody)
	if !ok {
		// Cycle or missing ancestor; already logged by walkChain.
		return r.stripDirectives(leafBody), nil
	}
	if len(chain) == 1 {
		return r.stripDirectives(leafBody), nil
	}

	// Fold blocks base -> derived so a more derived template's block of the
	// same name replaces its ancestor's. This is the override contract.
	merged := make(map[string]string)
	for i := len(chain) - 1; i >= 0; i-- {
		link := chain[i]
		blocks, malformed := parseBlocks(link.body)
		for _, bad := range malformed {
			r.logger.Error("Unterminated block dropped", "template", link.name, "block", bad)
		}
		// Within one template the shallowest occurrence of a name is its
		// definition; a same-name block nested inside that content is part
		// of the content. Across templates every link overwrites whole, so
		// a derived block always replaces its ancestor's.
		linkBlocks := make(map[string]block, len(blocks))
		for _, b := range blocks {
			if prev, exists := linkBlocks[b.name]; exists && prev.depth <= b.depth {
				continue
			}
			linkBlocks[b.name] = b
		}
		for name, b := range linkBlocks {
			merged[name] = b.content
		}
	}

	base := chain[len(chain)-1]
	return r.substitute(name, base.body, merged), nil
}

// walkChain follows extend directives leaf -> base, guarding against
// recurring names. The returned chain is ordered leaf first.
func (r *resolver) walkChain(name, leafBody string) ([]chainLink, bool) {
	chain := []chainLink{{name: name, body: leafBody}}
	seen := map[string]struct{}{name: {}}
	cur := leafBody
	for {
		parent, ok := scanExtend(cur)
		if !ok {
			return chain, true
		}
		if _, dup := seen[parent]; dup {
			r.logger.Warn("Inheritance cycle detected", "template", name, "repeated", parent)
			return nil, false
		}
		body, ok := r.store.Get(parent)
		if !ok {
			r.logger.Warn("Parent template not found", "template", name, "parent", parent)
			return nil, false
		}
		seen[parent] = struct{}{}
		chain = append(chain, chainLink{name: parent, body: body})
		cur = body
	}
}

// substitute replaces block regions in the base body with merged content,
// re-scanning after each full pass because substituted content may itself
// contain further block markers (a mid-chain template can both define a
// block and be overridden for it elsewhere in the chain). Passes are capped
// and the best-effort result is returned if the cap is hit.
func (r *resolver) substitute(name, base string, merged map[string]string) string {
	working := stripExtend(base)
	for pass := 0; pass < r.maxPasses; pass++ {
		next, changed := substituteOnce(working, merged, r.logger, name)
		working = next
		if !changed {
			return working
		}
	}
	r.logger.Warn("Block substitution pass cap reached", "template", name, "passes", r.maxPasses)
	return r.stripDirectives(working)
}

// stripDirectives removes extend markers and unwraps block regions to their
// literal content. Used on the no-inheritance path and on degraded
// fallbacks so compiler input is uniform either way.
func (r *resolver) stripDirectives(body string) string {
	working := stripExtend(body)
	for pass := 0; pass < r.maxPasses; pass++ {
		next, changed := substituteOnce(working, nil, r.logger, "")
		working = next
		if !changed {
			return working
		}
	}
	return working
}

// substituteOnce performs one full pass over body: each top-level block
// region is replaced by its merged content, or unwrapped to its literal
// inner content when no override exists. Unterminated opens are dropped.
func substituteOnce(body string, merged map[string]string, logger *slog.Logger, template string) (string, bool) {
	var sb strings.Builder
	pos := 0
	changed := false
	for {
		name, contentStart, ok := nextBlockOpen(body, pos)
		if !ok {
			if contentStart >= 0 && logger != nil {
				// Open marker with a broken name tag; the remainder stays
				// literal.
				logger.Error("Broken block open tag kept literal", "template", template)
			}
			sb.WriteString(body[pos:])
			return sb.String(), changed
		}
		open := strings.Index(body[pos:], blockOpen) + pos
		end, found := matchBlockClose(body, contentStart)
		if !found {
			if logger != nil {
				logger.Error("Unterminated block dropped during substitution", "template", template, "block", name)
			}
			sb.WriteString(body[pos:open])
			pos = contentStart
			changed = true
			continue
		}
		content, override := merged[name]
		if !override {
			content = body[contentStart:end]
		}
		sb.WriteString(body[pos:open])
		sb.WriteString(content)
		pos = end + len(blockClose)
		changed = true
	}
}
