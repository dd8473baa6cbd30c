package frond

import (
	"fmt"
	"log/slog"
)

// Config holds the safety limits for the rendering engine.
type Config struct {
	// MaxSubstitutionPasses caps how many times inheritance resolution will
	// re-scan a body for block markers before returning a best-effort
	// result. Guards against directive cycles in malformed templates.
	MaxSubstitutionPasses int

	// MaxPartialDepth caps how deep partial inclusion may recurse, so a
	// partial that includes itself cannot hang a render.
	MaxPartialDepth int
}

// DefaultConfig returns a Config with safe default limits.
func DefaultConfig() *Config {
	return &Config{
		MaxSubstitutionPasses: 10,
		MaxPartialDepth:       16,
	}
}

// Engine is the central controller for the templating engine. It owns the
// source store, the helper/filter/partial registries, and the compiled
// render cache. Rendering never panics and never returns an error: broken
// templates degrade to partial output with inline diagnostic comments.
// All methods are concurrent-safe.
type Engine struct {
	logger   *slog.Logger
	config   *Config
	store    *SourceStore
	registry *registry
	cache    *renderCache
}

// New creates an Engine with an empty source store and the built-in
// helpers and filters registered.
func New(logger *slog.Logger, config *Config) *Engine {
	if config == nil {
		config = DefaultConfig()
	}
	e := &Engine{
		logger:   logger,
		config:   config,
		store:    NewSourceStore(),
		registry: newRegistry(),
		cache:    newRenderCache(),
	}
	for name, fn := range defaultHelpers() {
		e.registry.setHelper(name, fn)
	}
	for name, fn := range defaultFilters() {
		e.registry.setFilter(name, fn)
	}
	return e
}

// Store returns the engine's source store, which the load coordinator and
// the template API write into.
func (e *Engine) Store() *SourceStore {
	return e.store
}

// RegisterHelper installs a helper under name. Last write wins.
func (e *Engine) RegisterHelper(name string, fn HelperFunc) {
	e.registry.setHelper(name, fn)
}

// RegisterFilter installs a filter under name. Last write wins.
func (e *Engine) RegisterFilter(name string, fn FilterFunc) {
	e.registry.setFilter(name, fn)
}

// RegisterPartial installs a partial body under name. Partials shadow
// stored templates of the same name during partial lookup.
func (e *Engine) RegisterPartial(name, body string) {
	e.registry.setPartial(name, body)
}

// SetDefaultData installs the default context merged under caller data
// whenever name is rendered directly or included as a partial.
func (e *Engine) SetDefaultData(name string, data map[string]any) {
	e.registry.setDefaults(name, data)
}

// ClearCache evicts every compiled template. Source bodies are untouched.
func (e *Engine) ClearCache() {
	e.cache.clear()
}

// Render resolves, compiles, and executes the named template against data.
// The template's registered default data is merged under data (caller wins
// on conflict). A missing template yields a diagnostic comment rather than
// an error; rendering always returns a string.
func (e *Engine) Render(name string, data map[string]any) string {
	generation := e.store.Generation()
	compiled, ok := e.cache.get(renderKey(name), generation)
	if !ok {
		r := &resolver{
			store:     e.store,
			logger:    e.logger,
			maxPasses: e.config.MaxSubstitutionPasses,
		}
		body, err := r.resolve(name)
		if err != nil {
			e.logger.Error("Template not found", "template", name)
			return fmt.Sprintf("<!-- template %q not found -->", name)
		}
		compiled = compile(body)
		e.cache.put(renderKey(name), generation, compiled)
	}

	ctx := cloneCtx(e.registry.defaultsFor(name))
	for k, v := range data {
		ctx[k] = v
	}
	return compiled.render(e, ctx, 0)
}

func renderKey(name string) string {
	return "template:" + name
}

// compiledPartial compiles a partial body, memoized under its own key so
// repeated inclusion inside a loop does not recompile per iteration.
func (e *Engine) compiledPartial(name, body string) *Compiled {
	generation := e.store.Generation()
	key := "partial:" + name
	if compiled, ok := e.cache.get(key, generation); ok {
		return compiled
	}
	compiled := compile(body)
	e.cache.put(key, generation, compiled)
	return compiled
}

// invokeHelper calls a registered helper, converting an error return or a
// panic into a failed invocation. Only programming errors inside the
// helper can fault, and even those must not escape a render.
func (e *Engine) invokeHelper(name string, fn HelperFunc, args []any) (result any, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("Helper panicked", "helper", name, "panic", r)
			result, ok = nil, false
		}
	}()
	out, err := fn(args...)
	if err != nil {
		e.logger.Warn("Helper returned an error", "helper", name, "error", err)
		return nil, false
	}
	return out, true
}

// invokeFilter calls a registered filter with the same fault containment
// as invokeHelper.
func (e *Engine) invokeFilter(name string, fn FilterFunc, value any, args []string) (result any, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("Filter panicked", "filter", name, "panic", r)
			result, ok = nil, false
		}
	}()
	out, err := fn(value, args...)
	if err != nil {
		e.logger.Warn("Filter returned an error", "filter", name, "error", err)
		return nil, false
	}
	return out, true
}
