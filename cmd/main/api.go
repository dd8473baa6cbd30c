package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/calvora/frond/pkg/frond"
	"github.com/calvora/frond/pkg/store"
)

// TemplateAPI holds the dependencies for the template API handlers.
type TemplateAPI struct {
	engine *frond.Engine
	st     *store.Store
	lc     *frond.LoadCoordinator
	logger *slog.Logger
}

// NewTemplateAPI creates a new instance of the TemplateAPI.
func NewTemplateAPI(engine *frond.Engine, st *store.Store, lc *frond.LoadCoordinator, logger *slog.Logger) *TemplateAPI {
	return &TemplateAPI{
		engine: engine,
		st:     st,
		lc:     lc,
		logger: logger,
	}
}

// RegisterRoutes sets up the routing for the render and template endpoints.
func (t *TemplateAPI) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/render/", t.handleRender)
	mux.HandleFunc("/api/templates", t.handleList)
	mux.HandleFunc("/api/templates/", t.handleTemplate)
	mux.HandleFunc("/api/cache/clear", t.handleCacheClear)
}

// handleRender renders a template by name with the query parameters as its
// data context. Rendering never fails; broken templates produce degraded
// output with inline diagnostics.
func (t *TemplateAPI) handleRender(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	name := strings.TrimPrefix(r.URL.Path, "/render/")
	if name == "" {
		respondWithError(w, http.StatusBadRequest, "Missing template name")
		return
	}

	result, err := t.lc.EnsureLoaded(r.Context())
	if err != nil {
		t.logger.Error("Template load failed", "error", err)
		respondWithError(w, http.StatusServiceUnavailable, "Template sources unavailable")
		return
	}
	if len(result.Failed) > 0 {
		t.logger.Debug("Rendering with partially loaded sources", "failed", result.Failed)
	}

	data := make(map[string]any)
	for key, values := range r.URL.Query() {
		data[key] = values[0]
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = io.WriteString(w, t.engine.Render(name, data))
}

// handleList returns the names of all stored templates.
func (t *TemplateAPI) handleList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	names, err := t.st.List(r.Context())
	if err != nil {
		t.logger.Error("Failed to list templates", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to list templates")
		return
	}
	respondWithJSON(w, http.StatusOK, names)
}

// handleTemplate serves GET/PUT/DELETE for a single named template.
func (t *TemplateAPI) handleTemplate(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/api/templates/")
	if name == "" {
		respondWithError(w, http.StatusBadRequest, "Missing template name")
		return
	}

	switch r.Method {
	case http.MethodGet:
		body, err := t.st.Get(r.Context(), name)
		if errors.Is(err, store.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, fmt.Sprintf("Template %q not found", name))
			return
		}
		if err != nil {
			t.logger.Error("Failed to read template", "template", name, "error", err)
			respondWithError(w, http.StatusInternalServerError, "Failed to read template")
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, body)

	case http.MethodPut:
		body, err := io.ReadAll(r.Body)
		if err != nil {
			respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to read request body: %v", err))
			return
		}
		if err = t.st.Put(r.Context(), name, string(body)); err != nil {
			t.logger.Error("Failed to store template", "template", name, "error", err)
			respondWithError(w, http.StatusInternalServerError, "Failed to store template")
			return
		}
		// Make the new body visible to renders immediately; the source
		// store's generation bump drops stale compiled templates.
		t.engine.Store().Set(name, string(body))
		w.WriteHeader(http.StatusNoContent)

	case http.MethodDelete:
		if err := t.st.Delete(r.Context(), name); err != nil {
			t.logger.Error("Failed to delete template", "template", name, "error", err)
			respondWithError(w, http.StatusInternalServerError, "Failed to delete template")
			return
		}
		// Conservative: drop all loaded sources and reload on next render.
		t.lc.ClearCache()
		w.WriteHeader(http.StatusNoContent)

	default:
		w.Header().Set("Allow", "GET, PUT, DELETE")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// handleCacheClear resets the load coordinator and drops all sources,
// forcing a full reload on the next render.
func (t *TemplateAPI) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	t.lc.ClearCache()
	t.engine.ClearCache()
	t.logger.Info("Template caches cleared via API")
	w.WriteHeader(http.StatusNoContent)
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}
