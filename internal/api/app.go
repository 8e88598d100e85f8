package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/relayout/internal/pipeline"
	"github.com/kalambet/relayout/internal/profile"
	"github.com/kalambet/relayout/internal/storage"
	"github.com/kalambet/relayout/internal/transform"
)

// Triggerer runs one conversion, as the hotkey does.
type Triggerer interface {
	HandleTrigger(ctx context.Context) pipeline.Report
}

// TriggerLog reads the trigger history.
type TriggerLog interface {
	GetRecentTriggers(limit int) ([]storage.TriggerRecord, error)
}

type AppDeps struct {
	Profiles    *profile.Manager
	Transformer *transform.Transformer
	Pipeline    Triggerer
	History     TriggerLog // optional; GET /triggers returns 404 when nil
	Token       string
}

// NewAppHandler returns the management API. /health is open; every other
// route requires the bearer token.
func NewAppHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()
	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Get("/profiles", handleListProfiles(deps))
		r.Post("/profiles", handleCreateProfile(deps))
		r.Get("/profiles/active", handleGetActive(deps))
		r.Put("/profiles/active", handleSetActive(deps))
		r.Post("/profiles/import", handleImportProfile(deps))
		r.Get("/profiles/{id}", handleGetProfile(deps))
		r.Put("/profiles/{id}", handleUpdateProfile(deps))
		r.Delete("/profiles/{id}", handleDeleteProfile(deps))
		r.Post("/profiles/{id}/duplicate", handleDuplicateProfile(deps))
		r.Get("/profiles/{id}/export", handleExportProfile(deps))

		r.Post("/transform", handleTransform(deps))
		r.Post("/detect", handleDetect(deps))
		r.Post("/trigger", handleTrigger(deps))
		r.Get("/triggers", handleListTriggers(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// ProfileList is the body of GET /profiles.
type ProfileList struct {
	ActiveID string            `json:"active_id"`
	Profiles []profile.Profile `json:"profiles"`
}

func handleListProfiles(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list := deps.Profiles.List()
		if list == nil {
			list = []profile.Profile{}
		}
		writeJSON(w, http.StatusOK, ProfileList{ActiveID: deps.Profiles.ActiveID(), Profiles: list})
	}
}

// CreateRequest is the body of POST /profiles.
type CreateRequest struct {
	Name    string `json:"name"`
	BasedOn string `json:"based_on"`
}

func handleCreateProfile(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateRequest
		if !decodeBody(w, r, &req) {
			return
		}
		p, err := deps.Profiles.Create(req.Name, req.BasedOn)
		if err != nil {
			profileError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, p)
	}
}

func handleGetActive(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := deps.Profiles.Active()
		if !ok {
			httpError(w, http.StatusNotFound, "not_found", "no active profile")
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

// ActivateRequest is the body of PUT /profiles/active.
type ActivateRequest struct {
	ID string `json:"id"`
}

func handleSetActive(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ActivateRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.ID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "id is required")
			return
		}
		if err := deps.Profiles.SetActive(req.ID); err != nil {
			profileError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"active_id": req.ID})
	}
}

func handleImportProfile(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		p, err := deps.Profiles.Import(r.Body)
		if err != nil {
			profileError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, p)
	}
}

func handleGetProfile(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := deps.Profiles.Get(chi.URLParam(r, "id"))
		if err != nil {
			profileError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

// UpdateRequest is the body of PUT /profiles/{id}. An empty name keeps the
// current one.
type UpdateRequest struct {
	Name    string            `json:"name"`
	Mapping map[string]string `json:"mapping"`
}

func handleUpdateProfile(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req UpdateRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.Mapping == nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "mapping is required")
			return
		}
		p, err := deps.Profiles.Update(profile.Profile{
			ID:      chi.URLParam(r, "id"),
			Name:    req.Name,
			Mapping: req.Mapping,
		})
		if err != nil {
			profileError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func handleDeleteProfile(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Profiles.Delete(chi.URLParam(r, "id")); err != nil {
			profileError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"status":    "deleted",
			"active_id": deps.Profiles.ActiveID(),
		})
	}
}

func handleDuplicateProfile(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := deps.Profiles.Duplicate(chi.URLParam(r, "id"))
		if err != nil {
			profileError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, p)
	}
}

func handleExportProfile(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if _, err := deps.Profiles.Get(id); err != nil {
			profileError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/toml")
		if err := deps.Profiles.Export(id, w); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
		}
	}
}

// TextRequest is the body of POST /transform and POST /detect.
type TextRequest struct {
	Text string `json:"text"`
}

// TransformResponse is the body returned by POST /transform.
type TransformResponse struct {
	Text    string `json:"text"`
	Changed bool   `json:"changed"`
}

func handleTransform(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req TextRequest
		if !decodeBody(w, r, &req) {
			return
		}
		out := deps.Transformer.Transform(req.Text)
		writeJSON(w, http.StatusOK, TransformResponse{Text: out, Changed: out != req.Text})
	}
}

// DetectResponse is the body returned by POST /detect.
type DetectResponse struct {
	Side string `json:"side"`
}

func handleDetect(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req TextRequest
		if !decodeBody(w, r, &req) {
			return
		}
		writeJSON(w, http.StatusOK, DetectResponse{Side: deps.Transformer.DetectDominantSide(req.Text).String()})
	}
}

// TriggerResponse is the body returned by POST /trigger.
type TriggerResponse struct {
	pipeline.Report
	Error string `json:"error,omitempty"`
}

func handleTrigger(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Pipeline == nil {
			httpError(w, http.StatusServiceUnavailable, "api_error", "pipeline not running")
			return
		}
		rep := deps.Pipeline.HandleTrigger(r.Context())
		writeJSON(w, http.StatusOK, TriggerResponse{Report: rep, Error: rep.ErrorMessage()})
	}
}

// TriggerEntry is one row of GET /triggers.
type TriggerEntry struct {
	ID         string    `json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	BundleID   string    `json:"bundle_id"`
	Path       string    `json:"path"`
	AcquiredBy string    `json:"acquired_by,omitempty"`
	ReplacedBy string    `json:"replaced_by,omitempty"`
	Changed    bool      `json:"changed"`
	Error      string    `json:"error,omitempty"`
}

func handleListTriggers(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.History == nil {
			httpError(w, http.StatusNotFound, "not_found", "trigger history not available")
			return
		}
		limit := parseIntParam(r, "limit", 20, 500)
		records, err := deps.History.GetRecentTriggers(limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list triggers: %v", err)
			return
		}
		out := make([]TriggerEntry, len(records))
		for i, rec := range records {
			out[i] = TriggerEntry{
				ID:         rec.ID,
				CreatedAt:  rec.CreatedAt,
				BundleID:   rec.BundleID,
				Path:       rec.Path,
				AcquiredBy: rec.AcquiredBy,
				ReplacedBy: rec.ReplacedBy,
				Changed:    rec.Changed,
				Error:      rec.Error,
			}
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return false
	}
	return true
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v <= 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}
