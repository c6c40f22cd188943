// Package api exposes the engine over HTTP and MCP. All responses are
// JSON; errors use a single envelope with a message and a machine-readable
// type.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/larder-app/larder/internal/engine"
	"github.com/larder-app/larder/internal/importer"
	"github.com/larder-app/larder/internal/insights"
	"github.com/larder-app/larder/internal/pantry"
	"github.com/larder-app/larder/internal/registry"
	"github.com/larder-app/larder/internal/storage"
	"github.com/larder-app/larder/internal/train"
)

const maxRequestBodySize = 1 << 20  // 1MB
const maxReceiptBodySize = 10 << 20 // 10MB

const dateLayout = "2006-01-02"

// Deps holds everything the HTTP layer needs. Now is injectable so handler
// tests can pin the reference date.
type Deps struct {
	Store     *storage.Store
	Engine    *engine.Engine
	Registry  *registry.Registry
	ModelsDir string
	Token     string
	Now       func() time.Time
}

// NewHandler returns the REST API. The health endpoint is open; everything
// else requires the bearer token.
func NewHandler(deps Deps) http.Handler {
	if deps.Now == nil {
		deps.Now = time.Now
	}

	r := chi.NewRouter()
	r.Get("/health", handleHealth(deps))

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Post("/assess", handleAssess(deps))
		r.Post("/categorize", handleCategorize(deps))
		r.Post("/pantry/assess", handlePantryAssess(deps))
		r.Get("/insights", handleInsights(deps))

		r.Post("/items", handleCreateItem(deps))
		r.Get("/items", handleListItems(deps))
		r.Get("/items/{id}", handleGetItem(deps))
		r.Delete("/items/{id}", handleDeleteItem(deps))
		r.Post("/items/{id}/outcome", handleResolveItem(deps))

		r.Post("/import/receipt", handleImportReceipt(deps))

		r.Post("/train", handleTrain(deps))
		r.Post("/registry/refresh", handleRefresh(deps))
		r.Get("/registry/status", handleRegistryStatus(deps))
	})

	return r
}

func handleHealth(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status":        "ok",
			"model_version": deps.Engine.ModelVersion(),
		})
	}
}

// itemRequest is the wire form of an item: dates as YYYY-MM-DD strings,
// everything but name and quantity optional.
type itemRequest struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Category     string  `json:"category"`
	Quantity     float64 `json:"quantity"`
	Unit         string  `json:"unit"`
	PurchaseDate string  `json:"purchase_date"`
	ExpiryDate   string  `json:"expiry_date"`
	LastUsedDate string  `json:"last_used_date"`
	Location     string  `json:"storage_location"`
}

func (req itemRequest) toItem() (pantry.Item, error) {
	if strings.TrimSpace(req.Name) == "" {
		return pantry.Item{}, fmt.Errorf("name is required")
	}
	item := pantry.Item{
		ID:       req.ID,
		Name:     strings.TrimSpace(req.Name),
		Category: pantry.Category(req.Category),
		Quantity: req.Quantity,
		Unit:     req.Unit,
		Location: pantry.StorageLocation(req.Location),
	}
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	var err error
	if item.PurchaseDate, err = parseDate(req.PurchaseDate); err != nil {
		return pantry.Item{}, fmt.Errorf("purchase_date: %w", err)
	}
	if item.ExpiryDate, err = parseDate(req.ExpiryDate); err != nil {
		return pantry.Item{}, fmt.Errorf("expiry_date: %w", err)
	}
	if item.LastUsedDate, err = parseDate(req.LastUsedDate); err != nil {
		return pantry.Item{}, fmt.Errorf("last_used_date: %w", err)
	}
	return item, item.Validate()
}

func handleAssess(deps Deps) http.HandlerFunc {
	type assessRequest struct {
		Item itemRequest `json:"item"`
		AsOf string      `json:"as_of"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req assessRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		item, err := req.Item.toItem()
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid item: %v", err)
			return
		}
		ref, err := parseAsOf(req.AsOf, deps.Now)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "as_of: %v", err)
			return
		}

		assessment, err := deps.Engine.Assess(item, ref)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "assessment failed: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, assessment)
	}
}

func handleCategorize(deps Deps) http.HandlerFunc {
	type categorizeRequest struct {
		Name string `json:"name"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req categorizeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, deps.Engine.Categorize(req.Name))
	}
}

func handlePantryAssess(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ref, err := parseAsOf(r.URL.Query().Get("as_of"), deps.Now)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "as_of: %v", err)
			return
		}
		items, err := deps.Store.ListItems()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list items: %v", err)
			return
		}
		assessments, err := deps.Engine.AssessAll(r.Context(), items, ref)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "assessment failed: %v", err)
			return
		}
		if assessments == nil {
			assessments = []engine.Assessment{}
		}
		writeJSON(w, http.StatusOK, assessments)
	}
}

func handleInsights(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ref, err := parseAsOf(r.URL.Query().Get("as_of"), deps.Now)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "as_of: %v", err)
			return
		}
		items, err := deps.Store.ListItems()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list items: %v", err)
			return
		}
		assessments, err := deps.Engine.AssessAll(r.Context(), items, ref)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "assessment failed: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, insights.Build(assessments, items, ref))
	}
}

func handleCreateItem(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req itemRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		item, err := req.toItem()
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid item: %v", err)
			return
		}

		// Unknown category gets a suggestion before the item is saved, so
		// list and insight views stay meaningful without a manual pass.
		if item.Category == "" || item.Category == pantry.CategoryUnknown {
			item.Category = deps.Engine.Categorize(item.Name).Category
		}

		if err := deps.Store.SaveItem(item, deps.Now()); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to save item: %v", err)
			return
		}
		writeJSON(w, http.StatusCreated, item)
	}
}

func handleListItems(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := deps.Store.ListItems()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list items: %v", err)
			return
		}
		if items == nil {
			items = []pantry.Item{}
		}
		writeJSON(w, http.StatusOK, items)
	}
}

func handleGetItem(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		item, err := deps.Store.GetItem(chi.URLParam(r, "id"))
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "item not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get item: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, item)
	}
}

func handleDeleteItem(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := deps.Store.DeleteItem(chi.URLParam(r, "id"))
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "item not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to delete item: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

// handleResolveItem closes out an item: the outcome is recorded for
// training and the item leaves the active pantry.
func handleResolveItem(deps Deps) http.HandlerFunc {
	type resolveRequest struct {
		Spoiled    bool   `json:"spoiled"`
		ResolvedAt string `json:"resolved_at"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req resolveRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		resolvedAt, err := parseAsOf(req.ResolvedAt, deps.Now)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "resolved_at: %v", err)
			return
		}

		id := chi.URLParam(r, "id")
		item, err := deps.Store.GetItem(id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "item not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get item: %v", err)
			return
		}

		outcome := storage.Outcome{
			ID:           uuid.New().String(),
			ItemID:       item.ID,
			Name:         item.Name,
			Category:     item.Category,
			Quantity:     item.Quantity,
			Unit:         item.Unit,
			PurchaseDate: item.PurchaseDate,
			ExpiryDate:   item.ExpiryDate,
			LastUsedDate: item.LastUsedDate,
			Location:     item.Location,
			Spoiled:      req.Spoiled,
			ResolvedAt:   resolvedAt,
		}
		if err := deps.Store.SaveOutcome(outcome); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to save outcome: %v", err)
			return
		}
		if err := deps.Store.DeleteItem(id); err != nil && !errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusInternalServerError, "api_error", "outcome saved but failed to remove item: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"status":     "resolved",
			"outcome_id": outcome.ID,
		})
	}
}

// handleImportReceipt accepts a PDF (or plain text) receipt body and
// returns draft items with suggested categories. Nothing is saved; the
// client confirms drafts via POST /items.
func handleImportReceipt(deps Deps) http.HandlerFunc {
	type draftResponse struct {
		importer.Draft
		SuggestedCategory pantry.CategoryPrediction `json:"suggested_category"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxReceiptBodySize)
		defer r.Body.Close()

		body, err := io.ReadAll(r.Body)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "reading request body: %v", err)
			return
		}

		var drafts []importer.Draft
		if strings.HasPrefix(r.Header.Get("Content-Type"), "text/plain") {
			drafts = importer.ParseText(string(body))
		} else {
			drafts, err = importer.ParsePDF(body)
			if err != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
				return
			}
		}

		out := make([]draftResponse, len(drafts))
		for i, d := range drafts {
			out[i] = draftResponse{
				Draft:             d,
				SuggestedCategory: deps.Engine.Categorize(d.Name),
			}
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// handleTrain fits a new artifact from recorded outcomes, writes it to the
// model directory, and publishes it.
func handleTrain(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		outcomes, err := deps.Store.ListOutcomes()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list outcomes: %v", err)
			return
		}

		base, ok := deps.Registry.Current()
		if !ok {
			base = registry.Default()
		}

		artifact, err := train.Fit(outcomes, base, deps.Now())
		if errors.Is(err, train.ErrInsufficientData) {
			httpError(w, http.StatusUnprocessableEntity, "invalid_request_error", "%v", err)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "training failed: %v", err)
			return
		}

		if err := registry.WriteArtifact(deps.ModelsDir, artifact); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to write artifact: %v", err)
			return
		}
		if err := deps.Registry.Load(r.Context(), artifact.Version); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "artifact written but not published: %v", err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"version":      artifact.Version,
			"sample_count": artifact.TrainingSampleCount,
			"trained_at":   artifact.TrainedAt.Format(time.RFC3339),
		})
	}
}

func handleRefresh(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		version, err := deps.Registry.Refresh(r.Context())
		if err != nil {
			httpError(w, http.StatusConflict, "api_error", "refresh failed, current artifact retained: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"version": version})
	}
}

func handleRegistryStatus(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		versions, err := deps.Registry.Versions()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list versions: %v", err)
			return
		}
		if versions == nil {
			versions = []string{}
		}

		status := map[string]any{
			"current":  deps.Engine.ModelVersion(),
			"versions": versions,
		}
		if artifact, ok := deps.Registry.Current(); ok {
			status["trained_at"] = artifact.TrainedAt.Format(time.RFC3339)
			status["sample_count"] = artifact.TrainingSampleCount
		}
		writeJSON(w, http.StatusOK, status)
	}
}

// parseAsOf turns an optional YYYY-MM-DD string into a reference time,
// defaulting to now.
func parseAsOf(s string, now func() time.Time) (time.Time, error) {
	if s == "" {
		return now().UTC(), nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("expected YYYY-MM-DD, got %q", s)
	}
	return t, nil
}

func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil, fmt.Errorf("expected YYYY-MM-DD, got %q", s)
	}
	return &t, nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
