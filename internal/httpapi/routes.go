// Package httpapi wires the HTTP surface and hosts the search orchestrator.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/marcusmcb/revive-hq-demo/internal/events"
	"github.com/marcusmcb/revive-hq-demo/internal/model"
	"github.com/marcusmcb/revive-hq-demo/internal/store"
)

// go-playground/validator/v10: struct validator for inbound request shapes.
var validate = validator.New()

// ListingProvider is the outbound listings boundary.
type ListingProvider interface {
	SearchByCity(ctx context.Context, city, state string, limit int) ([]model.PropertyListing, error)
	SearchByAddress(ctx context.Context, addressText string) (*model.PropertyListing, error)
}

// RecencyCache is the best-effort pointer store consulted before provider
// calls. Implementations never return errors; failures are misses.
type RecencyCache interface {
	Lookup(ctx context.Context, mode model.SearchMode, queryKey string) (model.CachePointer, bool)
	Write(ctx context.Context, mode model.SearchMode, queryKey, searchID string)
	Invalidate(ctx context.Context, mode model.SearchMode, queryKey string)
	Ping(ctx context.Context) error
}

// Service carries the orchestrator's collaborators.
type Service struct {
	provider    ListingProvider
	store       *store.Store
	cache       RecencyCache // nil disables the cache path
	events      *events.Publisher
	recentLimit int
}

// NewService creates the HTTP service.
func NewService(p ListingProvider, st *store.Store, c RecencyCache, ev *events.Publisher, recentLimit int) *Service {
	if recentLimit <= 0 {
		recentLimit = 10
	}
	return &Service{provider: p, store: st, cache: c, events: ev, recentLimit: recentLimit}
}

// RegisterRoutes wires all HTTP routes.
// gorilla/mux: method-based routing and URL pattern matching.
func (s *Service) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/v1/search", s.searchHandler).Methods(http.MethodPost)
	r.HandleFunc("/v1/searches", s.listSearchesHandler).Methods(http.MethodGet)
	r.HandleFunc("/v1/searches/{id}", s.getSearchHandler).Methods(http.MethodGet)
	r.HandleFunc("/v1/searches/{id}", s.deleteSearchHandler).Methods(http.MethodDelete)
	r.HandleFunc("/health", s.healthHandler).Methods(http.MethodGet)
	r.HandleFunc("/health/store", s.storeHealthHandler).Methods(http.MethodGet)
}

// searchSummary is the metadata shape returned by the recent-searches list.
type searchSummary struct {
	ID          string           `json:"id"`
	Mode        model.SearchMode `json:"mode"`
	Query       string           `json:"query"`
	Source      string           `json:"source"`
	CreatedAt   time.Time        `json:"createdAt"`
	RetrievedAt time.Time        `json:"retrievedAt"`
}

func (s *Service) listSearchesHandler(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.ListRecent(r.Context(), s.recentLimit)
	if err != nil {
		log.Printf("httpapi: list recent searches: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error":   "SEARCH_FAILED",
			"message": "failed to list searches",
		})
		return
	}

	summaries := make([]searchSummary, 0, len(records))
	for _, rec := range records {
		summaries = append(summaries, searchSummary{
			ID:          rec.ID,
			Mode:        rec.Mode,
			Query:       rec.Query,
			Source:      rec.Source,
			CreatedAt:   rec.CreatedAt,
			RetrievedAt: rec.RetrievedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"searches": summaries})
}

func (s *Service) getSearchHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	rec, err := s.store.Get(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "NOT_FOUND"})
		return
	}
	if err != nil {
		log.Printf("httpapi: get search %s: %v", id, err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error":   "SEARCH_FAILED",
			"message": "failed to load search",
		})
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Service) deleteSearchHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	meta, err := s.store.Delete(r.Context(), id)
	if err != nil {
		log.Printf("httpapi: delete search %s: %v", id, err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"ok":      false,
			"error":   "DELETE_FAILED",
			"message": err.Error(),
		})
		return
	}

	// Pointer cleanup is best-effort: a stale pointer only costs a miss
	// later, never a wrong result.
	if s.cache != nil && meta != nil && meta.QueryKey != "" {
		s.cache.Invalidate(r.Context(), meta.Mode, meta.QueryKey)
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Service) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Service) storeHealthHandler(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{"store": "ok", "cache": "ok"}
	code := http.StatusOK

	if err := s.store.Ping(r.Context()); err != nil {
		status["store"] = err.Error()
		code = http.StatusServiceUnavailable
	}
	if s.cache == nil {
		status["cache"] = "disabled"
	} else if err := s.cache.Ping(r.Context()); err != nil {
		// Cache reachability is informational; it never fails liveness.
		status["cache"] = err.Error()
	}
	writeJSON(w, code, status)
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
