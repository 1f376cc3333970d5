package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/marcusmcb/revive-hq-demo/internal/model"
	"github.com/marcusmcb/revive-hq-demo/internal/provider"
	"github.com/marcusmcb/revive-hq-demo/internal/searchkey"
	"github.com/marcusmcb/revive-hq-demo/internal/store"
)

// searchResponse is the 200 body for /v1/search.
type searchResponse struct {
	SearchID   string                  `json:"searchId"`
	Properties []model.PropertyListing `json:"properties"`
	Cached     bool                    `json:"cached,omitempty"`
}

// searchHandler runs one search end to end: validate, check the recency
// cache, call the provider on a miss, persist, respond.
func (s *Service) searchHandler(w http.ResponseWriter, r *http.Request) {
	var req model.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":   "VALIDATION_ERROR",
			"details": "invalid JSON body",
		})
		return
	}

	if details, ok := validateRequest(&req); !ok {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":   "VALIDATION_ERROR",
			"details": details,
		})
		return
	}

	ctx := r.Context()
	queryKey := searchkey.Normalize(req)

	// Cache check: a fresh pointer only counts when the record it points
	// at still loads, since the pointer is a shortcut, not the truth.
	if s.cache != nil {
		if ptr, hit := s.cache.Lookup(ctx, req.Mode, queryKey); hit {
			rec, err := s.store.Get(ctx, ptr.SearchID)
			if err == nil {
				s.publishCompleted(ctx, rec, true)
				w.Header().Set("X-Cache", "HIT")
				writeJSON(w, http.StatusOK, searchResponse{
					SearchID:   rec.ID,
					Properties: rec.Properties,
					Cached:     true,
				})
				return
			}
			if !errors.Is(err, store.ErrNotFound) {
				log.Printf("httpapi: cache hit %s unreadable (key %s): %v", ptr.SearchID, queryKey, err)
			}
		}
	}

	listings, err := s.callProvider(r, req)
	if errors.Is(err, provider.ErrNotFound) {
		// An expected outcome, never cached or persisted.
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "NOT_FOUND"})
		return
	}
	if err != nil {
		log.Printf("httpapi: provider call failed (key %s): %v", queryKey, err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error":   "SEARCH_FAILED",
			"message": "listing provider request failed",
		})
		return
	}

	rec, err := s.store.Create(ctx, store.CreateParams{
		Mode:       req.Mode,
		Query:      req.QueryText(),
		QueryKey:   queryKey,
		Source:     provider.Source,
		Properties: listings,
	})
	if err != nil {
		log.Printf("httpapi: persist search failed (key %s): %v", queryKey, err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error":   "SEARCH_FAILED",
			"message": "failed to persist search",
		})
		return
	}

	if s.cache != nil {
		s.cache.Write(ctx, req.Mode, queryKey, rec.ID)
	}
	s.publishCompleted(ctx, rec, false)

	writeJSON(w, http.StatusOK, searchResponse{
		SearchID:   rec.ID,
		Properties: rec.Properties,
	})
}

func (s *Service) callProvider(r *http.Request, req model.SearchRequest) ([]model.PropertyListing, error) {
	if req.Mode == model.ModeAddress {
		listing, err := s.provider.SearchByAddress(r.Context(), req.Address)
		if err != nil {
			return nil, err
		}
		return []model.PropertyListing{*listing}, nil
	}
	return s.provider.SearchByCity(r.Context(), req.City, req.State, req.EffectiveLimit())
}

// publishCompleted emits the search-completed event; nil publisher is a no-op.
func (s *Service) publishCompleted(ctx context.Context, rec *model.SearchRecord, cached bool) {
	s.events.SearchCompleted(ctx, model.SearchCompletedEvent{
		SearchID:    rec.ID,
		Mode:        rec.Mode,
		Query:       rec.Query,
		QueryKey:    rec.QueryKey,
		Source:      rec.Source,
		ResultCount: rec.ResultCount,
		Cached:      cached,
	})
}

// validateRequest checks that the payload matches exactly one of the two
// mode shapes, normalizing state to its uppercase form.
func validateRequest(req *model.SearchRequest) (string, bool) {
	if !req.Mode.IsValid() {
		return "mode must be \"address\" or \"city\"", false
	}

	switch req.Mode {
	case model.ModeAddress:
		if req.City != "" || req.State != "" || req.Limit != 0 {
			return "address mode accepts only the address field", false
		}
	case model.ModeCity:
		if req.Address != "" {
			return "city mode accepts only city, state, and limit", false
		}
		req.State = strings.ToUpper(strings.TrimSpace(req.State))
	}

	if err := validate.Struct(req); err != nil {
		return err.Error(), false
	}
	return "", true
}
