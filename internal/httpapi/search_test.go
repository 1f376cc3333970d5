package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcusmcb/revive-hq-demo/internal/model"
	"github.com/marcusmcb/revive-hq-demo/internal/provider"
	"github.com/marcusmcb/revive-hq-demo/internal/store"
)

// fakeListingProvider scripts provider outcomes and counts calls.
type fakeListingProvider struct {
	cityListings   []model.PropertyListing
	cityErr        error
	addressListing *model.PropertyListing
	addressErr     error
	cityCalls      int
	addressCalls   int
}

func (f *fakeListingProvider) SearchByCity(ctx context.Context, city, state string, limit int) ([]model.PropertyListing, error) {
	f.cityCalls++
	return f.cityListings, f.cityErr
}

func (f *fakeListingProvider) SearchByAddress(ctx context.Context, addressText string) (*model.PropertyListing, error) {
	f.addressCalls++
	if f.addressErr != nil {
		return nil, f.addressErr
	}
	return f.addressListing, nil
}

// fakeCache is an in-memory pointer store with the production freshness rule.
type fakeCache struct {
	entries     map[string]model.CachePointer
	maxAge      time.Duration
	invalidated []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string]model.CachePointer{}, maxAge: 15 * time.Minute}
}

func (f *fakeCache) key(mode model.SearchMode, queryKey string) string {
	return string(mode) + ":" + queryKey
}

func (f *fakeCache) Lookup(ctx context.Context, mode model.SearchMode, queryKey string) (model.CachePointer, bool) {
	ptr, ok := f.entries[f.key(mode, queryKey)]
	if !ok || time.Since(ptr.UpdatedAt) > f.maxAge {
		return model.CachePointer{}, false
	}
	return ptr, true
}

func (f *fakeCache) Write(ctx context.Context, mode model.SearchMode, queryKey, searchID string) {
	f.entries[f.key(mode, queryKey)] = model.CachePointer{SearchID: searchID, UpdatedAt: time.Now()}
}

func (f *fakeCache) Invalidate(ctx context.Context, mode model.SearchMode, queryKey string) {
	f.invalidated = append(f.invalidated, f.key(mode, queryKey))
	delete(f.entries, f.key(mode, queryKey))
}

func (f *fakeCache) Ping(ctx context.Context) error { return nil }

// age rewinds every stored pointer past the freshness window.
func (f *fakeCache) age(by time.Duration) {
	for k, ptr := range f.entries {
		ptr.UpdatedAt = ptr.UpdatedAt.Add(-by)
		f.entries[k] = ptr
	}
}

type fixture struct {
	router   *mux.Router
	provider *fakeListingProvider
	cache    *fakeCache
	store    *store.Store
}

func setup(t *testing.T) *fixture {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "searches.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	f := &fixture{
		provider: &fakeListingProvider{},
		cache:    newFakeCache(),
		store:    st,
	}
	svc := NewService(f.provider, st, f.cache, nil, 10)
	f.router = mux.NewRouter()
	svc.RegisterRoutes(f.router)
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func sampleListings(n int) []model.PropertyListing {
	out := make([]model.PropertyListing, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, model.PropertyListing{
			Source:   "mls",
			SourceID: fmt.Sprintf("MLS-%d", i),
			Address:  fmt.Sprintf("%d Main St, Nashville, TN", i+1),
			Photos:   []string{},
		})
	}
	return out
}

func cityRequest() map[string]any {
	return map[string]any{"mode": "city", "city": "Nashville", "state": "TN", "limit": 25}
}

func TestSearchEmptyBodyRejected(t *testing.T) {
	f := setup(t)
	w := f.do(t, http.MethodPost, "/v1/search", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", decode(t, w)["error"])
	assert.Zero(t, f.provider.cityCalls)
	assert.Zero(t, f.provider.addressCalls)
}

func TestSearchInvalidJSONRejected(t *testing.T) {
	f := setup(t)
	req := httptest.NewRequest(http.MethodPost, "/v1/search", bytes.NewBufferString("{nope"))
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", decode(t, w)["error"])
}

func TestSearchMixedShapeRejected(t *testing.T) {
	f := setup(t)
	w := f.do(t, http.MethodPost, "/v1/search", map[string]any{
		"mode": "address", "address": "123 Main St, Austin, TX", "city": "Austin",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSearchShortAddressRejected(t *testing.T) {
	f := setup(t)
	w := f.do(t, http.MethodPost, "/v1/search", map[string]any{"mode": "address", "address": "123"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCitySearchPersistsAndResponds(t *testing.T) {
	f := setup(t)
	f.provider.cityListings = sampleListings(2)

	w := f.do(t, http.MethodPost, "/v1/search", cityRequest())
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	searchID := body["searchId"].(string)
	assert.NotEmpty(t, searchID)
	assert.Len(t, body["properties"], 2)
	assert.Nil(t, body["cached"])
	assert.Empty(t, w.Header().Get("X-Cache"))

	rec, err := f.store.Get(context.Background(), searchID)
	require.NoError(t, err)
	assert.Equal(t, 2, rec.ResultCount)
	assert.Equal(t, "city:nashville|state:TN|limit:25", rec.QueryKey)
}

func TestCitySearchCacheRoundTrip(t *testing.T) {
	f := setup(t)
	f.provider.cityListings = sampleListings(2)

	first := f.do(t, http.MethodPost, "/v1/search", cityRequest())
	require.Equal(t, http.StatusOK, first.Code)
	firstID := decode(t, first)["searchId"].(string)

	second := f.do(t, http.MethodPost, "/v1/search", cityRequest())
	require.Equal(t, http.StatusOK, second.Code)
	body := decode(t, second)

	assert.Equal(t, firstID, body["searchId"], "identical request served from cache")
	assert.Equal(t, true, body["cached"])
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.Equal(t, 1, f.provider.cityCalls, "no second provider call")
}

func TestCitySearchCacheMissAfterExpiry(t *testing.T) {
	f := setup(t)
	f.provider.cityListings = sampleListings(1)

	first := f.do(t, http.MethodPost, "/v1/search", cityRequest())
	firstID := decode(t, first)["searchId"].(string)

	f.cache.age(16 * time.Minute)

	second := f.do(t, http.MethodPost, "/v1/search", cityRequest())
	require.Equal(t, http.StatusOK, second.Code)
	body := decode(t, second)

	assert.NotEqual(t, firstID, body["searchId"], "expired pointer forces a fresh search")
	assert.Equal(t, 2, f.provider.cityCalls)
	assert.Equal(t, "", second.Header().Get("X-Cache"))
}

func TestCacheHitWithDeletedRecordFallsThrough(t *testing.T) {
	f := setup(t)
	f.provider.cityListings = sampleListings(1)

	first := f.do(t, http.MethodPost, "/v1/search", cityRequest())
	firstID := decode(t, first)["searchId"].(string)

	// Drop the record but keep the pointer: the orchestrator must treat
	// the dangling pointer as a miss.
	_, err := f.store.Delete(context.Background(), firstID)
	require.NoError(t, err)

	second := f.do(t, http.MethodPost, "/v1/search", cityRequest())
	require.Equal(t, http.StatusOK, second.Code)
	assert.NotEqual(t, firstID, decode(t, second)["searchId"])
	assert.Equal(t, 2, f.provider.cityCalls)
}

func TestAddressSearchSuccess(t *testing.T) {
	f := setup(t)
	f.provider.addressListing = &model.PropertyListing{
		Source: "mls", SourceID: "L1", Address: "123 Main St, Austin, TX 78701", Photos: []string{},
	}

	w := f.do(t, http.MethodPost, "/v1/search", map[string]any{
		"mode": "address", "address": "123 Main St, Austin, TX 78701",
	})
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Len(t, body["properties"], 1)
	assert.Equal(t, 1, f.provider.addressCalls)
}

func TestAddressSearchNotFound(t *testing.T) {
	f := setup(t)
	f.provider.addressErr = provider.ErrNotFound

	w := f.do(t, http.MethodPost, "/v1/search", map[string]any{
		"mode": "address", "address": "123 Nowhere Ln, Austin, TX",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", decode(t, w)["error"])

	// A not-found result is never persisted or cached.
	recent, err := f.store.ListRecent(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, recent)
	assert.Empty(t, f.cache.entries)
}

func TestSearchProviderFailure(t *testing.T) {
	f := setup(t)
	f.provider.cityErr = &provider.Error{Status: http.StatusBadGateway, Body: "boom"}

	w := f.do(t, http.MethodPost, "/v1/search", cityRequest())
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "SEARCH_FAILED", decode(t, w)["error"])
}

func TestListRecentSearches(t *testing.T) {
	f := setup(t)
	f.provider.cityListings = sampleListings(1)

	for i := 0; i < 3; i++ {
		req := cityRequest()
		req["limit"] = 10 + i // distinct query keys defeat the cache
		w := f.do(t, http.MethodPost, "/v1/search", req)
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := f.do(t, http.MethodGet, "/v1/searches", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Searches []searchSummary `json:"searches"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Searches, 3)
	for _, s := range body.Searches {
		assert.Equal(t, model.ModeCity, s.Mode)
		assert.Equal(t, "Nashville, TN", s.Query)
	}
}

func TestGetSearchByID(t *testing.T) {
	f := setup(t)
	f.provider.cityListings = sampleListings(2)

	created := f.do(t, http.MethodPost, "/v1/search", cityRequest())
	id := decode(t, created)["searchId"].(string)

	w := f.do(t, http.MethodGet, "/v1/searches/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, id, body["id"])
	assert.Len(t, body["properties"], 2)
}

func TestGetSearchNotFound(t *testing.T) {
	f := setup(t)
	w := f.do(t, http.MethodGet, "/v1/searches/does-not-exist", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", decode(t, w)["error"])
}

func TestDeleteSearchCleansUp(t *testing.T) {
	f := setup(t)
	f.provider.cityListings = sampleListings(2)

	created := f.do(t, http.MethodPost, "/v1/search", cityRequest())
	id := decode(t, created)["searchId"].(string)

	w := f.do(t, http.MethodDelete, "/v1/searches/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["ok"])

	got := f.do(t, http.MethodGet, "/v1/searches/"+id, nil)
	assert.Equal(t, http.StatusNotFound, got.Code)

	assert.Contains(t, f.cache.invalidated, "city:city:nashville|state:TN|limit:25")
}

func TestHealth(t *testing.T) {
	f := setup(t)

	w := f.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodGet, "/health/store", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
