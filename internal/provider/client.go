// Package provider adapts the upstream MLS listings API: it translates the
// two supported query shapes into provider HTTP calls and maps the
// provider's loosely-structured listing records into the canonical shape.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/marcusmcb/revive-hq-demo/internal/model"
)

// Source tags every listing returned by this adapter.
const Source = "mls"

// Error is a non-success HTTP response from the provider. The adapter never
// retries; surfacing status and body is the caller's diagnostic.
type Error struct {
	Status int
	Body   string
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider error (status %d): %s", e.Status, e.Body)
}

// Client handles listings provider queries.
type Client struct {
	baseURL    string
	apiKey     string
	cdnBase    string
	httpClient *http.Client
}

// NewClient creates a provider client. timeout bounds each provider round trip.
func NewClient(baseURL, apiKey, cdnBase string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		cdnBase: strings.TrimRight(cdnBase, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// SearchByCity returns for-sale, active listings for a city/state pair.
// Leases and inactive listings are excluded at the request level; including
// them would silently corrupt the dataset for this tool's purpose. Result
// order is whatever the provider returns.
func (c *Client) SearchByCity(ctx context.Context, city, state string, limit int) ([]model.PropertyListing, error) {
	if limit < 1 {
		limit = 1
	}
	if limit > 100 {
		limit = 100
	}

	params := url.Values{
		"type":     {"sale"},
		"status":   {"A"},
		"city":     {city},
		"state":    {state},
		"pageSize": {strconv.Itoa(limit)},
		"pageNum":  {"1"},
	}

	raw, err := c.listings(ctx, params)
	if err != nil {
		return nil, err
	}

	out := make([]model.PropertyListing, 0, len(raw))
	for _, rec := range raw {
		out = append(out, c.mapListing(rec))
	}
	return out, nil
}

// listings issues one POST /listings call and decodes the listing array.
// The provider returns either a bare array or an object exposing the array
// under one of "listings", "results", or "data".
func (c *Client) listings(ctx context.Context, params url.Values) ([]map[string]any, error) {
	reqURL := fmt.Sprintf("%s/listings", c.baseURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(nil))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.URL.RawQuery = params.Encode()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call provider: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read provider response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{Status: resp.StatusCode, Body: string(body)}
	}

	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode provider response: %w", err)
	}

	arr, ok := payload.([]any)
	if !ok {
		obj, isObj := payload.(map[string]any)
		if !isObj {
			return nil, fmt.Errorf("unexpected provider payload shape")
		}
		for _, key := range []string{"listings", "results", "data"} {
			if v, present := obj[key]; present {
				if a, isArr := v.([]any); isArr {
					arr = a
					ok = true
					break
				}
			}
		}
		if !ok {
			return nil, fmt.Errorf("provider payload carries no listing array")
		}
	}

	records := make([]map[string]any, 0, len(arr))
	for _, item := range arr {
		if rec, isMap := item.(map[string]any); isMap {
			records = append(records, rec)
		}
	}
	return records, nil
}
