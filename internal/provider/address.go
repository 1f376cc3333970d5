package provider

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/marcusmcb/revive-hq-demo/internal/model"
)

// ErrNotFound reports that no listing matched the address. An expected
// outcome, not a provider failure.
var ErrNotFound = errors.New("provider: no matching listing")

var (
	streetNumberRe = regexp.MustCompile(`^(\d+)\s+(.*)$`)
	stateTokenRe   = regexp.MustCompile(`^[A-Za-z]{2}$`)
	unitRe         = regexp.MustCompile(`(?i)\s+(?:#\s*\S+|(?:apt|unit|ste|suite|fl|floor)\.?\s+\S+)$`)
)

// roadSuffixes are trailing street-type tokens dropped to widen a street
// name candidate.
var roadSuffixes = map[string]bool{
	"st": true, "street": true,
	"rd": true, "road": true,
	"dr": true, "drive": true,
	"ave": true, "avenue": true,
	"blvd": true, "boulevard": true,
	"ln": true, "lane": true,
	"ct": true, "court": true,
	"cir": true, "circle": true,
	"pl": true, "place": true,
	"way": true,
	"pkwy": true, "parkway": true,
	"hwy": true, "highway": true,
	"ter": true, "terrace": true,
	"trl": true, "trail": true,
}

var directionals = map[string]bool{
	"n": true, "s": true, "e": true, "w": true,
	"ne": true, "nw": true, "se": true, "sw": true,
}

// addressQuery is the structured shape the provider expects in place of a
// free-text address.
type addressQuery struct {
	streetNumber string
	streetName   string
	city         string
	state        string
}

// parseAddress splits a loosely-formatted address into the provider's
// structured query shape. false means the input carries no leading street
// number and cannot be matched at all.
func parseAddress(input string) (addressQuery, bool) {
	segments := strings.Split(input, ",")
	streetLine := strings.TrimSpace(segments[0])

	m := streetNumberRe.FindStringSubmatch(streetLine)
	if m == nil {
		return addressQuery{}, false
	}

	q := addressQuery{
		streetNumber: m[1],
		streetName:   strings.TrimSpace(unitRe.ReplaceAllString(m[2], "")),
	}

	// City and state only count when both segments are present.
	if len(segments) >= 3 {
		q.city = strings.TrimSpace(segments[1])
		stateToken, _, _ := strings.Cut(strings.TrimSpace(segments[2]), " ")
		if stateTokenRe.MatchString(stateToken) {
			q.state = strings.ToUpper(stateToken)
		}
	}
	return q, true
}

// streetNameCandidates builds the ordered, case-insensitively de-duplicated
// list of street names to try against the provider, most specific first:
// the full name, the name with trailing road-suffix and directional tokens
// trimmed, the first two remaining tokens, the first remaining token.
func streetNameCandidates(name string) []string {
	full := collapse(name)

	trimmed := strings.Fields(full)
	for len(trimmed) > 1 {
		last := strings.ToLower(strings.TrimRight(trimmed[len(trimmed)-1], "."))
		if !roadSuffixes[last] && !directionals[last] {
			break
		}
		trimmed = trimmed[:len(trimmed)-1]
	}

	ordered := []string{full, strings.Join(trimmed, " ")}
	if len(trimmed) >= 2 {
		ordered = append(ordered, strings.Join(trimmed[:2], " "))
	}
	if len(trimmed) >= 1 {
		ordered = append(ordered, trimmed[0])
	}

	seen := make(map[string]bool, len(ordered))
	candidates := make([]string, 0, len(ordered))
	for _, cand := range ordered {
		key := strings.ToLower(cand)
		if cand == "" || seen[key] {
			continue
		}
		seen[key] = true
		candidates = append(candidates, cand)
	}
	return candidates
}

// SearchByAddress locates the single best-matching for-sale, active listing
// for a free-text address. Candidates are tried most to least specific; the
// first candidate returning any listings wins and candidates are never
// merged. ErrNotFound when nothing matches.
func (c *Client) SearchByAddress(ctx context.Context, addressText string) (*model.PropertyListing, error) {
	normalized := collapse(addressText)

	q, ok := parseAddress(normalized)
	if !ok {
		return nil, ErrNotFound
	}

	for _, candidate := range streetNameCandidates(q.streetName) {
		params := url.Values{
			"type":         {"sale"},
			"status":       {"A"},
			"streetNumber": {q.streetNumber},
			"streetName":   {candidate},
		}
		if q.city != "" {
			params.Set("city", q.city)
		}
		if q.state != "" {
			params.Set("state", q.state)
		}

		raw, err := c.listings(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("address candidate %q: %w", candidate, err)
		}
		if len(raw) == 0 {
			continue
		}

		listings := make([]model.PropertyListing, 0, len(raw))
		for _, rec := range raw {
			listings = append(listings, c.mapListing(rec))
		}
		best := selectBestMatch(listings, normalized)
		return &best, nil
	}
	return nil, ErrNotFound
}

// selectBestMatch prefers an exact case-insensitive address match, then the
// first listing containing the input as a substring, then the first listing.
func selectBestMatch(listings []model.PropertyListing, normalizedInput string) model.PropertyListing {
	needle := strings.ToLower(normalizedInput)
	for _, l := range listings {
		if strings.ToLower(l.Address) == needle {
			return l
		}
	}
	for _, l := range listings {
		if strings.Contains(strings.ToLower(l.Address), needle) {
			return l
		}
	}
	return listings[0]
}
