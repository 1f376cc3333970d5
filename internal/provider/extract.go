package provider

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/marcusmcb/revive-hq-demo/internal/model"
)

// Provider records vary in shape from listing to listing: numerics arrive as
// numbers or as comma-grouped strings, the same fact may live nested under
// "details" and duplicated at the top level, photos are bare strings or
// objects. Each canonical field is extracted by walking a prioritized list
// of paths and taking the first value that coerces.

// numberPaths lists extraction paths per canonical numeric field, most
// authoritative first. Nested details fields win over top-level duplicates,
// which win over further aliases.
var numberPaths = map[string][][]string{
	"price": {
		{"details", "price"},
		{"details", "listPrice"},
		{"price"},
		{"listPrice"},
		{"list_price"},
		{"askingPrice"},
	},
	"beds": {
		{"details", "beds"},
		{"details", "bedrooms"},
		{"beds"},
		{"bedrooms"},
		{"numBedrooms"},
	},
	"baths": {
		{"details", "baths"},
		{"details", "bathrooms"},
		{"baths"},
		{"bathrooms"},
		{"numBathrooms"},
	},
	"sqft": {
		{"details", "sqft"},
		{"details", "squareFeet"},
		{"sqft"},
		{"squareFeet"},
		{"livingArea"},
	},
}

// idFields is the ordered list of id-like fields tried for SourceID.
var idFields = []string{"mlsNumber", "listingId", "listing_id", "id", "_id", "uuid"}

// photoURLFields is the ordered list of url-like fields tried on photo objects.
var photoURLFields = []string{"url", "href", "src", "link"}

// mapListing converts one raw provider record into the canonical shape.
func (c *Client) mapListing(rec map[string]any) model.PropertyListing {
	return model.PropertyListing{
		Source:   Source,
		SourceID: extractSourceID(rec),
		Address:  formatAddress(rec),
		Price:    extractNumber(rec, numberPaths["price"]),
		Beds:     extractNumber(rec, numberPaths["beds"]),
		Baths:    extractNumber(rec, numberPaths["baths"]),
		Sqft:     extractNumber(rec, numberPaths["sqft"]),
		Photos:   c.extractPhotos(rec),
	}
}

// extractSourceID returns the first present id-like field, or a fresh random
// id when the provider supplies none. A listing observed twice without a
// stable id is therefore treated as two distinct listings; known limitation.
func extractSourceID(rec map[string]any) string {
	for _, field := range idFields {
		switch v := rec[field].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return uuid.NewString()
}

// extractNumber walks paths in order and returns the first coercible value.
// nil means unknown, which is a first-class value distinct from zero.
func extractNumber(rec map[string]any, paths [][]string) *float64 {
	for _, path := range paths {
		v, ok := lookupPath(rec, path)
		if !ok {
			continue
		}
		if n, ok := coerceNumber(v); ok {
			return &n
		}
	}
	return nil
}

func lookupPath(rec map[string]any, path []string) (any, bool) {
	var cur any = rec
	for _, key := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// coerceNumber accepts a JSON number or a numeric string (commas stripped).
// Infinities and NaN are rejected rather than stored.
func coerceNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		if math.IsInf(n, 0) || math.IsNaN(n) {
			return 0, false
		}
		return n, true
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(n), ",", "")
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// extractPhotos collects photo URLs, accepting bare strings or objects
// carrying a url-like field, and rewrites relative paths to absolute CDN
// URLs with a medium-size hint.
func (c *Client) extractPhotos(rec map[string]any) []string {
	var entries []any
	for _, field := range []string{"photos", "images", "media"} {
		if v, ok := rec[field].([]any); ok {
			entries = v
			break
		}
	}

	photos := make([]string, 0, len(entries))
	for _, entry := range entries {
		var raw string
		switch p := entry.(type) {
		case string:
			raw = p
		case map[string]any:
			for _, field := range photoURLFields {
				if s, ok := p[field].(string); ok && s != "" {
					raw = s
					break
				}
			}
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		photos = append(photos, c.photoURL(raw))
	}
	return photos
}

// photoURL rewrites a relative image path to an absolute CDN URL and appends
// a medium-size hint unless the URL already carries one.
func (c *Client) photoURL(raw string) string {
	abs := raw
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		abs = c.cdnBase + "/" + strings.TrimLeft(raw, "/")
	}
	if hasSizeHint(abs) {
		return abs
	}
	sep := "?"
	if strings.Contains(abs, "?") {
		sep = "&"
	}
	return abs + sep + "width=640"
}

func hasSizeHint(u string) bool {
	idx := strings.Index(u, "?")
	if idx < 0 {
		return false
	}
	query := strings.ToLower(u[idx+1:])
	for _, param := range strings.Split(query, "&") {
		key, _, _ := strings.Cut(param, "=")
		switch key {
		case "w", "h", "width", "height", "size":
			return true
		}
	}
	return false
}

// formatAddress assembles one formatted address line from the record's
// address parts: street number, direction prefix, name, suffix, direction
// suffix, unit (as #<unit>), then city/state, then postal code. Runs of
// whitespace collapse to single spaces. A provider-supplied preformatted
// address wins when present.
func formatAddress(rec map[string]any) string {
	for _, field := range []string{"formattedAddress", "fullAddress"} {
		if s, ok := rec[field].(string); ok && strings.TrimSpace(s) != "" {
			return collapse(s)
		}
	}

	// Parts may live in a nested address object or at the top level.
	parts := rec
	if nested, ok := rec["address"].(map[string]any); ok {
		parts = nested
	}

	street := strings.Join([]string{
		str(parts, "streetNumber", "streetNo", "street_number"),
		str(parts, "streetDirPrefix", "streetDirectionPrefix"),
		str(parts, "streetName", "street_name"),
		str(parts, "streetSuffix", "suffix"),
		str(parts, "streetDirSuffix", "streetDirectionSuffix"),
		unitPart(parts),
	}, " ")

	line := collapse(street)
	if city := str(parts, "city"); city != "" {
		line = joinComma(line, city)
	}
	if state := str(parts, "state"); state != "" {
		line = joinComma(line, state)
	}
	if zip := str(parts, "zip", "postalCode", "zipCode"); zip != "" {
		line = collapse(line + " " + zip)
	}
	return line
}

func unitPart(parts map[string]any) string {
	if unit := str(parts, "unit", "unitNumber"); unit != "" {
		return "#" + unit
	}
	return ""
}

func joinComma(line, part string) string {
	part = collapse(part)
	if line == "" {
		return part
	}
	if part == "" {
		return line
	}
	return line + ", " + part
}

// str returns the first present non-blank string field, numeric fields
// rendered as their decimal form (street numbers sometimes arrive numeric).
func str(m map[string]any, fields ...string) string {
	for _, field := range fields {
		switch v := m[field].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			return fmt.Sprintf("%.0f", v)
		}
	}
	return ""
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
