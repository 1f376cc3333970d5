// Package searchkey derives stable cache keys from search requests.
// Two requests are cache-equivalent iff their modes match and their
// normalized keys are equal.
package searchkey

import (
	"fmt"
	"strings"

	"github.com/marcusmcb/revive-hq-demo/internal/model"
)

// Normalize builds the cache key for a request. Pure function, no I/O.
// The effective limit is part of the city key: a smaller-limit cached
// result cannot safely satisfy a larger-limit request.
func Normalize(req model.SearchRequest) string {
	switch req.Mode {
	case model.ModeAddress:
		return "address:" + canon(req.Address)
	case model.ModeCity:
		return fmt.Sprintf("city:%s|state:%s|limit:%d",
			canon(req.City),
			strings.ToUpper(strings.TrimSpace(req.State)),
			req.EffectiveLimit())
	default:
		return ""
	}
}

// canon lowercases, trims, and collapses interior whitespace runs.
func canon(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
