package model

import "time"

// SearchMode discriminates the two supported query shapes.
type SearchMode string

const (
	ModeAddress SearchMode = "address"
	ModeCity    SearchMode = "city"
)

// IsValid reports whether the mode is one of the two recognized shapes.
func (m SearchMode) IsValid() bool {
	return m == ModeAddress || m == ModeCity
}

// SearchRequest is the inbound /v1/search payload. Exactly one of the two
// shapes is present, discriminated by Mode: address mode carries Address,
// city mode carries City/State/Limit.
type SearchRequest struct {
	Mode    SearchMode `json:"mode" validate:"required"`
	Address string     `json:"address,omitempty" validate:"required_if=Mode address,omitempty,min=5"`
	City    string     `json:"city,omitempty" validate:"required_if=Mode city,omitempty,min=2"`
	State   string     `json:"state,omitempty" validate:"required_if=Mode city,omitempty,min=2,max=50"`
	Limit   int        `json:"limit,omitempty" validate:"omitempty,min=1,max=100"`
}

// DefaultCityLimit is applied when a city-mode request omits Limit.
const DefaultCityLimit = 100

// EffectiveLimit returns the request limit clamped to [1,100], defaulting
// to DefaultCityLimit when unset.
func (r SearchRequest) EffectiveLimit() int {
	if r.Limit <= 0 {
		return DefaultCityLimit
	}
	if r.Limit > 100 {
		return 100
	}
	return r.Limit
}

// QueryText returns the original user-facing query string for persistence.
func (r SearchRequest) QueryText() string {
	if r.Mode == ModeAddress {
		return r.Address
	}
	return r.City + ", " + r.State
}

// PropertyListing is the canonical, provider-independent listing shape.
// The optional numerics are pointers: an unknown price is nil, not zero.
type PropertyListing struct {
	Source      string     `json:"source"`
	SourceID    string     `json:"sourceId"`
	Address     string     `json:"address"`
	Price       *float64   `json:"price,omitempty"`
	Beds        *float64   `json:"beds,omitempty"`
	Baths       *float64   `json:"baths,omitempty"`
	Sqft        *float64   `json:"sqft,omitempty"`
	Photos      []string   `json:"photos"`
	RetrievedAt *time.Time `json:"retrievedAt,omitempty"`
}

// SearchRecord is the persisted search, owning its listing set. Records are
// created whole on a cache miss and never updated in place.
type SearchRecord struct {
	ID          string            `json:"id"`
	Mode        SearchMode        `json:"mode"`
	Query       string            `json:"query"`
	QueryKey    string            `json:"queryKey,omitempty"` // records persisted before cache support may lack it
	Source      string            `json:"source"`
	ResultCount int               `json:"resultCount"`
	CreatedAt   time.Time         `json:"createdAt"`
	RetrievedAt time.Time         `json:"retrievedAt"`
	Properties  []PropertyListing `json:"properties"`
}

// CachePointer indexes the most recent search for a (mode, queryKey) pair.
// It is a performance shortcut only: staleness or absence means a cache
// miss, never a wrong result.
type CachePointer struct {
	SearchID  string    `json:"searchId"`
	UpdatedAt time.Time `json:"updatedAt"`
}
