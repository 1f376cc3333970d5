package model

import "time"

// SearchCompletedEvent is published to Kafka after a search is served.
// Fire-and-forget: downstream consumers (analytics, audit) tolerate gaps.
type SearchCompletedEvent struct {
	SearchID    string     `json:"search_id"`
	Mode        SearchMode `json:"mode"`
	Query       string     `json:"query"`
	QueryKey    string     `json:"query_key,omitempty"`
	Source      string     `json:"source"`
	ResultCount int        `json:"result_count"`
	Cached      bool       `json:"cached"`
	Timestamp   time.Time  `json:"timestamp"`
}
