// Package analytics records query events. The search service tracks one
// QueryEvent per request; a Collector batches them to Kafka and an
// Aggregator folds them into running statistics, either in process or by
// consuming the Kafka topic.
package analytics

import "time"

type EventType string

const (
	EventQuery      EventType = "query"
	EventZeroResult EventType = "zero_result"
	EventError      EventType = "error"
)

// QueryEvent describes one evaluated query.
type QueryEvent struct {
	Type       EventType `json:"type"`
	Query      string    `json:"query"`
	Model      string    `json:"model"`
	Requested  int       `json:"requested"`
	Returned   int       `json:"returned"`
	Candidates int       `json:"candidates"`
	OOVTerms   []string  `json:"oov_terms,omitempty"`
	LatencyMs  int64     `json:"latency_ms"`
	CacheHit   bool      `json:"cache_hit"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	RequestID  string    `json:"request_id,omitempty"`
}

// Classify sets Type from the outcome fields.
func (e *QueryEvent) Classify() {
	switch {
	case e.Error != "":
		e.Type = EventError
	case e.Returned == 0:
		e.Type = EventZeroResult
	default:
		e.Type = EventQuery
	}
}
