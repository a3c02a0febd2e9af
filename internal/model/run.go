package model

import "time"

// RunStatus tracks an ingestion run through its lifecycle.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// SourceStatus is the terminal state of one source within a run.
type SourceStatus string

const (
	SourceStatusComplete SourceStatus = "complete"
	SourceStatusFailed   SourceStatus = "failed"
	SourceStatusSkipped  SourceStatus = "skipped"
)

// SourceResult holds per-source counters for one ingestion run.
// Errors is bounded; TruncatedErrors counts the overflow.
type SourceResult struct {
	Source          string        `json:"source"`
	Status          SourceStatus  `json:"status"`
	Created         int           `json:"created"`
	Updated         int           `json:"updated"`
	Skipped         int           `json:"skipped"`
	Errors          []string      `json:"errors,omitempty"`
	TruncatedErrors int           `json:"truncated_errors,omitempty"`
	Duration        time.Duration `json:"duration"`
}

// IngestionRun is the persisted record of one orchestrator invocation.
type IngestionRun struct {
	ID        string         `json:"id"`
	Status    RunStatus      `json:"status"`
	Sources   []SourceResult `json:"sources,omitempty"`
	Error     string         `json:"error,omitempty"`
	StartedAt time.Time      `json:"started_at"`
	EndedAt   *time.Time     `json:"ended_at,omitempty"`
}

// TotalCreated sums created counters across sources.
func (r *IngestionRun) TotalCreated() int {
	n := 0
	for _, s := range r.Sources {
		n += s.Created
	}
	return n
}

// TotalUpdated sums updated counters across sources.
func (r *IngestionRun) TotalUpdated() int {
	n := 0
	for _, s := range r.Sources {
		n += s.Updated
	}
	return n
}
