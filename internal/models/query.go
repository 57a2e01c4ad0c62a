package models

import (
	"math"
	"strings"
	"time"
)

// DuplicatePolicy decides what an insert does when the url already exists.
type DuplicatePolicy string

const (
	// PolicySkip keeps the first stored version (first writer wins).
	PolicySkip DuplicatePolicy = "skip"
	// PolicyUpdate overwrites with the latest version (last writer wins).
	PolicyUpdate DuplicatePolicy = "update"
)

// ParseDuplicatePolicy parses a policy name, defaulting to skip.
func ParseDuplicatePolicy(value string) DuplicatePolicy {
	if strings.EqualFold(strings.TrimSpace(value), string(PolicyUpdate)) {
		return PolicyUpdate
	}
	return PolicySkip
}

const (
	DefaultSearchLimit = 50
	MaxSearchLimit     = 500
)

// SearchFilter holds the conjunctive filters of a search. Zero values mean
// "no filter" except Limit, which falls back to DefaultSearchLimit.
type SearchFilter struct {
	Query        string     `json:"query,omitempty"`
	Sources      []string   `json:"sources,omitempty"`
	Topics       []string   `json:"topics,omitempty"`
	MinRelevance *float64   `json:"min_relevance,omitempty"`
	StartDate    *time.Time `json:"start_date,omitempty"`
	EndDate      *time.Time `json:"end_date,omitempty"`
	Limit        int        `json:"limit"`
	Offset       int        `json:"offset"`
}

// Validate checks ranges and pagination. It never touches storage.
func (f *SearchFilter) Validate(maxLimit int) error {
	if maxLimit <= 0 {
		maxLimit = MaxSearchLimit
	}
	if f.Limit < 0 {
		return &FilterError{Field: "limit", Reason: "must not be negative"}
	}
	if f.Limit > maxLimit {
		return &FilterError{Field: "limit", Reason: "exceeds maximum page size"}
	}
	if f.Offset < 0 {
		return &FilterError{Field: "offset", Reason: "must not be negative"}
	}
	if f.MinRelevance != nil && (math.IsNaN(*f.MinRelevance) || *f.MinRelevance < 0 || *f.MinRelevance > 100) {
		return &FilterError{Field: "min_relevance", Reason: "must be within [0, 100]"}
	}
	if f.StartDate != nil && f.EndDate != nil && f.StartDate.After(*f.EndDate) {
		return &FilterError{Field: "start_date", Reason: "is after end_date"}
	}
	for _, s := range f.Sources {
		if strings.TrimSpace(s) == "" {
			return &FilterError{Field: "sources", Reason: "contains an empty source"}
		}
	}
	return nil
}

// EffectiveLimit returns the page size to use.
func (f *SearchFilter) EffectiveLimit() int {
	if f.Limit == 0 {
		return DefaultSearchLimit
	}
	return f.Limit
}
