package models

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestArticle_EffectiveTime(t *testing.T) {
	fetched := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	published := fetched.Add(-6 * time.Hour)

	article := Article{FetchedAt: fetched}
	if !article.EffectiveTime().Equal(fetched) {
		t.Errorf("Expected fetched time without published time, got %v", article.EffectiveTime())
	}

	article.PublishedAt = &published
	if !article.EffectiveTime().Equal(published) {
		t.Errorf("Expected published time, got %v", article.EffectiveTime())
	}

	zero := time.Time{}
	article.PublishedAt = &zero
	if !article.EffectiveTime().Equal(fetched) {
		t.Errorf("Expected zero published time to fall back to fetched time, got %v", article.EffectiveTime())
	}
}

func TestRoundScore(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{73.94, 73.9},
		{73.96, 74.0},
		{0, 0},
		{100, 100},
	}

	for _, tt := range tests {
		if got := RoundScore(tt.in); got != tt.want {
			t.Errorf("RoundScore(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}

	analysis := Analysis{Score: 42.26}
	if analysis.DisplayScore() != 42.3 {
		t.Errorf("Expected display score 42.3, got %v", analysis.DisplayScore())
	}
}

func TestIndexHealth_Consistent(t *testing.T) {
	if !(IndexHealth{Articles: 3, Indexed: 3}).Consistent() {
		t.Error("Expected fully indexed corpus to be consistent")
	}
	if (IndexHealth{Articles: 3, Indexed: 2, Missing: 1}).Consistent() {
		t.Error("Expected missing index rows to be inconsistent")
	}
	if (IndexHealth{Articles: 3, Indexed: 4, Orphans: 1}).Consistent() {
		t.Error("Expected orphan index rows to be inconsistent")
	}
}

func TestParseDuplicatePolicy(t *testing.T) {
	tests := map[string]DuplicatePolicy{
		"update":   PolicyUpdate,
		" UPDATE ": PolicyUpdate,
		"skip":     PolicySkip,
		"":         PolicySkip,
		"merge":    PolicySkip,
	}

	for in, want := range tests {
		if got := ParseDuplicatePolicy(in); got != want {
			t.Errorf("ParseDuplicatePolicy(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSearchFilter_Validate(t *testing.T) {
	now := time.Now()
	earlier := now.Add(-time.Hour)
	negative := -1.0
	tooHigh := 101.0
	ok := 50.0
	nan := math.NaN()
	inf := math.Inf(1)
	negInf := math.Inf(-1)

	tests := []struct {
		name    string
		filter  SearchFilter
		field   string
		wantErr bool
	}{
		{name: "empty filter", filter: SearchFilter{}},
		{name: "valid range", filter: SearchFilter{StartDate: &earlier, EndDate: &now, MinRelevance: &ok, Limit: 10}},
		{name: "start after end", filter: SearchFilter{StartDate: &now, EndDate: &earlier}, field: "start_date", wantErr: true},
		{name: "negative limit", filter: SearchFilter{Limit: -1}, field: "limit", wantErr: true},
		{name: "limit too large", filter: SearchFilter{Limit: MaxSearchLimit + 1}, field: "limit", wantErr: true},
		{name: "negative offset", filter: SearchFilter{Offset: -5}, field: "offset", wantErr: true},
		{name: "negative relevance", filter: SearchFilter{MinRelevance: &negative}, field: "min_relevance", wantErr: true},
		{name: "NaN relevance", filter: SearchFilter{MinRelevance: &nan}, field: "min_relevance", wantErr: true},
		{name: "infinite relevance", filter: SearchFilter{MinRelevance: &inf}, field: "min_relevance", wantErr: true},
		{name: "negative infinite relevance", filter: SearchFilter{MinRelevance: &negInf}, field: "min_relevance", wantErr: true},
		{name: "relevance above 100", filter: SearchFilter{MinRelevance: &tooHigh}, field: "min_relevance", wantErr: true},
		{name: "blank source", filter: SearchFilter{Sources: []string{"ArXiv", " "}}, field: "sources", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.filter.Validate(MaxSearchLimit)
			if !tt.wantErr {
				if err != nil {
					t.Errorf("Expected no error, got %v", err)
				}
				return
			}
			if !errors.Is(err, ErrInvalidFilter) {
				t.Fatalf("Expected ErrInvalidFilter, got %v", err)
			}
			var fe *FilterError
			if !errors.As(err, &fe) || fe.Field != tt.field {
				t.Errorf("Expected field %q, got %v", tt.field, err)
			}
		})
	}
}

func TestSearchFilter_EffectiveLimit(t *testing.T) {
	f := SearchFilter{}
	if f.EffectiveLimit() != DefaultSearchLimit {
		t.Errorf("Expected default limit %d, got %d", DefaultSearchLimit, f.EffectiveLimit())
	}
	f.Limit = 7
	if f.EffectiveLimit() != 7 {
		t.Errorf("Expected limit 7, got %d", f.EffectiveLimit())
	}
}
