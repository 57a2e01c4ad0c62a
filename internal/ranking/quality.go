// Package ranking computes the advisory composite quality score used to
// order articles beyond raw relevance. It never changes stored scores.
package ranking

import (
	"math"
	"sort"
	"strings"
	"time"

	"newsrank/internal/models"
)

// Weights of the quality composite.
type Weights struct {
	Relevance float64
	Recency   float64
	Source    float64
}

// DefaultWeights favour relevance, then freshness, then source reputation.
var DefaultWeights = Weights{Relevance: 0.6, Recency: 0.3, Source: 0.1}

const (
	DefaultDecay      = 24 * time.Hour
	DefaultReputation = 1.0
)

// Scorer computes quality = wRel*relevance/100 + wRec*exp(-age/decay) +
// wSrc*reputation(source).
type Scorer struct {
	weights    Weights
	decay      time.Duration
	reputation map[string]float64
	now        func() time.Time
}

// Option configures a Scorer.
type Option func(*Scorer)

func WithWeights(w Weights) Option {
	return func(s *Scorer) { s.weights = w }
}

func WithDecay(d time.Duration) Option {
	return func(s *Scorer) {
		if d > 0 {
			s.decay = d
		}
	}
}

// WithReputation sets per-source reputations in [0,1]; unknown sources get
// DefaultReputation.
func WithReputation(rep map[string]float64) Option {
	return func(s *Scorer) {
		for source, value := range rep {
			s.reputation[strings.ToLower(source)] = math.Max(0, math.Min(value, 1))
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Scorer) { s.now = now }
}

func NewScorer(opts ...Option) *Scorer {
	s := &Scorer{
		weights:    DefaultWeights,
		decay:      DefaultDecay,
		reputation: make(map[string]float64),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Reputation of a source.
func (s *Scorer) Reputation(source string) float64 {
	if r, ok := s.reputation[strings.ToLower(source)]; ok {
		return r
	}
	return DefaultReputation
}

// Score computes the composite for one article.
func (s *Scorer) Score(article models.Article) float64 {
	age := s.now().Sub(article.EffectiveTime())
	if age < 0 {
		age = 0
	}
	recency := math.Exp(-age.Hours() / s.decay.Hours())
	return s.weights.Relevance*article.RelevanceScore/100 +
		s.weights.Recency*recency +
		s.weights.Source*s.Reputation(article.Source)
}

// Rank scores and orders articles by quality descending; ties keep relevance
// order, then the lower id.
func (s *Scorer) Rank(articles []models.Article) []models.RankedArticle {
	ranked := make([]models.RankedArticle, len(articles))
	for i, a := range articles {
		ranked[i] = models.RankedArticle{Article: a, Quality: s.Score(a)}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Quality != ranked[j].Quality {
			return ranked[i].Quality > ranked[j].Quality
		}
		if ranked[i].RelevanceScore != ranked[j].RelevanceScore {
			return ranked[i].RelevanceScore > ranked[j].RelevanceScore
		}
		return ranked[i].ID < ranked[j].ID
	})
	return ranked
}
