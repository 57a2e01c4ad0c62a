// Package dedup detects near-duplicate articles by comparing the stemmed
// significant words of their titles.
package dedup

import (
	"sort"
	"strings"

	"newsrank/internal/models"
	"newsrank/internal/textproc"
)

const (
	DefaultThreshold = 0.7
	minWordLength    = 3
)

// StopWordChecker is satisfied by *lexicon.Lexicon.
type StopWordChecker interface {
	IsStopWord(word string) bool
}

// Deduplicator compares titles pairwise. It keeps no state between calls.
type Deduplicator struct {
	stop      StopWordChecker
	threshold float64
}

// New creates a deduplicator. A non-positive threshold selects the default.
func New(stop StopWordChecker, threshold float64) *Deduplicator {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Deduplicator{stop: stop, threshold: threshold}
}

// Threshold returns the similarity above which titles are duplicates.
func (d *Deduplicator) Threshold() float64 {
	return d.threshold
}

// SignificantWords returns the set of stemmed, lower-cased title words that
// are not stop words and have at least three runes.
func (d *Deduplicator) SignificantWords(title string) map[string]struct{} {
	words := make(map[string]struct{})
	for _, token := range textproc.Tokens(title) {
		if textproc.RuneLen(token) < minWordLength || d.stop.IsStopWord(token) {
			continue
		}
		words[textproc.Stem(token)] = struct{}{}
	}
	return words
}

// Similarity is the Jaccard coefficient of the two titles' significant words.
func (d *Deduplicator) Similarity(a, b string) float64 {
	return jaccard(d.SignificantWords(a), d.SignificantWords(b), a, b)
}

func jaccard(a, b map[string]struct{}, rawA, rawB string) float64 {
	if len(a) == 0 && len(b) == 0 {
		// Titles made only of stop words are compared verbatim.
		if strings.EqualFold(strings.TrimSpace(rawA), strings.TrimSpace(rawB)) && strings.TrimSpace(rawA) != "" {
			return 1
		}
		return 0
	}
	intersection := 0
	for w := range a {
		if _, ok := b[w]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}

// IsDuplicate returns the best matching article in pool whose similarity to
// candidate exceeds threshold (the deduplicator's own when threshold <= 0).
// Equal similarities prefer higher relevance, then the earlier article, then
// the lower id.
func (d *Deduplicator) IsDuplicate(candidate string, pool []models.Article, threshold float64) (*models.SimilarArticle, bool) {
	if threshold <= 0 {
		threshold = d.threshold
	}
	matches := d.rank(candidate, pool, threshold, true)
	if len(matches) == 0 {
		return nil, false
	}
	return &matches[0], true
}

// Rank returns every pool article with similarity of at least minScore,
// ordered by similarity descending.
func (d *Deduplicator) Rank(title string, pool []models.Article, minScore float64) []models.SimilarArticle {
	return d.rank(title, pool, minScore, false)
}

func (d *Deduplicator) rank(title string, pool []models.Article, limit float64, strict bool) []models.SimilarArticle {
	words := d.SignificantWords(title)
	var matches []models.SimilarArticle
	for _, article := range pool {
		sim := jaccard(words, d.SignificantWords(article.Title), title, article.Title)
		if sim < limit || strict && sim == limit {
			continue
		}
		matches = append(matches, models.SimilarArticle{Article: article, Similarity: sim})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return better(matches[i], matches[j])
	})
	return matches
}

func better(a, b models.SimilarArticle) bool {
	if a.Similarity != b.Similarity {
		return a.Similarity > b.Similarity
	}
	if a.RelevanceScore != b.RelevanceScore {
		return a.RelevanceScore > b.RelevanceScore
	}
	ta, tb := a.EffectiveTime(), b.EffectiveTime()
	if !ta.Equal(tb) {
		return ta.Before(tb)
	}
	return a.ID < b.ID
}
