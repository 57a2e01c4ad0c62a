// Package analyzer scores article text for AI relevance, assigns topic
// categories and extracts ranked keywords. Analysis is a pure function of
// the text and the lexicon.
package analyzer

import (
	"math"
	"sort"
	"strings"

	"newsrank/internal/lexicon"
	"newsrank/internal/models"
	"newsrank/internal/textproc"
)

const (
	titleCap        = 30.0
	contentCap      = 30.0
	topicCap        = 20.0
	highValueCap    = 15.0
	prominenceBonus = 5.0
	titleFactor     = 2.0
	densityFactor   = 3.0
	topicPoints     = 5.0
	highValuePts    = 3.0

	DefaultRelevanceFloor = 30.0
	DefaultMaxKeywords    = 20
)

// Analyzer is safe for concurrent use.
type Analyzer struct {
	lex         *lexicon.Lexicon
	categories  []lexicon.Category
	highValue   []lexicon.Keyword
	general     []lexicon.Keyword
	prominence  []lexicon.Keyword
	phrases     []lexicon.Keyword
	floor       float64
	maxKeywords int
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithRelevanceFloor sets the score above which an article counts as related.
func WithRelevanceFloor(floor float64) Option {
	return func(a *Analyzer) {
		a.floor = floor
	}
}

// WithMaxKeywords bounds the extracted keyword list.
func WithMaxKeywords(n int) Option {
	return func(a *Analyzer) {
		if n > 0 {
			a.maxKeywords = n
		}
	}
}

// New creates an analyzer over the given lexicon.
func New(lex *lexicon.Lexicon, opts ...Option) *Analyzer {
	a := &Analyzer{
		lex:         lex,
		categories:  lex.Categories(),
		highValue:   lex.HighValue(),
		general:     lex.General(),
		prominence:  lex.Prominence(),
		floor:       DefaultRelevanceFloor,
		maxKeywords: DefaultMaxKeywords,
	}
	for _, opt := range opts {
		opt(a)
	}
	for _, c := range a.categories {
		a.phrases = append(a.phrases, c.Keywords...)
	}
	a.phrases = append(a.phrases, a.general...)
	return a
}

// Lexicon returns the lexicon the analyzer scores with.
func (a *Analyzer) Lexicon() *lexicon.Lexicon {
	return a.lex
}

// Version is the lexicon version stamped on analyzed articles.
func (a *Analyzer) Version() string {
	return a.lex.Version()
}

// RelevanceFloor returns the configured floor.
func (a *Analyzer) RelevanceFloor() float64 {
	return a.floor
}

// Analyze scores one article. An empty title yields a zero analysis.
func (a *Analyzer) Analyze(title, content string) models.Analysis {
	titleText := textproc.Padded(title)
	if titleText == "  " {
		return models.Analysis{Topics: []string{}, Keywords: []string{}}
	}
	contentText := textproc.Padded(content)
	fullText := textproc.Padded(title + " " + content)

	var titleScore, topicScore float64
	var contentHits int
	inTitle := false

	titleSeen := make(map[string]bool)
	contentSeen := make(map[string]bool)
	topics := []string{}

	for _, category := range a.categories {
		hits := 0
		for _, kw := range category.Keywords {
			if textproc.CountPhrase(fullText, kw.Phrase) > 0 {
				hits++
			}
			if textproc.CountPhrase(titleText, kw.Phrase) > 0 {
				inTitle = true
				if !titleSeen[kw.Phrase] {
					titleSeen[kw.Phrase] = true
					titleScore += titleFactor * kw.Specificity
				}
			}
			if !contentSeen[kw.Phrase] {
				contentSeen[kw.Phrase] = true
				contentHits += textproc.CountPhrase(contentText, kw.Phrase)
			}
		}
		if hits > 0 {
			topicScore += topicPoints * category.Weight
		}
		if hits >= category.Threshold {
			topics = append(topics, category.Name)
		}
	}

	for _, kw := range a.general {
		if textproc.CountPhrase(titleText, kw.Phrase) > 0 {
			inTitle = true
			if !titleSeen[kw.Phrase] {
				titleSeen[kw.Phrase] = true
				titleScore += titleFactor * kw.Specificity
			}
		}
		if !contentSeen[kw.Phrase] {
			contentSeen[kw.Phrase] = true
			contentHits += textproc.CountPhrase(contentText, kw.Phrase)
		}
	}
	for _, kw := range a.prominence {
		if textproc.CountPhrase(titleText, kw.Phrase) > 0 {
			inTitle = true
			break
		}
	}

	var contentScore float64
	if words := len(textproc.Words(content)); words > 0 {
		density := float64(contentHits) / float64(words) * 100
		contentScore = math.Min(densityFactor*density, contentCap)
	}

	highValueHits := 0
	for _, kw := range a.highValue {
		if textproc.CountPhrase(fullText, kw.Phrase) > 0 {
			highValueHits++
		}
	}

	score := math.Min(titleScore, titleCap) +
		contentScore +
		math.Min(topicScore, topicCap) +
		math.Min(highValuePts*float64(highValueHits), highValueCap)
	if inTitle {
		score += prominenceBonus
	}
	score = math.Max(0, math.Min(score, 100))

	return models.Analysis{
		Score:     score,
		Topics:    topics,
		Keywords:  a.extractKeywords(title+" "+content, fullText),
		IsRelated: score > a.floor,
	}
}

type candidate struct {
	term  string
	freq  int
	first int
	rank  float64
}

// extractKeywords ranks plain tokens and matched lexicon phrases by
// frequency x (1 + specificity).
func (a *Analyzer) extractKeywords(text, padded string) []string {
	byTerm := make(map[string]*candidate)
	var order []*candidate

	add := func(term string, pos int) {
		if c, ok := byTerm[term]; ok {
			c.freq++
			return
		}
		c := &candidate{term: term, freq: 1, first: pos}
		byTerm[term] = c
		order = append(order, c)
	}

	// Positions count normalized words so tokens and phrases compare.
	pos := 0
	for _, token := range textproc.Tokens(text) {
		width := strings.Count(token, "-") + 1
		if textproc.RuneLen(token) >= 2 && !textproc.IsNumeric(token) && !a.lex.IsStopWord(token) {
			add(token, pos)
		}
		pos += width
	}

	seen := make(map[string]bool)
	for _, kw := range a.phrases {
		if seen[kw.Phrase] || byTerm[kw.Term] != nil {
			continue
		}
		seen[kw.Phrase] = true
		n := textproc.CountPhrase(padded, kw.Phrase)
		if n == 0 {
			continue
		}
		c := &candidate{term: kw.Term, freq: n, first: phrasePosition(padded, kw.Phrase)}
		byTerm[kw.Term] = c
		order = append(order, c)
	}

	for _, c := range order {
		spec := a.lex.Specificity(textproc.Normalize(c.term))
		c.rank = float64(c.freq) * (1 + spec)
	}

	sort.SliceStable(order, func(i, j int) bool {
		if order[i].rank != order[j].rank {
			return order[i].rank > order[j].rank
		}
		return order[i].first < order[j].first
	})

	n := len(order)
	if n > a.maxKeywords {
		n = a.maxKeywords
	}
	keywords := make([]string, n)
	for i := 0; i < n; i++ {
		keywords[i] = order[i].term
	}
	return keywords
}

// phrasePosition returns the word index at which phrase first occurs in
// the padded text.
func phrasePosition(padded, phrase string) int {
	idx := strings.Index(padded, " "+phrase+" ")
	if idx < 0 {
		return math.MaxInt32
	}
	return strings.Count(padded[1:idx+1], " ")
}
