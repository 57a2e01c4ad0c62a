// Package lexicon holds the immutable, versioned vocabulary used for scoring:
// stop words, per-topic keyword dictionaries, high-value terms and weights.
package lexicon

import (
	_ "embed"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"newsrank/internal/textproc"
)

//go:embed default.yaml
var defaultData []byte

const (
	maxSpecificity   = 5.0
	defaultThreshold = 1
)

// Keyword is a lexicon term. Term is the canonical lower-case spelling,
// Phrase the normalized form used for whole-word matching.
type Keyword struct {
	Term        string
	Phrase      string
	Specificity float64
}

// Category is one topic with its keyword dictionary.
type Category struct {
	Name      string
	Weight    float64
	Threshold int
	Keywords  []Keyword
}

// Lexicon is safe for concurrent use; it is never mutated after Load.
type Lexicon struct {
	version    string
	categories []Category
	stopWords  map[string]bool
	highValue  []Keyword
	general    []Keyword
	prominence []Keyword
	byTopic    map[string]int
	byPhrase   map[string]Keyword
}

type fileFormat struct {
	Version     string             `yaml:"version"`
	StopWords   []string           `yaml:"stop_words"`
	HighValue   []string           `yaml:"high_value_keywords"`
	General     []string           `yaml:"general_keywords"`
	Prominence  []string           `yaml:"prominence_keywords"`
	Specificity map[string]float64 `yaml:"specificity"`
	Categories  []struct {
		Name      string   `yaml:"name"`
		Weight    float64  `yaml:"weight"`
		Threshold int      `yaml:"threshold"`
		Keywords  []string `yaml:"keywords"`
	} `yaml:"categories"`
}

var (
	defaultOnce sync.Once
	defaultLex  *Lexicon
	defaultErr  error
)

// Default returns the embedded lexicon.
func Default() (*Lexicon, error) {
	defaultOnce.Do(func() {
		defaultLex, defaultErr = Parse(defaultData)
	})
	return defaultLex, defaultErr
}

// MustDefault is Default for callers that cannot proceed without it.
func MustDefault() *Lexicon {
	lex, err := Default()
	if err != nil {
		panic(fmt.Sprintf("embedded lexicon is invalid: %v", err))
	}
	return lex
}

// Load reads a lexicon file. An empty path yields the embedded default.
func Load(path string) (*Lexicon, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read lexicon %s: %w", path, err)
	}
	lex, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load lexicon %s: %w", path, err)
	}
	return lex, nil
}

// Parse builds a lexicon from YAML.
func Parse(data []byte) (*Lexicon, error) {
	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse lexicon: %w", err)
	}

	if strings.TrimSpace(f.Version) == "" {
		return nil, errors.New("lexicon version is required")
	}
	if len(f.Categories) == 0 {
		return nil, errors.New("lexicon has no categories")
	}

	overrides := make(map[string]float64, len(f.Specificity))
	for term, value := range f.Specificity {
		if value < 0 {
			return nil, fmt.Errorf("negative specificity for %q", term)
		}
		overrides[strings.ToLower(strings.TrimSpace(term))] = value
	}

	lex := &Lexicon{
		version:   strings.TrimSpace(f.Version),
		stopWords: make(map[string]bool, len(f.StopWords)),
		byTopic:   make(map[string]int, len(f.Categories)),
		byPhrase:  make(map[string]Keyword),
	}

	for _, w := range f.StopWords {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			lex.stopWords[w] = true
		}
	}

	for i, c := range f.Categories {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return nil, fmt.Errorf("category %d has no name", i)
		}
		if _, dup := lex.byTopic[strings.ToLower(name)]; dup {
			return nil, fmt.Errorf("duplicate category %q", name)
		}
		if c.Weight <= 0 {
			return nil, fmt.Errorf("category %q must have a positive weight", name)
		}
		threshold := c.Threshold
		if threshold <= 0 {
			threshold = defaultThreshold
		}

		category := Category{Name: name, Weight: c.Weight, Threshold: threshold}
		seen := make(map[string]bool)
		for _, raw := range c.Keywords {
			kw, ok := newKeyword(raw, overrides)
			if !ok || seen[kw.Phrase] {
				continue
			}
			seen[kw.Phrase] = true
			category.Keywords = append(category.Keywords, kw)
			if _, exists := lex.byPhrase[kw.Phrase]; !exists {
				lex.byPhrase[kw.Phrase] = kw
			}
		}
		if len(category.Keywords) == 0 {
			return nil, fmt.Errorf("category %q has no keywords", name)
		}

		lex.byTopic[strings.ToLower(name)] = len(lex.categories)
		lex.categories = append(lex.categories, category)
	}

	lex.highValue = keywordList(f.HighValue, overrides)
	lex.prominence = keywordList(f.Prominence, overrides)
	lex.general = keywordList(f.General, overrides)
	for _, kw := range lex.general {
		if _, exists := lex.byPhrase[kw.Phrase]; !exists {
			lex.byPhrase[kw.Phrase] = kw
		}
	}

	return lex, nil
}

func keywordList(raw []string, overrides map[string]float64) []Keyword {
	var out []Keyword
	seen := make(map[string]bool)
	for _, r := range raw {
		kw, ok := newKeyword(r, overrides)
		if !ok || seen[kw.Phrase] {
			continue
		}
		seen[kw.Phrase] = true
		out = append(out, kw)
	}
	return out
}

func newKeyword(raw string, overrides map[string]float64) (Keyword, bool) {
	term := strings.ToLower(strings.TrimSpace(raw))
	phrase := textproc.Normalize(term)
	if phrase == "" {
		return Keyword{}, false
	}
	specificity, ok := overrides[term]
	if !ok {
		specificity = math.Min(float64(textproc.RuneLen(term))/2, maxSpecificity)
	}
	return Keyword{Term: term, Phrase: phrase, Specificity: specificity}, true
}

// Version identifies the lexicon contents; stored with every scored article.
func (l *Lexicon) Version() string {
	return l.version
}

// Categories returns the categories in declaration order.
func (l *Lexicon) Categories() []Category {
	out := make([]Category, len(l.categories))
	for i, c := range l.categories {
		c.Keywords = append([]Keyword(nil), c.Keywords...)
		out[i] = c
	}
	return out
}

// TopicNames returns the category names in declaration order.
func (l *Lexicon) TopicNames() []string {
	names := make([]string, len(l.categories))
	for i, c := range l.categories {
		names[i] = c.Name
	}
	return names
}

// Topic resolves a category name case-insensitively to its canonical form.
func (l *Lexicon) Topic(name string) (string, bool) {
	i, ok := l.byTopic[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return "", false
	}
	return l.categories[i].Name, true
}

// HighValue returns the curated impact terms.
func (l *Lexicon) HighValue() []Keyword {
	return append([]Keyword(nil), l.highValue...)
}

// General returns the domain-wide terms that score without assigning a topic.
func (l *Lexicon) General() []Keyword {
	return append([]Keyword(nil), l.general...)
}

// Prominence returns the terms that earn the title prominence bonus on
// their own.
func (l *Lexicon) Prominence() []Keyword {
	return append([]Keyword(nil), l.prominence...)
}

// IsStopWord reports whether the lower-cased word is a stop word.
func (l *Lexicon) IsStopWord(word string) bool {
	return l.stopWords[word]
}

// StopWords returns a copy of the stop-word set.
func (l *Lexicon) StopWords() map[string]bool {
	out := make(map[string]bool, len(l.stopWords))
	for w := range l.stopWords {
		out[w] = true
	}
	return out
}

// Specificity returns the weight of a lexicon phrase, or zero for words
// the lexicon does not know.
func (l *Lexicon) Specificity(phrase string) float64 {
	return l.byPhrase[phrase].Specificity
}

// Terms returns every distinct category and general keyword, sorted.
func (l *Lexicon) Terms() []string {
	terms := make([]string, 0, len(l.byPhrase))
	for _, kw := range l.byPhrase {
		terms = append(terms, kw.Term)
	}
	sort.Strings(terms)
	return terms
}
