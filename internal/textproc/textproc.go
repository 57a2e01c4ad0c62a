// Package textproc holds the tokenization shared by the analyzer, the
// deduplicator and the text index, so that all three agree on what a word is.
package textproc

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"github.com/kljensen/snowball/english"
)

var (
	tokenPattern     = regexp.MustCompile(`[\p{L}\p{N}]+(?:-[\p{L}\p{N}]+)*`)
	tagPattern       = regexp.MustCompile(`<[a-zA-Z/!][^>]*>`)
	excessNewlines   = regexp.MustCompile(`\n{3,}`)
	excessSpaces     = regexp.MustCompile(`[ \t]{2,}`)
	htmlEntityMarker = regexp.MustCompile(`&[a-zA-Z]+;|&#[0-9]+;`)
)

// Normalize lower-cases text and replaces every run of non letter/digit
// characters with a single space. "GPT-4's" becomes "gpt 4 s".
func Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	space := true
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimRight(b.String(), " ")
}

// Padded returns the normalized text surrounded by single spaces so that
// whole-word phrase lookups can be done with plain substring search.
func Padded(text string) string {
	return " " + Normalize(text) + " "
}

// CountPhrase counts whole-word occurrences of an already normalized phrase
// inside a padded text. Overlapping occurrences are not counted twice.
func CountPhrase(padded, phrase string) int {
	if phrase == "" {
		return 0
	}
	return strings.Count(padded, " "+phrase+" ")
}

// Words splits normalized text into words.
func Words(text string) []string {
	return strings.Fields(Normalize(text))
}

// Tokens returns lower-cased tokens, keeping inner hyphens so that model
// names such as "gpt-5" survive as one token.
func Tokens(text string) []string {
	return tokenPattern.FindAllString(strings.ToLower(text), -1)
}

// Stem reduces a lower-cased word to its Snowball English stem.
func Stem(word string) string {
	return english.Stem(word, false)
}

// IsNumeric reports whether the token only contains digits.
func IsNumeric(token string) bool {
	for _, r := range token {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return token != ""
}

// RuneLen counts runes rather than bytes.
func RuneLen(s string) int {
	return len([]rune(s))
}

// IndexTerms produces stemmed index terms for a text. Hyphenated tokens are
// indexed whole and by part, so "gpt-4" is found by "gpt-4" and by "gpt".
func IndexTerms(text string, stopWords map[string]bool) []string {
	var terms []string
	for _, token := range Tokens(text) {
		terms = appendTerm(terms, token, stopWords)
		if strings.Contains(token, "-") {
			for _, part := range strings.Split(token, "-") {
				terms = appendTerm(terms, part, stopWords)
			}
		}
	}
	return terms
}

// QueryTerms turns a free-text query into the distinct terms that must all
// be present in a matching document.
func QueryTerms(query string, stopWords map[string]bool) []string {
	seen := make(map[string]bool)
	var terms []string
	for _, token := range Tokens(query) {
		var term []string
		term = appendTerm(term, token, stopWords)
		if len(term) == 0 || seen[term[0]] {
			continue
		}
		seen[term[0]] = true
		terms = append(terms, term[0])
	}
	return terms
}

func appendTerm(terms []string, token string, stopWords map[string]bool) []string {
	if RuneLen(token) < 2 || stopWords[token] {
		return terms
	}
	return append(terms, Stem(token))
}

// CleanContent turns possibly HTML-bearing feed content into plain text and
// squeezes excessive whitespace.
func CleanContent(content string) string {
	content = strings.TrimSpace(content)
	if content == "" {
		return content
	}

	if tagPattern.MatchString(content) || htmlEntityMarker.MatchString(content) {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(content)); err == nil {
			doc.Find("script, style, noscript").Remove()
			content = doc.Text()
		}
	}

	content = strings.ReplaceAll(content, " ", " ")
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = excessSpaces.ReplaceAllString(content, " ")
	content = excessNewlines.ReplaceAllString(content, "\n\n")
	return strings.TrimSpace(content)
}

// CleanTitle collapses a title onto one line.
func CleanTitle(title string) string {
	return strings.Join(strings.Fields(CleanContent(title)), " ")
}
