// Package textprep prepares corpus text for downstream topic modelling:
// tokenization with accent folding and an explicit stopword value.
package textprep

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/IshaanNene/pressgoat/internal/types"
)

// Token length bounds, inclusive.
const (
	MinTokenLen = 2
	MaxTokenLen = 15
)

// Boilerplate is the notice some newsrooms render in place of the body when
// scripts are disabled.
const Boilerplate = "Some parts of this page will not display.JavaScript is not available in this browser or may be turned off."

// Fold lowercases s and strips diacritics.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(folded)
}

// Tokenize splits text into folded alphabetic tokens within the length bounds.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(Fold(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	tokens := fields[:0]
	for _, f := range fields {
		if n := len([]rune(f)); n >= MinTokenLen && n <= MaxTokenLen {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// Stopwords is an immutable set of words and phrases removed before
// modelling. Build it once and pass it where needed.
type Stopwords struct {
	words   map[string]struct{}
	phrases []string
}

// NewStopwords builds a Stopwords value from single words and extra entries.
// Extra entries containing whitespace or punctuation are kept as phrases and
// removed from raw text by Clean.
func NewStopwords(words []string, extra ...string) Stopwords {
	sw := Stopwords{words: make(map[string]struct{}, len(words)+len(extra))}
	for _, w := range words {
		sw.words[Fold(w)] = struct{}{}
	}
	for _, e := range extra {
		if toks := Tokenize(e); len(toks) == 1 && toks[0] == Fold(strings.TrimSpace(e)) {
			sw.words[toks[0]] = struct{}{}
			continue
		}
		sw.phrases = append(sw.phrases, e)
	}
	return sw
}

// Default returns the English stopwords plus the newsroom boilerplate.
func Default() Stopwords {
	return NewStopwords(English, Boilerplate)
}

// With returns a copy of sw extended with words.
func (sw Stopwords) With(words ...string) Stopwords {
	out := Stopwords{
		words:   make(map[string]struct{}, len(sw.words)+len(words)),
		phrases: append([]string(nil), sw.phrases...),
	}
	for w := range sw.words {
		out.words[w] = struct{}{}
	}
	for _, w := range words {
		out.words[Fold(w)] = struct{}{}
	}
	return out
}

// WithGeo returns a copy of sw extended with the geo words of t.
func (sw Stopwords) WithGeo(t types.Table) Stopwords {
	return sw.With(GeoStopwords(t)...)
}

// Contains reports whether word is a stopword.
func (sw Stopwords) Contains(word string) bool {
	_, ok := sw.words[Fold(word)]
	return ok
}

// Len returns the number of single-word stopwords.
func (sw Stopwords) Len() int { return len(sw.words) }

// Clean removes the phrase entries from raw text.
func (sw Stopwords) Clean(text string) string {
	for _, p := range sw.phrases {
		text = strings.ReplaceAll(text, p, " ")
	}
	return text
}

// Filter drops stopwords from tokens.
func (sw Stopwords) Filter(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if _, ok := sw.words[tok]; !ok {
			out = append(out, tok)
		}
	}
	return out
}

// Terms cleans, tokenizes and filters one document.
func (sw Stopwords) Terms(text string) []string {
	return sw.Filter(Tokenize(sw.Clean(text)))
}

// GeoStopwords returns the sorted distinct lowercase words of the region and
// subregion columns of t.
func GeoStopwords(t types.Table) []string {
	set := make(map[string]struct{})
	for _, a := range t {
		for _, col := range []string{a.Region, a.Subregion} {
			for _, w := range strings.Fields(strings.ToLower(col)) {
				set[w] = struct{}{}
			}
		}
	}
	words := make([]string, 0, len(set))
	for w := range set {
		words = append(words, w)
	}
	sort.Strings(words)
	return words
}

// TermCount is one row of a frequency listing.
type TermCount struct {
	Term  string
	Count int
}

// TopTerms counts terms over the full text of t and returns the n most
// frequent, ties broken alphabetically. n <= 0 returns all terms.
func TopTerms(t types.Table, sw Stopwords, n int) []TermCount {
	counts := make(map[string]int)
	for _, a := range t {
		for _, term := range sw.Terms(a.SourceFullText) {
			counts[term]++
		}
	}
	out := make([]TermCount, 0, len(counts))
	for term, c := range counts {
		out = append(out, TermCount{Term: term, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Term < out[j].Term
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
