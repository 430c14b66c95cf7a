package keyword

import (
	"regexp"
	"strings"
	"sync"
	"unicode"

	"github.com/aaaton/golem/v4"
	"github.com/aaaton/golem/v4/dicts/en"
)

// Set is an unordered collection of normalized keywords.
type Set map[string]struct{}

func NewSet(words ...string) Set {
	s := make(Set, len(words))
	for _, w := range words {
		s[w] = struct{}{}
	}
	return s
}

func (s Set) Has(word string) bool {
	_, ok := s[word]
	return ok
}

func (s Set) Words() []string {
	out := make([]string, 0, len(s))
	for w := range s {
		out = append(out, w)
	}
	return out
}

// Lemmatizer lists every dictionary lemma of a word, whatever its part of
// speech. golem's Lemmatizer satisfies it.
type Lemmatizer interface {
	Lemmas(word string) []string
}

// nounSuffixes are the plural detachment rules of wordnet's morphy for nouns.
// A lemma is only taken when one of them derives it from the token, so verb
// and adjective readings ("mining" -> "mine", "data" -> "datum") never win.
var nounSuffixes = []struct{ from, to string }{
	{"s", ""},
	{"ses", "s"},
	{"xes", "x"},
	{"zes", "z"},
	{"ches", "ch"},
	{"shes", "sh"},
	{"men", "man"},
	{"ies", "y"},
}

// clitics split off a token the way word_tokenize does, "einstein's" ->
// "einstein". The clitic itself is never a keyword.
var clitics = []string{"n't", "'s", "'re", "'ve", "'ll", "'d", "'m"}

var (
	curlyApostrophe = strings.NewReplacer("’", "'")
	stripMarks      = strings.NewReplacer("-", "", "'", "")
)

var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}]+(?:['’-][\p{L}\p{N}]+)*`)

const minKeywordLen = 3

type Extractor struct {
	lemmatizer Lemmatizer
}

func NewExtractor(l Lemmatizer) *Extractor {
	return &Extractor{lemmatizer: l}
}

var (
	defaultOnce      sync.Once
	defaultExtractor *Extractor
	defaultErr       error
)

// Default returns an extractor backed by the english golem dictionary. The
// dictionary is loaded once per process.
func Default() (*Extractor, error) {
	defaultOnce.Do(func() {
		l, err := golem.New(en.New())
		if err != nil {
			defaultErr = err
			return
		}
		defaultExtractor = NewExtractor(l)
	})
	return defaultExtractor, defaultErr
}

// Extract lowercases and tokenizes text, then keeps the alphanumeric tokens
// longer than two characters that are not stopwords, in noun lemma form.
// Keywords carry no hyphens or apostrophes, matching the normalized text
// OverlapRatio searches.
func (e *Extractor) Extract(text string) Set {
	out := make(Set)
	normalized := curlyApostrophe.Replace(strings.ToLower(text))
	for _, tok := range tokenPattern.FindAllString(normalized, -1) {
		tok = splitClitic(tok)
		if !isAlnum(stripMarks.Replace(tok)) {
			continue
		}
		if isStopword(tok) {
			continue
		}
		if len([]rune(tok)) < minKeywordLen {
			continue
		}
		out[stripMarks.Replace(e.lemma(tok))] = struct{}{}
	}
	return out
}

func splitClitic(tok string) string {
	for _, c := range clitics {
		if len(tok) > len(c) && strings.HasSuffix(tok, c) {
			return tok[:len(tok)-len(c)]
		}
	}
	return tok
}

// lemma picks the shortest of tok and its noun-rule lemmas the dictionary
// confirms.
func (e *Extractor) lemma(tok string) string {
	if e.lemmatizer == nil {
		return tok
	}
	known := NewSet(e.lemmatizer.Lemmas(tok)...)
	best := tok
	for _, r := range nounSuffixes {
		if !strings.HasSuffix(tok, r.from) {
			continue
		}
		cand := strings.TrimSuffix(tok, r.from) + r.to
		if cand == "" || !known.Has(cand) {
			continue
		}
		if len([]rune(cand)) < len([]rune(best)) {
			best = cand
		}
	}
	return best
}

func isAlnum(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
