package ingest

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Tokenizer limits.
const (
	DefaultMaxTokens   = 3000
	DefaultMaxTokenLen = 63
)

// Options configures a Tokenizer. Zero limits select the defaults.
type Options struct {
	Stopwords   []string
	Lowercase   bool
	MaxTokens   int
	MaxTokenLen int // in characters
}

// Tokenizer splits text on whitespace, commas and periods.
type Tokenizer struct {
	stopwords   map[string]struct{}
	lowercase   bool
	maxTokens   int
	maxTokenLen int
}

// NewTokenizer creates a tokenizer with the given stopword list and default limits
func NewTokenizer(stopwords []string) *Tokenizer {
	return NewTokenizerWithOptions(Options{Stopwords: stopwords})
}

// NewTokenizerWithOptions creates a tokenizer from opts.
func NewTokenizerWithOptions(opts Options) *Tokenizer {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultMaxTokens
	}
	if opts.MaxTokenLen <= 0 {
		opts.MaxTokenLen = DefaultMaxTokenLen
	}
	t := &Tokenizer{
		stopwords:   make(map[string]struct{}, len(opts.Stopwords)),
		lowercase:   opts.Lowercase,
		maxTokens:   opts.MaxTokens,
		maxTokenLen: opts.MaxTokenLen,
	}
	for _, w := range opts.Stopwords {
		t.stopwords[t.fold(norm.NFC.String(w))] = struct{}{}
	}
	return t
}

// Tokenize splits NFC-normalized text into tokens in order of appearance.
// Tokens longer than the length limit are truncated; tokenization stops
// once the token limit is reached.
func (t *Tokenizer) Tokenize(text string) []string {
	text = norm.NFC.String(text)

	var tokens []string
	for _, field := range strings.FieldsFunc(text, IsSeparator) {
		if len(tokens) >= t.maxTokens {
			break
		}
		word := t.processToken(field)
		if word != "" {
			tokens = append(tokens, word)
		}
	}
	return tokens
}

// processToken applies truncation, case folding and stopword filtering.
func (t *Tokenizer) processToken(token string) string {
	word := truncateRunes(token, t.maxTokenLen)
	word = t.fold(word)
	if t.isStopword(word) {
		return ""
	}
	return word
}

func (t *Tokenizer) fold(word string) string {
	if !t.lowercase {
		return word
	}
	// a Caser is stateful, one per call
	return cases.Lower(language.Und).String(word)
}

func (t *Tokenizer) isStopword(word string) bool {
	_, ok := t.stopwords[word]
	return ok
}

// IsSeparator reports whether r ends a token.
func IsSeparator(r rune) bool {
	return r == ',' || r == '.' || unicode.IsSpace(r)
}

func truncateRunes(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
