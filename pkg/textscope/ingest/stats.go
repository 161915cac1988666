package ingest

import (
	"unicode/utf8"

	"github.com/cognicore/textscope/pkg/textscope/store"
)

// ComputeStats aggregates token length metrics in characters. The average
// is truncated to an integer, as stored in the stats table.
func ComputeStats(tokens []string) store.TextStats {
	st := store.TextStats{TokenCount: len(tokens)}
	if len(tokens) == 0 {
		return st
	}

	total := 0
	st.MinLen = utf8.RuneCountInString(tokens[0])
	for _, tok := range tokens {
		n := utf8.RuneCountInString(tok)
		total += n
		if n > st.MaxLen {
			st.MaxLen = n
		}
		if n < st.MinLen {
			st.MinLen = n
		}
	}
	st.AvgLen = total / len(tokens)
	return st
}
