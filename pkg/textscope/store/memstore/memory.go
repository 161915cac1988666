package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"unicode/utf8"

	"github.com/cognicore/textscope/pkg/textscope/internalerr"
	"github.com/cognicore/textscope/pkg/textscope/store"
)

// Store is an in-memory implementation of store.Store and store.Writer for
// tests. Token rows keep insertion order, which is the tie-break order for
// frequency queries.
type Store struct {
	mu     sync.RWMutex
	nextID int64
	texts  map[int64]string
	tokens []tokenRow
	stats  map[int64]store.TextStats
}

type tokenRow struct {
	textID int64
	token  string
}

var (
	_ store.Store  = (*Store)(nil)
	_ store.Writer = (*Store)(nil)
)

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		nextID: 1,
		texts:  make(map[int64]string),
		stats:  make(map[int64]store.TextStats),
	}
}

// Close implements store.Store.
func (s *Store) Close() error { return nil }

// AddText stores a text under an explicit id. Later automatic ids continue
// after the highest id seen.
func (s *Store) AddText(id int64, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.texts[id] = content
	if id >= s.nextID {
		s.nextID = id + 1
	}
}

// AddTokens appends token rows for a text id. The id is not checked, so
// tests can build dangling references.
func (s *Store) AddTokens(textID int64, tokens ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, tok := range tokens {
		s.tokens = append(s.tokens, tokenRow{textID: textID, token: tok})
	}
}

// InsertAnalysis implements store.Writer.
func (s *Store) InsertAnalysis(ctx context.Context, content string, tokens []string, stats store.TextStats) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.texts[id] = content
	for _, tok := range tokens {
		s.tokens = append(s.tokens, tokenRow{textID: id, token: tok})
	}
	stats.TextID = id
	s.stats[id] = stats
	return id, nil
}

// TextExists implements store.Store.
func (s *Store) TextExists(ctx context.Context, id int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.texts[id]
	return ok, nil
}

// CountTexts implements store.Store.
func (s *Store) CountTexts(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return int64(len(s.texts)), nil
}

// CountTokens implements store.Store.
func (s *Store) CountTokens(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return int64(len(s.tokens)), nil
}

// LatestTexts implements store.Store.
func (s *Store) LatestTexts(ctx context.Context, limit int) ([]store.TextSummary, error) {
	if limit <= 0 {
		limit = store.DefaultLatestTexts
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []store.TextSummary
	for _, id := range s.idsDesc(limit) {
		out = append(out, store.TextSummary{
			ID:            id,
			ContentLength: int64(utf8.RuneCountInString(s.texts[id])),
		})
	}
	return out, nil
}

// RecentIDs implements store.Store.
func (s *Store) RecentIDs(ctx context.Context, limit int) ([]int64, error) {
	if limit <= 0 {
		limit = store.DefaultRecentIDs
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.idsDesc(limit), nil
}

func (s *Store) idsDesc(limit int) []int64 {
	ids := make([]int64, 0, len(s.texts))
	for id := range s.texts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] > ids[j] })
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids
}

// TextStats implements store.Store.
func (s *Store) TextStats(ctx context.Context, id int64) (store.TextStats, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.stats[id]
	return st, ok, nil
}

// TokenFrequencies implements store.Store.
func (s *Store) TokenFrequencies(ctx context.Context, textID int64, limit int) ([]store.TokenCount, error) {
	if limit <= 0 {
		limit = store.DefaultTopTokens
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int64)
	var order []string
	for _, row := range s.tokens {
		if row.textID != textID {
			continue
		}
		if _, seen := counts[row.token]; !seen {
			order = append(order, row.token)
		}
		counts[row.token]++
	}
	if len(order) > 0 {
		if err := s.ensureText(textID); err != nil {
			return nil, err
		}
	}

	out := make([]store.TokenCount, 0, len(order))
	for _, tok := range order {
		out = append(out, store.TokenCount{Token: tok, Count: counts[tok]})
	}
	// stable sort keeps first-seen order among equal counts
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// TokenLengthHistogram implements store.Store.
func (s *Store) TokenLengthHistogram(ctx context.Context, textID int64) ([]store.LengthBucket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byLen := make(map[int]int64)
	for _, row := range s.tokens {
		if row.textID == textID {
			byLen[utf8.RuneCountInString(row.token)]++
		}
	}
	if len(byLen) > 0 {
		if err := s.ensureText(textID); err != nil {
			return nil, err
		}
	}

	out := make([]store.LengthBucket, 0, len(byLen))
	for l, n := range byLen {
		out = append(out, store.LengthBucket{Length: l, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Length < out[j].Length })
	return out, nil
}

// AllTokenFrequencies implements store.Store.
func (s *Store) AllTokenFrequencies(ctx context.Context, textID int64) (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]int64)
	for _, row := range s.tokens {
		if row.textID == textID {
			out[row.token]++
		}
	}
	if len(out) > 0 {
		if err := s.ensureText(textID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// DanglingTextIDs implements store.Store.
func (s *Store) DanglingTextIDs(ctx context.Context) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[int64]struct{})
	var ids []int64
	for _, row := range s.tokens {
		if _, ok := s.texts[row.textID]; ok {
			continue
		}
		if _, dup := seen[row.textID]; dup {
			continue
		}
		seen[row.textID] = struct{}{}
		ids = append(ids, row.textID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// caller holds s.mu
func (s *Store) ensureText(textID int64) error {
	if _, ok := s.texts[textID]; !ok {
		return fmt.Errorf("%w: tokens reference missing text %d", internalerr.ErrDataInconsistency, textID)
	}
	return nil
}
