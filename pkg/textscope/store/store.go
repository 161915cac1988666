package store

import (
	"context"
)

// Defaults applied when a query is called with limit <= 0.
const (
	DefaultTopTokens   = 15
	DefaultLatestTexts = 5
	DefaultRecentIDs   = 10
)

// Store is the read side of the corpus. Text and token rows are written by
// the external analyzer process; this interface never mutates them.
type Store interface {
	Close() error

	// Texts
	TextExists(ctx context.Context, id int64) (bool, error)
	CountTexts(ctx context.Context) (int64, error)
	LatestTexts(ctx context.Context, limit int) ([]TextSummary, error)
	RecentIDs(ctx context.Context, limit int) ([]int64, error)
	TextStats(ctx context.Context, id int64) (TextStats, bool, error)

	// Tokens
	CountTokens(ctx context.Context) (int64, error)
	TokenFrequencies(ctx context.Context, textID int64, limit int) ([]TokenCount, error)
	TokenLengthHistogram(ctx context.Context, textID int64) ([]LengthBucket, error)
	AllTokenFrequencies(ctx context.Context, textID int64) (map[string]int64, error)

	// Integrity
	DanglingTextIDs(ctx context.Context) ([]int64, error)
}

// Writer persists one analyzed text. Only the analyzer executable uses it.
type Writer interface {
	InsertAnalysis(ctx context.Context, content string, tokens []string, stats TextStats) (int64, error)
}

// TextSummary is one row of the latest-texts listing
type TextSummary struct {
	ID            int64
	ContentLength int64 // characters
}

// TokenCount is a token with its number of occurrences in one text
type TokenCount struct {
	Token string
	Count int64
}

// LengthBucket counts the tokens of a given character length
type LengthBucket struct {
	Length int
	Count  int64
}

// TextStats holds the aggregate token metrics the analyzer records per text.
type TextStats struct {
	TextID     int64
	TokenCount int
	AvgLen     int
	MaxLen     int
	MinLen     int
}
