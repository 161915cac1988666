package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/cognicore/textscope/pkg/textscope/internalerr"
	"github.com/cognicore/textscope/pkg/textscope/store"
)

// SQLiteStore implements store.Store and store.Writer on a SQLite corpus.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

var (
	_ store.Store  = (*SQLiteStore)(nil)
	_ store.Writer = (*SQLiteStore)(nil)
)

// Options tunes OpenSQLite.
type Options struct {
	Logger *slog.Logger
}

// OpenSQLite opens the corpus at path with WAL mode and foreign keys enabled,
// applies migrations and validates the schema. Any failure is reported as
// internalerr.ErrStoreUnavailable.
func OpenSQLite(ctx context.Context, path string, opts ...Options) (*SQLiteStore, error) {
	var o Options
	if len(opts) > 0 {
		o = opts[0]
	}
	logger := o.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger = logger.With("component", "store")

	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, unavailable("open", err)
	}

	// WAL lets report queries read while the analyzer writes
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, unavailable("enable WAL", err)
	}

	if err := migrate(ctx, db); err != nil {
		db.Close()
		return nil, unavailable("migrate", err)
	}

	if err := validateSchema(ctx, db); err != nil {
		db.Close()
		return nil, unavailable("validate schema", err)
	}

	logger.Debug("corpus store opened", "path", path)
	return &SQLiteStore{db: db, path: path, logger: logger}, nil
}

// dsn adds per-connection pragmas; they must be set on every pooled
// connection, not once on the first.
func dsn(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, internalerr.ErrStoreUnavailable, err)
}

// Path returns the database path the store was opened with.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// TextExists reports whether a text row with the given id exists.
func (s *SQLiteStore) TextExists(ctx context.Context, id int64) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM texts WHERE id = ?`, id).Scan(&n)
	if err != nil {
		return false, unavailable("text exists", err)
	}
	return n > 0, nil
}

// CountTexts returns the number of stored texts.
func (s *SQLiteStore) CountTexts(ctx context.Context) (int64, error) {
	return s.count(ctx, "count texts", `SELECT COUNT(*) FROM texts`)
}

// CountTokens returns the number of stored token rows.
func (s *SQLiteStore) CountTokens(ctx context.Context) (int64, error) {
	return s.count(ctx, "count tokens", `SELECT COUNT(*) FROM tokens`)
}

func (s *SQLiteStore) count(ctx context.Context, op, query string) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, unavailable(op, err)
	}
	return n, nil
}

// LatestTexts returns the newest texts with their content length in characters.
func (s *SQLiteStore) LatestTexts(ctx context.Context, limit int) ([]store.TextSummary, error) {
	if limit <= 0 {
		limit = store.DefaultLatestTexts
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT id, LENGTH(content)
FROM texts
ORDER BY id DESC
LIMIT ?;
`, limit)
	if err != nil {
		return nil, unavailable("latest texts", err)
	}
	defer rows.Close()

	var out []store.TextSummary
	for rows.Next() {
		var ts store.TextSummary
		if err := rows.Scan(&ts.ID, &ts.ContentLength); err != nil {
			return nil, unavailable("latest texts", err)
		}
		out = append(out, ts)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("latest texts", err)
	}
	return out, nil
}

// RecentIDs returns the newest text identifiers.
func (s *SQLiteStore) RecentIDs(ctx context.Context, limit int) ([]int64, error) {
	if limit <= 0 {
		limit = store.DefaultRecentIDs
	}

	ids, err := s.loadIDs(ctx, `SELECT id FROM texts ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, unavailable("recent ids", err)
	}
	return ids, nil
}

// TextStats returns the analyzer metrics recorded for a text.
func (s *SQLiteStore) TextStats(ctx context.Context, id int64) (store.TextStats, bool, error) {
	var st store.TextStats
	err := s.db.QueryRowContext(ctx, `
SELECT text_id, COALESCE(token_count, 0), COALESCE(avg_len, 0), COALESCE(max_len, 0), COALESCE(min_len, 0)
FROM stats
WHERE text_id = ?;
`, id).Scan(&st.TextID, &st.TokenCount, &st.AvgLen, &st.MaxLen, &st.MinLen)
	if err == sql.ErrNoRows {
		return store.TextStats{}, false, nil
	}
	if err != nil {
		return store.TextStats{}, false, unavailable("text stats", err)
	}
	return st, true, nil
}

// TokenFrequencies counts token occurrences for a text. Ties keep the order
// in which tokens first appear in the table.
func (s *SQLiteStore) TokenFrequencies(ctx context.Context, textID int64, limit int) ([]store.TokenCount, error) {
	if limit <= 0 {
		limit = store.DefaultTopTokens
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT token, COUNT(*) AS freq
FROM tokens
WHERE text_id = ?
GROUP BY token
ORDER BY freq DESC, MIN(id) ASC
LIMIT ?;
`, textID, limit)
	if err != nil {
		return nil, unavailable("token frequencies", err)
	}
	defer rows.Close()

	var out []store.TokenCount
	for rows.Next() {
		var tc store.TokenCount
		if err := rows.Scan(&tc.Token, &tc.Count); err != nil {
			return nil, unavailable("token frequencies", err)
		}
		out = append(out, tc)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("token frequencies", err)
	}

	if len(out) > 0 {
		if err := s.ensureText(ctx, textID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// TokenLengthHistogram groups a text's tokens by character length.
func (s *SQLiteStore) TokenLengthHistogram(ctx context.Context, textID int64) ([]store.LengthBucket, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT LENGTH(token) AS token_length, COUNT(*)
FROM tokens
WHERE text_id = ?
GROUP BY token_length
ORDER BY token_length ASC;
`, textID)
	if err != nil {
		return nil, unavailable("token length histogram", err)
	}
	defer rows.Close()

	var out []store.LengthBucket
	for rows.Next() {
		var b store.LengthBucket
		if err := rows.Scan(&b.Length, &b.Count); err != nil {
			return nil, unavailable("token length histogram", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("token length histogram", err)
	}

	if len(out) > 0 {
		if err := s.ensureText(ctx, textID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// AllTokenFrequencies returns the unbounded token -> count map of a text.
func (s *SQLiteStore) AllTokenFrequencies(ctx context.Context, textID int64) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT token, COUNT(*)
FROM tokens
WHERE text_id = ?
GROUP BY token;
`, textID)
	if err != nil {
		return nil, unavailable("all token frequencies", err)
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var (
			tok string
			n   int64
		)
		if err := rows.Scan(&tok, &n); err != nil {
			return nil, unavailable("all token frequencies", err)
		}
		out[tok] = n
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("all token frequencies", err)
	}

	if len(out) > 0 {
		if err := s.ensureText(ctx, textID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// DanglingTextIDs lists text ids referenced by tokens but missing from texts.
func (s *SQLiteStore) DanglingTextIDs(ctx context.Context) ([]int64, error) {
	ids, err := s.loadIDs(ctx, `
SELECT DISTINCT t.text_id
FROM tokens t
LEFT JOIN texts x ON x.id = t.text_id
WHERE x.id IS NULL
ORDER BY t.text_id;
`)
	if err != nil {
		return nil, unavailable("dangling text ids", err)
	}
	return ids, nil
}

// InsertAnalysis stores a text, its tokens (with positions) and its stats in
// a single transaction and returns the new text id.
func (s *SQLiteStore) InsertAnalysis(ctx context.Context, content string, tokens []string, stats store.TextStats) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, unavailable("begin analysis", err)
	}
	defer tx.Rollback()

	var textID int64
	err = tx.QueryRowContext(ctx, `INSERT INTO texts (content) VALUES (?) RETURNING id;`, content).Scan(&textID)
	if err != nil {
		return 0, unavailable("insert text", err)
	}

	if err := insertTokens(ctx, tx, textID, tokens); err != nil {
		return 0, unavailable("insert tokens", err)
	}

	_, err = tx.ExecContext(ctx, `
INSERT INTO stats (text_id, token_count, avg_len, max_len, min_len)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(text_id) DO UPDATE SET
	token_count=excluded.token_count,
	avg_len=excluded.avg_len,
	max_len=excluded.max_len,
	min_len=excluded.min_len;
`, textID, stats.TokenCount, stats.AvgLen, stats.MaxLen, stats.MinLen)
	if err != nil {
		return 0, unavailable("insert stats", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, unavailable("commit analysis", err)
	}

	s.logger.Debug("analysis stored", "text_id", textID, "tokens", len(tokens))
	return textID, nil
}

func insertTokens(ctx context.Context, tx *sql.Tx, textID int64, tokens []string) error {
	if len(tokens) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO tokens (text_id, token, position) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, tok := range tokens {
		if _, err := stmt.ExecContext(ctx, textID, tok, i); err != nil {
			return err
		}
	}
	return nil
}

// ensureText reports token rows whose text row is missing.
func (s *SQLiteStore) ensureText(ctx context.Context, textID int64) error {
	ok, err := s.TextExists(ctx, textID)
	if err != nil {
		return err
	}
	if !ok {
		s.logger.Warn("tokens reference missing text", "text_id", textID)
		return fmt.Errorf("%w: tokens reference missing text %d", internalerr.ErrDataInconsistency, textID)
	}
	return nil
}

func (s *SQLiteStore) loadIDs(ctx context.Context, query string, args ...interface{}) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
