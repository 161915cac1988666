package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/textscope/pkg/textscope/internalerr"
	"github.com/cognicore/textscope/pkg/textscope/store"
)

func openTestStore(t *testing.T) (*SQLiteStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "analysis.db")
	st, err := OpenSQLite(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st, path
}

// rawExec runs statements on a separate connection without foreign keys,
// the way an external writer could.
func rawExec(t *testing.T, path string, stmts ...string) {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()
	for _, q := range stmts {
		_, err := db.Exec(q)
		require.NoError(t, err, q)
	}
}

func TestOpenSQLiteCreatesSchema(t *testing.T) {
	st, _ := openTestStore(t)
	ctx := context.Background()

	n, err := st.CountTexts(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	version, err := st.MigrationVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)
}

func TestOpenSQLiteIdempotent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "analysis.db")

	for i := 0; i < 3; i++ {
		st, err := OpenSQLite(ctx, path)
		require.NoError(t, err, "open iteration %d", i)
		require.NoError(t, st.Close())
	}
}

func TestOpenSQLiteAdoptsLegacyCorpus(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "analysis.db")
	rawExec(t, path,
		`CREATE TABLE texts (id INTEGER PRIMARY KEY AUTOINCREMENT, content TEXT NOT NULL)`,
		`CREATE TABLE tokens (id INTEGER PRIMARY KEY AUTOINCREMENT, text_id INTEGER NOT NULL, token TEXT NOT NULL, position INTEGER, FOREIGN KEY(text_id) REFERENCES texts(id))`,
		`INSERT INTO texts (id, content) VALUES (3, 'hello world')`,
		`INSERT INTO tokens (text_id, token, position) VALUES (3, 'hello', 0), (3, 'world', 1)`,
	)

	st, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer st.Close()

	ok, err := st.TextExists(ctx, 3)
	require.NoError(t, err)
	assert.True(t, ok)

	n, err := st.CountTokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestOpenSQLiteMalformedSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "analysis.db")
	rawExec(t, path, `CREATE TABLE texts (id INTEGER PRIMARY KEY, body TEXT)`)

	_, err := OpenSQLite(context.Background(), path)
	require.Error(t, err)
	assert.ErrorIs(t, err, internalerr.ErrStoreUnavailable)
}

func TestTokenQueriesExample(t *testing.T) {
	st, path := openTestStore(t)
	ctx := context.Background()
	rawExec(t, path,
		`INSERT INTO texts (id, content) VALUES (7, 'abc')`,
		`INSERT INTO tokens (text_id, token) VALUES (7, 'a'), (7, 'a'), (7, 'b')`,
	)

	freqs, err := st.TokenFrequencies(ctx, 7, 15)
	require.NoError(t, err)
	assert.Equal(t, []store.TokenCount{{Token: "a", Count: 2}, {Token: "b", Count: 1}}, freqs)

	hist, err := st.TokenLengthHistogram(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, []store.LengthBucket{{Length: 1, Count: 3}}, hist)

	all, err := st.AllTokenFrequencies(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"a": 2, "b": 1}, all)
}

func TestTokenFrequenciesOrderingAndLimit(t *testing.T) {
	st, _ := openTestStore(t)
	ctx := context.Background()

	var tokens []string
	// 20 distinct tokens; "t05" and "t12" repeated, then ties in first-seen order
	for i := 0; i < 20; i++ {
		tokens = append(tokens, tokenName(i))
	}
	tokens = append(tokens, "t12", "t05", "t12")
	id, err := st.InsertAnalysis(ctx, "synthetic", tokens, store.TextStats{TokenCount: len(tokens)})
	require.NoError(t, err)

	first, err := st.TokenFrequencies(ctx, id, 15)
	require.NoError(t, err)
	require.Len(t, first, 15)

	assert.Equal(t, store.TokenCount{Token: "t12", Count: 3}, first[0])
	assert.Equal(t, store.TokenCount{Token: "t05", Count: 2}, first[1])
	assert.Equal(t, "t00", first[2].Token)
	assert.Equal(t, "t01", first[3].Token)
	for i := 1; i < len(first); i++ {
		assert.LessOrEqual(t, first[i].Count, first[i-1].Count)
	}

	again, err := st.TokenFrequencies(ctx, id, 15)
	require.NoError(t, err)
	assert.Equal(t, first, again)
}

func TestTokenLengthHistogramCountsCharacters(t *testing.T) {
	st, _ := openTestStore(t)
	ctx := context.Background()

	id, err := st.InsertAnalysis(ctx, "文本 分析 abc de", []string{"文本", "分析", "abc", "de"}, store.TextStats{})
	require.NoError(t, err)

	hist, err := st.TokenLengthHistogram(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []store.LengthBucket{{Length: 2, Count: 3}, {Length: 3, Count: 1}}, hist)
	for i := 1; i < len(hist); i++ {
		assert.Greater(t, hist[i].Length, hist[i-1].Length)
	}
}

func TestEmptyTextHasNoTokenData(t *testing.T) {
	st, _ := openTestStore(t)
	ctx := context.Background()

	id, err := st.InsertAnalysis(ctx, "   ", nil, store.TextStats{})
	require.NoError(t, err)

	freqs, err := st.TokenFrequencies(ctx, id, 15)
	require.NoError(t, err)
	assert.Empty(t, freqs)

	hist, err := st.TokenLengthHistogram(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, hist)
}

func TestLatestTextsAndRecentIDs(t *testing.T) {
	st, _ := openTestStore(t)
	ctx := context.Background()

	for _, content := range []string{"one", "two words", "three", "four", "five", "six", "seven"} {
		_, err := st.InsertAnalysis(ctx, content, []string{content}, store.TextStats{})
		require.NoError(t, err)
	}

	latest, err := st.LatestTexts(ctx, 0)
	require.NoError(t, err)
	require.Len(t, latest, store.DefaultLatestTexts)
	assert.Equal(t, store.TextSummary{ID: 7, ContentLength: 5}, latest[0])
	for i := 1; i < len(latest); i++ {
		assert.Greater(t, latest[i-1].ID, latest[i].ID)
	}

	ids, err := st.RecentIDs(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, []int64{7, 6, 5}, ids)

	id, err := st.InsertAnalysis(ctx, "newest", []string{"newest"}, store.TextStats{})
	require.NoError(t, err)

	ids, err = st.RecentIDs(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, id, ids[0])
}

func TestInsertAnalysisStoresPositionsAndStats(t *testing.T) {
	st, _ := openTestStore(t)
	ctx := context.Background()

	stats := store.TextStats{TokenCount: 3, AvgLen: 2, MaxLen: 3, MinLen: 1}
	id, err := st.InsertAnalysis(ctx, "a bb ccc", []string{"a", "bb", "ccc"}, stats)
	require.NoError(t, err)

	got, ok, err := st.TextStats(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	stats.TextID = id
	assert.Equal(t, stats, got)

	var pos int
	err = st.db.QueryRowContext(ctx, `SELECT position FROM tokens WHERE text_id = ? AND token = 'ccc'`, id).Scan(&pos)
	require.NoError(t, err)
	assert.Equal(t, 2, pos)

	_, ok, err = st.TextStats(ctx, id+100)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDanglingReferences(t *testing.T) {
	st, path := openTestStore(t)
	ctx := context.Background()
	rawExec(t, path, `INSERT INTO tokens (text_id, token) VALUES (99, 'orphan'), (99, 'orphan'), (42, 'x')`)

	ids, err := st.DanglingTextIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{42, 99}, ids)

	_, err = st.TokenFrequencies(ctx, 99, 15)
	assert.ErrorIs(t, err, internalerr.ErrDataInconsistency)

	_, err = st.TokenLengthHistogram(ctx, 99)
	assert.ErrorIs(t, err, internalerr.ErrDataInconsistency)

	_, err = st.AllTokenFrequencies(ctx, 99)
	assert.ErrorIs(t, err, internalerr.ErrDataInconsistency)
}

func TestConcurrentReads(t *testing.T) {
	st, _ := openTestStore(t)
	ctx := context.Background()

	id, err := st.InsertAnalysis(ctx, "x y x", []string{"x", "y", "x"}, store.TextStats{})
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := st.TokenFrequencies(ctx, id, 15)
			errs <- err
		}()
		go func() {
			defer wg.Done()
			_, err := st.LatestTexts(ctx, 5)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
}

func TestQueryFailuresAreStoreUnavailable(t *testing.T) {
	tests := []struct {
		name  string
		query string
		call  func(s *SQLiteStore) error
	}{
		{
			name:  "count texts",
			query: "SELECT COUNT",
			call: func(s *SQLiteStore) error {
				_, err := s.CountTexts(context.Background())
				return err
			},
		},
		{
			name:  "text exists",
			query: "FROM texts WHERE id",
			call: func(s *SQLiteStore) error {
				_, err := s.TextExists(context.Background(), 1)
				return err
			},
		},
		{
			name:  "token frequencies",
			query: "FROM tokens",
			call: func(s *SQLiteStore) error {
				_, err := s.TokenFrequencies(context.Background(), 1, 15)
				return err
			},
		},
		{
			name:  "latest texts",
			query: "ORDER BY id DESC",
			call: func(s *SQLiteStore) error {
				_, err := s.LatestTexts(context.Background(), 5)
				return err
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			mock.ExpectQuery(tt.query).WillReturnError(errors.New("disk I/O error"))

			s := &SQLiteStore{db: db, logger: slog.New(slog.DiscardHandler)}
			err = tt.call(s)
			require.Error(t, err)
			assert.ErrorIs(t, err, internalerr.ErrStoreUnavailable)
			assert.Contains(t, err.Error(), "disk I/O error")
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestScanFailureReturnsNoPartialRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"token", "freq"}).
		AddRow("a", 2).
		AddRow("b", 1).
		RowError(1, errors.New("connection reset"))
	mock.ExpectQuery("FROM tokens").WillReturnRows(rows)

	s := &SQLiteStore{db: db, logger: slog.New(slog.DiscardHandler)}
	got, err := s.TokenFrequencies(context.Background(), 1, 15)
	assert.ErrorIs(t, err, internalerr.ErrStoreUnavailable)
	assert.Nil(t, got)
}

func tokenName(i int) string {
	return "t" + string(rune('0'+i/10)) + string(rune('0'+i%10))
}
