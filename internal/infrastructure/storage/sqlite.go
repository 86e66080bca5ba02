// Package storage persists news, indices, signals and process metadata in
// SQLite. Uniqueness of the news fingerprint is enforced here; collisions are
// reported as a non-insertion, never as an error.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"worldsentinel/internal/domain"
	"worldsentinel/internal/ports"
)

const (
	defaultNewsLimit   = 50
	maxNewsLimit       = 200
	defaultIndexLimit  = 200
	defaultSignalLimit = 100
)

const schema = `
CREATE TABLE IF NOT EXISTS news(
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	hash TEXT UNIQUE,
	title TEXT NOT NULL,
	url TEXT,
	source TEXT,
	category TEXT,
	region TEXT,
	lang TEXT,
	published_at TEXT,
	summary TEXT,
	sentiment INTEGER,
	impact INTEGER,
	created_at TEXT
);
CREATE INDEX IF NOT EXISTS idx_news_published ON news(published_at DESC);

CREATE TABLE IF NOT EXISTS indices(
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	region TEXT,
	sector TEXT,
	score INTEGER,
	updated_at TEXT
);

CREATE TABLE IF NOT EXISTS signals(
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	topic TEXT,
	level TEXT,
	reason TEXT,
	created_at TEXT
);

CREATE TABLE IF NOT EXISTS meta(
	k TEXT PRIMARY KEY,
	v TEXT
);`

// SQLiteStore implements ports.Store on a single SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

var _ ports.Store = (*SQLiteStore)(nil)

// Open creates the store and its schema. Pass ":memory:" for an ephemeral
// database (tests).
func Open(path string) (*SQLiteStore, error) {
	connStr := path
	if path == ":memory:" {
		// Shared cache so every pooled connection sees the same database.
		connStr = "file::memory:?cache=shared"
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Timestamps are stored as RFC3339 UTC strings, which order lexicographically.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(v string) time.Time {
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}
	}
	return t
}

// InsertNewsIfAbsent performs the idempotent insert keyed by the item
// fingerprint. There is no read-before-write check; the unique constraint is
// the only consistency mechanism.
func (s *SQLiteStore) InsertNewsIfAbsent(ctx context.Context, item domain.NewsItem) (bool, error) {
	res, err := sq.Insert("news").
		Columns("hash", "title", "url", "source", "category", "region", "lang",
			"published_at", "summary", "sentiment", "impact", "created_at").
		Values(item.Fingerprint, item.Title, item.URL, item.Source, item.Sector, item.Region, item.Lang,
			formatTime(item.PublishedAt), item.Summary, item.Sentiment, item.Impact, formatTime(item.CreatedAt)).
		Suffix("ON CONFLICT(hash) DO NOTHING").
		RunWith(s.db).ExecContext(ctx)
	if err != nil {
		return false, fmt.Errorf("insert news: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

func newsColumns() []string {
	return []string{"hash", "title", "url", "source", "category", "region", "lang",
		"published_at", "summary", "sentiment", "impact", "created_at"}
}

func scanNews(rows *sql.Rows) ([]domain.NewsItem, error) {
	items := make([]domain.NewsItem, 0)
	for rows.Next() {
		var (
			item                   domain.NewsItem
			lang                   sql.NullString
			publishedAt, createdAt string
		)
		if err := rows.Scan(&item.Fingerprint, &item.Title, &item.URL, &item.Source,
			&item.Sector, &item.Region, &lang, &publishedAt, &item.Summary,
			&item.Sentiment, &item.Impact, &createdAt); err != nil {
			return nil, fmt.Errorf("scan news row: %w", err)
		}
		item.Lang = lang.String
		item.PublishedAt = parseTime(publishedAt)
		item.CreatedAt = parseTime(createdAt)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate news rows: %w", err)
	}
	return items, nil
}

// QueryItems returns items with published_at >= since. The lower bound is
// closed: an item published exactly at the boundary is included.
func (s *SQLiteStore) QueryItems(ctx context.Context, since time.Time) ([]domain.NewsItem, error) {
	rows, err := sq.Select(newsColumns()...).
		From("news").
		Where(sq.GtOrEq{"published_at": formatTime(since)}).
		OrderBy("published_at ASC").
		RunWith(s.db).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()
	return scanNews(rows)
}

// QueryHistoricalCount counts rows over the trailing sinceDays whose title,
// summary or source contains substr. SQLite LIKE is case-insensitive for
// ASCII, matching the classifier's substring primitive.
func (s *SQLiteStore) QueryHistoricalCount(ctx context.Context, substr string, sinceDays int) (int, error) {
	since := formatTime(time.Now().AddDate(0, 0, -sinceDays))
	pattern := "%" + substr + "%"

	var count int
	err := sq.Select("COUNT(*)").
		From("news").
		Where(sq.GtOrEq{"published_at": since}).
		Where(sq.Or{
			sq.Like{"title": pattern},
			sq.Like{"summary": pattern},
			sq.Like{"source": pattern},
		}).
		RunWith(s.db).QueryRowContext(ctx).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("historical count: %w", err)
	}
	return count, nil
}

// AppendIndexScore appends one rolling-index snapshot row.
func (s *SQLiteStore) AppendIndexScore(ctx context.Context, score domain.IndexScore) error {
	_, err := sq.Insert("indices").
		Columns("region", "sector", "score", "updated_at").
		Values(score.Region, score.Sector, score.Score, formatTime(score.UpdatedAt)).
		RunWith(s.db).ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("append index score: %w", err)
	}
	return nil
}

// AppendSignal appends one alert row; repeated conditions across cycles
// produce repeated rows.
func (s *SQLiteStore) AppendSignal(ctx context.Context, sig domain.Signal) error {
	_, err := sq.Insert("signals").
		Columns("topic", "level", "reason", "created_at").
		Values(sig.Topic, string(sig.Level), sig.Reason, formatTime(sig.CreatedAt)).
		RunWith(s.db).ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("append signal: %w", err)
	}
	return nil
}

// GetMeta returns "" when the key has never been written.
func (s *SQLiteStore) GetMeta(ctx context.Context, key string) (string, error) {
	var value string
	err := sq.Select("v").From("meta").
		Where(sq.Eq{"k": key}).
		RunWith(s.db).QueryRowContext(ctx).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get meta %s: %w", key, err)
	}
	return value, nil
}

// SetMeta upserts a bookkeeping value; last write wins.
func (s *SQLiteStore) SetMeta(ctx context.Context, key, value string) error {
	_, err := sq.Insert("meta").
		Columns("k", "v").
		Values(key, value).
		Suffix("ON CONFLICT(k) DO UPDATE SET v=excluded.v").
		RunWith(s.db).ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("set meta %s: %w", key, err)
	}
	return nil
}

// ListNews serves the read-side API: optional sector/region filters, bounded
// limit (default 50, max 200), publish time descending.
func (s *SQLiteStore) ListNews(ctx context.Context, filter ports.NewsFilter) ([]domain.NewsItem, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultNewsLimit
	}
	if limit > maxNewsLimit {
		limit = maxNewsLimit
	}

	q := sq.Select(newsColumns()...).From("news")
	if filter.Sector != "" {
		q = q.Where(sq.Eq{"category": filter.Sector})
	}
	if filter.Region != "" {
		q = q.Where(sq.Eq{"region": filter.Region})
	}

	rows, err := q.OrderBy("published_at DESC").
		Limit(uint64(limit)).
		RunWith(s.db).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("list news: %w", err)
	}
	defer rows.Close()
	return scanNews(rows)
}

// ListIndexScores returns the most recent index snapshots first.
func (s *SQLiteStore) ListIndexScores(ctx context.Context, limit int) ([]domain.IndexScore, error) {
	if limit <= 0 {
		limit = defaultIndexLimit
	}

	rows, err := sq.Select("region", "sector", "score", "updated_at").
		From("indices").
		OrderBy("id DESC").
		Limit(uint64(limit)).
		RunWith(s.db).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("list index scores: %w", err)
	}
	defer rows.Close()

	scores := make([]domain.IndexScore, 0)
	for rows.Next() {
		var (
			score     domain.IndexScore
			updatedAt string
		)
		if err := rows.Scan(&score.Region, &score.Sector, &score.Score, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan index row: %w", err)
		}
		score.UpdatedAt = parseTime(updatedAt)
		scores = append(scores, score)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate index rows: %w", err)
	}
	return scores, nil
}

// ListSignals returns the most recent signals first.
func (s *SQLiteStore) ListSignals(ctx context.Context, limit int) ([]domain.Signal, error) {
	if limit <= 0 {
		limit = defaultSignalLimit
	}

	rows, err := sq.Select("topic", "level", "reason", "created_at").
		From("signals").
		OrderBy("id DESC").
		Limit(uint64(limit)).
		RunWith(s.db).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("list signals: %w", err)
	}
	defer rows.Close()

	sigs := make([]domain.Signal, 0)
	for rows.Next() {
		var (
			sig       domain.Signal
			level     string
			createdAt string
		)
		if err := rows.Scan(&sig.Topic, &level, &sig.Reason, &createdAt); err != nil {
			return nil, fmt.Errorf("scan signal row: %w", err)
		}
		sig.Level = domain.Level(level)
		sig.CreatedAt = parseTime(createdAt)
		sigs = append(sigs, sig)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate signal rows: %w", err)
	}
	return sigs, nil
}
