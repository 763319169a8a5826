// Package sqlite is the live Storage adapter, backed by SQLite via
// the mattn/go-sqlite3 cgo driver.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/nugget/pulse/internal/pulsedb"
	"github.com/nugget/pulse/internal/pulseerr"
	"github.com/nugget/pulse/internal/pulsemodel"
)

// Store implements pulsedb.Storage against a SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the database at path and runs
// migrations. A connect failure is a pulseerr.DbConnectError, which is
// fatal at startup per the error handling design.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, pulseerr.Wrap(pulseerr.DbConnectError, "open sqlite database", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, pulseerr.Wrap(pulseerr.DbConnectError, "ping sqlite database", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, pulseerr.Wrap(pulseerr.DbConnectError, "migrate sqlite database", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		task TEXT NOT NULL,
		sent_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS disk_usage (
		id TEXT PRIMARY KEY,
		mount TEXT NOT NULL,
		percent_disk_used REAL NOT NULL,
		recorded_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS tweets (
		id TEXT PRIMARY KEY,
		twitter_tweet_id TEXT NOT NULL,
		group_name TEXT NOT NULL,
		latitude REAL,
		longitude REAL,
		favorite_count INTEGER NOT NULL,
		retweet_count INTEGER NOT NULL,
		username TEXT,
		lang TEXT,
		text TEXT NOT NULL,
		tweeted_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_disk_usage_mount ON disk_usage(mount);
	CREATE INDEX IF NOT EXISTS idx_tweets_twitter_id ON tweets(twitter_tweet_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the underlying database connection.
func (s *Store) Close() error { return s.db.Close() }

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

// InsertTask persists a scheduler firing.
func (s *Store) InsertTask(ctx context.Context, t pulsedb.NewTask) (pulsemodel.TaskRecord, error) {
	rec := pulsemodel.TaskRecord{ID: newID(), Task: t.Task, SentAt: time.Now()}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (id, task, sent_at) VALUES (?, ?, ?)`,
		rec.ID, rec.Task, rec.SentAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return pulsemodel.TaskRecord{}, pulseerr.Wrap(pulseerr.DbQueryError, "insert task", err)
	}
	return rec, nil
}

// InsertDiskUsage persists a filesystem sample.
func (s *Store) InsertDiskUsage(ctx context.Context, d pulsedb.NewDiskUsage) (pulsemodel.DiskUsageRecord, error) {
	rec := pulsemodel.DiskUsageRecord{
		ID:              newID(),
		Mount:           d.Mount,
		PercentDiskUsed: d.PercentDiskUsed,
		RecordedAt:      time.Now(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO disk_usage (id, mount, percent_disk_used, recorded_at) VALUES (?, ?, ?, ?)`,
		rec.ID, rec.Mount, rec.PercentDiskUsed, rec.RecordedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return pulsemodel.DiskUsageRecord{}, pulseerr.Wrap(pulseerr.DbQueryError, "insert disk usage", err)
	}
	return rec, nil
}

// InsertTweet persists an ingested tweet. Group names are stored as a
// JSON array in a single column rather than a side table — there is no
// query surface in scope that needs them normalized.
func (s *Store) InsertTweet(ctx context.Context, t pulsedb.NewTweet) (pulsemodel.TweetRecord, error) {
	rec := pulsemodel.TweetRecord{
		ID:         newID(),
		TwitterID:  t.TwitterID,
		GroupNames: t.GroupNames,
		Lat:        t.Lat,
		Lon:        t.Lon,
		Favorites:  t.Favorites,
		Retweets:   t.Retweets,
		User:       t.User,
		Lang:       t.Lang,
		Text:       t.Text,
		TweetedAt:  t.TweetedAt,
	}
	if rec.TweetedAt.IsZero() {
		rec.TweetedAt = time.Now()
	}

	groupJSON, err := json.Marshal(rec.GroupNames)
	if err != nil {
		return pulsemodel.TweetRecord{}, pulseerr.Wrap(pulseerr.SerdeError, "marshal group names", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO tweets (id, twitter_tweet_id, group_name, latitude, longitude, favorite_count, retweet_count, username, lang, text, tweeted_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.TwitterID, string(groupJSON), rec.Lat, rec.Lon, rec.Favorites, rec.Retweets, rec.User, rec.Lang, rec.Text,
		rec.TweetedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return pulsemodel.TweetRecord{}, pulseerr.Wrap(pulseerr.DbQueryError, "insert tweet", err)
	}
	return rec, nil
}

// dsnForTest builds an in-memory, per-connection-shared DSN suitable
// for unit tests (":memory:" alone would give each connection a
// distinct empty database under the pool).
func dsnForTest(name string) string {
	if strings.TrimSpace(name) == "" {
		name = "pulse"
	}
	return fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
}

// OpenForTest opens a shared in-memory database for tests.
func OpenForTest(name string) (*Store, error) {
	return Open(dsnForTest(name))
}
