// Package pulsedb defines the Storage port: the only way any
// component persists a record. Three inserts, nothing more — schema
// migrations and the choice of SQL engine are collaborator territory;
// this package only fixes the interface the core depends on.
package pulsedb

import (
	"context"
	"time"

	"github.com/nugget/pulse/internal/pulsemodel"
)

// NewTask is the insert payload for a scheduler firing.
type NewTask struct {
	Task string
}

// NewDiskUsage is the insert payload for a filesystem sample.
type NewDiskUsage struct {
	Mount           string
	PercentDiskUsed float64
}

// NewTweet is the insert payload for an ingested tweet.
type NewTweet struct {
	TwitterID  string
	GroupNames []string
	Lat        *float64
	Lon        *float64
	Favorites  int32
	Retweets   int32
	User       *string
	Lang       *string
	Text       string
	TweetedAt  time.Time
}

// Storage is the persistence port. Every method must be safe for
// concurrent use — producers call it from independent driver
// goroutines.
type Storage interface {
	InsertTask(ctx context.Context, t NewTask) (pulsemodel.TaskRecord, error)
	InsertDiskUsage(ctx context.Context, d NewDiskUsage) (pulsemodel.DiskUsageRecord, error)
	InsertTweet(ctx context.Context, t NewTweet) (pulsemodel.TweetRecord, error)
	Close() error
}
