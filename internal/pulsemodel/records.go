// Package pulsemodel holds the persisted and transport record shapes
// shared by the Storage port, the feed adapters, and the broadcast
// event variants, so none of those packages need to import each
// other just to describe a tweet or an article.
package pulsemodel

import "time"

// DiskUsageRecord is a single filesystem sample, as persisted by
// Storage.InsertDiskUsage and delivered to SystemMonitor subscribers.
type DiskUsageRecord struct {
	ID              string
	Mount           string
	PercentDiskUsed float64
	RecordedAt      time.Time
}

// TaskRecord is a scheduler firing, as persisted by Storage.InsertTask.
type TaskRecord struct {
	ID     string
	Task   string
	SentAt time.Time
}

// TweetRecord is a single ingested tweet, as persisted by
// Storage.InsertTweet and held in TwitterService's per-group buffers.
type TweetRecord struct {
	ID         string
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

// Article is one story in an ArticleSection.
type Article struct {
	URL           string
	Title         string
	Abstract      string
	PublishedDate time.Time
	Metric        string
}

// ArticleSection groups articles under a named section (e.g. "Most
// Viewed", "Most Emailed") for newscast assembly.
type ArticleSection struct {
	Title    string
	Articles []Article
}
