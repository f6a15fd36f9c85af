package models

import (
	"time"
)

// TimestampLayout is the minute-granular form in which publish times are
// displayed remotely and stored in checkpoints
const TimestampLayout = "2006-01-02 15:04"

// Tier is a subscription level listed in the channel directory
type Tier string

const (
	TierFree Tier = "free"
	TierPaid Tier = "not_free"
)

// Channel is a fanclub the account follows
type Channel struct {
	ID        int64
	Name      string
	OwnerName string
	OwnerID   int64
	// Price is the monthly price of the joined plan, 0 for free plans
	Price int
	Tier  Tier
}

// Checkpoint is the persisted resume point of one channel
type Checkpoint struct {
	Fanclub  string
	Username string
	UserID   int64
	Price    int
	// LastSynced is the publish time of the newest post already synced,
	// nil when the channel has never been synced or was invalidated
	LastSynced *time.Time
}

// FeedEntry references one post in a channel's feed
type FeedEntry struct {
	PostID      int64
	PublishedAt time.Time
}

// FeedPage is one page of a channel feed, newest first
type FeedPage struct {
	Entries []FeedEntry
	HasNext bool
}

// BlockKind distinguishes photo galleries from single-file blocks
type BlockKind string

const (
	BlockGallery BlockKind = "photo_gallery"
	BlockFile    BlockKind = "file"
)

// ContentBlock is one unit of post content
type ContentBlock struct {
	// Index is the 1-based position of the block within the post
	Index     int
	Kind      BlockKind
	Visible   bool
	Title     string
	PhotoURLs []string
	URL       string
	MimeHint  string
	// PlanPrice is the price of the plan that unlocks the block
	PlanPrice int
}

// Post is the fetched detail of one post
type Post struct {
	ID          int64
	ChannelID   int64
	Title       string
	Description string
	PublishedAt time.Time
	Rating      string
	Tags        []string
	Blocks      []ContentBlock
}

// PostOutcome is what materializing one post produced
type PostOutcome string

const (
	OutcomeMaterialized     PostOutcome = "materialized"
	OutcomeSkippedAllHidden PostOutcome = "skipped_all_hidden"
	OutcomeEmpty            PostOutcome = "empty"
)

// SyncResult summarizes one channel's sync
type SyncResult struct {
	Channel         Channel
	Err             error
	Checkpoint      Checkpoint
	// Materialized counts posts with at least one new file
	Materialized    int
	// Unchanged counts kept posts whose files were all already on disk
	Unchanged       int
	Hidden          int
	Empty           int
	FailedDownloads int
	Downloaded      int
	Skipped         int
}

// OK reports whether the channel reached Done
func (r SyncResult) OK() bool {
	return r.Err == nil
}

// FormatTimestamp renders t in TimestampLayout
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp parses a minute-granular timestamp as UTC wall clock
func ParseTimestamp(s string) (time.Time, error) {
	return time.ParseInLocation(TimestampLayout, s, time.UTC)
}
