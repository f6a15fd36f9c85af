package syncer

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"fcsync/internal/downloader"
	"fcsync/pkg/models"
)

// SessionChecker verifies the remote session before any work starts
type SessionChecker interface {
	CheckSession(ctx context.Context) error
}

// ChannelLister lists subscribed channels of one tier
type ChannelLister interface {
	ListSubscribed(ctx context.Context, tier models.Tier) ([]models.Channel, error)
}

// ChannelSource fetches fresh channel metadata
type ChannelSource interface {
	FetchChannel(ctx context.Context, channelID int64) (*models.Channel, error)
}

// FeedSource fetches one page of a channel feed, newest first
type FeedSource interface {
	FetchPage(ctx context.Context, channelID int64, page int) (*models.FeedPage, error)
}

// PostSource fetches post detail
type PostSource interface {
	FetchPost(ctx context.Context, postID int64) (*models.Post, error)
}

// ContentDownloader materializes one remote file
type ContentDownloader interface {
	Download(ctx context.Context, req downloader.Request) (downloader.Result, error)
}

// CheckpointStore persists per-channel resume points
type CheckpointStore interface {
	Load() (map[int64]models.Checkpoint, error)
	Save(checkpoints map[int64]models.Checkpoint) error
	Backup() error
}
