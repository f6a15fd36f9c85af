package syncer

import (
	"context"
	"time"

	"fcsync/pkg/checkpoint"
	"fcsync/pkg/logger"
	"fcsync/pkg/models"
	"fcsync/pkg/ratelimit"
)

// Plan is the ordered list of posts a channel sync has to process together
// with the checkpoint it is building. Only a plan whose posts were all
// processed may be committed.
type Plan struct {
	// Channel carries fresh metadata merged with the directory stub
	Channel models.Channel
	// Posts are the new feed entries, oldest first
	Posts []models.FeedEntry
	// Invalidated is set when a price increase cleared the previous checkpoint
	Invalidated bool
	// Pages is the number of feed pages fetched
	Pages int

	checkpoint models.Checkpoint
}

// Checkpoint returns the checkpoint as advanced so far
func (p *Plan) Checkpoint() models.Checkpoint {
	return p.checkpoint
}

// Advance records that entry was processed. The checkpoint never moves
// backwards.
func (p *Plan) Advance(entry models.FeedEntry) {
	p.checkpoint = checkpoint.Advance(p.checkpoint, entry.PublishedAt)
}

// ChannelSyncer decides which posts of a channel are new since its
// checkpoint
type ChannelSyncer struct {
	channels ChannelSource
	feed     FeedSource
	limiter  ratelimit.Limiter
	maxPages int
	logger   logger.Logger
}

// NewChannelSyncer creates a channel syncer. The limiter gates every feed
// page fetch; maxPages of 0 means no bound.
func NewChannelSyncer(channels ChannelSource, feed FeedSource, limiter ratelimit.Limiter, maxPages int, log logger.Logger) *ChannelSyncer {
	if limiter == nil {
		limiter = ratelimit.Unlimited{}
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &ChannelSyncer{
		channels: channels,
		feed:     feed,
		limiter:  limiter,
		maxPages: maxPages,
		logger:   log,
	}
}

// Plan fetches fresh metadata for stub, applies price invalidation to cp and
// walks the feed newest first until it reaches the checkpoint or runs out
// of pages.
func (s *ChannelSyncer) Plan(ctx context.Context, stub models.Channel, cp models.Checkpoint) (*Plan, error) {
	return s.plan(ctx, stub, cp, logger.ForChannel(s.logger, stub.ID, stub.Name))
}

// plan is Plan logging to log, which is already scoped to the channel
func (s *ChannelSyncer) plan(ctx context.Context, stub models.Channel, cp models.Checkpoint, log logger.Logger) (*Plan, error) {
	fresh, err := s.channels.FetchChannel(ctx, stub.ID)
	if err != nil {
		return nil, err
	}
	channel := mergeChannel(stub, *fresh)

	next := checkpoint.Invalidate(cp, channel.Price)
	next.Fanclub = channel.Name
	next.Username = channel.OwnerName
	next.UserID = channel.OwnerID

	plan := &Plan{
		Channel:     channel,
		Invalidated: cp.LastSynced != nil && next.LastSynced == nil,
		checkpoint:  next,
	}
	if plan.Invalidated {
		log.InfoWithFields("Plan price increased, resyncing channel", map[string]interface{}{
			"old_price": cp.Price,
			"new_price": channel.Price,
		})
	}

	entries, pages, err := s.collect(ctx, channel.ID, next.LastSynced, log)
	if err != nil {
		return nil, err
	}
	plan.Pages = pages

	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	plan.Posts = entries

	log.InfoWithFields("Channel planned", map[string]interface{}{
		"new_posts": len(entries),
		"pages":     pages,
	})
	return plan, nil
}

// collect paginates the feed newest first. With a checkpoint it stops at the
// first entry published at or before it and fetches no further pages.
func (s *ChannelSyncer) collect(ctx context.Context, channelID int64, since *time.Time, log logger.Logger) ([]models.FeedEntry, int, error) {
	var entries []models.FeedEntry
	seen := make(map[int64]bool)

	page := 1
	for ; ; page++ {
		if s.maxPages > 0 && page > s.maxPages {
			log.WarnWithFields("Page limit reached, feed truncated", map[string]interface{}{
				"max_pages": s.maxPages,
			})
			return entries, page - 1, nil
		}

		if err := s.limiter.Wait(ctx); err != nil {
			return nil, page - 1, err
		}

		fp, err := s.feed.FetchPage(ctx, channelID, page)
		if err != nil {
			return nil, page - 1, err
		}

		log.DebugWithFields("Feed page fetched", map[string]interface{}{
			"page":    page,
			"entries": len(fp.Entries),
		})

		for _, entry := range fp.Entries {
			if since != nil && !entry.PublishedAt.After(*since) {
				return entries, page, nil
			}
			if seen[entry.PostID] {
				continue
			}
			seen[entry.PostID] = true
			entries = append(entries, entry)
		}

		if !fp.HasNext || len(fp.Entries) == 0 {
			return entries, page, nil
		}
	}
}

// mergeChannel fills gaps in fresh metadata from the directory stub
func mergeChannel(stub, fresh models.Channel) models.Channel {
	if fresh.ID == 0 {
		fresh.ID = stub.ID
	}
	if fresh.Name == "" {
		fresh.Name = stub.Name
	}
	fresh.Tier = stub.Tier
	return fresh
}
