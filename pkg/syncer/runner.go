package syncer

import (
	"context"
	"fmt"

	"fcsync/pkg/checkpoint"
	errs "fcsync/pkg/errors"
	"fcsync/pkg/logger"
	"fcsync/pkg/models"

	"github.com/google/uuid"
)

// listOrder is the order in which directory tiers are read
var listOrder = []models.Tier{models.TierPaid, models.TierFree}

// RunnerOptions tunes a run
type RunnerOptions struct {
	// Channels restricts the run to these channel ids when non-empty
	Channels []int64
	// Backup copies the checkpoint file aside before anything is written
	Backup bool
}

// Runner drives a full sync over every subscribed channel, one at a time
type Runner struct {
	session    SessionChecker
	directory  ChannelLister
	channels   *ChannelSyncer
	posts      PostSource
	postSyncer *PostSyncer
	store      CheckpointStore
	opts       RunnerOptions
	logger     logger.Logger
}

// NewRunner wires a runner from its collaborators
func NewRunner(
	session SessionChecker,
	directory ChannelLister,
	channels *ChannelSyncer,
	posts PostSource,
	postSyncer *PostSyncer,
	store CheckpointStore,
	opts RunnerOptions,
	log logger.Logger,
) *Runner {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Runner{
		session:    session,
		directory:  directory,
		channels:   channels,
		posts:      posts,
		postSyncer: postSyncer,
		store:      store,
		opts:       opts,
		logger:     log,
	}
}

// Report is the outcome of a run
type Report struct {
	// RunID tags every log line of the run
	RunID   string
	Results []models.SyncResult
	// Aborted is set when a fatal error stopped the run
	Aborted bool
	// InProgress names the channel being synced when the run aborted
	InProgress *models.Channel
}

// Succeeded returns the number of channels that reached Done
func (r *Report) Succeeded() int {
	n := 0
	for _, res := range r.Results {
		if res.OK() {
			n++
		}
	}
	return n
}

// Failed returns the number of channels that did not reach Done
func (r *Report) Failed() int {
	return len(r.Results) - r.Succeeded()
}

// Materialized returns the number of posts that gained at least one file
// across all channels
func (r *Report) Materialized() int {
	n := 0
	for _, res := range r.Results {
		n += res.Materialized
	}
	return n
}

// Unchanged returns the number of kept posts that needed no new file
func (r *Report) Unchanged() int {
	n := 0
	for _, res := range r.Results {
		n += res.Unchanged
	}
	return n
}

// Run checks the session, lists subscriptions and syncs each channel in
// turn, committing its checkpoint as soon as it completes. Channel failures
// are recorded and the run moves on; an expired session, a filesystem error
// or cancellation stops it and is returned.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	report := &Report{RunID: uuid.NewString()}
	log := r.logger.WithField("run_id", report.RunID)

	if err := r.session.CheckSession(ctx); err != nil {
		report.Aborted = true
		return report, err
	}

	channels, err := r.listChannels(ctx, log)
	if err != nil {
		report.Aborted = true
		return report, err
	}

	if r.opts.Backup {
		if err := r.store.Backup(); err != nil {
			report.Aborted = true
			return report, err
		}
	}

	checkpoints, err := r.store.Load()
	if err != nil {
		report.Aborted = true
		return report, err
	}

	log.InfoWithFields("Sync started", map[string]interface{}{
		"channels": len(channels),
	})

	for _, channel := range channels {
		result, err := r.syncChannel(ctx, channel, checkpoints, log)
		report.Results = append(report.Results, result)

		if err == nil {
			continue
		}
		if errs.IsFatal(err) {
			report.Aborted = true
			inProgress := channel
			report.InProgress = &inProgress
			log.WithError(err).ErrorWithFields("Sync aborted", map[string]interface{}{
				"channel_id":   channel.ID,
				"channel_name": channel.Name,
			})
			return report, fmt.Errorf("channel %d (%s): %w", channel.ID, channel.Name, err)
		}
		logger.ForChannel(log, channel.ID, channel.Name).WithError(err).Error("Channel sync failed")
	}

	log.InfoWithFields("Sync finished", map[string]interface{}{
		"succeeded":    report.Succeeded(),
		"failed":       report.Failed(),
		"materialized": report.Materialized(),
		"unchanged":    report.Unchanged(),
	})
	return report, nil
}

// syncChannel runs one channel to Done and commits its checkpoint. On error
// the checkpoint map is left untouched. runLog carries the run id.
func (r *Runner) syncChannel(ctx context.Context, stub models.Channel, checkpoints map[int64]models.Checkpoint, runLog logger.Logger) (models.SyncResult, error) {
	result := models.SyncResult{Channel: stub}
	log := logger.ForChannel(runLog, stub.ID, stub.Name)

	fail := func(err error) (models.SyncResult, error) {
		result.Err = err
		return result, err
	}

	plan, err := r.channels.plan(ctx, stub, checkpoint.Get(checkpoints, stub.ID), log)
	if err != nil {
		return fail(err)
	}
	result.Channel = plan.Channel

	for _, entry := range plan.Posts {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}

		post, err := r.posts.FetchPost(ctx, entry.PostID)
		if err != nil {
			return fail(fmt.Errorf("fetch post %d: %w", entry.PostID, err))
		}
		post.PublishedAt = entry.PublishedAt

		pr, err := r.postSyncer.sync(ctx, plan.Channel, *post, log)
		if err != nil {
			return fail(fmt.Errorf("sync post %d: %w", entry.PostID, err))
		}

		switch {
		case pr.Outcome == models.OutcomeMaterialized && pr.Downloaded == 0:
			result.Unchanged++
		case pr.Outcome == models.OutcomeMaterialized:
			result.Materialized++
		case pr.Outcome == models.OutcomeSkippedAllHidden:
			result.Hidden++
		case pr.Outcome == models.OutcomeEmpty:
			result.Empty++
		}
		result.Downloaded += pr.Downloaded
		result.Skipped += pr.Skipped
		result.FailedDownloads += pr.Failed

		plan.Advance(entry)
	}

	result.Checkpoint = plan.Checkpoint()
	checkpoints[stub.ID] = result.Checkpoint
	if err := r.store.Save(checkpoints); err != nil {
		return fail(err)
	}

	log.InfoWithFields("Channel synced", map[string]interface{}{
		"materialized":     result.Materialized,
		"unchanged":        result.Unchanged,
		"hidden":           result.Hidden,
		"empty":            result.Empty,
		"failed_downloads": result.FailedDownloads,
	})
	return result, nil
}

// listChannels reads every tier and drops repeated channels, honouring the
// channel filter
func (r *Runner) listChannels(ctx context.Context, log logger.Logger) ([]models.Channel, error) {
	var channels []models.Channel
	seen := make(map[int64]bool)

	for _, tier := range listOrder {
		listed, err := r.directory.ListSubscribed(ctx, tier)
		if err != nil {
			return nil, fmt.Errorf("list %s subscriptions: %w", tier, err)
		}
		for _, channel := range listed {
			if seen[channel.ID] {
				continue
			}
			seen[channel.ID] = true
			channels = append(channels, channel)
		}
	}

	if len(r.opts.Channels) == 0 {
		return channels, nil
	}

	byID := make(map[int64]models.Channel, len(channels))
	for _, channel := range channels {
		byID[channel.ID] = channel
	}

	var filtered []models.Channel
	for _, id := range r.opts.Channels {
		channel, ok := byID[id]
		if !ok {
			log.WarnWithFields("Requested channel is not subscribed", map[string]interface{}{
				"channel_id": id,
			})
			continue
		}
		filtered = append(filtered, channel)
	}
	return filtered, nil
}
