package syncer

import (
	"context"
	"fmt"

	"fcsync/internal/downloader"
	errs "fcsync/pkg/errors"
	"fcsync/pkg/logger"
	"fcsync/pkg/metadata"
	"fcsync/pkg/models"
	"fcsync/pkg/storage"
)

// PostResult summarizes the materialization of one post
type PostResult struct {
	Outcome    models.PostOutcome
	Dir        string
	Downloaded int
	Skipped    int
	Failed     int
}

// PostSyncer materializes one post into its directory
type PostSyncer struct {
	storage    *storage.Manager
	downloader ContentDownloader
	logger     logger.Logger
}

// NewPostSyncer creates a post syncer writing below the manager's root
func NewPostSyncer(storageManager *storage.Manager, d ContentDownloader, log logger.Logger) *PostSyncer {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &PostSyncer{
		storage:    storageManager,
		downloader: d,
		logger:     log,
	}
}

// Sync writes the metadata snapshot and every visible block of post up to
// the first hidden one. A directory left with only the snapshot is removed.
// Failed downloads are counted per block; filesystem errors, an expired
// session and cancellation are returned.
func (s *PostSyncer) Sync(ctx context.Context, channel models.Channel, post models.Post) (PostResult, error) {
	return s.sync(ctx, channel, post, s.logger)
}

// sync is Sync with the post's log lines derived from base
func (s *PostSyncer) sync(ctx context.Context, channel models.Channel, post models.Post, base logger.Logger) (PostResult, error) {
	log := logger.ForPost(base, post.ID)
	dir := s.storage.PostDir(channel, post)
	result := PostResult{Dir: dir}

	if err := storage.EnsureDir(dir); err != nil {
		return result, err
	}
	if err := metadata.FromPost(channel, post).Save(dir); err != nil {
		return result, err
	}

	visible := 0
	for _, block := range post.Blocks {
		if !block.Visible {
			log.DebugWithFields("Hidden block reached, skipping the rest", map[string]interface{}{
				"block": block.Index,
			})
			break
		}
		visible++

		for _, req := range blockRequests(dir, block) {
			res, err := s.downloader.Download(ctx, req)
			switch {
			case err == nil && res.Skipped:
				result.Skipped++
			case err == nil:
				result.Downloaded++
			case errs.IsFatal(err):
				return result, err
			default:
				result.Failed++
				log.WithError(err).WarnWithFields("Content download failed", map[string]interface{}{
					"block": block.Index,
					"url":   req.URL,
				})
			}
		}
	}

	removed, err := storage.RemoveIfOnlyMetadata(dir)
	if err != nil {
		return result, err
	}

	switch {
	case !removed:
		result.Outcome = models.OutcomeMaterialized
	case visible == 0 && len(post.Blocks) > 0:
		result.Outcome = models.OutcomeSkippedAllHidden
	default:
		result.Outcome = models.OutcomeEmpty
	}

	log.DebugWithFields("Post synced", map[string]interface{}{
		"outcome":    string(result.Outcome),
		"downloaded": result.Downloaded,
		"skipped":    result.Skipped,
		"failed":     result.Failed,
	})
	return result, nil
}

// blockRequests returns the downloads of one visible block. Gallery photos
// are named {block}-{photo}, files {block}, both 1-based.
func blockRequests(dir string, block models.ContentBlock) []downloader.Request {
	switch block.Kind {
	case models.BlockGallery:
		reqs := make([]downloader.Request, 0, len(block.PhotoURLs))
		for i, u := range block.PhotoURLs {
			reqs = append(reqs, downloader.Request{
				Dir:  dir,
				URL:  u,
				Stem: fmt.Sprintf("%d-%d", block.Index, i+1),
			})
		}
		return reqs
	case models.BlockFile:
		if block.URL == "" {
			return nil
		}
		return []downloader.Request{{
			Dir:      dir,
			URL:      block.URL,
			Stem:     fmt.Sprintf("%d", block.Index),
			MimeHint: block.MimeHint,
		}}
	default:
		return nil
	}
}
