package syncer

import (
	"context"
	"errors"
	"testing"

	"fcsync/internal/downloader"
	errs "fcsync/pkg/errors"
	"fcsync/pkg/logger"
	"fcsync/pkg/models"
	"fcsync/pkg/storage"
	"fcsync/pkg/syncer/mocks"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"
)

type RunnerTestSuite struct {
	suite.Suite
	ctrl *gomock.Controller

	session   *mocks.MockSessionChecker
	directory *mocks.MockChannelLister
	channels  *mocks.MockChannelSource
	feed      *mocks.MockFeedSource
	posts     *mocks.MockPostSource
	downloads *mocks.MockContentDownloader
	store     *mocks.MockCheckpointStore

	log *logger.TestLogger
	ctx context.Context
}

func (s *RunnerTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.session = mocks.NewMockSessionChecker(s.ctrl)
	s.directory = mocks.NewMockChannelLister(s.ctrl)
	s.channels = mocks.NewMockChannelSource(s.ctrl)
	s.feed = mocks.NewMockFeedSource(s.ctrl)
	s.posts = mocks.NewMockPostSource(s.ctrl)
	s.downloads = mocks.NewMockContentDownloader(s.ctrl)
	s.store = mocks.NewMockCheckpointStore(s.ctrl)
	s.log = logger.NewTestLogger()
	s.ctx = context.Background()
}

func (s *RunnerTestSuite) TearDownTest() {
	s.ctrl.Finish()
}

func TestRunnerTestSuite(t *testing.T) {
	suite.Run(t, new(RunnerTestSuite))
}

func (s *RunnerTestSuite) runner(opts RunnerOptions) *Runner {
	manager, err := storage.NewManager(s.T().TempDir())
	s.Require().NoError(err)

	return NewRunner(
		s.session,
		s.directory,
		NewChannelSyncer(s.channels, s.feed, nil, 0, s.log),
		s.posts,
		NewPostSyncer(manager, s.downloads, s.log),
		s.store,
		opts,
		s.log,
	)
}

func (s *RunnerTestSuite) expectDirectory(paid, free []models.Channel) {
	gomock.InOrder(
		s.directory.EXPECT().ListSubscribed(s.ctx, models.TierPaid).Return(paid, nil),
		s.directory.EXPECT().ListSubscribed(s.ctx, models.TierFree).Return(free, nil),
	)
}

// expectChannelWithPost sets up a channel whose feed holds one new post with
// one photo
func (s *RunnerTestSuite) expectChannelWithPost(id, postID int64) {
	s.channels.EXPECT().FetchChannel(s.ctx, id).Return(&models.Channel{ID: id, Name: "c", OwnerName: "o"}, nil)
	s.feed.EXPECT().FetchPage(s.ctx, id, 1).Return(&models.FeedPage{
		Entries: []models.FeedEntry{entry(postID, minute(int(postID), 0, 0))},
	}, nil)
	s.posts.EXPECT().FetchPost(s.ctx, postID).Return(&models.Post{
		ID:     postID,
		Title:  "p",
		Blocks: []models.ContentBlock{gallery(1, "https://cdn/x")},
	}, nil)
}

func (s *RunnerTestSuite) TestRun_SessionExpired() {
	s.session.EXPECT().CheckSession(s.ctx).Return(errs.AuthExpired(401, "session rejected"))

	report, err := s.runner(RunnerOptions{}).Run(s.ctx)

	s.True(errs.IsType(err, errs.ErrorTypeAuthExpired))
	s.True(report.Aborted)
	s.Empty(report.Results)
	_, parseErr := uuid.Parse(report.RunID)
	s.NoError(parseErr)
}

func (s *RunnerTestSuite) TestRun_ListsPaidFirstAndDeduplicates() {
	s.session.EXPECT().CheckSession(s.ctx).Return(nil)
	s.expectDirectory(
		[]models.Channel{{ID: 1, Name: "a", Tier: models.TierPaid}},
		[]models.Channel{{ID: 2, Name: "b", Tier: models.TierFree}, {ID: 1, Name: "a", Tier: models.TierFree}},
	)
	s.store.EXPECT().Load().Return(map[int64]models.Checkpoint{}, nil)

	gomock.InOrder(
		s.channels.EXPECT().FetchChannel(s.ctx, int64(1)).Return(&models.Channel{ID: 1, Name: "a"}, nil),
		s.channels.EXPECT().FetchChannel(s.ctx, int64(2)).Return(&models.Channel{ID: 2, Name: "b"}, nil),
	)
	s.feed.EXPECT().FetchPage(s.ctx, gomock.Any(), 1).Return(&models.FeedPage{}, nil).Times(2)
	s.store.EXPECT().Save(gomock.Any()).Return(nil).Times(2)

	report, err := s.runner(RunnerOptions{}).Run(s.ctx)

	s.Require().NoError(err)
	s.Require().Len(report.Results, 2)
	s.Equal(models.TierPaid, report.Results[0].Channel.Tier)
	s.Equal(int64(2), report.Results[1].Channel.ID)
	s.Equal(2, report.Succeeded())
}

func (s *RunnerTestSuite) TestRun_ChannelFailureIsIsolated() {
	s.session.EXPECT().CheckSession(s.ctx).Return(nil)
	s.expectDirectory([]models.Channel{{ID: 1, Name: "a"}, {ID: 2, Name: "b"}}, nil)
	s.store.EXPECT().Load().Return(map[int64]models.Checkpoint{}, nil)

	s.channels.EXPECT().FetchChannel(s.ctx, int64(1)).Return(&models.Channel{ID: 1, Name: "a"}, nil)
	s.feed.EXPECT().FetchPage(s.ctx, int64(1), 1).Return(nil, errs.FeedParseMismatch("found 2 post links but 1 dates"))

	s.expectChannelWithPost(2, 5)
	s.downloads.EXPECT().Download(s.ctx, gomock.Any()).DoAndReturn(writeFile)
	s.store.EXPECT().Save(gomock.Any()).DoAndReturn(func(checkpoints map[int64]models.Checkpoint) error {
		s.NotContains(checkpoints, int64(1))
		s.Require().Contains(checkpoints, int64(2))
		s.Equal(minute(5, 0, 0), *checkpoints[2].LastSynced)
		return nil
	})

	report, err := s.runner(RunnerOptions{}).Run(s.ctx)

	s.Require().NoError(err)
	s.False(report.Aborted)
	s.Equal(1, report.Succeeded())
	s.Equal(1, report.Failed())
	s.True(errs.IsType(report.Results[0].Err, errs.ErrorTypeFeedParse))
	s.Equal(1, report.Materialized())
	s.True(s.log.HasError())
	s.True(s.log.HasMessage("Channel sync failed"))
	for _, msg := range s.log.GetMessagesByLevel("ERROR") {
		s.Equal(report.RunID, msg.Fields["run_id"])
	}
}

func (s *RunnerTestSuite) TestRun_ChannelAndPostLogsCarryRunID() {
	s.session.EXPECT().CheckSession(s.ctx).Return(nil)
	s.expectDirectory([]models.Channel{{ID: 2, Name: "b"}}, nil)
	s.store.EXPECT().Load().Return(map[int64]models.Checkpoint{}, nil)
	s.expectChannelWithPost(2, 5)
	s.downloads.EXPECT().Download(s.ctx, gomock.Any()).Return(downloader.Result{}, errs.Download(403, nil, "fetch https://cdn/x"))
	s.store.EXPECT().Save(gomock.Any()).Return(nil)

	report, err := s.runner(RunnerOptions{}).Run(s.ctx)

	s.Require().NoError(err)
	s.Require().NotEmpty(s.log.GetMessages())
	for _, msg := range s.log.GetMessages() {
		s.Equal(report.RunID, msg.Fields["run_id"], msg.Message)
	}

	scoped := map[string]bool{"Channel planned": false, "Channel synced": false, "Content download failed": false}
	for _, msg := range s.log.GetMessages() {
		if _, ok := scoped[msg.Message]; ok {
			scoped[msg.Message] = true
			s.Equal(int64(2), msg.Fields["channel_id"], msg.Message)
		}
		if msg.Message == "Content download failed" {
			s.Equal(int64(5), msg.Fields["post_id"])
		}
	}
	for message, seen := range scoped {
		s.True(seen, message)
	}
}

func (s *RunnerTestSuite) TestRun_PostsAlreadyOnDiskAreUnchanged() {
	s.session.EXPECT().CheckSession(s.ctx).Return(nil)
	s.expectDirectory([]models.Channel{{ID: 2, Name: "b"}}, nil)
	s.store.EXPECT().Load().Return(map[int64]models.Checkpoint{}, nil)
	s.expectChannelWithPost(2, 5)
	s.downloads.EXPECT().Download(s.ctx, gomock.Any()).DoAndReturn(
		func(ctx context.Context, req downloader.Request) (downloader.Result, error) {
			res, err := writeFile(ctx, req)
			res.Skipped = true
			return res, err
		},
	)
	s.store.EXPECT().Save(gomock.Any()).Return(nil)

	report, err := s.runner(RunnerOptions{}).Run(s.ctx)

	s.Require().NoError(err)
	s.Require().Len(report.Results, 1)
	s.Equal(0, report.Results[0].Materialized)
	s.Equal(1, report.Results[0].Unchanged)
	s.Equal(1, report.Results[0].Skipped)
	s.Equal(0, report.Materialized())
	s.Equal(1, report.Unchanged())
}

func (s *RunnerTestSuite) TestRun_PostDetailFailureKeepsCheckpoint() {
	since := minute(1, 0, 0)
	s.session.EXPECT().CheckSession(s.ctx).Return(nil)
	s.expectDirectory([]models.Channel{{ID: 1, Name: "a"}}, nil)
	s.store.EXPECT().Load().Return(map[int64]models.Checkpoint{1: {LastSynced: &since}}, nil)

	s.channels.EXPECT().FetchChannel(s.ctx, int64(1)).Return(&models.Channel{ID: 1, Name: "a"}, nil)
	s.feed.EXPECT().FetchPage(s.ctx, int64(1), 1).Return(&models.FeedPage{
		Entries: []models.FeedEntry{entry(3, minute(3, 0, 0)), entry(2, minute(2, 0, 0))},
	}, nil)
	gomock.InOrder(
		s.posts.EXPECT().FetchPost(s.ctx, int64(2)).Return(&models.Post{ID: 2, Title: "p"}, nil),
		s.posts.EXPECT().FetchPost(s.ctx, int64(3)).Return(nil, errs.New(errs.ErrorTypeServerError, "server error")),
	)
	// no Save expected: the channel never reached Done

	report, err := s.runner(RunnerOptions{}).Run(s.ctx)

	s.Require().NoError(err)
	s.Require().Len(report.Results, 1)
	s.False(report.Results[0].OK())
	s.True(errs.IsType(report.Results[0].Err, errs.ErrorTypeServerError))
}

func (s *RunnerTestSuite) TestRun_FatalErrorAbortsAndNamesChannel() {
	s.session.EXPECT().CheckSession(s.ctx).Return(nil)
	s.expectDirectory([]models.Channel{{ID: 1, Name: "a"}, {ID: 2, Name: "b"}}, nil)
	s.store.EXPECT().Load().Return(map[int64]models.Checkpoint{}, nil)

	s.expectChannelWithPost(1, 4)
	s.downloads.EXPECT().Download(s.ctx, gomock.Any()).Return(downloader.Result{}, errs.AuthExpired(403, "session rejected"))

	report, err := s.runner(RunnerOptions{}).Run(s.ctx)

	s.True(errs.IsType(err, errs.ErrorTypeAuthExpired))
	s.True(report.Aborted)
	s.Require().NotNil(report.InProgress)
	s.Equal(int64(1), report.InProgress.ID)
	s.Len(report.Results, 1)
}

func (s *RunnerTestSuite) TestRun_CancelledContextAborts() {
	ctx, cancel := context.WithCancel(s.ctx)
	s.session.EXPECT().CheckSession(ctx).Return(nil)
	s.directory.EXPECT().ListSubscribed(ctx, models.TierPaid).Return([]models.Channel{{ID: 1, Name: "a"}}, nil)
	s.directory.EXPECT().ListSubscribed(ctx, models.TierFree).Return(nil, nil)
	s.store.EXPECT().Load().Return(map[int64]models.Checkpoint{}, nil)
	s.channels.EXPECT().FetchChannel(ctx, int64(1)).DoAndReturn(func(ctx context.Context, id int64) (*models.Channel, error) {
		cancel()
		return nil, ctx.Err()
	})

	report, err := s.runner(RunnerOptions{}).Run(ctx)

	s.True(errors.Is(err, context.Canceled))
	s.True(report.Aborted)
	s.Equal(int64(1), report.InProgress.ID)
}

func (s *RunnerTestSuite) TestRun_ChannelFilterAndBackup() {
	s.session.EXPECT().CheckSession(s.ctx).Return(nil)
	s.expectDirectory([]models.Channel{{ID: 1, Name: "a"}, {ID: 2, Name: "b"}}, nil)
	gomock.InOrder(
		s.store.EXPECT().Backup().Return(nil),
		s.store.EXPECT().Load().Return(map[int64]models.Checkpoint{}, nil),
	)
	s.channels.EXPECT().FetchChannel(s.ctx, int64(2)).Return(&models.Channel{ID: 2, Name: "b"}, nil)
	s.feed.EXPECT().FetchPage(s.ctx, int64(2), 1).Return(&models.FeedPage{}, nil)
	s.store.EXPECT().Save(gomock.Any()).Return(nil)

	report, err := s.runner(RunnerOptions{Channels: []int64{2, 99}, Backup: true}).Run(s.ctx)

	s.Require().NoError(err)
	s.Require().Len(report.Results, 1)
	s.Equal(int64(2), report.Results[0].Channel.ID)
	s.True(s.log.HasMessage("Requested channel is not subscribed"))
}

func (s *RunnerTestSuite) TestRun_DirectoryFailureAborts() {
	s.session.EXPECT().CheckSession(s.ctx).Return(nil)
	s.directory.EXPECT().ListSubscribed(s.ctx, models.TierPaid).Return(nil, errs.AuthExpired(302, "redirected to sign-in page"))

	report, err := s.runner(RunnerOptions{}).Run(s.ctx)

	s.True(errs.IsType(err, errs.ErrorTypeAuthExpired))
	s.True(report.Aborted)
}
