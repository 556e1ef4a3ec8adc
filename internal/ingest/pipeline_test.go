package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/replyloop/replyloop/internal/cron"
	"github.com/replyloop/replyloop/internal/provider"
	"github.com/replyloop/replyloop/internal/settings"
	"github.com/replyloop/replyloop/internal/source"
	"github.com/replyloop/replyloop/internal/store"
)

type fakeSource struct {
	videos    map[string]source.Video
	comments  map[string][]source.Comment
	fetchErrs map[string]error
	replies   map[string]string
	replyErrs map[string]error
	metaCalls int
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		videos:    make(map[string]source.Video),
		comments:  make(map[string][]source.Comment),
		fetchErrs: make(map[string]error),
		replies:   make(map[string]string),
		replyErrs: make(map[string]error),
	}
}

func (f *fakeSource) VideoByID(_ context.Context, videoID string) (source.Video, error) {
	f.metaCalls++
	v, ok := f.videos[videoID]
	if !ok {
		return source.Video{}, source.ErrNotFound
	}
	return v, nil
}

func (f *fakeSource) Comments(_ context.Context, videoID string, _ int) ([]source.Comment, error) {
	if err := f.fetchErrs[videoID]; err != nil {
		return nil, err
	}
	return f.comments[videoID], nil
}

func (f *fakeSource) Reply(_ context.Context, commentID, text string) error {
	if err := f.replyErrs[commentID]; err != nil {
		return err
	}
	f.replies[commentID] = text
	return nil
}

type fakeProvider struct {
	reply string
	err   error
}

func (f *fakeProvider) Complete(context.Context, provider.CompletionRequest) (provider.CompletionResponse, error) {
	if f.err != nil {
		return provider.CompletionResponse{}, f.err
	}
	return provider.CompletionResponse{Content: f.reply, FinishReason: provider.FinishReasonStop}, nil
}

func (f *fakeProvider) Stream(context.Context, provider.CompletionRequest) (<-chan provider.StreamChunk, error) {
	ch := make(chan provider.StreamChunk, 1)
	ch <- provider.StreamChunk{Content: f.reply}
	close(ch)
	return ch, nil
}

func (f *fakeProvider) ModelName() string { return "fake" }

type pipelineFixture struct {
	mem      *store.Mem
	src      *fakeSource
	ai       *fakeProvider
	settings *settings.Service
	pipeline *Pipeline
}

func newFixture(t *testing.T) *pipelineFixture {
	t.Helper()
	mem := store.NewMem()
	src := newFakeSource()
	ai := &fakeProvider{reply: "thanks for watching!"}
	svc := settings.NewService(mem.Settings())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &pipelineFixture{
		mem:      mem,
		src:      src,
		ai:       ai,
		settings: svc,
		pipeline: NewPipeline(mem, mem.Comments(), src, ai, svc, logger),
	}
}

func (f *pipelineFixture) trackVideo(t *testing.T, videoID string, comments ...source.Comment) {
	t.Helper()
	if err := f.mem.Insert(context.Background(), store.Video{VideoID: videoID, Title: "video " + videoID}); err != nil {
		t.Fatalf("insert video: %v", err)
	}
	f.src.comments[videoID] = comments
}

func comment(id, text string) source.Comment {
	return source.Comment{ID: id, VideoID: "v1", Author: "viewer", Text: text}
}

func TestCheckCommentsStoresNew(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.trackVideo(t, "v1", comment("c1", "first!"), comment("c2", "great video"))

	stats, err := f.pipeline.CheckComments(context.Background(), "yt", nil)
	if err != nil {
		t.Fatalf("CheckComments: %v", err)
	}
	if stats.New != 2 || stats.Fetched != 2 || stats.Replied != 0 {
		t.Errorf("stats = %+v", stats)
	}

	stored, err := f.mem.Comments().ListByVideo(context.Background(), "v1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("expected 2 stored comments, got %d", len(stored))
	}
	for _, c := range stored {
		if c.Status != store.StatusPending {
			t.Errorf("comment %s status = %q", c.CommentID, c.Status)
		}
	}

	video, err := f.mem.Get(context.Background(), "v1")
	if err != nil {
		t.Fatalf("get video: %v", err)
	}
	if video.LastCheckedAt.IsZero() {
		t.Error("expected last checked timestamp to be stamped")
	}
}

func TestCheckCommentsIdempotent(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.trackVideo(t, "v1", comment("c1", "first!"), comment("c2", "great video"))

	if _, err := f.pipeline.CheckComments(context.Background(), "yt", nil); err != nil {
		t.Fatalf("first run: %v", err)
	}
	stats, err := f.pipeline.CheckComments(context.Background(), "yt", nil)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if stats.New != 0 {
		t.Errorf("second run must store nothing, stats = %+v", stats)
	}

	n, _ := f.mem.Comments().Count(context.Background())
	if n != 2 {
		t.Errorf("expected 2 comments total, got %d", n)
	}
}

func TestCheckCommentsPartialPageConverges(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	page := []source.Comment{
		comment("c1", "one"), comment("c2", "two"),
		comment("c3", "three"), comment("c4", "four"),
	}
	f.trackVideo(t, "v1", page...)

	// First run saw only the first half of the page.
	f.src.comments["v1"] = page[:2]
	if _, err := f.pipeline.CheckComments(context.Background(), "yt", nil); err != nil {
		t.Fatalf("first run: %v", err)
	}

	f.src.comments["v1"] = page
	stats, err := f.pipeline.CheckComments(context.Background(), "yt", nil)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if stats.New != 2 {
		t.Errorf("expected the 2 unseen comments stored, stats = %+v", stats)
	}
	n, _ := f.mem.Comments().Count(context.Background())
	if n != 4 {
		t.Errorf("expected 4 comments total, got %d", n)
	}
}

func TestAutoReplyMarksReplied(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.trackVideo(t, "v1", comment("c1", "love this"))
	ctx := context.Background()

	if err := f.settings.Set(ctx, "yt", "auto_reply", true); err != nil {
		t.Fatalf("set: %v", err)
	}

	stats, err := f.pipeline.CheckComments(ctx, "yt", nil)
	if err != nil {
		t.Fatalf("CheckComments: %v", err)
	}
	if stats.Replied != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if f.src.replies["c1"] != "thanks for watching!" {
		t.Errorf("posted reply = %q", f.src.replies["c1"])
	}

	c, err := f.mem.Comments().Get(ctx, "c1")
	if err != nil {
		t.Fatalf("get comment: %v", err)
	}
	if c.Status != store.StatusReplied || c.ReplyText != "thanks for watching!" {
		t.Errorf("comment = %+v", c)
	}
	if c.RepliedAt.IsZero() {
		t.Error("expected replied timestamp")
	}
}

func TestReplyDisabledByDefault(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.trackVideo(t, "v1", comment("c1", "love this"))

	stats, err := f.pipeline.CheckComments(context.Background(), "yt", nil)
	if err != nil {
		t.Fatalf("CheckComments: %v", err)
	}
	if stats.Replied != 0 || len(f.src.replies) != 0 {
		t.Errorf("replies must be off unless enabled, stats = %+v", stats)
	}
}

func TestItemErrorContinue(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.trackVideo(t, "v1", comment("c1", "one"), comment("c2", "two"), comment("c3", "three"))
	ctx := context.Background()

	if err := f.settings.Set(ctx, "yt", "auto_reply", true); err != nil {
		t.Fatalf("set: %v", err)
	}
	f.src.replyErrs["c2"] = errors.New("comments disabled")

	stats, err := f.pipeline.CheckComments(ctx, "yt", nil)
	if err != nil {
		t.Fatalf("run must survive a single bad item: %v", err)
	}
	if stats.New != 3 || stats.Replied != 2 || stats.Failed != 1 {
		t.Errorf("stats = %+v", stats)
	}

	// The failed comment stays pending for the next pass to deal with.
	c, err := f.mem.Comments().Get(ctx, "c2")
	if err != nil {
		t.Fatalf("get comment: %v", err)
	}
	if c.Status != store.StatusPending {
		t.Errorf("failed comment status = %q", c.Status)
	}
}

func TestItemErrorAbort(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.trackVideo(t, "v1", comment("c1", "one"), comment("c2", "two"))
	ctx := context.Background()

	if err := f.settings.Set(ctx, "yt", "auto_reply", true); err != nil {
		t.Fatalf("set: %v", err)
	}
	f.src.replyErrs["c1"] = errors.New("comments disabled")

	_, err := f.pipeline.CheckComments(ctx, "yt", map[string]any{"on_item_error": OnItemErrorAbort})
	if err == nil {
		t.Fatal("expected abort policy to fail the run")
	}
}

func TestVideoErrorContinue(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.trackVideo(t, "v1")
	f.trackVideo(t, "v2", source.Comment{ID: "c9", VideoID: "v2", Author: "viewer", Text: "late comment"})
	ctx := context.Background()

	f.src.fetchErrs["v1"] = errors.New("quota exceeded")

	stats, err := f.pipeline.CheckComments(ctx, "yt", nil)
	if err == nil {
		t.Fatal("expected run error to report the failed video")
	}

	// The healthy video's page still lands.
	if stats.New != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if _, err := f.mem.Comments().Get(ctx, "c9"); err != nil {
		t.Errorf("comment from healthy video not stored: %v", err)
	}
	v2, err := f.mem.Get(ctx, "v2")
	if err != nil {
		t.Fatalf("get video: %v", err)
	}
	if v2.LastCheckedAt.IsZero() {
		t.Error("healthy video missing last-checked update")
	}
}

func TestFetchAnalysisNeverReplies(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.trackVideo(t, "v1", comment("c1", "one"))
	ctx := context.Background()

	// Even with auto_reply enabled, the analysis sweep is read-only.
	if err := f.settings.Set(ctx, "yt", "auto_reply", true); err != nil {
		t.Fatalf("set: %v", err)
	}

	stats, err := f.pipeline.FetchAnalysis(ctx, "yt", nil)
	if err != nil {
		t.Fatalf("FetchAnalysis: %v", err)
	}
	if stats.New != 1 || stats.Replied != 0 {
		t.Errorf("stats = %+v", stats)
	}
	if len(f.src.replies) != 0 {
		t.Error("analysis sweep must not post replies")
	}

	video, err := f.mem.Get(ctx, "v1")
	if err != nil {
		t.Fatalf("get video: %v", err)
	}
	if !video.LastCheckedAt.IsZero() {
		t.Error("analysis sweep must not stamp last checked")
	}
}

func TestPageSizeFromSettings(t *testing.T) {
	t.Parallel()
	mem := store.NewMem()
	svc := settings.NewService(mem.Settings())
	ctx := context.Background()

	var gotMax int
	src := &maxCapturingSource{fakeSource: newFakeSource(), gotMax: &gotMax}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	p := NewPipeline(mem, mem.Comments(), src, nil, svc, logger)

	if err := mem.Insert(ctx, store.Video{VideoID: "v1"}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := svc.Set(ctx, "yt", "page_size", 25); err != nil {
		t.Fatalf("set: %v", err)
	}

	if _, err := p.CheckComments(ctx, "yt", nil); err != nil {
		t.Fatalf("CheckComments: %v", err)
	}
	if gotMax != 25 {
		t.Errorf("page size = %d, want 25", gotMax)
	}
}

type maxCapturingSource struct {
	*fakeSource
	gotMax *int
}

func (s *maxCapturingSource) Comments(ctx context.Context, videoID string, max int) ([]source.Comment, error) {
	*s.gotMax = max
	return s.fakeSource.Comments(ctx, videoID, max)
}

func TestTrackIdempotent(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.src.videos["v1"] = source.Video{ID: "v1", Title: "Launch", ChannelID: "ch", Description: "launch notes"}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tracker := NewTracker(f.mem, f.src, logger)
	ctx := context.Background()

	first, err := tracker.Track(ctx, "v1")
	if err != nil {
		t.Fatalf("track: %v", err)
	}
	if first.Title != "Launch" || first.Description != "launch notes" {
		t.Errorf("tracked video = %+v", first)
	}

	second, err := tracker.Track(ctx, "v1")
	if err != nil {
		t.Fatalf("second track: %v", err)
	}
	if second.VideoID != first.VideoID {
		t.Errorf("second track = %+v", second)
	}
	if f.src.metaCalls != 1 {
		t.Errorf("expected 1 metadata fetch, got %d", f.src.metaCalls)
	}

	videos, _ := f.mem.List(ctx)
	if len(videos) != 1 {
		t.Errorf("expected 1 tracked video, got %d", len(videos))
	}
}

func TestTrackUnknownVideo(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tracker := NewTracker(f.mem, f.src, logger)

	_, err := tracker.Track(context.Background(), "missing")
	if !errors.Is(err, source.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestHandlersRegistered(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	reg := cron.NewHandlerRegistry()
	if err := RegisterHandlers(reg, f.pipeline); err != nil {
		t.Fatalf("register: %v", err)
	}
	for _, name := range []string{HandlerCheckComments, HandlerFetchAnalysis} {
		if _, ok := reg.Get(name); !ok {
			t.Errorf("handler %s not registered", name)
		}
	}
}
