package gateway

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/replyloop/replyloop/internal/chat"
	"github.com/replyloop/replyloop/internal/cron"
	"github.com/replyloop/replyloop/internal/settings"
	"github.com/replyloop/replyloop/internal/store"
)

const testToken = "test-token"

type fakeScheduler struct {
	statuses []cron.JobStatus
	outcome  cron.Outcome
	err      error
	running  bool

	ran       []string
	lastExtra map[string]any
}

func (f *fakeScheduler) Jobs() []string {
	names := make([]string, 0, len(f.statuses))
	for _, st := range f.statuses {
		names = append(names, st.Job.Name)
	}
	return names
}

func (f *fakeScheduler) Snapshot() []cron.JobStatus { return f.statuses }

func (f *fakeScheduler) Running() bool { return f.running }

func (f *fakeScheduler) RunNow(_ context.Context, name string, extra map[string]any) (cron.Outcome, error) {
	f.ran = append(f.ran, name)
	f.lastExtra = extra
	return f.outcome, f.err
}

type fakeTracker struct {
	video store.Video
	err   error
}

func (f *fakeTracker) Track(_ context.Context, videoID string) (store.Video, error) {
	if f.err != nil {
		return store.Video{}, f.err
	}
	v := f.video
	v.VideoID = videoID
	return v, nil
}

type fakeChat struct {
	chunks []string
	result chat.Result
	err    error
}

func (f *fakeChat) Send(_ context.Context, _, _, _ string, emit func(string) error) (chat.Result, error) {
	if f.err != nil {
		return chat.Result{}, f.err
	}
	for _, c := range f.chunks {
		if err := emit(c); err != nil {
			return chat.Result{}, err
		}
	}
	return f.result, nil
}

type fakeHealth struct {
	err error
}

func (f *fakeHealth) HealthCheck(context.Context) error { return f.err }

// newTestGateway builds a gateway with fakes and an in-memory store,
// bypassing the module lifecycle.
func newTestGateway(t *testing.T, sched *fakeScheduler) (*Gateway, *store.Mem) {
	t.Helper()

	mem := store.NewMem()
	g := &Gateway{
		config:        Config{Auth: AuthConfig{BearerToken: testToken}},
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		startedAt:     time.Now(),
		scheduler:     sched,
		settings:      settings.NewService(mem.Settings()),
		videos:        mem,
		comments:      mem.Comments(),
		conversations: mem,
		drafts:        mem,
	}
	g.config.defaults()
	return g, mem
}

func get(t *testing.T, h http.Handler, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func post(t *testing.T, h http.Handler, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthOK(t *testing.T) {
	t.Parallel()

	g, _ := newTestGateway(t, &fakeScheduler{running: true})
	g.health = &fakeHealth{}
	h := g.buildRouter()

	rec := get(t, h, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "ok" || !resp.Scheduler || resp.Provider != "ok" {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestHealthDegradedWhenSchedulerStopped(t *testing.T) {
	t.Parallel()

	g, _ := newTestGateway(t, &fakeScheduler{running: false})
	h := g.buildRouter()

	rec := get(t, h, "/health", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestMetricsEndpointPublic(t *testing.T) {
	t.Parallel()

	g, _ := newTestGateway(t, &fakeScheduler{running: true})
	h := g.buildRouter()

	rec := get(t, h, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestAuthRequired(t *testing.T) {
	t.Parallel()

	g, _ := newTestGateway(t, &fakeScheduler{running: true})
	h := g.buildRouter()

	for _, path := range []string{"/status", "/api/jobs", "/api/videos"} {
		rec := get(t, h, path, "")
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s without auth: status = %d, want 401", path, rec.Code)
		}
		rec = get(t, h, path, "wrong-token")
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s with bad token: status = %d, want 401", path, rec.Code)
		}
	}
}

func TestAdminRoutesNotMountedWithoutAuth(t *testing.T) {
	t.Parallel()

	g, _ := newTestGateway(t, &fakeScheduler{running: true})
	g.config.Auth = AuthConfig{}
	h := g.buildRouter()

	rec := get(t, h, "/status", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 when auth is unconfigured", rec.Code)
	}
}

func TestListJobs(t *testing.T) {
	t.Parallel()

	sched := &fakeScheduler{statuses: []cron.JobStatus{
		{Job: cron.Job{Name: "youtube", Schedule: "*/5 * * * *"}, Runs: 2},
	}}
	g, _ := newTestGateway(t, sched)
	h := g.buildRouter()

	rec := get(t, h, "/api/jobs", testToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var jobs []cron.JobStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &jobs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(jobs) != 1 || jobs[0].Job.Name != "youtube" {
		t.Errorf("jobs = %+v", jobs)
	}
}

func TestRunJob(t *testing.T) {
	t.Parallel()

	sched := &fakeScheduler{outcome: cron.Outcome{Job: "youtube"}}
	g, _ := newTestGateway(t, sched)
	h := g.buildRouter()

	rec := post(t, h, "/api/jobs/youtube/run", testToken, `{"page_size": 10}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if len(sched.ran) != 1 || sched.ran[0] != "youtube" {
		t.Errorf("ran = %v", sched.ran)
	}
	if sched.lastExtra["page_size"] != float64(10) {
		t.Errorf("extra = %v", sched.lastExtra)
	}
}

func TestRunJobUnknown(t *testing.T) {
	t.Parallel()

	sched := &fakeScheduler{err: cron.ErrUnknownJob}
	g, _ := newTestGateway(t, sched)
	h := g.buildRouter()

	rec := post(t, h, "/api/jobs/nope/run", testToken, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestRunJobBusy(t *testing.T) {
	t.Parallel()

	sched := &fakeScheduler{err: cron.ErrJobBusy}
	g, _ := newTestGateway(t, sched)
	h := g.buildRouter()

	rec := post(t, h, "/api/jobs/youtube/run", testToken, "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
}

func TestSettingsRoundtrip(t *testing.T) {
	t.Parallel()

	g, _ := newTestGateway(t, &fakeScheduler{})
	h := g.buildRouter()

	req := httptest.NewRequest(http.MethodPut, "/api/jobs/youtube/settings",
		strings.NewReader(`{"auto_reply": true, "page_size": 25}`))
	req.Header.Set("Authorization", "Bearer "+testToken)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("put status = %d, want 204: %s", rec.Code, rec.Body.String())
	}

	rec = get(t, h, "/api/jobs/youtube/settings", testToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d, want 200", rec.Code)
	}

	var values map[string]json.RawMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &values); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(values["auto_reply"]) != "true" {
		t.Errorf("auto_reply = %s", values["auto_reply"])
	}
	if string(values["page_size"]) != "25" {
		t.Errorf("page_size = %s", values["page_size"])
	}
}

func TestTrackAndListVideos(t *testing.T) {
	t.Parallel()

	g, mem := newTestGateway(t, &fakeScheduler{})
	g.tracker = &fakeTracker{video: store.Video{Title: "Launch day"}}
	h := g.buildRouter()

	rec := post(t, h, "/api/videos", testToken, `{"video_id": "vid-1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("track status = %d: %s", rec.Code, rec.Body.String())
	}

	// The fake tracker does not persist; seed the store directly for the
	// list assertion.
	if err := mem.Insert(context.Background(), store.Video{VideoID: "vid-1", Title: "Launch day"}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	rec = get(t, h, "/api/videos", testToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var videos []store.Video
	if err := json.Unmarshal(rec.Body.Bytes(), &videos); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(videos) != 1 || videos[0].Title != "Launch day" {
		t.Errorf("videos = %+v", videos)
	}
}

func TestTrackVideoMissingID(t *testing.T) {
	t.Parallel()

	g, _ := newTestGateway(t, &fakeScheduler{})
	g.tracker = &fakeTracker{}
	h := g.buildRouter()

	rec := post(t, h, "/api/videos", testToken, `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestGetConversation(t *testing.T) {
	t.Parallel()

	g, mem := newTestGateway(t, &fakeScheduler{})
	h := g.buildRouter()

	ctx := context.Background()
	if err := mem.CreateConversation(ctx, store.Conversation{ID: "conv-1", Job: "compose", Status: "active"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := mem.AppendMessage(ctx, store.Message{ID: "m1", ConversationID: "conv-1", Role: "user", Content: "hi"}); err != nil {
		t.Fatalf("append: %v", err)
	}

	rec := get(t, h, "/api/conversations/conv-1", testToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp conversationResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Conversation.Job != "compose" || len(resp.Messages) != 1 {
		t.Errorf("response = %+v", resp)
	}

	rec = get(t, h, "/api/conversations/missing", testToken)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing conversation: status = %d, want 404", rec.Code)
	}
}

func TestChatStreamsEvents(t *testing.T) {
	t.Parallel()

	g, _ := newTestGateway(t, &fakeScheduler{})
	g.chat = &fakeChat{
		chunks: []string{"Hello", " there"},
		result: chat.Result{ConversationID: "conv-1", Reply: "Hello there"},
	}
	h := g.buildRouter()

	rec := post(t, h, "/api/jobs/compose/chat", testToken, `{"message": "write a post"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content-type = %q", ct)
	}

	var events []chatEvent
	for _, line := range strings.Split(rec.Body.String(), "\n") {
		if data, ok := strings.CutPrefix(line, "data: "); ok {
			var ev chatEvent
			if err := json.Unmarshal([]byte(data), &ev); err != nil {
				t.Fatalf("decode event %q: %v", data, err)
			}
			events = append(events, ev)
		}
	}
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	if events[0].Content != "Hello" || events[1].Content != " there" {
		t.Errorf("chunks = %+v", events[:2])
	}
	last := events[2]
	if last.Type != "done" || last.ConversationID != "conv-1" || last.Reply != "Hello there" {
		t.Errorf("done event = %+v", last)
	}
}

func TestChatUnknownJob(t *testing.T) {
	t.Parallel()

	g, _ := newTestGateway(t, &fakeScheduler{})
	g.chat = &fakeChat{err: chat.ErrUnknownJob}
	h := g.buildRouter()

	rec := post(t, h, "/api/jobs/nope/chat", testToken, `{"message": "hi"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestChatEmptyMessage(t *testing.T) {
	t.Parallel()

	g, _ := newTestGateway(t, &fakeScheduler{})
	g.chat = &fakeChat{}
	h := g.buildRouter()

	rec := post(t, h, "/api/jobs/compose/chat", testToken, `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestStatus(t *testing.T) {
	t.Parallel()

	sched := &fakeScheduler{
		running:  true,
		statuses: []cron.JobStatus{{Job: cron.Job{Name: "youtube"}, Runs: 5}},
	}
	g, mem := newTestGateway(t, sched)
	h := g.buildRouter()

	ctx := context.Background()
	comments := mem.Comments()
	if err := comments.Insert(ctx, store.Comment{CommentID: "c1", VideoID: "vid-1"}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	rec := get(t, h, "/status", testToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp StatusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Scheduler || len(resp.Jobs) != 1 || resp.Comments != 1 {
		t.Errorf("response = %+v", resp)
	}
}
