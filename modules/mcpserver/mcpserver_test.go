package mcpserver

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/replyloop/replyloop/internal/core"
	"github.com/replyloop/replyloop/internal/cron"
	"github.com/replyloop/replyloop/internal/store"
)

type fakeRunner struct {
	statuses []cron.JobStatus
	outcome  cron.Outcome
	err      error

	ran []string
}

func (f *fakeRunner) Jobs() []string {
	names := make([]string, 0, len(f.statuses))
	for _, st := range f.statuses {
		names = append(names, st.Job.Name)
	}
	return names
}

func (f *fakeRunner) Snapshot() []cron.JobStatus { return f.statuses }

func (f *fakeRunner) RunNow(_ context.Context, name string, _ map[string]any) (cron.Outcome, error) {
	f.ran = append(f.ran, name)
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

func newTestModule(t *testing.T, runner JobRunner, tracker VideoTracker) *Module {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	appCtx := core.NewAppContext(logger, t.TempDir())

	m := &Module{}
	if err := m.Provision(appCtx); err != nil {
		t.Fatalf("provision: %v", err)
	}
	m.Bind(runner, tracker)
	return m
}

func toolRequest(name string, args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) == 0 {
		t.Fatal("result has no content")
	}
	text, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content[0] is %T, want TextContent", res.Content[0])
	}
	return text.Text
}

func TestListJobsEmpty(t *testing.T) {
	t.Parallel()

	m := newTestModule(t, &fakeRunner{}, nil)
	res, err := m.handleListJobs(context.Background(), toolRequest("list_jobs", nil))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if got := resultText(t, res); !strings.Contains(got, "No jobs") {
		t.Errorf("text = %q", got)
	}
}

func TestListJobsWithOutcome(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{statuses: []cron.JobStatus{
		{
			Job:  cron.Job{Name: "youtube", Schedule: "*/5 * * * *"},
			Runs: 3,
			Last: &cron.Outcome{Job: "youtube", StartedAt: time.Now()},
		},
		{
			Job:  cron.Job{Name: "compose", Schedule: "0 9 * * *"},
			Runs: 1,
			Last: &cron.Outcome{Job: "compose", Error: "provider down", Err: errors.New("provider down")},
		},
	}}

	m := newTestModule(t, runner, nil)
	res, err := m.handleListJobs(context.Background(), toolRequest("list_jobs", nil))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}

	got := resultText(t, res)
	if !strings.Contains(got, "youtube (*/5 * * * *): 3 run(s)") {
		t.Errorf("missing youtube line in %q", got)
	}
	if !strings.Contains(got, "last run failed: provider down") {
		t.Errorf("missing failure line in %q", got)
	}
}

func TestRunJob(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{outcome: cron.Outcome{Job: "youtube", Duration: time.Second}}
	m := newTestModule(t, runner, nil)

	res, err := m.handleRunJob(context.Background(), toolRequest("run_job", map[string]any{"job": "youtube"}))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if res.IsError {
		t.Fatalf("unexpected error result: %s", resultText(t, res))
	}
	if len(runner.ran) != 1 || runner.ran[0] != "youtube" {
		t.Errorf("ran = %v", runner.ran)
	}
}

func TestRunJobMissingArgument(t *testing.T) {
	t.Parallel()

	m := newTestModule(t, &fakeRunner{}, nil)
	res, err := m.handleRunJob(context.Background(), toolRequest("run_job", nil))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !res.IsError {
		t.Error("missing job argument should produce an error result")
	}
}

func TestRunJobUnknown(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{err: cron.ErrUnknownJob}
	m := newTestModule(t, runner, nil)

	res, err := m.handleRunJob(context.Background(), toolRequest("run_job", map[string]any{"job": "nope"}))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !res.IsError {
		t.Error("unknown job should produce an error result")
	}
}

func TestTrackVideo(t *testing.T) {
	t.Parallel()

	tracker := &fakeTracker{video: store.Video{Title: "Launch day"}}
	m := newTestModule(t, &fakeRunner{}, tracker)

	res, err := m.handleTrackVideo(context.Background(), toolRequest("track_video", map[string]any{"video_id": "vid-1"}))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if res.IsError {
		t.Fatalf("unexpected error result: %s", resultText(t, res))
	}
	got := resultText(t, res)
	if !strings.Contains(got, "Launch day") || !strings.Contains(got, "vid-1") {
		t.Errorf("text = %q", got)
	}
}

func TestTrackVideoWithoutTracker(t *testing.T) {
	t.Parallel()

	m := newTestModule(t, &fakeRunner{}, nil)
	res, err := m.handleTrackVideo(context.Background(), toolRequest("track_video", map[string]any{"video_id": "vid-1"}))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !res.IsError {
		t.Error("tracking without a source should produce an error result")
	}
}
