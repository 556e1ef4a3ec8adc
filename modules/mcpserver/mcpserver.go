// Package mcpserver implements the mcp.server module, which exposes the
// scheduler and video tracker to MCP clients over SSE. The transports are
// deliberately small: three tools covering the operations an agent needs
// to drive the daemon without the HTTP API.
package mcpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"gopkg.in/yaml.v3"

	"github.com/replyloop/replyloop/internal/core"
	"github.com/replyloop/replyloop/internal/cron"
	"github.com/replyloop/replyloop/internal/store"
)

func init() {
	core.RegisterModule(&Module{})
}

// Compile-time interface guards.
var (
	_ core.Configurable = (*Module)(nil)
	_ core.Provisioner  = (*Module)(nil)
	_ core.Starter      = (*Module)(nil)
	_ core.Stopper      = (*Module)(nil)
)

const (
	serverName     = "replyloop"
	serverVersion  = "1.0.0"
	defaultAddress = "127.0.0.1:8765"
)

// JobRunner is the slice of the scheduler the MCP tools need.
type JobRunner interface {
	Jobs() []string
	Snapshot() []cron.JobStatus
	RunNow(ctx context.Context, name string, extra map[string]any) (cron.Outcome, error)
}

// VideoTracker registers a video for comment polling.
type VideoTracker interface {
	Track(ctx context.Context, videoID string) (store.Video, error)
}

// Config holds the MCP server module configuration.
type Config struct {
	// Address is the SSE listen address. Defaults to 127.0.0.1:8765.
	Address string `yaml:"address"`
}

func (c *Config) defaults() {
	if c.Address == "" {
		c.Address = defaultAddress
	}
}

// Module serves MCP tools over SSE.
type Module struct {
	config Config
	logger *slog.Logger

	srv *server.MCPServer
	sse *server.SSEServer

	jobs    JobRunner
	tracker VideoTracker
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "mcp.server",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("mcpserver: decode config: %w", err)
	}
	m.config.defaults()
	return nil
}

// Provision implements core.Provisioner. The scheduler and tracker do not
// exist yet at provision time; they are attached via Bind before Start.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.config.defaults()
	m.logger = ctx.Logger

	m.srv = server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithToolCapabilities(true),
	)
	m.registerTools()

	ctx.RegisterService("mcp.server", m)
	return nil
}

// Bind attaches the runtime dependencies the tools dispatch to.
func (m *Module) Bind(jobs JobRunner, tracker VideoTracker) {
	m.jobs = jobs
	m.tracker = tracker
}

// Start implements core.Starter.
func (m *Module) Start() error {
	if m.jobs == nil {
		return fmt.Errorf("mcpserver: started without a job runner")
	}

	m.sse = server.NewSSEServer(m.srv)

	go func() {
		m.logger.Info("mcp server listening", "address", m.config.Address)
		if err := m.sse.Start(m.config.Address); err != nil && err != http.ErrServerClosed {
			m.logger.Error("mcp server failed", "error", err)
		}
	}()

	return nil
}

// Stop implements core.Stopper.
func (m *Module) Stop(ctx context.Context) error {
	if m.sse == nil {
		return nil
	}
	m.logger.Info("mcp server stopping")
	if err := m.sse.Shutdown(ctx); err != nil {
		return fmt.Errorf("mcpserver: shutdown: %w", err)
	}
	return nil
}

func (m *Module) registerTools() {
	listTool := mcp.NewTool("list_jobs",
		mcp.WithDescription("List the configured jobs with their run counts and last outcome"),
	)
	m.srv.AddTool(listTool, m.handleListJobs)

	runTool := mcp.NewTool("run_job",
		mcp.WithDescription("Trigger a job immediately, outside its schedule"),
		mcp.WithString("job",
			mcp.Required(),
			mcp.Description("Name of the job to run"),
		),
	)
	m.srv.AddTool(runTool, m.handleRunJob)

	trackTool := mcp.NewTool("track_video",
		mcp.WithDescription("Register a video so its comments are polled on the next sweep"),
		mcp.WithString("video_id",
			mcp.Required(),
			mcp.Description("Video identifier to track"),
		),
	)
	m.srv.AddTool(trackTool, m.handleTrackVideo)
}

func (m *Module) handleListJobs(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	statuses := m.jobs.Snapshot()
	if len(statuses) == 0 {
		return mcp.NewToolResultText("No jobs configured"), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d job(s):\n", len(statuses))
	for _, st := range statuses {
		fmt.Fprintf(&b, "- %s (%s): %d run(s)", st.Job.Name, st.Job.Schedule, st.Runs)
		if st.Last != nil {
			if st.Last.OK() {
				fmt.Fprintf(&b, ", last run ok at %s", st.Last.StartedAt.Format("2006-01-02 15:04:05"))
			} else {
				fmt.Fprintf(&b, ", last run failed: %s", st.Last.Error)
			}
		}
		b.WriteString("\n")
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (m *Module) handleRunJob(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	job, err := request.RequireString("job")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	outcome, err := m.jobs.RunNow(ctx, job, nil)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to run %s: %v", job, err)), nil
	}
	if !outcome.OK() {
		return mcp.NewToolResultError(fmt.Sprintf("Job %s failed: %s", job, outcome.Error)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Job %s completed in %s", job, outcome.Duration)), nil
}

func (m *Module) handleTrackVideo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if m.tracker == nil {
		return mcp.NewToolResultError("No video source configured"), nil
	}

	videoID, err := request.RequireString("video_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	video, err := m.tracker.Track(ctx, videoID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to track %s: %v", videoID, err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Tracking %q (%s)", video.Title, video.VideoID)), nil
}
