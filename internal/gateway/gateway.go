// Package gateway provides the HTTP server for administration, monitoring
// and chat. It binds to loopback by default and follows the module system
// pattern. It is a leaf module — nothing imports it.
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/replyloop/replyloop/internal/chat"
	"github.com/replyloop/replyloop/internal/core"
	"github.com/replyloop/replyloop/internal/cron"
	"github.com/replyloop/replyloop/internal/provider"
	"github.com/replyloop/replyloop/internal/secrets"
	"github.com/replyloop/replyloop/internal/settings"
	"github.com/replyloop/replyloop/internal/store"
)

func init() {
	core.RegisterModule(&Gateway{})
}

// JobRunner is the slice of the scheduler the gateway needs.
type JobRunner interface {
	Jobs() []string
	Snapshot() []cron.JobStatus
	RunNow(ctx context.Context, name string, extra map[string]any) (cron.Outcome, error)
	Running() bool
}

// VideoTracker registers a video for comment polling.
type VideoTracker interface {
	Track(ctx context.Context, videoID string) (store.Video, error)
}

// ChatService handles conversational job triggering.
type ChatService interface {
	Send(ctx context.Context, job, conversationID, userInput string, emit func(chunk string) error) (chat.Result, error)
}

// Gateway is the HTTP gateway module.
type Gateway struct {
	config    Config
	appCtx    *core.AppContext
	logger    *slog.Logger
	server    *http.Server
	startedAt time.Time

	// Resolved lazily at Start() via service registry.
	scheduler     JobRunner
	tracker       VideoTracker
	chat          ChatService
	settings      *settings.Service
	health        provider.HealthChecker
	videos        store.VideoStore
	comments      store.CommentStore
	conversations store.ConversationStore
	drafts        store.DraftStore
}

// ModuleInfo implements core.Module.
func (g *Gateway) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "gateway.http",
		New: func() core.Module { return &Gateway{} },
	}
}

// Configure implements core.Configurable.
func (g *Gateway) Configure(node *yaml.Node) error {
	if err := node.Decode(&g.config); err != nil {
		return err
	}
	g.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (g *Gateway) Provision(ctx *core.AppContext) error {
	g.config.defaults()
	g.appCtx = ctx
	g.logger = ctx.Logger

	if svc, ok := ctx.Service("secrets.redactor"); ok {
		if r, ok := svc.(*secrets.Redactor); ok {
			r.AddLiteral(g.config.Auth.BearerToken)
			r.AddLiteral(g.config.Auth.BasicPass)
		}
	}

	return nil
}

// Validate implements core.Validator.
func (g *Gateway) Validate() error {
	if _, err := net.ResolveTCPAddr("tcp", g.config.Bind); err != nil {
		return errors.New("gateway: invalid bind address: " + g.config.Bind)
	}
	return nil
}

// Start implements core.Starter. It resolves dependencies from the service
// registry (lazy binding) and starts the HTTP server.
func (g *Gateway) Start() error {
	g.resolveServices()
	g.startedAt = time.Now()

	mux := g.buildRouter()

	g.server = &http.Server{
		Addr:         g.config.Bind,
		Handler:      mux,
		ReadTimeout:  g.config.ReadTimeout,
		WriteTimeout: g.config.WriteTimeout,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", g.config.Bind)
	if err != nil {
		return errors.New("gateway: listen failed: " + err.Error())
	}

	go func() {
		g.logger.Info("gateway listening", "addr", g.config.Bind)
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("gateway serve error", "error", err)
		}
	}()

	return nil
}

// resolveServices binds the optional collaborators published by other
// modules and by the wiring layer. Endpoints degrade gracefully when a
// service is missing.
func (g *Gateway) resolveServices() {
	if svc, ok := g.appCtx.Service("cron.scheduler"); ok {
		if s, ok := svc.(JobRunner); ok {
			g.scheduler = s
		}
	}
	if svc, ok := g.appCtx.Service("ingest.tracker"); ok {
		if t, ok := svc.(VideoTracker); ok {
			g.tracker = t
		}
	}
	if svc, ok := g.appCtx.Service("chat.service"); ok {
		if c, ok := svc.(ChatService); ok {
			g.chat = c
		}
	}
	if svc, ok := g.appCtx.Service("settings.service"); ok {
		if s, ok := svc.(*settings.Service); ok {
			g.settings = s
		}
	}
	if svc, ok := g.appCtx.Service("provider"); ok {
		if h, ok := svc.(provider.HealthChecker); ok {
			g.health = h
		}
	}
	if svc, ok := g.appCtx.Service("store.videos"); ok {
		if s, ok := svc.(store.VideoStore); ok {
			g.videos = s
		}
	}
	if svc, ok := g.appCtx.Service("store.comments"); ok {
		if s, ok := svc.(store.CommentStore); ok {
			g.comments = s
		}
	}
	if svc, ok := g.appCtx.Service("store.conversations"); ok {
		if s, ok := svc.(store.ConversationStore); ok {
			g.conversations = s
		}
	}
	if svc, ok := g.appCtx.Service("store.drafts"); ok {
		if s, ok := svc.(store.DraftStore); ok {
			g.drafts = s
		}
	}
}

// Stop implements core.Stopper. Graceful shutdown with configured timeout.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, g.config.ShutdownTimeout)
	defer cancel()

	g.logger.Info("gateway shutting down")
	return g.server.Shutdown(shutdownCtx)
}
