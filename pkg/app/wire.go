package app

import (
	"context"
	"log/slog"

	"github.com/replyloop/replyloop/internal/chat"
	"github.com/replyloop/replyloop/internal/compose"
	"github.com/replyloop/replyloop/internal/config"
	"github.com/replyloop/replyloop/internal/core"
	"github.com/replyloop/replyloop/internal/cron"
	"github.com/replyloop/replyloop/internal/ingest"
	"github.com/replyloop/replyloop/internal/provider"
	"github.com/replyloop/replyloop/internal/settings"
	"github.com/replyloop/replyloop/internal/source"
	"github.com/replyloop/replyloop/internal/store"
	"github.com/replyloop/replyloop/modules/mcpserver"
)

// schedulerModule wraps a *cron.Scheduler to satisfy core.Module,
// core.Starter, and core.Stopper, so the scheduler participates in the
// App lifecycle.
type schedulerModule struct {
	sched *cron.Scheduler
}

func (m *schedulerModule) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{ID: "cron.scheduler"}
}

func (m *schedulerModule) Start() error {
	return m.sched.Start()
}

func (m *schedulerModule) Stop(ctx context.Context) error {
	return m.sched.Stop(ctx)
}

// wireScheduler builds the handler registry, the automation services and
// the scheduler from whatever the loaded modules registered, then appends
// the scheduler to the app lifecycle. Missing services degrade features
// rather than aborting: a setup without a video source still runs compose
// jobs, a setup without a provider still ingests comments.
// Must be called after LoadModules and before Start.
func wireScheduler(
	application *core.App,
	appCtx *core.AppContext,
	cfg *config.Config,
	logger *slog.Logger,
) error {
	var (
		prov          provider.Provider
		src           source.CommentSource
		videos        store.VideoStore
		comments      store.CommentStore
		settingStore  store.SettingStore
		conversations store.ConversationStore
		drafts        store.DraftStore
	)

	if svc, ok := appCtx.Service("provider"); ok {
		prov, _ = svc.(provider.Provider)
	}
	if svc, ok := appCtx.Service("source"); ok {
		src, _ = svc.(source.CommentSource)
	}
	if svc, ok := appCtx.Service("store.videos"); ok {
		videos, _ = svc.(store.VideoStore)
	}
	if svc, ok := appCtx.Service("store.comments"); ok {
		comments, _ = svc.(store.CommentStore)
	}
	if svc, ok := appCtx.Service("store.settings"); ok {
		settingStore, _ = svc.(store.SettingStore)
	}
	if svc, ok := appCtx.Service("store.conversations"); ok {
		conversations, _ = svc.(store.ConversationStore)
	}
	if svc, ok := appCtx.Service("store.drafts"); ok {
		drafts, _ = svc.(store.DraftStore)
	}

	var settingsSvc *settings.Service
	if settingStore != nil {
		settingsSvc = settings.NewService(settingStore)
		appCtx.RegisterService("settings.service", settingsSvc)
	}

	registry := cron.NewHandlerRegistry()

	var tracker *ingest.Tracker
	if videos != nil && comments != nil && src != nil {
		pipeline := ingest.NewPipeline(videos, comments, src, prov, settingsSvc, logger)
		if err := ingest.RegisterHandlers(registry, pipeline); err != nil {
			return err
		}
		tracker = ingest.NewTracker(videos, src, logger)
		appCtx.RegisterService("ingest.tracker", tracker)
		logger.Info("wiring: ingestion pipeline ready")
	} else {
		logger.Info("wiring: no video source or store, ingestion disabled")
	}

	if drafts != nil {
		composer := compose.NewComposer(drafts, prov, settingsSvc, logger)
		if err := compose.RegisterHandlers(registry, composer); err != nil {
			return err
		}
		logger.Info("wiring: composer ready")
	}

	cron.RegisterMetrics()
	sched := cron.NewScheduler(registry, logger)

	for _, jc := range cfg.Jobs {
		sched.Register(cron.Job{
			Name:     jc.Name,
			Schedule: jc.Schedule,
			Enabled:  jc.IsEnabled(),
			Handler:  jc.Handler,
			Overlap:  overlapPolicy(jc.Overlap),
			Params:   jc.Settings,
		})
	}

	appCtx.RegisterService("cron.scheduler", sched)

	if conversations != nil && prov != nil {
		chatSvc := chat.NewService(conversations, prov, sched, logger)
		appCtx.RegisterService("chat.service", chatSvc)
	}

	// The MCP server provisions before the scheduler exists; hand it the
	// runtime dependencies now.
	if svc, ok := appCtx.Service("mcp.server"); ok {
		if m, ok := svc.(*mcpserver.Module); ok {
			// A nil *Tracker must not become a non-nil interface value.
			var vt mcpserver.VideoTracker
			if tracker != nil {
				vt = tracker
			}
			m.Bind(sched, vt)
		}
	}

	application.AppendModule("cron.scheduler", &schedulerModule{sched: sched})

	logger.Info("wiring: scheduler ready",
		"jobs", len(sched.Jobs()),
		"handlers", len(registry.Names()),
	)
	return nil
}

// overlapPolicy maps config overlap strings to scheduler policies.
func overlapPolicy(s string) cron.OverlapPolicy {
	if s == config.OverlapQueue {
		return cron.OverlapQueue
	}
	return cron.OverlapSkip
}
