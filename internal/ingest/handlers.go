package ingest

import (
	"context"
	"fmt"

	"github.com/replyloop/replyloop/internal/cron"
)

// Handler names exposed to the job registry.
const (
	HandlerCheckComments = "youtube.check_comments"
	HandlerFetchAnalysis = "youtube.fetch_analysis"
)

// RegisterHandlers adds the ingest handlers to the registry.
func RegisterHandlers(reg *cron.HandlerRegistry, p *Pipeline) error {
	if err := reg.Register(HandlerCheckComments, func(ctx context.Context, params map[string]any) error {
		_, err := p.CheckComments(ctx, jobName(params), params)
		return err
	}); err != nil {
		return fmt.Errorf("ingest: register %s: %w", HandlerCheckComments, err)
	}

	if err := reg.Register(HandlerFetchAnalysis, func(ctx context.Context, params map[string]any) error {
		_, err := p.FetchAnalysis(ctx, jobName(params), params)
		return err
	}); err != nil {
		return fmt.Errorf("ingest: register %s: %w", HandlerFetchAnalysis, err)
	}

	return nil
}

// jobName extracts the firing job's name from handler params.
func jobName(params map[string]any) string {
	name, _ := params[cron.ParamJob].(string)
	return name
}
