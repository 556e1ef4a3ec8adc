// Package openai implements the provider.openai module, providing OpenAI
// Chat Completions API support with streaming. It is the generation backend
// for reply composition, draft authoring, and the conversational trigger.
package openai

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/replyloop/replyloop/internal/core"
	"github.com/replyloop/replyloop/internal/provider"
	"github.com/replyloop/replyloop/internal/secrets"
	"gopkg.in/yaml.v3"
)

func init() {
	core.RegisterModule(&Provider{})
}

// Compile-time interface guards.
var (
	_ provider.Provider      = (*Provider)(nil)
	_ provider.HealthChecker = (*Provider)(nil)
	_ core.Module            = (*Provider)(nil)
	_ core.Configurable      = (*Provider)(nil)
	_ core.Provisioner       = (*Provider)(nil)
	_ core.Validator         = (*Provider)(nil)
)

// Provider implements the OpenAI Chat Completions API as a replyloop
// provider module.
type Provider struct {
	config       Config
	logger       *slog.Logger
	client       *http.Client
	streamClient *http.Client
}

// ModuleInfo implements core.Module.
func (p *Provider) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "provider.openai",
		New: func() core.Module { return &Provider{} },
	}
}

// Configure implements core.Configurable.
func (p *Provider) Configure(node *yaml.Node) error {
	if err := node.Decode(&p.config); err != nil {
		return err
	}
	p.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (p *Provider) Provision(ctx *core.AppContext) error {
	p.logger = ctx.Logger

	// Separate clients for non-streaming and streaming requests.
	// http.Client.Timeout is a hard deadline for the entire response body,
	// which would kill long-lived SSE streams. The streaming client uses no
	// timeout; cancellation is handled via context.
	p.client = &http.Client{
		Timeout: p.config.parsedTimeout(),
	}
	p.streamClient = &http.Client{}

	if svc, ok := ctx.Service("secrets.redactor"); ok {
		if r, ok := svc.(*secrets.Redactor); ok {
			r.AddLiteral(p.config.APIKey)
		}
	}

	ctx.RegisterService("provider", p)

	return nil
}

// Validate implements core.Validator.
func (p *Provider) Validate() error {
	if p.config.APIKey == "" {
		return errors.New("provider.openai: api_key is required")
	}
	if p.config.Model == "" {
		return errors.New("provider.openai: model is required")
	}
	return p.config.validateTimeout()
}
