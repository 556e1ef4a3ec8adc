// Package youtube implements the source.youtube module, a thin client for
// the YouTube Data API v3. Reads use an API key; posting replies requires
// OAuth credentials with a refresh token.
package youtube

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/replyloop/replyloop/internal/core"
	"github.com/replyloop/replyloop/internal/secrets"
	"github.com/replyloop/replyloop/internal/source"
	"gopkg.in/yaml.v3"
)

func init() {
	core.RegisterModule(&Source{})
}

// Compile-time interface guards.
var (
	_ source.CommentSource = (*Source)(nil)
	_ core.Module          = (*Source)(nil)
	_ core.Configurable    = (*Source)(nil)
	_ core.Provisioner     = (*Source)(nil)
	_ core.Validator       = (*Source)(nil)
)

// Source implements source.CommentSource over the YouTube Data API v3.
type Source struct {
	config Config
	logger *slog.Logger
	client *http.Client
	tokens *tokenCache
}

// ModuleInfo implements core.Module.
func (s *Source) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "source.youtube",
		New: func() core.Module { return &Source{} },
	}
}

// Configure implements core.Configurable.
func (s *Source) Configure(node *yaml.Node) error {
	if err := node.Decode(&s.config); err != nil {
		return err
	}
	s.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (s *Source) Provision(ctx *core.AppContext) error {
	s.logger = ctx.Logger
	s.client = &http.Client{
		Timeout: 60 * time.Second,
	}
	s.tokens = &tokenCache{}

	if svc, ok := ctx.Service("secrets.redactor"); ok {
		if r, ok := svc.(*secrets.Redactor); ok {
			r.AddLiteral(s.config.APIKey)
			r.AddLiteral(s.config.ClientSecret)
			r.AddLiteral(s.config.RefreshToken)
		}
	}

	ctx.RegisterService("source", s)

	return nil
}

// Validate implements core.Validator.
func (s *Source) Validate() error {
	if s.config.APIKey == "" && !s.config.hasOAuth() {
		return errors.New("source.youtube: api_key or oauth credentials are required")
	}
	// Partially specified OAuth credentials are a config mistake, not a
	// read-only setup.
	if s.config.partialOAuth() {
		return errors.New("source.youtube: client_id, client_secret and refresh_token must be set together")
	}
	return nil
}

// CanReply reports whether write credentials are configured.
func (s *Source) CanReply() bool {
	return s.config.hasOAuth()
}
