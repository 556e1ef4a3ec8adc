package youtube

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/replyloop/replyloop/internal/source"
)

// maxResponseBytes caps API response reads to prevent unbounded memory use.
const maxResponseBytes = 10 << 20 // 10 MiB

// tokenCache holds the current OAuth access token. Tokens are refreshed
// lazily on first write and when within a minute of expiry.
type tokenCache struct {
	mu      sync.Mutex
	token   string
	expires time.Time
}

// get performs an authenticated GET against the Data API and decodes the
// response into out.
func (s *Source) get(ctx context.Context, path string, params url.Values, out any) error {
	if s.config.APIKey != "" {
		params.Set("key", s.config.APIKey)
	}

	reqURL := s.config.BaseURL + path + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("youtube: create request: %w", err)
	}

	if s.config.APIKey == "" {
		token, err := s.accessToken(ctx)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return s.do(req, out)
}

// post performs an OAuth-authenticated POST against the Data API.
func (s *Source) post(ctx context.Context, path string, params url.Values, payload, out any) error {
	token, err := s.accessToken(ctx)
	if err != nil {
		return err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("youtube: marshal request: %w", err)
	}

	reqURL := s.config.BaseURL + path + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("youtube: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	return s.do(req, out)
}

// do executes the request, maps error responses to source sentinels, and
// decodes 2xx bodies into out (which may be nil).
func (s *Source) do(req *http.Request, out any) error {
	resp, err := s.client.Do(req)
	if err != nil {
		// Wrap without the raw URL to avoid leaking the key-bearing
		// query string in error messages.
		return fmt.Errorf("youtube: %s %s failed: %w", req.Method, req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("youtube: read response: %w", err)
	}

	if err := mapAPIError(resp.StatusCode, body); err != nil {
		return err
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("youtube: decode response: %w", err)
	}
	return nil
}

// mapAPIError converts a non-2xx Data API response into a source error.
func mapAPIError(status int, body []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}
	if status == http.StatusNotFound {
		return source.ErrNotFound
	}

	apiErr := &source.APIError{Status: status, Message: string(body)}
	var parsed errorResponse
	if json.Unmarshal(body, &parsed) == nil && parsed.Error.Message != "" {
		apiErr.Message = parsed.Error.Message
		if len(parsed.Error.Errors) > 0 {
			apiErr.Reason = parsed.Error.Errors[0].Reason
		}
	}
	return apiErr
}

// accessToken returns a valid OAuth access token, refreshing it when absent
// or within a minute of expiry.
func (s *Source) accessToken(ctx context.Context) (string, error) {
	if !s.config.hasOAuth() {
		return "", fmt.Errorf("youtube: %w: oauth credentials missing", source.ErrNotConfigured)
	}

	s.tokens.mu.Lock()
	defer s.tokens.mu.Unlock()

	if s.tokens.token != "" && time.Until(s.tokens.expires) > time.Minute {
		return s.tokens.token, nil
	}

	form := url.Values{
		"client_id":     {s.config.ClientID},
		"client_secret": {s.config.ClientSecret},
		"refresh_token": {s.config.RefreshToken},
		"grant_type":    {"refresh_token"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("youtube: create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("youtube: token refresh failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("youtube: read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", &source.APIError{Status: resp.StatusCode, Reason: "tokenRefresh", Message: string(body)}
	}

	var tok tokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return "", fmt.Errorf("youtube: decode token response: %w", err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("youtube: token refresh returned no access token")
	}

	s.tokens.token = tok.AccessToken
	s.tokens.expires = time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	s.logger.Debug("youtube: access token refreshed", "expires_in", tok.ExpiresIn)

	return s.tokens.token, nil
}

// VideoByID returns metadata for a single video.
func (s *Source) VideoByID(ctx context.Context, videoID string) (source.Video, error) {
	params := url.Values{
		"part": {"snippet,statistics"},
		"id":   {videoID},
	}

	var resp videoListResponse
	if err := s.get(ctx, "/videos", params, &resp); err != nil {
		return source.Video{}, err
	}
	if len(resp.Items) == 0 {
		return source.Video{}, fmt.Errorf("youtube: video %s: %w", videoID, source.ErrNotFound)
	}
	return resp.Items[0].toVideo(), nil
}

// Comments returns up to max top-level comments for the video, newest first.
func (s *Source) Comments(ctx context.Context, videoID string, max int) ([]source.Comment, error) {
	if max <= 0 || max > 100 {
		max = 100
	}
	params := url.Values{
		"part":       {"snippet"},
		"videoId":    {videoID},
		"maxResults": {fmt.Sprintf("%d", max)},
		"order":      {"time"},
	}

	var resp commentThreadListResponse
	if err := s.get(ctx, "/commentThreads", params, &resp); err != nil {
		return nil, err
	}

	comments := make([]source.Comment, 0, len(resp.Items))
	for _, item := range resp.Items {
		comments = append(comments, item.toComment(videoID))
	}
	return comments, nil
}

// Reply posts a reply to the given comment. Requires OAuth credentials.
func (s *Source) Reply(ctx context.Context, commentID, text string) error {
	if !s.config.hasOAuth() {
		return fmt.Errorf("youtube: reply: %w", source.ErrNotConfigured)
	}

	payload := commentInsertRequest{}
	payload.Snippet.ParentID = commentID
	payload.Snippet.TextOriginal = text

	params := url.Values{"part": {"snippet"}}
	return s.post(ctx, "/comments", params, payload, nil)
}
