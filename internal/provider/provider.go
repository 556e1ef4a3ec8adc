// Package provider defines the interface for text-generation backends.
// Concrete implementations live under modules/provider and also implement
// core.Module for lifecycle management.
package provider

import "context"

// Provider is the interface for communicating with a text-generation model.
type Provider interface {
	// Complete sends a completion request and returns the full response.
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)

	// Stream sends a completion request and returns a channel of chunks.
	// Initial connection errors are returned directly. Mid-stream errors
	// are delivered via StreamChunk.Err.
	Stream(ctx context.Context, req CompletionRequest) (<-chan StreamChunk, error)

	// ModelName returns the identifier of the underlying model.
	ModelName() string
}

// HealthChecker is an optional interface that providers may implement to
// support active probing, used by the status endpoint.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}
