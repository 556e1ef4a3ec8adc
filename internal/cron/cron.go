// Package cron provides the scheduling core: a registry of named jobs, a
// single cron clock shared by all of them, and a runner that guards each
// job against overlapping invocations.
package cron

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"
)

// Handler is the unit of work a job invokes on each firing. Params carries
// the job's static settings plus any request-derived values (e.g. the user
// message for chat-triggered runs). Handlers should check ctx.Done() for
// graceful cancellation during long external calls.
type Handler func(ctx context.Context, params map[string]any) error

// ParamJob is the reserved params key under which the scheduler passes the
// firing job's name to its handler.
const ParamJob = "job"

// OverlapPolicy selects what happens when a tick fires while the previous
// invocation of the same job is still running.
type OverlapPolicy string

// Overlap policies.
const (
	// OverlapSkip drops the tick. The default: polling tasks call
	// external services with unbounded latency, and queueing ticks
	// behind a stalled call grows without bound.
	OverlapSkip OverlapPolicy = "skip"

	// OverlapQueue waits for the running invocation to finish, then runs.
	OverlapQueue OverlapPolicy = "queue"
)

// Job is a serializable job descriptor. The task is referenced by handler
// name rather than held as a closure so the registry can be listed,
// inspected, and tested without executing anything.
type Job struct {
	Name     string         `json:"name"`
	Schedule string         `json:"schedule"`
	Enabled  bool           `json:"enabled"`
	Handler  string         `json:"handler"`
	Overlap  OverlapPolicy  `json:"overlap"`
	Params   map[string]any `json:"params,omitempty"`
}

// Outcome is the typed result of a single firing. It is kept in memory for
// the status API and never persisted.
type Outcome struct {
	Job       string        `json:"job"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration_ns"`
	Skipped   bool          `json:"skipped,omitempty"`
	Error     string        `json:"error,omitempty"`

	// Err is the underlying error, available to in-process callers.
	Err error `json:"-"`
}

// OK reports whether the run completed without error and was not skipped.
func (o Outcome) OK() bool {
	return !o.Skipped && o.Err == nil
}

// HandlerRegistry maps handler names to functions. Automation packages
// register their handlers at wiring time; jobs reference them by name.
type HandlerRegistry struct {
	mu sync.RWMutex
	m  map[string]Handler
}

// NewHandlerRegistry creates an empty handler registry.
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{m: make(map[string]Handler)}
}

// Register adds a named handler. Returns an error on duplicate names —
// handler registration is programmer-controlled wiring, so a collision is
// a bug, unlike job registration which tolerates config mistakes.
func (r *HandlerRegistry) Register(name string, h Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.m[name]; exists {
		return fmt.Errorf("cron: duplicate handler name %q", name)
	}
	r.m[name] = h
	return nil
}

// Get returns the handler registered under name.
func (r *HandlerRegistry) Get(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.m[name]
	return h, ok
}

// Names returns all registered handler names, sorted.
func (r *HandlerRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.m))
	for name := range r.m {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
