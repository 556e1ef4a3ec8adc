package cron

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Sentinel errors for scheduler operations.
var (
	// ErrUnknownJob indicates the named job is not registered.
	ErrUnknownJob = errors.New("cron: unknown job")

	// ErrJobBusy indicates a skip-policy job was already running when a
	// manual invocation was requested.
	ErrJobBusy = errors.New("cron: job already running")
)

// Scheduler manages periodic job execution using cron expressions.
// Registration is deliberately forgiving: duplicate names and malformed
// schedules are logged and dropped, never surfaced as errors, because
// registration happens at startup and a single bad job must not abort
// process boot. Each job is serialized against itself by a per-job mutex;
// distinct jobs run concurrently.
type Scheduler struct {
	mu       sync.Mutex
	handlers *HandlerRegistry
	parser   cron.Parser
	cron     *cron.Cron
	jobs     map[string]*jobState
	running  bool
	logger   *slog.Logger
}

// jobState is the per-job registry row plus runtime state.
type jobState struct {
	job     Job
	handler Handler

	// runLock serializes invocations of this job. TryLock implements the
	// skip policy; a plain Lock implements queue.
	runLock sync.Mutex

	// entry is the clock subscription, 0 while unscheduled (disabled
	// jobs, or any job before Start).
	entry cron.EntryID

	outcomeMu sync.Mutex
	last      *Outcome
	runs      int64
}

// NewScheduler creates a scheduler over the given handler registry.
// Jobs may be registered before or after Start().
func NewScheduler(handlers *HandlerRegistry, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		handlers: handlers,
		parser:   cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
		jobs:     make(map[string]*jobState),
		logger:   logger,
	}
}

// Register adds a job to the registry. Duplicate names are skipped with a
// warning (the first registration's schedule is preserved); malformed
// schedules and unknown handler names are rejected with an error log.
// Disabled jobs are accepted into the registry for discoverability but
// never receive a clock entry. If the scheduler is already started, an
// enabled job is scheduled immediately.
func (s *Scheduler) Register(job Job) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.Name]; exists {
		s.logger.Warn("cron: job already registered, skipping", "job", job.Name)
		return
	}

	if job.Overlap == "" {
		job.Overlap = OverlapSkip
	}

	if _, err := s.parser.Parse(job.Schedule); err != nil {
		s.logger.Error("cron: invalid schedule, job rejected",
			"job", job.Name,
			"schedule", job.Schedule,
			"error", err,
		)
		return
	}

	handler, ok := s.handlers.Get(job.Handler)
	if !ok {
		s.logger.Error("cron: unknown handler, job rejected",
			"job", job.Name,
			"handler", job.Handler,
		)
		return
	}

	state := &jobState{job: job, handler: handler}
	s.jobs[job.Name] = state

	if !job.Enabled {
		s.logger.Info("cron: job disabled, registered without schedule", "job", job.Name)
		return
	}

	if s.running {
		s.schedule(state)
	}

	s.logger.Info("cron: job registered", "job", job.Name, "schedule", job.Schedule)
}

// Unregister stops the job's clock subscription and removes it from the
// registry. Unknown names are a warning, not an error.
func (s *Scheduler) Unregister(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.jobs[name]
	if !ok {
		s.logger.Warn("cron: unregister of unknown job", "job", name)
		return
	}

	if state.entry != 0 && s.cron != nil {
		s.cron.Remove(state.entry)
	}
	delete(s.jobs, name)
	s.logger.Info("cron: job unregistered", "job", name)
}

// Jobs returns the names of all registered jobs, sorted.
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// JobStatus is a point-in-time view of one registry entry.
type JobStatus struct {
	Job  Job      `json:"job"`
	Runs int64    `json:"runs"`
	Last *Outcome `json:"last,omitempty"`
}

// Snapshot returns the full registry with per-job run state, sorted by name.
func (s *Scheduler) Snapshot() []JobStatus {
	s.mu.Lock()
	states := make([]*jobState, 0, len(s.jobs))
	for _, st := range s.jobs {
		states = append(states, st)
	}
	s.mu.Unlock()

	result := make([]JobStatus, 0, len(states))
	for _, st := range states {
		st.outcomeMu.Lock()
		status := JobStatus{Job: st.job, Runs: st.runs}
		if st.last != nil {
			last := *st.last
			status.Last = &last
		}
		st.outcomeMu.Unlock()
		result = append(result, status)
	}
	slices.SortFunc(result, func(a, b JobStatus) int {
		switch {
		case a.Job.Name < b.Job.Name:
			return -1
		case a.Job.Name > b.Job.Name:
			return 1
		}
		return 0
	})
	return result
}

// Running reports whether the clock has been started.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Start begins executing enabled jobs on their schedules. Calling Start on
// a running scheduler warns and does nothing — jobs are never double-fired.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		s.logger.Warn("cron: scheduler already started")
		return nil
	}

	s.cron = cron.New(cron.WithParser(s.parser))

	var scheduled int
	for _, state := range s.jobs {
		if !state.job.Enabled {
			continue
		}
		s.schedule(state)
		scheduled++
	}

	s.cron.Start()
	s.running = true
	s.logger.Info("cron: scheduler started", "jobs", len(s.jobs), "scheduled", scheduled)
	return nil
}

// schedule adds a clock entry for the job. Caller holds s.mu and has
// already validated the schedule expression at registration.
func (s *Scheduler) schedule(state *jobState) {
	name := state.job.Name
	id, err := s.cron.AddFunc(state.job.Schedule, func() {
		s.run(context.Background(), state, state.job.Params)
	})
	if err != nil {
		// Unreachable for expressions that passed Register validation.
		s.logger.Error("cron: scheduling failed", "job", name, "error", err)
		return
	}
	state.entry = id
}

// Stop halts future ticks and waits for in-flight runs to finish, bounded
// by ctx. In-flight tasks are not interrupted — they run to completion or
// failure on their own. Stop is idempotent.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false

	for _, state := range s.jobs {
		state.entry = 0
	}

	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info("cron: scheduler stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("cron: stop timed out with jobs still in flight")
		return ctx.Err()
	}
}

// RunNow fires the named job immediately, outside its schedule, honoring
// the overlap guard. Used by the manual-run API and the chat trigger.
// Disabled jobs can be run manually — the enabled flag only gates the clock.
func (s *Scheduler) RunNow(ctx context.Context, name string, extra map[string]any) (Outcome, error) {
	s.mu.Lock()
	state, ok := s.jobs[name]
	s.mu.Unlock()

	if !ok {
		return Outcome{}, fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}

	params := state.job.Params
	if len(extra) > 0 {
		merged := make(map[string]any, len(params)+len(extra))
		for k, v := range params {
			merged[k] = v
		}
		for k, v := range extra {
			merged[k] = v
		}
		params = merged
	}

	outcome := s.run(ctx, state, params)
	if outcome.Skipped {
		return outcome, ErrJobBusy
	}
	return outcome, nil
}

// run executes one firing of the job under its overlap guard, records the
// outcome, and never lets an error or panic escape to the clock.
func (s *Scheduler) run(ctx context.Context, state *jobState, params map[string]any) Outcome {
	name := state.job.Name

	switch state.job.Overlap {
	case OverlapQueue:
		state.runLock.Lock()
	default:
		if !state.runLock.TryLock() {
			s.logger.Warn("cron: job still running, skipping tick", "job", name)
			jobSkips.WithLabelValues(name).Inc()
			outcome := Outcome{Job: name, StartedAt: time.Now(), Skipped: true}
			state.record(outcome)
			return outcome
		}
	}
	defer state.runLock.Unlock()

	tracer := otel.Tracer("replyloop/cron")
	ctx, span := tracer.Start(ctx, "cron.run")
	span.SetAttributes(
		attribute.String("job.name", name),
		attribute.String("job.handler", state.job.Handler),
	)
	defer span.End()

	start := time.Now()
	s.logger.Debug("cron: job started", "job", name)

	// Handlers receive the job name so they can scope settings lookups.
	merged := make(map[string]any, len(params)+1)
	for k, v := range params {
		merged[k] = v
	}
	merged[ParamJob] = name

	err := s.invoke(ctx, state.handler, merged)
	outcome := Outcome{
		Job:       name,
		StartedAt: start,
		Duration:  time.Since(start),
		Err:       err,
	}

	if err != nil {
		outcome.Error = err.Error()
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		jobRuns.WithLabelValues(name, "error").Inc()
		s.logger.Error("cron: job failed",
			"job", name,
			"duration", outcome.Duration,
			"error", err,
		)
	} else {
		jobRuns.WithLabelValues(name, "ok").Inc()
		s.logger.Info("cron: job completed",
			"job", name,
			"duration", outcome.Duration,
		)
	}
	jobDuration.WithLabelValues(name).Observe(outcome.Duration.Seconds())

	state.record(outcome)
	return outcome
}

// invoke calls the handler with panic isolation: a panicking task is
// converted to a failed outcome so it cannot take down the clock or the
// other jobs.
func (s *Scheduler) invoke(ctx context.Context, h Handler, params map[string]any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cron: task panicked: %v", r)
		}
	}()
	return h(ctx, params)
}

// record stores the outcome as the job's most recent result.
func (st *jobState) record(o Outcome) {
	st.outcomeMu.Lock()
	defer st.outcomeMu.Unlock()
	st.last = &o
	if !o.Skipped {
		st.runs++
	}
}
