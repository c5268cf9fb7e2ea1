package stage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-logr/logr"

	"github.com/modelkube/modelkube/internal/probe"
	"github.com/modelkube/modelkube/internal/resource"
)

// Describer is the read-only discovery dependency of the runner.
// Implemented by probe.Prober.
type Describer interface {
	Describe(ctx context.Context, kind resource.Kind, sel probe.Selector) (resource.ManagedResource, error)
}

// Runner executes a Plan strictly sequentially. It holds all run-time state;
// the Plan itself is immutable.
type Runner struct {
	prober Describer
	clock  Clock
	log    logr.Logger

	// transientBudget bounds consecutive probe failures tolerated inside a
	// single polling loop before the stage fails.
	transientBudget int

	// retryDelay is the backoff before the first transient-probe retry,
	// doubling on each further attempt.
	retryDelay time.Duration

	// ids accumulates identifiers bound by completed stages. Re-derived
	// every run; never persisted.
	ids resource.Identifiers
}

// NewRunner creates a Runner. clock may be nil for the system clock.
func NewRunner(prober Describer, clock Clock, log logr.Logger, transientBudget int, retryDelay time.Duration) *Runner {
	if clock == nil {
		clock = RealClock{}
	}
	if transientBudget <= 0 {
		transientBudget = 5
	}
	if retryDelay <= 0 {
		retryDelay = 2 * time.Second
	}
	return &Runner{
		prober:          prober,
		clock:           clock,
		log:             log,
		transientBudget: transientBudget,
		retryDelay:      retryDelay,
	}
}

// Identifiers returns the identifiers bound so far, for callers that render
// output from the final state (e.g. the service endpoint).
func (r *Runner) Identifiers() resource.Identifiers {
	return r.ids
}

// Run executes every stage of the plan in order. The first failed stage
// halts the run; downstream stages are not attempted. The returned error is
// a *resource.StageError naming the stage, its resource, and the reason.
func (r *Runner) Run(ctx context.Context, plan *Plan) (*Report, error) {
	start := r.clock.Now()
	r.ids = resource.Identifiers{}.Merge(plan.Seed)

	report := &Report{Plan: plan.Name, Target: plan.Target}
	r.log.Info("starting plan", "plan", plan.Name, "target", plan.Target, "stages", len(plan.Stages))

	for i, st := range plan.Stages {
		stageStart := r.clock.Now()
		r.log.Info("stage starting", "stage", st.Name, "index", fmt.Sprintf("%d/%d", i+1, len(plan.Stages)))

		result := r.runStage(ctx, st)
		result.Duration = r.clock.Now().Sub(stageStart)
		report.Results = append(report.Results, result)

		if result.Status == StatusFailed {
			r.log.Error(result.Err, "stage failed", "stage", st.Name, "resource", result.Resource)
			return report, result.Err
		}
		r.log.Info("stage ready", "stage", st.Name, "skipped", result.Skipped,
			"duration", result.Duration.Round(time.Millisecond).String())
	}

	r.log.Info("plan completed", "plan", plan.Name,
		"duration", r.clock.Now().Sub(start).Round(time.Millisecond).String())
	return report, nil
}

func (r *Runner) runStage(ctx context.Context, st Stage) Result {
	result := Result{Stage: st.Name, Kind: string(st.Kind), Status: StatusNotStarted}

	// Ordering check: every required identifier must already be bound.
	for _, role := range st.Requires {
		if _, err := r.ids.Lookup(role); err != nil {
			return r.fail(st, result, resource.ManagedResource{Kind: st.Kind, Name: st.Name}, err, err)
		}
	}

	sel := st.Selector(r.ids)
	result.Resource = sel.Name

	// Initial probe decides whether the stage is a no-op.
	res, err := r.describeWithRetry(ctx, st.Kind, sel)
	if err != nil {
		return r.fail(st, result, res, resource.ErrProbe, err)
	}

	poll := st.Poll
	if poll == nil {
		poll = DefaultPoll
	}

	switch poll(res) {
	case PollReady:
		// Idempotent skip: already converged, nothing to create. The probe
		// itself re-validated readiness.
		r.ids = r.ids.Merge(res.Identifiers)
		result.Status = StatusReady
		result.Skipped = true
		return result
	case PollFailed:
		return r.fail(st, result, res, resource.ErrCreationFailed,
			fmt.Errorf("resource is in state %s from a previous run", res.State))
	}

	// Create only when the resource is absent. A pending resource (left by
	// a prior interrupted run) goes straight to polling.
	if res.NotFound() {
		result.Status = StatusCreating
		if err := st.Action(ctx, r.ids); err != nil {
			if !errors.Is(err, resource.ErrAlreadyExists) {
				return r.fail(st, result, res, resource.ErrCreationFailed, err)
			}
			// Already exists: a prior partial run won the race. Success.
			r.log.Info("resource already exists, continuing to poll", "stage", st.Name, "resource", sel.Name)
		}
	}

	result.Status = StatusPolling
	final, reason, cause := r.pollUntilTerminal(ctx, st, poll, sel)
	if reason != nil {
		return r.fail(st, result, final, reason, cause)
	}

	r.ids = r.ids.Merge(final.Identifiers)
	result.Status = StatusReady
	return result
}

// describeWithRetry wraps the initial probe with the same bounded transient
// tolerance as the polling loop, so a single network blip before creation
// does not abort the stage.
func (r *Runner) describeWithRetry(ctx context.Context, kind resource.Kind, sel probe.Selector) (resource.ManagedResource, error) {
	var res resource.ManagedResource
	var err error
	delay := r.retryDelay
	for attempt := 0; attempt <= r.transientBudget; attempt++ {
		if attempt > 0 {
			if serr := r.clock.Sleep(ctx, delay); serr != nil {
				return res, serr
			}
			delay *= 2
		}
		res, err = r.prober.Describe(ctx, kind, sel)
		if err == nil {
			return res, nil
		}
		r.log.V(1).Info("probe failed, retrying", "kind", kind, "attempt", attempt+1, "error", err.Error())
	}
	return res, err
}

// pollUntilTerminal repeats Describe at the stage's interval until the poll
// predicate yields ready or failed, the timeout elapses, or the transient
// retry budget is exhausted. One outstanding describe call at a time.
func (r *Runner) pollUntilTerminal(ctx context.Context, st Stage, poll func(resource.ManagedResource) PollResult, sel probe.Selector) (resource.ManagedResource, error, error) {
	deadline := r.clock.Now().Add(st.Timeout)
	transient := 0
	var last resource.ManagedResource

	for {
		res, err := r.prober.Describe(ctx, st.Kind, sel)
		if err != nil {
			// Network blips do not count against the poll predicate.
			transient++
			if transient > r.transientBudget {
				return last, resource.ErrProbe, err
			}
			r.log.V(1).Info("transient probe error, retrying", "stage", st.Name, "attempt", transient, "error", err.Error())
		} else {
			transient = 0
			last = res

			switch poll(res) {
			case PollReady:
				return res, nil, nil
			case PollFailed:
				return res, resource.ErrCreationFailed,
					fmt.Errorf("provider reports %s in state %s", res.Kind, res.State)
			}
		}

		if !r.clock.Now().Add(st.PollInterval).Before(deadline) {
			return last, resource.ErrPollTimeout,
				fmt.Errorf("resource not ready after %s", st.Timeout)
		}
		if err := r.clock.Sleep(ctx, st.PollInterval); err != nil {
			return last, resource.ErrPollTimeout, err
		}
	}
}

func (r *Runner) fail(st Stage, result Result, res resource.ManagedResource, reason, cause error) Result {
	if res.Name == "" {
		res = resource.ManagedResource{Kind: st.Kind, Name: result.Resource, State: res.State}
	}
	result.Status = StatusFailed
	if errors.Is(cause, reason) {
		cause = nil
	}
	result.Err = &resource.StageError{
		Stage:    st.Name,
		Resource: res,
		Reason:   reason,
		Cause:    cause,
		Hint:     st.Hint,
	}
	return result
}
