// Package stage implements the provisioning state machine.
//
// A Stage is one idempotent step with create-and-poll semantics:
//
//	NotStarted → Creating → Polling → Ready
//
// or, when the prober already reports the target resource ready,
// NotStarted → Ready directly. Any failure is terminal for the stage and
// halts the plan: stages form a strict dependency chain, and a later stage
// consumes identifiers bound by earlier ones.
package stage

import (
	"context"
	"time"

	"github.com/modelkube/modelkube/internal/probe"
	"github.com/modelkube/modelkube/internal/resource"
)

// Status is the execution state of a stage.
type Status string

const (
	StatusNotStarted Status = "notstarted"
	StatusCreating   Status = "creating"
	StatusPolling    Status = "polling"
	StatusReady      Status = "ready"
	StatusFailed     Status = "failed"
)

// PollResult classifies a probed resource state for the polling loop.
type PollResult int

const (
	PollPending PollResult = iota
	PollReady
	PollFailed
)

// Stage is one provisioning step. Stages are built once into a Plan and not
// mutated afterwards; all run-time state lives in the Runner.
type Stage struct {
	// Name identifies the stage in logs and reports.
	Name string

	// Kind is the managed resource the stage converges.
	Kind resource.Kind

	// Requires lists identifier roles that must already be bound when the
	// stage starts. A missing role is an ordering bug and fails the stage
	// before any cloud call.
	Requires []resource.Role

	// Selector builds the probe selector from the identifiers bound so far.
	Selector func(ids resource.Identifiers) probe.Selector

	// Action is the idempotent creation call. A provider already-exists
	// response must surface as resource.ErrAlreadyExists; the runner
	// normalizes it to success.
	Action func(ctx context.Context, ids resource.Identifiers) error

	// Poll maps a probed resource to pending, ready, or failed. Nil uses
	// DefaultPoll.
	Poll func(res resource.ManagedResource) PollResult

	// Timeout bounds the polling loop. Exceeding it fails the stage with
	// resource.ErrPollTimeout, distinct from a provider-reported failure.
	Timeout time.Duration

	// PollInterval is the delay between describe calls.
	PollInterval time.Duration

	// Hint is the operator remediation hint included in failure output.
	Hint string
}

// DefaultPoll maps the common state enum directly.
func DefaultPoll(res resource.ManagedResource) PollResult {
	switch res.State {
	case resource.StateReady:
		return PollReady
	case resource.StateFailed:
		return PollFailed
	default:
		return PollPending
	}
}

// Plan is an immutable ordered sequence of stages for one deployment target.
type Plan struct {
	// Name describes the plan in logs (e.g. "provision-cluster").
	Name string

	// Target is the cluster name the plan converges.
	Target string

	// Stages execute strictly sequentially in slice order.
	Stages []Stage

	// Seed identifiers bound before the first stage runs (e.g. discovered
	// network identifiers).
	Seed resource.Identifiers
}
