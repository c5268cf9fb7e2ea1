package stage

import (
	"fmt"
	"strings"
	"time"
)

// Result records the terminal outcome of one stage.
type Result struct {
	Stage    string
	Kind     string
	Resource string
	Status   Status
	// Skipped is true when the stage went NotStarted → Ready directly
	// because the prober already reported the resource ready.
	Skipped  bool
	Err      error
	Duration time.Duration
}

// Report is the terminal report of a plan run.
type Report struct {
	Plan    string
	Target  string
	Results []Result
}

// Failed returns the first failed result, or nil if the run succeeded.
func (r *Report) Failed() *Result {
	for i := range r.Results {
		if r.Results[i].Status == StatusFailed {
			return &r.Results[i]
		}
	}
	return nil
}

// CreationCount returns how many stages actually issued a creation call.
// A fully converged target reports zero: every stage skips via the prober.
func (r *Report) CreationCount() int {
	n := 0
	for _, res := range r.Results {
		if res.Status == StatusReady && !res.Skipped {
			n++
		}
	}
	return n
}

// Summary renders a one-line-per-stage report.
func (r *Report) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s)\n", r.Plan, r.Target)
	for _, res := range r.Results {
		status := string(res.Status)
		if res.Skipped {
			status = "ready (already satisfied)"
		}
		fmt.Fprintf(&b, "  %-14s %-32s %s", res.Stage, res.Kind+"/"+res.Resource, status)
		if res.Err != nil {
			fmt.Fprintf(&b, ": %v", res.Err)
		}
		b.WriteString("\n")
	}
	return b.String()
}
