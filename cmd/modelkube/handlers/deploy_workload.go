package handlers

import (
	"context"
	"fmt"

	"github.com/modelkube/modelkube/internal/probe"
	"github.com/modelkube/modelkube/internal/provisioning"
	"github.com/modelkube/modelkube/internal/resource"
	"github.com/modelkube/modelkube/internal/stage"
)

// DeployWorkload applies the serving bundle and its ingress, then waits for
// the deployment to become available and the load balancer to be assigned.
func DeployWorkload(ctx context.Context, opts Options) error {
	s, err := newSession(ctx, opts)
	if err != nil {
		return err
	}

	ids, kube, _, err := s.kubeClients(ctx)
	if err != nil {
		return err
	}

	prober := probe.New(s.cloud, s.target.Region)

	// The workload stages need the filesystem identifiers bound by the
	// storage plan; re-derive them from the live filesystem.
	fs, err := prober.Describe(ctx, resource.KindFileSystem, probe.Selector{Name: s.target.FileSystemName()})
	if err != nil {
		return fmt.Errorf("probing filesystem %s: %w", s.target.FileSystemName(), err)
	}
	if !fs.Ready() {
		return fmt.Errorf("filesystem %s is not available; run 'modelkube provision-storage' first", s.target.FileSystemName())
	}
	seed := ids.Merge(fs.Identifiers)

	builder := &provisioning.Builder{Cloud: s.cloud, Target: s.target, Timeouts: s.timeouts, Kube: kube}
	describer := &provisioning.Describer{Cloud: prober, Kube: kube, Target: s.target}
	runner := stage.NewRunner(describer, nil, s.log, s.timeouts.RetryMaxAttempts, s.timeouts.RetryInitialDelay)

	report, runErr := runner.Run(ctx, builder.WorkloadPlan(seed))
	fmt.Print(renderPlanReport(report))
	if runErr != nil {
		return runErr
	}

	if url := provisioning.ServiceURL(runner.Identifiers()); url != "" {
		fmt.Print(renderEndpoint(url))
	}
	return nil
}
