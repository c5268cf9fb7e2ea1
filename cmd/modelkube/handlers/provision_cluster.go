package handlers

import (
	"context"
	"fmt"

	"github.com/modelkube/modelkube/internal/probe"
	"github.com/modelkube/modelkube/internal/provisioning"
	"github.com/modelkube/modelkube/internal/stage"
)

// ProvisionCluster creates the control plane and the GPU node group.
//
// The handler discovers the default VPC, then runs the cluster plan: ensure
// the IAM roles, create the cluster, wait for it to become active, create
// the node group, wait for its nodes to register. Re-running against an
// already-provisioned target skips every stage.
func ProvisionCluster(ctx context.Context, opts Options) error {
	s, err := newSession(ctx, opts)
	if err != nil {
		return err
	}

	builder := &provisioning.Builder{Cloud: s.cloud, Target: s.target, Timeouts: s.timeouts}

	seed, err := builder.NetworkSeed(ctx)
	if err != nil {
		return err
	}

	describer := &provisioning.Describer{Cloud: probe.New(s.cloud, s.target.Region), Target: s.target}
	runner := stage.NewRunner(describer, nil, s.log, s.timeouts.RetryMaxAttempts, s.timeouts.RetryInitialDelay)

	report, runErr := runner.Run(ctx, builder.ClusterPlan(seed))
	fmt.Print(renderPlanReport(report))
	if runErr != nil {
		return runErr
	}

	fmt.Printf("\nCluster %s is ready. Next: modelkube provision-storage\n", s.target.ClusterName)
	return nil
}
