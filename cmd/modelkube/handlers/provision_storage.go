package handlers

import (
	"context"
	"fmt"

	"github.com/modelkube/modelkube/internal/probe"
	"github.com/modelkube/modelkube/internal/provisioning"
	"github.com/modelkube/modelkube/internal/stage"
)

// ProvisionStorage creates the Lustre filesystem and its security group.
func ProvisionStorage(ctx context.Context, opts Options) error {
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

	report, runErr := runner.Run(ctx, builder.StoragePlan(seed))
	fmt.Print(renderPlanReport(report))
	if runErr != nil {
		return runErr
	}

	fmt.Printf("\nFilesystem %s is available. Next: modelkube install-controllers\n", s.target.FileSystemName())
	return nil
}
