// Package teardown removes everything a deployment target provisioned, in
// reverse dependency order. Every step tolerates the resource already being
// gone, and a failing step does not stop the sweep: the driver attempts
// every remaining step and reports all outcomes.
package teardown

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-logr/logr"

	"github.com/modelkube/modelkube/internal/cloud"
	"github.com/modelkube/modelkube/internal/config"
	"github.com/modelkube/modelkube/internal/stage"
)

// Outcome classifies one teardown step's result.
type Outcome string

const (
	OutcomeDeleted Outcome = "deleted"
	OutcomeAbsent  Outcome = "absent"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// Result records one step of the sweep.
type Result struct {
	Step    string
	Outcome Outcome
	Err     error
}

// Report aggregates the whole sweep.
type Report struct {
	Target  string
	Results []Result
}

// Err joins the errors of all failed steps, or nil when everything was
// removed or already absent.
func (r *Report) Err() error {
	var errs []error
	for _, res := range r.Results {
		if res.Outcome == OutcomeFailed {
			errs = append(errs, fmt.Errorf("%s: %w", res.Step, res.Err))
		}
	}
	return errors.Join(errs...)
}

// ClusterCleanup is the in-cluster part of teardown: the serving workload
// and the helm-installed controllers. It is nil when the cluster is
// unreachable, in which case those steps are skipped and the cloud sweep
// still proceeds.
type ClusterCleanup interface {
	// DeleteWorkload removes the ingress and serving bundles. Deleting the
	// ingress first lets the load balancer controller release its cloud
	// load balancer before the controller itself is uninstalled.
	DeleteWorkload(ctx context.Context) error

	// UninstallControllers removes the controller releases.
	UninstallControllers() error
}

// Driver executes the teardown sweep for one deployment target.
type Driver struct {
	cloud    cloud.Client
	cluster  ClusterCleanup // nil when the cluster is unreachable
	target   *config.DeploymentTarget
	timeouts *config.Timeouts
	clock    stage.Clock
	log      logr.Logger
}

// NewDriver creates a teardown driver. cluster may be nil; clock may be nil
// for the system clock.
func NewDriver(cloudClient cloud.Client, cluster ClusterCleanup, target *config.DeploymentTarget, timeouts *config.Timeouts, clock stage.Clock, log logr.Logger) *Driver {
	if clock == nil {
		clock = stage.RealClock{}
	}
	return &Driver{
		cloud:    cloudClient,
		cluster:  cluster,
		target:   target,
		timeouts: timeouts,
		clock:    clock,
		log:      log,
	}
}

// Run sweeps the target's resources in reverse provisioning order.
func (d *Driver) Run(ctx context.Context) *Report {
	report := &Report{Target: d.target.ClusterName}

	steps := []struct {
		name string
		fn   func(context.Context) (Outcome, error)
	}{
		{"workload", d.deleteWorkload},
		{"controllers", d.uninstallControllers},
		{"load balancer", d.waitLoadBalancerGone},
		{"filesystem", d.deleteFileSystem},
		{"filesystem security group", d.deleteLustreSecurityGroup},
		{"node group", d.deleteNodeGroup},
		{"cluster", d.deleteCluster},
		{"node IAM role", func(ctx context.Context) (Outcome, error) { return d.deleteRole(ctx, d.target.NodeRoleName()) }},
		{"cluster IAM role", func(ctx context.Context) (Outcome, error) { return d.deleteRole(ctx, d.target.ClusterRoleName()) }},
	}

	for _, step := range steps {
		d.log.Info("teardown step", "step", step.name)
		outcome, err := step.fn(ctx)
		if err != nil {
			outcome = OutcomeFailed
			d.log.Error(err, "teardown step failed, continuing", "step", step.name)
		}
		report.Results = append(report.Results, Result{Step: step.name, Outcome: outcome, Err: err})
	}

	return report
}

func (d *Driver) deleteWorkload(ctx context.Context) (Outcome, error) {
	if d.cluster == nil {
		return OutcomeSkipped, nil
	}
	if err := d.cluster.DeleteWorkload(ctx); err != nil {
		return OutcomeFailed, err
	}
	return OutcomeDeleted, nil
}

func (d *Driver) uninstallControllers(ctx context.Context) (Outcome, error) {
	if d.cluster == nil {
		return OutcomeSkipped, nil
	}
	if err := d.cluster.UninstallControllers(); err != nil {
		return OutcomeFailed, err
	}
	return OutcomeDeleted, nil
}

// waitLoadBalancerGone waits for the ingress controller to release the
// load balancer it provisioned. The driver never deletes it directly; the
// controller owns it and deletes it when the ingress goes away.
func (d *Driver) waitLoadBalancerGone(ctx context.Context) (Outcome, error) {
	lb, err := d.cloud.DescribeLoadBalancerByCluster(ctx, d.target.ClusterName)
	if err != nil {
		return OutcomeFailed, err
	}
	if lb == nil {
		return OutcomeAbsent, nil
	}
	if d.cluster == nil {
		// Cluster unreachable: the controller cannot release it, and an
		// orphaned load balancer needs an operator decision.
		return OutcomeFailed, fmt.Errorf("load balancer %s still exists and the cluster is unreachable", lb.DNSName)
	}

	err = d.waitGone(ctx, func(ctx context.Context) (bool, error) {
		lb, err := d.cloud.DescribeLoadBalancerByCluster(ctx, d.target.ClusterName)
		if err != nil {
			return false, err
		}
		return lb == nil, nil
	})
	if err != nil {
		return OutcomeFailed, err
	}
	return OutcomeDeleted, nil
}

func (d *Driver) deleteFileSystem(ctx context.Context) (Outcome, error) {
	fs, err := d.cloud.DescribeFileSystemByName(ctx, d.target.FileSystemName())
	if err != nil {
		return OutcomeFailed, err
	}
	if fs == nil {
		return OutcomeAbsent, nil
	}

	if err := d.cloud.DeleteFileSystem(ctx, fs.ID); err != nil {
		return OutcomeFailed, err
	}

	err = d.waitGone(ctx, func(ctx context.Context) (bool, error) {
		fs, err := d.cloud.DescribeFileSystemByName(ctx, d.target.FileSystemName())
		if err != nil {
			return false, err
		}
		return fs == nil, nil
	})
	if err != nil {
		return OutcomeFailed, err
	}
	return OutcomeDeleted, nil
}

// deleteLustreSecurityGroup runs after the filesystem is gone: the group
// cannot be deleted while the filesystem's network interfaces reference it.
func (d *Driver) deleteLustreSecurityGroup(ctx context.Context) (Outcome, error) {
	vpc, err := d.cloud.DefaultVPC(ctx)
	if err != nil {
		return OutcomeFailed, err
	}
	if vpc == nil {
		return OutcomeAbsent, nil
	}
	sg, err := d.cloud.DescribeSecurityGroup(ctx, d.target.LustreSecurityGroupName(), vpc.VpcID)
	if err != nil {
		return OutcomeFailed, err
	}
	if sg == nil {
		return OutcomeAbsent, nil
	}
	if err := d.cloud.DeleteSecurityGroup(ctx, sg.ID); err != nil {
		return OutcomeFailed, err
	}
	return OutcomeDeleted, nil
}

func (d *Driver) deleteNodeGroup(ctx context.Context) (Outcome, error) {
	ng, err := d.cloud.DescribeNodeGroup(ctx, d.target.ClusterName, d.target.NodeGroupName())
	if err != nil {
		return OutcomeFailed, err
	}
	if ng == nil {
		return OutcomeAbsent, nil
	}

	if err := d.cloud.DeleteNodeGroup(ctx, d.target.ClusterName, d.target.NodeGroupName()); err != nil {
		return OutcomeFailed, err
	}

	err = d.waitGone(ctx, func(ctx context.Context) (bool, error) {
		ng, err := d.cloud.DescribeNodeGroup(ctx, d.target.ClusterName, d.target.NodeGroupName())
		if err != nil {
			return false, err
		}
		return ng == nil, nil
	})
	if err != nil {
		return OutcomeFailed, err
	}
	return OutcomeDeleted, nil
}

func (d *Driver) deleteCluster(ctx context.Context) (Outcome, error) {
	cl, err := d.cloud.DescribeCluster(ctx, d.target.ClusterName)
	if err != nil {
		return OutcomeFailed, err
	}
	if cl == nil {
		return OutcomeAbsent, nil
	}

	if err := d.cloud.DeleteCluster(ctx, d.target.ClusterName); err != nil {
		return OutcomeFailed, err
	}

	err = d.waitGone(ctx, func(ctx context.Context) (bool, error) {
		cl, err := d.cloud.DescribeCluster(ctx, d.target.ClusterName)
		if err != nil {
			return false, err
		}
		return cl == nil, nil
	})
	if err != nil {
		return OutcomeFailed, err
	}
	return OutcomeDeleted, nil
}

func (d *Driver) deleteRole(ctx context.Context, name string) (Outcome, error) {
	existed, err := d.cloud.DeleteRole(ctx, name)
	if err != nil {
		return OutcomeFailed, err
	}
	if !existed {
		return OutcomeAbsent, nil
	}
	return OutcomeDeleted, nil
}

// waitGone polls the check until it reports true or the delete timeout
// elapses.
func (d *Driver) waitGone(ctx context.Context, check func(context.Context) (bool, error)) error {
	deadline := d.clock.Now().Add(d.timeouts.Delete)
	interval := d.timeouts.PollInterval
	if interval <= 0 {
		interval = 20 * time.Second
	}

	for {
		gone, err := check(ctx)
		if err != nil {
			return err
		}
		if gone {
			return nil
		}
		if !d.clock.Now().Add(interval).Before(deadline) {
			return fmt.Errorf("resource still present after %s", d.timeouts.Delete)
		}
		if err := d.clock.Sleep(ctx, interval); err != nil {
			return err
		}
	}
}
