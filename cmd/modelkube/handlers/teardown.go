package handlers

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"

	"github.com/modelkube/modelkube/internal/config"
	"github.com/modelkube/modelkube/internal/controllers"
	"github.com/modelkube/modelkube/internal/k8s"
	"github.com/modelkube/modelkube/internal/manifest"
	"github.com/modelkube/modelkube/internal/teardown"
)

var stdinIsTerminal = func() bool {
	return isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
}

// confirmTeardown asks for interactive confirmation before the sweep.
var confirmTeardown = func(clusterName string) (bool, error) {
	var confirmed bool
	form := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title(fmt.Sprintf("Delete cluster %s and all its resources?", clusterName)).
			Description("This removes the workload, controllers, filesystem, node group, cluster, and IAM roles. Model weights on the filesystem are lost.").
			Value(&confirmed),
	))
	if err := form.Run(); err != nil {
		return false, err
	}
	return confirmed, nil
}

// Teardown removes everything the target provisioned, in reverse order.
//
// The sweep continues past individual failures and the handler renders
// every step's outcome at the end; the returned error joins the failed
// steps. When the cluster is unreachable the in-cluster steps are skipped
// and the cloud sweep still runs.
func Teardown(ctx context.Context, opts Options) error {
	s, err := newSession(ctx, opts)
	if err != nil {
		return err
	}

	if !opts.Force {
		if !stdinIsTerminal() {
			return errors.New("refusing to tear down without --force in a non-interactive session")
		}
		confirmed, err := confirmTeardown(s.target.ClusterName)
		if err != nil {
			return err
		}
		if !confirmed {
			fmt.Println("Teardown aborted.")
			return nil
		}
	}

	cleanup := s.buildClusterCleanup(ctx)
	driver := teardown.NewDriver(s.cloud, cleanup, s.target, s.timeouts, nil, s.log)

	report := driver.Run(ctx)
	fmt.Print(renderTeardownReport(report))
	return report.Err()
}

// buildClusterCleanup wires the in-cluster teardown steps. A nil return
// means the cluster is gone or unreachable; the driver then skips those
// steps and sweeps the cloud resources directly.
func (s *session) buildClusterCleanup(ctx context.Context) teardown.ClusterCleanup {
	_, kube, helm, err := s.kubeClients(ctx)
	if err != nil {
		s.log.Info("cluster unreachable, skipping in-cluster cleanup", "reason", err.Error())
		return nil
	}
	return &clusterCleanup{
		kube:   kube,
		mgr:    controllers.NewManager(helm, kube, s.target, s.timeouts, s.log),
		target: s.target,
	}
}

// clusterCleanup implements teardown.ClusterCleanup over the Kubernetes and
// helm clients.
type clusterCleanup struct {
	kube   k8s.Client
	mgr    *controllers.Manager
	target *config.DeploymentTarget
}

func (c *clusterCleanup) DeleteWorkload(ctx context.Context) error {
	return c.kube.Delete(ctx, manifest.Deletion(c.target))
}

func (c *clusterCleanup) UninstallControllers() error {
	return c.mgr.UninstallAll()
}
