package handlers

import (
	"context"
	"fmt"

	"github.com/modelkube/modelkube/internal/controllers"
)

// InstallControllers installs the in-cluster controller set in order and
// verifies each is serving before moving on.
func InstallControllers(ctx context.Context, opts Options) error {
	s, err := newSession(ctx, opts)
	if err != nil {
		return err
	}

	ids, kube, helm, err := s.kubeClients(ctx)
	if err != nil {
		return err
	}

	mgr := controllers.NewManager(helm, kube, s.target, s.timeouts, s.log)
	if err := mgr.EnsureControllers(ctx, ids); err != nil {
		return err
	}

	installed := mgr.Installed()
	fmt.Println()
	for _, name := range controllers.InstallOrder {
		status := "missing"
		if installed[name] {
			status = "installed"
		}
		fmt.Printf("  %-36s %s\n", name, status)
	}
	fmt.Println("\nControllers are ready. Next: modelkube deploy-workload")
	return nil
}
