package controllers

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"helm.sh/helm/v3/pkg/release"

	"github.com/modelkube/modelkube/internal/config"
	"github.com/modelkube/modelkube/internal/k8s"
	"github.com/modelkube/modelkube/internal/resource"
)

// HelmInstaller is the chart operation surface the manager needs.
// Implemented by k8s.HelmClient.
type HelmInstaller interface {
	InstallOrUpgrade(ctx context.Context, releaseName, repoURL, chartName, version string, values map[string]interface{}, timeout time.Duration) (*release.Release, error)
	Uninstall(releaseName string) error
	ReleaseExists(releaseName string) bool
}

// Manager installs and verifies the controller set.
type Manager struct {
	helm     HelmInstaller
	kube     k8s.Client
	target   *config.DeploymentTarget
	timeouts *config.Timeouts
	log      logr.Logger
}

// NewManager creates a controller manager for one deployment target.
func NewManager(helm HelmInstaller, kube k8s.Client, target *config.DeploymentTarget, timeouts *config.Timeouts, log logr.Logger) *Manager {
	return &Manager{helm: helm, kube: kube, target: target, timeouts: timeouts, log: log}
}

// EnsureControllers installs every controller in order and waits for each
// to be serving before moving on. Already-installed releases are upgraded
// in place, so re-running after a partial failure converges.
func (m *Manager) EnsureControllers(ctx context.Context, ids resource.Identifiers) error {
	for _, name := range InstallOrder {
		if err := m.ensure(ctx, name, ids); err != nil {
			return fmt.Errorf("ensuring controller %s: %w", name, err)
		}
	}
	return nil
}

func (m *Manager) ensure(ctx context.Context, name string, ids resource.Identifiers) error {
	spec := DefaultChartSpecs[name]

	values, err := m.valuesFor(name, ids)
	if err != nil {
		return err
	}

	m.log.Info("installing controller", "controller", name, "chart", spec.Name, "version", spec.Version)
	if _, err := m.helm.InstallOrUpgrade(ctx, spec.Release, spec.Repository, spec.Name, spec.Version, values, m.timeouts.ControllerInstall); err != nil {
		return err
	}

	return m.verify(ctx, name, spec)
}

func (m *Manager) valuesFor(name string, ids resource.Identifiers) (Values, error) {
	switch name {
	case LoadBalancerController:
		return LoadBalancerControllerValues(m.target, ids)
	case DevicePlugin:
		return DevicePluginValues(), nil
	case FSxCSIDriver:
		return FSxCSIValues(), nil
	default:
		return nil, fmt.Errorf("unknown controller %q", name)
	}
}

// verify confirms the controller's workload is actually serving. Helm's
// wait covers most of this; the explicit check catches releases whose
// hooks succeed while the workload crash-loops.
func (m *Manager) verify(ctx context.Context, name string, spec ChartSpec) error {
	switch name {
	case LoadBalancerController:
		return k8s.WaitForDeployment(ctx, m.kube, spec.Namespace, spec.Release, m.timeouts.ControllerInstall)
	case DevicePlugin:
		// The daemon set only schedules once a GPU node is up. An empty
		// node group at install time is fine; the workload stage waits
		// for GPU capacity anyway.
		ready, err := m.kube.DaemonSetReady(ctx, spec.Namespace, spec.Release)
		if err != nil {
			return err
		}
		if !ready {
			m.log.Info("device plugin not yet scheduled, continuing", "controller", name)
		}
		return nil
	case FSxCSIDriver:
		return k8s.WaitForDeployment(ctx, m.kube, spec.Namespace, spec.Release+"-controller", m.timeouts.ControllerInstall)
	}
	return nil
}

// Installed reports which controllers have releases present, for status
// output.
func (m *Manager) Installed() map[string]bool {
	out := make(map[string]bool, len(InstallOrder))
	for _, name := range InstallOrder {
		out[name] = m.helm.ReleaseExists(DefaultChartSpecs[name].Release)
	}
	return out
}

// UninstallAll removes every controller release in reverse install order.
// Missing releases are skipped; the first hard failure aborts.
func (m *Manager) UninstallAll() error {
	for i := len(InstallOrder) - 1; i >= 0; i-- {
		name := InstallOrder[i]
		spec := DefaultChartSpecs[name]
		if !m.helm.ReleaseExists(spec.Release) {
			continue
		}
		m.log.Info("uninstalling controller", "controller", name)
		if err := m.helm.Uninstall(spec.Release); err != nil {
			return fmt.Errorf("uninstalling controller %s: %w", name, err)
		}
	}
	return nil
}
