package commands

import (
	"github.com/spf13/cobra"

	"github.com/modelkube/modelkube/cmd/modelkube/handlers"
)

// InstallControllers returns the command that installs the in-cluster
// controller set via Helm.
func InstallControllers() *cobra.Command {
	var opts handlers.Options

	cmd := &cobra.Command{
		Use:   "install-controllers",
		Short: "Install the device plugin, storage CSI driver, and load balancer controller",
		Long: `Install the in-cluster controllers the serving workload depends on:

  - NVIDIA device plugin (exposes GPUs as schedulable resources)
  - FSx CSI driver (mounts the Lustre filesystem into pods)
  - AWS load balancer controller (realises the serving ingress as an ALB)

Each controller is installed as a Helm release in kube-system and verified
to be serving before the next one is installed. Already-installed releases
are upgraded in place.

Requires a reachable cluster; run provision-cluster first.

Examples:
  modelkube install-controllers
  modelkube install-controllers -c production.yaml`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.InstallControllers(cmd.Context(), opts)
		},
	}

	bindTargetFlags(cmd, &opts)

	return cmd
}
