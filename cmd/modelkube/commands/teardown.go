package commands

import (
	"github.com/spf13/cobra"

	"github.com/modelkube/modelkube/cmd/modelkube/handlers"
)

// Teardown returns the teardown command.
//
// Teardown removes everything provisioning created: the workload, the
// controllers, the filesystem, the node group, the cluster, and the IAM
// roles, in reverse provisioning order.
func Teardown() *cobra.Command {
	var opts handlers.Options

	cmd := &cobra.Command{
		Use:   "teardown",
		Short: "Delete the cluster and all associated resources",
		Long: `Delete everything provisioning created, in reverse order:

  - Serving workload and ingress
  - Helm-installed controllers
  - Lustre filesystem and its security group
  - GPU node group and cluster
  - IAM roles

The sweep keeps going past individual failures and reports every step at
the end, so a partially failed teardown can simply be re-run. Resources
that are already gone are reported as absent, not errors.

Example:
  modelkube teardown -c modelkube.yaml --force

WARNING: This operation is irreversible. Model weights stored on the
filesystem are lost.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Teardown(cmd.Context(), opts)
		},
	}

	bindTargetFlags(cmd, &opts)
	cmd.Flags().BoolVar(&opts.Force, "force", false, "Skip the confirmation prompt")

	return cmd
}
