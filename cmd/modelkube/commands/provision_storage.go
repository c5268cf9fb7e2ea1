package commands

import (
	"github.com/spf13/cobra"

	"github.com/modelkube/modelkube/cmd/modelkube/handlers"
)

// ProvisionStorage returns the command that creates the Lustre filesystem
// backing the model store.
func ProvisionStorage() *cobra.Command {
	var opts handlers.Options

	cmd := &cobra.Command{
		Use:   "provision-storage",
		Short: "Create the parallel filesystem for model weights",
		Long: `Create the Lustre filesystem that holds model weights, together with
its dedicated security group.

The security group opens the Lustre ports to itself so filesystem servers
and clients attached to the same group can talk. The filesystem is placed
in the first subnet of the default VPC and the command waits until it
reports available.

Examples:
  modelkube provision-storage
  modelkube provision-storage -c production.yaml`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.ProvisionStorage(cmd.Context(), opts)
		},
	}

	bindTargetFlags(cmd, &opts)

	return cmd
}
