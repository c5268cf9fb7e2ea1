// Package commands defines the CLI command structure and flag bindings.
//
// Commands parse arguments and flags, then delegate execution to handler
// functions in the handlers package, which are framework-agnostic and
// testable on their own.
package commands

import "github.com/spf13/cobra"

// Root returns the root command for the modelkube CLI.
func Root() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "modelkube",
		Short: "Provision GPU model-serving infrastructure on Kubernetes",
	}

	cmd.AddCommand(ProvisionCluster())
	cmd.AddCommand(ProvisionStorage())
	cmd.AddCommand(InstallControllers())
	cmd.AddCommand(DeployWorkload())
	cmd.AddCommand(Teardown())
	cmd.AddCommand(Version())

	return cmd
}
