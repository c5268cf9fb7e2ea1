package commands

import (
	"github.com/spf13/cobra"

	"github.com/modelkube/modelkube/cmd/modelkube/handlers"
)

// ProvisionCluster returns the command that creates the EKS control plane
// and its GPU node group.
//
// Optional flags:
//
//	--config, -c: Path to deployment target YAML (default: auto-detect modelkube.yaml)
//	--region:     Override the configured cloud region
//	--profile:    Override the configured credentials profile
func ProvisionCluster() *cobra.Command {
	var opts handlers.Options

	cmd := &cobra.Command{
		Use:   "provision-cluster",
		Short: "Create the Kubernetes cluster and GPU node group",
		Long: `Create the managed Kubernetes control plane and its GPU node group.

The command discovers the default VPC, ensures the IAM roles, creates the
cluster, waits for it to become active, then creates the GPU node group and
waits for its nodes to join. Re-running is safe: stages that already
converged are skipped.

Examples:
  # Provision using modelkube.yaml in the current directory
  modelkube provision-cluster

  # Provision using a specific config file and region
  modelkube provision-cluster -c production.yaml --region us-east-1`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.ProvisionCluster(cmd.Context(), opts)
		},
	}

	bindTargetFlags(cmd, &opts)

	return cmd
}

// bindTargetFlags registers the flags shared by every provisioning command.
func bindTargetFlags(cmd *cobra.Command, opts *handlers.Options) {
	cmd.Flags().StringVarP(&opts.ConfigPath, "config", "c", "", "Path to configuration file (default: modelkube.yaml)")
	cmd.Flags().StringVar(&opts.Region, "region", "", "Cloud region (overrides config and AWS_REGION)")
	cmd.Flags().StringVar(&opts.Profile, "profile", "", "Credentials profile (overrides config and AWS_PROFILE)")
}
