package commands

import (
	"github.com/spf13/cobra"

	"github.com/modelkube/modelkube/cmd/modelkube/handlers"
)

// DeployWorkload returns the command that deploys the model-serving
// workload and exposes it through an ingress.
func DeployWorkload() *cobra.Command {
	var opts handlers.Options

	cmd := &cobra.Command{
		Use:   "deploy-workload",
		Short: "Deploy the inference server and expose it",
		Long: `Deploy the model-serving workload and expose it through a load balancer.

The command applies the serving namespace, the persistent volume pair
binding the Lustre filesystem, and the inference Deployment and Service,
then waits for the deployment to become available. Model download and load
happen inside the pod, so the wait can take a while on first deploy.
Finally it applies the ingress and waits for the load balancer hostname.

Set HF_TOKEN in the environment to let the server pull gated models; the
token is stored as an optional Kubernetes secret.

Examples:
  modelkube deploy-workload
  HF_TOKEN=hf_... modelkube deploy-workload -c production.yaml`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.DeployWorkload(cmd.Context(), opts)
		},
	}

	bindTargetFlags(cmd, &opts)

	return cmd
}
