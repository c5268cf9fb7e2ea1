// Package k8s wraps the Kubernetes API operations the provisioner needs:
// building a kubeconfig for a freshly created cluster, applying manifest
// bundles with server-side apply, and waiting for workloads to roll out.
package k8s

import (
	"encoding/base64"
	"fmt"

	"k8s.io/client-go/tools/clientcmd"
	clientcmdapi "k8s.io/client-go/tools/clientcmd/api"

	"github.com/modelkube/modelkube/internal/resource"
)

// Kubeconfig builds an in-memory kubeconfig for the provisioned cluster.
// Authentication uses exec credentials so tokens are minted fresh on every
// call; nothing secret is embedded in the returned bytes.
func Kubeconfig(clusterName, region, profile string, ids resource.Identifiers) ([]byte, error) {
	endpoint, err := ids.Lookup(resource.RoleClusterEndpoint)
	if err != nil {
		return nil, err
	}
	caData, err := ids.Lookup(resource.RoleClusterCA)
	if err != nil {
		return nil, err
	}

	ca, err := base64.StdEncoding.DecodeString(caData)
	if err != nil {
		return nil, fmt.Errorf("decoding cluster certificate authority: %w", err)
	}

	execArgs := []string{"eks", "get-token", "--cluster-name", clusterName, "--region", region}
	var execEnv []clientcmdapi.ExecEnvVar
	if profile != "" {
		execEnv = append(execEnv, clientcmdapi.ExecEnvVar{Name: "AWS_PROFILE", Value: profile})
	}

	cfg := clientcmdapi.Config{
		Clusters: map[string]*clientcmdapi.Cluster{
			clusterName: {
				Server:                   endpoint,
				CertificateAuthorityData: ca,
			},
		},
		AuthInfos: map[string]*clientcmdapi.AuthInfo{
			clusterName: {
				Exec: &clientcmdapi.ExecConfig{
					APIVersion:      "client.authentication.k8s.io/v1beta1",
					Command:         "aws",
					Args:            execArgs,
					Env:             execEnv,
					InteractiveMode: clientcmdapi.NeverExecInteractiveMode,
				},
			},
		},
		Contexts: map[string]*clientcmdapi.Context{
			clusterName: {
				Cluster:  clusterName,
				AuthInfo: clusterName,
			},
		},
		CurrentContext: clusterName,
	}

	out, err := clientcmd.Write(cfg)
	if err != nil {
		return nil, fmt.Errorf("serializing kubeconfig: %w", err)
	}
	return out, nil
}
