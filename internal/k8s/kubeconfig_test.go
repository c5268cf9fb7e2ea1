package k8s

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/modelkube/modelkube/internal/resource"
)

func TestKubeconfig(t *testing.T) {
	ca := base64.StdEncoding.EncodeToString([]byte("fake-ca-bundle"))
	ids := resource.Identifiers{
		resource.RoleClusterEndpoint: "https://ABC123.gr7.us-west-2.eks.amazonaws.com",
		resource.RoleClusterCA:       ca,
	}

	data, err := Kubeconfig("demo", "us-west-2", "ml-platform", ids)
	require.NoError(t, err)

	cfg, err := clientcmd.Load(data)
	require.NoError(t, err)

	require.Contains(t, cfg.Clusters, "demo")
	assert.Equal(t, "https://ABC123.gr7.us-west-2.eks.amazonaws.com", cfg.Clusters["demo"].Server)
	assert.Equal(t, []byte("fake-ca-bundle"), cfg.Clusters["demo"].CertificateAuthorityData)
	assert.Equal(t, "demo", cfg.CurrentContext)

	auth := cfg.AuthInfos["demo"]
	require.NotNil(t, auth)
	require.NotNil(t, auth.Exec)
	assert.Equal(t, "aws", auth.Exec.Command)
	assert.Contains(t, auth.Exec.Args, "get-token")
	assert.Contains(t, auth.Exec.Args, "demo")
	require.Len(t, auth.Exec.Env, 1)
	assert.Equal(t, "ml-platform", auth.Exec.Env[0].Value)
}

func TestKubeconfigMissingIdentifiers(t *testing.T) {
	_, err := Kubeconfig("demo", "us-west-2", "", resource.Identifiers{})
	require.Error(t, err)
	assert.True(t, resource.IsMissingIdentifier(err))
}

func TestKubeconfigInvalidCA(t *testing.T) {
	ids := resource.Identifiers{
		resource.RoleClusterEndpoint: "https://example.com",
		resource.RoleClusterCA:       "not-base64!!",
	}
	_, err := Kubeconfig("demo", "us-west-2", "", ids)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "certificate authority")
}
