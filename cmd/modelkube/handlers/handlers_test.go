package handlers

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelkube/modelkube/internal/cloud"
	"github.com/modelkube/modelkube/internal/config"
	"github.com/modelkube/modelkube/internal/prereq"
	"github.com/modelkube/modelkube/internal/resource"
)

const testConfigYAML = `clusterName: demo
region: us-west-2
nodeGroup:
  instanceTypes: [g5.2xlarge]
  minSize: 1
  maxSize: 2
storage:
  capacityGiB: 1200
model:
  id: meta-llama/Llama-3.1-8B-Instruct
  image: vllm/vllm-openai:v0.6.3
`

// writeTestConfig writes a valid deployment target file and returns its path.
func writeTestConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), config.DefaultFileName)
	require.NoError(t, os.WriteFile(path, []byte(testConfigYAML), 0o600))
	return path
}

// stubPrereqs makes the tool check pass regardless of the test host.
func stubPrereqs(t *testing.T) {
	t.Helper()
	origTools := checkTools
	checkTools = func([]prereq.Tool) *prereq.ToolResults { return &prereq.ToolResults{} }
	t.Cleanup(func() { checkTools = origTools })
}

// stubCloud injects the mock as the cloud client factory.
func stubCloud(t *testing.T, mock *cloud.MockClient) {
	t.Helper()
	orig := newCloudClient
	newCloudClient = func(_ context.Context, _, _ string) (cloud.Client, error) {
		return mock, nil
	}
	t.Cleanup(func() { newCloudClient = orig })
}

func authenticatedMock() *cloud.MockClient {
	return &cloud.MockClient{
		CallerIdentityFunc: func(context.Context) (*cloud.CallerIdentity, error) {
			return &cloud.CallerIdentity{AccountID: "123456789012", Arn: "arn:aws:iam::123456789012:user/test"}, nil
		},
	}
}

func TestLoadTargetAppliesFlagOverrides(t *testing.T) {
	path := writeTestConfig(t)

	target, err := loadTarget(Options{ConfigPath: path, Region: "eu-central-1", Profile: "prod"})
	require.NoError(t, err)

	assert.Equal(t, "demo", target.ClusterName)
	assert.Equal(t, "eu-central-1", target.Region)
	assert.Equal(t, "prod", target.Profile)
}

func TestLoadTargetMissingFile(t *testing.T) {
	_, err := loadTarget(Options{ConfigPath: filepath.Join(t.TempDir(), "absent.yaml")})
	require.Error(t, err)
}

func TestLoadTargetAutoDetect(t *testing.T) {
	orig := findConfigFile
	findConfigFile = func() (string, error) { return "", errors.New("modelkube.yaml not found in working directory") }
	t.Cleanup(func() { findConfigFile = orig })

	_, err := loadTarget(Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no config file found")
}

func TestNewSessionAuthFailure(t *testing.T) {
	stubPrereqs(t)
	stubCloud(t, &cloud.MockClient{
		CallerIdentityFunc: func(context.Context) (*cloud.CallerIdentity, error) {
			return nil, resource.ErrAuth
		},
	})

	// Non-interactive: the profile prompt declines and the auth error
	// surfaces unchanged.
	origPrompt := promptProfile
	promptProfile = func(context.Context, string) (string, error) { return "", nil }
	t.Cleanup(func() { promptProfile = origPrompt })

	_, err := newSession(context.Background(), Options{ConfigPath: writeTestConfig(t)})
	require.Error(t, err)
	assert.ErrorIs(t, err, resource.ErrAuth)
}

func TestNewSessionRetriesWithPromptedProfile(t *testing.T) {
	stubPrereqs(t)

	attempts := 0
	orig := newCloudClient
	newCloudClient = func(_ context.Context, _, profile string) (cloud.Client, error) {
		attempts++
		if profile == "working" {
			return authenticatedMock(), nil
		}
		return &cloud.MockClient{
			CallerIdentityFunc: func(context.Context) (*cloud.CallerIdentity, error) {
				return nil, resource.ErrAuth
			},
		}, nil
	}
	t.Cleanup(func() { newCloudClient = orig })

	origPrompt := promptProfile
	promptProfile = func(context.Context, string) (string, error) { return "working", nil }
	t.Cleanup(func() { promptProfile = origPrompt })

	s, err := newSession(context.Background(), Options{ConfigPath: writeTestConfig(t)})
	require.NoError(t, err)
	assert.Equal(t, "working", s.target.Profile)
	assert.Equal(t, 2, attempts)
}

func TestNewSessionMissingTools(t *testing.T) {
	origTools := checkTools
	checkTools = func(tools []prereq.Tool) *prereq.ToolResults {
		return &prereq.ToolResults{Missing: tools}
	}
	t.Cleanup(func() { checkTools = origTools })

	_, err := newSession(context.Background(), Options{ConfigPath: writeTestConfig(t)})
	require.Error(t, err)
	assert.ErrorIs(t, err, resource.ErrToolMissing)
}

func TestKubeClientsRequiresReadyCluster(t *testing.T) {
	stubPrereqs(t)
	mock := authenticatedMock()
	mock.DescribeClusterFunc = func(context.Context, string) (*cloud.ClusterInfo, error) {
		return &cloud.ClusterInfo{Name: "demo", Status: "CREATING"}, nil
	}
	stubCloud(t, mock)

	s, err := newSession(context.Background(), Options{ConfigPath: writeTestConfig(t)})
	require.NoError(t, err)

	_, _, _, err = s.kubeClients(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not ready")
}
