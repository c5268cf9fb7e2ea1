package handlers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelkube/modelkube/internal/cloud"
)

func TestTeardownRefusesNonInteractiveWithoutForce(t *testing.T) {
	stubPrereqs(t)
	stubCloud(t, authenticatedMock())

	orig := stdinIsTerminal
	stdinIsTerminal = func() bool { return false }
	t.Cleanup(func() { stdinIsTerminal = orig })

	err := Teardown(context.Background(), Options{ConfigPath: writeTestConfig(t)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--force")
}

func TestTeardownAbortedByPrompt(t *testing.T) {
	stubPrereqs(t)
	stubCloud(t, authenticatedMock())

	origTerm := stdinIsTerminal
	stdinIsTerminal = func() bool { return true }
	t.Cleanup(func() { stdinIsTerminal = origTerm })

	origConfirm := confirmTeardown
	confirmed := false
	confirmTeardown = func(string) (bool, error) { return false, nil }
	t.Cleanup(func() { confirmTeardown = origConfirm })

	err := Teardown(context.Background(), Options{ConfigPath: writeTestConfig(t)})
	require.NoError(t, err)
	assert.False(t, confirmed)
}

func TestTeardownForcedSweepsAbsentTarget(t *testing.T) {
	stubPrereqs(t)

	// Nothing exists: every describe returns nil and every step must be
	// reported absent rather than failing.
	deleted := 0
	mock := authenticatedMock()
	mock.DeleteClusterFunc = func(context.Context, string) error {
		deleted++
		return nil
	}
	stubCloud(t, mock)

	err := Teardown(context.Background(), Options{ConfigPath: writeTestConfig(t), Force: true})
	require.NoError(t, err)
	assert.Zero(t, deleted, "an absent target must not issue delete calls")
}

func TestTeardownForcedDeletesCloudResources(t *testing.T) {
	stubPrereqs(t)

	mock := authenticatedMock()
	fsPresent := true
	mock.DescribeFileSystemByNameFunc = func(context.Context, string) (*cloud.FileSystemInfo, error) {
		if !fsPresent {
			return nil, nil
		}
		return &cloud.FileSystemInfo{ID: "fs-1", Lifecycle: "AVAILABLE"}, nil
	}
	mock.DeleteFileSystemFunc = func(context.Context, string) error {
		fsPresent = false
		return nil
	}

	clusterPresent := true
	mock.DescribeClusterFunc = func(context.Context, string) (*cloud.ClusterInfo, error) {
		if !clusterPresent {
			return nil, nil
		}
		// Endpoint deliberately empty so the kubeconfig path is skipped
		// and teardown proceeds without in-cluster cleanup.
		return &cloud.ClusterInfo{Name: "demo", Status: "ACTIVE", VpcID: "vpc-1"}, nil
	}
	mock.DeleteClusterFunc = func(context.Context, string) error {
		clusterPresent = false
		return nil
	}

	rolesDeleted := []string{}
	mock.DeleteRoleFunc = func(_ context.Context, name string) (bool, error) {
		rolesDeleted = append(rolesDeleted, name)
		return true, nil
	}
	stubCloud(t, mock)

	err := Teardown(context.Background(), Options{ConfigPath: writeTestConfig(t), Force: true})
	require.NoError(t, err)
	assert.False(t, fsPresent, "filesystem should have been deleted")
	assert.False(t, clusterPresent, "cluster should have been deleted")
	assert.Equal(t, []string{"demo-node-role", "demo-cluster-role"}, rolesDeleted)
}
