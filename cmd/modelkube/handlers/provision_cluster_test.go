package handlers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelkube/modelkube/internal/cloud"
)

// convergedMock reports every cloud resource as already provisioned.
func convergedMock() *cloud.MockClient {
	mock := authenticatedMock()
	mock.DefaultVPCFunc = func(context.Context) (*cloud.VPCInfo, error) {
		return &cloud.VPCInfo{VpcID: "vpc-1", SubnetIDs: []string{"subnet-a", "subnet-b"}}, nil
	}
	mock.DescribeClusterFunc = func(context.Context, string) (*cloud.ClusterInfo, error) {
		return &cloud.ClusterInfo{
			Name:            "demo",
			Status:          "ACTIVE",
			Endpoint:        "https://demo.eks.example.com",
			CertificateData: "Y2EtZGF0YQ==",
			VpcID:           "vpc-1",
		}, nil
	}
	mock.DescribeNodeGroupFunc = func(context.Context, string, string) (*cloud.NodeGroupInfo, error) {
		return &cloud.NodeGroupInfo{Name: "demo-gpu-nodes", Status: "ACTIVE"}, nil
	}
	return mock
}

func TestProvisionClusterAlreadyConverged(t *testing.T) {
	stubPrereqs(t)

	created := 0
	mock := convergedMock()
	mock.CreateClusterFunc = func(context.Context, cloud.ClusterSpec) error {
		created++
		return nil
	}
	mock.CreateNodeGroupFunc = func(context.Context, cloud.NodeGroupSpec) error {
		created++
		return nil
	}
	stubCloud(t, mock)

	err := ProvisionCluster(context.Background(), Options{ConfigPath: writeTestConfig(t)})
	require.NoError(t, err)
	assert.Zero(t, created, "a converged target must not issue creation calls")
}

func TestProvisionClusterNoDefaultVPC(t *testing.T) {
	stubPrereqs(t)

	mock := authenticatedMock()
	mock.DefaultVPCFunc = func(context.Context) (*cloud.VPCInfo, error) { return nil, nil }
	stubCloud(t, mock)

	err := ProvisionCluster(context.Background(), Options{ConfigPath: writeTestConfig(t)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "default VPC")
}
