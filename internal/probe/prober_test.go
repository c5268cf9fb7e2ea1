package probe

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelkube/modelkube/internal/cloud"
	"github.com/modelkube/modelkube/internal/resource"
)

func TestDescribeClusterNotFound(t *testing.T) {
	prober := New(&cloud.MockClient{}, "us-west-2")

	res, err := prober.Describe(context.Background(), resource.KindCluster, Selector{Name: "demo-cluster"})
	require.NoError(t, err, "absence is not an error")
	assert.True(t, res.NotFound())
	assert.Equal(t, resource.KindCluster, res.Kind)
	assert.Equal(t, "demo-cluster", res.Name)
}

func TestDescribeClusterReadyBindsIdentifiers(t *testing.T) {
	mock := &cloud.MockClient{
		DescribeClusterFunc: func(_ context.Context, name string) (*cloud.ClusterInfo, error) {
			return &cloud.ClusterInfo{
				Name:            name,
				Status:          "ACTIVE",
				Endpoint:        "https://api.demo.example.com",
				VpcID:           "vpc-0abc",
				SubnetIDs:       []string{"subnet-1", "subnet-2"},
				SecurityGroupID: "sg-cluster",
				RoleArn:         "arn:aws:iam::1:role/demo-cluster-cluster-role",
			}, nil
		},
	}
	prober := New(mock, "us-west-2")

	res, err := prober.Describe(context.Background(), resource.KindCluster, Selector{Name: "demo-cluster"})
	require.NoError(t, err)
	assert.True(t, res.Ready())
	assert.Equal(t, "vpc-0abc", res.Identifiers[resource.RoleVPCID])
	assert.Equal(t, "subnet-1,subnet-2", res.Identifiers[resource.RoleSubnetIDs])
	assert.Equal(t, "sg-cluster", res.Identifiers[resource.RoleSecurityGroupID])
	assert.Equal(t, "https://api.demo.example.com", res.Identifiers[resource.RoleClusterEndpoint])
}

func TestDescribeClusterPending(t *testing.T) {
	mock := &cloud.MockClient{
		DescribeClusterFunc: func(_ context.Context, name string) (*cloud.ClusterInfo, error) {
			return &cloud.ClusterInfo{Name: name, Status: "CREATING"}, nil
		},
	}
	prober := New(mock, "us-west-2")

	res, err := prober.Describe(context.Background(), resource.KindCluster, Selector{Name: "demo-cluster"})
	require.NoError(t, err)
	assert.Equal(t, resource.StatePending, res.State)
}

func TestDescribeTransientErrorIsProbeError(t *testing.T) {
	mock := &cloud.MockClient{
		DescribeClusterFunc: func(context.Context, string) (*cloud.ClusterInfo, error) {
			return nil, fmt.Errorf("describe cluster: %w: connection reset", resource.ErrProbe)
		},
	}
	prober := New(mock, "us-west-2")

	_, err := prober.Describe(context.Background(), resource.KindCluster, Selector{Name: "demo-cluster"})
	require.Error(t, err)
	assert.ErrorIs(t, err, resource.ErrProbe)
}

func TestDescribeNodeGroupStates(t *testing.T) {
	tests := []struct {
		status string
		want   resource.State
	}{
		{"ACTIVE", resource.StateReady},
		{"CREATING", resource.StatePending},
		{"UPDATING", resource.StatePending},
		{"CREATE_FAILED", resource.StateFailed},
		{"DEGRADED", resource.StateFailed},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			mock := &cloud.MockClient{
				DescribeNodeGroupFunc: func(_ context.Context, clusterName, name string) (*cloud.NodeGroupInfo, error) {
					return &cloud.NodeGroupInfo{Name: name, ClusterName: clusterName, Status: tt.status}, nil
				},
			}
			prober := New(mock, "us-west-2")
			res, err := prober.Describe(context.Background(), resource.KindNodeGroup,
				Selector{Name: "gpu-nodes", ClusterName: "demo-cluster"})
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.State)
		})
	}
}

func TestDescribeFileSystemBindsIdentifiers(t *testing.T) {
	mock := &cloud.MockClient{
		DescribeFileSystemByNameFunc: func(context.Context, string) (*cloud.FileSystemInfo, error) {
			return &cloud.FileSystemInfo{
				ID:        "fs-0123",
				Lifecycle: "AVAILABLE",
				DNSName:   "fs-0123.fsx.us-west-2.amazonaws.com",
				MountName: "fsx",
			}, nil
		},
	}
	prober := New(mock, "us-west-2")

	res, err := prober.Describe(context.Background(), resource.KindFileSystem,
		Selector{Name: "demo-cluster-model-store"})
	require.NoError(t, err)
	assert.True(t, res.Ready())
	assert.Equal(t, "fs-0123", res.Identifiers[resource.RoleFileSystemID])
	assert.Equal(t, "fs-0123.fsx.us-west-2.amazonaws.com", res.Identifiers[resource.RoleFileSystemDNS])
	assert.Equal(t, "fsx", res.Identifiers[resource.RoleMountName])
}

func TestDescribeSecurityGroupExistsIsReady(t *testing.T) {
	mock := &cloud.MockClient{
		DescribeSecurityGroupFunc: func(_ context.Context, name, vpcID string) (*cloud.SecurityGroupInfo, error) {
			assert.Equal(t, "vpc-0abc", vpcID)
			return &cloud.SecurityGroupInfo{ID: "sg-lustre", Name: name, VpcID: vpcID}, nil
		},
	}
	prober := New(mock, "us-west-2")

	res, err := prober.Describe(context.Background(), resource.KindSecurityGroup,
		Selector{Name: "demo-cluster-lustre", VpcID: "vpc-0abc"})
	require.NoError(t, err)
	assert.True(t, res.Ready())
	assert.Equal(t, "sg-lustre", res.Identifiers[resource.RoleLustreSGID])
}

func TestDescribeLoadBalancerStates(t *testing.T) {
	tests := []struct {
		state string
		want  resource.State
	}{
		{"active", resource.StateReady},
		{"provisioning", resource.StatePending},
		{"failed", resource.StateFailed},
	}

	for _, tt := range tests {
		t.Run(tt.state, func(t *testing.T) {
			mock := &cloud.MockClient{
				DescribeLoadBalancerByClusterFunc: func(context.Context, string) (*cloud.LoadBalancerInfo, error) {
					return &cloud.LoadBalancerInfo{DNSName: "lb.example.com", State: tt.state}, nil
				},
			}
			prober := New(mock, "us-west-2")
			res, err := prober.Describe(context.Background(), resource.KindLoadBalancer,
				Selector{Name: "demo-cluster-ingress", ClusterName: "demo-cluster"})
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.State)
			assert.Equal(t, "lb.example.com", res.Identifiers[resource.RoleLoadBalancerDNS])
		})
	}
}

func TestDescribeUnknownKind(t *testing.T) {
	prober := New(&cloud.MockClient{}, "us-west-2")
	_, err := prober.Describe(context.Background(), resource.Kind("volcano"), Selector{Name: "x"})
	require.Error(t, err)
	assert.False(t, errors.Is(err, resource.ErrProbe))
}
