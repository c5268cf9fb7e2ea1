package cloud

import "context"

// MockClient is a function-field mock implementation of Client.
// Unset fields return zero values, which reads as "resource not found"
// for describe operations and success for mutations.
type MockClient struct {
	DescribeClusterFunc func(ctx context.Context, name string) (*ClusterInfo, error)
	CreateClusterFunc   func(ctx context.Context, spec ClusterSpec) error
	DeleteClusterFunc   func(ctx context.Context, name string) error

	DescribeNodeGroupFunc func(ctx context.Context, clusterName, name string) (*NodeGroupInfo, error)
	CreateNodeGroupFunc   func(ctx context.Context, spec NodeGroupSpec) error
	DeleteNodeGroupFunc   func(ctx context.Context, clusterName, name string) error

	DescribeFileSystemByNameFunc func(ctx context.Context, name string) (*FileSystemInfo, error)
	CreateFileSystemFunc         func(ctx context.Context, spec FileSystemSpec) (string, error)
	DeleteFileSystemFunc         func(ctx context.Context, id string) error

	DefaultVPCFunc            func(ctx context.Context) (*VPCInfo, error)
	DescribeSecurityGroupFunc func(ctx context.Context, name, vpcID string) (*SecurityGroupInfo, error)
	CreateSecurityGroupFunc   func(ctx context.Context, name, description, vpcID string, tags map[string]string) (string, error)
	AuthorizeIngressFunc      func(ctx context.Context, groupID string, fromPort, toPort int32) error
	DeleteSecurityGroupFunc   func(ctx context.Context, id string) error

	DescribeLoadBalancerByClusterFunc func(ctx context.Context, clusterName string) (*LoadBalancerInfo, error)

	EnsureRoleFunc func(ctx context.Context, name, trustPolicy string, policyArns []string) (string, error)
	DeleteRoleFunc func(ctx context.Context, name string) (bool, error)

	CallerIdentityFunc func(ctx context.Context) (*CallerIdentity, error)
}

var _ Client = (*MockClient)(nil)

func (m *MockClient) DescribeCluster(ctx context.Context, name string) (*ClusterInfo, error) {
	if m.DescribeClusterFunc != nil {
		return m.DescribeClusterFunc(ctx, name)
	}
	return nil, nil
}

func (m *MockClient) CreateCluster(ctx context.Context, spec ClusterSpec) error {
	if m.CreateClusterFunc != nil {
		return m.CreateClusterFunc(ctx, spec)
	}
	return nil
}

func (m *MockClient) DeleteCluster(ctx context.Context, name string) error {
	if m.DeleteClusterFunc != nil {
		return m.DeleteClusterFunc(ctx, name)
	}
	return nil
}

func (m *MockClient) DescribeNodeGroup(ctx context.Context, clusterName, name string) (*NodeGroupInfo, error) {
	if m.DescribeNodeGroupFunc != nil {
		return m.DescribeNodeGroupFunc(ctx, clusterName, name)
	}
	return nil, nil
}

func (m *MockClient) CreateNodeGroup(ctx context.Context, spec NodeGroupSpec) error {
	if m.CreateNodeGroupFunc != nil {
		return m.CreateNodeGroupFunc(ctx, spec)
	}
	return nil
}

func (m *MockClient) DeleteNodeGroup(ctx context.Context, clusterName, name string) error {
	if m.DeleteNodeGroupFunc != nil {
		return m.DeleteNodeGroupFunc(ctx, clusterName, name)
	}
	return nil
}

func (m *MockClient) DescribeFileSystemByName(ctx context.Context, name string) (*FileSystemInfo, error) {
	if m.DescribeFileSystemByNameFunc != nil {
		return m.DescribeFileSystemByNameFunc(ctx, name)
	}
	return nil, nil
}

func (m *MockClient) CreateFileSystem(ctx context.Context, spec FileSystemSpec) (string, error) {
	if m.CreateFileSystemFunc != nil {
		return m.CreateFileSystemFunc(ctx, spec)
	}
	return "fs-mock", nil
}

func (m *MockClient) DeleteFileSystem(ctx context.Context, id string) error {
	if m.DeleteFileSystemFunc != nil {
		return m.DeleteFileSystemFunc(ctx, id)
	}
	return nil
}

func (m *MockClient) DefaultVPC(ctx context.Context) (*VPCInfo, error) {
	if m.DefaultVPCFunc != nil {
		return m.DefaultVPCFunc(ctx)
	}
	return &VPCInfo{VpcID: "vpc-mock", SubnetIDs: []string{"subnet-mock-a", "subnet-mock-b"}}, nil
}

func (m *MockClient) DescribeSecurityGroup(ctx context.Context, name, vpcID string) (*SecurityGroupInfo, error) {
	if m.DescribeSecurityGroupFunc != nil {
		return m.DescribeSecurityGroupFunc(ctx, name, vpcID)
	}
	return nil, nil
}

func (m *MockClient) CreateSecurityGroup(ctx context.Context, name, description, vpcID string, tags map[string]string) (string, error) {
	if m.CreateSecurityGroupFunc != nil {
		return m.CreateSecurityGroupFunc(ctx, name, description, vpcID, tags)
	}
	return "sg-mock", nil
}

func (m *MockClient) AuthorizeIngress(ctx context.Context, groupID string, fromPort, toPort int32) error {
	if m.AuthorizeIngressFunc != nil {
		return m.AuthorizeIngressFunc(ctx, groupID, fromPort, toPort)
	}
	return nil
}

func (m *MockClient) DeleteSecurityGroup(ctx context.Context, id string) error {
	if m.DeleteSecurityGroupFunc != nil {
		return m.DeleteSecurityGroupFunc(ctx, id)
	}
	return nil
}

func (m *MockClient) DescribeLoadBalancerByCluster(ctx context.Context, clusterName string) (*LoadBalancerInfo, error) {
	if m.DescribeLoadBalancerByClusterFunc != nil {
		return m.DescribeLoadBalancerByClusterFunc(ctx, clusterName)
	}
	return nil, nil
}

func (m *MockClient) EnsureRole(ctx context.Context, name, trustPolicy string, policyArns []string) (string, error) {
	if m.EnsureRoleFunc != nil {
		return m.EnsureRoleFunc(ctx, name, trustPolicy, policyArns)
	}
	return "arn:aws:iam::000000000000:role/" + name, nil
}

func (m *MockClient) DeleteRole(ctx context.Context, name string) (bool, error) {
	if m.DeleteRoleFunc != nil {
		return m.DeleteRoleFunc(ctx, name)
	}
	return false, nil
}

func (m *MockClient) CallerIdentity(ctx context.Context) (*CallerIdentity, error) {
	if m.CallerIdentityFunc != nil {
		return m.CallerIdentityFunc(ctx)
	}
	return &CallerIdentity{AccountID: "000000000000", Arn: "arn:aws:iam::000000000000:user/mock"}, nil
}
