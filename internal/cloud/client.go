// Package cloud wraps the AWS APIs the provisioner drives.
//
// The wrapper exposes narrow, per-resource interfaces so callers depend only
// on the operations they use, and so tests can substitute [MockClient].
// Describe operations return (nil, nil) when the resource does not exist:
// absence is a normal outcome, distinguishable from a transient query error.
package cloud

import "context"

// ClusterInfo is the discovered view of a Kubernetes control plane.
type ClusterInfo struct {
	Name            string
	Status          string // CREATING, ACTIVE, DELETING, FAILED
	Endpoint        string
	CertificateData string // base64 cluster CA
	RoleArn         string
	VpcID           string
	SubnetIDs       []string
	SecurityGroupID string // cluster security group
}

// ClusterSpec describes a control plane to create.
type ClusterSpec struct {
	Name      string
	Version   string
	RoleArn   string
	SubnetIDs []string
	Tags      map[string]string
}

// NodeGroupInfo is the discovered view of a managed node group.
type NodeGroupInfo struct {
	Name          string
	ClusterName   string
	Status        string // CREATING, ACTIVE, DEGRADED, DELETING, CREATE_FAILED
	NodeRoleArn   string
	InstanceTypes []string
}

// NodeGroupSpec describes a managed node group to create.
type NodeGroupSpec struct {
	ClusterName   string
	Name          string
	NodeRoleArn   string
	SubnetIDs     []string
	InstanceTypes []string
	AmiType       string
	MinSize       int32
	MaxSize       int32
	DesiredSize   int32
	DiskSizeGiB   int32
	Labels        map[string]string
	Tags          map[string]string
}

// FileSystemInfo is the discovered view of a Lustre filesystem.
type FileSystemInfo struct {
	ID        string
	Lifecycle string // CREATING, AVAILABLE, FAILED, DELETING
	DNSName   string
	MountName string
}

// FileSystemSpec describes a Lustre filesystem to create.
type FileSystemSpec struct {
	Name            string // bound as a Name tag; the selector for re-discovery
	SubnetID        string
	SecurityGroupID string
	CapacityGiB     int32
	DeploymentType  string
	Tags            map[string]string
}

// SecurityGroupInfo is the discovered view of a security group.
type SecurityGroupInfo struct {
	ID    string
	Name  string
	VpcID string
}

// LoadBalancerInfo is the discovered view of a load balancer.
type LoadBalancerInfo struct {
	ARN     string
	DNSName string
	State   string // provisioning, active, failed
}

// VPCInfo holds the network identifiers stages substitute into manifests.
type VPCInfo struct {
	VpcID     string
	SubnetIDs []string
}

// CallerIdentity is the validated cloud identity for the active profile.
type CallerIdentity struct {
	AccountID string
	Arn       string
}

// ClusterAPI manages the Kubernetes control plane resource.
type ClusterAPI interface {
	// DescribeCluster returns the cluster, or (nil, nil) if it does not exist.
	DescribeCluster(ctx context.Context, name string) (*ClusterInfo, error)

	// CreateCluster issues the asynchronous creation call. A provider
	// "already exists" response is surfaced as an error satisfying
	// resource.ErrAlreadyExists for the stage runner to normalize.
	CreateCluster(ctx context.Context, spec ClusterSpec) error

	// DeleteCluster deletes the cluster. Absent clusters are not an error.
	DeleteCluster(ctx context.Context, name string) error
}

// NodeGroupAPI manages managed node groups.
type NodeGroupAPI interface {
	DescribeNodeGroup(ctx context.Context, clusterName, name string) (*NodeGroupInfo, error)
	CreateNodeGroup(ctx context.Context, spec NodeGroupSpec) error
	DeleteNodeGroup(ctx context.Context, clusterName, name string) error
}

// FileSystemAPI manages the parallel filesystem.
type FileSystemAPI interface {
	// DescribeFileSystemByName looks the filesystem up by its Name tag,
	// not a stored ID, so discovery works across process restarts.
	DescribeFileSystemByName(ctx context.Context, name string) (*FileSystemInfo, error)
	CreateFileSystem(ctx context.Context, spec FileSystemSpec) (string, error)
	DeleteFileSystem(ctx context.Context, id string) error
}

// NetworkAPI manages VPC discovery and security groups.
type NetworkAPI interface {
	// DefaultVPC discovers the default VPC and its subnets.
	DefaultVPC(ctx context.Context) (*VPCInfo, error)

	DescribeSecurityGroup(ctx context.Context, name, vpcID string) (*SecurityGroupInfo, error)
	CreateSecurityGroup(ctx context.Context, name, description, vpcID string, tags map[string]string) (string, error)

	// AuthorizeIngress opens a TCP port range from the group to itself.
	// Duplicate rules are surfaced as resource.ErrAlreadyExists.
	AuthorizeIngress(ctx context.Context, groupID string, fromPort, toPort int32) error

	DeleteSecurityGroup(ctx context.Context, id string) error
}

// LoadBalancerAPI discovers load balancers provisioned by the in-cluster
// ingress controller. The provisioner never creates these directly.
type LoadBalancerAPI interface {
	// DescribeLoadBalancerByCluster finds the load balancer tagged for the
	// given cluster by the ingress controller, or (nil, nil) if none exists.
	DescribeLoadBalancerByCluster(ctx context.Context, clusterName string) (*LoadBalancerInfo, error)
}

// RoleAPI manages the IAM roles the cluster and node groups assume.
type RoleAPI interface {
	// EnsureRole creates the role with the given trust policy and attaches
	// the listed managed policies. Both calls treat "already exists" as
	// success. Returns the role ARN.
	EnsureRole(ctx context.Context, name, trustPolicy string, policyArns []string) (string, error)

	// DeleteRole detaches all managed policies and deletes the role.
	// Reports whether the role existed; absent roles are not an error.
	DeleteRole(ctx context.Context, name string) (bool, error)
}

// IdentityAPI validates the active credentials.
type IdentityAPI interface {
	CallerIdentity(ctx context.Context) (*CallerIdentity, error)
}

// Client aggregates every cloud interface the provisioner needs.
type Client interface {
	ClusterAPI
	NodeGroupAPI
	FileSystemAPI
	NetworkAPI
	LoadBalancerAPI
	RoleAPI
	IdentityAPI
}
