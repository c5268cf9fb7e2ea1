package cloud

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/eks"
	ekstypes "github.com/aws/aws-sdk-go-v2/service/eks/types"
	"github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	elbtypes "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2/types"
	"github.com/aws/aws-sdk-go-v2/service/fsx"
	fsxtypes "github.com/aws/aws-sdk-go-v2/service/fsx/types"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/modelkube/modelkube/internal/resource"
)

// Tag key used by the AWS Load Balancer Controller on load balancers it
// provisions for a cluster.
const lbClusterTagKey = "elbv2.k8s.aws/cluster"

// RealClient implements Client against the AWS APIs.
type RealClient struct {
	eks   *eks.Client
	ec2   *ec2.Client
	fsx   *fsx.Client
	elbv2 *elasticloadbalancingv2.Client
	iam   *iam.Client
	sts   *sts.Client

	region string
}

var _ Client = (*RealClient)(nil)

// NewRealClient builds a client for the given region, using the standard
// credential chain. profile selects a shared-config profile; empty uses the
// chain default (AWS_PROFILE or the default profile).
func NewRealClient(ctx context.Context, region, profile string) (*RealClient, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}
	if profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(profile))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &RealClient{
		eks:    eks.NewFromConfig(cfg),
		ec2:    ec2.NewFromConfig(cfg),
		fsx:    fsx.NewFromConfig(cfg),
		elbv2:  elasticloadbalancingv2.NewFromConfig(cfg),
		iam:    iam.NewFromConfig(cfg),
		sts:    sts.NewFromConfig(cfg),
		region: region,
	}, nil
}

// Region returns the region the client operates in.
func (c *RealClient) Region() string {
	return c.region
}

// --- ClusterAPI ---

// DescribeCluster returns the cluster, or (nil, nil) if it does not exist.
func (c *RealClient) DescribeCluster(ctx context.Context, name string) (*ClusterInfo, error) {
	out, err := c.eks.DescribeCluster(ctx, &eks.DescribeClusterInput{
		Name: aws.String(name),
	})
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, normalizeDescribe(resource.KindCluster, name, err)
	}

	cl := out.Cluster
	info := &ClusterInfo{
		Name:   aws.ToString(cl.Name),
		Status: string(cl.Status),
	}
	if cl.Endpoint != nil {
		info.Endpoint = *cl.Endpoint
	}
	if cl.CertificateAuthority != nil && cl.CertificateAuthority.Data != nil {
		info.CertificateData = *cl.CertificateAuthority.Data
	}
	if cl.RoleArn != nil {
		info.RoleArn = *cl.RoleArn
	}
	if vpc := cl.ResourcesVpcConfig; vpc != nil {
		info.VpcID = aws.ToString(vpc.VpcId)
		info.SubnetIDs = vpc.SubnetIds
		info.SecurityGroupID = aws.ToString(vpc.ClusterSecurityGroupId)
	}
	return info, nil
}

// CreateCluster issues the asynchronous control plane creation call.
func (c *RealClient) CreateCluster(ctx context.Context, spec ClusterSpec) error {
	input := &eks.CreateClusterInput{
		Name:    aws.String(spec.Name),
		RoleArn: aws.String(spec.RoleArn),
		ResourcesVpcConfig: &ekstypes.VpcConfigRequest{
			SubnetIds: spec.SubnetIDs,
		},
		Tags: spec.Tags,
	}
	if spec.Version != "" {
		input.Version = aws.String(spec.Version)
	}

	_, err := c.eks.CreateCluster(ctx, input)
	return normalizeCreate(resource.KindCluster, spec.Name, err)
}

// DeleteCluster deletes the cluster. Absent clusters are not an error.
func (c *RealClient) DeleteCluster(ctx context.Context, name string) error {
	_, err := c.eks.DeleteCluster(ctx, &eks.DeleteClusterInput{
		Name: aws.String(name),
	})
	if err != nil && !IsNotFound(err) {
		return fmt.Errorf("failed to delete cluster %s: %w", name, err)
	}
	return nil
}

// --- NodeGroupAPI ---

// DescribeNodeGroup returns the node group, or (nil, nil) if it does not exist.
func (c *RealClient) DescribeNodeGroup(ctx context.Context, clusterName, name string) (*NodeGroupInfo, error) {
	out, err := c.eks.DescribeNodegroup(ctx, &eks.DescribeNodegroupInput{
		ClusterName:   aws.String(clusterName),
		NodegroupName: aws.String(name),
	})
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, normalizeDescribe(resource.KindNodeGroup, name, err)
	}

	ng := out.Nodegroup
	return &NodeGroupInfo{
		Name:          aws.ToString(ng.NodegroupName),
		ClusterName:   clusterName,
		Status:        string(ng.Status),
		NodeRoleArn:   aws.ToString(ng.NodeRole),
		InstanceTypes: ng.InstanceTypes,
	}, nil
}

// CreateNodeGroup issues the asynchronous node group creation call.
func (c *RealClient) CreateNodeGroup(ctx context.Context, spec NodeGroupSpec) error {
	input := &eks.CreateNodegroupInput{
		ClusterName:   aws.String(spec.ClusterName),
		NodegroupName: aws.String(spec.Name),
		NodeRole:      aws.String(spec.NodeRoleArn),
		Subnets:       spec.SubnetIDs,
		InstanceTypes: spec.InstanceTypes,
		ScalingConfig: &ekstypes.NodegroupScalingConfig{
			MinSize:     aws.Int32(spec.MinSize),
			MaxSize:     aws.Int32(spec.MaxSize),
			DesiredSize: aws.Int32(spec.DesiredSize),
		},
		Labels: spec.Labels,
		Tags:   spec.Tags,
	}
	if spec.AmiType != "" {
		input.AmiType = ekstypes.AMITypes(spec.AmiType)
	}
	if spec.DiskSizeGiB > 0 {
		input.DiskSize = aws.Int32(spec.DiskSizeGiB)
	}

	_, err := c.eks.CreateNodegroup(ctx, input)
	return normalizeCreate(resource.KindNodeGroup, spec.Name, err)
}

// DeleteNodeGroup deletes the node group. Absent groups are not an error.
func (c *RealClient) DeleteNodeGroup(ctx context.Context, clusterName, name string) error {
	_, err := c.eks.DeleteNodegroup(ctx, &eks.DeleteNodegroupInput{
		ClusterName:   aws.String(clusterName),
		NodegroupName: aws.String(name),
	})
	if err != nil && !IsNotFound(err) {
		return fmt.Errorf("failed to delete node group %s: %w", name, err)
	}
	return nil
}

// --- FileSystemAPI ---

// DescribeFileSystemByName finds the Lustre filesystem carrying a Name tag
// equal to name, or (nil, nil) if none exists. FSx has no name-scoped
// describe, so this lists and filters by tag.
func (c *RealClient) DescribeFileSystemByName(ctx context.Context, name string) (*FileSystemInfo, error) {
	var token *string
	for {
		out, err := c.fsx.DescribeFileSystems(ctx, &fsx.DescribeFileSystemsInput{
			NextToken: token,
		})
		if err != nil {
			return nil, normalizeDescribe(resource.KindFileSystem, name, err)
		}

		for _, fs := range out.FileSystems {
			if fs.FileSystemType != fsxtypes.FileSystemTypeLustre {
				continue
			}
			for _, tag := range fs.Tags {
				if aws.ToString(tag.Key) == "Name" && aws.ToString(tag.Value) == name {
					return fileSystemInfo(fs), nil
				}
			}
		}

		if out.NextToken == nil {
			return nil, nil
		}
		token = out.NextToken
	}
}

func fileSystemInfo(fs fsxtypes.FileSystem) *FileSystemInfo {
	info := &FileSystemInfo{
		ID:        aws.ToString(fs.FileSystemId),
		Lifecycle: string(fs.Lifecycle),
		DNSName:   aws.ToString(fs.DNSName),
	}
	if fs.LustreConfiguration != nil {
		info.MountName = aws.ToString(fs.LustreConfiguration.MountName)
	}
	return info
}

// CreateFileSystem creates a Lustre filesystem and returns its ID.
// FSx creation is not idempotent by name, so callers must probe first;
// the Name tag makes the filesystem re-discoverable.
func (c *RealClient) CreateFileSystem(ctx context.Context, spec FileSystemSpec) (string, error) {
	tags := []fsxtypes.Tag{
		{Key: aws.String("Name"), Value: aws.String(spec.Name)},
	}
	for k, v := range spec.Tags {
		tags = append(tags, fsxtypes.Tag{Key: aws.String(k), Value: aws.String(v)})
	}

	deployment := fsxtypes.LustreDeploymentType(spec.DeploymentType)
	if spec.DeploymentType == "" {
		deployment = fsxtypes.LustreDeploymentTypeScratch2
	}

	out, err := c.fsx.CreateFileSystem(ctx, &fsx.CreateFileSystemInput{
		FileSystemType:   fsxtypes.FileSystemTypeLustre,
		StorageCapacity:  aws.Int32(spec.CapacityGiB),
		SubnetIds:        []string{spec.SubnetID},
		SecurityGroupIds: []string{spec.SecurityGroupID},
		LustreConfiguration: &fsxtypes.CreateFileSystemLustreConfiguration{
			DeploymentType: deployment,
		},
		Tags: tags,
	})
	if err != nil {
		return "", normalizeCreate(resource.KindFileSystem, spec.Name, err)
	}
	return aws.ToString(out.FileSystem.FileSystemId), nil
}

// DeleteFileSystem deletes the filesystem. Absent filesystems are not an error.
func (c *RealClient) DeleteFileSystem(ctx context.Context, id string) error {
	_, err := c.fsx.DeleteFileSystem(ctx, &fsx.DeleteFileSystemInput{
		FileSystemId: aws.String(id),
	})
	if err != nil && !IsNotFound(err) {
		return fmt.Errorf("failed to delete filesystem %s: %w", id, err)
	}
	return nil
}

// --- NetworkAPI ---

// DefaultVPC discovers the default VPC and its subnets.
func (c *RealClient) DefaultVPC(ctx context.Context) (*VPCInfo, error) {
	vpcs, err := c.ec2.DescribeVpcs(ctx, &ec2.DescribeVpcsInput{
		Filters: []ec2types.Filter{
			{Name: aws.String("is-default"), Values: []string{"true"}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to describe VPCs: %w: %w", resource.ErrProbe, err)
	}
	if len(vpcs.Vpcs) == 0 {
		return nil, fmt.Errorf("no default VPC in region %s", c.region)
	}
	vpcID := aws.ToString(vpcs.Vpcs[0].VpcId)

	subnets, err := c.ec2.DescribeSubnets(ctx, &ec2.DescribeSubnetsInput{
		Filters: []ec2types.Filter{
			{Name: aws.String("vpc-id"), Values: []string{vpcID}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to describe subnets: %w: %w", resource.ErrProbe, err)
	}

	info := &VPCInfo{VpcID: vpcID}
	for _, s := range subnets.Subnets {
		info.SubnetIDs = append(info.SubnetIDs, aws.ToString(s.SubnetId))
	}
	return info, nil
}

// DescribeSecurityGroup returns the group by name within a VPC, or (nil, nil).
func (c *RealClient) DescribeSecurityGroup(ctx context.Context, name, vpcID string) (*SecurityGroupInfo, error) {
	out, err := c.ec2.DescribeSecurityGroups(ctx, &ec2.DescribeSecurityGroupsInput{
		Filters: []ec2types.Filter{
			{Name: aws.String("group-name"), Values: []string{name}},
			{Name: aws.String("vpc-id"), Values: []string{vpcID}},
		},
	})
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, normalizeDescribe(resource.KindSecurityGroup, name, err)
	}
	if len(out.SecurityGroups) == 0 {
		return nil, nil
	}

	sg := out.SecurityGroups[0]
	return &SecurityGroupInfo{
		ID:    aws.ToString(sg.GroupId),
		Name:  aws.ToString(sg.GroupName),
		VpcID: aws.ToString(sg.VpcId),
	}, nil
}

// CreateSecurityGroup creates the group and returns its ID.
func (c *RealClient) CreateSecurityGroup(ctx context.Context, name, description, vpcID string, tags map[string]string) (string, error) {
	var tagSpecs []ec2types.TagSpecification
	if len(tags) > 0 {
		var ec2Tags []ec2types.Tag
		for k, v := range tags {
			ec2Tags = append(ec2Tags, ec2types.Tag{Key: aws.String(k), Value: aws.String(v)})
		}
		tagSpecs = []ec2types.TagSpecification{
			{ResourceType: ec2types.ResourceTypeSecurityGroup, Tags: ec2Tags},
		}
	}

	out, err := c.ec2.CreateSecurityGroup(ctx, &ec2.CreateSecurityGroupInput{
		GroupName:         aws.String(name),
		Description:       aws.String(description),
		VpcId:             aws.String(vpcID),
		TagSpecifications: tagSpecs,
	})
	if err != nil {
		return "", normalizeCreate(resource.KindSecurityGroup, name, err)
	}
	return aws.ToString(out.GroupId), nil
}

// AuthorizeIngress opens fromPort-toPort TCP from the group to itself.
func (c *RealClient) AuthorizeIngress(ctx context.Context, groupID string, fromPort, toPort int32) error {
	_, err := c.ec2.AuthorizeSecurityGroupIngress(ctx, &ec2.AuthorizeSecurityGroupIngressInput{
		GroupId: aws.String(groupID),
		IpPermissions: []ec2types.IpPermission{
			{
				IpProtocol: aws.String("tcp"),
				FromPort:   aws.Int32(fromPort),
				ToPort:     aws.Int32(toPort),
				UserIdGroupPairs: []ec2types.UserIdGroupPair{
					{GroupId: aws.String(groupID)},
				},
			},
		},
	})
	return normalizeCreate(resource.KindSecurityGroup, groupID, err)
}

// DeleteSecurityGroup deletes the group. Absent groups are not an error.
func (c *RealClient) DeleteSecurityGroup(ctx context.Context, id string) error {
	_, err := c.ec2.DeleteSecurityGroup(ctx, &ec2.DeleteSecurityGroupInput{
		GroupId: aws.String(id),
	})
	if err != nil && !IsNotFound(err) {
		return fmt.Errorf("failed to delete security group %s: %w", id, err)
	}
	return nil
}

// --- LoadBalancerAPI ---

// DescribeLoadBalancerByCluster finds the load balancer the ingress
// controller tagged for the cluster, or (nil, nil) if none exists yet.
func (c *RealClient) DescribeLoadBalancerByCluster(ctx context.Context, clusterName string) (*LoadBalancerInfo, error) {
	var marker *string
	for {
		out, err := c.elbv2.DescribeLoadBalancers(ctx, &elasticloadbalancingv2.DescribeLoadBalancersInput{
			Marker: marker,
		})
		if err != nil {
			return nil, normalizeDescribe(resource.KindLoadBalancer, clusterName, err)
		}

		for _, lb := range out.LoadBalancers {
			match, err := c.lbTaggedForCluster(ctx, aws.ToString(lb.LoadBalancerArn), clusterName)
			if err != nil {
				return nil, err
			}
			if match {
				return loadBalancerInfo(lb), nil
			}
		}

		if out.NextMarker == nil {
			return nil, nil
		}
		marker = out.NextMarker
	}
}

func (c *RealClient) lbTaggedForCluster(ctx context.Context, arn, clusterName string) (bool, error) {
	tags, err := c.elbv2.DescribeTags(ctx, &elasticloadbalancingv2.DescribeTagsInput{
		ResourceArns: []string{arn},
	})
	if err != nil {
		return false, normalizeDescribe(resource.KindLoadBalancer, clusterName, err)
	}
	for _, desc := range tags.TagDescriptions {
		for _, tag := range desc.Tags {
			if aws.ToString(tag.Key) == lbClusterTagKey && aws.ToString(tag.Value) == clusterName {
				return true, nil
			}
		}
	}
	return false, nil
}

func loadBalancerInfo(lb elbtypes.LoadBalancer) *LoadBalancerInfo {
	info := &LoadBalancerInfo{
		ARN:     aws.ToString(lb.LoadBalancerArn),
		DNSName: aws.ToString(lb.DNSName),
	}
	if lb.State != nil {
		info.State = string(lb.State.Code)
	}
	return info
}

// --- RoleAPI ---

// EnsureRole creates the role and attaches the listed managed policies.
// Pre-existing roles and attachments are success, not failures: re-running
// after a partial failure must converge, not abort.
func (c *RealClient) EnsureRole(ctx context.Context, name, trustPolicy string, policyArns []string) (string, error) {
	_, err := c.iam.CreateRole(ctx, &iam.CreateRoleInput{
		RoleName:                 aws.String(name),
		AssumeRolePolicyDocument: aws.String(trustPolicy),
	})
	if err != nil && !IsAlreadyExists(err) {
		return "", fmt.Errorf("failed to create role %s: %w", name, err)
	}

	for _, arn := range policyArns {
		_, err := c.iam.AttachRolePolicy(ctx, &iam.AttachRolePolicyInput{
			RoleName:  aws.String(name),
			PolicyArn: aws.String(arn),
		})
		if err != nil && !IsAlreadyExists(err) {
			return "", fmt.Errorf("failed to attach policy %s to role %s: %w", arn, name, err)
		}
	}

	out, err := c.iam.GetRole(ctx, &iam.GetRoleInput{RoleName: aws.String(name)})
	if err != nil {
		return "", fmt.Errorf("failed to get role %s: %w", name, err)
	}
	return aws.ToString(out.Role.Arn), nil
}

// DeleteRole detaches managed policies and deletes the role. Reports whether
// the role existed.
func (c *RealClient) DeleteRole(ctx context.Context, name string) (bool, error) {
	attached, err := c.iam.ListAttachedRolePolicies(ctx, &iam.ListAttachedRolePoliciesInput{
		RoleName: aws.String(name),
	})
	if err != nil {
		if IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to list policies for role %s: %w", name, err)
	}

	for _, p := range attached.AttachedPolicies {
		_, err := c.iam.DetachRolePolicy(ctx, &iam.DetachRolePolicyInput{
			RoleName:  aws.String(name),
			PolicyArn: p.PolicyArn,
		})
		if err != nil && !IsNotFound(err) {
			return false, fmt.Errorf("failed to detach policy from role %s: %w", name, err)
		}
	}

	_, err = c.iam.DeleteRole(ctx, &iam.DeleteRoleInput{RoleName: aws.String(name)})
	if err != nil {
		if IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to delete role %s: %w", name, err)
	}
	return true, nil
}

// --- IdentityAPI ---

// CallerIdentity validates the active credentials against STS.
func (c *RealClient) CallerIdentity(ctx context.Context) (*CallerIdentity, error) {
	out, err := c.sts.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", resource.ErrAuth, err)
	}
	return &CallerIdentity{
		AccountID: aws.ToString(out.Account),
		Arn:       aws.ToString(out.Arn),
	}, nil
}
