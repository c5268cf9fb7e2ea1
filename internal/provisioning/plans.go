// Package provisioning assembles stage plans for one deployment target:
// which stages run, in what order, with which creation actions and
// identifier requirements. The stage runner executes the plans; this
// package only declares them.
package provisioning

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/modelkube/modelkube/internal/cloud"
	"github.com/modelkube/modelkube/internal/config"
	"github.com/modelkube/modelkube/internal/k8s"
	"github.com/modelkube/modelkube/internal/manifest"
	"github.com/modelkube/modelkube/internal/probe"
	"github.com/modelkube/modelkube/internal/resource"
	"github.com/modelkube/modelkube/internal/stage"
)

// Lustre traffic ports. The filesystem security group allows these from
// itself and from anything else attached to the same group.
const (
	lustrePort          = 988
	lustreExtraPortFrom = 1018
	lustreExtraPortTo   = 1023
)

// gpuAmiType selects the accelerated AMI family for the node group.
const gpuAmiType = "AL2_x86_64_GPU"

// TokenEnvVar is the environment variable holding the model hub token,
// forwarded to the serving pods as a secret when set.
const TokenEnvVar = "HF_TOKEN"

// Builder assembles plans for one deployment target.
type Builder struct {
	Cloud    cloud.Client
	Target   *config.DeploymentTarget
	Timeouts *config.Timeouts

	// Kube is required for plans with in-cluster stages.
	Kube k8s.Client
}

// NetworkSeed discovers the default VPC and returns the seed identifiers
// every plan starts from.
func (b *Builder) NetworkSeed(ctx context.Context) (resource.Identifiers, error) {
	vpc, err := b.Cloud.DefaultVPC(ctx)
	if err != nil {
		return nil, fmt.Errorf("discovering default VPC: %w", err)
	}
	if vpc == nil || vpc.VpcID == "" {
		return nil, errors.New("no default VPC in this region; pass an explicit network configuration")
	}
	return resource.Identifiers{
		resource.RoleVPCID:     vpc.VpcID,
		resource.RoleSubnetIDs: strings.Join(vpc.SubnetIDs, ","),
	}, nil
}

// ClusterPlan converges the control plane and the GPU node group.
func (b *Builder) ClusterPlan(seed resource.Identifiers) *stage.Plan {
	return &stage.Plan{
		Name:   "provision-cluster",
		Target: b.Target.ClusterName,
		Seed:   seed,
		Stages: []stage.Stage{
			b.clusterStage(),
			b.nodeGroupStage(),
		},
	}
}

// StoragePlan converges the filesystem security group and the filesystem.
func (b *Builder) StoragePlan(seed resource.Identifiers) *stage.Plan {
	return &stage.Plan{
		Name:   "provision-storage",
		Target: b.Target.ClusterName,
		Seed:   seed,
		Stages: []stage.Stage{
			b.lustreSecurityGroupStage(),
			b.fileSystemStage(),
		},
	}
}

// WorkloadPlan converges the serving deployment and its ingress. The seed
// must carry the filesystem identifiers bound by the storage plan.
func (b *Builder) WorkloadPlan(seed resource.Identifiers) *stage.Plan {
	return &stage.Plan{
		Name:   "deploy-workload",
		Target: b.Target.ClusterName,
		Seed:   seed,
		Stages: []stage.Stage{
			b.workloadStage(),
			b.ingressStage(),
		},
	}
}

func (b *Builder) clusterStage() stage.Stage {
	return stage.Stage{
		Name:     "cluster",
		Kind:     resource.KindCluster,
		Requires: []resource.Role{resource.RoleSubnetIDs},
		Selector: func(resource.Identifiers) probe.Selector {
			return probe.Selector{Name: b.Target.ClusterName}
		},
		Action: func(ctx context.Context, ids resource.Identifiers) error {
			roleArn, err := b.Cloud.EnsureRole(ctx, b.Target.ClusterRoleName(), clusterTrustPolicy, clusterPolicyArns)
			if err != nil {
				return fmt.Errorf("ensuring cluster role: %w", err)
			}
			subnets, err := ids.Lookup(resource.RoleSubnetIDs)
			if err != nil {
				return err
			}
			return b.Cloud.CreateCluster(ctx, cloud.ClusterSpec{
				Name:      b.Target.ClusterName,
				Version:   b.Target.KubernetesVersion,
				RoleArn:   roleArn,
				SubnetIDs: strings.Split(subnets, ","),
				Tags:      b.Target.Tags(),
			})
		},
		Timeout:      b.Timeouts.ClusterCreate,
		PollInterval: b.Timeouts.PollInterval,
		Hint:         "inspect the cluster status in the provider console before re-running",
	}
}

func (b *Builder) nodeGroupStage() stage.Stage {
	return stage.Stage{
		Name:     "nodegroup",
		Kind:     resource.KindNodeGroup,
		Requires: []resource.Role{resource.RoleSubnetIDs},
		Selector: func(resource.Identifiers) probe.Selector {
			return probe.Selector{Name: b.Target.NodeGroupName(), ClusterName: b.Target.ClusterName}
		},
		Action: func(ctx context.Context, ids resource.Identifiers) error {
			roleArn, err := b.Cloud.EnsureRole(ctx, b.Target.NodeRoleName(), nodeTrustPolicy, nodePolicyArns)
			if err != nil {
				return fmt.Errorf("ensuring node role: %w", err)
			}
			subnets, err := ids.Lookup(resource.RoleSubnetIDs)
			if err != nil {
				return err
			}
			return b.Cloud.CreateNodeGroup(ctx, cloud.NodeGroupSpec{
				ClusterName:   b.Target.ClusterName,
				Name:          b.Target.NodeGroupName(),
				NodeRoleArn:   roleArn,
				SubnetIDs:     strings.Split(subnets, ","),
				InstanceTypes: b.Target.NodeGroup.InstanceTypes,
				AmiType:       gpuAmiType,
				MinSize:       b.Target.NodeGroup.MinSize,
				MaxSize:       b.Target.NodeGroup.MaxSize,
				DesiredSize:   b.Target.NodeGroup.DesiredSize,
				DiskSizeGiB:   b.Target.NodeGroup.DiskSizeGiB,
				Labels:        map[string]string{"modelkube.io/accelerator": "gpu"},
				Tags:          b.Target.Tags(),
			})
		},
		Timeout:      b.Timeouts.NodeGroupCreate,
		PollInterval: b.Timeouts.PollInterval,
		Hint:         "GPU capacity varies by zone; check the node group health in the provider console",
	}
}

func (b *Builder) lustreSecurityGroupStage() stage.Stage {
	return stage.Stage{
		Name:     "filesystem security group",
		Kind:     resource.KindSecurityGroup,
		Requires: []resource.Role{resource.RoleVPCID},
		Selector: func(ids resource.Identifiers) probe.Selector {
			vpcID := ids[resource.RoleVPCID]
			return probe.Selector{Name: b.Target.LustreSecurityGroupName(), VpcID: vpcID}
		},
		Action: func(ctx context.Context, ids resource.Identifiers) error {
			vpcID, err := ids.Lookup(resource.RoleVPCID)
			if err != nil {
				return err
			}
			groupID, err := b.Cloud.CreateSecurityGroup(ctx, b.Target.LustreSecurityGroupName(),
				"Lustre traffic for "+b.Target.FileSystemName(), vpcID, b.Target.Tags())
			if err != nil {
				return err
			}
			for _, ports := range [][2]int32{{lustrePort, lustrePort}, {lustreExtraPortFrom, lustreExtraPortTo}} {
				if err := b.Cloud.AuthorizeIngress(ctx, groupID, ports[0], ports[1]); err != nil &&
					!errors.Is(err, resource.ErrAlreadyExists) {
					return fmt.Errorf("authorizing lustre ingress %d-%d: %w", ports[0], ports[1], err)
				}
			}
			return nil
		},
		Timeout:      b.Timeouts.FileSystemCreate,
		PollInterval: b.Timeouts.PollInterval,
	}
}

func (b *Builder) fileSystemStage() stage.Stage {
	return stage.Stage{
		Name:     "filesystem",
		Kind:     resource.KindFileSystem,
		Requires: []resource.Role{resource.RoleSubnetIDs, resource.RoleLustreSGID},
		Selector: func(resource.Identifiers) probe.Selector {
			return probe.Selector{Name: b.Target.FileSystemName()}
		},
		Action: func(ctx context.Context, ids resource.Identifiers) error {
			subnets, err := ids.Lookup(resource.RoleSubnetIDs)
			if err != nil {
				return err
			}
			groupID, err := ids.Lookup(resource.RoleLustreSGID)
			if err != nil {
				return err
			}
			// Lustre filesystems are single-subnet; the first default
			// subnet is as good as any.
			_, err = b.Cloud.CreateFileSystem(ctx, cloud.FileSystemSpec{
				Name:            b.Target.FileSystemName(),
				SubnetID:        strings.Split(subnets, ",")[0],
				SecurityGroupID: groupID,
				CapacityGiB:     b.Target.Storage.CapacityGiB,
				DeploymentType:  b.Target.Storage.DeploymentType,
				Tags:            b.Target.Tags(),
			})
			return err
		},
		Timeout:      b.Timeouts.FileSystemCreate,
		PollInterval: b.Timeouts.PollInterval,
		Hint:         "filesystem capacity must be a supported Lustre size (1200 or multiples of 2400 GiB)",
	}
}

func (b *Builder) workloadStage() stage.Stage {
	return stage.Stage{
		Name: "workload",
		Kind: resource.KindWorkload,
		Requires: []resource.Role{
			resource.RoleFileSystemID,
			resource.RoleFileSystemDNS,
			resource.RoleMountName,
		},
		Selector: func(resource.Identifiers) probe.Selector {
			return probe.Selector{Name: manifest.WorkloadName(b.Target)}
		},
		Action: func(ctx context.Context, ids resource.Identifiers) error {
			bundle, err := manifest.Workload(b.Target, ids)
			if err != nil {
				return err
			}
			if err := b.Kube.Apply(ctx, bundle); err != nil {
				return err
			}
			if token := os.Getenv(TokenEnvVar); token != "" {
				return b.Kube.EnsureSecret(ctx, b.Target.Namespace, manifest.TokenSecretName,
					map[string][]byte{TokenEnvVar: []byte(token)})
			}
			return nil
		},
		Timeout:      b.Timeouts.WorkloadReady,
		PollInterval: b.Timeouts.PollInterval,
		Hint:         "model loading dominates startup; check the serving pod logs if this times out",
	}
}

func (b *Builder) ingressStage() stage.Stage {
	return stage.Stage{
		Name: "ingress",
		Kind: resource.KindLoadBalancer,
		Selector: func(resource.Identifiers) probe.Selector {
			return probe.Selector{Name: manifest.WorkloadName(b.Target), ClusterName: b.Target.ClusterName}
		},
		Action: func(ctx context.Context, ids resource.Identifiers) error {
			return b.Kube.Apply(ctx, manifest.ServingIngress(b.Target))
		},
		Timeout:      b.Timeouts.IngressReady,
		PollInterval: b.Timeouts.PollInterval,
		Hint:         "the load balancer controller provisions the load balancer; check its logs in kube-system",
	}
}

// ServiceURL renders the public endpoint from the bound identifiers, or ""
// when the load balancer identifier is absent.
func ServiceURL(ids resource.Identifiers) string {
	dns, err := ids.Lookup(resource.RoleLoadBalancerDNS)
	if err != nil || dns == "" {
		return ""
	}
	return "http://" + dns
}
