// Package probe implements read-only discovery of managed resource state.
//
// The prober answers "does resource X exist, and in what state?" for every
// resource kind the provisioner manages. Selectors are stable names or tags,
// never previously-returned opaque IDs, so probing works across process
// restarts. NotFound is a normal outcome, returned as a resource in
// StateNotFound with a nil error; transient query failures wrap
// resource.ErrProbe and are retryable.
package probe

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelkube/modelkube/internal/cloud"
	"github.com/modelkube/modelkube/internal/resource"
)

// Selector identifies a resource by stable attributes.
type Selector struct {
	// Name is the resource name or Name tag.
	Name string
	// ClusterName scopes kinds that live inside a cluster (node groups,
	// load balancers).
	ClusterName string
	// VpcID scopes security group lookups.
	VpcID string
}

// Prober discovers the current state of managed resources.
type Prober struct {
	cloud  cloud.Client
	region string
}

// New creates a Prober over the given cloud client.
func New(client cloud.Client, region string) *Prober {
	return &Prober{cloud: client, region: region}
}

// Describe probes one resource. The returned ManagedResource always carries
// the requested kind and name; State is StateNotFound when the resource does
// not exist.
func (p *Prober) Describe(ctx context.Context, kind resource.Kind, sel Selector) (resource.ManagedResource, error) {
	res := resource.ManagedResource{
		Kind:        kind,
		Name:        sel.Name,
		Region:      p.region,
		State:       resource.StateNotFound,
		Identifiers: resource.Identifiers{},
	}

	switch kind {
	case resource.KindCluster:
		return p.describeCluster(ctx, res, sel)
	case resource.KindNodeGroup:
		return p.describeNodeGroup(ctx, res, sel)
	case resource.KindFileSystem:
		return p.describeFileSystem(ctx, res, sel)
	case resource.KindSecurityGroup:
		return p.describeSecurityGroup(ctx, res, sel)
	case resource.KindLoadBalancer:
		return p.describeLoadBalancer(ctx, res, sel)
	default:
		return res, fmt.Errorf("unprobeable resource kind %q", kind)
	}
}

func (p *Prober) describeCluster(ctx context.Context, res resource.ManagedResource, sel Selector) (resource.ManagedResource, error) {
	info, err := p.cloud.DescribeCluster(ctx, sel.Name)
	if err != nil {
		return res, err
	}
	if info == nil {
		return res, nil
	}

	res.State = clusterState(info.Status)
	res.Identifiers[resource.RoleVPCID] = info.VpcID
	res.Identifiers[resource.RoleSubnetIDs] = strings.Join(info.SubnetIDs, ",")
	res.Identifiers[resource.RoleSecurityGroupID] = info.SecurityGroupID
	res.Identifiers[resource.RoleClusterEndpoint] = info.Endpoint
	res.Identifiers[resource.RoleClusterCA] = info.CertificateData
	res.Identifiers[resource.RoleClusterRoleArn] = info.RoleArn
	return res, nil
}

func (p *Prober) describeNodeGroup(ctx context.Context, res resource.ManagedResource, sel Selector) (resource.ManagedResource, error) {
	info, err := p.cloud.DescribeNodeGroup(ctx, sel.ClusterName, sel.Name)
	if err != nil {
		return res, err
	}
	if info == nil {
		return res, nil
	}

	res.State = nodeGroupState(info.Status)
	res.Identifiers[resource.RoleNodeRoleArn] = info.NodeRoleArn
	return res, nil
}

func (p *Prober) describeFileSystem(ctx context.Context, res resource.ManagedResource, sel Selector) (resource.ManagedResource, error) {
	info, err := p.cloud.DescribeFileSystemByName(ctx, sel.Name)
	if err != nil {
		return res, err
	}
	if info == nil {
		return res, nil
	}

	res.State = fileSystemState(info.Lifecycle)
	res.Identifiers[resource.RoleFileSystemID] = info.ID
	res.Identifiers[resource.RoleFileSystemDNS] = info.DNSName
	res.Identifiers[resource.RoleMountName] = info.MountName
	return res, nil
}

func (p *Prober) describeSecurityGroup(ctx context.Context, res resource.ManagedResource, sel Selector) (resource.ManagedResource, error) {
	info, err := p.cloud.DescribeSecurityGroup(ctx, sel.Name, sel.VpcID)
	if err != nil {
		return res, err
	}
	if info == nil {
		return res, nil
	}

	// Security groups have no lifecycle: existing means ready.
	res.State = resource.StateReady
	res.Identifiers[resource.RoleLustreSGID] = info.ID
	return res, nil
}

func (p *Prober) describeLoadBalancer(ctx context.Context, res resource.ManagedResource, sel Selector) (resource.ManagedResource, error) {
	info, err := p.cloud.DescribeLoadBalancerByCluster(ctx, sel.ClusterName)
	if err != nil {
		return res, err
	}
	if info == nil {
		return res, nil
	}

	res.State = loadBalancerState(info.State)
	res.Identifiers[resource.RoleLoadBalancerDNS] = info.DNSName
	return res, nil
}

// Provider lifecycle values mapped to the common state enum. Unrecognized
// values map to pending so the poller keeps watching rather than failing on
// a provider status it has never seen.

func clusterState(status string) resource.State {
	switch status {
	case "ACTIVE":
		return resource.StateReady
	case "FAILED":
		return resource.StateFailed
	case "CREATING", "UPDATING", "PENDING":
		return resource.StatePending
	case "DELETING":
		return resource.StatePending
	default:
		return resource.StatePending
	}
}

func nodeGroupState(status string) resource.State {
	switch status {
	case "ACTIVE":
		return resource.StateReady
	case "CREATE_FAILED", "DELETE_FAILED", "DEGRADED":
		return resource.StateFailed
	default:
		return resource.StatePending
	}
}

func fileSystemState(lifecycle string) resource.State {
	switch lifecycle {
	case "AVAILABLE":
		return resource.StateReady
	case "FAILED", "MISCONFIGURED":
		return resource.StateFailed
	default:
		return resource.StatePending
	}
}

func loadBalancerState(state string) resource.State {
	switch state {
	case "active":
		return resource.StateReady
	case "failed":
		return resource.StateFailed
	default:
		return resource.StatePending
	}
}
