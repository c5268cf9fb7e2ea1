// Package resource defines the model of infrastructure objects managed by
// the provisioner.
//
// A ManagedResource is the in-memory view of one cloud or cluster object
// (EKS cluster, node group, FSx filesystem, security group, load balancer,
// storage volume, workload deployment). It carries no persistent state of
// its own: the cloud provider and the Kubernetes control plane are the
// system of record, and every run re-derives resource state by probing.
package resource

import "fmt"

// Kind identifies the type of a managed resource.
type Kind string

const (
	KindCluster       Kind = "cluster"
	KindNodeGroup     Kind = "nodegroup"
	KindFileSystem    Kind = "filesystem"
	KindSecurityGroup Kind = "securitygroup"
	KindLoadBalancer  Kind = "loadbalancer"
	KindStorageVolume Kind = "storagevolume"
	KindWorkload      Kind = "workload"
)

// State is the discovered lifecycle state of a managed resource.
type State string

const (
	// StateUnknown means the resource has not been probed yet.
	StateUnknown State = "unknown"
	// StatePending means the resource exists but is not yet usable.
	StatePending State = "pending"
	// StateReady means the resource is in a terminal, usable state.
	StateReady State = "ready"
	// StateFailed means the provider reports the resource as failed.
	StateFailed State = "failed"
	// StateNotFound means the resource does not exist. This is a normal
	// probe outcome, not an error: it drives the create path.
	StateNotFound State = "notfound"
)

// Role names the purpose of an external identifier bound to a resource.
type Role string

const (
	RoleVPCID           Role = "vpcId"
	RoleSubnetIDs       Role = "subnetIds"
	RoleSecurityGroupID Role = "securityGroupId"
	RoleClusterEndpoint Role = "clusterEndpoint"
	RoleClusterCA       Role = "clusterCA"
	RoleClusterRoleArn  Role = "clusterRoleArn"
	RoleNodeRoleArn     Role = "nodeRoleArn"
	RoleFileSystemID    Role = "fileSystemId"
	RoleFileSystemDNS   Role = "fileSystemDns"
	RoleMountName       Role = "mountName"
	RoleLustreSGID      Role = "lustreSecurityGroupId"
	RoleLoadBalancerDNS Role = "loadBalancerDns"
	RoleNamespace       Role = "namespace"
)

// Identifiers maps identifier roles to concrete external IDs
// (VPC IDs, ARNs, DNS names). Identifiers are populated as side effects
// of resource discovery or creation and consumed by later stages.
type Identifiers map[Role]string

// Merge returns a copy of ids with all entries of other added.
// Entries in other win on conflict.
func (ids Identifiers) Merge(other Identifiers) Identifiers {
	merged := make(Identifiers, len(ids)+len(other))
	for k, v := range ids {
		merged[k] = v
	}
	for k, v := range other {
		merged[k] = v
	}
	return merged
}

// Lookup returns the value bound to role, or a MissingIdentifierError if the
// role has no bound value. Rendering and stage wiring use this instead of a
// bare map read so ordering bugs surface loudly.
func (ids Identifiers) Lookup(role Role) (string, error) {
	v, ok := ids[role]
	if !ok || v == "" {
		return "", &MissingIdentifierError{Role: role}
	}
	return v, nil
}

// ManagedResource is one logical infrastructure object tracked by the
// provisioner.
type ManagedResource struct {
	Kind        Kind
	Name        string
	Region      string
	State       State
	Identifiers Identifiers
}

// NotFound reports whether the resource was probed and does not exist.
func (r ManagedResource) NotFound() bool {
	return r.State == StateNotFound
}

// Ready reports whether the resource is in a terminal usable state.
func (r ManagedResource) Ready() bool {
	return r.State == StateReady
}

func (r ManagedResource) String() string {
	return fmt.Sprintf("%s/%s (%s)", r.Kind, r.Name, r.State)
}
