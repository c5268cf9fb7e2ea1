// Package config defines the deployment target configuration and its
// loading, validation, and timeout handling.
package config

import (
	"fmt"
	"strings"
)

// DefaultRegion is used when neither the flag nor AWS_REGION is set.
const DefaultRegion = "us-west-2"

// DeploymentTarget is the explicit value threaded through every component
// call. There are no ambient process-wide defaults beyond the documented
// environment fallbacks applied at load time.
type DeploymentTarget struct {
	// ClusterName names the cluster and prefixes all derived resources.
	ClusterName string `yaml:"clusterName"`

	// Region is the cloud region to provision in.
	Region string `yaml:"region"`

	// Profile selects the shared credentials profile. Empty uses the
	// environment default.
	Profile string `yaml:"profile,omitempty"`

	// KubernetesVersion pins the control plane version. Empty lets the
	// provider choose its default.
	KubernetesVersion string `yaml:"kubernetesVersion,omitempty"`

	// Namespace is the Kubernetes namespace for the serving workload.
	Namespace string `yaml:"namespace"`

	NodeGroup NodeGroupConfig `yaml:"nodeGroup"`
	Storage   StorageConfig   `yaml:"storage"`
	Model     ModelConfig     `yaml:"model"`
}

// NodeGroupConfig describes the GPU node group.
type NodeGroupConfig struct {
	InstanceTypes []string `yaml:"instanceTypes"`
	MinSize       int32    `yaml:"minSize"`
	MaxSize       int32    `yaml:"maxSize"`
	DesiredSize   int32    `yaml:"desiredSize"`
	DiskSizeGiB   int32    `yaml:"diskSizeGiB,omitempty"`
}

// StorageConfig describes the parallel filesystem backing model weights.
type StorageConfig struct {
	CapacityGiB    int32  `yaml:"capacityGiB"`
	DeploymentType string `yaml:"deploymentType,omitempty"`
}

// ModelConfig describes the model-serving workload.
type ModelConfig struct {
	// ID is the model identifier the server loads (e.g. a hub repo path).
	ID string `yaml:"id"`

	// Image is the inference server container image.
	Image string `yaml:"image"`

	// Replicas is the number of serving pods.
	Replicas int32 `yaml:"replicas,omitempty"`

	// GPUsPerReplica is the GPU resource limit per pod.
	GPUsPerReplica int32 `yaml:"gpusPerReplica,omitempty"`
}

// NodeGroupName derives the node group name from the cluster name.
func (t *DeploymentTarget) NodeGroupName() string {
	return t.ClusterName + "-gpu-nodes"
}

// FileSystemName derives the filesystem Name tag from the cluster name.
func (t *DeploymentTarget) FileSystemName() string {
	return t.ClusterName + "-model-store"
}

// LustreSecurityGroupName derives the filesystem security group name.
func (t *DeploymentTarget) LustreSecurityGroupName() string {
	return t.ClusterName + "-lustre"
}

// ClusterRoleName derives the control plane IAM role name.
func (t *DeploymentTarget) ClusterRoleName() string {
	return t.ClusterName + "-cluster-role"
}

// NodeRoleName derives the node group IAM role name.
func (t *DeploymentTarget) NodeRoleName() string {
	return t.ClusterName + "-node-role"
}

// Tags returns the resource tags applied to every cloud resource the
// provisioner creates. The cluster tag is the cross-run selector.
func (t *DeploymentTarget) Tags() map[string]string {
	return map[string]string{
		"modelkube.io/cluster":    t.ClusterName,
		"modelkube.io/managed-by": "modelkube",
	}
}

// Validate checks the target for the fields every phase depends on.
func (t *DeploymentTarget) Validate() error {
	var problems []string

	if t.ClusterName == "" {
		problems = append(problems, "clusterName is required")
	}
	if t.Region == "" {
		problems = append(problems, "region is required")
	}
	if t.Namespace == "" {
		problems = append(problems, "namespace is required")
	}
	if len(t.NodeGroup.InstanceTypes) == 0 {
		problems = append(problems, "nodeGroup.instanceTypes must list at least one GPU instance type")
	}
	if t.NodeGroup.MinSize < 0 || t.NodeGroup.MaxSize < t.NodeGroup.MinSize {
		problems = append(problems, "nodeGroup sizes must satisfy 0 <= minSize <= maxSize")
	}
	if t.NodeGroup.DesiredSize < t.NodeGroup.MinSize || t.NodeGroup.DesiredSize > t.NodeGroup.MaxSize {
		problems = append(problems, "nodeGroup.desiredSize must be within [minSize, maxSize]")
	}
	if t.Storage.CapacityGiB < 1200 {
		problems = append(problems, "storage.capacityGiB must be at least 1200 (smallest Lustre filesystem)")
	}
	if t.Model.ID == "" {
		problems = append(problems, "model.id is required")
	}
	if t.Model.Image == "" {
		problems = append(problems, "model.image is required")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid deployment target: %s", strings.Join(problems, "; "))
	}
	return nil
}
