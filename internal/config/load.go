package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultFileName is the target file looked for in the working directory
// when no --config flag is given.
const DefaultFileName = "modelkube.yaml"

// LoadFile reads and validates a deployment target from a YAML file.
// Environment fallbacks are applied before validation: AWS_REGION for the
// region (then DefaultRegion), AWS_PROFILE for the profile.
func LoadFile(path string) (*DeploymentTarget, error) {
	// #nosec G304
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var target DeploymentTarget
	if err := yaml.Unmarshal(data, &target); err != nil {
		return nil, fmt.Errorf("failed to unmarshal yaml: %w", err)
	}

	applyDefaults(&target)

	if err := target.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &target, nil
}

func applyDefaults(t *DeploymentTarget) {
	if t.Region == "" {
		t.Region = os.Getenv("AWS_REGION")
	}
	if t.Region == "" {
		t.Region = DefaultRegion
	}
	if t.Profile == "" {
		t.Profile = os.Getenv("AWS_PROFILE")
	}
	if t.Namespace == "" {
		t.Namespace = "model-serving"
	}
	if t.NodeGroup.DesiredSize == 0 && t.NodeGroup.MinSize > 0 {
		t.NodeGroup.DesiredSize = t.NodeGroup.MinSize
	}
	if t.Storage.DeploymentType == "" {
		t.Storage.DeploymentType = "SCRATCH_2"
	}
	if t.Model.Replicas == 0 {
		t.Model.Replicas = 1
	}
	if t.Model.GPUsPerReplica == 0 {
		t.Model.GPUsPerReplica = 1
	}
}

// FindConfigFile returns the default config file path if it exists in the
// working directory.
func FindConfigFile() (string, error) {
	if _, err := os.Stat(DefaultFileName); err != nil {
		return "", fmt.Errorf("%s not found in working directory", DefaultFileName)
	}
	return DefaultFileName, nil
}
