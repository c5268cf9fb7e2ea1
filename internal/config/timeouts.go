package config

import (
	"os"
	"strconv"
	"time"
)

// Timeouts holds per-stage timeout and polling configuration.
// These values can be customized via environment variables.
type Timeouts struct {
	ClusterCreate     time.Duration // cluster reaching ACTIVE
	NodeGroupCreate   time.Duration // node group reaching ACTIVE
	FileSystemCreate  time.Duration // filesystem reaching AVAILABLE
	ControllerInstall time.Duration // helm release and its pods ready
	WorkloadReady     time.Duration // serving deployment available (model load included)
	IngressReady      time.Duration // load balancer provisioned and active
	Delete            time.Duration // each teardown deletion converging

	PollInterval      time.Duration // delay between describe calls while polling
	RetryMaxAttempts  int           // transient-error retry budget within a poll loop
	RetryInitialDelay time.Duration // initial backoff for transient retries
}

// LoadTimeouts loads timeout configuration from environment variables.
// If a variable is not set or invalid, the default value is used.
//
// Environment Variables:
//   - MODELKUBE_TIMEOUT_CLUSTER (default: 25m)
//   - MODELKUBE_TIMEOUT_NODEGROUP (default: 20m)
//   - MODELKUBE_TIMEOUT_FILESYSTEM (default: 15m)
//   - MODELKUBE_TIMEOUT_CONTROLLERS (default: 10m)
//   - MODELKUBE_TIMEOUT_WORKLOAD (default: 30m)
//   - MODELKUBE_TIMEOUT_INGRESS (default: 10m)
//   - MODELKUBE_TIMEOUT_DELETE (default: 20m)
//   - MODELKUBE_POLL_INTERVAL (default: 20s)
//   - MODELKUBE_RETRY_MAX_ATTEMPTS (default: 5)
//   - MODELKUBE_RETRY_INITIAL_DELAY (default: 2s)
func LoadTimeouts() *Timeouts {
	return &Timeouts{
		ClusterCreate:     parseDuration("MODELKUBE_TIMEOUT_CLUSTER", 25*time.Minute),
		NodeGroupCreate:   parseDuration("MODELKUBE_TIMEOUT_NODEGROUP", 20*time.Minute),
		FileSystemCreate:  parseDuration("MODELKUBE_TIMEOUT_FILESYSTEM", 15*time.Minute),
		ControllerInstall: parseDuration("MODELKUBE_TIMEOUT_CONTROLLERS", 10*time.Minute),
		WorkloadReady:     parseDuration("MODELKUBE_TIMEOUT_WORKLOAD", 30*time.Minute),
		IngressReady:      parseDuration("MODELKUBE_TIMEOUT_INGRESS", 10*time.Minute),
		Delete:            parseDuration("MODELKUBE_TIMEOUT_DELETE", 20*time.Minute),
		PollInterval:      parseDuration("MODELKUBE_POLL_INTERVAL", 20*time.Second),
		RetryMaxAttempts:  parseInt("MODELKUBE_RETRY_MAX_ATTEMPTS", 5),
		RetryInitialDelay: parseDuration("MODELKUBE_RETRY_INITIAL_DELAY", 2*time.Second),
	}
}

// parseDuration parses a duration from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseDuration(envVar string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}
	return d
}

// parseInt parses an integer from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseInt(envVar string, defaultVal int) int {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return i
}
