// Package main is the entry point for the modelkube CLI.
//
// modelkube provisions a GPU-enabled Kubernetes cluster, a parallel
// filesystem for model weights, the in-cluster controllers the serving
// stack needs, and a model inference workload behind a public load
// balancer. Every command is a convergence pass: re-running after a
// failure picks up where the last run stopped.
//
// Commands: provision-cluster, provision-storage, install-controllers,
// deploy-workload, teardown, version.
package main

import (
	"fmt"
	"os"

	"github.com/modelkube/modelkube/cmd/modelkube/commands"
)

// Version information set by goreleaser at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)
	if err := commands.Root().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
