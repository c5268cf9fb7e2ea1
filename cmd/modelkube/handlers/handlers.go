// Package handlers implements the business logic for CLI commands.
//
// This package contains handler functions that are called by command
// definitions in the commands package. Handlers are framework-agnostic and
// can be tested independently of the CLI framework.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/modelkube/modelkube/internal/cloud"
	"github.com/modelkube/modelkube/internal/config"
	"github.com/modelkube/modelkube/internal/controllers"
	"github.com/modelkube/modelkube/internal/k8s"
	"github.com/modelkube/modelkube/internal/prereq"
	"github.com/modelkube/modelkube/internal/probe"
	"github.com/modelkube/modelkube/internal/resource"
)

// Options carries the flag values shared by the provisioning commands.
type Options struct {
	// ConfigPath is the deployment target file. Empty auto-detects
	// modelkube.yaml in the working directory.
	ConfigPath string

	// Region and Profile override the loaded configuration when set.
	Region  string
	Profile string

	// Force skips the teardown confirmation prompt.
	Force bool
}

// Factory function variables - can be replaced in tests for dependency injection.
var (
	// newCloudClient creates the cloud API client.
	newCloudClient = func(ctx context.Context, region, profile string) (cloud.Client, error) {
		return cloud.NewRealClient(ctx, region, profile)
	}

	// newKubeClient builds a Kubernetes client from kubeconfig bytes.
	newKubeClient = k8s.NewFromKubeconfig

	// newHelmInstaller builds a helm client from kubeconfig bytes.
	newHelmInstaller = func(kubeconfig []byte, namespace string) (controllers.HelmInstaller, error) {
		return k8s.NewHelmClient(kubeconfig, namespace)
	}

	// loadConfigFile loads the deployment target from file.
	loadConfigFile = config.LoadFile

	// findConfigFile resolves the default config file path.
	findConfigFile = config.FindConfigFile

	// loadTimeouts loads the timeout configuration from the environment.
	loadTimeouts = config.LoadTimeouts

	// checkTools runs the tool prerequisite checks.
	checkTools = prereq.CheckTools

	// checkFiles runs the file prerequisite checks.
	checkFiles = prereq.CheckFiles

	// validateIdentity verifies the cloud credentials resolve to an identity.
	validateIdentity = prereq.ValidateIdentity

	// promptProfile asks for a different credentials profile after an auth
	// failure, when running interactively.
	promptProfile = prereq.PromptProfile

	// buildKubeconfig renders the exec-auth kubeconfig for the cluster.
	buildKubeconfig = k8s.Kubeconfig

	// newLogger builds the console logger handlers thread through the
	// internal packages.
	newLogger = func() logr.Logger {
		verbosity := 0
		if os.Getenv("MODELKUBE_DEBUG") != "" {
			verbosity = 1
		}
		return funcr.New(func(prefix, args string) {
			if prefix != "" {
				fmt.Fprintf(os.Stderr, "%s: %s\n", prefix, args)
				return
			}
			fmt.Fprintln(os.Stderr, args)
		}, funcr.Options{Verbosity: verbosity})
	}
)

// session bundles the dependencies every handler needs: the validated
// deployment target, timeouts, an authenticated cloud client, and a logger.
type session struct {
	target   *config.DeploymentTarget
	timeouts *config.Timeouts
	cloud    cloud.Client
	log      logr.Logger
}

// newSession loads and validates configuration, checks prerequisites, and
// authenticates against the cloud API.
func newSession(ctx context.Context, opts Options) (*session, error) {
	target, err := loadTarget(opts)
	if err != nil {
		return nil, err
	}

	if err := checkTools(prereq.DefaultTools()).Err(); err != nil {
		return nil, err
	}

	client, err := newCloudClient(ctx, target.Region, target.Profile)
	if err != nil {
		return nil, fmt.Errorf("initializing cloud client: %w", err)
	}

	s := &session{
		target:   target,
		timeouts: loadTimeouts(),
		cloud:    client,
		log:      newLogger(),
	}

	if err := s.ensureIdentity(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// loadTarget resolves the config file path, loads the deployment target, and
// applies flag overrides.
func loadTarget(opts Options) (*config.DeploymentTarget, error) {
	path := opts.ConfigPath
	if path == "" {
		found, err := findConfigFile()
		if err != nil {
			return nil, fmt.Errorf("no config file found: %w\nCreate %s or pass --config", err, config.DefaultFileName)
		}
		path = found
	}

	if err := checkFiles([]prereq.RequiredFile{{Path: path, Purpose: "deployment target configuration"}}); err != nil {
		return nil, err
	}

	target, err := loadConfigFile(path)
	if err != nil {
		return nil, err
	}

	if opts.Region != "" {
		target.Region = opts.Region
	}
	if opts.Profile != "" {
		target.Profile = opts.Profile
	}
	return target, nil
}

// ensureIdentity verifies the credentials. On an auth failure in an
// interactive session it prompts once for a different profile and retries.
func (s *session) ensureIdentity(ctx context.Context) error {
	identity, err := validateIdentity(ctx, s.cloud)
	if err == nil {
		s.log.Info("authenticated", "account", identity.AccountID, "arn", identity.Arn)
		return nil
	}
	if !errors.Is(err, resource.ErrAuth) {
		return err
	}

	profile, perr := promptProfile(ctx, s.target.Profile)
	if perr != nil || profile == "" {
		return err
	}

	client, cerr := newCloudClient(ctx, s.target.Region, profile)
	if cerr != nil {
		return fmt.Errorf("initializing cloud client for profile %s: %w", profile, cerr)
	}

	identity, err = validateIdentity(ctx, client)
	if err != nil {
		return err
	}

	s.target.Profile = profile
	s.cloud = client
	s.log.Info("authenticated", "account", identity.AccountID, "arn", identity.Arn, "profile", profile)
	return nil
}

// clusterIdentifiers probes the control plane and returns its bound
// identifiers (endpoint, CA, VPC) and whether the cluster is ready.
func (s *session) clusterIdentifiers(ctx context.Context) (resource.Identifiers, bool, error) {
	prober := probe.New(s.cloud, s.target.Region)
	res, err := prober.Describe(ctx, resource.KindCluster, probe.Selector{Name: s.target.ClusterName})
	if err != nil {
		return nil, false, fmt.Errorf("probing cluster %s: %w", s.target.ClusterName, err)
	}
	return res.Identifiers, res.Ready(), nil
}

// kubeClients probes the cluster and builds the Kubernetes and helm clients
// from its exec-auth kubeconfig. Fails when the cluster is not ready.
func (s *session) kubeClients(ctx context.Context) (resource.Identifiers, k8s.Client, controllers.HelmInstaller, error) {
	ids, ready, err := s.clusterIdentifiers(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	if !ready {
		return nil, nil, nil, fmt.Errorf("cluster %s is not ready; run 'modelkube provision-cluster' first", s.target.ClusterName)
	}

	kubeconfig, err := buildKubeconfig(s.target.ClusterName, s.target.Region, s.target.Profile, ids)
	if err != nil {
		return nil, nil, nil, err
	}

	kube, err := newKubeClient(kubeconfig)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("building kubernetes client: %w", err)
	}

	helm, err := newHelmInstaller(kubeconfig, metav1.NamespaceSystem)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("building helm client: %w", err)
	}
	return ids, kube, helm, nil
}
