package k8s

import (
	"context"
	"fmt"
	"time"

	"helm.sh/helm/v3/pkg/action"
	"helm.sh/helm/v3/pkg/chart"
	"helm.sh/helm/v3/pkg/chart/loader"
	"helm.sh/helm/v3/pkg/cli"
	"helm.sh/helm/v3/pkg/getter"
	"helm.sh/helm/v3/pkg/release"
	"helm.sh/helm/v3/pkg/repo"
	"k8s.io/apimachinery/pkg/api/meta"
	"k8s.io/client-go/discovery"
	"k8s.io/client-go/discovery/cached/memory"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/restmapper"
	"k8s.io/client-go/tools/clientcmd"
)

// HelmClient installs charts into the provisioned cluster from in-memory
// kubeconfig bytes. There is no dependency on a helm binary or a
// file-based repository cache.
type HelmClient struct {
	kubeconfig   []byte
	namespace    string
	actionConfig *action.Configuration
	settings     *cli.EnvSettings
}

// NewHelmClient creates a HelmClient scoped to one namespace.
func NewHelmClient(kubeconfig []byte, namespace string) (*HelmClient, error) {
	actionConfig := new(action.Configuration)
	restGetter := &inMemoryRESTClientGetter{kubeconfig: kubeconfig, namespace: namespace}

	if err := actionConfig.Init(restGetter, namespace, "secret", func(string, ...interface{}) {}); err != nil {
		return nil, fmt.Errorf("initializing helm action config: %w", err)
	}

	return &HelmClient{
		kubeconfig:   kubeconfig,
		namespace:    namespace,
		actionConfig: actionConfig,
		settings:     cli.New(),
	}, nil
}

// InstallOrUpgrade installs the chart, or upgrades it when a release with
// that name already exists. Both paths wait for the release's workloads.
func (h *HelmClient) InstallOrUpgrade(ctx context.Context, releaseName, repoURL, chartName, version string, values map[string]interface{}, timeout time.Duration) (*release.Release, error) {
	hist := action.NewHistory(h.actionConfig)
	hist.Max = 1
	if _, err := hist.Run(releaseName); err != nil {
		return h.install(ctx, releaseName, repoURL, chartName, version, values, timeout)
	}
	return h.upgrade(ctx, releaseName, repoURL, chartName, version, values, timeout)
}

func (h *HelmClient) install(ctx context.Context, releaseName, repoURL, chartName, version string, values map[string]interface{}, timeout time.Duration) (*release.Release, error) {
	install := action.NewInstall(h.actionConfig)
	install.ReleaseName = releaseName
	install.Namespace = h.namespace
	install.CreateNamespace = true
	install.Version = version
	install.Wait = true
	install.Timeout = timeout

	chart, err := h.loadChart(repoURL, chartName, version)
	if err != nil {
		return nil, err
	}
	return install.RunWithContext(ctx, chart, values)
}

func (h *HelmClient) upgrade(ctx context.Context, releaseName, repoURL, chartName, version string, values map[string]interface{}, timeout time.Duration) (*release.Release, error) {
	upgrade := action.NewUpgrade(h.actionConfig)
	upgrade.Namespace = h.namespace
	upgrade.Version = version
	upgrade.Wait = true
	upgrade.Timeout = timeout
	upgrade.ReuseValues = false

	chart, err := h.loadChart(repoURL, chartName, version)
	if err != nil {
		return nil, err
	}
	return upgrade.RunWithContext(ctx, releaseName, chart, values)
}

func (h *HelmClient) loadChart(repoURL, chartName, version string) (*chart.Chart, error) {
	chartPath, err := repo.FindChartInRepoURL(repoURL, chartName, version, "", "", "", getter.All(h.settings))
	if err != nil {
		return nil, fmt.Errorf("finding chart %s in repo %s: %w", chartName, repoURL, err)
	}
	c, err := loader.Load(chartPath)
	if err != nil {
		return nil, fmt.Errorf("loading chart %s: %w", chartName, err)
	}
	return c, nil
}

// Uninstall removes a release. A missing release is not an error.
func (h *HelmClient) Uninstall(releaseName string) error {
	uninstall := action.NewUninstall(h.actionConfig)
	uninstall.Wait = true
	uninstall.Timeout = 5 * time.Minute
	uninstall.IgnoreNotFound = true

	_, err := uninstall.Run(releaseName)
	return err
}

// ReleaseExists reports whether a release with the given name exists.
func (h *HelmClient) ReleaseExists(releaseName string) bool {
	hist := action.NewHistory(h.actionConfig)
	hist.Max = 1
	_, err := hist.Run(releaseName)
	return err == nil
}

// inMemoryRESTClientGetter implements the RESTClientGetter helm needs from
// kubeconfig bytes instead of filesystem paths.
type inMemoryRESTClientGetter struct {
	kubeconfig []byte
	namespace  string
	restConfig *rest.Config
}

func (g *inMemoryRESTClientGetter) ToRESTConfig() (*rest.Config, error) {
	if g.restConfig != nil {
		return g.restConfig, nil
	}
	clientConfig, err := clientcmd.NewClientConfigFromBytes(g.kubeconfig)
	if err != nil {
		return nil, err
	}
	g.restConfig, err = clientConfig.ClientConfig()
	if err != nil {
		return nil, err
	}
	return g.restConfig, nil
}

func (g *inMemoryRESTClientGetter) ToDiscoveryClient() (discovery.CachedDiscoveryInterface, error) {
	restConfig, err := g.ToRESTConfig()
	if err != nil {
		return nil, err
	}
	dc, err := discovery.NewDiscoveryClientForConfig(restConfig)
	if err != nil {
		return nil, err
	}
	return memory.NewMemCacheClient(dc), nil
}

func (g *inMemoryRESTClientGetter) ToRESTMapper() (meta.RESTMapper, error) {
	dc, err := g.ToDiscoveryClient()
	if err != nil {
		return nil, err
	}
	return restmapper.NewDeferredDiscoveryRESTMapper(dc), nil
}

func (g *inMemoryRESTClientGetter) ToRawKubeConfigLoader() clientcmd.ClientConfig {
	clientConfig, _ := clientcmd.NewClientConfigFromBytes(g.kubeconfig)
	return clientConfig
}
