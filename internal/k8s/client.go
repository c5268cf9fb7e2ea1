package k8s

import (
	"context"
	"fmt"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/discovery"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/restmapper"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/modelkube/modelkube/internal/manifest"
)

// FieldManager identifies this tool in server-side apply field ownership.
const FieldManager = "modelkube"

// Client is the Kubernetes surface the deploy and teardown stages use.
type Client interface {
	// Apply applies every object of the bundle in order with server-side
	// apply. Re-applying an unchanged bundle is a no-op on the cluster.
	Apply(ctx context.Context, bundle *manifest.Bundle) error

	// Delete deletes the bundle's objects in reverse order, skipping
	// objects that are already gone.
	Delete(ctx context.Context, bundle *manifest.Bundle) error

	// DeploymentReady reports whether the deployment has its desired
	// number of available replicas.
	DeploymentReady(ctx context.Context, namespace, name string) (bool, error)

	// DeploymentState additionally distinguishes a missing deployment
	// from one that exists but is still rolling out.
	DeploymentState(ctx context.Context, namespace, name string) (found, ready bool, err error)

	// DaemonSetReady reports whether the daemon set is scheduled and
	// ready on every eligible node.
	DaemonSetReady(ctx context.Context, namespace, name string) (bool, error)

	// IngressHostname returns the hostname the load balancer controller
	// assigned to the ingress, or "" while unassigned.
	IngressHostname(ctx context.Context, namespace, name string) (string, error)

	// EnsureSecret creates or updates an opaque secret.
	EnsureSecret(ctx context.Context, namespace, name string, data map[string][]byte) error
}

type client struct {
	clientset     kubernetes.Interface
	dynamicClient dynamic.Interface
	mapper        meta.RESTMapper
}

// NewFromKubeconfig creates a Client from kubeconfig bytes, never touching
// the filesystem.
func NewFromKubeconfig(kubeconfig []byte) (Client, error) {
	restConfig, err := clientcmd.RESTConfigFromKubeConfig(kubeconfig)
	if err != nil {
		return nil, fmt.Errorf("building REST config from kubeconfig: %w", err)
	}

	clientset, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("creating clientset: %w", err)
	}

	dynamicClient, err := dynamic.NewForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("creating dynamic client: %w", err)
	}

	discoveryClient, err := discovery.NewDiscoveryClientForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("creating discovery client: %w", err)
	}
	groupResources, err := restmapper.GetAPIGroupResources(discoveryClient)
	if err != nil {
		return nil, fmt.Errorf("discovering API group resources: %w", err)
	}

	return &client{
		clientset:     clientset,
		dynamicClient: dynamicClient,
		mapper:        restmapper.NewDiscoveryRESTMapper(groupResources),
	}, nil
}

// NewFromClients creates a Client from pre-built clients, for tests with
// fakes.
func NewFromClients(clientset kubernetes.Interface, dynamicClient dynamic.Interface, mapper meta.RESTMapper) Client {
	return &client{clientset: clientset, dynamicClient: dynamicClient, mapper: mapper}
}

// Apply applies the bundle's objects in order with server-side apply.
func (c *client) Apply(ctx context.Context, bundle *manifest.Bundle) error {
	for _, obj := range bundle.Objects {
		u, err := toUnstructured(obj)
		if err != nil {
			return err
		}
		if err := c.applyObject(ctx, u); err != nil {
			return fmt.Errorf("applying %s %s: %w", u.GetKind(), qualifiedName(u), err)
		}
	}
	return nil
}

// Delete removes the bundle's objects in reverse order so dependents go
// before their dependencies (pods before the claim, claim before the
// volume).
func (c *client) Delete(ctx context.Context, bundle *manifest.Bundle) error {
	for i := len(bundle.Objects) - 1; i >= 0; i-- {
		u, err := toUnstructured(bundle.Objects[i])
		if err != nil {
			return err
		}
		ri, err := c.resourceFor(u)
		if err != nil {
			return err
		}
		if err := ri.Delete(ctx, u.GetName(), metav1.DeleteOptions{}); err != nil {
			if apierrors.IsNotFound(err) {
				continue
			}
			return fmt.Errorf("deleting %s %s: %w", u.GetKind(), qualifiedName(u), err)
		}
	}
	return nil
}

func (c *client) DeploymentReady(ctx context.Context, namespace, name string) (bool, error) {
	_, ready, err := c.DeploymentState(ctx, namespace, name)
	return ready, err
}

func (c *client) DeploymentState(ctx context.Context, namespace, name string) (bool, bool, error) {
	dep, err := c.clientset.AppsV1().Deployments(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return false, false, nil
		}
		return false, false, err
	}
	if dep.Spec.Replicas == nil {
		return true, false, nil
	}
	want := *dep.Spec.Replicas
	ready := dep.Status.UpdatedReplicas == want &&
		dep.Status.Replicas == want &&
		dep.Status.AvailableReplicas == want
	return true, ready, nil
}

func (c *client) DaemonSetReady(ctx context.Context, namespace, name string) (bool, error) {
	ds, err := c.clientset.AppsV1().DaemonSets(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return ds.Status.DesiredNumberScheduled > 0 &&
		ds.Status.NumberReady == ds.Status.DesiredNumberScheduled, nil
}

func (c *client) IngressHostname(ctx context.Context, namespace, name string) (string, error) {
	ing, err := c.clientset.NetworkingV1().Ingresses(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return "", nil
		}
		return "", err
	}
	for _, lb := range ing.Status.LoadBalancer.Ingress {
		if lb.Hostname != "" {
			return lb.Hostname, nil
		}
	}
	return "", nil
}

func toUnstructured(obj runtime.Object) (*unstructured.Unstructured, error) {
	content, err := runtime.DefaultUnstructuredConverter.ToUnstructured(obj)
	if err != nil {
		return nil, fmt.Errorf("converting object to unstructured: %w", err)
	}
	u := &unstructured.Unstructured{Object: content}
	// The converter emits a null creationTimestamp and an empty status,
	// both of which server-side apply rejects as field conflicts.
	unstructured.RemoveNestedField(u.Object, "metadata", "creationTimestamp")
	unstructured.RemoveNestedField(u.Object, "status")
	unstructured.RemoveNestedField(u.Object, "spec", "template", "metadata", "creationTimestamp")
	return u, nil
}

func (c *client) resourceFor(u *unstructured.Unstructured) (dynamic.ResourceInterface, error) {
	gvk := u.GroupVersionKind()
	if gvk.Kind == "" {
		return nil, fmt.Errorf("object %q has no kind set", u.GetName())
	}

	mapping, err := c.mapper.RESTMapping(gvk.GroupKind(), gvk.Version)
	if err != nil {
		return nil, fmt.Errorf("mapping %v to a resource: %w", gvk, err)
	}

	if mapping.Scope.Name() == meta.RESTScopeNameNamespace {
		ns := u.GetNamespace()
		if ns == "" {
			ns = metav1.NamespaceDefault
		}
		return c.dynamicClient.Resource(mapping.Resource).Namespace(ns), nil
	}
	return c.dynamicClient.Resource(mapping.Resource), nil
}

func (c *client) applyObject(ctx context.Context, u *unstructured.Unstructured) error {
	ri, err := c.resourceFor(u)
	if err != nil {
		return err
	}

	data, err := u.MarshalJSON()
	if err != nil {
		return fmt.Errorf("marshaling object: %w", err)
	}

	force := true
	_, err = ri.Patch(ctx, u.GetName(), types.ApplyPatchType, data, metav1.PatchOptions{
		FieldManager: FieldManager,
		Force:        &force,
	})
	return err
}

func qualifiedName(u *unstructured.Unstructured) string {
	if ns := u.GetNamespace(); ns != "" {
		return ns + "/" + u.GetName()
	}
	return u.GetName()
}
