package provisioning

import (
	"context"

	"github.com/modelkube/modelkube/internal/config"
	"github.com/modelkube/modelkube/internal/k8s"
	"github.com/modelkube/modelkube/internal/probe"
	"github.com/modelkube/modelkube/internal/resource"
)

// Describer routes probes: cloud kinds go to the cloud prober, the serving
// workload is probed against the Kubernetes API. It satisfies
// stage.Describer.
type Describer struct {
	Cloud  *probe.Prober
	Kube   k8s.Client // nil for plans without in-cluster stages
	Target *config.DeploymentTarget
}

// Describe probes one resource.
func (d *Describer) Describe(ctx context.Context, kind resource.Kind, sel probe.Selector) (resource.ManagedResource, error) {
	switch kind {
	case resource.KindWorkload:
		return d.describeWorkload(ctx, sel)
	case resource.KindLoadBalancer:
		return d.describeLoadBalancer(ctx, sel)
	}
	return d.Cloud.Describe(ctx, kind, sel)
}

// describeLoadBalancer cross-checks the tag-discovered load balancer against
// the ingress status. The cloud lookup is scoped to the cluster tag, which
// matches any balancer the controller manages; the hostname published on the
// ingress pins it to this one. Until the hostname appears and matches, the
// balancer is not ready.
func (d *Describer) describeLoadBalancer(ctx context.Context, sel probe.Selector) (resource.ManagedResource, error) {
	res, err := d.Cloud.Describe(ctx, resource.KindLoadBalancer, sel)
	if err != nil || res.NotFound() {
		return res, err
	}
	hostname, err := d.Kube.IngressHostname(ctx, d.Target.Namespace, sel.Name)
	if err != nil {
		return res, err
	}
	if res.State == resource.StateReady && hostname != res.Identifiers[resource.RoleLoadBalancerDNS] {
		res.State = resource.StatePending
	}
	return res, nil
}

func (d *Describer) describeWorkload(ctx context.Context, sel probe.Selector) (resource.ManagedResource, error) {
	res := resource.ManagedResource{
		Kind:        resource.KindWorkload,
		Name:        sel.Name,
		Region:      d.Target.Region,
		State:       resource.StateNotFound,
		Identifiers: resource.Identifiers{},
	}

	found, ready, err := d.Kube.DeploymentState(ctx, d.Target.Namespace, sel.Name)
	if err != nil {
		return res, err
	}
	switch {
	case !found:
		res.State = resource.StateNotFound
	case ready:
		res.State = resource.StateReady
	default:
		res.State = resource.StatePending
	}
	return res, nil
}
