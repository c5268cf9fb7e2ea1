package manifest

import (
	"bytes"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"sigs.k8s.io/yaml"

	"github.com/modelkube/modelkube/internal/config"
	"github.com/modelkube/modelkube/internal/resource"
)

// Bundle is an ordered set of objects applied together. Order matters: the
// namespace precedes namespaced objects, the volume precedes its claim.
type Bundle struct {
	Objects []runtime.Object
}

// Workload assembles the full serving bundle: namespace, storage class,
// volume, claim, deployment, and service. The ingress is a separate bundle
// because it is applied by a later stage that waits on the load balancer
// controller.
func Workload(target *config.DeploymentTarget, ids resource.Identifiers) (*Bundle, error) {
	pv, err := PersistentVolume(target, ids)
	if err != nil {
		return nil, fmt.Errorf("building persistent volume: %w", err)
	}
	return &Bundle{Objects: []runtime.Object{
		Namespace(target),
		StorageClass(target),
		pv,
		PersistentVolumeClaim(target),
		Deployment(target),
		Service(target),
	}}, nil
}

// ServingIngress assembles the ingress bundle.
func ServingIngress(target *config.DeploymentTarget) *Bundle {
	return &Bundle{Objects: []runtime.Object{Ingress(target)}}
}

// Deletion assembles the bundle teardown removes. Deletion only needs kinds
// and names, so the volume carries no storage wiring. Objects are in apply
// order; Delete walks them in reverse, removing the ingress first so the
// load balancer controller releases its cloud load balancer early. The
// namespace is left in place; cluster deletion removes it.
func Deletion(target *config.DeploymentTarget) *Bundle {
	pv := &corev1.PersistentVolume{
		TypeMeta:   metav1.TypeMeta{APIVersion: "v1", Kind: "PersistentVolume"},
		ObjectMeta: metav1.ObjectMeta{Name: VolumeName(target)},
	}
	return &Bundle{Objects: []runtime.Object{
		StorageClass(target),
		pv,
		PersistentVolumeClaim(target),
		Deployment(target),
		Service(target),
		Ingress(target),
	}}
}

// YAML renders the bundle as a multi-document YAML stream, for --dry-run
// output and for operators who want to inspect what will be applied.
func (b *Bundle) YAML() ([]byte, error) {
	var buf bytes.Buffer
	for i, obj := range b.Objects {
		if i > 0 {
			buf.WriteString("---\n")
		}
		data, err := yaml.Marshal(obj)
		if err != nil {
			return nil, fmt.Errorf("marshaling object %d: %w", i, err)
		}
		buf.Write(data)
	}
	return buf.Bytes(), nil
}
