// Package manifest builds the Kubernetes objects for the model-serving
// workload as typed structs. Identifiers discovered during provisioning are
// resolved at build time; a missing identifier fails the build instead of
// producing a manifest with an empty field.
package manifest

import (
	"fmt"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	networkingv1 "k8s.io/api/networking/v1"
	storagev1 "k8s.io/api/storage/v1"
	apiresource "k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"

	"github.com/modelkube/modelkube/internal/config"
	"github.com/modelkube/modelkube/internal/resource"
)

const (
	// ServingPort is the port the inference server listens on.
	ServingPort = 8000

	// ModelMountPath is where the shared filesystem is mounted in the
	// serving container.
	ModelMountPath = "/models"

	fsxCSIDriver = "fsx.csi.aws.com"

	// TokenSecretName holds the model hub token for gated model downloads.
	// The secret reference is optional: public models need no token.
	TokenSecretName = "model-hub-token"

	appLabelKey   = "app.kubernetes.io/name"
	partOfKey     = "app.kubernetes.io/part-of"
	managedByKey  = "app.kubernetes.io/managed-by"
	managedByName = "modelkube"
)

// WorkloadName derives the serving workload name from the target.
func WorkloadName(target *config.DeploymentTarget) string {
	return target.ClusterName + "-serving"
}

// VolumeName derives the persistent volume name from the target. Persistent
// volumes are cluster-scoped, so the cluster name keeps them unique.
func VolumeName(target *config.DeploymentTarget) string {
	return target.ClusterName + "-model-store"
}

// ClaimName derives the persistent volume claim name.
func ClaimName(target *config.DeploymentTarget) string {
	return "model-store"
}

// ClassName derives the storage class name. Like the volume it is
// cluster-scoped.
func ClassName(target *config.DeploymentTarget) string {
	return target.ClusterName + "-fsx-lustre"
}

func labels(target *config.DeploymentTarget) map[string]string {
	return map[string]string{
		appLabelKey:  WorkloadName(target),
		partOfKey:    target.ClusterName,
		managedByKey: managedByName,
	}
}

// Namespace builds the serving namespace.
func Namespace(target *config.DeploymentTarget) *corev1.Namespace {
	return &corev1.Namespace{
		TypeMeta: metav1.TypeMeta{APIVersion: "v1", Kind: "Namespace"},
		ObjectMeta: metav1.ObjectMeta{
			Name:   target.Namespace,
			Labels: labels(target),
		},
	}
}

// StorageClass builds the class binding claims to the filesystem CSI driver.
// The volume is statically provisioned, so the class exists to pair the
// claim with its volume rather than to drive dynamic provisioning.
func StorageClass(target *config.DeploymentTarget) *storagev1.StorageClass {
	reclaim := corev1.PersistentVolumeReclaimRetain
	return &storagev1.StorageClass{
		TypeMeta: metav1.TypeMeta{APIVersion: "storage.k8s.io/v1", Kind: "StorageClass"},
		ObjectMeta: metav1.ObjectMeta{
			Name:   ClassName(target),
			Labels: labels(target),
		},
		Provisioner:   fsxCSIDriver,
		ReclaimPolicy: &reclaim,
	}
}

// PersistentVolume builds the statically provisioned volume backed by the
// parallel filesystem. Requires the filesystem identifiers bound by the
// storage stage.
func PersistentVolume(target *config.DeploymentTarget, ids resource.Identifiers) (*corev1.PersistentVolume, error) {
	fsID, err := ids.Lookup(resource.RoleFileSystemID)
	if err != nil {
		return nil, err
	}
	dns, err := ids.Lookup(resource.RoleFileSystemDNS)
	if err != nil {
		return nil, err
	}
	mountName, err := ids.Lookup(resource.RoleMountName)
	if err != nil {
		return nil, err
	}

	capacity := apiresource.NewQuantity(int64(target.Storage.CapacityGiB)*(1<<30), apiresource.BinarySI)

	return &corev1.PersistentVolume{
		TypeMeta: metav1.TypeMeta{APIVersion: "v1", Kind: "PersistentVolume"},
		ObjectMeta: metav1.ObjectMeta{
			Name:   VolumeName(target),
			Labels: labels(target),
		},
		Spec: corev1.PersistentVolumeSpec{
			Capacity: corev1.ResourceList{
				corev1.ResourceStorage: *capacity,
			},
			AccessModes:                   []corev1.PersistentVolumeAccessMode{corev1.ReadWriteMany},
			PersistentVolumeReclaimPolicy: corev1.PersistentVolumeReclaimRetain,
			StorageClassName:              ClassName(target),
			PersistentVolumeSource: corev1.PersistentVolumeSource{
				CSI: &corev1.CSIPersistentVolumeSource{
					Driver:       fsxCSIDriver,
					VolumeHandle: fsID,
					VolumeAttributes: map[string]string{
						"dnsname":   dns,
						"mountname": mountName,
					},
				},
			},
		},
	}, nil
}

// PersistentVolumeClaim builds the claim binding the serving pods to the
// filesystem volume.
func PersistentVolumeClaim(target *config.DeploymentTarget) *corev1.PersistentVolumeClaim {
	capacity := apiresource.NewQuantity(int64(target.Storage.CapacityGiB)*(1<<30), apiresource.BinarySI)
	className := ClassName(target)

	return &corev1.PersistentVolumeClaim{
		TypeMeta: metav1.TypeMeta{APIVersion: "v1", Kind: "PersistentVolumeClaim"},
		ObjectMeta: metav1.ObjectMeta{
			Name:      ClaimName(target),
			Namespace: target.Namespace,
			Labels:    labels(target),
		},
		Spec: corev1.PersistentVolumeClaimSpec{
			AccessModes:      []corev1.PersistentVolumeAccessMode{corev1.ReadWriteMany},
			StorageClassName: &className,
			VolumeName:       VolumeName(target),
			Resources: corev1.VolumeResourceRequirements{
				Requests: corev1.ResourceList{
					corev1.ResourceStorage: *capacity,
				},
			},
		},
	}
}

// Deployment builds the inference server deployment. GPU count and replica
// count come from the model configuration; the model weights volume is
// mounted read-only.
func Deployment(target *config.DeploymentTarget) *appsv1.Deployment {
	replicas := target.Model.Replicas
	gpus := apiresource.NewQuantity(int64(target.Model.GPUsPerReplica), apiresource.DecimalSI)
	optionalSecret := true

	return &appsv1.Deployment{
		TypeMeta: metav1.TypeMeta{APIVersion: "apps/v1", Kind: "Deployment"},
		ObjectMeta: metav1.ObjectMeta{
			Name:      WorkloadName(target),
			Namespace: target.Namespace,
			Labels:    labels(target),
		},
		Spec: appsv1.DeploymentSpec{
			Replicas: &replicas,
			Selector: &metav1.LabelSelector{
				MatchLabels: map[string]string{appLabelKey: WorkloadName(target)},
			},
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{
					Labels: labels(target),
				},
				Spec: corev1.PodSpec{
					Containers: []corev1.Container{{
						Name:  "inference-server",
						Image: target.Model.Image,
						Args: []string{
							"--model", target.Model.ID,
							"--port", fmt.Sprintf("%d", ServingPort),
							"--download-dir", ModelMountPath,
							"--tensor-parallel-size", fmt.Sprintf("%d", target.Model.GPUsPerReplica),
						},
						EnvFrom: []corev1.EnvFromSource{{
							SecretRef: &corev1.SecretEnvSource{
								LocalObjectReference: corev1.LocalObjectReference{Name: TokenSecretName},
								Optional:             &optionalSecret,
							},
						}},
						Ports: []corev1.ContainerPort{{
							Name:          "http",
							ContainerPort: ServingPort,
						}},
						Resources: corev1.ResourceRequirements{
							Limits: corev1.ResourceList{
								"nvidia.com/gpu": *gpus,
							},
						},
						VolumeMounts: []corev1.VolumeMount{{
							Name:      "model-store",
							MountPath: ModelMountPath,
						}},
						ReadinessProbe: &corev1.Probe{
							ProbeHandler: corev1.ProbeHandler{
								HTTPGet: &corev1.HTTPGetAction{
									Path: "/health",
									Port: intstr.FromInt32(ServingPort),
								},
							},
							// Model loading dominates startup; probe late
							// and tolerate slow first responses.
							InitialDelaySeconds: 60,
							PeriodSeconds:       15,
							FailureThreshold:    40,
						},
					}},
					Volumes: []corev1.Volume{{
						Name: "model-store",
						VolumeSource: corev1.VolumeSource{
							PersistentVolumeClaim: &corev1.PersistentVolumeClaimVolumeSource{
								ClaimName: ClaimName(target),
							},
						},
					}},
				},
			},
		},
	}
}

// Service builds the ClusterIP service in front of the serving pods.
func Service(target *config.DeploymentTarget) *corev1.Service {
	return &corev1.Service{
		TypeMeta: metav1.TypeMeta{APIVersion: "v1", Kind: "Service"},
		ObjectMeta: metav1.ObjectMeta{
			Name:      WorkloadName(target),
			Namespace: target.Namespace,
			Labels:    labels(target),
		},
		Spec: corev1.ServiceSpec{
			Selector: map[string]string{appLabelKey: WorkloadName(target)},
			Ports: []corev1.ServicePort{{
				Name:       "http",
				Port:       80,
				TargetPort: intstr.FromInt32(ServingPort),
			}},
			Type: corev1.ServiceTypeClusterIP,
		},
	}
}

// Ingress builds the internet-facing ingress that the in-cluster load
// balancer controller reconciles into a cloud load balancer.
func Ingress(target *config.DeploymentTarget) *networkingv1.Ingress {
	className := "alb"
	pathType := networkingv1.PathTypePrefix

	return &networkingv1.Ingress{
		TypeMeta: metav1.TypeMeta{APIVersion: "networking.k8s.io/v1", Kind: "Ingress"},
		ObjectMeta: metav1.ObjectMeta{
			Name:      WorkloadName(target),
			Namespace: target.Namespace,
			Labels:    labels(target),
			Annotations: map[string]string{
				"alb.ingress.kubernetes.io/scheme":           "internet-facing",
				"alb.ingress.kubernetes.io/target-type":      "ip",
				"alb.ingress.kubernetes.io/healthcheck-path": "/health",
			},
		},
		Spec: networkingv1.IngressSpec{
			IngressClassName: &className,
			Rules: []networkingv1.IngressRule{{
				IngressRuleValue: networkingv1.IngressRuleValue{
					HTTP: &networkingv1.HTTPIngressRuleValue{
						Paths: []networkingv1.HTTPIngressPath{{
							Path:     "/",
							PathType: &pathType,
							Backend: networkingv1.IngressBackend{
								Service: &networkingv1.IngressServiceBackend{
									Name: WorkloadName(target),
									Port: networkingv1.ServiceBackendPort{Number: 80},
								},
							},
						}},
					},
				},
			}},
		},
	}
}
