// Package controllers installs the in-cluster controllers the serving stack
// depends on: the load balancer controller that reconciles ingresses, the
// device plugin that advertises GPUs to the scheduler, and the CSI driver
// that mounts the parallel filesystem.
package controllers

// ChartSpec pins a controller's helm chart: repository, chart name, and
// version.
type ChartSpec struct {
	Repository string
	Name       string
	Version    string

	// Release is the release name to install under.
	Release string

	// Namespace the release installs into.
	Namespace string
}

// Controller names, used as keys into DefaultChartSpecs and in reports.
const (
	LoadBalancerController = "aws-load-balancer-controller"
	DevicePlugin           = "nvidia-device-plugin"
	FSxCSIDriver           = "aws-fsx-csi-driver"
)

// DefaultChartSpecs pins the official chart for each controller. Versions
// are upgraded deliberately, not tracked automatically.
var DefaultChartSpecs = map[string]ChartSpec{
	LoadBalancerController: {
		Repository: "https://aws.github.io/eks-charts",
		Name:       "aws-load-balancer-controller",
		Version:    "1.8.1",
		Release:    "aws-load-balancer-controller",
		Namespace:  "kube-system",
	},
	DevicePlugin: {
		Repository: "https://nvidia.github.io/k8s-device-plugin",
		Name:       "nvidia-device-plugin",
		Version:    "0.16.2",
		Release:    "nvidia-device-plugin",
		Namespace:  "kube-system",
	},
	FSxCSIDriver: {
		Repository: "https://kubernetes-sigs.github.io/aws-fsx-csi-driver",
		Name:       "aws-fsx-csi-driver",
		Version:    "1.9.2",
		Release:    "aws-fsx-csi-driver",
		Namespace:  "kube-system",
	},
}

// InstallOrder is the order controllers install in. The device plugin goes
// first so GPU capacity registers while the other controllers roll out.
var InstallOrder = []string{DevicePlugin, FSxCSIDriver, LoadBalancerController}
