package controllers

import (
	"github.com/modelkube/modelkube/internal/config"
	"github.com/modelkube/modelkube/internal/resource"
)

// Values represents helm chart values as a map.
type Values = map[string]interface{}

// LoadBalancerControllerValues builds values for the load balancer
// controller. The controller needs the cluster name to find its tagged
// subnets and the VPC to place target groups in.
func LoadBalancerControllerValues(target *config.DeploymentTarget, ids resource.Identifiers) (Values, error) {
	vpcID, err := ids.Lookup(resource.RoleVPCID)
	if err != nil {
		return nil, err
	}
	return Values{
		"clusterName": target.ClusterName,
		"region":      target.Region,
		"vpcId":       vpcID,
	}, nil
}

// DevicePluginValues builds values for the GPU device plugin. The daemon
// set must tolerate the GPU taint carried by accelerated nodes.
func DevicePluginValues() Values {
	return Values{
		"tolerations": []Values{
			{
				"key":      "nvidia.com/gpu",
				"operator": "Exists",
				"effect":   "NoSchedule",
			},
		},
	}
}

// FSxCSIValues builds values for the filesystem CSI driver. Only static
// provisioning is used, so the controller replica count stays minimal.
func FSxCSIValues() Values {
	return Values{
		"controller": Values{
			"replicaCount": 1,
		},
	}
}
