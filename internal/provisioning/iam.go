package provisioning

// Trust policies and managed policy sets for the two IAM roles the
// provisioner ensures. Role creation is idempotent: an existing role with
// the same name is reused.

const clusterTrustPolicy = `{
  "Version": "2012-10-17",
  "Statement": [
    {
      "Effect": "Allow",
      "Principal": {"Service": "eks.amazonaws.com"},
      "Action": "sts:AssumeRole"
    }
  ]
}`

const nodeTrustPolicy = `{
  "Version": "2012-10-17",
  "Statement": [
    {
      "Effect": "Allow",
      "Principal": {"Service": "ec2.amazonaws.com"},
      "Action": "sts:AssumeRole"
    }
  ]
}`

var clusterPolicyArns = []string{
	"arn:aws:iam::aws:policy/AmazonEKSClusterPolicy",
}

var nodePolicyArns = []string{
	"arn:aws:iam::aws:policy/AmazonEKSWorkerNodePolicy",
	"arn:aws:iam::aws:policy/AmazonEKS_CNI_Policy",
	"arn:aws:iam::aws:policy/AmazonEC2ContainerRegistryReadOnly",
	// The load balancer controller and FSx CSI driver run on the nodes and
	// call their services with the node role.
	"arn:aws:iam::aws:policy/ElasticLoadBalancingFullAccess",
	"arn:aws:iam::aws:policy/AmazonFSxFullAccess",
}
