package e2e

import (
	"context"
	"sync"
	"time"

	"github.com/go-logr/logr"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"helm.sh/helm/v3/pkg/release"

	"github.com/modelkube/modelkube/internal/cloud"
	"github.com/modelkube/modelkube/internal/config"
	"github.com/modelkube/modelkube/internal/controllers"
	"github.com/modelkube/modelkube/internal/manifest"
	"github.com/modelkube/modelkube/internal/probe"
	"github.com/modelkube/modelkube/internal/provisioning"
	"github.com/modelkube/modelkube/internal/resource"
	"github.com/modelkube/modelkube/internal/stage"
	"github.com/modelkube/modelkube/internal/teardown"
)

// settlePolls is how many describe calls a freshly created resource stays
// pending before the simulator promotes it to its ready state.
const settlePolls = 2

// manualClock advances only when slept on, so polling loops run instantly.
type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Sleep(_ context.Context, d time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return nil
}

// simCloud is an in-memory cloud with asynchronous state transitions:
// created resources stay pending for settlePolls describes, then go ready.
type simCloud struct {
	mu sync.Mutex

	vpc *cloud.VPCInfo

	cluster       *cloud.ClusterInfo
	clusterSettle int

	nodeGroup       *cloud.NodeGroupInfo
	nodeGroupSettle int

	fileSystem       *cloud.FileSystemInfo
	fileSystemSettle int

	securityGroup *cloud.SecurityGroupInfo
	ingressRules  [][2]int32

	loadBalancer       *cloud.LoadBalancerInfo
	loadBalancerSettle int

	roles map[string]string

	creations    int
	rolesDeleted []string
}

func newSimCloud() *simCloud {
	return &simCloud{
		vpc:   &cloud.VPCInfo{VpcID: "vpc-sim", SubnetIDs: []string{"subnet-a", "subnet-b"}},
		roles: map[string]string{},
	}
}

func (s *simCloud) DescribeCluster(_ context.Context, _ string) (*cloud.ClusterInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cluster == nil {
		return nil, nil
	}
	if s.cluster.Status == "CREATING" {
		s.clusterSettle--
		if s.clusterSettle <= 0 {
			s.cluster.Status = "ACTIVE"
			s.cluster.Endpoint = "https://sim.eks.example.com"
			s.cluster.CertificateData = "Y2EtZGF0YQ=="
		}
	}
	out := *s.cluster
	return &out, nil
}

func (s *simCloud) CreateCluster(_ context.Context, spec cloud.ClusterSpec) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creations++
	s.cluster = &cloud.ClusterInfo{
		Name:      spec.Name,
		Status:    "CREATING",
		RoleArn:   spec.RoleArn,
		VpcID:     s.vpc.VpcID,
		SubnetIDs: spec.SubnetIDs,
	}
	s.clusterSettle = settlePolls
	return nil
}

func (s *simCloud) DeleteCluster(_ context.Context, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cluster = nil
	return nil
}

func (s *simCloud) DescribeNodeGroup(_ context.Context, _, _ string) (*cloud.NodeGroupInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.nodeGroup == nil {
		return nil, nil
	}
	if s.nodeGroup.Status == "CREATING" {
		s.nodeGroupSettle--
		if s.nodeGroupSettle <= 0 {
			s.nodeGroup.Status = "ACTIVE"
		}
	}
	out := *s.nodeGroup
	return &out, nil
}

func (s *simCloud) CreateNodeGroup(_ context.Context, spec cloud.NodeGroupSpec) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creations++
	s.nodeGroup = &cloud.NodeGroupInfo{
		Name:        spec.Name,
		ClusterName: spec.ClusterName,
		Status:      "CREATING",
		NodeRoleArn: spec.NodeRoleArn,
	}
	s.nodeGroupSettle = settlePolls
	return nil
}

func (s *simCloud) DeleteNodeGroup(_ context.Context, _, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodeGroup = nil
	return nil
}

func (s *simCloud) DescribeFileSystemByName(_ context.Context, _ string) (*cloud.FileSystemInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fileSystem == nil {
		return nil, nil
	}
	if s.fileSystem.Lifecycle == "CREATING" {
		s.fileSystemSettle--
		if s.fileSystemSettle <= 0 {
			s.fileSystem.Lifecycle = "AVAILABLE"
		}
	}
	out := *s.fileSystem
	return &out, nil
}

func (s *simCloud) CreateFileSystem(_ context.Context, _ cloud.FileSystemSpec) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creations++
	s.fileSystem = &cloud.FileSystemInfo{
		ID:        "fs-sim",
		Lifecycle: "CREATING",
		DNSName:   "fs-sim.fsx.example.com",
		MountName: "simmount",
	}
	s.fileSystemSettle = settlePolls
	return "fs-sim", nil
}

func (s *simCloud) DeleteFileSystem(_ context.Context, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fileSystem = nil
	return nil
}

func (s *simCloud) DefaultVPC(context.Context) (*cloud.VPCInfo, error) {
	return s.vpc, nil
}

func (s *simCloud) DescribeSecurityGroup(_ context.Context, _, _ string) (*cloud.SecurityGroupInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.securityGroup == nil {
		return nil, nil
	}
	out := *s.securityGroup
	return &out, nil
}

func (s *simCloud) CreateSecurityGroup(_ context.Context, name, _, vpcID string, _ map[string]string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creations++
	s.securityGroup = &cloud.SecurityGroupInfo{ID: "sg-sim", Name: name, VpcID: vpcID}
	return "sg-sim", nil
}

func (s *simCloud) AuthorizeIngress(_ context.Context, _ string, fromPort, toPort int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ingressRules = append(s.ingressRules, [2]int32{fromPort, toPort})
	return nil
}

func (s *simCloud) DeleteSecurityGroup(_ context.Context, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.securityGroup = nil
	return nil
}

func (s *simCloud) DescribeLoadBalancerByCluster(_ context.Context, _ string) (*cloud.LoadBalancerInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadBalancer == nil {
		return nil, nil
	}
	if s.loadBalancer.State == "provisioning" {
		s.loadBalancerSettle--
		if s.loadBalancerSettle <= 0 {
			s.loadBalancer.State = "active"
		}
	}
	out := *s.loadBalancer
	return &out, nil
}

// ingressApplied models the load balancer controller reacting to a new
// ingress by provisioning a load balancer.
func (s *simCloud) ingressApplied() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadBalancer == nil {
		s.loadBalancer = &cloud.LoadBalancerInfo{
			ARN:     "arn:sim:lb",
			DNSName: "sim-123.elb.example.com",
			State:   "provisioning",
		}
		s.loadBalancerSettle = settlePolls
	}
}

func (s *simCloud) ingressDeleted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadBalancer = nil
}

func (s *simCloud) EnsureRole(_ context.Context, name, _ string, _ []string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	arn := "arn:aws:iam::000000000000:role/" + name
	s.roles[name] = arn
	return arn, nil
}

func (s *simCloud) DeleteRole(_ context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, existed := s.roles[name]
	delete(s.roles, name)
	s.rolesDeleted = append(s.rolesDeleted, name)
	return existed, nil
}

func (s *simCloud) CallerIdentity(context.Context) (*cloud.CallerIdentity, error) {
	return &cloud.CallerIdentity{AccountID: "000000000000", Arn: "arn:aws:iam::000000000000:user/sim"}, nil
}

var _ cloud.Client = (*simCloud)(nil)

// simKube applies bundles and flips the serving deployment ready one probe
// after it was applied. Applying the single-object ingress bundle notifies
// the cloud simulator, which then provisions the load balancer.
type simKube struct {
	mu       sync.Mutex
	cloud    *simCloud
	applied  []*manifest.Bundle
	deployed bool
	probes   int
	secrets  map[string][]byte
}

func (k *simKube) Apply(_ context.Context, bundle *manifest.Bundle) error {
	k.mu.Lock()
	k.applied = append(k.applied, bundle)
	if len(bundle.Objects) > 1 {
		k.deployed = true
		k.probes = 0
	}
	single := len(bundle.Objects) == 1
	k.mu.Unlock()
	if single {
		k.cloud.ingressApplied()
	}
	return nil
}

func (k *simKube) Delete(_ context.Context, _ *manifest.Bundle) error {
	k.mu.Lock()
	k.deployed = false
	k.applied = nil
	k.mu.Unlock()
	k.cloud.ingressDeleted()
	return nil
}

func (k *simKube) DeploymentReady(ctx context.Context, namespace, name string) (bool, error) {
	_, ready, err := k.DeploymentState(ctx, namespace, name)
	return ready, err
}

func (k *simKube) DeploymentState(_ context.Context, namespace, _ string) (bool, bool, error) {
	// Controller deployments in kube-system come up as soon as helm
	// installs them; only the serving deployment models a slow rollout.
	if namespace == "kube-system" {
		return true, true, nil
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	if !k.deployed {
		return false, false, nil
	}
	k.probes++
	return true, k.probes > 1, nil
}

func (k *simKube) DaemonSetReady(context.Context, string, string) (bool, error) {
	return false, nil
}

func (k *simKube) IngressHostname(context.Context, string, string) (string, error) {
	k.cloud.mu.Lock()
	defer k.cloud.mu.Unlock()
	if k.cloud.loadBalancer == nil || k.cloud.loadBalancer.State != "active" {
		return "", nil
	}
	return k.cloud.loadBalancer.DNSName, nil
}

func (k *simKube) EnsureSecret(_ context.Context, _, name string, data map[string][]byte) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.secrets == nil {
		k.secrets = map[string][]byte{}
	}
	for key, v := range data {
		k.secrets[name+"/"+key] = v
	}
	return nil
}

// simHelm tracks releases without talking to a chart repository.
type simHelm struct {
	mu       sync.Mutex
	installs []string
	releases map[string]bool
}

func (h *simHelm) InstallOrUpgrade(_ context.Context, releaseName, _, _, _ string, _ map[string]interface{}, _ time.Duration) (*release.Release, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.releases == nil {
		h.releases = map[string]bool{}
	}
	h.installs = append(h.installs, releaseName)
	h.releases[releaseName] = true
	return &release.Release{Name: releaseName}, nil
}

func (h *simHelm) Uninstall(releaseName string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.releases, releaseName)
	return nil
}

func (h *simHelm) ReleaseExists(releaseName string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.releases[releaseName]
}

// simCleanup is the in-cluster half of teardown over the simulator.
type simCleanup struct {
	kube   *simKube
	mgr    *controllers.Manager
	target *config.DeploymentTarget
}

func (c *simCleanup) DeleteWorkload(ctx context.Context) error {
	return c.kube.Delete(ctx, manifest.Deletion(c.target))
}

func (c *simCleanup) UninstallControllers() error {
	return c.mgr.UninstallAll()
}

var _ = Describe("full provisioning lifecycle", Ordered, func() {
	var (
		sim      *simCloud
		kube     *simKube
		helm     *simHelm
		clock    *manualClock
		target   *config.DeploymentTarget
		timeouts *config.Timeouts
		builder  *provisioning.Builder
		manager  *controllers.Manager
		seed     resource.Identifiers
		fsSeed   resource.Identifiers
	)

	newRunner := func(withKube bool) *stage.Runner {
		d := &provisioning.Describer{Cloud: probe.New(sim, target.Region), Target: target}
		if withKube {
			d.Kube = kube
		}
		return stage.NewRunner(d, clock, logr.Discard(), 3, time.Second)
	}

	BeforeAll(func() {
		sim = newSimCloud()
		kube = &simKube{cloud: sim}
		helm = &simHelm{}
		clock = &manualClock{now: time.Unix(1700000000, 0)}

		target = &config.DeploymentTarget{
			ClusterName: "sim",
			Region:      "us-west-2",
			Namespace:   "model-serving",
			NodeGroup: config.NodeGroupConfig{
				InstanceTypes: []string{"g5.2xlarge"},
				MinSize:       1,
				MaxSize:       2,
				DesiredSize:   1,
			},
			Storage: config.StorageConfig{CapacityGiB: 1200, DeploymentType: "SCRATCH_2"},
			Model: config.ModelConfig{
				ID:             "meta-llama/Llama-3.1-8B-Instruct",
				Image:          "vllm/vllm-openai:v0.6.3",
				Replicas:       1,
				GPUsPerReplica: 1,
			},
		}
		timeouts = &config.Timeouts{
			ClusterCreate:     20 * time.Minute,
			NodeGroupCreate:   20 * time.Minute,
			FileSystemCreate:  20 * time.Minute,
			ControllerInstall: 10 * time.Minute,
			WorkloadReady:     20 * time.Minute,
			IngressReady:      10 * time.Minute,
			Delete:            20 * time.Minute,
			PollInterval:      20 * time.Second,
			RetryMaxAttempts:  3,
			RetryInitialDelay: time.Second,
		}
		builder = &provisioning.Builder{Cloud: sim, Target: target, Timeouts: timeouts, Kube: kube}
		manager = controllers.NewManager(helm, kube, target, timeouts, logr.Discard())
	})

	It("discovers the default network", func() {
		var err error
		seed, err = builder.NetworkSeed(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(seed[resource.RoleVPCID]).To(Equal("vpc-sim"))
		Expect(seed[resource.RoleSubnetIDs]).To(Equal("subnet-a,subnet-b"))
	})

	It("provisions the cluster and node group", func() {
		report, err := newRunner(false).Run(context.Background(), builder.ClusterPlan(seed))
		Expect(err).NotTo(HaveOccurred())
		Expect(report.CreationCount()).To(Equal(2))
		Expect(sim.cluster.Status).To(Equal("ACTIVE"))
		Expect(sim.nodeGroup.Status).To(Equal("ACTIVE"))
		Expect(sim.roles).To(HaveKey("sim-cluster-role"))
		Expect(sim.roles).To(HaveKey("sim-node-role"))
	})

	It("provisions the storage layer", func() {
		runner := newRunner(false)
		report, err := runner.Run(context.Background(), builder.StoragePlan(seed))
		Expect(err).NotTo(HaveOccurred())
		Expect(report.CreationCount()).To(Equal(2))
		Expect(sim.fileSystem.Lifecycle).To(Equal("AVAILABLE"))
		Expect(sim.ingressRules).To(ConsistOf([2]int32{988, 988}, [2]int32{1018, 1023}))

		fsSeed = runner.Identifiers()
		Expect(fsSeed[resource.RoleFileSystemID]).To(Equal("fs-sim"))
		Expect(fsSeed[resource.RoleMountName]).To(Equal("simmount"))
	})

	It("installs the controllers in order", func() {
		Expect(manager.EnsureControllers(context.Background(), fsSeed)).To(Succeed())

		want := []string{}
		for _, name := range controllers.InstallOrder {
			want = append(want, controllers.DefaultChartSpecs[name].Release)
		}
		Expect(helm.installs).To(Equal(want))
	})

	It("deploys the workload and gets a load balancer", func() {
		runner := newRunner(true)
		report, err := runner.Run(context.Background(), builder.WorkloadPlan(fsSeed))
		Expect(err).NotTo(HaveOccurred())
		Expect(report.CreationCount()).To(Equal(2))

		// Serving bundle plus ingress bundle.
		Expect(kube.applied).To(HaveLen(2))
		Expect(kube.applied[0].Objects).To(HaveLen(6))
		Expect(kube.applied[1].Objects).To(HaveLen(1))

		url := provisioning.ServiceURL(runner.Identifiers())
		Expect(url).To(Equal("http://sim-123.elb.example.com"))
	})

	It("skips every stage on a second pass", func() {
		before := sim.creations

		for _, plan := range []*stage.Plan{
			builder.ClusterPlan(seed),
			builder.StoragePlan(seed),
			builder.WorkloadPlan(fsSeed),
		} {
			report, err := newRunner(true).Run(context.Background(), plan)
			Expect(err).NotTo(HaveOccurred())
			Expect(report.CreationCount()).To(BeZero(), "plan %s re-created resources", plan.Name)
		}
		Expect(sim.creations).To(Equal(before))
	})

	It("tears everything down in reverse order", func() {
		cleanup := &simCleanup{kube: kube, mgr: manager, target: target}
		driver := teardown.NewDriver(sim, cleanup, target, timeouts, clock, logr.Discard())

		report := driver.Run(context.Background())
		Expect(report.Err()).NotTo(HaveOccurred())

		Expect(sim.fileSystem).To(BeNil())
		Expect(sim.securityGroup).To(BeNil())
		Expect(sim.nodeGroup).To(BeNil())
		Expect(sim.cluster).To(BeNil())
		Expect(sim.roles).To(BeEmpty())
		Expect(helm.releases).To(BeEmpty())
	})

	It("reports everything absent when torn down again", func() {
		driver := teardown.NewDriver(sim, nil, target, timeouts, clock, logr.Discard())

		report := driver.Run(context.Background())
		Expect(report.Err()).NotTo(HaveOccurred())
		for _, res := range report.Results {
			Expect(res.Outcome).To(BeElementOf(teardown.OutcomeAbsent, teardown.OutcomeSkipped),
				"step %s claimed %s on an already-empty target", res.Step, res.Outcome)
		}
	})
})
