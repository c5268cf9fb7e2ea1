package k8s

import (
	"context"
	"fmt"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"
)

const waitPollInterval = 5 * time.Second

// WaitForDeployment blocks until the deployment reaches its desired replica
// count or the timeout elapses.
func WaitForDeployment(ctx context.Context, c Client, namespace, name string, timeout time.Duration) error {
	err := wait.PollUntilContextTimeout(ctx, waitPollInterval, timeout, true, func(ctx context.Context) (bool, error) {
		return c.DeploymentReady(ctx, namespace, name)
	})
	if err != nil {
		return fmt.Errorf("waiting for deployment %s/%s: %w", namespace, name, err)
	}
	return nil
}

