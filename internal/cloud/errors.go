package cloud

import (
	"errors"
	"fmt"

	"github.com/aws/smithy-go"

	"github.com/modelkube/modelkube/internal/resource"
)

// Error codes the SDK surfaces for conditions the provisioner normalizes.
// Re-running a plan after a partial failure makes all of these routine.
var alreadyExistsCodes = map[string]bool{
	"ResourceInUseException":      true, // EKS: cluster or nodegroup name taken
	"EntityAlreadyExists":         true, // IAM: role exists
	"InvalidGroup.Duplicate":      true, // EC2: security group name taken
	"InvalidPermission.Duplicate": true, // EC2: ingress rule already authorized
}

var notFoundCodes = map[string]bool{
	"ResourceNotFoundException": true, // EKS, FSx
	"FileSystemNotFound":        true,
	"InvalidGroup.NotFound":     true,
	"NoSuchEntity":              true, // IAM
	"LoadBalancerNotFound":      true,
}

var throttleCodes = map[string]bool{
	"Throttling":               true,
	"ThrottlingException":      true,
	"RequestLimitExceeded":     true,
	"TooManyRequestsException": true,
}

// IsAlreadyExists reports whether the provider said the resource already
// exists. Callers treat this as success, never as a failure.
func IsAlreadyExists(err error) bool {
	if errors.Is(err, resource.ErrAlreadyExists) {
		return true
	}
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && alreadyExistsCodes[apiErr.ErrorCode()]
}

// IsNotFound reports whether the provider said the resource does not exist.
func IsNotFound(err error) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && notFoundCodes[apiErr.ErrorCode()]
}

// IsThrottle reports whether the call was rate limited and worth retrying.
func IsThrottle(err error) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && throttleCodes[apiErr.ErrorCode()]
}

// normalizeCreate maps a creation error into the provisioning taxonomy:
// already-exists becomes resource.ErrAlreadyExists, anything else becomes
// resource.ErrCreationFailed with the provider error preserved.
func normalizeCreate(kind resource.Kind, name string, err error) error {
	if err == nil {
		return nil
	}
	if IsAlreadyExists(err) {
		return fmt.Errorf("%s %q: %w", kind, name, resource.ErrAlreadyExists)
	}
	return fmt.Errorf("%s %q: %w: %w", kind, name, resource.ErrCreationFailed, err)
}

// normalizeDescribe maps a describe error: not-found becomes (nil result,
// nil error) at the call site, everything else wraps resource.ErrProbe so
// the poller retries it as transient.
func normalizeDescribe(kind resource.Kind, name string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("describe %s %q: %w: %w", kind, name, resource.ErrProbe, err)
}
