package prereq

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"

	"github.com/modelkube/modelkube/internal/cloud"
	"github.com/modelkube/modelkube/internal/resource"
	"github.com/modelkube/modelkube/internal/util/retry"
)

// ValidateIdentity confirms the active credentials resolve to a caller
// identity. Network blips on the identity call are retried; a credentials
// failure is fatal and surfaces immediately.
func ValidateIdentity(ctx context.Context, api cloud.IdentityAPI) (*cloud.CallerIdentity, error) {
	var identity *cloud.CallerIdentity
	err := retry.WithExponentialBackoff(ctx, func() error {
		var err error
		identity, err = api.CallerIdentity(ctx)
		if err != nil {
			if errors.Is(err, resource.ErrAuth) {
				return retry.Fatal(err)
			}
			return err
		}
		if identity == nil || identity.AccountID == "" {
			return retry.Fatal(fmt.Errorf("%w: empty caller identity", resource.ErrAuth))
		}
		return nil
	}, retry.WithMaxRetries(2), retry.WithInitialDelay(time.Second))
	if err != nil {
		return nil, err
	}
	return identity, nil
}

// isTerminal is swapped in tests.
var isTerminal = func() bool {
	return isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
}

// PromptProfile interactively asks for a credentials profile when the
// initial validation failed. On a non-interactive stdin (CI, piped input)
// it returns "" immediately so the caller fails with the original error.
func PromptProfile(ctx context.Context, current string) (string, error) {
	if !isTerminal() {
		return "", nil
	}

	profile := current
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("AWS Profile").
				Description("Credential validation failed. Enter a named profile to retry with, or leave empty to abort.").
				Placeholder("default").
				Value(&profile),
		),
	)
	if err := form.RunWithContext(ctx); err != nil {
		return "", err
	}
	if profile == current {
		return "", nil
	}
	return profile, nil
}
