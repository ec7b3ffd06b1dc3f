// Package capability holds the error kind shared by every vendor adapter
// constructor.
package capability

import (
	"errors"
	"fmt"
)

// ErrUnsupportedProviderConfig is returned at construction time when a
// provider is unknown or is missing a credential it requires.
var ErrUnsupportedProviderConfig = errors.New("unsupported provider config")

// Unsupported builds an ErrUnsupportedProviderConfig for capability kind and
// provider with a human readable reason.
func Unsupported(kind, provider, reason string) error {
	if provider == "" {
		provider = "<empty>"
	}
	return fmt.Errorf("%s provider %q: %s: %w", kind, provider, reason, ErrUnsupportedProviderConfig)
}
