package secrets

import "context"

// Provider is a read-only secrets backend. Secrets are flat key/value maps.
type Provider interface {
	// GetSecret retrieves a secret by name.
	GetSecret(ctx context.Context, name string) (map[string]string, error)
}
