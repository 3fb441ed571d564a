package secrets

import "context"

// Provider resolves managed secrets. The service uses it once at boot to
// overlay credentials (database, redis, broker) onto the env-derived config.
type Provider interface {
	// GetSecret retrieves a secret by name and returns its key-value map.
	GetSecret(ctx context.Context, key string) (map[string]string, error)
}
