package config

import (
	"context"
	"os"
)

// SecretProvider turns secret references into plaintext. In AWS the
// references are SSM parameter paths.
type SecretProvider interface {
	// GetParametersBatch resolves keys in one call. Keys it cannot resolve
	// are left out of the result.
	GetParametersBatch(ctx context.Context, keys []string) (map[string]string, error)
}

// NewSecretProvider selects the backend named by SECRET_SOURCE: "env" reads
// references from the process environment, anything else uses SSM in
// region.
func NewSecretProvider(region string) SecretProvider {
	if os.Getenv("SECRET_SOURCE") == "env" {
		return NewEnvVarProvider()
	}
	return NewSSMProvider(region)
}
