package config

import (
	"context"
	"os"
	"path"
	"strings"
)

// EnvVarProvider resolves references from the environment, for containers
// that receive secrets as variables instead of through SSM. A reference is
// tried verbatim first, then by its last path segment in upper snake case,
// so "/greenquote/staging/stripe-secret-key" also matches
// STRIPE_SECRET_KEY.
type EnvVarProvider struct{}

func NewEnvVarProvider() *EnvVarProvider { return &EnvVarProvider{} }

func (p *EnvVarProvider) GetParametersBatch(_ context.Context, keys []string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	for _, key := range keys {
		if v, ok := os.LookupEnv(key); ok {
			out[key] = v
			continue
		}
		if v, ok := os.LookupEnv(envNameForPath(key)); ok && strings.Contains(key, "/") {
			out[key] = v
		}
	}
	return out, nil
}

func envNameForPath(ref string) string {
	name := strings.ToUpper(path.Base(ref))
	return strings.NewReplacer("-", "_", ".", "_").Replace(name)
}
