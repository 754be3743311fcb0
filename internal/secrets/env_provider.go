package secrets

import (
	"context"
	"os"
	"strings"
)

// EnvProvider retrieves secrets from environment variables.
type EnvProvider struct {
	prefix string
}

// NewEnvProvider creates an environment provider. prefix may be empty.
func NewEnvProvider(prefix string) *EnvProvider {
	return &EnvProvider{prefix: prefix}
}

func (e *EnvProvider) Name() string {
	return "env"
}

// Get tries the prefixed, normalized name first and then the key as given.
func (e *EnvProvider) Get(ctx context.Context, key string) (*Secret, error) {
	candidates := []string{e.normalizeEnvKey(key), key}
	for _, name := range candidates {
		if value, ok := os.LookupEnv(name); ok && value != "" {
			return &Secret{Value: value, Source: "env:" + name}, nil
		}
	}
	return nil, ErrSecretNotFound
}

// normalizeEnvKey converts a key to environment variable form:
//   - "redis.password" -> "NIDS_REDIS_PASSWORD"
//   - "s3-secret" -> "NIDS_S3_SECRET"
//   - "NIDS_S3_SECRET" -> "NIDS_S3_SECRET"
func (e *EnvProvider) normalizeEnvKey(key string) string {
	normalized := strings.ToUpper(key)
	normalized = strings.ReplaceAll(normalized, ".", "_")
	normalized = strings.ReplaceAll(normalized, "-", "_")

	if e.prefix != "" && !strings.HasPrefix(normalized, e.prefix) {
		normalized = e.prefix + normalized
	}
	return normalized
}
