// Package secrets resolves credential references found in the configuration.
// A value may be a literal, "env:NAME" to read an environment variable, or
// "file:PATH" to read a mounted secret file (Docker or Kubernetes secrets).
package secrets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

var (
	// ErrSecretNotFound is returned when a referenced secret does not exist.
	ErrSecretNotFound = errors.New("secret not found")

	// ErrEmptyKey is returned for references such as "env:" with no key.
	ErrEmptyKey = errors.New("secret reference has an empty key")
)

// Secret is a resolved value and where it came from.
type Secret struct {
	Value  string
	Source string
}

// Provider looks up secrets of one reference scheme.
type Provider interface {
	// Name is the scheme the provider answers, e.g. "env".
	Name() string

	Get(ctx context.Context, key string) (*Secret, error)
}

// Config holds configuration for the secrets manager.
type Config struct {
	// EnvPrefix is tried before the bare variable name.
	EnvPrefix string `yaml:"env_prefix"`

	// FileDir resolves relative file references.
	FileDir string `yaml:"file_dir"`

	// CacheTTL bounds how long a resolved value is reused. Zero disables caching.
	CacheTTL time.Duration `yaml:"cache_ttl"`

	Logger *slog.Logger `yaml:"-" validate:"-"`
}

// DefaultConfig returns default secrets manager configuration.
func DefaultConfig() Config {
	return Config{
		EnvPrefix: "NIDS_",
		FileDir:   "/run/secrets",
		CacheTTL:  5 * time.Minute,
	}
}

// Manager resolves references against its providers and caches the results.
type Manager struct {
	providers map[string]Provider
	cacheTTL  time.Duration
	logger    *slog.Logger

	mu    sync.RWMutex
	cache map[string]cachedSecret
}

type cachedSecret struct {
	secret    *Secret
	fetchedAt time.Time
}

// NewManager creates a manager with the environment and file providers.
func NewManager(cfg Config) *Manager {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	m := &Manager{
		providers: make(map[string]Provider),
		cacheTTL:  cfg.CacheTTL,
		logger:    cfg.Logger,
		cache:     make(map[string]cachedSecret),
	}
	m.Register(NewEnvProvider(cfg.EnvPrefix))
	m.Register(NewFileProvider(cfg.FileDir))
	return m
}

// Register adds or replaces the provider for p.Name().
func (m *Manager) Register(p Provider) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.providers[p.Name()] = p
}

// ParseSecretRef splits a reference into scheme and key. ok is false for
// literals, including values that merely contain a colon.
func ParseSecretRef(ref string) (scheme, key string, ok bool) {
	scheme, key, found := strings.Cut(ref, ":")
	if !found {
		return "", ref, false
	}
	switch scheme {
	case "env", "file":
		return scheme, key, true
	default:
		return "", ref, false
	}
}

// IsReference reports whether ref names a provider rather than a literal.
func IsReference(ref string) bool {
	_, _, ok := ParseSecretRef(ref)
	return ok
}

// ResolveSecret returns the value a reference points at. Literals are
// returned unchanged.
func (m *Manager) ResolveSecret(ctx context.Context, ref string) (string, error) {
	scheme, key, ok := ParseSecretRef(ref)
	if !ok {
		return ref, nil
	}
	if key == "" {
		return "", ErrEmptyKey
	}

	if s := m.getFromCache(ref); s != nil {
		return s.Value, nil
	}

	m.mu.RLock()
	p, found := m.providers[scheme]
	m.mu.RUnlock()
	if !found {
		return "", fmt.Errorf("no %s secret provider registered", scheme)
	}

	s, err := p.Get(ctx, key)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s secret %q: %w", scheme, key, err)
	}

	m.cacheSecret(ref, s)
	m.logger.Debug("secret resolved", "provider", p.Name(), "source", s.Source)
	return s.Value, nil
}

// ResolveAll rewrites every target holding a reference in place. Literals
// and empty values are left alone.
func (m *Manager) ResolveAll(ctx context.Context, targets ...*string) error {
	for _, t := range targets {
		if t == nil || !IsReference(*t) {
			continue
		}
		v, err := m.ResolveSecret(ctx, *t)
		if err != nil {
			return err
		}
		*t = v
	}
	return nil
}

func (m *Manager) getFromCache(ref string) *Secret {
	if m.cacheTTL <= 0 {
		return nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	cached, ok := m.cache[ref]
	if !ok || time.Since(cached.fetchedAt) > m.cacheTTL {
		return nil
	}
	return cached.secret
}

func (m *Manager) cacheSecret(ref string, s *Secret) {
	if m.cacheTTL <= 0 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache[ref] = cachedSecret{secret: s, fetchedAt: time.Now()}
}
