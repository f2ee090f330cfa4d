package storage

import "context"

// Scoped namespaces every key of a shared backend under one device
type Scoped struct {
	backend Storage
	prefix  string
}

func NewScoped(backend Storage, scope string) *Scoped {
	return &Scoped{backend: backend, prefix: ScopePrefix(scope)}
}

// ScopePrefix returns the key prefix used for a device scope
func ScopePrefix(scope string) string {
	return "device:" + scope + ":"
}

func (s *Scoped) Get(ctx context.Context, key string) ([]byte, error) {
	return s.backend.Get(ctx, s.prefix+key)
}

func (s *Scoped) Set(ctx context.Context, key string, value []byte) error {
	return s.backend.Set(ctx, s.prefix+key, value)
}

func (s *Scoped) Remove(ctx context.Context, key string) error {
	return s.backend.Remove(ctx, s.prefix+key)
}
