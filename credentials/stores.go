package credentials

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
)

// Compile-time interface compliance checks
var (
	_ Store = (*Env)(nil)
	_ Store = (*Properties)(nil)
	_ Store = (*Map)(nil)
	_ Store = (*Chain)(nil)
)

// Env resolves aliases from environment variables. The alias "release_store"
// with prefix "BUILDPLAN_SECRET_" reads BUILDPLAN_SECRET_RELEASE_STORE.
type Env struct {
	prefix string
	lookup func(string) (string, bool)
}

// NewEnv creates an environment-backed store.
func NewEnv(prefix string) *Env {
	return &Env{prefix: prefix, lookup: os.LookupEnv}
}

// Name implements Store.
func (e *Env) Name() string { return "env" }

// Variable returns the environment variable consulted for alias.
func (e *Env) Variable(alias string) string {
	var b strings.Builder
	b.WriteString(e.prefix)
	for _, r := range strings.ToUpper(alias) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

// LookupSecret implements Store.
func (e *Env) LookupSecret(ctx context.Context, alias string) (SecretHandle, error) {
	if err := ctx.Err(); err != nil {
		return SecretHandle{}, err
	}
	if v, ok := e.lookup(e.Variable(alias)); !ok || v == "" {
		return SecretHandle{}, notFound(e.Name(), alias)
	}
	return NewSecretHandle(e.Name(), alias), nil
}

// Properties resolves aliases from a key=value file such as
// keystore.properties. Lines starting with # are comments.
type Properties struct {
	path   string
	values map[string]string
}

// LoadProperties reads a properties file.
func LoadProperties(path string) (*Properties, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read properties: %w", err)
	}
	values, err := parseProperties(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &Properties{path: path, values: values}, nil
}

func parseProperties(data []byte) (map[string]string, error) {
	values := make(map[string]string)
	scanner := bufio.NewScanner(bytes.NewReader(data))
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") || strings.HasPrefix(text, "!") {
			continue
		}
		k, v, ok := strings.Cut(text, "=")
		if !ok {
			return nil, fmt.Errorf("line %d: missing '='", line)
		}
		k = strings.TrimSpace(k)
		if k == "" {
			return nil, fmt.Errorf("line %d: empty key", line)
		}
		values[k] = strings.TrimSpace(v)
	}
	return values, scanner.Err()
}

// Name implements Store.
func (p *Properties) Name() string { return "properties" }

// Path returns the file the store was loaded from.
func (p *Properties) Path() string { return p.path }

// LookupSecret implements Store.
func (p *Properties) LookupSecret(ctx context.Context, alias string) (SecretHandle, error) {
	if err := ctx.Err(); err != nil {
		return SecretHandle{}, err
	}
	if v := p.values[alias]; v == "" {
		return SecretHandle{}, notFound(p.Name(), alias)
	}
	return NewSecretHandle(p.Name(), alias), nil
}

// Map is a thread-safe in-memory store, mostly for tests and embedding.
type Map struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMap creates an in-memory store seeded with values.
func NewMap(values map[string]string) *Map {
	m := &Map{values: make(map[string]string, len(values))}
	for k, v := range values {
		m.values[k] = v
	}
	return m
}

// Name implements Store.
func (m *Map) Name() string { return "memory" }

// Set stores a secret.
func (m *Map) Set(alias, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[alias] = value
}

// LookupSecret implements Store.
func (m *Map) LookupSecret(ctx context.Context, alias string) (SecretHandle, error) {
	if err := ctx.Err(); err != nil {
		return SecretHandle{}, err
	}
	m.mu.RLock()
	v := m.values[alias]
	m.mu.RUnlock()
	if v == "" {
		return SecretHandle{}, notFound(m.Name(), alias)
	}
	return NewSecretHandle(m.Name(), alias), nil
}

// Chain consults stores in order; the first store that knows the alias wins.
// Errors other than ErrNotFound stop the lookup.
type Chain struct {
	stores []Store
}

// NewChain creates a chained store.
func NewChain(stores ...Store) *Chain {
	return &Chain{stores: stores}
}

// Name implements Store.
func (c *Chain) Name() string { return "chain" }

// LookupSecret implements Store.
func (c *Chain) LookupSecret(ctx context.Context, alias string) (SecretHandle, error) {
	for _, s := range c.stores {
		h, err := s.LookupSecret(ctx, alias)
		if err == nil {
			return h, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return SecretHandle{}, err
		}
	}
	return SecretHandle{}, notFound(c.Name(), alias)
}
