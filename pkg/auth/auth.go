// Package auth guards the developer endpoints with API keys.
//
// Keys are kept only as bcrypt hashes. A manager with no keys is open, which
// is how the service runs locally.
package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidKey = errors.New("invalid API key")
	ErrKeyExpired = errors.New("API key expired")
)

// KeyInfo describes a registered key. The key itself is never stored.
type KeyInfo struct {
	Name      string    `json:"name" yaml:"name"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	ExpiresAt time.Time `json:"expires_at,omitempty" yaml:"expires_at,omitempty"` // zero: never
	hash      []byte
}

func (k *KeyInfo) expired(now time.Time) bool {
	return !k.ExpiresAt.IsZero() && now.After(k.ExpiresAt)
}

// APIKeyManager validates API keys against bcrypt hashes
type APIKeyManager struct {
	keys map[string]*KeyInfo // name -> info
	mu   sync.RWMutex
	cost int
	now  func() time.Time
}

// NewAPIKeyManager creates an empty, open manager
func NewAPIKeyManager() *APIKeyManager {
	return &APIKeyManager{
		keys: make(map[string]*KeyInfo),
		cost: bcrypt.DefaultCost,
		now:  time.Now,
	}
}

// AddKey registers key under name. A zero ttl never expires.
func (m *APIKeyManager) AddKey(name, key string, ttl time.Duration) error {
	if name == "" || key == "" {
		return errors.New("API key name and value are required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(key), m.cost)
	if err != nil {
		return fmt.Errorf("failed to hash API key: %w", err)
	}

	info := &KeyInfo{Name: name, CreatedAt: m.now(), hash: hash}
	if ttl > 0 {
		info.ExpiresAt = info.CreatedAt.Add(ttl)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[name] = info
	return nil
}

// GenerateAPIKey creates a random key, registers it and returns it
func (m *APIKeyManager) GenerateAPIKey(name string, ttl time.Duration) (string, error) {
	keyBytes := make([]byte, 32)
	if _, err := rand.Read(keyBytes); err != nil {
		return "", fmt.Errorf("failed to generate API key: %w", err)
	}
	key := base64.RawURLEncoding.EncodeToString(keyBytes)
	if err := m.AddKey(name, key, ttl); err != nil {
		return "", err
	}
	return key, nil
}

// Validate returns the name of the key matching key
func (m *APIKeyManager) Validate(key string) (string, error) {
	if key == "" {
		return "", ErrInvalidKey
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	now := m.now()
	for name, info := range m.keys {
		if bcrypt.CompareHashAndPassword(info.hash, []byte(key)) != nil {
			continue
		}
		if info.expired(now) {
			return "", ErrKeyExpired
		}
		return name, nil
	}
	return "", ErrInvalidKey
}

// Revoke removes the key registered under name
func (m *APIKeyManager) Revoke(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, name)
}

// CleanupExpired drops expired keys and returns how many were removed
func (m *APIKeyManager) CleanupExpired() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for name, info := range m.keys {
		if info.expired(now) {
			delete(m.keys, name)
			removed++
		}
	}
	return removed
}

// Enabled reports whether any key is registered
func (m *APIKeyManager) Enabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.keys) > 0
}

// List returns the registered keys sorted by name
func (m *APIKeyManager) List() []KeyInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]KeyInfo, 0, len(m.keys))
	for _, info := range m.keys {
		out = append(out, KeyInfo{Name: info.Name, CreatedAt: info.CreatedAt, ExpiresAt: info.ExpiresAt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// KeyFromRequest reads "Authorization: Bearer <key>" or X-API-Key
func KeyFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if key, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(key)
		}
	}
	return r.Header.Get("X-API-Key")
}

// Middleware rejects requests without a valid key while any key is
// registered.
func (m *APIKeyManager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.Enabled() {
			next.ServeHTTP(w, r)
			return
		}
		if _, err := m.Validate(KeyFromRequest(r)); err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="landing-dev"`)
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
