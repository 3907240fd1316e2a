package receipt

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// ErrNoCredential is returned by Select when neither the user nor the server
// has a key configured.
var ErrNoCredential = errors.New("no extraction credential available")

// Keyring keeps extraction API keys in memory. A user either supplies a key
// explicitly or, on selection, is bound to the server default.
type Keyring struct {
	mu         sync.RWMutex
	defaultKey string
	keys       map[string]string
}

func NewKeyring(defaultKey string) *Keyring {
	return &Keyring{
		defaultKey: strings.TrimSpace(defaultKey),
		keys:       make(map[string]string),
	}
}

// Set stores an explicit key for userID.
func (k *Keyring) Set(userID, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return ErrNoCredential
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	k.keys[userID] = key
	return nil
}

func (k *Keyring) Clear(userID string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.keys, userID)
}

// Key returns the key bound to userID.
func (k *Keyring) Key(userID string) (string, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	key, ok := k.keys[userID]
	return key, ok && key != ""
}

// Select binds the server default to users without a key of their own.
func (k *Keyring) Select(_ context.Context, userID string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.keys[userID] != "" {
		return nil
	}
	if k.defaultKey == "" {
		return ErrNoCredential
	}
	k.keys[userID] = k.defaultKey
	return nil
}
