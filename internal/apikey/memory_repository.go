package apikey

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/congo-pay/paywallet/internal/domain"
)

type memoryRepository struct {
	mu   sync.RWMutex
	keys map[string]domain.APIKey
}

// NewMemoryRepository builds an in-memory key store for testing.
func NewMemoryRepository() Repository {
	return &memoryRepository{keys: make(map[string]domain.APIKey)}
}

func (r *memoryRepository) Insert(_ context.Context, key domain.APIKey, maxActive int, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if maxActive > 0 {
		active := 0
		for _, k := range r.keys {
			if k.UserID == key.UserID && k.Active(now) {
				active++
			}
		}
		if active >= maxActive {
			return domain.ErrAPIKeyLimitReached
		}
	}
	r.keys[key.ID] = key
	return nil
}

func (r *memoryRepository) FindByID(_ context.Context, id string) (domain.APIKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	k, ok := r.keys[id]
	if !ok {
		return domain.APIKey{}, domain.ErrAPIKeyNotFound
	}
	return k, nil
}

func (r *memoryRepository) FindByFingerprint(_ context.Context, fingerprint string) (domain.APIKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, k := range r.keys {
		if k.Fingerprint == fingerprint {
			return k, nil
		}
	}
	return domain.APIKey{}, domain.ErrAPIKeyNotFound
}

func (r *memoryRepository) ListByUser(_ context.Context, userID string) ([]domain.APIKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.APIKey
	for _, k := range r.keys {
		if k.UserID == userID {
			out = append(out, k)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *memoryRepository) Revoke(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k, ok := r.keys[id]
	if !ok {
		return domain.ErrAPIKeyNotFound
	}
	k.Revoked = true
	r.keys[id] = k
	return nil
}
