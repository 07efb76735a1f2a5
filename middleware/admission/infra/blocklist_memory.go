package infra

import (
	"context"
	"sync"
	"time"

	"admission-gateway/middleware/admission/domain"
)

// MemoryBlockList guarda bloqueios em memória. Não faz expiração por timer.
type MemoryBlockList struct {
	mu      sync.Mutex
	blocked map[domain.Key]time.Time
}

var _ domain.BlockList = (*MemoryBlockList)(nil)

func NewMemoryBlockList() *MemoryBlockList {
	return &MemoryBlockList{blocked: make(map[domain.Key]time.Time)}
}

func (b *MemoryBlockList) BlockedUntil(_ context.Context, key domain.Key) (time.Time, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	until, ok := b.blocked[key]
	return until, ok, nil
}

func (b *MemoryBlockList) Block(_ context.Context, key domain.Key, until time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.blocked[key] = until
	return nil
}

func (b *MemoryBlockList) Unblock(_ context.Context, key domain.Key) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.blocked, key)
	return nil
}
