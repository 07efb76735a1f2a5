package infra

import (
	"context"
	"sync"
	"time"

	"admission-gateway/middleware/admission/domain"
)

// MemoryWindowStore é uma janela deslizante em memória, uma fila de timestamps por chave.
//
// Os registros vivem enquanto o processo viver (um por chave distinta).
type MemoryWindowStore struct {
	mu      sync.Mutex
	window  time.Duration
	entries map[domain.Key]*timestamps
}

var _ domain.WindowStore = (*MemoryWindowStore)(nil)

// timestamps é um deque simples: pop na frente avança head, e o array é
// compactado quando metade dele já foi descartada.
type timestamps struct {
	ts   []time.Time
	head int
}

func (t *timestamps) purge(cutoff time.Time) {
	for t.head < len(t.ts) && t.ts[t.head].Before(cutoff) {
		t.head++
	}
	if t.head > 0 && t.head*2 >= len(t.ts) {
		n := copy(t.ts, t.ts[t.head:])
		t.ts = t.ts[:n]
		t.head = 0
	}
}

func (t *timestamps) len() int { return len(t.ts) - t.head }

func (t *timestamps) push(now time.Time) { t.ts = append(t.ts, now) }

func NewMemoryWindowStore(window time.Duration) *MemoryWindowStore {
	return &MemoryWindowStore{
		window:  window,
		entries: make(map[domain.Key]*timestamps),
	}
}

func (s *MemoryWindowStore) Record(_ context.Context, key domain.Key, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ent := s.entry(key)
	ent.purge(now.Add(-s.window))
	ent.push(now)
	return ent.len(), nil
}

func (s *MemoryWindowStore) Count(_ context.Context, key domain.Key, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ent, ok := s.entries[key]
	if !ok {
		return 0, nil
	}
	ent.purge(now.Add(-s.window))
	return ent.len(), nil
}

func (s *MemoryWindowStore) TryRecord(_ context.Context, key domain.Key, now time.Time, limit int) (bool, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ent := s.entry(key)
	ent.purge(now.Add(-s.window))
	if ent.len() >= limit {
		return false, ent.len(), nil
	}
	ent.push(now)
	return true, ent.len(), nil
}

func (s *MemoryWindowStore) Reset(_ context.Context, key domain.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ent, ok := s.entries[key]; ok {
		ent.ts = ent.ts[:0]
		ent.head = 0
	}
	return nil
}

// entry deve ser chamado com o lock.
func (s *MemoryWindowStore) entry(key domain.Key) *timestamps {
	ent, ok := s.entries[key]
	if !ok {
		ent = &timestamps{}
		s.entries[key] = ent
	}
	return ent
}
