package locks

import (
	"context"
	"sync"
)

// MemoryLocker serializes holders of the same key inside one process.
type MemoryLocker struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	gate chan struct{}
	refs int
}

var _ Locker = (*MemoryLocker)(nil)

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{slots: make(map[string]*slot)}
}

func (l *MemoryLocker) Lock(ctx context.Context, key string) (Unlock, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	s := l.acquireSlot(key)

	select {
	case s.gate <- struct{}{}:
	case <-ctx.Done():
		l.releaseSlot(key, s)
		return nil, unavailable(key, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.gate
			l.releaseSlot(key, s)
		})
	}, nil
}

// Held reports how many holders or waiters reference key.
func (l *MemoryLocker) Held(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if s, ok := l.slots[key]; ok {
		return s.refs
	}
	return 0
}

func (l *MemoryLocker) acquireSlot(key string) *slot {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{gate: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	return s
}

func (l *MemoryLocker) releaseSlot(key string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}
