package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/ristretto"
	"golang.org/x/sync/singleflight"

	"exboard/internal/constants"
)

type memoryEntry struct {
	mu  sync.RWMutex
	rec Record
	gen atomic.Int64
}

// MemoryStore keeps sessions in a ristretto cache. Sessions are local to the
// process, so it only suits a single replica. Once MaxSessions is reached the
// cache admission policy may refuse new sessions; that surfaces as ErrCapacity.
type MemoryStore struct {
	cache *ristretto.Cache
	group singleflight.Group
	ttl   time.Duration
	cost  int64
}

type MemoryStoreConfig struct {
	MaxSessions int64
	TTL         time.Duration
}

func NewMemoryStore(cfg MemoryStoreConfig) (*MemoryStore, error) {
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = constants.DefaultMaxSessions
	}
	if cfg.TTL <= 0 {
		cfg.TTL = constants.DefaultSessionTTL
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: cfg.MaxSessions * 10,
		MaxCost:     cfg.MaxSessions,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session cache: %w", err)
	}

	return &MemoryStore{cache: cache, ttl: cfg.TTL, cost: 1}, nil
}

func (s *MemoryStore) Save(ctx context.Context, id string, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	entry, err := s.entry(id, true)
	if err != nil {
		return err
	}

	entry.mu.Lock()
	entry.rec = rec
	entry.mu.Unlock()

	// refresh the TTL
	return s.admit(id, entry)
}

func (s *MemoryStore) Load(ctx context.Context, id string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}

	entry, err := s.entry(id, false)
	if err != nil {
		return Record{}, err
	}

	entry.mu.RLock()
	defer entry.mu.RUnlock()
	return entry.rec, nil
}

func (s *MemoryStore) NextGeneration(ctx context.Context, id string) (int64, error) {
	entry, err := s.entry(id, true)
	if err != nil {
		return 0, err
	}
	return entry.gen.Add(1), nil
}

func (s *MemoryStore) CurrentGeneration(ctx context.Context, id string) (int64, error) {
	entry, err := s.entry(id, false)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return entry.gen.Load(), nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.cache.Del(id)
	s.cache.Wait()
	return nil
}

func (s *MemoryStore) Close() {
	s.cache.Close()
}

// entry looks up id, creating it once under singleflight when create is set.
func (s *MemoryStore) entry(id string, create bool) (*memoryEntry, error) {
	if v, ok := s.cache.Get(id); ok {
		return v.(*memoryEntry), nil
	}
	if !create {
		return nil, ErrNotFound
	}

	v, err, _ := s.group.Do(id, func() (interface{}, error) {
		if v, ok := s.cache.Get(id); ok {
			return v, nil
		}
		entry := &memoryEntry{}
		if err := s.admit(id, entry); err != nil {
			return nil, err
		}
		return entry, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*memoryEntry), nil
}

// admit stores entry and confirms the admission policy kept it; a set can be
// accepted into the buffer and still be dropped once processed.
func (s *MemoryStore) admit(id string, entry *memoryEntry) error {
	if s.cache.SetWithTTL(id, entry, s.cost, s.ttl) {
		s.cache.Wait()
		if v, ok := s.cache.Get(id); ok && v.(*memoryEntry) == entry {
			return nil
		}
	}
	return fmt.Errorf("session %s: %w", id, ErrCapacity)
}
