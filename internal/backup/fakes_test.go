package backup

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
)

// memStore is an in-memory Store that records every call.
type memStore struct {
	mu      sync.Mutex
	objects map[string]bool

	listErr   map[string]error // by prefix
	deleteErr error

	listCalls   int
	deleteCalls []string
}

func newMemStore(keys ...string) *memStore {
	s := &memStore{objects: map[string]bool{}, listErr: map[string]error{}}
	for _, k := range keys {
		s.objects[k] = true
	}
	return s
}

func (s *memStore) List(_ context.Context, prefix string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls++
	if err := s.listErr[prefix]; err != nil {
		return nil, err
	}
	var keys []string
	for k := range s.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	// Scramble order; callers must sort.
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))
	return keys, nil
}

func (s *memStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteCalls = append(s.deleteCalls, key)
	if s.deleteErr != nil {
		return s.deleteErr
	}
	if !s.objects[key] {
		return &StoreError{Op: "Delete", Key: key, Err: ErrNotFound}
	}
	delete(s.objects, key)
	return nil
}

func (s *memStore) keys(prefix string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var keys []string
	for k := range s.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// storeProducer writes produced keys straight into a memStore.
type storeProducer struct {
	store    *memStore
	err      error
	calls    []string
	released int
}

func (p *storeProducer) Produce(_ context.Context, key string) error {
	p.calls = append(p.calls, key)
	if p.err != nil {
		return &ProductionError{Key: key, Reason: "dump database", Err: p.err}
	}
	p.store.mu.Lock()
	p.store.objects[key] = true
	p.store.mu.Unlock()
	return nil
}

func (p *storeProducer) Release() { p.released++ }

var errBoom = errors.New("boom")
