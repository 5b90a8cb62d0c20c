package cache

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Memory is an in-process LRU whose entries all share one lifetime fixed at
// construction. The ttl passed to Set is ignored. Counters live outside the
// LRU so they are never evicted.
type Memory struct {
	lru *expirable.LRU[string, []byte]

	mu       sync.Mutex
	counters map[string]int64
}

func NewMemory(size int, ttl time.Duration) *Memory {
	return &Memory{
		lru:      expirable.NewLRU[string, []byte](size, nil, ttl),
		counters: map[string]int64{},
	}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	n, ok := m.counters[key]
	m.mu.Unlock()
	if ok {
		return []byte(strconv.FormatInt(n, 10)), nil
	}

	v, ok := m.lru.Get(key)
	if !ok {
		return nil, ErrMiss
	}
	return v, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.lru.Add(key, value)
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.counters, key)
	m.mu.Unlock()
	m.lru.Remove(key)
	return nil
}

func (m *Memory) Incr(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[key]++
	return m.counters[key], nil
}

func (m *Memory) DeletePrefix(_ context.Context, prefix string) error {
	for _, k := range m.lru.Keys() {
		if strings.HasPrefix(k, prefix) {
			m.lru.Remove(k)
		}
	}
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	clear(m.counters)
	m.mu.Unlock()
	m.lru.Purge()
	return nil
}
