package cache

import (
	"context"
	"time"

	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/store"
	go_cache "github.com/eko/gocache/store/go_cache/v4"
	gocache "github.com/patrickmn/go-cache"
)

type Manager[T any] struct {
	cache *cache.Cache[T]
	ttl   time.Duration
}

// New returns an in-process cache whose entries live for ttl unless set otherwise.
func New[T any](ttl time.Duration) *Manager[T] {
	client := gocache.New(ttl, 2*ttl)
	return &Manager[T]{
		cache: cache.New[T](go_cache.NewGoCache(client)),
		ttl:   ttl,
	}
}

func (m *Manager[T]) Set(key string, value T) error {
	return m.SetWithExpiration(key, value, m.ttl)
}

func (m *Manager[T]) SetWithExpiration(key string, value T, expir time.Duration) error {
	timeout, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()
	return m.cache.Set(timeout, key, value, store.WithExpiration(expir))
}

// Get reports whether key was present.
func (m *Manager[T]) Get(key string) (value T, ok bool) {
	timeout, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()
	value, err := m.cache.Get(timeout, key)
	if err != nil {
		var zero T
		return zero, false
	}
	return value, true
}

func (m *Manager[T]) Delete(key string) error {
	timeout, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()
	return m.cache.Delete(timeout, key)
}
