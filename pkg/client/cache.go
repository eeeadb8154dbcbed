package client

import (
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	defaultCacheSize = 256
	defaultCacheTTL  = 30 * time.Second
)

// Cache holds decoded read responses keyed by resource path
// ("threads?...", "threads/<id>", "notifications?..."). Realtime events
// invalidate by key prefix.
type Cache struct {
	lru *expirable.LRU[string, interface{}]
}

// NewCache creates a cache of size entries living ttl each
func NewCache(size int, ttl time.Duration) *Cache {
	if size <= 0 {
		size = defaultCacheSize
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Cache{lru: expirable.NewLRU[string, interface{}](size, nil, ttl)}
}

func (c *Cache) Get(key string) (interface{}, bool) {
	return c.lru.Get(key)
}

func (c *Cache) Set(key string, value interface{}) {
	c.lru.Add(key, value)
}

// Invalidate drops every key equal to prefix or starting with prefix
// followed by '/' or '?'. It returns the number of dropped entries.
func (c *Cache) Invalidate(prefix string) int {
	dropped := 0
	for _, key := range c.lru.Keys() {
		if key == prefix || strings.HasPrefix(key, prefix+"/") || strings.HasPrefix(key, prefix+"?") {
			if c.lru.Remove(key) {
				dropped++
			}
		}
	}
	return dropped
}

func (c *Cache) Purge() {
	c.lru.Purge()
}

func (c *Cache) Len() int {
	return c.lru.Len()
}

// cached serves key from c when present, otherwise calls load and stores
// the result. A nil cache always loads.
func cached[T any](c *Cache, key string, load func() (*T, error)) (*T, error) {
	if c != nil {
		if v, ok := c.Get(key); ok {
			if typed, ok := v.(*T); ok {
				return typed, nil
			}
		}
	}
	v, err := load()
	if err != nil {
		return nil, err
	}
	if c != nil {
		c.Set(key, v)
	}
	return v, nil
}
