package cache

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/mohmed402/wasel/internal/cart"
)

// Results holds recent successful extractions keyed by cart URL.
type Results struct {
	lru *expirable.LRU[string, *cart.Result]
}

func NewResults(size int, ttl time.Duration) *Results {
	if size < 1 {
		size = 1
	}
	return &Results{lru: expirable.NewLRU[string, *cart.Result](size, nil, ttl)}
}

func (r *Results) Get(key string) (*cart.Result, bool) {
	return r.lru.Get(key)
}

func (r *Results) Add(key string, result *cart.Result) {
	r.lru.Add(key, result)
}

func (r *Results) Len() int {
	return r.lru.Len()
}
