// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package flashalgo

import (
	"sync"

	"golang.org/x/sync/singleflight"
)

// Key identifies an image: the identity of the archive and the entry path.
type Key struct {
	Archive string
	Path    string
}

func (k Key) String() string {
	return k.Archive + ":" + k.Path
}

type result struct {
	im  *Image
	err error
}

// Cache memoizes parsed images. Every key is loaded at most once, concurrent
// callers of the same key wait for the first one. Failures are memoized too.
type Cache struct {
	mu    sync.RWMutex
	m     map[Key]*result
	group singleflight.Group
}

func NewCache() *Cache {
	return &Cache{m: make(map[Key]*result)}
}

func (c *Cache) lookup(key Key) (*result, bool) {
	c.mu.RLock()
	r, ok := c.m[key]
	c.mu.RUnlock()
	return r, ok
}

// Image returns the image for key, calling load if it is not cached yet.
func (c *Cache) Image(key Key, load func() (*Image, error)) (*Image, error) {
	if r, ok := c.lookup(key); ok {
		return r.im, r.err
	}
	v, _, _ := c.group.Do(key.String(), func() (any, error) {
		if r, ok := c.lookup(key); ok {
			return r, nil
		}
		im, err := load()
		r := &result{im, err}
		c.mu.Lock()
		c.m[key] = r
		c.mu.Unlock()
		return r, nil
	})
	r := v.(*result)
	return r.im, r.err
}

// Len returns the number of cached keys.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}
