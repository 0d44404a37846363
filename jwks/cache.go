package jwks

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// ErrNotPublished is returned by lookups made before discovery published a key set
var ErrNotPublished = errors.New("key set not published")

// Cache holds the identity provider's key set for the lifetime of the process.
// It is written exactly once by Publish and read concurrently afterwards.
type Cache struct {
	set atomic.Pointer[KeySet]
}

// NewCache returns an empty cache. Construct one per process (or per test).
func NewCache() *Cache {
	return &Cache{}
}

// Publish stores the discovered key set. Publishing twice, or publishing nil,
// is a programming error and panics.
func (c *Cache) Publish(set *KeySet) {
	if set == nil {
		panic("jwks: publish of nil key set")
	}
	if !c.set.CompareAndSwap(nil, set) {
		panic("jwks: key set already published")
	}
}

// Published reports whether Publish has completed
func (c *Cache) Published() bool {
	return c.set.Load() != nil
}

// FindByKeyID looks up a key in the published set
func (c *Cache) FindByKeyID(kid string) (Key, error) {
	set := c.set.Load()
	if set == nil {
		return Key{}, fmt.Errorf("%w: lookup of %s", ErrNotPublished, kid)
	}
	return set.FindByKeyID(kid)
}
