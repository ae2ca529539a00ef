package codec

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	spec "github.com/nihei9/urchin/spec/grammar"
)

const DefaultCacheSize = 64

// Cache memoizes decoded tables by the digest of their chunks. Decoded tables are immutable, so
// parsers built from the same bundle share one copy. A Cache is safe for concurrent use.
type Cache struct {
	tabs *lru.Cache[uint64, *spec.ParsingTables]
}

func NewCache(size int) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	c, err := lru.New[uint64, *spec.ParsingTables](size)
	if err != nil {
		return nil, err
	}
	return &Cache{
		tabs: c,
	}, nil
}

// Decode returns the cached tables of the bundle, decoding them on a miss. Errors are not cached.
func (c *Cache) Decode(b *spec.TableBundle) (*spec.ParsingTables, error) {
	if b == nil {
		return Decode(b)
	}
	key := digest(b)
	if tabs, ok := c.tabs.Get(key); ok {
		return tabs, nil
	}
	tabs, err := Decode(b)
	if err != nil {
		return nil, err
	}
	c.tabs.Add(key, tabs)
	return tabs, nil
}

func (c *Cache) Len() int {
	return c.tabs.Len()
}

func digest(b *spec.TableBundle) uint64 {
	h := xxhash.New()
	var n [binary.MaxVarintLen64]byte
	for _, chunks := range [][]string{b.Action, b.GoTo, b.Rule, b.Merge, b.Terminal} {
		h.Write(n[:binary.PutUvarint(n[:], uint64(len(chunks)))])
		for _, c := range chunks {
			h.Write(n[:binary.PutUvarint(n[:], uint64(len(c)))])
			h.WriteString(c)
		}
	}
	return h.Sum64()
}

var defaultCache *Cache

func init() {
	c, err := NewCache(DefaultCacheSize)
	if err != nil {
		panic(err)
	}
	defaultCache = c
}

// DecodeShared decodes a bundle through a process-wide cache.
func DecodeShared(b *spec.TableBundle) (*spec.ParsingTables, error) {
	return defaultCache.Decode(b)
}
