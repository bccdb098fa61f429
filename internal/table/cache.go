package table

import (
	"fmt"
	"strings"

	"github.com/patrickmn/go-cache"
)

// Cache memoizes loaded tables keyed by path and options. Entries never
// expire; they live as long as the process.
type Cache struct {
	c    *cache.Cache
	load func(string, Options) (*Table, error)
}

// NewCache returns an empty memo backed by Load.
func NewCache() *Cache {
	return &Cache{c: cache.New(cache.NoExpiration, 0), load: Load}
}

// Get returns the memoized table for path, loading it on first use.
// hit reports whether the table came from the memo. Tables are immutable,
// so callers may share the returned value.
func (c *Cache) Get(path string, opt Options) (t *Table, hit bool, err error) {
	key := cacheKey(path, opt)
	if v, ok := c.c.Get(key); ok {
		return v.(*Table), true, nil
	}
	t, err = c.load(path, opt)
	if err != nil {
		return nil, false, err
	}
	c.c.Set(key, t, cache.NoExpiration)
	return t, false, nil
}

// Forget drops every memoized table.
func (c *Cache) Forget() { c.c.Flush() }

// Len reports the number of memoized tables.
func (c *Cache) Len() int { return c.c.ItemCount() }

func cacheKey(path string, opt Options) string {
	return fmt.Sprintf("%s|%s|%d|%d|%q|%q|%s", path, opt.SheetName, opt.SheetIndex, opt.MaxRows,
		opt.Delimiter, opt.DecimalSeparator, strings.Join(opt.Categorical, ","))
}
