package cache

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"
)

// InMemoryCache is a Cache implementation backed by process memory. It
// exists for tests that would otherwise need a live Redis.
type InMemoryCache struct {
	mu      sync.Mutex
	values  map[string]entry
	hashes  map[string]map[string][]byte
	zsets   map[string]map[string]float64
}

type entry struct {
	data    []byte
	expires time.Time // zero means no expiry
}

func NewInMemoryCache() *InMemoryCache {
	return &InMemoryCache{
		values: make(map[string]entry),
		hashes: make(map[string]map[string][]byte),
		zsets:  make(map[string]map[string]float64),
	}
}

func (c *InMemoryCache) Get(ctx context.Context, key string, dst interface{}) (bool, error) {
	c.mu.Lock()
	e, ok := c.values[key]
	if ok && !e.expires.IsZero() && time.Now().After(e.expires) {
		delete(c.values, key)
		ok = false
	}
	c.mu.Unlock()
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(e.data, dst)
}

func (c *InMemoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return err
	}
	var expires time.Time
	if ttl > 0 {
		expires = time.Now().Add(ttl)
	}
	c.mu.Lock()
	c.values[key] = entry{data: encoded, expires: expires}
	c.mu.Unlock()
	return nil
}

func (c *InMemoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	delete(c.values, key)
	c.mu.Unlock()
	return nil
}

func (c *InMemoryCache) Exists(ctx context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.values[key]
	return ok, nil
}

func (c *InMemoryCache) Keys(ctx context.Context, pattern string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for k := range c.values {
		if globMatch(pattern, k) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (c *InMemoryCache) HashSet(ctx context.Context, name, field string, value interface{}) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	if c.hashes[name] == nil {
		c.hashes[name] = make(map[string][]byte)
	}
	c.hashes[name][field] = encoded
	c.mu.Unlock()
	return nil
}

func (c *InMemoryCache) HashGet(ctx context.Context, name, field string, dst interface{}) (bool, error) {
	c.mu.Lock()
	data, ok := c.hashes[name][field]
	c.mu.Unlock()
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(data, dst)
}

func (c *InMemoryCache) HashDelete(ctx context.Context, name, field string) error {
	c.mu.Lock()
	delete(c.hashes[name], field)
	c.mu.Unlock()
	return nil
}

func (c *InMemoryCache) HashKeys(ctx context.Context, name string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for f := range c.hashes[name] {
		out = append(out, f)
	}
	sort.Strings(out)
	return out, nil
}

func (c *InMemoryCache) SortedSetAdd(ctx context.Context, name string, score float64, member interface{}) error {
	encoded, err := json.Marshal(member)
	if err != nil {
		return err
	}
	c.mu.Lock()
	if c.zsets[name] == nil {
		c.zsets[name] = make(map[string]float64)
	}
	c.zsets[name][string(encoded)] = score
	c.mu.Unlock()
	return nil
}

func (c *InMemoryCache) SortedSetRange(ctx context.Context, name string, minScore, maxScore float64) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	type scored struct {
		member string
		score  float64
	}
	var members []scored
	for m, s := range c.zsets[name] {
		if s >= minScore && s <= maxScore {
			members = append(members, scored{m, s})
		}
	}
	sort.Slice(members, func(i, j int) bool { return members[i].score < members[j].score })

	out := make([]string, len(members))
	for i, m := range members {
		out[i] = m.member
	}
	return out, nil
}

// globMatch supports the subset of Redis KEYS glob syntax this codebase
// actually uses: '*' as a wildcard, everything else literal.
func globMatch(pattern, s string) bool {
	parts := strings.Split(pattern, "*")
	if len(parts) == 1 {
		return pattern == s
	}
	if !strings.HasPrefix(s, parts[0]) {
		return false
	}
	s = s[len(parts[0]):]
	for i := 1; i < len(parts)-1; i++ {
		idx := strings.Index(s, parts[i])
		if idx < 0 {
			return false
		}
		s = s[idx+len(parts[i]):]
	}
	return strings.HasSuffix(s, parts[len(parts)-1])
}
