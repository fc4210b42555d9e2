package listing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache remembers the last criteria a user applied. Callers treat every
// error as non-fatal.
type Cache interface {
	Load(ctx context.Context, userID string) (Criteria, bool, error)
	Save(ctx context.Context, userID string, c Criteria) error
	Clear(ctx context.Context, userID string) error
}

// MemoryCache keeps criteria in process memory.
type MemoryCache struct {
	mu sync.RWMutex
	m  map[string]Criteria
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{m: make(map[string]Criteria)}
}

func (c *MemoryCache) Load(_ context.Context, userID string) (Criteria, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.m[userID]
	return v, ok, nil
}

func (c *MemoryCache) Save(_ context.Context, userID string, cr Criteria) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[userID] = cr
	return nil
}

func (c *MemoryCache) Clear(_ context.Context, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, userID)
	return nil
}

// RedisCacheTTL bounds how long an unused filter is remembered.
const RedisCacheTTL = 30 * 24 * time.Hour

// RedisCache stores criteria as JSON under jobboard:filters:<userID>.
type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisCache(rdb *redis.Client) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: RedisCacheTTL}
}

func redisFilterKey(userID string) string {
	return "jobboard:filters:" + userID
}

func (c *RedisCache) Load(ctx context.Context, userID string) (Criteria, bool, error) {
	data, err := c.rdb.Get(ctx, redisFilterKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Criteria{}, false, nil
	}
	if err != nil {
		return Criteria{}, false, fmt.Errorf("loading filter: %w", err)
	}
	var cr Criteria
	if err := json.Unmarshal(data, &cr); err != nil {
		return Criteria{}, false, fmt.Errorf("decoding filter: %w", err)
	}
	return cr, true, nil
}

func (c *RedisCache) Save(ctx context.Context, userID string, cr Criteria) error {
	data, err := json.Marshal(cr)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, redisFilterKey(userID), data, c.ttl).Err()
}

func (c *RedisCache) Clear(ctx context.Context, userID string) error {
	return c.rdb.Del(ctx, redisFilterKey(userID)).Err()
}

// FileCache stores criteria for every local user in one JSON file.
type FileCache struct {
	mu   sync.Mutex
	path string
}

// DefaultCachePath returns $XDG_CACHE_HOME/jobboard/filters.json.
func DefaultCachePath() string {
	dir := os.Getenv("XDG_CACHE_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".cache")
		} else {
			dir = "."
		}
	}
	return filepath.Join(dir, "jobboard", "filters.json")
}

func NewFileCache(path string) *FileCache {
	return &FileCache{path: path}
}

func (c *FileCache) readAll() (map[string]Criteria, error) {
	data, err := os.ReadFile(c.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]Criteria{}, nil
	}
	if err != nil {
		return nil, err
	}
	all := map[string]Criteria{}
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("parsing filter cache: %w", err)
	}
	return all, nil
}

func (c *FileCache) writeAll(all map[string]Criteria) error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0o700); err != nil {
		return fmt.Errorf("creating cache dir: %w", err)
	}
	out, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(c.path, out, 0o600)
}

func (c *FileCache) Load(_ context.Context, userID string) (Criteria, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	all, err := c.readAll()
	if err != nil {
		return Criteria{}, false, err
	}
	cr, ok := all[userID]
	return cr, ok, nil
}

func (c *FileCache) Save(_ context.Context, userID string, cr Criteria) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	all, err := c.readAll()
	if err != nil {
		// A corrupt file is replaced.
		all = map[string]Criteria{}
	}
	all[userID] = cr
	return c.writeAll(all)
}

func (c *FileCache) Clear(_ context.Context, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	all, err := c.readAll()
	if err != nil {
		return err
	}
	if _, ok := all[userID]; !ok {
		return nil
	}
	delete(all, userID)
	return c.writeAll(all)
}
