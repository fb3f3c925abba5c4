package cache

// RedisStore exports redisStore for testing.
type RedisStore = redisStore

// NewRedisCacheWithStore builds a RedisCache over a fake store.
func NewRedisCacheWithStore(s RedisStore) *RedisCache {
	return &RedisCache{rdb: s}
}
