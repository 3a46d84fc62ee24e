package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gomodule/redigo/redis"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	log "github.com/sirupsen/logrus"
)

// Store is a byte cache with expiry.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
}

// Cached answers repeated queries from a Store. A failing store never
// fails a query: it is logged and the wrapped provider is asked instead.
type Cached struct {
	Provider
	store  Store
	prefix string
	ttl    time.Duration
}

func NewCached(p Provider, store Store, prefix string, ttl time.Duration) *Cached {
	return &Cached{Provider: p, store: store, prefix: prefix, ttl: ttl}
}

func (c *Cached) key(q Query) string {
	b := q.BBox
	return fmt.Sprintf("%s:%.7f,%.7f,%.7f,%.7f", c.prefix, b.Min[0], b.Min[1], b.Max[0], b.Max[1])
}

func (c *Cached) LoadData(ctx context.Context, q Query) (FeatureSet, error) {
	key := c.key(q)
	data, ok, err := c.store.Get(ctx, key)
	if err != nil {
		log.Warnf("feature cache get %s: %v", key, err)
	}
	if ok {
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err == nil {
			return Collection{FC: fc}, nil
		}
		log.Warnf("feature cache entry %s: %v", key, err)
	}

	fs, err := c.Provider.LoadData(ctx, q)
	if err != nil {
		return nil, err
	}
	fc := geojson.NewFeatureCollection()
	for _, f := range fs.All() {
		fc.Append(f)
	}
	data, err = fc.MarshalJSON()
	if err != nil {
		return fs, nil
	}
	if err := c.store.Set(ctx, key, data, c.ttl); err != nil {
		log.Warnf("feature cache set %s: %v", key, err)
	}
	return fs, nil
}

func (c *Cached) Geometry(f *geojson.Feature) orb.Geometry {
	return c.Provider.Geometry(f)
}

// RedisStore keeps cache entries in redis.
type RedisStore struct {
	pool *redis.Pool
}

func NewRedisStore(addr string) *RedisStore {
	return &RedisStore{pool: &redis.Pool{
		MaxIdle:     16,
		MaxActive:   32,
		IdleTimeout: 120 * time.Second,
		DialContext: func(ctx context.Context) (redis.Conn, error) {
			return redis.DialContext(ctx, "tcp", addr)
		},
	}}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return nil, false, err
	}
	defer s.closeConn(conn)
	data, err := redis.Bytes(conn.Do("GET", key))
	if errors.Is(err, redis.ErrNil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return err
	}
	defer s.closeConn(conn)
	args := []any{key, val}
	if secs := int(ttl.Seconds()); secs > 0 {
		args = append(args, "EX", secs)
	}
	_, err = conn.Do("SET", args...)
	return err
}

func (s *RedisStore) closeConn(conn redis.Conn) {
	if err := conn.Close(); err != nil {
		log.Errorf("redis connection close failure: %v", err)
	}
}

func (s *RedisStore) Close() error {
	return s.pool.Close()
}
