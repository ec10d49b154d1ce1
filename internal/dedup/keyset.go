package dedup

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// KeySet is a set of dedup keys loaded before a run, e.g. the keys of
// previously processed files.
type KeySet interface {
	Contains(ctx context.Context, key string) (bool, error)
	Add(ctx context.Context, keys ...string) error
}

// MemoryKeySet is an in-process KeySet. It is not safe for concurrent use.
type MemoryKeySet struct {
	keys map[string]struct{}
}

func NewMemoryKeySet(keys ...string) *MemoryKeySet {
	s := &MemoryKeySet{keys: make(map[string]struct{}, len(keys))}
	for _, k := range keys {
		s.keys[k] = struct{}{}
	}
	return s
}

func (s *MemoryKeySet) Contains(_ context.Context, key string) (bool, error) {
	_, ok := s.keys[key]
	return ok, nil
}

func (s *MemoryKeySet) Add(_ context.Context, keys ...string) error {
	for _, k := range keys {
		s.keys[k] = struct{}{}
	}
	return nil
}

func (s *MemoryKeySet) Len() int {
	return len(s.keys)
}

// RedisClient is the subset of the Redis client used by RedisKeySet.
type RedisClient interface {
	SIsMember(ctx context.Context, key string, member interface{}) *redis.BoolCmd
	SAdd(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
}

// RedisKeySet keeps keys in a Redis set so that several runs, or several
// machines, share one reference set.
type RedisKeySet struct {
	client RedisClient
	set    string
}

func NewRedisKeySet(client RedisClient, set string) *RedisKeySet {
	return &RedisKeySet{client: client, set: set}
}

func (s *RedisKeySet) Contains(ctx context.Context, key string) (bool, error) {
	ok, err := s.client.SIsMember(ctx, s.set, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check key in %s: %w", s.set, err)
	}
	return ok, nil
}

func (s *RedisKeySet) Add(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	members := make([]interface{}, len(keys))
	for i, k := range keys {
		members[i] = k
	}

	if err := s.client.SAdd(ctx, s.set, members...).Err(); err != nil {
		return fmt.Errorf("failed to add %d keys to %s: %w", len(keys), s.set, err)
	}
	return nil
}

type unionKeySet []KeySet

// Union returns a KeySet that contains a key when any of sets does. Add
// writes to every set.
func Union(sets ...KeySet) KeySet {
	var u unionKeySet
	for _, s := range sets {
		if s != nil {
			u = append(u, s)
		}
	}
	return u
}

func (u unionKeySet) Contains(ctx context.Context, key string) (bool, error) {
	for _, s := range u {
		ok, err := s.Contains(ctx, key)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func (u unionKeySet) Add(ctx context.Context, keys ...string) error {
	for _, s := range u {
		if err := s.Add(ctx, keys...); err != nil {
			return err
		}
	}
	return nil
}
