package oauthclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStateStore is the production pending-connection store: a
// SETEX'd JSON blob per state value, consumed atomically with GETDEL so
// a replayed callback — or two callbacks racing on the same state —
// can pop it at most once.
type RedisStateStore struct {
	rdb *redis.Client
}

func NewRedisStateStore(rdb *redis.Client) *RedisStateStore {
	return &RedisStateStore{rdb: rdb}
}

func stateKey(state string) string {
	return fmt.Sprintf("oauthclient:state:%s", state)
}

func (s *RedisStateStore) Put(ctx context.Context, pc PendingConnection, ttl time.Duration) error {
	data, err := json.Marshal(pc)
	if err != nil {
		return clientErrors.NewWithCause(ErrStateNotFound, err).WithDetail("reason", "marshal pending connection")
	}
	if err := s.rdb.Set(ctx, stateKey(pc.State), data, ttl).Err(); err != nil {
		return clientErrors.NewWithCause(ErrStateNotFound, err).WithDetail("reason", "redis SET failed")
	}
	return nil
}

func (s *RedisStateStore) PopAndValidate(ctx context.Context, state string) (*PendingConnection, error) {
	data, err := s.rdb.GetDel(ctx, stateKey(state)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, clientErrors.New(ErrStateNotFound).WithDetail("state", state)
		}
		return nil, clientErrors.NewWithCause(ErrStateNotFound, err).WithDetail("reason", "redis GETDEL failed")
	}
	var pc PendingConnection
	if err := json.Unmarshal(data, &pc); err != nil {
		return nil, clientErrors.NewWithCause(ErrStateNotFound, err).WithDetail("reason", "unmarshal pending connection")
	}
	return &pc, nil
}
