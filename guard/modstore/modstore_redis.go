package modstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

var (
	redisUserPrefix  = "mod/user/"
	redisGroupPrefix = "mod/group/"
)

// updateRetries bounds optimistic-transaction retries under contention.
const updateRetries = 5

// RedisModStore persists records as JSON blobs, one key per user or group.
// Updates run inside WATCH transactions, which gives the per-key atomic
// read-modify-write the rest of the core relies on.
type RedisModStore struct {
	Client *redis.Client
}

var _ ModStore = (*RedisModStore)(nil)

func NewRedisModStore(redisURL string) (*RedisModStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	// check redis connection
	_, err = rdb.Ping(context.TODO()).Result()
	if err != nil {
		return nil, err
	}
	return &RedisModStore{Client: rdb}, nil
}

func (s *RedisModStore) GetUser(ctx context.Context, userID string) (UserRecord, error) {
	u := UserRecord{UserID: userID}
	err := s.getJSON(ctx, redisUserPrefix+userID, &u)
	if err != nil {
		return UserRecord{}, err
	}
	u.UserID = userID
	return u, nil
}

func (s *RedisModStore) UpdateUser(ctx context.Context, userID string, fn func(*UserRecord)) (UserRecord, error) {
	var out UserRecord
	err := s.updateJSON(ctx, redisUserPrefix+userID, func(raw []byte) ([]byte, error) {
		u := UserRecord{UserID: userID}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &u); err != nil {
				return nil, fmt.Errorf("decoding user record: %w", err)
			}
		}
		fn(&u)
		u.UserID = userID
		out = u
		return json.Marshal(&u)
	})
	if err != nil {
		return UserRecord{}, err
	}
	return out, nil
}

func (s *RedisModStore) GetGroup(ctx context.Context, groupID string) (GroupSettings, error) {
	g := DefaultGroupSettings(groupID)
	err := s.getJSON(ctx, redisGroupPrefix+groupID, &g)
	if err != nil {
		return GroupSettings{}, err
	}
	g.GroupID = groupID
	return g, nil
}

func (s *RedisModStore) UpdateGroup(ctx context.Context, groupID string, fn func(*GroupSettings)) (GroupSettings, error) {
	var out GroupSettings
	err := s.updateJSON(ctx, redisGroupPrefix+groupID, func(raw []byte) ([]byte, error) {
		g := DefaultGroupSettings(groupID)
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &g); err != nil {
				return nil, fmt.Errorf("decoding group settings: %w", err)
			}
		}
		fn(&g)
		g.GroupID = groupID
		out = g
		return json.Marshal(&g)
	})
	if err != nil {
		return GroupSettings{}, err
	}
	return out, nil
}

// getJSON leaves v untouched when the key does not exist.
func (s *RedisModStore) getJSON(ctx context.Context, key string, v any) error {
	raw, err := s.Client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil
	} else if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

// updateJSON runs mutate under WATCH so a concurrent writer forces a retry
// instead of a lost update.
func (s *RedisModStore) updateJSON(ctx context.Context, key string, mutate func(raw []byte) ([]byte, error)) error {
	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			raw = nil
		} else if err != nil {
			return err
		}
		next, err := mutate(raw)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, next, 0)
			return nil
		})
		return err
	}

	var err error
	for i := 0; i < updateRetries; i++ {
		err = s.Client.Watch(ctx, txf, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return fmt.Errorf("update contention on %s: %w", key, err)
}
