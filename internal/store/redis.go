package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/MJE43/mapgame-session-go/internal/engine"
)

// Redis keeps each session as a JSON value that expires ttl after its last
// save. Expired sessions read as unknown tokens.
type Redis struct {
	client  *redis.Client
	ttl     time.Duration
	prefix  string
	lockTTL time.Duration
}

// releaseLockScript deletes the lock key only if this holder still owns it.
// KEYS[1] = lock key
// ARGV[1] = holder id
var releaseLockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0
`)

const (
	defaultLockTTL  = 30 * time.Second
	lockRetryMin    = 5 * time.Millisecond
	lockRetryMax    = 100 * time.Millisecond
	lockReleaseWait = 2 * time.Second
)

// NewRedis creates a session store backed by Redis. A zero ttl keeps
// sessions until they are deleted.
func NewRedis(addr, password string, db int, ttl time.Duration) *Redis {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return NewRedisFromClient(rdb, ttl)
}

func NewRedisFromClient(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl, prefix: "mapgame:session:", lockTTL: defaultLockTTL}
}

// Lock takes a per-token lock shared by every server instance using this
// Redis. The key expires after lockTTL so a crashed holder cannot wedge a
// session.
func (r *Redis) Lock(ctx context.Context, token string) (func(), error) {
	key := "mapgame:lock:" + token
	holder := uuid.NewString()
	wait := lockRetryMin
	for {
		ok, err := r.client.SetNX(ctx, key, holder, r.lockTTL).Result()
		if err != nil {
			return nil, fmt.Errorf("redis session lock: %w", err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("redis session lock: %w", ctx.Err())
		case <-time.After(wait):
		}
		if wait < lockRetryMax {
			wait *= 2
		}
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), lockReleaseWait)
		defer cancel()
		// a failed release is left to lockTTL
		_ = releaseLockScript.Run(ctx, r.client, []string{key}, holder).Err()
	}, nil
}

func (r *Redis) key(token string) string { return r.prefix + token }

func (r *Redis) Load(ctx context.Context, token string) (*engine.State, error) {
	raw, err := r.client.Get(ctx, r.key(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, engine.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis session load: %w", err)
	}
	var st engine.State
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", engine.Fingerprint(token), err)
	}
	if st.UserChoices == nil {
		st.UserChoices = map[int]int{}
	}
	if st.UserChoiceOrder == nil {
		st.UserChoiceOrder = []int{}
	}
	return &st, nil
}

func (r *Redis) Save(ctx context.Context, st *engine.State) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := r.client.Set(ctx, r.key(st.Token), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis session save: %w", err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, token string) error {
	n, err := r.client.Del(ctx, r.key(token)).Result()
	if err != nil {
		return fmt.Errorf("redis session delete: %w", err)
	}
	if n == 0 {
		return engine.ErrNotFound
	}
	return nil
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Close() error { return r.client.Close() }
