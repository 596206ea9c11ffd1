// Package redisstore keeps user profiles in Redis: one hash per user, a set
// indexing every user id, and a pub/sub channel per user announcing changes.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/PaulBabatuyi/pairchat/internal/backend"
	"github.com/PaulBabatuyi/pairchat/internal/data"
)

const indexKey = "profiles"

func profileKey(id string) string     { return "profile:" + id }
func changedChannel(id string) string { return "profile:" + id + ":changed" }

// Store implements backend.Profiles.
type Store struct {
	rdb *redis.Client
}

var _ backend.Profiles = (*Store)(nil)

// Open creates a client and pings it to validate the connection.
func Open(ctx context.Context, addr, password string, db int) (*Store, error) {
	if addr == "" {
		return nil, fmt.Errorf("empty redis addr")
	}
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, err
	}
	return New(c), nil
}

// New wraps an existing client.
func New(c *redis.Client) *Store {
	return &Store{rdb: c}
}

// Close closes the client.
func (s *Store) Close() error {
	return s.rdb.Close()
}

func (s *Store) GetProfile(ctx context.Context, id string) (*data.Profile, error) {
	cmd := s.rdb.HGetAll(ctx, profileKey(id))
	return scanProfile(id, cmd)
}

func scanProfile(id string, cmd *redis.MapStringStringCmd) (*data.Profile, error) {
	fields, err := cmd.Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, backend.ErrNotFound
	}
	var p data.Profile
	if err := cmd.Scan(&p); err != nil {
		return nil, fmt.Errorf("scan profile %s: %w", id, err)
	}
	p.ID = id
	return &p, nil
}

// PutProfile replaces the whole record and announces the change.
func (s *Store) PutProfile(ctx context.Context, p *data.Profile) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		key := profileKey(p.ID)
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, p)
		pipe.SAdd(ctx, indexKey, p.ID)
		pipe.Publish(ctx, changedChannel(p.ID), "put")
		return nil
	})
	if err != nil {
		return fmt.Errorf("put profile: %w", err)
	}
	return nil
}

// UpdatePresence merges the presence fields. A missing record is created
// with just those fields.
func (s *Store) UpdatePresence(ctx context.Context, id string, online bool, lastSeen time.Time) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, profileKey(id), "uid", id, "online", online, "lastSeen", lastSeen.UnixMilli())
		pipe.SAdd(ctx, indexKey, id)
		pipe.Publish(ctx, changedChannel(id), "presence")
		return nil
	})
	if err != nil {
		return fmt.Errorf("update presence: %w", err)
	}
	return nil
}

// ListProfiles reads every indexed profile in one pipeline.
func (s *Store) ListProfiles(ctx context.Context) ([]*data.Profile, error) {
	ids, err := s.rdb.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list profile ids: %w", err)
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = s.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, profileKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read profiles: %w", err)
	}

	out := make([]*data.Profile, 0, len(ids))
	for i, id := range ids {
		p, err := scanProfile(id, cmds[i])
		if errors.Is(err, backend.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// WatchProfile subscribes to the user's change channel and re-reads the
// record on every announcement. The first read happens once the subscription
// is confirmed, so no change between the two is missed.
func (s *Store) WatchProfile(ctx context.Context, id string, fn func(*data.Profile)) (backend.Stop, error) {
	ctx, cancel := context.WithCancel(ctx)
	sub := s.rdb.Subscribe(ctx, changedChannel(id))
	if _, err := sub.Receive(ctx); err != nil {
		cancel()
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", id, err)
	}

	go func() {
		defer sub.Close()
		s.emit(ctx, id, fn)
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-ch:
				if !ok {
					return
				}
				s.emit(ctx, id, fn)
			}
		}
	}()

	var once sync.Once
	return func() { once.Do(cancel) }, nil
}

func (s *Store) emit(ctx context.Context, id string, fn func(*data.Profile)) {
	p, err := s.GetProfile(ctx, id)
	switch {
	case errors.Is(err, backend.ErrNotFound):
		fn(nil)
	case err != nil:
		if ctx.Err() == nil {
			log.Warn().Err(err).Str("user_id", id).Msg("read watched profile")
		}
	default:
		fn(p)
	}
}
