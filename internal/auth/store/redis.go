package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"landledger/internal/auth/models"
	"landledger/pkg/platform/sentinel"
)

const (
	keyPrefix       = "otp:"
	maxWatchRetries = 5
)

// Redis stores challenges as JSON with the code TTL on the key, so an
// expired code disappears without a sweeper.
type Redis struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func key(email string) string {
	return keyPrefix + email
}

func (s *Redis) Save(ctx context.Context, challenge *models.Challenge, ttl time.Duration) error {
	payload, err := json.Marshal(challenge)
	if err != nil {
		return fmt.Errorf("marshal challenge: %w", err)
	}
	if err := s.client.Set(ctx, key(challenge.Email), payload, ttl).Err(); err != nil {
		return fmt.Errorf("save challenge: %w", err)
	}
	return nil
}

func (s *Redis) Find(ctx context.Context, email string) (*models.Challenge, error) {
	payload, err := s.client.Get(ctx, key(email)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("load challenge: %w", err)
	}
	var c models.Challenge
	if err := json.Unmarshal(payload, &c); err != nil {
		return nil, fmt.Errorf("decode challenge: %w", err)
	}
	return &c, nil
}

// RecordAttempt increments the attempt counter under WATCH so concurrent
// wrong guesses are all counted. The remaining TTL is preserved.
func (s *Redis) RecordAttempt(ctx context.Context, email string) (int, error) {
	k := key(email)
	var attempts int
	increment := func(tx *redis.Tx) error {
		payload, err := tx.Get(ctx, k).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return sentinel.ErrNotFound
			}
			return err
		}
		var c models.Challenge
		if err := json.Unmarshal(payload, &c); err != nil {
			return fmt.Errorf("decode challenge: %w", err)
		}
		c.Attempts++
		updated, err := json.Marshal(&c)
		if err != nil {
			return fmt.Errorf("marshal challenge: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.SetArgs(ctx, k, updated, redis.SetArgs{Mode: "XX", KeepTTL: true})
			return nil
		})
		if err != nil {
			return err
		}
		attempts = c.Attempts
		return nil
	}

	for range maxWatchRetries {
		err := s.client.Watch(ctx, increment, k)
		if err == nil {
			return attempts, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if errors.Is(err, sentinel.ErrNotFound) {
			return 0, err
		}
		return 0, fmt.Errorf("record attempt: %w", err)
	}
	return 0, sentinel.ErrConflict
}

func (s *Redis) Delete(ctx context.Context, email string) error {
	n, err := s.client.Del(ctx, key(email)).Result()
	if err != nil {
		return fmt.Errorf("delete challenge: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
