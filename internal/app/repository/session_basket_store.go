package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/alansalbums/alans-albums-backend/pkg/logger"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	sessionBasketPrefix = "basket:session:"
	mergingBasketPrefix = "basket:merging:"
)

// PendingMerge is a session basket detached for merging into an account
type PendingMerge struct {
	SessionID string
	Token     string
	Lines     map[uint]int
}

// SessionBasketStore keeps anonymous baskets as Redis hashes of listing id to quantity
type SessionBasketStore interface {
	Lines(ctx context.Context, sessionID string) (map[uint]int, error)
	Increment(ctx context.Context, sessionID string, listingID uint, delta int) (int, error)
	Remove(ctx context.Context, sessionID string, listingIDs ...uint) error
	Clear(ctx context.Context, sessionID string) error
	BeginMerge(ctx context.Context, sessionID string) (*PendingMerge, error)
	FinishMerge(ctx context.Context, sessionID string) error
}

type sessionBasketStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSessionBasketStore(client *redis.Client, ttl time.Duration) SessionBasketStore {
	return &sessionBasketStore{client: client, ttl: ttl}
}

func sessionKey(sessionID string) string { return sessionBasketPrefix + sessionID }
func mergingKey(sessionID string) string { return mergingBasketPrefix + sessionID }
func tokenKey(sessionID string) string   { return mergingBasketPrefix + sessionID + ":token" }

func (s *sessionBasketStore) Lines(ctx context.Context, sessionID string) (map[uint]int, error) {
	raw, err := s.client.HGetAll(ctx, sessionKey(sessionID)).Result()
	if err != nil {
		logger.Error("Failed to read session basket", err, map[string]interface{}{
			"session_id": sessionID,
		})
		return nil, err
	}
	return decodeLines(raw), nil
}

// Increment adds delta atomically and returns the resulting quantity.
// A line that drops to zero or below is removed.
func (s *sessionBasketStore) Increment(ctx context.Context, sessionID string, listingID uint, delta int) (int, error) {
	key := sessionKey(sessionID)
	field := strconv.FormatUint(uint64(listingID), 10)

	qty, err := s.client.HIncrBy(ctx, key, field, int64(delta)).Result()
	if err != nil {
		logger.Error("Failed to increment session basket line", err, map[string]interface{}{
			"session_id": sessionID,
			"listing_id": listingID,
			"delta":      delta,
		})
		return 0, err
	}
	if qty <= 0 {
		if err := s.client.HDel(ctx, key, field).Err(); err != nil {
			return 0, err
		}
	}
	if s.ttl > 0 {
		s.client.Expire(ctx, key, s.ttl)
	}

	logger.Debug("Session basket line incremented", map[string]interface{}{
		"session_id": sessionID,
		"listing_id": listingID,
		"quantity":   qty,
	})
	return int(qty), nil
}

func (s *sessionBasketStore) Remove(ctx context.Context, sessionID string, listingIDs ...uint) error {
	if len(listingIDs) == 0 {
		return nil
	}
	fields := make([]string, 0, len(listingIDs))
	for _, id := range listingIDs {
		fields = append(fields, strconv.FormatUint(uint64(id), 10))
	}
	if err := s.client.HDel(ctx, sessionKey(sessionID), fields...).Err(); err != nil {
		logger.Error("Failed to remove session basket lines", err, map[string]interface{}{
			"session_id": sessionID,
			"count":      len(fields),
		})
		return err
	}
	return nil
}

func (s *sessionBasketStore) Clear(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, sessionKey(sessionID)).Err()
}

// BeginMerge detaches the session basket under a pending key stamped with a merge token.
// A pending merge left by an earlier failed attempt is resumed with its original token.
// Returns nil when there is nothing to merge.
func (s *sessionBasketStore) BeginMerge(ctx context.Context, sessionID string) (*PendingMerge, error) {
	pending := mergingKey(sessionID)

	exists, err := s.client.Exists(ctx, pending).Result()
	if err != nil {
		return nil, err
	}
	if exists == 0 {
		err := s.client.Rename(ctx, sessionKey(sessionID), pending).Err()
		if err != nil {
			// RENAME fails with "no such key" when the session basket is empty
			if isNoSuchKey(err) {
				return nil, nil
			}
			logger.Error("Failed to detach session basket for merge", err, map[string]interface{}{
				"session_id": sessionID,
			})
			return nil, err
		}
	}

	// SETNX keeps the token of a resumed merge stable
	if err := s.client.SetNX(ctx, tokenKey(sessionID), uuid.NewString(), s.ttl).Err(); err != nil {
		return nil, err
	}
	token, err := s.client.Get(ctx, tokenKey(sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read merge token: %w", err)
	}

	raw, err := s.client.HGetAll(ctx, pending).Result()
	if err != nil {
		return nil, err
	}

	return &PendingMerge{
		SessionID: sessionID,
		Token:     token,
		Lines:     decodeLines(raw),
	}, nil
}

// FinishMerge drops the pending key once the merge is durably applied
func (s *sessionBasketStore) FinishMerge(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, mergingKey(sessionID), tokenKey(sessionID)).Err()
}

func decodeLines(raw map[string]string) map[uint]int {
	lines := make(map[uint]int, len(raw))
	for field, value := range raw {
		id, err := strconv.ParseUint(field, 10, 64)
		if err != nil || id == 0 {
			continue
		}
		qty, err := strconv.Atoi(value)
		if err != nil || qty <= 0 {
			continue
		}
		lines[uint(id)] = qty
	}
	return lines
}

func isNoSuchKey(err error) bool {
	var redisErr redis.Error
	return errors.As(err, &redisErr) && strings.Contains(redisErr.Error(), "no such key")
}
