// Copyright (c) 2026 Registra. All rights reserved.

package identity

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/registra/registra/internal/platform/apperr"
	"github.com/registra/registra/internal/platform/constants"
)

// RedisResetTokenRepository implements ResetTokenRepository using Redis.
//
// Tokens live under a dedicated key prefix and rely on Redis TTL for expiry,
// so no sweeping job is needed.
type RedisResetTokenRepository struct {
	client *redis.Client
}

// NewResetTokenRepository creates a new Redis-backed ResetTokenRepository.
func NewResetTokenRepository(client *redis.Client) *RedisResetTokenRepository {
	return &RedisResetTokenRepository{client: client}
}

/*
Set stores a reset token with its associated accountID and TTL.

Parameters:
  - context: context.Context
  - token: string
  - accountID: int64
  - ttl: time.Duration

Returns:
  - error: Execution errors
*/
func (repository *RedisResetTokenRepository) Set(context context.Context, token string, accountID int64, ttl time.Duration) error {
	key := constants.RedisPrefixResetToken + token
	value := strconv.FormatInt(accountID, 10)

	if err := repository.client.Set(context, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis_reset_token_set_failed: %w", err)
	}

	return nil
}

/*
Get retrieves the accountID for a given token.

Description: Returns apperr.NotFound if the token is absent or expired.

Parameters:
  - context: context.Context
  - token: string

Returns:
  - int64: Account the token was issued for
  - error: apperr.NotFound or connectivity errors
*/
func (repository *RedisResetTokenRepository) Get(context context.Context, token string) (int64, error) {
	key := constants.RedisPrefixResetToken + token

	value, err := repository.client.Get(context, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, apperr.NotFound("Reset token is invalid or expired")
		}
		return 0, fmt.Errorf("redis_reset_token_get_failed: %w", err)
	}

	accountID, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("redis_reset_token_parse_failed: %w", err)
	}

	return accountID, nil
}

/*
Delete removes the token from Redis so it cannot be redeemed twice.

Parameters:
  - context: context.Context
  - token: string

Returns:
  - error: Deletion failures
*/
func (repository *RedisResetTokenRepository) Delete(context context.Context, token string) error {
	key := constants.RedisPrefixResetToken + token

	if err := repository.client.Del(context, key).Err(); err != nil {
		return fmt.Errorf("redis_reset_token_delete_failed: %w", err)
	}

	return nil
}
