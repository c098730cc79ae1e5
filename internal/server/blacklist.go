// blacklist.go - optional Redis-backed token revocation list
package server

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const blacklistKeyPrefix = "jwt:blacklist:"

// TokenBlacklist records revoked token ids until their natural expiry.
// Without a Redis client every operation is a no-op and logout degrades to
// client-side token disposal.
type TokenBlacklist struct {
	rdb *redis.Client
}

// NewTokenBlacklist wraps a Redis client. A nil client disables revocation.
func NewTokenBlacklist(rdb *redis.Client) *TokenBlacklist {
	return &TokenBlacklist{rdb: rdb}
}

// Enabled reports whether a Redis backend is configured.
func (b *TokenBlacklist) Enabled() bool {
	return b != nil && b.rdb != nil
}

// Revoke blacklists a token id for the given duration. Entries expire with
// the token they block, so the list never needs sweeping.
func (b *TokenBlacklist) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if !b.Enabled() || jti == "" || ttl <= 0 {
		return nil
	}
	return b.rdb.Set(ctx, blacklistKeyPrefix+jti, "revoked", ttl).Err()
}

// IsRevoked reports whether the token id has been revoked. A Redis outage
// fails open: an unreachable revocation list must not lock every user out.
func (b *TokenBlacklist) IsRevoked(ctx context.Context, jti string) bool {
	if !b.Enabled() || jti == "" {
		return false
	}
	n, err := b.rdb.Exists(ctx, blacklistKeyPrefix+jti).Result()
	if err != nil {
		Warn("blacklist_check_failed", map[string]any{"err": err.Error()})
		return false
	}
	return n > 0
}
