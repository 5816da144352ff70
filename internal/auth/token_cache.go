package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// VerificationTTL bounds how long a verified token maps to its user without
// re-verification. Scan ingestion fires one request per keystroke, so the
// same token arrives many times per second.
const VerificationTTL = 60 * time.Second

// VerificationCache remembers which bearer tokens already passed OIDC
// verification, keyed by token hash. Cache errors are reported but callers
// degrade to plain verification.
type VerificationCache struct {
	Client *redis.Client
}

func NewVerificationCache(client *redis.Client) *VerificationCache {
	return &VerificationCache{Client: client}
}

// GetUserID returns the cached user id for a token, or "" on miss.
func (c *VerificationCache) GetUserID(ctx context.Context, token string) (string, error) {
	if c == nil || c.Client == nil {
		return "", nil
	}

	userID, err := c.Client.Get(ctx, cacheKey(token)).Result()
	if err == redis.Nil {
		return "", nil
	} else if err != nil {
		return "", fmt.Errorf("failed to read token cache: %w", err)
	}

	return userID, nil
}

// SetUserID records a verified token for VerificationTTL.
func (c *VerificationCache) SetUserID(ctx context.Context, token, userID string) error {
	if c == nil || c.Client == nil {
		return nil
	}

	if err := c.Client.Set(ctx, cacheKey(token), userID, VerificationTTL).Err(); err != nil {
		return fmt.Errorf("failed to store token in cache: %w", err)
	}
	return nil
}

func cacheKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return "auth_token:" + hex.EncodeToString(sum[:])
}
