package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	redislib "github.com/redis/go-redis/v9"

	redisclient "github.com/kariteco/storefront-core/pkg/redis"
)

const (
	accountTokenBytes = 32

	passwordResetTTL = time.Hour
	emailVerifyTTL   = 24 * time.Hour
)

// ErrInvalidAccountToken is returned when a reset or verification token is
// unknown, already used, or expired.
var ErrInvalidAccountToken = errors.New("invalid or expired token")

type tokenKV interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
}

type tokenKeyer interface {
	PasswordResetKey(token string) string
	EmailVerifyKey(token string) string
}

// TokenStore issues and consumes single-use account tokens backed by Redis.
// Tokens are consumed atomically with respect to reuse: a consumed token is
// deleted before its user ID is returned.
type TokenStore struct {
	kv    tokenKV
	keyer tokenKeyer
}

// NewTokenStore constructs a token store backed by the shared Redis client.
func NewTokenStore(client *redisclient.Client) (*TokenStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	return &TokenStore{kv: client, keyer: client}, nil
}

// IssuePasswordReset mints a reset token tied to the user and stores it with
// a one hour TTL.
func (t *TokenStore) IssuePasswordReset(ctx context.Context, userID uuid.UUID) (string, error) {
	return t.issue(ctx, userID, t.keyer.PasswordResetKey, passwordResetTTL)
}

// ConsumePasswordReset resolves and invalidates a reset token.
func (t *TokenStore) ConsumePasswordReset(ctx context.Context, token string) (uuid.UUID, error) {
	return t.consume(ctx, token, t.keyer.PasswordResetKey)
}

// IssueEmailVerification mints a verification token tied to the user and
// stores it with a 24 hour TTL.
func (t *TokenStore) IssueEmailVerification(ctx context.Context, userID uuid.UUID) (string, error) {
	return t.issue(ctx, userID, t.keyer.EmailVerifyKey, emailVerifyTTL)
}

// ConsumeEmailVerification resolves and invalidates a verification token.
func (t *TokenStore) ConsumeEmailVerification(ctx context.Context, token string) (uuid.UUID, error) {
	return t.consume(ctx, token, t.keyer.EmailVerifyKey)
}

func (t *TokenStore) issue(ctx context.Context, userID uuid.UUID, key func(string) string, ttl time.Duration) (string, error) {
	if userID == uuid.Nil {
		return "", fmt.Errorf("user id is required")
	}
	token, err := generateAccountToken()
	if err != nil {
		return "", err
	}
	stored, err := t.kv.SetNX(ctx, key(token), userID.String(), ttl)
	if err != nil {
		return "", err
	}
	if !stored {
		return "", fmt.Errorf("account token collision")
	}
	return token, nil
}

func (t *TokenStore) consume(ctx context.Context, token string, key func(string) string) (uuid.UUID, error) {
	if token == "" {
		return uuid.Nil, ErrInvalidAccountToken
	}
	storageKey := key(token)
	value, err := t.kv.Get(ctx, storageKey)
	if err != nil {
		if errors.Is(err, redislib.Nil) {
			return uuid.Nil, ErrInvalidAccountToken
		}
		return uuid.Nil, err
	}
	if err := t.kv.Del(ctx, storageKey); err != nil {
		return uuid.Nil, err
	}
	userID, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, ErrInvalidAccountToken
	}
	return userID, nil
}

func generateAccountToken() (string, error) {
	bytes := make([]byte, accountTokenBytes)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("generating account token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}
