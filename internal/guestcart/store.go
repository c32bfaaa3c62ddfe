package guestcart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redislib "github.com/redis/go-redis/v9"

	"github.com/kariteco/storefront-core/pkg/types"
)

// document is the JSON shape persisted per guest session. Product summaries
// are embedded at add time so reads never touch the catalog.
type document struct {
	Items []types.CartItemView `json:"items"`
}

type kvStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
}

type cartKeyer interface {
	GuestCartKey(sessionID string) string
}

// Store reads and writes guest cart documents in Redis. Every write resets
// the TTL so active guests keep their carts alive.
type Store struct {
	kv    kvStore
	keyer cartKeyer
	ttl   time.Duration
}

func NewStore(kv kvStore, keyer cartKeyer, ttl time.Duration) (*Store, error) {
	if kv == nil || keyer == nil {
		return nil, fmt.Errorf("redis store and keyer are required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("guest cart ttl must be positive")
	}
	return &Store{kv: kv, keyer: keyer, ttl: ttl}, nil
}

// Load returns the stored document, or an empty one when the key is missing
// or the payload is unreadable. A corrupt document is treated as absent
// rather than surfaced to the shopper.
func (s *Store) Load(ctx context.Context, sessionID string) (*document, error) {
	raw, err := s.kv.Get(ctx, s.keyer.GuestCartKey(sessionID))
	if err != nil {
		if errors.Is(err, redislib.Nil) {
			return &document{}, nil
		}
		return nil, err
	}

	var doc document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return &document{}, nil
	}
	return &doc, nil
}

// Save persists the document and refreshes its TTL.
func (s *Store) Save(ctx context.Context, sessionID string, doc *document) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding guest cart: %w", err)
	}
	return s.kv.Set(ctx, s.keyer.GuestCartKey(sessionID), payload, s.ttl)
}

// Delete removes the document entirely.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	return s.kv.Del(ctx, s.keyer.GuestCartKey(sessionID))
}
