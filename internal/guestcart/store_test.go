package guestcart

import (
	"context"
	"testing"
	"time"

	redislib "github.com/redis/go-redis/v9"

	"github.com/kariteco/storefront-core/pkg/types"
)

type memoryKV struct {
	data map[string]string
	ttls map[string]time.Duration
}

func newMemoryKV() *memoryKV {
	return &memoryKV{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memoryKV) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	switch v := value.(type) {
	case []byte:
		m.data[key] = string(v)
	case string:
		m.data[key] = v
	}
	m.ttls[key] = ttl
	return nil
}

func (m *memoryKV) Get(_ context.Context, key string) (string, error) {
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return "", redislib.Nil
}

func (m *memoryKV) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.data, key)
		delete(m.ttls, key)
	}
	return nil
}

type testKeyer struct{}

func (testKeyer) GuestCartKey(sessionID string) string {
	return "karite:guest_cart:" + sessionID
}

func TestStoreLoadMissingReturnsEmpty(t *testing.T) {
	t.Parallel()

	store, err := NewStore(newMemoryKV(), testKeyer{}, time.Hour)
	if err != nil {
		t.Fatalf("building store: %v", err)
	}

	doc, err := store.Load(context.Background(), "guest_missing")
	if err != nil {
		t.Fatalf("loading: %v", err)
	}
	if len(doc.Items) != 0 {
		t.Fatalf("expected empty document, got %d items", len(doc.Items))
	}
}

func TestStoreSaveRefreshesTTL(t *testing.T) {
	t.Parallel()

	kv := newMemoryKV()
	store, err := NewStore(kv, testKeyer{}, 30*24*time.Hour)
	if err != nil {
		t.Fatalf("building store: %v", err)
	}

	doc := &document{Items: []types.CartItemView{{ID: "line-1", Quantity: 2}}}
	if err := store.Save(context.Background(), "guest_abc", doc); err != nil {
		t.Fatalf("saving: %v", err)
	}

	key := testKeyer{}.GuestCartKey("guest_abc")
	if kv.ttls[key] != 30*24*time.Hour {
		t.Fatalf("expected ttl to be set, got %s", kv.ttls[key])
	}

	loaded, err := store.Load(context.Background(), "guest_abc")
	if err != nil {
		t.Fatalf("loading: %v", err)
	}
	if len(loaded.Items) != 1 || loaded.Items[0].ID != "line-1" {
		t.Fatalf("unexpected document: %+v", loaded)
	}
}

func TestStoreCorruptDocumentTreatedAsEmpty(t *testing.T) {
	t.Parallel()

	kv := newMemoryKV()
	store, err := NewStore(kv, testKeyer{}, time.Hour)
	if err != nil {
		t.Fatalf("building store: %v", err)
	}

	kv.data[testKeyer{}.GuestCartKey("guest_bad")] = "{not-json"

	doc, err := store.Load(context.Background(), "guest_bad")
	if err != nil {
		t.Fatalf("loading: %v", err)
	}
	if len(doc.Items) != 0 {
		t.Fatalf("expected corrupt payload to read as empty, got %+v", doc)
	}
}
