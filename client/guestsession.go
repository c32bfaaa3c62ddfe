package client

import (
	"crypto/rand"
	"encoding/binary"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	guestSessionStorageKey = "karite.guest_session_id"
	guestSessionPrefix     = "guest_"
)

// GuestSessionProvider hands out the stable anonymous identity that keys the
// server-side guest cart. The first call mints an ID and persists it; every
// later call returns the same value. When storage is unavailable the ID lives
// only in memory, so the guest cart survives the tab but not a restart.
type GuestSessionProvider struct {
	storage Storage
	now     func() time.Time

	mu     sync.Mutex
	cached string
}

func NewGuestSessionProvider(storage Storage) *GuestSessionProvider {
	return &GuestSessionProvider{storage: storage, now: time.Now}
}

// SessionID returns the current guest session identifier, minting one on
// first use.
func (p *GuestSessionProvider) SessionID() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cached != "" {
		return p.cached
	}

	if p.storage != nil {
		if stored, err := p.storage.Get(guestSessionStorageKey); err == nil && isWellFormedGuestID(stored) {
			p.cached = stored
			return stored
		}
	}

	id := p.mint()
	p.cached = id
	if p.storage != nil {
		// Best effort: a write failure degrades to a per-process identity.
		_ = p.storage.Set(guestSessionStorageKey, id)
	}
	return id
}

// Reset forgets the current identity so the next SessionID call mints a fresh
// one. Called after a guest cart is migrated into an account.
func (p *GuestSessionProvider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.cached = ""
	if p.storage != nil {
		_ = p.storage.Delete(guestSessionStorageKey)
	}
}

func (p *GuestSessionProvider) mint() string {
	ts := strconv.FormatInt(p.now().UnixMilli(), 36)

	var buf [8]byte
	entropy := "0"
	if _, err := rand.Read(buf[:]); err == nil {
		entropy = strconv.FormatUint(binary.BigEndian.Uint64(buf[:]), 36)
	}

	return guestSessionPrefix + ts + "_" + entropy
}

func isWellFormedGuestID(id string) bool {
	return strings.HasPrefix(id, guestSessionPrefix) && len(id) > len(guestSessionPrefix)
}
