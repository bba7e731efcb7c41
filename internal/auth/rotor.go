package auth

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// CapturedBundle is a signing bundle harvested from recorded app traffic.
// Entries are immutable once captured.
type CapturedBundle struct {
	AuthCode        string  `json:"auth_code"`
	AuthData        string  `json:"auth_data"`
	AuthType        int     `json:"auth_type"`
	SourceTimestamp float64 `json:"source_timestamp"`
}

// Bundle converts the captured entry into a usable AuthBundle. Captured
// material carries no expiry of its own, so the default TTL applies from the
// moment it is handed out.
func (e CapturedBundle) Bundle(at time.Time) AuthBundle {
	return AuthBundle{
		AuthCode:  e.AuthCode,
		AuthData:  e.AuthData,
		AuthType:  e.AuthType,
		ExpiresAt: at.Add(BundleTTL),
	}
}

// PoolStore persists the captured set.
type PoolStore interface {
	SaveBundles(entries []CapturedBundle) error
}

// BundleRotor hands out captured bundles round-robin. The rotation index
// lives only in memory, so every entry is visited once per cycle within a
// process lifetime.
type BundleRotor struct {
	mu      sync.Mutex
	entries []CapturedBundle
	idx     int
	store   PoolStore
	log     *zap.Logger
}

func NewBundleRotor(entries []CapturedBundle, store PoolStore, log *zap.Logger) *BundleRotor {
	if log == nil {
		log = zap.NewNop()
	}
	r := &BundleRotor{
		entries: entries,
		store:   store,
		log:     log.With(zap.String("component", "auth.rotor")),
	}
	r.log.Info("bundle_pool_loaded", zap.Int("pool_size", len(entries)))
	return r
}

// Next returns the next bundle, wrapping at the end of the pool.
func (r *BundleRotor) Next() (CapturedBundle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.entries) == 0 {
		return CapturedBundle{}, ErrPoolExhausted
	}
	e := r.entries[r.idx]
	r.idx = (r.idx + 1) % len(r.entries)
	return e, nil
}

// Refresh appends freshly captured entries and persists the grown set.
// Existing entries are never rewritten or reordered, so the rotation index
// stays valid.
func (r *BundleRotor) Refresh(entries []CapturedBundle) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entries...)
	if r.store != nil {
		if err := r.store.SaveBundles(r.entries); err != nil {
			return 0, fmt.Errorf("persist bundle pool: %w", err)
		}
	}
	r.log.Info("bundle_pool_refreshed",
		zap.Int("added", len(entries)),
		zap.Int("pool_size", len(r.entries)))
	return len(entries), nil
}

// Size returns the number of captured entries.
func (r *BundleRotor) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
