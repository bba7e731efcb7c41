package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// DefaultSafetyMargin is the lead time before expiry at which the access
// token is refreshed proactively.
const DefaultSafetyMargin = 300 * time.Second

// TokenRecord is the current OAuth pair. It is replaced wholesale on every
// refresh; expiry comes from the access token's own exp claim, not a guessed
// TTL.
type TokenRecord struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	IssuedAt     time.Time `json:"issued_at"`
}

// Valid reports whether the access token is usable at the given instant with
// the margin applied.
func (r *TokenRecord) Valid(margin time.Duration, at time.Time) bool {
	if r == nil || r.AccessToken == "" {
		return false
	}
	return at.Before(r.ExpiresAt.Add(-margin))
}

// TokenGrant is a raw grant from the token endpoint.
type TokenGrant struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int
}

// TokenEndpoint exchanges a refresh token for a fresh grant.
type TokenEndpoint interface {
	Refresh(ctx context.Context, refreshToken string) (*TokenGrant, error)
}

// TokenStore persists the record between runs.
type TokenStore interface {
	Save(rec *TokenRecord) error
}

// TokenConfig tunes the lifecycle. The zero value takes defaults.
type TokenConfig struct {
	SafetyMargin time.Duration
}

// TokenLifecycle owns the token record. One mutex guards the record and is
// held across the refresh call, so concurrent callers coalesce on a single
// in-flight refresh and late arrivals get the fresh token without a second
// network round trip.
type TokenLifecycle struct {
	mu     sync.Mutex
	rec    *TokenRecord
	ep     TokenEndpoint
	store  TokenStore
	margin time.Duration
	now    func() time.Time
	log    *zap.Logger
}

func NewTokenLifecycle(cfg TokenConfig, rec *TokenRecord, ep TokenEndpoint, store TokenStore, log *zap.Logger) *TokenLifecycle {
	if log == nil {
		log = zap.NewNop()
	}
	margin := cfg.SafetyMargin
	if margin <= 0 {
		margin = DefaultSafetyMargin
	}
	return &TokenLifecycle{
		rec:    rec,
		ep:     ep,
		store:  store,
		margin: margin,
		now:    time.Now,
		log:    log.With(zap.String("component", "auth.tokens")),
	}
}

// Token returns a valid access token, refreshing first when the cached one is
// inside the safety margin.
func (t *TokenLifecycle) Token(ctx context.Context) (string, error) {
	t.mu.Lock()
	if t.rec.Valid(t.margin, t.now()) {
		access := t.rec.AccessToken
		t.mu.Unlock()
		return access, nil
	}
	t.mu.Unlock()
	return t.Refresh(ctx)
}

// Refresh exchanges the refresh token for a new pair. A caller that lost the
// race gets the already-refreshed token back without a network call. On
// failure the cached record is left untouched.
func (t *TokenLifecycle) Refresh(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.rec.Valid(t.margin, t.now()) {
		return t.rec.AccessToken, nil
	}

	var prevRefresh string
	if t.rec != nil {
		prevRefresh = t.rec.RefreshToken
	}
	if prevRefresh == "" {
		return "", fmt.Errorf("%w: no refresh token on record", ErrRefreshFailed)
	}

	grant, err := t.ep.Refresh(ctx, prevRefresh)
	if err != nil {
		t.log.Warn("token_refresh_failed", zap.Error(err))
		return "", fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	}

	next := RecordFromGrant(grant, t.now())
	// Some grants omit the refresh token; the previous one stays valid then.
	if next.RefreshToken == "" {
		next.RefreshToken = prevRefresh
	}
	t.rec = next

	if t.store != nil {
		if err := t.store.Save(next); err != nil {
			t.log.Warn("token_persist_failed", zap.Error(err))
		}
	}

	t.log.Info("token_refreshed", zap.Time("expires_at", next.ExpiresAt))
	return next.AccessToken, nil
}

// TokenStatus is a point-in-time snapshot for logs and health checks.
type TokenStatus struct {
	IssuedAt     time.Time
	ExpiresAt    time.Time
	Remaining    time.Duration
	NeedsRefresh bool
}

func (t *TokenLifecycle) Status() TokenStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	st := TokenStatus{NeedsRefresh: !t.rec.Valid(t.margin, now)}
	if t.rec != nil {
		st.IssuedAt = t.rec.IssuedAt
		st.ExpiresAt = t.rec.ExpiresAt
		st.Remaining = t.rec.ExpiresAt.Sub(now)
	}
	return st
}

// RecordFromGrant stamps a grant into a persistable record.
func RecordFromGrant(grant *TokenGrant, now time.Time) *TokenRecord {
	now = now.UTC()
	return &TokenRecord{
		AccessToken:  grant.AccessToken,
		RefreshToken: grant.RefreshToken,
		IssuedAt:     now,
		ExpiresAt:    grantExpiry(grant, now),
	}
}

// grantExpiry prefers the exp claim inside the access token over the
// endpoint's declared TTL.
func grantExpiry(grant *TokenGrant, now time.Time) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(grant.AccessToken, claims); err == nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			return exp.Time.UTC()
		}
	}
	ttl := grant.ExpiresIn
	if ttl <= 0 {
		ttl = 3600
	}
	return now.Add(time.Duration(ttl) * time.Second)
}
