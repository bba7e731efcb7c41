package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultMintCooldown spaces out login calls; the backend tolerates only
	// a handful of fresh logins per short window.
	DefaultMintCooldown = 10 * time.Second

	// DefaultMaxBackups keeps one primary plus two spares on hand.
	DefaultMaxBackups = 2

	// maxTicketFailures is the count at which a ticket stops being handed out.
	maxTicketFailures = 3
)

// SessionTicket is a reusable login credential. A ticket survives many calls
// and is retired only after repeated failures or backup-pool pressure.
type SessionTicket struct {
	Ticket      string
	BlazeID     int64
	PersonaID   int64
	DisplayName string
	GeneratedAt time.Time
	Failures    int
}

// Healthy reports whether the ticket may still be handed to callers.
func (s *SessionTicket) Healthy() bool { return s.Failures < maxTicketFailures }

// TokenSource supplies a valid access token for minting.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// LoginEndpoint mints a session ticket from an access token.
type LoginEndpoint interface {
	Login(ctx context.Context, accessToken string) (*SessionTicket, error)
}

// TicketStore persists the active ticket so other tooling can reuse it.
type TicketStore interface {
	SaveTicket(t *SessionTicket) error
}

// PoolConfig tunes the ticket pool. Zero values take defaults.
type PoolConfig struct {
	MaxBackups   int
	MintCooldown time.Duration
}

// TicketPool owns one primary ticket and a FIFO list of backups. The state
// mutex guards the pool and is held only for short sections; a separate
// generation mutex spans cooldown waits and login calls so concurrent callers
// coalesce on a single mint attempt.
type TicketPool struct {
	mu       sync.Mutex
	primary  *SessionTicket
	backups  []*SessionTicket
	lastMint time.Time

	genMu sync.Mutex

	tokens TokenSource
	ep     LoginEndpoint
	store  TicketStore

	maxBackups int
	cooldown   time.Duration
	now        func() time.Time
	sleep      func(ctx context.Context, d time.Duration) error
	log        *zap.Logger
}

func NewTicketPool(cfg PoolConfig, tokens TokenSource, ep LoginEndpoint, store TicketStore, log *zap.Logger) *TicketPool {
	if log == nil {
		log = zap.NewNop()
	}
	maxBackups := cfg.MaxBackups
	if maxBackups <= 0 {
		maxBackups = DefaultMaxBackups
	}
	cooldown := cfg.MintCooldown
	if cooldown <= 0 {
		cooldown = DefaultMintCooldown
	}
	return &TicketPool{
		tokens:     tokens,
		ep:         ep,
		store:      store,
		maxBackups: maxBackups,
		cooldown:   cooldown,
		now:        time.Now,
		sleep:      sleepCtx,
		log:        log.With(zap.String("component", "auth.tickets")),
	}
}

// Seed installs a previously persisted ticket as the primary without a login
// call.
func (p *TicketPool) Seed(t SessionTicket) {
	p.mu.Lock()
	p.primary = &t
	p.mu.Unlock()
}

// Ticket returns the primary ticket, promoting a backup or minting a fresh
// one when the primary is absent or unhealthy.
func (p *TicketPool) Ticket(ctx context.Context) (SessionTicket, error) {
	p.mu.Lock()
	if p.primary != nil && p.primary.Healthy() {
		t := *p.primary
		p.mu.Unlock()
		return t, nil
	}
	p.mu.Unlock()

	if err := p.replacePrimary(ctx); err != nil {
		if ctx.Err() != nil {
			return SessionTicket{}, err
		}
		return SessionTicket{}, fmt.Errorf("%w: %w", ErrPoolExhausted, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.primary == nil {
		return SessionTicket{}, ErrPoolExhausted
	}
	return *p.primary, nil
}

// MarkFailed records caller feedback for a ticket. The third strike on the
// primary triggers promotion or a fresh mint; a struck-out backup is evicted.
func (p *TicketPool) MarkFailed(ctx context.Context, ticket string) error {
	p.mu.Lock()
	if p.primary != nil && p.primary.Ticket == ticket {
		p.primary.Failures++
		failures := p.primary.Failures
		healthy := p.primary.Healthy()
		p.mu.Unlock()
		p.log.Warn("primary_ticket_failed", zap.Int("failures", failures))
		if healthy {
			return nil
		}
		return p.replacePrimary(ctx)
	}
	for i, b := range p.backups {
		if b.Ticket != ticket {
			continue
		}
		b.Failures++
		if !b.Healthy() {
			p.backups = append(p.backups[:i], p.backups[i+1:]...)
			p.log.Warn("backup_ticket_evicted", zap.Int("failures", b.Failures))
		}
		break
	}
	p.mu.Unlock()
	return nil
}

// EnsureBackups tops the backup list up to capacity, spacing mints by the
// cooldown. It stops at the first mint failure; the next maintenance pass
// resumes from there.
func (p *TicketPool) EnsureBackups(ctx context.Context) error {
	p.mu.Lock()
	needed := p.maxBackups - len(p.backups)
	p.mu.Unlock()
	if needed <= 0 {
		return nil
	}
	p.log.Info("backfilling_tickets", zap.Int("needed", needed))

	for i := 0; i < needed; i++ {
		p.genMu.Lock()
		if err := p.waitCooldown(ctx); err != nil {
			p.genMu.Unlock()
			return err
		}
		t, err := p.mint(ctx)
		p.genMu.Unlock()
		if err != nil {
			return err
		}
		p.addBackup(t)
	}
	return nil
}

// Mint forces a fresh ticket under the shared generation lock. With promote
// set the new ticket becomes primary; otherwise it joins the backups.
func (p *TicketPool) Mint(ctx context.Context, promote bool) (SessionTicket, error) {
	p.genMu.Lock()
	if err := p.waitCooldown(ctx); err != nil {
		p.genMu.Unlock()
		return SessionTicket{}, err
	}
	t, err := p.mint(ctx)
	p.genMu.Unlock()
	if err != nil {
		return SessionTicket{}, err
	}
	if promote {
		p.mu.Lock()
		p.primary = t
		p.mu.Unlock()
	} else {
		p.addBackup(t)
	}
	return *t, nil
}

// PoolStatus is a snapshot for logs and health checks.
type PoolStatus struct {
	HasPrimary      bool
	PrimaryHealthy  bool
	PrimaryFailures int
	Backups         int
	LastMint        time.Time
}

func (p *TicketPool) Status() PoolStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	st := PoolStatus{Backups: len(p.backups), LastMint: p.lastMint}
	if p.primary != nil {
		st.HasPrimary = true
		st.PrimaryHealthy = p.primary.Healthy()
		st.PrimaryFailures = p.primary.Failures
	}
	return st
}

// replacePrimary promotes the oldest healthy backup, or mints when none
// remain. Unhealthy backups encountered on the way are discarded.
func (p *TicketPool) replacePrimary(ctx context.Context) error {
	p.genMu.Lock()
	defer p.genMu.Unlock()

	p.mu.Lock()
	// Another caller may have fixed the pool while we waited on the lock.
	if p.primary != nil && p.primary.Healthy() {
		p.mu.Unlock()
		return nil
	}
	p.primary = nil
	for len(p.backups) > 0 {
		b := p.backups[0]
		p.backups = p.backups[1:]
		if b.Healthy() {
			p.primary = b
			p.mu.Unlock()
			p.log.Info("ticket_promoted",
				zap.Int("failures", b.Failures),
				zap.Time("generated_at", b.GeneratedAt))
			return nil
		}
	}
	p.mu.Unlock()

	if err := p.waitCooldown(ctx); err != nil {
		return err
	}
	t, err := p.mint(ctx)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.primary = t
	p.mu.Unlock()
	return nil
}

// mint performs one login round trip and stamps the cooldown clock on
// success only.
func (p *TicketPool) mint(ctx context.Context) (*SessionTicket, error) {
	access, err := p.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}
	t, err := p.ep.Login(ctx, access)
	if err != nil {
		p.log.Warn("ticket_mint_failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrLoginFailed, err)
	}
	if t.GeneratedAt.IsZero() {
		t.GeneratedAt = p.now().UTC()
	}

	p.mu.Lock()
	p.lastMint = p.now()
	p.mu.Unlock()

	if p.store != nil {
		if err := p.store.SaveTicket(t); err != nil {
			p.log.Warn("ticket_persist_failed", zap.Error(err))
		}
	}
	p.log.Info("ticket_minted",
		zap.Int64("blaze_id", t.BlazeID),
		zap.String("persona", t.DisplayName))
	return t, nil
}

func (p *TicketPool) addBackup(t *SessionTicket) {
	p.mu.Lock()
	p.backups = append(p.backups, t)
	for len(p.backups) > p.maxBackups {
		dropped := p.backups[0]
		p.backups = p.backups[1:]
		p.log.Info("backup_ticket_rotated", zap.Time("generated_at", dropped.GeneratedAt))
	}
	p.mu.Unlock()
}

// waitCooldown blocks until the inter-mint spacing allows another login.
// Callers hold genMu, so the stamp cannot move underneath the wait.
func (p *TicketPool) waitCooldown(ctx context.Context) error {
	p.mu.Lock()
	last := p.lastMint
	p.mu.Unlock()
	if last.IsZero() {
		return nil
	}
	elapsed := p.now().Sub(last)
	if elapsed >= p.cooldown {
		return nil
	}
	wait := p.cooldown - elapsed
	p.log.Debug("mint_cooldown", zap.Duration("wait", wait))
	return p.sleep(ctx, wait)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
