package collector

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/backfield/gridiron/internal/auth"
	"github.com/backfield/gridiron/internal/blaze"
)

// ProcessAPI is the slice of the EA client the fetcher needs.
type ProcessAPI interface {
	Invoke(ctx context.Context, ticket string, env blaze.ProcessEnvelope) ([]byte, error)
}

// TokenRefresher forces a fresh access token during the re-auth path.
type TokenRefresher interface {
	Refresh(ctx context.Context) (string, error)
}

// SearchPayload is the Mobile_SearchAuctions request body. An empty search
// returns the newest listings.
type SearchPayload struct {
	Filters  []any  `json:"filters"`
	ItemName string `json:"itemName"`
}

// FetchResult carries one raw search response plus what it took to get it.
type FetchResult struct {
	Body      []byte
	RequestID uint32
	Page      int
	Reauthed  bool
}

// Fetcher turns credential material into one auction search round trip.
// Request ids start at a random 32-bit seed and increment per request, the
// same hybrid scheme the companion app itself uses.
type Fetcher struct {
	Strategy   blaze.Strategy
	DeviceID   string
	MessageTTL time.Duration

	Tickets *auth.TicketPool
	Tokens  TokenRefresher
	Bundles BundleSource
	Process ProcessAPI
	Log     *zap.Logger

	mu        sync.Mutex
	page      int
	requestID uint32

	now func() time.Time
}

func NewFetcher(strategy blaze.Strategy, deviceID string, tickets *auth.TicketPool, tokens TokenRefresher, bundles BundleSource, process ProcessAPI, log *zap.Logger) *Fetcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Fetcher{
		Strategy:   strategy,
		DeviceID:   deviceID,
		MessageTTL: 100 * time.Second,
		Tickets:    tickets,
		Tokens:     tokens,
		Bundles:    bundles,
		Process:    process,
		Log:        log.With(zap.String("component", "collector.fetcher")),
		requestID:  rand.Uint32(),
		now:        time.Now,
	}
}

// FetchOnce performs one search. An in-band auth error triggers the re-auth
// path at most once: refresh the token, rotate the signing bundle, mint a
// fresh primary ticket, then retry.
func (f *Fetcher) FetchOnce(ctx context.Context) (FetchResult, error) {
	tr := otel.Tracer("collector.fetcher")
	ctx, span := tr.Start(ctx, "collector.fetch")
	defer span.End()

	res := FetchResult{Page: f.nextPage()}

	ticket, err := f.Tickets.Ticket(ctx)
	if err != nil {
		span.RecordError(err)
		return res, err
	}

	body, reqID, err := f.invoke(ctx, ticket)
	res.RequestID = reqID
	if err == nil {
		res.Body = body
		span.SetAttributes(attribute.Int("page", res.Page))
		return res, nil
	}

	var apiErr *blaze.APIError
	if !errors.As(err, &apiErr) || !apiErr.AuthStale() {
		span.RecordError(err)
		return res, err
	}

	f.Log.Warn("auth_error_retry",
		zap.Int64("code", apiErr.Code),
		zap.String("name", apiErr.Name))
	res.Reauthed = true

	_ = f.Tickets.MarkFailed(ctx, ticket.Ticket)
	if _, err := f.Tokens.Refresh(ctx); err != nil {
		span.RecordError(err)
		return res, err
	}
	fresh, err := f.Tickets.Mint(ctx, true)
	if err != nil {
		span.RecordError(err)
		return res, err
	}
	f.Log.Info("refreshed_session_ticket", zap.Int64("blaze_id", fresh.BlazeID))

	body, reqID, err = f.invoke(ctx, fresh)
	res.RequestID = reqID
	if err != nil {
		span.RecordError(err)
		return res, err
	}
	res.Body = body
	span.SetAttributes(attribute.Int("page", res.Page), attribute.Bool("reauthed", true))
	return res, nil
}

// invoke assembles the envelope with fresh signing material and posts it.
func (f *Fetcher) invoke(ctx context.Context, ticket auth.SessionTicket) ([]byte, uint32, error) {
	reqID := f.nextRequestID()
	expires := f.now().UTC().Add(f.MessageTTL)

	// The native signer keys the payload on the persona, falling back to
	// the blaze user id when no persona was selected.
	persona := ticket.PersonaID
	if persona == 0 {
		persona = ticket.BlazeID
	}

	bundle, err := f.Bundles.Bundle(persona, reqID, expires)
	if err != nil {
		return nil, reqID, err
	}

	env, err := blaze.NewEnvelope(blaze.ProcessCall{
		Strategy:  f.Strategy,
		Operation: blaze.OpSearchAuctions,
		Payload:   SearchPayload{Filters: []any{}},
		DeviceID:  f.DeviceID,
		Bundle:    bundle,
		ExpiresAt: expires,
	})
	if err != nil {
		return nil, reqID, err
	}

	body, err := f.Process.Invoke(ctx, ticket.Ticket, env)
	return body, reqID, err
}

func (f *Fetcher) nextRequestID() uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.requestID
	f.requestID++
	return id
}

func (f *Fetcher) nextPage() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.page
	f.page++
	return p
}
