package collector

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/backfield/gridiron/internal/auth"
	"github.com/backfield/gridiron/internal/blaze"
	config "github.com/backfield/gridiron/internal/config/collector"
	"github.com/backfield/gridiron/internal/obs/retry"
	"github.com/backfield/gridiron/internal/repository/ea"
)

type Runner struct {
	Log     *zap.Logger
	Fetch   *Fetcher
	Pipe    *Pipeline
	Tickets *auth.TicketPool
	Cfg     *config.Collect

	mFetches  prometheus.Counter
	mErr      prometheus.Counter
	mReauth   prometheus.Counter
	mAuctions prometheus.Counter
	mFetchDur prometheus.Histogram
}

func New(log *zap.Logger, fetch *Fetcher, pipe *Pipeline, tickets *auth.TicketPool, cfg *config.Collect) *Runner {
	return &Runner{
		Log:     log,
		Fetch:   fetch,
		Pipe:    pipe,
		Tickets: tickets,
		Cfg:     cfg,
		mFetches: promauto.NewCounter(prometheus.CounterOpts{
			Name: "collector_fetches_total", Help: "Auction search round trips attempted",
		}),
		mErr: promauto.NewCounter(prometheus.CounterOpts{
			Name: "collector_errors_total", Help: "Errors in the collect loop",
		}),
		mReauth: promauto.NewCounter(prometheus.CounterOpts{
			Name: "collector_reauth_total", Help: "Single-shot re-auth recoveries",
		}),
		mAuctions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "collector_auctions_total", Help: "Normalized auctions fanned out to sinks",
		}),
		mFetchDur: promauto.NewHistogram(prometheus.HistogramOpts{
			Name: "collector_fetch_duration_seconds", Help: "Fetch plus fan-out duration",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// transientFetch picks which fetch errors deserve an in-tick retry. Auth
// problems never do: the fetcher's re-auth path already ran, and hammering
// the login endpoint only burns the mint cooldown.
func transientFetch(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *blaze.APIError
	if errors.As(err, &apiErr) {
		return false
	}
	if errors.Is(err, auth.ErrPoolExhausted) || errors.Is(err, auth.ErrRefreshFailed) || errors.Is(err, auth.ErrLoginFailed) {
		return false
	}
	var st *ea.StatusError
	if errors.As(err, &st) {
		return st.Status >= 500 || st.Status == 429
	}
	return true
}

func (r *Runner) tick(ctx context.Context) {
	start := time.Now()

	var res FetchResult
	err := retry.Do(ctx, func() error {
		var ferr error
		res, ferr = r.Fetch.FetchOnce(ctx)
		return ferr
	}, retry.FetchPolicy(r.Log, transientFetch))

	r.mFetches.Inc()
	if res.Reauthed {
		r.mReauth.Inc()
	}
	if err != nil {
		r.mErr.Inc()
		if ctx.Err() == nil {
			r.Log.Warn("fetch error", zap.Error(err))
		}
		r.mFetchDur.Observe(time.Since(start).Seconds())
		return
	}

	n, perr := r.Pipe.Process(ctx, res.Body)
	if perr != nil {
		r.mErr.Inc()
		r.Log.Warn("pipeline error", zap.Error(perr))
	}
	if n > 0 {
		r.mAuctions.Add(float64(n))
		r.Log.Debug("collected page",
			zap.Int("page", res.Page),
			zap.Int("auctions", n),
			zap.Uint32("request_id", res.RequestID))
	}
	r.mFetchDur.Observe(time.Since(start).Seconds())
}

func (r *Runner) maintain(ctx context.Context) {
	if err := r.Tickets.EnsureBackups(ctx); err != nil && ctx.Err() == nil {
		r.Log.Warn("backup maintenance", zap.Error(err))
	}
}

func (r *Runner) Run(ctx context.Context) error {
	poll := r.Cfg.Poll
	if poll <= 0 {
		poll = 10 * time.Second
	}
	backupEvery := r.Cfg.BackupInterval
	if backupEvery <= 0 {
		backupEvery = 5 * time.Minute
	}

	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	maint := time.NewTicker(backupEvery)
	defer maint.Stop()

	r.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.tick(ctx)
		case <-maint.C:
			r.maintain(ctx)
		}
	}
}
