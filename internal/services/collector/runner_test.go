package collector

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/backfield/gridiron/internal/auth"
	"github.com/backfield/gridiron/internal/blaze"
	config "github.com/backfield/gridiron/internal/config/collector"
	"github.com/backfield/gridiron/internal/repository/ea"
)

func TestTransientFetch(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"canceled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, false},
		{"api error", &blaze.APIError{Code: 2, Name: "ERR_AUTHENTICATION_REQUIRED"}, false},
		{"wrapped api error", fmt.Errorf("fetch: %w", &blaze.APIError{Code: 5}), false},
		{"pool exhausted", fmt.Errorf("%w: no backups", auth.ErrPoolExhausted), false},
		{"refresh failed", auth.ErrRefreshFailed, false},
		{"login failed", auth.ErrLoginFailed, false},
		{"upstream 503", &ea.StatusError{Status: 503, URL: "u"}, true},
		{"upstream 429", &ea.StatusError{Status: 429, URL: "u"}, true},
		{"upstream 404", &ea.StatusError{Status: 404, URL: "u"}, false},
		{"plain network error", errors.New("connection reset"), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, transientFetch(tc.err))
		})
	}
}

func TestRunnerCollectsUntilStopped(t *testing.T) {
	fx := newFetcherFixture(
		auth.SessionTicket{Ticket: "seeded", BlazeID: 1, PersonaID: 2},
		func(string) ([]byte, error) {
			return searchBody(`{"tradeId":55,"buyNowPrice":1000}`), nil
		},
	)
	store := &memorySink{}
	pipe := NewPipeline(zap.NewNop())
	pipe.AddStorage("mem", store)

	r := New(zap.NewNop(), fx.fetch, pipe, fx.pool, &config.Collect{
		Poll:           15 * time.Millisecond,
		BackupInterval: time.Hour,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()
	err := r.Run(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// the first tick fires immediately, the ticker adds more
	if got := store.callCount(); got < 2 {
		t.Fatalf("expected at least 2 collected pages, got %d", got)
	}
	require.Len(t, store.lastBatch(), 1)
	require.Equal(t, int64(55), store.lastBatch()[0].TradeID)
}
