package collector

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/backfield/gridiron/internal/domain/auction"
)

type memorySink struct {
	mu      sync.Mutex
	calls   int
	err     error
	batches [][]auction.Record
}

func (m *memorySink) Persist(_ context.Context, recs []auction.Record) error { return m.record(recs) }
func (m *memorySink) Publish(_ context.Context, recs []auction.Record) error { return m.record(recs) }

func (m *memorySink) record(recs []auction.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return m.err
	}
	m.batches = append(m.batches, recs)
	return nil
}

func (m *memorySink) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *memorySink) lastBatch() []auction.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.batches) == 0 {
		return nil
	}
	return m.batches[len(m.batches)-1]
}

func searchBody(details ...string) []byte {
	return []byte(`{"responseInfo":{"value":{"details":[` + strings.Join(details, ",") + `]}}}`)
}

func TestPipelineNormalizesAndFansOut(t *testing.T) {
	store := &memorySink{}
	pub := &memorySink{}
	p := NewPipeline(zap.NewNop())
	p.AddStorage("pg", store)
	p.AddPublisher("redis", pub)
	require.Equal(t, 2, p.SinkCount())

	body := searchBody(
		`{"tradeId":101,"buyNowPrice":5000,"currentBid":1200,"itemData":{"platform":"xbsx"}}`,
		`{"buyNowPrice":9999}`,
		`{"tradeId":102,"buyNowPrice":7000}`,
	)
	n, err := p.Process(context.Background(), body)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	for _, s := range []*memorySink{store, pub} {
		batch := s.lastBatch()
		require.Len(t, batch, 2)
		require.Equal(t, int64(101), batch[0].TradeID)
		require.Equal(t, int64(102), batch[1].TradeID)
	}
}

func TestPipelineEmptyPageIsNotAnError(t *testing.T) {
	store := &memorySink{}
	p := NewPipeline(zap.NewNop())
	p.AddStorage("pg", store)

	n, err := p.Process(context.Background(), searchBody())
	require.NoError(t, err)
	require.Equal(t, 0, n)
	require.Equal(t, 0, store.callCount())
}

func TestPipelineDecodeErrorBubbles(t *testing.T) {
	p := NewPipeline(zap.NewNop())
	n, err := p.Process(context.Background(), []byte("not json"))
	require.Error(t, err)
	require.Equal(t, 0, n)
}

func TestPipelineSinkFailureDoesNotBlockOthers(t *testing.T) {
	store := &memorySink{err: errors.New("db down")}
	pub := &memorySink{}
	p := NewPipeline(zap.NewNop())
	p.AddStorage("pg", store)
	p.AddPublisher("redis", pub)

	n, err := p.Process(context.Background(), searchBody(`{"tradeId":7}`))
	require.Equal(t, 1, n)
	require.Error(t, err)
	if !strings.Contains(err.Error(), "pg:") {
		t.Fatalf("error should name the failing sink: %v", err)
	}

	require.Len(t, pub.lastBatch(), 1)
	// failing sink was retried to exhaustion
	require.Equal(t, 4, store.callCount())
}
