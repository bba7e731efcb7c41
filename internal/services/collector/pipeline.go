package collector

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/backfield/gridiron/internal/domain/auction"
	"github.com/backfield/gridiron/internal/obs"
	"github.com/backfield/gridiron/internal/obs/retry"
)

type sink struct {
	name  string
	write func(ctx context.Context, recs []auction.Record) error
}

// Pipeline decodes a raw search response, normalizes every listing in it,
// and fans the batch out to the configured sinks. Sink failures are retried
// per sink and never block the other sinks.
type Pipeline struct {
	sinks []sink
	log   *zap.Logger
}

func NewPipeline(log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{log: log.With(zap.String("component", "collector.pipeline"))}
}

func (p *Pipeline) AddStorage(name string, s auction.Storage) {
	p.sinks = append(p.sinks, sink{name: name, write: s.Persist})
}

func (p *Pipeline) AddPublisher(name string, pub auction.Publisher) {
	p.sinks = append(p.sinks, sink{name: name, write: pub.Publish})
}

func (p *Pipeline) SinkCount() int { return len(p.sinks) }

// Process handles one response body. The count of normalized records is
// returned even when some sinks fail, so the caller can meter throughput.
func (p *Pipeline) Process(ctx context.Context, body []byte) (int, error) {
	log := obs.WithTrace(ctx, p.log)

	details, err := auction.Details(body)
	if err != nil {
		return 0, fmt.Errorf("decode response: %w", err)
	}

	recs := make([]auction.Record, 0, len(details))
	for _, d := range details {
		rec, err := auction.Normalize(d)
		if err != nil {
			log.Warn("normalize_failed", zap.Error(err))
			continue
		}
		recs = append(recs, rec)
	}
	if len(recs) == 0 {
		return 0, nil
	}

	var errs []error
	for _, s := range p.sinks {
		writeErr := retry.Do(ctx, func() error {
			return s.write(ctx, recs)
		}, retry.SinkPolicy(s.name, log))
		if writeErr != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.name, writeErr))
		}
	}

	log.Info("auctions_processed",
		zap.Int("count", len(recs)),
		zap.Int("sink_errors", len(errs)))
	return len(recs), errors.Join(errs...)
}
