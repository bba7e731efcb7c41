package kafka

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/backfield/gridiron/internal/domain/auction"
)

const DefaultAuctionTopic = "gridiron.auctions.observed"

// AuctionEventPayload is the wire shape for one observed auction.
type AuctionEventPayload struct {
	EventID    string         `json:"event_id"`
	ObservedAt time.Time      `json:"observed_at"`
	Auction    auction.Record `json:"auction"`
}

type AuctionEventsKafka struct {
	p   *Producer
	now func() time.Time
}

func NewAuctionEventsKafka(p *Producer) *AuctionEventsKafka {
	return &AuctionEventsKafka{p: p, now: time.Now}
}

var _ auction.Publisher = (*AuctionEventsKafka)(nil)

// Publish emits one message per record, keyed by trade id so updates for
// the same auction land on the same partition.
func (e *AuctionEventsKafka) Publish(ctx context.Context, recs []auction.Record) error {
	for _, rec := range recs {
		payload := AuctionEventPayload{
			EventID:    uuid.NewString(),
			ObservedAt: e.now().UTC(),
			Auction:    rec,
		}
		if err := e.p.PublishJSON(ctx, KeyFromInt64(rec.TradeID), payload); err != nil {
			return err
		}
	}
	return nil
}
