//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/backfield/gridiron/internal/domain/auction"
	kafkaRepo "github.com/backfield/gridiron/internal/repository/kafka"
	pg "github.com/backfield/gridiron/internal/repository/postgres"
	rediscache "github.com/backfield/gridiron/internal/repository/redis"
)

func normalized(t *testing.T, raw json.RawMessage) auction.Record {
	t.Helper()
	rec, err := auction.Normalize(raw)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	return rec
}

func TestAuctionRepo_UpsertRecentAndTrigger(t *testing.T) {
	cfg := LoadCfg()
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	db, err := pg.New(ctx, pg.Config{URL: cfg.DBDSN})
	if err != nil {
		t.Fatalf("pg connect: %v", err)
	}
	defer db.Close()

	// batch of 2 so a five-record page spans three chunks
	repo := pg.NewAuctionRepo(db, 2)

	base := RandID()
	var recs []auction.Record
	for i := int64(0); i < 5; i++ {
		recs = append(recs, normalized(t, SampleAuctionJSON(base+i, 10_000+i, 5_000+i)))
	}
	if err := repo.Persist(ctx, recs); err != nil {
		t.Fatalf("persist: %v", err)
	}

	got, err := repo.GetByTradeID(ctx, base)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.BuyNowPrice != 10_000 || got.Platform == nil || *got.Platform != "xbsx" {
		t.Fatalf("wrong record: %+v", got)
	}

	raw := DBOpen(t, cfg.DBDSN)
	defer raw.Close()
	created1, updated1 := AuctionRowTimes(t, raw, base)

	bump := normalized(t, SampleAuctionJSON(base, 9_000, 8_000))
	if err := repo.Persist(ctx, []auction.Record{bump}); err != nil {
		t.Fatalf("re-persist: %v", err)
	}
	got2, err := repo.GetByTradeID(ctx, base)
	if err != nil {
		t.Fatalf("get after update: %v", err)
	}
	if got2.BuyNowPrice != 9_000 || got2.CurrentPrice != 8_000 {
		t.Fatalf("update not applied: %+v", got2)
	}
	created2, updated2 := AuctionRowTimes(t, raw, base)
	if !created2.Equal(created1) {
		t.Fatalf("created_at moved on update: %v -> %v", created1, created2)
	}
	if !updated2.After(updated1) {
		t.Fatalf("updated_at did not advance: %v -> %v", updated1, updated2)
	}

	recent, err := repo.Recent(ctx, 3)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("recent len=%d want 3", len(recent))
	}
	if recent[0].TradeID != base {
		t.Fatalf("most recently updated row should lead: got %d want %d", recent[0].TradeID, base)
	}
}

func TestRecentCache_PublishKeepsNewestWindow(t *testing.T) {
	cfg := LoadCfg()
	WaitTCP(t, "redis", cfg.RedisAddr, 30*time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cache := rediscache.NewRecentCache(rediscache.Config{
		Addr:        cfg.RedisAddr,
		KeyPrefix:   "companion:",
		RecentKey:   fmt.Sprintf("recent:it:%d", RandID()),
		RecentLimit: 3,
	})
	defer cache.Close()
	if err := cache.Ping(ctx); err != nil {
		t.Fatalf("redis ping: %v", err)
	}

	base := RandID()
	var recs []auction.Record
	for i := int64(0); i < 5; i++ {
		recs = append(recs, normalized(t, SampleAuctionJSON(base+i, 1_000+i, 500)))
	}
	if err := cache.Publish(ctx, recs); err != nil {
		t.Fatalf("publish: %v", err)
	}

	items, err := cache.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("window len=%d want 3", len(items))
	}
	head := normalized(t, items[0])
	if head.TradeID != base+4 {
		t.Fatalf("head should be the last published: got %d want %d", head.TradeID, base+4)
	}
}

func TestAuctionEventsKafka_ProduceConsume(t *testing.T) {
	cfg := LoadCfg()
	EnsureTopic(t, cfg.KafkaBootstrap, cfg.AuctionTopic)

	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	prod := kafkaRepo.NewProducer([]string{cfg.KafkaBootstrap}, cfg.AuctionTopic)
	defer prod.Close()
	events := kafkaRepo.NewAuctionEventsKafka(prod)

	tradeID := RandID()
	rec := normalized(t, SampleAuctionJSON(tradeID, 42_000, 30_000))
	if err := events.Publish(ctx, []auction.Record{rec}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	got := make(chan kafkaRepo.AuctionEventPayload, 1)
	cctx, stop := context.WithCancel(ctx)
	defer stop()
	consumer := kafkaRepo.BootstrapConsumer(ctx, &kafkaRepo.ConsumerConfig{
		Brokers:       []string{cfg.KafkaBootstrap},
		GroupID:       fmt.Sprintf("it-auctions-%d", RandID()),
		Topic:         cfg.AuctionTopic,
		FromBeginning: true,
	}, nil)
	defer consumer.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = consumer.Consume(cctx, kafkaRepo.JSONHandler(func(_ context.Context, _ []byte, p *kafkaRepo.AuctionEventPayload) error {
			// the topic is shared between runs; skip events from other tests
			if p.Auction.TradeID == tradeID {
				select {
				case got <- *p:
				default:
				}
				stop()
			}
			return nil
		}))
	}()

	select {
	case p := <-got:
		if p.EventID == "" || p.Auction.BuyNowPrice != 42_000 {
			t.Fatalf("bad payload: %+v", p)
		}
		if p.ObservedAt.IsZero() {
			t.Fatalf("observed_at missing")
		}
	case <-time.After(60 * time.Second):
		t.Fatalf("no auction event consumed")
	}
	<-done
}
