package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/backfield/gridiron/internal/domain/auction"
)

var _ auction.Storage = (*AuctionRepo)(nil)

const defaultBatchSize = 50

type AuctionRepo struct {
	db        *DB
	batchSize int
}

func NewAuctionRepo(db *DB, batchSize int) *AuctionRepo {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &AuctionRepo{db: db, batchSize: batchSize}
}

const (
	qAuctionUpsert = `
INSERT INTO auction_events (
    trade_id, buy_now_price, current_price, starting_price,
    expires, seller_id, platform, item, raw
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (trade_id) DO UPDATE SET
    buy_now_price  = EXCLUDED.buy_now_price,
    current_price  = EXCLUDED.current_price,
    starting_price = EXCLUDED.starting_price,
    expires        = EXCLUDED.expires,
    seller_id      = EXCLUDED.seller_id,
    platform       = EXCLUDED.platform,
    item           = EXCLUDED.item,
    raw            = EXCLUDED.raw;`

	qAuctionByTradeID = `
SELECT trade_id, buy_now_price, current_price, starting_price,
       expires, seller_id, platform, item, raw
FROM auction_events
WHERE trade_id = $1;`

	qAuctionRecent = `
SELECT trade_id, buy_now_price, current_price, starting_price,
       expires, seller_id, platform, item, raw
FROM auction_events
ORDER BY updated_at DESC, trade_id DESC
LIMIT $1;`
)

func scanAuction(row pgx.Row, rec *auction.Record) error {
	if err := row.Scan(
		&rec.TradeID,
		&rec.BuyNowPrice,
		&rec.CurrentPrice,
		&rec.StartingPrice,
		&rec.Expires,
		&rec.SellerID,
		&rec.Platform,
		&rec.Item,
		&rec.Raw,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("scan auction: %w", err)
	}
	return nil
}

// Persist upserts every record keyed by trade_id, chunked so a large page
// never turns into one oversized batch.
func (r *AuctionRepo) Persist(ctx context.Context, recs []auction.Record) error {
	if len(recs) == 0 {
		return nil
	}
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	for start := 0; start < len(recs); start += r.batchSize {
		end := start + r.batchSize
		if end > len(recs) {
			end = len(recs)
		}
		if err := r.upsertChunk(ctx, recs[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (r *AuctionRepo) upsertChunk(ctx context.Context, recs []auction.Record) error {
	b := &pgx.Batch{}
	for _, rec := range recs {
		b.Queue(qAuctionUpsert,
			rec.TradeID,
			rec.BuyNowPrice,
			rec.CurrentPrice,
			rec.StartingPrice,
			rec.Expires,
			rec.SellerID,
			rec.Platform,
			rec.Item,
			rec.Raw,
		)
	}

	br := r.db.Pool.SendBatch(ctx, b)
	defer func() { _ = br.Close() }()

	for range recs {
		if _, err := br.Exec(); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && strings.HasPrefix(pgErr.Code, "23") {
				return fmt.Errorf("%w: %s", ErrConstraint, pgErr.Message)
			}
			return fmt.Errorf("auction upsert: %w", err)
		}
	}
	return nil
}

func (r *AuctionRepo) GetByTradeID(ctx context.Context, tradeID int64) (*auction.Record, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var rec auction.Record
	if err := scanAuction(r.db.Pool.QueryRow(ctx, qAuctionByTradeID, tradeID), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *AuctionRepo) Recent(ctx context.Context, limit int) ([]auction.Record, error) {
	if limit <= 0 {
		limit = 50
	}
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.Pool.Query(ctx, qAuctionRecent, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent auctions: %w", err)
	}
	defer rows.Close()

	var out []auction.Record
	for rows.Next() {
		var rec auction.Record
		if err := scanAuction(rows, &rec); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}
