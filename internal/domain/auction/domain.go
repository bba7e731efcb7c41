package auction

import (
	"encoding/json"
	"fmt"
)

// Record is a normalized auction listing. Raw keeps the untouched source
// object so consumers can reach fields the normalizer does not surface.
type Record struct {
	TradeID       int64           `json:"trade_id"`
	BuyNowPrice   int64           `json:"buy_now_price"`
	CurrentPrice  int64           `json:"current_price"`
	StartingPrice int64           `json:"starting_price"`
	Expires       int64           `json:"expires"`
	SellerID      *int64          `json:"seller_id"`
	Platform      *string         `json:"platform"`
	Item          json.RawMessage `json:"item"`
	Raw           json.RawMessage `json:"raw"`
}

type wireAuction struct {
	TradeID     *json.Number    `json:"tradeId"`
	BuyNowPrice json.Number     `json:"buyNowPrice"`
	CurrentBid  json.Number     `json:"currentBid"`
	StartingBid json.Number     `json:"startingBid"`
	Expires     json.Number     `json:"expires"`
	SellerID    *json.Number    `json:"sellerId"`
	ItemData    json.RawMessage `json:"itemData"`
}

// Normalize maps one raw auction detail onto a Record. tradeId is required;
// every other field defaults when absent.
func Normalize(raw json.RawMessage) (Record, error) {
	var w wireAuction
	if err := json.Unmarshal(raw, &w); err != nil {
		return Record{}, fmt.Errorf("decode auction: %w", err)
	}
	if w.TradeID == nil {
		return Record{}, fmt.Errorf("auction missing tradeId")
	}
	tradeID, err := asInt64(*w.TradeID)
	if err != nil {
		return Record{}, fmt.Errorf("bad tradeId %q: %w", w.TradeID.String(), err)
	}

	rec := Record{
		TradeID:       tradeID,
		BuyNowPrice:   asInt64Default(w.BuyNowPrice, 0),
		CurrentPrice:  asInt64Default(w.CurrentBid, 0),
		StartingPrice: asInt64Default(w.StartingBid, 0),
		Expires:       asInt64Default(w.Expires, 0),
		Item:          w.ItemData,
		Raw:           raw,
	}
	if rec.Item == nil {
		rec.Item = json.RawMessage(`{}`)
	}
	if w.SellerID != nil {
		if id, err := asInt64(*w.SellerID); err == nil {
			rec.SellerID = &id
		}
	}
	if len(w.ItemData) > 0 {
		var item struct {
			Platform *string `json:"platform"`
		}
		if err := json.Unmarshal(w.ItemData, &item); err == nil {
			rec.Platform = item.Platform
		}
	}
	return rec, nil
}

// Details pulls the auction list out of a search response. Both observed
// envelope shapes are accepted.
func Details(body []byte) ([]json.RawMessage, error) {
	var payload struct {
		ResponseInfo struct {
			Value struct {
				Details []json.RawMessage `json:"details"`
			} `json:"value"`
		} `json:"responseInfo"`
		Result struct {
			Data struct {
				Details []json.RawMessage `json:"details"`
			} `json:"Data"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	if len(payload.ResponseInfo.Value.Details) > 0 {
		return payload.ResponseInfo.Value.Details, nil
	}
	return payload.Result.Data.Details, nil
}

func asInt64(n json.Number) (int64, error) {
	if v, err := n.Int64(); err == nil {
		return v, nil
	}
	f, err := n.Float64()
	if err != nil {
		return 0, err
	}
	return int64(f), nil
}

func asInt64Default(n json.Number, def int64) int64 {
	if n == "" {
		return def
	}
	v, err := asInt64(n)
	if err != nil {
		return def
	}
	return v
}
