package vault

import (
	"context"
	"time"

	"vaultScope/internal/model"
)

// QuoteAsset reads both feeds of an asset and resolves its effective price.
func QuoteAsset(ctx context.Context, source Source, asset model.AssetConfig, now time.Time) model.AssetPrice {
	primary, backup, sel := PriceFeeds(asset, source.FetchFeeds(ctx, asset))
	quoted := model.AssetPrice{
		Asset:      asset.Code,
		Label:      asset.Label,
		Primary:    primary,
		Backup:     backup,
		Selection:  sel,
		PriceFixed: "0",
		QuotedAt:   now.UTC(),
	}
	if sel.PriceFixed != nil {
		quoted.PriceFixed = sel.PriceFixed.String()
	}
	return quoted
}

// Quoter prices assets against a Source using the wall clock.
type Quoter struct {
	source Source
	now    func() time.Time
}

func NewQuoter(source Source) *Quoter {
	return &Quoter{source: source, now: time.Now}
}

func (q *Quoter) Quote(ctx context.Context, asset model.AssetConfig) model.AssetPrice {
	return QuoteAsset(ctx, q.source, asset, q.now())
}
