package model

import "time"

// AssetPrice is the global price of one asset from both of its feeds.
type AssetPrice struct {
	Asset      string        `json:"asset"`
	Label      string        `json:"label"`
	Primary    PoolSnapshot  `json:"primary"`
	Backup     PoolSnapshot  `json:"backup"`
	Selection  FeedSelection `json:"selection"`
	PriceFixed string        `json:"price_fixed"`
	QuotedAt   time.Time     `json:"quoted_at"`
}
