// Package pricefeed reads token market data from CoinGecko.
package pricefeed

import "time"

// TokenStats is a market snapshot of the native token, quoted in USD.
type TokenStats struct {
	Symbol         string    `json:"symbol"`
	Price          float64   `json:"price"`
	PriceChange24h float64   `json:"priceChange24h"`
	Volume24h      float64   `json:"volume24h"`
	MarketCap      float64   `json:"marketCap"`
	FetchedAt      time.Time `json:"fetchedAt"`
}

// SimplePrice is one token entry of the CoinGecko /simple/price response.
type SimplePrice struct {
	USD          float64 `json:"usd"`
	USD24hChange float64 `json:"usd_24h_change"`
	USD24hVol    float64 `json:"usd_24h_vol"`
	USDMarketCap float64 `json:"usd_market_cap"`
}
