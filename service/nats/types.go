package nats

import (
	"time"

	"github.com/gabrielcipriano/bittensor-explorer/service/db"
)

// TokenStatsEvent is a market snapshot published to the subject "stats.{symbol}" in JetStream.
type TokenStatsEvent struct {
	Symbol         string  `json:"symbol"`
	Price          float64 `json:"price"`
	PriceChange24h float64 `json:"price_change_24h"`
	Volume24h      float64 `json:"volume_24h"`
	MarketCap      float64 `json:"market_cap"`

	FetchedAt   time.Time `json:"fetched_at"`
	PublishedAt time.Time `json:"published_at"`
}

// Subject returns the JetStream subject of the event.
func (e *TokenStatsEvent) Subject() string {
	return SubjectPrefix + e.Symbol
}

// FromDBTokenStats converts a stored snapshot to a TokenStatsEvent for publishing.
func FromDBTokenStats(s *db.TokenStats) *TokenStatsEvent {
	return &TokenStatsEvent{
		Symbol:         s.Symbol,
		Price:          s.Price,
		PriceChange24h: s.PriceChange24h,
		Volume24h:      s.Volume24h,
		MarketCap:      s.MarketCap,
		FetchedAt:      s.FetchedAt,
		PublishedAt:    time.Now().UTC(),
	}
}
