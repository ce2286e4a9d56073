package views

import (
	"strconv"

	"github.com/gabrielcipriano/bittensor-explorer/service/format"
	"github.com/gabrielcipriano/bittensor-explorer/service/pricefeed"
)

// NavLink is a header link, optionally with a submenu.
type NavLink struct {
	Label    string
	URL      string
	External bool
	Children []NavLink
}

// Header is the template model of the site header.
type Header struct {
	Symbol      string
	Price       string
	Change      string
	ChangeClass string
	ChangeArrow string
	Volume24h   string
	MarketCap   string
	SearchURL   string
	StakeURL    string
	BuyLinks    []NavLink
	Nav         []NavLink
}

const (
	searchURL = "https://x.taostats.io/search"
	stakeURL  = "https://delegate.taostats.io"
)

var buyLinks = []NavLink{
	{Label: "MEXC", URL: "https://www.mexc.com/register?inviteCode=1M9bg", External: true},
	{Label: "GATE.IO", URL: "https://www.gate.io/trade/TAO_USDT?ref=A1QSXVla&ref_type=106", External: true},
	{Label: "BITGET", URL: "https://partner.bitget.com/bg/X0Z47N", External: true},
	{Label: "TENSOR EXCHANGE", URL: "https://tensor.exchange/", External: true},
	{Label: "UNISWAP(WTAO)", URL: "https://app.uniswap.org/#/swap?outputCurrency=0x77e06c9eccf2e797fd462a92b6d7642ef85b0a44", External: true},
}

var navLinks = []NavLink{
	{Label: "Home", URL: "/"},
	{Label: "Subnets", URL: "https://taostats.io/subnets/netuid-1/", External: true},
	{Label: "Blockchain", URL: "https://x.taostats.io", External: true, Children: []NavLink{
		{Label: "Accounts", URL: "https://x.taostats.io/#accounts", External: true},
		{Label: "Transfers", URL: "https://x.taostats.io/#transfers", External: true},
		{Label: "Blocks", URL: "https://x.taostats.io/#blocks", External: true},
		{Label: "Tokenomics", URL: "https://taostats.io/tokenomics/", External: true},
	}},
	{Label: "Validators", URL: "https://taostats.io/verified-validators/", External: true},
}

// NewHeader builds the header from the latest token stats. Missing stats render as zeros.
func NewHeader(symbol string, stats *pricefeed.TokenStats) Header {
	var s pricefeed.TokenStats
	if stats != nil {
		s = *stats
	}

	h := Header{
		Symbol:    symbol,
		Price:     strconv.FormatFloat(s.Price, 'f', -1, 64),
		Change:    strconv.FormatFloat(s.PriceChange24h, 'f', -1, 64) + "%",
		Volume24h: format.NFormatter(s.Volume24h, 2),
		MarketCap: format.NFormatter(s.MarketCap, 2),
		SearchURL: searchURL,
		StakeURL:  stakeURL,
		BuyLinks:  buyLinks,
		Nav:       navLinks,
	}
	switch {
	case s.PriceChange24h > 0:
		h.ChangeClass, h.ChangeArrow = "up", "▴"
	case s.PriceChange24h < 0:
		h.ChangeClass, h.ChangeArrow = "down", "▾"
	}
	return h
}
