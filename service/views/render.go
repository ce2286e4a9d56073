// Package views binds explorer resources to tables, charts and the site header.
package views

import (
	"fmt"
	"html/template"
	"math"
	"math/big"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/gabrielcipriano/bittensor-explorer/service/format"
	"github.com/gabrielcipriano/bittensor-explorer/service/ss58"
)

func link(href, text string) template.HTML {
	return template.HTML(fmt.Sprintf(`<a href="%s">%s</a>`,
		template.HTMLEscapeString(href), template.HTMLEscapeString(text)))
}

// accountAddress renders an address in the network format, shortened, with the
// full address in the title. linkPath, when set, makes it a link.
func accountAddress(address string, prefix uint16, linkPath string) template.HTML {
	encoded := ss58.Reencode(address, prefix)
	short := template.HTMLEscapeString(ss58.Shorten(encoded))
	title := template.HTMLEscapeString(encoded)
	if linkPath == "" {
		return template.HTML(fmt.Sprintf(`<span class="address" title="%s">%s</span>`, title, short))
	}
	return template.HTML(fmt.Sprintf(`<a class="address" href="%s" title="%s">%s</a>`,
		template.HTMLEscapeString(linkPath), title, short))
}

func accountPath(network, address string) string {
	return fmt.Sprintf("/%s/account/%s", network, address)
}

// currency renders a raw amount with the full value in the title.
func currency(amount *big.Int, symbol string) template.HTML {
	full := format.FormatRawAmount(amount, symbol, format.Decimals)
	short := format.FormatRawAmount(amount, symbol, format.Optimal)
	return template.HTML(fmt.Sprintf(`<span class="currency" title="%s">%s</span>`,
		template.HTMLEscapeString(full), template.HTMLEscapeString(short)))
}

const utcLayout = "2006-01-02 15:04:05"

// parseTimestamp accepts the RFC 3339 timestamps of the indexers and the
// millisecond epoch strings some of them emit.
func parseTimestamp(ts string) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
		return t.UTC(), true
	}
	if ms, err := strconv.ParseInt(ts, 10, 64); err == nil && ms > 0 {
		return time.UnixMilli(ms).UTC(), true
	}
	return time.Time{}, false
}

// blockTime renders a block timestamp relative to now with the UTC time in the title.
func blockTime(ts string, now time.Time) template.HTML {
	t, ok := parseTimestamp(ts)
	if !ok {
		return ""
	}
	return template.HTML(fmt.Sprintf(`<span class="time" title="%s (UTC)">%s</span>`,
		t.Format(utcLayout), template.HTMLEscapeString(fromNow(t, now))))
}

const oneDay = 24 * time.Hour

// relTimeMagnitudes words relative times the way the web explorer does
// ("a few seconds ago", "an hour ago", "3 days ago").
var relTimeMagnitudes = []humanize.RelTimeMagnitude{
	{D: time.Minute, Format: "a few seconds %s"},
	{D: 2 * time.Minute, Format: "a minute %s"},
	{D: time.Hour, Format: "%d minutes %s", DivBy: time.Minute},
	{D: 2 * time.Hour, Format: "an hour %s"},
	{D: oneDay, Format: "%d hours %s", DivBy: time.Hour},
	{D: 2 * oneDay, Format: "a day %s"},
	{D: 30 * oneDay, Format: "%d days %s", DivBy: oneDay},
	{D: 60 * oneDay, Format: "a month %s"},
	{D: 365 * oneDay, Format: "%d months %s", DivBy: 30 * oneDay},
	{D: 2 * 365 * oneDay, Format: "a year %s"},
	{D: math.MaxInt64, Format: "%d years %s", DivBy: 365 * oneDay},
}

func fromNow(t, now time.Time) string {
	return humanize.CustomRelTime(t, now, "ago", "from now", relTimeMagnitudes)
}
