package views

import (
	"fmt"
	"html/template"
	"strings"
	"time"
)

var chartColors = []string{
	"#ff4d4d", "#21c77b", "#a0a0a0", "#4C3B4D", "#813405",
	"#247BA0", "#606C38", "#727D71", "#474747", "#511730",
}

const (
	chartWidth   = 800
	chartHeight  = 400
	chartPadding = 50
	yTicks       = 4
)

// SVG renders the chart as an inline area chart with a legend.
func (c DelegateHistoryChart) SVG() template.HTML {
	if c.Empty() || len(c.Timestamps) == 0 {
		return ""
	}

	start, end := c.Timestamps[0], c.Timestamps[0]
	for _, t := range c.Timestamps {
		if t.Before(start) {
			start = t
		}
		if t.After(end) {
			end = t
		}
	}
	span := end.Sub(start)
	top := c.Max
	if top <= 0 {
		top = 1
	}

	plotW := float64(chartWidth - 2*chartPadding)
	plotH := float64(chartHeight - 2*chartPadding)
	x := func(t time.Time) float64 {
		if span <= 0 {
			return chartPadding + plotW/2
		}
		return chartPadding + plotW*float64(t.Sub(start))/float64(span)
	}
	y := func(v float64) float64 {
		return chartPadding + plotH*(1-v/top)
	}

	var b strings.Builder
	fmt.Fprintf(&b, `<svg class="delegate-history" viewBox="0 0 %d %d" xmlns="http://www.w3.org/2000/svg" style="background:#1a1a1a">`, chartWidth, chartHeight)

	for i := 0; i <= yTicks; i++ {
		v := top * float64(i) / yTicks
		fmt.Fprintf(&b, `<line x1="%d" x2="%d" y1="%.1f" y2="%.1f" stroke="#333"/>`,
			chartPadding, chartWidth-chartPadding, y(v), y(v))
		fmt.Fprintf(&b, `<text x="%d" y="%.1f" fill="#999" font-size="11" text-anchor="end">%s</text>`,
			chartPadding-6, y(v)+4, template.HTMLEscapeString(AxisLabel(v)))
	}

	for i, s := range c.Series {
		color := chartColors[i%len(chartColors)]
		points := make([]string, 0, len(s.Points))
		for _, p := range s.Points {
			points = append(points, fmt.Sprintf("%.1f,%.1f", x(p.Time), y(p.Value)))
		}
		fmt.Fprintf(&b, `<polyline fill="none" stroke="%s" stroke-width="2" points="%s"/>`, color, strings.Join(points, " "))
		for _, p := range s.Points {
			fmt.Fprintf(&b, `<circle cx="%.1f" cy="%.1f" r="2" fill="%s"><title>%s: %s %s</title></circle>`,
				x(p.Time), y(p.Value), color,
				template.HTMLEscapeString(s.Name),
				template.HTMLEscapeString(PointLabel(p)),
				template.HTMLEscapeString(AxisLabel(p.Value)))
		}
		fmt.Fprintf(&b, `<text x="%d" y="%d" fill="%s" font-size="11">%s</text>`,
			chartPadding+(i%4)*180, chartHeight-chartPadding/2+(i/4)*12, color, template.HTMLEscapeString(s.Name))
	}

	b.WriteString(`</svg>`)
	return template.HTML(b.String())
}
