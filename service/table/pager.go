package table

import "github.com/gabrielcipriano/bittensor-explorer/service/explorer"

// Pager is the previous/next control under a table.
type Pager struct {
	From       int
	To         int
	TotalCount int
	PrevURL    string
	NextURL    string
}

// NewPager computes the page window and neighbour links.
func NewPager(p explorer.Pagination, state State, path string) Pager {
	limit := p.Limit
	if limit <= 0 {
		limit = explorer.DefaultPageSize
	}

	pager := Pager{
		From:       p.Offset + 1,
		To:         p.Offset + limit,
		TotalCount: p.TotalCount,
	}
	if p.TotalCount > 0 && pager.To > p.TotalCount {
		pager.To = p.TotalCount
	}
	if p.Offset > 0 {
		pager.PrevURL = state.WithOffset(p.Offset - limit).URL(path)
	}
	if p.HasNextPage {
		pager.NextURL = state.WithOffset(p.Offset + limit).URL(path)
	}
	return pager
}
