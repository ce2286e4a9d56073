package explorer

import (
	"context"

	"github.com/gabrielcipriano/bittensor-explorer/service/squid"
)

const blockTimestampsQuery = `query ($heights: [Int!], $limit: Int!) {
	blocks(where: { height_in: $heights }, limit: $limit) {
		height
		timestamp
	}
}`

// FetchBlockTimestamps maps block heights to their timestamps.
// Heights the archive does not know are absent from the result.
func (s *Service) FetchBlockTimestamps(ctx context.Context, network string, heights []int64) (map[int64]string, error) {
	seen := make(map[int64]bool, len(heights))
	unique := make([]int64, 0, len(heights))
	for _, h := range heights {
		if !seen[h] {
			seen[h] = true
			unique = append(unique, h)
		}
	}
	if len(unique) == 0 {
		return map[int64]string{}, nil
	}

	var resp struct {
		Blocks []struct {
			Height    flexInt `json:"height"`
			Timestamp string  `json:"timestamp"`
		} `json:"blocks"`
	}
	err := s.gql.FetchArchive(ctx, network, squid.Query{
		Name: "blockTimestamps",
		Text: blockTimestampsQuery,
		Vars: map[string]any{
			"heights": unique,
			"limit":   len(unique),
		},
	}, &resp)
	if err != nil {
		return nil, err
	}

	out := make(map[int64]string, len(resp.Blocks))
	for _, b := range resp.Blocks {
		out[int64(b.Height)] = b.Timestamp
	}
	return out, nil
}
