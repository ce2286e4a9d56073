package explorer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gabrielcipriano/bittensor-explorer/service/squid"
)

const transfersPayload = `{
	"transfersConnection": {
		"edges": [
			{"node": {
				"id": "t-1",
				"transfer": {
					"amount": "1500000000",
					"blockNumber": 120,
					"success": true,
					"timestamp": "2024-01-02T03:04:05Z",
					"extrinsicHash": "0xaaa",
					"to": {"publicKey": "0x02"},
					"from": {"publicKey": "0x01"}
				},
				"account": {"publicKey": "0x01"},
				"direction": "From"
			}},
			{"node": {
				"id": "t-2",
				"transfer": {
					"amount": "7",
					"blockNumber": 121,
					"success": false,
					"timestamp": "2024-01-02T03:05:05Z",
					"extrinsicHash": "0xbbb",
					"to": {"publicKey": "0x01"},
					"from": {"publicKey": "0x03"}
				},
				"account": {"publicKey": "0x01"},
				"direction": "To"
			}}
		],
		"pageInfo": {"endCursor": "2", "hasNextPage": true, "hasPreviousPage": false, "startCursor": "1"},
		"totalCount": 42
	}
}`

func TestGetTransfers(t *testing.T) {
	svc, gql := newTestService(t, nil)
	gql.answer("transfersConnection", transfersPayload)
	gql.answer("extrinsicsByHash", `{"extrinsics": [{"id": "0000120-000002-abcde", "hash": "0xaaa"}]}`)

	resp, err := svc.GetTransfers(context.Background(), "bittensor",
		TransfersByAccount("0x01"), nil, PaginationOptions{Offset: 10, Limit: 10})
	require.NoError(t, err)
	require.Len(t, resp.Data, 2)

	first := resp.Data[0]
	assert.Equal(t, "t-1", first.ID)
	assert.Equal(t, "1500000000", first.Amount.String())
	assert.Equal(t, int64(120), first.BlockNumber)
	assert.Equal(t, "From", first.Direction)
	assert.Equal(t, "latest", first.RuntimeSpec.SpecVersion)
	assert.Equal(t, uint16(42), first.RuntimeSpec.Metadata.SS58Prefix)
	require.NotNil(t, first.Extrinsic)
	assert.Equal(t, "0000120-000002-abcde", first.Extrinsic.ID)

	assert.Nil(t, resp.Data[1].Extrinsic, "unknown hashes stay unlinked")

	assert.Equal(t, Pagination{Offset: 10, Limit: 10, HasNextPage: true, TotalCount: 42}, resp.Pagination)

	queries := gql.recorded("transfersConnection")
	require.Len(t, queries, 1)
	assert.Equal(t, squid.MainSquid, queries[0].backend)
	assert.Equal(t, "10", queries[0].query.Vars["after"])
	assert.Equal(t, []string{"id_DESC"}, queries[0].query.Vars["order"])

	ext := gql.recorded("extrinsicsByHash")
	require.Len(t, ext, 1)
	assert.Equal(t, squid.Archive, ext[0].backend)
	assert.Equal(t, []string{"0xaaa", "0xbbb"}, ext[0].query.Vars["hashes"])
	assert.Equal(t, 2, ext[0].query.Vars["limit"])
}

func TestGetTransfers_NoMainSquid(t *testing.T) {
	tests := []struct {
		name   string
		filter TransfersFilter
		order  TransfersOrder
		opts   PaginationOptions
	}{
		{"no filter", nil, nil, PaginationOptions{}},
		{"account filter", TransfersByAccount("0xd43593c715fdd31c61141abd04a99fd6822c8558854ccde39a5684e7a56da27d"), nil, PaginationOptions{}},
		{"order and page", TransfersByAccount("0x01"), TransfersOrder{"blockNumber_ASC"}, PaginationOptions{Offset: 20, Limit: 10}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, gql := newTestService(t, nil)

			resp, err := svc.GetTransfers(context.Background(), "archive-only", tt.filter, tt.order, tt.opts)
			require.NoError(t, err)
			assert.Empty(t, resp.Data)
			assert.Equal(t, Pagination{}, resp.Pagination)
			assert.Empty(t, gql.recorded("transfersConnection"))
			assert.Empty(t, gql.recorded("extrinsicsByHash"))
		})
	}
}

func TestGetTransfers_EmptyPageSkipsArchive(t *testing.T) {
	svc, gql := newTestService(t, nil)
	gql.answer("transfersConnection", `{"transfersConnection": {"edges": [], "pageInfo": {}, "totalCount": 0}}`)

	resp, err := svc.GetTransfers(context.Background(), "bittensor", nil, nil, PaginationOptions{})
	require.NoError(t, err)
	assert.Empty(t, resp.Data)
	assert.Nil(t, gql.recorded("transfersConnection")[0].query.Vars["after"])
	assert.Empty(t, gql.recorded("extrinsicsByHash"))
}

func TestGetTransfers_InvalidAmount(t *testing.T) {
	svc, gql := newTestService(t, nil)
	gql.answer("transfersConnection", `{"transfersConnection": {"edges": [
		{"node": {"id": "bad", "transfer": {"amount": "1.5"}}}
	], "pageInfo": {}, "totalCount": 1}}`)

	_, err := svc.GetTransfers(context.Background(), "bittensor", nil, nil, PaginationOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "transfer bad")
}
