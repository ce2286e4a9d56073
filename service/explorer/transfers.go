package explorer

import (
	"context"
	"fmt"
	"math/big"

	"github.com/gabrielcipriano/bittensor-explorer/service/format"
	"github.com/gabrielcipriano/bittensor-explorer/service/squid"
)

// Transfer is a balance transfer seen from one account's side.
type Transfer struct {
	ID               string        `json:"id"`
	AccountPublicKey string        `json:"accountPublicKey"`
	BlockNumber      int64         `json:"blockNumber"`
	Timestamp        string        `json:"timestamp"`
	ExtrinsicHash    string        `json:"extrinsicHash"`
	Amount           *big.Int      `json:"amount"`
	Success          bool          `json:"success"`
	FromPublicKey    string        `json:"fromPublicKey"`
	ToPublicKey      string        `json:"toPublicKey"`
	Direction        string        `json:"direction"`
	Extrinsic        *ExtrinsicRef `json:"extrinsic,omitempty"`
	RuntimeSpec      RuntimeSpec   `json:"runtimeSpec"`
}

// ExtrinsicRef identifies the extrinsic an item was included by.
type ExtrinsicRef struct {
	ID   string `json:"id"`
	Hash string `json:"hash"`
}

// TransfersFilter is passed to the main-squid as the TransferWhereInput.
type TransfersFilter map[string]any

// TransfersByAccount filters transfers touching an account public key.
func TransfersByAccount(publicKey string) TransfersFilter {
	return TransfersFilter{"account": map[string]any{"publicKey_eq": publicKey}}
}

// TransfersOrder is a list of TransferOrderByInput values.
type TransfersOrder []string

var defaultTransfersOrder = TransfersOrder{"id_DESC"}

type mainSquidTransfer struct {
	ID       string `json:"id"`
	Transfer struct {
		Amount        string `json:"amount"`
		BlockNumber   int64  `json:"blockNumber"`
		Success       bool   `json:"success"`
		Timestamp     string `json:"timestamp"`
		ExtrinsicHash string `json:"extrinsicHash"`
		To            struct {
			PublicKey string `json:"publicKey"`
		} `json:"to"`
		From struct {
			PublicKey string `json:"publicKey"`
		} `json:"from"`
	} `json:"transfer"`
	Account struct {
		PublicKey string `json:"publicKey"`
	} `json:"account"`
	Direction string `json:"direction"`
}

const transfersQuery = `query ($first: Int!, $after: String, $filter: TransferWhereInput, $order: [TransferOrderByInput!]!) {
	transfersConnection(first: $first, after: $after, where: $filter, orderBy: $order) {
		edges {
			node {
				id
				transfer {
					amount
					blockNumber
					success
					timestamp
					extrinsicHash
					to {
						publicKey
					}
					from {
						publicKey
					}
				}
				account {
					publicKey
				}
				direction
			}
		}
		pageInfo {
			endCursor
			hasNextPage
			hasPreviousPage
			startCursor
		}
		totalCount
	}
}`

const extrinsicsByHashQuery = `query($hashes: [String!], $limit: Int!) {
	extrinsics(where: { hash_in: $hashes }, limit: $limit) {
		id,
		hash
	}
}`

// GetTransfers lists transfers from the main-squid. Networks without a
// main-squid get an empty page rather than an error.
func (s *Service) GetTransfers(ctx context.Context, network string, filter TransfersFilter, order TransfersOrder, opts PaginationOptions) (*ItemsResponse[Transfer], error) {
	if !s.gql.HasSupport(network, squid.MainSquid) {
		return emptyResponse[Transfer](), nil
	}
	if len(order) == 0 {
		order = defaultTransfersOrder
	}
	opts = opts.Normalize()

	var resp struct {
		TransfersConnection itemsConnection[mainSquidTransfer] `json:"transfersConnection"`
	}
	err := s.gql.FetchMainSquid(ctx, network, squid.Query{
		Name: "transfersConnection",
		Text: transfersQuery,
		Vars: map[string]any{
			"first":  opts.Limit,
			"after":  afterCursor(opts.Offset),
			"filter": filter,
			"order":  []string(order),
		},
	}, &resp)
	if err != nil {
		return nil, err
	}

	items, err := extractConnectionItems(resp.TransfersConnection, opts, unifyMainSquidTransfer)
	if err != nil {
		return nil, err
	}

	err = addRuntimeSpecs(s, network, items,
		func(Transfer) string { return latestSpecVersion },
		func(t *Transfer, spec RuntimeSpec) { t.RuntimeSpec = spec },
	)
	if err != nil {
		return nil, err
	}

	if err := s.addExtrinsicsInfo(ctx, network, items); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Service) addExtrinsicsInfo(ctx context.Context, network string, items *ItemsResponse[Transfer]) error {
	if len(items.Data) == 0 {
		return nil
	}
	hashes := make([]string, 0, len(items.Data))
	for _, t := range items.Data {
		hashes = append(hashes, t.ExtrinsicHash)
	}

	byHash, err := s.getArchiveExtrinsicsInfo(ctx, network, hashes)
	if err != nil {
		return err
	}
	for i := range items.Data {
		if ext, ok := byHash[items.Data[i].ExtrinsicHash]; ok {
			items.Data[i].Extrinsic = &ext
		}
	}
	return nil
}

func (s *Service) getArchiveExtrinsicsInfo(ctx context.Context, network string, hashes []string) (map[string]ExtrinsicRef, error) {
	var resp struct {
		Extrinsics []ExtrinsicRef `json:"extrinsics"`
	}
	err := s.gql.FetchArchive(ctx, network, squid.Query{
		Name: "extrinsicsByHash",
		Text: extrinsicsByHashQuery,
		Vars: map[string]any{
			"hashes": hashes,
			"limit":  len(hashes),
		},
	}, &resp)
	if err != nil {
		return nil, err
	}

	byHash := make(map[string]ExtrinsicRef, len(resp.Extrinsics))
	for _, e := range resp.Extrinsics {
		byHash[e.Hash] = e
	}
	return byHash, nil
}

func unifyMainSquidTransfer(t mainSquidTransfer) (Transfer, error) {
	amount, err := format.ParseRawAmount(t.Transfer.Amount)
	if err != nil {
		return Transfer{}, fmt.Errorf("transfer %s: %w", t.ID, err)
	}
	return Transfer{
		ID:               t.ID,
		AccountPublicKey: t.Account.PublicKey,
		BlockNumber:      t.Transfer.BlockNumber,
		Timestamp:        t.Transfer.Timestamp,
		ExtrinsicHash:    t.Transfer.ExtrinsicHash,
		Amount:           amount,
		Success:          t.Transfer.Success,
		FromPublicKey:    t.Transfer.From.PublicKey,
		ToPublicKey:      t.Transfer.To.PublicKey,
		Direction:        t.Direction,
	}, nil
}
