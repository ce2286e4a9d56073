package explorer

import (
	"context"

	"github.com/gabrielcipriano/bittensor-explorer/service/ss58"
)

// Account is an on-chain account identified by its public key.
type Account struct {
	ID          string      `json:"id"`
	Address     string      `json:"address"`
	RuntimeSpec RuntimeSpec `json:"runtimeSpec"`
}

// GetAccount resolves an address into an account. Addresses that fail to
// validate yield a nil account and no error; the caller renders "not found".
func (s *Service) GetAccount(ctx context.Context, network, address string) (*Account, error) {
	if !ss58.IsAddress(address) {
		return nil, nil
	}

	// Encoded addresses are stored by public key.
	if decoded, err := ss58.Decode(address); err == nil {
		address = decoded
	}

	spec, err := s.runtimeSpec(network, latestSpecVersion)
	if err != nil {
		return nil, err
	}
	return &Account{
		ID:          address,
		Address:     address,
		RuntimeSpec: spec,
	}, nil
}

// EncodedAddress renders the account in the network's SS58 format.
func (a *Account) EncodedAddress() string {
	return ss58.Reencode(a.Address, a.RuntimeSpec.Metadata.SS58Prefix)
}
