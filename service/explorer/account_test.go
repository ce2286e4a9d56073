package explorer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gabrielcipriano/bittensor-explorer/service/squid"
)

const alicePublicKey = "0xd43593c715fdd31c61141abd04a99fd6822c8558854ccde39a5684e7a56da27d"

func TestGetAccount(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	t.Run("ss58 address", func(t *testing.T) {
		a, err := svc.GetAccount(ctx, "bittensor", aliceAddress)
		require.NoError(t, err)
		require.NotNil(t, a)
		assert.Equal(t, alicePublicKey, a.ID)
		assert.Equal(t, alicePublicKey, a.Address)
		assert.Equal(t, "latest", a.RuntimeSpec.SpecVersion)
		assert.Equal(t, aliceAddress, a.EncodedAddress())
	})

	t.Run("hex public key", func(t *testing.T) {
		a, err := svc.GetAccount(ctx, "bittensor", alicePublicKey)
		require.NoError(t, err)
		require.NotNil(t, a)
		assert.Equal(t, alicePublicKey, a.Address)
	})

	t.Run("invalid address", func(t *testing.T) {
		a, err := svc.GetAccount(ctx, "bittensor", "not-an-address")
		require.NoError(t, err)
		assert.Nil(t, a)
	})

	t.Run("unknown network", func(t *testing.T) {
		_, err := svc.GetAccount(ctx, "nope", aliceAddress)
		assert.ErrorIs(t, err, squid.ErrUnknownNetwork)
	})
}

func TestFetchBlockTimestamps(t *testing.T) {
	svc, gql := newTestService(t, nil)
	gql.answer("blockTimestamps", `{"blocks": [
		{"height": 10, "timestamp": "2024-01-01T00:00:00Z"},
		{"height": "11", "timestamp": "2024-01-01T00:00:12Z"}
	]}`)

	got, err := svc.FetchBlockTimestamps(context.Background(), "bittensor", []int64{10, 11, 10, 12})
	require.NoError(t, err)
	assert.Equal(t, map[int64]string{
		10: "2024-01-01T00:00:00Z",
		11: "2024-01-01T00:00:12Z",
	}, got)

	q := gql.recorded("blockTimestamps")[0].query
	assert.Equal(t, []int64{10, 11, 12}, q.Vars["heights"])
	assert.Equal(t, 3, q.Vars["limit"])
}

func TestFetchBlockTimestamps_Empty(t *testing.T) {
	svc, gql := newTestService(t, nil)

	got, err := svc.FetchBlockTimestamps(context.Background(), "bittensor", nil)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Empty(t, gql.recorded("blockTimestamps"))
}
