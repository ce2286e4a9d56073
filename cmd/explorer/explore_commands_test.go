package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const aliceHex = "0xd43593c715fdd31c61141abd04a99fd6822c8558854ccde39a5684e7a56da27d"

func apiServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/networks", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"networks": []map[string]interface{}{
				{"name": "bittensor", "display_name": "Bittensor", "currency": "TAO", "ss58_prefix": 42, "default": true},
			},
		})
	})
	mux.HandleFunc("GET /api/v1/bittensor/transfers", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		fmt.Fprintf(w, `{
			"data": [{"id": "t1", "blockNumber": 100, "timestamp": "2024-03-10T11:00:00Z",
				"amount": 1500000000, "success": true, "fromPublicKey": %q, "toPublicKey": %q}],
			"pagination": {"offset": 0, "limit": 5, "hasNextPage": false, "totalCount": 1}
		}`, aliceHex, aliceHex)
	})
	mux.HandleFunc("GET /api/v1/stream/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: connected\ndata: {\"symbol\":\"TAO\"}\n\n")
		fmt.Fprint(w, "event: stats\ndata: {\"symbol\":\"TAO\",\"price\":12}\n\n")
		fmt.Fprint(w, "event: stats\ndata: {\"symbol\":\"TAO\",\"price\":420.5}\n\n")
		fmt.Fprint(w, "event: stats\ndata: {\"symbol\":\"TAO\",\"price\":421}\n\n")
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var err error
	out := captureStdout(t, func() {
		err = newApp().Run(append([]string{"explorer"}, args...))
	})
	return out, err
}

func TestTransfersCommand(t *testing.T) {
	srv := apiServer(t)

	t.Run("table", func(t *testing.T) {
		out, err := runApp(t, "--server-url", srv.URL, "transfers", "--limit", "5")
		require.NoError(t, err)
		assert.Contains(t, out, "BLOCK")
		assert.Contains(t, out, "2024-03-10 11:00:00")
		assert.Contains(t, out, "5Grwva...GKutQY")
		assert.Contains(t, out, "1.5 TAO")
	})

	t.Run("jq", func(t *testing.T) {
		out, err := runApp(t, "--server-url", srv.URL, "transfers", "--limit", "5", "--jq", ".data[].blockNumber")
		require.NoError(t, err)
		assert.Equal(t, "100\n", out)
	})

	t.Run("json", func(t *testing.T) {
		out, err := runApp(t, "--server-url", srv.URL, "--json", "transfers", "--limit", "5")
		require.NoError(t, err)
		var resp struct {
			Data []map[string]interface{} `json:"data"`
		}
		require.NoError(t, json.Unmarshal([]byte(out), &resp))
		assert.Len(t, resp.Data, 1)
	})
}

func TestDelegatesCommand_RequiresOneTarget(t *testing.T) {
	for _, args := range [][]string{
		{"delegates"},
		{"delegates", "--account", "a", "--validator", "v"},
	} {
		_, err := runApp(t, args...)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "exactly one of --account or --validator")
	}
}

func TestStatsStreamCommand(t *testing.T) {
	srv := apiServer(t)

	out, err := runApp(t, "--server-url", srv.URL, "--json", "stats", "stream", "--where", ".price > 400", "--count", "1")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], `"price":420.5`)
}
