package eth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/vwlab/vwharness/pkg/errors"
)

type rpcRequest struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
}

// newRPCServer answers the handful of JSON-RPC methods the client uses
func newRPCServer(t *testing.T, results map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		result, ok := results[req.Method]
		if !ok {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"jsonrpc": "2.0",
				"id":      req.ID,
				"error":   map[string]any{"code": -32601, "message": "method not found"},
			})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  result,
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewClient(t *testing.T) {
	t.Run("requires url", func(t *testing.T) {
		_, err := NewClient(context.Background(), "")
		assert.EqualError(t, err, "RPC URL is required")
	})

	t.Run("detects chain id", func(t *testing.T) {
		srv := newRPCServer(t, map[string]string{"eth_chainId": "0x2105"})

		c, err := NewClient(context.Background(), srv.URL)
		require.NoError(t, err)
		defer c.Close()

		assert.Equal(t, int64(8453), c.ChainID())
	})

	t.Run("chain id unavailable", func(t *testing.T) {
		srv := newRPCServer(t, map[string]string{})

		_, err := NewClient(context.Background(), srv.URL)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to get chain ID")
	})
}

func TestVerifyChain(t *testing.T) {
	srv := newRPCServer(t, map[string]string{"eth_chainId": "0x1"})
	c, err := NewClient(context.Background(), srv.URL)
	require.NoError(t, err)
	defer c.Close()

	assert.NoError(t, c.VerifyChain(1))

	err = c.VerifyChain(8453)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeChainMismatch))
	assert.Contains(t, err.Error(), "expected 8453, got 1")
}

func TestDescribe(t *testing.T) {
	srv := newRPCServer(t, map[string]string{
		"eth_chainId":             "0x2105",
		"eth_blockNumber":         "0x10",
		"eth_getBalance":          "0xde0b6b3a7640000",
		"eth_getTransactionCount": "0x3",
	})
	c, err := NewClient(context.Background(), srv.URL)
	require.NoError(t, err)
	defer c.Close()

	st, err := c.Describe(context.Background(), "0x1234567890123456789012345678901234567890")
	require.NoError(t, err)

	assert.Equal(t, int64(8453), st.ChainID)
	assert.Equal(t, uint64(16), st.BlockNumber)
	assert.Equal(t, "0x1234567890123456789012345678901234567890", st.Account)
	assert.Equal(t, "1000000000000000000", st.Balance.String())
	assert.Equal(t, uint64(3), st.Nonce)
}

func TestDescribe_BalanceError(t *testing.T) {
	srv := newRPCServer(t, map[string]string{
		"eth_chainId":     "0x2105",
		"eth_blockNumber": "0x10",
	})
	c, err := NewClient(context.Background(), srv.URL)
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Describe(context.Background(), "0x1234567890123456789012345678901234567890")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to get balance")
}
