// Package eth checks that an RPC endpoint serves the chain the simulated
// wallet claims to be on.
package eth

import (
	"context"
	"fmt"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	apperrors "github.com/vwlab/vwharness/pkg/errors"
)

// Client wraps an Ethereum RPC client
type Client struct {
	client  *ethclient.Client
	chainID *big.Int
}

// Status is a snapshot of the vault account on the connected chain
type Status struct {
	ChainID     int64    `json:"chain_id"`
	BlockNumber uint64   `json:"block_number"`
	Account     string   `json:"account"`
	Balance     *big.Int `json:"balance"`
	Nonce       uint64   `json:"nonce"`
}

// NewClient connects to rpcURL and detects its chain ID
func NewClient(ctx context.Context, rpcURL string) (*Client, error) {
	if rpcURL == "" {
		return nil, fmt.Errorf("RPC URL is required")
	}

	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC: %w", err)
	}

	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to get chain ID: %w", err)
	}

	return &Client{
		client:  client,
		chainID: chainID,
	}, nil
}

// ChainID returns the chain ID
func (c *Client) ChainID() int64 {
	return c.chainID.Int64()
}

// VerifyChain returns a chain_mismatch error unless the endpoint serves expected
func (c *Client) VerifyChain(expected int64) error {
	if c.chainID.Cmp(big.NewInt(expected)) != 0 {
		return apperrors.NewWithDetail(
			apperrors.ErrCodeChainMismatch,
			"RPC endpoint serves a different chain",
			fmt.Sprintf("expected %d, got %s", expected, c.chainID),
			http.StatusBadGateway,
		)
	}
	return nil
}

// GetBalance returns the balance of an address in wei
func (c *Client) GetBalance(ctx context.Context, address string) (*big.Int, error) {
	addr := common.HexToAddress(address)
	balance, err := c.client.BalanceAt(ctx, addr, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}
	return balance, nil
}

// GetNonce returns the next nonce for an address
func (c *Client) GetNonce(ctx context.Context, address string) (uint64, error) {
	addr := common.HexToAddress(address)
	nonce, err := c.client.PendingNonceAt(ctx, addr)
	if err != nil {
		return 0, fmt.Errorf("failed to get nonce: %w", err)
	}
	return nonce, nil
}

// Describe reports the chain head and the state of account
func (c *Client) Describe(ctx context.Context, account string) (*Status, error) {
	head, err := c.client.BlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get block number: %w", err)
	}
	balance, err := c.GetBalance(ctx, account)
	if err != nil {
		return nil, err
	}
	nonce, err := c.GetNonce(ctx, account)
	if err != nil {
		return nil, err
	}
	return &Status{
		ChainID:     c.ChainID(),
		BlockNumber: head,
		Account:     common.HexToAddress(account).Hex(),
		Balance:     balance,
		Nonce:       nonce,
	}, nil
}

// Close closes the client connection
func (c *Client) Close() {
	c.client.Close()
}
