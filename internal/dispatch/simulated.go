package dispatch

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/vwlab/vwharness/internal/logger"
	"github.com/vwlab/vwharness/internal/signer"
	"github.com/vwlab/vwharness/internal/validation"
	"github.com/vwlab/vwharness/pkg/envelope"
	apperrors "github.com/vwlab/vwharness/pkg/errors"
)

// Methods served by the simulated background
const (
	MethodRequestAccounts = "eth_requestAccounts"
	MethodGetAccounts     = "getAccounts"
	MethodChainID         = "eth_chainId"
	MethodSendTransaction = "eth_sendTransaction"
	MethodSign            = "eth_sign"
)

// SimConfig configures the simulated background handlers.
type SimConfig struct {
	// Account is the vault address handed out to the page.
	Account string
	ChainID *big.Int
	Signer  *signer.Signer
}

// TxArgs is the transaction object a page passes to eth_sendTransaction.
// Absent fields default to zero.
type TxArgs struct {
	From     *common.Address `json:"from,omitempty"`
	To       *common.Address `json:"to,omitempty"`
	Value    *hexutil.Big    `json:"value,omitempty"`
	Data     hexutil.Bytes   `json:"data,omitempty"`
	Gas      *hexutil.Uint64 `json:"gas,omitempty"`
	GasPrice *hexutil.Big    `json:"gasPrice,omitempty"`
	Nonce    *hexutil.Uint64 `json:"nonce,omitempty"`
}

// ToTransaction builds an unsigned legacy transaction from the args.
func (a TxArgs) ToTransaction() *types.Transaction {
	tx := &types.LegacyTx{
		To:       a.To,
		Value:    new(big.Int),
		GasPrice: new(big.Int),
		Data:     a.Data,
	}
	if a.Value != nil {
		tx.Value = a.Value.ToInt()
	}
	if a.GasPrice != nil {
		tx.GasPrice = a.GasPrice.ToInt()
	}
	if a.Gas != nil {
		tx.Gas = uint64(*a.Gas)
	}
	if a.Nonce != nil {
		tx.Nonce = uint64(*a.Nonce)
	}
	return types.NewTx(tx)
}

func (a TxArgs) limits() validation.Tx {
	tx := validation.Tx{To: a.To, Data: a.Data}
	if a.Value != nil {
		tx.Value = a.Value.ToInt()
	}
	if a.Gas != nil {
		gas := uint64(*a.Gas)
		tx.Gas = &gas
	}
	if a.GasPrice != nil {
		tx.GasPrice = a.GasPrice.ToInt()
	}
	return tx
}

// RegisterSimulated installs the background handlers that answer the page
// without a real SDK behind them.
func RegisterSimulated(d *Dispatcher, cfg SimConfig) error {
	if !common.IsHexAddress(cfg.Account) {
		return fmt.Errorf("invalid account address: %q", cfg.Account)
	}
	if cfg.ChainID == nil || cfg.ChainID.Sign() <= 0 {
		return fmt.Errorf("chain id must be positive")
	}
	if cfg.Signer == nil {
		return fmt.Errorf("signer is required")
	}

	sim := &simulated{cfg: cfg, d: d}
	handlers := map[string]Handler{
		MethodRequestAccounts: sim.requestAccounts,
		MethodGetAccounts:     sim.getAccounts,
		MethodChainID:         sim.chainID,
		MethodSendTransaction: sim.sendTransaction,
		MethodSign:            sim.sign,
	}
	for method, h := range handlers {
		if err := d.Register(method, h); err != nil {
			return err
		}
	}
	return nil
}

type simulated struct {
	cfg SimConfig
	d   *Dispatcher
}

func (s *simulated) requestAccounts(ctx context.Context, req envelope.Request) envelope.Response {
	logger.FromContext(ctx, s.d.logger).Debug("handling request", "method", req.Method)

	resp := envelope.Success(req, true, s.cfg.Account)
	// the page is told to cache the vault in its own storage
	resp.Persist = true
	return resp
}

func (s *simulated) getAccounts(ctx context.Context, req envelope.Request) envelope.Response {
	logger.FromContext(ctx, s.d.logger).Debug("handling request", "method", req.Method)
	return envelope.Success(req, true, s.cfg.Account)
}

func (s *simulated) chainID(ctx context.Context, req envelope.Request) envelope.Response {
	return envelope.Success(req, true, hexutil.EncodeBig(s.cfg.ChainID))
}

func (s *simulated) sendTransaction(ctx context.Context, req envelope.Request) envelope.Response {
	log := logger.FromContext(ctx, s.d.logger)
	log.Debug("handling request", "method", req.Method)

	var args TxArgs
	if _, err := req.DecodeArg(0, &args); err != nil {
		return envelope.Failure(req, apperrors.ErrCodeInvalidParams, "Invalid params: "+err.Error())
	}
	if err := validation.Validate(args.limits()); err != nil {
		return envelope.Failure(req, apperrors.ErrCodeInvalidParams, "Invalid params: "+err.Error())
	}
	if args.From != nil && *args.From != s.cfg.Signer.Address() {
		log.Warn("transaction sender does not match signer", "from", args.From.Hex(), "signer", s.cfg.Signer.Address().Hex())
	}

	signed, err := s.cfg.Signer.SignTransaction(args.ToTransaction(), s.cfg.ChainID)
	if err != nil {
		return envelope.Failure(req, apperrors.ErrCodeHandlerFailed, err.Error())
	}
	return envelope.Success(req, true, signed.Hash().Hex())
}

func (s *simulated) sign(ctx context.Context, req envelope.Request) envelope.Response {
	logger.FromContext(ctx, s.d.logger).Debug("handling request", "method", req.Method)

	var message string
	if _, err := req.DecodeArg(1, &message); err != nil {
		return envelope.Failure(req, apperrors.ErrCodeInvalidParams, "Invalid params: "+err.Error())
	}

	sig, err := s.cfg.Signer.SignText(messageBytes(message))
	if err != nil {
		return envelope.Failure(req, apperrors.ErrCodeHandlerFailed, err.Error())
	}
	return envelope.Success(req, true, hexutil.Encode(sig))
}

// messageBytes decodes 0x-prefixed hex payloads and treats anything else as text.
func messageBytes(message string) []byte {
	if strings.HasPrefix(message, "0x") {
		if b, err := hexutil.Decode(message); err == nil {
			return b
		}
	}
	return []byte(message)
}
