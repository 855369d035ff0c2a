// Package validation bounds the transaction fields a page may hand to the
// simulated signer before anything is signed.
package validation

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/params"
)

// Limits for eth_sendTransaction arguments
const (
	MinGas      = params.TxGas
	MaxGas      = 30_000_000
	MaxDataSize = 128 << 10
)

// MaxGasPrice is 100000 gwei
var MaxGasPrice = new(big.Int).Mul(big.NewInt(100_000), big.NewInt(params.GWei))

// Tx holds the fields of a transaction request that were actually supplied.
// Nil fields were absent and are not checked.
type Tx struct {
	To       *common.Address
	Value    *big.Int
	Gas      *uint64
	GasPrice *big.Int
	Data     []byte
}

// Recipient rejects the zero address. A nil recipient is a contract creation.
func Recipient(to *common.Address) error {
	if to != nil && *to == (common.Address{}) {
		return fmt.Errorf("cannot send to zero address")
	}
	return nil
}

// Gas checks a supplied gas limit against the transfer minimum and block ceiling
func Gas(gas uint64) error {
	if gas < MinGas {
		return fmt.Errorf("gas limit too low: minimum %d", MinGas)
	}
	if gas > MaxGas {
		return fmt.Errorf("gas limit too high: maximum %d", MaxGas)
	}
	return nil
}

// GasPrice rejects negative and absurdly high prices
func GasPrice(price *big.Int) error {
	if price.Sign() < 0 {
		return fmt.Errorf("gas price cannot be negative")
	}
	if price.Cmp(MaxGasPrice) > 0 {
		return fmt.Errorf("gas price too high: maximum 100000 gwei")
	}
	return nil
}

// Data bounds the calldata size
func Data(data []byte) error {
	if len(data) > MaxDataSize {
		return fmt.Errorf("transaction data too large: %d bytes > %d bytes max", len(data), MaxDataSize)
	}
	return nil
}

// Validate checks every supplied field of tx
func Validate(tx Tx) error {
	if err := Recipient(tx.To); err != nil {
		return fmt.Errorf("invalid recipient: %w", err)
	}
	if tx.Value != nil && tx.Value.Sign() < 0 {
		return fmt.Errorf("invalid value: value cannot be negative")
	}
	if tx.Gas != nil {
		if err := Gas(*tx.Gas); err != nil {
			return fmt.Errorf("invalid gas: %w", err)
		}
	}
	if tx.GasPrice != nil {
		if err := GasPrice(tx.GasPrice); err != nil {
			return fmt.Errorf("invalid gas price: %w", err)
		}
	}
	if err := Data(tx.Data); err != nil {
		return fmt.Errorf("invalid data: %w", err)
	}
	return nil
}
