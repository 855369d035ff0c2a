// Package surface classifies the request methods the wallet extension exposes
// to web pages, so probes and reports can reason about what a page can reach.
package surface

import (
	"sort"

	"github.com/vwlab/vwharness/pkg/types"
)

// Class groups methods by what they touch
type Class string

const (
	ClassCustody Class = "custody"
	ClassSigning Class = "signing"
	ClassAccount Class = "account"
	ClassSession Class = "session"
	ClassRPC     Class = "rpc"
	ClassUnknown Class = "unknown"
)

// Exposure is the classification of a single method
type Exposure struct {
	Method string         `json:"method"`
	Class  Class          `json:"class"`
	Risk   types.Severity `json:"risk"`
}

// Extension request methods accepted from the page
var requestMethods = map[string]Class{
	"connectWallet":          ClassAccount,
	"eth_requestAccounts":    ClassAccount,
	"getAccounts":            ClassAccount,
	"invitation":             ClassSession,
	"getPk":                  ClassCustody,
	"signRecovery":           ClassCustody,
	"completeRecovery":       ClassCustody,
	"sendTransaction":        ClassSigning,
	"eth_sendTransaction":    ClassSigning,
	"closePopup":             ClassSession,
	"pair_walletconnect_uri": ClassSession,
}

// Methods forwarded to the signer over WalletConnect
var walletConnectMethods = []string{
	"eth_sendRawTransaction",
	"eth_sign",
	"eth_signTransaction",
	"eth_signTypedData",
	"eth_signTypedData_v3",
	"eth_signTypedData_v4",
}

// Read-only JSON-RPC methods passed through to the node
var rpcMethods = []string{
	"eth_blockNumber",
	"eth_chainId",
	"eth_protocolVersion",
	"eth_syncing",
	"eth_coinbase",
	"eth_getBalance",
	"eth_getStorageAt",
	"eth_getTransactionCount",
	"eth_getCode",
	"eth_getProof",
	"eth_getBlockByHash",
	"eth_getBlockByNumber",
	"eth_getBlockTransactionCountByHash",
	"eth_getBlockTransactionCountByNumber",
	"eth_getUncleByBlockHashAndIndex",
	"eth_getUncleByBlockNumberAndIndex",
	"eth_getUncleCountByBlockHash",
	"eth_getUncleCountByBlockNumber",
	"eth_getTransactionByHash",
	"eth_getTransactionByBlockHashAndIndex",
	"eth_getTransactionByBlockNumberAndIndex",
	"eth_getTransactionReceipt",
	"eth_call",
	"eth_estimateGas",
	"eth_gasPrice",
	"eth_maxPriorityFeePerGas",
	"eth_feeHistory",
	"eth_newFilter",
	"eth_newBlockFilter",
	"eth_newPendingTransactionFilter",
	"eth_getFilterChanges",
	"eth_getFilterLogs",
	"eth_uninstallFilter",
	"eth_getLogs",
	"eth_sendRawTransaction",
	"eth_subscribe",
	"eth_unsubscribe",
	"net_version",
	"net_listening",
	"net_peerCount",
	"web3_clientVersion",
	"web3_sha3",
}

// pairing is meant for development builds only
const devOnlyMethod = "pair_walletconnect_uri"

var classRisk = map[Class]types.Severity{
	ClassCustody: types.SeverityCritical,
	ClassSigning: types.SeverityHigh,
	ClassAccount: types.SeverityMedium,
	ClassSession: types.SeverityMedium,
	ClassRPC:     types.SeverityLow,
	ClassUnknown: types.SeverityLow,
}

var table = buildTable()

func buildTable() map[string]Class {
	t := make(map[string]Class)
	// lowest precedence first; later entries overwrite
	for _, m := range rpcMethods {
		t[m] = ClassRPC
	}
	for _, m := range walletConnectMethods {
		t[m] = ClassSigning
	}
	for m, c := range requestMethods {
		t[m] = c
	}
	return t
}

// Classify returns the exposure of method. Methods outside the catalog are
// ClassUnknown.
func Classify(method string) Exposure {
	class, ok := table[method]
	if !ok {
		class = ClassUnknown
	}
	risk := classRisk[class]
	if method == devOnlyMethod {
		risk = types.SeverityHigh
	}
	return Exposure{Method: method, Class: class, Risk: risk}
}

// Known reports whether method is part of the catalog
func Known(method string) bool {
	_, ok := table[method]
	return ok
}

// All returns the exposure of every cataloged method, sorted by method name
func All() []Exposure {
	out := make([]Exposure, 0, len(table))
	for m := range table {
		out = append(out, Classify(m))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Method < out[j].Method })
	return out
}

// ByClass returns the cataloged methods of class c, sorted
func ByClass(c Class) []string {
	var out []string
	for m, class := range table {
		if class == c {
			out = append(out, m)
		}
	}
	sort.Strings(out)
	return out
}
