// Package inspect looks for key material and other secrets in serialized
// wallet state, and wraps stores so that every access is observable.
package inspect

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/tyler-smith/go-bip39/wordlists"
)

// Kind classifies a match
type Kind string

const (
	KindSensitiveKey Kind = "sensitive_key"
	KindPrivateKey   Kind = "private_key"
	KindMnemonic     Kind = "mnemonic"
	KindBase64       Kind = "base64"
)

// Match is one piece of sensitive data found by a scan. Path is the JSON path
// of the value for ScanJSON and empty for ScanText.
type Match struct {
	Kind   Kind   `json:"kind"`
	Path   string `json:"path,omitempty"`
	Detail string `json:"detail"`
}

func (m Match) String() string {
	if m.Path == "" {
		return fmt.Sprintf("%s: %s", m.Kind, m.Detail)
	}
	return fmt.Sprintf("%s at %s: %s", m.Kind, m.Path, m.Detail)
}

// sensitive key name fragments, compared against lowercased names with _ and - removed
var sensitiveNames = []string{"privatekey", "mnemonic", "seed", "secret", "password"}

var (
	hexKeyPattern   = regexp.MustCompile(`\b(?:0x)?([0-9a-fA-F]{64})\b`)
	mnemonicPattern = regexp.MustCompile(`\b[a-z]{3,8}(?: [a-z]{3,8}){11,}\b`)
	base64Pattern   = regexp.MustCompile(`^[A-Za-z0-9+/]+={0,2}$`)
	hexPattern      = regexp.MustCompile(`^(?:0x)?[0-9a-fA-F]+$`)
)

// minimum length before an opaque string is reported as base64
const minBase64Len = 24

// shortest BIP-39 phrase
const minMnemonicWords = 12

var bip39Words = func() map[string]struct{} {
	set := make(map[string]struct{}, len(wordlists.English))
	for _, w := range wordlists.English {
		set[w] = struct{}{}
	}
	return set
}()

// longestWordlistRun returns the longest run of consecutive BIP-39 words in phrase
func longestWordlistRun(phrase string) int {
	longest, run := 0, 0
	for _, w := range strings.Fields(phrase) {
		if _, ok := bip39Words[w]; !ok {
			run = 0
			continue
		}
		run++
		longest = max(longest, run)
	}
	return longest
}

// IsSensitiveKey reports whether a property name suggests key material
func IsSensitiveKey(name string) bool {
	n := strings.ToLower(name)
	n = strings.NewReplacer("_", "", "-", "").Replace(n)
	for _, s := range sensitiveNames {
		if strings.Contains(n, s) {
			return true
		}
	}
	return false
}

// ScanText reports private keys, mnemonics and base64 blobs in s
func ScanText(s string) []Match {
	var matches []Match

	for _, m := range hexKeyPattern.FindAllStringSubmatch(s, -1) {
		key, err := crypto.HexToECDSA(m[1])
		if err != nil {
			continue
		}
		matches = append(matches, Match{
			Kind:   KindPrivateKey,
			Detail: "valid secp256k1 key for " + crypto.PubkeyToAddress(key.PublicKey).Hex(),
		})
	}

	for _, m := range mnemonicPattern.FindAllString(s, -1) {
		n := longestWordlistRun(m)
		if n < minMnemonicWords {
			continue
		}
		matches = append(matches, Match{
			Kind:   KindMnemonic,
			Detail: fmt.Sprintf("%d word phrase", n),
		})
	}

	if looksBase64(s) {
		matches = append(matches, Match{
			Kind:   KindBase64,
			Detail: fmt.Sprintf("%d byte base64 blob", base64.StdEncoding.DecodedLen(len(s))),
		})
	}

	return matches
}

func looksBase64(s string) bool {
	if len(s) < minBase64Len || len(s)%4 != 0 {
		return false
	}
	if hexPattern.MatchString(s) || !base64Pattern.MatchString(s) {
		return false
	}
	_, err := base64.StdEncoding.DecodeString(s)
	return err == nil
}

// ScanJSON walks a JSON document and reports sensitive property names with a
// non-empty value, plus every ScanText match in string values. String values
// that hold JSON themselves, as localStorage entries do, are scanned too.
func ScanJSON(b []byte) ([]Match, error) {
	var v any
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("failed to decode JSON: %w", err)
	}

	var matches []Match
	walk("$", v, &matches)
	return matches, nil
}

func walk(path string, v any, out *[]Match) {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			child := path + "." + k
			if IsSensitiveKey(k) && !empty(val[k]) {
				*out = append(*out, Match{Kind: KindSensitiveKey, Path: child, Detail: "sensitive property " + k})
			}
			walk(child, val[k], out)
		}
	case []any:
		for i, item := range val {
			walk(fmt.Sprintf("%s[%d]", path, i), item, out)
		}
	case string:
		trimmed := strings.TrimSpace(val)
		if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
			var nested any
			if err := json.Unmarshal([]byte(trimmed), &nested); err == nil {
				walk(path, nested, out)
				return
			}
		}
		for _, m := range ScanText(val) {
			m.Path = path
			*out = append(*out, m)
		}
	}
}

func empty(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case map[string]any:
		return len(val) == 0
	case []any:
		return len(val) == 0
	}
	return false
}
