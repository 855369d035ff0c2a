package inspect

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vwlab/vwharness/internal/logger"
)

const testKeyHex = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func kinds(ms []Match) []Kind {
	out := make([]Kind, len(ms))
	for i, m := range ms {
		out[i] = m.Kind
	}
	return out
}

func TestIsSensitiveKey(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"privateKey", true},
		{"private_key", true},
		{"PRIVATE-KEY", true},
		{"mnemonic", true},
		{"seedPhrase", true},
		{"clientSecret", true},
		{"password", true},
		{"publicKey", false},
		{"address", false},
		{"myVault", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsSensitiveKey(tt.name))
		})
	}
}

func TestScanText(t *testing.T) {
	key, err := crypto.HexToECDSA(testKeyHex)
	require.NoError(t, err)
	addr := crypto.PubkeyToAddress(key.PublicKey).Hex()

	t.Run("private key with prefix", func(t *testing.T) {
		ms := ScanText("leaked 0x" + testKeyHex + " in log")
		require.Equal(t, []Kind{KindPrivateKey}, kinds(ms))
		assert.Contains(t, ms[0].Detail, addr)
	})

	t.Run("zero scalar is not a key", func(t *testing.T) {
		assert.Empty(t, ScanText(strings.Repeat("0", 64)))
	})

	t.Run("address is not a key", func(t *testing.T) {
		assert.Empty(t, ScanText("0x1234567890123456789012345678901234567890"))
	})

	t.Run("mnemonic", func(t *testing.T) {
		ms := ScanText("backup: " + testMnemonic)
		require.Equal(t, []Kind{KindMnemonic}, kinds(ms))
		assert.Equal(t, "12 word phrase", ms[0].Detail)
	})

	t.Run("mnemonic inside prose", func(t *testing.T) {
		ms := ScanText("meeting " + testMnemonic + " meeting")
		require.Equal(t, []Kind{KindMnemonic}, kinds(ms))
		assert.Equal(t, "12 word phrase", ms[0].Detail)
	})

	t.Run("long prose is not a mnemonic", func(t *testing.T) {
		prose := "please remember that the meeting tomorrow starts earlier than usual because everyone needs extra time"
		assert.Empty(t, ScanText(prose))
	})

	t.Run("eleven wordlist words", func(t *testing.T) {
		assert.Empty(t, ScanText(strings.Repeat("abandon ", 11)+"meeting"))
	})

	t.Run("short phrase", func(t *testing.T) {
		assert.Empty(t, ScanText("the quick brown fox jumps over the lazy dog"))
	})

	t.Run("base64 blob", func(t *testing.T) {
		blob := base64.StdEncoding.EncodeToString([]byte("encrypted vault payload!"))
		assert.Equal(t, []Kind{KindBase64}, kinds(ScanText(blob)))
	})

	t.Run("plain text", func(t *testing.T) {
		assert.Empty(t, ScanText("hello"))
	})
}

func TestScanJSON(t *testing.T) {
	t.Run("vault with exposed key", func(t *testing.T) {
		doc := `{"address":"0x1234567890123456789012345678901234567890","chainId":"8453","privateKey":"0x` + testKeyHex + `","mnemonic":null}`

		ms, err := ScanJSON([]byte(doc))
		require.NoError(t, err)
		require.Len(t, ms, 2)
		assert.Equal(t, Match{Kind: KindSensitiveKey, Path: "$.privateKey", Detail: "sensitive property privateKey"}, ms[0])
		assert.Equal(t, KindPrivateKey, ms[1].Kind)
		assert.Equal(t, "$.privateKey", ms[1].Path)
	})

	t.Run("nested serialized storage entry", func(t *testing.T) {
		doc := `{"myVault":"{\"address\":\"0xabc\",\"seed\":\"` + testMnemonic + `\"}","items":[{"secret":""}]}`

		ms, err := ScanJSON([]byte(doc))
		require.NoError(t, err)
		assert.Equal(t, []Kind{KindSensitiveKey, KindMnemonic}, kinds(ms))
		assert.Equal(t, "$.myVault.seed", ms[0].Path)
	})

	t.Run("clean vault", func(t *testing.T) {
		ms, err := ScanJSON([]byte(`{"address":"0x1234567890123456789012345678901234567890","chainId":"8453"}`))
		require.NoError(t, err)
		assert.Empty(t, ms)
	})

	t.Run("invalid json", func(t *testing.T) {
		_, err := ScanJSON([]byte(`{"address":`))
		assert.Error(t, err)
	})
}

func TestMonitoredStore(t *testing.T) {
	rec := logger.NewRecorder(nil)
	s := NewMonitoredStore("localStorage", NewMemoryStore(), rec.Logger())

	s.Set("theme", "dark")
	s.Set("myVault", `{"address":"0x1234567890123456789012345678901234567890","privateKey":"0x`+testKeyHex+`"}`)
	s.Set("password", "hunter2")

	v, ok := s.Get("myVault")
	require.True(t, ok)
	assert.Contains(t, v, "privateKey")
	_, ok = s.Get("absent")
	assert.False(t, ok)

	assert.Equal(t, []string{"myVault", "password", "theme"}, s.Keys())

	accesses := s.Accesses()
	require.Len(t, accesses, 5)
	assert.Equal(t, Access{Op: "set", Key: "theme"}, accesses[0])

	flagged := s.Flagged()
	require.Len(t, flagged, 3)
	assert.Equal(t, "myVault", flagged[0].Key)
	assert.False(t, flagged[0].Sensitive)
	assert.NotEmpty(t, flagged[0].Matches)
	assert.True(t, flagged[1].Sensitive)
	assert.Equal(t, "get", flagged[2].Op)

	warnings := rec.Search("sensitive data in store")
	assert.Len(t, warnings, 3)
	for _, e := range rec.Entries() {
		for _, v := range e.Attrs {
			assert.NotContains(t, v, testKeyHex)
			assert.NotEqual(t, "hunter2", v)
		}
	}
}

func TestDebugFlags(t *testing.T) {
	env := map[string]string{
		"DEBUG":    "vw:*",
		"NODE_ENV": "development",
		"VERBOSE":  "",
		"HOME":     "/root",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	assert.Equal(t, []Flag{{Name: "DEBUG", Value: "vw:*"}, {Name: "NODE_ENV", Value: "development"}}, DebugFlags(lookup))
	assert.True(t, DevelopmentMode(lookup))

	none := func(string) (string, bool) { return "", false }
	assert.Empty(t, DebugFlags(none))
	assert.False(t, DevelopmentMode(none))
}
