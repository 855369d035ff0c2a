package boundary

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/vwlab/vwharness/pkg/errors"
	"github.com/vwlab/vwharness/pkg/types"
)

func TestCatalog(t *testing.T) {
	bs := Catalog()
	require.Len(t, bs, Size)

	names := make([]string, len(bs))
	for i, b := range bs {
		names[i] = b.Name
		assert.True(t, b.Risk.IsValid())
		assert.NotEmpty(t, b.Validation)
	}
	assert.Equal(t, []string{WebToInjected, InjectedToContent, ContentToBackground, BackgroundToSDK, SDKToStorage}, names)
	assert.Equal(t, "Web Page", bs[0].From)
	assert.Equal(t, "Storage", bs[len(bs)-1].To)
}

func TestCatalog_ReturnsCopy(t *testing.T) {
	bs := Catalog()
	bs[0].Name = "mutated"

	assert.Equal(t, WebToInjected, Catalog()[0].Name)
}

func TestLookup(t *testing.T) {
	b, ok := Lookup(SDKToStorage)
	require.True(t, ok)
	assert.Equal(t, types.SeverityCritical, b.Risk)

	_, ok = Lookup("nope")
	assert.False(t, ok)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(bs []types.Boundary) []types.Boundary
		errMsg string
	}{
		{
			name:   "valid",
			mutate: func(bs []types.Boundary) []types.Boundary { return bs },
		},
		{
			name:   "missing stage",
			mutate: func(bs []types.Boundary) []types.Boundary { return bs[:4] },
			errMsg: "expected 5 boundaries",
		},
		{
			name: "duplicate name",
			mutate: func(bs []types.Boundary) []types.Boundary {
				bs[1].Name = bs[0].Name
				return bs
			},
			errMsg: "duplicate boundary",
		},
		{
			name: "invalid risk",
			mutate: func(bs []types.Boundary) []types.Boundary {
				bs[2].Risk = "SEVERE"
				return bs
			},
			errMsg: "invalid risk",
		},
		{
			name: "broken path",
			mutate: func(bs []types.Boundary) []types.Boundary {
				bs[3].From = "Elsewhere"
				return bs
			},
			errMsg: "does not continue",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.mutate(Catalog()))
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeCatalogInvalid))
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestParse_Malformed(t *testing.T) {
	_, err := Parse([]byte("name: [unterminated"))
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeCatalogInvalid))
}

func TestVersionPinned(t *testing.T) {
	tests := []struct {
		constraint string
		want       bool
	}{
		{"0.4.8", true},
		{"=0.4.8", true},
		{"v1.2.3", true},
		{"1.0.0-beta.1", true},
		{"^0.4.8", false},
		{"~0.4.8", false},
		{">=0.4.8", false},
		{"1.x", false},
		{"1", false},
		{"1.2", false},
		{"*", false},
		{"latest", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.constraint, func(t *testing.T) {
			assert.Equal(t, tt.want, VersionPinned(tt.constraint))
		})
	}
}
