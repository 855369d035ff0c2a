// Package boundary holds the catalog of trust boundaries a VW_REQ crosses on
// its way from the web page to storage.
package boundary

import (
	_ "embed"
	"fmt"
	"strings"

	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"

	apperrors "github.com/vwlab/vwharness/pkg/errors"
	"github.com/vwlab/vwharness/pkg/types"
)

// Boundary names
const (
	WebToInjected       = "web-to-injected"
	InjectedToContent   = "injected-to-content"
	ContentToBackground = "content-to-background"
	BackgroundToSDK     = "background-to-sdk"
	SDKToStorage        = "sdk-to-storage"
)

// Size is the number of stages on the trust path
const Size = 5

//go:embed boundaries.yaml
var catalogYAML []byte

var catalog = mustParse(catalogYAML)

func mustParse(b []byte) []types.Boundary {
	bs, err := Parse(b)
	if err != nil {
		panic(fmt.Sprintf("embedded boundary catalog: %v", err))
	}
	return bs
}

// Parse decodes and validates a YAML boundary catalog
func Parse(b []byte) ([]types.Boundary, error) {
	var bs []types.Boundary
	if err := yaml.Unmarshal(b, &bs); err != nil {
		return nil, apperrors.CatalogInvalid(fmt.Sprintf("malformed catalog: %v", err))
	}
	if err := Validate(bs); err != nil {
		return nil, err
	}
	return bs, nil
}

// Validate checks that bs describes the full trust path
func Validate(bs []types.Boundary) error {
	if len(bs) != Size {
		return apperrors.CatalogInvalid(fmt.Sprintf("expected %d boundaries, got %d", Size, len(bs)))
	}
	seen := make(map[string]bool, len(bs))
	for i, b := range bs {
		if b.Name == "" {
			return apperrors.CatalogInvalid(fmt.Sprintf("boundary %d has no name", i))
		}
		if seen[b.Name] {
			return apperrors.CatalogInvalid(fmt.Sprintf("duplicate boundary %q", b.Name))
		}
		seen[b.Name] = true
		if !b.Risk.IsValid() {
			return apperrors.CatalogInvalid(fmt.Sprintf("boundary %q has invalid risk %q", b.Name, b.Risk))
		}
		if i > 0 && bs[i-1].To != b.From {
			return apperrors.CatalogInvalid(fmt.Sprintf("boundary %q does not continue from %q", b.Name, bs[i-1].To))
		}
	}
	return nil
}

// Catalog returns a copy of the trust path, page side first
func Catalog() []types.Boundary {
	out := make([]types.Boundary, len(catalog))
	copy(out, catalog)
	return out
}

// Lookup returns the boundary named name
func Lookup(name string) (types.Boundary, bool) {
	for _, b := range catalog {
		if b.Name == name {
			return b, true
		}
	}
	return types.Boundary{}, false
}

// VersionPinned reports whether a package.json style version constraint
// selects exactly one release. Ranges such as ^0.4.8, ~1.2.0, 1.x or
// >=1.0.0 are not pinned.
func VersionPinned(constraint string) bool {
	v := strings.TrimSpace(constraint)
	v = strings.TrimPrefix(v, "=")
	if v == "" {
		return false
	}
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return false
	}
	// semver accepts v1 and v1.2 as shorthand for ranges of releases
	if base, _, _ := strings.Cut(v, "+"); semver.Canonical(v) != base {
		return false
	}
	return true
}
