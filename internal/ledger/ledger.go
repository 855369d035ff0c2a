// Package ledger holds the immutable set of findings a report is rendered from.
package ledger

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	apperrors "github.com/vwlab/vwharness/pkg/errors"
	"github.com/vwlab/vwharness/pkg/types"
)

//go:embed findings.yaml
var defaultYAML []byte

// Ledger is a validated, read-only list of findings in report order
type Ledger struct {
	findings []types.Finding
}

// New validates findings and returns a ledger holding a copy of them
func New(findings []types.Finding) (*Ledger, error) {
	seen := make(map[string]bool, len(findings))
	out := make([]types.Finding, 0, len(findings))

	for i, f := range findings {
		if strings.TrimSpace(f.ID) == "" {
			return nil, apperrors.LedgerInvalid(fmt.Sprintf("finding %d has no id", i))
		}
		if seen[f.ID] {
			return nil, apperrors.LedgerInvalid(fmt.Sprintf("duplicate finding id %q", f.ID))
		}
		seen[f.ID] = true

		if strings.TrimSpace(f.Title) == "" {
			return nil, apperrors.LedgerInvalid(fmt.Sprintf("finding %s has no title", f.ID))
		}
		if !f.Severity.IsValid() {
			return nil, apperrors.LedgerInvalid(fmt.Sprintf("finding %s has invalid severity %q", f.ID, f.Severity))
		}
		if f.CVSSScore < 0 || f.CVSSScore > 10 {
			return nil, apperrors.LedgerInvalid(fmt.Sprintf("finding %s has CVSS score %.1f outside 0-10", f.ID, f.CVSSScore))
		}
		out = append(out, f.Clone())
	}

	return &Ledger{findings: out}, nil
}

// Default returns the built-in ledger of the assessed extension
func Default() (*Ledger, error) {
	return Parse(defaultYAML)
}

// Parse decodes a YAML ledger. JSON is accepted as well, being a YAML subset.
func Parse(b []byte) (*Ledger, error) {
	var findings []types.Finding
	if err := yaml.Unmarshal(b, &findings); err != nil {
		return nil, apperrors.LedgerInvalid(fmt.Sprintf("malformed ledger: %v", err))
	}
	return New(findings)
}

// Load reads a ledger from a .yaml, .yml or .json file
func Load(path string) (*Ledger, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return Parse(b)
	case ".json":
		var findings []types.Finding
		if err := json.Unmarshal(b, &findings); err != nil {
			return nil, apperrors.LedgerInvalid(fmt.Sprintf("malformed ledger: %v", err))
		}
		return New(findings)
	default:
		return nil, apperrors.LedgerInvalid(fmt.Sprintf("unsupported ledger format %q", filepath.Ext(path)))
	}
}

// Findings returns a deep copy of the findings in ledger order
func (l *Ledger) Findings() []types.Finding {
	out := make([]types.Finding, len(l.findings))
	for i, f := range l.findings {
		out[i] = f.Clone()
	}
	return out
}

// Len returns the number of findings
func (l *Ledger) Len() int {
	return len(l.findings)
}

// Get returns the finding with the given id
func (l *Ledger) Get(id string) (types.Finding, bool) {
	for _, f := range l.findings {
		if f.ID == id {
			return f.Clone(), true
		}
	}
	return types.Finding{}, false
}

// Counts returns the number of findings per severity. Every severity is
// present in the result, zero when unused.
func (l *Ledger) Counts() map[types.Severity]int {
	counts := make(map[types.Severity]int, len(types.AllSeverities()))
	for _, s := range types.AllSeverities() {
		counts[s] = 0
	}
	for _, f := range l.findings {
		counts[f.Severity]++
	}
	return counts
}
