package types

import (
	"fmt"
	"strings"
)

// Severity ranks a finding or a boundary risk
type Severity string

// Severity constants, highest first
const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
)

// AllSeverities returns every severity ordered from most to least severe
func AllSeverities() []Severity {
	return []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow}
}

// IsValid reports whether s is one of the known severities
func (s Severity) IsValid() bool {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow:
		return true
	}
	return false
}

// Label returns the title-cased form used in reports ("Critical", "High", ...)
func (s Severity) Label() string {
	if s == "" {
		return ""
	}
	lower := strings.ToLower(string(s))
	return strings.ToUpper(lower[:1]) + lower[1:]
}

// ParseSeverity parses a severity case-insensitively
func ParseSeverity(v string) (Severity, error) {
	s := Severity(strings.ToUpper(strings.TrimSpace(v)))
	if !s.IsValid() {
		return "", fmt.Errorf("invalid severity: %q (must be CRITICAL, HIGH, MEDIUM, or LOW)", v)
	}
	return s, nil
}

// Finding is a single documented vulnerability record
type Finding struct {
	ID                string   `json:"id" yaml:"id"`
	Title             string   `json:"title" yaml:"title"`
	Severity          Severity `json:"severity" yaml:"severity"`
	CVSSScore         float64  `json:"cvss_score" yaml:"cvss_score"`
	Impact            string   `json:"impact" yaml:"impact"`
	Description       string   `json:"description" yaml:"description"`
	ProofOfConcept    string   `json:"proof_of_concept" yaml:"proof_of_concept"`
	RemediationSteps  []string `json:"remediation_steps" yaml:"remediation_steps"`
	AffectedLocations []string `json:"affected_locations" yaml:"affected_locations"`
}

// Clone returns a deep copy of f
func (f Finding) Clone() Finding {
	out := f
	out.RemediationSteps = append([]string(nil), f.RemediationSteps...)
	out.AffectedLocations = append([]string(nil), f.AffectedLocations...)
	return out
}

// Boundary describes one transition point on the trust path
type Boundary struct {
	Name        string   `json:"name" yaml:"name"`
	From        string   `json:"from" yaml:"from"`
	To          string   `json:"to" yaml:"to"`
	Description string   `json:"description" yaml:"description"`
	Risk        Severity `json:"risk" yaml:"risk"`
	Validation  string   `json:"validation" yaml:"validation"`
	Location    string   `json:"location,omitempty" yaml:"location,omitempty"`
}

// ProbeStatus is the verdict of a probe
type ProbeStatus string

const (
	ProbePass ProbeStatus = "pass"
	ProbeWarn ProbeStatus = "warn"
	ProbeFail ProbeStatus = "fail"
)

// ProbeResult is the outcome of one executable check against the message flow
type ProbeResult struct {
	Name     string      `json:"name"`
	Boundary string      `json:"boundary"`
	Status   ProbeStatus `json:"status"`
	Detail   string      `json:"detail"`
}
