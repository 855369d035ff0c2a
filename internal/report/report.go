// Package report renders a findings ledger as a markdown or JSON document.
// Output depends only on the ledger, the configured appendices and the clock.
package report

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"text/template"
	"time"

	"github.com/vwlab/vwharness/internal/ledger"
	"github.com/vwlab/vwharness/internal/metrics"
	apperrors "github.com/vwlab/vwharness/pkg/errors"
	"github.com/vwlab/vwharness/pkg/types"
)

// Output formats
const (
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
)

const defaultTitle = "Wallet Extension Vulnerability Report"

//go:embed report.md.tmpl
var markdownTemplate string

var tmpl = template.Must(template.New("report").Funcs(template.FuncMap{
	"inc":  func(i int) int { return i + 1 },
	"cvss": func(score float64) string { return fmt.Sprintf("%.1f", score) },
	"cell": func(s string) string { return strings.ReplaceAll(s, "|", `\|`) },
}).Parse(markdownTemplate))

// Summary holds the severity counts shown at the top of a report
type Summary struct {
	Total    int `json:"total"`
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
}

// Document is the data a report is rendered from
type Document struct {
	Title      string              `json:"title"`
	Generated  string              `json:"generated"`
	Summary    Summary             `json:"summary"`
	Findings   []types.Finding     `json:"findings"`
	Boundaries []types.Boundary    `json:"boundaries,omitempty"`
	Probes     []types.ProbeResult `json:"probes,omitempty"`
}

// Renderer renders ledgers
type Renderer struct {
	now        func() time.Time
	title      string
	boundaries []types.Boundary
	probes     []types.ProbeResult
	metrics    *metrics.Metrics
}

// Option configures a Renderer
type Option func(*Renderer)

// WithClock sets the clock used for the generation timestamp
func WithClock(now func() time.Time) Option {
	return func(r *Renderer) { r.now = now }
}

// WithTitle overrides the report title
func WithTitle(title string) Option {
	return func(r *Renderer) { r.title = title }
}

// WithBoundaries appends a trust boundary table
func WithBoundaries(bs []types.Boundary) Option {
	return func(r *Renderer) { r.boundaries = append([]types.Boundary(nil), bs...) }
}

// WithProbeResults appends a probe result table
func WithProbeResults(results []types.ProbeResult) Option {
	return func(r *Renderer) { r.probes = append([]types.ProbeResult(nil), results...) }
}

// WithMetrics counts rendered reports and failed writes
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Renderer) { r.metrics = m }
}

// New creates a renderer
func New(opts ...Option) *Renderer {
	r := &Renderer{
		now:   time.Now,
		title: defaultTitle,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Document builds the report data for l
func (r *Renderer) Document(l *ledger.Ledger) Document {
	counts := l.Counts()
	return Document{
		Title:     r.title,
		Generated: r.now().UTC().Format(time.RFC3339),
		Summary: Summary{
			Total:    l.Len(),
			Critical: counts[types.SeverityCritical],
			High:     counts[types.SeverityHigh],
			Medium:   counts[types.SeverityMedium],
			Low:      counts[types.SeverityLow],
		},
		Findings:   l.Findings(),
		Boundaries: r.boundaries,
		Probes:     r.probes,
	}
}

// Markdown writes the markdown report for l to w
func (r *Renderer) Markdown(w io.Writer, l *ledger.Ledger) error {
	return r.Render(w, FormatMarkdown, l)
}

// JSON writes the JSON report for l to w
func (r *Renderer) JSON(w io.Writer, l *ledger.Ledger) error {
	return r.Render(w, FormatJSON, l)
}

// Render writes the report for l to w in format. A failed write is returned
// as a report_write_failed error.
func (r *Renderer) Render(w io.Writer, format string, l *ledger.Ledger) error {
	b, err := r.Bytes(format, l)
	if err != nil {
		return err
	}
	if _, err := w.Write(b); err != nil {
		r.failed()
		return apperrors.ReportWriteFailed(err)
	}
	return nil
}

// Bytes renders the report for l in memory
func (r *Renderer) Bytes(format string, l *ledger.Ledger) ([]byte, error) {
	doc := r.Document(l)

	var buf bytes.Buffer
	switch format {
	case FormatMarkdown:
		if err := tmpl.Execute(&buf, doc); err != nil {
			return nil, fmt.Errorf("failed to render markdown: %w", err)
		}
	case FormatJSON:
		enc := json.NewEncoder(&buf)
		enc.SetIndent("", "  ")
		if err := enc.Encode(doc); err != nil {
			return nil, fmt.Errorf("failed to render json: %w", err)
		}
	default:
		return nil, apperrors.NewWithDetail(apperrors.ErrCodeBadRequest, "Unsupported report format", format, http.StatusBadRequest)
	}

	if r.metrics != nil {
		r.metrics.ReportsRendered.WithLabelValues(format).Inc()
	}
	return buf.Bytes(), nil
}

// WriteFile renders the report for l and writes it to path
func (r *Renderer) WriteFile(path, format string, l *ledger.Ledger) error {
	b, err := r.Bytes(format, l)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		r.failed()
		return apperrors.ReportWriteFailed(err)
	}
	return nil
}

// ContentType returns the HTTP content type of format
func ContentType(format string) string {
	if format == FormatJSON {
		return "application/json"
	}
	return "text/markdown; charset=utf-8"
}

func (r *Renderer) failed() {
	if r.metrics != nil {
		r.metrics.ReportFailures.Inc()
	}
}
