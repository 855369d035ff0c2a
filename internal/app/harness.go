package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/big"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/vwlab/vwharness/internal/boundary"
	"github.com/vwlab/vwharness/internal/config"
	"github.com/vwlab/vwharness/internal/dispatch"
	"github.com/vwlab/vwharness/internal/ledger"
	"github.com/vwlab/vwharness/internal/metrics"
	"github.com/vwlab/vwharness/internal/probe"
	"github.com/vwlab/vwharness/internal/report"
	"github.com/vwlab/vwharness/internal/signer"
	"github.com/vwlab/vwharness/internal/storage"
	"github.com/vwlab/vwharness/pkg/types"
)

// RunRecorder persists finished runs
type RunRecorder interface {
	Create(ctx context.Context, run *storage.Run) error
}

// Harness wires the simulated background, the findings ledger and the
// report renderer together.
type Harness struct {
	cfg        *config.Config
	logger     *slog.Logger
	metrics    *metrics.Metrics
	signer     *signer.Signer
	dispatcher *dispatch.Dispatcher
	ledger     *ledger.Ledger
	runs       RunRecorder
}

type options struct {
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
	observers []dispatch.Observer
	runs      RunRecorder
}

// Option configures a Harness
type Option func(*options)

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics enables prometheus metrics
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithTracer traces dispatches
func WithTracer(t trace.Tracer) Option {
	return func(o *options) { o.tracer = t }
}

// WithObserver adds a dispatch observer, such as a transcript store
func WithObserver(obs dispatch.Observer) Option {
	return func(o *options) { o.observers = append(o.observers, obs) }
}

// WithRunRecorder persists every completed run
func WithRunRecorder(r RunRecorder) Option {
	return func(o *options) { o.runs = r }
}

// NewHarness builds the harness described by cfg
func NewHarness(cfg *config.Config, opts ...Option) (*Harness, error) {
	o := &options{logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}

	var (
		s   *signer.Signer
		err error
	)
	if seed := cfg.SignerSeed(); seed != nil {
		s, err = signer.FromSeed(seed)
	} else {
		s, err = signer.Generate()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create signer: %w", err)
	}

	dopts := []dispatch.Option{dispatch.WithLogger(o.logger)}
	if o.metrics != nil {
		dopts = append(dopts, dispatch.WithMetrics(o.metrics))
	}
	if o.tracer != nil {
		dopts = append(dopts, dispatch.WithTracer(o.tracer))
	}
	for _, obs := range o.observers {
		dopts = append(dopts, dispatch.WithObserver(obs))
	}
	if cfg.EnforceIDEcho {
		dopts = append(dopts, dispatch.WithIDEnforcement())
	}

	d := dispatch.New(dopts...)
	if err := dispatch.RegisterSimulated(d, dispatch.SimConfig{
		Account: cfg.AccountAddress,
		ChainID: big.NewInt(cfg.ChainID),
		Signer:  s,
	}); err != nil {
		return nil, fmt.Errorf("failed to register handlers: %w", err)
	}

	var l *ledger.Ledger
	if cfg.LedgerPath != "" {
		l, err = ledger.Load(cfg.LedgerPath)
	} else {
		l, err = ledger.Default()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger: %w", err)
	}

	o.logger.Info("harness initialized",
		"signer", s.Address().Hex(),
		"account", cfg.AccountAddress,
		"chain_id", cfg.ChainID,
		"methods", len(d.Methods()),
		"findings", l.Len(),
		"enforce_id_echo", cfg.EnforceIDEcho,
	)

	return &Harness{
		cfg:        cfg,
		logger:     o.logger,
		metrics:    o.metrics,
		signer:     s,
		dispatcher: d,
		ledger:     l,
		runs:       o.runs,
	}, nil
}

// Dispatcher returns the simulated background
func (h *Harness) Dispatcher() *dispatch.Dispatcher {
	return h.dispatcher
}

// Ledger returns the findings ledger
func (h *Harness) Ledger() *ledger.Ledger {
	return h.ledger
}

// SignerAddress returns the address the simulated SDK signs with
func (h *Harness) SignerAddress() string {
	return h.signer.Address().Hex()
}

// Probe runs every probe against the dispatcher
func (h *Harness) Probe(ctx context.Context) []types.ProbeResult {
	return probe.Run(ctx, h.dispatcher, probe.Config{
		Account:          h.cfg.AccountAddress,
		TargetOrigin:     h.cfg.TargetOrigin,
		SDKVersion:       h.cfg.SDKVersion,
		CollisionSamples: h.cfg.CollisionSamples,
		Logger:           h.logger,
		Metrics:          h.metrics,
	})
}

// Renderer returns a report renderer with the boundary appendix and, when
// given, the probe results appendix.
func (h *Harness) Renderer(results []types.ProbeResult) *report.Renderer {
	opts := []report.Option{report.WithBoundaries(boundary.Catalog())}
	if len(results) > 0 {
		opts = append(opts, report.WithProbeResults(results))
	}
	if h.metrics != nil {
		opts = append(opts, report.WithMetrics(h.metrics))
	}
	return report.New(opts...)
}

// Report renders the ledger to w without running probes
func (h *Harness) Report(w io.Writer, format string) error {
	return h.Renderer(nil).Render(w, format, h.ledger)
}

// RunResult summarizes a completed run
type RunResult struct {
	ID         uuid.UUID
	ReportPath string
	Probes     []types.ProbeResult
	Counts     map[types.Severity]int
}

// Run probes the dispatcher, writes the report to path and records the run
// when a recorder is configured. A report write failure is returned.
func (h *Harness) Run(ctx context.Context, path, format string) (*RunResult, error) {
	runID := uuid.New()
	ctx = storage.WithRunID(ctx, runID)
	log := h.logger.With("run_id", runID.String())

	log.Info("starting run", "report_path", path, "format", format)
	results := h.Probe(ctx)

	if err := h.Renderer(results).WriteFile(path, format, h.ledger); err != nil {
		log.Error("failed to write report", "path", path, "error", err)
		return nil, err
	}

	counts := h.ledger.Counts()
	if h.runs != nil {
		if err := h.runs.Create(ctx, &storage.Run{
			ID:         runID,
			Format:     format,
			ReportPath: path,
			Findings:   h.ledger.Len(),
			Critical:   counts[types.SeverityCritical],
			High:       counts[types.SeverityHigh],
			Probes:     results,
		}); err != nil {
			// the report is already on disk
			log.Error("failed to record run", "error", err)
		}
	}

	log.Info("run complete", "report_path", path, "findings", h.ledger.Len(), "probes", len(results))
	return &RunResult{ID: runID, ReportPath: path, Probes: results, Counts: counts}, nil
}
