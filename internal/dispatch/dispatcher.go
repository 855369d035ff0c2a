// Package dispatch maps VW_REQ method names to handlers and produces exactly
// one VW_RES per request. Failures are encoded in the response, never raised.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"github.com/vwlab/vwharness/internal/logger"
	"github.com/vwlab/vwharness/internal/metrics"
	"github.com/vwlab/vwharness/pkg/envelope"
	apperrors "github.com/vwlab/vwharness/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Handler produces a fully formed response for req.
type Handler func(ctx context.Context, req envelope.Request) envelope.Response

// Observer is notified of every completed exchange.
type Observer interface {
	Observe(ctx context.Context, req envelope.Request, resp envelope.Response, elapsed time.Duration)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, req envelope.Request, resp envelope.Response, elapsed time.Duration)

// Observe calls f.
func (f ObserverFunc) Observe(ctx context.Context, req envelope.Request, resp envelope.Response, elapsed time.Duration) {
	f(ctx, req, resp, elapsed)
}

// metric label used for methods outside the table, to bound cardinality
const unregisteredLabel = "unregistered"

// Dispatcher owns the method table. Register every handler before the first
// Handle call; the table is read-only afterwards and Handle is safe for
// concurrent use.
type Dispatcher struct {
	handlers  map[string]Handler
	logger    *slog.Logger
	tracer    trace.Tracer
	metrics   *metrics.Metrics
	observers []Observer
	enforceID bool
	frozen    atomic.Bool
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger used for diagnostic output.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// WithTracer wraps every dispatch in a span.
func WithTracer(t trace.Tracer) Option {
	return func(d *Dispatcher) { d.tracer = t }
}

// WithMetrics records dispatch counts and durations.
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithObserver adds an exchange observer.
func WithObserver(o Observer) Option {
	return func(d *Dispatcher) { d.observers = append(d.observers, o) }
}

// WithIDEnforcement stamps type and id of every handler response from the
// request. Without it handler output is returned unchecked.
func WithIDEnforcement() Option {
	return func(d *Dispatcher) { d.enforceID = true }
}

// New creates an empty dispatcher.
func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		handlers: make(map[string]Handler),
		logger:   slog.Default(),
		tracer:   noop.NewTracerProvider().Tracer("vwharness/dispatch"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Register adds a handler for method.
func (d *Dispatcher) Register(method string, h Handler) error {
	if d.frozen.Load() {
		return fmt.Errorf("cannot register %q: method table is frozen", method)
	}
	if method == "" {
		return fmt.Errorf("method name is required")
	}
	if h == nil {
		return fmt.Errorf("handler for %q is nil", method)
	}
	if _, exists := d.handlers[method]; exists {
		return fmt.Errorf("method %q already registered", method)
	}
	d.handlers[method] = h
	return nil
}

// Has reports whether method is registered.
func (d *Dispatcher) Has(method string) bool {
	_, ok := d.handlers[method]
	return ok
}

// Methods returns the registered method names, sorted.
func (d *Dispatcher) Methods() []string {
	out := make([]string, 0, len(d.handlers))
	for m := range d.handlers {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// Handle dispatches req and returns exactly one response.
func (d *Dispatcher) Handle(ctx context.Context, req envelope.Request) envelope.Response {
	d.frozen.Store(true)
	start := time.Now()

	ctx, span := d.tracer.Start(ctx, "dispatch "+req.Method, trace.WithAttributes(
		attribute.String("vw.id", req.ID),
		attribute.String("vw.method", req.Method),
	))
	defer span.End()

	log := logger.FromContext(ctx, d.logger)
	log.Info("received message", "type", req.Type, "id", req.ID, "method", req.Method)
	if req.ID == "" {
		log.Warn("request has empty id; response cannot be correlated", "method", req.Method)
	}

	var (
		resp    envelope.Response
		label   = req.Method
		outcome string
	)

	switch handler, ok := d.handlers[req.Method]; {
	case req.Type != envelope.TypeRequest:
		label = unregisteredLabel
		outcome = metrics.OutcomeInvalidRequest
		resp = envelope.Failure(req, apperrors.ErrCodeInvalidRequest,
			fmt.Sprintf("%s: type must be %s", envelope.MessageInvalidRequest, envelope.TypeRequest))
	case req.Method == "":
		label = unregisteredLabel
		outcome = metrics.OutcomeInvalidRequest
		resp = envelope.Failure(req, apperrors.ErrCodeInvalidRequest,
			envelope.MessageInvalidRequest+": method is required")
	case !ok:
		label = unregisteredLabel
		outcome = metrics.OutcomeMethodNotFound
		resp = envelope.MethodNotFound(req)
	default:
		resp, outcome = d.invoke(ctx, log, handler, req)
	}

	if d.enforceID {
		resp.Type = envelope.TypeResponse
		resp.ID = req.ID
	} else if !envelope.Correlates(req, resp) {
		log.Warn("handler response does not echo request", "id", req.ID, "response_id", resp.ID, "response_type", resp.Type)
	}

	elapsed := time.Since(start)
	span.SetAttributes(attribute.Bool("vw.success", resp.Success))
	if !resp.Success && resp.Error != nil {
		span.SetStatus(codes.Error, resp.Error.Message)
	}
	if d.metrics != nil {
		d.metrics.Dispatches.WithLabelValues(label, outcome).Inc()
		d.metrics.DispatchDuration.WithLabelValues(label).Observe(elapsed.Seconds())
	}
	for _, o := range d.observers {
		o.Observe(ctx, req, resp, elapsed)
	}

	log.Debug("dispatched message", "id", req.ID, "method", req.Method, "success", resp.Success, "outcome", outcome)
	return resp
}

func (d *Dispatcher) invoke(ctx context.Context, log *slog.Logger, h Handler, req envelope.Request) (resp envelope.Response, outcome string) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("handler panicked", "method", req.Method, "panic", fmt.Sprint(r))
			resp = envelope.Failure(req, apperrors.ErrCodeHandlerFailed, "Handler failed")
			outcome = metrics.OutcomePanic
		}
	}()

	resp = h(ctx, req)
	if resp.Success {
		return resp, metrics.OutcomeSuccess
	}
	return resp, metrics.OutcomeFailure
}
