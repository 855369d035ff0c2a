package api

import (
	"context"

	"github.com/vwlab/vwharness/internal/dispatch"
	"github.com/vwlab/vwharness/internal/ledger"
	"github.com/vwlab/vwharness/internal/report"
	"github.com/vwlab/vwharness/pkg/types"
)

// Harness is the subset of app.Harness used by the API layer.
type Harness interface {
	Dispatcher() *dispatch.Dispatcher
	Ledger() *ledger.Ledger
	Probe(ctx context.Context) []types.ProbeResult
	Renderer(results []types.ProbeResult) *report.Renderer
}
