// Package probe runs executable checks against the message flow and reports
// which trust boundaries hold.
package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/vwlab/vwharness/internal/boundary"
	"github.com/vwlab/vwharness/internal/dispatch"
	"github.com/vwlab/vwharness/internal/inspect"
	"github.com/vwlab/vwharness/internal/metrics"
	"github.com/vwlab/vwharness/pkg/envelope"
	apperrors "github.com/vwlab/vwharness/pkg/errors"
	"github.com/vwlab/vwharness/pkg/types"
)

// Probe names, in run order
const (
	MalformedMessage = "malformed-message"
	MissingID        = "missing-id"
	UnknownMethod    = "unknown-method"
	OriginWildcard   = "origin-wildcard"
	IDCollision      = "id-collision"
	StorageExposure  = "storage-exposure"
	SDKVersionPin    = "sdk-version-pinning"
	HandlerEcho      = "handler-echo"
)

// VaultKey is the storage key the extension keeps its vault under
const VaultKey = "myVault"

// Config holds the target parameters probes check against
type Config struct {
	// Account is the vault address placed in the default mock vault.
	Account string
	// TargetOrigin is the postMessage target origin used by the injected script.
	TargetOrigin string
	// SDKVersion is the signing SDK dependency constraint.
	SDKVersion string
	// CollisionSamples is the number of message ids generated by the collision probe.
	CollisionSamples int
	// Vault overrides the mock vault written to storage.
	Vault map[string]any

	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

type check struct {
	name     string
	boundary string
	run      func(ctx context.Context, d *dispatch.Dispatcher, cfg Config) (types.ProbeStatus, string)
}

var checks = []check{
	{MalformedMessage, boundary.ContentToBackground, malformedMessage},
	{MissingID, boundary.ContentToBackground, missingID},
	{UnknownMethod, boundary.ContentToBackground, unknownMethod},
	{OriginWildcard, boundary.WebToInjected, originWildcard},
	{IDCollision, boundary.ContentToBackground, idCollision},
	{StorageExposure, boundary.SDKToStorage, storageExposure},
	{SDKVersionPin, boundary.BackgroundToSDK, sdkVersionPin},
	{HandlerEcho, boundary.InjectedToContent, handlerEcho},
}

// Names returns the probe names in run order
func Names() []string {
	out := make([]string, len(checks))
	for i, c := range checks {
		out[i] = c.name
	}
	return out
}

// Run executes every probe against d in order
func Run(ctx context.Context, d *dispatch.Dispatcher, cfg Config) []types.ProbeResult {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.CollisionSamples < 2 {
		cfg.CollisionSamples = 2
	}

	results := make([]types.ProbeResult, 0, len(checks))
	for _, c := range checks {
		status, detail := c.run(ctx, d, cfg)
		results = append(results, types.ProbeResult{
			Name:     c.name,
			Boundary: c.boundary,
			Status:   status,
			Detail:   detail,
		})

		log := cfg.Logger.With("probe", c.name, "boundary", c.boundary, "status", status)
		if status == types.ProbePass {
			log.Info("probe passed", "detail", detail)
		} else {
			log.Warn("probe flagged weakness", "detail", detail)
		}
		if cfg.Metrics != nil {
			cfg.Metrics.ProbeResults.WithLabelValues(c.name, string(status)).Inc()
		}
	}
	return results
}

// Summarize counts results per status
func Summarize(results []types.ProbeResult) map[types.ProbeStatus]int {
	out := map[types.ProbeStatus]int{types.ProbePass: 0, types.ProbeWarn: 0, types.ProbeFail: 0}
	for _, r := range results {
		out[r.Status]++
	}
	return out
}

func malformedMessage(ctx context.Context, d *dispatch.Dispatcher, _ Config) (types.ProbeStatus, string) {
	req := envelope.Request{Type: envelope.TypeRequest, ID: "test-1"}
	resp := d.Handle(ctx, req)

	switch {
	case resp.Success:
		return types.ProbeFail, "request without a method was accepted"
	case resp.Error == nil || resp.Error.Code != apperrors.ErrCodeInvalidRequest:
		return types.ProbeFail, "request without a method was not rejected as invalid_request"
	case resp.ID != req.ID:
		return types.ProbeFail, "rejection does not echo the request id"
	}
	return types.ProbePass, "rejected with invalid_request: " + resp.Error.Message
}

func missingID(ctx context.Context, d *dispatch.Dispatcher, _ Config) (types.ProbeStatus, string) {
	req := envelope.Request{Type: envelope.TypeRequest, Method: dispatch.MethodRequestAccounts}
	resp := d.Handle(ctx, req)

	if resp.Success {
		return types.ProbeWarn, "request with empty id was dispatched; the response cannot be correlated"
	}
	return types.ProbePass, "request with empty id was not served"
}

func unknownMethod(ctx context.Context, d *dispatch.Dispatcher, _ Config) (types.ProbeStatus, string) {
	req := envelope.Request{Type: envelope.TypeRequest, ID: envelope.NewID(), Method: "does_not_exist"}
	resp := d.Handle(ctx, req)

	if resp.Success || resp.Error == nil || resp.Error.Code != apperrors.ErrCodeMethodNotFound {
		return types.ProbeFail, "unregistered method was not answered with method_not_found"
	}
	if resp.ID != req.ID {
		return types.ProbeFail, "method_not_found response does not echo the request id"
	}
	return types.ProbePass, "answered with \"" + resp.Error.Message + "\""
}

func originWildcard(_ context.Context, _ *dispatch.Dispatcher, cfg Config) (types.ProbeStatus, string) {
	origin := strings.TrimSpace(cfg.TargetOrigin)
	if origin == "" || origin == "*" {
		return types.ProbeFail, "postMessage target origin is \"*\"; any page can inject and read messages"
	}

	u, err := url.Parse(origin)
	if err != nil || u.Host == "" || (u.Scheme != "https" && u.Scheme != "http") || (u.Path != "" && u.Path != "/") {
		return types.ProbeWarn, fmt.Sprintf("target origin %q is not a scheme://host origin", origin)
	}
	if u.Scheme == "http" {
		return types.ProbeWarn, fmt.Sprintf("target origin %q is not served over TLS", origin)
	}
	return types.ProbePass, "messages are restricted to " + origin
}

func idCollision(_ context.Context, _ *dispatch.Dispatcher, cfg Config) (types.ProbeStatus, string) {
	seen := make(map[string]struct{}, cfg.CollisionSamples)
	collisions := 0
	for i := 0; i < cfg.CollisionSamples; i++ {
		id := envelope.NewID()
		if _, ok := seen[id]; ok {
			collisions++
			continue
		}
		seen[id] = struct{}{}
	}

	detail := fmt.Sprintf("%d ids generated, %d collisions", cfg.CollisionSamples, collisions)
	if collisions > 0 {
		return types.ProbeFail, detail
	}
	// uniqueness is only as good as the sender; the dispatcher does not check it
	return types.ProbePass, detail + "; ids are not checked for reuse by the receiver"
}

func storageExposure(_ context.Context, _ *dispatch.Dispatcher, cfg Config) (types.ProbeStatus, string) {
	vault := cfg.Vault
	if vault == nil {
		vault = MockVault(cfg.Account)
	}
	serialized, err := json.Marshal(vault)
	if err != nil {
		return types.ProbeFail, fmt.Sprintf("failed to serialize vault: %v", err)
	}

	store := inspect.NewMonitoredStore("localStorage", inspect.NewMemoryStore(), cfg.Logger)
	store.Set(VaultKey, string(serialized))
	store.Get(VaultKey)

	flagged := store.Flagged()
	if len(flagged) > 0 {
		var found []string
		for _, m := range flagged[0].Matches {
			found = append(found, m.String())
		}
		return types.ProbeFail, "vault in web-accessible storage exposes " + strings.Join(found, "; ")
	}
	return types.ProbeWarn, "vault holds no key material but is readable from the page context"
}

func sdkVersionPin(_ context.Context, _ *dispatch.Dispatcher, cfg Config) (types.ProbeStatus, string) {
	if boundary.VersionPinned(cfg.SDKVersion) {
		return types.ProbePass, "SDK pinned to " + cfg.SDKVersion
	}
	return types.ProbeFail, fmt.Sprintf("SDK constraint %q admits unreviewed releases", cfg.SDKVersion)
}

func handlerEcho(ctx context.Context, d *dispatch.Dispatcher, _ Config) (types.ProbeStatus, string) {
	methods := d.Methods()
	if len(methods) == 0 {
		return types.ProbeWarn, "no handlers registered"
	}

	var broken []string
	for _, m := range methods {
		req := envelope.Request{Type: envelope.TypeRequest, ID: envelope.NewID(), Method: m}
		if !envelope.Correlates(req, d.Handle(ctx, req)) {
			broken = append(broken, m)
		}
	}
	if len(broken) > 0 {
		return types.ProbeFail, "responses do not echo the request id: " + strings.Join(broken, ", ")
	}
	return types.ProbePass, fmt.Sprintf("%d handlers echo the request id", len(methods))
}

// MockVault returns the vault record the extension persists to localStorage
func MockVault(account string) map[string]any {
	return map[string]any{
		"address":    account,
		"regAddress": account,
		"chainId":    "8453",
	}
}
