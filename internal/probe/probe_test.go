package probe

import (
	"context"
	"math/big"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vwlab/vwharness/internal/dispatch"
	"github.com/vwlab/vwharness/internal/logger"
	"github.com/vwlab/vwharness/internal/metrics"
	"github.com/vwlab/vwharness/internal/signer"
	"github.com/vwlab/vwharness/pkg/envelope"
	"github.com/vwlab/vwharness/pkg/types"
)

const testAccount = "0x1234567890123456789012345678901234567890"

func newDispatcher(t *testing.T, opts ...dispatch.Option) *dispatch.Dispatcher {
	t.Helper()
	s, err := signer.FromSeed([]byte("probe-test-seed-000001"))
	require.NoError(t, err)

	d := dispatch.New(append([]dispatch.Option{dispatch.WithLogger(logger.Discard())}, opts...)...)
	require.NoError(t, dispatch.RegisterSimulated(d, dispatch.SimConfig{
		Account: testAccount,
		ChainID: big.NewInt(8453),
		Signer:  s,
	}))
	return d
}

func baseConfig() Config {
	return Config{
		Account:          testAccount,
		TargetOrigin:     "*",
		SDKVersion:       "^0.4.8",
		CollisionSamples: 100,
		Logger:           logger.Discard(),
	}
}

func byName(results []types.ProbeResult) map[string]types.ProbeResult {
	out := make(map[string]types.ProbeResult, len(results))
	for _, r := range results {
		out[r.Name] = r
	}
	return out
}

func TestRun_DefaultTarget(t *testing.T) {
	results := Run(context.Background(), newDispatcher(t), baseConfig())

	require.Len(t, results, 8)
	for i, name := range Names() {
		assert.Equal(t, name, results[i].Name)
		assert.NotEmpty(t, results[i].Boundary)
		assert.NotEmpty(t, results[i].Detail)
	}

	got := byName(results)
	assert.Equal(t, types.ProbePass, got[MalformedMessage].Status)
	assert.Equal(t, types.ProbeWarn, got[MissingID].Status)
	assert.Equal(t, types.ProbePass, got[UnknownMethod].Status)
	assert.Equal(t, types.ProbeFail, got[OriginWildcard].Status)
	assert.Equal(t, types.ProbePass, got[IDCollision].Status)
	assert.Equal(t, types.ProbeWarn, got[StorageExposure].Status)
	assert.Equal(t, types.ProbeFail, got[SDKVersionPin].Status)
	assert.Equal(t, types.ProbePass, got[HandlerEcho].Status)

	assert.Contains(t, got[UnknownMethod].Detail, "Method not found")
	assert.Contains(t, got[IDCollision].Detail, "100 ids generated, 0 collisions")

	assert.Equal(t, map[types.ProbeStatus]int{types.ProbePass: 4, types.ProbeWarn: 2, types.ProbeFail: 2}, Summarize(results))
}

func TestRun_HardenedTarget(t *testing.T) {
	cfg := baseConfig()
	cfg.TargetOrigin = "https://app.example.com"
	cfg.SDKVersion = "0.4.8"

	got := byName(Run(context.Background(), newDispatcher(t), cfg))

	assert.Equal(t, types.ProbePass, got[OriginWildcard].Status)
	assert.Equal(t, types.ProbePass, got[SDKVersionPin].Status)
}

func TestOriginWildcard(t *testing.T) {
	tests := []struct {
		origin string
		want   types.ProbeStatus
	}{
		{"*", types.ProbeFail},
		{"", types.ProbeFail},
		{"https://app.example.com", types.ProbePass},
		{"https://app.example.com/", types.ProbePass},
		{"http://localhost:3000", types.ProbeWarn},
		{"app.example.com", types.ProbeWarn},
		{"https://app.example.com/wallet", types.ProbeWarn},
	}

	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			cfg := baseConfig()
			cfg.TargetOrigin = tt.origin
			status, _ := originWildcard(context.Background(), nil, cfg)
			assert.Equal(t, tt.want, status)
		})
	}
}

func TestStorageExposure_KeyInVault(t *testing.T) {
	cfg := baseConfig()
	cfg.Vault = map[string]any{
		"address":    testAccount,
		"privateKey": "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318",
	}

	status, detail := storageExposure(context.Background(), nil, cfg)

	assert.Equal(t, types.ProbeFail, status)
	assert.Contains(t, detail, "$.privateKey")
}

func TestHandlerEcho_DetectsForgedID(t *testing.T) {
	d := dispatch.New(dispatch.WithLogger(logger.Discard()))
	require.NoError(t, d.Register("forged", func(ctx context.Context, req envelope.Request) envelope.Response {
		resp := envelope.Success(req, true)
		resp.ID = "other"
		return resp
	}))

	status, detail := handlerEcho(context.Background(), d, baseConfig())
	assert.Equal(t, types.ProbeFail, status)
	assert.Contains(t, detail, "forged")

	hardened := dispatch.New(dispatch.WithLogger(logger.Discard()), dispatch.WithIDEnforcement())
	require.NoError(t, hardened.Register("forged", func(ctx context.Context, req envelope.Request) envelope.Response {
		resp := envelope.Success(req, true)
		resp.ID = "other"
		return resp
	}))

	status, _ = handlerEcho(context.Background(), hardened, baseConfig())
	assert.Equal(t, types.ProbePass, status)
}

func TestHandlerEcho_NoHandlers(t *testing.T) {
	status, _ := handlerEcho(context.Background(), dispatch.New(dispatch.WithLogger(logger.Discard())), baseConfig())
	assert.Equal(t, types.ProbeWarn, status)
}

func TestRun_RecordsMetricsAndLogs(t *testing.T) {
	m := metrics.New()
	require.NoError(t, m.Register(prometheus.NewRegistry()))
	rec := logger.NewRecorder(nil)

	cfg := baseConfig()
	cfg.Metrics = m
	cfg.Logger = rec.Logger()

	Run(context.Background(), newDispatcher(t), cfg)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProbeResults.WithLabelValues(OriginWildcard, string(types.ProbeFail))))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProbeResults.WithLabelValues(MalformedMessage, string(types.ProbePass))))
	assert.Len(t, rec.Search("probe flagged weakness"), 4)
	assert.Len(t, rec.Search("probe passed"), 4)
}
