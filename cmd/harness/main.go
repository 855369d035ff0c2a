package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/vwlab/vwharness/internal/app"
	"github.com/vwlab/vwharness/internal/config"
	"github.com/vwlab/vwharness/internal/eth"
	"github.com/vwlab/vwharness/internal/inspect"
	"github.com/vwlab/vwharness/internal/logger"
	"github.com/vwlab/vwharness/internal/probe"
	"github.com/vwlab/vwharness/internal/storage"
	apperrors "github.com/vwlab/vwharness/pkg/errors"
	"github.com/vwlab/vwharness/pkg/types"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	var (
		out    = flag.String("out", cfg.ReportPath, "Report output path")
		format = flag.String("format", cfg.ReportFormat, "Report format: markdown or json")
		scan   = flag.String("scan", "", "Storage dump to scan for key material (JSON or text)")
		logOut = flag.String("log-out", "", "Write every captured log entry of the run to this file")
	)
	flag.Parse()

	if err := logger.Init(cfg.LogFormat, cfg.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	rec := logger.NewRecorder(slog.Default().Handler())
	slog.SetDefault(rec.Logger())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = run(ctx, cfg, *out, *format, *scan)
	if err != nil {
		slog.Error("harness failed", "error", err)
	}
	if *logOut != "" {
		if werr := writeLog(*logOut, rec.Entries()); werr != nil {
			slog.Error("failed to write run log", "path", *logOut, "error", werr)
		}
	}
	if err != nil {
		stop()
		os.Exit(1)
	}
}

func writeLog(path string, entries []logger.Entry) error {
	var b strings.Builder
	for _, e := range entries {
		b.WriteString(e.Time.UTC().Format(time.RFC3339))
		b.WriteByte(' ')
		b.WriteString(e.String())
		b.WriteByte('\n')
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}

func run(ctx context.Context, cfg *config.Config, out, format, scan string) error {
	for _, f := range inspect.DebugFlags(os.LookupEnv) {
		slog.Warn("debug flag set", "name", f.Name, "value", f.Value)
	}
	if inspect.DevelopmentMode(os.LookupEnv) {
		slog.Warn("running with a development build configuration")
	}

	if scan != "" {
		if err := scanFile(scan); err != nil {
			return err
		}
	}

	if cfg.RPCURL != "" {
		checkChain(ctx, cfg)
	}

	var opts []app.Option
	if cfg.PostgresDSN != "" {
		store, err := storage.New(ctx, cfg.PostgresDSN)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer store.Close()
		opts = append(opts,
			app.WithObserver(storage.NewTranscriptRepo(store.DB(), slog.Default())),
			app.WithRunRecorder(storage.NewRunRepo(store.DB())),
		)
	}

	h, err := app.NewHarness(cfg, opts...)
	if err != nil {
		return err
	}

	res, err := h.Run(ctx, out, format)
	if err != nil {
		return err
	}

	statuses := probe.Summarize(res.Probes)
	slog.Info("report written",
		"path", res.ReportPath,
		"run_id", res.ID.String(),
		"critical", res.Counts[types.SeverityCritical],
		"high", res.Counts[types.SeverityHigh],
		"probes_failed", statuses[types.ProbeFail],
		"probes_warned", statuses[types.ProbeWarn],
	)
	fmt.Println(res.ReportPath)
	return nil
}

// checkChain compares the configured chain with the RPC endpoint. A mismatch
// is logged, not fatal: the report does not depend on it.
func checkChain(ctx context.Context, cfg *config.Config) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	client, err := eth.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		slog.Warn("chain check skipped", "error", err)
		return
	}
	defer client.Close()

	if err := client.VerifyChain(cfg.ChainID); err != nil {
		if apperrors.HasCode(err, apperrors.ErrCodeChainMismatch) {
			slog.Warn("simulated chain differs from RPC endpoint", "error", err)
		} else {
			slog.Warn("chain check failed", "error", err)
		}
		return
	}

	status, err := client.Describe(ctx, cfg.AccountAddress)
	if err != nil {
		slog.Warn("failed to describe vault account", "error", err)
		return
	}
	slog.Info("chain check passed",
		"chain_id", status.ChainID,
		"block", status.BlockNumber,
		"account", status.Account,
		"balance", status.Balance.String(),
		"nonce", status.Nonce,
	)
}

func scanFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read scan input: %w", err)
	}

	// not every dump is JSON
	matches, err := inspect.ScanJSON(b)
	if err != nil {
		matches = inspect.ScanText(string(b))
	}

	for _, m := range matches {
		slog.Warn("sensitive data in storage dump", "file", path, "match", m.String())
	}
	slog.Info("scan complete", "file", path, "matches", len(matches))
	return nil
}
