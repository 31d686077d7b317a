// Package main is the entry point for the quell binary.
// It provides a CLI for validating suppression policy configuration and
// for replaying failure-event batches through a policy as a dry run.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"gopkg.in/yaml.v3"

	"github.com/quellhq/quell/pkg/config"
	"github.com/quellhq/quell/pkg/domain"
	"github.com/quellhq/quell/pkg/logging"
	"github.com/quellhq/quell/pkg/policy"
	"github.com/quellhq/quell/pkg/telemetry"
	"github.com/quellhq/quell/pkg/txn"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCmd creates the root command for quell
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "quell",
		Short: "Policy-driven failure suppression for transactional document edits",
		Long: `quell decides, per failure event raised inside a transactional edit,
whether to suppress, auto-resolve, or escalate it.

The simulate command replays a batch of failure events through a configured
policy without touching any document, so suppression rules can be vetted
before they are registered with a live host.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(newValidateCmd())
	rootCmd.AddCommand(newSimulateCmd())

	return rootCmd
}

func newValidateCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a configuration file and print the effective policy",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			logger := logging.New(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
			pol, err := buildPolicy(cmd.Context(), cfg, logger, nil)
			if err != nil {
				return err
			}

			fmt.Printf("configuration valid\n")
			fmt.Printf("  mode:           %s\n", pol.Mode())
			fmt.Printf("  suppress rules: %d\n", len(pol.SuppressList()))
			for _, id := range pol.SuppressList() {
				fmt.Printf("    - %s\n", id)
			}
			if cfg.Policy.RegoFile != "" {
				fmt.Printf("  rego module:    %s\n", cfg.Policy.RegoFile)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to configuration file (YAML)")
	return cmd
}

func newSimulateCmd() *cobra.Command {
	var (
		configPath     string
		eventsPath     string
		metricsAddress string
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Replay a failure-event batch through the configured policy",
		Long: `Replay a batch of failure events through the configured policy inside a
throwaway in-memory transaction and report, per event, whether it was
suppressed, resolved, or escalated, along with the final directive.

When a metrics address is configured the resolution metrics are served on
/metrics until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if metricsAddress != "" {
				cfg.Metrics.Address = metricsAddress
			}
			return runSimulate(cmd.Context(), cfg, eventsPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to configuration file (YAML)")
	cmd.Flags().StringVarP(&eventsPath, "events", "e", "", "Path to failure-event batch file (YAML)")
	cmd.Flags().StringVar(&metricsAddress, "metrics-address", "", "Serve resolution metrics on this address until interrupted")
	if err := cmd.MarkFlagRequired("events"); err != nil {
		panic(err)
	}

	return cmd
}

func runSimulate(ctx context.Context, cfg *config.Config, eventsPath string) error {
	logger := logging.New(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})

	shutdown, err := telemetry.SetupProvider(ctx, telemetry.Config{
		ServiceName: "quell",
		Endpoint:    cfg.Telemetry.OTLPEndpoint,
		Insecure:    cfg.Telemetry.Insecure,
	})
	if err != nil {
		return fmt.Errorf("telemetry setup: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown failed", "error", err)
		}
	}()

	metrics := policy.NewMetrics()
	pol, err := buildPolicy(ctx, cfg, logger, metrics)
	if err != nil {
		return err
	}

	batch, err := loadEvents(eventsPath)
	if err != nil {
		return err
	}

	t := txn.Begin("simulate", pol, txn.WithLogger(logger))
	for _, ev := range batch {
		if err := t.RaiseFailure(ev.event, ev.resolvable); err != nil {
			return err
		}
	}

	report, commitErr := t.Commit(ctx)
	printReport(t, report, commitErr)

	if cfg.Metrics.Address != "" {
		return serveMetrics(ctx, cfg.Metrics.Address, metrics, logger)
	}
	return nil
}

// buildPolicy assembles the policy from configuration, compiling the Rego
// rule source when one is configured.
func buildPolicy(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *policy.Metrics) (*policy.Policy, error) {
	mode := policy.Mode(cfg.Policy.Mode)
	if cfg.Policy.Mode != "" {
		parsed, err := policy.ParseMode(cfg.Policy.Mode)
		if err != nil {
			return nil, fmt.Errorf("policy.mode: %w", err)
		}
		mode = parsed
	}

	suppress := make([]domain.DefinitionID, 0, len(cfg.Policy.Suppress))
	for _, id := range cfg.Policy.Suppress {
		suppress = append(suppress, domain.DefinitionID(id))
	}

	var rules policy.RuleSource
	if cfg.Policy.RegoFile != "" {
		source, err := os.ReadFile(cfg.Policy.RegoFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read rego module: %w", err)
		}
		regoRules, err := policy.NewRegoRules(ctx, cfg.Policy.RegoFile, string(source), logger)
		if err != nil {
			return nil, err
		}
		rules = regoRules
	}

	return policy.New(policy.Options{
		Mode:     mode,
		Suppress: suppress,
		Rules:    rules,
		Logger:   logger,
		Metrics:  metrics,
	})
}

type simEvent struct {
	event      domain.FailureEvent
	resolvable bool
}

// eventsFile is the YAML schema of a simulation batch.
type eventsFile struct {
	Events []struct {
		Definition string `yaml:"definition"`
		Severity   string `yaml:"severity"`
		Message    string `yaml:"message"`
		Resolvable bool   `yaml:"resolvable"`
	} `yaml:"events"`
}

func loadEvents(path string) ([]simEvent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read events file: %w", err)
	}

	var file eventsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse events file: %w", err)
	}

	batch := make([]simEvent, 0, len(file.Events))
	for i, raw := range file.Events {
		severity, err := domain.ParseSeverity(raw.Severity)
		if err != nil {
			return nil, fmt.Errorf("events[%d]: %w", i, err)
		}
		batch = append(batch, simEvent{
			event: domain.FailureEvent{
				Definition: domain.DefinitionID(raw.Definition),
				Severity:   severity,
				Message:    raw.Message,
			},
			resolvable: raw.Resolvable,
		})
	}
	return batch, nil
}

func printReport(t *txn.Transaction, report *txn.CommitReport, commitErr error) {
	fmt.Printf("transaction %s: %s\n", report.TransactionID, t.State())
	fmt.Printf("  passes:    %d\n", report.Passes)
	fmt.Printf("  directive: %s\n", report.Directive)
	if report.Forced {
		fmt.Printf("  commit was forced past prior failures\n")
	}
	for _, ev := range report.Suppressed {
		fmt.Printf("  suppressed: %s\n", ev)
	}
	for _, ev := range report.Resolved {
		fmt.Printf("  resolved:   %s\n", ev)
	}
	for _, ev := range report.Escalated {
		fmt.Printf("  escalated:  %s\n", ev)
	}
	if commitErr != nil {
		fmt.Printf("  outcome: %v\n", commitErr)
	} else {
		fmt.Printf("  outcome: committed\n")
	}
}

func serveMetrics(ctx context.Context, address string, metrics *policy.Metrics, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", otelhttp.NewHandler(metrics.Handler(), "metrics"))

	server := &http.Server{
		Addr:              address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("serving metrics", "address", address)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
	case <-ctx.Done():
	}

	logger.Info("shutting down metrics listener")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
