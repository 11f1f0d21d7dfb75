package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cuemby/flowdb/pkg/executor"
	"github.com/cuemby/flowdb/pkg/flowconfig"
	"github.com/cuemby/flowdb/pkg/flowevents"
	"github.com/cuemby/flowdb/pkg/flowlog"
	"github.com/cuemby/flowdb/pkg/flowmetrics"
	"github.com/cuemby/flowdb/pkg/storage"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a pipeline from a manifest",
	Long: `Run loads a pipeline manifest, opens its storage environment, wires the
configured source and sink into a graph, and drives it until interrupted.

Example:
  flowdb run -f pipeline.yaml`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringP("file", "f", "", "Pipeline manifest file (required)")
	runCmd.Flags().String("metrics-addr", "127.0.0.1:9090", "Metrics server listen address")
	_ = runCmd.MarkFlagRequired("file")
}

func runRun(cmd *cobra.Command, _ []string) error {
	file, _ := cmd.Flags().GetString("file")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

	m, err := flowconfig.Load(file)
	if err != nil {
		return err
	}

	env, err := storage.OpenEnv(m.StoragePath)
	if err != nil {
		return fmt.Errorf("flowdb: failed to open storage: %w", err)
	}
	defer env.Close()

	graph, _, err := buildGraph(m)
	if err != nil {
		return err
	}

	events := flowevents.NewBroker()
	events.Start()
	defer events.Stop()

	exec, err := executor.NewExecutor(graph, env, executor.Config{
		ChannelCapacity: m.ChannelCapacity,
		EpochInterval:   m.Epoch.Interval,
	}, events)
	if err != nil {
		return fmt.Errorf("flowdb: failed to build executor: %w", err)
	}

	flowmetrics.Register()
	go func() {
		http.Handle("/metrics", flowmetrics.Handler())
		if err := http.ListenAndServe(metricsAddr, nil); err != nil {
			flowlog.Logger.Error().Err(err).Msg("metrics server error")
		}
	}()
	fmt.Printf("✓ Metrics endpoint: http://%s/metrics\n", metricsAddr)

	if err := exec.Start(); err != nil {
		return fmt.Errorf("flowdb: failed to start pipeline: %w", err)
	}
	fmt.Printf("✓ Pipeline running (run %s). Press Ctrl+C to stop.\n", exec.RunID())

	errCh := make(chan error, 1)
	go func() { errCh <- exec.Wait() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		fmt.Println("\nShutting down...")
		exec.Stop()
		<-errCh
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("flowdb: pipeline failed: %w", err)
		}
	}

	fmt.Println("✓ Shutdown complete")
	return nil
}
