package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/ls-1801/VMLauncher/internal/config"
	"github.com/ls-1801/VMLauncher/pkg/launcher"
	"github.com/ls-1801/VMLauncher/pkg/nodeconfig"
	"github.com/ls-1801/VMLauncher/pkg/observability"
	"github.com/ls-1801/VMLauncher/pkg/procmgr"
	"github.com/ls-1801/VMLauncher/pkg/signalbridge"
	"github.com/ls-1801/VMLauncher/pkg/topology"
)

const metricsNamespace = "vmlauncher"

var launchConfigDir string

var launchCmd = &cobra.Command{
	Use:   "launch <topology.yaml>",
	Short: "Launch a fleet and supervise it until interrupted",
	Long: `Launch allocates identities for every node in the topology, renders their
configurations, starts the coordinator and waits for it to become ready,
then starts the workers. The fleet runs until SIGINT or SIGTERM, or until
the coordinator exits.

Example:
  vmlauncher launch fleet.yaml
  VMLAUNCHER_LAUNCH_SUDO=true vmlauncher launch --config-dir /srv/nes fleet.yaml
`,
	Args: cobra.ExactArgs(1),
	RunE: runLaunch,
}

func init() {
	rootCmd.AddCommand(launchCmd)
	launchCmd.Flags().StringVar(&launchConfigDir, "config-dir", "", "Directory for rendered node configs (overrides run.config_dir)")
}

func runLaunch(cmd *cobra.Command, args []string) error {
	topo, err := topology.Load(args[0])
	if err != nil {
		return launcher.ErrInvalidTopology(err)
	}

	tmpl, err := loadTemplate()
	if err != nil {
		return launcher.ErrTemplate("*", err).WithContext("template", cfg.Run.Template)
	}

	tracing, err := observability.NewTracing(cmd.Context(), observability.TracingConfig{
		ServiceName:    "vmlauncher",
		ServiceVersion: rootCmd.Version,
		Enabled:        cfg.Tracing.Enabled,
		Exporter:       cfg.Tracing.Exporter,
		Writer:         cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracing.Shutdown(ctx); err != nil {
			logger.Warn("tracing shutdown failed", "error", err)
		}
	}()

	metrics := procmgr.NewPrometheusMetricsCollector(metricsNamespace)
	if cfg.Metrics.Port > 0 {
		srv := observability.NewMetricsServer(fmt.Sprintf(":%d", cfg.Metrics.Port), metrics.Registry())
		if err := srv.Start(); err != nil {
			return err
		}
		logger.Info("serving metrics", "addr", srv.Addr())
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(ctx)
		}()
	}

	coordProbe, workerProbe := readinessProbes(cfg.Readiness)

	opts := []launcher.Option{
		launcher.WithConfig(supervisorConfig(cfg)),
		launcher.WithTemplate(tmpl),
		launcher.WithCoordinatorProbe(coordProbe),
		launcher.WithWorkerProbe(workerProbe),
		launcher.WithMetricsCollector(metrics),
		launcher.WithLogger(logger),
		launcher.WithTracer(tracing.Tracer("github.com/ls-1801/VMLauncher/pkg/launcher")),
	}
	if limiter := startLimiter(cfg.Run.StartRate); limiter != nil {
		opts = append(opts, launcher.WithStartLimiter(limiter))
	}
	supervisor := launcher.NewSupervisor(execLauncher(cfg.Launch), opts...)

	bridge := signalbridge.New(
		signalbridge.WithEscalation(escalateAfter(cfg.Run), supervisor.KillAll),
		signalbridge.WithLogger(logger),
	)
	ctx := bridge.Start(cmd.Context())
	defer bridge.Stop()

	uiInstance.Info(fmt.Sprintf("Launching %d nodes from %s (Ctrl-C to stop)", topo.NodeCount(), topo.Path()))

	report, runErr := supervisor.Run(ctx, topo)
	uiInstance.RenderReport(report)
	if runErr != nil || !report.Success {
		return errRunFailed
	}
	return nil
}

// supervisorConfig maps the file configuration onto the supervisor's
func supervisorConfig(c *config.Config) launcher.Config {
	dir := c.Run.ConfigDir
	if launchConfigDir != "" {
		dir = launchConfigDir
	}
	return launcher.Config{
		GracePeriod:        c.Run.GracePeriod,
		KillTimeout:        c.Run.KillTimeout,
		ReadyTimeout:       c.Run.ReadyTimeout,
		WorkerReadyTimeout: c.Run.WorkerReadyTimeout,
		ConfigDir:          dir,
		CoordinatorCommand: c.Launch.CoordinatorCommand,
		WorkerCommand:      c.Launch.WorkerCommand,
		Env:                c.Launch.Env,
	}
}

func execLauncher(c config.LaunchConfig) *procmgr.ExecLauncher {
	l := &procmgr.ExecLauncher{
		ConfigFlag: c.ConfigFlag,
		Logger:     logger,
	}
	if c.Sudo {
		l.Wrap = procmgr.Sudo()
	}
	return l
}

// readinessProbes returns the coordinator and worker probes for a mode
func readinessProbes(c config.ReadinessConfig) (launcher.ReadinessProbe, launcher.ReadinessProbe) {
	switch c.Mode {
	case config.ReadinessSettle:
		return launcher.SettleDelay(c.SettleDelay), launcher.SettleDelay(c.SettleDelay)
	case config.ReadinessNone:
		return launcher.ProcessAlive(), launcher.ProcessAlive()
	default:
		return launcher.TCPProbe(nodeconfig.CoordinatorPort, c.DialTimeout),
			launcher.TCPProbe(nodeconfig.RPCPort, c.DialTimeout)
	}
}

// escalateAfter is the window in which repeated signals are ignored
func escalateAfter(c config.RunConfig) time.Duration {
	if c.EscalateAfter > 0 {
		return c.EscalateAfter
	}
	return c.GracePeriod
}

func startLimiter(perSecond float64) *rate.Limiter {
	if perSecond <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(perSecond), 1)
}
