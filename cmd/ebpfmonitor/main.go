// Command ebpfmonitor runs the eBPF system telemetry collector: it loads
// the monitors named in its config file, streams their records to CSV
// files and the console, and exposes Prometheus metrics and OpenTelemetry
// traces for its own operation.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mackeh/ebpfmonitor/internal/audit"
	"github.com/mackeh/ebpfmonitor/internal/capability"
	"github.com/mackeh/ebpfmonitor/internal/config"
	"github.com/mackeh/ebpfmonitor/internal/daemonctl"
	"github.com/mackeh/ebpfmonitor/internal/doctor"
	"github.com/mackeh/ebpfmonitor/internal/ebpfsrc"
	"github.com/mackeh/ebpfmonitor/internal/manager"
	"github.com/mackeh/ebpfmonitor/internal/monitor"
	"github.com/mackeh/ebpfmonitor/internal/output"
	"github.com/mackeh/ebpfmonitor/internal/telemetry"
)

var version = "0.1.0"

// Exit codes distinguish the failure class a supervisor should react to.
const (
	exitOK              = 0
	exitGeneric         = 1
	exitConfigError     = 2
	exitEnvironmentErr  = 3
	exitLoadError       = 4
	exitPidFileConflict = 5
)

func main() {
	var (
		configPath   string
		monitorsFlag string
		daemonFlag   bool
		daemonStatus bool
		daemonStop   bool
		verbose      bool
		doctorFlag   bool
		metricsAddr  string
	)

	root := &cobra.Command{
		Use:     "ebpfmonitor",
		Short:   "eBPF-based system telemetry collector",
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(runOpts{
				configPath:   configPath,
				monitorsFlag: monitorsFlag,
				daemon:       daemonFlag,
				daemonStatus: daemonStatus,
				daemonStop:   daemonStop,
				verbose:      verbose,
				doctor:       doctorFlag,
				metricsAddr:  metricsAddr,
			})
		},
	}

	root.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the YAML configuration file")
	root.Flags().StringVarP(&monitorsFlag, "monitors", "m", "", "comma-separated list of monitor types to run, overriding the config file")
	root.Flags().BoolVarP(&daemonFlag, "daemon", "d", false, "run in the background as a daemon")
	root.Flags().BoolVar(&daemonStatus, "daemon-status", false, "report whether the daemon is running and exit")
	root.Flags().BoolVar(&daemonStop, "daemon-stop", false, "stop the running daemon and exit")
	root.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug-level logging to stderr")
	root.Flags().BoolVar(&doctorFlag, "doctor", false, "run preflight health checks and exit")
	root.Flags().StringVar(&metricsAddr, "metrics-addr", "", "address to serve Prometheus /metrics on, e.g. :9090 (off by default)")

	root.InitDefaultVersionFlag()
	if vf := root.Flags().Lookup("version"); vf != nil {
		vf.Shorthand = "V"
	}

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitGeneric)
	}
}

type runOpts struct {
	configPath   string
	monitorsFlag string
	daemon       bool
	daemonStatus bool
	daemonStop   bool
	verbose      bool
	doctor       bool
	metricsAddr  string
}

func pidFilePath(cfg *config.Config) string {
	return filepath.Join(cfg.Output.Dir, "ebpfmonitor.pid")
}

func run(opts runOpts) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitConfigError)
	}
	pidFile := pidFilePath(cfg)

	if opts.doctor {
		results := doctor.RunAll(opts.configPath)
		failed := false
		for _, r := range results {
			symbol := "OK"
			switch r.Status {
			case doctor.StatusWarn:
				symbol = "WARN"
			case doctor.StatusFail:
				symbol = "FAIL"
				failed = true
			}
			fmt.Printf("[%s] %-24s %s\n", symbol, r.Name, r.Detail)
			if r.Fix != "" {
				fmt.Printf("       fix: %s\n", r.Fix)
			}
		}
		if failed {
			os.Exit(exitEnvironmentErr)
		}
		return nil
	}

	if opts.daemonStatus {
		pid, running := daemonctl.IsRunning(pidFile)
		if running {
			fmt.Printf("ebpfmonitor is running, pid %d\n", pid)
		} else {
			fmt.Println("ebpfmonitor is not running")
			os.Exit(exitGeneric)
		}
		return nil
	}

	if opts.daemonStop {
		if err := daemonctl.StopDaemon(pidFile); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(exitGeneric)
		}
		fmt.Println("ebpfmonitor stopped")
		return nil
	}

	if opts.daemon {
		if err := daemonctl.Daemonize(pidFile); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(exitPidFileConflict)
		}
	}

	if opts.monitorsFlag != "" {
		wanted := strings.Split(opts.monitorsFlag, ",")
		filtered := make(map[string]monitor.RawConfig, len(wanted))
		for _, name := range wanted {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			if !monitor.IsRegistered(name) {
				fmt.Fprintf(os.Stderr, "unknown monitor type %q\n", name)
				os.Exit(exitConfigError)
			}
			filtered[name] = cfg.MonitorConfig(name)
		}
		cfg.Monitors = filtered
	}

	report, err := capability.Check()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitEnvironmentErr)
	}

	ebpfDir, err := ebpfsrc.EnsureDir(filepath.Join(os.TempDir(), "ebpfmonitor-src"))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitGeneric)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Logging.File), 0o755); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitGeneric)
	}
	logFile, err := os.OpenFile(cfg.Logging.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitGeneric)
	}
	defer logFile.Close()

	logger := telemetry.NewLogger("ebpfmonitor", logFile)
	if opts.verbose {
		logger.SetOutput(os.Stderr)
	}
	logger.Printf("starting ebpfmonitor %s (kernel %s, flags %v)", version, report.Kernel, report.Flags)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	cleanup, err := telemetry.Setup(ctx, "ebpfmonitor", version, cfg.Telemetry.Enabled, logFile)
	if err != nil {
		logger.Printf("telemetry setup failed: %v", err)
	}
	defer cleanup(context.Background())

	shutdownMetrics := telemetry.ServeMetrics(opts.metricsAddr, logger)
	defer shutdownMetrics(context.Background())
	if opts.metricsAddr != "" {
		logger.Printf("serving prometheus metrics on %s/metrics", opts.metricsAddr)
	}

	auditLogger, err := audit.NewLogger(filepath.Join(cfg.Output.Dir, "audit.log"))
	if err != nil {
		logger.Printf("audit log unavailable, lifecycle events will not be recorded: %v", err)
		auditLogger = nil
	} else {
		defer auditLogger.Close()
	}

	// consoleWriter only gates whether console output can happen at all
	// (never in daemon mode); the controller itself further restricts actual
	// console rows to runs with exactly one registered monitor type, per
	// §4.6 — CSV files always get every monitor regardless.
	var consoleWriter io.Writer = io.Discard
	if !opts.daemon {
		consoleWriter = os.Stdout
	}
	controller := output.NewController(cfg.Output, consoleWriter, logger)

	mgr := manager.New(controller, logger, auditLogger)
	factory := monitor.NewFactory(ebpfDir, flagStrings(report.Flags), mgr.Sink())

	if err := mgr.Start(ctx, cfg, factory); err != nil {
		logger.Printf("manager start failed: %v", err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitLoadError)
	}
	for monitorType, loadErr := range mgr.LoadErrors() {
		logger.Printf("monitor %s did not start: %v", monitorType, loadErr)
	}

	shutdown := daemonctl.WatchShutdownSignals()
	<-shutdown
	logger.Printf("shutdown signal received, stopping")

	stopped := make(chan struct{})
	go func() {
		mgr.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(15 * time.Second):
		logger.Printf("shutdown timed out after 15s, exiting anyway")
	}

	logger.Printf("ebpfmonitor stopped")
	return nil
}

func flagStrings(flags []capability.Flag) []string {
	out := make([]string, len(flags))
	for i, f := range flags {
		out[i] = string(f)
	}
	return out
}
