package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"resty.dev/v3"

	"github.com/mixhq/agent/internal/agent"
	"github.com/mixhq/agent/internal/config"
	"github.com/mixhq/agent/internal/health"
	"github.com/mixhq/agent/internal/logging"
	"github.com/mixhq/agent/internal/metrics"
	"github.com/mixhq/agent/internal/scheduler"
	"github.com/mixhq/agent/internal/uplink"
)

const staleSlack = time.Minute

func main() {
	ctx := context.Background()

	if len(os.Args) < 2 {
		printUsage(os.Stderr)
		os.Exit(1)
	}

	cmd := os.Args[1]
	var err error

	switch cmd {
	case "run":
		err = run(ctx, os.Args[2:])
	case "list":
		listAgents(os.Stdout, agent.DefaultRegistry())
	case "-h", "--help", "help":
		printUsage(os.Stdout)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage(os.Stderr)
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "command %s failed: %v\n", cmd, err)
		os.Exit(1)
	}
}

type runOptions struct {
	agent     string
	configDir string
	envFile   string
	debug     bool
	logJSON   bool
}

// parseRunArgs accepts the agent name before or after the flags.
func parseRunArgs(args []string) (runOptions, error) {
	var opts runOptions
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&opts.configDir, "config-dir", "", "Directory holding global.yml and <agent>.yml")
	fs.StringVar(&opts.envFile, "env-file", "", "Optional .env file loaded before configuration")
	fs.BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	fs.BoolVar(&opts.logJSON, "log-json", false, "Write logs as JSON lines")

	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		opts.agent = args[0]
		args = args[1:]
	}
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if opts.agent == "" {
		opts.agent = fs.Arg(0)
	}
	if opts.agent == "" {
		return opts, errors.New("agent name is required")
	}
	return opts, nil
}

func run(ctx context.Context, args []string) error {
	opts, err := parseRunArgs(args)
	if err != nil {
		return err
	}
	if err := loadEnv(opts.envFile); err != nil {
		return err
	}

	dir, err := config.ResolveDir(opts.configDir)
	if err != nil {
		return fmt.Errorf("resolve config dir: %w", err)
	}
	global, err := config.LoadGlobal(dir)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logging.New(logging.Options{Name: opts.agent, Dir: global.LogDir, JSON: opts.logJSON, Debug: opts.debug})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()
	logger.Info("agent starting", zap.String("config_dir", dir), zap.String("env", global.Env), zap.String("endpoint", global.MixEndpoint))

	store := metrics.NewStore()
	httpClient := resty.New().SetTimeout(global.TimeoutDuration())
	defer httpClient.Close()

	registry := agent.DefaultRegistry()
	ag, err := registry.Build(opts.agent, agent.Environment{
		ConfigDir:  dir,
		Global:     global,
		HTTPClient: httpClient,
		Logger:     logger,
		Metrics:    store,
	})
	if err != nil {
		return fmt.Errorf("init agent: %w", err)
	}

	checker := health.NewChecker(store, staleAfter(ag.Cron, global.TimeoutDuration(), time.Now()))
	shipper := uplink.NewClient(uplink.ConfigFromGlobal(global), uplink.Dependencies{
		HTTPClient: httpClient,
		Metrics:    store,
		Logger:     logger.Named("uplink"),
	})
	defer shipper.Close()

	runner := agent.NewRunner(ag.Collector, ag.Cron, agent.Dependencies{
		Builder:  uplink.NewBuilder(global, opts.agent),
		Shipper:  shipper,
		Logger:   logger,
		Metrics:  store,
		Observer: checker,
	})

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	grp, groupCtx := errgroup.WithContext(runCtx)

	grp.Go(func() error {
		if err := runner.Run(groupCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	if global.MetricsAddr != "" {
		grp.Go(func() error {
			return serveMonitoring(groupCtx, global.MetricsAddr, store, checker, logger)
		})
	}

	if err := grp.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		stop()
		return err
	}

	logger.Info("agent stopped")
	return nil
}

// loadEnv loads path, or ./.env when path is empty. Only an explicit path is
// required to exist.
func loadEnv(path string) error {
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load env file: %w", err)
		}
		return nil
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// staleAfter sizes the readiness window from the schedule's own interval.
func staleAfter(cron string, timeout time.Duration, now time.Time) time.Duration {
	schedule, err := scheduler.Parse(cron)
	if err != nil {
		return 0
	}
	next := schedule.Next(now)
	return health.StaleAfterFor(next, schedule.Next(next), timeout+staleSlack)
}

func listAgents(w io.Writer, registry agent.Registry) {
	for _, name := range registry.Names() {
		fmt.Fprintln(w, name)
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Mix Agent CLI")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  mix-agent run <agent> [--config-dir dir] [--env-file path] [--debug] [--log-json]")
	fmt.Fprintln(w, "  mix-agent list")
}

func monitoringHandler(store *metrics.Store, checker *health.Checker) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.NewHTTPHandler(store))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if checker == nil {
			w.WriteHeader(http.StatusOK)
			return
		}
		ready, reasons := checker.Ready(time.Now())
		if !ready {
			http.Error(w, strings.Join(reasons, "; "), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func serveMonitoring(ctx context.Context, addr string, store *metrics.Store, checker *health.Checker, logger *zap.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           monitoringHandler(store, checker),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("metrics listening", zap.String("addr", "http://"+addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
