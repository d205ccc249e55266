// Package main implements the diskless-boot control plane daemon.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"

	"github.com/nls90/bootplane/pkg/api"
	"github.com/nls90/bootplane/pkg/boot"
	"github.com/nls90/bootplane/pkg/cmdexec"
	"github.com/nls90/bootplane/pkg/config"
	"github.com/nls90/bootplane/pkg/lvm"
	"github.com/nls90/bootplane/pkg/metrics"
	"github.com/nls90/bootplane/pkg/store"
	"github.com/nls90/bootplane/pkg/tgt"
)

// Build-time variables set via -ldflags.
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

var (
	configPath  = flag.String("config", "", "Path to the YAML configuration file")
	listenAddr  = flag.String("listen-addr", "", "Address the HTTP API binds (overrides config)")
	metricsAddr = flag.String("metrics-addr", "", "Address the Prometheus endpoint binds (overrides config)")
	database    = flag.String("database", "", "Path of the SQLite metadata store (overrides config)")
	showVersion = flag.Bool("show-version", false, "Show version and exit")
	debug       = flag.Bool("debug", false, "Enable debug logging (equivalent to -v=4)")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	if *debug {
		if err := flag.Set("v", "4"); err != nil {
			klog.Warningf("Failed to set verbosity level: %v", err)
		}
	}

	if *showVersion {
		fmt.Printf("bootplane version: %s\n", version)
		fmt.Printf("  Git commit: %s\n", gitCommit)
		fmt.Printf("  Build date: %s\n", buildDate)
		fmt.Printf("  Go version: %s\n", runtime.Version())
		fmt.Printf("  Platform:   %s/%s\n", runtime.GOOS, runtime.GOARCH)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		klog.Fatalf("Failed to load configuration: %v", err)
	}
	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}
	if *metricsAddr != "" {
		cfg.MetricsAddr = *metricsAddr
	}
	if *database != "" {
		cfg.Database = *database
	}

	metrics.SetVersionInfo(version, gitCommit, buildDate)
	klog.Infof("Starting bootplane %s (commit: %s, built: %s)", version, gitCommit, buildDate)
	klog.V(4).Infof("Listen address: %s", cfg.ListenAddr)
	klog.V(4).Infof("Database: %s", cfg.Database)

	st, err := store.Open(cfg.Database)
	if err != nil {
		klog.Fatalf("Failed to open metadata store: %v", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			klog.Warningf("Failed to close metadata store: %v", err)
		}
	}()

	runner := cmdexec.NewRunner()
	core := boot.NewCore(st,
		boot.TargetFactoryFunc(func(id int64, name string) boot.TargetHandle {
			return tgt.NewTarget(id, name, runner)
		}),
		lvm.NewManager(runner))
	server := api.NewServer(st, core)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Serve(ctx, cfg.ListenAddr)
	})
	g.Go(func() error {
		return serveMetrics(ctx, cfg.MetricsAddr)
	})

	if err := g.Wait(); err != nil && err != http.ErrServerClosed {
		klog.Fatalf("Failed to run bootplane: %v", err)
	}
	klog.Info("Shut down")
}

func serveMetrics(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		klog.Infof("Metrics listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
