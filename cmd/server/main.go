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

	"go.uber.org/zap"

	"github.com/yourusername/streamcast/internal/api"
	"github.com/yourusername/streamcast/internal/carrier"
	"github.com/yourusername/streamcast/internal/catalog"
	"github.com/yourusername/streamcast/internal/config"
	"github.com/yourusername/streamcast/internal/metrics"
	"github.com/yourusername/streamcast/internal/scheduler"
	"github.com/yourusername/streamcast/pkg/logger"
)

const version = "0.1.0"

func main() {
	showVersion := flag.Bool("version", false, "print version information and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("streamcast v%s\n", version)
		fmt.Printf("Go version: %s\n", runtime.Version())
		fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		os.Exit(0)
	}

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: %s <config.yaml>\n", os.Args[0])
		os.Exit(1)
	}
	configPath := flag.Arg(0)

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:      cfg.Logging.Level,
		FilePath:   cfg.Logging.FilePath,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("starting streamcast",
		zap.String("version", version),
		zap.String("go_version", runtime.Version()),
		zap.Int("num_cpu", runtime.NumCPU()),
		zap.Strings("channels", cfg.Channel),
	)

	if err := run(cfg, log); err != nil {
		log.Fatal("fatal error", zap.Error(err))
	}
	log.Info("streamcast stopped gracefully")
}

func run(cfg *config.Config, log *zap.Logger) error {
	cat, err := catalog.Load(cfg.Channel, cfg.Ch, log.Named("catalog"))
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	defer cat.Close()

	var metricsReg *metrics.Registry
	if cfg.Metrics.Enabled {
		metricsReg = metrics.New()
	}

	car := carrier.New(carrier.Config{
		Logger:        log.Named("carrier"),
		MaxFrameBytes: cfg.MaxWSFrameB,
		MaxQueueBytes: cfg.MaxWSQueueB,
	})

	sched := scheduler.New(scheduler.Config{
		Logger:        log.Named("scheduler"),
		Catalog:       cat,
		Carrier:       car,
		Metrics:       metricsReg,
		MaxBufferS:    cfg.MaxBufferS,
		MaxInFlightS:  cfg.MaxInFlightS,
		MaxFrameBytes: cfg.MaxWSFrameB,
		MaxQueueBytes: cfg.MaxWSQueueB,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	schedErr := make(chan error, 1)
	go func() { schedErr <- sched.Run(ctx) }()

	mux := http.NewServeMux()
	mux.HandleFunc("/stream", car.HandleWebSocket)
	streamSrv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Port), Handler: mux}

	listenErr := make(chan error, 1)
	go func() {
		var err error
		if cfg.TLSCert != "" {
			log.Info("streaming listener starting (tls)", zap.Int("port", cfg.Port))
			err = streamSrv.ListenAndServeTLS(cfg.TLSCert, cfg.TLSKey)
		} else {
			log.Info("streaming listener starting", zap.Int("port", cfg.Port))
			err = streamSrv.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			listenErr <- err
		}
	}()

	var adminSrv *api.Server
	if cfg.Admin.Enabled {
		adminSrv = api.NewServer(api.Config{
			Port:          cfg.Admin.Port,
			Catalog:       cat,
			Metrics:       metricsReg,
			Logger:        log.Named("admin"),
			ClientCounter: sched.ClientCount,
		})
		if err := adminSrv.Start(); err != nil {
			return fmt.Errorf("start admin server: %w", err)
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	log.Info("streamcast is running")

	var runErr error
	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", zap.String("signal", sig.String()))
	case err := <-schedErr:
		if err != nil && err != context.Canceled {
			log.Error("scheduler exited", zap.Error(err))
		}
	case err := <-listenErr:
		runErr = fmt.Errorf("streaming listener: %w", err)
	}

	cancel()
	car.CloseAll()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	streamSrv.Shutdown(shutdownCtx)
	if adminSrv != nil {
		adminSrv.Stop(shutdownCtx)
	}

	return runErr
}
