package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/pribylovaa/signal-dashboard/internal/clients"
	"github.com/pribylovaa/signal-dashboard/internal/config"
	"github.com/pribylovaa/signal-dashboard/internal/guard"
	dashhttp "github.com/pribylovaa/signal-dashboard/internal/http"
	"github.com/pribylovaa/signal-dashboard/internal/session"
	"github.com/pribylovaa/signal-dashboard/internal/telemetry"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to config file")
	flag.Parse()

	cfg := config.MustLoad(configPath)

	log := setupLogger(cfg.Env)
	slog.SetDefault(log)
	log.Info("starting signal-dashboard", "env", cfg.Env)

	rootCtx, rootCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer rootCancel()

	shutdownTracing, err := telemetry.Setup(rootCtx, cfg.Telemetry, log)
	if err != nil {
		// Без трейсов дашборд работает.
		log.Warn("telemetry_init_failed", slog.String("err", err.Error()))
	}

	cl, err := clients.New(*cfg, log)
	if err != nil {
		log.Error("clients_init_failed", slog.String("err", err.Error()))
		os.Exit(1)
	}

	defer func() {
		if cerr := cl.Close(); cerr != nil {
			log.Warn("clients_close_failed", slog.String("err", cerr.Error()))
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	svc := session.New(session.Deps{
		Identity:   cl.Identity,
		Tickets:    cl.Tickets,
		HTTPClient: cl.Data,
		Registerer: reg,
	}, cfg.Session)

	svc.OnChange(func(st session.Status) {
		args := []any{slog.String("state", st.State.String())}
		if st.Session != nil {
			args = append(args, slog.String("user_id", st.Session.UserID))
		}
		log.Info("session_state_changed", args...)
	})

	signals, err := cl.Analytics(svc.Executor())
	if err != nil {
		log.Error("analytics_init_failed", slog.String("err", err.Error()))
		os.Exit(1)
	}

	log.Info("clients_initialized")

	var listening atomic.Bool
	ready := func() bool {
		select {
		case <-svc.Restored():
			return listening.Load()
		default:
			return false
		}
	}

	router := dashhttp.NewRouter(svc, signals, dashhttp.Options{
		Logger:  log,
		Timeout: cfg.Timeouts.Service,
		Guard:   guard.New(cfg.Routes),
		Ready:   ready,
		Metrics: promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
	})

	httpAddr := cfg.HTTP.Addr()
	httpSrv := &http.Server{
		Addr:              httpAddr,
		Handler:           otelhttp.NewHandler(router, "signal-dashboard"),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ln, err := net.Listen("tcp", httpAddr)
	if err != nil {
		log.Error("http_listen_failed", slog.String("addr", httpAddr), slog.String("err", err.Error()))
		os.Exit(1)
	}

	log.Info("http_listen_start", slog.String("addr", httpAddr))

	serveErrCh := make(chan error, 1)
	go func() {
		if err := httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErrCh <- err
		}
		close(serveErrCh)
	}()

	listening.Store(true)

	// Восстановление сессии из refresh-cookie; до его завершения страницы отвечают 503.
	go func() {
		if s := svc.Restore(rootCtx); s != nil {
			log.Info("dashboard_ready", slog.String("user_id", s.UserID))
			return
		}
		log.Info("dashboard_ready")
	}()

	select {
	case <-rootCtx.Done():
		log.Info("shutdown_requested")
	case err := <-serveErrCh:
		if err != nil {
			log.Error("http_serve_failed", slog.String("err", err.Error()))
		}
	}

	listening.Store(false)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http_shutdown_incomplete", slog.String("err", err.Error()))
	} else {
		log.Info("http_stopped")
	}

	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Warn("telemetry_shutdown_failed", slog.String("err", err.Error()))
	}

	log.Info("service_stopped")
}

func setupLogger(env string) *slog.Logger {
	switch env {
	case envLocal:
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case envDev:
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case envProd:
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	default:
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
}
