package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/gin-gonic/gin"

	"marketpulse/config"
	"marketpulse/internal/alert"
	"marketpulse/internal/api"
	"marketpulse/internal/gateway"
	"marketpulse/internal/indicator"
	"marketpulse/internal/logger"
	"marketpulse/internal/markethours"
	"marketpulse/internal/metrics"
	"marketpulse/internal/model"
	"marketpulse/internal/notification"
	"marketpulse/internal/quote"
	"marketpulse/internal/refresh"
	"marketpulse/internal/service"
	"marketpulse/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "error", err)
		os.Exit(1)
	}
	log := logger.Init("marketpulse", logger.ParseLevel(cfg.LogLevel))

	groups, err := cfg.Groups()
	if err != nil {
		log.Error("instrument universe load failed", "error", err)
		os.Exit(1)
	}

	if err := run(cfg, groups, log); err != nil {
		log.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, groups []model.Group, log *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info("shutdown signal received", "signal", sig.String())
		cancel()
	}()

	// ---- Metrics & health ----
	prom := metrics.New(nil)
	health := metrics.NewHealthStatus()

	// ---- Stores ----
	cache := store.NewPriceCache()
	history := store.NewHistory(cfg.HistoryLimit)
	prom.ObserveHistoryEvictions(history.Evicted)
	alertHistory := store.NewAlertHistory()
	watchlists := store.NewWatchlists()

	// ---- Notifications ----
	var telegram, email notification.Notifier
	if cfg.TelegramBotToken != "" {
		telegram = notification.NewTelegramNotifier(cfg.TelegramBotToken, "")
	}
	if smtp := cfg.SMTP(); smtp.Enabled() {
		email = notification.NewEmailNotifier(smtp)
	}
	dispatcher := notification.NewDispatcher(
		notification.NewWebhookNotifier(&http.Client{Timeout: cfg.HTTPTimeout}),
		telegram, email, log,
	)
	queue := notification.NewQueue(dispatcher, 256, cfg.HTTPTimeout, prom, log)

	// ---- Core ----
	session := markethours.NYSE()
	alerts := alert.NewEngine(alertHistory, queue, cfg.AlertDefaultTarget, prom, log)
	source := quote.NewClient(cfg.QuoteOptions(), prom, log)

	scheduler := refresh.New(refresh.Config{
		BatchSize:  cfg.BatchSize,
		BatchPause: cfg.BatchPause,
		PassPause:  cfg.PassPause,
	}, refresh.Deps{
		Groups:     groups,
		Source:     source,
		Engine:     indicator.NewEngine(session),
		Session:    session,
		Cache:      cache,
		History:    history,
		Watchlists: watchlists,
		Alerts:     alerts,
		Metrics:    prom,
		Health:     health,
		Log:        log,
	})

	// ---- Distribution ----
	var sinks []model.Publisher
	var rdb *goredis.Client
	if cfg.RedisAddr != "" {
		rdb = goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		pingCtx, pingCancel := context.WithTimeout(ctx, 3*time.Second)
		health.CheckRedis(pingCtx, rdb)
		pingCancel()
		if r, _ := health.Report(); !r.RedisConnected {
			log.Warn("redis unreachable, publishing will retry every tick", "addr", cfg.RedisAddr)
		}
		sinks = append(sinks, gateway.NewRedisSink(rdb, cfg.RedisChannel))
		health.StartLivenessChecker(ctx, rdb, 10*time.Second)
	}
	hub := gateway.NewHub(cache, prom, log, sinks...)

	// ---- HTTP ----
	svc := service.New(service.Deps{
		Groups:       groups,
		Cache:        cache,
		History:      history,
		AlertHistory: alertHistory,
		Watchlists:   watchlists,
		Alerts:       alerts,
		Computer:     scheduler,
		Log:          log,
	})

	gin.SetMode(gin.ReleaseMode)
	opts := api.Options{
		Service: svc,
		WS:      http.HandlerFunc(hub.ServeWS),
		Health:  health,
		Log:     log,
	}
	var metricsSrv *metrics.Server
	if cfg.MetricsAddr == "" {
		opts.Metrics = prom.Handler()
	} else {
		metricsSrv = metrics.NewServer(cfg.MetricsAddr, prom, health, log)
		metricsSrv.Start()
	}
	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.NewRouter(opts),
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Info("starting",
		"http_addr", cfg.HTTPAddr,
		"groups", len(groups),
		"redis_sink", cfg.RedisAddr != "",
		"market", session.StatusString(time.Now()),
	)

	var wg sync.WaitGroup
	wg.Add(3)
	go func() { defer wg.Done(); queue.Run(ctx) }()
	go func() { defer wg.Done(); hub.Run(ctx, cfg.PushInterval) }()
	go func() { defer wg.Done(); scheduler.Run(ctx) }()

	serveErr := make(chan error, 1)
	go func() {
		log.Info("http server listening", "addr", cfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err, ok := <-serveErr:
		if ok {
			runErr = err
		}
		cancel()
	}

	// ---- Shutdown ----
	log.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", "error", err)
	}
	if metricsSrv != nil {
		if err := metricsSrv.Stop(shutdownCtx); err != nil {
			log.Warn("metrics shutdown", "error", err)
		}
	}
	wg.Wait()
	for _, s := range sinks {
		if err := s.Close(); err != nil {
			log.Warn("sink close", "error", err)
		}
	}
	log.Info("stopped")
	return runErr
}
