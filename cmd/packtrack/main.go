package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"packtrack/internal/api"
	"packtrack/internal/catalog"
	"packtrack/internal/config"
	"packtrack/internal/notify"
	"packtrack/internal/purchases"
	"packtrack/internal/recipelinks"
	"packtrack/internal/reports"
	"packtrack/internal/store"
	"packtrack/internal/usage"
	"packtrack/internal/valuation"
)

var (
	port        = flag.Int("port", 0, "API server port (overrides config)")
	metricsPort = flag.Int("metrics-port", 0, "Metrics server port (overrides config)")
	configFile  = flag.String("config", "configs/config.yaml", "Path to configuration file")
	dataDir     = flag.String("data-dir", "", "Data directory (overrides config)")
)

func main() {
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *metricsPort != 0 {
		cfg.Metrics.Port = *metricsPort
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	st, err := store.New(cfg.DataDir, log)
	if err != nil {
		log.WithError(err).Fatal("failed to open data directory")
	}

	notifier := notify.NewNotifier(log)

	cat, err := catalog.New(st, valuation.Method(cfg.CostMethod), notifier, log)
	if err != nil {
		log.WithError(err).Fatal("failed to load material catalog")
	}
	pur, err := purchases.New(st, cat, notifier, log)
	if err != nil {
		log.WithError(err).Fatal("failed to load purchase ledger")
	}
	links, err := recipelinks.New(st, cat, notifier, log)
	if err != nil {
		log.WithError(err).Fatal("failed to load recipe links")
	}
	usg, err := usage.New(st, cat, links, notifier, log)
	if err != nil {
		log.WithError(err).Fatal("failed to load usage ledger")
	}

	metrics := api.NewMetrics()
	exporter := reports.NewExporter(cat, pur)
	server := api.NewServer(cat, pur, links, usg, notifier, metrics, exporter, log)

	if cfg.Metrics.Enabled {
		go startMetricsServer(cfg.Metrics.Port, cfg.Metrics.Path, metrics, log)
	}

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: server.Router(),
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("API server shutdown error")
		}
	}()

	log.WithField("port", cfg.Server.Port).Info("starting API server")
	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		log.WithError(err).Fatal("API server error")
	}
}

func startMetricsServer(port int, path string, metrics *api.Metrics, log *logrus.Logger) {
	router := gin.Default()
	router.GET(path, gin.WrapH(promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{})))

	log.WithField("port", port).Info("starting metrics server")
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: router,
	}
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.WithError(err).Error("metrics server error")
	}
}
