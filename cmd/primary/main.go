// cmd/primary is the main entrypoint for the log's primary node.
//
// Configuration is read from the environment, with pflag overrides for
// local runs:
//
//	./primary --port 8080 --secondaries localhost:9001,localhost:9002
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"replicated-log/internal/api"
	"replicated-log/internal/config"
	"replicated-log/internal/coordinator"
	"replicated-log/internal/dispatch"
	"replicated-log/internal/health"
	"replicated-log/internal/ledger"
	"replicated-log/internal/logging"
	"replicated-log/internal/metrics"
)

func main() {
	port := pflag.Int("port", config.IntEnv("PORT", 8080), "Listen port")
	host := pflag.String("host", config.StringEnv("HOST", "0.0.0.0"), "Listen host")
	secondaries := pflag.String("secondaries", config.StringEnv("SECONDARIES", ""), "Comma-separated secondary addresses (host:port)")
	logLevel := pflag.String("log-level", config.StringEnv("LOG_LEVEL", "info"), "Log level: debug, info, warn, error")
	healthInterval := pflag.Duration("health-interval", config.DurationMsEnv("HEALTH_INTERVAL_MS", time.Second), "Interval between replica health probes")
	pflag.Parse()

	logger, err := logging.New(*logLevel)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	addrs := config.SplitAddrs(*secondaries)
	n := len(addrs)

	m := metrics.NewPrimary()

	ackBus := dispatch.NewAckBus()
	d := dispatch.New(addrs, ackBus, logger, m)

	grace := 3 * (*healthInterval)
	prober := health.New(addrs, *healthInterval, grace, logger, m)

	l := ledger.New()
	coord := coordinator.New(l, d, ackBus, prober, n, logger, m)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d.Start(ctx)
	go prober.Start(ctx)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(api.Logger(logger), api.Recovery(logger))

	handler := api.NewPrimaryHandler(coord, prober, logger)
	handler.Register(router)
	router.GET("/metrics", gin.WrapH(m.Handler()))

	addr := *host + ":" + strconv.Itoa(*port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("primary listening", zap.String("addr", addr), zap.Int("replicas", n))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down primary")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
}
