// cmd/secondary is the main entrypoint for a replicated-log replica node.
//
//	./secondary --port 9001 --delay-ms 0
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
	"replicated-log/internal/logging"
	"replicated-log/internal/metrics"
	"replicated-log/internal/replica"
)

func main() {
	port := pflag.Int("port", config.IntEnv("PORT", 9001), "Listen port")
	host := pflag.String("host", config.StringEnv("HOST", "0.0.0.0"), "Listen host")
	delayMs := pflag.Int64("delay-ms", int64(config.DurationMsEnv("DELAY_MS", 0)/time.Millisecond), "Artificial ingest delay in milliseconds")
	logLevel := pflag.String("log-level", config.StringEnv("LOG_LEVEL", "info"), "Log level: debug, info, warn, error")
	pflag.Parse()

	logger, err := logging.New(*logLevel)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	m := metrics.NewReplica()
	store := replica.New(time.Duration(*delayMs) * time.Millisecond)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(api.Logger(logger), api.Recovery(logger))

	handler := api.NewReplicaHandler(store, m, logger)
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
		logger.Info("secondary listening", zap.String("addr", addr), zap.Duration("delay", store.Delay()))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down secondary")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
}
