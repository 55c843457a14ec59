package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"camcapture/internal/core/domain"
	httphandlers "camcapture/internal/handlers/http"
	"camcapture/internal/infrastructure/middleware"
	"camcapture/internal/infrastructure/preview"
	"camcapture/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

func runServe() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	zapLogger := newLogger(cfg)
	defer zapLogger.Sync()
	log := zapLogger.Sugar()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := newApp(ctx, cfg, log, appOptions{
		bellOut:   stderrIfTerminal(),
		withRedis: true,
	})
	if err != nil {
		return err
	}

	if a.redisBus != nil {
		go func() {
			err := a.redisBus.Subscribe(ctx, func(event *domain.SessionEvent) error {
				log.Infow("remote session event",
					"type", event.Type,
					"session_id", event.SessionID,
					"attrs", event.Attributes,
				)
				return nil
			})
			if err != nil && ctx.Err() == nil {
				log.Errorw("redis subscription ended", "error", err)
			}
		}()
	}

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	cl := logger.NewContextLogger(zapLogger)

	router := gin.New()
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.TracingMiddleware())
	router.Use(middleware.RequestLoggerMiddleware(cl, string(a.session.ID()), a.collector))
	router.Use(middleware.ErrorHandlerMiddleware(cl))
	router.Use(middleware.NewHTTPRateLimitMiddleware(cfg))

	httphandlers.NewSessionHandler(a.controller, a.bus, a.defaultTier).SetupRoutes(router)

	var gatherer prometheus.Gatherer
	if cfg.Monitoring.PrometheusEnabled {
		gatherer = a.registry
		log.Info("Prometheus metrics enabled")
	}
	httphandlers.NewOpsHandler(a.health, gatherer).SetupRoutes(router)

	hubDone := make(chan struct{})
	if cfg.Preview.Enabled {
		hub := preview.NewHub(preview.Config{
			FrameRate:    cfg.Preview.FrameRate,
			MaxWidth:     cfg.Preview.MaxWidth,
			JPEGQuality:  cfg.Preview.JPEGQuality,
			PingInterval: cfg.Preview.PingInterval,
			PongTimeout:  cfg.Preview.PongTimeout,
			MaxClients:   cfg.Preview.MaxClients,
		}, a.session, a.platform, a.renderer, a.controller, log.With("component", "preview"))
		hub.SetMetrics(a.collector)

		events, unsubscribe := a.bus.Subscribe(64)
		defer unsubscribe()
		go func() {
			hub.Run(ctx, events)
			close(hubDone)
		}()
		router.GET("/ws/preview", gin.WrapH(hub))
	} else {
		close(hubDone)
	}

	if cfg.Capture.AutoStart {
		if err := a.controller.Start(ctx, a.defaultTier); err != nil {
			log.Errorw("camera acquisition failed at startup", "tier", a.defaultTier, "error", err)
		}
	}

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infof("Starting camcapture on %s", cfg.Server.Address)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case runErr = <-serverErr:
		log.Errorw("Server failed", "error", runErr)
	case sig := <-sigChan:
		log.Infow("Received shutdown signal", "signal", sig)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Error during server shutdown", "error", err)
		if closeErr := srv.Close(); closeErr != nil {
			log.Errorw("Error force closing server", "error", closeErr)
		}
	} else {
		log.Info("Server shutdown gracefully")
	}

	cancel()
	select {
	case <-hubDone:
	case <-time.After(5 * time.Second):
		log.Warn("preview hub did not stop in time")
	}

	a.Close(shutdownCtx)
	log.Info("camcapture stopped")
	return runErr
}
