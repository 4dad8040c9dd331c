package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"cosmicam/internal/config"
	"cosmicam/internal/handlers"
	"cosmicam/internal/hardware"
	"cosmicam/internal/logger"
	"cosmicam/internal/repository"
	"cosmicam/internal/repository/db"
	"cosmicam/internal/server"
	"cosmicam/internal/service"
)

const (
	pwmChip    = "pwmchip0"
	pwmChannel = 0

	shutdownTimeout = 10 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Logger level comes from the config, so bootstrap at info here.
		logger.Get(logger.InfoLevel).Fatalw("error reading config", "err", err)
	}

	log := logger.Get(cfg.LogLevel)

	sqlDB, err := db.InitDB(cfg.DB.Path)
	if err != nil {
		log.Fatalw("failed to init sqlite", "err", err, "path", cfg.DB.Path)
	}
	defer func() {
		if cerr := sqlDB.Close(); cerr != nil {
			log.Errorw("failed to close sqlite", "err", cerr)
		}
	}()

	pwm, err := hardware.NewSysfsPWM(pwmChip, pwmChannel)
	if err != nil {
		log.Fatalw("failed to init fan pwm", "err", err, "chip", pwmChip, "channel", pwmChannel)
	}

	repos := repository.NewRepository(sqlDB)
	services, err := service.NewService(service.Deps{
		Config: cfg,
		Repos:  repos,
		Camera: hardware.NewLibcameraStill(),
		Sensor: hardware.NewZoneSensor(),
		PWM:    pwm,
		Log:    log,
	})
	if err != nil {
		log.Fatalw("failed to wire services", "err", err)
	}
	apiHandler := handlers.NewHandler(services, log)

	// context for background loops
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The loops are joined on shutdown so a cycle in flight always finishes
	// before the process exits.
	var loops sync.WaitGroup
	loops.Add(3)
	go func() {
		defer loops.Done()
		if rerr := services.Capture.Run(ctx); rerr != nil {
			log.Fatalw("capture loop failed", "err", rerr)
		}
	}()
	go func() {
		defer loops.Done()
		services.Thermal.Run(ctx)
	}()
	go func() {
		defer loops.Done()
		services.Retention.Run(ctx)
	}()

	srv := &server.Server{}
	runHTTPServer(srv, cfg.Port, apiHandler, log)

	log.Infow("cosmicam started",
		"port", cfg.Port,
		"image_dir", cfg.Capture.ImageDir,
		"capture_interval", cfg.Capture.Interval,
	)

	waitForShutdown(cancel, &loops, srv, log)
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, port string, handler *handlers.Handler, log *logger.Logger) {
	go func() {
		if err := srv.Run(port, handler.InitRoutes()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("error starting server", "err", err)
		}
	}()
}

// waitForShutdown listens for termination signals and performs graceful shutdown.
func waitForShutdown(cancel context.CancelFunc, loops *sync.WaitGroup, srv *server.Server, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down...")

	// stop the loops and wait for their current cycle to finish
	cancel()
	loops.Wait()

	ctx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalw("server forced to shutdown", "err", err)
	}
}
