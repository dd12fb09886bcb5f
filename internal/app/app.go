package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gowvp/sentry/internal/conf"
)

// Run 启动服务并阻塞到收到退出信号
func Run(bc *conf.Bootstrap) error {
	log, closeLog, err := SetupLog(bc)
	if err != nil {
		return fmt.Errorf("setup log: %w", err)
	}
	defer closeLog()
	log.Info("Sentry started", "version", bc.BuildVersion, "source", bc.Camera.Source, "detector", bc.Detection.Detector)

	a, cleanup, err := wireApp(bc)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go a.Events.StartCleanupWorker(ctx, bc.Event.RetainDays)
	go a.Monitor.Start(ctx)

	srv := http.Server{
		Addr:              fmt.Sprintf(":%d", bc.Server.HTTP.Port),
		Handler:           a.Handler,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      bc.Server.HTTP.Timeout.Duration(),
	}
	go func() {
		slog.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server", "err", err)
		}
	}()

	err = a.Pipeline.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	log.Info("Program ending")
	return err
}
