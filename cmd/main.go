package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"mammo-report/config"
	"mammo-report/internal/api/rest"
	"mammo-report/internal/api/telegram"
	"mammo-report/internal/container"
	"mammo-report/internal/logging"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, logCloser, err := logging.New(logging.Config{
		Level:   cfg.Log.Level,
		File:    cfg.Log.File,
		Console: cfg.Log.Console,
	})
	if err != nil {
		return err
	}
	defer logCloser.Close()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := container.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("build container: %w", err)
	}
	defer func() {
		if err := c.Close(); err != nil {
			logger.Error("close container", "error", err)
		}
	}()

	// Без модели сервис бесполезен: ошибка загрузки завершает процесс.
	if err := c.Models.Load(ctx, cfg.Model.LoadRetries); err != nil {
		logger.Error("model initialization failed", "error", err)
		return err
	}
	defer c.Models.Unload(context.WithoutCancel(ctx))

	handler := rest.NewHandler(c.ReportService, c.TriageService, c.Models.Loaded, logger.With("component", "http"))
	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           handler.Routes(rest.CORS{AllowOrigin: cfg.HTTP.CORSOrigin}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("http server listening", "addr", cfg.HTTP.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if cfg.Telegram.Token != "" {
		bot, err := telegram.NewBot(cfg.Telegram.Token, c.UserService, c.TriageService, logger.With("component", "telegram"))
		if err != nil {
			stop()
			_ = g.Wait()
			return fmt.Errorf("create bot: %w", err)
		}
		g.Go(func() error {
			return bot.Run(gctx)
		})
	} else {
		logger.Info("TELEGRAM_TOKEN is not set, telegram bot disabled")
	}

	err = g.Wait()
	logger.Info("shutting down")
	return err
}
