package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"project_archive/internal/auth"
	"project_archive/internal/config"
	"project_archive/internal/handler"
	"project_archive/internal/mailer"
	"project_archive/internal/media"
	"project_archive/internal/service"
	"project_archive/internal/storage"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "")

	flag.Parse()
	if configPath == "" {
		log.Fatal("failed get config path from flags")
	}

	cfg := config.MustLoadConfig(configPath)

	lgr := setupLogger(cfg.Env)
	lgr.Info("started project archive backend", slog.String("env", cfg.Env))

	st, err := storage.NewPostgresStorage(cfg.DbURL, cfg.DB.MaxConns)
	if err != nil {
		lgr.Error("failed to init storage", slog.Any("error", err))
		os.Exit(1)
	}
	defer st.Close()

	sender, err := mailer.NewSMTPMailer(cfg.SMTP, cfg.OTP.Lifetime)
	if err != nil {
		lgr.Error("failed to init mailer", slog.Any("error", err))
		os.Exit(1)
	}

	issuer := auth.NewIssuer(cfg.JWT.Secret, cfg.JWT.AccessTTL, cfg.JWT.RefreshTTL)
	mediaStore := media.NewStore(cfg.Media)

	serviceLayer := service.NewService(st, issuer, sender, cfg.OTP.Lifetime, cfg.OAuth)

	router := handler.NewHandler(serviceLayer, mediaStore, issuer, lgr).InitRoutes()
	router.Static(cfg.Media.BaseURL, cfg.Media.Root)

	srv := &http.Server{
		Addr:         cfg.Address,
		Handler:      router,
		IdleTimeout:  cfg.IdleTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		lgr.Info("http server listening", slog.String("address", cfg.Address))

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lgr.Error("http server failed", slog.Any("error", err))

			stop()
		}
	}()

	<-ctx.Done()

	lgr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		lgr.Error("failed to shut down gracefully", slog.Any("error", err))
	}
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	default:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}
	return log
}
