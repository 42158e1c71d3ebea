package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"todo-tracker/internal/api"
	"todo-tracker/internal/bot"
	"todo-tracker/internal/config"
	"todo-tracker/internal/logging"
	"todo-tracker/internal/notify"
	"todo-tracker/internal/repository"
	"todo-tracker/internal/scheduler"
	"todo-tracker/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logging.Setup("info").Error("config", "error", err)
		os.Exit(1)
	}

	log := logging.Setup(cfg.LogLevel)

	loc, err := cfg.Location()
	if err != nil {
		log.Error("timezone", "error", err)
		os.Exit(1)
	}

	db, err := repository.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Error("db", "error", err)
		os.Exit(1)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	profileRepo := repository.NewProfileRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	taskRepo := repository.NewTaskRepository(db)

	profileSvc := service.NewProfileService(profileRepo)
	categorySvc := service.NewCategoryService(categoryRepo, taskRepo)
	taskSvc := service.NewTaskService(taskRepo, categoryRepo, profileRepo)

	if cfg.SeedCategories {
		created, err := categorySvc.SeedDefaults(ctx)
		if err != nil {
			log.Error("seed categories", "error", err)
			os.Exit(1)
		}
		log.Info("default categories seeded", "created", created)
	}

	formatter := notify.NewFormatter(loc)
	gateway := notify.NewTelegramGateway(cfg.TelegramToken, log)
	dispatcher := scheduler.NewDispatcher(taskRepo, formatter, gateway, log, cfg.UpcomingWindow, cfg.DigestWindow)

	sched := scheduler.New(loc, log)
	if err := sched.AddInterval("overdue-scan", cfg.OverdueInterval, dispatcher.RunOverdueScan); err != nil {
		log.Error("schedule overdue scan", "error", err)
		os.Exit(1)
	}
	if err := sched.AddInterval("upcoming-scan", cfg.UpcomingInterval, dispatcher.RunUpcomingScan); err != nil {
		log.Error("schedule upcoming scan", "error", err)
		os.Exit(1)
	}
	if err := sched.AddDaily("daily-digest", cfg.DigestTime, dispatcher.RunDailyDigest); err != nil {
		log.Error("schedule daily digest", "error", err)
		os.Exit(1)
	}
	if err := sched.AddDaily("cleanup", cfg.CleanupTime, dispatcher.RunCleanup); err != nil {
		log.Error("schedule cleanup", "error", err)
		os.Exit(1)
	}
	sched.Start()
	defer sched.Stop()

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: api.NewServer(taskSvc, categorySvc, profileSvc, loc).Router(),
	}
	go func() {
		log.Info("http api listening", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("http shutdown", "error", err)
		}
	}()

	log.Info("todo tracker started")

	if cfg.TelegramToken != "" {
		chatBot, err := bot.New(cfg.TelegramToken, profileSvc, taskSvc, categorySvc, formatter, log)
		if err != nil {
			log.Error("bot", "error", err)
			os.Exit(1)
		}
		if err := chatBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("bot stopped", "error", err)
			os.Exit(1)
		}
	} else {
		log.Warn("telegram token not set, chat client disabled")
		<-ctx.Done()
	}

	log.Info("shutdown complete")
}
