package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"deadline-tracker/internal/api"
	"deadline-tracker/internal/bot"
	"deadline-tracker/internal/config"
	"deadline-tracker/internal/lock"
	"deadline-tracker/internal/logger"
	"deadline-tracker/internal/notifier"
	"deadline-tracker/internal/repository"
	"deadline-tracker/internal/service"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	zapLogger := logger.New(logger.Config{Level: cfg.Logger.Level, Encoding: cfg.Logger.Encoding})
	defer zapLogger.Sync()

	db, err := repository.NewDB(cfg.Database.Driver, cfg.Database.URL, zapLogger)
	if err != nil {
		zapLogger.Fatal("db", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err == nil {
		defer sqlDB.Close()
	}

	userRepo := repository.NewUserRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	ledger := repository.NewReminderLogRepository(db)

	userSvc := service.NewUserService(userRepo)
	taskSvc := service.NewTaskService(taskRepo)

	loc := cfg.Reminder.Location
	renderer := notifier.NewRenderer(loc)

	var channels []notifier.Channel
	if cfg.SMTP.MailEnabled() {
		email, err := notifier.NewEmailNotifier(notifier.EmailConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
			Timeout:  cfg.SMTP.Timeout,
		}, renderer, zapLogger)
		if err != nil {
			zapLogger.Fatal("smtp", zap.Error(err))
		}
		channels = append(channels, email)
	} else {
		zapLogger.Warn("smtp credentials missing, reminders are logged instead of emailed")
		channels = append(channels, notifier.NewLogNotifier(renderer, zapLogger))
	}

	var botAPI *tgbotapi.BotAPI
	if cfg.TelegramToken != "" {
		botAPI, err = tgbotapi.NewBotAPI(cfg.TelegramToken)
		if err != nil {
			zapLogger.Fatal("telegram", zap.Error(err))
		}
		zapLogger.Info("telegram authorized", zap.String("account", botAPI.Self.UserName))
		channels = append(channels, notifier.NewTelegramNotifier(botAPI, renderer, zapLogger))
	}

	deps := service.Deps{
		Users:    userRepo,
		Tasks:    taskRepo,
		Ledger:   ledger,
		Notifier: notifier.NewFanout(zapLogger, channels...),
	}
	if cfg.Redis.URL != "" {
		client, err := lock.NewClient(cfg.Redis)
		if err != nil {
			zapLogger.Warn("redis unavailable, jobs run without a distributed lease", zap.Error(err))
		} else {
			defer client.Close()
			deps.Lease = lock.NewRedisLease(client)
		}
	}

	jobs := service.NewSchedulerService(loc, logger.StdLog(zapLogger, "cron"))
	reminders := service.NewReminderScheduler(deps, service.SchedulerOptions{
		Location:         loc,
		DeadlineAt:       cfg.Reminder.DeadlineAt,
		DeadlineEvery:    cfg.Reminder.DeadlineEvery,
		DigestAt:         cfg.Reminder.DigestAt,
		SweepAt:          cfg.Reminder.SweepAt,
		Retention:        cfg.Reminder.Retention(),
		DigestOncePerDay: cfg.Reminder.DigestOncePerDay,
		JobTimeout:       cfg.Reminder.JobTimeout,
	}, jobs, zapLogger)
	if err := reminders.Start(); err != nil {
		zapLogger.Fatal("start reminder scheduler", zap.Error(err))
	}

	handler := api.NewHandler(userSvc, taskSvc, reminders, ledger, zapLogger)
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.NewRouter(handler, userSvc, zapLogger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		zapLogger.Info("http server started", zap.String("address", cfg.HTTPAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Error("http server crashed", zap.Error(err))
			stop()
		}
	}()

	botDone := make(chan struct{})
	if botAPI != nil {
		telegramBot := bot.New(botAPI, userSvc, taskSvc, reminders, loc, zapLogger)
		go func() {
			defer close(botDone)
			if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				zapLogger.Error("telegram bot stopped", zap.Error(err))
			}
		}()
	} else {
		close(botDone)
	}

	zapLogger.Info("deadline tracker started")
	<-ctx.Done()
	zapLogger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("http shutdown", zap.Error(err))
	}
	select {
	case <-botDone:
	case <-shutdownCtx.Done():
		zapLogger.Warn("telegram bot did not stop in time")
	}
	reminders.Stop()

	zapLogger.Info("shutdown complete")
}
