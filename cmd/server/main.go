package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"prayer_attendance/internal/app"
	"prayer_attendance/internal/domain/ivr"
	"prayer_attendance/internal/domain/period"
	"prayer_attendance/internal/domain/sms"
	"prayer_attendance/internal/infra/config"
	idb "prayer_attendance/internal/infra/database"
	"prayer_attendance/internal/infra/httpapi"
	"prayer_attendance/internal/infra/logger"
	"prayer_attendance/internal/infra/metrics"
	"prayer_attendance/internal/infra/scheduler"
	ismsclient "prayer_attendance/internal/infra/sms"
	"prayer_attendance/internal/infra/telegram"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Log.WithError(err).Fatal("Could not load application configuration")
	}
	logger.Init(cfg)
	mainLog := logger.Component("main")
	mainLog.WithFields(logrus.Fields{
		"environment": cfg.Environment,
		"timezone":    cfg.Timezone,
		"base_url":    cfg.PublicBaseURL,
	}).Info("Configuration loaded")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := idb.NewPostgresConnection(ctx, cfg.DatabaseURL)
	if err != nil {
		mainLog.WithError(err).Fatal("Could not connect to database")
	}
	defer db.Close()
	mainLog.Info("Database connection established")

	members := idb.NewPostgresMemberRepository(db)
	subAdmins := idb.NewPostgresSubAdminRepository(db)
	queue := idb.NewPostgresUnlockQueue(db)
	verses := idb.NewPostgresVerseRepository(db)

	classifier, err := period.New(cfg.Periods())
	if err != nil {
		mainLog.WithError(err).Fatal("Invalid period configuration")
	}
	catalog, err := sms.DefaultCatalog()
	if err != nil {
		mainLog.WithError(err).Fatal("Could not load SMS templates")
	}

	m := metrics.New()
	flow := ivr.NewFlow(cfg.PublicBaseURL)
	messages := app.NewMessages(catalog, cfg.CallerID)
	smsClient := ismsclient.NewBulkSMSClient(
		cfg.BulkSMSURL,
		ismsclient.Credentials{APIID: cfg.BulkSMSAPIID, APIPassword: cfg.BulkSMSAPIPassword},
		cfg.CountryCode,
		cfg.SMSTimeout,
	)
	dispatcher := app.NewDispatcher(smsClient, cfg.SMSIndividualLimit, logger.Component("dispatcher"), m)
	alerter, bot := newTelegram(cfg, mainLog)

	attendanceService := app.NewAttendanceService(members, classifier, flow, messages, dispatcher, app.AttendanceSettings{
		Rules:          cfg.AttendanceRules(),
		MonitorContact: cfg.AdminContact,
		CountryCode:    cfg.CountryCode,
	}, logger.Component("attendance"), m)
	unlockService := app.NewUnlockService(members, subAdmins, queue, flow, alerter, cfg.CallerID, cfg.CountryCode, logger.Component("unlock"))
	adminService := app.NewAdminService(members, subAdmins, verses, messages, dispatcher, cfg.AdminPin, cfg.AdminContact, cfg.CountryCode, logger.Component("admin"))
	jobService := app.NewJobService(members, queue, verses, classifier, messages, dispatcher, alerter, cfg.BulkLockChunkSize, nil, logger.Component("jobs"))
	orchestrator := app.NewOrchestrator(jobService, logger.Component("orchestrator"), m)
	if cfg.AdminPin == "" {
		mainLog.Warn("ADMIN_PIN is not set, the admin API rejects every request")
	}

	jobScheduler := scheduler.NewJobScheduler(orchestrator, cfg.Location(), cfg.JobTimeout, logger.Component("scheduler"))
	specs := scheduler.Specs{
		DrainQueue: cfg.CronSpecDrainQueue,
		Verses:     cfg.CronSpecVerses,
		Birthdays:  cfg.CronSpecBirthdays,
		Sweeps:     cfg.CronSpecSweeps,
	}
	if err := jobScheduler.Register(specs.Entries()); err != nil {
		mainLog.WithError(err).Fatal("Could not register scheduled jobs")
	}
	jobScheduler.Start()

	if bot != nil && cfg.TelegramCommands {
		telegram.NewOperatorCommands(orchestrator, adminService, cfg.OperatorChatID, cfg.CountryCode, cfg.JobTimeout, logger.Component("operator")).
			Register(bot)
		go bot.Start()
		mainLog.Info("Telegram operator commands enabled")
	}

	handler := httpapi.NewHandler(httpapi.Deps{
		Calls:      attendanceService,
		Unlocks:    unlockService,
		Admin:      adminService,
		Jobs:       orchestrator,
		Flow:       flow,
		StaticDir:  cfg.StaticDir,
		JobTimeout: cfg.JobTimeout,
		Metrics:    m,
		Logger:     logger.Component("http"),
	})
	server := httpapi.NewServer(cfg.HTTPAddr, handler)

	go func() {
		mainLog.WithField("addr", cfg.HTTPAddr).Info("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			mainLog.WithError(err).Fatal("HTTP server failed")
		}
	}()

	<-ctx.Done()
	mainLog.Info("Shutting down application...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		mainLog.WithError(err).Error("HTTP server did not shut down cleanly")
	}
	if bot != nil && cfg.TelegramCommands {
		bot.Stop()
	}
	jobScheduler.Stop()
	mainLog.Info("Application shut down gracefully")
}

// newTelegram sends operator alerts to Telegram when configured, otherwise to the log.
// The bot is nil when Telegram is not used.
func newTelegram(cfg *config.AppConfig, log *logrus.Entry) (app.Alerter, *telebot.Bot) {
	alertLog := logger.Component("alerts")
	if !cfg.TelegramEnabled() {
		log.Info("Telegram alerts disabled, operator alerts go to the log")
		return app.NewLogAlerter(alertLog), nil
	}
	var (
		bot *telebot.Bot
		err error
	)
	if cfg.TelegramCommands {
		bot, err = telegram.NewPollingBot(cfg.TelegramToken, logger.Component("telegram"))
	} else {
		bot, err = telegram.NewOfflineBot(cfg.TelegramToken)
	}
	if err != nil {
		log.WithError(err).Warn("Could not create Telegram bot, operator alerts go to the log")
		return app.NewLogAlerter(alertLog), nil
	}
	return app.NewTelegramAlerter(telegram.NewTelebotAdapter(bot), cfg.OperatorChatID, alertLog), bot
}
