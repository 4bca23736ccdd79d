package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/adirsaban8-oss/ADIRS/internal/adminstore"
	"github.com/adirsaban8-oss/ADIRS/internal/api"
	"github.com/adirsaban8-oss/ADIRS/internal/availability"
	"github.com/adirsaban8-oss/ADIRS/internal/config"
	"github.com/adirsaban8-oss/ADIRS/internal/database"
	"github.com/adirsaban8-oss/ADIRS/internal/domain"
	"github.com/adirsaban8-oss/ADIRS/internal/events"
	"github.com/adirsaban8-oss/ADIRS/internal/google"
	"github.com/adirsaban8-oss/ADIRS/internal/logging"
	"github.com/adirsaban8-oss/ADIRS/internal/metrics"
	"github.com/adirsaban8-oss/ADIRS/internal/models"
	"github.com/adirsaban8-oss/ADIRS/internal/notify"
	"github.com/adirsaban8-oss/ADIRS/internal/postgres"
	"github.com/adirsaban8-oss/ADIRS/internal/reminder"
	"github.com/adirsaban8-oss/ADIRS/internal/repository"
	"github.com/adirsaban8-oss/ADIRS/internal/service"
	"github.com/adirsaban8-oss/ADIRS/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"
)

// store is what both database backends provide.
type store interface {
	domain.AppointmentRepository
	domain.CustomerStore
	domain.OTPStore
	domain.ClaimStore
	PurgeExpiredOTP(ctx context.Context, now time.Time) (int64, error)
}

type backend struct {
	store  store
	locker domain.RunLocker
	sqlite *database.DB
	close  func()
}

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	if err := loadServices(cfg, logger); err != nil {
		return err
	}
	loc, err := cfg.Studio.Location()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := initDatabase(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer db.close()

	redisClient := initRedis(ctx, cfg, logger)
	if redisClient != nil {
		defer redisClient.Close()
	}
	if redisClient != nil && db.sqlite != nil {
		db.locker = repository.NewReminderLocker(redisClient, logger)
	}

	cal := initCalendar(ctx, cfg, loc, logger)

	var (
		repo      domain.AppointmentRepository = db.store
		mirror    domain.CalendarEvents
		busy      domain.BusyIntervalSource
		directory service.CustomerDirectory
	)
	switch {
	case cfg.Storage.Mode == models.StorageModeCalendar:
		if cal == nil {
			return errors.New("storage.mode=calendar but the calendar client could not be created")
		}
		calRepo := repository.NewCalendarAppointments(cal, loc, time.Duration(cfg.Studio.BookingHorizonDays+1)*24*time.Hour, logger)
		repo, busy, directory = calRepo, cal, calRepo
	case cal != nil:
		mirror, busy = cal, cal
	default:
		busy = repository.NewAppointmentBusySource(db.store, loc)
	}

	cache := initCache(cfg, redisClient, logger)
	notifier, sms, status := initNotifier(cfg, loc, logger)
	status.Calendar = cal != nil
	status.Storage = cfg.Storage.Mode

	notifications := worker.NewNotificationWorker(notifier, worker.Options{
		Workers:   cfg.Notifications.Workers,
		QueueSize: cfg.Notifications.QueueSize,
		Retry:     worker.RetryPolicy{MaxRetries: cfg.Notifications.MaxRetries, BackoffFactor: 2},
		Redis:     redisClient,
	}, logging.Component(logger, "notifications"))

	bus := events.NewEventBus()
	subscribeNotifications(bus, notifications, logger)

	blocked := adminstore.NewBlockedStore(cfg.AdminStore.BlockedSlotsFile, logger)
	gallery := adminstore.NewGalleryStore(cfg.AdminStore.GalleryFile, cfg.AdminStore.GalleryDir, logger)
	catalog := service.NewCatalogService(cfg.Studio.Services, logger)
	checker := availability.NewChecker(busy, blocked, cfg.Studio.BusinessHours, cfg.Studio.SlotStep(), loc, logger)

	booking := service.NewBookingService(service.BookingDeps{
		Repo:         repo,
		Customers:    db.store,
		Slots:        checker,
		Calendar:     mirror,
		Cache:        cache,
		Events:       bus,
		Catalog:      catalog,
		EmailEnabled: status.Email,
	}, service.BookingPolicy{
		HorizonDays: cfg.Studio.BookingHorizonDays,
		MaxActive:   cfg.Studio.MaxActiveAppointments,
		Location:    loc,
	}, logging.Component(logger, "booking"))
	customers := service.NewCustomerService(db.store, repo, directory, loc, logging.Component(logger, "customers"))
	otp := service.NewOTPService(db.store, sms, cache, cfg.Studio.Name, cfg.OTP, logging.Component(logger, "otp"))

	httpServer, err := api.NewHTTPServer(cfg.API, api.Deps{
		Booking:   booking,
		Customers: customers,
		OTP:       otp,
		Catalog:   catalog,
		Blocked:   blocked,
		Gallery:   gallery,
		Owner:     notifier,
		Status:    status,
		Location:  loc,
	}, logger)
	if err != nil {
		return err
	}

	scheduler := reminder.NewScheduler(schedulerOptions(cfg, db, repo, notifier, loc, logger), logging.Component(logger, "scheduler"))

	startMetrics(ctx, cfg, logger)

	var wg sync.WaitGroup
	background := func(fn func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn(ctx)
		}()
	}
	background(notifications.Start)
	background(scheduler.Start)
	if db.sqlite != nil {
		background(database.NewBackupService(db.sqlite, cfg.Backup, logging.Component(logger, "backup")).Start)
	}

	err = serve(ctx, httpServer, logger)
	stop()
	wg.Wait()
	logger.Info().Msg("API server stopped")
	return err
}

func loadConfigAndLogger() (*config.Config, *zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "api-main").Logger()
	return cfg, &logger, closer, nil
}

// loadServices replaces the inline catalog with the services file when one exists.
func loadServices(cfg *config.Config, logger *zerolog.Logger) error {
	servicesPath := os.Getenv("SERVICES_PATH")
	if servicesPath == "" {
		servicesPath = "configs/services.yaml"
	}
	data, err := os.ReadFile(servicesPath)
	if errors.Is(err, os.ErrNotExist) {
		logger.Info().Str("services_path", servicesPath).Msg("no services file, using configured catalog")
		return nil
	}
	if err != nil {
		logger.Error().Err(err).Str("services_path", servicesPath).Msg("read services")
		return err
	}

	var servicesConfig struct {
		Services []models.Service `yaml:"services"`
	}
	if err := yaml.Unmarshal(data, &servicesConfig); err != nil {
		logger.Error().Err(err).Str("services_path", servicesPath).Msg("parse services")
		return err
	}
	if err := config.ValidateServices(servicesConfig.Services); err != nil {
		return fmt.Errorf("%s: %w", servicesPath, err)
	}
	cfg.Studio.Services = servicesConfig.Services
	logger.Info().Int("services", len(servicesConfig.Services)).Msg("service catalog loaded")
	return nil
}

func initDatabase(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*backend, error) {
	if cfg.Database.Driver == "postgres" {
		pgCfg := cfg.Database.Postgres
		if pgCfg.AutoMigrate {
			if err := postgres.MigrateUp(pgCfg.URL); err != nil {
				return nil, fmt.Errorf("auto migrate: %w", err)
			}
			logger.Info().Msg("postgres migrations applied")
		}
		pool, err := postgres.Connect(ctx, pgCfg)
		if err != nil {
			logger.Error().Err(err).Msg("init postgres")
			return nil, err
		}
		pgLogger := logging.Component(logger, "postgres")
		return &backend{
			store:  postgres.NewStore(pool, pgLogger),
			locker: postgres.NewAdvisoryLocker(pool, postgres.ReminderLockKey, pgLogger),
			close:  pool.Close,
		}, nil
	}

	db, err := database.NewDB(cfg.Database.Path, logging.Component(logger, "database"))
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return nil, err
	}
	return &backend{
		store:  db,
		locker: repository.NewLocalLocker(),
		sqlite: db,
		close:  func() { _ = db.Close() },
	}, nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	client := repository.NewRedisClient(cfg.Redis)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		_ = client.Close()
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return client
}

// initCalendar returns nil when the calendar is not configured or unreachable.
// In calendar storage mode an unreachable calendar still yields a client so
// requests fail with the store-unavailable error instead of silently using the database.
func initCalendar(ctx context.Context, cfg *config.Config, loc *time.Location, logger *zerolog.Logger) *google.CalendarService {
	if !cfg.Google.Enabled() {
		logger.Info().Msg("google calendar not configured")
		return nil
	}
	cal, err := google.NewCalendarService(ctx, cfg.Google, loc, logging.Component(logger, "calendar"))
	if err != nil {
		logger.Warn().Err(err).Msg("google calendar init failed")
		return nil
	}
	if err := cal.TestConnection(ctx); err != nil {
		logger.Warn().Err(err).Str("calendar_id", cal.CalendarID()).Msg("google calendar connection test failed")
		if cfg.Storage.Mode != models.StorageModeCalendar {
			return nil
		}
	}
	logger.Info().Str("calendar_id", cal.CalendarID()).Msg("google calendar connected")
	return cal
}

func initCache(cfg *config.Config, redisClient *redis.Client, logger *zerolog.Logger) domain.CacheStore {
	memory := repository.NewMemoryCache(cfg.Cache.TTL)
	if redisClient == nil {
		return memory
	}
	return repository.NewFailoverCache(repository.NewRedisCache(redisClient, cfg.Cache.TTL), memory, logger)
}

func initNotifier(cfg *config.Config, loc *time.Location, logger *zerolog.Logger) (*notify.Notifier, *notify.ActiveTrailSender, api.Status) {
	notifyLogger := logging.Component(logger, "notify")
	var (
		email  domain.EmailSender
		status api.Status
	)
	switch strings.ToLower(cfg.Email.Provider) {
	case "sendgrid":
		email = notify.NewSendGridSender(cfg.Email.SendGridAPIKey, cfg.Email.FromAddress, cfg.Email.FromName, notifyLogger)
		status.Email = cfg.Email.SendGridAPIKey != ""
	case "smtp":
		email = notify.NewSMTPSender(cfg.Email, notifyLogger)
		status.Email = cfg.Email.SMTPHost != ""
	}
	if !status.Email {
		email = notify.NewNoopEmailSender(notifyLogger)
	}

	sms := notify.NewActiveTrailSender(cfg.SMS, logging.Component(logger, "sms"))
	status.SMS = sms.Enabled()

	var owner notify.Alerter
	bot, err := notify.NewTelegramBot(cfg.Telegram.BotToken)
	switch {
	case errors.Is(err, notify.ErrDisabled):
		logger.Info().Msg("telegram owner alerts disabled")
	case err != nil:
		logger.Warn().Err(err).Msg("telegram init failed, owner alerts disabled")
	default:
		owner = notify.NewTelegramAlerter(bot, cfg.Telegram.OwnerChatID, notifyLogger)
	}

	studio := notify.Studio{Name: cfg.Studio.Name, Address: cfg.Studio.Address, Phone: cfg.Studio.ContactPhone}
	return notify.NewNotifier(email, sms, owner, studio, loc, notifyLogger), sms, status
}

// subscribeNotifications turns appointment lifecycle events into notification jobs.
func subscribeNotifications(bus *events.EventBus, queue domain.NotificationQueue, logger *zerolog.Logger) {
	enqueue := func(kind string) events.EventHandler {
		return func(ev *events.Event) error {
			var payload events.AppointmentPayload
			if err := ev.Decode(&payload); err != nil {
				metrics.IncMalformedEvent()
				logger.Error().Err(err).Str("event", ev.Type).Msg("drop malformed event")
				return err
			}
			appt := payload.Appointment
			return queue.Enqueue(context.Background(), kind, &appt)
		}
	}
	bus.Subscribe(events.EventAppointmentCreated, enqueue(worker.TaskBookingConfirmed))
	bus.Subscribe(events.EventAppointmentCancelled, enqueue(worker.TaskBookingCancelled))
}

func schedulerOptions(
	cfg *config.Config,
	db *backend,
	repo domain.AppointmentRepository,
	notifier *notify.Notifier,
	loc *time.Location,
	logger *zerolog.Logger,
) reminder.SchedulerOptions {
	opts := reminder.SchedulerOptions{OTP: db.store}
	if cfg.Reminders.Enabled {
		opts.Dispatcher = reminder.NewDispatcher(repo, db.store, db.locker, notifier, reminder.Config{
			EveningHour: cfg.Reminders.EveningHour,
			MorningHour: cfg.Reminders.MorningHour,
			StaleAfter:  cfg.Reminders.StaleAfter,
			Location:    loc,
		}, logging.Component(logger, "reminders"))
	} else {
		logger.Info().Msg("reminders disabled")
	}
	if cfg.Reminders.CompletionSweep {
		opts.Sweeper = repo
	}
	return opts
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, logger)
}

func serve(ctx context.Context, httpServer *api.HTTPServer, logger *zerolog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
		return err
	case <-ctx.Done():
	}
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
