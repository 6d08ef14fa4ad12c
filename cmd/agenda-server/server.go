package main

import (
	"context"
	"math"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/clinic/agenda/internal/config"
	"github.com/clinic/agenda/internal/domain/availability"
	"github.com/clinic/agenda/internal/domain/booking"
	"github.com/clinic/agenda/internal/domain/clinic"
	"github.com/clinic/agenda/internal/domain/reminder"
	"github.com/clinic/agenda/internal/platform/auth"
	"github.com/clinic/agenda/internal/platform/cache"
	"github.com/clinic/agenda/internal/platform/calendar"
	"github.com/clinic/agenda/internal/platform/db"
	"github.com/clinic/agenda/internal/platform/events"
	"github.com/clinic/agenda/internal/platform/lock"
	"github.com/clinic/agenda/internal/platform/middleware"
	"github.com/clinic/agenda/internal/platform/notification"
	"github.com/clinic/agenda/migrations"
)

// app holds the wired services shared by `serve` and `remind`.
type app struct {
	cfg       *config.Config
	rdb       *redis.Client
	events    events.Publisher
	avail     *availability.Service
	booking   *booking.Service
	notifier  *notification.Manager
	tokens    *auth.ConfirmationTokens
	reminders *reminder.Job
	logger    zerolog.Logger
}

func buildApp(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, logger zerolog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}
	loc := cfg.Location()

	// Calendar
	var port calendar.Port
	if cfg.UseGoogleCalendar() {
		g, err := calendar.NewGoogle(ctx, cfg.GoogleClientEmail, cfg.GooglePrivateKey, cfg.Timezone, logger)
		if err != nil {
			return nil, err
		}
		port = g
		logger.Info().Msg("using Google Calendar")
	} else {
		port = calendar.NewMemory()
		logger.Warn().Msg("GOOGLE_CLIENT_EMAIL not set, using in-memory calendar")
	}
	if feeds := calendar.ParseBlockFeeds(cfg.ICSBlockFeeds); len(feeds) > 0 {
		port = calendar.WithBlockers(port, feeds, cfg.ICSFetchTimeout, logger)
		logger.Info().Int("feeds", len(feeds)).Msg("ICS block feeds enabled")
	}

	// Redis-backed cache and slot lock, in-process otherwise
	var (
		clientCache cache.Store = cache.NewLRU(cfg.ClientCacheSize, cfg.ClientCacheTTL)
		locker      lock.Locker = lock.NewKeyedMutex()
	)
	if cfg.RedisURL != "" {
		rdb, err := cache.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		a.rdb = rdb
		clientCache = cache.NewRedis(rdb, "agenda:client", cfg.ClientCacheTTL)
		locker = lock.NewRedis(rdb, "agenda:lock")
		logger.Info().Msg("using Redis for client cache and slot locks")
	}

	// Lifecycle events
	a.events = events.Nop{}
	if brokers := events.SplitBrokers(cfg.KafkaBrokers); len(brokers) > 0 {
		a.events = events.NewKafka(brokers, cfg.KafkaTopic)
		logger.Info().Strs("brokers", brokers).Str("topic", cfg.KafkaTopic).Msg("publishing appointment events")
	}

	// Notifications
	var emailSender notification.EmailSender = notification.Disabled{}
	if cfg.SMTPHost != "" {
		emailSender = notification.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom)
	} else {
		logger.Warn().Msg("SMTP_HOST not set, email notifications disabled")
	}
	var waSender notification.WhatsAppSender = notification.Disabled{}
	if cfg.WhatsAppAPIURL != "" {
		waSender = notification.NewBuilderBotSender(cfg.WhatsAppAPIURL, cfg.WhatsAppAPIKey, nil)
	} else {
		logger.Warn().Msg("WHATSAPP_API_URL not set, WhatsApp notifications disabled")
	}
	a.notifier = notification.NewManager(emailSender, waSender, notification.NewTemplateEngine(), logger)
	msgNotifier := booking.NewMessageNotifier(a.notifier, booking.BusinessInfo{
		Name:    cfg.BusinessName,
		Email:   cfg.BusinessEmail,
		Phone:   cfg.BusinessPhone,
		Address: cfg.BusinessAddress,
	}, loc, logger)

	// Availability
	leadTime := time.Duration(cfg.MinBookingHours) * time.Hour
	clinicRepo := clinic.NewRepoPG(pool)
	eval := availability.NewEvaluator(clinicRepo, port, loc, leadTime, time.Now, logger)
	planner := availability.NewPlanner(eval, availability.DefaultPlannerConfig(), logger)
	a.avail = availability.NewService(clinicRepo, eval, planner, cfg.MaxDaysAhead, logger)

	// Booking
	bcfg := booking.DefaultConfig()
	bcfg.LeadTime = leadTime
	bcfg.PhoneMinLength = cfg.PhoneMinLength
	appts := booking.NewAppointmentRepoPG(pool)
	a.booking = booking.NewService(booking.Deps{
		Availability: a.avail,
		Catalog:      clinicRepo,
		Calendar:     port,
		Clients:      booking.NewClientRepoPG(pool),
		Appointments: appts,
		Locker:       locker,
		Cache:        clientCache,
		Notifier:     msgNotifier,
		Events:       a.events,
		Tx: func(ctx context.Context, fn func(ctx context.Context) error) error {
			return db.WithTx(ctx, pool, fn)
		},
	}, bcfg, logger)

	// Reminders, with signed confirm links when configured
	var issuer reminder.TokenIssuer
	if cfg.ConfirmTokenSecret != "" {
		a.tokens = auth.NewConfirmationTokens(cfg.ConfirmTokenSecret, cfg.ConfirmTokenTTL, time.Now)
		if cfg.ConfirmLinksEnabled() {
			issuer = a.tokens
		}
	}
	a.reminders = reminder.NewJob(appts, clinicRepo, msgNotifier, a.events, issuer, cfg.PublicBaseURL, loc, time.Now, logger)

	return a, nil
}

// close waits for post-booking work, then releases external clients.
func (a *app) close() {
	a.booking.Wait()
	if err := a.events.Close(); err != nil {
		a.logger.Warn().Err(err).Msg("event publisher close failed")
	}
	if a.rdb != nil {
		a.rdb.Close()
	}
}

func (a *app) limiter() middleware.Limiter {
	if a.rdb != nil {
		limit := int(math.Ceil(a.cfg.RateLimitRPS))
		if limit <= 0 {
			limit = middleware.DefaultRateLimitConfig().BurstSize
		}
		return middleware.NewRedisLimiter(a.rdb, limit, time.Second, "agenda:rl")
	}
	rl := middleware.RateLimitConfig{
		RequestsPerSecond: a.cfg.RateLimitRPS,
		BurstSize:         a.cfg.RateLimitBurst,
	}
	if rl.RequestsPerSecond <= 0 {
		rl = middleware.DefaultRateLimitConfig()
	}
	return middleware.NewLocalLimiter(rl)
}

func runServer() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Env)

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns, cfg.Timezone)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	a, err := buildApp(ctx, cfg, pool, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build services")
	}
	defer a.close()

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger, "/api/"))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	// Bot-facing API: public, rate limited, bounded in time
	api := e.Group("/api")
	api.Use(middleware.RateLimit(a.limiter(), logger))
	api.Use(middleware.RequestTimeout(30 * time.Second))

	// Operator API under the same prefix, behind a bearer token
	var operatorAuth echo.MiddlewareFunc
	if cfg.OperatorTokenSecret != "" {
		operatorAuth = auth.JWTMiddleware(operatorJWT(cfg))
	} else {
		operatorAuth = auth.DevAuthMiddleware()
		logger.Warn().Msg("OPERATOR_TOKEN_SECRET not set, operator routes open (development)")
	}
	ops := e.Group("/api", operatorAuth, auth.RequireRole(auth.RoleOperator))

	availability.NewHandler(a.avail, logger).RegisterRoutes(api, ops)
	bh := booking.NewHandler(a.booking, tokensOrNil(a.tokens), logger)
	bh.RegisterRoutes(api)
	bh.RegisterOpsRoutes(ops)
	notification.NewHandler(a.notifier).RegisterRoutes(ops)
	ops.POST("/recordatorios/ejecutar", func(c echo.Context) error {
		res, err := a.reminders.Run(c.Request().Context())
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, res)
	})

	// Health
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	e.GET("/health/db", db.HealthHandler(pool, db.NewMigrator(pool, migrations.FS)))

	// Reminder scheduler
	if cfg.ReminderEnabled {
		sched := reminder.NewScheduler(a.reminders, cfg.ReminderCron, cfg.Location(), logger)
		if err := sched.Start(); err != nil {
			logger.Fatal().Err(err).Msg("failed to start reminder scheduler")
		}
		defer sched.Stop()
	}

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

// tokensOrNil avoids handing the handler a typed nil interface.
func tokensOrNil(t *auth.ConfirmationTokens) booking.CodeParser {
	if t == nil {
		return nil
	}
	return t
}
