package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sitecms/api/handler"
	apiMiddleware "sitecms/api/middleware"
	"sitecms/api/routes"
	"sitecms/config"
	"sitecms/internal/identity"
	"sitecms/internal/metrics"
	"sitecms/internal/repository"
	"sitecms/internal/service"
	"sitecms/internal/utils"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}
	if level, err := logrus.ParseLevel(cfg.Log.Level); err == nil {
		logger.SetLevel(level)
	}

	db, err := config.ConnectionDb(cfg.Database)
	if err != nil {
		logger.WithError(err).Fatal("database unavailable")
	}
	if cfg.Database.AutoMigrate {
		if err := config.Migrate(db); err != nil {
			logger.WithError(err).Fatal("migration failed")
		}
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.WithError(err).Fatal("database handle unavailable")
	}
	logger.Info("success connect to db")

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.RegisterCollectors(registry)

	provider := identity.NewClient(identity.Config{
		BaseURL:    cfg.Provider.URL,
		ServiceKey: cfg.Provider.ServiceKey,
		AnonKey:    cfg.Provider.AnonKey,
		Timeout:    cfg.Provider.Timeout,
	})
	verifier, err := tokenVerifier(cfg.Provider, provider)
	if err != nil {
		logger.WithError(err).Fatal("token verifier unavailable")
	}

	userRepo := repository.NewUserRepository(db)
	roleRepo := repository.NewRoleRepository(db)
	codeRepo := repository.NewVerificationCodeRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	clock := service.RealClock{}
	ledger := service.NewAuditLedger(auditRepo, logger)
	roles := service.NewRoleDirectory(roleRepo)
	codes := service.NewCodeIssuer(codeRepo, service.BcryptCodeHasher{Cost: cfg.Codes.HashCost}, clock, service.CodeConfig{
		TTL:             cfg.Codes.TTL,
		RateLimitWindow: cfg.Codes.RateWindow,
		RateLimitMax:    cfg.Codes.RateMax,
	}, logger)
	identities := service.NewIdentitySynchronizer(userRepo, roles, provider, ledger, clock, logger, service.SyncConfig{
		MinPasswordLength: cfg.Server.MinPasswordLength,
		ProviderTimeout:   cfg.Provider.Timeout,
	})
	sessions := service.NewSessionService(verifier, provider, userRepo, ledger, logger)

	var sender service.EmailSender
	if cfg.Email.ResendAPIKey != "" {
		sender = service.NewResendEmailSender(cfg.Email.ResendAPIKey, cfg.Email.From, "sitecms")
	} else {
		logger.Warn("RESEND_API_KEY not set, verification codes will not be emailed")
	}
	passwords := service.NewPasswordService(userRepo, codes, provider, sender, ledger, logger, service.PasswordConfig{
		MinPasswordLength: cfg.Server.MinPasswordLength,
		DevEmailFallback:  cfg.Email.DevFallback,
	})

	validate := validator.New()
	userHandler := handler.NewUserHandler(identities, validate)
	sessionHandler := handler.NewSessionHandler(sessions, validate)
	sessionHandler.CookieName = cfg.Session.CookieName
	sessionHandler.CookieDomain = cfg.Session.CookieDomain
	sessionHandler.SecureCookies = cfg.Session.CookieSecure
	passwordHandler := handler.NewPasswordHandler(passwords, validate)

	app := echo.New()
	app.HideBanner = true
	app.HidePort = true
	app.Use(echoMiddleware.Recover())
	app.Use(echoMiddleware.RequestLoggerWithConfig(echoMiddleware.RequestLoggerConfig{
		LogStatus:   true,
		LogMethod:   true,
		LogURI:      true,
		LogRemoteIP: true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v echoMiddleware.RequestLoggerValues) error {
			entry := logger.WithFields(logrus.Fields{
				"status":  v.Status,
				"method":  v.Method,
				"uri":     v.URI,
				"ip":      v.RemoteIP,
				"latency": v.Latency.String(),
			})
			if v.Error != nil {
				entry.WithError(v.Error).Error("request")
				return nil
			}
			entry.Info("request")
			return nil
		},
	}))

	authMiddleware := apiMiddleware.AuthMiddleware{Sessions: sessions, CookieName: cfg.Session.CookieName}
	router := routes.NewRouter(app, userHandler, &handler.RoleHandler{Roles: roles}, sessionHandler, passwordHandler, authMiddleware, identities)
	router.Health = &handler.HealthHandler{DB: sqlDB}
	router.Metrics = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password})
		defer redisClient.Close()
		router.CodeRate.Client = redisClient
		router.CodeRate.Logger = logger
		router.ChangeRate.Client = redisClient
		router.ChangeRate.Logger = logger
	}
	router.RegisterRoutes()

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	go func() {
		logger.WithField("addr", cfg.Server.Addr).Info("server started")
		if err := app.StartServer(server); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("server stopped")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := app.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("graceful shutdown failed")
	}
	_ = sqlDB.Close()
}

func tokenVerifier(cfg config.ProviderConfig, provider *identity.Client) (service.TokenVerifier, error) {
	switch {
	case cfg.OIDCIssuer != "":
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
		defer cancel()
		return identity.NewOIDCVerifier(ctx, cfg.OIDCIssuer, cfg.OIDCClientID)
	case cfg.JWTSecret != "":
		return identity.NewJWTVerifier(utils.JWTManager{Secret: []byte(cfg.JWTSecret), Audience: "authenticated"}), nil
	default:
		return provider, nil
	}
}
