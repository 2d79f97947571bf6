package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"contestlet-backend/internal/common/config"
	"contestlet-backend/internal/common/logger"
	"contestlet-backend/internal/common/middleware"
	"contestlet-backend/internal/common/ratelimit"
	authhttp "contestlet-backend/internal/features/auth/delivery/http"
	authRepo "contestlet-backend/internal/features/auth/repository/postgres"
	authService "contestlet-backend/internal/features/auth/service"
	contesthttp "contestlet-backend/internal/features/contest/delivery/http"
	contestRepo "contestlet-backend/internal/features/contest/repository/postgres"
	contestService "contestlet-backend/internal/features/contest/service"
	notifRepo "contestlet-backend/internal/features/notification/repository/postgres"
	notifService "contestlet-backend/internal/features/notification/service"
	userhttp "contestlet-backend/internal/features/user/delivery/http"
	userRepo "contestlet-backend/internal/features/user/repository/postgres"
	userService "contestlet-backend/internal/features/user/service"
	"contestlet-backend/internal/platform/clock"
	"contestlet-backend/internal/platform/geo"
	"contestlet-backend/internal/platform/postgres"
	"contestlet-backend/internal/platform/redis"
	"contestlet-backend/internal/platform/sms"
)

func main() {
	cfg := config.Load()
	logger.Init("contestlet-backend", cfg.Debug)

	logger.Info().
		Bool("debug", cfg.Debug).
		Int("port", cfg.Server.Port).
		Msg("starting contestlet backend")

	postgresClient, err := postgres.NewClient(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defer postgresClient.Close()
	logger.Info().Msg("database connection established")

	limiter := buildRateLimiter(cfg)
	gateway := buildSmsGateway(cfg)

	clk := clock.System()
	random := clock.CryptoRandom()

	users := userRepo.NewPostgresRepository(postgresClient.DB())
	otps := authRepo.NewPostgresRepository(postgresClient.DB())
	contests := contestRepo.NewPostgresRepository(postgresClient.DB())
	notifications := notifRepo.NewPostgresRepository(postgresClient.DB())

	dispatcher := notifService.NewDispatcher(notifications, gateway, clk)
	dispatcher.Start()
	defer dispatcher.Stop()

	sessionSvc := authService.NewSessionService(cfg, clk)
	otpSvc := authService.NewOtpService(cfg, otps, users, sessionSvc, limiter, gateway, clk, random)
	userSvc := userService.NewService(cfg, users, clk)
	contestSvc := contestService.NewService(cfg, contests, users, dispatcher, geo.NewStaticService(), clk, random)

	var scheduler *contestService.Scheduler
	if cfg.Scheduler.Enabled {
		scheduler = contestService.NewScheduler(contestSvc, contests, clk,
			time.Duration(cfg.Scheduler.TickSeconds)*time.Second)
		scheduler.Start()
		defer scheduler.Stop()
		logger.Info().Int("tick_seconds", cfg.Scheduler.TickSeconds).Msg("scheduler started")
	}

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestTimeout(cfg.Server.RequestTimeout))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{cfg.Server.Origin}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Content-Type", "Authorization", "Accept", "X-Request-ID"}
	router.Use(cors.New(corsConfig))

	v1 := router.Group("/api/v1")
	v1.Use(middleware.Authenticate(sessionSvc))

	authhttp.NewHandler(otpSvc).RegisterRoutes(v1)
	userhttp.NewHandler(userSvc).RegisterRoutes(v1)
	contesthttp.NewHandler(cfg, contestSvc).RegisterRoutes(v1)

	registerProbes(router, postgresClient)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Int("port", cfg.Server.Port).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("forced shutdown")
	}

	logger.Info().Msg("server exited")
}

func buildRateLimiter(cfg *config.Config) ratelimit.Limiter {
	if cfg.RateLimit.Backend == config.RateLimitBackendRedis {
		redisClient, err := redis.NewClient(cfg)
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, falling back to in-memory rate limiting")
			return ratelimit.NewMemoryLimiter()
		}
		logger.Info().Msg("redis rate limiter initialized")
		return ratelimit.NewRedisLimiter(redisClient)
	}
	return ratelimit.NewMemoryLimiter()
}

func buildSmsGateway(cfg *config.Config) sms.Gateway {
	if cfg.Sms.Backend == config.SmsBackendTwilio {
		logger.Info().Msg("twilio sms gateway initialized")
		return sms.NewTwilioGateway(cfg.Sms.TwilioAccountSID, cfg.Sms.TwilioAuthToken, cfg.Sms.TwilioFromNumber)
	}
	logger.Info().Msg("mock sms gateway initialized, codes are returned in responses")
	return sms.NewMockGateway()
}

func registerProbes(router *gin.Engine, postgresClient *postgres.Client) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().UTC(),
			"service":   "contestlet-backend",
		})
	})

	router.GET("/live", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	router.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := postgresClient.HealthCheck(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "unready",
				"error":   "postgres unavailable",
				"details": err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "ready",
			"timestamp": time.Now().UTC(),
			"service":   "contestlet-backend",
		})
	})
}
