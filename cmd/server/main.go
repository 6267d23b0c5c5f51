package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"

	"github.com/incosense/incosense/internal/api"
	"github.com/incosense/incosense/internal/config"
	"github.com/incosense/incosense/internal/domain"
	"github.com/incosense/incosense/internal/email"
	"github.com/incosense/incosense/internal/metrics"
	"github.com/incosense/incosense/internal/pkg/httpretry"
	"github.com/incosense/incosense/internal/pkg/logger"
	"github.com/incosense/incosense/internal/ratelimit"
	"github.com/incosense/incosense/internal/repository/postgres"
	"github.com/incosense/incosense/internal/service/subscription"
)

// checkPortAvailable verifies that the target port is not already in use.
func checkPortAvailable(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("address %s is already in use: %w", addr, err)
	}
	return ln.Close()
}

func main() {
	configPath := "config/config.yaml"
	if p := os.Getenv("APP_CONFIG_FILE"); p != "" {
		configPath = p
	}

	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Config: %v", err)
	}

	level, err := logger.ParseLevel(cfg.Logging.Level)
	if err != nil {
		log.Fatalf("Config: %v", err)
	}
	logger.SetLevel(level)
	logger.SetRedactPII(cfg.Logging.ShouldRedact())
	lg := logger.Default()

	addr := cfg.Server.Addr()
	if err := checkPortAvailable(addr); err != nil {
		log.Fatalf("Pre-flight check FAILED: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := sql.Open("postgres", cfg.Database.ConnectionString())
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(30 * time.Second)

	// The pool connects lazily; a failed ping is reported but not fatal so
	// the process can come up before the database and report via readiness.
	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	if err := db.PingContext(pingCtx); err != nil {
		lg.Warn("database not reachable at startup", "error", err)
	}
	pingCancel()

	opts := []subscription.Option{subscription.WithLogger(lg)}
	if cfg.Email.Enabled() {
		notifier, err := buildNotifier(ctx, cfg.Email, lg)
		if err != nil {
			log.Fatalf("Failed to initialize email: %v", err)
		}
		opts = append(opts, subscription.WithNotifier(notifier))
		lg.Info("confirmation emails enabled", "provider", cfg.Email.Provider)
	}

	repo := postgres.NewSubscriptionRepo(db)
	svc := subscription.NewService(repo, cfg.Form.Limits(), opts...)

	var (
		limiter     *ratelimit.Limiter
		redisClient *redis.Client
	)
	if cfg.Redis.URL != "" && cfg.RateLimit.Requests > 0 {
		limiter, redisClient, err = ratelimit.NewFromURL(ctx, cfg.Redis.URL, cfg.RateLimit.Requests, cfg.RateLimit.Window())
		if err != nil {
			log.Fatalf("Failed to initialize rate limiter: %v", err)
		}
		defer redisClient.Close()
		proxies, err := ratelimit.ParseCIDRs(cfg.RateLimit.TrustedProxies)
		if err != nil {
			log.Fatalf("Config: %v", err)
		}
		limiter.WithLogger(lg).WithTrustedProxies(proxies)
		lg.Info("rate limiting enabled", "requests", cfg.RateLimit.Requests, "window", cfg.RateLimit.Window().String())
	}

	handlers := api.NewHandlers(svc, metrics.NewDefault(), lg)
	router := api.SetupRoutes(handlers, api.RouteOptions{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Limiter:        limiter,
		Health:         api.NewHealthChecker(repo, redisClient),
	})
	server := api.NewServer(router)

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		lg.Info("starting server", "addr", addr)
		if err := server.ListenAndServe(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-done
	lg.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		lg.Error("server shutdown error", "error", err)
	}
	lg.Info("server stopped")
}

func buildNotifier(ctx context.Context, cfg config.EmailConfig, lg *logger.Logger) (*email.ConfirmationNotifier, error) {
	from, err := domain.ParseSubscriberEmail(cfg.Sender)
	if err != nil {
		return nil, fmt.Errorf("sender: %w", err)
	}

	var sender email.Sender
	switch cfg.Provider {
	case "ses":
		sender, err = email.NewSESSender(ctx, cfg.Region, cfg.AccessKey, cfg.SecretKey)
		if err != nil {
			return nil, err
		}
	case "postmark":
		httpClient := &http.Client{Timeout: cfg.Timeout()}
		sender = email.NewPostmarkSender(cfg.ServiceURL, cfg.APIToken, httpretry.New(httpClient, httpretry.WithLogger(lg)))
	default:
		return nil, fmt.Errorf("unknown email provider %q", cfg.Provider)
	}

	composer, err := email.NewComposer(from, cfg.ConfirmURL, email.DefaultConfirmation)
	if err != nil {
		return nil, err
	}
	return email.NewConfirmationNotifier(sender, composer, cfg.Timeout()), nil
}
