// Command aingles runs the Aingles backend: a Gin HTTP API backed by GORM
// with JWT authentication, spaced-repetition flashcards, ingested reading
// articles and an AI conversation tutor.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/PedroHenriqueDevBR/Aingles-backend/internal/ai"
	"github.com/PedroHenriqueDevBR/Aingles-backend/internal/articles"
	"github.com/PedroHenriqueDevBR/Aingles-backend/internal/config"
	"github.com/PedroHenriqueDevBR/Aingles-backend/internal/db"
	"github.com/PedroHenriqueDevBR/Aingles-backend/internal/http/api"
	"github.com/PedroHenriqueDevBR/Aingles-backend/internal/notify"
	"github.com/PedroHenriqueDevBR/Aingles-backend/internal/ratelimit"
	"github.com/PedroHenriqueDevBR/Aingles-backend/internal/token"
)

func main() {
	if err := run(); err != nil {
		log.WithError(err).Fatal("server exited")
	}
}

func run() error {
	configPath := flag.String("config", "", "path to config.yaml")
	port := flag.Int("port", 8000, "listen port")
	flag.Parse()

	// Missing .env is fine; env vars may come from the process environment.
	_ = godotenv.Load()

	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	appCfg, errApp := config.LoadFromEnv()
	if errApp != nil {
		return fmt.Errorf("load config: %w", errApp)
	}
	path := appCfg.ConfigPath
	if *configPath != "" {
		path = config.ResolveConfigPath(*configPath)
	}

	dsn, errDSN := config.LoadDatabaseDSN(path)
	if errDSN != nil {
		return fmt.Errorf("resolve database dsn: %w", errDSN)
	}
	jwtCfg, _ := config.LoadJWTConfig(path)
	if jwtCfg.Secret == "" {
		return fmt.Errorf("missing jwt secret (set %s or jwt.secret in config)", config.EnvJWTSecret)
	}
	aiCfg, _ := config.LoadAIConfig(path)
	rateCfg, _ := config.LoadRateLimitConfig(path)
	notifyCfg, _ := config.LoadNotifyConfig(path)

	conn, errOpen := db.Open(dsn)
	if errOpen != nil {
		return fmt.Errorf("open database: %w", errOpen)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return fmt.Errorf("migrate database: %w", errMigrate)
	}
	log.WithField("dialect", db.DialectName(conn)).Info("database ready")

	tokens := token.NewService(conn, jwtCfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go tokens.RunSweeper(ctx, time.Hour)

	loader := articles.NewLoader(conn, notify.NewDispatcher(notifyCfg))

	engine := api.New(api.Options{
		DB:        conn,
		Tokens:    tokens,
		AI:        ai.NewClient(aiCfg),
		Loader:    loader,
		Limiter:   ratelimit.NewLimiter(rateCfg),
		RateLimit: rateCfg.PerMinute,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", *port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", server.Addr).Info("server listening")
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if errShutdown := server.Shutdown(shutdownCtx); errShutdown != nil {
			return fmt.Errorf("shutdown: %w", errShutdown)
		}
		return nil
	case errServe := <-errCh:
		if errServe != nil && errServe != http.ErrServerClosed {
			return errServe
		}
		return nil
	}
}
