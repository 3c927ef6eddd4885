package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"hirepath/internal/api"
	"hirepath/internal/application"
	"hirepath/internal/interview"
	"hirepath/internal/lifecycle"
	"hirepath/internal/notifier"
	"hirepath/internal/registration"
	"hirepath/internal/storage"
)

// AppConfig 应用配置。
type AppConfig struct {
	Server     ServerConfig              `yaml:"server"`
	Database   storage.Config            `yaml:"database"`
	Email      notifier.EmailConfig      `yaml:"email"`
	Dispatcher notifier.DispatcherConfig `yaml:"dispatcher"`
}

type ServerConfig struct {
	Addr            string `yaml:"addr"`
	ShutdownTimeout string `yaml:"shutdown_timeout"`
}

type httpServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

type backgroundWorker interface {
	Start(ctx context.Context) error
}

var logger = log.New(os.Stdout, "[server] ", log.LstdFlags)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		logger.Printf("load config error: %v", err)
		os.Exit(1)
	}

	store, err := storage.Open(cfg.Database)
	if err != nil {
		logger.Printf("init store error: %v", err)
		os.Exit(1)
	}
	defer store.Close()

	disp, err := notifier.NewDispatcher(cfg.Dispatcher, cfg.Email.From, buildSender(cfg.Email), store, nil)
	if err != nil {
		logger.Printf("init dispatcher error: %v", err)
		return
	}

	apps := application.NewService(store)
	interviews := interview.NewEngine(store)
	accounts := registration.NewService(store)
	orch := lifecycle.NewOrchestrator(apps, interviews, accounts, store, disp, nil)

	handler := api.NewHandler(orch, api.Readers{
		Applications:  apps,
		Interviews:    interviews,
		Registrations: accounts,
	}, logger)

	addr := cfg.Server.Addr
	if addr == "" {
		addr = ":8080"
	}
	shutdown, err := parseTimeout(cfg.Server.ShutdownTimeout, 5*time.Second)
	if err != nil {
		logger.Printf("invalid shutdown_timeout: %v", err)
		return
	}

	srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Printf("listening on %s (db=%s)", addr, cfg.Database.Driver)
	if err := runServer(ctx, srv, disp, shutdown); err != nil {
		logger.Printf("server error: %v", err)
	}
}

// runServer 同时运行 HTTP 服务与通知分发器，ctx 取消后优雅关闭两者。
func runServer(ctx context.Context, srv httpServer, worker backgroundWorker, shutdownTimeout time.Duration) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := worker.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("dispatcher: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

func loadConfig() (AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		logger.Printf("no .env file loaded: %v", err)
	}

	path := os.Getenv("CONFIG_FILE")
	if path == "" {
		path = "config.yaml"
	}
	var cfg AppConfig
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return AppConfig{}, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
		logger.Printf("config %s not found, using defaults", path)
	default:
		return AppConfig{}, err
	}
	if err := applyEnv(&cfg); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

// applyEnv 环境变量优先于配置文件。
func applyEnv(cfg *AppConfig) error {
	setString(&cfg.Server.Addr, "SERVER_ADDR")
	setString(&cfg.Database.Driver, "DATABASE_DRIVER")
	setString(&cfg.Database.Path, "DATABASE_PATH")
	setString(&cfg.Database.DSN, "DATABASE_DSN")
	setString(&cfg.Email.Host, "SMTP_HOST")
	setString(&cfg.Email.Username, "SMTP_USERNAME")
	setString(&cfg.Email.Password, "SMTP_PASSWORD")
	setString(&cfg.Email.From, "SMTP_FROM")
	if v := os.Getenv("SMTP_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SMTP_PORT: %w", err)
		}
		cfg.Email.Port = port
	}
	if v := os.Getenv("DISPATCH_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("DISPATCH_WORKERS: %w", err)
		}
		cfg.Dispatcher.Workers = n
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func parseTimeout(v string, fallback time.Duration) (time.Duration, error) {
	if v == "" {
		return fallback, nil
	}
	return time.ParseDuration(v)
}

func buildSender(cfg notifier.EmailConfig) notifier.EmailSender {
	if !cfg.Enabled() {
		logger.Printf("smtp disabled: missing host/port/from, logging mail instead")
		return notifier.NewLogSender(nil)
	}
	return notifier.NewSMTPClient(cfg)
}
