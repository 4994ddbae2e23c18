package app

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/watchroom/engine/internal/controller"
	pubsubRedis "github.com/watchroom/engine/internal/repository/pubsub/redis"
	roomRedis "github.com/watchroom/engine/internal/repository/room/redis"
	"github.com/watchroom/engine/internal/service/room"
	"github.com/watchroom/engine/pkg/ctxlogger"
	"github.com/watchroom/engine/pkg/redisclient"
)

type AppConfig struct {
	Host              string  `json:"host"`
	Port              int     `json:"port"`
	LogLevel          string  `json:"log_level"`
	DeadBandSeconds   float64 `json:"dead_band_seconds"`
	HeartbeatSeconds  int     `json:"heartbeat_seconds"`
	StaleAfterSeconds int     `json:"stale_after_seconds"`
	RedisPort         int     `json:"redis_port"`
	RedisHost         string  `json:"redis_host"`
	RedisPassword     string  `json:"-"`
}

func (cfg *AppConfig) Validate() error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("port must be in 1..65535")
	}
	if cfg.DeadBandSeconds < 0 {
		return fmt.Errorf("dead band must not be negative")
	}
	if cfg.HeartbeatSeconds < 1 {
		return fmt.Errorf("heartbeat interval must be at least 1s")
	}
	if cfg.StaleAfterSeconds <= cfg.HeartbeatSeconds {
		return fmt.Errorf("staleness window must exceed the heartbeat interval")
	}
	return nil
}

func Run(ctx context.Context, cfg *AppConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logLevel := slog.LevelInfo
	if err := logLevel.UnmarshalText([]byte(strings.ToUpper(cfg.LogLevel))); err != nil {
		log.Fatal(err)
	}

	h := ctxlogger.ContextHandler{
		Handler: slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level:     logLevel,
			AddSource: true,
		}),
	}

	logger := slog.New(&h)

	rc, err := redisclient.NewRedisClient(ctx, &redisclient.Config{
		Port:     cfg.RedisPort,
		Host:     cfg.RedisHost,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		return fmt.Errorf("failed to create redis client: %w", err)
	}
	defer rc.Close()

	roomRepo := roomRedis.NewRepo(rc, logger, 24*14*time.Hour)
	bus := pubsubRedis.NewBus(rc, logger)
	roomService := room.NewService(roomRepo, bus, &room.Config{
		DeadBand:          cfg.DeadBandSeconds,
		HeartbeatInterval: time.Duration(cfg.HeartbeatSeconds) * time.Second,
		StaleAfter:        time.Duration(cfg.StaleAfterSeconds) * time.Second,
	}, logger)
	controller := controller.NewController(roomService, logger)
	server := &http.Server{Addr: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port), Handler: controller.GetMux()}

	// graceful shutdown
	serverCtx, serverStopCtx := context.WithCancel(ctx)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		<-sig

		shutdownCtx, c := context.WithTimeout(serverCtx, 30*time.Second)
		defer c()

		go func() {
			<-shutdownCtx.Done()
			if shutdownCtx.Err() == context.DeadlineExceeded {
				log.Fatal("graceful shutdown timed out.. forcing exit.")
			}
		}()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Fatal(err)
		}
		serverStopCtx()
	}()

	logger.InfoContext(serverCtx, "starting engine", "address", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	<-serverCtx.Done()

	return nil
}
