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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/watchroom/server/internal/controller"
	"github.com/watchroom/server/internal/metrics"
	connectioninmemory "github.com/watchroom/server/internal/repository/connection/inmemory"
	meshinmemory "github.com/watchroom/server/internal/repository/mesh/inmemory"
	presenceredis "github.com/watchroom/server/internal/repository/presence/redis"
	roomredis "github.com/watchroom/server/internal/repository/room/redis"
	presenceservice "github.com/watchroom/server/internal/service/presence"
	roomservice "github.com/watchroom/server/internal/service/room"
	"github.com/watchroom/server/pkg/ctxlogger"
	"github.com/watchroom/server/pkg/redisclient"
)

type AppConfig struct {
	Secret        string `json:"-"`
	Host          string `json:"host"`
	Port          int    `json:"port"`
	MembersLimit  int    `json:"members_limit"`
	ChatLimit     int    `json:"chat_limit"`
	RoomGraceSec  int    `json:"room_grace_sec"`
	RoomTTLSec    int    `json:"room_ttl_sec"`
	SessionTTLSec int    `json:"session_ttl_sec"`
	PresenceSec   int    `json:"presence_sec"`
	LogLevel      string `json:"log_level"`
	RedisPort     int    `json:"redis_port"`
	RedisHost     string `json:"redis_host"`
	RedisPassword string `json:"-"`
}

func (cfg *AppConfig) Validate() error {
	if cfg.Secret == "" {
		return fmt.Errorf("secret must be set")
	}
	if cfg.MembersLimit < 1 {
		return fmt.Errorf("members limit must be greater than 0")
	}
	if cfg.ChatLimit < 1 {
		return fmt.Errorf("chat limit must be greater than 0")
	}
	if cfg.RoomGraceSec < 1 {
		return fmt.Errorf("room grace must be greater than 0")
	}
	if cfg.RoomTTLSec < cfg.RoomGraceSec {
		return fmt.Errorf("room ttl must not be less than room grace")
	}
	if cfg.SessionTTLSec < 1 {
		return fmt.Errorf("session ttl must be greater than 0")
	}
	if cfg.PresenceSec < 1 {
		return fmt.Errorf("presence ttl must be greater than 0")
	}
	return nil
}

func Run(ctx context.Context, cfg *AppConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logLevel := slog.LevelInfo
	if err := logLevel.UnmarshalText([]byte(strings.ToUpper(cfg.LogLevel))); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}

	h := ctxlogger.ContextHandler{
		Handler: slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level:     logLevel,
			AddSource: true,
		}),
	}
	logger := slog.New(&h)

	rc, err := redisclient.New(ctx, &redisclient.Config{
		Port:     cfg.RedisPort,
		Host:     cfg.RedisHost,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		return fmt.Errorf("failed to create redis client: %w", err)
	}
	defer rc.Close()

	roomRepo := roomredis.NewRepo(rc, &roomredis.Config{
		ExpireDuration:  time.Duration(cfg.RoomTTLSec) * time.Second,
		SessionDuration: time.Duration(cfg.SessionTTLSec) * time.Second,
		ChatLimit:       cfg.ChatLimit,
	})
	connectionRepo := connectioninmemory.NewRepo()
	meshRepo := meshinmemory.NewRepo()
	presenceRepo := presenceredis.NewRepo(rc, time.Duration(cfg.PresenceSec)*time.Second)

	roomService := roomservice.NewService(roomRepo, connectionRepo, meshRepo, &roomservice.Config{
		Secret:       cfg.Secret,
		MembersLimit: cfg.MembersLimit,
		RoomExp:      time.Duration(cfg.RoomGraceSec) * time.Second,
	})
	presenceService := presenceservice.NewService(presenceRepo)

	collector := metrics.NewCollector(prometheus.DefaultRegisterer)

	controller := controller.NewController(roomService, presenceService, collector, logger)
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

	logger.InfoContext(serverCtx, "starting server", "address", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	<-serverCtx.Done()

	return nil
}
