// Command service runs the front-end HTTP surface spec §6 names: it
// loads configuration, dials Postgres/Redis/the broker, wires
// internal/service.Service and internal/handler onto internal/router,
// and serves Hertz until SIGINT/SIGTERM. Grounded on the teacher's
// cmd/api-gateway/main.go skeleton (server.Default, graceful h.Shutdown
// on signal) fleshed out past its TODOs with the config/database wiring
// the teacher's own internal/database package already provides.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/hlog"

	"github.com/bifshteksex/roombot/internal/broker"
	"github.com/bifshteksex/roombot/internal/chatclient"
	"github.com/bifshteksex/roombot/internal/config"
	"github.com/bifshteksex/roombot/internal/database"
	"github.com/bifshteksex/roombot/internal/dispatch"
	"github.com/bifshteksex/roombot/internal/handler"
	"github.com/bifshteksex/roombot/internal/router"
	"github.com/bifshteksex/roombot/internal/service"
	"github.com/bifshteksex/roombot/internal/sessionstore"
	"github.com/bifshteksex/roombot/internal/signedtoken"
	"github.com/bifshteksex/roombot/internal/userrepo"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		hlog.Fatalf("service: failed to load config: %v", err)
	}

	pool, err := database.NewPostgresPool(&cfg.Database)
	if err != nil {
		hlog.Fatalf("service: failed to connect to postgres: %v", err)
	}
	defer database.ClosePostgresPool(pool)

	redisClient, err := database.NewRedisClient(&cfg.Redis)
	if err != nil {
		hlog.Fatalf("service: failed to connect to redis: %v", err)
	}
	defer database.CloseRedisClient(redisClient)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	brokerConn, err := broker.Dial(cfg.Broker.GetAMQPURL())
	if err != nil {
		hlog.Fatalf("service: failed to dial broker: %v", err)
	}
	defer brokerConn.Close()

	sessions := sessionstore.New(redisClient)
	users := userrepo.New(pool)
	chat := chatclient.NewHTTPClient(cfg.ChatService.BaseURL)

	routerClient, err := dispatch.New(ctx, brokerConn, sessions)
	if err != nil {
		hlog.Fatalf("service: failed to start router: %v", err)
	}

	signer := signedtoken.New(cfg.Secret.Value)
	svc := service.New(chat, users, sessions, routerClient, cfg.Session.GetTTL())

	botHandler := handler.NewBotHandler(svc, sessions, signer)
	wsHandler := handler.NewWebSocketHandler(sessions, signer)

	port := cfg.App.Port
	if port == 0 {
		port = 8080
	}
	h := server.Default(server.WithHostPorts(":" + strconv.Itoa(port)))
	router.Setup(h, cfg, &router.Dependencies{
		BotHandler: botHandler,
		WSHandler:  wsHandler,
	})

	go func() {
		if err := h.Run(); err != nil {
			hlog.Fatalf("service: server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	hlog.Infof("service: shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := h.Shutdown(shutdownCtx); err != nil {
		hlog.Errorf("service: graceful shutdown failed: %v", err)
	}
}
