// Command balancer runs one Balancer process (spec §4.3): it declares
// its broker queue, registers its capacity in Redis, spawns and
// supervises its Worker fleet, and routes create/delete RPCs until a
// worker crash or SIGTERM ends the run loop. Grounded on the teacher's
// cmd/ entrypoint shape (signal.Notify + context.WithCancel, deferred
// cleanup) with the boot/registration sequence taken directly from spec
// §4.3's own description, since no teacher/pack example models a worker-
// pool control-plane process.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloudwego/hertz/pkg/common/hlog"

	"github.com/bifshteksex/roombot/internal/balancer"
	"github.com/bifshteksex/roombot/internal/broker"
	"github.com/bifshteksex/roombot/internal/config"
	"github.com/bifshteksex/roombot/internal/database"
	"github.com/bifshteksex/roombot/internal/sessionstore"
	"github.com/bifshteksex/roombot/internal/userrepo"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		hlog.Fatalf("balancer: failed to load config: %v", err)
	}

	pool, err := database.NewPostgresPool(&cfg.Database)
	if err != nil {
		hlog.Fatalf("balancer: failed to connect to postgres: %v", err)
	}
	defer database.ClosePostgresPool(pool)

	redisClient, err := database.NewRedisClient(&cfg.Redis)
	if err != nil {
		hlog.Fatalf("balancer: failed to connect to redis: %v", err)
	}
	defer database.CloseRedisClient(redisClient)

	brokerConn, err := broker.Dial(cfg.Broker.GetAMQPURL())
	if err != nil {
		hlog.Fatalf("balancer: failed to dial broker: %v", err)
	}
	defer brokerConn.Close()

	queueName, err := brokerConn.DeclareExclusiveQueue()
	if err != nil {
		hlog.Fatalf("balancer: failed to declare queue: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sessions := sessionstore.New(redisClient)
	users := userrepo.New(pool)
	bal := balancer.New(brokerConn, sessions, users, queueName, cfg.Session.GetTTL())

	if err := bal.Boot(cfg.Balancer); err != nil {
		hlog.Fatalf("balancer: failed to boot worker fleet: %v", err)
	}

	capacity := cfg.Balancer.Capacity()
	if err := sessions.RegisterBalancer(ctx, queueName, capacity); err != nil {
		hlog.Fatalf("balancer: failed to register capacity: %v", err)
	}

	deliveries, err := brokerConn.Consume(queueName, "balancer-"+queueName)
	if err != nil {
		hlog.Fatalf("balancer: failed to consume queue: %v", err)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		hlog.Infof("balancer: received shutdown signal")
		cancel()
	}()

	runErr := bal.Run(ctx, deliveries)

	if unregErr := sessions.UnregisterBalancer(context.Background(), queueName); unregErr != nil {
		hlog.Errorf("balancer: failed to unregister capacity: %v", unregErr)
	}

	if runErr != nil {
		hlog.Fatalf("balancer: run loop exited: %v", runErr)
	}
}
