// Command worker runs one Worker process (spec §4.4): it dials back to
// the Balancer that spawned it, then hosts Bots over that single control
// connection until the connection closes or it receives `stop`. The
// -balancer-addr/-instances flags are exactly what
// internal/balancer.Boot's exec.Command passes on the command line; the
// instance count is informational only here since capacity accounting
// lives on the Balancer's side of the heap (spec §4.3), not enforced by
// the Worker itself.
package main

import (
	"context"
	"flag"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloudwego/hertz/pkg/common/hlog"

	"github.com/bifshteksex/roombot/internal/bot"
	"github.com/bifshteksex/roombot/internal/chatclient"
	"github.com/bifshteksex/roombot/internal/command"
	"github.com/bifshteksex/roombot/internal/config"
	"github.com/bifshteksex/roombot/internal/extractorrpc"
	"github.com/bifshteksex/roombot/internal/workerproc"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	balancerAddr := flag.String("balancer-addr", "", "address of the balancer's control-connection listener")
	instances := flag.Int("instances", 0, "declared bot capacity for this worker (informational)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		hlog.Fatalf("worker: failed to load config: %v", err)
	}
	if *balancerAddr == "" {
		hlog.Fatalf("worker: -balancer-addr is required")
	}
	hlog.Infof("worker: declared capacity %d instances", *instances)

	conn, err := net.Dial("tcp", *balancerAddr)
	if err != nil {
		hlog.Fatalf("worker: failed to dial balancer at %s: %v", *balancerAddr, err)
	}
	defer conn.Close()

	chat := chatclient.NewHTTPClient(cfg.ChatService.BaseURL)

	var extractor *extractorrpc.Client
	if cfg.Extractor.ListenAddr != "" {
		extractor, err = extractorrpc.Dial(cfg.Extractor.ListenAddr)
		if err != nil {
			hlog.Fatalf("worker: failed to dial extractor at %s: %v", cfg.Extractor.ListenAddr, err)
		}
		defer extractor.Close()
	}

	registry := command.BuildRegistry(bot.DefaultCommands())
	handlers := bot.DefaultHandlers()
	translations := bot.Translations{}

	w := workerproc.New(conn, chat, extractor, cfg.Worker, registry, handlers, translations)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		hlog.Infof("worker: received shutdown signal")
		cancel()
	}()

	if err := w.Run(ctx); err != nil {
		hlog.Fatalf("worker: run loop exited: %v", err)
	}
}
