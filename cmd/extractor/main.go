// Command extractor runs the Extractor RPC server spec §4.7 describes: a
// semaphore-guarded pool of YoutubeExtractors served over a length-
// prefixed TCP protocol (internal/extractorrpc). Grounded on the
// teacher's cmd/ entrypoint shape, adapted for a plain net.Listener
// instead of a Hertz server since this process speaks no HTTP.
package main

import (
	"context"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/hertz/pkg/common/hlog"

	"github.com/bifshteksex/roombot/internal/config"
	"github.com/bifshteksex/roombot/internal/extractorrpc"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		hlog.Fatalf("extractor: failed to load config: %v", err)
	}

	addr := cfg.Extractor.ListenAddr
	if addr == "" {
		addr = ":9100"
	}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		hlog.Fatalf("extractor: failed to listen on %s: %v", addr, err)
	}

	poolSize := cfg.Extractor.PoolSize
	if poolSize <= 0 {
		poolSize = 4
	}
	httpClient := &http.Client{Timeout: 30 * time.Second}
	extractors := make([]extractorrpc.Extractor, poolSize)
	for i := range extractors {
		extractors[i] = extractorrpc.NewYoutubeExtractor(httpClient)
	}

	srv := extractorrpc.NewServer(listener, extractors)
	hlog.Infof("extractor: listening on %s with %d extractors", srv.Addr(), poolSize)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		hlog.Infof("extractor: received shutdown signal")
		cancel()
	}()

	if err := srv.Serve(ctx); err != nil {
		hlog.Fatalf("extractor: serve failed: %v", err)
	}
}
