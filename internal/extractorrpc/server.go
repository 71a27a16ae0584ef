package extractorrpc

import (
	"context"
	"net"
	"sync"

	"github.com/cloudwego/hertz/pkg/common/hlog"

	"github.com/bifshteksex/roombot/internal/model"
)

// Extractor looks up playable track info, the Go-side equivalent of
// original_source's YoutubeExtractor (extract/search methods).
type Extractor interface {
	Extract(ctx context.Context, url string) (model.Track, error)
	Search(ctx context.Context, text string) ([]model.Track, error)
}

// Server listens for Bot connections and dispatches extract/search
// requests to a semaphore-guarded Extractor pool (spec §4.7 "dispatched
// to a worker thread that borrows an extractor from a semaphore-guarded
// pool"). One goroutine per request stands in for the original's worker
// thread pool; the semaphore channel is the pool itself.
type Server struct {
	listener net.Listener
	sem      chan Extractor
}

// NewServer constructs a Server over a pool of equivalent Extractors.
func NewServer(listener net.Listener, extractors []Extractor) *Server {
	sem := make(chan Extractor, len(extractors))
	for _, e := range extractors {
		sem <- e
	}
	return &Server{listener: listener, sem: sem}
}

// Addr returns the listener's bound address.
func (s *Server) Addr() net.Addr { return s.listener.Addr() }

// Serve accepts connections until the listener is closed (by a client's
// `shutdown` verb or by ctx cancellation).
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		_ = s.listener.Close()
	}()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return nil
		}
		go s.handleConn(ctx, conn)
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	var writeMu sync.Mutex
	for {
		req, err := ReadRequest(conn)
		if err != nil {
			return
		}

		if req.Verb == VerbShutdown {
			_ = s.listener.Close()
			return
		}

		go s.execute(ctx, conn, &writeMu, req)
	}
}

func (s *Server) execute(ctx context.Context, conn net.Conn, writeMu *sync.Mutex, req Request) {
	extractor := <-s.sem
	defer func() { s.sem <- extractor }()

	var resp Response
	switch req.Verb {
	case VerbExtract:
		track, err := extractor.Extract(ctx, req.Text)
		if err != nil {
			resp = Response{Error: err.Error()}
		} else {
			resp = Response{Track: &track}
		}
	case VerbSearch:
		tracks, err := extractor.Search(ctx, req.Text)
		if err != nil {
			resp = Response{Error: err.Error()}
		} else {
			resp = Response{Tracks: tracks}
		}
	default:
		resp = Response{Error: "unknown verb"}
	}

	writeMu.Lock()
	defer writeMu.Unlock()
	if err := WriteResponse(conn, resp); err != nil {
		hlog.CtxErrorf(ctx, "extractorrpc: failed to write response: %v", err)
	}
}
