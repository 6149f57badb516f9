package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/dixieflatline76/Jitter/asset"
	"github.com/dixieflatline76/Jitter/pkg/augment"
	"github.com/dixieflatline76/Jitter/pkg/media"
	"github.com/dixieflatline76/Jitter/pkg/output"
	"github.com/dixieflatline76/Jitter/util/log"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/semaphore"
)

// Processor runs one augmentation job. *augment.Augmenter implements it.
type Processor interface {
	Run(ctx context.Context, req augment.Request) augment.Result
}

// Options configures a Server.
type Options struct {
	Version           string
	MaxUploadBytes    int64
	MaxConcurrentJobs int64
	Tools             media.Tools // reported by /health
	Hub               *Hub        // nil creates one
}

// Server represents the local web form and REST/WebSocket server.
type Server struct {
	httpServer *http.Server
	router     *mux.Router
	upgrader   websocket.Upgrader
	hub        *Hub
	assets     *asset.Manager

	proc     Processor
	files    *output.FileManager
	opts     Options
	jobs     *semaphore.Weighted
	inFlight atomic.Int64
}

// NewServer creates a new API server.
func NewServer(proc Processor, files *output.FileManager, opts Options) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 200 << 20
	}
	if opts.MaxConcurrentJobs <= 0 {
		opts.MaxConcurrentJobs = 2
	}
	if opts.Hub == nil {
		opts.Hub = NewHub()
	}

	s := &Server{
		router: mux.NewRouter(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		hub:    opts.Hub,
		assets: asset.NewManager(),
		proc:   proc,
		files:  files,
		opts:   opts,
		jobs:   semaphore.NewWeighted(opts.MaxConcurrentJobs),
	}
	s.setupRoutes()
	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	s.router.HandleFunc("/augment", s.handleAugmentForm).Methods(http.MethodPost)
	s.router.HandleFunc("/api/augment", s.enableCORS(s.handleAugmentAPI)).Methods(http.MethodPost, http.MethodOptions)
	s.router.HandleFunc("/outputs/{name}", s.handleOutput).Methods(http.MethodGet, http.MethodHead)
	s.router.HandleFunc("/health", s.enableCORS(s.handleHealth)).Methods(http.MethodGet, http.MethodOptions)
	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.PathPrefix("/static/").Handler(http.StripPrefix("/static/", http.FileServer(http.FS(s.assets.Static()))))
}

// enableCORS adds CORS headers to the handler.
func (s *Server) enableCORS(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		// Handle preflight requests
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}

// Hub returns the progress hub, for wiring into augment.Options.Progress.
func (s *Server) Hub() *Hub {
	return s.hub
}

// InFlight returns the number of jobs currently holding a slot.
func (s *Server) InFlight() int64 {
	return s.inFlight.Load()
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve serves on ln until Stop is called. It returns nil after a clean Stop.
func (s *Server) Serve(ln net.Listener) error {
	log.Printf("Listening on http://%s", ln.Addr())
	// This is blocking
	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop closes websocket clients and waits for in-flight requests until ctx ends.
func (s *Server) Stop(ctx context.Context) error {
	s.hub.CloseAll()
	return s.httpServer.Shutdown(ctx)
}

// runJob waits for a job slot, then runs req. It reports false if the
// request context ended before a slot was free.
func (s *Server) runJob(ctx context.Context, req augment.Request) (augment.Result, bool) {
	if err := s.jobs.Acquire(ctx, 1); err != nil {
		return augment.Result{}, false
	}
	defer s.jobs.Release(1)

	s.inFlight.Add(1)
	defer s.inFlight.Add(-1)

	res := s.proc.Run(ctx, req)
	s.hub.Finish(res, s.outputURL(res))
	return res, true
}

func (s *Server) outputURL(res augment.Result) string {
	if !res.OK() || res.Name == "" {
		return ""
	}
	return "/outputs/" + res.Name
}
