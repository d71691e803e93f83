package http

import (
	stdhttp "net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/getsentry/sentry-go"
	"github.com/rotisserie/eris"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"

	"dinebot/app/internal/chat"
	"dinebot/app/internal/keywords"
)

// Options configures the HTTP server wiring.
type Options struct {
	ChatService        chat.Service
	Extractor          *keywords.Extractor
	Logger             *logrus.Logger
	SentryHub          *sentry.Hub
	CORSAllowedOrigins []string
}

// Server wires the DineBot HTTP API via Huma and templ components.
type Server struct {
	api       huma.API
	mux       *stdhttp.ServeMux
	handler   stdhttp.Handler
	chat      chat.Service
	extractor *keywords.Extractor
	logger    *logrus.Logger
	sentry    *sentry.Hub
}

// NewServer constructs the HTTP server.
func NewServer(opts Options) (*Server, error) {
	if opts.ChatService == nil {
		return nil, eris.New("chat service is required")
	}
	if opts.Extractor == nil {
		return nil, eris.New("keyword extractor is required")
	}

	mux := stdhttp.NewServeMux()
	config := huma.DefaultConfig("DineBot", "1.0.0")

	api := humago.New(mux, config)

	srv := &Server{
		api:       api,
		mux:       mux,
		chat:      opts.ChatService,
		extractor: opts.Extractor,
		logger:    opts.Logger,
		sentry:    opts.SentryHub,
	}

	srv.registerMiddlewares()
	srv.registerRoutes()

	srv.handler = newCORS(opts.CORSAllowedOrigins).Handler(mux)

	return srv, nil
}

func newCORS(origins []string) *cors.Cors {
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{
			stdhttp.MethodGet,
			stdhttp.MethodPost,
			stdhttp.MethodDelete,
			stdhttp.MethodOptions,
		},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{"X-Request-ID"},
	})
}

// Handler exposes the CORS-wrapped HTTP handler for wiring into the application.
func (s *Server) Handler() stdhttp.Handler {
	return s.handler
}

func (s *Server) registerMiddlewares() {
	s.api.UseMiddleware(
		s.sentryHubMiddleware(),
		s.panicMiddleware(),
		s.requestIDMiddleware(),
		s.accessLogMiddleware(),
	)
}

func (s *Server) registerRoutes() {
	s.registerHomeRoute()
	s.registerChatRoutes()
	s.registerMemoryRoutes()
	s.registerKeywordsRoute()
	s.registerHealthRoute()
}

func (s *Server) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	s.handler.ServeHTTP(w, r)
}
