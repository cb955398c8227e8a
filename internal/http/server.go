package http

import (
	stdhttp "net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/getsentry/sentry-go"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"knowledgehub/app/internal/auth"
	"knowledgehub/app/internal/confluence"
	"knowledgehub/app/internal/content"
	"knowledgehub/app/internal/notify"
)

// Options configures the HTTP server wiring.
type Options struct {
	Auth          *auth.Service
	Users         auth.UserRepository
	Workflow      *content.Workflow
	Permissions   *content.PermissionResolver
	Resolver      *content.Resolver
	Pages         content.PageRepository
	Submissions   content.SubmissionRepository
	Groups        content.GroupRepository
	Tags          content.TagAdminRepository
	Notifications notify.Repository
	Hub           *notify.Hub
	External      confluence.Store
	Reconciler    *content.Reconciler
	Uploads       *Uploads
	Database      *gorm.DB
	Logger        *logrus.Logger
	SentryHub     *sentry.Hub
	RateLimiter   RateLimiterSettings
}

// RateLimiterSettings configures the HTTP rate limiter behaviour.
type RateLimiterSettings struct {
	RequestsPerSecond float64
	Burst             int
	ClientTTL         time.Duration
}

// Server wires the HTTP transport layer via Huma.
type Server struct {
	api           huma.API
	mux           *stdhttp.ServeMux
	auth          *auth.Service
	users         auth.UserRepository
	workflow      *content.Workflow
	permissions   *content.PermissionResolver
	resolver      *content.Resolver
	pages         content.PageRepository
	submissions   content.SubmissionRepository
	groups        content.GroupRepository
	tags          content.TagAdminRepository
	notifications notify.Repository
	hub           *notify.Hub
	external      confluence.Store
	reconciler    *content.Reconciler
	uploads       *Uploads
	db            *gorm.DB
	logger        *logrus.Logger
	sentry        *sentry.Hub
	rateLimiter   *RateLimiter
}

// NewServer constructs the HTTP server.
func NewServer(opts Options) (*Server, error) {
	if opts.Auth == nil {
		return nil, eris.New("auth service is required")
	}
	if opts.Workflow == nil {
		return nil, eris.New("workflow is required")
	}
	if opts.Permissions == nil {
		return nil, eris.New("permission resolver is required")
	}
	if opts.Resolver == nil {
		return nil, eris.New("tree resolver is required")
	}
	if opts.Pages == nil {
		return nil, eris.New("page repository is required")
	}
	if opts.Submissions == nil {
		return nil, eris.New("submission repository is required")
	}
	if opts.Groups == nil {
		return nil, eris.New("group repository is required")
	}
	if opts.Tags == nil {
		return nil, eris.New("tag repository is required")
	}
	if opts.Notifications == nil {
		return nil, eris.New("notification repository is required")
	}
	if opts.Hub == nil {
		return nil, eris.New("notification hub is required")
	}
	if opts.External == nil {
		return nil, eris.New("external store is required")
	}
	if opts.Reconciler == nil {
		return nil, eris.New("reconciler is required")
	}
	if opts.Database == nil {
		return nil, eris.New("database is required")
	}

	mux := stdhttp.NewServeMux()
	config := huma.DefaultConfig("Knowledge Hub", "1.0.0")

	api := humago.New(mux, config)

	srv := &Server{
		api:           api,
		mux:           mux,
		auth:          opts.Auth,
		users:         opts.Users,
		workflow:      opts.Workflow,
		permissions:   opts.Permissions,
		resolver:      opts.Resolver,
		pages:         opts.Pages,
		submissions:   opts.Submissions,
		groups:        opts.Groups,
		tags:          opts.Tags,
		notifications: opts.Notifications,
		hub:           opts.Hub,
		external:      opts.External,
		reconciler:    opts.Reconciler,
		uploads:       opts.Uploads,
		db:            opts.Database,
		logger:        opts.Logger,
		sentry:        opts.SentryHub,
	}

	settings := opts.RateLimiter
	if settings.Burst <= 0 {
		return nil, eris.New("rate limiter burst must be greater than zero")
	}
	if settings.RequestsPerSecond <= 0 {
		return nil, eris.New("rate limiter requests per second must be greater than zero")
	}
	if settings.ClientTTL <= 0 {
		return nil, eris.New("rate limiter client TTL must be greater than zero")
	}

	srv.rateLimiter = NewRateLimiter(settings.Burst, settings.RequestsPerSecond, settings.ClientTTL)

	srv.registerMiddlewares()
	srv.registerRoutes()

	return srv, nil
}

// Handler exposes the underlying HTTP handler for wiring into the application.
func (s *Server) Handler() stdhttp.Handler {
	return s.mux
}

// API exposes the underlying Huma API instance.
func (s *Server) API() huma.API {
	return s.api
}

func (s *Server) registerMiddlewares() {
	s.api.UseMiddleware(
		s.sentryMiddleware(),
		s.recoveryMiddleware(),
		s.requestIDMiddleware(),
		s.rateLimitMiddleware(),
		s.authMiddleware(),
		s.loggingMiddleware(),
	)
}

func (s *Server) registerRoutes() {
	s.registerAuthRoutes()
	s.registerKnowledgeRoutes()
	s.registerCMSRoutes()
	s.registerGroupRoutes()
	s.registerTagRoutes()
	s.registerNotificationRoutes()
	s.registerHealthRoute()

	// The websocket stream and the multipart upload endpoint bypass Huma.
	s.mux.HandleFunc("GET /api/notifications/stream", s.streamHandler)
	s.mux.HandleFunc("POST /api/cms/attachments", s.uploadHandler)
}

func (s *Server) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	s.mux.ServeHTTP(w, r)
}
