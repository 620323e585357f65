package server

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/reelfeed/reelfeed/internal/auth"
	"github.com/reelfeed/reelfeed/internal/database"
	"github.com/reelfeed/reelfeed/internal/docs"
	"github.com/reelfeed/reelfeed/internal/geoip"
	"github.com/reelfeed/reelfeed/internal/ratelimit"
	"github.com/reelfeed/reelfeed/internal/video"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type Config struct {
	DB                    database.DBTX
	Pinger                Pinger
	Storage               video.ObjectStorage
	Events                video.EventSink
	GeoResolver           *geoip.Resolver
	JWTSecret             string
	BaseURL               string
	S3PublicEndpoint      string
	AllowedOrigins        []string
	AllowedFrameAncestors string
	MediaURLTTL           time.Duration
	ActionsPerSecond      float64
	ActionsBurst          int
	EnableDocs            bool
}

type Server struct {
	router       chi.Router
	pinger       Pinger
	authHandler  *auth.Handler
	videoHandler *video.Handler
	limiters     []*ratelimit.Limiter
	cfg          Config
}

func New(cfg Config) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(slogMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(securityHeaders(SecurityConfig{
		BaseURL:         cfg.BaseURL,
		StorageEndpoint: cfg.S3PublicEndpoint,
		FrameAncestors:  cfg.AllowedFrameAncestors,
	}))
	r.Use(cors.Handler(corsOptions(cfg.AllowedOrigins)))

	s := &Server{router: r, pinger: cfg.Pinger, cfg: cfg}

	if cfg.DB != nil {
		if cfg.JWTSecret == "" {
			log.Fatal("JWT_SECRET is required; set the environment variable")
		}
		s.authHandler = auth.NewHandler(cfg.JWTSecret)
		s.videoHandler = video.NewHandler(cfg.DB, cfg.Storage)
		s.videoHandler.SetGeoResolver(cfg.GeoResolver)
		s.videoHandler.SetMediaURLTTL(cfg.MediaURLTTL)
		if cfg.Events != nil {
			s.videoHandler.SetEventSink(cfg.Events)
		}
	}

	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close stops the limiter sweeps and waits for background view writes and event deliveries.
func (s *Server) Close() {
	for _, l := range s.limiters {
		l.Stop()
	}
	if s.videoHandler != nil {
		s.videoHandler.Wait()
	}
}

func corsOptions(origins []string) cors.Options {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		ExposedHeaders: []string{"Retry-After", "X-Request-Id"},
		MaxAge:         300,
	}
}

func (s *Server) newLimiter(defaultRate float64, defaultBurst int) *ratelimit.Limiter {
	rate, burst := s.cfg.ActionsPerSecond, s.cfg.ActionsBurst
	if rate <= 0 {
		rate = defaultRate
	}
	if burst <= 0 {
		burst = defaultBurst
	}
	l := ratelimit.NewLimiter(rate, burst, ratelimit.WithKey(func(r *http.Request) string {
		if userID := auth.UserIDFromContext(r.Context()); userID != "" {
			return "user:" + userID
		}
		return ""
	}))
	s.limiters = append(s.limiters, l)
	return l
}

func (s *Server) routes() {
	s.router.Get("/api/health", s.handleHealth)

	if s.cfg.EnableDocs {
		s.router.Get("/api/docs", docs.HandleDocs)
		s.router.Get("/api/docs/openapi.yaml", docs.HandleSpec)
	}

	if s.videoHandler == nil {
		return
	}

	actions := s.newLimiter(2, 20)
	views := s.newLimiter(1, 10)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/playlists/{slug}", s.videoHandler.GetPlaylist)
		r.Get("/comments/{id}", s.videoHandler.ListComments)
		r.Get("/comments/{id}/count", s.videoHandler.CommentCount)

		r.With(s.authHandler.OptionalMiddleware, views.Middleware).
			Post("/videos/{id}/view", s.videoHandler.RecordView)

		r.Group(func(r chi.Router) {
			r.Use(s.authHandler.Middleware)
			r.Get("/reactions/{id}", s.videoHandler.GetReaction)
			r.Get("/bookmarks/{id}/check", s.videoHandler.CheckBookmark)

			r.Group(func(r chi.Router) {
				r.Use(actions.Middleware)
				r.Post("/reactions/{id}/like", s.videoHandler.Like)
				r.Post("/reactions/{id}/dislike", s.videoHandler.Dislike)
				r.Post("/bookmarks/{id}", s.videoHandler.ToggleBookmark)
				r.Post("/comments/{id}", s.videoHandler.AddComment)
			})
		})
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if s.pinger != nil {
		if err := s.pinger.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unhealthy","error":"database unreachable"}`))
			return
		}
	}
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
