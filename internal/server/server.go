package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/TaichKarna/levlelup/config"
	"github.com/TaichKarna/levlelup/internal/db"
	"github.com/TaichKarna/levlelup/internal/handlers"
	"github.com/TaichKarna/levlelup/internal/mail"
	"github.com/TaichKarna/levlelup/internal/mq"
	"github.com/TaichKarna/levlelup/internal/oauth"
	"github.com/TaichKarna/levlelup/internal/services"
	"github.com/TaichKarna/levlelup/internal/storage"
	"github.com/TaichKarna/levlelup/internal/store"
	"github.com/TaichKarna/levlelup/internal/token"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server wraps the HTTP server and its owned resources.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	broker     *mq.MQ
}

// New constructs a Server: database, object storage, message broker,
// OAuth providers, and routes.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	if cfg.JWT.AccessSecret == "" || cfg.JWT.RefreshSecret == "" {
		return nil, errors.New("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET are required")
	}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	backend, err := newStorageBackend(ctx, cfg.Storage)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}
	objectStore := storage.NewStorage(backend)
	if err := objectStore.EnsureBucket(ctx); err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	broker, err := NewBroker(ctx, cfg.MQ)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	providers, err := newOAuthProviders(ctx, cfg)
	if err != nil {
		_ = broker.Close()
		_ = dbConn.Close()
		return nil, err
	}

	userRepo := store.NewUserRepository(dbConn)
	universityRepo := store.NewUniversityRepository(dbConn)

	userService := services.NewUserService(userRepo, universityRepo)
	universityService := services.NewUniversityService(universityRepo, objectStore, cfg.Storage.PublicURL)

	issuer := token.NewIssuer(token.Config{
		AccessSecret:  cfg.JWT.AccessSecret,
		RefreshSecret: cfg.JWT.RefreshSecret,
	})
	mailer := mail.NewMailer(broker)

	authHandler := handlers.NewAuthHandler(handlers.AuthHandlerConfig{
		Users:         userService,
		Issuer:        issuer,
		Mailer:        mailer,
		Providers:     providers,
		ClientURL:     cfg.ClientURL,
		SecureCookies: cfg.Production(),
	})
	userHandler := handlers.NewUserHandler(userService, universityService)
	universityHandler := handlers.NewUniversityHandler(universityService, userService)
	adminHandler := handlers.NewAdminHandler(universityService)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			handlers.AuthRouter(r, authHandler)
		})
		r.Route("/user", func(r chi.Router) {
			handlers.UserRouter(r, userHandler, authHandler.RequireAuth)
		})
		r.Route("/university", func(r chi.Router) {
			handlers.UniversityRouter(r, universityHandler, authHandler.RequireAuth)
		})
		r.Route("/admin", func(r chi.Router) {
			handlers.AdminRouter(r, adminHandler, authHandler.RequireAuth)
		})
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		broker:     broker,
	}, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown attempts a graceful shutdown.
func (s *Server) Shutdown() error {
	if s.db != nil {
		_ = s.db.Close()
	}
	if s.broker != nil {
		_ = s.broker.Close()
	}
	return s.httpServer.Close()
}

func newStorageBackend(ctx context.Context, cfg config.StorageConfig) (storage.ObjectStorage, error) {
	switch cfg.Backend {
	case "gcs":
		return storage.NewGCSClient(ctx, cfg.GCS)
	case "minio", "":
		return storage.NewMinioClient(cfg.Minio)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// NewBroker constructs the configured message broker backend. Shared
// with the worker command.
func NewBroker(ctx context.Context, cfg config.MQConfig) (*mq.MQ, error) {
	switch cfg.Backend {
	case "pubsub":
		backend, err := mq.NewPubSubClient(ctx, cfg.PubSub)
		if err != nil {
			return nil, err
		}
		return mq.New(backend), nil
	case "rabbitmq", "":
		backend, err := mq.NewRabbitMQClient(cfg.RabbitMQ)
		if err != nil {
			return nil, err
		}
		return mq.New(backend), nil
	default:
		return nil, fmt.Errorf("unknown mq backend %q", cfg.Backend)
	}
}

// newOAuthProviders builds the providers that have credentials
// configured. Unconfigured providers get no routes.
func newOAuthProviders(ctx context.Context, cfg config.Config) ([]oauth.Provider, error) {
	var providers []oauth.Provider

	if cfg.OAuth.GoogleClientID != "" {
		google, err := oauth.NewGoogle(ctx, oauth.GoogleConfig{
			ClientID:     cfg.OAuth.GoogleClientID,
			ClientSecret: cfg.OAuth.GoogleClientSecret,
			RedirectURL:  cfg.APIURL + "/api/auth/google/callback",
		})
		if err != nil {
			return nil, err
		}
		providers = append(providers, google)
	}

	if cfg.OAuth.GitHubClientID != "" {
		providers = append(providers, oauth.NewGitHub(oauth.GitHubConfig{
			ClientID:     cfg.OAuth.GitHubClientID,
			ClientSecret: cfg.OAuth.GitHubClientSecret,
			RedirectURL:  cfg.APIURL + "/api/auth/github/callback",
		}))
	}

	return providers, nil
}
