package server

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"

	"backend-cragmap/internal/auth"
	"backend-cragmap/internal/cache"
	"backend-cragmap/internal/catalog"
	"backend-cragmap/internal/config"
	"backend-cragmap/internal/db"
	"backend-cragmap/internal/feed"
	"backend-cragmap/internal/metrics"
	"backend-cragmap/internal/remote"
	"backend-cragmap/internal/search"
	"backend-cragmap/internal/stream"
	"backend-cragmap/internal/syncer"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Backends are the connections the composition root managed to open.
// Nil Postgres selects the in-memory document store; nil Cache opens the
// backend named by the config.
type Backends struct {
	Postgres db.Querier
	Redis    *redis.Client
	Cache    cache.Store
	Logger   *zap.Logger
}

type Server struct {
	App       *fiber.App
	Cfg       config.Config
	Logger    *zap.Logger
	Metrics   *metrics.Collector
	Cache     cache.Store
	Remote    *remote.Breaker
	Catalog   *catalog.Catalog
	Session   *auth.Session
	Auth      *auth.Service
	Favorites *syncer.Favorites
	Logs      *syncer.Logs
	Feed      *feed.Service
	Stream    *stream.Hub

	ownsCache   bool
	stopWatcher context.CancelFunc
}

func NewServer(ctx context.Context, cfg config.Config, b Backends) (*Server, error) {
	log := b.Logger
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		Cfg:     cfg,
		Logger:  log,
		Metrics: metrics.New(),
		Cache:   b.Cache,
	}

	if s.Cache == nil {
		local, err := cache.Open(cfg, b.Redis)
		if err != nil {
			return nil, fmt.Errorf("open local cache: %w", err)
		}
		s.Cache = local
		s.ownsCache = true
	}

	s.Remote = remote.NewBreaker(documentStore(ctx, b.Postgres, log), remote.DefaultBreakerConfig("remote-documents"), log)
	s.Stream = stream.NewHub(b.Redis, log)
	s.Session = auth.NewSession()
	s.Auth = auth.NewService(cfg.JWTSecret, b.Postgres)

	s.Catalog = catalog.New(s.Cache, log)
	s.Catalog.SetMetrics(s.Metrics)
	report, err := s.Catalog.Load(ctx, catalogFS(cfg))
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	log.Info("catalog loaded",
		zap.Int("files", report.Files), zap.Int("regions", report.Regions),
		zap.Int("sites", report.Sites), zap.Int("excluded", len(report.Issues)))

	s.Feed = feed.NewService(s.Remote, s.Session,
		feed.WithLimit(cfg.FeedLimit),
		feed.WithBroadcaster(s.Stream),
		feed.WithMetrics(s.Metrics),
		feed.WithLogger(log.Named("feed")),
	)
	s.Feed.Bind()

	opts := []syncer.Option{
		syncer.WithLogger(log.Named("sync")),
		syncer.WithMetrics(s.Metrics),
		syncer.WithPublisher(s.Feed),
		syncer.WithRemoteTimeout(cfg.RemoteTimeout),
		syncer.WithMinInterval(cfg.RefreshMinInterval),
	}
	s.Favorites = syncer.NewFavorites(s.Cache, s.Remote, s.Session, opts...)
	s.Logs = syncer.NewLogs(s.Cache, s.Remote, s.Session, opts...)
	s.Favorites.LoadLocal(ctx)
	s.Logs.LoadLocal(ctx)
	s.Favorites.Bind()
	s.Logs.Bind()

	if cfg.CatalogWatch && cfg.CatalogDir != "" {
		w, err := catalog.NewWatcher(cfg.CatalogDir, s.Catalog, log.Named("catalog"))
		if err != nil {
			log.Warn("catalog watcher disabled", zap.Error(err))
		} else {
			watchCtx, cancel := context.WithCancel(context.Background())
			s.stopWatcher = cancel
			go w.Run(watchCtx)
		}
	}

	app := fiber.New()
	app.Use(recover.New())
	app.Use(logger.New())
	s.App = app

	registerRoutes(s)
	return s, nil
}

// documentStore prefers postgres and falls back to memory when it is
// missing or its schema cannot be applied.
func documentStore(ctx context.Context, q db.Querier, log *zap.Logger) remote.DocumentStore {
	if q == nil {
		log.Warn("postgres unavailable, using in-memory document store")
		return remote.NewMemory()
	}
	pg := remote.NewPostgres(q)
	if err := pg.Migrate(ctx); err != nil {
		log.Warn("document schema migration failed, using in-memory document store", zap.Error(err))
		return remote.NewMemory()
	}
	return pg
}

func catalogFS(cfg config.Config) fs.FS {
	if cfg.CatalogDir != "" {
		return os.DirFS(cfg.CatalogDir)
	}
	return catalog.Bundled()
}

func registerRoutes(s *Server) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":          "ok",
			"catalog_loading": s.Catalog.Loading(),
			"remote":          s.Remote.State().String(),
		})
	})

	jwtMiddleware := auth.JWTMiddleware(s.Cfg.JWTSecret)

	auth.RegisterRoutes(s.App.Group("/auth"), s.Auth, s.Session, jwtMiddleware)
	search.RegisterRoutes(s.App.Group("/sites"), s.Catalog)
	syncer.RegisterFavoriteRoutes(s.App.Group("/favorites"), s.Favorites)
	syncer.RegisterLogRoutes(s.App.Group("/logs"), s.Logs)
	feed.RegisterRoutes(s.App.Group("/feed"), s.Feed)
	stream.RegisterRoutes(s.App.Group("/stream"), s.Stream)

	s.App.Post("/sync/activate", func(c *fiber.Ctx) error {
		favs, favsRan := s.Favorites.OnActivate(c.Context())
		logs, logsRan := s.Logs.OnActivate(c.Context())
		return c.JSON(fiber.Map{
			"favorites": fiber.Map{"refreshed": favsRan, "count": len(favs)},
			"logs":      fiber.Map{"refreshed": logsRan, "count": len(logs)},
		})
	})

	s.App.Get("/metrics", adaptor.HTTPHandler(s.Metrics.Handler()))
}

// Close stops background work and releases what NewServer opened.
func (s *Server) Close() {
	if s.stopWatcher != nil {
		s.stopWatcher()
	}
	if s.Favorites != nil {
		s.Favorites.Close()
	}
	if s.Logs != nil {
		s.Logs.Close()
	}
	if s.Feed != nil {
		s.Feed.Close()
	}
	if s.Stream != nil {
		s.Stream.Close()
	}
	if s.ownsCache {
		if closer, ok := s.Cache.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				s.Logger.Warn("close local cache", zap.Error(err))
			}
		}
	}
}
