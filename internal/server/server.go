package server

import (
	"context"
	"errors"

	"backend-barrierfree/internal/auth"
	"backend-barrierfree/internal/config"
	"backend-barrierfree/internal/db"
	"backend-barrierfree/internal/events"
	"backend-barrierfree/internal/favorite"
	"backend-barrierfree/internal/history"
	"backend-barrierfree/internal/navigation"
	"backend-barrierfree/internal/observability"
	"backend-barrierfree/internal/proximity"
	"backend-barrierfree/internal/report"
	"backend-barrierfree/internal/routing"
	"backend-barrierfree/internal/search"
	"backend-barrierfree/internal/storage"
	"backend-barrierfree/internal/stream"
	"backend-barrierfree/internal/tracking"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// bodyLimit leaves headroom over the 5 MB photo cap for multipart framing.
const bodyLimit = 8 << 20

type Server struct {
	App    *fiber.App
	Cfg    config.Config
	DB     *pgxpool.Pool
	Redis  *redis.Client
	Log    *logrus.Logger
	Stream *stream.Hub

	Reports    *report.Service
	Planner    *routing.Planner
	Navigation *navigation.Manager

	// optional integrations, nil when not configured
	Events  *events.KafkaProducer
	Elastic *search.ElasticStore
	Photos  storage.Uploader
}

func NewServer(cfg config.Config, pool *pgxpool.Pool, redisClient *redis.Client, log *logrus.Logger) *Server {
	if log == nil {
		log = logrus.New()
	}

	app := fiber.New(fiber.Config{BodyLimit: bodyLimit})
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{Output: log.Writer()}))
	app.Use(observability.Middleware())

	s := &Server{
		App:    app,
		Cfg:    cfg,
		DB:     pool,
		Redis:  redisClient,
		Log:    log,
		Stream: stream.NewHub(redisClient, log),
	}
	s.connectIntegrations()

	registerRoutes(s)
	return s
}

func (s *Server) querier() db.Querier {
	if s.DB == nil {
		return nil
	}
	return s.DB
}

func (s *Server) connectIntegrations() {
	if len(s.Cfg.KafkaBrokers) > 0 {
		producer, err := events.NewKafkaProducer(s.Cfg.KafkaBrokers, s.Cfg.KafkaTopic)
		if err != nil {
			s.Log.WithError(err).Warn("kafka events disabled")
		} else {
			s.Events = producer
		}
	}

	if s.Cfg.ElasticURL != "" {
		store, err := search.NewElasticStore(s.Cfg.ElasticURL, s.Cfg.ElasticIndex)
		if err != nil {
			s.Log.WithError(err).Warn("elasticsearch disabled, searching postgres")
		} else {
			s.Elastic = store
		}
	}

	if s.Cfg.S3Bucket != "" {
		store, err := storage.NewS3Store(context.Background(), storage.S3Options{
			Bucket:    s.Cfg.S3Bucket,
			Region:    s.Cfg.S3Region,
			Endpoint:  s.Cfg.S3Endpoint,
			PublicURL: s.Cfg.S3PublicURL,
		})
		if err != nil {
			s.Log.WithError(err).Warn("photo uploads disabled")
		} else {
			s.Photos = store
		}
	}
}

func (s *Server) reportOptions() []report.Option {
	opts := []report.Option{
		report.WithLogger(s.Log),
		report.WithNotifier(report.HubNotifier{Hub: s.Stream}),
	}
	if s.Events != nil {
		opts = append(opts, report.WithNotifier(report.PublisherNotifier{Publisher: s.Events}))
	}
	if s.Elastic != nil {
		opts = append(opts, report.WithNotifier(report.IndexNotifier{Index: s.Elastic}))
	}
	return opts
}

func registerRoutes(s *Server) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	s.App.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	q := s.querier()
	jwtMiddleware := auth.JWTMiddleware(s.Cfg.JWTSecret)
	optionalJWT := auth.OptionalJWTMiddleware(s.Cfg.JWTSecret)

	authSvc := auth.NewService(s.Cfg.JWTSecret, q)
	auth.RegisterRoutes(s.App.Group("/auth"), authSvc, jwtMiddleware)

	s.Reports = report.NewService(q, s.reportOptions()...)
	report.RegisterRoutes(s.App.Group("/reports"), s.Reports, jwtMiddleware, optionalJWT, authSvc.IsAdmin)
	report.RegisterAdminRoutes(s.App.Group("/admin", jwtMiddleware, auth.AdminMiddleware(q)), s.Reports)

	storage.RegisterRoutes(s.App.Group("/storage"), storage.NewService(q, s.Photos), jwtMiddleware)
	favorite.RegisterRoutes(s.App.Group("/favorites"), favorite.NewService(q), jwtMiddleware)
	history.RegisterRoutes(s.App.Group("/history"), history.NewService(q), jwtMiddleware)

	provider := routing.NewCachedProvider(
		routing.NewOSRMClient(s.Cfg.OSRMURL, s.Cfg.TransitSpeedMps),
		s.Redis, s.Cfg.RouteCacheTTL, s.Log,
	)
	s.Planner = routing.NewPlanner(provider, s.Reports, proximity.NewScorer(s.Cfg.BarrierRadiusM), s.Log)
	routing.RegisterRoutes(s.App.Group("/routes"), s.Planner, optionalJWT)

	trails := tracking.NewService(q)
	var navOpts []navigation.Option
	if q != nil {
		navOpts = append(navOpts, navigation.WithRecorder(trails))
	}
	s.Navigation = navigation.NewManager(s.Planner, s.Stream, s.Cfg.NavRefreshInterval, s.Log, navOpts...)
	navigation.RegisterRoutes(s.App.Group("/navigation"), s.Navigation, jwtMiddleware)
	tracking.RegisterRoutes(s.App.Group("/trails"), trails, jwtMiddleware)

	var searcher search.Searcher = search.DatabaseSearcher{Reports: s.Reports}
	if s.Elastic != nil {
		searcher = s.Elastic
	}
	search.RegisterRoutes(s.App.Group("/search"), searcher)

	stream.RegisterRoutes(s.App.Group("/stream"), s.Stream, navigation.TopicAuthorizer(s.Navigation, authSvc.ValidateAccessToken))
}

// Close stops background work started by NewServer. The database and redis
// handles belong to the caller.
func (s *Server) Close() error {
	if s.Navigation != nil {
		s.Navigation.Close()
	}
	var errs []error
	if s.Stream != nil {
		errs = append(errs, s.Stream.Close())
	}
	if s.Events != nil {
		errs = append(errs, s.Events.Close())
	}
	return errors.Join(errs...)
}
