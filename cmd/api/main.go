package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"backend-barrierfree/internal/config"
	"backend-barrierfree/internal/db"
	"backend-barrierfree/internal/logging"
	"backend-barrierfree/internal/report"
	"backend-barrierfree/internal/server"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

var mainDepsProvider = defaultDeps
var mainRunner = realMain

func main() {
	mainRunner(mainDepsProvider())
}

type mainDeps struct {
	loadConfig      func() config.Config
	connectPostgres func(config.Config) (*pgxpool.Pool, error)
	connectRedis    func(config.Config) *redis.Client
	notify          func(chan<- os.Signal, ...os.Signal)
	run             func(context.Context, config.Config, *pgxpool.Pool, *redis.Client, <-chan os.Signal, ListenFunc) error
}

func defaultDeps() mainDeps {
	return mainDeps{
		loadConfig:      config.Load,
		connectPostgres: db.ConnectPostgres,
		connectRedis:    db.ConnectRedis,
		notify:          signal.Notify,
		run:             Run,
	}
}

func realMain(deps mainDeps) {
	cfg := deps.loadConfig()
	log := logging.New(cfg.LogLevel)

	pg, err := deps.connectPostgres(cfg)
	if err != nil {
		log.WithError(err).Error("postgres connection failed")
	}

	rdb := deps.connectRedis(cfg)

	signals := make(chan os.Signal, 1)
	deps.notify(signals, syscall.SIGINT, syscall.SIGTERM)

	if err := deps.run(context.Background(), cfg, pg, rdb, signals, nil); err != nil {
		log.WithError(err).Error("server exited with error")
	}
}

type ListenFunc func(app *fiber.App, addr string) error

var defaultListen ListenFunc = func(app *fiber.App, addr string) error {
	return app.Listen(addr)
}

var shutdownFn = func(app *fiber.App, ctx context.Context) error {
	return app.ShutdownWithContext(ctx)
}

// Run starts the HTTP server and waits for termination signals.
func Run(ctx context.Context, cfg config.Config, pg *pgxpool.Pool, rdb *redis.Client, signals <-chan os.Signal, listen ListenFunc) error {
	log := logging.New(cfg.LogLevel)
	srv := server.NewServer(cfg, pg, rdb, log)

	if pg != nil && srv.Elastic != nil {
		go prepareSearchIndex(ctx, srv, log)
	}

	if listen == nil {
		listen = defaultListen
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- listen(srv.App, cfg.ServerPort)
	}()

	select {
	case <-signals:
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			_ = srv.Close()
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := shutdownFn(srv.App, shutdownCtx); err != nil {
		return err
	}
	if err := srv.Close(); err != nil {
		log.WithError(err).Warn("closing server resources")
	}
	if pg != nil {
		pg.Close()
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	return nil
}

// approvedPager is satisfied by *report.Service.
type approvedPager interface {
	ApprovedPage(ctx context.Context, afterID string, limit int) ([]report.Report, error)
}

type bulkIndexer interface {
	IndexAll(ctx context.Context, reports []report.Report) (int, error)
}

// prepareSearchIndex creates the place index and backfills it from the
// approved reports so search works on a fresh cluster.
func prepareSearchIndex(ctx context.Context, srv *server.Server, log logrus.FieldLogger) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Minute)
	defer cancel()

	if err := srv.Elastic.EnsureIndex(ctx); err != nil {
		log.WithError(err).Warn("elasticsearch index unavailable")
		return
	}
	indexed, failed, err := backfillIndex(ctx, srv.Reports, srv.Elastic, report.MaxListLimit)
	if err != nil {
		log.WithError(err).Warn("backfilling search index")
		return
	}
	log.WithFields(logrus.Fields{"indexed": indexed, "failed": failed}).Info("search index ready")
}

// backfillIndex pages through approved reports by id until a short page.
func backfillIndex(ctx context.Context, src approvedPager, dst bulkIndexer, pageSize int) (indexed, failed int, err error) {
	var after string
	for {
		var page []report.Report
		page, err = src.ApprovedPage(ctx, after, pageSize)
		if err != nil {
			return indexed, failed, err
		}
		if len(page) == 0 {
			return indexed, failed, nil
		}
		var n int
		n, err = dst.IndexAll(ctx, page)
		if err != nil {
			return indexed, failed, err
		}
		indexed += len(page) - n
		failed += n
		if len(page) < pageSize {
			return indexed, failed, nil
		}
		after = page[len(page)-1].ID
	}
}
