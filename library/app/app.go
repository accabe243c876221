package app

import (
	"context"
	"net"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bookhaven/library-service/library/config"
	"github.com/bookhaven/library-service/library/internal/handler"
	"github.com/bookhaven/library-service/library/internal/repository"
	"github.com/bookhaven/library-service/library/internal/server"
	"github.com/bookhaven/library-service/library/internal/service"
	"github.com/bookhaven/library-service/library/migrations"
	"github.com/bookhaven/library-service/pkg/kafka"
	"github.com/bookhaven/library-service/pkg/logger"
	"github.com/bookhaven/library-service/pkg/postgres"
)

func Run(cfg *config.Config) {
	log := logger.NewLogger(cfg.Log, "library")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	db, err := postgres.NewPostgresDB(ctx, &cfg.Database, migrations.MigrationFiles)
	if err != nil {
		log.Fatal("db init", zap.Error(err))
	}
	repo, err := repository.NewRepository(db, log)
	if err != nil {
		log.Fatal("repo", zap.Error(err))
	}

	var events service.EventPublisher
	producer, err := kafka.NewProducer(cfg.Kafka)
	if err != nil {
		// the service runs without events rather than not at all
		log.Warn("kafka producer unavailable, loan events disabled", zap.Error(err))
	} else {
		pub := kafka.NewPublisher(producer, cfg.Kafka.Topic, log)
		defer pub.Close() //nolint:errcheck
		events = pub
	}

	svc := service.NewService(repo, events, log)
	h := handler.New(svc, log)

	srv := server.NewServer(cfg.Server, h.NewRouter())
	log.Info("http server start ON: ",
		zap.String("addr",
			net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run()
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Debug("Graceful shutdown")
		closeCtx, cancel := context.WithTimeout(context.Background(), time.Second*5)
		defer cancel()
		return srv.Stop(closeCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server run", zap.Error(err))
	}
	db.Close()
	log.Info("Graceful shutdown finished")
}
