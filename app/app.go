package app

import (
	"context"
	"net"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/libcirc/circulation-service/config"
	"github.com/libcirc/circulation-service/internal/handler"
	"github.com/libcirc/circulation-service/internal/metadata"
	"github.com/libcirc/circulation-service/internal/notify"
	"github.com/libcirc/circulation-service/internal/repository"
	"github.com/libcirc/circulation-service/internal/scheduler"
	"github.com/libcirc/circulation-service/internal/server"
	"github.com/libcirc/circulation-service/internal/service"
	"github.com/libcirc/circulation-service/migrations"
	"github.com/libcirc/circulation-service/pkg/kafka"
	"github.com/libcirc/circulation-service/pkg/logger"
	"github.com/libcirc/circulation-service/pkg/postgres"
)

func Run(cfg *config.Config) {
	log := logger.NewLogger(cfg.Log, "circulation")

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

	var notifier service.Notifier = notify.NewLogNotifier(log)
	if cfg.Kafka.Enabled {
		producer, err := kafka.NewProducer(cfg.Kafka)
		if err != nil {
			log.Fatal("kafka.NewProducer", zap.Error(err))
		}
		notifier = notify.NewKafkaNotifier(producer)
	}

	svc := service.NewService(repo, notifier, cfg.Circulation, log).
		WithMetadata(metadata.NewClient())

	g, gCtx := errgroup.WithContext(ctx)

	if cfg.Kafka.Enabled && cfg.SMTP.Enabled {
		consumer, err := kafka.NewConsumer(cfg.Kafka, kafka.NotifierConsumerGroup)
		if err != nil {
			log.Fatal("kafka.NewConsumer", zap.Error(err))
		}
		mailConsumer := notify.NewConsumer(notify.NewMailer(cfg.SMTP, log), log)
		g.Go(func() error {
			kafka.Consume(gCtx, consumer, mailConsumer, log, kafka.NotificationsTopic)
			return nil
		})
	}

	if cfg.Scheduler.Enabled {
		sched := scheduler.New(svc, cfg.Scheduler, log)
		g.Go(func() error {
			return sched.Run(gCtx)
		})
	}

	h := handler.New(svc, log)
	srv := server.NewServer(cfg.Server, h.NewRouter())
	log.Info("http server start ON: ",
		zap.String("addr",
			net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)))
	g.Go(func() error {
		return srv.Run()
	})
	g.Go(func() error {
		<-gCtx.Done()

		log.Debug("Graceful shutdown")
		closeCtx, cancel := context.WithTimeout(context.Background(), time.Second*5)
		defer cancel()
		return srv.Stop(closeCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("run", zap.Error(err))
	}
	db.Close()
	log.Info("Graceful shutdown finished")
}
