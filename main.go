package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"prism-kanban/catalog"
	"prism-kanban/config"
	"prism-kanban/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}
	log.WithField("backend", cfg.Storage.Backend).Info("kanban service starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}
	defer closeStore()

	var rc *redis.Client
	if cfg.Redis.ConnectionString != "" {
		opts, err := cfg.Redis.RedisOptions()
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		rc = redis.NewClient(opts)
		defer rc.Close()
		if cfg.Redis.CacheTTL > 0 {
			store = storage.NewCache(store, rc, cfg.Redis.CacheTTL)
		}
	}

	var notifier catalog.Notifier
	switch {
	case cfg.Events.Queue != "":
		qn, err := storage.NewQueueNotifier(cfg.Storage.ConnectionString, cfg.Events.Queue)
		if err != nil {
			log.Fatalf("events queue: %v", err)
		}
		notifier = qn
	case cfg.Events.Channel != "" && rc != nil:
		notifier = storage.NewChannelNotifier(rc, cfg.Events.Channel)
	}

	cat := catalog.New(store, notifier)
	if err := cat.LoadData(ctx); err != nil {
		log.WithError(err).Warn("some boards could not be loaded")
	}

	log.Info("kanban service ready")
	<-ctx.Done()
	log.Info("kanban service stopping")
}

func openStore(ctx context.Context, cfg *config.Config) (catalog.Store, func(), error) {
	if cfg.Storage.Backend == config.BackendSQLite {
		s, err := storage.NewSQLite(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	}

	t := cfg.Storage.Tables
	names := storage.TableNames{Boards: t.Boards, Columns: t.Columns, Tasks: t.Tasks, Members: t.Members}
	var queues []string
	if cfg.Events.Queue != "" {
		queues = append(queues, cfg.Events.Queue)
	}
	if err := storage.Provision(ctx, cfg.Storage.ConnectionString, names.All(), queues); err != nil {
		return nil, nil, err
	}
	s, err := storage.NewTables(cfg.Storage.ConnectionString, names)
	if err != nil {
		return nil, nil, err
	}
	return s, func() {}, nil
}
