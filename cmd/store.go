package main

import (
	"context"
	"fmt"

	"github.com/shenikar/civic_reporting_system/internal/config"
	"github.com/shenikar/civic_reporting_system/internal/repository"
	"github.com/shenikar/civic_reporting_system/internal/service"
	mongodb "github.com/shenikar/civic_reporting_system/pkg/mongo"
	"github.com/shenikar/civic_reporting_system/pkg/postgres"
	"github.com/sirupsen/logrus"
)

// stores - хранилища выбранного драйвера и функция освобождения соединений
type stores struct {
	issues service.IssueRepository
	users  service.UserRepository
	close  func()
}

// openStores подключается к хранилищу, указанному в STORE_DRIVER
func openStores(ctx context.Context, cfg *config.Config, log *logrus.Logger) (*stores, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		dbpool, err := postgres.NewPostgresDB(ctx, cfg.DatabaseURL, int32(cfg.DBMaxConns))
		if err != nil {
			return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}
		log.Info("Successfully connected to PostgreSQL")
		return &stores{
			issues: repository.NewIssueRepository(dbpool),
			users:  repository.NewUserRepository(dbpool),
			close:  dbpool.Close,
		}, nil

	case config.StoreDriverMongo:
		client, db, err := mongodb.NewMongoDB(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		if err := repository.EnsureIndexes(ctx, db); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, fmt.Errorf("failed to create MongoDB indexes: %w", err)
		}
		log.Info("Successfully connected to MongoDB")
		return &stores{
			issues: repository.NewMongoIssueRepository(db),
			users:  repository.NewMongoUserRepository(db),
			close:  func() { _ = client.Disconnect(context.Background()) },
		}, nil

	case config.StoreDriverMemory:
		log.Warn("Using in-memory store, data is lost on restart")
		mem := repository.NewMemoryStore()
		return &stores{
			issues: mem,
			users:  mem.Users(),
			close:  func() {},
		}, nil
	}
	return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
}
