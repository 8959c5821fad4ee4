package credential

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dmitrymomot/rollcall/pkg/config"
	"github.com/dmitrymomot/rollcall/pkg/logger"
	"github.com/dmitrymomot/rollcall/pkg/mongo"
	"github.com/dmitrymomot/rollcall/pkg/pg"
)

// Storage drivers accepted by Open.
const (
	DriverMemory   = "memory"
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
)

// Storage is an opened repository with its lifecycle hooks.
type Storage struct {
	Repository Repository
	// Name labels the health check; empty for the memory driver.
	Name  string
	Check func(context.Context) error
	Close func()
}

// Open connects the repository selected by driver. Driver settings are read
// from the environment: MONGODB_* for mongo, PG_* for postgres. Postgres
// migrations are applied before the store is returned.
func Open(ctx context.Context, driver string, log *slog.Logger) (*Storage, error) {
	if log == nil {
		log = logger.Discard()
	}

	switch driver {
	case DriverMemory, "":
		return &Storage{Repository: NewMemoryStore(), Close: func() {}}, nil

	case DriverMongo:
		var cfg mongo.Config
		if err := config.Load(&cfg); err != nil {
			return nil, err
		}
		client, db, err := mongo.Connect(ctx, cfg)
		if err != nil {
			return nil, err
		}
		store := NewMongoStore(db)
		if err := store.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(context.WithoutCancel(ctx))
			return nil, err
		}
		return &Storage{
			Repository: store,
			Name:       DriverMongo,
			Check:      mongo.Healthcheck(client),
			Close: func() {
				if err := client.Disconnect(context.Background()); err != nil {
					log.Error("failed to disconnect mongo", logger.Error(err))
				}
			},
		}, nil

	case DriverPostgres:
		var cfg pg.Config
		if err := config.Load(&cfg); err != nil {
			return nil, err
		}
		pool, err := pg.Connect(ctx, cfg)
		if err != nil {
			return nil, err
		}
		if err := pg.Migrate(ctx, pool, cfg, Migrations(), log); err != nil {
			pool.Close()
			return nil, err
		}
		return &Storage{
			Repository: NewPostgresStore(pool),
			Name:       DriverPostgres,
			Check:      pg.Healthcheck(pool),
			Close:      pool.Close,
		}, nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", driver)
}
