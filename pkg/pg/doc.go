// Package pg opens PostgreSQL pools and applies goose migrations.
//
// Migrations ship inside the binary as an fs.FS, so the service does not
// depend on a migrations directory being present at runtime:
//
//	pool, err := pg.Connect(ctx, cfg)
//	...
//	err = pg.Migrate(ctx, pool, cfg, credential.Migrations, log)
package pg
