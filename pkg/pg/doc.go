// Package pg connects to PostgreSQL through pgx/v5 and applies goose migrations.
//
// Config is populated from PG_* environment variables. Connect retries until the
// database answers a ping; Migrate runs migrations from any fs.FS, so stores can
// ship their schema with //go:embed:
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	if err := pg.Migrate(ctx, pool, cfg, subscription.Migrations, "migrations", log); err != nil {
//		return err
//	}
//
// IsNotFoundError and IsDuplicateKeyError classify pgx errors.
package pg
