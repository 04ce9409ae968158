package migration

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

type migrationStep struct {
	Name string
	SQL  string
}

// The partial unique index on content_hash is what makes concurrent
// duplicate ingests safe: the losing insert fails with a unique violation
// and the pipeline re-reads the winner's row. Soft-deleted rows release
// the hash so the same bytes can be re-uploaded later.
var steps = []migrationStep{
	{
		Name: "create_table_photos",
		SQL: `CREATE TABLE IF NOT EXISTS photos (
  id                UUID        PRIMARY KEY,
  original_filename TEXT        NOT NULL,
  storage_key       TEXT        NOT NULL UNIQUE,
  thumbnail_key     TEXT        NOT NULL DEFAULT '',
  size_bytes        BIGINT      NOT NULL CHECK (size_bytes > 0),
  content_type      TEXT        NOT NULL,
  extension         TEXT        NOT NULL,
  width             INT         NOT NULL DEFAULT 0,
  height            INT         NOT NULL DEFAULT 0,
  content_hash      CHAR(64)    NOT NULL,
  owner_id          TEXT        NOT NULL,
  description       TEXT        NOT NULL DEFAULT '',
  access_count      BIGINT      NOT NULL DEFAULT 0,
  download_count    BIGINT      NOT NULL DEFAULT 0,
  visibility        TEXT        NOT NULL DEFAULT 'public',
  deleted           BOOLEAN     NOT NULL DEFAULT FALSE,
  created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
  last_accessed_at  TIMESTAMPTZ
);`,
	},
	{
		Name: "create_unique_index_photos_content_hash_active",
		SQL: `CREATE UNIQUE INDEX IF NOT EXISTS uidx_photos_content_hash_active
  ON photos (content_hash) WHERE NOT deleted;`,
	},
	{
		Name: "create_index_photos_owner_id",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_photos_owner_id ON photos (owner_id);`,
	},
	{
		Name: "create_index_photos_created_at",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_photos_created_at ON photos (created_at);`,
	},
	{
		Name: "create_index_photos_original_filename",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_photos_original_filename ON photos (original_filename);`,
	},
}

// EnsureMigrated checks if the 'photos' table exists and runs migrations if it doesn't.
func EnsureMigrated(ctx context.Context, db *sql.DB, log zerolog.Logger) error {
	start := time.Now()

	var exists bool
	query := "SELECT to_regclass('public.photos') IS NOT NULL"
	if err := db.QueryRowContext(ctx, query).Scan(&exists); err != nil {
		log.Error().Err(err).Str("component", "database").Msg("db_migration_check_failed")
		return fmt.Errorf("failed to check sentinel table: %w", err)
	}

	if exists {
		log.Info().Str("component", "database").
			Int64("duration_ms", time.Since(start).Milliseconds()).
			Msg("db_migration_skip")
		return nil
	}

	for _, step := range steps {
		stepStart := time.Now()
		if _, err := db.ExecContext(ctx, step.SQL); err != nil {
			log.Error().Err(err).Str("component", "database").
				Str("migration_step", step.Name).
				Msg("db_migration_failed")
			return fmt.Errorf("migration step %s failed: %w", step.Name, err)
		}
		log.Info().Str("component", "database").
			Str("migration_step", step.Name).
			Int64("step_duration_ms", time.Since(stepStart).Milliseconds()).
			Msg("db_migration_step")
	}

	log.Info().Str("component", "database").
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Msg("db_migration_success")

	return nil
}
