package metrics

import (
	"database/sql"

	"codeberg.org/mutker/macstatd/internal/errors"
	"codeberg.org/mutker/macstatd/internal/logger"
)

const (
	SchemaVersion = 1

	// SQL statements derived from schema. The sample timestamp is stored in
	// milliseconds so sub-second publication bursts keep distinct keys.
	createTablesSQL = `
	   CREATE TABLE IF NOT EXISTS schema_versions (
	       version     INTEGER PRIMARY KEY,
	       applied_at  TEXT NOT NULL
	   );
	   CREATE TABLE IF NOT EXISTS samples (
	       timestamp         INTEGER PRIMARY KEY,
	       cpu_usage         REAL NOT NULL,
	       cpu_temp          REAL NOT NULL,
	       memory_used_gb    REAL NOT NULL,
	       memory_total_gb   REAL NOT NULL,
	       disk_free_gb      REAL NOT NULL,
	       disk_total_gb     REAL NOT NULL,
	       upload_bps        REAL NOT NULL,
	       download_bps      REAL NOT NULL,
	       power_source      TEXT NOT NULL,
	       ups_charge        REAL NOT NULL,
	       power_cpu_watts   REAL NOT NULL,
	       power_gpu_watts   REAL NOT NULL,
	       power_total_watts REAL NOT NULL,
	       power_estimated   INTEGER NOT NULL CHECK (power_estimated IN (0, 1))
	   );`

	insertSampleSQL = `
    INSERT OR REPLACE INTO samples (
        timestamp,
        cpu_usage, cpu_temp,
        memory_used_gb, memory_total_gb,
        disk_free_gb, disk_total_gb,
        upload_bps, download_bps,
        power_source, ups_charge,
        power_cpu_watts, power_gpu_watts, power_total_watts, power_estimated
    ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
)

// InitSchema creates a new database schema with the current version
func InitSchema(db *sql.DB, log logger.Logger) error {
	errFactory := errors.New()

	log.Debug().Msg("creating database schema")

	tx, err := db.Begin()
	if err != nil {
		return errFactory.Wrap(ErrSchemaInitFailed, err)
	}

	// Track transaction state
	committed := false
	defer func() {
		if !committed {
			if err := tx.Rollback(); err != nil {
				// Only log if it's not the "already committed" error
				if !errors.Is(err, sql.ErrTxDone) {
					log.Debug().Err(err).Msg("failed to rollback transaction")
				}
			}
		}
	}()

	if _, err := tx.Exec(createTablesSQL); err != nil {
		return errFactory.WithData(ErrSchemaInitFailed, struct {
			Error string
			SQL   string
		}{
			Error: err.Error(),
			SQL:   createTablesSQL,
		})
	}

	if _, err := tx.Exec(`
        INSERT INTO schema_versions (version, applied_at)
        VALUES (?, datetime('now'))
    `, SchemaVersion); err != nil {
		return errFactory.WithData(ErrSchemaInitFailed, struct {
			Error string
			Phase string
		}{
			Error: err.Error(),
			Phase: "record_version",
		})
	}

	if err := tx.Commit(); err != nil {
		return errFactory.Wrap(ErrSchemaInitFailed, err)
	}
	committed = true

	log.Info().
		Int("version", SchemaVersion).
		Msg("schema initialized")

	return nil
}

// GetSchemaVersion returns the current schema version
func GetSchemaVersion(db *sql.DB) (int, error) {
	errFactory := errors.New()

	exists, err := TableExists(db, "schema_versions")
	if err != nil {
		return 0, errFactory.Wrap(ErrSchemaValidationFailed, err)
	}
	if !exists {
		return 0, nil
	}

	var version int
	err = db.QueryRow(`
        SELECT version
        FROM schema_versions
        ORDER BY version DESC
        LIMIT 1
    `).Scan(&version)

	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, errFactory.WithData(ErrSchemaValidationFailed, struct {
			Phase string
			Error string
		}{
			Phase: "get_version",
			Error: err.Error(),
		})
	}

	return version, nil
}

// TableExists checks if a table exists
func TableExists(db *sql.DB, tableName string) (bool, error) {
	errFactory := errors.New()
	var exists bool
	err := db.QueryRow(`
        SELECT EXISTS (
            SELECT 1 FROM sqlite_master
            WHERE type='table' AND name=?
        )
    `, tableName).Scan(&exists)
	if err != nil {
		return false, errFactory.WithData(ErrSchemaValidationFailed, struct {
			Phase string
			Table string
			Error string
		}{
			Phase: "check_table_exists",
			Table: tableName,
			Error: err.Error(),
		})
	}

	return exists, nil
}

// SQL getters for consistent schema usage
func GetCreateTablesSQL() string {
	return createTablesSQL
}

// GetInsertSampleSQL returns the SQL to insert one sample row
func GetInsertSampleSQL() string {
	return insertSampleSQL
}
