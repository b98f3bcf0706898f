// Package catalog maintains a small SQLite index of combine runs, so
// repeated batch passes over a drop archive stay auditable without
// re-parsing raw files.
package catalog

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/skydive-data/xbmini/internal/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS combine_runs (
	id          TEXT NOT NULL,
	recorded_at TEXT NOT NULL,
	logger_dir  TEXT NOT NULL,
	serial      TEXT NOT NULL,
	logger_type TEXT NOT NULL,
	firmware    INTEGER NOT NULL,
	sessions    INTEGER NOT NULL,
	records     INTEGER NOT NULL,
	faults      INTEGER NOT NULL,
	output_path TEXT NOT NULL,
	PRIMARY KEY (id, logger_dir)
);`

// Catalog wraps the combine-run index database.
type Catalog struct {
	db    *sql.DB
	runID string
}

// Open opens (creating if needed) the catalog database at path and starts
// a new combine run.
func Open(path string) (*Catalog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening catalog database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing catalog schema: %w", err)
	}

	return &Catalog{db: db, runID: uuid.NewString()}, nil
}

// RunID returns the identifier of the current combine run.
func (c *Catalog) RunID() string {
	return c.runID
}

// RecordLog indexes one produced XBMLog under the current run.
func (c *Catalog) RecordLog(loggerDir string, xbm *types.XBMLog, outputPath string) error {
	_, err := c.db.Exec(
		`INSERT INTO combine_runs
		 (id, recorded_at, logger_dir, serial, logger_type, firmware, sessions, records, faults, output_path)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.runID,
		time.Now().UTC().Format(time.RFC3339),
		loggerDir,
		xbm.Serial,
		xbm.LoggerType,
		xbm.FirmwareVersion,
		len(xbm.Sessions),
		xbm.RecordCount(),
		len(xbm.Faults),
		outputPath,
	)
	if err != nil {
		return fmt.Errorf("recording combine run for %s: %w", loggerDir, err)
	}
	return nil
}

// Runs returns how many combine-run rows the catalog holds.
func (c *Catalog) Runs() (int, error) {
	var n int
	if err := c.db.QueryRow(`SELECT COUNT(*) FROM combine_runs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting combine runs: %w", err)
	}
	return n, nil
}

// Close closes the underlying database.
func (c *Catalog) Close() error {
	return c.db.Close()
}
