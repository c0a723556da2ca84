package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"

	"github.com/nerrad567/gray-logic-node/internal/infrastructure/database"
)

// Repository persists the settings record.
// This abstraction allows the store to be tested without a database.
type Repository interface {
	// Load returns the stored record.
	// Returns ErrNotFound if nothing has been stored and ErrLayoutMismatch
	// if the stored layout differs from the current one.
	Load(ctx context.Context) (Record, error)

	// Save writes the record, replacing any stored one.
	Save(ctx context.Context, rec Record) error

	// Reset discards the stored layout and values.
	Reset(ctx context.Context) error
}

const settingsTable = "node_settings"

// settingsColumns is the fixed record layout. Changing it makes every
// stored record unreadable, which resets the node to defaults.
var settingsColumns = []string{
	"id",
	"wifi_ssid",
	"wifi_pass",
	"host_name",
	"console_enabled",
	"console_pass",
	"debug",
	"mqtt_server",
	"mqtt_port",
	"mqtt_user",
	"mqtt_pass",
	"mqtt_client",
}

const createSettingsTable = `
	CREATE TABLE IF NOT EXISTS node_settings (
		id              INTEGER PRIMARY KEY CHECK (id = 1),
		wifi_ssid       TEXT    NOT NULL DEFAULT '',
		wifi_pass       TEXT    NOT NULL DEFAULT '',
		host_name       TEXT    NOT NULL DEFAULT '',
		console_enabled INTEGER NOT NULL DEFAULT 1,
		console_pass    TEXT    NOT NULL DEFAULT '',
		debug           INTEGER NOT NULL DEFAULT 0,
		mqtt_server     TEXT    NOT NULL DEFAULT '',
		mqtt_port       INTEGER NOT NULL DEFAULT 1883,
		mqtt_user       TEXT    NOT NULL DEFAULT '',
		mqtt_pass       TEXT    NOT NULL DEFAULT '',
		mqtt_client     TEXT    NOT NULL DEFAULT ''
	)`

// SQLiteRepository implements Repository as a single-row SQLite table.
type SQLiteRepository struct {
	db *database.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *database.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Load retrieves the stored record.
func (r *SQLiteRepository) Load(ctx context.Context) (Record, error) {
	cols, err := r.db.Columns(ctx, settingsTable)
	if err != nil {
		return Record{}, err
	}
	if len(cols) == 0 {
		return Record{}, ErrNotFound
	}
	if !slices.Equal(cols, settingsColumns) {
		return Record{}, fmt.Errorf("%w: have columns %v", ErrLayoutMismatch, cols)
	}

	var rec Record
	err = r.db.QueryRowContext(ctx, `
		SELECT wifi_ssid, wifi_pass, host_name, console_enabled, console_pass, debug,
			mqtt_server, mqtt_port, mqtt_user, mqtt_pass, mqtt_client
		FROM node_settings
		WHERE id = 1`).Scan(
		&rec.Credentials.SSID,
		&rec.Credentials.Passphrase,
		&rec.Credentials.HostName,
		&rec.Console.Enabled,
		&rec.Console.Password,
		&rec.Debug,
		&rec.Broker.Host,
		&rec.Broker.Port,
		&rec.Broker.Username,
		&rec.Broker.Password,
		&rec.Broker.ClientID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("loading settings: %w", err)
	}
	return rec, nil
}

// Save upserts the single settings row.
func (r *SQLiteRepository) Save(ctx context.Context, rec Record) error {
	if _, err := r.db.ExecContext(ctx, createSettingsTable); err != nil {
		return fmt.Errorf("creating settings table: %w", err)
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO node_settings (
			id, wifi_ssid, wifi_pass, host_name, console_enabled, console_pass, debug,
			mqtt_server, mqtt_port, mqtt_user, mqtt_pass, mqtt_client
		) VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			wifi_ssid = excluded.wifi_ssid,
			wifi_pass = excluded.wifi_pass,
			host_name = excluded.host_name,
			console_enabled = excluded.console_enabled,
			console_pass = excluded.console_pass,
			debug = excluded.debug,
			mqtt_server = excluded.mqtt_server,
			mqtt_port = excluded.mqtt_port,
			mqtt_user = excluded.mqtt_user,
			mqtt_pass = excluded.mqtt_pass,
			mqtt_client = excluded.mqtt_client`,
		rec.Credentials.SSID,
		rec.Credentials.Passphrase,
		rec.Credentials.HostName,
		rec.Console.Enabled,
		rec.Console.Password,
		rec.Debug,
		rec.Broker.Host,
		rec.Broker.Port,
		rec.Broker.Username,
		rec.Broker.Password,
		rec.Broker.ClientID,
	)
	if err != nil {
		return fmt.Errorf("saving settings: %w", err)
	}
	return nil
}

// Reset drops the settings table.
func (r *SQLiteRepository) Reset(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, "DROP TABLE IF EXISTS node_settings"); err != nil {
		return fmt.Errorf("resetting settings: %w", err)
	}
	return nil
}
