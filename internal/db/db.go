package db

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

var (
	// ErrNotFound indicates that a requested resource was not found
	ErrNotFound = errors.New("resource not found")
)

// MinPollInterval is the floor for the watcher poll interval in seconds.
// Smaller values are clamped up at the write boundary.
const MinPollInterval = 5

// Database wraps the SQLite store behind a single mutex. The watcher
// goroutine and the dashboard handlers share this instance, so every
// read-modify-write goes through the lock.
type Database struct {
	conn *sql.DB
	mu   sync.Mutex
}

// NewDatabase opens (or creates) the SQLite database and initializes tables
func NewDatabase(dbPath string) (*Database, error) {
	conn, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db := &Database{conn: conn}

	if err := db.initTables(); err != nil {
		return nil, fmt.Errorf("failed to initialize tables: %w", err)
	}

	return db, nil
}

// Close closes the database connection
func (db *Database) Close() error {
	return db.conn.Close()
}

// initTables creates all required tables and seeds the settings row
func (db *Database) initTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS settings (
			id INTEGER PRIMARY KEY,
			poll_interval INTEGER NOT NULL DEFAULT 30,
			threshold REAL,
			chat_id TEXT NOT NULL DEFAULT '',
			default_bot_id INTEGER
		);`,

		`CREATE TABLE IF NOT EXISTS bots (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			token TEXT NOT NULL
		);`,

		`CREATE TABLE IF NOT EXISTS sites (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			url TEXT NOT NULL,
			balance_field TEXT NOT NULL DEFAULT '',
			last_balance REAL,
			last_change DATETIME
		);`,

		`CREATE TABLE IF NOT EXISTS change_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			site_id INTEGER NOT NULL,
			kind TEXT NOT NULL,
			delta REAL NOT NULL,
			balance REAL NOT NULL,
			timestamp DATETIME NOT NULL,
			FOREIGN KEY(site_id) REFERENCES sites(id)
		);`,

		`CREATE INDEX IF NOT EXISTS idx_change_log_site_id ON change_log(site_id);`,
		`CREATE INDEX IF NOT EXISTS idx_change_log_timestamp ON change_log(timestamp);`,
	}

	for _, query := range queries {
		if _, err := db.conn.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}

	// Seed the single settings row on first run
	var id int64
	err := db.conn.QueryRow(`SELECT id FROM settings WHERE id = 1`).Scan(&id)
	if err == sql.ErrNoRows {
		defaultThreshold := 100000.0
		_, err = db.conn.Exec(
			`INSERT INTO settings (id, poll_interval, threshold, chat_id) VALUES (1, 30, ?, '')`,
			defaultThreshold,
		)
	}
	if err != nil {
		return fmt.Errorf("failed to seed settings: %w", err)
	}

	return nil
}

// GetSettings retrieves the runtime configuration
func (db *Database) GetSettings() (*Settings, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	query := `
		SELECT poll_interval, threshold, chat_id, default_bot_id
		FROM settings
		WHERE id = 1
	`

	var s Settings
	var threshold sql.NullFloat64
	var defaultBotID sql.NullInt64
	err := db.conn.QueryRow(query).Scan(&s.PollInterval, &threshold, &s.ChatID, &defaultBotID)
	if err != nil {
		return nil, err
	}

	if threshold.Valid {
		s.Threshold = &threshold.Float64
	}
	if defaultBotID.Valid {
		s.DefaultBotID = &defaultBotID.Int64
	}

	if s.PollInterval < MinPollInterval {
		s.PollInterval = MinPollInterval
	}

	return &s, nil
}

// UpdateSettings writes the runtime configuration. The poll interval is
// clamped to MinPollInterval so an invalid value never reaches the watcher.
func (db *Database) UpdateSettings(s *Settings) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if s.PollInterval < MinPollInterval {
		s.PollInterval = MinPollInterval
	}

	query := `
		UPDATE settings
		SET poll_interval = ?, threshold = ?, chat_id = ?, default_bot_id = ?
		WHERE id = 1
	`

	var threshold sql.NullFloat64
	if s.Threshold != nil {
		threshold = sql.NullFloat64{Float64: *s.Threshold, Valid: true}
	}
	var defaultBotID sql.NullInt64
	if s.DefaultBotID != nil {
		defaultBotID = sql.NullInt64{Int64: *s.DefaultBotID, Valid: true}
	}

	_, err := db.conn.Exec(query, s.PollInterval, threshold, s.ChatID, defaultBotID)
	return err
}

// GetBots retrieves all registered notification bots
func (db *Database) GetBots() ([]Bot, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.getBotsLocked()
}

func (db *Database) getBotsLocked() ([]Bot, error) {
	rows, err := db.conn.Query(`SELECT id, name, token FROM bots ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bots []Bot
	for rows.Next() {
		var b Bot
		if err := rows.Scan(&b.ID, &b.Name, &b.Token); err != nil {
			return nil, err
		}
		bots = append(bots, b)
	}

	return bots, rows.Err()
}

// GetBotByID retrieves a specific bot
func (db *Database) GetBotByID(id int64) (*Bot, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var b Bot
	err := db.conn.QueryRow(`SELECT id, name, token FROM bots WHERE id = ?`, id).
		Scan(&b.ID, &b.Name, &b.Token)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &b, nil
}

// InsertBot registers a new notification bot
func (db *Database) InsertBot(name, token string) (*Bot, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	result, err := db.conn.Exec(`INSERT INTO bots (name, token) VALUES (?, ?)`, name, token)
	if err != nil {
		return nil, err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}

	return &Bot{ID: id, Name: name, Token: token}, nil
}

// UpsertBotByName inserts a bot or, if one with the same name exists,
// replaces its token. Used by backup merge imports.
func (db *Database) UpsertBotByName(name, token string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	result, err := db.conn.Exec(`UPDATE bots SET token = ? WHERE name = ?`, token, name)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		_, err = db.conn.Exec(`INSERT INTO bots (name, token) VALUES (?, ?)`, name, token)
	}
	return err
}

// DeleteBot removes a notification bot
func (db *Database) DeleteBot(id int64) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	result, err := db.conn.Exec(`DELETE FROM bots WHERE id = ?`, id)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

// GetSites retrieves all tracked endpoints
func (db *Database) GetSites() ([]Site, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.getSitesLocked()
}

func (db *Database) getSitesLocked() ([]Site, error) {
	query := `
		SELECT id, name, url, balance_field, last_balance, last_change
		FROM sites
		ORDER BY id ASC
	`

	rows, err := db.conn.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sites []Site
	for rows.Next() {
		s, err := scanSite(rows)
		if err != nil {
			return nil, err
		}
		sites = append(sites, *s)
	}

	return sites, rows.Err()
}

func scanSite(rows *sql.Rows) (*Site, error) {
	var s Site
	var lastBalance sql.NullFloat64
	var lastChange sql.NullTime

	err := rows.Scan(&s.ID, &s.Name, &s.URL, &s.BalanceField, &lastBalance, &lastChange)
	if err != nil {
		return nil, err
	}

	if lastBalance.Valid && lastChange.Valid {
		s.LastBalance = &lastBalance.Float64
		s.LastChange = &lastChange.Time
	}

	return &s, nil
}

// GetSiteByID retrieves a specific tracked endpoint
func (db *Database) GetSiteByID(id int64) (*Site, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	query := `
		SELECT id, name, url, balance_field, last_balance, last_change
		FROM sites
		WHERE id = ?
	`

	var s Site
	var lastBalance sql.NullFloat64
	var lastChange sql.NullTime
	err := db.conn.QueryRow(query, id).
		Scan(&s.ID, &s.Name, &s.URL, &s.BalanceField, &lastBalance, &lastChange)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if lastBalance.Valid && lastChange.Valid {
		s.LastBalance = &lastBalance.Float64
		s.LastChange = &lastChange.Time
	}

	return &s, nil
}

// InsertSite adds a new tracked endpoint
func (db *Database) InsertSite(name, url, balanceField string) (*Site, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	result, err := db.conn.Exec(
		`INSERT INTO sites (name, url, balance_field) VALUES (?, ?, ?)`,
		name, url, balanceField,
	)
	if err != nil {
		return nil, err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}

	return &Site{ID: id, Name: name, URL: url, BalanceField: balanceField}, nil
}

// RestoreSite inserts a tracked endpoint with its cached balance state,
// or updates the existing endpoint of the same name. Used by backup imports.
func (db *Database) RestoreSite(s *Site) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	var lastBalance sql.NullFloat64
	var lastChange sql.NullTime
	if s.LastBalance != nil && s.LastChange != nil {
		lastBalance = sql.NullFloat64{Float64: *s.LastBalance, Valid: true}
		lastChange = sql.NullTime{Time: *s.LastChange, Valid: true}
	}

	result, err := db.conn.Exec(
		`UPDATE sites SET url = ?, balance_field = ?, last_balance = ?, last_change = ? WHERE name = ?`,
		s.URL, s.BalanceField, lastBalance, lastChange, s.Name,
	)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		_, err = db.conn.Exec(
			`INSERT INTO sites (name, url, balance_field, last_balance, last_change) VALUES (?, ?, ?, ?, ?)`,
			s.Name, s.URL, s.BalanceField, lastBalance, lastChange,
		)
	}
	return err
}

// DeleteSite removes a tracked endpoint along with its change history
func (db *Database) DeleteSite(id int64) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	result, err := db.conn.Exec(`DELETE FROM sites WHERE id = ?`, id)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}

	_, err = db.conn.Exec(`DELETE FROM change_log WHERE site_id = ?`, id)
	return err
}

// UpdateSiteBalance persists the result of a successful poll. The balance
// and its timestamp are always written together.
func (db *Database) UpdateSiteBalance(id int64, balance float64, timestamp time.Time) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	result, err := db.conn.Exec(
		`UPDATE sites SET last_balance = ?, last_change = ? WHERE id = ?`,
		balance, timestamp, id,
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

// InsertChangeEntry appends a deposit or payment to the flat change log
func (db *Database) InsertChangeEntry(entry *ChangeEntry) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	_, err := db.conn.Exec(
		`INSERT INTO change_log (site_id, kind, delta, balance, timestamp) VALUES (?, ?, ?, ?, ?)`,
		entry.SiteID, entry.Kind, entry.Delta, entry.Balance, entry.Timestamp,
	)
	return err
}

// GetChangeLog retrieves the change history for a tracked endpoint,
// most recent first
func (db *Database) GetChangeLog(siteID int64, limit int) ([]ChangeEntry, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, site_id, kind, delta, balance, timestamp
		FROM change_log
		WHERE site_id = ?
		ORDER BY timestamp DESC
		LIMIT ?
	`

	rows, err := db.conn.Query(query, siteID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []ChangeEntry
	for rows.Next() {
		var e ChangeEntry
		err := rows.Scan(&e.ID, &e.SiteID, &e.Kind, &e.Delta, &e.Balance, &e.Timestamp)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// Wipe removes every bot, site and change log entry. Settings keep their
// row and are overwritten by the subsequent restore.
func (db *Database) Wipe() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, query := range []string{
		`DELETE FROM change_log`,
		`DELETE FROM sites`,
		`DELETE FROM bots`,
	} {
		if _, err := db.conn.Exec(query); err != nil {
			return fmt.Errorf("failed to wipe store: %w", err)
		}
	}
	return nil
}
