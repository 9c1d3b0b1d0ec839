package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// DeviceRecord is one remembered receiver: enough to reconnect without a
// fresh mDNS discovery pass.
type DeviceRecord struct {
	Name      string
	Protocol  int
	Addresses string // comma-separated, as stored
	Port      uint16
	LastSeen  int64 // unix millis
}

// DeviceStore is a SQLite-backed history of recently seen devices, so a
// sender can reconnect to a device manually added or discovered in a prior
// run without waiting on mDNS again.
type DeviceStore struct {
	db *sql.DB
	mu sync.Mutex
}

// OpenDeviceStore opens (or creates) the device history database under
// configDir.
func OpenDeviceStore(configDir string) (*DeviceStore, error) {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, fmt.Errorf("create config dir: %w", err)
	}
	dbPath := filepath.Join(configDir, "devices.db")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open device store: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, err
		}
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS devices (
		name      TEXT PRIMARY KEY,
		protocol  INTEGER NOT NULL DEFAULT 0,
		addresses TEXT NOT NULL DEFAULT '',
		port      INTEGER NOT NULL DEFAULT 0,
		last_seen INTEGER NOT NULL DEFAULT 0
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create devices table: %w", err)
	}

	return &DeviceStore{db: db}, nil
}

// Remember upserts a device's last-known address, bumping last_seen to now.
func (s *DeviceStore) Remember(rec DeviceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec.LastSeen = time.Now().UnixMilli()
	_, err := s.db.Exec(`INSERT INTO devices (name, protocol, addresses, port, last_seen)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			protocol=excluded.protocol,
			addresses=excluded.addresses,
			port=excluded.port,
			last_seen=excluded.last_seen`,
		rec.Name, rec.Protocol, rec.Addresses, rec.Port, rec.LastSeen)
	return err
}

// Forget removes a device from history.
func (s *DeviceStore) Forget(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`DELETE FROM devices WHERE name = ?`, name)
	return err
}

// Recent returns devices seen within the last maxAge, most recent first.
func (s *DeviceStore) Recent(maxAge time.Duration) ([]DeviceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	threshold := time.Now().Add(-maxAge).UnixMilli()
	rows, err := s.db.Query(`SELECT name, protocol, addresses, port, last_seen
		FROM devices WHERE last_seen >= ? ORDER BY last_seen DESC`, threshold)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DeviceRecord
	for rows.Next() {
		var r DeviceRecord
		if err := rows.Scan(&r.Name, &r.Protocol, &r.Addresses, &r.Port, &r.LastSeen); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Prune deletes devices not seen within maxAge.
func (s *DeviceStore) Prune(maxAge time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	threshold := time.Now().Add(-maxAge).UnixMilli()
	_, err := s.db.Exec(`DELETE FROM devices WHERE last_seen < ?`, threshold)
	return err
}

// Close closes the underlying database.
func (s *DeviceStore) Close() error {
	return s.db.Close()
}
