// Package store persists the records the console keeps per user: saved
// devices, named profiles, and the per-user schema directories.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a record does not exist for the owner.
var ErrNotFound = errors.New("store: not found")

// DefaultPort is the NETCONF over SSH port.
const DefaultPort = 830

// Device is a saved NETCONF endpoint. A Device with an empty ID is a one-time
// connection that was never stored.
type Device struct {
	ID          string `json:"id"`
	Owner       string `json:"owner"`
	Name        string `json:"name"`
	Hostname    string `json:"hostname"`
	Port        int    `json:"port"`
	Username    string `json:"username"`
	Password    string `json:"password,omitempty"`
	Fingerprint string `json:"fingerprint,omitempty"`
}

// Validate checks the fields needed to open a session.
func (d Device) Validate() error {
	switch {
	case d.Hostname == "":
		return errors.New("device hostname is required")
	case d.Username == "":
		return errors.New("device username is required")
	case d.Port < 0 || d.Port > 65535:
		return fmt.Errorf("invalid device port %d", d.Port)
	}
	return nil
}

// DeviceStore keeps devices in SQLite.
type DeviceStore struct {
	db *sql.DB
}

func NewDeviceStore(db *sql.DB) *DeviceStore {
	return &DeviceStore{db: db}
}

const deviceColumns = `id, owner, name, hostname, port, username, password, fingerprint`

func scanDevice(row interface{ Scan(...any) error }) (Device, error) {
	var d Device
	err := row.Scan(&d.ID, &d.Owner, &d.Name, &d.Hostname, &d.Port, &d.Username, &d.Password, &d.Fingerprint)
	if errors.Is(err, sql.ErrNoRows) {
		return Device{}, ErrNotFound
	}
	return d, err
}

// Create stores d for owner under a fresh id and returns the stored record.
func (s *DeviceStore) Create(ctx context.Context, owner string, d Device) (Device, error) {
	if err := d.Validate(); err != nil {
		return Device{}, err
	}
	d.ID = uuid.NewString()
	d.Owner = owner
	if d.Port == 0 {
		d.Port = DefaultPort
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO devices (`+deviceColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.Owner, d.Name, d.Hostname, d.Port, d.Username, d.Password, d.Fingerprint)
	if err != nil {
		return Device{}, fmt.Errorf("insert device: %w", err)
	}
	return d, nil
}

// Get returns the device id of owner.
func (s *DeviceStore) Get(ctx context.Context, owner, id string) (Device, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+deviceColumns+` FROM devices WHERE owner = ? AND id = ?`, owner, id)
	return scanDevice(row)
}

// List returns the devices of owner ordered by creation.
func (s *DeviceStore) List(ctx context.Context, owner string) ([]Device, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+deviceColumns+` FROM devices WHERE owner = ? ORDER BY created_at, id`, owner)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	defer rows.Close()

	devices := []Device{}
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		devices = append(devices, d)
	}
	return devices, rows.Err()
}

// Delete removes the device id of owner.
func (s *DeviceStore) Delete(ctx context.Context, owner, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM devices WHERE owner = ? AND id = ?`, owner, id)
	if err != nil {
		return fmt.Errorf("delete device: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// FindBySession resolves the stored device behind an open session. Sessions
// to 127.0.0.1 also match devices saved as "localhost".
func (s *DeviceStore) FindBySession(ctx context.Context, owner, host string, port int, username string) (Device, error) {
	d, err := s.findEndpoint(ctx, owner, host, port, username)
	if errors.Is(err, ErrNotFound) && host == "127.0.0.1" {
		return s.findEndpoint(ctx, owner, "localhost", port, username)
	}
	return d, err
}

func (s *DeviceStore) findEndpoint(ctx context.Context, owner, host string, port int, username string) (Device, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+deviceColumns+` FROM devices
		 WHERE owner = ? AND hostname = ? AND port = ? AND username = ?
		 ORDER BY created_at, id LIMIT 1`,
		owner, host, port, username)
	return scanDevice(row)
}

// UpdateFingerprint records a confirmed host key. Stored devices are updated
// by id; one-time devices update every matching stored endpoint of the owner.
func (s *DeviceStore) UpdateFingerprint(ctx context.Context, d Device, fingerprint string) error {
	var (
		res sql.Result
		err error
	)
	if d.ID != "" {
		res, err = s.db.ExecContext(ctx,
			`UPDATE devices SET fingerprint = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
			fingerprint, d.ID)
	} else {
		res, err = s.db.ExecContext(ctx,
			`UPDATE devices SET fingerprint = ?, updated_at = CURRENT_TIMESTAMP
			 WHERE owner = ? AND hostname = ? AND port = ? AND username = ?`,
			fingerprint, d.Owner, d.Hostname, d.Port, d.Username)
	}
	if err != nil {
		return fmt.Errorf("update fingerprint: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 && d.ID != "" {
		return ErrNotFound
	}
	return nil
}
