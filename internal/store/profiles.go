package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// Profile is a named set of devices a user works with.
type Profile struct {
	Name           string   `json:"name"`
	ConnectOnLogin bool     `json:"connectOnLogin"`
	Devices        []string `json:"devices"`
}

// ProfileStore keeps profiles in SQLite, keyed by owner and name.
type ProfileStore struct {
	db *sql.DB
}

func NewProfileStore(db *sql.DB) *ProfileStore {
	return &ProfileStore{db: db}
}

// Put creates or replaces the profile name of owner.
func (s *ProfileStore) Put(ctx context.Context, owner, name string, p Profile) error {
	if name == "" {
		return errors.New("profile name is required")
	}
	if p.Devices == nil {
		p.Devices = []string{}
	}
	devices, err := json.Marshal(p.Devices)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO profiles (owner, name, connect_on_login, devices) VALUES (?, ?, ?, ?)
		ON CONFLICT(owner, name) DO UPDATE SET
			connect_on_login = excluded.connect_on_login,
			devices = excluded.devices,
			updated_at = CURRENT_TIMESTAMP`,
		owner, name, p.ConnectOnLogin, string(devices))
	if err != nil {
		return fmt.Errorf("store profile: %w", err)
	}
	return nil
}

func scanProfile(row interface{ Scan(...any) error }) (Profile, error) {
	var (
		p       Profile
		devices string
	)
	if err := row.Scan(&p.Name, &p.ConnectOnLogin, &devices); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Profile{}, ErrNotFound
		}
		return Profile{}, err
	}
	if err := json.Unmarshal([]byte(devices), &p.Devices); err != nil {
		return Profile{}, fmt.Errorf("decode profile %s devices: %w", p.Name, err)
	}
	return p, nil
}

// Get returns the profile name of owner.
func (s *ProfileStore) Get(ctx context.Context, owner, name string) (Profile, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT name, connect_on_login, devices FROM profiles WHERE owner = ? AND name = ?`, owner, name)
	return scanProfile(row)
}

// List returns the profiles of owner sorted by name.
func (s *ProfileStore) List(ctx context.Context, owner string) ([]Profile, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, connect_on_login, devices FROM profiles WHERE owner = ? ORDER BY name`, owner)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	profiles := []Profile{}
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

// Delete removes the profile name of owner.
func (s *ProfileStore) Delete(ctx context.Context, owner, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM profiles WHERE owner = ? AND name = ?`, owner, name)
	if err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
