// Package store persists the registry of uploaded study material. Sessions
// themselves are never persisted; only the upload acknowledgments survive a
// restart.
package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/examforge/examforge/internal/model"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS materials (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		size INTEGER NOT NULL,
		sha256 TEXT NOT NULL UNIQUE,
		uploaded_at DATETIME NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// InsertMaterial stores an upload acknowledgment.
func (s *Store) InsertMaterial(m model.Material) error {
	_, err := s.db.Exec(
		`INSERT INTO materials (id, name, size, sha256, uploaded_at) VALUES (?, ?, ?, ?, ?)`,
		m.ID, m.Name, m.Size, m.SHA256, m.UploadedAt,
	)
	return err
}

// GetMaterial returns a material by ID.
func (s *Store) GetMaterial(id string) (model.Material, error) {
	var m model.Material
	err := s.db.QueryRow(
		`SELECT id, name, size, sha256, uploaded_at FROM materials WHERE id = ?`, id,
	).Scan(&m.ID, &m.Name, &m.Size, &m.SHA256, &m.UploadedAt)
	return m, err
}

// GetMaterialByHash returns the material with the given content hash, or
// nil if no upload with that content exists yet.
func (s *Store) GetMaterialByHash(sha256 string) (*model.Material, error) {
	var m model.Material
	err := s.db.QueryRow(
		`SELECT id, name, size, sha256, uploaded_at FROM materials WHERE sha256 = ?`, sha256,
	).Scan(&m.ID, &m.Name, &m.Size, &m.SHA256, &m.UploadedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ListMaterials returns all registered material, newest first.
func (s *Store) ListMaterials() ([]model.Material, error) {
	rows, err := s.db.Query(
		`SELECT id, name, size, sha256, uploaded_at FROM materials ORDER BY uploaded_at DESC, id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var materials []model.Material
	for rows.Next() {
		var m model.Material
		if err := rows.Scan(&m.ID, &m.Name, &m.Size, &m.SHA256, &m.UploadedAt); err != nil {
			return nil, err
		}
		materials = append(materials, m)
	}
	return materials, rows.Err()
}

// DeleteMaterial removes a material record.
func (s *Store) DeleteMaterial(id string) error {
	_, err := s.db.Exec(`DELETE FROM materials WHERE id = ?`, id)
	return err
}

// MaterialCount returns the number of registered uploads.
func (s *Store) MaterialCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM materials`).Scan(&count)
	return count, err
}

// Touch refreshes the upload timestamp of an existing material, used when
// the same content is uploaded again.
func (s *Store) Touch(id string) error {
	_, err := s.db.Exec(`UPDATE materials SET uploaded_at = ? WHERE id = ?`, time.Now(), id)
	return err
}
