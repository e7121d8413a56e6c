package duckdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/inodb/featureindex/internal/feature"
)

// ErrFileNotFound is returned for an unregistered file.
var ErrFileNotFound = errors.New("file not registered")

// FileFingerprint holds stat-based identity for a file.
type FileFingerprint struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// StatFile creates a FileFingerprint from an on-disk file.
func StatFile(path string) (FileFingerprint, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileFingerprint{}, err
	}
	return FileFingerprint{
		Path:    path,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

// File is a registered feature file.
type File struct {
	ID          feature.FileID      `json:"id"`
	Path        string              `json:"path"`
	Format      string              `json:"format"`
	ReferenceID feature.ReferenceID `json:"reference_id"`
	Size        int64               `json:"size"`
	ModTime     time.Time           `json:"mod_time"`
	IndexedAt   time.Time           `json:"indexed_at"`
}

// Fingerprint returns the stat identity recorded at registration.
func (f *File) Fingerprint() FileFingerprint {
	return FileFingerprint{Path: f.Path, Size: f.Size, ModTime: f.ModTime}
}

// Unchanged reports whether fp matches the recorded fingerprint.
func (f *File) Unchanged(fp FileFingerprint) bool {
	return f.Size == fp.Size && f.ModTime.Equal(fp.ModTime.Truncate(time.Microsecond))
}

// RegisterFile inserts or replaces a file record. A zero ID reuses the ID
// already registered for the path, or allocates the next free one. The
// stored record is returned.
func (s *Store) RegisterFile(ctx context.Context, f File) (*File, error) {
	if f.ID == 0 {
		existing, err := s.FileByPath(ctx, f.Path)
		switch {
		case err == nil:
			f.ID = existing.ID
		case errors.Is(err, ErrFileNotFound):
			var next int64
			if err := s.db.QueryRowContext(ctx,
				"SELECT coalesce(max(file_id), 0) + 1 FROM files").Scan(&next); err != nil {
				return nil, fmt.Errorf("allocate file id: %w", err)
			}
			f.ID = feature.FileID(next)
		default:
			return nil, err
		}
	}
	if f.IndexedAt.IsZero() {
		f.IndexedAt = time.Now()
	}
	// Microsecond precision is what TIMESTAMP keeps.
	f.ModTime = f.ModTime.UTC().Truncate(time.Microsecond)
	f.IndexedAt = f.IndexedAt.UTC().Truncate(time.Microsecond)

	_, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO files
		(file_id, path, format, reference_id, size, mod_time, indexed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		int64(f.ID), f.Path, f.Format, int64(f.ReferenceID), f.Size, f.ModTime, f.IndexedAt)
	if err != nil {
		return nil, fmt.Errorf("register file %s: %w", f.Path, err)
	}
	return &f, nil
}

const fileColumns = "file_id, path, format, reference_id, size, mod_time, indexed_at"

// GetFile returns the record of id.
func (s *Store) GetFile(ctx context.Context, id feature.FileID) (*File, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+fileColumns+" FROM files WHERE file_id = ?", int64(id))
	f, err := scanFile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("file %d: %w", id, ErrFileNotFound)
	}
	return f, err
}

// FileByPath returns the record registered for path.
func (s *Store) FileByPath(ctx context.Context, path string) (*File, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+fileColumns+" FROM files WHERE path = ?", path)
	f, err := scanFile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("file %s: %w", path, ErrFileNotFound)
	}
	return f, err
}

// Files returns every registered file in ascending ID order.
func (s *Store) Files(ctx context.Context) ([]*File, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+fileColumns+" FROM files ORDER BY file_id")
	if err != nil {
		return nil, fmt.Errorf("query files: %w", err)
	}
	defer rows.Close()

	var files []*File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate files: %w", err)
	}
	return files, nil
}

// RemoveFile deletes a file with its entries and project memberships. It
// reports whether the file was registered.
func (s *Store) RemoveFile(ctx context.Context, id feature.FileID) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		"DELETE FROM feature_entries WHERE file_id = ?",
		"DELETE FROM project_files WHERE file_id = ?",
	} {
		if _, err := tx.ExecContext(ctx, stmt, int64(id)); err != nil {
			return false, fmt.Errorf("remove file %d: %w", id, err)
		}
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM files WHERE file_id = ?", int64(id))
	if err != nil {
		return false, fmt.Errorf("remove file %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("remove file %d: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit removal: %w", err)
	}
	return n > 0, nil
}

// AddToProject links files to a project. Existing links are kept.
func (s *Store) AddToProject(ctx context.Context, project feature.ProjectID, ids ...feature.FileID) error {
	for _, id := range ids {
		if _, err := s.GetFile(ctx, id); err != nil {
			return err
		}
		if _, err := s.db.ExecContext(ctx,
			"INSERT OR IGNORE INTO project_files (project_id, file_id) VALUES (?, ?)",
			int64(project), int64(id)); err != nil {
			return fmt.Errorf("add file %d to project %d: %w", id, project, err)
		}
	}
	return nil
}

// RemoveFromProject unlinks files from a project.
func (s *Store) RemoveFromProject(ctx context.Context, project feature.ProjectID, ids ...feature.FileID) error {
	for _, id := range ids {
		if _, err := s.db.ExecContext(ctx,
			"DELETE FROM project_files WHERE project_id = ? AND file_id = ?",
			int64(project), int64(id)); err != nil {
			return fmt.Errorf("remove file %d from project %d: %w", id, project, err)
		}
	}
	return nil
}

// ProjectFiles returns the files linked to a project, ascending.
func (s *Store) ProjectFiles(ctx context.Context, project feature.ProjectID) ([]feature.FileID, error) {
	return s.fileIDs(ctx,
		"SELECT file_id FROM project_files WHERE project_id = ? ORDER BY file_id", int64(project))
}

// ReferenceFiles returns the files aligned to a reference, ascending.
func (s *Store) ReferenceFiles(ctx context.Context, ref feature.ReferenceID) ([]feature.FileID, error) {
	return s.fileIDs(ctx,
		"SELECT file_id FROM files WHERE reference_id = ? ORDER BY file_id", int64(ref))
}

func (s *Store) fileIDs(ctx context.Context, q string, arg int64) ([]feature.FileID, error) {
	rows, err := s.db.QueryContext(ctx, q, arg)
	if err != nil {
		return nil, fmt.Errorf("query file ids: %w", err)
	}
	defer rows.Close()

	var ids []feature.FileID
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan file id: %w", err)
		}
		ids = append(ids, feature.FileID(id))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate file ids: %w", err)
	}
	return ids, nil
}

func scanFile(row interface{ Scan(dest ...any) error }) (*File, error) {
	var (
		f           File
		id, ref     int64
		format      sql.NullString
		modTime     sql.NullTime
		indexedTime sql.NullTime
	)
	if err := row.Scan(&id, &f.Path, &format, &ref, &f.Size, &modTime, &indexedTime); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan file: %w", err)
	}
	f.ID = feature.FileID(id)
	f.ReferenceID = feature.ReferenceID(ref)
	f.Format = format.String
	f.ModTime = modTime.Time
	f.IndexedAt = indexedTime.Time
	return &f, nil
}
