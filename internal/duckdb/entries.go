package duckdb

import (
	"context"
	"database/sql/driver"
	"fmt"

	"github.com/goccy/go-json"
	goduckdb "github.com/marcboeker/go-duckdb"

	"github.com/inodb/featureindex/internal/feature"
)

// SaveEntries replaces the persisted entries of fileID. The delete and the
// bulk insert run in one transaction, so a failed save leaves the previous
// entries in place.
func (s *Store) SaveEntries(ctx context.Context, fileID feature.FileID, entries []*feature.Entry) (err error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("get connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "BEGIN TRANSACTION"); err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			conn.ExecContext(context.Background(), "ROLLBACK")
		}
	}()

	if _, err := conn.ExecContext(ctx, "DELETE FROM feature_entries WHERE file_id = ?", int64(fileID)); err != nil {
		return fmt.Errorf("delete entries: %w", err)
	}

	var appender *goduckdb.Appender
	if err := conn.Raw(func(driverConn any) error {
		var err error
		appender, err = goduckdb.NewAppenderFromConn(driverConn.(driver.Conn), "", "feature_entries")
		return err
	}); err != nil {
		return fmt.Errorf("create appender: %w", err)
	}

	for i, e := range entries {
		row, err := encodeEntry(fileID, e)
		if err != nil {
			appender.Close()
			return fmt.Errorf("encode entry %d: %w", i, err)
		}
		if err := appender.AppendRow(row...); err != nil {
			appender.Close()
			return fmt.Errorf("append entry %d: %w", i, err)
		}
	}
	if err := appender.Close(); err != nil {
		return fmt.Errorf("flush entries: %w", err)
	}

	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return fmt.Errorf("commit entries: %w", err)
	}
	return nil
}

// LoadEntries returns the persisted entries of fileID.
func (s *Store) LoadEntries(ctx context.Context, fileID feature.FileID) ([]*feature.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT
		file_id, chrom, start_pos, end_pos, feature_type,
		identifiers, categorical, numeric, info
		FROM feature_entries
		WHERE file_id = ?`, int64(fileID))
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	var entries []*feature.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return entries, nil
}

// LoadAll calls fn with the persisted entries of every registered file, in
// ascending file ID order. Registered files with no entries get an empty
// slice. A non-nil error from fn stops the walk.
func (s *Store) LoadAll(ctx context.Context, fn func(feature.FileID, []*feature.Entry) error) error {
	files, err := s.Files(ctx)
	if err != nil {
		return err
	}
	for _, f := range files {
		entries, err := s.LoadEntries(ctx, f.ID)
		if err != nil {
			return fmt.Errorf("load file %d: %w", f.ID, err)
		}
		if err := fn(f.ID, entries); err != nil {
			return err
		}
	}
	return nil
}

// CountEntries returns the number of persisted entries of fileID.
func (s *Store) CountEntries(ctx context.Context, fileID feature.FileID) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT count(*) FROM feature_entries WHERE file_id = ?", int64(fileID)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count entries: %w", err)
	}
	return n, nil
}

func encodeEntry(fileID feature.FileID, e *feature.Entry) ([]driver.Value, error) {
	ids, err := json.Marshal(e.Identifiers)
	if err != nil {
		return nil, err
	}
	cat, err := json.Marshal(e.Categorical)
	if err != nil {
		return nil, err
	}
	num, err := json.Marshal(e.Numeric)
	if err != nil {
		return nil, err
	}
	info, err := json.Marshal(e.Info)
	if err != nil {
		return nil, err
	}
	return []driver.Value{
		int64(fileID), e.Chrom, e.Start, e.End, string(e.Type),
		string(ids), string(cat), string(num), string(info),
	}, nil
}

// scanEntry scans one feature_entries row.
func scanEntry(rows interface{ Scan(dest ...any) error }) (*feature.Entry, error) {
	var (
		e                   feature.Entry
		fileID              int64
		typ                 string
		ids, cat, num, info string
	)
	if err := rows.Scan(&fileID, &e.Chrom, &e.Start, &e.End, &typ, &ids, &cat, &num, &info); err != nil {
		return nil, fmt.Errorf("scan entry: %w", err)
	}
	e.FileID = feature.FileID(fileID)
	e.Type = feature.Type(typ)

	if err := json.Unmarshal([]byte(ids), &e.Identifiers); err != nil {
		return nil, fmt.Errorf("decode identifiers: %w", err)
	}
	if err := json.Unmarshal([]byte(cat), &e.Categorical); err != nil {
		return nil, fmt.Errorf("decode categorical fields: %w", err)
	}
	if err := json.Unmarshal([]byte(num), &e.Numeric); err != nil {
		return nil, fmt.Errorf("decode numeric fields: %w", err)
	}
	if err := json.Unmarshal([]byte(info), &e.Info); err != nil {
		return nil, fmt.Errorf("decode info fields: %w", err)
	}
	return &e, nil
}
