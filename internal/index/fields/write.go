package fields

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// deleteChunk bounds the number of placeholders per DELETE statement.
const deleteChunk = 500

// UpsertEntry replaces the indexed fields of one entry.
//
// Fields present in the map are upserted with
// ON CONFLICT(entry_id, field_name) DO UPDATE; fields the entry no longer
// has are deleted. Both happen in one transaction, so a concurrent reader
// sees either the old or the new set of rows.
func (s *Store) UpsertEntry(ctx context.Context, entryID string, fields map[string]string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("upsert entry: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	deleteSQL := "DELETE FROM entry_fields WHERE entry_id = ?"
	args := []any{entryID}
	if len(names) > 0 {
		deleteSQL += " AND field_name NOT IN (" + placeholders(len(names)) + ")"
		for _, name := range names {
			args = append(args, name)
		}
	}
	if _, err := tx.ExecContext(ctx, s.dialect.rebind(deleteSQL), args...); err != nil {
		return fmt.Errorf("upsert entry: delete stale fields: %w", err)
	}

	upsertSQL := s.dialect.rebind(`
		INSERT INTO entry_fields (entry_id, field_name, field_value)
		VALUES (?, ?, ?)
		ON CONFLICT (entry_id, field_name) DO UPDATE SET field_value = excluded.field_value
	`)
	stmt, err := tx.PrepareContext(ctx, upsertSQL)
	if err != nil {
		return fmt.Errorf("upsert entry: prepare: %w", err)
	}
	defer stmt.Close()

	for _, name := range names {
		if _, err := stmt.ExecContext(ctx, entryID, name, fields[name]); err != nil {
			return fmt.Errorf("upsert entry: field %s: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("upsert entry: commit: %w", err)
	}
	return nil
}

// DeleteEntries removes every row of the given entries.
func (s *Store) DeleteEntries(ctx context.Context, entryIDs []string) error {
	if len(entryIDs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("delete entries: begin tx: %w", err)
	}
	defer tx.Rollback()

	for start := 0; start < len(entryIDs); start += deleteChunk {
		end := min(start+deleteChunk, len(entryIDs))
		chunk := entryIDs[start:end]
		args := make([]any, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}
		q := "DELETE FROM entry_fields WHERE entry_id IN (" + placeholders(len(chunk)) + ")"
		if _, err := tx.ExecContext(ctx, s.dialect.rebind(q), args...); err != nil {
			return fmt.Errorf("delete entries: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("delete entries: commit: %w", err)
	}
	return nil
}

// DeleteAll removes every row.
func (s *Store) DeleteAll(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM entry_fields"); err != nil {
		return fmt.Errorf("delete all: %w", err)
	}
	return nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
