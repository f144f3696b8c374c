package fields

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// MatchKind selects how a Predicate compares field values.
type MatchKind int

const (
	// MatchContains is a case-insensitive substring test.
	MatchContains MatchKind = iota
	// MatchPattern is a case-insensitive whole-value wildcard pattern:
	// * matches any run, ? one character, \ escapes the next character.
	MatchPattern
	// MatchRegex is a case-insensitive unanchored regular expression.
	MatchRegex
)

// Predicate is a test on field values.
type Predicate struct {
	Kind  MatchKind
	Value string
}

// Contains builds a substring predicate.
func Contains(s string) Predicate { return Predicate{Kind: MatchContains, Value: s} }

// Pattern builds a wildcard predicate.
func Pattern(s string) Predicate { return Predicate{Kind: MatchPattern, Value: s} }

// Regex builds a regular expression predicate.
func Regex(s string) Predicate { return Predicate{Kind: MatchRegex, Value: s} }

// Match returns the sorted ids of entries with a field satisfying p.
// An empty field name matches against every field.
func (s *Store) Match(ctx context.Context, field string, p Predicate) ([]string, error) {
	var where string
	var args []any

	switch p.Kind {
	case MatchContains:
		where = s.dialect.foldExpr("field_value") + ` LIKE ? ESCAPE '\'`
		args = append(args, "%"+escapeLike(s.dialect.foldValue(p.Value))+"%")
	case MatchPattern:
		where = s.dialect.foldExpr("field_value") + ` LIKE ? ESCAPE '\'`
		args = append(args, wildcardToLike(s.dialect.foldValue(p.Value)))
	case MatchRegex:
		clause, arg := s.dialect.regexClause("field_value", p.Value)
		where = clause
		args = append(args, arg)
	default:
		return nil, fmt.Errorf("match: unknown predicate kind %d", p.Kind)
	}

	if field != "" {
		where = "field_name = ? AND " + where
		args = append([]any{field}, args...)
	}

	q := "SELECT DISTINCT entry_id FROM entry_fields WHERE " + where + " ORDER BY entry_id"
	return s.queryIDs(ctx, "match", q, args...)
}

// EntryIDs returns the sorted ids of every indexed entry.
func (s *Store) EntryIDs(ctx context.Context) ([]string, error) {
	return s.queryIDs(ctx, "entry ids", "SELECT DISTINCT entry_id FROM entry_fields ORDER BY entry_id")
}

// Fields returns the indexed fields of one entry.
func (s *Store) Fields(ctx context.Context, entryID string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx,
		s.dialect.rebind("SELECT field_name, field_value FROM entry_fields WHERE entry_id = ? ORDER BY field_name"),
		entryID)
	if err != nil {
		return nil, fmt.Errorf("fields: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("fields: scan: %w", err)
		}
		out[name] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fields: %w", err)
	}
	return out, nil
}

// Count returns the number of rows.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM entry_fields").Scan(&n); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}

// CountField returns how many rows exist for one (entry, field) pair.
// Always 0 or 1 by construction.
func (s *Store) CountField(ctx context.Context, entryID, field string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		s.dialect.rebind("SELECT COUNT(*) FROM entry_fields WHERE entry_id = ? AND field_name = ?"),
		entryID, field).Scan(&n)
	if err != nil && err != sql.ErrNoRows {
		return 0, fmt.Errorf("count field: %w", err)
	}
	return n, nil
}

func (s *Store) queryIDs(ctx context.Context, op, q string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(q), args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return ids, nil
}

// escapeLike escapes LIKE metacharacters for ESCAPE '\'.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`).Replace(s)
}

// wildcardToLike converts a * / ? pattern to an anchored LIKE pattern.
func wildcardToLike(pattern string) string {
	runes := []rune(pattern)
	var b strings.Builder
	b.Grow(len(pattern) + 4)
	for i := 0; i < len(runes); i++ {
		switch c := runes[i]; c {
		case '\\':
			if i+1 < len(runes) {
				i++
				b.WriteString(escapeLike(string(runes[i])))
				continue
			}
			b.WriteString(`\\`)
		case '*':
			b.WriteByte('%')
		case '?':
			b.WriteByte('_')
		case '%', '_':
			b.WriteByte('\\')
			b.WriteRune(c)
		default:
			b.WriteRune(c)
		}
	}
	return b.String()
}
