package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"github.com/viant/atomq/service/dao"
)

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SqlStore implements dao.Service over a database/sql table holding one JSON document per key.
// Rows keep the sequence of their first save so List preserves insertion order.
type SqlStore[T any] struct {
	db          *sql.DB
	table       string
	keySelector func(*T) string
	matcher     func(*T, []*dao.Parameter) bool
}

// NewSqlStore creates table if needed; the DDL targets SQLite
func NewSqlStore[T any](ctx context.Context, db *sql.DB, table string, keySelector func(*T) string, matcher func(*T, []*dao.Parameter) bool) (*SqlStore[T], error) {
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	seq  INTEGER PRIMARY KEY AUTOINCREMENT,
	id   TEXT NOT NULL UNIQUE,
	data TEXT NOT NULL
)`, table)
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return nil, fmt.Errorf("failed to create table %v: %w", table, err)
	}
	return &SqlStore[T]{db: db, table: table, keySelector: keySelector, matcher: matcher}, nil
}

// Save upserts an entity
func (s *SqlStore[T]) Save(ctx context.Context, v *T) error {
	if v == nil {
		return dao.ErrNilEntity
	}
	id := s.keySelector(v)
	if id == "" {
		return dao.ErrInvalidID
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %v: %w", id, err)
	}
	query := fmt.Sprintf(`INSERT INTO %s (id, data) VALUES (?, ?) ON CONFLICT(id) DO UPDATE SET data = excluded.data`, s.table)
	if _, err = s.db.ExecContext(ctx, query, id, string(data)); err != nil {
		return fmt.Errorf("failed to save %v: %w", id, err)
	}
	return nil
}

// Load retrieves an entity
func (s *SqlStore[T]) Load(ctx context.Context, id string) (*T, error) {
	if id == "" {
		return nil, dao.ErrInvalidID
	}
	var data string
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT data FROM %s WHERE id = ?`, s.table), id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, dao.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %v: %w", id, err)
	}
	ret := new(T)
	if err = json.Unmarshal([]byte(data), ret); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %v: %w", id, err)
	}
	return ret, nil
}

// Delete removes an entity
func (s *SqlStore[T]) Delete(ctx context.Context, id string) error {
	if id == "" {
		return dao.ErrInvalidID
	}
	result, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, s.table), id)
	if err != nil {
		return fmt.Errorf("failed to delete %v: %w", id, err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return dao.ErrNotFound
	}
	return nil
}

// List returns matching entities in first save order
func (s *SqlStore[T]) List(ctx context.Context, parameters ...*dao.Parameter) ([]*T, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT id, data FROM %s ORDER BY seq`, s.table))
	if err != nil {
		return nil, fmt.Errorf("failed to list %v: %w", s.table, err)
	}
	defer rows.Close()
	var ret []*T
	for rows.Next() {
		var id, data string
		if err = rows.Scan(&id, &data); err != nil {
			return nil, err
		}
		v := new(T)
		if err = json.Unmarshal([]byte(data), v); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %v: %w", id, err)
		}
		if s.matcher != nil && !s.matcher(v, parameters) {
			continue
		}
		ret = append(ret, v)
	}
	return ret, rows.Err()
}

var _ dao.Service[string, int] = (*SqlStore[int])(nil)
