package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"
)

// Key is an entity id that can be stored as text.
type Key interface {
	comparable
	String() string
}

// Record is an encoded entity ready to be written. Values line up with the
// table's extra columns.
type Record struct {
	Table  string
	ID     string
	Data   []byte
	Values []any
}

// Table describes one entity table. Every table has id, version, data and
// updated_at; Columns lists any extra indexed columns.
type Table struct {
	Name    string
	Columns []string
}

// DocumentStore persists entities of one family as JSON documents.
type DocumentStore[K Key, V ValidatingSpec] struct {
	db      DB
	table   Table
	columns func(V) []any

	upsert string
}

// NewDocumentStore creates a store for table. columns returns the values of
// the table's extra columns for an entity and may be nil when there are none.
func NewDocumentStore[K Key, V ValidatingSpec](db DB, table Table, columns func(V) []any) *DocumentStore[K, V] {
	return &DocumentStore[K, V]{
		db:      db,
		table:   table,
		columns: columns,
		upsert:  upsertSQL(table),
	}
}

func upsertSQL(t Table) string {
	cols := append([]string{"id", "version", "data", "updated_at"}, t.Columns...)
	params := make([]string, len(cols))
	for i := range cols {
		params[i] = fmt.Sprintf("$%d", i+1)
	}
	sets := make([]string, 0, len(cols)-1)
	for _, c := range cols[1:] {
		sets = append(sets, fmt.Sprintf("%s = excluded.%s", c, c))
	}

	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (id) DO UPDATE SET %s",
		t.Name, strings.Join(cols, ", "), strings.Join(params, ", "), strings.Join(sets, ", "))
}

// Load reads one entity. The bool is false when no row exists.
func (s *DocumentStore[K, V]) Load(ctx context.Context, id K) (V, bool, error) {
	var zero V

	res, err := s.db.Query(ctx, fmt.Sprintf("SELECT data FROM %s WHERE id = $1", s.table.Name), id.String())
	if err != nil {
		return zero, false, fmt.Errorf("loading %s %s: %w", s.table.Name, id, err)
	}
	if res.RowCount == 0 {
		return zero, false, nil
	}

	v, err := s.decode(res.Rows[0])
	if err != nil {
		return zero, false, fmt.Errorf("loading %s %s: %w", s.table.Name, id, err)
	}
	return v, true, nil
}

// LoadAll reads every entity in the table.
func (s *DocumentStore[K, V]) LoadAll(ctx context.Context) ([]V, error) {
	return s.loadMany(ctx, fmt.Sprintf("SELECT data FROM %s ORDER BY id", s.table.Name))
}

// LoadWhere reads every entity whose extra column equals value.
func (s *DocumentStore[K, V]) LoadWhere(ctx context.Context, column string, value any) ([]V, error) {
	if !slices.Contains(s.table.Columns, column) {
		return nil, fmt.Errorf("%s has no column %q", s.table.Name, column)
	}
	return s.loadMany(ctx, fmt.Sprintf("SELECT data FROM %s WHERE %s = $1 ORDER BY id", s.table.Name, column), value)
}

func (s *DocumentStore[K, V]) loadMany(ctx context.Context, query string, args ...any) ([]V, error) {
	res, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", s.table.Name, err)
	}

	out := make([]V, 0, len(res.Rows))
	for _, row := range res.Rows {
		v, err := s.decode(row)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", s.table.Name, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func (s *DocumentStore[K, V]) decode(row Row) (V, error) {
	var zero V

	raw, err := bytesOf(row["data"])
	if err != nil {
		return zero, err
	}

	doc := &Document[V]{}
	if err := json.Unmarshal(raw, doc); err != nil {
		return zero, fmt.Errorf("unmarshalling document: %w", err)
	}
	if err := doc.Validate(); err != nil {
		return zero, fmt.Errorf("validating %s: %w", doc.ID, err)
	}

	return doc.Spec, nil
}

// Encode serialises an entity into a Record. Callers hold the entity's lock
// so the snapshot is consistent.
func (s *DocumentStore[K, V]) Encode(id K, v V) (Record, error) {
	doc := &Document[V]{
		Version: CurrentVersion,
		ID:      id.String(),
		Spec:    v,
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return Record{}, fmt.Errorf("marshalling json: %w", err)
	}

	rec := Record{Table: s.table.Name, ID: doc.ID, Data: data}
	if s.columns != nil {
		rec.Values = s.columns(v)
	}
	if len(rec.Values) != len(s.table.Columns) {
		return Record{}, fmt.Errorf("%s expects %d column values, got %d", s.table.Name, len(s.table.Columns), len(rec.Values))
	}

	return rec, nil
}

// Write upserts one encoded record.
func (s *DocumentStore[K, V]) Write(ctx context.Context, rec Record) error {
	args := append([]any{rec.ID, CurrentVersion, string(rec.Data), time.Now().UTC().UnixMilli()}, rec.Values...)
	if _, err := s.db.Exec(ctx, s.upsert, args...); err != nil {
		return fmt.Errorf("writing %s %s: %w", s.table.Name, rec.ID, err)
	}
	return nil
}

func (s *DocumentStore[K, V]) Delete(ctx context.Context, id K) error {
	_, err := s.db.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = $1", s.table.Name), id.String())
	if err != nil {
		return fmt.Errorf("deleting %s %s: %w", s.table.Name, id, err)
	}
	return nil
}
