package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/georgysavva/scany/v2/sqlscan"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Table describes how an entity maps onto its sqlite table.
type Table struct {
	// Entity is the name used in error messages
	Entity string
	// Name of the table
	Name string
	// OrderBy for List; defaults to newest first
	OrderBy string
	// Mutable lists the columns Update may change
	Mutable []string
	// DeleteGuard is an extra WHERE condition a row must meet to be deleted
	DeleteGuard string
}

// Filter is an equality filter over known columns. A nil value matches NULL.
type Filter map[string]any

// Fields is a partial update keyed by column name
type Fields map[string]any

// Repository implements list/get/create/update/delete once for every
// entity type. T must be a struct whose db tags name its columns, with an
// "id" column and optionally a "created_at" column.
type Repository[T any] struct {
	db       ExecQuerier
	table    Table
	validate *validator.Validate
	columns  []string
	index    map[string]int
}

// NewRepository builds a repository for T over the given table.
func NewRepository[T any](db ExecQuerier, table Table, validate *validator.Validate) *Repository[T] {
	if table.OrderBy == "" {
		table.OrderBy = "created_at DESC, rowid DESC"
	}
	r := &Repository[T]{
		db:       db,
		table:    table,
		validate: validate,
		index:    make(map[string]int),
	}
	typ := reflect.TypeFor[T]()
	for i := 0; i < typ.NumField(); i++ {
		col := typ.Field(i).Tag.Get("db")
		if col == "" || col == "-" {
			continue
		}
		r.columns = append(r.columns, col)
		r.index[col] = i
	}
	return r
}

// Table returns the table description.
func (r *Repository[T]) Table() Table {
	return r.table
}

func (r *Repository[T]) selectSQL() string {
	return "SELECT " + strings.Join(r.columns, ", ") + " FROM " + r.table.Name
}

// List returns the rows matching filter in the table's order.
func (r *Repository[T]) List(ctx context.Context, filter Filter) ([]T, error) {
	where, args, err := r.where(filter)
	if err != nil {
		return nil, err
	}
	query := r.selectSQL() + where + " ORDER BY " + r.table.OrderBy
	var out []T
	if err := sqlscan.Select(ctx, r.db, &out, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", r.table.Entity, err)
	}
	return out, nil
}

// Get returns the row with the given id or a NotFoundError.
func (r *Repository[T]) Get(ctx context.Context, id string) (*T, error) {
	var out T
	err := sqlscan.Get(ctx, r.db, &out, r.selectSQL()+" WHERE id = ?", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &NotFoundError{Entity: r.table.Entity, ID: id}
		}
		return nil, fmt.Errorf("failed to get %s: %w", r.table.Entity, err)
	}
	return &out, nil
}

// Create validates entity, assigns its id and created_at when unset, and
// inserts it.
func (r *Repository[T]) Create(ctx context.Context, entity *T) error {
	v := reflect.ValueOf(entity).Elem()
	if i, ok := r.index["id"]; ok && v.Field(i).String() == "" {
		v.Field(i).SetString(uuid.New().String())
	}
	if i, ok := r.index["created_at"]; ok {
		if ts, isTime := v.Field(i).Addr().Interface().(*time.Time); isTime && ts.IsZero() {
			*ts = time.Now().UTC()
		}
	}

	if err := r.check(entity); err != nil {
		return err
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(r.columns)), ", ")
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", r.table.Name, strings.Join(r.columns, ", "), placeholders)
	if _, err := r.db.ExecContext(ctx, query, r.values(v, r.columns)...); err != nil {
		return classifyConstraint(r.table.Entity, err)
	}
	return nil
}

// Update applies fields to the row with the given id and returns the
// updated row. Only the table's mutable columns may be changed.
func (r *Repository[T]) Update(ctx context.Context, id string, fields Fields) (*T, error) {
	if len(fields) == 0 {
		return nil, &ValidationError{Entity: r.table.Entity, Message: "no fields to update"}
	}
	cols := make([]string, 0, len(fields))
	for col := range fields {
		if !slices.Contains(r.table.Mutable, col) {
			return nil, &ValidationError{Entity: r.table.Entity, Field: col, Message: "field cannot be updated"}
		}
		cols = append(cols, col)
	}
	sort.Strings(cols)

	current, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	v := reflect.ValueOf(current).Elem()
	for _, col := range cols {
		if err := assignField(v.Field(r.index[col]), fields[col]); err != nil {
			return nil, &ValidationError{Entity: r.table.Entity, Field: col, Message: err.Error()}
		}
	}
	if err := r.check(current); err != nil {
		return nil, err
	}

	sets := make([]string, len(cols))
	for i, col := range cols {
		sets[i] = col + " = ?"
	}
	args := append(r.values(v, cols), id)
	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", r.table.Name, strings.Join(sets, ", "))
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, classifyConstraint(r.table.Entity, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, &NotFoundError{Entity: r.table.Entity, ID: id}
	}
	return current, nil
}

// Delete removes the row with the given id. Deleting a missing row is not
// an error.
func (r *Repository[T]) Delete(ctx context.Context, id string) error {
	query := "DELETE FROM " + r.table.Name + " WHERE id = ?"
	if r.table.DeleteGuard != "" {
		query += " AND " + r.table.DeleteGuard
	}
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return classifyConstraint(r.table.Entity, err)
	}
	if n, _ := res.RowsAffected(); n == 0 && r.table.DeleteGuard != "" {
		// the guard may have rejected an existing row
		if _, err := r.Get(ctx, id); err == nil {
			return fmt.Errorf("cannot delete %s %s: %w", r.table.Entity, id, ErrRunActive)
		}
	}
	return nil
}

func (r *Repository[T]) check(entity *T) error {
	if r.validate == nil {
		return nil
	}
	err := r.validate.Struct(entity)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		e := verrs[0]
		return &ValidationError{
			Entity:  r.table.Entity,
			Field:   e.Field(),
			Message: fmt.Sprintf("failed on the '%s' tag", e.Tag()),
		}
	}
	return &ValidationError{Entity: r.table.Entity, Message: err.Error()}
}

func (r *Repository[T]) where(filter Filter) (string, []any, error) {
	if len(filter) == 0 {
		return "", nil, nil
	}
	cols := make([]string, 0, len(filter))
	for col := range filter {
		if _, ok := r.index[col]; !ok {
			return "", nil, &ValidationError{Entity: r.table.Entity, Field: col, Message: "unknown filter column"}
		}
		cols = append(cols, col)
	}
	sort.Strings(cols)

	conds := make([]string, 0, len(cols))
	args := make([]any, 0, len(cols))
	for _, col := range cols {
		val := filter[col]
		if val == nil {
			conds = append(conds, col+" IS NULL")
			continue
		}
		conds = append(conds, col+" = ?")
		args = append(args, val)
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

func (r *Repository[T]) values(v reflect.Value, cols []string) []any {
	out := make([]any, len(cols))
	for i, col := range cols {
		out[i] = v.Field(r.index[col]).Interface()
	}
	return out
}

// assignField sets field from a loosely typed value (typically decoded
// JSON) by round-tripping it through encoding/json.
func assignField(field reflect.Value, value any) error {
	if value == nil {
		field.Set(reflect.Zero(field.Type()))
		return nil
	}
	if rv := reflect.ValueOf(value); rv.Type().AssignableTo(field.Type()) {
		field.Set(rv)
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	target := reflect.New(field.Type())
	if err := json.Unmarshal(raw, target.Interface()); err != nil {
		return fmt.Errorf("invalid value: %w", err)
	}
	field.Set(target.Elem())
	return nil
}
