package database

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

type (
	// Queryable is the union of the sqlx methods the stores require. It is
	// satisfied by both *sqlx.DB and *sqlx.Tx, allowing store methods to be
	// composed inside or outside of a transaction.
	Queryable interface {
		Exec(query string, args ...any) (sql.Result, error)
		Get(dest any, query string, args ...any) error
		Select(dest any, query string, args ...any) error
		Rebind(query string) string
	}

	// JsonColumn wraps any JSON-serializable type so it can be scanned
	// from/stored to a jsonb column without the store hand-rolling
	// (un)marshalling for each query.
	JsonColumn[T any] struct {
		val   *T
		valid bool
	}
)

func NewJsonColumn[T any](val *T) JsonColumn[T] {
	return JsonColumn[T]{val: val, valid: val != nil}
}

func (j *JsonColumn[T]) Scan(src any) error {
	if src == nil {
		j.val, j.valid = nil, false
		return nil
	}

	var raw []byte
	switch src := src.(type) {
	case []byte:
		raw = src
	case string:
		raw = []byte(src)
	default:
		return fmt.Errorf("cannot scan %T in to JsonColumn", src)
	}

	val := new(T)
	if err := json.Unmarshal(raw, val); err != nil {
		return err
	}

	j.val = val
	j.valid = true
	return nil
}

func (j JsonColumn[T]) Value() (driver.Value, error) {
	if !j.valid {
		return nil, nil
	}

	return json.Marshal(j.val)
}

// Get returns the contained value, or nil if the column was NULL.
func (j *JsonColumn[T]) Get() *T {
	return j.val
}
