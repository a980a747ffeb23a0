package repository

import (
	"database/sql/driver"
	"fmt"
	"reflect"
	"slices"
	"sort"
	"strings"

	"github.com/deppfellow/recordstore/internal/errs"
)

// Filter selects rows by exact match on every key (conjunctive). A nil value
// matches NULL. Keys must be declared columns of the table, and values must be
// single values: slices and arrays (other than []byte) are rejected rather
// than expanded into IN lists.
type Filter map[string]any

// Values is an insert or update payload keyed by column name.
type Values map[string]any

// Table declares how an entity type is stored.
//
// Columns lists every column of the table, including the identifier and the
// auto-populated timestamps; it is both the SELECT/RETURNING list and the set
// of keys a Filter or Values may use. Rows are mapped onto T by `db` tags.
type Table[T any] struct {
	Name     string
	IDColumn string
	Columns  []string

	// UpdatedAtColumn, when set, is refreshed to now() on every Update that
	// does not set it explicitly.
	UpdatedAtColumn string
}

func (t Table[T]) hasColumn(name string) bool {
	return slices.Contains(t.Columns, name)
}

func (t Table[T]) columnList() string {
	return strings.Join(t.Columns, ", ")
}

// checkKeys rejects keys that are not declared columns, so a typo can never
// silently turn into a no-op filter.
func (t Table[T]) checkKeys(op, what string, m map[string]any) error {
	var unknown []string
	for key := range m {
		if !t.hasColumn(key) {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	sort.Strings(unknown)
	return errs.NewInvalidArgument(op, t.Name,
		fmt.Sprintf("unknown %s column(s): %s", what, strings.Join(unknown, ", ")))
}

// checkFilter validates filter keys and rejects multi-valued entries, which
// would otherwise match any of several values.
func (t Table[T]) checkFilter(op string, filter Filter) error {
	if err := t.checkKeys(op, "filter", filter); err != nil {
		return err
	}

	var multi []string
	for key, value := range filter {
		if isMultiValue(value) {
			multi = append(multi, key)
		}
	}
	if len(multi) == 0 {
		return nil
	}
	sort.Strings(multi)
	return errs.NewInvalidArgument(op, t.Name,
		fmt.Sprintf("filter column(s) %s: exact match needs a single value", strings.Join(multi, ", ")))
}

func isMultiValue(value any) bool {
	if value == nil || driver.IsValue(value) {
		return false
	}
	if _, ok := value.(driver.Valuer); ok {
		return false
	}
	kind := reflect.ValueOf(value).Kind()
	return kind == reflect.Slice || kind == reflect.Array
}
