package records

import (
	"context"
	"errors"
)

// ErrNotConnected is returned by every operation of a store with no backend behind it.
var ErrNotConnected = errors.New("records store not connected")

// Filter is an equality clause on a top-level field.
type Filter struct {
	Field string
	Value any
}

func Eq(field string, value any) Filter { return Filter{Field: field, Value: value} }

type Order struct {
	Field string
	Desc  bool
}

func Asc(field string) Order  { return Order{Field: field} }
func Desc(field string) Order { return Order{Field: field, Desc: true} }

// Query scopes a select. Limit <= 0 means no limit.
type Query struct {
	Filters []Filter
	Order   []Order
	Limit   int
}

func Where(filters ...Filter) Query { return Query{Filters: filters} }

func (q Query) OrderBy(o ...Order) Query {
	q.Order = append(q.Order, o...)
	return q
}

func (q Query) Take(n int) Query {
	q.Limit = n
	return q
}

// Store is the generic table client the widget runtime persists through.
// Documents are structs carrying json/bson/gorm tags; ids are assigned by the caller.
type Store interface {
	Connected() bool
	Insert(ctx context.Context, collection string, doc any) error
	// Select decodes matching rows into dst, a pointer to a slice.
	Select(ctx context.Context, collection string, q Query, dst any) error
	Update(ctx context.Context, collection string, patch map[string]any, filters ...Filter) error
	Delete(ctx context.Context, collection string, filters ...Filter) error
}

// Disconnected is the store used when no backend is configured.
type Disconnected struct{}

func (Disconnected) Connected() bool { return false }

func (Disconnected) Insert(context.Context, string, any) error { return ErrNotConnected }

func (Disconnected) Select(context.Context, string, Query, any) error { return ErrNotConnected }

func (Disconnected) Update(context.Context, string, map[string]any, ...Filter) error {
	return ErrNotConnected
}

func (Disconnected) Delete(context.Context, string, ...Filter) error { return ErrNotConnected }
