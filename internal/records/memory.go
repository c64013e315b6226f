package records

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps documents in-process as their JSON form. Used for local runs and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	tables map[string][]map[string]any
	writes int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tables: make(map[string][]map[string]any)}
}

func (m *MemoryStore) Connected() bool { return true }

// Writes counts successful insert/update/delete calls.
func (m *MemoryStore) Writes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.writes
}

// Count returns the number of documents in a collection.
func (m *MemoryStore) Count(collection string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tables[collection])
}

func (m *MemoryStore) Insert(ctx context.Context, collection string, doc any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	row, err := toRow(doc)
	if err != nil {
		return fmt.Errorf("encode %s document: %w", collection, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tables[collection] = append(m.tables[collection], row)
	m.writes++
	return nil
}

func (m *MemoryStore) Select(ctx context.Context, collection string, q Query, dst any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	filters, err := normalizeFilters(q.Filters)
	if err != nil {
		return err
	}

	m.mu.RLock()
	var out []map[string]any
	for _, row := range m.tables[collection] {
		if matches(row, filters) {
			out = append(out, row)
		}
	}
	m.mu.RUnlock()

	if len(q.Order) > 0 {
		sort.SliceStable(out, func(i, j int) bool {
			for _, o := range q.Order {
				c := compareValues(out[i][o.Field], out[j][o.Field])
				if c == 0 {
					continue
				}
				if o.Desc {
					return c > 0
				}
				return c < 0
			}
			return false
		})
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	if out == nil {
		out = []map[string]any{}
	}

	b, err := json.Marshal(out)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, dst)
}

func (m *MemoryStore) Update(ctx context.Context, collection string, patch map[string]any, filters ...Filter) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fs, err := normalizeFilters(filters)
	if err != nil {
		return err
	}
	set, err := toRow(patch)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.tables[collection] {
		if !matches(row, fs) {
			continue
		}
		for k, v := range set {
			row[k] = v
		}
	}
	m.writes++
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, collection string, filters ...Filter) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fs, err := normalizeFilters(filters)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.tables[collection][:0]
	for _, row := range m.tables[collection] {
		if !matches(row, fs) {
			kept = append(kept, row)
		}
	}
	m.tables[collection] = kept
	m.writes++
	return nil
}

func toRow(doc any) (map[string]any, error) {
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	row := map[string]any{}
	if err := json.Unmarshal(b, &row); err != nil {
		return nil, err
	}
	return row, nil
}

func normalizeFilters(filters []Filter) ([]Filter, error) {
	out := make([]Filter, 0, len(filters))
	for _, f := range filters {
		b, err := json.Marshal(f.Value)
		if err != nil {
			return nil, fmt.Errorf("encode filter %s: %w", f.Field, err)
		}
		var v any
		if err := json.Unmarshal(b, &v); err != nil {
			return nil, err
		}
		out = append(out, Filter{Field: f.Field, Value: v})
	}
	return out, nil
}

func matches(row map[string]any, filters []Filter) bool {
	for _, f := range filters {
		if !reflect.DeepEqual(row[f.Field], f.Value) {
			return false
		}
	}
	return true
}

func compareValues(a, b any) int {
	switch av := a.(type) {
	case string:
		bv, _ := b.(string)
		ta, errA := time.Parse(time.RFC3339Nano, av)
		tb, errB := time.Parse(time.RFC3339Nano, bv)
		if errA == nil && errB == nil {
			return ta.Compare(tb)
		}
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
		return 0
	case float64:
		bv, _ := b.(float64)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
		return 0
	}
	return 0
}
