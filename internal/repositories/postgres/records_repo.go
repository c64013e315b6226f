package postgres

import (
	"context"
	"fmt"
	"regexp"

	"github.com/yoockh/nexusbot/internal/records"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var identRE = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

type recordsRepo struct {
	db *gorm.DB
}

// NewRecordsRepo exposes Postgres tables as a records.Store.
func NewRecordsRepo(db *gorm.DB) records.Store {
	return &recordsRepo{db: db}
}

func (r *recordsRepo) Connected() bool { return r.db != nil }

func (r *recordsRepo) Insert(ctx context.Context, collection string, doc any) error {
	if err := checkIdent(collection); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Table(collection).Create(doc).Error
}

func (r *recordsRepo) Select(ctx context.Context, collection string, q records.Query, dst any) error {
	if err := checkIdent(collection); err != nil {
		return err
	}
	tx, err := scoped(r.db.WithContext(ctx).Table(collection), q.Filters)
	if err != nil {
		return err
	}
	for _, o := range q.Order {
		if err := checkIdent(o.Field); err != nil {
			return err
		}
		tx = tx.Order(clause.OrderByColumn{Column: clause.Column{Name: o.Field}, Desc: o.Desc})
	}
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}
	return tx.Find(dst).Error
}

func (r *recordsRepo) Update(ctx context.Context, collection string, patch map[string]any, filters ...records.Filter) error {
	if err := checkIdent(collection); err != nil {
		return err
	}
	if len(filters) == 0 {
		return fmt.Errorf("update %s: refusing unfiltered update", collection)
	}
	for k := range patch {
		if err := checkIdent(k); err != nil {
			return err
		}
	}
	tx, err := scoped(r.db.WithContext(ctx).Table(collection), filters)
	if err != nil {
		return err
	}
	return tx.Updates(patch).Error
}

func (r *recordsRepo) Delete(ctx context.Context, collection string, filters ...records.Filter) error {
	if err := checkIdent(collection); err != nil {
		return err
	}
	if len(filters) == 0 {
		return fmt.Errorf("delete %s: refusing unfiltered delete", collection)
	}
	tx, err := scoped(r.db.WithContext(ctx).Table(collection), filters)
	if err != nil {
		return err
	}
	return tx.Delete(map[string]any{}).Error
}

func scoped(tx *gorm.DB, filters []records.Filter) (*gorm.DB, error) {
	for _, f := range filters {
		if err := checkIdent(f.Field); err != nil {
			return nil, err
		}
		tx = tx.Where(clause.Eq{Column: clause.Column{Name: f.Field}, Value: f.Value})
	}
	return tx, nil
}

// collection and field names are interpolated as identifiers, so keep them plain
func checkIdent(s string) error {
	if !identRE.MatchString(s) {
		return fmt.Errorf("invalid identifier %q", s)
	}
	return nil
}
