package inventory

import (
	"context"
	"fmt"
	"iter"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	"github.com/doug-martin/goqu/v9/exp"

	"lendkeeper/internal/storage"
)

const dialectSQLite = "sqlite3"

var dialect = goqu.Dialect(dialectSQLite)

// OrderField names a sortable resource column.
type OrderField string

const (
	OrderByID        OrderField = "id"
	OrderByTitle     OrderField = "title"
	OrderByUpdatedAt OrderField = "updated_at"
	OrderByCondition OrderField = "condition"
)

// Filter narrows catalog listings. Zero values mean "any".
type Filter struct {
	Type      ResourceType
	Condition Condition
	Available *bool
	// Tags matches classification values after case folding. The
	// Unclassified tag matches resources lacking the dimension.
	Tags       map[Dimension]string
	OrderBy    OrderField
	Descending bool
	Limit      uint
}

func (f Filter) where() ([]exp.Expression, error) {
	var exprs []exp.Expression
	if f.Type != "" {
		if !f.Type.Valid() {
			return nil, newError(KindValidation, fmt.Sprintf("unknown resource type %q", f.Type))
		}
		exprs = append(exprs, goqu.Ex{"type": string(f.Type)})
	}
	if f.Condition != "" {
		if !f.Condition.Valid() {
			return nil, newError(KindValidation, fmt.Sprintf("unknown condition %q", f.Condition))
		}
		exprs = append(exprs, goqu.Ex{"condition": string(f.Condition)})
	}
	if f.Available != nil {
		exprs = append(exprs, goqu.Ex{"available": storage.BoolToInt(*f.Available)})
	}
	for dim, tag := range f.Tags {
		if !dim.Valid() {
			return nil, newError(KindValidation, fmt.Sprintf("unknown classification dimension %q", dim))
		}
		tag = normalizeTag(tag)
		if tag == "" || tag == Unclassified {
			exprs = append(exprs, goqu.C(dim.column()).IsNull())
			continue
		}
		exprs = append(exprs, goqu.Ex{dim.column(): tag})
	}
	return exprs, nil
}

func (f Filter) order() (exp.OrderedExpression, error) {
	field := f.OrderBy
	if field == "" {
		field = OrderByID
	}
	switch field {
	case OrderByID, OrderByTitle, OrderByUpdatedAt, OrderByCondition:
	default:
		return nil, newError(KindValidation, fmt.Sprintf("unknown order field %q", field))
	}
	if f.Descending {
		return goqu.I(string(field)).Desc(), nil
	}
	return goqu.I(string(field)).Asc(), nil
}

// List yields resources matching f. The sequence is lazy and restartable:
// every range re-runs the query against current state.
func (c *Catalog) List(ctx context.Context, f Filter) iter.Seq2[Resource, error] {
	return func(yield func(Resource, error) bool) {
		query, args, err := c.buildListQuery(f)
		if err != nil {
			yield(Resource{}, err)
			return
		}
		rows, err := c.store.QueryContext(ctx, query, args...)
		if err != nil {
			yield(Resource{}, classifyStorage("list resources", err))
			return
		}
		defer rows.Close()
		for rows.Next() {
			res, err := scanResource(rows)
			if err != nil {
				yield(Resource{}, err)
				return
			}
			if !yield(res, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(Resource{}, classifyStorage("list resources", err))
		}
	}
}

func (c *Catalog) buildListQuery(f Filter) (string, []any, error) {
	exprs, err := f.where()
	if err != nil {
		return "", nil, err
	}
	order, err := f.order()
	if err != nil {
		return "", nil, err
	}
	ds := dialect.From("resources").
		Select(resourceColumns...).
		Where(exprs...).
		Order(order)
	if f.OrderBy != "" && f.OrderBy != OrderByID {
		ds = ds.OrderAppend(goqu.I("id").Asc())
	}
	if f.Limit > 0 {
		ds = ds.Limit(f.Limit)
	}
	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return "", nil, fmt.Errorf("build resource query: %w", err)
	}
	return query, args, nil
}

// ListAvailable yields resources not currently on loan.
func (c *Catalog) ListAvailable(ctx context.Context, f Filter) iter.Seq2[Resource, error] {
	available := true
	f.Available = &available
	return c.List(ctx, f)
}

// ListByCondition yields resources in the given condition.
func (c *Catalog) ListByCondition(ctx context.Context, condition Condition) iter.Seq2[Resource, error] {
	return c.List(ctx, Filter{Condition: condition})
}

// ListByClassification yields resources whose tags match every entry in tags.
func (c *Catalog) ListByClassification(ctx context.Context, tags map[Dimension]string) iter.Seq2[Resource, error] {
	return c.List(ctx, Filter{Tags: tags})
}

// Counts summarizes availability across resources matching a filter.
type Counts struct {
	Total     int `json:"total"`
	Available int `json:"available"`
	Borrowed  int `json:"borrowed"`
}

// Counts returns totals for resources matching f.
func (c *Catalog) Counts(ctx context.Context, f Filter) (Counts, error) {
	exprs, err := f.where()
	if err != nil {
		return Counts{}, err
	}
	query, args, err := dialect.From("resources").
		Select(
			goqu.COUNT(goqu.Star()).As("total"),
			goqu.COALESCE(goqu.SUM(goqu.C("available")), 0).As("available"),
		).
		Where(exprs...).
		Prepared(true).
		ToSQL()
	if err != nil {
		return Counts{}, fmt.Errorf("build counts query: %w", err)
	}
	var counts Counts
	if err := c.store.DB().QueryRowContext(ctx, query, args...).Scan(&counts.Total, &counts.Available); err != nil {
		return Counts{}, classifyStorage("count resources", err)
	}
	counts.Borrowed = counts.Total - counts.Available
	return counts, nil
}

// TagCount is one row of a classification breakdown.
type TagCount struct {
	Tag string `json:"tag"`
	Counts
}

// CountsBy groups resources matching f by the chosen dimension, ordered by
// tag. Resources lacking the dimension are grouped under Unclassified.
func (c *Catalog) CountsBy(ctx context.Context, dim Dimension, f Filter) ([]TagCount, error) {
	if !dim.Valid() {
		return nil, newError(KindValidation, fmt.Sprintf("unknown classification dimension %q", dim))
	}
	exprs, err := f.where()
	if err != nil {
		return nil, err
	}
	query, args, err := dialect.From("resources").
		Select(
			goqu.COALESCE(goqu.C(dim.column()), Unclassified).As("tag"),
			goqu.COUNT(goqu.Star()).As("total"),
			goqu.COALESCE(goqu.SUM(goqu.C("available")), 0).As("available"),
		).
		Where(exprs...).
		GroupBy(goqu.I("tag")).
		Order(goqu.I("tag").Asc()).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build breakdown query: %w", err)
	}
	rows, err := c.store.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classifyStorage("classification breakdown", err)
	}
	defer rows.Close()

	var out []TagCount
	for rows.Next() {
		var tc TagCount
		if err := rows.Scan(&tc.Tag, &tc.Total, &tc.Available); err != nil {
			return nil, fmt.Errorf("scan breakdown: %w", err)
		}
		tc.Borrowed = tc.Total - tc.Available
		out = append(out, tc)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyStorage("classification breakdown", err)
	}
	return out, nil
}

// NextFurnitureLabels returns count labels continuing the series of prefix,
// numbered after the highest sequence already registered. Ids are only
// reserved by registering them.
func (c *Catalog) NextFurnitureLabels(ctx context.Context, series FurnitureLabel, count int) ([]FurnitureLabel, error) {
	series.Seq = 1
	if err := CheckResourceID(series.String()); err != nil {
		return nil, err
	}
	if count < 1 || count > 999 {
		return nil, newError(KindValidation, "furniture label count must be between 1 and 999")
	}
	prefix := series.Prefix()
	query, args, err := dialect.From("resources").
		Select("id").
		Where(goqu.C("id").Like(prefix + "%")).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build furniture series query: %w", err)
	}
	rows, err := c.store.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classifyStorage("furniture series", err)
	}
	defer rows.Close()

	last := 0
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan furniture id: %w", err)
		}
		// LIKE ignores ASCII case, so the prefix is rechecked exactly.
		label, err := ParseLabel(id)
		if err != nil {
			continue
		}
		if fl, ok := label.(FurnitureLabel); ok && fl.Prefix() == prefix && fl.Seq > last {
			last = fl.Seq
		}
	}
	if err := rows.Err(); err != nil {
		return nil, classifyStorage("furniture series", err)
	}
	if last+count > 999 {
		return nil, newError(KindValidation, fmt.Sprintf("furniture series %s has room for %d more labels", prefix, 999-last))
	}

	labels := make([]FurnitureLabel, count)
	for i := range labels {
		labels[i] = series
		labels[i].Seq = last + 1 + i
	}
	return labels, nil
}
