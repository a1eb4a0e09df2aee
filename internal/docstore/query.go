package docstore

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
)

type Op string

const (
	OpEq  Op = "=="
	OpNe  Op = "!="
	OpLt  Op = "<"
	OpLte Op = "<="
	OpGt  Op = ">"
	OpGte Op = ">="

	// OpIn matches any of a []string or []interface{} value.
	OpIn Op = "in"
)

var sqlOps = map[Op]string{
	OpEq:  "=",
	OpNe:  "<>",
	OpLt:  "<",
	OpLte: "<=",
	OpGt:  ">",
	OpGte: ">=",
}

// Only top-level fields are addressable.
var fieldPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

type Filter struct {
	Field string
	Op    Op
	Value interface{}
}

// Query selects documents of one collection. The zero value matches every
// document in insertion order.
type Query struct {
	Filters []Filter
	Order   string
	Desc    bool
	Max     int
}

func NewQuery() Query { return Query{} }

func (q Query) Where(field string, op Op, value interface{}) Query {
	filters := make([]Filter, len(q.Filters), len(q.Filters)+1)
	copy(filters, q.Filters)
	q.Filters = append(filters, Filter{Field: field, Op: op, Value: value})
	return q
}

func (q Query) OrderBy(field string, desc bool) Query {
	q.Order = field
	q.Desc = desc
	return q
}

func (q Query) Limit(n int) Query {
	q.Max = n
	return q
}

func (f Filter) sqlizer() (sq.Sqlizer, error) {
	if !fieldPattern.MatchString(f.Field) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidField, f.Field)
	}
	if f.Op == OpIn {
		return f.inSqlizer()
	}
	op, ok := sqlOps[f.Op]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported operator %q", ErrInvalidQuery, f.Op)
	}
	path := "$." + f.Field

	switch v := f.Value.(type) {
	case time.Time:
		// Timestamps are stored as RFC 3339 strings with arbitrary offsets.
		return sq.Expr(fmt.Sprintf("julianday(json_extract(data, ?)) %s julianday(?)", op),
			path, v.UTC().Format(time.RFC3339Nano)), nil
	case nil:
		return nil, fmt.Errorf("%w: nil value for %q", ErrInvalidQuery, f.Field)
	default:
		return sq.Expr(fmt.Sprintf("json_extract(data, ?) %s ?", op), path, v), nil
	}
}

func (f Filter) inSqlizer() (sq.Sqlizer, error) {
	var values []interface{}
	switch v := f.Value.(type) {
	case []string:
		for _, s := range v {
			values = append(values, s)
		}
	case []interface{}:
		values = v
	default:
		return nil, fmt.Errorf("%w: %q needs a list value", ErrInvalidQuery, f.Field)
	}
	if len(values) == 0 {
		return sq.Expr("1 = 0"), nil
	}
	args := make([]interface{}, 0, len(values)+1)
	args = append(args, "$."+f.Field)
	args = append(args, values...)
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(values)), ", ")
	return sq.Expr(fmt.Sprintf("json_extract(data, ?) IN (%s)", marks), args...), nil
}

func (q Query) toSQL(collection string) (string, []interface{}, error) {
	if collection == "" {
		return "", nil, fmt.Errorf("%w: empty collection", ErrInvalidQuery)
	}
	b := sq.Select("id", "data", "created_at", "updated_at").
		From("documents").
		Where(sq.Eq{"collection": collection})

	for _, f := range q.Filters {
		expr, err := f.sqlizer()
		if err != nil {
			return "", nil, err
		}
		b = b.Where(expr)
	}

	if q.Order != "" {
		if !fieldPattern.MatchString(q.Order) {
			return "", nil, fmt.Errorf("%w: %q", ErrInvalidField, q.Order)
		}
		dir := "ASC"
		if q.Desc {
			dir = "DESC"
		}
		// julianday yields NULL for non-date text, which then sorts as stored.
		b = b.OrderByClause("COALESCE(julianday(json_extract(data, ?)), json_extract(data, ?)) "+dir,
			"$."+q.Order, "$."+q.Order)
	}
	b = b.OrderBy("created_at ASC", "id ASC")

	if q.Max > 0 {
		b = b.Limit(uint64(q.Max))
	}
	return b.ToSql()
}
