package pg

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/edvin/subadmin/internal/gateway"
	"github.com/edvin/subadmin/internal/model"
)

// readable lists the relations queries may touch; writable the subset that
// accepts inserts and updates.
var (
	readable = map[string]bool{
		model.RelationUser:         true,
		model.RelationViewUser:     true,
		model.RelationAgent:        true,
		model.RelationAgentUser:    true,
		model.RelationAgentStep:    true,
		model.RelationSubscription: true,
	}
	writable = map[string]bool{
		model.RelationUser:         true,
		model.RelationAgentUser:    true,
		model.RelationSubscription: true,
	}
)

var identPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

func ident(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func checkRelation(allowed map[string]bool, relation string) error {
	if !allowed[relation] {
		return fmt.Errorf("%w: %q", gateway.ErrUnknownRelation, relation)
	}
	return nil
}

func checkColumns(cols ...string) error {
	for _, c := range cols {
		if !identPattern.MatchString(c) {
			return fmt.Errorf("invalid column name %q", c)
		}
	}
	return nil
}

// buildSelect renders q as one statement returning a JSON array of records,
// with every expansion embedded as a correlated subquery.
func buildSelect(q gateway.Query) (string, []any, error) {
	if err := checkRelation(readable, q.Relation); err != nil {
		return "", nil, err
	}
	if err := checkColumns(q.Columns...); err != nil {
		return "", nil, err
	}

	// The inner ORDER BY only decides which rows survive LIMIT; json_agg
	// keeps no input order unless it is given its own.
	var inner, outer []string
	for _, o := range q.Order {
		if err := checkColumns(o.Column); err != nil {
			return "", nil, err
		}
		if len(q.Columns) > 0 && !slices.Contains(q.Columns, o.Column) {
			return "", nil, fmt.Errorf("order column %q is not projected", o.Column)
		}
		dir := "ASC"
		if o.Desc {
			dir = "DESC"
		}
		inner = append(inner, "b."+ident(o.Column)+" "+dir)
		outer = append(outer, "t."+ident(o.Column)+" "+dir)
	}

	var sb strings.Builder
	sb.WriteString("SELECT coalesce(json_agg(row_to_json(t)")
	if len(outer) > 0 {
		sb.WriteString(" ORDER BY " + strings.Join(outer, ", "))
	}
	sb.WriteString("), '[]'::json) FROM (SELECT ")
	sb.WriteString(projection("b", q.Columns))

	for i, e := range q.Expand {
		if err := checkRelation(readable, e.Relation); err != nil {
			return "", nil, err
		}
		if err := checkColumns(e.Columns...); err != nil {
			return "", nil, err
		}
		if len(e.On) == 0 {
			return "", nil, fmt.Errorf("expansion %s has no join keys", e.Key())
		}
		alias := "e" + strconv.Itoa(i)
		conds := make([]string, 0, len(e.On))
		for _, j := range e.On {
			if err := checkColumns(j.Local, j.Foreign); err != nil {
				return "", nil, err
			}
			conds = append(conds, fmt.Sprintf("%s.%s = b.%s", alias, ident(j.Foreign), ident(j.Local)))
		}
		fmt.Fprintf(&sb, ", (SELECT row_to_json(r%d) FROM (SELECT %s FROM %s %s WHERE %s LIMIT 1) r%d) AS %s",
			i, projection(alias, e.Columns), ident(e.Relation), alias, strings.Join(conds, " AND "), i, ident(e.Key()))
	}

	fmt.Fprintf(&sb, " FROM %s b", ident(q.Relation))

	where, args, err := whereClause("b", q.Filters, 1)
	if err != nil {
		return "", nil, err
	}
	sb.WriteString(where)

	if len(inner) > 0 {
		sb.WriteString(" ORDER BY " + strings.Join(inner, ", "))
	}

	limit := q.Limit
	if q.Single && (limit == 0 || limit > 2) {
		limit = 2
	}
	if limit > 0 {
		sb.WriteString(" LIMIT " + strconv.Itoa(limit))
	}
	sb.WriteString(") t")

	return sb.String(), args, nil
}

// buildInsert renders an insert of one JSON record. Only the keys present in
// the record are written so column defaults apply to the rest.
func buildInsert(relation string, record map[string]any) (string, error) {
	if err := checkRelation(writable, relation); err != nil {
		return "", err
	}
	cols := sortedKeys(record)
	if len(cols) == 0 {
		return "", errors.New("empty record")
	}
	if err := checkColumns(cols...); err != nil {
		return "", err
	}

	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = ident(c)
	}
	list := strings.Join(quoted, ", ")
	rel := ident(relation)
	return fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM json_populate_record(NULL::%s, $1::json)",
		rel, list, list, rel), nil
}

// buildUpdate renders a filtered update whose values come from the JSON patch
// bound as $1; filter values follow from $2.
func buildUpdate(relation string, patch map[string]any, filters []gateway.Filter) (string, []any, error) {
	if err := checkRelation(writable, relation); err != nil {
		return "", nil, err
	}
	if len(filters) == 0 {
		return "", nil, errors.New("refusing update without filters")
	}
	cols := sortedKeys(patch)
	if len(cols) == 0 {
		return "", nil, errors.New("empty patch")
	}
	if err := checkColumns(cols...); err != nil {
		return "", nil, err
	}

	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = fmt.Sprintf("%s = p.%s", ident(c), ident(c))
	}
	rel := ident(relation)
	where, args, err := whereClause(rel, filters, 2)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("UPDATE %s SET %s FROM json_populate_record(NULL::%s, $1::json) p%s",
		rel, strings.Join(sets, ", "), rel, where), args, nil
}

func whereClause(table string, filters []gateway.Filter, firstArg int) (string, []any, error) {
	if len(filters) == 0 {
		return "", nil, nil
	}
	conds := make([]string, 0, len(filters))
	args := make([]any, 0, len(filters))
	for _, f := range filters {
		if err := checkColumns(f.Column); err != nil {
			return "", nil, err
		}
		col := table + "." + ident(f.Column)
		if f.Value == nil {
			conds = append(conds, col+" IS NULL")
			continue
		}
		args = append(args, f.Value)
		conds = append(conds, fmt.Sprintf("%s = $%d", col, firstArg+len(args)-1))
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

func projection(table string, cols []string) string {
	if len(cols) == 0 {
		return table + ".*"
	}
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = table + "." + ident(c)
	}
	return strings.Join(parts, ", ")
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
