package gateway

// Query is a filtered select over one relation.
type Query struct {
	Relation string
	// Columns projects the base relation; empty selects every column.
	Columns []string
	Expand  []Expand
	Filters []Filter
	Order   []Order
	Limit   int
	// Single expects exactly one row: none yields ErrNotFound, more than one
	// ErrMultipleRows.
	Single bool
}

// Expand embeds a related record under Alias, joined on the given keys.
type Expand struct {
	Alias    string
	Relation string
	On       []Join
	Columns  []string
}

// Join pairs a column of the base relation with a column of the expanded one.
type Join struct {
	Local   string
	Foreign string
}

// Filter is an equality predicate on a base relation column.
type Filter struct {
	Column string
	Value  any
}

type Order struct {
	Column string
	Desc   bool
}

// Eq builds an equality filter.
func Eq(column string, value any) Filter {
	return Filter{Column: column, Value: value}
}

// ExpandOn builds a single-key expansion where the base relation holds the
// foreign key column and the related relation is keyed by id.
func ExpandOn(alias, relation, localColumn string, columns ...string) Expand {
	return Expand{
		Alias:    alias,
		Relation: relation,
		On:       []Join{{Local: localColumn, Foreign: "id"}},
		Columns:  columns,
	}
}

// Key returns the key the expansion is embedded under.
func (e Expand) Key() string {
	if e.Alias != "" {
		return e.Alias
	}
	return e.Relation
}
