package core

import (
	"fmt"
	"strings"
)

// Clause accumulates filter conditions for a query. Conditions added through
// the helpers are joined with AND; Or folds the set accumulated so far into
// one side of an OR. Build renders the expression without the WHERE keyword.
type Clause struct {
	frags []string
	args  []any
}

// NewClause returns an empty condition set. An empty set renders to nothing,
// so queries built from it match every row.
func NewClause() *Clause {
	return &Clause{}
}

func (c *Clause) add(frag string, args ...any) *Clause {
	c.frags = append(c.frags, frag)
	c.args = append(c.args, args...)
	return c
}

// Eq adds column = value.
func (c *Clause) Eq(column string, value any) *Clause {
	return c.add(fmt.Sprintf("%s = ?", quoteIdent(column)), value)
}

// Ne adds column <> value.
func (c *Clause) Ne(column string, value any) *Clause {
	return c.add(fmt.Sprintf("%s <> ?", quoteIdent(column)), value)
}

// Gt adds column > value.
func (c *Clause) Gt(column string, value any) *Clause {
	return c.add(fmt.Sprintf("%s > ?", quoteIdent(column)), value)
}

// Gte adds column >= value.
func (c *Clause) Gte(column string, value any) *Clause {
	return c.add(fmt.Sprintf("%s >= ?", quoteIdent(column)), value)
}

// Lt adds column < value.
func (c *Clause) Lt(column string, value any) *Clause {
	return c.add(fmt.Sprintf("%s < ?", quoteIdent(column)), value)
}

// Lte adds column <= value.
func (c *Clause) Lte(column string, value any) *Clause {
	return c.add(fmt.Sprintf("%s <= ?", quoteIdent(column)), value)
}

// Like adds column LIKE pattern.
func (c *Clause) Like(column string, pattern string) *Clause {
	return c.add(fmt.Sprintf("%s LIKE ?", quoteIdent(column)), pattern)
}

// IsNull adds column IS NULL.
func (c *Clause) IsNull(column string) *Clause {
	return c.add(fmt.Sprintf("%s IS NULL", quoteIdent(column)))
}

// IsNotNull adds column IS NOT NULL.
func (c *Clause) IsNotNull(column string) *Clause {
	return c.add(fmt.Sprintf("%s IS NOT NULL", quoteIdent(column)))
}

// In adds column IN (values...). An empty value list matches no rows.
func (c *Clause) In(column string, values ...any) *Clause {
	if len(values) == 0 {
		return c.add("1 = 0")
	}
	return c.add(fmt.Sprintf("%s IN (%s)", quoteIdent(column), placeholders(len(values))), values...)
}

// Raw adds a hand-written condition fragment with its placeholder arguments.
func (c *Clause) Raw(cond string, args ...any) *Clause {
	if strings.TrimSpace(cond) == "" {
		return c
	}
	return c.add(cond, args...)
}

// And appends other's conditions as a single parenthesized fragment.
func (c *Clause) And(other *Clause) *Clause {
	if other.Empty() {
		return c
	}
	expr, args := other.Build()
	return c.add("("+expr+")", args...)
}

// Or combines everything accumulated so far with other:
// (current) OR (other). An empty receiver takes other's fragments verbatim.
func (c *Clause) Or(other *Clause) *Clause {
	if other.Empty() {
		return c
	}
	if c.Empty() {
		c.frags = append(c.frags, other.frags...)
		c.args = append(c.args, other.args...)
		return c
	}
	right, rargs := other.Build()
	left, largs := c.Build()
	args := make([]any, 0, len(largs)+len(rargs))
	args = append(args, largs...)
	args = append(args, rargs...)
	c.frags = []string{"(" + left + ") OR (" + right + ")"}
	c.args = args
	return c
}

// Empty reports whether no conditions were added.
func (c *Clause) Empty() bool {
	return c == nil || len(c.frags) == 0
}

// Build renders the conditions joined with AND, without the WHERE keyword,
// and the placeholder arguments in matching order.
func (c *Clause) Build() (string, []any) {
	if c.Empty() {
		return "", nil
	}
	return strings.Join(c.frags, " AND "), c.args
}
