package db

import (
	"fmt"
	"strings"
)

// Query assembles a filtered, ordered SELECT with positional arguments.
type Query struct {
	from    string
	cols    string
	where   []string
	args    []interface{}
	orderBy string
}

func NewQuery(from, cols string) *Query {
	return &Query{from: from, cols: cols}
}

// Arg registers a bind argument and returns its placeholder.
func (q *Query) Arg(v interface{}) string {
	q.args = append(q.args, v)
	return fmt.Sprintf("$%d", len(q.args))
}

// Where appends a condition; conditions are joined with AND.
func (q *Query) Where(clause string) {
	q.where = append(q.where, clause)
}

// Search requires every term to appear, case-insensitively, in at least one
// of the given column expressions.
func (q *Query) Search(terms []string, exprs ...string) {
	for _, term := range terms {
		ph := q.Arg("%" + escapeLike(term) + "%")
		ors := make([]string, len(exprs))
		for i, e := range exprs {
			ors[i] = fmt.Sprintf("%s ILIKE %s", e, ph)
		}
		q.Where("(" + strings.Join(ors, " OR ") + ")")
	}
}

func (q *Query) OrderBy(orderBy string) {
	q.orderBy = orderBy
}

// ApplyOrdering translates an "ordering" parameter such as "-start,id" into
// ORDER BY columns using allowed. Unknown fields are ignored; when nothing
// usable remains, def is used. tiebreak is always appended so that pages are
// stable across calls.
func (q *Query) ApplyOrdering(param string, allowed map[string]string, def, tiebreak string) {
	var parts []string
	for _, field := range strings.Split(param, ",") {
		field = strings.TrimSpace(field)
		dir := "ASC"
		if strings.HasPrefix(field, "-") {
			dir = "DESC"
			field = field[1:]
		}
		if col, ok := allowed[field]; ok {
			parts = append(parts, col+" "+dir)
		}
	}
	if len(parts) == 0 {
		parts = []string{def}
	}
	if tiebreak != "" {
		parts = append(parts, tiebreak)
	}
	q.orderBy = strings.Join(parts, ", ")
}

func (q *Query) whereSQL() string {
	if len(q.where) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(q.where, " AND ")
}

func (q *Query) CountSQL() string {
	return fmt.Sprintf("SELECT COUNT(*) FROM %s%s", q.from, q.whereSQL())
}

func (q *Query) CountArgs() []interface{} {
	return q.args
}

// DataSQL returns the SELECT and its arguments. A nil limit means no limit.
func (q *Query) DataSQL(limit interface{}, offset int) (string, []interface{}) {
	sql := fmt.Sprintf("SELECT %s FROM %s%s", q.cols, q.from, q.whereSQL())
	if q.orderBy != "" {
		sql += " ORDER BY " + q.orderBy
	}
	args := make([]interface{}, len(q.args), len(q.args)+2)
	copy(args, q.args)
	args = append(args, limit, offset)
	sql += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	return sql, args
}

// SearchTerms splits a search parameter on whitespace and commas.
func SearchTerms(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
