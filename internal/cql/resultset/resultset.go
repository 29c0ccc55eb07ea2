// Package resultset holds the rows of a query result and the post-query
// operations applied to them.
package resultset

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dshills/QuantaCQL/internal/cql/selection"
	"github.com/dshills/QuantaCQL/internal/cql/types"
)

// ResultSet is an ordered list of rows. Rows may carry trailing hidden
// columns used for ordering until DropHidden is called.
type ResultSet struct {
	Columns []selection.Column
	Rows    [][]types.Value
	hidden  int
}

// New creates an empty result set. hidden is the number of trailing
// values per row that are not part of Columns.
func New(columns []selection.Column, hidden int) *ResultSet {
	return &ResultSet{Columns: columns, hidden: hidden}
}

// Add appends a row.
func (rs *ResultSet) Add(row []types.Value) {
	rs.Rows = append(rs.Rows, row)
}

// Size returns the number of rows.
func (rs *ResultSet) Size() int {
	return len(rs.Rows)
}

// IsEmpty reports whether the result has no rows.
func (rs *ResultSet) IsEmpty() bool {
	return len(rs.Rows) == 0
}

// Sort orders the rows with cmp. Equal rows keep their relative order.
func (rs *ResultSet) Sort(cmp func(a, b []types.Value) int) {
	sort.Stable(&rowSorter{rows: rs.Rows, cmp: cmp})
}

// Reverse reverses the row order.
func (rs *ResultSet) Reverse() {
	for i, j := 0, len(rs.Rows)-1; i < j; i, j = i+1, j-1 {
		rs.Rows[i], rs.Rows[j] = rs.Rows[j], rs.Rows[i]
	}
}

// Trim keeps at most limit rows.
func (rs *ResultSet) Trim(limit int) {
	if limit >= 0 && len(rs.Rows) > limit {
		rs.Rows = rs.Rows[:limit]
	}
}

// DropHidden removes the hidden ordering values from every row.
func (rs *ResultSet) DropHidden() {
	if rs.hidden == 0 {
		return
	}
	for i, row := range rs.Rows {
		rs.Rows[i] = row[:len(row)-rs.hidden]
	}
	rs.hidden = 0
}

// String renders the rows as an aligned table.
func (rs *ResultSet) String() string {
	widths := make([]int, len(rs.Columns))
	cells := make([][]string, len(rs.Rows))
	for i, c := range rs.Columns {
		widths[i] = len(c.Name)
	}
	for r, row := range rs.Rows {
		cells[r] = make([]string, len(rs.Columns))
		for i := range rs.Columns {
			s := "null"
			if i < len(row) && !row[i].Null {
				s = row[i].String()
			}
			cells[r][i] = s
			if len(s) > widths[i] {
				widths[i] = len(s)
			}
		}
	}

	var b strings.Builder
	header := make([]string, len(rs.Columns))
	rule := make([]string, len(rs.Columns))
	for i, c := range rs.Columns {
		header[i] = fmt.Sprintf(" %-*s ", widths[i], c.Name)
		rule[i] = strings.Repeat("-", widths[i]+2)
	}
	b.WriteString(strings.TrimRight(strings.Join(header, "|"), " ") + "\n")
	b.WriteString(strings.Join(rule, "+") + "\n")
	for _, row := range cells {
		line := make([]string, len(row))
		for i, s := range row {
			line[i] = fmt.Sprintf(" %*s ", widths[i], s)
		}
		b.WriteString(strings.TrimRight(strings.Join(line, "|"), " ") + "\n")
	}
	fmt.Fprintf(&b, "\n(%d rows)\n", len(rs.Rows))
	return b.String()
}

// rowSorter implements sort.Interface over rows.
type rowSorter struct {
	rows [][]types.Value
	cmp  func(a, b []types.Value) int
}

func (s *rowSorter) Len() int           { return len(s.rows) }
func (s *rowSorter) Less(i, j int) bool { return s.cmp(s.rows[i], s.rows[j]) < 0 }
func (s *rowSorter) Swap(i, j int)      { s.rows[i], s.rows[j] = s.rows[j], s.rows[i] }
