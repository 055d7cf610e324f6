package schema

import (
	"fmt"
	"strings"
)

// Group partitions the catalog for reporting.
type Group string

const (
	Educational Group = "educational"
	Operational Group = "operational"
)

// Column types used across the catalog.
const (
	BigSerial   = "BIGSERIAL"
	BigInt      = "BIGINT"
	Integer     = "INTEGER"
	Text        = "TEXT"
	Boolean     = "BOOLEAN"
	Date        = "DATE"
	Time        = "TIME"
	Timestamp   = "TIMESTAMPTZ"
	Money       = "NUMERIC(12,2)"
	Score       = "NUMERIC(6,2)"
	Float       = "DOUBLE PRECISION"
	JSONB       = "JSONB"
	ShortString = "VARCHAR(64)"
	String      = "VARCHAR(255)"
)

// Column describes one column. Since is the catalog version that
// introduced it; columns newer than their table are added in place by
// migrations.
type Column struct {
	Name       string
	Type       string
	PrimaryKey bool
	NotNull    bool
	Unique     bool
	Default    string
	Since      int
	// References names the table whose id this column points at.
	References string
	OnDelete   string
}

// Definition renders the column as it appears in CREATE TABLE and
// ALTER TABLE ADD COLUMN.
func (c Column) Definition() string {
	var b strings.Builder
	b.WriteString(c.Name)
	b.WriteByte(' ')
	b.WriteString(c.Type)
	if c.PrimaryKey {
		b.WriteString(" PRIMARY KEY")
	}
	if c.NotNull {
		b.WriteString(" NOT NULL")
	}
	if c.Unique {
		b.WriteString(" UNIQUE")
	}
	if c.Default != "" {
		b.WriteString(" DEFAULT ")
		b.WriteString(c.Default)
	}
	if c.References != "" {
		fmt.Fprintf(&b, " REFERENCES %s (id)", c.References)
		if c.OnDelete != "" {
			b.WriteString(" ON DELETE ")
			b.WriteString(c.OnDelete)
		}
	}
	return b.String()
}

// Index is a secondary index.
type Index struct {
	Name    string
	Columns []string
	Unique  bool
}

// Table is the declarative descriptor every DDL statement is generated from.
type Table struct {
	Name  string
	Group Group
	// Required tables must exist for a tenant database to be usable.
	Required bool
	Since    int
	Columns  []Column
	// Unique lists multi-column uniqueness constraints.
	Unique  [][]string
	Indexes []Index
}

func (t Table) since() int {
	if t.Since < 1 {
		return 1
	}
	return t.Since
}

// Column returns the named column.
func (t Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// ColumnNames lists the table's columns in declaration order.
func (t Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// References lists the distinct tables this table points at.
func (t Table) References() []string {
	var refs []string
	seen := map[string]bool{}
	for _, c := range t.Columns {
		if c.References != "" && !seen[c.References] {
			seen[c.References] = true
			refs = append(refs, c.References)
		}
	}
	return refs
}

// CreateStatement returns an idempotent CREATE TABLE for the table's
// current shape.
func (t Table) CreateStatement() string {
	lines := make([]string, 0, len(t.Columns)+len(t.Unique))
	for _, c := range t.Columns {
		lines = append(lines, "    "+c.Definition())
	}
	for _, u := range t.Unique {
		lines = append(lines, fmt.Sprintf("    UNIQUE (%s)", strings.Join(u, ", ")))
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n%s\n)", t.Name, strings.Join(lines, ",\n"))
}

// AddColumnStatements returns one idempotent ALTER TABLE per column that
// was added after the table itself.
func (t Table) AddColumnStatements() []string {
	var stmts []string
	for _, c := range t.Columns {
		if c.Since > t.since() {
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ADD COLUMN IF NOT EXISTS %s", t.Name, c.Definition()))
		}
	}
	return stmts
}

// IndexStatements returns idempotent CREATE INDEX statements.
func (t Table) IndexStatements() []string {
	stmts := make([]string, 0, len(t.Indexes))
	for _, idx := range t.Indexes {
		kind := "INDEX"
		if idx.Unique {
			kind = "UNIQUE INDEX"
		}
		name := idx.Name
		if name == "" {
			name = fmt.Sprintf("idx_%s_%s", t.Name, strings.Join(idx.Columns, "_"))
		}
		stmts = append(stmts, fmt.Sprintf("CREATE %s IF NOT EXISTS %s ON %s (%s)",
			kind, name, t.Name, strings.Join(idx.Columns, ", ")))
	}
	return stmts
}

// Statements returns every statement needed to bring the table to its
// current shape, whether or not it already exists.
func (t Table) Statements() []string {
	stmts := []string{t.CreateStatement()}
	stmts = append(stmts, t.AddColumnStatements()...)
	return append(stmts, t.IndexStatements()...)
}

type columnOption func(*Column)

func column(name, typ string, opts ...columnOption) Column {
	c := Column{Name: name, Type: typ}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

func notNull(c *Column) { c.NotNull = true }
func unique(c *Column)  { c.Unique = true }

func def(value string) columnOption {
	return func(c *Column) { c.Default = value }
}

func since(version int) columnOption {
	return func(c *Column) { c.Since = version }
}

func onDelete(action string) columnOption {
	return func(c *Column) { c.OnDelete = action }
}

func id() Column {
	return Column{Name: "id", Type: BigSerial, PrimaryKey: true}
}

func ref(name, table string, opts ...columnOption) Column {
	return column(name, BigInt, append([]columnOption{func(c *Column) { c.References = table }}, opts...)...)
}

func createdAt() Column {
	return column("created_at", Timestamp, notNull, def("now()"))
}

func updatedAt() Column {
	return column("updated_at", Timestamp, notNull, def("now()"))
}
