package schema

// Definition pairs a table name with its creation statement.
type Definition struct {
	Table     string
	Statement string
	Required  bool
}

// Tables returns the full catalog, referenced tables first. The slice is
// a fresh copy on every call.
func Tables() []Table {
	return append(educationalTables(), operationalTables()...)
}

// Definitions returns the ordered creation statements of every table.
// Each statement is safe to re-run.
func Definitions() []Definition {
	tables := Tables()
	defs := make([]Definition, len(tables))
	for i, t := range tables {
		defs[i] = Definition{Table: t.Name, Statement: t.CreateStatement(), Required: t.Required}
	}
	return defs
}

// Lookup returns the named table.
func Lookup(name string) (Table, bool) {
	for _, t := range Tables() {
		if t.Name == name {
			return t, true
		}
	}
	return Table{}, false
}

// RequiredTables lists the tables a usable tenant database must contain.
func RequiredTables() []string {
	var names []string
	for _, t := range Tables() {
		if t.Required {
			names = append(names, t.Name)
		}
	}
	return names
}

// TableNames lists every table in catalog order.
func TableNames() []string {
	tables := Tables()
	names := make([]string, len(tables))
	for i, t := range tables {
		names[i] = t.Name
	}
	return names
}

// Version is the newest catalog version referenced by any table or column.
// Tenant databases are stamped with it after a successful migration.
func Version() int {
	v := 1
	for _, t := range Tables() {
		if t.Since > v {
			v = t.Since
		}
		for _, c := range t.Columns {
			if c.Since > v {
				v = c.Since
			}
		}
	}
	return v
}
