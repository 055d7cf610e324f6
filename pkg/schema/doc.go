// Package schema is the catalog of tables every tenant database contains.
//
// Tables are declared as data (Table, Column, Index) and every DDL
// statement is generated from those descriptors:
//
//	for _, def := range schema.Definitions() {
//	    db.Exec(def.Statement) // CREATE TABLE IF NOT EXISTS ...
//	}
//
// The catalog is ordered so that a table referenced by a foreign key is
// created before any table referencing it. Columns carry the catalog
// version that introduced them; columns newer than their table are added
// to existing databases with ADD COLUMN IF NOT EXISTS. Table and column
// names are the contract with every consumer: adding a column is
// backward-compatible, renaming or removing one is not.
//
// DefaultSeeds holds the rows inserted into a fresh database (roles,
// settings, grading scales). Seed statements use ON CONFLICT DO NOTHING
// on the natural key so re-running them never duplicates rows.
package schema
