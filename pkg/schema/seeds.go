package schema

import (
	"fmt"
	"strings"

	"github.com/doodlesbykumbi/schoolhost/pkg/model"
)

// Seed is a set of default rows inserted only when absent. Conflict names
// the natural key that makes the insert idempotent.
type Seed struct {
	Table    string
	Columns  []string
	Conflict []string
	Rows     [][]interface{}
}

// InsertStatement renders a single multi-row insert with gorm placeholders.
func (s Seed) InsertStatement() (string, []interface{}) {
	placeholder := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(s.Columns)), ", ") + ")"
	values := make([]string, len(s.Rows))
	args := make([]interface{}, 0, len(s.Rows)*len(s.Columns))
	for i, row := range s.Rows {
		values[i] = placeholder
		args = append(args, row...)
	}
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s ON CONFLICT (%s) DO NOTHING",
		s.Table,
		strings.Join(s.Columns, ", "),
		strings.Join(values, ", "),
		strings.Join(s.Conflict, ", "),
	)
	return stmt, args
}

// DefaultSeeds returns the rows every tenant database starts with.
func DefaultSeeds() []Seed {
	return []Seed{
		{
			Table:    "roles",
			Columns:  []string{"name", "display_name", "description", "is_system"},
			Conflict: []string{"name"},
			Rows: [][]interface{}{
				{model.RoleSuperAdmin, "Super Administrator", "Platform operator with full access", true},
				{model.RoleSchoolAdmin, "School Administrator", "Manages the school account", true},
				{model.RoleTeacher, "Teacher", "Teaching staff", true},
				{model.RoleStudent, "Student", "Enrolled student", true},
				{model.RoleParent, "Parent", "Parent or guardian", true},
				{model.RoleAccountant, "Accountant", "Manages fees and payments", true},
				{model.RoleLibrarian, "Librarian", "Manages the library", true},
			},
		},
		{
			Table:    "settings",
			Columns:  []string{"setting_key", "setting_value", "setting_group"},
			Conflict: []string{"setting_key"},
			Rows: [][]interface{}{
				{"school_name", "", "general"},
				{"timezone", "UTC", "general"},
				{"language", "en", "general"},
				{"currency", "USD", "finance"},
				{"date_format", "YYYY-MM-DD", "general"},
				{"terms_per_year", "3", "academic"},
				{"attendance_grace_minutes", "15", "academic"},
				{"pass_mark", "40", "academic"},
				{"max_upload_mb", "10", "storage"},
				{"session_timeout_minutes", "60", "security"},
			},
		},
		{
			Table:    "grading_scales",
			Columns:  []string{"grade", "min_score", "max_score", "remark"},
			Conflict: []string{"grade"},
			Rows: [][]interface{}{
				{"A", 70, 100, "Excellent"},
				{"B", 60, 69.99, "Very good"},
				{"C", 50, 59.99, "Good"},
				{"D", 45, 49.99, "Fair"},
				{"E", 40, 44.99, "Pass"},
				{"F", 0, 39.99, "Fail"},
			},
		},
	}
}

// SeedRowCount is the number of default rows a fully seeded database holds.
func SeedRowCount() int {
	n := 0
	for _, s := range DefaultSeeds() {
		n += len(s.Rows)
	}
	return n
}
