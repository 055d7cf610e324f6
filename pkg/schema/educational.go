package schema

// educationalTables are the school records. They are ordered so that a
// referenced table always comes first.
func educationalTables() []Table {
	return []Table{
		{
			Name: "roles", Group: Educational, Required: true,
			Columns: []Column{
				id(),
				column("name", ShortString, notNull, unique),
				column("display_name", String, notNull),
				column("description", Text),
				column("is_system", Boolean, notNull, def("false")),
				createdAt(),
			},
		},
		{
			Name: "users", Group: Educational, Required: true,
			Columns: []Column{
				id(),
				ref("role_id", "roles", notNull),
				column("name", String, notNull),
				column("email", String, notNull, unique),
				column("phone", ShortString),
				column("password_hash", String, notNull),
				column("status", ShortString, notNull, def("'active'")),
				column("last_login_at", Timestamp, since(2)),
				createdAt(),
				updatedAt(),
			},
			Indexes: []Index{{Columns: []string{"role_id"}}},
		},
		{
			Name: "settings", Group: Educational, Required: true,
			Columns: []Column{
				id(),
				column("setting_key", ShortString, notNull, unique),
				column("setting_value", Text),
				column("setting_group", ShortString, notNull, def("'general'")),
				updatedAt(),
			},
		},
		{
			Name: "academic_years", Group: Educational,
			Columns: []Column{
				id(),
				column("name", ShortString, notNull, unique),
				column("starts_on", Date, notNull),
				column("ends_on", Date, notNull),
				column("is_current", Boolean, notNull, def("false")),
				createdAt(),
			},
		},
		{
			Name: "terms", Group: Educational,
			Columns: []Column{
				id(),
				ref("academic_year_id", "academic_years", notNull, onDelete("CASCADE")),
				column("name", ShortString, notNull),
				column("starts_on", Date, notNull),
				column("ends_on", Date, notNull),
			},
			Unique: [][]string{{"academic_year_id", "name"}},
		},
		{
			Name: "departments", Group: Educational,
			Columns: []Column{
				id(),
				column("name", String, notNull, unique),
				ref("head_user_id", "users", onDelete("SET NULL")),
				createdAt(),
			},
		},
		{
			Name: "teachers", Group: Educational,
			Columns: []Column{
				id(),
				ref("user_id", "users", notNull, unique, onDelete("CASCADE")),
				column("employee_no", ShortString, notNull, unique),
				ref("department_id", "departments", onDelete("SET NULL")),
				column("qualification", String),
				column("hired_on", Date),
				createdAt(),
			},
		},
		{
			Name: "classes", Group: Educational,
			Columns: []Column{
				id(),
				column("name", ShortString, notNull),
				column("level", Integer, notNull, def("1")),
				ref("academic_year_id", "academic_years", notNull),
				ref("class_teacher_id", "teachers", onDelete("SET NULL")),
				column("capacity", Integer, notNull, def("40")),
				createdAt(),
			},
			Unique: [][]string{{"academic_year_id", "name"}},
		},
		{
			Name: "sections", Group: Educational,
			Columns: []Column{
				id(),
				ref("class_id", "classes", notNull, onDelete("CASCADE")),
				column("name", ShortString, notNull),
			},
			Unique: [][]string{{"class_id", "name"}},
		},
		{
			Name: "parents", Group: Educational,
			Columns: []Column{
				id(),
				ref("user_id", "users", notNull, unique, onDelete("CASCADE")),
				column("occupation", String),
				column("address", Text),
				createdAt(),
			},
		},
		{
			Name: "students", Group: Educational,
			Columns: []Column{
				id(),
				ref("user_id", "users", unique, onDelete("SET NULL")),
				column("admission_no", ShortString, notNull, unique),
				column("first_name", String, notNull),
				column("last_name", String, notNull),
				ref("class_id", "classes", onDelete("SET NULL")),
				ref("section_id", "sections", onDelete("SET NULL")),
				ref("parent_id", "parents", onDelete("SET NULL")),
				column("date_of_birth", Date),
				column("gender", ShortString),
				column("admitted_on", Date),
				column("status", ShortString, notNull, def("'active'")),
				column("blood_group", ShortString, since(2)),
				createdAt(),
				updatedAt(),
			},
			Indexes: []Index{{Columns: []string{"class_id"}}, {Columns: []string{"parent_id"}}},
		},
		{
			Name: "subjects", Group: Educational,
			Columns: []Column{
				id(),
				column("name", String, notNull),
				column("code", ShortString, notNull, unique),
				ref("department_id", "departments", onDelete("SET NULL")),
			},
		},
		{
			Name: "class_subjects", Group: Educational,
			Columns: []Column{
				id(),
				ref("class_id", "classes", notNull, onDelete("CASCADE")),
				ref("subject_id", "subjects", notNull, onDelete("CASCADE")),
				ref("teacher_id", "teachers", onDelete("SET NULL")),
			},
			Unique: [][]string{{"class_id", "subject_id"}},
		},
		{
			Name: "timetables", Group: Educational,
			Columns: []Column{
				id(),
				ref("class_subject_id", "class_subjects", notNull, onDelete("CASCADE")),
				column("day_of_week", Integer, notNull),
				column("starts_at", Time, notNull),
				column("ends_at", Time, notNull),
				column("room", ShortString),
			},
		},
		{
			Name: "attendance", Group: Educational,
			Columns: []Column{
				id(),
				ref("student_id", "students", notNull, onDelete("CASCADE")),
				ref("class_id", "classes", notNull),
				column("attendance_date", Date, notNull),
				column("status", ShortString, notNull),
				column("remarks", Text),
				ref("recorded_by", "users", onDelete("SET NULL")),
				createdAt(),
			},
			Unique:  [][]string{{"student_id", "attendance_date"}},
			Indexes: []Index{{Columns: []string{"class_id", "attendance_date"}}},
		},
		{
			Name: "exams", Group: Educational,
			Columns: []Column{
				id(),
				ref("term_id", "terms", notNull),
				column("name", String, notNull),
				column("exam_type", ShortString, notNull, def("'terminal'")),
				column("starts_on", Date),
				column("ends_on", Date),
			},
		},
		{
			Name: "grading_scales", Group: Educational,
			Columns: []Column{
				id(),
				column("grade", ShortString, notNull, unique),
				column("min_score", Score, notNull),
				column("max_score", Score, notNull),
				column("remark", String),
			},
		},
		{
			Name: "exam_results", Group: Educational,
			Columns: []Column{
				id(),
				ref("exam_id", "exams", notNull, onDelete("CASCADE")),
				ref("student_id", "students", notNull, onDelete("CASCADE")),
				ref("subject_id", "subjects", notNull),
				column("score", Score, notNull),
				column("grade", ShortString),
				column("remarks", Text),
				createdAt(),
			},
			Unique: [][]string{{"exam_id", "student_id", "subject_id"}},
		},
		{
			Name: "assignments", Group: Educational,
			Columns: []Column{
				id(),
				ref("class_subject_id", "class_subjects", notNull, onDelete("CASCADE")),
				column("title", String, notNull),
				column("description", Text),
				column("due_at", Timestamp),
				createdAt(),
			},
		},
		{
			Name: "assignment_submissions", Group: Educational,
			Columns: []Column{
				id(),
				ref("assignment_id", "assignments", notNull, onDelete("CASCADE")),
				ref("student_id", "students", notNull, onDelete("CASCADE")),
				column("file_path", Text),
				column("score", Score),
				column("submitted_at", Timestamp, notNull, def("now()")),
			},
			Unique: [][]string{{"assignment_id", "student_id"}},
		},
		{
			Name: "fee_types", Group: Educational,
			Columns: []Column{
				id(),
				column("name", String, notNull, unique),
				column("description", Text),
			},
		},
		{
			Name: "fees", Group: Educational,
			Columns: []Column{
				id(),
				ref("fee_type_id", "fee_types", notNull),
				ref("class_id", "classes", notNull, onDelete("CASCADE")),
				ref("term_id", "terms", notNull),
				column("amount", Money, notNull),
				column("due_on", Date),
			},
			Unique: [][]string{{"fee_type_id", "class_id", "term_id"}},
		},
		{
			Name: "invoices", Group: Educational,
			Columns: []Column{
				id(),
				column("invoice_no", ShortString, notNull, unique),
				ref("student_id", "students", notNull),
				ref("term_id", "terms"),
				column("total_amount", Money, notNull),
				column("discount_amount", Money, notNull, def("0"), since(2)),
				column("status", ShortString, notNull, def("'unpaid'")),
				column("issued_on", Date, notNull, def("CURRENT_DATE")),
				column("due_on", Date),
				createdAt(),
			},
			Indexes: []Index{{Columns: []string{"student_id"}}},
		},
		{
			Name: "payments", Group: Educational,
			Columns: []Column{
				id(),
				ref("invoice_id", "invoices", notNull),
				column("amount", Money, notNull),
				column("method", ShortString, notNull),
				column("reference", ShortString, unique),
				column("paid_at", Timestamp, notNull, def("now()")),
				ref("recorded_by", "users", onDelete("SET NULL")),
			},
			Indexes: []Index{{Columns: []string{"invoice_id"}}},
		},
		{
			Name: "library_books", Group: Educational,
			Columns: []Column{
				id(),
				column("isbn", ShortString, unique),
				column("title", String, notNull),
				column("author", String),
				column("copies", Integer, notNull, def("1")),
				column("available", Integer, notNull, def("1")),
				createdAt(),
			},
		},
		{
			Name: "book_loans", Group: Educational,
			Columns: []Column{
				id(),
				ref("book_id", "library_books", notNull),
				ref("user_id", "users", notNull),
				column("loaned_on", Date, notNull, def("CURRENT_DATE")),
				column("due_on", Date, notNull),
				column("returned_on", Date),
			},
		},
		{
			Name: "announcements", Group: Educational,
			Columns: []Column{
				id(),
				column("title", String, notNull),
				column("body", Text, notNull),
				column("audience", ShortString, notNull, def("'all'")),
				ref("published_by", "users", onDelete("SET NULL")),
				column("published_at", Timestamp),
				createdAt(),
			},
		},
		{
			Name: "events", Group: Educational,
			Columns: []Column{
				id(),
				column("title", String, notNull),
				column("description", Text),
				column("location", String),
				column("starts_at", Timestamp, notNull),
				column("ends_at", Timestamp),
			},
		},
		{
			Name: "messages", Group: Educational,
			Columns: []Column{
				id(),
				ref("sender_id", "users", notNull),
				ref("recipient_id", "users", notNull),
				column("subject", String),
				column("body", Text, notNull),
				column("read_at", Timestamp),
				createdAt(),
			},
			Indexes: []Index{{Columns: []string{"recipient_id", "read_at"}}},
		},
	}
}
