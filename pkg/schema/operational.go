package schema

// operationalTables back the hosting platform itself: billing, quota,
// logs, rate limits and housekeeping.
func operationalTables() []Table {
	return []Table{
		{
			Name: "subscriptions", Group: Operational, Required: true,
			Columns: []Column{
				id(),
				column("plan_code", ShortString, notNull),
				column("status", ShortString, notNull),
				column("started_at", Timestamp, notNull),
				column("ends_at", Timestamp),
				createdAt(),
			},
		},
		{
			Name: "billing_history", Group: Operational,
			Columns: []Column{
				id(),
				ref("subscription_id", "subscriptions", notNull),
				column("amount_cents", BigInt, notNull),
				column("currency", ShortString, notNull, def("'USD'")),
				column("description", Text),
				column("status", ShortString, notNull),
				column("billed_at", Timestamp, notNull, def("now()")),
			},
		},
		{
			Name: "storage_usage", Group: Operational, Required: true,
			Columns: []Column{
				id(),
				column("category", ShortString, notNull, unique),
				column("used_bytes", BigInt, notNull, def("0")),
				column("limit_bytes", BigInt, notNull, def("0")),
				column("last_calculated", Timestamp, notNull, def("now()")),
			},
		},
		{
			Name: "storage_files", Group: Operational,
			Columns: []Column{
				id(),
				column("category", ShortString, notNull),
				column("path", Text, notNull),
				column("size_bytes", BigInt, notNull),
				ref("uploaded_by", "users", onDelete("SET NULL")),
				createdAt(),
			},
			Indexes: []Index{{Columns: []string{"category"}}},
		},
		{
			Name: "performance_metrics", Group: Operational,
			Columns: []Column{
				id(),
				column("metric_name", ShortString, notNull),
				column("metric_value", Float, notNull),
				column("recorded_at", Timestamp, notNull, def("now()")),
			},
			Indexes: []Index{{Columns: []string{"metric_name", "recorded_at"}}},
		},
		{
			Name: "audit_logs", Group: Operational, Required: true,
			Columns: []Column{
				id(),
				ref("user_id", "users", onDelete("SET NULL")),
				column("action", ShortString, notNull),
				column("entity_type", ShortString),
				column("entity_id", ShortString),
				column("details", Text),
				column("ip_address", ShortString),
				createdAt(),
			},
			Indexes: []Index{{Columns: []string{"created_at"}}},
		},
		{
			Name: "security_logs", Group: Operational, Required: true,
			Columns: []Column{
				id(),
				column("event_type", ShortString, notNull),
				column("severity", ShortString, notNull),
				column("ip_address", ShortString),
				column("details", Text),
				createdAt(),
			},
			Indexes: []Index{{Columns: []string{"event_type", "created_at"}}},
		},
		{
			Name: "login_attempts", Group: Operational,
			Columns: []Column{
				id(),
				column("email", String, notNull),
				column("ip_address", ShortString),
				column("succeeded", Boolean, notNull, def("false")),
				column("attempted_at", Timestamp, notNull, def("now()")),
			},
			Indexes: []Index{{Columns: []string{"email", "attempted_at"}}},
		},
		{
			Name: "rate_limits", Group: Operational, Required: true,
			Columns: []Column{
				id(),
				column("endpoint", String, notNull),
				column("client_id", String, notNull),
				column("request_count", Integer, notNull, def("0")),
				column("window_start", Timestamp, notNull),
				column("window_end", Timestamp, notNull),
				column("blocked", Boolean, notNull, def("false")),
				updatedAt(),
			},
			Unique: [][]string{{"endpoint", "client_id"}},
		},
		{
			Name: "api_keys", Group: Operational,
			Columns: []Column{
				id(),
				ref("user_id", "users", notNull, onDelete("CASCADE")),
				column("name", String, notNull),
				column("key_hash", String, notNull, unique),
				column("scopes", Text),
				column("last_used_at", Timestamp),
				column("expires_at", Timestamp),
				column("revoked_at", Timestamp, since(2)),
				createdAt(),
			},
		},
		{
			Name: "sessions", Group: Operational,
			Columns: []Column{
				id(),
				column("session_token", String, notNull, unique),
				ref("user_id", "users", notNull, onDelete("CASCADE")),
				column("ip_address", ShortString),
				column("user_agent", Text),
				column("expires_at", Timestamp, notNull),
				createdAt(),
			},
		},
		{
			Name: "password_resets", Group: Operational,
			Columns: []Column{
				id(),
				ref("user_id", "users", notNull, onDelete("CASCADE")),
				column("token_hash", String, notNull, unique),
				column("expires_at", Timestamp, notNull),
				column("used_at", Timestamp),
			},
		},
		{
			Name: "backups", Group: Operational,
			Columns: []Column{
				id(),
				column("file_name", String, notNull),
				column("size_bytes", BigInt, notNull, def("0")),
				column("status", ShortString, notNull, def("'pending'")),
				ref("created_by", "users", onDelete("SET NULL")),
				column("started_at", Timestamp),
				column("completed_at", Timestamp),
				createdAt(),
			},
		},
		{
			Name: "backup_schedules", Group: Operational,
			Columns: []Column{
				id(),
				column("frequency", ShortString, notNull),
				column("retention_days", Integer, notNull, def("30")),
				column("next_run_at", Timestamp),
				column("enabled", Boolean, notNull, def("true")),
			},
		},
		{
			Name: "notifications", Group: Operational,
			Columns: []Column{
				id(),
				ref("user_id", "users", notNull, onDelete("CASCADE")),
				column("type", ShortString, notNull),
				column("title", String, notNull),
				column("body", Text),
				column("channel", ShortString, notNull, def("'in_app'"), since(2)),
				column("read_at", Timestamp),
				createdAt(),
			},
			Indexes: []Index{{Columns: []string{"user_id", "read_at"}}},
		},
		{
			Name: "notification_preferences", Group: Operational,
			Columns: []Column{
				id(),
				ref("user_id", "users", notNull, unique, onDelete("CASCADE")),
				column("email_enabled", Boolean, notNull, def("true")),
				column("sms_enabled", Boolean, notNull, def("false")),
				column("push_enabled", Boolean, notNull, def("true")),
			},
		},
		{
			Name: "system_alerts", Group: Operational, Required: true,
			Columns: []Column{
				id(),
				column("alert_type", ShortString, notNull),
				column("severity", ShortString, notNull),
				column("message", Text, notNull),
				column("resolved", Boolean, notNull, def("false")),
				createdAt(),
				column("resolved_at", Timestamp),
			},
			Indexes: []Index{{Columns: []string{"alert_type", "resolved"}}},
		},
		{
			Name: "email_queue", Group: Operational,
			Columns: []Column{
				id(),
				column("recipient", String, notNull),
				column("subject", String, notNull),
				column("body", Text, notNull),
				column("status", ShortString, notNull, def("'queued'")),
				column("attempts", Integer, notNull, def("0")),
				column("sent_at", Timestamp),
				createdAt(),
			},
		},
		{
			Name: "sms_queue", Group: Operational,
			Columns: []Column{
				id(),
				column("recipient", ShortString, notNull),
				column("body", Text, notNull),
				column("status", ShortString, notNull, def("'queued'")),
				column("attempts", Integer, notNull, def("0")),
				column("sent_at", Timestamp),
				createdAt(),
			},
		},
		{
			Name: "scheduled_jobs", Group: Operational,
			Columns: []Column{
				id(),
				column("job_name", ShortString, notNull, unique),
				column("schedule", ShortString, notNull),
				column("last_run_at", Timestamp),
				column("next_run_at", Timestamp),
				column("enabled", Boolean, notNull, def("true")),
			},
		},
		{
			Name: "job_runs", Group: Operational,
			Columns: []Column{
				id(),
				ref("job_id", "scheduled_jobs", notNull, onDelete("CASCADE")),
				column("status", ShortString, notNull),
				column("output", Text),
				column("started_at", Timestamp, notNull, def("now()")),
				column("finished_at", Timestamp),
			},
		},
		{
			Name: "integrations", Group: Operational,
			Columns: []Column{
				id(),
				column("provider", ShortString, notNull, unique),
				column("config", JSONB, notNull, def("'{}'")),
				column("enabled", Boolean, notNull, def("false")),
				updatedAt(),
			},
		},
		{
			Name: "feature_flags", Group: Operational, Since: 2,
			Columns: []Column{
				id(),
				column("flag_key", ShortString, notNull, unique),
				column("enabled", Boolean, notNull, def("false")),
				updatedAt(),
			},
		},
		{
			Name: "data_exports", Group: Operational, Since: 2,
			Columns: []Column{
				id(),
				ref("requested_by", "users", onDelete("SET NULL")),
				column("export_type", ShortString, notNull),
				column("status", ShortString, notNull, def("'pending'")),
				column("file_path", Text),
				createdAt(),
				column("completed_at", Timestamp),
			},
		},
	}
}
