package repository

import "strings"

// schemaTemplate is the authoritative schema. {{ts}}, {{serial}} and {{false}}/{{true}}
// are replaced per dialect by SchemaSQL.
const schemaTemplate = `
CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	username      TEXT NOT NULL UNIQUE,
	email         TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	role          TEXT NOT NULL CHECK (role IN ('admin', 'dispatcher', 'driver')),
	user_main_id  TEXT NOT NULL DEFAULT '',
	is_active     BOOLEAN NOT NULL DEFAULT {{true}},
	last_login    {{ts}},
	created_at    {{ts}} NOT NULL,
	updated_at    {{ts}} NOT NULL
);

CREATE TABLE IF NOT EXISTS addresses (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	address    TEXT NOT NULL,
	email      TEXT NOT NULL DEFAULT '',
	created_by TEXT NOT NULL DEFAULT '',
	created_at {{ts}} NOT NULL,
	updated_at {{ts}} NOT NULL
);

CREATE TABLE IF NOT EXISTS jobs (
	id                 TEXT PRIMARY KEY,
	job_number         TEXT NOT NULL UNIQUE,
	customer           TEXT NOT NULL DEFAULT '',
	uplift             TEXT NOT NULL DEFAULT '',
	offload            TEXT NOT NULL DEFAULT '',
	job_start          {{ts}},
	size               TEXT NOT NULL DEFAULT '',
	weight             TEXT NOT NULL DEFAULT '',
	commodity_code     TEXT NOT NULL DEFAULT '',
	doors              TEXT NOT NULL DEFAULT '',
	pin                TEXT NOT NULL DEFAULT '',
	slot               TEXT NOT NULL DEFAULT '',
	dg                 BOOLEAN NOT NULL DEFAULT {{false}},
	instructions       TEXT NOT NULL DEFAULT '',
	release_number     TEXT NOT NULL DEFAULT '',
	container_number   TEXT NOT NULL DEFAULT '',
	reference          TEXT NOT NULL DEFAULT '',
	current_stage      TEXT NOT NULL CHECK (current_stage IN ('accept', 'uplift', 'offload', 'done')),
	is_completed       BOOLEAN NOT NULL DEFAULT {{false}},
	assigned_to        TEXT REFERENCES users(id),
	proof_notes        TEXT,
	proof_images       TEXT,
	proof_submitted_at {{ts}},
	created_at         {{ts}} NOT NULL,
	updated_at         {{ts}} NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_jobs_assignee ON jobs (assigned_to, is_completed);
CREATE INDEX IF NOT EXISTS idx_jobs_completed_updated ON jobs (is_completed, updated_at);
CREATE INDEX IF NOT EXISTS idx_jobs_created ON jobs (created_at);

CREATE TABLE IF NOT EXISTS job_status_events (
	id         {{serial}},
	job_id     TEXT NOT NULL REFERENCES jobs(id) ON DELETE CASCADE,
	seq        INTEGER NOT NULL,
	from_stage TEXT,
	stage      TEXT NOT NULL CHECK (stage IN ('accept', 'uplift', 'offload', 'done')),
	actor_id   TEXT NOT NULL DEFAULT '',
	at         {{ts}} NOT NULL,
	UNIQUE (job_id, seq),
	UNIQUE (job_id, stage)
);

CREATE TABLE IF NOT EXISTS safety_forms (
	id           TEXT PRIMARY KEY,
	job_id       TEXT NOT NULL REFERENCES jobs(id) ON DELETE CASCADE,
	job_number   TEXT NOT NULL,
	user_id      TEXT NOT NULL REFERENCES users(id),
	first_name   TEXT NOT NULL DEFAULT '',
	surname      TEXT NOT NULL DEFAULT '',
	address_site TEXT NOT NULL DEFAULT '',
	fit_for_duty TEXT NOT NULL,
	meal_break   TEXT NOT NULL,
	ppe          TEXT NOT NULL,
	message      TEXT NOT NULL DEFAULT '',
	created_at   {{ts}} NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_safety_forms_job_number ON safety_forms (job_number, created_at);
`

// SchemaSQL renders the schema for a dialect
func SchemaSQL(dialect Dialect) string {
	var r *strings.Replacer
	switch dialect {
	case DialectPostgres:
		r = strings.NewReplacer(
			"{{ts}}", "TIMESTAMPTZ",
			"{{serial}}", "BIGSERIAL PRIMARY KEY",
			"{{true}}", "TRUE",
			"{{false}}", "FALSE",
		)
	default:
		r = strings.NewReplacer(
			"{{ts}}", "TIMESTAMP",
			"{{serial}}", "INTEGER PRIMARY KEY AUTOINCREMENT",
			"{{true}}", "1",
			"{{false}}", "0",
		)
	}
	return r.Replace(schemaTemplate)
}
