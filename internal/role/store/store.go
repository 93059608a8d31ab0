// Package store answers "which role does this subject hold" from the
// profiles table, plus an in-memory variant for development.
package store

import "propmaster/internal/session/ports"

// Schema creates the profiles table when the deployment owns it. Hosted
// providers create the row from a sign-up trigger instead.
const Schema = `
CREATE TABLE IF NOT EXISTS profiles (
	id         TEXT PRIMARY KEY,
	full_name  TEXT NOT NULL DEFAULT '',
	role       TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

var (
	_ ports.RoleStore = (*PostgresStore)(nil)
	_ ports.RoleStore = (*InMemoryStore)(nil)
)
