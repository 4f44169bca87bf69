// Package storage is the SQLite-backed medication store: versioned schema
// migrations, the setup guard, the legacy weekday migration and the
// repositories for medications, stock, movements, alerts and schedules.
package storage
