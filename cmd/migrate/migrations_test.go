package main

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"bookmarket/internal/listing"

	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func repoMigrationsDir(t *testing.T) string {
	t.Helper()
	_, thisFile, _, ok := runtime.Caller(0)
	require.True(t, ok, "runtime.Caller failed")
	// cmd/migrate -> repo root
	return filepath.Clean(filepath.Join(filepath.Dir(thisFile), "..", "..", "db", "migrations"))
}

func readMigrations(t *testing.T) map[string]string {
	t.Helper()
	dir := repoMigrationsDir(t)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)

	out := make(map[string]string)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		b, err := os.ReadFile(filepath.Join(dir, e.Name()))
		require.NoError(t, err)
		out[e.Name()] = string(b)
	}
	require.NotEmpty(t, out, "no migrations in %s", dir)
	return out
}

func TestCollectMigrations_ParsesMigrationsDir(t *testing.T) {
	migrations, err := goose.CollectMigrations(repoMigrationsDir(t), 0, goose.MaxVersion)
	require.NoError(t, err)
	assert.NotEmpty(t, migrations)
}

func TestSQLMigrations_HaveGooseDirectives(t *testing.T) {
	for name, sql := range readMigrations(t) {
		assert.Contains(t, sql, "-- +goose Up", name)
		assert.Contains(t, sql, "-- +goose Down", name)
	}
}

func TestSQLMigrations_ListingSchema(t *testing.T) {
	var schema strings.Builder
	for _, sql := range readMigrations(t) {
		schema.WriteString(sql)
	}
	s := schema.String()

	for _, status := range listing.Statuses() {
		assert.Contains(t, s, "('"+status.String()+"')", "status %s is not seeded", status)
	}
	assert.Contains(t, s, "ON sales(book_id) WHERE status = 'AVAILABLE'")
	assert.Contains(t, s, "ON exchanges(book_offered_id)\n    WHERE status IN ('AVAILABLE', 'PENDING')")
	assert.Contains(t, s, "CHECK (price > 0)")
}
