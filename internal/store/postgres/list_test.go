package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/alanyoungcy/roundkeeper/internal/domain"
)

func TestListQuery(t *testing.T) {
	since := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	q, args := listQuery("SELECT report FROM tick_reports WHERE 1=1", "started_at", domain.ListOpts{
		Since:  &since,
		Limit:  20,
		Offset: 40,
	})

	assert.Equal(t, "SELECT report FROM tick_reports WHERE 1=1 AND started_at >= $1 ORDER BY started_at DESC LIMIT $2 OFFSET $3", q)
	assert.Equal(t, []any{since, 20, 40}, args)
}

func TestListQuery_NoOpts(t *testing.T) {
	q, args := listQuery("SELECT id FROM audit_log WHERE 1=1", "created_at", domain.ListOpts{})

	assert.Equal(t, "SELECT id FROM audit_log WHERE 1=1 ORDER BY created_at DESC", q)
	assert.Empty(t, args)
}

func TestDSN(t *testing.T) {
	assert.Equal(t, "postgres://k:pw@db:5432/keeper?sslmode=disable",
		DSN(ClientConfig{Host: "db", Database: "keeper", User: "k", Password: "pw"}))
	assert.Equal(t, "postgres://override", DSN(ClientConfig{DSN: "postgres://override", Host: "db"}))
}

func TestDSN_EscapesCredentials(t *testing.T) {
	dsn := DSN(ClientConfig{Host: "db", Port: 6432, Database: "keeper", User: "k", Password: "p@ss/word", SSLMode: "require"})
	assert.Equal(t, "postgres://k:p%40ss%2Fword@db:6432/keeper?sslmode=require", dsn)
}

func TestMigrationFiles(t *testing.T) {
	names, err := migrationFiles()
	assert.NoError(t, err)
	assert.Equal(t, []string{"001_keeper.sql"}, names)
}
