package postgres

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMigrations_Embedded(t *testing.T) {
	ms, err := loadMigrations(migrationFiles)
	require.NoError(t, err)
	require.Len(t, ms, 3)

	for i, m := range ms {
		assert.Equal(t, i+1, m.Version)
	}
	assert.Contains(t, ms[0].SQL, "communities")
	assert.Contains(t, ms[1].SQL, "members")
	assert.Contains(t, ms[2].SQL, "owner_sessions")
	assert.Contains(t, ms[2].SQL, "owner_login_attempts")
}

func TestLoadMigrations_Order(t *testing.T) {
	fsys := fstest.MapFS{
		"migrations/010_late.sql":  {Data: []byte("SELECT 10")},
		"migrations/002_early.sql": {Data: []byte("SELECT 2")},
	}
	ms, err := loadMigrations(fsys)
	require.NoError(t, err)
	require.Len(t, ms, 2)
	assert.Equal(t, 2, ms[0].Version)
	assert.Equal(t, "010_late.sql", ms[1].Name)
}

func TestLoadMigrations_Invalid(t *testing.T) {
	tests := map[string]fstest.MapFS{
		"no number": {"migrations/init.sql": {Data: []byte("x")}},
		"bad number": {"migrations/abc_init.sql": {Data: []byte("x")}},
		"duplicate": {
			"migrations/001_a.sql": {Data: []byte("x")},
			"migrations/1_b.sql":   {Data: []byte("y")},
		},
	}
	for name, fsys := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := loadMigrations(fsys)
			assert.Error(t, err)
		})
	}
}
