package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetEnv_Default(t *testing.T) {
	t.Setenv("ECOZBITE_TEST_MISSING", "")
	assert.Equal(t, "fallback", GetEnv("ECOZBITE_TEST_MISSING", "fallback"))
}

func TestGetEnv_Set(t *testing.T) {
	t.Setenv("ECOZBITE_TEST_PORT", "9090")
	assert.Equal(t, "9090", GetEnv("ECOZBITE_TEST_PORT", "8080"))
}

func TestGetInt(t *testing.T) {
	t.Setenv("ECOZBITE_TEST_INT", "42")
	assert.Equal(t, 42, GetInt("ECOZBITE_TEST_INT", 1))

	t.Setenv("ECOZBITE_TEST_INT", "not-a-number")
	assert.Equal(t, 1, GetInt("ECOZBITE_TEST_INT", 1))
}

func TestGetDuration(t *testing.T) {
	t.Setenv("ECOZBITE_TEST_TIMEOUT", "250ms")
	assert.Equal(t, 250*time.Millisecond, GetDuration("ECOZBITE_TEST_TIMEOUT", time.Second))

	t.Setenv("ECOZBITE_TEST_TIMEOUT", "soon")
	assert.Equal(t, time.Second, GetDuration("ECOZBITE_TEST_TIMEOUT", time.Second))
}

func TestLoad_MissingFileIsNotAnError(t *testing.T) {
	err := Load(filepath.Join(t.TempDir(), "does-not-exist.env"))
	assert.NoError(t, err)
}

func TestLoad_ReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("ECOZBITE_TEST_FROM_FILE=hello\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("ECOZBITE_TEST_FROM_FILE") })

	require.NoError(t, Load(path))
	assert.Equal(t, "hello", os.Getenv("ECOZBITE_TEST_FROM_FILE"))
}
