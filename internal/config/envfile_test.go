package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadEnvFileFillsMissingVars(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.env")
	content := "# comment\n" +
		"export BOT_NAME=owl\n" +
		"QUOTED='hello world'\n" +
		"ALREADY_SET=from-file\n" +
		"malformed line\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("ALREADY_SET", "from-env")
	t.Setenv("BOT_NAME", "")
	os.Unsetenv("BOT_NAME")
	os.Unsetenv("QUOTED")

	require.NoError(t, LoadEnvFile(path))
	require.Equal(t, "owl", os.Getenv("BOT_NAME"))
	require.Equal(t, "hello world", os.Getenv("QUOTED"))
	require.Equal(t, "from-env", os.Getenv("ALREADY_SET"))
}

func TestLoadEnvFileMissingFileIsNoError(t *testing.T) {
	require.NoError(t, LoadEnvFile(filepath.Join(t.TempDir(), "absent.env")))
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("STR_VAR", "value")
	t.Setenv("INT_VAR", "42")
	t.Setenv("BAD_INT", "nope")

	require.Equal(t, "value", Env("STR_VAR", "fallback"))
	require.Equal(t, "fallback", Env("NO_SUCH_VAR", "fallback"))
	require.Equal(t, 42, EnvInt("INT_VAR", 7))
	require.Equal(t, 7, EnvInt("BAD_INT", 7))
	require.Equal(t, 7, EnvInt("NO_SUCH_INT", 7))
}
