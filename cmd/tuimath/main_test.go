package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/tuimath/internal/model"
	"github.com/verte-zerg/tuimath/internal/store"
)

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))
	t.Setenv("XDG_STATE_HOME", filepath.Join(dir, "state"))
	for _, key := range []string{"TUIMATH_DB_PATH", "TUIMATH_QUOTA_BYTES", "TUIMATH_LOG_LEVEL", "TUIMATH_HISTORY_LIMIT"} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestUserCommands(t *testing.T) {
	isolate(t)

	_, err := execute(t, "user", "create", "Ada", "--max", "50", "--ops", "add,mul")
	require.NoError(t, err)
	_, err = execute(t, "user", "create", "Grace")
	require.NoError(t, err)

	out, err := execute(t, "user", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "* Ada")
	assert.Contains(t, out, "  Grace")

	_, err = execute(t, "user", "use", "Grace")
	require.NoError(t, err)
	out, err = execute(t, "user", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "* Grace")

	out, err = execute(t, "user", "prefs", "Ada")
	require.NoError(t, err)
	assert.Contains(t, out, "Max number: 50")
	assert.Contains(t, out, "Operations: + ×")

	out, err = execute(t, "user", "prefs", "Ada", "--length", "25", "--sound=false")
	require.NoError(t, err)
	assert.Contains(t, out, "Session length: 25")
	assert.Contains(t, out, "Sound: false")
	assert.Contains(t, out, "Max number: 50")

	_, err = execute(t, "user", "rename", "Ada", "Lovelace")
	require.NoError(t, err)
	_, err = execute(t, "user", "delete", "Lovelace")
	require.NoError(t, err)

	out, err = execute(t, "user", "list")
	require.NoError(t, err)
	assert.NotContains(t, out, "Lovelace")

	_, err = execute(t, "user", "use", "Nobody")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestUserCreateRejectsInvalidPreferences(t *testing.T) {
	isolate(t)

	_, err := execute(t, "user", "create", "Ada", "--length", "0")
	require.ErrorIs(t, err, store.ErrValidation)

	_, err = execute(t, "user", "create", "Ada", "--ops", "pow")
	require.Error(t, err)
}

func TestConfigFileAppliesToNewUsers(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config", "tuimath", "config.toml")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("[practice]\nsession-length = 15\n"), 0o644))

	_, err := execute(t, "user", "create", "Ada")
	require.NoError(t, err)
	out, err := execute(t, "user", "prefs")
	require.NoError(t, err)
	assert.Contains(t, out, "Session length: 15")
}

func TestStrategiesAndPlainStats(t *testing.T) {
	isolate(t)

	_, err := execute(t, "user", "create", "Ada")
	require.NoError(t, err)

	out, err := execute(t, "strategies")
	require.NoError(t, err)
	assert.Contains(t, out, "mul_by_nine")

	out, err = execute(t, "stats", "--plain")
	require.NoError(t, err)
	assert.Contains(t, out, "Summary for Ada")
	assert.Contains(t, out, "No strategy stats yet.")

	_, err = execute(t, "stats", "--plain", "--since", "yesterday")
	require.Error(t, err)
}

func TestStatsWithoutUser(t *testing.T) {
	isolate(t)

	_, err := execute(t, "stats", "--plain")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "user create")
}

func TestExportImportRoundTrip(t *testing.T) {
	dir := isolate(t)

	_, err := execute(t, "user", "create", "Ada")
	require.NoError(t, err)

	for _, ext := range []string{"json", "yaml"} {
		t.Run(ext, func(t *testing.T) {
			path := filepath.Join(dir, "backup."+ext)
			_, err := execute(t, "export", "--format", ext, "--out", path)
			require.NoError(t, err)

			_, err = execute(t, "user", "delete", "Ada")
			require.NoError(t, err)

			_, err = execute(t, "import", path)
			require.NoError(t, err)

			out, err := execute(t, "user", "list")
			require.NoError(t, err)
			assert.Contains(t, out, "* Ada")
		})
	}
}

func TestImportDocumentRejectsInvalid(t *testing.T) {
	st := store.New(store.NewMemoryBackend(0))
	_, err := st.CreateUser(model.CreateUserInput{Name: "Ada"})
	require.NoError(t, err)
	before := st.Data()

	require.ErrorIs(t, importDocument(st, []byte("users: 3\n"), "yaml"), store.ErrValidation)
	require.ErrorIs(t, importDocument(st, []byte("{}"), "json"), store.ErrValidation)
	require.Error(t, importDocument(st, []byte("{}"), "xml"))
	assert.Equal(t, before, st.Data())
}

func TestExportDocumentYAML(t *testing.T) {
	st := store.New(store.NewMemoryBackend(0))
	_, err := st.CreateUser(model.CreateUserInput{Name: "Ada"})
	require.NoError(t, err)

	raw, err := exportDocument(st, "yaml")
	require.NoError(t, err)
	text := string(raw)
	assert.True(t, strings.HasPrefix(text, "users:"), text)
	assert.Contains(t, text, "name: Ada")
	assert.Contains(t, text, "sessionLength: 10")
}

func TestFormatFromPath(t *testing.T) {
	assert.Equal(t, "yaml", formatFromPath("a.YML"))
	assert.Equal(t, "yaml", formatFromPath("dir/a.yaml"))
	assert.Equal(t, "json", formatFromPath("a.json"))
	assert.Equal(t, "json", formatFromPath("noext"))
}

func TestMergePreferencesPatch(t *testing.T) {
	fileLength, flagLength, flagMax := 15, 30, 40
	dst := model.PreferencesPatch{SessionLength: &fileLength}
	mergePreferencesPatch(&dst, model.PreferencesPatch{SessionLength: &flagLength, MaxNumber: &flagMax})
	require.NotNil(t, dst.SessionLength)
	assert.Equal(t, 30, *dst.SessionLength)
	assert.Equal(t, 40, *dst.MaxNumber)
	assert.Nil(t, dst.Operations)
}
