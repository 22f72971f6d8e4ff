package static

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteJSON_KeepsNonASCIIAndIndents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	in := map[string]string{"name": "Świętokrzyska & Żelazna"}

	require.NoError(t, WriteJSON(path, in))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(raw)
	assert.Contains(t, text, "Świętokrzyska & Żelazna")
	assert.NotContains(t, text, `\u`)
	assert.True(t, strings.HasPrefix(text, "{\n    \"name\""), text)

	var out map[string]string
	require.NoError(t, ReadJSON(path, &out))
	assert.Equal(t, in, out)
}

func TestWriteJSON_OverwritesAndLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.json")

	require.NoError(t, WriteJSON(path, []int{1, 2, 3}))
	require.NoError(t, WriteJSON(path, []int{4}))

	var out []int
	require.NoError(t, ReadJSON(path, &out))
	assert.Equal(t, []int{4}, out)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestReadJSON_Errors(t *testing.T) {
	dir := t.TempDir()

	var v interface{}
	err := ReadJSON(filepath.Join(dir, "missing.json"), &v)
	assert.ErrorIs(t, err, os.ErrNotExist)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("[{"), 0644))
	assert.Error(t, ReadJSON(bad, &v))
}
