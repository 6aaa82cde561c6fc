package yararules

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const eicarRule = `rule Eicar_Test {
    strings:
        $a = "EICAR"
    condition:
        $a
}`

func writeRule(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0644))
}

func TestRebuildEmptyDirectory(t *testing.T) {
	r := New(t.TempDir())

	require.NoError(t, r.Rebuild(), "empty rule set is not an error")
	assert.EqualValues(t, 1, r.Generation())

	matches, err := r.Match([]byte("anything"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestMatchEicarLiteral(t *testing.T) {
	dir := t.TempDir()
	writeRule(t, dir, "eicar.yar", eicarRule)

	r := New(dir)
	require.NoError(t, r.Rebuild())

	matches, err := r.Match([]byte("X5O!P%@AP[4\\PZX54(P^)7CC)7}$EICAR-STANDARD-ANTIVIRUS-TEST-FILE!$H+H*"))
	require.NoError(t, err)
	assert.Equal(t, []string{"Eicar_Test"}, matches)

	matches, err = r.Match([]byte("clean content"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestFailedRebuildKeepsPreviousMatcher(t *testing.T) {
	dir := t.TempDir()
	writeRule(t, dir, "eicar.yar", eicarRule)

	r := New(dir)
	require.NoError(t, r.Rebuild())
	gen := r.Generation()

	writeRule(t, dir, "broken.yar", "rule Broken { condition: ")
	assert.Error(t, r.Rebuild())
	assert.Equal(t, gen, r.Generation(), "failed compile does not advance the generation")

	// previously working match behavior is unchanged
	matches, err := r.Match([]byte("EICAR"))
	require.NoError(t, err)
	assert.Equal(t, []string{"Eicar_Test"}, matches)
}

func TestRebuildIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	writeRule(t, dir, "eicar.yar", eicarRule)

	r := New(dir)
	require.NoError(t, r.Rebuild())
	first, err := r.Match([]byte("EICAR"))
	require.NoError(t, err)

	require.NoError(t, r.Rebuild())
	second, err := r.Match([]byte("EICAR"))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.EqualValues(t, 2, r.Generation())
}

func TestMatchLazyRebuild(t *testing.T) {
	dir := t.TempDir()
	writeRule(t, dir, "eicar.yar", eicarRule)

	// rules were placed on disk out-of-band, no explicit Rebuild
	r := New(dir)
	matches, err := r.Match([]byte("EICAR"))
	require.NoError(t, err)
	assert.Equal(t, []string{"Eicar_Test"}, matches)
}

func TestCommitWritesAndRebuilds(t *testing.T) {
	dir := t.TempDir()
	r := New(dir)
	require.NoError(t, r.Rebuild())

	err := r.Commit(map[string]string{"eicar.yar": eicarRule})
	require.NoError(t, err)
	assert.EqualValues(t, 2, r.Generation())

	matches, err := r.Match([]byte("EICAR"))
	require.NoError(t, err)
	assert.Equal(t, []string{"Eicar_Test"}, matches)

	assert.FileExists(t, filepath.Join(dir, "eicar.yar"))
}

func TestCommitAddsExtension(t *testing.T) {
	dir := t.TempDir()
	r := New(dir)

	require.NoError(t, r.Commit(map[string]string{"auto_gen_1a2b3c4d": "rule Auto { condition: false }"}))
	assert.FileExists(t, filepath.Join(dir, "auto_gen_1a2b3c4d.yar"))
}
