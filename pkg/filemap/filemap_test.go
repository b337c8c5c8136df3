package filemap

import (
	"hash/crc32"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, data, 0644))
}

func TestAddGetFiles(t *testing.T) {
	dir := t.TempDir()
	m, err := Open(filepath.Join(dir, "filemap.db"))
	require.NoError(t, err)
	defer m.Close()

	require.NoError(t, m.Add(filepath.Join(dir, "b.ckpt"), Meta{Size: 10, Complete: true}))
	require.NoError(t, m.Add(filepath.Join(dir, "a.ckpt"), Meta{Size: 20, Complete: true}))

	files, err := m.Files()
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.ckpt"), filepath.Join(dir, "b.ckpt")}, files)

	meta, found, err := m.Get(filepath.Join(dir, "a.ckpt"))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, int64(20), meta.Size)
}

func TestHave(t *testing.T) {
	dir := t.TempDir()
	m, err := Open(filepath.Join(dir, "filemap.db"))
	require.NoError(t, err)
	defer m.Close()

	file := filepath.Join(dir, "state.ckpt")
	writeFile(t, file, []byte("hello"))

	require.NoError(t, m.Add(file, Meta{Size: 5, Complete: true}))
	assert.True(t, m.Have(file))

	// incomplete flag wins over a good file
	require.NoError(t, m.Add(file, Meta{Size: 5, Complete: false}))
	assert.False(t, m.Have(file))

	// size mismatch
	require.NoError(t, m.Add(file, Meta{Size: 99, Complete: true}))
	assert.False(t, m.Have(file))

	// missing on disk
	missing := filepath.Join(dir, "gone.ckpt")
	require.NoError(t, m.Add(missing, Meta{Size: 1, Complete: true}))
	assert.False(t, m.Have(missing))
}

func TestComputeCRC(t *testing.T) {
	dir := t.TempDir()
	m, err := Open(filepath.Join(dir, "filemap.db"))
	require.NoError(t, err)
	defer m.Close()

	file := filepath.Join(dir, "state.ckpt")
	payload := []byte("checkpoint payload")
	writeFile(t, file, payload)
	require.NoError(t, m.Add(file, Meta{Size: int64(len(payload)), Complete: true}))

	crc, err := m.ComputeCRC(file)
	require.NoError(t, err)
	assert.Equal(t, crc32.ChecksumIEEE(payload), crc)

	meta, _, err := m.Get(file)
	require.NoError(t, err)
	assert.True(t, meta.HasCRC)
	assert.Equal(t, crc, meta.CRC)

	// recomputing over unchanged content succeeds
	_, err = m.ComputeCRC(file)
	require.NoError(t, err)

	// changed content with same size is caught
	writeFile(t, file, []byte("checkpoint tampered!")[:len(payload)])
	_, err = m.ComputeCRC(file)
	assert.Error(t, err)
}

func TestPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "filemap.db")

	m, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, m.Add(filepath.Join(dir, "a.ckpt"), Meta{Size: 1, Complete: true}))
	require.NoError(t, m.Close())

	m, err = Open(path)
	require.NoError(t, err)
	defer m.Close()

	files, err := m.Files()
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestComputeCRCUntracked(t *testing.T) {
	dir := t.TempDir()
	m, err := Open(filepath.Join(dir, "filemap.db"))
	require.NoError(t, err)
	defer m.Close()

	file := filepath.Join(dir, "stray.ckpt")
	writeFile(t, file, []byte("x"))

	_, err = m.ComputeCRC(file)
	assert.Error(t, err)
}
