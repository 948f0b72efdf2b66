package fs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_RealFS_Exists_Returns_False_When_Path_Does_Not_Exist(t *testing.T) {
	fs := NewReal()
	dir := t.TempDir()

	exists, err := fs.Exists(filepath.Join(dir, "does-not-exist.txt"))
	require.NoError(t, err)
	require.False(t, exists)
}

func Test_RealFS_Exists_Returns_True_When_Path_Is_A_File(t *testing.T) {
	fs := NewReal()
	dir := t.TempDir()
	path := filepath.Join(dir, "exists.txt")

	require.NoError(t, os.WriteFile(path, []byte("hello"), 0644))

	exists, err := fs.Exists(path)
	require.NoError(t, err)
	require.True(t, exists)
}

func Test_RealFS_WriteFileAtomic_Creates_File_With_Given_Content(t *testing.T) {
	fs := NewReal()
	dir := t.TempDir()
	path := filepath.Join(dir, "bucket.data")

	require.NoError(t, fs.WriteFileAtomic(path, []byte("payload"), 0644))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "payload", string(got))
}

func Test_RealFS_WriteFileAtomic_Overwrites_Existing_File(t *testing.T) {
	fs := NewReal()
	dir := t.TempDir()
	path := filepath.Join(dir, "bucket.data")

	require.NoError(t, os.WriteFile(path, []byte("old content here"), 0644))
	require.NoError(t, fs.WriteFileAtomic(path, []byte("new"), 0644))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "new", string(got))
}

func Test_RealFS_Exists_Returns_True_When_Path_Is_A_Directory(t *testing.T) {
	fs := NewReal()
	dir := t.TempDir()
	subdir := filepath.Join(dir, "subdir")

	require.NoError(t, os.MkdirAll(subdir, 0755))

	exists, err := fs.Exists(subdir)
	require.NoError(t, err)
	require.True(t, exists)
}
