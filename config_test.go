package zekta

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	zfs "github.com/thingmate/zekta/pkg/fs"
)

func Test_LoadSeriesConfig_Returns_False_When_File_Missing(t *testing.T) {
	fsys := zfs.NewReal()
	dir := t.TempDir()

	_, loaded, err := loadSeriesConfig(fsys, filepath.Join(dir, configFileName))
	require.NoError(t, err)
	require.False(t, loaded)
}

func Test_WriteSeriesConfig_Then_LoadSeriesConfig_Round_Trips(t *testing.T) {
	fsys := zfs.NewReal()
	dir := t.TempDir()
	path := filepath.Join(dir, configFileName)

	want := seriesConfig{Version: configVersion, ValueByteLength: 8}

	require.NoError(t, writeSeriesConfig(fsys, dir, path, want))

	got, loaded, err := loadSeriesConfig(fsys, path)
	require.NoError(t, err)
	require.True(t, loaded)
	require.Equal(t, want, got)
}

func Test_ParseSeriesConfig_Accepts_JSONC_With_Comments(t *testing.T) {
	data := []byte(`{
		// this is a comment
		"version": 1,
		"valueByteLength": 4,
	}`)

	cfg, err := parseSeriesConfig(data)
	require.NoError(t, err)
	require.Equal(t, 4, cfg.ValueByteLength)
}

func Test_ParseSeriesConfig_Rejects_Unsupported_Version(t *testing.T) {
	data := []byte(`{"version": 2, "valueByteLength": 4}`)

	_, err := parseSeriesConfig(data)
	require.ErrorIs(t, err, ErrUnsupportedVersion)
}
