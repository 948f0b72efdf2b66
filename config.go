package zekta

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tailscale/hujson"

	zfs "github.com/thingmate/zekta/pkg/fs"
)

// configFileName is the name of a series' durable configuration file,
// stored at the root of the series' directory alongside its bucket files.
const configFileName = "zekta.config.json"

// configVersion is the only config schema version this package understands.
const configVersion = 1

// seriesConfig is the on-disk configuration for a series. It's stored as
// JSONC (JSON with comments, via hujson) so it can be hand-edited.
type seriesConfig struct {
	Version         int `json:"version"`
	ValueByteLength int `json:"valueByteLength"`
}

// loadSeriesConfig reads and parses a series' config file. It returns
// (zero value, false, nil) if the file doesn't exist.
func loadSeriesConfig(fsys zfs.FS, path string) (seriesConfig, bool, error) {
	data, err := fsys.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return seriesConfig{}, false, nil
		}

		return seriesConfig{}, false, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg, err := parseSeriesConfig(data)
	if err != nil {
		return seriesConfig{}, false, fmt.Errorf("parse config %s: %w", path, err)
	}

	return cfg, true, nil
}

func parseSeriesConfig(data []byte) (seriesConfig, error) {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return seriesConfig{}, fmt.Errorf("invalid JSONC: %w", err)
	}

	var cfg seriesConfig

	if err := json.Unmarshal(standardized, &cfg); err != nil {
		return seriesConfig{}, fmt.Errorf("invalid JSON: %w", err)
	}

	if cfg.Version != configVersion {
		return seriesConfig{}, fmt.Errorf("version %d: %w", cfg.Version, ErrUnsupportedVersion)
	}

	return cfg, nil
}

// writeSeriesConfig persists cfg atomically, creating the series directory
// if necessary.
func writeSeriesConfig(fsys zfs.FS, dir, path string, cfg seriesConfig) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("format config: %w", err)
	}

	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("write config: mkdir: %w", err)
	}

	if err := fsys.WriteFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}

	return nil
}
