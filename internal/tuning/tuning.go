// Package tuning loads gameplay tuning values from a YAML file.
package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Tuning holds the gameplay knobs the engine reads at startup.
type Tuning struct {
	// CommandRange is the maximum distance, in world units, at which a
	// defending unit still answers a player's command.
	CommandRange float64 `yaml:"command_range"`

	// CleanupEverySec is how often the dead-unit sweep runs.
	CleanupEverySec int `yaml:"cleanup_every_sec"`

	// AutosaveEverySec is how often registry state is written to the DB.
	AutosaveEverySec int `yaml:"autosave_every_sec"`

	// SnapshotDir is where compressed backup snapshots are written.
	SnapshotDir string `yaml:"snapshot_dir"`
}

// Default returns the tuning used when no file is supplied.
func Default() Tuning {
	return Tuning{
		CommandRange:     50,
		CleanupEverySec:  30,
		AutosaveEverySec: 300,
		SnapshotDir:      "data/snapshots",
	}
}

// Load reads tuning from a YAML file, filling unset fields with defaults.
func Load(path string) (Tuning, error) {
	t := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning yaml: %w", err)
	}
	if t.CommandRange <= 0 {
		t.CommandRange = Default().CommandRange
	}
	if t.CleanupEverySec <= 0 {
		t.CleanupEverySec = Default().CleanupEverySec
	}
	if t.AutosaveEverySec <= 0 {
		t.AutosaveEverySec = Default().AutosaveEverySec
	}
	if t.SnapshotDir == "" {
		t.SnapshotDir = Default().SnapshotDir
	}
	return t, nil
}
