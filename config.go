package mcb

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config is the YAML-loadable bus configuration consumed by cmd/mcbctl,
// grounded on the teacher's preference for a dedicated
// config type over scattering flags across main().
type Config struct {
	Device    string `yaml:"device"`
	IRQChip   string `yaml:"irq_chip"`
	IRQLine   int    `yaml:"irq_line"`
	Sync0Chip string `yaml:"sync0_chip,omitempty"`
	Sync0Line int    `yaml:"sync0_line,omitempty"`
	Sync1Chip string `yaml:"sync1_chip,omitempty"`
	Sync1Line int    `yaml:"sync1_line,omitempty"`

	TimeoutMs uint32 `yaml:"timeout_ms"`
	CalcCRC   bool   `yaml:"calc_crc"`
	SyncMode  string `yaml:"sync_mode"` // "none", "sync0", "sync1", "both"

	Mapping MappingConfig `yaml:"mapping"`
}

// MappingConfig lists the RX/TX register mappings to install before
// enabling cyclic mode.
type MappingConfig struct {
	Tx []RegisterMapping `yaml:"tx"`
	Rx []RegisterMapping `yaml:"rx"`
}

// RegisterMapping is one entry of a MappingConfig list.
type RegisterMapping struct {
	Addr     uint16 `yaml:"addr"`
	SizeByte uint16 `yaml:"size_bytes"`
}

// LoadConfig reads and parses a Config from path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "mcb: read config %s", path)
	}
	cfg := &Config{TimeoutMs: DefaultTimeoutMs}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "mcb: parse config %s", path)
	}
	return cfg, nil
}

// ParseSyncMode maps a Config.SyncMode string onto the SyncMode enum.
func ParseSyncMode(s string) (SyncMode, error) {
	switch s {
	case "", "none":
		return SyncNone, nil
	case "sync0":
		return Sync0, nil
	case "sync1":
		return Sync1, nil
	case "both":
		return Sync0Sync1, nil
	default:
		return SyncNone, errors.Errorf("mcb: unknown sync_mode %q", s)
	}
}
