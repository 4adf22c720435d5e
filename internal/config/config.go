package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/danmuck/unitconsole/internal/reader"
	"github.com/danmuck/unitconsole/internal/unit"
	"github.com/pelletier/go-toml/v2"
)

var ErrInvalidUnits = errors.New("config: invalid units file")

// UnitsFile is the fixture the controller preloads its registry from.
type UnitsFile struct {
	Units []UnitEntry `toml:"units"`
}

type UnitEntry struct {
	Handle   int32  `toml:"handle"`
	ID       int32  `toml:"id"`
	Label    string `toml:"label"`
	Category string `toml:"category"`
	Running  bool   `toml:"running"`
}

func LoadUnits(path string) (UnitsFile, error) {
	var cfg UnitsFile
	if err := loadToml(path, &cfg); err != nil {
		return UnitsFile{}, err
	}
	return finishUnits(cfg)
}

// ParseUnits decodes a units file already held in memory.
func ParseUnits(data []byte) (UnitsFile, error) {
	var cfg UnitsFile
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return UnitsFile{}, fmt.Errorf("config parse failed: %w", err)
	}
	return finishUnits(cfg)
}

func finishUnits(cfg UnitsFile) (UnitsFile, error) {
	for i := range cfg.Units {
		if strings.TrimSpace(cfg.Units[i].Category) == "" {
			cfg.Units[i].Category = unit.Normal.String()
		}
	}
	if err := ValidateUnits(cfg); err != nil {
		return UnitsFile{}, err
	}
	return cfg, nil
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func ValidateUnits(cfg UnitsFile) error {
	handles := make(map[int32]int, len(cfg.Units))
	for i, entry := range cfg.Units {
		if err := ValidateUnitEntry(entry); err != nil {
			return fmt.Errorf("%w: units[%d]: %v", ErrInvalidUnits, i, err)
		}
		if prev, ok := handles[entry.Handle]; ok {
			return fmt.Errorf("%w: units[%d]: handle %d already used by units[%d]",
				ErrInvalidUnits, i, entry.Handle, prev)
		}
		handles[entry.Handle] = i
	}
	return nil
}

func ValidateUnitEntry(entry UnitEntry) error {
	if entry.Handle < 0 {
		return fmt.Errorf("handle must not be negative")
	}
	if _, ok := unit.ParseCategory(entry.Category); !ok {
		return fmt.Errorf("unknown category %q", entry.Category)
	}
	for i := 0; i < len(entry.Label); i++ {
		if !reader.IsUnquotedByte(entry.Label[i]) {
			return fmt.Errorf("label %q is not addressable with @", entry.Label)
		}
	}
	return nil
}

// Unit converts a validated entry.
func (e UnitEntry) Unit() unit.Unit {
	category, _ := unit.ParseCategory(e.Category)
	return unit.Unit{
		Handle:   e.Handle,
		ID:       e.ID,
		Label:    e.Label,
		Category: category,
		Running:  e.Running,
	}
}

// Registry builds a live registry holding every entry.
func (f UnitsFile) Registry() (*unit.Registry, error) {
	reg := unit.NewRegistry()
	for _, entry := range f.Units {
		if err := reg.Add(entry.Unit()); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
