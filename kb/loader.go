package kb

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/drift-predictor/model"
)

// Format is the encoding of a profile file.
type Format string

const (
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatFromPath selects a format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported profile file extension %q", filepath.Ext(path))
	}
}

// profileRecord is the on-disk shape of one profile.
type profileRecord struct {
	ID            string  `toml:"id" yaml:"id" json:"id"`
	Description   string  `toml:"description" yaml:"description" json:"description"`
	DragFactor    float64 `toml:"drag_factor" yaml:"drag_factor" json:"drag_factor"`
	WindFactor    float64 `toml:"wind_factor" yaml:"wind_factor" json:"wind_factor"`
	SurvivalHours float64 `toml:"survival_hours" yaml:"survival_hours" json:"survival_hours"`
}

type profileFile struct {
	Profiles []profileRecord `toml:"profiles" yaml:"profiles" json:"profiles"`
}

// ParseProfiles decodes and validates a profile document.
//
// TOML:
//
//	[[profiles]]
//	id = "Kayak"
//	drag_factor = 1.1
//	wind_factor = 0.01
func ParseProfiles(data []byte, format Format) ([]model.ObjectProfile, error) {
	var doc profileFile
	var err error
	switch format {
	case FormatTOML:
		err = toml.Unmarshal(data, &doc)
	case FormatYAML:
		err = yaml.Unmarshal(data, &doc)
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(&doc)
	default:
		return nil, fmt.Errorf("unsupported profile format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s profiles: %w", format, err)
	}

	out := make([]model.ObjectProfile, 0, len(doc.Profiles))
	seen := make(map[string]struct{}, len(doc.Profiles))
	for i, rec := range doc.Profiles {
		p := model.ObjectProfile{
			ID:            strings.TrimSpace(rec.ID),
			Description:   rec.Description,
			DragFactor:    rec.DragFactor,
			WindFactor:    rec.WindFactor,
			SurvivalHours: rec.SurvivalHours,
		}
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("profile %d: %w", i, err)
		}
		if _, dup := seen[p.ID]; dup {
			return nil, fmt.Errorf("profile %d: duplicate id %q", i, p.ID)
		}
		seen[p.ID] = struct{}{}
		out = append(out, p)
	}
	return out, nil
}

// LoadFile reads and parses a profile file, selecting the format by extension.
func LoadFile(path string) ([]model.ObjectProfile, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profiles: %w", err)
	}
	profiles, err := ParseProfiles(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return profiles, nil
}

// Reload loads path and replaces the registry contents with the base
// profiles overlaid by the file. On error the registry is left unchanged.
func (r *Registry) Reload(path string) error {
	profiles, err := LoadFile(path)
	if err != nil {
		return err
	}
	return r.Replace(profiles)
}
