package authdetect

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

var ErrInvalidMarkers = errors.New("invalid auth markers")

// LoadMarkers reads a marker table from a YAML file. Empty lists fall back
// to the defaults so a file may override only part of the table.
func LoadMarkers(path string) (Markers, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Markers{}, fmt.Errorf("read markers file: %w", err)
	}
	return ParseMarkers(data)
}

func ParseMarkers(data []byte) (Markers, error) {
	var m Markers
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Markers{}, fmt.Errorf("%w: %v", ErrInvalidMarkers, err)
	}

	def := DefaultMarkers()
	if len(m.IdPDomains) == 0 {
		m.IdPDomains = def.IdPDomains
	}
	if len(m.DashboardMarkers) == 0 {
		m.DashboardMarkers = def.DashboardMarkers
	}
	if len(m.AppDomains) == 0 {
		m.AppDomains = def.AppDomains
	}

	if err := m.Validate(); err != nil {
		return Markers{}, err
	}
	return m, nil
}

func (m Markers) Validate() error {
	if len(lower(m.IdPDomains)) == 0 {
		return fmt.Errorf("%w: idp_domains is empty", ErrInvalidMarkers)
	}
	if len(lower(m.DashboardMarkers)) == 0 && len(lower(m.AppDomains)) == 0 {
		return fmt.Errorf("%w: need dashboard_markers or app_domains", ErrInvalidMarkers)
	}
	return nil
}
