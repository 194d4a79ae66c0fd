package seating

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

//go:embed default_catalog.yaml
var defaultCatalog []byte

type catalogFile struct {
	Sections []catalogSection `yaml:"sections"`
}

type catalogSection struct {
	Side    string   `yaml:"side"`
	Rows    []string `yaml:"rows"`
	Columns int      `yaml:"columns"`
}

// LoadCatalog decodes a YAML seat layout into seats sorted by row and column.
func LoadCatalog(r io.Reader) ([]Seat, error) {
	var file catalogFile
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil {
		return nil, fmt.Errorf("seating: decode catalog: %w", err)
	}

	seen := make(map[string]struct{})
	seats := make([]Seat, 0)
	for i, section := range file.Sections {
		side, err := ParseSide(section.Side)
		if err != nil {
			return nil, fmt.Errorf("seating: section %d: %w", i, err)
		}
		for _, row := range section.Rows {
			for column := 1; column <= section.Columns; column++ {
				seat, err := NewSeat(row, column, side)
				if err != nil {
					return nil, fmt.Errorf("seating: section %d: %w", i, err)
				}
				if _, dup := seen[seat.ID]; dup {
					return nil, fmt.Errorf("seating: duplicate seat %s", seat.ID)
				}
				seen[seat.ID] = struct{}{}
				seats = append(seats, seat)
			}
		}
	}
	Sort(seats)
	return seats, nil
}

// DefaultCatalog returns the embedded default layout.
func DefaultCatalog() []Seat {
	seats, err := LoadCatalog(bytes.NewReader(defaultCatalog))
	if err != nil {
		panic(err)
	}
	return seats
}
