package gen

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"onebrc/parser"
)

// Station is a weather station and its long-run mean temperature.
type Station struct {
	Name string
	Mean float64
}

// ErrNoStations reports an empty station list.
var ErrNoStations = errors.New("gen: no stations")

// DefaultStations returns the built-in station list.
func DefaultStations() []Station {
	return []Station{
		{"Abha", 18.0}, {"Abidjan", 26.0}, {"Accra", 26.4}, {"Addis Ababa", 16.0},
		{"Adelaide", 17.3}, {"Alexandria", 20.0}, {"Almaty", 10.0}, {"Amsterdam", 10.2},
		{"Anchorage", 2.8}, {"Ankara", 12.0}, {"Athens", 19.2}, {"Auckland", 15.2},
		{"Baghdad", 22.77}, {"Bangkok", 28.6}, {"Barcelona", 18.2}, {"Beijing", 12.9},
		{"Berlin", 10.3}, {"Bogotá", 15.4}, {"Boston", 10.9}, {"Budapest", 11.3},
		{"Buenos Aires", 18.0}, {"Cairo", 21.4}, {"Cape Town", 16.2}, {"Chicago", 9.8},
		{"Copenhagen", 9.1}, {"Dakar", 24.0}, {"Delhi", 25.0}, {"Dubai", 26.9},
		{"Dublin", 9.8}, {"Hamburg", 9.7}, {"Helsinki", 5.9}, {"Hong Kong", 23.3},
		{"Istanbul", 13.9}, {"Jakarta", 26.7}, {"Lagos", 26.8}, {"Lima", 19.9},
		{"London", 11.3}, {"Madrid", 15.0}, {"Mexico City", 17.5}, {"Montreal", 6.8},
		{"Moscow", 5.8}, {"Mumbai", 27.1}, {"Nairobi", 17.8}, {"New York City", 12.9},
		{"Oslo", 5.7}, {"Paris", 12.3}, {"Reykjavík", 4.3}, {"Rome", 15.2},
		{"São Paulo", 19.7}, {"Seoul", 12.5}, {"Singapore", 27.0}, {"Stockholm", 6.6},
		{"Sydney", 17.7}, {"Tokyo", 15.4}, {"Toronto", 9.4}, {"Vancouver", 10.4},
		{"Vienna", 10.4}, {"Warsaw", 8.5}, {"Yakutsk", -8.8}, {"Zürich", 9.3},
	}
}

// LoadStations reads `name;mean` lines. Blank lines and lines starting
// with '#' are ignored.
func LoadStations(r io.Reader) ([]Station, error) {
	var (
		out    []Station
		lineNo int
		bad    error
	)
	_, err := parser.Scan(r, 0, func(line []byte) bool {
		lineNo++
		line = bytes.TrimSpace(line)
		if len(line) == 0 || line[0] == '#' {
			return true
		}
		key, mean, err := parser.ParseLine(line, ';')
		if err != nil {
			bad = fmt.Errorf("gen: stations line %d: %w", lineNo, err)
			return false
		}
		out = append(out, Station{Name: string(key), Mean: mean})
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("gen: read stations: %w", err)
	}
	if bad != nil {
		return nil, bad
	}
	if len(out) == 0 {
		return nil, ErrNoStations
	}
	return out, nil
}
