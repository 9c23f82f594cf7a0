package config

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"tomcat/internal/alias"
	"tomcat/internal/model"
)

//go:embed vocab.yaml
var defaultVocab []byte

// Cat is a cat name with its nicknames.
type Cat struct {
	Name      string   `yaml:"name"`
	Nicknames []string `yaml:"nicknames"`
}

// Station is a feeding station with its aliases.
type Station struct {
	Name    string   `yaml:"name"`
	Aliases []string `yaml:"aliases"`
}

// RosterEntry lists who feeds a station on each weekday, Sunday first.
type RosterEntry struct {
	Station string   `yaml:"station"`
	Days    []string `yaml:"days"`
}

// Vocab is the static data the bot is built around: names it recognises,
// the weekly feeding roster and the dues member list.
type Vocab struct {
	Cats     []Cat             `yaml:"cats"`
	Stations []Station         `yaml:"stations"`
	Roster   []RosterEntry     `yaml:"roster"`
	Users    map[string]string `yaml:"users"`
	Members  []model.Member    `yaml:"members"`
}

// LoadVocab reads the vocabulary file at path, or the built-in one when path is empty.
func LoadVocab(path string) (*Vocab, error) {
	if path == "" {
		return ParseVocab(defaultVocab)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read vocabulary: %w", err)
	}
	return ParseVocab(data)
}

// ParseVocab decodes and validates a YAML vocabulary.
func ParseVocab(data []byte) (*Vocab, error) {
	var v Vocab
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("parse vocabulary: %w", err)
	}
	if err := v.validate(); err != nil {
		return nil, err
	}
	return &v, nil
}

func (v *Vocab) validate() error {
	seen := make(map[string]bool)
	for _, c := range v.Cats {
		key := strings.ToLower(strings.TrimSpace(c.Name))
		if key == "" {
			return fmt.Errorf("vocabulary: cat with empty name")
		}
		if seen[key] {
			return fmt.Errorf("vocabulary: duplicate cat %q", c.Name)
		}
		seen[key] = true
	}

	stations := make(map[string]bool)
	for _, s := range v.Stations {
		if strings.TrimSpace(s.Name) == "" {
			return fmt.Errorf("vocabulary: station with empty name")
		}
		if stations[s.Name] {
			return fmt.Errorf("vocabulary: duplicate station %q", s.Name)
		}
		stations[s.Name] = true
	}

	for _, r := range v.Roster {
		if !stations[r.Station] {
			return fmt.Errorf("vocabulary: roster station %q is not a known station", r.Station)
		}
		if len(r.Days) == 0 {
			return fmt.Errorf("vocabulary: roster for %q is empty", r.Station)
		}
	}
	return nil
}

// Vocabulary builds the alias tables.
func (v *Vocab) Vocabulary() *alias.Vocabulary {
	cats := make([]alias.Entry, 0, len(v.Cats))
	for _, c := range v.Cats {
		cats = append(cats, alias.CatEntry(c.Name, c.Nicknames))
	}
	stations := make([]alias.Entry, 0, len(v.Stations))
	for _, s := range v.Stations {
		stations = append(stations, alias.Entry{Canonical: s.Name, Aliases: s.Aliases})
	}
	return &alias.Vocabulary{Cats: alias.NewTable(cats), Stations: alias.NewTable(stations)}
}

// RosterMap returns the roster keyed by station.
func (v *Vocab) RosterMap() map[string][]string {
	out := make(map[string][]string, len(v.Roster))
	for _, r := range v.Roster {
		out[r.Station] = r.Days
	}
	return out
}

// StationNames returns the station names in file order.
func (v *Vocab) StationNames() []string {
	out := make([]string, 0, len(v.Stations))
	for _, s := range v.Stations {
		out = append(out, s.Name)
	}
	return out
}
