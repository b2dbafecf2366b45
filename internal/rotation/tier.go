package rotation

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Tier is a granularity paired with the number of artifacts it retains.
type Tier struct {
	Name       Granularity `yaml:"name"`
	MaxBackups int         `yaml:"max_backups"`
}

// Validate checks the tier name and retention count.
func (t Tier) Validate() error {
	if _, err := ParseGranularity(string(t.Name)); err != nil {
		return err
	}
	if t.MaxBackups < 1 {
		return fmt.Errorf("tier %s: max_backups must be positive, got %d", t.Name, t.MaxBackups)
	}
	return nil
}

// DefaultTiers returns the standard retention schedule: a week of dailies,
// five weeklies, a year of monthlies and four yearlies.
func DefaultTiers() []Tier {
	return []Tier{
		{Name: Day, MaxBackups: 7},
		{Name: Week, MaxBackups: 5},
		{Name: Month, MaxBackups: 12},
		{Name: Year, MaxBackups: 4},
	}
}

type tiersFile struct {
	Tiers []Tier `yaml:"tiers"`
}

// LoadTiers reads a YAML tier list from path. The result is validated and
// ordered day, week, month, year regardless of file order.
func LoadTiers(path string) ([]Tier, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tiers file: %w", err)
	}

	var f tiersFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse tiers file: %w", err)
	}
	if len(f.Tiers) == 0 {
		return nil, errors.New("tiers file defines no tiers")
	}

	seen := make(map[Granularity]bool, len(f.Tiers))
	for _, t := range f.Tiers {
		if err := t.Validate(); err != nil {
			return nil, err
		}
		if seen[t.Name] {
			return nil, fmt.Errorf("tier %s defined more than once", t.Name)
		}
		seen[t.Name] = true
	}

	sort.SliceStable(f.Tiers, func(i, j int) bool {
		return rank(f.Tiers[i].Name) < rank(f.Tiers[j].Name)
	})
	return f.Tiers, nil
}

func rank(g Granularity) int {
	for i, v := range Granularities {
		if v == g {
			return i
		}
	}
	return len(Granularities)
}
