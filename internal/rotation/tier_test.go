package rotation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTiers(t *testing.T) {
	tiers := DefaultTiers()
	require.Len(t, tiers, 4)
	assert.Equal(t, Tier{Name: Day, MaxBackups: 7}, tiers[0])
	assert.Equal(t, Tier{Name: Week, MaxBackups: 5}, tiers[1])
	assert.Equal(t, Tier{Name: Month, MaxBackups: 12}, tiers[2])
	assert.Equal(t, Tier{Name: Year, MaxBackups: 4}, tiers[3])
	for _, tier := range tiers {
		assert.NoError(t, tier.Validate())
	}
}

func writeTiers(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tiers.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadTiers_SortsCanonically(t *testing.T) {
	path := writeTiers(t, `
tiers:
  - name: year
    max_backups: 10
  - name: day
    max_backups: 3
`)
	tiers, err := LoadTiers(path)
	require.NoError(t, err)
	assert.Equal(t, []Tier{{Name: Day, MaxBackups: 3}, {Name: Year, MaxBackups: 10}}, tiers)
}

func TestLoadTiers_Rejects(t *testing.T) {
	cases := map[string]string{
		"unknown name":  "tiers:\n  - name: hour\n    max_backups: 2\n",
		"zero retained": "tiers:\n  - name: day\n    max_backups: 0\n",
		"duplicate":     "tiers:\n  - name: day\n    max_backups: 1\n  - name: day\n    max_backups: 2\n",
		"empty":         "tiers: []\n",
		"bad yaml":      "tiers: [",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadTiers(writeTiers(t, body))
			assert.Error(t, err)
		})
	}
}

func TestLoadTiers_MissingFile(t *testing.T) {
	_, err := LoadTiers(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
