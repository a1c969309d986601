package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/fincore/internal/contracts"
)

func TestDefaultManifest(t *testing.T) {
	m := DefaultManifest()
	require.NoError(t, m.Validate())

	for _, st := range contracts.ImportOrder {
		path, ok := m.FileFor(st)
		assert.True(t, ok, st)
		assert.Equal(t, "financial/"+st.Alias()+"_200.csv", path)
	}
	assert.Equal(t, "financial/fina_indicator_200.csv", m.Basics)
}

func TestParseManifest(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr bool
	}{
		{
			name: "valid",
			yaml: "basics: a.csv\nfiles:\n  income: i.csv\n  cash_flow: c.csv\n",
		},
		{
			name:    "unknown top-level field",
			yaml:    "basics: a.csv\nfile:\n  income: i.csv\n",
			wantErr: true,
		},
		{
			name:    "unknown statement type",
			yaml:    "files:\n  dividends: d.csv\n",
			wantErr: true,
		},
		{
			name:    "empty files",
			yaml:    "basics: a.csv\n",
			wantErr: true,
		},
		{
			name:    "empty path",
			yaml:    "files:\n  income: \"\"\n",
			wantErr: true,
		},
		{
			name:    "negative max rows",
			yaml:    "max_rows: -1\nfiles:\n  income: i.csv\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := ParseManifest([]byte(tt.yaml))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			path, ok := m.FileFor(contracts.StatementCashFlow)
			assert.True(t, ok)
			assert.Equal(t, "c.csv", path)
		})
	}
}

func TestLoadManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "import.yaml")
	require.NoError(t, os.WriteFile(path, []byte("files:\n  fina_indicator: x.csv\n"), 0o644))

	m, err := LoadManifest(path)
	require.NoError(t, err)
	_, ok := m.FileFor(contracts.StatementIncome)
	assert.False(t, ok)

	_, err = LoadManifest(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestManifestHashStable(t *testing.T) {
	a := DefaultManifest()
	b := DefaultManifest()
	assert.Equal(t, a.Hash(), b.Hash())

	b.MaxRows = 10
	assert.NotEqual(t, a.Hash(), b.Hash())
}
