package ingest

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/wonny/fincore/internal/contracts"
)

// Manifest maps statement types to their source files
type Manifest struct {
	// Basics is the file whose ts_codes seed the stock master
	Basics string `yaml:"basics" json:"basics"`
	// MaxRows caps rows per file; 0 keeps the caller's limit
	MaxRows int `yaml:"max_rows" json:"max_rows"`
	// Files is keyed by vendor alias: balancesheet, fina_indicator, income, cashflow
	Files map[string]string `yaml:"files" json:"files"`
}

// DefaultManifest is the vendor export layout used when no manifest is configured
func DefaultManifest() *Manifest {
	return &Manifest{
		Basics: "financial/fina_indicator_200.csv",
		Files: map[string]string{
			"balancesheet":   "financial/balancesheet_200.csv",
			"fina_indicator": "financial/fina_indicator_200.csv",
			"income":         "financial/income_200.csv",
			"cashflow":       "financial/cashflow_200.csv",
		},
	}
}

// LoadManifest reads a YAML manifest. Unknown keys are rejected.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return ParseManifest(data)
}

// ParseManifest decodes and validates manifest YAML
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks every file key names a known statement type
func (m *Manifest) Validate() error {
	if len(m.Files) == 0 {
		return fmt.Errorf("manifest: files is empty")
	}
	if m.MaxRows < 0 {
		return fmt.Errorf("manifest: max_rows must not be negative")
	}
	for key, path := range m.Files {
		if _, err := contracts.ParseStatementType(key); err != nil {
			return fmt.Errorf("manifest: %w", err)
		}
		if path == "" {
			return fmt.Errorf("manifest: empty path for %s", key)
		}
	}
	return nil
}

// FileFor returns the configured file for t
func (m *Manifest) FileFor(t contracts.StatementType) (string, bool) {
	for key, path := range m.Files {
		if parsed, err := contracts.ParseStatementType(key); err == nil && parsed == t {
			return path, true
		}
	}
	return "", false
}

// Hash fingerprints the manifest so import reports can be traced to it
func (m *Manifest) Hash() string {
	// json.Marshal sorts map keys, so the encoding is deterministic
	data, err := json.Marshal(m)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
