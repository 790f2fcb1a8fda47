// Package dtc maps SPN/FMI pairs to human-readable fault descriptions
// loaded from a JSON file shipped alongside the service.
package dtc

import (
	"encoding/json"
	"fmt"
	"os"
)

// Table holds descriptions keyed by "<spn>-<fmi>".
type Table struct {
	descriptions map[string]string
}

// Load reads the description file. An empty path yields an empty table,
// not an error; descriptions are an optional enrichment.
func Load(path string) (*Table, error) {
	table := &Table{descriptions: map[string]string{}}
	if path == "" {
		return table, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read DTC descriptions: %w", err)
	}
	if err := json.Unmarshal(data, &table.descriptions); err != nil {
		return nil, fmt.Errorf("failed to parse DTC descriptions: %w", err)
	}
	return table, nil
}

// Describe returns the description for an SPN/FMI pair, or "" when the
// pair is unknown.
func (t *Table) Describe(spn, fmi int64) string {
	return t.descriptions[fmt.Sprintf("%d-%d", spn, fmi)]
}
