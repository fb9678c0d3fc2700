// Package remedy maps predicted severity classes to static advisory text.
// The table is loaded once at startup and read-only afterwards.
package remedy

import (
	"encoding/json"
	"fmt"
	"os"
)

// FallbackAdvisory is returned for classes absent from the table.
const FallbackAdvisory = "No remedy available"

type Table struct {
	advisories map[string]string
}

// Load reads a JSON object of class → advisory text.
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read remedy table %s: %w", path, err)
	}

	var advisories map[string]string
	if err := json.Unmarshal(data, &advisories); err != nil {
		return nil, fmt.Errorf("failed to parse remedy table %s: %w", path, err)
	}
	if len(advisories) == 0 {
		return nil, fmt.Errorf("remedy table %s is empty", path)
	}

	return &Table{advisories: advisories}, nil
}

// Lookup returns the advisory for a class, or FallbackAdvisory when the class
// is not in the table.
func (t *Table) Lookup(class string) string {
	if advisory, ok := t.advisories[class]; ok {
		return advisory
	}
	return FallbackAdvisory
}
