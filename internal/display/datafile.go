package display

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/yegors/radar-pi/internal/fsutil"
)

// WriteFile stores the record as JSON at path, replacing any previous file
// atomically so the render server never reads a half-written record.
func WriteFile(path string, rec Record) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal display record: %w", err)
	}
	if err := fsutil.WriteFileAtomic(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write display record: %w", err)
	}
	return nil
}

// ReadFile loads a record written by WriteFile
func ReadFile(path string) (Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Record{}, fmt.Errorf("failed to read display record: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("failed to parse display record: %w", err)
	}
	return rec, nil
}
