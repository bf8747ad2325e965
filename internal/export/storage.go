package export

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Filename builds the export filename for a window: the date range (or
// "full-history") plus a generation timestamp, so repeated runs never
// collide.
func Filename(w *Window, generated time.Time) string {
	return fmt.Sprintf("chatwoot_export_%s_%s.json", w.Label(), generated.Format("20060102-150405"))
}

// WriteRecords serializes records as an indented JSON array and writes them
// atomically: temp file first, then rename, so a crashed run never leaves a
// half-written export behind.
func WriteRecords(path string, records []Record) error {
	if records == nil {
		records = []Record{}
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal records: %w", err)
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write export file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename export file: %w", err)
	}
	return nil
}
