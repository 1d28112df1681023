package reporting

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/quantara-labs/falcon/internal/backtest"
)

// FormatResultJSON renders a result as indented JSON bytes.
func FormatResultJSON(result *backtest.Result) ([]byte, error) {
	return json.MarshalIndent(result, "", "  ")
}

// WriteResultJSON writes a result to a JSON file, creating parent
// directories as needed.
func WriteResultJSON(result *backtest.Result, path string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	data, err := FormatResultJSON(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
