package static

import (
	"encoding/json"
	"os"
	"time"
)

// Manifest describes a generated line index. It is written next to the index
// after a successful crawl and read back to decide whether a new crawl is due.
type Manifest struct {
	GeneratedAt string `json:"generated_at"`
	RunID       string `json:"run_id,omitempty"`
	StopCount   int    `json:"stop_count"`
	LineCount   int    `json:"line_count"`
	FailedStops int    `json:"failed_stops"`
}

// WriteManifest stamps m with the current time and writes it to path.
func WriteManifest(path string, m Manifest) error {
	m.GeneratedAt = time.Now().UTC().Format(time.RFC3339)
	return WriteJSON(path, m)
}

// ReadManifest loads the manifest at path.
func ReadManifest(path string) (*Manifest, error) {
	var m Manifest
	if err := ReadJSON(path, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// IsStaleOrMissing reports whether the data described by the manifest at
// manifestPath needs regenerating. A missing data file, a missing or corrupt
// manifest, or a manifest older than maxAgeDays all count as stale.
func IsStaleOrMissing(dataPath, manifestPath string, maxAgeDays int) bool {
	if _, err := os.Stat(dataPath); err != nil {
		return true
	}

	data, err := os.ReadFile(manifestPath)
	if err != nil {
		// File doesn't exist or can't be read
		return true
	}

	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return true
	}

	generatedAt, err := time.Parse(time.RFC3339, manifest.GeneratedAt)
	if err != nil {
		return true
	}

	age := time.Since(generatedAt)
	maxAge := time.Duration(maxAgeDays) * 24 * time.Hour

	return age > maxAge
}
