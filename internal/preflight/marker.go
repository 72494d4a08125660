package preflight

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// MarkerFile is the name of the file that records a passed preflight run.
const MarkerFile = ".preflight-passed"

// NeedsCheck reports whether preflight should run before serving from
// dataDir. It is true when no marker exists or the marker was written by a
// different release.
func NeedsCheck(dataDir, release string) bool {
	rel, _, ok := readMarker(dataDir)
	return !ok || rel != release
}

// MarkPassed records that preflight passed for release.
func MarkPassed(dataDir, release string) error {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("create marker directory: %w", err)
	}

	content := release + "\n" + time.Now().UTC().Format(time.RFC3339) + "\n"
	return os.WriteFile(filepath.Join(dataDir, MarkerFile), []byte(content), 0644)
}

// ClearMarker removes the marker file, forcing a re-check on next run.
func ClearMarker(dataDir string) error {
	err := os.Remove(filepath.Join(dataDir, MarkerFile))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("remove marker file: %w", err)
	}
	return nil
}

// MarkerAge returns how long ago preflight passed, or zero without a marker.
func MarkerAge(dataDir string) time.Duration {
	_, at, ok := readMarker(dataDir)
	if !ok {
		return 0
	}
	return time.Since(at)
}

func readMarker(dataDir string) (string, time.Time, bool) {
	content, err := os.ReadFile(filepath.Join(dataDir, MarkerFile))
	if err != nil {
		return "", time.Time{}, false
	}
	rel, stamp, ok := strings.Cut(strings.TrimSpace(string(content)), "\n")
	if !ok {
		return "", time.Time{}, false
	}
	at, err := time.Parse(time.RFC3339, stamp)
	if err != nil {
		return "", time.Time{}, false
	}
	return rel, at, true
}
