package preflight

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Aman-CERP/offsearch/internal/engine"
)

// CheckStatus represents the result of a preflight check.
type CheckStatus int

const (
	// StatusPass indicates the check passed successfully.
	StatusPass CheckStatus = iota
	// StatusWarn indicates a non-critical warning.
	StatusWarn
	// StatusFail indicates the check failed.
	StatusFail
)

// String returns the string representation of a CheckStatus.
func (s CheckStatus) String() string {
	switch s {
	case StatusPass:
		return "PASS"
	case StatusWarn:
		return "WARN"
	case StatusFail:
		return "FAIL"
	default:
		return "UNKNOWN"
	}
}

// MarshalText encodes the status by name.
func (s CheckStatus) MarshalText() ([]byte, error) {
	return []byte(strings.ToLower(s.String())), nil
}

// CheckResult holds the result of a single preflight check.
type CheckResult struct {
	Name     string      `json:"name"`
	Status   CheckStatus `json:"status"`
	Message  string      `json:"message"`
	Details  string      `json:"details,omitempty"`
	Required bool        `json:"required"`
}

// IsCritical returns true if this is a required check that failed.
func (r CheckResult) IsCritical() bool {
	return r.Required && r.Status == StatusFail
}

// Target describes the installation being checked.
type Target struct {
	RootDir string
	TempDir string
	Backend string
	License string
}

// Checker performs preflight validation checks.
type Checker struct {
	verbose bool
	output  io.Writer
}

// Option configures a Checker.
type Option func(*Checker)

// WithVerbose enables verbose output.
func WithVerbose(verbose bool) Option {
	return func(c *Checker) {
		c.verbose = verbose
	}
}

// WithOutput sets the output writer.
func WithOutput(w io.Writer) Option {
	return func(c *Checker) {
		c.output = w
	}
}

// New creates a new Checker with the given options.
func New(opts ...Option) *Checker {
	c := &Checker{
		output: os.Stdout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RunAll runs all preflight checks and returns the results.
func (c *Checker) RunAll(_ context.Context, t Target) []CheckResult {
	results := []CheckResult{
		c.CheckWritePermissions("data_dir", t.RootDir),
		c.CheckWritePermissions("temp_dir", t.TempDir),
		c.CheckDiskSpace(t.RootDir),
		c.CheckFileDescriptors(),
		c.CheckBackend(t.Backend),
		c.CheckLicense(t.License),
	}
	if backend, err := engine.ParseBackend(strings.ToLower(t.Backend)); err == nil {
		results = append(results, c.CheckMirrors(t.RootDir, backend))
	}
	return results
}

// HasCriticalFailures returns true if any required check failed.
func (c *Checker) HasCriticalFailures(results []CheckResult) bool {
	for _, r := range results {
		if r.IsCritical() {
			return true
		}
	}
	return false
}

// SummaryStatus returns a summary status string for the results.
func (c *Checker) SummaryStatus(results []CheckResult) string {
	hasWarnings := false
	hasCriticalFailure := false

	for _, r := range results {
		if r.IsCritical() {
			hasCriticalFailure = true
		}
		if r.Status == StatusWarn || (r.Status == StatusFail && !r.Required) {
			hasWarnings = true
		}
	}

	if hasCriticalFailure {
		return "failed"
	}
	if hasWarnings {
		return "ready_with_warnings"
	}
	return "ready"
}

// PrintResults prints check results to the configured output.
func (c *Checker) PrintResults(results []CheckResult) {
	_, _ = fmt.Fprintln(c.output, "offsearch System Check")
	_, _ = fmt.Fprintln(c.output, "======================")
	_, _ = fmt.Fprintln(c.output)

	for _, r := range results {
		_, _ = fmt.Fprintf(c.output, "[%s] %s: %s\n", r.Status, r.Name, r.Message)
		if c.verbose && r.Details != "" {
			_, _ = fmt.Fprintf(c.output, "      %s\n", r.Details)
		}
	}

	_, _ = fmt.Fprintln(c.output)
	_, _ = fmt.Fprintf(c.output, "Status: %s\n", strings.ToUpper(c.SummaryStatus(results)))

	var warnings, errors []string
	for _, r := range results {
		if r.IsCritical() {
			errors = append(errors, r.Name+": "+r.Message)
		} else if r.Status != StatusPass {
			warnings = append(warnings, r.Name+": "+r.Message)
		}
	}

	if len(errors) > 0 {
		_, _ = fmt.Fprintln(c.output)
		_, _ = fmt.Fprintf(c.output, "%d error(s):\n", len(errors))
		for _, e := range errors {
			_, _ = fmt.Fprintf(c.output, "  - %s\n", e)
		}
	}

	if len(warnings) > 0 {
		_, _ = fmt.Fprintln(c.output)
		_, _ = fmt.Fprintf(c.output, "%d warning(s):\n", len(warnings))
		for _, w := range warnings {
			_, _ = fmt.Fprintf(c.output, "  - %s\n", w)
		}
	}
}

// CheckWritePermissions checks that dir exists or can be created, and that
// files can be written in it.
func (c *Checker) CheckWritePermissions(name, dir string) CheckResult {
	result := CheckResult{
		Name:     name,
		Required: true,
	}
	if dir == "" {
		result.Status = StatusFail
		result.Message = "not configured"
		return result
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("cannot create %s: %v", dir, err)
		return result
	}

	f, err := os.CreateTemp(dir, ".offsearch-preflight-*")
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("permission denied: %v", err)
		return result
	}
	_ = f.Close()
	_ = os.Remove(f.Name())

	result.Status = StatusPass
	result.Message = dir
	return result
}

// CheckBackend checks that the configured engine backend is known.
func (c *Checker) CheckBackend(backend string) CheckResult {
	result := CheckResult{
		Name:     "engine_backend",
		Required: true,
	}
	b, err := engine.ParseBackend(strings.ToLower(backend))
	if err != nil {
		result.Status = StatusFail
		result.Message = err.Error()
		return result
	}
	result.Status = StatusPass
	result.Message = string(b)
	return result
}

// CheckLicense warns when no license is configured. Mirrors can still be
// inspected without one, but nothing can be built or searched.
func (c *Checker) CheckLicense(license string) CheckResult {
	result := CheckResult{Name: "license"}
	if strings.TrimSpace(license) == "" {
		result.Status = StatusWarn
		result.Message = "not configured"
		result.Details = "Set OFFSEARCH_LICENSE or engine.license to enable offline mode"
		return result
	}
	result.Status = StatusPass
	result.Message = "configured"
	return result
}

// CheckMirrors warns about index directories holding data from a backend
// other than the configured one. The configured engine does not read them,
// so they stay unsearchable until rebuilt.
func (c *Checker) CheckMirrors(rootDir string, backend engine.Backend) CheckResult {
	result := CheckResult{Name: "mirrors"}

	entries, err := os.ReadDir(rootDir)
	if err != nil && !os.IsNotExist(err) {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("cannot list mirrors: %v", err)
		return result
	}

	var found int
	var foreign []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		onDisk := engine.DetectBackend(filepath.Join(rootDir, e.Name()))
		if onDisk == "" {
			continue
		}
		found++
		if onDisk != backend {
			foreign = append(foreign, fmt.Sprintf("%s (%s)", e.Name(), onDisk))
		}
	}
	sort.Strings(foreign)

	if len(foreign) > 0 {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("%d of %d built with another backend", len(foreign), found)
		result.Details = strings.Join(foreign, ", ")
		return result
	}
	result.Status = StatusPass
	result.Message = fmt.Sprintf("%d on disk", found)
	return result
}
