package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/offsearch/internal/config"
	"github.com/Aman-CERP/offsearch/pkg/version"
)

func TestRootCmd_Subcommands(t *testing.T) {
	root := NewRootCmd()

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}

	for _, want := range []string{"build", "search", "status", "serve", "stop", "config", "doctor", "logs", "version"} {
		assert.Contains(t, names, want)
	}
	assert.NotNil(t, root.PersistentFlags().Lookup("debug"))
}

func TestVersionCmd(t *testing.T) {
	out, _, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "offsearch")
	assert.Contains(t, out, version.Version)

	out, _, err = run(t, "version", "--short")
	require.NoError(t, err)
	assert.Equal(t, version.Version, strings.TrimSpace(out))

	out, _, err = run(t, "version", "--json")
	require.NoError(t, err)
	var info version.BuildInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, "offsearch", info.Name)
}

func TestStatusCmd_LocalListsMirrorsOnDisk(t *testing.T) {
	// Given: one built mirror and no daemon
	dir := isolate(t)
	src := writeRecords(t, dir, "products.json", productRecords)
	_, _, err := run(t, "build", "products="+src, "--plain")
	require.NoError(t, err)

	// When: status is requested as JSON
	out, _, err := run(t, "status", "--json")

	// Then: the mirror is found on disk and the daemon is reported down
	require.NoError(t, err)
	var info struct {
		Daemon string `json:"daemon"`
		Mirror struct {
			OfflineEnabled bool `json:"offline_enabled"`
			Indices        []struct {
				Name   string `json:"name"`
				OnDisk string `json:"on_disk"`
			} `json:"indices"`
		} `json:"mirror"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, "not running", info.Daemon)
	assert.True(t, info.Mirror.OfflineEnabled)
	require.Len(t, info.Mirror.Indices, 1)
	assert.Equal(t, "products", info.Mirror.Indices[0].Name)
	assert.Equal(t, "sqlite", info.Mirror.Indices[0].OnDisk)
}

func TestStatusCmd_Text(t *testing.T) {
	isolate(t)

	out, _, err := run(t, "status")

	require.NoError(t, err)
	assert.Contains(t, out, "Offline Search Status")
	assert.Contains(t, out, "No indices loaded.")
}

func TestConfigCmd_InitShowPath(t *testing.T) {
	isolate(t)

	// When: init runs twice
	out, _, err := run(t, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "Created user configuration")
	_, err = os.Stat(config.GetUserConfigPath())
	require.NoError(t, err)

	out, _, err = run(t, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "already exists")

	// Then: path and show work, and the license stays hidden
	out, _, err = run(t, "config", "path")
	require.NoError(t, err)
	assert.Equal(t, config.GetUserConfigPath(), strings.TrimSpace(out))

	out, _, err = run(t, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "backend: sqlite")
	assert.NotContains(t, out, "VALID")

	out, _, err = run(t, "config", "show", "--json")
	require.NoError(t, err)
	assert.NotContains(t, out, "VALID")
}

func TestServeCmd_NoSocketNeedsMCP(t *testing.T) {
	isolate(t)

	_, _, err := run(t, "serve", "--no-socket")

	assert.Error(t, err)
}

func TestStopCmd_NotRunning(t *testing.T) {
	isolate(t)

	out, _, err := run(t, "stop")

	require.NoError(t, err)
	assert.Contains(t, out, "Daemon is not running")
}

func TestDoctorCmd(t *testing.T) {
	// Given: an isolated environment with a license
	isolate(t)

	// When: doctor runs
	out, _, err := run(t, "doctor")

	// Then: all checks print and the run is marked passed
	require.NoError(t, err)
	assert.Contains(t, out, "offsearch System Check")
	assert.Contains(t, out, "[PASS] data_dir")
	assert.Contains(t, out, "[PASS] license")
	assert.Contains(t, out, "Status: READY")

	out, _, err = run(t, "doctor")
	require.NoError(t, err)
	assert.Contains(t, out, "Last successful check:")
}

func TestDoctorCmd_JSONWarnsWithoutLicense(t *testing.T) {
	isolate(t)
	t.Setenv("OFFSEARCH_LICENSE", "")

	out, _, err := run(t, "doctor", "--json")

	require.NoError(t, err)
	var report struct {
		Status   string   `json:"status"`
		Warnings []string `json:"warnings"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "ready_with_warnings", report.Status)
	assert.Contains(t, report.Warnings, "license: not configured")
}

func TestDoctorCmd_InvalidConfigFails(t *testing.T) {
	isolate(t)
	t.Setenv("OFFSEARCH_ENGINE", "postgres")

	_, _, err := run(t, "doctor")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "engine.backend")
}

func TestRootCmd_ProfileFlags(t *testing.T) {
	// Given: a heap profile request
	dir := isolate(t)
	heap := filepath.Join(dir, "heap.prof")

	// When: any command runs
	_, _, err := run(t, "version", "--short", "--profile-mem", heap)

	// Then: the profile is written after the command
	require.NoError(t, err)
	assert.FileExists(t, heap)
}

func TestLogsCmd_TailWithFilters(t *testing.T) {
	// Given: a log file with entries for two indices
	dir := isolate(t)
	path := writeRecords(t, dir, "offsearch.log", strings.Join([]string{
		`{"time":"2026-01-02T03:04:05Z","level":"INFO","msg":"bootstrap_finished","index":"products"}`,
		`{"time":"2026-01-02T03:04:06Z","level":"WARN","msg":"bootstrap_failed","index":"docs"}`,
		`{"time":"2026-01-02T03:04:07Z","level":"INFO","msg":"search_complete","index":"products"}`,
	}, "\n")+"\n")

	// When: the logs are filtered by index
	out, stderr, err := run(t, "logs", "--file", path, "--index", "products", "--no-color")

	// Then: only that index's entries are printed
	require.NoError(t, err)
	assert.Contains(t, stderr, "Log file: "+path)
	assert.Contains(t, out, "bootstrap_finished")
	assert.Contains(t, out, "search_complete")
	assert.NotContains(t, out, "bootstrap_failed")
}

func TestLogsCmd_Errors(t *testing.T) {
	dir := isolate(t)

	_, _, err := run(t, "logs", "--file", filepath.Join(dir, "missing.log"))
	require.Error(t, err)

	_, _, err = run(t, "logs", "--file", filepath.Join(dir, "missing.log"), "--filter", "(")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid filter pattern")
}
