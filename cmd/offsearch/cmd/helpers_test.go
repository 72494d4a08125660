package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const productRecords = `[
	{"objectID": "1", "name": "Espresso Machine", "brand": "Brewster"},
	{"objectID": "2", "name": "Coffee Grinder", "brand": "Brewster"},
	{"objectID": "3", "name": "Tea Kettle", "brand": "Steep"}
]`

// isolate points every path the CLI touches at a fresh temp directory.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("OFFSEARCH_DATA_DIR", filepath.Join(dir, "mirrors"))
	t.Setenv("OFFSEARCH_TEMP_DIR", filepath.Join(dir, "tmp"))
	t.Setenv("OFFSEARCH_LICENSE", "VALID")
	t.Setenv("OFFSEARCH_SOCKET", fmt.Sprintf("/tmp/offsearch-cmd-%d.sock", time.Now().UnixNano()))
	t.Setenv("NO_COLOR", "1")
	t.Chdir(dir)
	return dir
}

func writeRecords(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

// run executes the root command with args and returns stdout and stderr.
func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	root := NewRootCmd()
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	return stdout.String(), stderr.String(), err
}
