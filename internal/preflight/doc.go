// Package preflight checks that offsearch can run on this machine before
// mirrors are built or served.
//
// The package validates:
//   - Write access to the data and temp directories
//   - Disk space available for mirror data (minimum 100MB)
//   - File descriptor limits (minimum 1024)
//   - The configured engine backend and license
//   - Mirrors on disk built with another backend
//
// Use the Checker type to run all validations:
//
//	checker := preflight.New()
//	results := checker.RunAll(ctx, preflight.Target{RootDir: dir, TempDir: tmp})
//	if checker.HasCriticalFailures(results) {
//	    // Handle failures
//	}
package preflight
