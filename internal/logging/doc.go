// Package logging provides structured slog logging for offsearch with an
// optional size-rotated JSON log file under ~/.offsearch/logs/.
//
// CLI commands log to the file only so their output stays clean. The daemon
// also writes to stderr unless stdio carries MCP. Viewer reads the file back
// for 'offsearch logs'.
package logging
