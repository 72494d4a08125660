// Package configs provides embedded configuration templates for offsearch.
//
// Templates are embedded at build time so `offsearch config init` works
// from source builds and binary releases alike.
package configs

import _ "embed"

// UserConfigTemplate is written by `offsearch config init` to the user
// config path (see config.GetUserConfigPath).
//
//go:embed user-config.example.yaml
var UserConfigTemplate string
