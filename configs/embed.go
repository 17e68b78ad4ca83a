// Package configs provides the embedded configuration template for
// lumen. The template is embedded at build time so 'lumen config init'
// works in every distribution, source builds included.
package configs

import _ "embed"

// UserConfigTemplate is written by 'lumen config init' to
// ~/.config/lumen/config.yaml. Every value in it is optional; the
// loader fills anything unset with a working default.
//
//go:embed user-config.example.yaml
var UserConfigTemplate string
