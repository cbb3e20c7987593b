// Package file provides the TOML configuration for kbase.
//
// Config is the typed view used to wire the application; ConfigStore is the
// flat dotted-key view behind `kbase config get/set`. Both read the same
// file, by default ~/.kbase/config.toml.
package file
