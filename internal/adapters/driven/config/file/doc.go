// Package file provides file-based implementations of driven port interfaces.
// These adapters persist data to the local filesystem.
//
// Adapters:
//   - ConfigStore: TOML-based project configuration (polymer-build.toml)
//   - LoadBuildConfig: maps a ConfigStore onto a domain.BuildConfig
package file
