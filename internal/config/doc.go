// Package config defines the settings of the intuneapp binary and provides
// helpers to load, validate and save them.
//
// Settings are stored as YAML. Files ending in .json or .jsonc are accepted
// too; comments and trailing commas are stripped before decoding. Missing
// values are filled with defaults by Validate, so an empty file is a valid
// configuration.
package config
