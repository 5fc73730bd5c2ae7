// Package config loads, normalizes, and validates beatviz configuration.
//
// Settings come from a TOML file (by default ~/.config/beatviz/config.toml,
// or beatviz.toml in the working directory) layered over repository
// defaults. Command-line flags override the loaded values afterwards; the
// result is checked by Validate before any device or terminal is touched.
package config
