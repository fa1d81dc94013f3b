// Package config defines the settings of the door controller, the auth
// server and the allow-list generator, and provides helpers to load,
// validate and save them in YAML or TOML format.
//
// Values from the file can be overridden by ACCESS_* environment variables.
// Each binary validates only the section it uses.
package config
