// Package config loads and validates the bot's environment-driven configuration.
//
// Values are assembled in priority order: built-in defaults, an optional YAML
// overlay file, then environment variables. Unknown environment variables are
// ignored; invalid values fail Load with a descriptive error rather than
// falling back silently, since a misconfigured provider temperature or a bad
// database driver name should stop the process at startup, not at the first
// request.
package config
