// Package config loads, normalizes, and validates vidqueue configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// MINIO_ROOT_USER. The Config type centralizes every knob the daemon and CLI
// need, including the rendition ladder, so a ladder change is a config edit.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
