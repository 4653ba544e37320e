// Package config loads, normalizes, and validates epubsort configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML, YAML, or legacy JSON files, and honours environment
// overrides such as GOOGLE_API_KEY, INPUT_FOLDER, OUTPUT_FOLDER, DRY_RUN and
// HEADLESS. The Config type centralizes every knob the pipeline and CLI need.
//
// Always obtain settings through this package so downstream code receives
// absolute paths, canonical log formats, and clear validation errors.
package config
