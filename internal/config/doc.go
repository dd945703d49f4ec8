// Package config loads runtime configuration from multiple sources (YAML files,
// environment variables, CLI flags) with precedence: CLI flags > Environment
// variables > YAML config > Defaults. Besides the HTTP settings it carries the
// default knapsack capacity, the playback delays and the item catalog.
package config
