// Package config loads the YAML configuration for a Vanguard process.
//
// Load applies the file over Default, so a partial config only needs to
// name the options it changes. Validate rejects values the pipeline cannot
// run with rather than failing later at runtime.
package config
