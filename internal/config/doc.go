// Package config provides centralized configuration management for sczmerge.
// It handles loading configuration from multiple sources, validation, and path
// resolution for the merge job.
//
// # Configuration Sources
//
// Configuration is loaded from the following sources in order of precedence:
//
//	1. Command line flags (highest priority, applied by cmd/sczmerge)
//	2. Environment variables
//	3. Configuration file (YAML)
//	4. Default values (lowest priority)
//
// # Environment Variables
//
// All environment variables follow the pattern SCZ_<SECTION>_<FIELD>:
//
//	SCZ_PATHS_INPUT_DIR=/data/processed
//	SCZ_PATHS_OUTPUT_DIR=/data/unified
//	SCZ_LOAD_ON_ERROR=skip
//	SCZ_LOAD_WORKERS=4
//	SCZ_RULES_NUMERIC=PESO,IDADEGES
//	SCZ_LOGGING_LEVEL=debug
//
// # Configuration File
//
// When no file is given explicitly, sczmerge.yaml is looked up in the working
// directory and in configs/:
//
//	paths:
//	  input_dir: data/processed
//	  output_dir: data/unified
//	load:
//	  on_error: skip
//	  exclude_patterns: ["*_backup.csv"]
//	output:
//	  parquet: true
//	  xlsx: false
//
// # Path Management
//
// ResolvePaths returns absolute locations for the input tree, the output
// directory and every artifact. The output directory defaults to the input
// directory; discovery excludes the artifacts themselves so a previous run's
// output is never merged again.
package config
