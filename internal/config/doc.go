// Package config loads the application configuration.
//
// # Configuration Sources
//
// Values are layered, later sources winning:
//
//	1. Default()
//	2. A YAML file: $IDSCHOOL_CONFIG, else idschooldata.yaml, config.yaml
//	   or configs/config.yaml in the working directory
//	3. IDSCHOOL_* environment variables
//
// # Environment Variables
//
// Nested sections join with underscores:
//
//	IDSCHOOL_SERVER_PORT=8080
//	IDSCHOOL_CACHE_BACKEND=bolt
//	IDSCHOOL_SOURCE_MIRRORS=https://a.example/enr.xlsx,https://b.example/enr.xlsx
//	IDSCHOOL_YEARS_MAX=2026
//
// # Validation
//
// The merged Config is validated with go-playground/validator struct tags
// plus a few cross-field rules (the minio backend needs an endpoint and a
// bucket, building_min_year cannot precede years.min).
//
// # Paths
//
// ResolvePaths converts the configured directories into absolute ones;
// EnsureDirectories creates them.
package config
