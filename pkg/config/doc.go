// Package config loads and validates application settings from the process
// environment.
//
// Settings is a flat, immutable record constructed once at process start.
// Values come from environment variables (with a .env file overlay for local
// development via godotenv) and are parsed through struct tags. Validation
// happens at construction time: enumerated values (environment, deployment
// platform) are checked against their allowed sets and settings without a
// usable default must be present, so misconfiguration fails the process
// before any resource is opened.
//
// List-valued settings such as CORS_ORIGINS or JWT_ALGORITHMS are given as
// comma-separated environment values and surface as []string. All string
// splitting happens here, at the configuration boundary; business logic only
// ever sees typed slices.
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
