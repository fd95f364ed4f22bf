// Package config provides configuration management for the record store
// service.
//
// This package handles loading and validating configuration from YAML files
// with environment variable overrides.
//
// # Configuration Loading
//
//	cfg, err := config.LoadConfigWithEnvOverrides("config.yaml")
//
// A missing file is not an error for LoadConfigWithEnvOverrides; the
// defaults are used instead, which is how the service runs in containers
// configured purely through the environment.
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention RECORDSTORE_SECTION_FIELD.
// For example:
//
//   - RECORDSTORE_SERVER_LISTEN_ADDRESS overrides server.listen_address
//   - RECORDSTORE_DATABASE_PATH overrides database.path
//   - RECORDSTORE_TELEMETRY_TRACING_ENDPOINT overrides telemetry.tracing.endpoint
//
// OTEL_SERVICE_NAME overrides telemetry.tracing.service_name.
//
// # Configuration Precedence
//
//  1. Default values (defined in defaults.go)
//  2. Values from YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// # Reloading
//
// Watcher observes the file with fsnotify and delivers each valid reload to
// a callback. The service uses it to change the log level without a restart.
//
// # Example Configuration
//
//	server:
//	  listen_address: "0.0.0.0:8000"
//
//	database:
//	  driver: "sqlite"
//	  path: "data/recordstore.db"
//
//	telemetry:
//	  logging:
//	    level: "info"
//	  tracing:
//	    endpoint: "jaeger:4317"
package config
