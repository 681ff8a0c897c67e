// Package config loads sqlbridge configuration from YAML.
//
// Loading order:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern SQLBRIDGE_SECTION_KEY, for
// example SQLBRIDGE_DATABASE_TYPE or SQLBRIDGE_MYSQL_PASSWORD, so
// credentials can be kept out of the file.
//
// Validation runs last: a missing required connection parameter (host,
// user, password, database for networked engines; path for SQLite) is a
// configuration error raised at load time, before any connection attempt.
package config
