// Package helper provides testing utilities and log handlers for PostgreSQL circulation store testing.
//
// This package contains shared testing infrastructure including custom log handlers
// for capturing and validating log output during tests, used across the PostgreSQL
// circulation store test suite.
package helper
