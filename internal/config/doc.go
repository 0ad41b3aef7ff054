// Package config loads the application configuration from environment
// variables (with optional .env file support) and validates it at startup.
package config
