// Package config loads the lobby server configuration.
//
// Configuration comes from a JSON file (generated with defaults on first
// run, so operators have something to edit), with environment variables
// taking precedence for deployment overrides. A .env file, when present, is
// loaded by the caller before Load runs.
package config
