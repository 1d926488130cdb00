// Package config loads declarative retry configuration from YAML and keeps
// a running invoker in sync with it.
//
// Load reads and validates a file, Apply pushes the ceiling and backoff
// strategy onto an invoker, and Watcher reloads the file on change so retry
// behavior can be tuned without a restart.
package config
