// Package config defines the Saturn configuration model, YAML loading
// with SATURN_* environment overrides, validation, and hot reload of the
// admission rule tables via file watching.
//
// Only the cost rules and tier catalog are hot-reloadable. Server
// addresses, storage backends, and connection settings require a restart;
// the watcher reloads the file, revalidates it, and hands just the rule
// tables to the reload callback.
package config
