// Package cli constructs the repowatch command-line interface, wiring the
// Cobra command hierarchy, configuration loader, and structured logging.
// Execute builds the default application and runs it with the process arguments.
package cli
