// Package utils exposes reusable helpers consumed by the CLI.
//
// ConfigurationLoader layers embedded defaults, configuration files, and
// environment variables through Viper; LoggerFactory builds zap loggers that
// write to stderr.
package utils
