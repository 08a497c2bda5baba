// Package credentials resolves go-git transport authentication for remote URLs.
//
// ConfiguredSupplier matches remotes against configured entries and produces
// HTTP basic auth or SSH agent auth. Remotes without a matching entry are
// reported as having no credentials so callers can skip them.
package credentials
