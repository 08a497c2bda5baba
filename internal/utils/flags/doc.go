// Package flags binds the shared repository selection, toggle, and choice flags to Cobra commands.
package flags
