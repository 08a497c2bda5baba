// Package watch keeps the collection of watched repositories, classifies each one on every
// polling cycle, and exposes the watch and status commands that render the results.
//
// A Manager owns individually registered repositories and scanned directory groups.
// StatusReport re-inspects all of them and never lets one failing repository hide the others.
// The Watcher loops over StatusReport until the report is settled or its context ends.
package watch
