// Package status holds the repository snapshot model and the classifier that
// turns a snapshot into a single recommended action.
//
// The classifier is a pure function of a Snapshot and a Policy. It never sees
// version-control library types; file states arrive already reduced to the
// closed FileState enumeration.
package status
