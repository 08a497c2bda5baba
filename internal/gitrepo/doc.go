// Package gitrepo inspects git working directories through go-git.
//
// Inspector opens a working directory, performs best-effort fetches, counts
// ahead/behind commits against upstreams, and assembles status.Snapshot values
// from remotes, branches, and working-tree file states.
package gitrepo
