package shared

import (
	"context"
	"io/fs"
	"time"

	"github.com/temirov/repowatch/internal/gitrepo"
	"github.com/temirov/repowatch/internal/status"
)

// Clock abstracts time acquisition for deterministic testing.
type Clock interface {
	Now() time.Time
}

// SystemClock implements Clock using the system time source.
type SystemClock struct{}

// Now returns the current system time.
func (SystemClock) Now() time.Time {
	return time.Now()
}

// FileSystem exposes the filesystem operations used while registering repositories.
type FileSystem interface {
	Stat(path string) (fs.FileInfo, error)
	Abs(path string) (string, error)
	ReadDir(path string) ([]fs.DirEntry, error)
}

// DirectoryLister enumerates the immediate child directories of a group directory.
type DirectoryLister interface {
	ListChildDirectories(directory string) ([]string, error)
}

// RepositoryDiscoverer locates git repositories beneath root directories at any depth.
type RepositoryDiscoverer interface {
	DiscoverRepositories(roots []string) ([]string, error)
}

// RepositoryInspector is one working directory that can be fetched and snapshotted.
type RepositoryInspector interface {
	Path() string
	Fetch(executionContext context.Context, remoteName string) gitrepo.FetchOutcome
	Snapshot() (status.Snapshot, error)
}

// InspectorOpener opens a RepositoryInspector for a path, failing with gitrepo.ErrNotRepository for plain directories.
type InspectorOpener interface {
	Open(repositoryPath string) (RepositoryInspector, error)
}
