package discovery

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/temirov/repowatch/internal/repos/shared"
)

const (
	gitMetadataDirectoryNameConstant   = ".git"
	listDirectoryErrorTemplateConstant = "failed to list %s: %w"
)

// FilesystemRepositoryDiscoverer locates git repositories on disk.
type FilesystemRepositoryDiscoverer struct{}

// NewFilesystemRepositoryDiscoverer constructs a repository discoverer backed by filepath.WalkDir.
func NewFilesystemRepositoryDiscoverer() *FilesystemRepositoryDiscoverer {
	return &FilesystemRepositoryDiscoverer{}
}

// DiscoverRepositories walks the provided roots and returns directories containing a .git entry.
// Unreadable subdirectories are skipped. The walk does not descend into a repository once found,
// so repositories nested inside another working tree are not reported.
func (discoverer *FilesystemRepositoryDiscoverer) DiscoverRepositories(roots []string) ([]string, error) {
	seen := make(map[string]struct{})
	var repositories []string

	for _, root := range roots {
		walkError := filepath.WalkDir(root, func(path string, directoryEntry fs.DirEntry, walkError error) error {
			if walkError != nil || !directoryEntry.IsDir() {
				return nil
			}
			if _, statError := os.Lstat(filepath.Join(path, gitMetadataDirectoryNameConstant)); statError != nil {
				return nil
			}

			repositoryPath := filepath.Clean(path)
			if _, alreadySeen := seen[repositoryPath]; !alreadySeen {
				seen[repositoryPath] = struct{}{}
				repositories = append(repositories, repositoryPath)
			}
			return fs.SkipDir
		})
		if walkError != nil {
			return nil, walkError
		}
	}

	sort.Strings(repositories)
	return repositories, nil
}

// FilesystemDirectoryLister lists the immediate child directories of a directory.
type FilesystemDirectoryLister struct {
	fileSystem shared.FileSystem
}

// NewFilesystemDirectoryLister constructs a lister over the provided filesystem.
func NewFilesystemDirectoryLister(fileSystem shared.FileSystem) *FilesystemDirectoryLister {
	return &FilesystemDirectoryLister{fileSystem: fileSystem}
}

// ListChildDirectories returns sorted paths of the child directories of directory.
// Plain files are skipped; symbolic links count when they resolve to directories.
func (lister *FilesystemDirectoryLister) ListChildDirectories(directory string) ([]string, error) {
	entries, readError := lister.readDir(directory)
	if readError != nil {
		return nil, fmt.Errorf(listDirectoryErrorTemplateConstant, directory, readError)
	}

	childDirectories := make([]string, 0, len(entries))
	for _, entry := range entries {
		childPath := filepath.Join(directory, entry.Name())
		if entry.IsDir() {
			childDirectories = append(childDirectories, childPath)
			continue
		}
		if entry.Type()&fs.ModeSymlink == 0 {
			continue
		}
		if targetInfo, statError := lister.stat(childPath); statError == nil && targetInfo.IsDir() {
			childDirectories = append(childDirectories, childPath)
		}
	}

	sort.Strings(childDirectories)
	return childDirectories, nil
}

func (lister *FilesystemDirectoryLister) readDir(directory string) ([]fs.DirEntry, error) {
	if lister == nil || lister.fileSystem == nil {
		return os.ReadDir(directory)
	}
	return lister.fileSystem.ReadDir(directory)
}

func (lister *FilesystemDirectoryLister) stat(path string) (fs.FileInfo, error) {
	if lister == nil || lister.fileSystem == nil {
		return os.Stat(path)
	}
	return lister.fileSystem.Stat(path)
}
