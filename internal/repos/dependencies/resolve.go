package dependencies

import (
	"go.uber.org/zap"

	"github.com/temirov/repowatch/internal/gitrepo"
	"github.com/temirov/repowatch/internal/repos/discovery"
	"github.com/temirov/repowatch/internal/repos/filesystem"
	"github.com/temirov/repowatch/internal/repos/shared"
)

// ResolveRepositoryDiscoverer returns the provided discoverer or a filesystem-backed default.
func ResolveRepositoryDiscoverer(existing shared.RepositoryDiscoverer) shared.RepositoryDiscoverer {
	if existing != nil {
		return existing
	}
	return discovery.NewFilesystemRepositoryDiscoverer()
}

// ResolveFileSystem returns the provided filesystem or an OS-backed default.
func ResolveFileSystem(existing shared.FileSystem) shared.FileSystem {
	if existing != nil {
		return existing
	}
	return filesystem.OSFileSystem{}
}

// ResolveDirectoryLister returns the provided lister or one backed by the resolved filesystem.
func ResolveDirectoryLister(existing shared.DirectoryLister, fileSystem shared.FileSystem) shared.DirectoryLister {
	if existing != nil {
		return existing
	}
	return discovery.NewFilesystemDirectoryLister(ResolveFileSystem(fileSystem))
}

// ResolveInspectorOpener returns the provided opener or a go-git backed default.
func ResolveInspectorOpener(existing shared.InspectorOpener, logger *zap.Logger, authSupplier gitrepo.AuthSupplier, scanIgnored bool) shared.InspectorOpener {
	if existing != nil {
		return existing
	}
	return GitInspectorOpener{
		Options: gitrepo.Options{
			Logger:              logger,
			AuthSupplier:        authSupplier,
			SkipIgnoredScanning: !scanIgnored,
		},
	}
}

// GitInspectorOpener opens repositories through gitrepo.Open.
type GitInspectorOpener struct {
	Options gitrepo.Options
}

// Open opens the working directory at repositoryPath.
func (opener GitInspectorOpener) Open(repositoryPath string) (shared.RepositoryInspector, error) {
	inspector, openError := gitrepo.Open(repositoryPath, opener.Options)
	if openError != nil {
		return nil, openError
	}
	return inspector, nil
}
