package dependencies_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/repowatch/internal/gitrepo"
	"github.com/temirov/repowatch/internal/gitrepo/gitrepotest"
	"github.com/temirov/repowatch/internal/repos/dependencies"
	"github.com/temirov/repowatch/internal/repos/discovery"
	"github.com/temirov/repowatch/internal/repos/filesystem"
)

func TestResolversPreferProvidedImplementations(testInstance *testing.T) {
	providedDiscoverer := discovery.NewFilesystemRepositoryDiscoverer()
	require.Same(testInstance, providedDiscoverer, dependencies.ResolveRepositoryDiscoverer(providedDiscoverer))

	providedLister := discovery.NewFilesystemDirectoryLister(nil)
	require.Same(testInstance, providedLister, dependencies.ResolveDirectoryLister(providedLister, nil))

	require.Equal(testInstance, filesystem.OSFileSystem{}, dependencies.ResolveFileSystem(nil))
	require.NotNil(testInstance, dependencies.ResolveDirectoryLister(nil, nil))
}

func TestGitInspectorOpenerOpensRepositories(testInstance *testing.T) {
	repositoryPath := filepath.Join(testInstance.TempDir(), "service")
	gitrepotest.Init(testInstance, repositoryPath)

	opener := dependencies.ResolveInspectorOpener(nil, nil, nil, true)

	inspector, openError := opener.Open(repositoryPath)
	require.NoError(testInstance, openError)
	require.Equal(testInstance, repositoryPath, inspector.Path())

	_, plainError := opener.Open(testInstance.TempDir())
	require.ErrorIs(testInstance, plainError, gitrepo.ErrNotRepository)
}
