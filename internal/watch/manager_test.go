package watch_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/repowatch/internal/gitrepo"
	"github.com/temirov/repowatch/internal/gitrepo/gitrepotest"
	"github.com/temirov/repowatch/internal/repos/dependencies"
	"github.com/temirov/repowatch/internal/repos/discovery"
	"github.com/temirov/repowatch/internal/status"
	"github.com/temirov/repowatch/internal/watch"
)

func newFakeManager(testInstance *testing.T, opener *fakeOpener, lister fakeLister) *watch.Manager {
	testInstance.Helper()
	manager, managerError := watch.NewManager(watch.Dependencies{
		Opener:          opener,
		DirectoryLister: lister,
		Clock:           fixedClock{},
	}, watch.ManagerOptions{})
	require.NoError(testInstance, managerError)
	return manager
}

func newGitManager(testInstance *testing.T) *watch.Manager {
	testInstance.Helper()
	manager, managerError := watch.NewManager(watch.Dependencies{
		Opener:          dependencies.GitInspectorOpener{},
		DirectoryLister: discovery.NewFilesystemDirectoryLister(nil),
		Discoverer:      discovery.NewFilesystemRepositoryDiscoverer(),
	}, watch.ManagerOptions{FetchConcurrency: 2})
	require.NoError(testInstance, managerError)
	return manager
}

func TestNewManagerRequiresCollaborators(testInstance *testing.T) {
	_, missingOpenerError := watch.NewManager(watch.Dependencies{DirectoryLister: fakeLister{}}, watch.ManagerOptions{})
	require.ErrorIs(testInstance, missingOpenerError, watch.ErrInspectorOpenerMissing)

	_, missingListerError := watch.NewManager(watch.Dependencies{Opener: newFakeOpener()}, watch.ManagerOptions{})
	require.ErrorIs(testInstance, missingListerError, watch.ErrDirectoryListerMissing)
}

func TestManagerAddPathIsIdempotent(testInstance *testing.T) {
	opener := newFakeOpener(&fakeInspector{path: "/srv/api", snapshot: cleanSnapshot()})
	manager := newFakeManager(testInstance, opener, fakeLister{})

	require.NoError(testInstance, manager.AddPath("/srv/api"))
	require.NoError(testInstance, manager.AddPath("/srv/web/../api/"))
	require.Equal(testInstance, []string{"/srv/api"}, opener.opened)

	report, reportError := manager.StatusReport(context.Background())
	require.NoError(testInstance, reportError)
	require.Len(testInstance, report.Entries, 1)
	require.Equal(testInstance, testGeneratedAt, report.GeneratedAt)
}

func TestManagerAddPathRejectsUnusablePaths(testInstance *testing.T) {
	opener := newFakeOpener()
	opener.failures["/srv/broken"] = errors.New("corrupt object database")
	manager := newFakeManager(testInstance, opener, fakeLister{})

	testCases := []struct {
		name          string
		path          string
		expectedError error
	}{
		{name: "blank", path: "  ", expectedError: watch.ErrEmptyPath},
		{name: "plain_directory", path: "/srv/notes", expectedError: gitrepo.ErrNotRepository},
		{name: "open_failure", path: "/srv/broken"},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf(testSubtestTemplateConstant, testCaseIndex, testCase.name), func(testInstance *testing.T) {
			addError := manager.AddPath(testCase.path)
			require.Error(testInstance, addError)
			if testCase.expectedError != nil {
				require.ErrorIs(testInstance, addError, testCase.expectedError)
			}
		})
	}
}

func TestManagerStatusReportOrdersIndividualsBeforeGroups(testInstance *testing.T) {
	opener := newFakeOpener(
		&fakeInspector{path: "/srv/zeta", snapshot: trackingSnapshot(0, 2)},
		&fakeInspector{path: "/srv/alpha", snapshot: trackingSnapshot(1, 0)},
		&fakeInspector{path: "/work/b/api", snapshot: dirtySnapshot()},
		&fakeInspector{path: "/work/a/web", snapshot: cleanSnapshot()},
		&fakeInspector{path: "/work/a/cli", snapshot: trackingSnapshot(2, 3)},
	)
	lister := fakeLister{children: map[string][]string{
		"/work/a": {"/work/a/web", "/work/a/docs", "/work/a/cli"},
		"/work/b": {"/work/b/api"},
	}}
	manager := newFakeManager(testInstance, opener, lister)

	require.NoError(testInstance, manager.AddDirectory("/work/b"))
	require.NoError(testInstance, manager.AddPath("/srv/zeta"))
	require.NoError(testInstance, manager.AddDirectory("/work/a"))
	require.NoError(testInstance, manager.AddPath("/srv/alpha"))

	report, reportError := manager.StatusReport(context.Background())
	require.NoError(testInstance, reportError)

	var paths []string
	var actions []status.Action
	for _, entry := range report.Entries {
		paths = append(paths, entry.Path)
		actions = append(actions, entry.Action)
	}
	require.Equal(testInstance, []string{"/srv/alpha", "/srv/zeta", "/work/a/cli", "/work/a/web", "/work/b/api"}, paths)
	require.Equal(testInstance, []status.Action{
		status.ActionPush,
		status.ActionFastForwardPull,
		status.ActionDiverged,
		status.ActionNone,
		status.ActionDirty,
	}, actions)
	require.Equal(testInstance, "/work/a", report.Entries[2].Group)
	require.Empty(testInstance, report.Entries[0].Group)
	require.Equal(testInstance, []watch.GroupListing{{Directory: "/work/a", NonRepositories: []string{"docs"}}}, report.Groups)
	require.False(testInstance, report.Settled())

	expected := "repo /srv/alpha You can just PUSH (master)\n" +
		"repo /srv/zeta You can FAST FORWARD MERGE (master)\n" +
		"repo /work/a/cli DIVERGED (master)\n" +
		"repo /work/b/api has DIRTY work directory\n" +
		"docs\n"
	require.Equal(testInstance, expected, report.String())
}

func TestManagerAddDirectoryIsIdempotentAndLogsUnexpectedOpenFailures(testInstance *testing.T) {
	opener := newFakeOpener(&fakeInspector{path: "/work/api", snapshot: cleanSnapshot()})
	opener.failures["/work/locked"] = errors.New("permission denied")
	lister := fakeLister{children: map[string][]string{"/work": {"/work/api", "/work/locked"}}}
	manager := newFakeManager(testInstance, opener, lister)

	require.NoError(testInstance, manager.AddDirectory("/work"))
	require.NoError(testInstance, manager.AddDirectory("/work/"))
	require.Len(testInstance, opener.opened, 2)

	report, reportError := manager.StatusReport(context.Background())
	require.NoError(testInstance, reportError)
	require.Len(testInstance, report.Entries, 1)
	require.Equal(testInstance, []string{"locked"}, report.Groups[0].NonRepositories)
	require.True(testInstance, report.Settled())
}

func TestManagerAddDirectoryFailsWhenListingFails(testInstance *testing.T) {
	manager := newFakeManager(testInstance, newFakeOpener(), fakeLister{})
	require.Error(testInstance, manager.AddDirectory("/missing"))
}

func TestManagerStatusReportIsolatesSnapshotFailures(testInstance *testing.T) {
	snapshotFailure := gitrepo.UnknownFileStateError{Path: "weird.bin", Staging: 'X', Worktree: 'X'}
	opener := newFakeOpener(
		&fakeInspector{path: "/srv/api", snapshot: cleanSnapshot()},
		&fakeInspector{path: "/srv/broken", snapshotError: snapshotFailure},
		&fakeInspector{path: "/srv/web", snapshot: trackingSnapshot(0, 1)},
	)
	manager := newFakeManager(testInstance, opener, fakeLister{})
	for _, repositoryPath := range []string{"/srv/api", "/srv/broken", "/srv/web"} {
		require.NoError(testInstance, manager.AddPath(repositoryPath))
	}

	report, reportError := manager.StatusReport(context.Background())
	require.NoError(testInstance, reportError)
	require.Len(testInstance, report.Entries, 3)

	failed := report.Entries[1]
	require.Equal(testInstance, "/srv/broken", failed.Path)
	require.Equal(testInstance, snapshotFailure.Error(), failed.Failure)
	require.Equal(testInstance, status.FailureMessage("/srv/broken", snapshotFailure), failed.Message)
	require.Equal(testInstance, status.SeverityError, failed.Severity())
	require.Nil(testInstance, failed.Snapshot)

	require.Equal(testInstance, status.ActionNone, report.Entries[0].Action)
	require.Equal(testInstance, status.ActionFastForwardPull, report.Entries[2].Action)
	require.Equal(testInstance, &status.BranchComparison{Behind: 1}, report.Entries[2].Comparison)
	require.False(testInstance, report.Settled())
	require.Len(testInstance, report.AttentionEntries(), 2)
}

func TestManagerStatusReportStopsOnCancellation(testInstance *testing.T) {
	opener := newFakeOpener(&fakeInspector{path: "/srv/api", snapshot: cleanSnapshot()})
	manager := newFakeManager(testInstance, opener, fakeLister{})
	require.NoError(testInstance, manager.AddPath("/srv/api"))

	cancelledContext, cancel := context.WithCancel(context.Background())
	cancel()
	_, reportError := manager.StatusReport(cancelledContext)
	require.ErrorIs(testInstance, reportError, context.Canceled)
}

func TestManagerFetchAllCountsOutcomes(testInstance *testing.T) {
	inspectors := []*fakeInspector{
		{path: "/srv/a", fetchOutcome: gitrepo.FetchUpdated, snapshot: cleanSnapshot()},
		{path: "/srv/b", fetchOutcome: gitrepo.FetchFailed, snapshot: cleanSnapshot()},
		{path: "/srv/c", fetchOutcome: gitrepo.FetchSkipped, snapshot: cleanSnapshot()},
		{path: "/work/d", fetchOutcome: gitrepo.FetchUpToDate, snapshot: cleanSnapshot()},
	}
	opener := newFakeOpener(inspectors...)
	manager, managerError := watch.NewManager(watch.Dependencies{
		Opener:          opener,
		DirectoryLister: fakeLister{children: map[string][]string{"/work": {"/work/d"}}},
	}, watch.ManagerOptions{RemoteName: "upstream", FetchConcurrency: 1})
	require.NoError(testInstance, managerError)
	for _, repositoryPath := range []string{"/srv/a", "/srv/b", "/srv/c"} {
		require.NoError(testInstance, manager.AddPath(repositoryPath))
	}
	require.NoError(testInstance, manager.AddDirectory("/work"))

	summary := manager.FetchAll(context.Background())
	require.Equal(testInstance, watch.FetchSummary{Updated: 1, UpToDate: 1, Skipped: 1, Failed: 1}, summary)
	require.Equal(testInstance, 4, summary.Total())
	for _, inspector := range inspectors {
		require.Equal(testInstance, []string{"upstream"}, inspector.fetchRemotes)
	}
}

func TestManagerScanSeparatesRepositoriesFromPlainDirectories(testInstance *testing.T) {
	groupDirectory := testInstance.TempDir()
	repositoryPath := filepath.Join(groupDirectory, "service")
	gitrepotest.Init(testInstance, repositoryPath)
	require.NoError(testInstance, os.Mkdir(filepath.Join(groupDirectory, "notes"), 0o755))
	require.NoError(testInstance, os.WriteFile(filepath.Join(groupDirectory, "README.txt"), []byte("readme\n"), 0o644))

	manager := newGitManager(testInstance)
	require.NoError(testInstance, manager.AddDirectory(groupDirectory))

	report, reportError := manager.StatusReport(context.Background())
	require.NoError(testInstance, reportError)
	require.Len(testInstance, report.Entries, 1)
	require.Equal(testInstance, repositoryPath, report.Entries[0].Path)
	require.Equal(testInstance, groupDirectory, report.Entries[0].Group)
	require.Equal(testInstance, []watch.GroupListing{{Directory: groupDirectory, NonRepositories: []string{"notes"}}}, report.Groups)
	require.True(testInstance, report.Settled())
	require.Equal(testInstance, "notes\n", report.String())
}

func TestManagerFailingFetchDoesNotBlockOtherRepositories(testInstance *testing.T) {
	workspace := testInstance.TempDir()
	upstreamPath := filepath.Join(workspace, "upstream")
	upstream := gitrepotest.Init(testInstance, upstreamPath)

	first := gitrepotest.Clone(testInstance, upstreamPath, filepath.Join(workspace, "first"))
	second := gitrepotest.Clone(testInstance, upstreamPath, filepath.Join(workspace, "second"))
	orphan := gitrepotest.Init(testInstance, filepath.Join(workspace, "orphan"))
	orphan.AddRemote(gitrepotest.OriginRemoteName, filepath.Join(workspace, "missing-upstream"))
	upstream.Commit("CHANGELOG.md", "v2\n")

	manager := newGitManager(testInstance)
	for _, repositoryPath := range []string{first.Path, second.Path, orphan.Path} {
		require.NoError(testInstance, manager.AddPath(repositoryPath))
	}

	summary := manager.FetchAll(context.Background())
	require.Equal(testInstance, watch.FetchSummary{Updated: 2, Failed: 1}, summary)

	report, reportError := manager.StatusReport(context.Background())
	require.NoError(testInstance, reportError)
	require.Len(testInstance, report.Entries, 3)

	actions := make(map[string]status.Action, len(report.Entries))
	for _, entry := range report.Entries {
		require.Empty(testInstance, entry.Failure)
		actions[entry.Path] = entry.Action
	}
	require.Equal(testInstance, status.ActionFastForwardPull, actions[first.Path])
	require.Equal(testInstance, status.ActionFastForwardPull, actions[second.Path])
	require.Equal(testInstance, status.ActionNone, actions[orphan.Path])
}

func TestManagerFailingFetchDoesNotBlockGroupMembers(testInstance *testing.T) {
	workspace := testInstance.TempDir()
	upstreamPath := filepath.Join(workspace, "upstream")
	upstream := gitrepotest.Init(testInstance, upstreamPath)

	groupDirectory := filepath.Join(workspace, "group")
	first := gitrepotest.Clone(testInstance, upstreamPath, filepath.Join(groupDirectory, "first"))
	second := gitrepotest.Clone(testInstance, upstreamPath, filepath.Join(groupDirectory, "second"))
	orphan := gitrepotest.Init(testInstance, filepath.Join(groupDirectory, "orphan"))
	orphan.AddRemote(gitrepotest.OriginRemoteName, filepath.Join(workspace, "missing-upstream"))
	upstream.Commit("CHANGELOG.md", "v2\n")

	manager := newGitManager(testInstance)
	require.NoError(testInstance, manager.AddDirectory(groupDirectory))

	summary := manager.FetchAll(context.Background())
	require.Equal(testInstance, watch.FetchSummary{Updated: 2, Failed: 1}, summary)

	report, reportError := manager.StatusReport(context.Background())
	require.NoError(testInstance, reportError)
	require.Len(testInstance, report.Entries, 3)
	require.Empty(testInstance, report.Groups)

	actions := make(map[string]status.Action, len(report.Entries))
	for _, entry := range report.Entries {
		require.Empty(testInstance, entry.Failure)
		require.Equal(testInstance, groupDirectory, entry.Group)
		actions[entry.Path] = entry.Action
	}
	require.Equal(testInstance, status.ActionFastForwardPull, actions[first.Path])
	require.Equal(testInstance, status.ActionFastForwardPull, actions[second.Path])
	require.Equal(testInstance, status.ActionNone, actions[orphan.Path])
}

func TestManagerRegisterReportsAndRetriesUnavailableInputs(testInstance *testing.T) {
	opener := newFakeOpener(&fakeInspector{path: "/work/web", snapshot: cleanSnapshot()})
	manager := newFakeManager(testInstance, opener, fakeLister{children: map[string][]string{
		"/work": {"/work/web"},
	}})

	registered, registerError := manager.Register([]string{"/srv/api"}, []string{"/work", "/missing"})
	require.Equal(testInstance, 1, registered)
	require.ErrorIs(testInstance, registerError, gitrepo.ErrNotRepository)

	report, reportError := manager.StatusReport(context.Background())
	require.NoError(testInstance, reportError)
	require.Len(testInstance, report.Entries, 3)
	require.Equal(testInstance, "/work/web", report.Entries[0].Path)
	require.Equal(testInstance, "/missing", report.Entries[1].Path)
	require.NotEmpty(testInstance, report.Entries[1].Failure)
	require.Equal(testInstance, "/srv/api", report.Entries[2].Path)
	require.Contains(testInstance, report.Entries[2].Message, "repo /srv/api could not be inspected")
	require.False(testInstance, report.Settled())

	opener.inspectors["/srv/api"] = &fakeInspector{path: "/srv/api", snapshot: cleanSnapshot()}

	recovered, recoveredError := manager.StatusReport(context.Background())
	require.NoError(testInstance, recoveredError)
	require.Len(testInstance, recovered.Entries, 3)
	require.Equal(testInstance, "/srv/api", recovered.Entries[0].Path)
	require.Empty(testInstance, recovered.Entries[0].Failure)
	require.Equal(testInstance, "/work/web", recovered.Entries[1].Path)
	require.Equal(testInstance, "/missing", recovered.Entries[2].Path)
	require.NotEmpty(testInstance, recovered.Entries[2].Failure)
}

func TestManagerRegisterWithNothingUsable(testInstance *testing.T) {
	manager := newFakeManager(testInstance, newFakeOpener(), fakeLister{})

	registered, registerError := manager.Register([]string{"/srv/api"}, nil)
	require.Zero(testInstance, registered)
	require.ErrorIs(testInstance, registerError, gitrepo.ErrNotRepository)

	empty, emptyError := manager.Register(nil, nil)
	require.Zero(testInstance, empty)
	require.NoError(testInstance, emptyError)
}

func TestManagerAddRootsRegistersNestedRepositories(testInstance *testing.T) {
	root := testInstance.TempDir()
	gitrepotest.Init(testInstance, filepath.Join(root, "team", "api"))
	gitrepotest.Init(testInstance, filepath.Join(root, "web"))
	require.NoError(testInstance, os.MkdirAll(filepath.Join(root, "scratch", "notes"), 0o755))

	manager := newGitManager(testInstance)
	registered, rootsError := manager.AddRoots([]string{root})
	require.NoError(testInstance, rootsError)
	require.Equal(testInstance, 2, registered)

	report, reportError := manager.StatusReport(context.Background())
	require.NoError(testInstance, reportError)
	require.Len(testInstance, report.Entries, 2)
	require.Equal(testInstance, filepath.Join(root, "team", "api"), report.Entries[0].Path)
	require.Equal(testInstance, filepath.Join(root, "web"), report.Entries[1].Path)
}

func TestManagerAddRootsRequiresDiscoverer(testInstance *testing.T) {
	manager := newFakeManager(testInstance, newFakeOpener(), fakeLister{})
	_, rootsError := manager.AddRoots([]string{"/work"})
	require.ErrorIs(testInstance, rootsError, watch.ErrRepositoryDiscovererMissing)

	registered, emptyError := manager.AddRoots(nil)
	require.NoError(testInstance, emptyError)
	require.Zero(testInstance, registered)
}
