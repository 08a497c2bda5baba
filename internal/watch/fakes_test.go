package watch_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/temirov/repowatch/internal/gitrepo"
	"github.com/temirov/repowatch/internal/repos/shared"
	"github.com/temirov/repowatch/internal/status"
)

const testSubtestTemplateConstant = "%d_%s"

var testGeneratedAt = time.Date(2024, time.March, 4, 9, 30, 0, 0, time.UTC)

type fixedClock struct{}

func (fixedClock) Now() time.Time { return testGeneratedAt }

type fakeInspector struct {
	path          string
	snapshot      status.Snapshot
	snapshotError error
	fetchOutcome  gitrepo.FetchOutcome

	mutex        sync.Mutex
	fetchRemotes []string
}

func (inspector *fakeInspector) Path() string { return inspector.path }

func (inspector *fakeInspector) Fetch(_ context.Context, remoteName string) gitrepo.FetchOutcome {
	inspector.mutex.Lock()
	defer inspector.mutex.Unlock()
	inspector.fetchRemotes = append(inspector.fetchRemotes, remoteName)
	return inspector.fetchOutcome
}

func (inspector *fakeInspector) Snapshot() (status.Snapshot, error) {
	if inspector.snapshotError != nil {
		return status.Snapshot{}, inspector.snapshotError
	}
	snapshot := inspector.snapshot
	snapshot.Path = inspector.path
	return snapshot, nil
}

func (inspector *fakeInspector) fetchCount() int {
	inspector.mutex.Lock()
	defer inspector.mutex.Unlock()
	return len(inspector.fetchRemotes)
}

type fakeOpener struct {
	inspectors map[string]*fakeInspector
	failures   map[string]error
	opened     []string
}

func newFakeOpener(inspectors ...*fakeInspector) *fakeOpener {
	opener := &fakeOpener{inspectors: make(map[string]*fakeInspector), failures: make(map[string]error)}
	for _, inspector := range inspectors {
		opener.inspectors[inspector.path] = inspector
	}
	return opener
}

func (opener *fakeOpener) Open(repositoryPath string) (shared.RepositoryInspector, error) {
	opener.opened = append(opener.opened, repositoryPath)
	if failure, failing := opener.failures[repositoryPath]; failing {
		return nil, failure
	}
	if inspector, known := opener.inspectors[repositoryPath]; known {
		return inspector, nil
	}
	return nil, fmt.Errorf("%s: %w", repositoryPath, gitrepo.ErrNotRepository)
}

type fakeLister struct {
	children map[string][]string
}

func (lister fakeLister) ListChildDirectories(directory string) ([]string, error) {
	children, known := lister.children[directory]
	if !known {
		return nil, fmt.Errorf("failed to list %s", directory)
	}
	return children, nil
}

func cleanSnapshot() status.Snapshot {
	return status.NewSnapshot(status.SnapshotInput{
		Tracking: map[string]status.BranchComparison{"master": {}},
	})
}

func trackingSnapshot(ahead int, behind int) status.Snapshot {
	return status.NewSnapshot(status.SnapshotInput{
		Tracking: map[string]status.BranchComparison{"master": {Ahead: ahead, Behind: behind}},
	})
}

func dirtySnapshot() status.Snapshot {
	return status.NewSnapshot(status.SnapshotInput{
		Tracking: map[string]status.BranchComparison{"master": {}},
		Modified: []string{"main.go"},
	})
}
