// Package gitrepotest builds on-disk git repositories for tests.
package gitrepotest

import (
	"testing"
	"time"

	"github.com/go-git/go-billy/v5/util"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
	"github.com/stretchr/testify/require"
)

const (
	// MasterBranchName is the branch PlainInit checks out.
	MasterBranchName = "master"
	// OriginRemoteName is the remote configured by the fixtures.
	OriginRemoteName = "origin"
	// PlaceholderRemoteURL is an unreachable HTTPS remote.
	PlaceholderRemoteURL = "https://git.invalid/operator/service.git"

	authorNameConstant   = "Fixture Author"
	authorEmailConstant  = "fixture@example.invalid"
	filePermissionsValue = 0o644
)

var fixtureClock = time.Date(2024, time.January, 1, 12, 0, 0, 0, time.UTC)

// Repository wraps a go-git repository rooted in a temporary directory.
type Repository struct {
	testInstance *testing.T
	Path         string
	Repository   *git.Repository
	commitCount  int
}

// Init creates a non-bare repository at path with one initial commit on master.
func Init(testInstance *testing.T, path string) *Repository {
	testInstance.Helper()

	repository, initError := git.PlainInit(path, false)
	require.NoError(testInstance, initError)

	fixture := &Repository{testInstance: testInstance, Path: path, Repository: repository}
	fixture.Commit("README.md", "initial\n")
	return fixture
}

// InitBare creates a bare repository at path.
func InitBare(testInstance *testing.T, path string) {
	testInstance.Helper()
	_, initError := git.PlainInit(path, true)
	require.NoError(testInstance, initError)
}

// Clone clones sourcePath into path and configures master to track origin/master.
func Clone(testInstance *testing.T, sourcePath string, path string) *Repository {
	testInstance.Helper()

	repository, cloneError := git.PlainClone(path, false, &git.CloneOptions{URL: sourcePath})
	require.NoError(testInstance, cloneError)

	fixture := &Repository{testInstance: testInstance, Path: path, Repository: repository}
	fixture.TrackUpstream(MasterBranchName, OriginRemoteName)
	return fixture
}

// Worktree returns the repository worktree.
func (fixture *Repository) Worktree() *git.Worktree {
	fixture.testInstance.Helper()
	worktree, worktreeError := fixture.Repository.Worktree()
	require.NoError(fixture.testInstance, worktreeError)
	return worktree
}

// WriteFile writes content into the worktree without staging it.
func (fixture *Repository) WriteFile(relativePath string, content string) {
	fixture.testInstance.Helper()
	writeError := util.WriteFile(fixture.Worktree().Filesystem, relativePath, []byte(content), filePermissionsValue)
	require.NoError(fixture.testInstance, writeError)
}

// Commit writes, stages, and commits a single file and returns the commit hash.
func (fixture *Repository) Commit(relativePath string, content string) plumbing.Hash {
	fixture.testInstance.Helper()

	fixture.WriteFile(relativePath, content)
	worktree := fixture.Worktree()
	_, addError := worktree.Add(relativePath)
	require.NoError(fixture.testInstance, addError)

	fixture.commitCount++
	signature := &object.Signature{
		Name:  authorNameConstant,
		Email: authorEmailConstant,
		When:  fixtureClock.Add(time.Duration(fixture.commitCount) * time.Minute),
	}
	hash, commitError := worktree.Commit("update "+relativePath, &git.CommitOptions{Author: signature, Committer: signature})
	require.NoError(fixture.testInstance, commitError)
	return hash
}

// Merge records a merge commit on the current branch with HEAD and other as parents.
func (fixture *Repository) Merge(other plumbing.Hash) plumbing.Hash {
	fixture.testInstance.Helper()

	fixture.WriteFile("merge.txt", "merge "+other.String()+"\n")
	worktree := fixture.Worktree()
	_, addError := worktree.Add("merge.txt")
	require.NoError(fixture.testInstance, addError)

	fixture.commitCount++
	signature := &object.Signature{
		Name:  authorNameConstant,
		Email: authorEmailConstant,
		When:  fixtureClock.Add(time.Duration(fixture.commitCount) * time.Minute),
	}
	hash, commitError := worktree.Commit("merge "+other.String(), &git.CommitOptions{
		Parents:   []plumbing.Hash{fixture.Head(), other},
		Author:    signature,
		Committer: signature,
	})
	require.NoError(fixture.testInstance, commitError)
	return hash
}

// Repack packs every object through a separate handle and removes the loose copies,
// the way git gc does from another process. The fixture's own handle is stale afterwards.
func (fixture *Repository) Repack() {
	fixture.testInstance.Helper()

	repository, openError := git.PlainOpen(fixture.Path)
	require.NoError(fixture.testInstance, openError)
	require.NoError(fixture.testInstance, repository.RepackObjects(&git.RepackConfig{}))

	looseStorer, isLoose := repository.Storer.(storer.LooseObjectStorer)
	require.True(fixture.testInstance, isLoose)

	var looseHashes []plumbing.Hash
	require.NoError(fixture.testInstance, looseStorer.ForEachObjectHash(func(hash plumbing.Hash) error {
		looseHashes = append(looseHashes, hash)
		return nil
	}))
	for _, hash := range looseHashes {
		require.NoError(fixture.testInstance, looseStorer.DeleteLooseObject(hash))
	}
}

// Head returns the hash HEAD resolves to.
func (fixture *Repository) Head() plumbing.Hash {
	fixture.testInstance.Helper()
	head, headError := fixture.Repository.Head()
	require.NoError(fixture.testInstance, headError)
	return head.Hash()
}

// ResetHard moves the current branch and worktree to hash.
func (fixture *Repository) ResetHard(hash plumbing.Hash) {
	fixture.testInstance.Helper()
	resetError := fixture.Worktree().Reset(&git.ResetOptions{Commit: hash, Mode: git.HardReset})
	require.NoError(fixture.testInstance, resetError)
}

// AddRemote configures a remote with a single URL.
func (fixture *Repository) AddRemote(remoteName string, remoteURL string) {
	fixture.testInstance.Helper()
	_, remoteError := fixture.Repository.CreateRemote(&config.RemoteConfig{Name: remoteName, URLs: []string{remoteURL}})
	require.NoError(fixture.testInstance, remoteError)
}

// TrackUpstream records remoteName/branchName as the upstream of branchName.
func (fixture *Repository) TrackUpstream(branchName string, remoteName string) {
	fixture.testInstance.Helper()

	repositoryConfiguration, configurationError := fixture.Repository.Config()
	require.NoError(fixture.testInstance, configurationError)
	repositoryConfiguration.Branches[branchName] = &config.Branch{
		Name:   branchName,
		Remote: remoteName,
		Merge:  plumbing.NewBranchReferenceName(branchName),
	}
	require.NoError(fixture.testInstance, fixture.Repository.SetConfig(repositoryConfiguration))
}

// SetRemoteTrackingBranch points refs/remotes/<remote>/<branch> at hash.
func (fixture *Repository) SetRemoteTrackingBranch(remoteName string, branchName string, hash plumbing.Hash) {
	fixture.testInstance.Helper()
	reference := plumbing.NewHashReference(plumbing.NewRemoteReferenceName(remoteName, branchName), hash)
	require.NoError(fixture.testInstance, fixture.Repository.Storer.SetReference(reference))
}

// SetBranch points refs/heads/<branch> at hash.
func (fixture *Repository) SetBranch(branchName string, hash plumbing.Hash) {
	fixture.testInstance.Helper()
	reference := plumbing.NewHashReference(plumbing.NewBranchReferenceName(branchName), hash)
	require.NoError(fixture.testInstance, fixture.Repository.Storer.SetReference(reference))
}

// Diverge arranges a tracked master whose local and upstream tips differ.
// It returns after local has ahead unique commits and the upstream has behind unique commits.
func (fixture *Repository) Diverge(ahead int, behind int) {
	fixture.testInstance.Helper()

	base := fixture.Head()
	upstreamTip := base
	for index := 0; index < behind; index++ {
		upstreamTip = fixture.Commit("upstream.txt", "upstream "+string(rune('a'+index))+"\n")
	}
	fixture.ResetHard(base)
	for index := 0; index < ahead; index++ {
		fixture.Commit("local.txt", "local "+string(rune('a'+index))+"\n")
	}

	if _, remoteError := fixture.Repository.Remote(OriginRemoteName); remoteError != nil {
		fixture.AddRemote(OriginRemoteName, PlaceholderRemoteURL)
	}
	fixture.TrackUpstream(MasterBranchName, OriginRemoteName)
	fixture.SetRemoteTrackingBranch(OriginRemoteName, MasterBranchName, upstreamTip)
}
