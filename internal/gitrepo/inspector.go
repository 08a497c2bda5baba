package gitrepo

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"go.uber.org/zap"

	"github.com/temirov/repowatch/internal/status"
)

const (
	// DefaultRemoteNameConstant names the remote fetched when none is supplied.
	DefaultRemoteNameConstant = "origin"
	// DefaultBranchNameConstant names the branch compared when none is supplied.
	DefaultBranchNameConstant = "master"

	localUpstreamRemoteConstant          = "."
	openRepositoryErrorTemplateConstant  = "failed to open repository %s: %w"
	readConfigurationErrorTemplate       = "failed to read git configuration: %w"
	listRemotesErrorTemplateConstant     = "failed to list remotes: %w"
	listBranchesErrorTemplateConstant    = "failed to list branches: %w"
	worktreeStatusErrorTemplateConstant  = "failed to read worktree status: %w"
	ignoredPathsErrorTemplateConstant    = "failed to collect ignored paths: %w"
	commitWalkErrorTemplateConstant      = "failed to walk history from %s: %w"
	worktreeMissingErrorTemplate         = "failed to open worktree: %w"
	fetchStartedMessageConstant          = "fetching remote"
	fetchCompletedMessageConstant        = "fetch completed"
	fetchFailedMessageConstant           = "fetch failed; using local state"
	fetchSkippedMessageConstant          = "fetch skipped"
	branchComparisonSkippedMessage       = "branch omitted from tracking map"
	logFieldRepositoryConstant           = "repository"
	logFieldRemoteConstant               = "remote"
	logFieldRemoteURLConstant            = "remote_url"
	logFieldBranchConstant               = "branch"
	logFieldReasonConstant               = "reason"
	fetchSkipReasonMissingRemote         = "remote not configured"
	fetchSkipReasonNoURL                 = "remote has no url"
	fetchSkipReasonNoCredentialsConstant = "no credentials for remote"
)

// FetchOutcome summarizes a best-effort fetch.
type FetchOutcome int

// Supported fetch outcomes.
const (
	FetchUpdated FetchOutcome = iota
	FetchUpToDate
	FetchSkipped
	FetchFailed
)

// String returns the lowercase name of the outcome.
func (outcome FetchOutcome) String() string {
	switch outcome {
	case FetchUpdated:
		return "updated"
	case FetchUpToDate:
		return "up-to-date"
	case FetchSkipped:
		return "skipped"
	default:
		return "failed"
	}
}

// AuthSupplier resolves transport credentials for a remote URL.
// A false result means no credentials are known and the fetch should be skipped.
type AuthSupplier interface {
	AuthFor(remoteURL string) (transport.AuthMethod, bool, error)
}

// Options configures an Inspector.
type Options struct {
	Logger              *zap.Logger
	AuthSupplier        AuthSupplier
	SkipIgnoredScanning bool
}

// Inspector wraps one git working directory and produces snapshots of its state.
// The repository is reopened for every operation so packs written by other git processes are seen.
type Inspector struct {
	path         string
	logger       *zap.Logger
	authSupplier AuthSupplier
	scanIgnored  bool
}

// Open opens the working directory at repositoryPath.
// Directories without git metadata, and bare repositories, yield ErrNotRepository.
func Open(repositoryPath string, options Options) (*Inspector, error) {
	absolutePath, absError := filepath.Abs(repositoryPath)
	if absError != nil {
		return nil, fmt.Errorf(openRepositoryErrorTemplateConstant, repositoryPath, absError)
	}

	if _, openError := openWorkingRepository(absolutePath); openError != nil {
		return nil, openError
	}

	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Inspector{
		path:         absolutePath,
		logger:       logger.With(zap.String(logFieldRepositoryConstant, absolutePath)),
		authSupplier: options.AuthSupplier,
		scanIgnored:  !options.SkipIgnoredScanning,
	}, nil
}

func openWorkingRepository(absolutePath string) (*git.Repository, error) {
	repository, openError := git.PlainOpen(absolutePath)
	if openError != nil {
		if errors.Is(openError, git.ErrRepositoryNotExists) {
			return nil, notRepositoryError(absolutePath)
		}
		return nil, fmt.Errorf(openRepositoryErrorTemplateConstant, absolutePath, openError)
	}

	if _, worktreeError := repository.Worktree(); worktreeError != nil {
		if errors.Is(worktreeError, git.ErrIsBareRepository) {
			return nil, notRepositoryError(absolutePath)
		}
		return nil, fmt.Errorf(openRepositoryErrorTemplateConstant, absolutePath, worktreeError)
	}
	return repository, nil
}

func (inspector *Inspector) open() (*git.Repository, error) {
	return openWorkingRepository(inspector.path)
}

// Path returns the absolute working-directory path.
func (inspector *Inspector) Path() string {
	return inspector.path
}

// Fetch refreshes remote-tracking references for the named remote.
// Transport and authentication failures are logged and reported as FetchFailed, never returned.
func (inspector *Inspector) Fetch(executionContext context.Context, remoteName string) FetchOutcome {
	trimmedRemoteName := strings.TrimSpace(remoteName)
	if len(trimmedRemoteName) == 0 {
		trimmedRemoteName = DefaultRemoteNameConstant
	}
	remoteLogger := inspector.logger.With(zap.String(logFieldRemoteConstant, trimmedRemoteName))

	repository, openError := inspector.open()
	if openError != nil {
		remoteLogger.Warn(fetchFailedMessageConstant, zap.Error(openError))
		return FetchFailed
	}

	remote, remoteError := repository.Remote(trimmedRemoteName)
	if remoteError != nil {
		remoteLogger.Debug(fetchSkippedMessageConstant, zap.String(logFieldReasonConstant, fetchSkipReasonMissingRemote))
		return FetchSkipped
	}

	remoteURLs := remote.Config().URLs
	if len(remoteURLs) == 0 {
		remoteLogger.Debug(fetchSkippedMessageConstant, zap.String(logFieldReasonConstant, fetchSkipReasonNoURL))
		return FetchSkipped
	}
	remoteURL := remoteURLs[0]
	remoteLogger = remoteLogger.With(zap.String(logFieldRemoteURLConstant, remoteURL))

	authMethod, authAvailable, authError := inspector.resolveAuth(remoteURL)
	if authError != nil {
		remoteLogger.Warn(fetchFailedMessageConstant, zap.Error(authError))
		return FetchFailed
	}
	if !authAvailable {
		remoteLogger.Info(fetchSkippedMessageConstant, zap.String(logFieldReasonConstant, fetchSkipReasonNoCredentialsConstant))
		return FetchSkipped
	}

	remoteLogger.Debug(fetchStartedMessageConstant)
	fetchError := remote.FetchContext(executionContext, &git.FetchOptions{
		RemoteName: trimmedRemoteName,
		Auth:       authMethod,
	})
	switch {
	case fetchError == nil:
		remoteLogger.Debug(fetchCompletedMessageConstant)
		return FetchUpdated
	case errors.Is(fetchError, git.NoErrAlreadyUpToDate):
		return FetchUpToDate
	default:
		remoteLogger.Warn(fetchFailedMessageConstant, zap.Error(fetchError))
		return FetchFailed
	}
}

func (inspector *Inspector) resolveAuth(remoteURL string) (transport.AuthMethod, bool, error) {
	endpoint, endpointError := transport.NewEndpoint(remoteURL)
	if endpointError != nil {
		return nil, false, endpointError
	}
	if endpoint.Protocol == string(RemoteProtocolFile) {
		return nil, true, nil
	}
	if inspector.authSupplier == nil {
		return nil, false, nil
	}
	return inspector.authSupplier.AuthFor(remoteURL)
}

// CompareWithUpstream counts commits between a local branch and its upstream.
// An empty branch name compares DefaultBranchNameConstant. Missing branches yield ErrBranchNotFound
// and missing upstreams yield ErrNoUpstream, both wrapped in BranchError.
func (inspector *Inspector) CompareWithUpstream(branchName string) (status.BranchComparison, error) {
	trimmedBranchName := strings.TrimSpace(branchName)
	if len(trimmedBranchName) == 0 {
		trimmedBranchName = DefaultBranchNameConstant
	}

	repository, openError := inspector.open()
	if openError != nil {
		return status.BranchComparison{}, openError
	}
	repositoryConfiguration, configurationError := repository.Config()
	if configurationError != nil {
		return status.BranchComparison{}, fmt.Errorf(readConfigurationErrorTemplate, configurationError)
	}
	return inspector.compareWithUpstream(repository, repositoryConfiguration, trimmedBranchName)
}

func (inspector *Inspector) compareWithUpstream(repository *git.Repository, repositoryConfiguration *config.Config, branchName string) (status.BranchComparison, error) {
	localReference, referenceError := repository.Reference(plumbing.NewBranchReferenceName(branchName), true)
	if referenceError != nil {
		if errors.Is(referenceError, plumbing.ErrReferenceNotFound) {
			return status.BranchComparison{}, inspector.branchError(branchName, ErrBranchNotFound)
		}
		return status.BranchComparison{}, inspector.branchError(branchName, referenceError)
	}

	upstreamReferenceName, hasUpstream := upstreamReferenceName(repositoryConfiguration, branchName)
	if !hasUpstream {
		return status.BranchComparison{}, inspector.branchError(branchName, ErrNoUpstream)
	}

	upstreamReference, upstreamError := repository.Reference(upstreamReferenceName, true)
	if upstreamError != nil {
		if errors.Is(upstreamError, plumbing.ErrReferenceNotFound) {
			return status.BranchComparison{}, inspector.branchError(branchName, ErrNoUpstream)
		}
		return status.BranchComparison{}, inspector.branchError(branchName, upstreamError)
	}

	comparison, countError := countAheadBehind(repository, localReference.Hash(), upstreamReference.Hash())
	if countError != nil {
		return status.BranchComparison{}, inspector.branchError(branchName, countError)
	}
	return comparison, nil
}

func (inspector *Inspector) branchError(branchName string, cause error) error {
	return BranchError{RepositoryPath: inspector.path, Branch: branchName, Err: cause}
}

func upstreamReferenceName(repositoryConfiguration *config.Config, branchName string) (plumbing.ReferenceName, bool) {
	branchConfiguration, configured := repositoryConfiguration.Branches[branchName]
	if !configured || branchConfiguration == nil {
		return "", false
	}
	if len(branchConfiguration.Remote) == 0 || len(branchConfiguration.Merge) == 0 {
		return "", false
	}
	if branchConfiguration.Remote == localUpstreamRemoteConstant {
		return branchConfiguration.Merge, true
	}
	return plumbing.NewRemoteReferenceName(branchConfiguration.Remote, branchConfiguration.Merge.Short()), true
}

const (
	localSideFlag uint8 = 1 << iota
	upstreamSideFlag
	bothSidesFlags = localSideFlag | upstreamSideFlag
)

// countAheadBehind paints commits reachable from each tip, newest first, and stops once every
// queued commit is reachable from both tips and older than the oldest one-sided commit seen.
// Only the divergent part of history is walked.
func countAheadBehind(repository *git.Repository, localHash plumbing.Hash, upstreamHash plumbing.Hash) (status.BranchComparison, error) {
	if localHash == upstreamHash {
		return status.BranchComparison{}, nil
	}

	sideFlags := make(map[plumbing.Hash]uint8)
	queue := &commitQueue{}
	paint := func(commitHash plumbing.Hash, flags uint8) error {
		existingFlags := sideFlags[commitHash]
		if existingFlags|flags == existingFlags {
			return nil
		}
		sideFlags[commitHash] = existingFlags | flags
		commit, commitError := repository.CommitObject(commitHash)
		if commitError != nil {
			return fmt.Errorf(commitWalkErrorTemplateConstant, commitHash, commitError)
		}
		heap.Push(queue, commit)
		return nil
	}

	if paintError := paint(localHash, localSideFlag); paintError != nil {
		return status.BranchComparison{}, paintError
	}
	if paintError := paint(upstreamHash, upstreamSideFlag); paintError != nil {
		return status.BranchComparison{}, paintError
	}

	var oldestOneSided time.Time
	for queue.Len() > 0 {
		commit := heap.Pop(queue).(*object.Commit)
		flags := sideFlags[commit.Hash]
		committedAt := commit.Committer.When
		if flags == bothSidesFlags {
			if queue.allPaintedBothSides(sideFlags) && committedAt.Before(oldestOneSided) {
				break
			}
		} else if oldestOneSided.IsZero() || committedAt.Before(oldestOneSided) {
			oldestOneSided = committedAt
		}

		for _, parentHash := range commit.ParentHashes {
			if paintError := paint(parentHash, flags); paintError != nil {
				return status.BranchComparison{}, paintError
			}
		}
	}

	comparison := status.BranchComparison{}
	for _, flags := range sideFlags {
		switch flags {
		case localSideFlag:
			comparison.Ahead++
		case upstreamSideFlag:
			comparison.Behind++
		}
	}
	return comparison, nil
}

// commitQueue is a max-heap of commits ordered by committer time.
type commitQueue []*object.Commit

func (queue commitQueue) Len() int { return len(queue) }

func (queue commitQueue) Less(first int, second int) bool {
	return queue[first].Committer.When.After(queue[second].Committer.When)
}

func (queue commitQueue) Swap(first int, second int) {
	queue[first], queue[second] = queue[second], queue[first]
}

func (queue *commitQueue) Push(element any) {
	*queue = append(*queue, element.(*object.Commit))
}

func (queue *commitQueue) Pop() any {
	previous := *queue
	last := previous[len(previous)-1]
	*queue = previous[:len(previous)-1]
	return last
}

func (queue commitQueue) allPaintedBothSides(sideFlags map[plumbing.Hash]uint8) bool {
	for _, commit := range queue {
		if sideFlags[commit.Hash] != bothSidesFlags {
			return false
		}
	}
	return true
}

// Snapshot gathers remotes, per-branch upstream comparisons, and working-tree file states.
// Branches whose comparison fails are omitted from the tracking map. An unrecognized
// file status aborts the snapshot with an UnknownFileStateError.
func (inspector *Inspector) Snapshot() (status.Snapshot, error) {
	repository, openError := inspector.open()
	if openError != nil {
		return status.Snapshot{}, openError
	}

	remotes, remotesError := listRemotes(repository)
	if remotesError != nil {
		return status.Snapshot{}, remotesError
	}

	tracking, localOnly, branchesError := inspector.branches(repository)
	if branchesError != nil {
		return status.Snapshot{}, branchesError
	}

	worktree, worktreeError := repository.Worktree()
	if worktreeError != nil {
		return status.Snapshot{}, fmt.Errorf(worktreeMissingErrorTemplate, worktreeError)
	}
	worktreeStatus, statusError := worktree.Status()
	if statusError != nil {
		return status.Snapshot{}, fmt.Errorf(worktreeStatusErrorTemplateConstant, statusError)
	}
	modified, newFiles, partitionError := partitionWorktreeStatus(worktreeStatus)
	if partitionError != nil {
		return status.Snapshot{}, partitionError
	}

	var ignored []string
	if inspector.scanIgnored {
		ignoredPaths, ignoredError := collectIgnoredPaths(worktree.Filesystem, worktree.Excludes)
		if ignoredError != nil {
			return status.Snapshot{}, fmt.Errorf(ignoredPathsErrorTemplateConstant, ignoredError)
		}
		ignored = ignoredPaths
	}

	return status.NewSnapshot(status.SnapshotInput{
		Path:      inspector.path,
		Remotes:   remotes,
		Tracking:  tracking,
		LocalOnly: localOnly,
		Modified:  modified,
		New:       newFiles,
		Ignored:   ignored,
	}), nil
}

func listRemotes(repository *git.Repository) (map[string]string, error) {
	configuredRemotes, remotesError := repository.Remotes()
	if remotesError != nil {
		return nil, fmt.Errorf(listRemotesErrorTemplateConstant, remotesError)
	}

	remotes := make(map[string]string, len(configuredRemotes))
	for _, remote := range configuredRemotes {
		remoteConfiguration := remote.Config()
		remoteURL := ""
		if len(remoteConfiguration.URLs) > 0 {
			remoteURL = remoteConfiguration.URLs[0]
		}
		remotes[remoteConfiguration.Name] = remoteURL
	}
	return remotes, nil
}

func (inspector *Inspector) branches(repository *git.Repository) (map[string]status.BranchComparison, []string, error) {
	repositoryConfiguration, configurationError := repository.Config()
	if configurationError != nil {
		return nil, nil, fmt.Errorf(readConfigurationErrorTemplate, configurationError)
	}

	branchNames, listError := localBranchNames(repository)
	if listError != nil {
		return nil, nil, listError
	}

	tracking := make(map[string]status.BranchComparison)
	var localOnly []string
	for _, branchName := range branchNames {
		if _, hasUpstream := upstreamReferenceName(repositoryConfiguration, branchName); !hasUpstream {
			localOnly = append(localOnly, branchName)
			continue
		}

		comparison, comparisonError := inspector.compareWithUpstream(repository, repositoryConfiguration, branchName)
		if comparisonError != nil {
			inspector.logger.Debug(
				branchComparisonSkippedMessage,
				zap.String(logFieldBranchConstant, branchName),
				zap.Error(comparisonError),
			)
			continue
		}
		tracking[branchName] = comparison
	}
	return tracking, localOnly, nil
}

func localBranchNames(repository *git.Repository) ([]string, error) {
	branchIterator, branchesError := repository.Branches()
	if branchesError != nil {
		return nil, fmt.Errorf(listBranchesErrorTemplateConstant, branchesError)
	}
	defer branchIterator.Close()

	var branchNames []string
	iterationError := branchIterator.ForEach(func(reference *plumbing.Reference) error {
		branchNames = append(branchNames, reference.Name().Short())
		return nil
	})
	if iterationError != nil && !errors.Is(iterationError, storer.ErrStop) {
		return nil, fmt.Errorf(listBranchesErrorTemplateConstant, iterationError)
	}
	sort.Strings(branchNames)
	return branchNames, nil
}
