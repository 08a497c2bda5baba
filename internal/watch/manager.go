package watch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/temirov/repowatch/internal/gitrepo"
	"github.com/temirov/repowatch/internal/repos/shared"
	"github.com/temirov/repowatch/internal/status"
	pathutils "github.com/temirov/repowatch/internal/utils/path"
)

const (
	missingOpenerMessageConstant           = "inspector opener not configured"
	missingDirectoryListerMessageConstant  = "directory lister not configured"
	missingDiscovererMessageConstant       = "repository discoverer not configured"
	emptyPathMessageConstant               = "path is empty"
	addPathErrorTemplateConstant           = "unable to add repository %s: %w"
	addDirectoryErrorTemplateConstant      = "unable to add directory %s: %w"
	discoverRootsErrorTemplateConstant     = "unable to discover repositories: %w"
	repositoryRegisteredMessageConstant    = "repository registered"
	directoryRegisteredMessageConstant     = "directory registered"
	childOpenFailedMessageConstant         = "child directory could not be opened as a repository"
	discoveredRepositorySkippedMessage     = "discovered repository skipped"
	inputUnavailableMessageConstant        = "input unavailable; reporting it as a failure"
	inputStillUnavailableMessageConstant   = "input still unavailable"
	inputRecoveredMessageConstant          = "previously unavailable input registered"
	snapshotFailedMessageConstant          = "repository snapshot failed"
	fetchPassCompletedMessageConstant      = "fetch pass completed"
	attentionMessageConstant               = "repository needs attention"
	logFieldPathConstant                   = "path"
	logFieldDirectoryConstant              = "directory"
	logFieldMembersConstant                = "members"
	logFieldNonRepositoriesConstant        = "non_repositories"
	logFieldUpdatedConstant                = "updated"
	logFieldUpToDateConstant               = "up_to_date"
	logFieldSkippedConstant                = "skipped"
	logFieldFailedConstant                 = "failed"
	logFieldActionConstant                 = "action"
	logFieldBranchConstant                 = "branch"
)

// ErrInspectorOpenerMissing indicates the manager was constructed without an opener.
var ErrInspectorOpenerMissing = errors.New(missingOpenerMessageConstant)

// ErrDirectoryListerMissing indicates the manager was constructed without a directory lister.
var ErrDirectoryListerMissing = errors.New(missingDirectoryListerMessageConstant)

// ErrRepositoryDiscovererMissing indicates AddRoots was called without a discoverer.
var ErrRepositoryDiscovererMissing = errors.New(missingDiscovererMessageConstant)

// ErrEmptyPath indicates a blank path was supplied.
var ErrEmptyPath = errors.New(emptyPathMessageConstant)

// Dependencies supplies collaborators for the Manager.
type Dependencies struct {
	Opener          shared.InspectorOpener
	DirectoryLister shared.DirectoryLister
	Discoverer      shared.RepositoryDiscoverer
	HomeExpander    *pathutils.HomeExpander
	Clock           shared.Clock
	Logger          *zap.Logger
}

// ManagerOptions carries the explicit policy and fetch settings of a Manager.
type ManagerOptions struct {
	Policy           status.Policy
	RemoteName       string
	FetchConcurrency int
}

type unavailableInput struct {
	path      string
	directory bool
	cause     error
}

type repositoryGroup struct {
	directory       string
	members         []shared.RepositoryInspector
	nonRepositories []string
}

// Manager holds the individually registered repositories and the scanned directory groups.
type Manager struct {
	opener           shared.InspectorOpener
	directoryLister  shared.DirectoryLister
	discoverer       shared.RepositoryDiscoverer
	homeExpander     *pathutils.HomeExpander
	clock            shared.Clock
	logger           *zap.Logger
	policy           status.Policy
	remoteName       string
	fetchConcurrency int

	mutex       sync.Mutex
	individuals map[string]shared.RepositoryInspector
	groups      map[string]*repositoryGroup
	unavailable map[string]unavailableInput
}

// NewManager validates dependencies and applies option defaults.
func NewManager(dependencies Dependencies, options ManagerOptions) (*Manager, error) {
	if dependencies.Opener == nil {
		return nil, ErrInspectorOpenerMissing
	}
	if dependencies.DirectoryLister == nil {
		return nil, ErrDirectoryListerMissing
	}

	homeExpander := dependencies.HomeExpander
	if homeExpander == nil {
		homeExpander = pathutils.NewHomeExpander()
	}
	clock := dependencies.Clock
	if clock == nil {
		clock = shared.SystemClock{}
	}
	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	remoteName := strings.TrimSpace(options.RemoteName)
	if len(remoteName) == 0 {
		remoteName = gitrepo.DefaultRemoteNameConstant
	}
	fetchConcurrency := options.FetchConcurrency
	if fetchConcurrency <= 0 {
		fetchConcurrency = DefaultFetchConcurrencyConstant
	}

	return &Manager{
		opener:           dependencies.Opener,
		directoryLister:  dependencies.DirectoryLister,
		discoverer:       dependencies.Discoverer,
		homeExpander:     homeExpander,
		clock:            clock,
		logger:           logger,
		policy:           options.Policy.Sanitize(),
		remoteName:       remoteName,
		fetchConcurrency: fetchConcurrency,
		individuals:      make(map[string]shared.RepositoryInspector),
		groups:           make(map[string]*repositoryGroup),
		unavailable:      make(map[string]unavailableInput),
	}, nil
}

// AddPath registers one repository. Paths are home-expanded and made absolute; re-adding is a no-op.
func (manager *Manager) AddPath(repositoryPath string) error {
	absolutePath, resolveError := manager.resolvePath(repositoryPath)
	if resolveError != nil {
		return fmt.Errorf(addPathErrorTemplateConstant, repositoryPath, resolveError)
	}

	manager.mutex.Lock()
	defer manager.mutex.Unlock()

	if _, registered := manager.individuals[absolutePath]; registered {
		return nil
	}

	inspector, openError := manager.opener.Open(absolutePath)
	if openError != nil {
		return fmt.Errorf(addPathErrorTemplateConstant, absolutePath, openError)
	}
	manager.individuals[absolutePath] = inspector
	manager.logger.Debug(repositoryRegisteredMessageConstant, zap.String(logFieldPathConstant, absolutePath))
	return nil
}

// AddDirectory scans the immediate child directories of directoryPath. Children that open as
// repositories join the group; the rest are recorded by name as non-repositories. Re-adding is a no-op.
func (manager *Manager) AddDirectory(directoryPath string) error {
	absolutePath, resolveError := manager.resolvePath(directoryPath)
	if resolveError != nil {
		return fmt.Errorf(addDirectoryErrorTemplateConstant, directoryPath, resolveError)
	}

	manager.mutex.Lock()
	defer manager.mutex.Unlock()

	if _, registered := manager.groups[absolutePath]; registered {
		return nil
	}

	childDirectories, listError := manager.directoryLister.ListChildDirectories(absolutePath)
	if listError != nil {
		return fmt.Errorf(addDirectoryErrorTemplateConstant, absolutePath, listError)
	}

	group := &repositoryGroup{directory: absolutePath}
	for _, childDirectory := range childDirectories {
		inspector, openError := manager.opener.Open(childDirectory)
		if openError != nil {
			if !errors.Is(openError, gitrepo.ErrNotRepository) {
				manager.logger.Warn(childOpenFailedMessageConstant, zap.String(logFieldPathConstant, childDirectory), zap.Error(openError))
			}
			group.nonRepositories = append(group.nonRepositories, filepath.Base(childDirectory))
			continue
		}
		group.members = append(group.members, inspector)
	}

	sort.Slice(group.members, func(first int, second int) bool {
		return group.members[first].Path() < group.members[second].Path()
	})
	sort.Strings(group.nonRepositories)
	manager.groups[absolutePath] = group

	manager.logger.Debug(
		directoryRegisteredMessageConstant,
		zap.String(logFieldDirectoryConstant, absolutePath),
		zap.Int(logFieldMembersConstant, len(group.members)),
		zap.Strings(logFieldNonRepositoriesConstant, group.nonRepositories),
	)
	return nil
}

// Register adds every repository path and directory. Inputs that cannot be added are remembered,
// reported as failure entries, and retried by each StatusReport. It returns the number of inputs
// registered and the joined registration errors.
func (manager *Manager) Register(repositories []string, directories []string) (int, error) {
	registered := 0
	var registrationErrors []error
	for _, input := range inputsOf(repositories, false) {
		if addError := manager.add(input); addError != nil {
			manager.recordUnavailable(input, addError)
			registrationErrors = append(registrationErrors, addError)
			continue
		}
		registered++
	}
	for _, input := range inputsOf(directories, true) {
		if addError := manager.add(input); addError != nil {
			manager.recordUnavailable(input, addError)
			registrationErrors = append(registrationErrors, addError)
			continue
		}
		registered++
	}
	return registered, errors.Join(registrationErrors...)
}

func inputsOf(paths []string, directory bool) []unavailableInput {
	inputs := make([]unavailableInput, 0, len(paths))
	for _, inputPath := range paths {
		inputs = append(inputs, unavailableInput{path: inputPath, directory: directory})
	}
	return inputs
}

func (manager *Manager) add(input unavailableInput) error {
	if input.directory {
		return manager.AddDirectory(input.path)
	}
	return manager.AddPath(input.path)
}

func (manager *Manager) recordUnavailable(input unavailableInput, cause error) {
	reportedPath := input.path
	if absolutePath, resolveError := manager.resolvePath(input.path); resolveError == nil {
		reportedPath = absolutePath
	}
	input.cause = cause

	manager.mutex.Lock()
	manager.unavailable[reportedPath] = input
	manager.mutex.Unlock()

	manager.logger.Warn(inputUnavailableMessageConstant, zap.String(logFieldPathConstant, reportedPath), zap.Error(cause))
}

func (manager *Manager) retryUnavailable() []Entry {
	manager.mutex.Lock()
	pending := make(map[string]unavailableInput, len(manager.unavailable))
	for reportedPath, input := range manager.unavailable {
		pending[reportedPath] = input
	}
	manager.mutex.Unlock()

	var failures []Entry
	for reportedPath, input := range pending {
		retryError := manager.add(input)

		manager.mutex.Lock()
		if retryError == nil {
			delete(manager.unavailable, reportedPath)
		} else {
			input.cause = retryError
			manager.unavailable[reportedPath] = input
		}
		manager.mutex.Unlock()

		if retryError == nil {
			manager.logger.Info(inputRecoveredMessageConstant, zap.String(logFieldPathConstant, reportedPath))
			continue
		}
		manager.logger.Debug(inputStillUnavailableMessageConstant, zap.String(logFieldPathConstant, reportedPath), zap.Error(retryError))
		failures = append(failures, Entry{
			Path:    reportedPath,
			Failure: retryError.Error(),
			Message: status.FailureMessage(reportedPath, retryError),
		})
	}

	sort.Slice(failures, func(first int, second int) bool {
		return failures[first].Path < failures[second].Path
	})
	return failures
}

// AddRoots discovers repositories at any depth beneath roots and registers each with AddPath.
// Discovered repositories that fail to open are logged and skipped. It returns the number registered.
func (manager *Manager) AddRoots(roots []string) (int, error) {
	if len(roots) == 0 {
		return 0, nil
	}
	if manager.discoverer == nil {
		return 0, ErrRepositoryDiscovererMissing
	}

	resolvedRoots := make([]string, 0, len(roots))
	for _, root := range roots {
		absoluteRoot, resolveError := manager.resolvePath(root)
		if resolveError != nil {
			return 0, fmt.Errorf(discoverRootsErrorTemplateConstant, resolveError)
		}
		resolvedRoots = append(resolvedRoots, absoluteRoot)
	}

	repositories, discoveryError := manager.discoverer.DiscoverRepositories(resolvedRoots)
	if discoveryError != nil {
		return 0, fmt.Errorf(discoverRootsErrorTemplateConstant, discoveryError)
	}

	registered := 0
	for _, repositoryPath := range repositories {
		if addError := manager.AddPath(repositoryPath); addError != nil {
			manager.logger.Warn(discoveredRepositorySkippedMessage, zap.String(logFieldPathConstant, repositoryPath), zap.Error(addError))
			continue
		}
		registered++
	}
	return registered, nil
}

func (manager *Manager) resolvePath(candidatePath string) (string, error) {
	if len(strings.TrimSpace(candidatePath)) == 0 {
		return "", ErrEmptyPath
	}
	return manager.homeExpander.ResolveAbsolute(candidatePath)
}

type reportTarget struct {
	group     string
	inspector shared.RepositoryInspector
}

func (manager *Manager) orderedTargets() ([]reportTarget, []GroupListing) {
	manager.mutex.Lock()
	defer manager.mutex.Unlock()

	individualPaths := make([]string, 0, len(manager.individuals))
	for individualPath := range manager.individuals {
		individualPaths = append(individualPaths, individualPath)
	}
	sort.Strings(individualPaths)

	groupDirectories := make([]string, 0, len(manager.groups))
	for groupDirectory := range manager.groups {
		groupDirectories = append(groupDirectories, groupDirectory)
	}
	sort.Strings(groupDirectories)

	targets := make([]reportTarget, 0, len(individualPaths))
	for _, individualPath := range individualPaths {
		targets = append(targets, reportTarget{inspector: manager.individuals[individualPath]})
	}

	var listings []GroupListing
	for _, groupDirectory := range groupDirectories {
		group := manager.groups[groupDirectory]
		for _, member := range group.members {
			targets = append(targets, reportTarget{group: groupDirectory, inspector: member})
		}
		if len(group.nonRepositories) > 0 {
			listings = append(listings, GroupListing{
				Directory:       groupDirectory,
				NonRepositories: append([]string(nil), group.nonRepositories...),
			})
		}
	}
	return targets, listings
}

// StatusReport re-snapshots and classifies every registered repository: individual paths first,
// then group members by directory. A failing snapshot becomes an error entry and never hides the others.
// Inputs that could not be registered are retried first; those still unavailable follow as error entries.
// Cancellation stops the pass and returns the context error.
func (manager *Manager) StatusReport(executionContext context.Context) (Report, error) {
	unavailableEntries := manager.retryUnavailable()
	targets, listings := manager.orderedTargets()

	report := Report{
		GeneratedAt: manager.clock.Now(),
		Entries:     make([]Entry, 0, len(targets)),
		Groups:      listings,
	}
	for _, target := range targets {
		if contextError := executionContext.Err(); contextError != nil {
			return Report{}, contextError
		}
		report.Entries = append(report.Entries, manager.inspect(target))
	}
	report.Entries = append(report.Entries, unavailableEntries...)
	return report, nil
}

func (manager *Manager) inspect(target reportTarget) Entry {
	repositoryPath := target.inspector.Path()
	entry := Entry{Path: repositoryPath, Group: target.group}

	snapshot, snapshotError := target.inspector.Snapshot()
	if snapshotError != nil {
		manager.logger.Error(snapshotFailedMessageConstant, zap.String(logFieldPathConstant, repositoryPath), zap.Error(snapshotError))
		entry.Failure = snapshotError.Error()
		entry.Message = status.FailureMessage(repositoryPath, snapshotError)
		return entry
	}

	decision := status.Classify(snapshot, manager.policy)
	entry.Snapshot = &snapshot
	entry.Action = decision.Action
	entry.Branch = decision.Branch
	entry.Message = status.Message(decision, repositoryPath)
	if len(decision.Branch) > 0 {
		comparison := decision.Comparison
		entry.Comparison = &comparison
	}

	if decision.Action != status.ActionNone {
		manager.logger.Debug(
			attentionMessageConstant,
			zap.String(logFieldPathConstant, repositoryPath),
			zap.String(logFieldActionConstant, decision.Action.String()),
			zap.String(logFieldBranchConstant, decision.Branch),
		)
	}
	return entry
}

// FetchAll fetches the configured remote for every registered repository with bounded parallelism.
// Individual failures are counted and never abort the pass.
func (manager *Manager) FetchAll(executionContext context.Context) FetchSummary {
	targets, _ := manager.orderedTargets()

	var summaryMutex sync.Mutex
	summary := FetchSummary{}

	fetchGroup := errgroup.Group{}
	fetchGroup.SetLimit(manager.fetchConcurrency)
	for _, target := range targets {
		inspector := target.inspector
		fetchGroup.Go(func() error {
			outcome := inspector.Fetch(executionContext, manager.remoteName)
			summaryMutex.Lock()
			summary.record(outcome)
			summaryMutex.Unlock()
			return nil
		})
	}
	_ = fetchGroup.Wait()

	manager.logger.Info(
		fetchPassCompletedMessageConstant,
		zap.Int(logFieldUpdatedConstant, summary.Updated),
		zap.Int(logFieldUpToDateConstant, summary.UpToDate),
		zap.Int(logFieldSkippedConstant, summary.Skipped),
		zap.Int(logFieldFailedConstant, summary.Failed),
	)
	return summary
}
