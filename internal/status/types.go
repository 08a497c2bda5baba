package status

import (
	"sort"
	"strings"
)

const (
	actionNoneStringConstant            = "none"
	actionFastForwardPullStringConstant = "fast-forward-pull"
	actionPushStringConstant            = "push"
	actionDivergedStringConstant        = "diverged"
	actionDirtyStringConstant           = "dirty"
	fileStateModifiedStringConstant     = "modified"
	fileStateNewStringConstant          = "new"
	fileStateIgnoredStringConstant      = "ignored"
	fileStateUnknownStringConstant      = "unknown"
	defaultPrimaryBranchConstant        = "master"
	alternatePrimaryBranchConstant      = "main"
)

// BranchComparison counts commits a local branch has that its upstream lacks (Ahead)
// and commits the upstream has that the local branch lacks (Behind).
type BranchComparison struct {
	Ahead  int `yaml:"ahead"`
	Behind int `yaml:"behind"`
}

// Synced reports whether the branch and its upstream point at the same history.
func (comparison BranchComparison) Synced() bool {
	return comparison.Ahead == 0 && comparison.Behind == 0
}

// FileState is the closed classification of a single working-tree path.
type FileState int

// Supported file states.
const (
	FileStateUnknown FileState = iota
	FileStateModified
	FileStateNew
	FileStateIgnored
)

// String returns the lowercase name of the state.
func (state FileState) String() string {
	switch state {
	case FileStateModified:
		return fileStateModifiedStringConstant
	case FileStateNew:
		return fileStateNewStringConstant
	case FileStateIgnored:
		return fileStateIgnoredStringConstant
	default:
		return fileStateUnknownStringConstant
	}
}

// Action enumerates the recommendations the classifier can produce.
type Action int

// Supported actions.
const (
	ActionNone Action = iota
	ActionFastForwardPull
	ActionPush
	ActionDiverged
	ActionDirty
)

// String returns the lowercase identifier of the action.
func (action Action) String() string {
	switch action {
	case ActionFastForwardPull:
		return actionFastForwardPullStringConstant
	case ActionPush:
		return actionPushStringConstant
	case ActionDiverged:
		return actionDivergedStringConstant
	case ActionDirty:
		return actionDirtyStringConstant
	default:
		return actionNoneStringConstant
	}
}

// MarshalText renders the action identifier for text-based encoders.
func (action Action) MarshalText() ([]byte, error) {
	return []byte(action.String()), nil
}

// Severity describes how an action should be emphasized when rendered.
type Severity int

// Supported severities.
const (
	SeverityNone Severity = iota
	SeveritySuggestion
	SeverityError
)

// Severity maps the action onto its rendering emphasis.
func (action Action) Severity() Severity {
	switch action {
	case ActionFastForwardPull, ActionPush:
		return SeveritySuggestion
	case ActionDiverged, ActionDirty:
		return SeverityError
	default:
		return SeverityNone
	}
}

// Snapshot is the immutable state of one repository at inspection time.
type Snapshot struct {
	Path      string
	Remotes   map[string]string
	Tracking  map[string]BranchComparison
	LocalOnly []string
	Modified  []string
	New       []string
	Ignored   []string
	Clean     bool
}

// SnapshotInput carries the raw collections used to build a Snapshot.
type SnapshotInput struct {
	Path      string
	Remotes   map[string]string
	Tracking  map[string]BranchComparison
	LocalOnly []string
	Modified  []string
	New       []string
	Ignored   []string
}

// NewSnapshot copies the input, sorts every list, and derives Clean.
func NewSnapshot(input SnapshotInput) Snapshot {
	remotes := make(map[string]string, len(input.Remotes))
	for remoteName, remoteURL := range input.Remotes {
		remotes[remoteName] = remoteURL
	}

	tracking := make(map[string]BranchComparison, len(input.Tracking))
	for branchName, comparison := range input.Tracking {
		tracking[branchName] = comparison
	}

	modified := sortedCopy(input.Modified)
	newFiles := sortedCopy(input.New)

	return Snapshot{
		Path:      input.Path,
		Remotes:   remotes,
		Tracking:  tracking,
		LocalOnly: sortedCopy(input.LocalOnly),
		Modified:  modified,
		New:       newFiles,
		Ignored:   sortedCopy(input.Ignored),
		Clean:     len(modified) == 0 && len(newFiles) == 0,
	}
}

func sortedCopy(values []string) []string {
	duplicated := make([]string, len(values))
	copy(duplicated, values)
	sort.Strings(duplicated)
	return duplicated
}

// Policy names the branches whose comparison determines the recommended action.
type Policy struct {
	PrimaryBranches []string
}

// DefaultPolicy treats master and main as primary branches, in that order.
func DefaultPolicy() Policy {
	return Policy{PrimaryBranches: []string{defaultPrimaryBranchConstant, alternatePrimaryBranchConstant}}
}

// Sanitize trims branch names, drops blanks and duplicates, and falls back to the default policy when empty.
func (policy Policy) Sanitize() Policy {
	seen := make(map[string]struct{}, len(policy.PrimaryBranches))
	branches := make([]string, 0, len(policy.PrimaryBranches))
	for _, candidate := range policy.PrimaryBranches {
		trimmed := strings.TrimSpace(candidate)
		if len(trimmed) == 0 {
			continue
		}
		if _, duplicate := seen[trimmed]; duplicate {
			continue
		}
		seen[trimmed] = struct{}{}
		branches = append(branches, trimmed)
	}
	if len(branches) == 0 {
		return DefaultPolicy()
	}
	return Policy{PrimaryBranches: branches}
}

// Decision is the classifier outcome for one snapshot.
type Decision struct {
	Action     Action
	Branch     string
	Comparison BranchComparison
}
