package gitrepo

import (
	"errors"
	"fmt"

	"github.com/go-git/go-git/v5"
)

const (
	notRepositoryMessageConstant       = "not a git working directory"
	branchNotFoundMessageConstant      = "no such branch"
	noUpstreamMessageConstant          = "branch has no upstream"
	unknownFileStateMessageConstant    = "unrecognized file status"
	branchErrorTemplateConstant        = "%s: branch %s: %v"
	notRepositoryErrorTemplateConstant = "%s: %w"
	unknownFileStateErrorTemplate      = "%s: %s (staging=%q worktree=%q)"
)

// ErrNotRepository indicates a directory lacks usable git working-directory metadata.
var ErrNotRepository = errors.New(notRepositoryMessageConstant)

// ErrBranchNotFound indicates the requested local branch does not exist.
var ErrBranchNotFound = errors.New(branchNotFoundMessageConstant)

// ErrNoUpstream indicates the local branch has no upstream, or its upstream reference is absent.
var ErrNoUpstream = errors.New(noUpstreamMessageConstant)

// ErrUnknownFileState indicates the working-tree status reported a code outside the known set.
var ErrUnknownFileState = errors.New(unknownFileStateMessageConstant)

// BranchError carries the repository and branch for branch-level comparison failures.
type BranchError struct {
	RepositoryPath string
	Branch         string
	Err            error
}

// Error describes the branch failure.
func (branchError BranchError) Error() string {
	return fmt.Sprintf(branchErrorTemplateConstant, branchError.RepositoryPath, branchError.Branch, branchError.Err)
}

// Unwrap exposes the underlying sentinel.
func (branchError BranchError) Unwrap() error {
	return branchError.Err
}

// UnknownFileStateError reports a working-tree path whose status codes could not be classified.
type UnknownFileStateError struct {
	Path     string
	Staging  git.StatusCode
	Worktree git.StatusCode
}

// Error describes the unrecognized status.
func (stateError UnknownFileStateError) Error() string {
	return fmt.Sprintf(unknownFileStateErrorTemplate, stateError.Path, unknownFileStateMessageConstant, string(stateError.Staging), string(stateError.Worktree))
}

// Unwrap exposes ErrUnknownFileState for errors.Is checks.
func (stateError UnknownFileStateError) Unwrap() error {
	return ErrUnknownFileState
}

func notRepositoryError(repositoryPath string) error {
	return fmt.Errorf(notRepositoryErrorTemplateConstant, repositoryPath, ErrNotRepository)
}
