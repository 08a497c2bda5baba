package gitrepo

import (
	"sort"

	"github.com/go-git/go-git/v5"

	"github.com/temirov/repowatch/internal/status"
)

var knownStatusCodes = map[git.StatusCode]struct{}{
	git.Unmodified:         {},
	git.Untracked:          {},
	git.Modified:           {},
	git.Added:              {},
	git.Deleted:            {},
	git.Renamed:            {},
	git.Copied:             {},
	git.UpdatedButUnmerged: {},
}

var modifyingStatusCodes = map[git.StatusCode]struct{}{
	git.Modified:           {},
	git.Deleted:            {},
	git.Renamed:            {},
	git.Copied:             {},
	git.UpdatedButUnmerged: {},
}

// ClassifyFileStatus reduces go-git index and worktree codes to a FileState.
// The boolean result is false for paths that are unmodified in both areas.
func ClassifyFileStatus(path string, staging git.StatusCode, worktree git.StatusCode) (status.FileState, bool, error) {
	if _, known := knownStatusCodes[staging]; !known {
		return status.FileStateUnknown, false, UnknownFileStateError{Path: path, Staging: staging, Worktree: worktree}
	}
	if _, known := knownStatusCodes[worktree]; !known {
		return status.FileStateUnknown, false, UnknownFileStateError{Path: path, Staging: staging, Worktree: worktree}
	}

	switch {
	case staging == git.Untracked || worktree == git.Untracked:
		return status.FileStateNew, true, nil
	case staging == git.Added:
		return status.FileStateNew, true, nil
	case isModifyingStatusCode(staging) || isModifyingStatusCode(worktree):
		return status.FileStateModified, true, nil
	default:
		return status.FileStateUnknown, false, nil
	}
}

func isModifyingStatusCode(code git.StatusCode) bool {
	_, modifying := modifyingStatusCodes[code]
	return modifying
}

// partitionWorktreeStatus splits a go-git status into modified and new paths.
func partitionWorktreeStatus(worktreeStatus git.Status) ([]string, []string, error) {
	paths := make([]string, 0, len(worktreeStatus))
	for path := range worktreeStatus {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	var modified []string
	var newFiles []string
	for _, path := range paths {
		fileStatus := worktreeStatus[path]
		if fileStatus == nil {
			continue
		}
		fileState, listed, classifyError := ClassifyFileStatus(path, fileStatus.Staging, fileStatus.Worktree)
		if classifyError != nil {
			return nil, nil, classifyError
		}
		if !listed {
			continue
		}
		switch fileState {
		case status.FileStateModified:
			modified = append(modified, path)
		case status.FileStateNew:
			newFiles = append(newFiles, path)
		}
	}
	return modified, newFiles, nil
}
