package gitrepo

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

const (
	gitMetadataDirectoryNameConstant = ".git"
	ignoredDirectorySuffixConstant   = "/"
	worktreeRootPathConstant         = ""
)

// collectIgnoredPaths walks the worktree filesystem and returns paths matched by ignore rules.
// Ignored directories are reported once with a trailing slash and are not descended.
func collectIgnoredPaths(worktreeFilesystem billy.Filesystem, excludes []gitignore.Pattern) ([]string, error) {
	patterns, readError := gitignore.ReadPatterns(worktreeFilesystem, nil)
	if readError != nil {
		return nil, readError
	}
	patterns = append(patterns, excludes...)
	if len(patterns) == 0 {
		return nil, nil
	}

	matcher := gitignore.NewMatcher(patterns)
	var ignored []string
	walkError := util.Walk(worktreeFilesystem, worktreeRootPathConstant, func(entryPath string, entryInfo os.FileInfo, visitError error) error {
		if visitError != nil {
			return visitError
		}
		if entryPath == worktreeRootPathConstant {
			return nil
		}

		slashPath := filepath.ToSlash(entryPath)
		if slashPath == gitMetadataDirectoryNameConstant {
			return filepath.SkipDir
		}
		if !matcher.Match(strings.Split(slashPath, ignoredDirectorySuffixConstant), entryInfo.IsDir()) {
			return nil
		}

		if entryInfo.IsDir() {
			ignored = append(ignored, slashPath+ignoredDirectorySuffixConstant)
			return filepath.SkipDir
		}
		ignored = append(ignored, slashPath)
		return nil
	})
	if walkError != nil {
		return nil, walkError
	}
	sort.Strings(ignored)
	return ignored, nil
}
