package pathutils

import (
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
)

// PathSanitizerConfiguration controls path sanitization behavior.
type PathSanitizerConfiguration struct {
	// PruneNestedPaths removes paths nested within other provided paths.
	PruneNestedPaths bool
}

// PathSanitizer normalizes repository and directory inputs collected from flags and configuration.
type PathSanitizer struct {
	homeExpander  *HomeExpander
	configuration PathSanitizerConfiguration
}

// NewPathSanitizer constructs a PathSanitizer using the provided expander and configuration.
func NewPathSanitizer(homeExpander *HomeExpander, configuration PathSanitizerConfiguration) *PathSanitizer {
	resolvedExpander := homeExpander
	if resolvedExpander == nil {
		resolvedExpander = NewHomeExpander()
	}
	return &PathSanitizer{homeExpander: resolvedExpander, configuration: configuration}
}

// Sanitize trims whitespace, expands the home directory, and drops blanks and duplicates, keeping first occurrences in order.
func (sanitizer *PathSanitizer) Sanitize(candidatePaths []string) []string {
	seen := make(map[string]struct{}, len(candidatePaths))
	sanitizedPaths := make([]string, 0, len(candidatePaths))
	for _, candidatePath := range candidatePaths {
		trimmedCandidate := strings.TrimSpace(candidatePath)
		if len(trimmedCandidate) == 0 {
			continue
		}

		expandedPath := filepath.Clean(sanitizer.homeExpander.Expand(trimmedCandidate))
		comparison := comparisonPath(canonicalizePath(expandedPath))
		if _, duplicate := seen[comparison]; duplicate {
			continue
		}
		seen[comparison] = struct{}{}
		sanitizedPaths = append(sanitizedPaths, expandedPath)
	}

	if len(sanitizedPaths) == 0 {
		return nil
	}
	if sanitizer.configuration.PruneNestedPaths {
		return pruneNestedPaths(sanitizedPaths)
	}
	return sanitizedPaths
}

func pruneNestedPaths(candidatePaths []string) []string {
	type pathDetails struct {
		originalIndex int
		value         string
		canonical     string
	}

	paths := make([]pathDetails, 0, len(candidatePaths))
	for index, candidatePath := range candidatePaths {
		paths = append(paths, pathDetails{originalIndex: index, value: candidatePath, canonical: canonicalizePath(candidatePath)})
	}

	sort.SliceStable(paths, func(first int, second int) bool {
		return len(paths[first].canonical) < len(paths[second].canonical)
	})

	selected := make([]pathDetails, 0, len(paths))
	for _, candidate := range paths {
		nested := false
		for _, existing := range selected {
			if isNestedPath(existing.canonical, candidate.canonical) {
				nested = true
				break
			}
		}
		if !nested {
			selected = append(selected, candidate)
		}
	}

	sort.SliceStable(selected, func(first int, second int) bool {
		return selected[first].originalIndex < selected[second].originalIndex
	})

	pruned := make([]string, 0, len(selected))
	for _, candidate := range selected {
		pruned = append(pruned, candidate.value)
	}
	return pruned
}

func canonicalizePath(path string) string {
	absolutePath, absoluteError := filepath.Abs(path)
	if absoluteError != nil {
		return filepath.Clean(path)
	}
	return filepath.Clean(absolutePath)
}

func comparisonPath(path string) string {
	if runtime.GOOS == "windows" {
		return strings.ToLower(path)
	}
	return path
}

func isNestedPath(parent string, candidate string) bool {
	parentClean := comparisonPath(parent)
	candidateClean := comparisonPath(candidate)

	if candidateClean == parentClean {
		return true
	}
	if len(candidateClean) <= len(parentClean) || !strings.HasPrefix(candidateClean, parentClean) {
		return false
	}
	if parentClean[len(parentClean)-1] == os.PathSeparator {
		return true
	}
	return candidateClean[len(parentClean)] == os.PathSeparator
}
