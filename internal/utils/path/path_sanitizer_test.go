package pathutils_test

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	pathutils "github.com/temirov/repowatch/internal/utils/path"
)

const (
	testSubtestTemplateConstant = "%d_%s"
	testHomeDirectoryConstant   = "/home/operator"
)

func fixedHomeExpander() *pathutils.HomeExpander {
	return pathutils.NewHomeExpanderWithProvider(func() (string, error) {
		return testHomeDirectoryConstant, nil
	})
}

func TestPathSanitizerNormalizesInputs(testInstance *testing.T) {
	temporaryDirectory := testInstance.TempDir()
	workspacePath := filepath.Join(temporaryDirectory, "workspace")
	nestedPath := filepath.Join(workspacePath, "service")

	testCases := []struct {
		name            string
		configuration   pathutils.PathSanitizerConfiguration
		inputs          []string
		expectedOutputs []string
	}{
		{
			name:            "trims_expands_and_dedupes",
			inputs:          []string{"", "  " + workspacePath + "\t", "~/projects", workspacePath + "/", "~/projects"},
			expectedOutputs: []string{workspacePath, filepath.Join(testHomeDirectoryConstant, "projects")},
		},
		{
			name:            "keeps_nested_paths_by_default",
			inputs:          []string{nestedPath, workspacePath},
			expectedOutputs: []string{nestedPath, workspacePath},
		},
		{
			name:            "prunes_nested_paths",
			configuration:   pathutils.PathSanitizerConfiguration{PruneNestedPaths: true},
			inputs:          []string{nestedPath, workspacePath, workspacePath + "-sibling"},
			expectedOutputs: []string{workspacePath, workspacePath + "-sibling"},
		},
		{
			name:            "empty_input",
			inputs:          []string{" ", ""},
			expectedOutputs: nil,
		},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf(testSubtestTemplateConstant, testCaseIndex, testCase.name), func(testInstance *testing.T) {
			sanitizer := pathutils.NewPathSanitizer(fixedHomeExpander(), testCase.configuration)
			require.Equal(testInstance, testCase.expectedOutputs, sanitizer.Sanitize(testCase.inputs))
		})
	}
}

func TestHomeExpanderResolveAbsolute(testInstance *testing.T) {
	resolvedPath, resolveError := fixedHomeExpander().ResolveAbsolute(" ~/src/../repo ")
	require.NoError(testInstance, resolveError)
	require.Equal(testInstance, filepath.Join(testHomeDirectoryConstant, "repo"), resolvedPath)

	relativePath, relativeError := fixedHomeExpander().ResolveAbsolute("relative")
	require.NoError(testInstance, relativeError)
	require.True(testInstance, filepath.IsAbs(relativePath))

	failingExpander := pathutils.NewHomeExpanderWithProvider(func() (string, error) {
		return "", errors.New("no home")
	})
	_, failureError := failingExpander.ResolveAbsolute("~/repo")
	require.ErrorIs(testInstance, failureError, pathutils.ErrHomeDirectoryUnavailable)
}
