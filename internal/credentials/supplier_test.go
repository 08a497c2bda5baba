package credentials_test

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/stretchr/testify/require"

	"github.com/temirov/repowatch/internal/credentials"
)

const (
	testSubtestTemplateConstant = "%d_%s"
	testGitHubRemoteConstant    = "https://github.com/temirov/repowatch.git"
	testGitLabRemoteConstant    = "https://gitlab.example.com/platform/api.git"
	testSSHRemoteConstant       = "git@github.com:temirov/repowatch.git"
	testTokenEnvironmentKey     = "REPOWATCH_TEST_TOKEN"
)

type recordingPrompter struct {
	responses []string
	prompts   []string
}

func (prompter *recordingPrompter) PromptPassword(prompt string) (string, error) {
	prompter.prompts = append(prompter.prompts, prompt)
	if len(prompter.responses) == 0 {
		return "", errors.New("no response queued")
	}
	response := prompter.responses[0]
	prompter.responses = prompter.responses[1:]
	return response, nil
}

type agentAuthStub struct {
	username string
}

func (stub *agentAuthStub) Name() string   { return "ssh-agent-stub" }
func (stub *agentAuthStub) String() string { return stub.username }

func environmentFrom(values map[string]string) credentials.EnvironmentLookup {
	return func(key string) (string, bool) {
		value, present := values[key]
		return value, present
	}
}

func TestConfiguredSupplierResolvesHTTPCredentials(testInstance *testing.T) {
	testCases := []struct {
		name             string
		entries          []credentials.Entry
		environment      map[string]string
		remoteURL        string
		expectedFound    bool
		expectedUsername string
		expectedPassword string
	}{
		{
			name:             "inline_password_by_prefix",
			entries:          []credentials.Entry{{URLPrefix: "https://github.com/", Username: "operator", Password: "inline"}},
			remoteURL:        testGitHubRemoteConstant,
			expectedFound:    true,
			expectedUsername: "operator",
			expectedPassword: "inline",
		},
		{
			name:             "environment_password_by_host",
			entries:          []credentials.Entry{{Host: "GitLab.Example.com", PasswordEnv: testTokenEnvironmentKey}},
			environment:      map[string]string{testTokenEnvironmentKey: "from-env"},
			remoteURL:        testGitLabRemoteConstant,
			expectedFound:    true,
			expectedUsername: "git",
			expectedPassword: "from-env",
		},
		{
			name: "first_matching_entry_wins",
			entries: []credentials.Entry{
				{Host: "github.com", Owner: "someone-else", Password: "wrong"},
				{Host: "github.com", Owner: "temirov", Password: "right"},
				{Host: "github.com", Password: "fallback"},
			},
			remoteURL:        testGitHubRemoteConstant,
			expectedFound:    true,
			expectedUsername: "git",
			expectedPassword: "right",
		},
		{
			name:          "no_matching_entry",
			entries:       []credentials.Entry{{Host: "bitbucket.org", Password: "unused"}},
			remoteURL:     testGitHubRemoteConstant,
			expectedFound: false,
		},
		{
			name:          "anonymous_entry_fetches_without_auth",
			entries:       []credentials.Entry{{URLPrefix: "https://github.com/", Anonymous: true}},
			remoteURL:     testGitHubRemoteConstant,
			expectedFound: true,
		},
		{
			name:          "ssh_agent_entry_ignores_https",
			entries:       []credentials.Entry{{Host: "github.com", SSHAgent: true}},
			remoteURL:     testGitHubRemoteConstant,
			expectedFound: false,
		},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf(testSubtestTemplateConstant, testCaseIndex, testCase.name), func(testInstance *testing.T) {
			supplier, supplierError := credentials.NewConfiguredSupplier(testCase.entries, credentials.Dependencies{
				LookupEnvironment: environmentFrom(testCase.environment),
			})
			require.NoError(testInstance, supplierError)

			authMethod, found, authError := supplier.AuthFor(testCase.remoteURL)
			require.NoError(testInstance, authError)
			require.Equal(testInstance, testCase.expectedFound, found)
			if !testCase.expectedFound || len(testCase.expectedPassword) == 0 {
				require.Nil(testInstance, authMethod)
				return
			}

			basicAuth, isBasic := authMethod.(*http.BasicAuth)
			require.True(testInstance, isBasic)
			require.Equal(testInstance, testCase.expectedUsername, basicAuth.Username)
			require.Equal(testInstance, testCase.expectedPassword, basicAuth.Password)
		})
	}
}

func TestConfiguredSupplierUsesSSHAgentForSSHRemotes(testInstance *testing.T) {
	var requestedUsers []string
	supplier, supplierError := credentials.NewConfiguredSupplier(
		[]credentials.Entry{{Host: "github.com", SSHAgent: true}},
		credentials.Dependencies{
			SSHAgentAuth: func(username string) (transport.AuthMethod, error) {
				requestedUsers = append(requestedUsers, username)
				return &agentAuthStub{username: username}, nil
			},
		},
	)
	require.NoError(testInstance, supplierError)

	authMethod, found, authError := supplier.AuthFor(testSSHRemoteConstant)
	require.NoError(testInstance, authError)
	require.True(testInstance, found)
	require.Equal(testInstance, "git", authMethod.String())
	require.Equal(testInstance, []string{"git"}, requestedUsers)
}

func TestConfiguredSupplierSurfacesResolutionFailures(testInstance *testing.T) {
	testCases := []struct {
		name          string
		entry         credentials.Entry
		dependencies  credentials.Dependencies
		expectedError error
	}{
		{
			name:          "no_password_source",
			entry:         credentials.Entry{Host: "github.com"},
			expectedError: credentials.ErrPasswordUnavailable,
		},
		{
			name:          "prompt_without_prompter",
			entry:         credentials.Entry{Host: "github.com", Prompt: true},
			expectedError: credentials.ErrPromptUnavailable,
		},
		{
			name:         "environment_unset",
			entry:        credentials.Entry{Host: "github.com", PasswordEnv: testTokenEnvironmentKey},
			dependencies: credentials.Dependencies{LookupEnvironment: environmentFrom(nil)},
		},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf(testSubtestTemplateConstant, testCaseIndex, testCase.name), func(testInstance *testing.T) {
			supplier, supplierError := credentials.NewConfiguredSupplier([]credentials.Entry{testCase.entry}, testCase.dependencies)
			require.NoError(testInstance, supplierError)

			_, found, authError := supplier.AuthFor(testGitHubRemoteConstant)
			require.Error(testInstance, authError)
			require.False(testInstance, found)
			if testCase.expectedError != nil {
				require.ErrorIs(testInstance, authError, testCase.expectedError)
			}
		})
	}
}

func TestConfiguredSupplierPromptsOncePerEntry(testInstance *testing.T) {
	prompter := &recordingPrompter{responses: []string{"typed-secret"}}
	supplier, supplierError := credentials.NewConfiguredSupplier(
		[]credentials.Entry{{Host: "github.com", Prompt: true}},
		credentials.Dependencies{Prompter: prompter},
	)
	require.NoError(testInstance, supplierError)

	for attempt := 0; attempt < 3; attempt++ {
		authMethod, found, authError := supplier.AuthFor(testGitHubRemoteConstant)
		require.NoError(testInstance, authError)
		require.True(testInstance, found)
		require.Equal(testInstance, "typed-secret", authMethod.(*http.BasicAuth).Password)
	}
	require.Len(testInstance, prompter.prompts, 1)
	require.Contains(testInstance, prompter.prompts[0], testGitHubRemoteConstant)
}

func TestConfiguredSupplierTreatsLocalRemotesAsAnonymous(testInstance *testing.T) {
	supplier, supplierError := credentials.NewConfiguredSupplier(nil, credentials.Dependencies{})
	require.NoError(testInstance, supplierError)

	authMethod, found, authError := supplier.AuthFor("/srv/git/service.git")
	require.NoError(testInstance, authError)
	require.True(testInstance, found)
	require.Nil(testInstance, authMethod)
}

func TestNewConfiguredSupplierRejectsEntriesWithoutCriteria(testInstance *testing.T) {
	_, supplierError := credentials.NewConfiguredSupplier([]credentials.Entry{{Username: "operator", Password: "secret"}}, credentials.Dependencies{})
	require.ErrorIs(testInstance, supplierError, credentials.ErrEntryCriteriaMissing)
}

func TestIOPasswordPrompter(testInstance *testing.T) {
	output := &bytes.Buffer{}
	prompter := credentials.NewIOPasswordPrompter(strings.NewReader("s3cret\r\nsecond\n"), output)

	first, firstError := prompter.PromptPassword("Password: ")
	require.NoError(testInstance, firstError)
	require.Equal(testInstance, "s3cret", first)

	second, secondError := prompter.PromptPassword("Again: ")
	require.NoError(testInstance, secondError)
	require.Equal(testInstance, "second", second)
	require.Equal(testInstance, "Password: Again: ", output.String())
}

func TestIOPasswordPrompterInputEndings(testInstance *testing.T) {
	testCases := []struct {
		name             string
		input            string
		expectedPassword string
		expectedError    error
	}{
		{name: "closed_before_reading", input: "", expectedError: credentials.ErrPasswordInputClosed},
		{name: "final_line_without_newline", input: "secret", expectedPassword: "secret"},
		{name: "empty_line", input: "\n", expectedPassword: ""},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf(testSubtestTemplateConstant, testCaseIndex, testCase.name), func(testInstance *testing.T) {
			prompter := credentials.NewIOPasswordPrompter(strings.NewReader(testCase.input), &bytes.Buffer{})
			password, promptError := prompter.PromptPassword("Password: ")
			if testCase.expectedError != nil {
				require.ErrorIs(testInstance, promptError, testCase.expectedError)
				return
			}
			require.NoError(testInstance, promptError)
			require.Equal(testInstance, testCase.expectedPassword, password)
		})
	}
}

func TestIOPasswordPrompterReadsRegularFiles(testInstance *testing.T) {
	inputPath := filepath.Join(testInstance.TempDir(), "password")
	require.NoError(testInstance, os.WriteFile(inputPath, []byte("hunter2\n"), 0o600))
	inputFile, openError := os.Open(inputPath)
	require.NoError(testInstance, openError)
	defer inputFile.Close()

	output := &bytes.Buffer{}
	prompter := credentials.NewIOPasswordPrompter(inputFile, output)

	password, promptError := prompter.PromptPassword("Password: ")
	require.NoError(testInstance, promptError)
	require.Equal(testInstance, "hunter2", password)
	require.Equal(testInstance, "Password: ", output.String())

	_, closedError := prompter.PromptPassword("Again: ")
	require.ErrorIs(testInstance, closedError, credentials.ErrPasswordInputClosed)
}
