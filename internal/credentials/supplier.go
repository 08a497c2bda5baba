package credentials

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"
	"go.uber.org/zap"

	"github.com/temirov/repowatch/internal/gitrepo"
)

const (
	defaultUsernameConstant              = "git"
	passwordPromptTemplateConstant       = "Password for %s: "
	passwordUnavailableMessageConstant   = "no password available"
	promptUnavailableMessageConstant     = "password prompt requested but no prompter configured"
	environmentUnsetErrorTemplate        = "environment variable %s is not set"
	entryResolutionErrorTemplateConstant = "credentials for %s: %w"
	sshAgentErrorTemplateConstant        = "ssh agent: %w"
	matchedEntryMessageConstant          = "credential entry matched"
	unparsableRemoteMessageConstant      = "remote url could not be parsed for credential matching"
	logFieldRemoteURLConstant            = "remote_url"
	logFieldEntryIndexConstant           = "entry_index"
)

// ErrPasswordUnavailable indicates a matched HTTP entry had no way to obtain a password.
var ErrPasswordUnavailable = errors.New(passwordUnavailableMessageConstant)

// ErrPromptUnavailable indicates a prompt entry matched without a prompter.
var ErrPromptUnavailable = errors.New(promptUnavailableMessageConstant)

// Supplier resolves transport credentials for a remote URL.
type Supplier interface {
	AuthFor(remoteURL string) (transport.AuthMethod, bool, error)
}

// EnvironmentLookup mirrors os.LookupEnv.
type EnvironmentLookup func(key string) (string, bool)

// SSHAgentAuthFactory builds agent-backed SSH authentication for a user.
type SSHAgentAuthFactory func(username string) (transport.AuthMethod, error)

// Dependencies supplies collaborators for ConfiguredSupplier.
type Dependencies struct {
	Prompter          PasswordPrompter
	LookupEnvironment EnvironmentLookup
	SSHAgentAuth      SSHAgentAuthFactory
	Logger            *zap.Logger
}

// ConfiguredSupplier matches remotes against configured entries. The first matching entry wins.
type ConfiguredSupplier struct {
	entries           []Entry
	prompter          PasswordPrompter
	lookupEnvironment EnvironmentLookup
	sshAgentAuth      SSHAgentAuthFactory
	logger            *zap.Logger

	promptMutex     sync.Mutex
	promptedSecrets map[int]string
}

// NewConfiguredSupplier validates entries and wires defaults for missing dependencies.
func NewConfiguredSupplier(entries []Entry, dependencies Dependencies) (*ConfiguredSupplier, error) {
	validatedEntries, validationError := validateEntries(entries)
	if validationError != nil {
		return nil, validationError
	}

	lookupEnvironment := dependencies.LookupEnvironment
	if lookupEnvironment == nil {
		lookupEnvironment = os.LookupEnv
	}
	sshAgentAuth := dependencies.SSHAgentAuth
	if sshAgentAuth == nil {
		sshAgentAuth = defaultSSHAgentAuth
	}
	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ConfiguredSupplier{
		entries:           validatedEntries,
		prompter:          dependencies.Prompter,
		lookupEnvironment: lookupEnvironment,
		sshAgentAuth:      sshAgentAuth,
		logger:            logger,
		promptedSecrets:   make(map[int]string),
	}, nil
}

func defaultSSHAgentAuth(username string) (transport.AuthMethod, error) {
	return ssh.NewSSHAgentAuth(username)
}

// AuthFor returns the credentials of the first entry matching remoteURL.
// Remotes with no matching entry return (nil, false, nil).
func (supplier *ConfiguredSupplier) AuthFor(remoteURL string) (transport.AuthMethod, bool, error) {
	parsedRemote, parseError := gitrepo.ParseRemoteURL(remoteURL)
	if parseError != nil {
		supplier.logger.Debug(unparsableRemoteMessageConstant, zap.String(logFieldRemoteURLConstant, remoteURL), zap.Error(parseError))
		return nil, false, nil
	}
	if !parsedRemote.RequiresCredentials() {
		return nil, true, nil
	}

	for entryIndex, entry := range supplier.entries {
		if !entryMatches(entry, remoteURL, parsedRemote) {
			continue
		}
		supplier.logger.Debug(matchedEntryMessageConstant, zap.String(logFieldRemoteURLConstant, remoteURL), zap.Int(logFieldEntryIndexConstant, entryIndex))

		authMethod, resolveError := supplier.resolve(entryIndex, entry, remoteURL, parsedRemote.Protocol)
		if resolveError != nil {
			return nil, false, fmt.Errorf(entryResolutionErrorTemplateConstant, remoteURL, resolveError)
		}
		return authMethod, true, nil
	}
	return nil, false, nil
}

func entryMatches(entry Entry, remoteURL string, parsedRemote gitrepo.RemoteURL) bool {
	if len(entry.URLPrefix) > 0 && !strings.HasPrefix(remoteURL, entry.URLPrefix) {
		return false
	}
	if len(entry.Host) > 0 && entry.Host != parsedRemote.Host {
		return false
	}
	if len(entry.Owner) > 0 && !strings.EqualFold(entry.Owner, parsedRemote.Owner) {
		return false
	}
	if parsedRemote.Protocol == gitrepo.RemoteProtocolSSH {
		return entry.SSHAgent
	}
	return !entry.SSHAgent
}

func (supplier *ConfiguredSupplier) resolve(entryIndex int, entry Entry, remoteURL string, protocol gitrepo.RemoteProtocol) (transport.AuthMethod, error) {
	username := entry.Username
	if len(username) == 0 {
		username = defaultUsernameConstant
	}

	if protocol == gitrepo.RemoteProtocolSSH {
		authMethod, agentError := supplier.sshAgentAuth(username)
		if agentError != nil {
			return nil, fmt.Errorf(sshAgentErrorTemplateConstant, agentError)
		}
		return authMethod, nil
	}

	if entry.Anonymous {
		return nil, nil
	}

	password, passwordError := supplier.password(entryIndex, entry, remoteURL)
	if passwordError != nil {
		return nil, passwordError
	}
	return &http.BasicAuth{Username: username, Password: password}, nil
}

func (supplier *ConfiguredSupplier) password(entryIndex int, entry Entry, remoteURL string) (string, error) {
	if len(entry.Password) > 0 {
		return entry.Password, nil
	}
	if len(entry.PasswordEnv) > 0 {
		value, present := supplier.lookupEnvironment(entry.PasswordEnv)
		if !present {
			return "", fmt.Errorf(environmentUnsetErrorTemplate, entry.PasswordEnv)
		}
		return value, nil
	}
	if !entry.Prompt {
		return "", ErrPasswordUnavailable
	}
	if supplier.prompter == nil {
		return "", ErrPromptUnavailable
	}

	supplier.promptMutex.Lock()
	defer supplier.promptMutex.Unlock()
	if secret, prompted := supplier.promptedSecrets[entryIndex]; prompted {
		return secret, nil
	}
	secret, promptError := supplier.prompter.PromptPassword(fmt.Sprintf(passwordPromptTemplateConstant, remoteURL))
	if promptError != nil {
		return "", promptError
	}
	supplier.promptedSecrets[entryIndex] = secret
	return secret, nil
}
