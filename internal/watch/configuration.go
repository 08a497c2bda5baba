package watch

import (
	"strings"
	"time"

	"github.com/temirov/repowatch/internal/credentials"
	"github.com/temirov/repowatch/internal/gitrepo"
	"github.com/temirov/repowatch/internal/status"
)

const (
	configurationDirectoriesKeyConstant      = "directories"
	configurationRepositoriesKeyConstant     = "repositories"
	configurationRootsKeyConstant            = "roots"
	configurationPrimaryBranchesKeyConstant  = "primary_branches"
	configurationRemoteKeyConstant           = "remote"
	configurationIntervalKeyConstant         = "interval"
	configurationFetchOnStartKeyConstant     = "fetch_on_start"
	configurationFetchEachCycleKeyConstant   = "fetch_each_cycle"
	configurationFetchConcurrencyKeyConstant = "fetch_concurrency"
	configurationClearScreenKeyConstant      = "clear_screen"
	configurationScanIgnoredKeyConstant      = "scan_ignored"
	configurationCredentialsKeyConstant      = "credentials"

	// DefaultIntervalConstant is the pause between polling cycles.
	DefaultIntervalConstant = 10 * time.Second
	// DefaultFetchConcurrencyConstant bounds parallel fetches.
	DefaultFetchConcurrencyConstant = 4
)

// CommandConfiguration captures persistent settings for the watch and status commands.
type CommandConfiguration struct {
	Directories      []string            `mapstructure:"directories"`
	Repositories     []string            `mapstructure:"repositories"`
	Roots            []string            `mapstructure:"roots"`
	PrimaryBranches  []string            `mapstructure:"primary_branches"`
	RemoteName       string              `mapstructure:"remote"`
	Interval         time.Duration       `mapstructure:"interval"`
	FetchOnStart     bool                `mapstructure:"fetch_on_start"`
	FetchEachCycle   bool                `mapstructure:"fetch_each_cycle"`
	FetchConcurrency int                 `mapstructure:"fetch_concurrency"`
	ClearScreen      bool                `mapstructure:"clear_screen"`
	ScanIgnored      bool                `mapstructure:"scan_ignored"`
	Credentials      []credentials.Entry `mapstructure:"credentials"`
}

// DefaultCommandConfiguration returns baseline configuration values for the watch command.
func DefaultCommandConfiguration() CommandConfiguration {
	return CommandConfiguration{
		Directories:      nil,
		Repositories:     nil,
		Roots:            nil,
		PrimaryBranches:  status.DefaultPolicy().PrimaryBranches,
		RemoteName:       gitrepo.DefaultRemoteNameConstant,
		Interval:         DefaultIntervalConstant,
		FetchOnStart:     true,
		FetchEachCycle:   false,
		FetchConcurrency: DefaultFetchConcurrencyConstant,
		ClearScreen:      true,
		ScanIgnored:      true,
		Credentials:      nil,
	}
}

// DefaultConfigurationValues flattens the defaults beneath rootKey for the configuration loader.
func DefaultConfigurationValues(rootKey string) map[string]any {
	defaults := DefaultCommandConfiguration()
	return map[string]any{
		rootKey + "." + configurationDirectoriesKeyConstant:      defaults.Directories,
		rootKey + "." + configurationRepositoriesKeyConstant:     defaults.Repositories,
		rootKey + "." + configurationRootsKeyConstant:            defaults.Roots,
		rootKey + "." + configurationPrimaryBranchesKeyConstant:  defaults.PrimaryBranches,
		rootKey + "." + configurationRemoteKeyConstant:           defaults.RemoteName,
		rootKey + "." + configurationIntervalKeyConstant:         defaults.Interval,
		rootKey + "." + configurationFetchOnStartKeyConstant:     defaults.FetchOnStart,
		rootKey + "." + configurationFetchEachCycleKeyConstant:   defaults.FetchEachCycle,
		rootKey + "." + configurationFetchConcurrencyKeyConstant: defaults.FetchConcurrency,
		rootKey + "." + configurationClearScreenKeyConstant:      defaults.ClearScreen,
		rootKey + "." + configurationScanIgnoredKeyConstant:      defaults.ScanIgnored,
		rootKey + "." + configurationCredentialsKeyConstant:      defaults.Credentials,
	}
}

// sanitize trims values and restores defaults for unusable numeric settings.
func (configuration CommandConfiguration) sanitize() CommandConfiguration {
	sanitized := configuration

	sanitized.Directories = sanitizeValues(configuration.Directories)
	sanitized.Repositories = sanitizeValues(configuration.Repositories)
	sanitized.Roots = sanitizeValues(configuration.Roots)
	sanitized.PrimaryBranches = status.Policy{PrimaryBranches: configuration.PrimaryBranches}.Sanitize().PrimaryBranches
	sanitized.RemoteName = strings.TrimSpace(configuration.RemoteName)
	if len(sanitized.RemoteName) == 0 {
		sanitized.RemoteName = gitrepo.DefaultRemoteNameConstant
	}
	if sanitized.Interval <= 0 {
		sanitized.Interval = DefaultIntervalConstant
	}
	if sanitized.FetchConcurrency <= 0 {
		sanitized.FetchConcurrency = DefaultFetchConcurrencyConstant
	}

	return sanitized
}

func sanitizeValues(raw []string) []string {
	sanitized := make([]string, 0, len(raw))
	for _, candidate := range raw {
		trimmed := strings.TrimSpace(candidate)
		if len(trimmed) == 0 {
			continue
		}
		sanitized = append(sanitized, trimmed)
	}
	return sanitized
}
