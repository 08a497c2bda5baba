package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/repowatch/internal/credentials"
	"github.com/temirov/repowatch/internal/repos/dependencies"
	"github.com/temirov/repowatch/internal/repos/shared"
	"github.com/temirov/repowatch/internal/status"
	flagutils "github.com/temirov/repowatch/internal/utils/flags"
	pathutils "github.com/temirov/repowatch/internal/utils/path"
)

const (
	watchCommandUseConstant               = "watch [repository...]"
	watchCommandShortDescriptionConstant  = "Poll repositories until none needs attention"
	watchCommandLongDescriptionConstant   = "watch re-inspects the configured repositories on an interval and prints which ones can be pushed, fast-forwarded, or need manual attention. It exits once everything is settled."
	statusCommandUseConstant              = "status [repository...]"
	statusCommandShortDescriptionConstant = "Print a one-shot status report"
	statusCommandLongDescriptionConstant  = "status inspects the configured repositories once and prints the report as text or YAML."

	intervalFlagNameConstant         = "interval"
	intervalFlagUsageConstant        = "Pause between polling cycles"
	fetchFlagNameConstant            = "fetch"
	fetchFlagUsageConstant           = "Fetch the remote before reporting"
	clearScreenFlagNameConstant      = "clear-screen"
	clearScreenFlagUsageConstant     = "Clear the terminal before each report"
	formatFlagNameConstant           = "format"
	formatFlagUsageConstant          = "Report output format"
	remoteFlagUsageConstant          = "Remote to fetch in every repository"
	formatTextConstant               = "text"
	formatYAMLConstant               = "yaml"
	noInputsMessageConstant          = "no repositories, directories, or roots configured"
	commandExecutionErrorTemplate    = "watch failed: %w"
	sanitizeCredentialsErrorTemplate = "invalid credentials configuration: %w"
	addInputsErrorTemplate           = "unable to register inputs: %w"
	repositoriesDiscoveredMessage    = "repositories discovered under roots"
	inputsPartiallyRegisteredMessage = "some inputs could not be registered"
	logFieldRegisteredConstant       = "registered"
)

// ErrNoInputs indicates the command has nothing to watch.
var ErrNoInputs = errors.New(noInputsMessageConstant)

// LoggerProvider supplies a zap logger instance.
type LoggerProvider func() *zap.Logger

// ConfigurationProvider supplies the persisted watch configuration.
type ConfigurationProvider func() CommandConfiguration

// CommandBuilder assembles the watch and status commands.
type CommandBuilder struct {
	LoggerProvider        LoggerProvider
	ConfigurationProvider ConfigurationProvider
	Opener                shared.InspectorOpener
	DirectoryLister       shared.DirectoryLister
	Discoverer            shared.RepositoryDiscoverer
	Clock                 shared.Clock
	Sleeper               Sleeper
	PasswordInput         io.Reader
}

type commandOptions struct {
	paths       *flagutils.PathFlagValues
	interval    time.Duration
	fetch       bool
	clearScreen bool
	format      string
}

// Build constructs the watch command.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	options := &commandOptions{}
	command := &cobra.Command{
		Use:   watchCommandUseConstant,
		Short: watchCommandShortDescriptionConstant,
		Long:  watchCommandLongDescriptionConstant,
		RunE: func(command *cobra.Command, arguments []string) error {
			return builder.runWatch(command, arguments, options)
		},
	}
	builder.bindSharedFlags(command, options)
	command.Flags().DurationVar(&options.interval, intervalFlagNameConstant, DefaultIntervalConstant, intervalFlagUsageConstant)
	flagutils.AddToggleFlag(command.Flags(), &options.clearScreen, clearScreenFlagNameConstant, "", true, clearScreenFlagUsageConstant)
	return command, nil
}

// BuildStatus constructs the one-shot status command.
func (builder *CommandBuilder) BuildStatus() (*cobra.Command, error) {
	options := &commandOptions{}
	command := &cobra.Command{
		Use:   statusCommandUseConstant,
		Short: statusCommandShortDescriptionConstant,
		Long:  statusCommandLongDescriptionConstant,
		RunE: func(command *cobra.Command, arguments []string) error {
			return builder.runStatus(command, arguments, options)
		},
	}
	builder.bindSharedFlags(command, options)
	flagutils.AddChoiceFlag(command.Flags(), &options.format, formatFlagNameConstant, formatTextConstant, []string{formatTextConstant, formatYAMLConstant}, formatFlagUsageConstant)
	return command, nil
}

func (builder *CommandBuilder) bindSharedFlags(command *cobra.Command, options *commandOptions) {
	options.paths = flagutils.BindPathFlags(command)
	flagutils.EnsureRemoteFlag(command, "", remoteFlagUsageConstant)
	flagutils.AddToggleFlag(command.Flags(), &options.fetch, fetchFlagNameConstant, "", true, fetchFlagUsageConstant)
}

func (builder *CommandBuilder) runWatch(command *cobra.Command, arguments []string, options *commandOptions) error {
	configuration, configurationError := builder.resolveConfiguration(command, arguments, options)
	if configurationError != nil {
		return configurationError
	}

	logger := builder.resolveLogger()
	manager, managerError := builder.buildManager(command, configuration, logger)
	if managerError != nil {
		return managerError
	}

	output := command.OutOrStdout()
	watcher, watcherError := NewWatcher(WatcherDependencies{
		Source:   manager,
		Output:   output,
		Renderer: NewReportRenderer(output),
		Sleeper:  builder.Sleeper,
		Logger:   logger,
	}, WatcherOptions{
		Interval:       configuration.Interval,
		FetchOnStart:   configuration.FetchOnStart,
		FetchEachCycle: configuration.FetchEachCycle,
		ClearScreen:    configuration.ClearScreen,
	})
	if watcherError != nil {
		return watcherError
	}

	if runError := watcher.Run(commandContext(command)); runError != nil {
		return fmt.Errorf(commandExecutionErrorTemplate, runError)
	}
	return nil
}

func (builder *CommandBuilder) runStatus(command *cobra.Command, arguments []string, options *commandOptions) error {
	configuration, configurationError := builder.resolveConfiguration(command, arguments, options)
	if configurationError != nil {
		return configurationError
	}

	logger := builder.resolveLogger()
	manager, managerError := builder.buildManager(command, configuration, logger)
	if managerError != nil {
		return managerError
	}

	executionContext := commandContext(command)
	if configuration.FetchOnStart || configuration.FetchEachCycle {
		manager.FetchAll(executionContext)
	}
	report, reportError := manager.StatusReport(executionContext)
	if reportError != nil {
		return fmt.Errorf(statusErrorTemplateConstant, reportError)
	}

	output := command.OutOrStdout()
	if options.format == formatYAMLConstant {
		return EncodeReportYAML(output, report)
	}

	renderer := NewReportRenderer(output)
	text := renderer.Render(report)
	if report.Settled() {
		text += renderer.RenderSettled()
	}
	if _, writeError := io.WriteString(output, text); writeError != nil {
		return fmt.Errorf(renderErrorTemplateConstant, writeError)
	}
	return nil
}

// resolveConfiguration overlays explicitly set flags and positional repositories on the persisted configuration.
func (builder *CommandBuilder) resolveConfiguration(command *cobra.Command, arguments []string, options *commandOptions) (CommandConfiguration, error) {
	configuration := DefaultCommandConfiguration()
	if builder.ConfigurationProvider != nil {
		configuration = builder.ConfigurationProvider()
	}

	if directories, changed := flagutils.ChangedStrings(command, flagutils.DirectoryFlagName); changed {
		configuration.Directories = directories
	}
	if repositories, changed := flagutils.ChangedStrings(command, flagutils.RepositoryFlagName); changed {
		configuration.Repositories = repositories
	}
	if roots, changed := flagutils.ChangedStrings(command, flagutils.RootFlagName); changed {
		configuration.Roots = roots
	}
	configuration.Repositories = append(append([]string{}, configuration.Repositories...), arguments...)

	if command.Flags().Changed(flagutils.RemoteFlagName) {
		remoteName, _ := command.Flags().GetString(flagutils.RemoteFlagName)
		configuration.RemoteName = remoteName
	}
	if command.Flags().Changed(fetchFlagNameConstant) {
		configuration.FetchOnStart = options.fetch
		if !options.fetch {
			configuration.FetchEachCycle = false
		}
	}
	if command.Flags().Changed(clearScreenFlagNameConstant) {
		configuration.ClearScreen = options.clearScreen
	}
	if command.Flags().Changed(intervalFlagNameConstant) {
		configuration.Interval = options.interval
	}

	sanitized := configuration.sanitize()
	if len(sanitized.Directories) == 0 && len(sanitized.Repositories) == 0 && len(sanitized.Roots) == 0 {
		return CommandConfiguration{}, ErrNoInputs
	}
	return sanitized, nil
}

func (builder *CommandBuilder) buildManager(command *cobra.Command, configuration CommandConfiguration, logger *zap.Logger) (*Manager, error) {
	passwordInput := builder.PasswordInput
	if passwordInput == nil {
		passwordInput = os.Stdin
	}
	supplier, supplierError := credentials.NewConfiguredSupplier(configuration.Credentials, credentials.Dependencies{
		Prompter: credentials.NewIOPasswordPrompter(passwordInput, command.ErrOrStderr()),
		Logger:   logger,
	})
	if supplierError != nil {
		return nil, fmt.Errorf(sanitizeCredentialsErrorTemplate, supplierError)
	}

	fileSystem := dependencies.ResolveFileSystem(nil)
	homeExpander := pathutils.NewHomeExpander()
	manager, managerError := NewManager(Dependencies{
		Opener:          dependencies.ResolveInspectorOpener(builder.Opener, logger, supplier, configuration.ScanIgnored),
		DirectoryLister: dependencies.ResolveDirectoryLister(builder.DirectoryLister, fileSystem),
		Discoverer:      dependencies.ResolveRepositoryDiscoverer(builder.Discoverer),
		HomeExpander:    homeExpander,
		Clock:           builder.Clock,
		Logger:          logger,
	}, ManagerOptions{
		Policy:           status.Policy{PrimaryBranches: configuration.PrimaryBranches},
		RemoteName:       configuration.RemoteName,
		FetchConcurrency: configuration.FetchConcurrency,
	})
	if managerError != nil {
		return nil, managerError
	}

	sanitizer := pathutils.NewPathSanitizer(homeExpander, pathutils.PathSanitizerConfiguration{})
	registered, registerError := manager.Register(
		sanitizer.Sanitize(configuration.Repositories),
		sanitizer.Sanitize(configuration.Directories),
	)
	if registerError != nil {
		logger.Warn(inputsPartiallyRegisteredMessage, zap.Int(logFieldRegisteredConstant, registered), zap.Error(registerError))
	}

	rootSanitizer := pathutils.NewPathSanitizer(homeExpander, pathutils.PathSanitizerConfiguration{PruneNestedPaths: true})
	if roots := rootSanitizer.Sanitize(configuration.Roots); len(roots) > 0 {
		discovered, discoveryError := manager.AddRoots(roots)
		if discoveryError != nil {
			return nil, fmt.Errorf(addInputsErrorTemplate, discoveryError)
		}
		logger.Debug(repositoriesDiscoveredMessage, zap.Int(logFieldRegisteredConstant, discovered))
		registered += discovered
	}

	if registerError != nil && registered == 0 {
		return nil, fmt.Errorf(addInputsErrorTemplate, registerError)
	}
	return manager, nil
}

func (builder *CommandBuilder) resolveLogger() *zap.Logger {
	if builder.LoggerProvider == nil {
		return zap.NewNop()
	}

	logger := builder.LoggerProvider()
	if logger == nil {
		return zap.NewNop()
	}

	return logger
}

func commandContext(command *cobra.Command) context.Context {
	if executionContext := command.Context(); executionContext != nil {
		return executionContext
	}
	return context.Background()
}
