package flags

import "github.com/spf13/cobra"

const (
	// DirectoryFlagName names the repeatable flag for directories whose children are scanned.
	DirectoryFlagName = "directory"
	// RepositoryFlagName names the repeatable flag for individual repositories.
	RepositoryFlagName = "repository"
	// RootFlagName names the repeatable flag for roots searched recursively.
	RootFlagName = "root"
	// RemoteFlagName names the flag selecting the remote to fetch.
	RemoteFlagName = "remote"

	directoryFlagUsage  = "Directory whose immediate children are watched (repeatable)"
	repositoryFlagUsage = "Repository to watch (repeatable)"
	rootFlagUsage       = "Root searched recursively for repositories (repeatable)"
)

// PathFlagValues stores the repository selection flags.
type PathFlagValues struct {
	Directories  []string
	Repositories []string
	Roots        []string
}

// BindPathFlags attaches the persistent repository selection flags to command.
func BindPathFlags(command *cobra.Command) *PathFlagValues {
	values := &PathFlagValues{}
	if command == nil {
		return values
	}

	flagSet := command.PersistentFlags()
	flagSet.StringSliceVar(&values.Directories, DirectoryFlagName, nil, directoryFlagUsage)
	flagSet.StringSliceVar(&values.Repositories, RepositoryFlagName, nil, repositoryFlagUsage)
	flagSet.StringSliceVar(&values.Roots, RootFlagName, nil, rootFlagUsage)
	return values
}

// EnsureRemoteFlag guarantees the remote flag is available on the command.
func EnsureRemoteFlag(command *cobra.Command, defaultValue string, usage string) {
	if command == nil {
		return
	}

	persistentSet := command.PersistentFlags()
	if persistentSet.Lookup(RemoteFlagName) == nil {
		persistentSet.String(RemoteFlagName, defaultValue, usage)
	}
}

// ChangedStrings returns the string slice value of name when the user set it on command.
func ChangedStrings(command *cobra.Command, name string) ([]string, bool) {
	if command == nil {
		return nil, false
	}
	flag := command.Flags().Lookup(name)
	if flag == nil || !flag.Changed {
		return nil, false
	}
	values, valueError := command.Flags().GetStringSlice(name)
	if valueError != nil {
		return nil, false
	}
	return values, true
}
