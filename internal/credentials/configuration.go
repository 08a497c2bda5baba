package credentials

import (
	"errors"
	"fmt"
	"strings"
)

const (
	entryCriteriaMissingMessageConstant = "credential entry needs url_prefix, host, or owner"
	entryValidationErrorTemplate        = "credential entry %d: %w"
)

// ErrEntryCriteriaMissing indicates an entry that could never match a remote.
var ErrEntryCriteriaMissing = errors.New(entryCriteriaMissingMessageConstant)

// Entry describes one credential source.
type Entry struct {
	URLPrefix   string `mapstructure:"url_prefix" yaml:"url_prefix"`
	Host        string `mapstructure:"host" yaml:"host"`
	Owner       string `mapstructure:"owner" yaml:"owner"`
	Username    string `mapstructure:"username" yaml:"username"`
	Password    string `mapstructure:"password" yaml:"password"`
	PasswordEnv string `mapstructure:"password_env" yaml:"password_env"`
	Prompt      bool   `mapstructure:"prompt" yaml:"prompt"`
	SSHAgent    bool   `mapstructure:"ssh_agent" yaml:"ssh_agent"`
	Anonymous   bool   `mapstructure:"anonymous" yaml:"anonymous"`
}

// Sanitize trims whitespace from every textual field.
func (entry Entry) Sanitize() Entry {
	sanitized := entry
	sanitized.URLPrefix = strings.TrimSpace(entry.URLPrefix)
	sanitized.Host = strings.ToLower(strings.TrimSpace(entry.Host))
	sanitized.Owner = strings.TrimSpace(entry.Owner)
	sanitized.Username = strings.TrimSpace(entry.Username)
	sanitized.PasswordEnv = strings.TrimSpace(entry.PasswordEnv)
	return sanitized
}

func (entry Entry) hasCriteria() bool {
	return len(entry.URLPrefix) > 0 || len(entry.Host) > 0 || len(entry.Owner) > 0
}

func validateEntries(entries []Entry) ([]Entry, error) {
	sanitized := make([]Entry, 0, len(entries))
	for entryIndex, entry := range entries {
		candidate := entry.Sanitize()
		if !candidate.hasCriteria() {
			return nil, fmt.Errorf(entryValidationErrorTemplate, entryIndex, ErrEntryCriteriaMissing)
		}
		sanitized = append(sanitized, candidate)
	}
	return sanitized, nil
}
