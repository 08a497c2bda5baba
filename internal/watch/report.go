package watch

import (
	"strings"
	"time"

	"github.com/temirov/repowatch/internal/gitrepo"
	"github.com/temirov/repowatch/internal/status"
)

const lineTerminatorConstant = "\n"

// Entry is the classified state of one repository in a report.
type Entry struct {
	Path       string                   `yaml:"path"`
	Group      string                   `yaml:"group,omitempty"`
	Action     status.Action            `yaml:"action"`
	Branch     string                   `yaml:"branch,omitempty"`
	Comparison *status.BranchComparison `yaml:"comparison,omitempty"`
	Message    string                   `yaml:"message,omitempty"`
	Failure    string                   `yaml:"error,omitempty"`
	Snapshot   *status.Snapshot         `yaml:"-"`
}

// Severity returns the rendering emphasis; snapshot failures are errors.
func (entry Entry) Severity() status.Severity {
	if len(entry.Failure) > 0 {
		return status.SeverityError
	}
	return entry.Action.Severity()
}

// NeedsAttention reports whether the entry carries a recommendation or a failure.
func (entry Entry) NeedsAttention() bool {
	return entry.Action != status.ActionNone || len(entry.Failure) > 0
}

// GroupListing records the child directories of a scanned directory that are not repositories.
type GroupListing struct {
	Directory       string   `yaml:"directory"`
	NonRepositories []string `yaml:"non_repositories"`
}

// Report is the outcome of one status pass over every registered repository.
type Report struct {
	GeneratedAt time.Time      `yaml:"generated_at"`
	Entries     []Entry        `yaml:"entries"`
	Groups      []GroupListing `yaml:"non_repositories,omitempty"`
}

// Settled reports whether no repository needs attention. Non-repository listings are informational.
func (report Report) Settled() bool {
	for _, entry := range report.Entries {
		if entry.NeedsAttention() {
			return false
		}
	}
	return true
}

// AttentionEntries returns the entries carrying a recommendation or a failure, in report order.
func (report Report) AttentionEntries() []Entry {
	var attention []Entry
	for _, entry := range report.Entries {
		if entry.NeedsAttention() {
			attention = append(attention, entry)
		}
	}
	return attention
}

// String concatenates the non-empty messages, one per line, followed by the non-repository names of each group.
func (report Report) String() string {
	var builder strings.Builder
	for _, entry := range report.Entries {
		if len(entry.Message) == 0 {
			continue
		}
		builder.WriteString(entry.Message)
		builder.WriteString(lineTerminatorConstant)
	}
	for _, group := range report.Groups {
		for _, name := range group.NonRepositories {
			builder.WriteString(name)
			builder.WriteString(lineTerminatorConstant)
		}
	}
	return builder.String()
}

// FetchSummary counts fetch outcomes across a FetchAll pass.
type FetchSummary struct {
	Updated  int `yaml:"updated"`
	UpToDate int `yaml:"up_to_date"`
	Skipped  int `yaml:"skipped"`
	Failed   int `yaml:"failed"`
}

// Total returns the number of repositories visited.
func (summary FetchSummary) Total() int {
	return summary.Updated + summary.UpToDate + summary.Skipped + summary.Failed
}

func (summary *FetchSummary) record(outcome gitrepo.FetchOutcome) {
	switch outcome {
	case gitrepo.FetchUpdated:
		summary.Updated++
	case gitrepo.FetchUpToDate:
		summary.UpToDate++
	case gitrepo.FetchSkipped:
		summary.Skipped++
	default:
		summary.Failed++
	}
}
