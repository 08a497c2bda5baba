package watch

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"github.com/temirov/repowatch/internal/status"
)

const (
	clearScreenSequenceConstant         = "\033[H\033[2J"
	settledMessageConstant              = "everything's good!"
	nonRepositoryHeaderTemplate         = "not repositories in %s:"
	nonRepositoryItemPrefixConstant     = "  "
	suggestionColorConstant             = "3"
	errorColorConstant                  = "1"
	settledColorConstant                = "2"
	informationalColorConstant          = "8"
	yamlIndentConstant                  = 2
	reportEncodingErrorTemplateConstant = "failed to encode report: %w"
)

// ReportRenderer formats reports for a terminal, colouring lines by severity.
type ReportRenderer struct {
	suggestionStyle    lipgloss.Style
	errorStyle         lipgloss.Style
	settledStyle       lipgloss.Style
	informationalStyle lipgloss.Style
}

// NewReportRenderer builds styles whose colour profile is detected from output.
func NewReportRenderer(output io.Writer) *ReportRenderer {
	renderer := lipgloss.NewRenderer(output)
	return &ReportRenderer{
		suggestionStyle:    renderer.NewStyle().Foreground(lipgloss.Color(suggestionColorConstant)),
		errorStyle:         renderer.NewStyle().Foreground(lipgloss.Color(errorColorConstant)).Bold(true),
		settledStyle:       renderer.NewStyle().Foreground(lipgloss.Color(settledColorConstant)),
		informationalStyle: renderer.NewStyle().Foreground(lipgloss.Color(informationalColorConstant)),
	}
}

// Render returns one line per repository needing attention followed by the non-repository listings.
func (renderer *ReportRenderer) Render(report Report) string {
	var builder strings.Builder
	for _, entry := range report.AttentionEntries() {
		builder.WriteString(renderer.styleFor(entry.Severity()).Render(entry.Message))
		builder.WriteString(lineTerminatorConstant)
	}
	for _, group := range report.Groups {
		builder.WriteString(renderer.informationalStyle.Render(fmt.Sprintf(nonRepositoryHeaderTemplate, group.Directory)))
		builder.WriteString(lineTerminatorConstant)
		for _, name := range group.NonRepositories {
			builder.WriteString(renderer.informationalStyle.Render(nonRepositoryItemPrefixConstant + name))
			builder.WriteString(lineTerminatorConstant)
		}
	}
	return builder.String()
}

// RenderSettled returns the closing line printed once nothing needs attention.
func (renderer *ReportRenderer) RenderSettled() string {
	return renderer.settledStyle.Render(settledMessageConstant) + lineTerminatorConstant
}

func (renderer *ReportRenderer) styleFor(severity status.Severity) lipgloss.Style {
	if severity == status.SeverityError {
		return renderer.errorStyle
	}
	return renderer.suggestionStyle
}

// EncodeReportYAML writes the report as a YAML document.
func EncodeReportYAML(output io.Writer, report Report) error {
	encoder := yaml.NewEncoder(output)
	encoder.SetIndent(yamlIndentConstant)
	if encodeError := encoder.Encode(report); encodeError != nil {
		return fmt.Errorf(reportEncodingErrorTemplateConstant, encodeError)
	}
	if closeError := encoder.Close(); closeError != nil {
		return fmt.Errorf(reportEncodingErrorTemplateConstant, closeError)
	}
	return nil
}

func clearScreen(output io.Writer) error {
	_, writeError := io.WriteString(output, clearScreenSequenceConstant)
	return writeError
}
