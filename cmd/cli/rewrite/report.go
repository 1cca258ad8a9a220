package rewrite

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tyemirov/patchpatch/internal/patches"
	"github.com/tyemirov/patchpatch/internal/utils"
)

// ReportFormat selects the rendering of the run summary.
type ReportFormat string

// Report formats.
const (
	ReportFormatText ReportFormat = "text"
	ReportFormatYAML ReportFormat = "yaml"
)

const (
	unsupportedReportFormatTemplateConstant = "unsupported report format %q (expected text or yaml)"
	reportWorkBranchTemplateConstant        = "work branch: %s\n"
	reportCommittedTemplateConstant         = "committed %d of %d commit pairs\n"
	reportPairTemplateConstant              = "%s %s attempts=%d committed=%t\n"
	reportFailureTemplateConstant           = "failed %s (%s): %s\n"
	reportShortCommitLengthConstant         = 12
)

// ParseReportFormat validates a report format name.
func ParseReportFormat(value string) (ReportFormat, error) {
	format := ReportFormat(strings.ToLower(strings.TrimSpace(value)))
	switch format {
	case ReportFormatText, ReportFormatYAML:
		return format, nil
	default:
		return "", fmt.Errorf(unsupportedReportFormatTemplateConstant, value)
	}
}

// WriteReport renders summary to output in the requested format.
func WriteReport(output io.Writer, format ReportFormat, summary patches.RunSummary) error {
	bufferedOutput := bufio.NewWriter(output)
	target := utils.NewFlushingWriter(bufferedOutput)

	switch format {
	case ReportFormatYAML:
		encoder := yaml.NewEncoder(target)
		encoder.SetIndent(2)
		if encodeError := encoder.Encode(summary); encodeError != nil {
			return encodeError
		}
		if closeError := encoder.Close(); closeError != nil {
			return closeError
		}
	default:
		if writeError := writeTextReport(target, summary); writeError != nil {
			return writeError
		}
	}

	return bufferedOutput.Flush()
}

func writeTextReport(target io.Writer, summary patches.RunSummary) error {
	if _, writeError := fmt.Fprintf(target, reportWorkBranchTemplateConstant, summary.WorkBranch); writeError != nil {
		return writeError
	}
	for _, pair := range summary.Pairs {
		if _, writeError := fmt.Fprintf(target, reportPairTemplateConstant, shortCommit(pair.TargetCommit), pair.WorkStatus, pair.Attempts, pair.Committed); writeError != nil {
			return writeError
		}
	}
	if _, writeError := fmt.Fprintf(target, reportCommittedTemplateConstant, summary.CommittedCount(), len(summary.Pairs)); writeError != nil {
		return writeError
	}
	for _, pair := range summary.FailedPairs() {
		if _, writeError := fmt.Fprintf(target, reportFailureTemplateConstant, shortCommit(pair.TargetCommit), pair.PatchPath, pair.LastError); writeError != nil {
			return writeError
		}
	}
	return nil
}

func shortCommit(commit string) string {
	if len(commit) <= reportShortCommitLengthConstant {
		return commit
	}
	return commit[:reportShortCommitLengthConstant]
}
