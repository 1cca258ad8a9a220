package execshell

import (
	"fmt"
	"strings"
)

const (
	startedMessageTemplateConstant          = "Running %s"
	completedMessageTemplateConstant        = "Completed %s"
	failedMessageTemplateConstant           = "%s failed with exit code %d"
	failedWithDetailMessageTemplateConstant = "%s failed with exit code %d: %s"
	executionFailureMessageTemplateConstant = "%s failed: %v"
	workingDirectorySuffixTemplateConstant  = " (in %s)"
)

// CommandMessageFormatter renders human-readable lifecycle messages for shell commands.
type CommandMessageFormatter struct{}

// BuildStartedMessage describes a command about to run.
func (formatter CommandMessageFormatter) BuildStartedMessage(command ShellCommand) string {
	return fmt.Sprintf(startedMessageTemplateConstant, formatter.describe(command))
}

// BuildSuccessMessage describes a command that exited cleanly.
func (formatter CommandMessageFormatter) BuildSuccessMessage(command ShellCommand) string {
	return fmt.Sprintf(completedMessageTemplateConstant, formatter.describe(command))
}

// BuildFailureMessage describes a command that exited with a non-zero status.
func (formatter CommandMessageFormatter) BuildFailureMessage(command ShellCommand, result ExecutionResult) string {
	detail := firstNonEmptyLine(result.StandardError)
	if len(detail) == 0 {
		detail = firstNonEmptyLine(result.StandardOutput)
	}
	if len(detail) == 0 {
		return fmt.Sprintf(failedMessageTemplateConstant, formatter.describe(command), result.ExitCode)
	}
	return fmt.Sprintf(failedWithDetailMessageTemplateConstant, formatter.describe(command), result.ExitCode, detail)
}

// BuildExecutionFailureMessage describes a command the runner could not execute.
func (formatter CommandMessageFormatter) BuildExecutionFailureMessage(command ShellCommand, failure error) string {
	return fmt.Sprintf(executionFailureMessageTemplateConstant, formatter.describe(command), failure)
}

func (formatter CommandMessageFormatter) describe(command ShellCommand) string {
	parts := append([]string{string(command.Name)}, command.Details.Arguments...)
	description := strings.Join(parts, " ")
	workingDirectory := strings.TrimSpace(command.Details.WorkingDirectory)
	if len(workingDirectory) > 0 {
		description += fmt.Sprintf(workingDirectorySuffixTemplateConstant, workingDirectory)
	}
	return description
}

func firstNonEmptyLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if trimmed := strings.TrimSpace(line); len(trimmed) > 0 {
			return trimmed
		}
	}
	return ""
}
