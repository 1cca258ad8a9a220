package execshell

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"sort"
)

// OSCommandRunner executes commands through os/exec.
type OSCommandRunner struct{}

// NewOSCommandRunner constructs an OSCommandRunner.
func NewOSCommandRunner() OSCommandRunner {
	return OSCommandRunner{}
}

// Run executes the command and captures its output. A non-zero exit status is reported through the result, not the error.
func (runner OSCommandRunner) Run(executionContext context.Context, command ShellCommand) (ExecutionResult, error) {
	if executionContext == nil {
		executionContext = context.Background()
	}

	process := exec.CommandContext(executionContext, string(command.Name), command.Details.Arguments...)
	process.Dir = command.Details.WorkingDirectory
	if len(command.Details.EnvironmentVariables) > 0 {
		process.Env = mergeEnvironment(os.Environ(), command.Details.EnvironmentVariables)
	}
	if len(command.Details.StandardInput) > 0 {
		process.Stdin = bytes.NewReader(command.Details.StandardInput)
	}

	var standardOutput bytes.Buffer
	var standardError bytes.Buffer
	process.Stdout = &standardOutput
	process.Stderr = &standardError

	runError := process.Run()
	result := ExecutionResult{
		StandardOutput: standardOutput.String(),
		StandardError:  standardError.String(),
	}
	if runError == nil {
		return result, nil
	}

	var exitError *exec.ExitError
	if errors.As(runError, &exitError) {
		result.ExitCode = exitError.ExitCode()
		return result, nil
	}
	return ExecutionResult{}, runError
}

func mergeEnvironment(base []string, overrides map[string]string) []string {
	merged := make([]string, 0, len(base)+len(overrides))
	merged = append(merged, base...)

	overrideNames := make([]string, 0, len(overrides))
	for name := range overrides {
		overrideNames = append(overrideNames, name)
	}
	sort.Strings(overrideNames)
	for _, name := range overrideNames {
		merged = append(merged, name+"="+overrides[name])
	}
	return merged
}
