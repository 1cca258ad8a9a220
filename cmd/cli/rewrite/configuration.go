package rewrite

import (
	"os"
	"strings"

	"github.com/tyemirov/patchpatch/internal/patches"
)

const (
	defaultRepositoryPathConstant = "."
	defaultFailureStrategy        = FailureStrategySkip
	defaultReportFormat           = ReportFormatText
)

// CommandConfiguration captures configuration values for the rewrite command.
type CommandConfiguration struct {
	RepositoryPath string   `mapstructure:"repository"`
	PatchDirectory string   `mapstructure:"patch_dir"`
	Branch         string   `mapstructure:"branch"`
	Transforms     []string `mapstructure:"transforms"`
	OnFailure      string   `mapstructure:"on_failure"`
	RequireClean   bool     `mapstructure:"require_clean"`
	ShowChanges    bool     `mapstructure:"show_changes"`
	Reprocess      bool     `mapstructure:"reprocess"`
	AssumeYes      bool     `mapstructure:"assume_yes"`
	Report         string   `mapstructure:"report"`
}

// DefaultCommandConfiguration provides baseline configuration.
func DefaultCommandConfiguration() CommandConfiguration {
	return CommandConfiguration{
		RepositoryPath: defaultRepositoryPathConstant,
		PatchDirectory: os.TempDir(),
		Transforms:     defaultTransformNames(),
		OnFailure:      string(defaultFailureStrategy),
		RequireClean:   true,
		Report:         string(defaultReportFormat),
	}
}

// Sanitize normalizes configuration values.
func (configuration CommandConfiguration) Sanitize() CommandConfiguration {
	sanitized := configuration

	sanitized.RepositoryPath = strings.TrimSpace(configuration.RepositoryPath)
	if len(sanitized.RepositoryPath) == 0 {
		sanitized.RepositoryPath = defaultRepositoryPathConstant
	}

	sanitized.PatchDirectory = strings.TrimSpace(configuration.PatchDirectory)
	if len(sanitized.PatchDirectory) == 0 {
		sanitized.PatchDirectory = os.TempDir()
	}

	sanitized.Branch = strings.TrimSpace(configuration.Branch)

	sanitized.Transforms = sanitizeTransformNames(configuration.Transforms)
	if len(sanitized.Transforms) == 0 {
		sanitized.Transforms = defaultTransformNames()
	}

	sanitized.OnFailure = strings.ToLower(strings.TrimSpace(configuration.OnFailure))
	if len(sanitized.OnFailure) == 0 {
		sanitized.OnFailure = string(defaultFailureStrategy)
	}

	sanitized.Report = strings.ToLower(strings.TrimSpace(configuration.Report))
	if len(sanitized.Report) == 0 {
		sanitized.Report = string(defaultReportFormat)
	}

	return sanitized
}

func defaultTransformNames() []string {
	kinds := patches.DefaultTransformKinds()
	names := make([]string, 0, len(kinds))
	for _, kind := range kinds {
		names = append(names, string(kind))
	}
	return names
}

func sanitizeTransformNames(values []string) []string {
	sanitized := make([]string, 0, len(values))
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			trimmed := strings.ToLower(strings.TrimSpace(part))
			if len(trimmed) == 0 {
				continue
			}
			sanitized = append(sanitized, trimmed)
		}
	}
	return sanitized
}
