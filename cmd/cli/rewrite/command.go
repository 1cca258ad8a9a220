// Package rewrite provides the command that replaces a string throughout the history of a branch.
package rewrite

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tyemirov/patchpatch/internal/execshell"
	"github.com/tyemirov/patchpatch/internal/gitrepo"
	"github.com/tyemirov/patchpatch/internal/patches"
	"github.com/tyemirov/patchpatch/internal/prompt"
	flagutils "github.com/tyemirov/patchpatch/internal/utils/flags"
	pathutils "github.com/tyemirov/patchpatch/internal/utils/path"
)

const (
	commandUseConstant                   = "rewrite <pattern> <replacement>"
	commandShortDescriptionConstant      = "Replace a string throughout the history of a branch"
	commandLongDescriptionConstant       = "rewrite replays every commit of a branch onto a new work branch, replacing pattern with replacement in file contents and file names. Each rewritten patch is kept under the patch directory so an interrupted run resumes where it stopped."
	repositoryFlagNameConstant           = "repository"
	repositoryFlagUsageConstant          = "Path to the repository whose history is rewritten"
	patchDirectoryFlagNameConstant       = "patch-dir"
	patchDirectoryFlagUsageConstant      = "Directory holding rewritten patches; must be outside the repository"
	branchFlagNameConstant               = "branch"
	branchFlagUsageConstant              = "Branch to rewrite (defaults to the current branch)"
	transformFlagNameConstant            = "transform"
	transformFlagUsageConstant           = "Transform to apply (repeatable): patch, filenames"
	onFailureFlagNameConstant            = "on-failure"
	onFailureFlagUsageConstant           = "Handling of patches that fail to apply: skip, revert, prompt"
	requireCleanFlagNameConstant         = "require-clean"
	requireCleanFlagUsageConstant        = "Refuse to run when the working tree has pending changes"
	showChangesFlagNameConstant          = "show-changes"
	showChangesFlagUsageConstant         = "Print a diff of every change a transform makes to a patch"
	reprocessFlagNameConstant            = "reprocess"
	reprocessFlagUsageConstant           = "Transform pairs again even when a patch was stored by an earlier run"
	assumeYesFlagNameConstant            = "yes"
	assumeYesFlagShorthandConstant       = "y"
	assumeYesFlagUsageConstant           = "Answer yes to every failure prompt"
	reportFlagNameConstant               = "report"
	reportFlagUsageConstant              = "Run summary format: text, yaml"
	dirtyWorktreeMessageConstant         = "uncommitted changes present (use --require-clean=false to override)"
	dirtyWorktreeErrorTemplateConstant   = "repository %s: %w"
	patchDirectoryInsideTemplateConstant = "patch directory %s is inside repository %s"
	rewriteStartedLogMessageConstant     = "rewrite started"
	rewriteCompletedLogMessageConstant   = "rewrite completed"
	rewriteFailuresLogMessageConstant    = "rewrite left commit pairs uncommitted"
	logFieldRepositoryConstant           = "repository"
	logFieldBranchConstant               = "branch"
	logFieldPatchDirectoryConstant       = "patch_dir"
	logFieldWorkBranchConstant           = "work_branch"
	logFieldPairsConstant                = "pairs"
	logFieldCommittedConstant            = "committed"
	logFieldFailedConstant               = "failed"
	parentDirectoryConstant              = ".."
)

// ErrDirtyWorktree indicates the repository has pending changes while a clean tree is required.
var ErrDirtyWorktree = errors.New(dirtyWorktreeMessageConstant)

// LoggerProvider yields a zap logger for command execution.
type LoggerProvider func() *zap.Logger

// CommandBuilder assembles the rewrite command.
type CommandBuilder struct {
	LoggerProvider               LoggerProvider
	HumanReadableLoggingProvider func() bool
	ConfigurationProvider        func() CommandConfiguration
	GitExecutor                  gitrepo.GitCommandExecutor
	Store                        patches.Store
	BranchNamer                  patches.BranchNamer
	PathNormalizer               *pathutils.PathNormalizer
}

type commandOptions struct {
	repositoryPath  string
	patchDirectory  string
	branch          string
	transforms      []patches.TransformKind
	failureStrategy FailureStrategy
	requireClean    bool
	showChanges     bool
	reprocess       bool
	assumeYes       bool
	reportFormat    ReportFormat
}

// Build constructs the rewrite command.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   commandUseConstant,
		Short: commandShortDescriptionConstant,
		Long:  commandLongDescriptionConstant,
		Args:  cobra.ExactArgs(2),
		RunE:  builder.run,
	}

	command.Flags().String(repositoryFlagNameConstant, "", repositoryFlagUsageConstant)
	command.Flags().String(patchDirectoryFlagNameConstant, "", patchDirectoryFlagUsageConstant)
	command.Flags().String(branchFlagNameConstant, "", branchFlagUsageConstant)
	command.Flags().StringSlice(transformFlagNameConstant, nil, transformFlagUsageConstant)
	command.Flags().String(onFailureFlagNameConstant, "", onFailureFlagUsageConstant)
	command.Flags().Bool(requireCleanFlagNameConstant, true, requireCleanFlagUsageConstant)
	command.Flags().Bool(showChangesFlagNameConstant, false, showChangesFlagUsageConstant)
	command.Flags().Bool(reprocessFlagNameConstant, false, reprocessFlagUsageConstant)
	command.Flags().BoolP(assumeYesFlagNameConstant, assumeYesFlagShorthandConstant, false, assumeYesFlagUsageConstant)
	command.Flags().String(reportFlagNameConstant, "", reportFlagUsageConstant)

	return command, nil
}

func (builder *CommandBuilder) run(command *cobra.Command, arguments []string) error {
	options, optionsError := builder.resolveOptions(command)
	if optionsError != nil {
		return optionsError
	}

	executionContext := command.Context()
	if executionContext == nil {
		executionContext = context.Background()
	}
	logger := builder.resolveLogger()

	repository, repositoryError := builder.openRepository(executionContext, logger, options.repositoryPath)
	if repositoryError != nil {
		return repositoryError
	}

	if patchDirectoryWithin(options.patchDirectory, repository.RepositoryDirectory()) {
		return fmt.Errorf(patchDirectoryInsideTemplateConstant, options.patchDirectory, repository.RepositoryDirectory())
	}

	if options.requireClean {
		clean, cleanError := repository.IsClean(executionContext)
		if cleanError != nil {
			return cleanError
		}
		if !clean {
			return fmt.Errorf(dirtyWorktreeErrorTemplateConstant, repository.RepositoryDirectory(), ErrDirtyWorktree)
		}
	}

	branch := options.branch
	if len(branch) == 0 {
		currentBranch, branchError := repository.CurrentBranch(executionContext)
		if branchError != nil {
			return branchError
		}
		branch = currentBranch
	}

	store := builder.Store
	if store == nil {
		store = patches.NewFileStore(nil)
	}

	workflow, workflowError := patches.NewWorkflow(
		executionContext,
		patches.Dependencies{Repository: repository, Store: store, Logger: logger, BranchNamer: builder.BranchNamer},
		patches.Options{PatchRoot: options.patchDirectory, Branch: branch},
	)
	if workflowError != nil {
		return workflowError
	}

	logger.Info(rewriteStartedLogMessageConstant,
		zap.String(logFieldRepositoryConstant, repository.RepositoryDirectory()),
		zap.String(logFieldBranchConstant, branch),
		zap.String(logFieldPatchDirectoryConstant, options.patchDirectory),
		zap.String(logFieldFailureStrategyConstant, string(options.failureStrategy)),
	)

	resolver := failureResolver{
		strategy:   options.failureStrategy,
		diffSource: repository,
		prompter:   prompt.NewSessionPrompter(prompt.NewIOConfirmationPrompter(command.InOrStdin(), command.ErrOrStderr()), options.assumeYes),
		output:     command.ErrOrStderr(),
		logger:     logger,
	}
	observer := stepObserver{
		showChanges: options.showChanges,
		reprocess:   options.reprocess,
		output:      command.OutOrStdout(),
		logger:      logger,
	}

	summary, runError := workflow.Run(executionContext, patches.RunRequest{
		Pattern:     arguments[0],
		Replacement: arguments[1],
		Transforms:  options.transforms,
		OnStep:      observer.observe,
		OnFailure:   resolver.handler(),
	})
	if runError != nil {
		return runError
	}

	failedPairs := summary.FailedPairs()
	logger.Info(rewriteCompletedLogMessageConstant,
		zap.String(logFieldWorkBranchConstant, summary.WorkBranch),
		zap.Int(logFieldPairsConstant, len(summary.Pairs)),
		zap.Int(logFieldCommittedConstant, summary.CommittedCount()),
	)
	if len(failedPairs) > 0 {
		logger.Warn(rewriteFailuresLogMessageConstant, zap.Int(logFieldFailedConstant, len(failedPairs)))
	}

	return WriteReport(command.OutOrStdout(), options.reportFormat, summary)
}

func (builder *CommandBuilder) resolveOptions(command *cobra.Command) (commandOptions, error) {
	configuration := builder.resolveConfiguration()

	repositoryPath, repositoryError := stringOption(command, repositoryFlagNameConstant, configuration.RepositoryPath)
	if repositoryError != nil {
		return commandOptions{}, repositoryError
	}
	patchDirectory, patchDirectoryError := stringOption(command, patchDirectoryFlagNameConstant, configuration.PatchDirectory)
	if patchDirectoryError != nil {
		return commandOptions{}, patchDirectoryError
	}
	branch, branchError := stringOption(command, branchFlagNameConstant, configuration.Branch)
	if branchError != nil {
		return commandOptions{}, branchError
	}
	failureStrategyName, failureStrategyError := stringOption(command, onFailureFlagNameConstant, configuration.OnFailure)
	if failureStrategyError != nil {
		return commandOptions{}, failureStrategyError
	}
	reportFormatName, reportFormatError := stringOption(command, reportFlagNameConstant, configuration.Report)
	if reportFormatError != nil {
		return commandOptions{}, reportFormatError
	}

	transformNames := configuration.Transforms
	flagTransforms, transformsChanged, transformsError := flagutils.StringSliceFlag(command, transformFlagNameConstant)
	if transformsError != nil && !errors.Is(transformsError, flagutils.ErrFlagNotDefined) {
		return commandOptions{}, transformsError
	}
	if transformsChanged {
		transformNames = sanitizeTransformNames(flagTransforms)
	}

	options := commandOptions{}
	toggles := []struct {
		name         string
		defaultValue bool
		target       *bool
	}{
		{name: requireCleanFlagNameConstant, defaultValue: configuration.RequireClean, target: &options.requireClean},
		{name: showChangesFlagNameConstant, defaultValue: configuration.ShowChanges, target: &options.showChanges},
		{name: reprocessFlagNameConstant, defaultValue: configuration.Reprocess, target: &options.reprocess},
		{name: assumeYesFlagNameConstant, defaultValue: configuration.AssumeYes, target: &options.assumeYes},
	}
	for _, toggle := range toggles {
		value, toggleError := boolOption(command, toggle.name, toggle.defaultValue)
		if toggleError != nil {
			return commandOptions{}, toggleError
		}
		*toggle.target = value
	}

	for _, transformName := range transformNames {
		kind, kindError := patches.ParseTransformKind(transformName)
		if kindError != nil {
			return commandOptions{}, kindError
		}
		options.transforms = append(options.transforms, kind)
	}

	var parseError error
	if options.failureStrategy, parseError = ParseFailureStrategy(failureStrategyName); parseError != nil {
		return commandOptions{}, parseError
	}
	if options.reportFormat, parseError = ParseReportFormat(reportFormatName); parseError != nil {
		return commandOptions{}, parseError
	}

	normalizer := builder.PathNormalizer
	if normalizer == nil {
		normalizer = pathutils.NewPathNormalizer(nil)
	}
	if options.repositoryPath, parseError = normalizer.Normalize(repositoryPath); parseError != nil {
		return commandOptions{}, parseError
	}
	if options.patchDirectory, parseError = normalizer.Normalize(patchDirectory); parseError != nil {
		return commandOptions{}, parseError
	}
	options.branch = branch

	return options, nil
}

func (builder *CommandBuilder) resolveConfiguration() CommandConfiguration {
	if builder.ConfigurationProvider == nil {
		return DefaultCommandConfiguration().Sanitize()
	}
	return builder.ConfigurationProvider().Sanitize()
}

func (builder *CommandBuilder) resolveLogger() *zap.Logger {
	if builder.LoggerProvider == nil {
		return zap.NewNop()
	}
	if logger := builder.LoggerProvider(); logger != nil {
		return logger
	}
	return zap.NewNop()
}

func (builder *CommandBuilder) openRepository(executionContext context.Context, logger *zap.Logger, repositoryPath string) (*gitrepo.Repository, error) {
	executor := builder.GitExecutor
	if executor == nil {
		humanReadable := false
		if builder.HumanReadableLoggingProvider != nil {
			humanReadable = builder.HumanReadableLoggingProvider()
		}
		shellExecutor, executorError := execshell.NewShellExecutor(logger, execshell.NewOSCommandRunner(), humanReadable)
		if executorError != nil {
			return nil, executorError
		}
		executor = shellExecutor
	}

	manager, managerError := gitrepo.NewRepositoryManager(executor)
	if managerError != nil {
		return nil, managerError
	}
	return gitrepo.OpenRepository(executionContext, manager, repositoryPath)
}

func patchDirectoryWithin(patchDirectory string, repositoryDirectory string) bool {
	relativePath, relativeError := filepath.Rel(repositoryDirectory, patchDirectory)
	if relativeError != nil {
		return false
	}
	return relativePath != parentDirectoryConstant && !strings.HasPrefix(relativePath, parentDirectoryConstant+string(filepath.Separator))
}

func stringOption(command *cobra.Command, flagName string, configuredValue string) (string, error) {
	value, changed, flagError := flagutils.StringFlag(command, flagName)
	if flagError != nil && !errors.Is(flagError, flagutils.ErrFlagNotDefined) {
		return "", flagError
	}
	if changed {
		return value, nil
	}
	return configuredValue, nil
}

func boolOption(command *cobra.Command, flagName string, configuredValue bool) (bool, error) {
	value, changed, flagError := flagutils.BoolFlag(command, flagName)
	if flagError != nil && !errors.Is(flagError, flagutils.ErrFlagNotDefined) {
		return false, flagError
	}
	if changed {
		return value, nil
	}
	return configuredValue, nil
}
