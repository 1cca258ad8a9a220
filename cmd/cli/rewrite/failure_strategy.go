package rewrite

import (
	"context"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/tyemirov/patchpatch/internal/patches"
	"github.com/tyemirov/patchpatch/internal/prompt"
)

// FailureStrategy selects how a patch that failed to apply or commit is handled.
type FailureStrategy string

// Failure strategies.
const (
	// FailureStrategySkip leaves the failed pair uncommitted and moves on.
	FailureStrategySkip FailureStrategy = "skip"
	// FailureStrategyRevert restores the unmodified diff of the pair and retries once.
	FailureStrategyRevert FailureStrategy = "revert"
	// FailureStrategyPrompt asks whether to revert, or to reload a patch edited by hand.
	FailureStrategyPrompt FailureStrategy = "prompt"
)

const (
	unsupportedFailureStrategyTemplateConstant = "unsupported failure strategy %q (expected skip, revert, or prompt)"
	failurePromptTemplateConstant              = "Patch %s for commit %s failed: %v\nRevert the replacement in this patch? Answer n after editing the patch to retry it as edited. [y/N/a] "
	revertedPatchLogMessageConstant            = "reverted replacement in failed patch"
	reloadedPatchLogMessageConstant            = "reloaded failed patch from disk"
	skippedPatchLogMessageConstant             = "left failed patch uncommitted"
	revertedPatchConsoleTemplateConstant       = "reverted %s\n"
	logFieldFailureStrategyConstant            = "failure_strategy"
	logFieldTargetCommitConstant               = "target_commit"
	logFieldPatchPathConstant                  = "patch_path"
	logFieldChangedConstant                    = "changed"
)

// ParseFailureStrategy validates a failure strategy name.
func ParseFailureStrategy(value string) (FailureStrategy, error) {
	strategy := FailureStrategy(strings.ToLower(strings.TrimSpace(value)))
	switch strategy {
	case FailureStrategySkip, FailureStrategyRevert, FailureStrategyPrompt:
		return strategy, nil
	default:
		return "", fmt.Errorf(unsupportedFailureStrategyTemplateConstant, value)
	}
}

// OriginalDiffSource yields the unmodified diff of a commit pair.
type OriginalDiffSource interface {
	DiffText(executionContext context.Context, sourceRevision string, targetRevision string) (string, error)
}

type failureResolver struct {
	strategy   FailureStrategy
	diffSource OriginalDiffSource
	prompter   prompt.ConfirmationPrompter
	output     io.Writer
	logger     *zap.Logger
}

func (resolver failureResolver) handler() patches.DocumentHandler {
	switch resolver.strategy {
	case FailureStrategyRevert:
		return resolver.revert
	case FailureStrategyPrompt:
		return resolver.ask
	default:
		return resolver.skip
	}
}

func (resolver failureResolver) skip(_ context.Context, document *patches.Document) error {
	resolver.logger.Info(skippedPatchLogMessageConstant,
		zap.String(logFieldTargetCommitConstant, document.TargetCommit()),
		zap.String(logFieldPatchPathConstant, document.Path()),
	)
	return nil
}

func (resolver failureResolver) revert(executionContext context.Context, document *patches.Document) error {
	originalText, diffError := resolver.diffSource.DiffText(executionContext, document.SourceCommit(), document.TargetCommit())
	if diffError != nil {
		return patches.DiffError{SourceCommit: document.SourceCommit(), TargetCommit: document.TargetCommit(), Cause: diffError}
	}
	document.SetText(originalText)

	resolver.logger.Info(revertedPatchLogMessageConstant,
		zap.String(logFieldTargetCommitConstant, document.TargetCommit()),
		zap.String(logFieldPatchPathConstant, document.Path()),
		zap.Bool(logFieldChangedConstant, document.IsChanged()),
	)
	if document.IsChanged() && resolver.output != nil {
		if _, writeError := fmt.Fprintf(resolver.output, revertedPatchConsoleTemplateConstant, document.Path()); writeError != nil {
			return writeError
		}
	}
	return nil
}

func (resolver failureResolver) ask(executionContext context.Context, document *patches.Document) error {
	if resolver.prompter == nil {
		return resolver.skip(executionContext, document)
	}

	question := fmt.Sprintf(failurePromptTemplateConstant, document.Path(), document.TargetCommit(), document.LastError())
	answer, promptError := resolver.prompter.Confirm(question)
	if promptError != nil {
		return promptError
	}
	if answer.Confirmed {
		return resolver.revert(executionContext, document)
	}

	if reloadError := document.Reload(); reloadError != nil {
		return reloadError
	}
	resolver.logger.Info(reloadedPatchLogMessageConstant,
		zap.String(logFieldTargetCommitConstant, document.TargetCommit()),
		zap.String(logFieldPatchPathConstant, document.Path()),
		zap.Bool(logFieldChangedConstant, document.IsChanged()),
	)
	return nil
}
