package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tyemirov/patchpatch/internal/execshell"
)

const (
	gitStatusSubcommandConstant               = "status"
	gitStatusPorcelainFlagConstant            = "--porcelain"
	gitRevParseSubcommandConstant             = "rev-parse"
	gitAbbrevRefFlagConstant                  = "--abbrev-ref"
	gitHeadReferenceConstant                  = "HEAD"
	gitShowTopLevelFlagConstant               = "--show-toplevel"
	gitRevListSubcommandConstant              = "rev-list"
	gitReverseFlagConstant                    = "--reverse"
	gitFirstParentFlagConstant                = "--first-parent"
	gitCheckoutSubcommandConstant             = "checkout"
	gitNewBranchFlagConstant                  = "-b"
	gitDiffSubcommandConstant                 = "diff"
	gitNoColorFlagConstant                    = "--no-color"
	gitNoExternalDiffFlagConstant             = "--no-ext-diff"
	gitNoRenamesFlagConstant                  = "--no-renames"
	gitSourcePrefixFlagConstant               = "--src-prefix=a/"
	gitDestinationPrefixFlagConstant          = "--dst-prefix=b/"
	gitApplySubcommandConstant                = "apply"
	gitAddSubcommandConstant                  = "add"
	gitAllFlagConstant                        = "--all"
	gitCommitSubcommandConstant               = "commit"
	gitReuseMessageFlagTemplateConstant       = "--reuse-message=%s"
	lineSeparatorConstant                     = "\n"
	repositoryPathFieldNameConstant           = "repository_path"
	branchNameFieldNameConstant               = "branch_name"
	startPointFieldNameConstant               = "start_point"
	sourceRevisionFieldNameConstant           = "source_revision"
	targetRevisionFieldNameConstant           = "target_revision"
	patchPathFieldNameConstant                = "patch_path"
	commitFieldNameConstant                   = "commit"
	requiredValueMessageConstant              = "value required"
	executorNotConfiguredMessageConstant      = "git executor not configured"
	repositoryOperationErrorTemplateConstant  = "%s operation failed"
	repositoryOperationErrorWithCauseConstant = "%s operation failed: %s"
	invalidRepositoryInputTemplateConstant    = "%s: %s"
	cleanWorktreeOperationNameConstant        = RepositoryOperationName("CheckCleanWorktree")
	currentBranchOperationNameConstant        = RepositoryOperationName("GetCurrentBranch")
	topLevelOperationNameConstant             = RepositoryOperationName("GetTopLevel")
	listCommitsOperationNameConstant          = RepositoryOperationName("ListCommits")
	diffTextOperationNameConstant             = RepositoryOperationName("DiffText")
	checkoutNewBranchOperationNameConstant    = RepositoryOperationName("CheckoutNewBranch")
	applyPatchOperationNameConstant           = RepositoryOperationName("ApplyPatch")
	stageAllOperationNameConstant             = RepositoryOperationName("StageAll")
	commitReusingMessageOperationNameConstant = RepositoryOperationName("CommitReusingMessage")
)

// GitCommandExecutor exposes the subset of execshell functionality required by RepositoryManager.
type GitCommandExecutor interface {
	ExecuteGit(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// RepositoryManager coordinates Git operations through execshell.
type RepositoryManager struct {
	executor GitCommandExecutor
}

var (
	// ErrGitExecutorNotConfigured indicates the RepositoryManager was constructed without a git executor.
	ErrGitExecutorNotConfigured = errors.New(executorNotConfiguredMessageConstant)
)

// InvalidRepositoryInputError indicates validation failures for repository operations.
type InvalidRepositoryInputError struct {
	FieldName string
	Message   string
}

// Error describes the validation failure.
func (inputError InvalidRepositoryInputError) Error() string {
	return fmt.Sprintf(invalidRepositoryInputTemplateConstant, inputError.FieldName, inputError.Message)
}

// RepositoryOperationName captures descriptive names for repository operations.
type RepositoryOperationName string

// RepositoryOperationError wraps execution failures for git operations.
type RepositoryOperationError struct {
	Operation RepositoryOperationName
	Cause     error
}

// Error describes the repository operation failure.
func (operationError RepositoryOperationError) Error() string {
	if operationError.Cause == nil {
		return fmt.Sprintf(repositoryOperationErrorTemplateConstant, operationError.Operation)
	}
	return fmt.Sprintf(repositoryOperationErrorWithCauseConstant, operationError.Operation, operationError.Cause)
}

// Unwrap exposes the underlying error.
func (operationError RepositoryOperationError) Unwrap() error {
	return operationError.Cause
}

// NewRepositoryManager constructs a RepositoryManager for the provided executor.
func NewRepositoryManager(executor GitCommandExecutor) (*RepositoryManager, error) {
	if executor == nil {
		return nil, ErrGitExecutorNotConfigured
	}
	return &RepositoryManager{executor: executor}, nil
}

// CheckCleanWorktree returns true when the repository has no staged or unstaged changes.
func (manager *RepositoryManager) CheckCleanWorktree(executionContext context.Context, repositoryPath string) (bool, error) {
	status, statusError := manager.WorktreeStatus(executionContext, repositoryPath)
	if statusError != nil {
		return false, statusError
	}
	return len(status) == 0, nil
}

// WorktreeStatus returns the porcelain status entries for the repository.
func (manager *RepositoryManager) WorktreeStatus(executionContext context.Context, repositoryPath string) ([]string, error) {
	trimmedPath, pathError := requireValue(repositoryPathFieldNameConstant, repositoryPath)
	if pathError != nil {
		return nil, pathError
	}

	executionResult, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{gitStatusSubcommandConstant, gitStatusPorcelainFlagConstant},
		WorkingDirectory: trimmedPath,
	})
	if executionError != nil {
		return nil, RepositoryOperationError{Operation: cleanWorktreeOperationNameConstant, Cause: executionError}
	}

	return splitNonEmptyLines(executionResult.StandardOutput), nil
}

// GetCurrentBranch resolves the current branch name.
func (manager *RepositoryManager) GetCurrentBranch(executionContext context.Context, repositoryPath string) (string, error) {
	trimmedPath, pathError := requireValue(repositoryPathFieldNameConstant, repositoryPath)
	if pathError != nil {
		return "", pathError
	}

	executionResult, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{gitRevParseSubcommandConstant, gitAbbrevRefFlagConstant, gitHeadReferenceConstant},
		WorkingDirectory: trimmedPath,
	})
	if executionError != nil {
		return "", RepositoryOperationError{Operation: currentBranchOperationNameConstant, Cause: executionError}
	}

	return strings.TrimSpace(executionResult.StandardOutput), nil
}

// GetTopLevel resolves the root directory of the working tree containing the path.
func (manager *RepositoryManager) GetTopLevel(executionContext context.Context, repositoryPath string) (string, error) {
	trimmedPath, pathError := requireValue(repositoryPathFieldNameConstant, repositoryPath)
	if pathError != nil {
		return "", pathError
	}

	executionResult, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{gitRevParseSubcommandConstant, gitShowTopLevelFlagConstant},
		WorkingDirectory: trimmedPath,
	})
	if executionError != nil {
		return "", RepositoryOperationError{Operation: topLevelOperationNameConstant, Cause: executionError}
	}

	return strings.TrimSpace(executionResult.StandardOutput), nil
}

// ListCommits returns the first-parent history of the branch, oldest commit first.
func (manager *RepositoryManager) ListCommits(executionContext context.Context, repositoryPath string, branchName string) ([]string, error) {
	trimmedPath, pathError := requireValue(repositoryPathFieldNameConstant, repositoryPath)
	if pathError != nil {
		return nil, pathError
	}
	trimmedBranch, branchError := requireValue(branchNameFieldNameConstant, branchName)
	if branchError != nil {
		return nil, branchError
	}

	executionResult, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{gitRevListSubcommandConstant, gitReverseFlagConstant, gitFirstParentFlagConstant, trimmedBranch},
		WorkingDirectory: trimmedPath,
	})
	if executionError != nil {
		return nil, RepositoryOperationError{Operation: listCommitsOperationNameConstant, Cause: executionError}
	}

	return splitNonEmptyLines(executionResult.StandardOutput), nil
}

// DiffText returns the unified diff between two revisions. The diff always uses a/ and b/ path
// prefixes, never detects renames, and has its final line separator removed.
func (manager *RepositoryManager) DiffText(executionContext context.Context, repositoryPath string, sourceRevision string, targetRevision string) (string, error) {
	trimmedPath, pathError := requireValue(repositoryPathFieldNameConstant, repositoryPath)
	if pathError != nil {
		return "", pathError
	}
	trimmedSource, sourceError := requireValue(sourceRevisionFieldNameConstant, sourceRevision)
	if sourceError != nil {
		return "", sourceError
	}
	trimmedTarget, targetError := requireValue(targetRevisionFieldNameConstant, targetRevision)
	if targetError != nil {
		return "", targetError
	}

	executionResult, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments: []string{
			gitDiffSubcommandConstant,
			gitNoColorFlagConstant,
			gitNoExternalDiffFlagConstant,
			gitNoRenamesFlagConstant,
			gitSourcePrefixFlagConstant,
			gitDestinationPrefixFlagConstant,
			trimmedSource,
			trimmedTarget,
		},
		WorkingDirectory: trimmedPath,
	})
	if executionError != nil {
		return "", RepositoryOperationError{Operation: diffTextOperationNameConstant, Cause: executionError}
	}

	return strings.TrimSuffix(executionResult.StandardOutput, lineSeparatorConstant), nil
}

// CheckoutNewBranch creates a branch at the start point and checks it out.
func (manager *RepositoryManager) CheckoutNewBranch(executionContext context.Context, repositoryPath string, branchName string, startPoint string) error {
	trimmedPath, pathError := requireValue(repositoryPathFieldNameConstant, repositoryPath)
	if pathError != nil {
		return pathError
	}
	trimmedBranch, branchError := requireValue(branchNameFieldNameConstant, branchName)
	if branchError != nil {
		return branchError
	}
	trimmedStartPoint, startPointError := requireValue(startPointFieldNameConstant, startPoint)
	if startPointError != nil {
		return startPointError
	}

	_, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{gitCheckoutSubcommandConstant, gitNewBranchFlagConstant, trimmedBranch, trimmedStartPoint},
		WorkingDirectory: trimmedPath,
	})
	if executionError != nil {
		return RepositoryOperationError{Operation: checkoutNewBranchOperationNameConstant, Cause: executionError}
	}
	return nil
}

// ApplyPatch applies the patch file to the working tree.
func (manager *RepositoryManager) ApplyPatch(executionContext context.Context, repositoryPath string, patchPath string) error {
	trimmedPath, pathError := requireValue(repositoryPathFieldNameConstant, repositoryPath)
	if pathError != nil {
		return pathError
	}
	trimmedPatchPath, patchPathError := requireValue(patchPathFieldNameConstant, patchPath)
	if patchPathError != nil {
		return patchPathError
	}

	_, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{gitApplySubcommandConstant, trimmedPatchPath},
		WorkingDirectory: trimmedPath,
	})
	if executionError != nil {
		return RepositoryOperationError{Operation: applyPatchOperationNameConstant, Cause: executionError}
	}
	return nil
}

// StageAll stages every change in the working tree, deletions included.
func (manager *RepositoryManager) StageAll(executionContext context.Context, repositoryPath string) error {
	trimmedPath, pathError := requireValue(repositoryPathFieldNameConstant, repositoryPath)
	if pathError != nil {
		return pathError
	}

	_, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{gitAddSubcommandConstant, gitAllFlagConstant},
		WorkingDirectory: trimmedPath,
	})
	if executionError != nil {
		return RepositoryOperationError{Operation: stageAllOperationNameConstant, Cause: executionError}
	}
	return nil
}

// CommitReusingMessage records the index as a new commit carrying the message and authorship of an existing commit.
func (manager *RepositoryManager) CommitReusingMessage(executionContext context.Context, repositoryPath string, commit string) error {
	trimmedPath, pathError := requireValue(repositoryPathFieldNameConstant, repositoryPath)
	if pathError != nil {
		return pathError
	}
	trimmedCommit, commitError := requireValue(commitFieldNameConstant, commit)
	if commitError != nil {
		return commitError
	}

	_, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{gitCommitSubcommandConstant, fmt.Sprintf(gitReuseMessageFlagTemplateConstant, trimmedCommit)},
		WorkingDirectory: trimmedPath,
	})
	if executionError != nil {
		return RepositoryOperationError{Operation: commitReusingMessageOperationNameConstant, Cause: executionError}
	}
	return nil
}

func requireValue(fieldName string, value string) (string, error) {
	trimmedValue := strings.TrimSpace(value)
	if len(trimmedValue) == 0 {
		return "", InvalidRepositoryInputError{FieldName: fieldName, Message: requiredValueMessageConstant}
	}
	return trimmedValue, nil
}

func splitNonEmptyLines(output string) []string {
	trimmedOutput := strings.TrimSpace(output)
	if len(trimmedOutput) == 0 {
		return nil
	}

	lines := strings.Split(trimmedOutput, lineSeparatorConstant)
	entries := make([]string, 0, len(lines))
	for _, line := range lines {
		if trimmed := strings.TrimSpace(line); len(trimmed) > 0 {
			entries = append(entries, trimmed)
		}
	}
	return entries
}
