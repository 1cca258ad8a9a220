package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

const (
	managerNotConfiguredMessageConstant       = "repository manager not configured"
	repositoryResolutionErrorTemplateConstant = "unable to resolve repository %q: %v"
)

// ErrRepositoryManagerNotConfigured indicates a Repository was opened without a manager.
var ErrRepositoryManagerNotConfigured = errors.New(managerNotConfiguredMessageConstant)

// RepositoryResolutionError reports a path that does not resolve to a git working tree.
type RepositoryResolutionError struct {
	Path  string
	Cause error
}

// Error describes the resolution failure.
func (resolutionError RepositoryResolutionError) Error() string {
	return fmt.Sprintf(repositoryResolutionErrorTemplateConstant, resolutionError.Path, resolutionError.Cause)
}

// Unwrap exposes the underlying error.
func (resolutionError RepositoryResolutionError) Unwrap() error {
	return resolutionError.Cause
}

// Repository is a handle bound to exactly one working tree. Every operation runs in that tree.
type Repository struct {
	manager   *RepositoryManager
	directory string
}

// OpenRepository binds a handle to the working tree containing repositoryPath. The bound
// directory is the absolute, symlink-resolved top level of the working tree.
func OpenRepository(executionContext context.Context, manager *RepositoryManager, repositoryPath string) (*Repository, error) {
	if manager == nil {
		return nil, ErrRepositoryManagerNotConfigured
	}

	trimmedPath, pathError := requireValue(repositoryPathFieldNameConstant, repositoryPath)
	if pathError != nil {
		return nil, pathError
	}

	absolutePath, absoluteError := filepath.Abs(trimmedPath)
	if absoluteError != nil {
		return nil, RepositoryResolutionError{Path: trimmedPath, Cause: absoluteError}
	}

	topLevel, topLevelError := manager.GetTopLevel(executionContext, absolutePath)
	if topLevelError != nil {
		return nil, RepositoryResolutionError{Path: absolutePath, Cause: topLevelError}
	}

	resolvedPath, resolveError := filepath.EvalSymlinks(topLevel)
	if resolveError != nil {
		return nil, RepositoryResolutionError{Path: topLevel, Cause: resolveError}
	}

	return &Repository{manager: manager, directory: filepath.Clean(resolvedPath)}, nil
}

// RepositoryDirectory returns the bound working tree directory.
func (repository *Repository) RepositoryDirectory() string {
	return repository.directory
}

// CurrentBranch returns the checked out branch name.
func (repository *Repository) CurrentBranch(executionContext context.Context) (string, error) {
	return repository.manager.GetCurrentBranch(executionContext, repository.directory)
}

// IsClean reports whether the working tree has no pending changes.
func (repository *Repository) IsClean(executionContext context.Context) (bool, error) {
	return repository.manager.CheckCleanWorktree(executionContext, repository.directory)
}

// ListCommits returns the branch history, oldest first.
func (repository *Repository) ListCommits(executionContext context.Context, branchName string) ([]string, error) {
	return repository.manager.ListCommits(executionContext, repository.directory, branchName)
}

// DiffText returns the diff between two revisions.
func (repository *Repository) DiffText(executionContext context.Context, sourceRevision string, targetRevision string) (string, error) {
	return repository.manager.DiffText(executionContext, repository.directory, sourceRevision, targetRevision)
}

// CheckoutNewBranch creates and checks out a branch at the start point.
func (repository *Repository) CheckoutNewBranch(executionContext context.Context, branchName string, startPoint string) error {
	return repository.manager.CheckoutNewBranch(executionContext, repository.directory, branchName, startPoint)
}

// ApplyPatchFile applies a patch file to the working tree. Relative paths resolve against the working tree.
func (repository *Repository) ApplyPatchFile(executionContext context.Context, patchPath string) error {
	trimmedPatchPath := strings.TrimSpace(patchPath)
	if len(trimmedPatchPath) > 0 && !filepath.IsAbs(trimmedPatchPath) {
		trimmedPatchPath = filepath.Join(repository.directory, trimmedPatchPath)
	}
	return repository.manager.ApplyPatch(executionContext, repository.directory, trimmedPatchPath)
}

// StageAll stages every pending change.
func (repository *Repository) StageAll(executionContext context.Context) error {
	return repository.manager.StageAll(executionContext, repository.directory)
}

// CommitReusingMessage commits the index reusing the message of the given commit.
func (repository *Repository) CommitReusingMessage(executionContext context.Context, commit string) error {
	return repository.manager.CommitReusingMessage(executionContext, repository.directory, commit)
}
