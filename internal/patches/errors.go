package patches

import (
	"errors"
	"fmt"
)

const (
	repositoryNotConfiguredMessageConstant = "version control repository not configured"
	storeNotConfiguredMessageConstant      = "patch store not configured"
	reprocessRequestedMessageConstant      = "reprocess persisted patch"
	diffErrorTemplateConstant              = "unable to diff %s..%s: %v"
	applyErrorTemplateConstant             = "unable to apply patch %s: %v"
	commitErrorTemplateConstant            = "unable to %s changes for commit %s: %v"
	persistenceErrorTemplateConstant       = "unable to %s patch %s: %v"
	transformErrorTemplateConstant         = "invalid transform %q: %s"
	historyErrorTemplateConstant           = "unable to read history of %s: %v"
	invalidInputErrorTemplateConstant      = "%s: %s"
)

var (
	// ErrRepositoryNotConfigured indicates a Workflow was constructed without a version control handle.
	ErrRepositoryNotConfigured = errors.New(repositoryNotConfiguredMessageConstant)
	// ErrStoreNotConfigured indicates a Workflow or Document was constructed without a store.
	ErrStoreNotConfigured = errors.New(storeNotConfiguredMessageConstant)
	// ErrReprocess is returned by a step handler observing a persisted patch to request that the
	// pair be diffed and transformed again instead of committing the persisted patch.
	ErrReprocess = errors.New(reprocessRequestedMessageConstant)
)

// CommitOperation names the step of a commit that failed.
type CommitOperation string

// Commit operations.
const (
	CommitOperationStage  CommitOperation = "stage"
	CommitOperationCommit CommitOperation = "commit"
)

// PersistenceOperation names the storage access that failed.
type PersistenceOperation string

// Persistence operations.
const (
	PersistenceOperationRead  PersistenceOperation = "read"
	PersistenceOperationWrite PersistenceOperation = "write"
	PersistenceOperationStat  PersistenceOperation = "stat"
)

// DiffError reports a failure to compute the diff between two commits.
type DiffError struct {
	SourceCommit string
	TargetCommit string
	Cause        error
}

// Error describes the failure.
func (diffError DiffError) Error() string {
	return fmt.Sprintf(diffErrorTemplateConstant, diffError.SourceCommit, diffError.TargetCommit, diffError.Cause)
}

// Unwrap exposes the underlying error.
func (diffError DiffError) Unwrap() error {
	return diffError.Cause
}

// ApplyError reports a patch file the working tree rejected.
type ApplyError struct {
	Path  string
	Cause error
}

// Error describes the failure.
func (applyError ApplyError) Error() string {
	return fmt.Sprintf(applyErrorTemplateConstant, applyError.Path, applyError.Cause)
}

// Unwrap exposes the underlying error.
func (applyError ApplyError) Unwrap() error {
	return applyError.Cause
}

// CommitError reports a failure to stage or record an applied patch.
type CommitError struct {
	Commit    string
	Operation CommitOperation
	Cause     error
}

// Error describes the failure.
func (commitError CommitError) Error() string {
	return fmt.Sprintf(commitErrorTemplateConstant, commitError.Operation, commitError.Commit, commitError.Cause)
}

// Unwrap exposes the underlying error.
func (commitError CommitError) Unwrap() error {
	return commitError.Cause
}

// PersistenceError reports a patch file that could not be read, written, or checked.
type PersistenceError struct {
	Path      string
	Operation PersistenceOperation
	Cause     error
}

// Error describes the failure.
func (persistenceError PersistenceError) Error() string {
	return fmt.Sprintf(persistenceErrorTemplateConstant, persistenceError.Operation, persistenceError.Path, persistenceError.Cause)
}

// Unwrap exposes the underlying error.
func (persistenceError PersistenceError) Unwrap() error {
	return persistenceError.Cause
}

// TransformError reports an unusable transform request.
type TransformError struct {
	Kind    TransformKind
	Message string
}

// Error describes the failure.
func (transformError TransformError) Error() string {
	return fmt.Sprintf(transformErrorTemplateConstant, transformError.Kind, transformError.Message)
}

// HistoryError reports a branch whose commit list could not be read.
type HistoryError struct {
	Branch string
	Cause  error
}

// Error describes the failure.
func (historyError HistoryError) Error() string {
	return fmt.Sprintf(historyErrorTemplateConstant, historyError.Branch, historyError.Cause)
}

// Unwrap exposes the underlying error.
func (historyError HistoryError) Unwrap() error {
	return historyError.Cause
}

// InvalidInputError indicates a missing or malformed argument.
type InvalidInputError struct {
	FieldName string
	Message   string
}

// Error describes the validation failure.
func (inputError InvalidInputError) Error() string {
	return fmt.Sprintf(invalidInputErrorTemplateConstant, inputError.FieldName, inputError.Message)
}
