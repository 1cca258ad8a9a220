package patches

import (
	"context"
	"errors"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	patchDirectoryNameConstant       = "patchpatch"
	patchFileNameConstant            = "patch"
	workBranchPrefixConstant         = "patchpatch/"
	patchRootFieldNameConstant       = "patch_root"
	branchFieldNameConstant          = "branch"
	currentDocumentFieldNameConstant = "current_document"
	noCommitsMessageConstant         = "branch has no commits"
	workBranchLogMessageConstant     = "checked out work branch"
	pairProcessedLogMessageConstant  = "processed commit pair"
	commitFailedLogMessageConstant   = "patch commit failed"
	persistedPatchLogMessageConstant = "committing persisted patch"
	diffedLogMessageConstant         = "diffed commit pair"
	logFieldBranchConstant           = "branch"
	logFieldSourceCommitConstant     = "source_commit"
	logFieldTargetCommitConstant     = "target_commit"
	logFieldPatchPathConstant        = "patch_path"
	logFieldWorkStatusConstant       = "work_status"
	logFieldCommittedConstant        = "committed"
	logFieldAttemptConstant          = "attempt"
	logFieldAttemptsConstant         = "attempts"
	logFieldCommitsConstant          = "commits"
)

// VersionControl is the repository contract the workflow drives. Implementations are bound to one working tree.
type VersionControl interface {
	ListCommits(executionContext context.Context, branchName string) ([]string, error)
	DiffText(executionContext context.Context, sourceRevision string, targetRevision string) (string, error)
	CheckoutNewBranch(executionContext context.Context, branchName string, startPoint string) error
	ApplyPatchFile(executionContext context.Context, patchPath string) error
	StageAll(executionContext context.Context) error
	CommitReusingMessage(executionContext context.Context, commit string) error
	RepositoryDirectory() string
}

// DocumentHandler observes a document during a rewrite. Handlers may mutate the document.
type DocumentHandler func(executionContext context.Context, document *Document) error

// BranchNamer produces work branch names.
type BranchNamer func() string

// Dependencies enumerates the collaborators of a Workflow.
type Dependencies struct {
	Repository  VersionControl
	Store       Store
	Logger      *zap.Logger
	BranchNamer BranchNamer
}

// Options configures a Workflow.
type Options struct {
	PatchRoot string
	Branch    string
}

// RunRequest describes one rewrite.
type RunRequest struct {
	Pattern     string
	Replacement string
	Transforms  []TransformKind
	// OnStep runs after every transform, and once for a pair whose patch was persisted earlier.
	OnStep DocumentHandler
	// OnFailure runs after a failed apply or commit. Changing the document triggers a retry.
	OnFailure DocumentHandler
}

// Workflow rewrites the history of one branch commit pair by commit pair.
type Workflow struct {
	repository      VersionControl
	store           Store
	logger          *zap.Logger
	branchNamer     BranchNamer
	patchRoot       string
	branch          string
	commits         []string
	currentDocument *Document
}

type commitOutcome struct {
	committed bool
	attempts  int
}

// NewWorkflow constructs a Workflow and captures the commit list of the branch.
func NewWorkflow(executionContext context.Context, dependencies Dependencies, options Options) (*Workflow, error) {
	if dependencies.Repository == nil {
		return nil, ErrRepositoryNotConfigured
	}
	if dependencies.Store == nil {
		return nil, ErrStoreNotConfigured
	}

	patchRoot := strings.TrimSpace(options.PatchRoot)
	if len(patchRoot) == 0 {
		return nil, InvalidInputError{FieldName: patchRootFieldNameConstant, Message: requiredValueMessageConstant}
	}
	branch := strings.TrimSpace(options.Branch)
	if len(branch) == 0 {
		return nil, InvalidInputError{FieldName: branchFieldNameConstant, Message: requiredValueMessageConstant}
	}

	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	branchNamer := dependencies.BranchNamer
	if branchNamer == nil {
		branchNamer = defaultBranchNamer
	}

	commits, listError := dependencies.Repository.ListCommits(executionContext, branch)
	if listError != nil {
		return nil, HistoryError{Branch: branch, Cause: listError}
	}

	return &Workflow{
		repository:  dependencies.Repository,
		store:       dependencies.Store,
		logger:      logger,
		branchNamer: branchNamer,
		patchRoot:   patchRoot,
		branch:      branch,
		commits:     commits,
	}, nil
}

// Commits returns the commit list captured at construction, oldest first.
func (workflow *Workflow) Commits() []string {
	return append([]string(nil), workflow.commits...)
}

// CurrentDocument returns the document produced by the most recent Diff.
func (workflow *Workflow) CurrentDocument() *Document {
	return workflow.currentDocument
}

// PatchPath returns the storage location of the patch that produces commit.
func (workflow *Workflow) PatchPath(commit string) string {
	repositoryDirectory := workflow.repository.RepositoryDirectory()
	repositoryDirectory = strings.TrimPrefix(repositoryDirectory, filepath.VolumeName(repositoryDirectory))
	repositoryDirectory = strings.TrimLeft(repositoryDirectory, string(filepath.Separator))
	return filepath.Join(workflow.patchRoot, patchDirectoryNameConstant, repositoryDirectory, commit, patchFileNameConstant)
}

// Diff produces the document for a commit pair and makes it current. The document is marked done
// when a patch for the target commit is already stored.
func (workflow *Workflow) Diff(executionContext context.Context, sourceCommit string, targetCommit string) (*Document, error) {
	diffText, diffError := workflow.repository.DiffText(executionContext, sourceCommit, targetCommit)
	if diffError != nil {
		return nil, DiffError{SourceCommit: sourceCommit, TargetCommit: targetCommit, Cause: diffError}
	}

	patchPath := workflow.PatchPath(targetCommit)
	document, documentError := NewDocument(workflow.store, patchPath, sourceCommit, targetCommit, diffText)
	if documentError != nil {
		return nil, documentError
	}

	persisted, existsError := workflow.store.Exists(patchPath)
	if existsError != nil {
		return nil, PersistenceError{Path: patchPath, Operation: PersistenceOperationStat, Cause: existsError}
	}
	if persisted {
		document.workStatus = WorkStatusDone
	}

	workflow.currentDocument = document
	workflow.logger.Debug(diffedLogMessageConstant,
		zap.String(logFieldSourceCommitConstant, sourceCommit),
		zap.String(logFieldTargetCommitConstant, targetCommit),
		zap.String(logFieldWorkStatusConstant, document.workStatus.String()),
	)
	return document, nil
}

// CheckoutWorkBranch creates a uniquely named branch at the first commit and checks it out.
func (workflow *Workflow) CheckoutWorkBranch(executionContext context.Context) (string, error) {
	if len(workflow.commits) == 0 {
		return "", HistoryError{Branch: workflow.branch, Cause: errors.New(noCommitsMessageConstant)}
	}

	branchName := workflow.branchNamer()
	if checkoutError := workflow.repository.CheckoutNewBranch(executionContext, branchName, workflow.commits[0]); checkoutError != nil {
		return "", checkoutError
	}

	workflow.logger.Info(workBranchLogMessageConstant,
		zap.String(logFieldBranchConstant, branchName),
		zap.Int(logFieldCommitsConstant, len(workflow.commits)),
	)
	return branchName, nil
}

// CommitPatch applies, stages, and commits the current document's stored patch. A failure is recorded
// on the document and handed to onFailure; when onFailure changes the document it is saved and the
// commit is retried. Only persistence failures and handler errors are returned.
func (workflow *Workflow) CommitPatch(executionContext context.Context, onFailure DocumentHandler) (bool, error) {
	if workflow.currentDocument == nil {
		return false, InvalidInputError{FieldName: currentDocumentFieldNameConstant, Message: requiredValueMessageConstant}
	}
	outcome, commitError := workflow.commitDocument(executionContext, workflow.currentDocument, onFailure)
	return outcome.committed, commitError
}

// Run rewrites every commit pair of the branch onto a fresh work branch.
func (workflow *Workflow) Run(executionContext context.Context, request RunRequest) (RunSummary, error) {
	summary := RunSummary{}
	if validationError := validateTransformRequest(request.Pattern, request.Transforms); validationError != nil {
		return summary, validationError
	}

	workBranch, checkoutError := workflow.CheckoutWorkBranch(executionContext)
	if checkoutError != nil {
		return summary, checkoutError
	}
	summary.WorkBranch = workBranch

	for commitIndex := 0; commitIndex+1 < len(workflow.commits); commitIndex++ {
		report, pairError := workflow.processPair(executionContext, workflow.commits[commitIndex], workflow.commits[commitIndex+1], request)
		if pairError != nil {
			return summary, pairError
		}
		summary.Pairs = append(summary.Pairs, report)
	}
	return summary, nil
}

func (workflow *Workflow) processPair(executionContext context.Context, sourceCommit string, targetCommit string, request RunRequest) (PairReport, error) {
	document, diffError := workflow.Diff(executionContext, sourceCommit, targetCommit)
	if diffError != nil {
		return PairReport{}, diffError
	}

	if document.WorkStatus() == WorkStatusDone {
		stepError := invokeHandler(executionContext, request.OnStep, document)
		switch {
		case stepError == nil:
			return workflow.commitPersistedPatch(executionContext, document, request.OnFailure)
		case errors.Is(stepError, ErrReprocess):
		default:
			return PairReport{}, stepError
		}
	}

	for _, kind := range request.Transforms {
		if _, transformError := document.Transform(kind, request.Pattern, request.Replacement); transformError != nil {
			return PairReport{}, transformError
		}
		if stepError := invokeHandler(executionContext, request.OnStep, document); stepError != nil {
			return PairReport{}, stepError
		}
	}

	if saveError := document.Save(); saveError != nil {
		return PairReport{}, saveError
	}

	outcome, commitError := workflow.commitDocument(executionContext, document, request.OnFailure)
	if commitError != nil {
		return PairReport{}, commitError
	}
	return workflow.reportPair(document, outcome), nil
}

func (workflow *Workflow) commitPersistedPatch(executionContext context.Context, document *Document, onFailure DocumentHandler) (PairReport, error) {
	workflow.logger.Info(persistedPatchLogMessageConstant,
		zap.String(logFieldTargetCommitConstant, document.TargetCommit()),
		zap.String(logFieldPatchPathConstant, document.Path()),
	)
	if reloadError := document.Reload(); reloadError != nil {
		return PairReport{}, reloadError
	}

	outcome, commitError := workflow.commitDocument(executionContext, document, onFailure)
	if commitError != nil {
		return PairReport{}, commitError
	}
	return workflow.reportPair(document, outcome), nil
}

func (workflow *Workflow) commitDocument(executionContext context.Context, document *Document, onFailure DocumentHandler) (commitOutcome, error) {
	outcome := commitOutcome{}
	for {
		outcome.attempts++
		document.SetLastError(nil)

		failure := workflow.applyAndCommit(executionContext, document)
		if failure == nil {
			outcome.committed = true
			return outcome, nil
		}

		document.SetLastError(failure)
		workflow.logger.Warn(commitFailedLogMessageConstant,
			zap.String(logFieldTargetCommitConstant, document.TargetCommit()),
			zap.String(logFieldPatchPathConstant, document.Path()),
			zap.Int(logFieldAttemptConstant, outcome.attempts),
			zap.Error(failure),
		)

		if onFailure == nil {
			return outcome, nil
		}

		document.takeSnapshot()
		if handlerError := onFailure(executionContext, document); handlerError != nil {
			return outcome, handlerError
		}
		if !document.IsChanged() {
			return outcome, nil
		}
		if saveError := document.Save(); saveError != nil {
			return outcome, saveError
		}
	}
}

func (workflow *Workflow) applyAndCommit(executionContext context.Context, document *Document) error {
	if applyError := workflow.repository.ApplyPatchFile(executionContext, document.Path()); applyError != nil {
		return ApplyError{Path: document.Path(), Cause: applyError}
	}
	if stageError := workflow.repository.StageAll(executionContext); stageError != nil {
		return CommitError{Commit: document.TargetCommit(), Operation: CommitOperationStage, Cause: stageError}
	}
	if commitError := workflow.repository.CommitReusingMessage(executionContext, document.TargetCommit()); commitError != nil {
		return CommitError{Commit: document.TargetCommit(), Operation: CommitOperationCommit, Cause: commitError}
	}
	return nil
}

func (workflow *Workflow) reportPair(document *Document, outcome commitOutcome) PairReport {
	report := newPairReport(document, outcome)
	workflow.logger.Info(pairProcessedLogMessageConstant,
		zap.String(logFieldSourceCommitConstant, report.SourceCommit),
		zap.String(logFieldTargetCommitConstant, report.TargetCommit),
		zap.String(logFieldWorkStatusConstant, report.WorkStatus),
		zap.Bool(logFieldCommittedConstant, report.Committed),
		zap.Int(logFieldAttemptsConstant, report.Attempts),
	)
	return report
}

func invokeHandler(executionContext context.Context, handler DocumentHandler, document *Document) error {
	if handler == nil {
		return nil
	}
	return handler(executionContext, document)
}

func defaultBranchNamer() string {
	return workBranchPrefixConstant + uuid.NewString()
}
