package patches_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/tyemirov/patchpatch/internal/patches"
)

const (
	testRepositoryDirectoryConstant = "/srv/repository"
	testPatchRootConstant           = "/var/patches"
	testBranchConstant              = "master"
	testWorkBranchConstant          = "patchpatch/test"
	testPatternConstant             = "git-patch"
	testReplacementConstant         = "plop"
	testFirstCommitConstant         = "c0"
	testSecondCommitConstant        = "c1"
	testThirdCommitConstant         = "c2"
	testOperationCheckoutConstant   = "checkout"
	testOperationApplyConstant      = "apply"
	testOperationStageConstant      = "stage"
	testOperationCommitConstant     = "commit"
	testRejectedContentConstant     = "rejected"
)

type fakeVersionControl struct {
	commits       []string
	diffs         map[string]string
	listError     error
	diffError     error
	applyFunc     func(patchPath string) error
	stageError    error
	commitError   error
	operations    []string
	appliedPaths  []string
	committedFrom []string
}

func newFakeVersionControl() *fakeVersionControl {
	return &fakeVersionControl{
		commits: []string{testFirstCommitConstant, testSecondCommitConstant, testThirdCommitConstant},
		diffs: map[string]string{
			testSecondCommitConstant: "diff --git a/git-patch/README.md b/git-patch/README.md\n--- /dev/null\n+++ b/git-patch/README.md\n@@ -0,0 +1 @@\n+# git-patch",
			testThirdCommitConstant:  "diff --git a/init b/init\n--- a/init\n+++ b/init\n@@ -1 +0,0 @@\n-initialise",
		},
	}
}

func (repository *fakeVersionControl) ListCommits(_ context.Context, _ string) ([]string, error) {
	if repository.listError != nil {
		return nil, repository.listError
	}
	return repository.commits, nil
}

func (repository *fakeVersionControl) DiffText(_ context.Context, _ string, targetRevision string) (string, error) {
	if repository.diffError != nil {
		return "", repository.diffError
	}
	return repository.diffs[targetRevision], nil
}

func (repository *fakeVersionControl) CheckoutNewBranch(_ context.Context, branchName string, startPoint string) error {
	repository.operations = append(repository.operations, testOperationCheckoutConstant+" "+branchName+" "+startPoint)
	return nil
}

func (repository *fakeVersionControl) ApplyPatchFile(_ context.Context, patchPath string) error {
	repository.operations = append(repository.operations, testOperationApplyConstant)
	repository.appliedPaths = append(repository.appliedPaths, patchPath)
	if repository.applyFunc != nil {
		return repository.applyFunc(patchPath)
	}
	return nil
}

func (repository *fakeVersionControl) StageAll(context.Context) error {
	repository.operations = append(repository.operations, testOperationStageConstant)
	return repository.stageError
}

func (repository *fakeVersionControl) CommitReusingMessage(_ context.Context, commit string) error {
	repository.operations = append(repository.operations, testOperationCommitConstant)
	if repository.commitError != nil {
		return repository.commitError
	}
	repository.committedFrom = append(repository.committedFrom, commit)
	return nil
}

func (repository *fakeVersionControl) RepositoryDirectory() string {
	return testRepositoryDirectoryConstant
}

type handlerRecorder struct {
	steps    []patches.WorkStatus
	failures []error
}

func (recorder *handlerRecorder) onStep(_ context.Context, document *patches.Document) error {
	recorder.steps = append(recorder.steps, document.WorkStatus())
	return nil
}

func (recorder *handlerRecorder) onFailure(_ context.Context, document *patches.Document) error {
	recorder.failures = append(recorder.failures, document.LastError())
	return nil
}

func newTestWorkflow(testInstance *testing.T, repository *fakeVersionControl, store patches.Store, logger *zap.Logger) *patches.Workflow {
	testInstance.Helper()
	workflow, workflowError := patches.NewWorkflow(
		context.Background(),
		patches.Dependencies{
			Repository:  repository,
			Store:       store,
			Logger:      logger,
			BranchNamer: func() string { return testWorkBranchConstant },
		},
		patches.Options{PatchRoot: testPatchRootConstant, Branch: testBranchConstant},
	)
	require.NoError(testInstance, workflowError)
	return workflow
}

func TestNewWorkflowValidation(testInstance *testing.T) {
	store := patches.NewFileStore(afero.NewMemMapFs())
	listFailure := errors.New("unknown revision")

	testCases := []struct {
		name          string
		dependencies  patches.Dependencies
		options       patches.Options
		expectedError error
		expectedType  any
	}{
		{
			name:          "missing_repository",
			dependencies:  patches.Dependencies{Store: store},
			options:       patches.Options{PatchRoot: testPatchRootConstant, Branch: testBranchConstant},
			expectedError: patches.ErrRepositoryNotConfigured,
		},
		{
			name:          "missing_store",
			dependencies:  patches.Dependencies{Repository: newFakeVersionControl()},
			options:       patches.Options{PatchRoot: testPatchRootConstant, Branch: testBranchConstant},
			expectedError: patches.ErrStoreNotConfigured,
		},
		{
			name:         "missing_patch_root",
			dependencies: patches.Dependencies{Repository: newFakeVersionControl(), Store: store},
			options:      patches.Options{Branch: testBranchConstant},
			expectedType: patches.InvalidInputError{},
		},
		{
			name:         "missing_branch",
			dependencies: patches.Dependencies{Repository: newFakeVersionControl(), Store: store},
			options:      patches.Options{PatchRoot: testPatchRootConstant},
			expectedType: patches.InvalidInputError{},
		},
		{
			name:          "history_failure",
			dependencies:  patches.Dependencies{Repository: &fakeVersionControl{listError: listFailure}, Store: store},
			options:       patches.Options{PatchRoot: testPatchRootConstant, Branch: testBranchConstant},
			expectedError: listFailure,
			expectedType:  patches.HistoryError{},
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			workflow, workflowError := patches.NewWorkflow(context.Background(), testCase.dependencies, testCase.options)
			require.Error(testInstance, workflowError)
			require.Nil(testInstance, workflow)
			if testCase.expectedError != nil {
				require.ErrorIs(testInstance, workflowError, testCase.expectedError)
			}
			if testCase.expectedType != nil {
				require.IsType(testInstance, testCase.expectedType, workflowError)
			}
		})
	}
}

func TestWorkflowPatchPath(testInstance *testing.T) {
	workflow := newTestWorkflow(testInstance, newFakeVersionControl(), patches.NewFileStore(afero.NewMemMapFs()), nil)

	require.Equal(
		testInstance,
		filepath.Join(testPatchRootConstant, "patchpatch", "srv", "repository", testSecondCommitConstant, "patch"),
		workflow.PatchPath(testSecondCommitConstant),
	)
	require.Equal(testInstance, []string{testFirstCommitConstant, testSecondCommitConstant, testThirdCommitConstant}, workflow.Commits())
}

func TestWorkflowDiff(testInstance *testing.T) {
	repository := newFakeVersionControl()
	store := patches.NewFileStore(afero.NewMemMapFs())
	workflow := newTestWorkflow(testInstance, repository, store, nil)

	document, diffError := workflow.Diff(context.Background(), testFirstCommitConstant, testSecondCommitConstant)
	require.NoError(testInstance, diffError)
	require.Same(testInstance, document, workflow.CurrentDocument())
	require.Equal(testInstance, patches.WorkStatusNone, document.WorkStatus())
	require.Equal(testInstance, repository.diffs[testSecondCommitConstant], document.Text())
	require.Equal(testInstance, workflow.PatchPath(testSecondCommitConstant), document.Path())

	require.NoError(testInstance, document.Save())

	persisted, persistedError := workflow.Diff(context.Background(), testFirstCommitConstant, testSecondCommitConstant)
	require.NoError(testInstance, persistedError)
	require.Equal(testInstance, patches.WorkStatusDone, persisted.WorkStatus())
	require.NotSame(testInstance, document, workflow.CurrentDocument())

	repository.diffError = errors.New("bad revision")
	_, failedError := workflow.Diff(context.Background(), testSecondCommitConstant, testThirdCommitConstant)
	var diffFailure patches.DiffError
	require.ErrorAs(testInstance, failedError, &diffFailure)
	require.Equal(testInstance, testSecondCommitConstant, diffFailure.SourceCommit)
	require.Equal(testInstance, testThirdCommitConstant, diffFailure.TargetCommit)
}

func TestWorkflowRunRewritesEveryPair(testInstance *testing.T) {
	repository := newFakeVersionControl()
	store := patches.NewFileStore(afero.NewMemMapFs())
	workflow := newTestWorkflow(testInstance, repository, store, nil)
	recorder := &handlerRecorder{}

	summary, runError := workflow.Run(context.Background(), patches.RunRequest{
		Pattern:     testPatternConstant,
		Replacement: testReplacementConstant,
		Transforms:  []patches.TransformKind{patches.TransformPatch, patches.TransformFilenames},
		OnStep:      recorder.onStep,
		OnFailure:   recorder.onFailure,
	})
	require.NoError(testInstance, runError)

	require.Equal(testInstance, []patches.WorkStatus{
		patches.WorkStatusPatch, patches.WorkStatusNothing,
		patches.WorkStatusNothing, patches.WorkStatusNothing,
	}, recorder.steps)
	require.Empty(testInstance, recorder.failures)

	require.Equal(testInstance, []string{
		testOperationCheckoutConstant + " " + testWorkBranchConstant + " " + testFirstCommitConstant,
		testOperationApplyConstant, testOperationStageConstant, testOperationCommitConstant,
		testOperationApplyConstant, testOperationStageConstant, testOperationCommitConstant,
	}, repository.operations)
	require.Equal(testInstance, []string{testSecondCommitConstant, testThirdCommitConstant}, repository.committedFrom)

	storedPatch, readError := store.ReadFile(workflow.PatchPath(testSecondCommitConstant))
	require.NoError(testInstance, readError)
	require.Equal(testInstance, strings.ReplaceAll(repository.diffs[testSecondCommitConstant], testPatternConstant, testReplacementConstant)+"\n", storedPatch)

	require.Equal(testInstance, testWorkBranchConstant, summary.WorkBranch)
	require.Len(testInstance, summary.Pairs, 2)
	require.Equal(testInstance, 2, summary.CommittedCount())
	require.Empty(testInstance, summary.FailedPairs())
	require.Equal(testInstance, patches.PairReport{
		SourceCommit: testFirstCommitConstant,
		TargetCommit: testSecondCommitConstant,
		PatchPath:    workflow.PatchPath(testSecondCommitConstant),
		WorkStatus:   "nothing",
		Committed:    true,
		Attempts:     1,
	}, summary.Pairs[0])
}

func TestWorkflowRunRejectsInvalidRequests(testInstance *testing.T) {
	testCases := []struct {
		name       string
		pattern    string
		transforms []patches.TransformKind
	}{
		{name: "empty_pattern", pattern: "", transforms: patches.DefaultTransformKinds()},
		{name: "unknown_transform", pattern: testPatternConstant, transforms: []patches.TransformKind{"rename"}},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			repository := newFakeVersionControl()
			workflow := newTestWorkflow(testInstance, repository, patches.NewFileStore(afero.NewMemMapFs()), nil)

			_, runError := workflow.Run(context.Background(), patches.RunRequest{
				Pattern:     testCase.pattern,
				Replacement: testReplacementConstant,
				Transforms:  testCase.transforms,
			})
			require.IsType(testInstance, patches.TransformError{}, runError)
			require.Empty(testInstance, repository.operations)
		})
	}
}

func TestWorkflowRunRequiresCommits(testInstance *testing.T) {
	repository := &fakeVersionControl{}
	workflow := newTestWorkflow(testInstance, repository, patches.NewFileStore(afero.NewMemMapFs()), nil)

	_, runError := workflow.Run(context.Background(), patches.RunRequest{
		Pattern:    testPatternConstant,
		Transforms: patches.DefaultTransformKinds(),
	})
	require.IsType(testInstance, patches.HistoryError{}, runError)
	require.Empty(testInstance, repository.operations)
}

func TestWorkflowCommitPatchRetriesWhileFixesChangeTheDocument(testInstance *testing.T) {
	repository := newFakeVersionControl()
	store := patches.NewFileStore(afero.NewMemMapFs())
	repository.applyFunc = func(patchPath string) error {
		content, readError := store.ReadFile(patchPath)
		if readError != nil {
			return readError
		}
		if strings.Contains(content, testRejectedContentConstant) {
			return errors.New("patch does not apply")
		}
		return nil
	}
	workflow := newTestWorkflow(testInstance, repository, store, nil)

	document, diffError := workflow.Diff(context.Background(), testFirstCommitConstant, testSecondCommitConstant)
	require.NoError(testInstance, diffError)
	document.SetText(document.Text() + "\n" + testRejectedContentConstant)
	require.NoError(testInstance, document.Save())

	failureCalls := 0
	committed, commitError := workflow.CommitPatch(context.Background(), func(_ context.Context, failedDocument *patches.Document) error {
		failureCalls++
		var applyFailure patches.ApplyError
		require.ErrorAs(testInstance, failedDocument.LastError(), &applyFailure)
		require.Equal(testInstance, failedDocument.Path(), applyFailure.Path)
		failedDocument.SetText(strings.ReplaceAll(failedDocument.Text(), "\n"+testRejectedContentConstant, ""))
		return nil
	})
	require.NoError(testInstance, commitError)
	require.True(testInstance, committed)
	require.Equal(testInstance, 1, failureCalls)
	require.NoError(testInstance, document.LastError())
	require.Len(testInstance, repository.appliedPaths, 2)
	require.Equal(testInstance, []string{testSecondCommitConstant}, repository.committedFrom)

	storedPatch, readError := store.ReadFile(document.Path())
	require.NoError(testInstance, readError)
	require.Equal(testInstance, repository.diffs[testSecondCommitConstant]+"\n", storedPatch)
}

func TestWorkflowCommitPatchStopsWhenFixLeavesDocumentUnchanged(testInstance *testing.T) {
	observerCore, observedLogs := observer.New(zap.WarnLevel)
	repository := newFakeVersionControl()
	repository.applyFunc = func(string) error { return errors.New("patch does not apply") }
	workflow := newTestWorkflow(testInstance, repository, patches.NewFileStore(afero.NewMemMapFs()), zap.New(observerCore))

	document, diffError := workflow.Diff(context.Background(), testFirstCommitConstant, testSecondCommitConstant)
	require.NoError(testInstance, diffError)
	require.NoError(testInstance, document.Save())

	recorder := &handlerRecorder{}
	committed, commitError := workflow.CommitPatch(context.Background(), recorder.onFailure)
	require.NoError(testInstance, commitError)
	require.False(testInstance, committed)
	require.Len(testInstance, recorder.failures, 1)
	require.IsType(testInstance, patches.ApplyError{}, document.LastError())
	require.Len(testInstance, repository.appliedPaths, 1)
	require.Empty(testInstance, repository.committedFrom)

	warnings := observedLogs.FilterMessage("patch commit failed").All()
	require.Len(testInstance, warnings, 1)
	require.Equal(testInstance, zapcore.WarnLevel, warnings[0].Level)
}

func TestWorkflowCommitPatchReportsCommitFailures(testInstance *testing.T) {
	testCases := []struct {
		name              string
		configure         func(repository *fakeVersionControl)
		expectedOperation patches.CommitOperation
	}{
		{
			name:              "stage",
			configure:         func(repository *fakeVersionControl) { repository.stageError = errors.New("index locked") },
			expectedOperation: patches.CommitOperationStage,
		},
		{
			name:              "commit",
			configure:         func(repository *fakeVersionControl) { repository.commitError = errors.New("nothing to commit") },
			expectedOperation: patches.CommitOperationCommit,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			repository := newFakeVersionControl()
			testCase.configure(repository)
			workflow := newTestWorkflow(testInstance, repository, patches.NewFileStore(afero.NewMemMapFs()), nil)

			document, diffError := workflow.Diff(context.Background(), testFirstCommitConstant, testSecondCommitConstant)
			require.NoError(testInstance, diffError)
			require.NoError(testInstance, document.Save())

			committed, commitError := workflow.CommitPatch(context.Background(), nil)
			require.NoError(testInstance, commitError)
			require.False(testInstance, committed)

			var commitFailure patches.CommitError
			require.ErrorAs(testInstance, document.LastError(), &commitFailure)
			require.Equal(testInstance, testCase.expectedOperation, commitFailure.Operation)
			require.Equal(testInstance, testSecondCommitConstant, commitFailure.Commit)
		})
	}
}

func TestWorkflowCommitPatchReturnsHandlerErrors(testInstance *testing.T) {
	repository := newFakeVersionControl()
	repository.applyFunc = func(string) error { return errors.New("patch does not apply") }
	workflow := newTestWorkflow(testInstance, repository, patches.NewFileStore(afero.NewMemMapFs()), nil)

	_, noDocumentError := workflow.CommitPatch(context.Background(), nil)
	require.IsType(testInstance, patches.InvalidInputError{}, noDocumentError)

	document, diffError := workflow.Diff(context.Background(), testFirstCommitConstant, testSecondCommitConstant)
	require.NoError(testInstance, diffError)
	require.NoError(testInstance, document.Save())

	abort := errors.New("aborted")
	_, commitError := workflow.CommitPatch(context.Background(), func(context.Context, *patches.Document) error { return abort })
	require.ErrorIs(testInstance, commitError, abort)
}

func TestWorkflowRunHandlesPersistedPatches(testInstance *testing.T) {
	persistedContent := "diff --git a/edited b/edited\n+edited"

	testCases := []struct {
		name              string
		stepResult        error
		expectedSteps     int
		expectedRunError  error
		expectedStoredFix string
	}{
		{
			name:              "commit_persisted",
			stepResult:        nil,
			expectedSteps:     1 + 2,
			expectedStoredFix: persistedContent + "\n",
		},
		{
			name:          "reprocess",
			stepResult:    patches.ErrReprocess,
			expectedSteps: 1 + 2 + 2,
		},
		{
			name:             "abort",
			stepResult:       context.Canceled,
			expectedSteps:    1,
			expectedRunError: context.Canceled,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			repository := newFakeVersionControl()
			store := patches.NewFileStore(afero.NewMemMapFs())
			workflow := newTestWorkflow(testInstance, repository, store, nil)
			require.NoError(testInstance, store.WriteFile(workflow.PatchPath(testSecondCommitConstant), persistedContent+"\n"))

			var observedStatuses []patches.WorkStatus
			var persistedTexts []string
			summary, runError := workflow.Run(context.Background(), patches.RunRequest{
				Pattern:     testPatternConstant,
				Replacement: testReplacementConstant,
				Transforms:  patches.DefaultTransformKinds(),
				OnStep: func(_ context.Context, document *patches.Document) error {
					observedStatuses = append(observedStatuses, document.WorkStatus())
					if document.WorkStatus() == patches.WorkStatusDone {
						persistedTexts = append(persistedTexts, document.Text())
						return testCase.stepResult
					}
					return nil
				},
			})

			require.Len(testInstance, observedStatuses, testCase.expectedSteps)
			require.Equal(testInstance, patches.WorkStatusDone, observedStatuses[0])
			require.Equal(testInstance, []string{repository.diffs[testSecondCommitConstant]}, persistedTexts)

			if testCase.expectedRunError != nil {
				require.ErrorIs(testInstance, runError, testCase.expectedRunError)
				require.Empty(testInstance, repository.appliedPaths)
				return
			}
			require.NoError(testInstance, runError)
			require.Len(testInstance, summary.Pairs, 2)
			require.Equal(testInstance, 2, summary.CommittedCount())

			storedPatch, readError := store.ReadFile(workflow.PatchPath(testSecondCommitConstant))
			require.NoError(testInstance, readError)
			if len(testCase.expectedStoredFix) > 0 {
				require.Equal(testInstance, testCase.expectedStoredFix, storedPatch)
				require.Equal(testInstance, "done", summary.Pairs[0].WorkStatus)
			} else {
				require.Equal(testInstance, strings.ReplaceAll(repository.diffs[testSecondCommitConstant], testPatternConstant, testReplacementConstant)+"\n", storedPatch)
			}
		})
	}
}

func TestWorkflowRunReturnsPersistenceFailures(testInstance *testing.T) {
	repository := newFakeVersionControl()
	workflow := newTestWorkflow(testInstance, repository, patches.NewFileStore(afero.NewReadOnlyFs(afero.NewMemMapFs())), nil)

	_, runError := workflow.Run(context.Background(), patches.RunRequest{
		Pattern:    testPatternConstant,
		Transforms: patches.DefaultTransformKinds(),
	})

	var persistenceFailure patches.PersistenceError
	require.ErrorAs(testInstance, runError, &persistenceFailure)
	require.Equal(testInstance, patches.PersistenceOperationWrite, persistenceFailure.Operation)
	require.Equal(testInstance, []string{testOperationCheckoutConstant + " " + testWorkBranchConstant + " " + testFirstCommitConstant}, repository.operations)
}
