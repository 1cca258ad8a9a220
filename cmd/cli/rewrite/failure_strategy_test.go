package rewrite

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tyemirov/patchpatch/internal/patches"
	"github.com/tyemirov/patchpatch/internal/prompt"
)

const (
	testPatchPathConstant     = "/patches/repository/target/patch"
	testSourceCommitConstant  = "source"
	testTargetCommitConstant  = "target"
	testOriginalTextConstant  = "diff --git a/git-patch/README.md b/git-patch/README.md"
	testRewrittenTextConstant = "diff --git a/plop/README.md b/plop/README.md"
)

type stubDiffSource struct {
	text      string
	diffError error
	calls     int
}

func (source *stubDiffSource) DiffText(_ context.Context, sourceRevision string, targetRevision string) (string, error) {
	source.calls++
	if sourceRevision != testSourceCommitConstant || targetRevision != testTargetCommitConstant {
		return "", errors.New("unexpected revisions")
	}
	return source.text, source.diffError
}

type stubPrompter struct {
	result    prompt.ConfirmationResult
	promptErr error
	prompts   []string
}

func (prompter *stubPrompter) Confirm(question string) (prompt.ConfirmationResult, error) {
	prompter.prompts = append(prompter.prompts, question)
	return prompter.result, prompter.promptErr
}

func newFailedDocument(testInstance *testing.T, storedContent string) *patches.Document {
	testInstance.Helper()
	store := patches.NewFileStore(afero.NewMemMapFs())
	if len(storedContent) > 0 {
		require.NoError(testInstance, store.WriteFile(testPatchPathConstant, storedContent))
	}
	document, documentError := patches.NewDocument(store, testPatchPathConstant, testSourceCommitConstant, testTargetCommitConstant, testRewrittenTextConstant)
	require.NoError(testInstance, documentError)
	document.SetLastError(patches.ApplyError{Path: testPatchPathConstant, Cause: errors.New("patch does not apply")})
	return document
}

func TestParseFailureStrategy(testInstance *testing.T) {
	testCases := []struct {
		name          string
		value         string
		expected      FailureStrategy
		expectedError bool
	}{
		{name: "skip", value: "skip", expected: FailureStrategySkip},
		{name: "revert_mixed_case", value: " Revert ", expected: FailureStrategyRevert},
		{name: "prompt", value: "prompt", expected: FailureStrategyPrompt},
		{name: "unknown", value: "abort", expectedError: true},
		{name: "empty", value: "", expectedError: true},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(subTest *testing.T) {
			strategy, parseError := ParseFailureStrategy(testCase.value)
			if testCase.expectedError {
				require.Error(subTest, parseError)
				return
			}
			require.NoError(subTest, parseError)
			require.Equal(subTest, testCase.expected, strategy)
		})
	}
}

func TestFailureResolverStrategies(testInstance *testing.T) {
	testCases := []struct {
		name            string
		strategy        FailureStrategy
		storedContent   string
		promptResult    prompt.ConfirmationResult
		expectedText    string
		expectedChanged bool
		expectedDiffs   int
		expectedPrompts int
		expectedOutput  string
	}{
		{
			name:            "skip_leaves_patch",
			strategy:        FailureStrategySkip,
			expectedText:    testRewrittenTextConstant,
			expectedChanged: false,
		},
		{
			name:            "revert_restores_original_diff",
			strategy:        FailureStrategyRevert,
			expectedText:    testOriginalTextConstant,
			expectedChanged: true,
			expectedDiffs:   1,
			expectedOutput:  "reverted " + testPatchPathConstant + "\n",
		},
		{
			name:            "prompt_confirmed_reverts",
			strategy:        FailureStrategyPrompt,
			promptResult:    prompt.ConfirmationResult{Confirmed: true},
			expectedText:    testOriginalTextConstant,
			expectedChanged: true,
			expectedDiffs:   1,
			expectedPrompts: 1,
			expectedOutput:  "reverted " + testPatchPathConstant + "\n",
		},
		{
			name:            "prompt_declined_reloads_edited_patch",
			strategy:        FailureStrategyPrompt,
			storedContent:   "edited by hand\n",
			expectedText:    "edited by hand",
			expectedChanged: true,
			expectedPrompts: 1,
		},
		{
			name:            "prompt_declined_without_edit_stops",
			strategy:        FailureStrategyPrompt,
			storedContent:   testRewrittenTextConstant + "\n",
			expectedText:    testRewrittenTextConstant,
			expectedChanged: false,
			expectedPrompts: 1,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(subTest *testing.T) {
			document := newFailedDocument(subTest, testCase.storedContent)
			diffSource := &stubDiffSource{text: testOriginalTextConstant}
			prompter := &stubPrompter{result: testCase.promptResult}
			output := &bytes.Buffer{}

			resolver := failureResolver{
				strategy:   testCase.strategy,
				diffSource: diffSource,
				prompter:   prompter,
				output:     output,
				logger:     zap.NewNop(),
			}

			require.NoError(subTest, resolver.handler()(context.Background(), document))
			require.Equal(subTest, testCase.expectedText, document.Text())
			require.Equal(subTest, testCase.expectedChanged, document.IsChanged())
			require.Equal(subTest, testCase.expectedDiffs, diffSource.calls)
			require.Len(subTest, prompter.prompts, testCase.expectedPrompts)
			require.Equal(subTest, testCase.expectedOutput, output.String())
		})
	}
}

func TestFailureResolverPromptMentionsFailure(testInstance *testing.T) {
	document := newFailedDocument(testInstance, testRewrittenTextConstant+"\n")
	prompter := &stubPrompter{}
	resolver := failureResolver{strategy: FailureStrategyPrompt, diffSource: &stubDiffSource{}, prompter: prompter, logger: zap.NewNop()}

	require.NoError(testInstance, resolver.handler()(context.Background(), document))
	require.Len(testInstance, prompter.prompts, 1)
	require.Contains(testInstance, prompter.prompts[0], testPatchPathConstant)
	require.Contains(testInstance, prompter.prompts[0], "patch does not apply")
}

func TestFailureResolverPropagatesErrors(testInstance *testing.T) {
	promptFailure := errors.New("terminal closed")
	diffFailure := errors.New("unknown revision")

	testCases := []struct {
		name          string
		strategy      FailureStrategy
		prompter      *stubPrompter
		diffSource    *stubDiffSource
		expectedError error
	}{
		{
			name:          "prompt_error",
			strategy:      FailureStrategyPrompt,
			prompter:      &stubPrompter{promptErr: promptFailure},
			diffSource:    &stubDiffSource{},
			expectedError: promptFailure,
		},
		{
			name:          "diff_error",
			strategy:      FailureStrategyRevert,
			prompter:      &stubPrompter{},
			diffSource:    &stubDiffSource{diffError: diffFailure},
			expectedError: diffFailure,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(subTest *testing.T) {
			document := newFailedDocument(subTest, "")
			resolver := failureResolver{strategy: testCase.strategy, diffSource: testCase.diffSource, prompter: testCase.prompter, logger: zap.NewNop()}
			handlerError := resolver.handler()(context.Background(), document)
			require.ErrorIs(subTest, handlerError, testCase.expectedError)
		})
	}
}

func TestStepObserver(testInstance *testing.T) {
	testInstance.Run("prints_preview_of_changes", func(subTest *testing.T) {
		document := newFailedDocument(subTest, "")
		changed, transformError := document.Transform(patches.TransformFilenames, "plop", "plap")
		require.NoError(subTest, transformError)
		require.True(subTest, changed)

		output := &bytes.Buffer{}
		observer := stepObserver{showChanges: true, output: output, logger: zap.NewNop()}
		require.NoError(subTest, observer.observe(context.Background(), document))
		require.Contains(subTest, output.String(), testPatchPathConstant+" (filenames)")
		require.Contains(subTest, output.String(), "+diff --git a/plap/README.md b/plap/README.md")
	})

	testInstance.Run("silent_without_show_changes", func(subTest *testing.T) {
		document := newFailedDocument(subTest, "")
		_, transformError := document.Transform(patches.TransformPatch, "plop", "plap")
		require.NoError(subTest, transformError)

		output := &bytes.Buffer{}
		observer := stepObserver{output: output, logger: zap.NewNop()}
		require.NoError(subTest, observer.observe(context.Background(), document))
		require.Empty(subTest, output.String())
	})
}
