package patches

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

const (
	lineSeparatorConstant         = "\n"
	documentPathFieldNameConstant = "path"
	requiredValueMessageConstant  = "value required"
	previewSnapshotLabelConstant  = "before"
	previewTextLabelConstant      = "after"
	previewContextLinesConstant   = 3
	workStatusNoneDisplayConstant = "none"
)

// WorkStatus records what happened to a document most recently.
type WorkStatus string

// Work statuses.
const (
	// WorkStatusNone is the status of a freshly diffed pair without a persisted patch.
	WorkStatusNone WorkStatus = ""
	// WorkStatusDone marks a pair whose patch was persisted by an earlier run.
	WorkStatusDone WorkStatus = "done"
	// WorkStatusNothing marks a transform that left the text unchanged.
	WorkStatusNothing WorkStatus = "nothing"
	// WorkStatusFilenames marks a filename transform that changed the text.
	WorkStatusFilenames WorkStatus = "filenames"
	// WorkStatusPatch marks a body transform that changed the text.
	WorkStatusPatch WorkStatus = "patch"
)

// String renders the status for reports.
func (status WorkStatus) String() string {
	if status == WorkStatusNone {
		return workStatusNoneDisplayConstant
	}
	return string(status)
}

// Document holds the diff between two commits together with its provenance and storage location.
type Document struct {
	store        Store
	path         string
	sourceCommit string
	targetCommit string
	text         string
	snapshot     string
	workStatus   WorkStatus
	lastError    error
}

// NewDocument constructs a Document. The snapshot starts equal to the text.
func NewDocument(store Store, path string, sourceCommit string, targetCommit string, text string) (*Document, error) {
	if store == nil {
		return nil, ErrStoreNotConfigured
	}
	if len(strings.TrimSpace(path)) == 0 {
		return nil, InvalidInputError{FieldName: documentPathFieldNameConstant, Message: requiredValueMessageConstant}
	}
	return &Document{
		store:        store,
		path:         path,
		sourceCommit: sourceCommit,
		targetCommit: targetCommit,
		text:         text,
		snapshot:     text,
		workStatus:   WorkStatusNone,
	}, nil
}

// Path returns the storage location of the document.
func (document *Document) Path() string {
	return document.path
}

// SourceCommit returns the older commit of the pair.
func (document *Document) SourceCommit() string {
	return document.sourceCommit
}

// TargetCommit returns the newer commit of the pair.
func (document *Document) TargetCommit() string {
	return document.targetCommit
}

// Text returns the current diff text.
func (document *Document) Text() string {
	return document.text
}

// SetText replaces the diff text without touching the snapshot.
func (document *Document) SetText(text string) {
	document.text = text
}

// WorkStatus returns the most recent work status.
func (document *Document) WorkStatus() WorkStatus {
	return document.workStatus
}

// LastError returns the most recent apply or commit failure.
func (document *Document) LastError() error {
	return document.lastError
}

// SetLastError records or clears the most recent failure.
func (document *Document) SetLastError(failure error) {
	document.lastError = failure
}

// IsChanged reports whether the text differs from the last snapshot.
func (document *Document) IsChanged() bool {
	return document.text != document.snapshot
}

// TransformFilenames rewrites path segments in diff headers and reports whether the text changed.
func (document *Document) TransformFilenames(pattern string, replacement string) bool {
	return document.applyTransform(WorkStatusFilenames, rewriteHeaderPaths(document.text, pattern, replacement))
}

// TransformBody replaces every occurrence of pattern in the text and reports whether the text changed.
func (document *Document) TransformBody(pattern string, replacement string) bool {
	if len(pattern) == 0 {
		return document.applyTransform(WorkStatusPatch, document.text)
	}
	return document.applyTransform(WorkStatusPatch, strings.ReplaceAll(document.text, pattern, replacement))
}

// Transform runs the transform of the given kind.
func (document *Document) Transform(kind TransformKind, pattern string, replacement string) (bool, error) {
	transform, known := transformTable[kind]
	if !known {
		return false, TransformError{Kind: kind, Message: unknownTransformMessageConstant}
	}
	return transform(document, pattern, replacement), nil
}

// Save writes the text followed by a line separator to the document path.
func (document *Document) Save() error {
	if writeError := document.store.WriteFile(document.path, document.text+lineSeparatorConstant); writeError != nil {
		return PersistenceError{Path: document.path, Operation: PersistenceOperationWrite, Cause: writeError}
	}
	return nil
}

// Reload snapshots the text and replaces it with the stored content, dropping the line separator Save appends.
func (document *Document) Reload() error {
	content, readError := document.store.ReadFile(document.path)
	if readError != nil {
		return PersistenceError{Path: document.path, Operation: PersistenceOperationRead, Cause: readError}
	}
	document.takeSnapshot()
	document.text = strings.TrimSuffix(content, lineSeparatorConstant)
	return nil
}

// ChangePreview renders a unified diff from the snapshot to the current text. It is empty when nothing changed.
func (document *Document) ChangePreview() (string, error) {
	if !document.IsChanged() {
		return "", nil
	}
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(document.snapshot),
		B:        difflib.SplitLines(document.text),
		FromFile: previewSnapshotLabelConstant,
		ToFile:   previewTextLabelConstant,
		Context:  previewContextLinesConstant,
	})
}

func (document *Document) takeSnapshot() {
	document.snapshot = document.text
}

func (document *Document) applyTransform(changedStatus WorkStatus, transformedText string) bool {
	document.takeSnapshot()
	document.text = transformedText
	if document.IsChanged() {
		document.workStatus = changedStatus
		return true
	}
	document.workStatus = WorkStatusNothing
	return false
}
