package rewrite

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/tyemirov/patchpatch/internal/patches"
)

const (
	stepLogMessageConstant        = "transformed patch"
	reprocessLogMessageConstant   = "reprocessing persisted patch"
	previewHeaderTemplateConstant = "%s (%s)\n"
	logFieldSourceCommitConstant  = "source_commit"
	logFieldWorkStatusConstant    = "work_status"
)

type stepObserver struct {
	showChanges bool
	reprocess   bool
	output      io.Writer
	logger      *zap.Logger
}

func (observer stepObserver) observe(_ context.Context, document *patches.Document) error {
	if document.WorkStatus() == patches.WorkStatusDone {
		if !observer.reprocess {
			return nil
		}
		observer.logger.Info(reprocessLogMessageConstant,
			zap.String(logFieldTargetCommitConstant, document.TargetCommit()),
			zap.String(logFieldPatchPathConstant, document.Path()),
		)
		return patches.ErrReprocess
	}

	observer.logger.Debug(stepLogMessageConstant,
		zap.String(logFieldSourceCommitConstant, document.SourceCommit()),
		zap.String(logFieldTargetCommitConstant, document.TargetCommit()),
		zap.String(logFieldWorkStatusConstant, document.WorkStatus().String()),
		zap.Bool(logFieldChangedConstant, document.IsChanged()),
	)

	if !observer.showChanges || observer.output == nil {
		return nil
	}
	preview, previewError := document.ChangePreview()
	if previewError != nil {
		return previewError
	}
	if len(preview) == 0 {
		return nil
	}
	if _, writeError := fmt.Fprintf(observer.output, previewHeaderTemplateConstant, document.Path(), document.WorkStatus()); writeError != nil {
		return writeError
	}
	_, writeError := io.WriteString(observer.output, preview)
	return writeError
}
