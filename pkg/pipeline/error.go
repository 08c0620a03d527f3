package pipeline

import (
	"context"
	"errors"
)

// Stage names one step of the content pipeline. It tags every pipeline
// failure so the front end can report which step broke.
type Stage string

const (
	// StageFetch is source retrieval (plain or bypass).
	StageFetch Stage = "fetch"
	// StageExtract is text/metadata extraction.
	StageExtract Stage = "extract"
	// StageSummarize is the summary generation step.
	StageSummarize Stage = "summarize"
	// StageSpeech is narration synthesis.
	StageSpeech Stage = "speech"
	// StageVideo is the video muxing step.
	StageVideo Stage = "video"
	// StageUpload is the final chat upload, performed by the caller.
	StageUpload Stage = "upload"
)

// Error is a pipeline failure tagged with the failing stage. Failure at any
// stage aborts the whole run; no partial artifact is published.
type Error struct {
	Stage Stage
	Err   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return "pipeline stage " + string(e.Stage) + " failed: " + e.Err.Error()
}

// Unwrap returns the underlying stage error.
func (e *Error) Unwrap() error { return e.Err }

// StageFailed wraps err as a pipeline failure of the given stage.
func StageFailed(stage Stage, err error) *Error {
	return &Error{Stage: stage, Err: err}
}

// FailedStage extracts the failing stage from an error chain, or "" when the
// error is not a pipeline failure.
func FailedStage(err error) Stage {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Stage
	}

	return ""
}

type stageReporterKey struct{}

// WithStageReporter attaches a per-run stage callback to the context. The
// pipeline invokes it as each stage starts, in addition to Options.OnStage.
// Used for per-message progress updates.
func WithStageReporter(ctx context.Context, fn func(Stage)) context.Context {
	return context.WithValue(ctx, stageReporterKey{}, fn)
}

func reportStage(ctx context.Context, s Stage) {
	if fn, _ := ctx.Value(stageReporterKey{}).(func(Stage)); fn != nil {
		fn(s)
	}
}
