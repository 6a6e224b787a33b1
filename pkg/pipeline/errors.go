package pipeline

import "fmt"

// Stage identifies the pipeline stage an error came from.
type Stage string

const (
	StageTranscribe Stage = "transcribe"
	StageComplete   Stage = "complete"
	StageSynthesize Stage = "synthesize"
)

// StageError wraps a provider failure with the stage it occurred in, so
// callers can log and count failures per stage without string matching.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("pipeline %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
