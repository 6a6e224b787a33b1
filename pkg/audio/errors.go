package audio

import "fmt"

// CodecError reports malformed or unusable audio input. Callers are expected
// to drop the offending chunk and continue; a CodecError is never fatal to a
// session.
type CodecError struct {
	Op     string
	Reason string
}

func (e *CodecError) Error() string {
	return fmt.Sprintf("audio %s: %s", e.Op, e.Reason)
}

func codecErrorf(op, format string, args ...any) *CodecError {
	return &CodecError{Op: op, Reason: fmt.Sprintf(format, args...)}
}
